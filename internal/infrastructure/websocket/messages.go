package websocket

import (
	"time"

	"auction-core/internal/domain"
)

type bidView struct {
	BidderID   string    `json:"bidder_id"`
	Amount     float64   `json:"amount"`
	AcceptedAt time.Time `json:"accepted_at"`
}

type SnapshotMessage struct {
	Type          string    `json:"type"`
	LotID         string    `json:"lot_id"`
	AuctionID     string    `json:"auction_id"`
	Status        string    `json:"status"`
	CurrentBid    float64   `json:"current_bid"`
	MinimumBid    float64   `json:"minimum_bid"`
	HighestBidder string    `json:"highest_bidder,omitempty"`
	EndTime       time.Time `json:"end_time"`
	ReserveMet    bool      `json:"reserve_met"`
	Version       uint64    `json:"version"`
	BidHistory    []bidView `json:"bid_history"`
}

// NewSnapshotMessage renders a committed lot snapshot for the wire. Clients
// apply it as the base state, then live events on top.
func NewSnapshotMessage(lot *domain.Lot) SnapshotMessage {
	history := make([]bidView, 0, len(lot.Bids))
	for _, bid := range lot.Bids {
		history = append(history, bidView{
			BidderID:   bid.BidderID,
			Amount:     bid.Amount,
			AcceptedAt: bid.AcceptedAt,
		})
	}

	return SnapshotMessage{
		Type:          "snapshot",
		LotID:         lot.ID,
		AuctionID:     lot.AuctionID,
		Status:        lot.Status.String(),
		CurrentBid:    lot.CurrentBid,
		MinimumBid:    lot.MinimumBid(),
		HighestBidder: lot.HighestBidder(),
		EndTime:       lot.EndTime,
		ReserveMet:    lot.ReserveMet(),
		Version:       lot.Version,
		BidHistory:    history,
	}
}

type BidResultMessage struct {
	Type       string    `json:"type"`
	LotID      string    `json:"lot_id"`
	Accepted   bool      `json:"accepted"`
	Reason     string    `json:"reason,omitempty"`
	CurrentBid float64   `json:"current_bid"`
	MinimumBid float64   `json:"minimum_bid"`
	EndTime    time.Time `json:"end_time"`
	Extended   bool      `json:"extended"`
	Version    uint64    `json:"version"`
}

func NewBidResultMessage(lotID string, result *domain.BidResult) BidResultMessage {
	return BidResultMessage{
		Type:       "bid_result",
		LotID:      lotID,
		Accepted:   result.Accepted,
		Reason:     string(result.Reason),
		CurrentBid: result.CurrentBid,
		MinimumBid: result.MinimumBid,
		EndTime:    result.EndTime,
		Extended:   result.Extended,
		Version:    result.Version,
	}
}
