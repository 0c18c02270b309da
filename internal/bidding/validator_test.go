package bidding

import (
	"testing"
	"time"

	"auction-core/internal/domain"
)

func openLot(currentBid, increment float64) *domain.Lot {
	return &domain.Lot{
		ID:            "lot-1",
		AuctionID:     "auction-1",
		StartingPrice: currentBid,
		Increment:     increment,
		CurrentBid:    currentBid,
		Status:        domain.LotOpen,
		EndTime:       time.Now().Add(time.Hour),
	}
}

func TestValidateAcceptsMinimumBid(t *testing.T) {
	lot := openLot(100, 10)

	// Exact equality with current + increment is accepted
	if reason := Validate(lot, "bidder-a", 110); reason != domain.RejectNone {
		t.Errorf("bid at exact minimum rejected: %s", reason)
	}
	if reason := Validate(lot, "bidder-a", 109.99); reason != domain.RejectBidTooLow {
		t.Errorf("bid below minimum got %s, expected %s", reason, domain.RejectBidTooLow)
	}
}

func TestValidateRejectsSelfOutbid(t *testing.T) {
	lot := openLot(100, 10)
	lot.Bids = append(lot.Bids, domain.Bid{BidderID: "bidder-a", Amount: 110})
	lot.CurrentBid = 110

	if reason := Validate(lot, "bidder-a", 120); reason != domain.RejectAlreadyHighestBidder {
		t.Errorf("self-outbid got %s, expected %s", reason, domain.RejectAlreadyHighestBidder)
	}
	if reason := Validate(lot, "bidder-b", 120); reason != domain.RejectNone {
		t.Errorf("competing bid rejected: %s", reason)
	}
}

func TestValidateRejectsWhenNotAcceptingBids(t *testing.T) {
	for _, status := range []domain.LotStatus{domain.LotPending, domain.LotClosed} {
		lot := openLot(100, 10)
		lot.Status = status
		if reason := Validate(lot, "bidder-a", 110); reason != domain.RejectLotNotAcceptingBids {
			t.Errorf("status %s: got %s, expected %s", status, reason, domain.RejectLotNotAcceptingBids)
		}
	}

	// Closing behaves identically to open
	lot := openLot(100, 10)
	lot.Status = domain.LotClosing
	if reason := Validate(lot, "bidder-a", 110); reason != domain.RejectNone {
		t.Errorf("closing lot rejected bid: %s", reason)
	}
}

// Walks the canonical session: two bidders trading bids on a lot starting
// at 100 with increment 10.
func TestValidateBiddingSession(t *testing.T) {
	lot := openLot(100, 10)

	steps := []struct {
		bidder string
		amount float64
		want   domain.RejectReason
	}{
		{"bidder-a", 110, domain.RejectNone},
		{"bidder-a", 120, domain.RejectAlreadyHighestBidder},
		{"bidder-b", 115, domain.RejectBidTooLow},
		{"bidder-b", 120, domain.RejectNone},
	}

	for i, step := range steps {
		got := Validate(lot, step.bidder, step.amount)
		if got != step.want {
			t.Fatalf("step %d (%s bids %.2f): got %q, want %q",
				i, step.bidder, step.amount, got, step.want)
		}
		if got == domain.RejectNone {
			lot.Bids = append(lot.Bids, domain.Bid{BidderID: step.bidder, Amount: step.amount})
			lot.CurrentBid = step.amount
		}
	}

	if lot.CurrentBid != 120 {
		t.Errorf("final current bid = %.2f, want 120", lot.CurrentBid)
	}
	if lot.HighestBidder() != "bidder-b" {
		t.Errorf("final highest bidder = %q, want bidder-b", lot.HighestBidder())
	}
}

func TestValidateReserveDoesNotBlockBids(t *testing.T) {
	lot := openLot(100, 10)
	lot.ReservePrice = 500

	// Bids below reserve are still accepted; reserve only affects award
	if reason := Validate(lot, "bidder-a", 110); reason != domain.RejectNone {
		t.Errorf("bid below reserve rejected: %s", reason)
	}
	if lot.ReserveMet() {
		t.Error("reserve reported met with no qualifying bid")
	}
}
