package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"auction-core/internal/bidding"
	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/gorilla/mux"
)

// BidHandler is the REST bid path on the bidding service: submit a bid,
// read a snapshot. The WebSocket path shares the same coordinator.
type BidHandler struct {
	coordinator *bidding.Coordinator
	lotMgr      *services.LotManager
	log         logger.Logger
}

func NewBidHandler(coordinator *bidding.Coordinator, lotMgr *services.LotManager, log logger.Logger) *BidHandler {
	return &BidHandler{
		coordinator: coordinator,
		lotMgr:      lotMgr,
		log:         log,
	}
}

type SubmitBidRequest struct {
	BidderID string  `json:"bidder_id"`
	Amount   float64 `json:"amount"`
}

type SubmitBidResponse struct {
	Accepted   bool    `json:"accepted"`
	Reason     string  `json:"reason,omitempty"`
	CurrentBid float64 `json:"current_bid"`
	MinimumBid float64 `json:"minimum_bid"`
	EndTime    string  `json:"end_time"`
	Extended   bool    `json:"extended"`
	Version    uint64  `json:"version"`
}

func (h *BidHandler) SubmitBid(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lotID := vars["id"]

	var req SubmitBidRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.BidderID == "" || req.Amount <= 0 {
		http.Error(w, "bidder_id and positive amount required", http.StatusBadRequest)
		return
	}

	result, err := h.coordinator.SubmitBid(r.Context(), lotID, req.BidderID, req.Amount)
	if err != nil {
		switch {
		case errors.Is(err, domain.ErrLotNotFound):
			http.Error(w, "Lot not found", http.StatusNotFound)
		case errors.Is(err, domain.ErrBusy):
			// Bounded contention: client retries with backoff
			http.Error(w, "Lot busy, retry", http.StatusServiceUnavailable)
		default:
			h.log.Error("Bid submission failed", "lot_id", lotID, "error", err)
			http.Error(w, "Bid submission failed", http.StatusInternalServerError)
		}
		return
	}

	writeJSON(w, http.StatusOK, SubmitBidResponse{
		Accepted:   result.Accepted,
		Reason:     string(result.Reason),
		CurrentBid: result.CurrentBid,
		MinimumBid: result.MinimumBid,
		EndTime:    result.EndTime.Format(timeFormat),
		Extended:   result.Extended,
		Version:    result.Version,
	})
}

func (h *BidHandler) GetSnapshot(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	lotID := vars["id"]

	lot, err := h.lotMgr.Snapshot(lotID)
	if err != nil {
		http.Error(w, "Lot not found", http.StatusNotFound)
		return
	}

	writeJSON(w, http.StatusOK, lotResponse(lot))
}

const timeFormat = "2006-01-02T15:04:05.000Z07:00"

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
