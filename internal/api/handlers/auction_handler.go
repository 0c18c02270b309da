package handlers

import (
	"errors"
	"net/http"
	"time"

	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"

	"github.com/labstack/echo/v4"
)

// AuctionHandler is the control-plane surface: auction/lot creation and
// explicit lifecycle operations. Echo-based, runs in the auction service.
type AuctionHandler struct {
	lotMgr *services.LotManager
	log    logger.Logger
}

func NewAuctionHandler(lotMgr *services.LotManager, log logger.Logger) *AuctionHandler {
	return &AuctionHandler{
		lotMgr: lotMgr,
		log:    log,
	}
}

type CreateAuctionRequest struct {
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
}

type CreateAuctionResponse struct {
	AuctionID string    `json:"auction_id"`
	Title     string    `json:"title"`
	StartTime time.Time `json:"start_time"`
	Status    string    `json:"status"`
}

func (h *AuctionHandler) CreateAuction(c echo.Context) error {
	var req CreateAuctionRequest
	if err := c.Bind(&req); err != nil {
		h.log.Error("Failed to bind request", "error", err)
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.Title == "" {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Title required"})
	}
	if req.StartTime.Before(time.Now()) {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Start time must be in the future"})
	}

	auction, err := h.lotMgr.CreateAuction(c.Request().Context(), req.Title, req.StartTime)
	if err != nil {
		h.log.Error("Failed to create auction", "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to create auction"})
	}

	return c.JSON(http.StatusCreated, CreateAuctionResponse{
		AuctionID: auction.ID,
		Title:     auction.Title,
		StartTime: auction.StartTime,
		Status:    auction.Status.String(),
	})
}

type AddLotRequest struct {
	StartingPrice float64   `json:"starting_price"`
	Increment     float64   `json:"increment"`
	ReservePrice  float64   `json:"reserve_price"`
	EndTime       time.Time `json:"end_time"` // optional, staggered default when omitted
}

type AddLotResponse struct {
	LotID         string    `json:"lot_id"`
	AuctionID     string    `json:"auction_id"`
	Sequence      int       `json:"sequence"`
	StartingPrice float64   `json:"starting_price"`
	Increment     float64   `json:"increment"`
	EndTime       time.Time `json:"end_time"`
	Status        string    `json:"status"`
}

func (h *AuctionHandler) AddLot(c echo.Context) error {
	auctionID := c.Param("id")

	var req AddLotRequest
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Invalid request body"})
	}

	if req.StartingPrice <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Starting price must be positive"})
	}
	if req.Increment <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Increment must be positive"})
	}

	lot, err := h.lotMgr.AddLot(c.Request().Context(), auctionID, services.LotConfig{
		StartingPrice: req.StartingPrice,
		Increment:     req.Increment,
		ReservePrice:  req.ReservePrice,
		EndTime:       req.EndTime,
	})
	if err != nil {
		if errors.Is(err, domain.ErrAuctionNotFound) {
			return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
		}
		h.log.Error("Failed to add lot", "auction_id", auctionID, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Failed to add lot"})
	}

	return c.JSON(http.StatusCreated, AddLotResponse{
		LotID:         lot.ID,
		AuctionID:     lot.AuctionID,
		Sequence:      lot.Sequence,
		StartingPrice: lot.StartingPrice,
		Increment:     lot.Increment,
		EndTime:       lot.EndTime,
		Status:        lot.Status.String(),
	})
}

func (h *AuctionHandler) GetAuction(c echo.Context) error {
	auctionID := c.Param("id")

	auction, err := h.lotMgr.GetAuction(auctionID)
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Auction not found"})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"auction_id": auction.ID,
		"title":      auction.Title,
		"start_time": auction.StartTime,
		"status":     auction.Status.String(),
		"lot_ids":    auction.LotIDs,
	})
}

func (h *AuctionHandler) GetLot(c echo.Context) error {
	lot, err := h.lotMgr.Snapshot(c.Param("id"))
	if err != nil {
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
	}
	return c.JSON(http.StatusOK, lotResponse(lot))
}

func (h *AuctionHandler) OpenLot(c echo.Context) error {
	lotID := c.Param("id")

	if err := h.lotMgr.AdminOpenLot(c.Request().Context(), lotID); err != nil {
		return h.lotError(c, lotID, "open", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Lot opened"})
}

func (h *AuctionHandler) CloseLot(c echo.Context) error {
	lotID := c.Param("id")

	if err := h.lotMgr.AdminCloseLot(c.Request().Context(), lotID); err != nil {
		return h.lotError(c, lotID, "close", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Lot closed"})
}

func (h *AuctionHandler) ExtendLot(c echo.Context) error {
	lotID := c.Param("id")

	seconds := c.QueryParam("seconds")
	d, err := time.ParseDuration(seconds + "s")
	if err != nil || d <= 0 {
		return c.JSON(http.StatusBadRequest, map[string]string{"error": "Valid extension seconds required"})
	}

	if err := h.lotMgr.ExtendLot(c.Request().Context(), lotID, d); err != nil {
		return h.lotError(c, lotID, "extend", err)
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "Lot extended"})
}

func (h *AuctionHandler) lotError(c echo.Context, lotID, op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrLotNotFound):
		return c.JSON(http.StatusNotFound, map[string]string{"error": "Lot not found"})
	case errors.Is(err, domain.ErrLotClosed):
		return c.JSON(http.StatusConflict, map[string]string{"error": "Lot already closed"})
	case errors.Is(err, domain.ErrBusy):
		return c.JSON(http.StatusServiceUnavailable, map[string]string{"error": "Lot busy, retry"})
	default:
		h.log.Error("Lot operation failed", "lot_id", lotID, "op", op, "error", err)
		return c.JSON(http.StatusInternalServerError, map[string]string{"error": "Operation failed"})
	}
}

func lotResponse(lot *domain.Lot) map[string]interface{} {
	return map[string]interface{}{
		"lot_id":         lot.ID,
		"auction_id":     lot.AuctionID,
		"sequence":       lot.Sequence,
		"status":         lot.Status.String(),
		"starting_price": lot.StartingPrice,
		"increment":      lot.Increment,
		"current_bid":    lot.CurrentBid,
		"minimum_bid":    lot.MinimumBid(),
		"highest_bidder": lot.HighestBidder(),
		"end_time":       lot.EndTime,
		"reserve_met":    lot.ReserveMet(),
		"version":        lot.Version,
		"bid_count":      len(lot.Bids),
	}
}
