package websocket

import (
	"context"
	"errors"
	"net/http"
	"time"

	"auction-core/internal/bidding"
	"auction-core/internal/broadcast"
	"auction-core/internal/domain"
	"auction-core/internal/services"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all origins in development
	},
}

const (
	readDeadline = 60 * time.Second
	pingInterval = 30 * time.Second
)

// Handler upgrades connections, registers interests, and bridges the
// fan-out mailbox to the socket. Bid submissions ride the same socket and
// get a direct reply; broadcasts arrive via the write pump.
type Handler struct {
	coordinator *bidding.Coordinator
	lotMgr      *services.LotManager
	registry    *broadcast.Registry
	fanout      *broadcast.Fanout
	log         logger.Logger
}

func NewHandler(coordinator *bidding.Coordinator, lotMgr *services.LotManager,
	registry *broadcast.Registry, fanout *broadcast.Fanout, log logger.Logger) *Handler {
	return &Handler{
		coordinator: coordinator,
		lotMgr:      lotMgr,
		registry:    registry,
		fanout:      fanout,
		log:         log,
	}
}

type inboundMessage struct {
	Type      string  `json:"type"`
	LotID     string  `json:"lot_id,omitempty"`
	AuctionID string  `json:"auction_id,omitempty"`
	Amount    float64 `json:"amount,omitempty"`
}

func (h *Handler) HandleConnection(w http.ResponseWriter, r *http.Request) {
	// Identity is established upstream; the engine only needs the trusted
	// bidder id.
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		http.Error(w, "user_id required", http.StatusBadRequest)
		return
	}

	wsConn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Error("Failed to upgrade connection", "error", err)
		return
	}

	connID := utils.GenerateID("conn")
	conn := NewConnection(connID, userID, wsConn)

	sub := h.fanout.Attach(connID)

	h.log.Info("Connection established", "conn_id", connID, "user_id", userID)

	// The request context is cancelled when this handler returns, which
	// happens immediately after the pumps start. The connection lifetime is
	// bounded by the read pump instead.
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		h.writePump(ctx, conn, sub)
	}()

	go func() {
		defer func() {
			cancel()
			h.fanout.Detach(connID)
			conn.Close()
			h.log.Info("Connection closed", "conn_id", connID, "user_id", userID)
		}()
		h.readPump(ctx, conn)
	}()
}

func (h *Handler) writePump(ctx context.Context, conn *Connection, sub *broadcast.Subscriber) {
	go func() {
		ticker := time.NewTicker(pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				if err := conn.Ping(); err != nil {
					return
				}
			case <-ctx.Done():
				return
			}
		}
	}()

	for {
		event, behind, ok := sub.Next(ctx)
		if !ok {
			return
		}
		if behind {
			// Deliveries were dropped; tell the client to re-snapshot.
			if err := conn.SendJSON(map[string]string{"type": "behind"}); err != nil {
				return
			}
		}
		if err := conn.SendJSON(event); err != nil {
			return
		}
	}
}

func (h *Handler) readPump(ctx context.Context, conn *Connection) {
	conn.SetReadDeadline(time.Now().Add(readDeadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(readDeadline))
	})

	for {
		var msg inboundMessage
		if err := conn.ReadJSON(&msg); err != nil {
			return
		}

		switch msg.Type {
		case "subscribe":
			h.handleSubscribe(conn, msg)
		case "unsubscribe":
			h.handleUnsubscribe(conn, msg)
		case "place_bid":
			h.handleBid(ctx, conn, msg)
		case "snapshot":
			h.sendSnapshot(conn, msg.LotID)
		case "ping":
			conn.SendJSON(map[string]string{"type": "pong"})
		}
	}
}

// handleSubscribe registers the interest and immediately sends the current
// snapshot, so the client has a consistent base before live events apply.
func (h *Handler) handleSubscribe(conn *Connection, msg inboundMessage) {
	switch {
	case msg.LotID != "":
		h.registry.SubscribeLot(conn.ID, msg.LotID)
		h.sendSnapshot(conn, msg.LotID)
	case msg.AuctionID != "":
		h.registry.SubscribeAuction(conn.ID, msg.AuctionID)
		auction, err := h.lotMgr.GetAuction(msg.AuctionID)
		if err != nil {
			conn.SendJSON(map[string]string{"type": "error", "message": "auction not found"})
			return
		}
		for _, lotID := range auction.LotIDs {
			h.sendSnapshot(conn, lotID)
		}
	default:
		conn.SendJSON(map[string]string{"type": "error", "message": "lot_id or auction_id required"})
	}
}

func (h *Handler) handleUnsubscribe(conn *Connection, msg inboundMessage) {
	if msg.LotID != "" {
		h.registry.UnsubscribeLot(conn.ID, msg.LotID)
	}
	if msg.AuctionID != "" {
		h.registry.UnsubscribeAuction(conn.ID, msg.AuctionID)
	}
}

func (h *Handler) handleBid(ctx context.Context, conn *Connection, msg inboundMessage) {
	if msg.LotID == "" || msg.Amount <= 0 {
		conn.SendJSON(map[string]string{"type": "error", "message": "lot_id and positive amount required"})
		return
	}

	result, err := h.coordinator.SubmitBid(ctx, msg.LotID, conn.UserID, msg.Amount)
	if err != nil {
		conn.SendJSON(map[string]interface{}{
			"type":    "bid_result",
			"lot_id":  msg.LotID,
			"error":   errorCode(err),
			"message": err.Error(),
		})
		return
	}

	conn.SendJSON(NewBidResultMessage(msg.LotID, result))
}

func (h *Handler) sendSnapshot(conn *Connection, lotID string) {
	lot, err := h.lotMgr.Snapshot(lotID)
	if err != nil {
		conn.SendJSON(map[string]string{"type": "error", "message": "lot not found"})
		return
	}
	conn.SendJSON(NewSnapshotMessage(lot))
}

func errorCode(err error) string {
	switch {
	case errors.Is(err, domain.ErrBusy):
		return "busy"
	case errors.Is(err, domain.ErrLotNotFound):
		return "lot_not_found"
	default:
		return "internal"
	}
}
