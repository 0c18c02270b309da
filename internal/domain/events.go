package domain

import "time"

type LotEventType string

const (
	EventLotOpened     LotEventType = "lot_opened"
	EventBidAccepted   LotEventType = "bid_accepted"
	EventTimerExtended LotEventType = "timer_extended"
	EventLotClosed     LotEventType = "lot_closed"
)

// Critical events are never dropped by a subscriber's overflow policy.
func (t LotEventType) Critical() bool {
	return t == EventLotClosed
}

// LotEvent is the one broadcast unit: emitted in commit order per lot,
// both to local subscribers and over the cross-instance relay channel.
type LotEvent struct {
	Type      LotEventType `json:"type"`
	LotID     string       `json:"lot_id"`
	AuctionID string       `json:"auction_id"`
	BidderID  string       `json:"bidder_id,omitempty"`
	Amount    float64      `json:"amount,omitempty"`
	EndTime   time.Time    `json:"end_time"`
	Version   uint64       `json:"version"`
	Origin    string       `json:"origin"` // emitting instance id
	Timestamp time.Time    `json:"timestamp"`
}

// EventSink receives committed events from the coordinator. Publish must
// never block on subscriber delivery.
type EventSink interface {
	Publish(event *LotEvent)
}
