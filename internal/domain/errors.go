package domain

import (
	"errors"
	"time"
)

var (
	ErrLotNotFound     = errors.New("lot not found")
	ErrAuctionNotFound = errors.New("auction not found")
	// ErrBusy means the per-lot commit section could not be acquired within
	// the configured timeout. Clients retry with backoff; the server never
	// queues the request.
	ErrBusy = errors.New("lot commit section busy")
	// ErrLotClosed guards terminal-state mutations outside the bid path.
	ErrLotClosed = errors.New("lot already closed")
	// ErrNotLeader means a scheduled transition was attempted by a
	// non-leader instance. The job stays pending for the leader.
	ErrNotLeader = errors.New("instance is not the scheduler leader")
)

// RejectReason classifies expected business rejections. These are normal
// results, not errors.
type RejectReason string

const (
	RejectNone                 RejectReason = ""
	RejectBidTooLow            RejectReason = "bid_too_low"
	RejectAlreadyHighestBidder RejectReason = "already_highest_bidder"
	RejectLotNotAcceptingBids  RejectReason = "lot_not_accepting_bids"
)

// BidResult is what every submitter gets back: an explicit accept/reject
// with reason, plus the committed state their bid produced (when accepted).
type BidResult struct {
	Accepted   bool
	Reason     RejectReason
	CurrentBid float64
	MinimumBid float64
	EndTime    time.Time
	Extended   bool
	Version    uint64
}
