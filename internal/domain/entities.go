package domain

import (
	"time"
)

type Auction struct {
	ID        string
	Title     string
	StartTime time.Time
	LotIDs    []string // ordered; drives default staggered end times
	Status    AuctionStatus
	CreatedAt time.Time
	UpdatedAt time.Time
}

type AuctionStatus int

const (
	AuctionPending AuctionStatus = iota
	AuctionActive
	AuctionComplete
	AuctionCancelled
)

func (s AuctionStatus) String() string {
	switch s {
	case AuctionPending:
		return "pending"
	case AuctionActive:
		return "active"
	case AuctionComplete:
		return "complete"
	case AuctionCancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

func (a *Auction) Clone() *Auction {
	cp := *a
	cp.LotIDs = append([]string(nil), a.LotIDs...)
	return &cp
}

// Lot holds both the static configuration supplied at creation and the
// dynamic state mutated only through the coordinator's serialized path.
type Lot struct {
	ID        string
	AuctionID string
	Sequence  int

	StartingPrice float64
	Increment     float64
	ReservePrice  float64 // 0 means no reserve

	CurrentBid float64
	Bids       []Bid // append-only, strictly increasing in amount
	EndTime    time.Time
	Status     LotStatus
	Extensions int

	Version   uint64 // bumped on every commit
	CreatedAt time.Time
	UpdatedAt time.Time
}

type LotStatus int

const (
	LotPending LotStatus = iota
	LotOpen
	LotClosing
	LotClosed
)

func (s LotStatus) String() string {
	switch s {
	case LotPending:
		return "pending"
	case LotOpen:
		return "open"
	case LotClosing:
		return "closing"
	case LotClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// AcceptingBids reports whether the lifecycle state permits new bids.
// Closing behaves identically to open for bid acceptance.
func (s LotStatus) AcceptingBids() bool {
	return s == LotOpen || s == LotClosing
}

type Bid struct {
	BidderID   string
	Amount     float64
	AcceptedAt time.Time // server-assigned, never client-supplied
}

// HighestBidder returns the bidder holding the current high bid, or ""
// when no bid has been accepted yet.
func (l *Lot) HighestBidder() string {
	if len(l.Bids) == 0 {
		return ""
	}
	return l.Bids[len(l.Bids)-1].BidderID
}

// MinimumBid is the lowest acceptable next amount: exact equality is
// accepted, anything below is rejected.
func (l *Lot) MinimumBid() float64 {
	return l.CurrentBid + l.Increment
}

func (l *Lot) ReserveMet() bool {
	if l.ReservePrice <= 0 {
		return true
	}
	return len(l.Bids) > 0 && l.CurrentBid >= l.ReservePrice
}

func (l *Lot) Clone() *Lot {
	cp := *l
	cp.Bids = append([]Bid(nil), l.Bids...)
	return &cp
}

type ScheduledJob struct {
	ID        string
	LotID     string
	JobType   JobType
	RunAt     time.Time
	Status    JobStatus
	CreatedAt time.Time
}

type JobType string

const (
	JobOpenLot  JobType = "open_lot"
	JobCloseLot JobType = "close_lot"
)

type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobExecuted  JobStatus = "executed"
	JobCancelled JobStatus = "cancelled"
)
