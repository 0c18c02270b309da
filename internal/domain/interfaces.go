package domain

import (
	"context"
	"time"
)

// Repository interfaces
type AuctionRepository interface {
	CreateAuction(ctx context.Context, auction *Auction) error
	GetAuction(ctx context.Context, auctionID string) (*Auction, error)
	UpdateAuctionStatus(ctx context.Context, auctionID string, status AuctionStatus) error
	GetActiveAuctions(ctx context.Context) ([]*Auction, error)
}

type LotRepository interface {
	CreateLot(ctx context.Context, lot *Lot) error
	GetLot(ctx context.Context, lotID string) (*Lot, error)
	GetLotsForAuction(ctx context.Context, auctionID string) ([]*Lot, error)
	// UpdateLotState persists the dynamic fields only (current bid, end
	// time, status, version); static configuration is immutable.
	UpdateLotState(ctx context.Context, lot *Lot) error
}

type BidRepository interface {
	SaveBid(ctx context.Context, lotID string, bid *Bid) error
	GetBidHistory(ctx context.Context, lotID string) ([]*Bid, error)
}

type SchedulerRepository interface {
	CreateJob(ctx context.Context, job *ScheduledJob) error
	GetPendingJobs(ctx context.Context, before time.Time) ([]*ScheduledJob, error)
	UpdateJobStatus(ctx context.Context, jobID string, status JobStatus) error
	CancelCloseJobsForLot(ctx context.Context, lotID string) error
}

// Cache interfaces
type LotStateCache interface {
	SetLotStatus(ctx context.Context, lotID string, status LotStatus) error
	GetLotStatus(ctx context.Context, lotID string) (LotStatus, error)
}

// Event interfaces
type EventPublisher interface {
	PublishLotEvent(ctx context.Context, event *LotEvent) error
}

type EventSubscriber interface {
	SubscribeToLotEvents(ctx context.Context, handler EventHandler) error
}

type EventHandler func(event *LotEvent) error

// Leader election interface
type LeaderElection interface {
	BecomeLeader(ctx context.Context, instanceID string) (bool, error)
	IsLeader(ctx context.Context, instanceID string) (bool, error)
	ReleaseLeadership(ctx context.Context, instanceID string) error
}

// Scheduler interface
type LotScheduler interface {
	ScheduleLotOpen(ctx context.Context, lotID string, openTime time.Time) error
	ScheduleLotClose(ctx context.Context, lotID string, closeTime time.Time) error
	RescheduleLotClose(ctx context.Context, lotID string, newCloseTime time.Time) error
	CancelSchedule(ctx context.Context, lotID string) error
	Start(ctx context.Context) error
	Stop() error
}
