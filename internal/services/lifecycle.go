package services

import (
	"context"
	"time"

	"auction-core/internal/bidding"
	"auction-core/internal/clock"
	"auction-core/internal/domain"
	"auction-core/internal/store"
	"auction-core/pkg/logger"
	"auction-core/pkg/utils"
)

type LifecycleConfig struct {
	// LotDuration and LotStagger produce each lot's default end time:
	// auction start + duration + sequence * stagger. An explicit end time
	// on creation overrides the default.
	LotDuration time.Duration
	LotStagger  time.Duration
}

// LotManager owns auction/lot creation and the scheduler-driven lifecycle
// transitions. All dynamic lot mutations are delegated to the coordinator's
// serialized path; the manager never writes to the store directly.
type LotManager struct {
	lotStore       *store.LotStore
	coordinator    *bidding.Coordinator
	auctionRepo    domain.AuctionRepository
	lotRepo        domain.LotRepository
	bidRepo        domain.BidRepository
	scheduler      domain.LotScheduler
	leaderElection domain.LeaderElection
	clock          clock.Clock
	cfg            LifecycleConfig
	instanceID     string
	log            logger.Logger
}

func NewLotManager(
	lotStore *store.LotStore,
	coordinator *bidding.Coordinator,
	auctionRepo domain.AuctionRepository,
	lotRepo domain.LotRepository,
	bidRepo domain.BidRepository,
	leaderElection domain.LeaderElection,
	clk clock.Clock,
	cfg LifecycleConfig,
	instanceID string,
	log logger.Logger,
) *LotManager {
	return &LotManager{
		lotStore:       lotStore,
		coordinator:    coordinator,
		auctionRepo:    auctionRepo,
		lotRepo:        lotRepo,
		bidRepo:        bidRepo,
		leaderElection: leaderElection,
		clock:          clk,
		cfg:            cfg,
		instanceID:     instanceID,
		log:            log,
	}
}

func (m *LotManager) SetScheduler(scheduler domain.LotScheduler) {
	m.scheduler = scheduler
}

// Restore loads active auctions, their lots, and bid histories from the
// durable store into the in-memory lot store on startup.
func (m *LotManager) Restore(ctx context.Context) error {
	if m.auctionRepo == nil || m.lotRepo == nil {
		return nil
	}

	auctions, err := m.auctionRepo.GetActiveAuctions(ctx)
	if err != nil {
		return err
	}

	for _, auction := range auctions {
		m.lotStore.PutAuction(auction)

		lots, err := m.lotRepo.GetLotsForAuction(ctx, auction.ID)
		if err != nil {
			return err
		}
		for _, lot := range lots {
			if m.bidRepo != nil {
				bids, err := m.bidRepo.GetBidHistory(ctx, lot.ID)
				if err != nil {
					return err
				}
				for _, bid := range bids {
					lot.Bids = append(lot.Bids, *bid)
				}
			}
			m.lotStore.PutLot(lot)
		}
		m.log.Info("Restored auction", "auction_id", auction.ID, "lots", len(lots))
	}

	return nil
}

func (m *LotManager) CreateAuction(ctx context.Context, title string, startTime time.Time) (*domain.Auction, error) {
	now := m.clock.Now()
	auction := &domain.Auction{
		ID:        utils.GenerateID("auction"),
		Title:     title,
		StartTime: startTime,
		Status:    domain.AuctionPending,
		CreatedAt: now,
		UpdatedAt: now,
	}

	if m.auctionRepo != nil {
		if err := m.auctionRepo.CreateAuction(ctx, auction); err != nil {
			return nil, err
		}
	}
	m.lotStore.PutAuction(auction)

	m.log.Info("Auction created", "auction_id", auction.ID, "title", title)
	return auction, nil
}

type LotConfig struct {
	StartingPrice float64
	Increment     float64
	ReservePrice  float64
	EndTime       time.Time // zero means use the staggered default
}

// AddLot registers a lot under the auction, schedules its open at auction
// start and its close at the end time. The lot's current bid begins at the
// starting price, so the first acceptable bid is starting price + increment.
func (m *LotManager) AddLot(ctx context.Context, auctionID string, cfg LotConfig) (*domain.Lot, error) {
	auction, err := m.lotStore.Auction(auctionID)
	if err != nil {
		return nil, err
	}

	sequence := len(auction.LotIDs)
	endTime := cfg.EndTime
	if endTime.IsZero() {
		endTime = auction.StartTime.
			Add(m.cfg.LotDuration).
			Add(time.Duration(sequence) * m.cfg.LotStagger)
	}

	now := m.clock.Now()
	lot := &domain.Lot{
		ID:            utils.GenerateID("lot"),
		AuctionID:     auctionID,
		Sequence:      sequence,
		StartingPrice: cfg.StartingPrice,
		Increment:     cfg.Increment,
		ReservePrice:  cfg.ReservePrice,
		CurrentBid:    cfg.StartingPrice,
		EndTime:       endTime,
		Status:        domain.LotPending,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if m.lotRepo != nil {
		if err := m.lotRepo.CreateLot(ctx, lot); err != nil {
			return nil, err
		}
	}
	m.lotStore.PutLot(lot)

	if m.scheduler != nil {
		if err := m.scheduler.ScheduleLotOpen(ctx, lot.ID, auction.StartTime); err != nil {
			return nil, err
		}
		if err := m.scheduler.ScheduleLotClose(ctx, lot.ID, endTime); err != nil {
			return nil, err
		}
	}

	m.log.Info("Lot added", "lot_id", lot.ID, "auction_id", auctionID,
		"sequence", sequence, "end_time", endTime)
	return lot, nil
}

// OpenLot is the scheduler-driven open transition. Leader-gated: a
// non-leader returns ErrNotLeader so the job stays pending.
func (m *LotManager) OpenLot(ctx context.Context, lotID string) error {
	if err := m.requireLeadership(ctx); err != nil {
		return err
	}

	m.log.Info("Opening lot", "lot_id", lotID)
	if err := m.coordinator.OpenLot(ctx, lotID); err != nil {
		return err
	}
	return m.markAuctionActive(ctx, lotID)
}

// CloseLot is the scheduler-driven close; leader-gated and idempotent.
func (m *LotManager) CloseLot(ctx context.Context, lotID string) error {
	if err := m.requireLeadership(ctx); err != nil {
		return err
	}
	return m.closeLot(ctx, lotID)
}

func (m *LotManager) requireLeadership(ctx context.Context) error {
	isLeader, err := m.leaderElection.IsLeader(ctx, m.instanceID)
	if err != nil {
		return err
	}
	if !isLeader {
		return domain.ErrNotLeader
	}
	return nil
}

// AdminCloseLot is the explicit operator close: not leader-gated, takes
// effect immediately through the serialized path.
func (m *LotManager) AdminCloseLot(ctx context.Context, lotID string) error {
	m.log.Info("Admin close requested", "lot_id", lotID)
	return m.closeLot(ctx, lotID)
}

// AdminOpenLot opens a lot ahead of its scheduled start.
func (m *LotManager) AdminOpenLot(ctx context.Context, lotID string) error {
	m.log.Info("Admin open requested", "lot_id", lotID)
	if err := m.coordinator.OpenLot(ctx, lotID); err != nil {
		return err
	}
	return m.markAuctionActive(ctx, lotID)
}

// ExtendLot applies a manual extension through the coordinator and moves
// the scheduled close.
func (m *LotManager) ExtendLot(ctx context.Context, lotID string, d time.Duration) error {
	return m.coordinator.ExtendLot(ctx, lotID, d)
}

// Snapshot is the authoritative consistent read used by reconnecting or
// behind subscribers.
func (m *LotManager) Snapshot(lotID string) (*domain.Lot, error) {
	return m.lotStore.Snapshot(lotID)
}

func (m *LotManager) GetAuction(auctionID string) (*domain.Auction, error) {
	return m.lotStore.Auction(auctionID)
}

// Tick re-evaluates every lot's timer; lapsed lots close. Idempotent.
func (m *LotManager) Tick(ctx context.Context) {
	for _, lotID := range m.lotStore.LotIDs() {
		if err := m.coordinator.EvaluateLot(ctx, lotID); err != nil {
			m.log.Error("Failed to evaluate lot", "lot_id", lotID, "error", err)
		}
	}
	// Sweep for auctions whose last lot just closed
	m.sweepCompletedAuctions(ctx)
}

func (m *LotManager) closeLot(ctx context.Context, lotID string) error {
	if err := m.coordinator.CloseLot(ctx, lotID); err != nil {
		return err
	}
	if m.scheduler != nil {
		if err := m.scheduler.CancelSchedule(ctx, lotID); err != nil {
			m.log.Error("Failed to cancel schedule", "lot_id", lotID, "error", err)
		}
	}

	lot, err := m.lotStore.Snapshot(lotID)
	if err != nil {
		return err
	}
	if !lot.ReserveMet() {
		m.log.Info("Lot closed below reserve, not awarded",
			"lot_id", lotID, "current_bid", lot.CurrentBid, "reserve", lot.ReservePrice)
	}
	return m.completeAuctionIfDone(ctx, lot.AuctionID)
}

// completeAuctionIfDone marks an auction complete once every one of its
// lots is closed.
func (m *LotManager) completeAuctionIfDone(ctx context.Context, auctionID string) error {
	if !m.lotStore.AllLotsClosed(auctionID) {
		return nil
	}

	auction, err := m.lotStore.Auction(auctionID)
	if err != nil {
		return err
	}
	if auction.Status == domain.AuctionComplete {
		return nil
	}

	auction.Status = domain.AuctionComplete
	auction.UpdatedAt = m.clock.Now()
	m.lotStore.PutAuction(auction)

	if m.auctionRepo != nil {
		if err := m.auctionRepo.UpdateAuctionStatus(ctx, auctionID, domain.AuctionComplete); err != nil {
			return err
		}
	}

	m.log.Info("Auction complete", "auction_id", auctionID)
	return nil
}

func (m *LotManager) markAuctionActive(ctx context.Context, lotID string) error {
	lot, err := m.lotStore.Snapshot(lotID)
	if err != nil {
		return err
	}
	auction, err := m.lotStore.Auction(lot.AuctionID)
	if err != nil {
		return err
	}
	if auction.Status != domain.AuctionPending {
		return nil
	}

	auction.Status = domain.AuctionActive
	auction.UpdatedAt = m.clock.Now()
	m.lotStore.PutAuction(auction)

	if m.auctionRepo != nil {
		return m.auctionRepo.UpdateAuctionStatus(ctx, lot.AuctionID, domain.AuctionActive)
	}
	return nil
}

func (m *LotManager) sweepCompletedAuctions(ctx context.Context) {
	auctions, err := m.activeAuctionIDs()
	if err != nil {
		return
	}
	for _, auctionID := range auctions {
		if err := m.completeAuctionIfDone(ctx, auctionID); err != nil {
			m.log.Error("Failed to complete auction", "auction_id", auctionID, "error", err)
		}
	}
}

func (m *LotManager) activeAuctionIDs() ([]string, error) {
	seen := make(map[string]struct{})
	var ids []string
	for _, lotID := range m.lotStore.LotIDs() {
		lot, err := m.lotStore.Snapshot(lotID)
		if err != nil {
			continue
		}
		if _, ok := seen[lot.AuctionID]; !ok {
			seen[lot.AuctionID] = struct{}{}
			ids = append(ids, lot.AuctionID)
		}
	}
	return ids, nil
}
