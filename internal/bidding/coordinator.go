package bidding

import (
	"context"
	"errors"
	"sync"
	"time"

	"auction-core/internal/clock"
	"auction-core/internal/domain"
	"auction-core/internal/store"
	"auction-core/pkg/logger"
)

// Coordinator serializes all mutations of a lot behind a per-lot commit
// section. At most one bid is evaluated and committed per lot at any
// instant; different lots proceed in parallel. All mutations (bids, timer
// transitions, admin closes) go through it. Nothing else writes to the
// store.
type Coordinator struct {
	store      *store.LotStore
	timer      *TimerEngine
	clock      clock.Clock
	sink       domain.EventSink
	instanceID string
	log        logger.Logger

	// CommitTimeout bounds how long a submission waits for the section
	// before failing with ErrBusy.
	commitTimeout time.Duration

	lotRepo    domain.LotRepository
	bidRepo    domain.BidRepository
	stateCache domain.LotStateCache
	scheduler  domain.LotScheduler

	mu       sync.Mutex
	sections map[string]chan struct{}
}

func NewCoordinator(
	lotStore *store.LotStore,
	timer *TimerEngine,
	clk clock.Clock,
	sink domain.EventSink,
	commitTimeout time.Duration,
	instanceID string,
	log logger.Logger,
) *Coordinator {
	return &Coordinator{
		store:         lotStore,
		timer:         timer,
		clock:         clk,
		sink:          sink,
		commitTimeout: commitTimeout,
		instanceID:    instanceID,
		log:           log,
		sections:      make(map[string]chan struct{}),
	}
}

// SetPersistence wires the durable stores invoked inside the commit
// section. Optional: the coordinator runs fully in-memory without them.
func (c *Coordinator) SetPersistence(lotRepo domain.LotRepository, bidRepo domain.BidRepository, stateCache domain.LotStateCache) {
	c.lotRepo = lotRepo
	c.bidRepo = bidRepo
	c.stateCache = stateCache
}

// SetScheduler lets sniper extensions reschedule the lot's pending close
// job.
func (c *Coordinator) SetScheduler(scheduler domain.LotScheduler) {
	c.scheduler = scheduler
}

// SubmitBid evaluates and commits one bid. Business rejections come back in
// the result, not as errors; ErrBusy and ErrLotNotFound are the error
// paths.
func (c *Coordinator) SubmitBid(ctx context.Context, lotID, bidderID string, amount float64) (*domain.BidResult, error) {
	release, err := c.acquire(ctx, lotID)
	if err != nil {
		return nil, err
	}
	defer release()

	// Re-read the latest committed state inside the section; a snapshot
	// taken before acquisition could be stale.
	lot, err := c.store.Snapshot(lotID)
	if err != nil {
		return nil, err
	}

	// Lazily apply any lapsed timer transition before validating, so a bid
	// arriving after the end time is rejected even if no tick ran yet.
	if c.timer.Evaluate(lot) {
		if err := c.commitTransition(ctx, lot); err != nil {
			return nil, err
		}
	}

	if reason := Validate(lot, bidderID, amount); reason != domain.RejectNone {
		return &domain.BidResult{
			Reason:     reason,
			CurrentBid: lot.CurrentBid,
			MinimumBid: lot.MinimumBid(),
			EndTime:    lot.EndTime,
			Version:    lot.Version,
		}, nil
	}

	acceptedAt := c.clock.Now()
	bid := domain.Bid{BidderID: bidderID, Amount: amount, AcceptedAt: acceptedAt}
	lot.Bids = append(lot.Bids, bid)
	lot.CurrentBid = amount
	lot.UpdatedAt = acceptedAt

	extended := c.timer.ExtendOnBid(lot, acceptedAt)
	c.timer.Evaluate(lot) // extension may have pulled the lot out of the closing window check

	version, err := c.store.Commit(lot)
	if err != nil {
		return nil, err
	}
	lot.Version = version

	c.persistLot(ctx, lot)
	if c.bidRepo != nil {
		if err := c.bidRepo.SaveBid(ctx, lot.ID, &bid); err != nil {
			c.log.Error("Failed to persist bid", "lot_id", lot.ID, "error", err)
		}
	}

	// Emit before releasing the section so per-lot broadcast order matches
	// commit order exactly.
	c.publish(lot, domain.EventBidAccepted, bidderID, amount)
	if extended {
		c.publish(lot, domain.EventTimerExtended, bidderID, amount)
		if c.scheduler != nil {
			newEnd := lot.EndTime
			go func() {
				if err := c.scheduler.RescheduleLotClose(context.Background(), lotID, newEnd); err != nil {
					c.log.Error("Failed to reschedule lot close", "lot_id", lotID, "error", err)
				}
			}()
		}
	}

	return &domain.BidResult{
		Accepted:   true,
		CurrentBid: lot.CurrentBid,
		MinimumBid: lot.MinimumBid(),
		EndTime:    lot.EndTime,
		Extended:   extended,
		Version:    version,
	}, nil
}

// OpenLot transitions a pending lot to open and announces it.
func (c *Coordinator) OpenLot(ctx context.Context, lotID string) error {
	release, err := c.acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := c.store.Snapshot(lotID)
	if err != nil {
		return err
	}
	if lot.Status != domain.LotPending {
		if lot.Status == domain.LotClosed {
			return domain.ErrLotClosed
		}
		return nil
	}
	if err := c.timer.Open(lot); err != nil {
		return err
	}
	lot.UpdatedAt = c.clock.Now()

	version, err := c.store.Commit(lot)
	if err != nil {
		return err
	}
	lot.Version = version

	c.persistLot(ctx, lot)
	c.publish(lot, domain.EventLotOpened, "", 0)
	return nil
}

// CloseLot forces the terminal transition (admin close, or scheduler when
// the end time is reached). Idempotent: closing a closed lot is a no-op.
func (c *Coordinator) CloseLot(ctx context.Context, lotID string) error {
	release, err := c.acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := c.store.Snapshot(lotID)
	if err != nil {
		return err
	}
	if !c.timer.Close(lot) {
		return nil
	}
	lot.UpdatedAt = c.clock.Now()

	version, err := c.store.Commit(lot)
	if err != nil {
		return err
	}
	lot.Version = version

	c.persistLot(ctx, lot)
	c.publish(lot, domain.EventLotClosed, "", 0)
	return nil
}

// EvaluateLot is the periodic tick: re-derives lifecycle state from the
// clock and commits any transition. Re-evaluating an already-closed lot is
// a no-op.
func (c *Coordinator) EvaluateLot(ctx context.Context, lotID string) error {
	release, err := c.acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := c.store.Snapshot(lotID)
	if err != nil {
		return err
	}
	if !c.timer.Evaluate(lot) {
		return nil
	}
	return c.commitTransition(ctx, lot)
}

// ExtendLot is the explicit admin extension: end time moves to
// max(current end, now + d). Never moves backward.
func (c *Coordinator) ExtendLot(ctx context.Context, lotID string, d time.Duration) error {
	release, err := c.acquire(ctx, lotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := c.store.Snapshot(lotID)
	if err != nil {
		return err
	}
	if lot.Status == domain.LotClosed {
		return domain.ErrLotClosed
	}

	newEnd := c.clock.Now().Add(d)
	if !newEnd.After(lot.EndTime) {
		return nil
	}
	lot.EndTime = newEnd
	lot.UpdatedAt = c.clock.Now()

	version, err := c.store.Commit(lot)
	if err != nil {
		return err
	}
	lot.Version = version

	c.persistLot(ctx, lot)
	c.publish(lot, domain.EventTimerExtended, "", 0)
	if c.scheduler != nil {
		if err := c.scheduler.RescheduleLotClose(ctx, lotID, newEnd); err != nil {
			c.log.Error("Failed to reschedule lot close", "lot_id", lotID, "error", err)
		}
	}
	return nil
}

// ApplyRemoteEvent folds an event committed by another instance into the
// local store, through the same per-lot section as local commits. A lot
// unknown locally is loaded from the durable store first. Remote events are
// not re-published and not re-persisted; the origin instance did both.
func (c *Coordinator) ApplyRemoteEvent(ctx context.Context, event *domain.LotEvent) error {
	release, err := c.acquire(ctx, event.LotID)
	if err != nil {
		return err
	}
	defer release()

	lot, err := c.store.Snapshot(event.LotID)
	if errors.Is(err, domain.ErrLotNotFound) {
		lot, err = c.loadLot(ctx, event.LotID)
	}
	if err != nil {
		return err
	}

	changed := false
	switch event.Type {
	case domain.EventLotOpened:
		if lot.Status == domain.LotPending {
			lot.Status = domain.LotOpen
			changed = true
		}
	case domain.EventLotClosed:
		if lot.Status != domain.LotClosed {
			lot.Status = domain.LotClosed
			changed = true
		}
	case domain.EventBidAccepted:
		if event.Amount > lot.CurrentBid {
			lot.Bids = append(lot.Bids, domain.Bid{
				BidderID:   event.BidderID,
				Amount:     event.Amount,
				AcceptedAt: event.Timestamp,
			})
			lot.CurrentBid = event.Amount
			changed = true
		}
		if event.EndTime.After(lot.EndTime) {
			lot.EndTime = event.EndTime
			changed = true
		}
	case domain.EventTimerExtended:
		if event.EndTime.After(lot.EndTime) {
			lot.EndTime = event.EndTime
			changed = true
		}
	}
	if !changed {
		return nil
	}

	lot.UpdatedAt = c.clock.Now()
	version, err := c.store.Commit(lot)
	if err != nil {
		return err
	}
	lot.Version = version
	return nil
}

// loadLot pulls a lot created after startup from the durable store into the
// local one. Caller holds the lot's section.
func (c *Coordinator) loadLot(ctx context.Context, lotID string) (*domain.Lot, error) {
	if c.lotRepo == nil {
		return nil, domain.ErrLotNotFound
	}
	lot, err := c.lotRepo.GetLot(ctx, lotID)
	if err != nil {
		return nil, err
	}
	if c.bidRepo != nil {
		bids, err := c.bidRepo.GetBidHistory(ctx, lotID)
		if err != nil {
			return nil, err
		}
		for _, bid := range bids {
			lot.Bids = append(lot.Bids, *bid)
		}
	}
	c.store.PutLot(lot)
	return c.store.Snapshot(lotID)
}

// commitTransition commits a timer-driven status change and announces a
// close when the transition was terminal. open -> closing commits silently;
// it is informational and carries no event.
func (c *Coordinator) commitTransition(ctx context.Context, lot *domain.Lot) error {
	version, err := c.store.Commit(lot)
	if err != nil {
		return err
	}
	lot.Version = version

	c.persistLot(ctx, lot)
	if lot.Status == domain.LotClosed {
		c.publish(lot, domain.EventLotClosed, "", 0)
	}
	return nil
}

func (c *Coordinator) persistLot(ctx context.Context, lot *domain.Lot) {
	if c.lotRepo != nil {
		if err := c.lotRepo.UpdateLotState(ctx, lot); err != nil {
			c.log.Error("Failed to persist lot state", "lot_id", lot.ID, "error", err)
		}
	}
	if c.stateCache != nil {
		if err := c.stateCache.SetLotStatus(ctx, lot.ID, lot.Status); err != nil {
			c.log.Error("Failed to cache lot status", "lot_id", lot.ID, "error", err)
		}
	}
}

func (c *Coordinator) publish(lot *domain.Lot, eventType domain.LotEventType, bidderID string, amount float64) {
	if c.sink == nil {
		return
	}
	c.sink.Publish(&domain.LotEvent{
		Type:      eventType,
		LotID:     lot.ID,
		AuctionID: lot.AuctionID,
		BidderID:  bidderID,
		Amount:    amount,
		EndTime:   lot.EndTime,
		Version:   lot.Version,
		Origin:    c.instanceID,
		Timestamp: c.clock.Now(),
	})
}

func (c *Coordinator) section(lotID string) chan struct{} {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sections[lotID]
	if !ok {
		s = make(chan struct{}, 1)
		c.sections[lotID] = s
	}
	return s
}

// acquire takes the lot's exclusive commit section, waiting at most the
// configured timeout. Submissions that cannot get in fail with ErrBusy
// rather than queue unboundedly; bidders retry client-side.
func (c *Coordinator) acquire(ctx context.Context, lotID string) (func(), error) {
	s := c.section(lotID)
	t := time.NewTimer(c.commitTimeout)
	defer t.Stop()

	select {
	case s <- struct{}{}:
		return func() { <-s }, nil
	case <-t.C:
		return nil, domain.ErrBusy
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}
