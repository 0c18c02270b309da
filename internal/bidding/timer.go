package bidding

import (
	"time"

	"auction-core/internal/clock"
	"auction-core/internal/domain"
)

type TimerConfig struct {
	// ExtensionWindow is both the sniper-protection trigger (a bid accepted
	// within this window before the end time extends the lot) and the
	// guaranteed additional time each late bid buys.
	ExtensionWindow time.Duration
	// ClosingThreshold is when open flips to closing. Informational only;
	// closing lots accept bids identically to open ones.
	ClosingThreshold time.Duration
	// MaxExtensions caps sniper extensions per lot; 0 means unbounded.
	MaxExtensions int
}

// TimerEngine drives the per-lot lifecycle state machine
// (pending -> open -> closing -> closed) and applies the sniper-protection
// extension rule. It mutates lot copies handed to it by the coordinator;
// it never touches the store directly.
type TimerEngine struct {
	cfg   TimerConfig
	clock clock.Clock
}

func NewTimerEngine(cfg TimerConfig, clk clock.Clock) *TimerEngine {
	return &TimerEngine{cfg: cfg, clock: clk}
}

// Open transitions pending -> open. Any other starting state is an error;
// closed is terminal.
func (e *TimerEngine) Open(lot *domain.Lot) error {
	if lot.Status == domain.LotClosed {
		return domain.ErrLotClosed
	}
	if lot.Status != domain.LotPending {
		return nil // already open or closing, idempotent
	}
	lot.Status = domain.LotOpen
	return nil
}

// Close forces the terminal transition (admin close or end time reached).
// Returns false if the lot was already closed.
func (e *TimerEngine) Close(lot *domain.Lot) bool {
	if lot.Status == domain.LotClosed {
		return false
	}
	lot.Status = domain.LotClosed
	return true
}

// Evaluate re-derives the lifecycle state from the clock. Idempotent: a lot
// already closed stays closed, a lapsed lot transitions to closed exactly
// once. Returns true when the call changed the status.
func (e *TimerEngine) Evaluate(lot *domain.Lot) bool {
	if lot.Status == domain.LotClosed || lot.Status == domain.LotPending {
		return false
	}

	now := e.clock.Now()
	if !now.Before(lot.EndTime) {
		lot.Status = domain.LotClosed
		return true
	}
	if lot.Status == domain.LotOpen && lot.EndTime.Sub(now) <= e.cfg.ClosingThreshold {
		lot.Status = domain.LotClosing
		return true
	}
	return false
}

// ExtendOnBid applies sniper protection for a bid accepted at acceptedAt.
// When the acceptance falls within the trailing extension window, the end
// time advances to max(old end, acceptedAt + window). Measured from the
// acceptance time, so every late bid buys at least the full window. The
// end time never moves backward. Returns true when the end time moved.
func (e *TimerEngine) ExtendOnBid(lot *domain.Lot, acceptedAt time.Time) bool {
	if lot.Status == domain.LotClosed {
		return false
	}
	if acceptedAt.Before(lot.EndTime.Add(-e.cfg.ExtensionWindow)) {
		return false
	}
	if e.cfg.MaxExtensions > 0 && lot.Extensions >= e.cfg.MaxExtensions {
		return false
	}

	newEnd := acceptedAt.Add(e.cfg.ExtensionWindow)
	if !newEnd.After(lot.EndTime) {
		return false
	}
	lot.EndTime = newEnd
	lot.Extensions++
	return true
}
