package broadcast

import (
	"context"
	"sync"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// Subscriber is one connection's outbound mailbox: a bounded queue drained
// by that connection's write pump. Publishing never blocks on a slow
// consumer. On overflow the oldest undelivered non-critical event is
// dropped and the subscriber is marked behind, so the client knows to
// request a fresh snapshot.
type Subscriber struct {
	ID    string
	limit int

	mu     sync.Mutex
	queue  []*domain.LotEvent
	behind bool
	closed bool

	signal chan struct{}
	done   chan struct{}
}

func newSubscriber(id string, limit int) *Subscriber {
	return &Subscriber{
		ID:     id,
		limit:  limit,
		signal: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

func (s *Subscriber) offer(event *domain.LotEvent) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}

	if len(s.queue) >= s.limit {
		s.behind = true
		if !s.dropOldestNonCritical() {
			// Queue holds only critical events. A non-critical newcomer is
			// dropped outright; a critical one displaces the oldest.
			if !event.Type.Critical() {
				s.mu.Unlock()
				return
			}
			s.queue = s.queue[1:]
		}
	}
	s.queue = append(s.queue, event)
	s.mu.Unlock()

	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *Subscriber) dropOldestNonCritical() bool {
	for i, e := range s.queue {
		if !e.Type.Critical() {
			s.queue = append(s.queue[:i], s.queue[i+1:]...)
			return true
		}
	}
	return false
}

// Next blocks until an event is available, the subscriber is detached, or
// ctx is done. The behind flag is reported once and cleared; the write pump
// surfaces it to the client as a resync hint.
func (s *Subscriber) Next(ctx context.Context) (event *domain.LotEvent, behind bool, ok bool) {
	for {
		s.mu.Lock()
		if len(s.queue) > 0 {
			event = s.queue[0]
			s.queue = s.queue[1:]
			behind = s.behind
			s.behind = false
			s.mu.Unlock()
			return event, behind, true
		}
		closed := s.closed
		s.mu.Unlock()
		if closed {
			return nil, false, false
		}

		select {
		case <-s.signal:
		case <-s.done:
		case <-ctx.Done():
			return nil, false, false
		}
	}
}

// Behind reports whether deliveries were dropped since the last Next that
// surfaced the flag.
func (s *Subscriber) Behind() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.behind
}

func (s *Subscriber) close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	s.mu.Unlock()
	close(s.done)
}

// Fanout routes committed lot events to every interested subscriber,
// preserving per-lot order (the coordinator publishes while holding the
// lot's commit section). Implements domain.EventSink.
type Fanout struct {
	registry  *Registry
	queueSize int
	log       logger.Logger

	mu   sync.RWMutex
	subs map[string]*Subscriber
}

func NewFanout(registry *Registry, queueSize int, log logger.Logger) *Fanout {
	return &Fanout{
		registry:  registry,
		queueSize: queueSize,
		log:       log,
		subs:      make(map[string]*Subscriber),
	}
}

// Attach creates the connection's mailbox. Interests are registered
// separately via the Registry.
func (f *Fanout) Attach(connID string) *Subscriber {
	f.mu.Lock()
	defer f.mu.Unlock()

	sub := newSubscriber(connID, f.queueSize)
	f.subs[connID] = sub
	return sub
}

// Detach closes the mailbox and removes every subscription the connection
// held.
func (f *Fanout) Detach(connID string) {
	f.mu.Lock()
	sub, ok := f.subs[connID]
	delete(f.subs, connID)
	f.mu.Unlock()

	if ok {
		sub.close()
	}
	f.registry.Drop(connID)
}

// Publish is fire-and-forget from the coordinator's perspective: it only
// appends to bounded per-subscriber queues and never waits on delivery.
func (f *Fanout) Publish(event *domain.LotEvent) {
	connIDs := f.registry.InterestedIn(event.LotID, event.AuctionID)
	if len(connIDs) == 0 {
		return
	}

	f.mu.RLock()
	defer f.mu.RUnlock()
	for _, connID := range connIDs {
		if sub, ok := f.subs[connID]; ok {
			sub.offer(event)
		}
	}
}
