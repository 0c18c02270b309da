package broadcast

import (
	"context"
	"fmt"
	"testing"
	"time"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

func bidEvent(lotID string, version uint64) *domain.LotEvent {
	return &domain.LotEvent{
		Type:      domain.EventBidAccepted,
		LotID:     lotID,
		AuctionID: "auction-1",
		Version:   version,
	}
}

func closedEvent(lotID string, version uint64) *domain.LotEvent {
	return &domain.LotEvent{
		Type:      domain.EventLotClosed,
		LotID:     lotID,
		AuctionID: "auction-1",
		Version:   version,
	}
}

func newTestFanout(queueSize int) (*Fanout, *Registry) {
	registry := NewRegistry()
	return NewFanout(registry, queueSize, logger.Nop()), registry
}

func drain(t *testing.T, sub *Subscriber, n int) []*domain.LotEvent {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	var out []*domain.LotEvent
	for i := 0; i < n; i++ {
		event, _, ok := sub.Next(ctx)
		if !ok {
			t.Fatalf("subscriber closed after %d of %d events", i, n)
		}
		out = append(out, event)
	}
	return out
}

func TestPublishDeliversInOrder(t *testing.T) {
	f, registry := newTestFanout(16)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")

	for v := uint64(1); v <= 5; v++ {
		f.Publish(bidEvent("lot-1", v))
	}

	events := drain(t, sub, 5)
	for i, e := range events {
		if e.Version != uint64(i+1) {
			t.Fatalf("event %d version = %d, want %d", i, e.Version, i+1)
		}
	}
}

func TestPublishOnlyToInterested(t *testing.T) {
	f, registry := newTestFanout(16)
	sub1 := f.Attach("conn-1")
	sub2 := f.Attach("conn-2")
	registry.SubscribeLot("conn-1", "lot-1")
	registry.SubscribeLot("conn-2", "lot-2")

	f.Publish(bidEvent("lot-1", 1))

	events := drain(t, sub1, 1)
	if events[0].LotID != "lot-1" {
		t.Errorf("delivered lot = %s", events[0].LotID)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	if _, _, ok := sub2.Next(ctx); ok {
		t.Error("uninterested subscriber received event")
	}
}

func TestPublishReachesAuctionSubscribers(t *testing.T) {
	f, registry := newTestFanout(16)
	sub := f.Attach("conn-1")
	registry.SubscribeAuction("conn-1", "auction-1")

	f.Publish(bidEvent("lot-1", 1))
	f.Publish(bidEvent("lot-2", 1))

	events := drain(t, sub, 2)
	if events[0].LotID != "lot-1" || events[1].LotID != "lot-2" {
		t.Errorf("delivered lots = %s, %s", events[0].LotID, events[1].LotID)
	}
}

func TestOverflowDropsOldestAndMarksBehind(t *testing.T) {
	f, registry := newTestFanout(3)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")

	// Queue capacity 3; publish 5 without draining
	for v := uint64(1); v <= 5; v++ {
		f.Publish(bidEvent("lot-1", v))
	}

	if !sub.Behind() {
		t.Fatal("subscriber not marked behind after overflow")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	event, behind, ok := sub.Next(ctx)
	if !ok {
		t.Fatal("subscriber closed")
	}
	if !behind {
		t.Error("behind flag not surfaced on first delivery")
	}
	// Oldest events were dropped; the newest survive
	if event.Version != 3 {
		t.Errorf("first delivered version = %d, want 3", event.Version)
	}

	// Flag is reported once, then cleared
	event, behind, _ = sub.Next(ctx)
	if behind {
		t.Error("behind flag surfaced twice")
	}
	if event.Version != 4 {
		t.Errorf("second delivered version = %d, want 4", event.Version)
	}
}

func TestOverflowNeverDropsCritical(t *testing.T) {
	f, registry := newTestFanout(2)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")

	f.Publish(bidEvent("lot-1", 1))
	f.Publish(closedEvent("lot-1", 2))
	// Overflow: the non-critical event gives way, the close survives
	f.Publish(bidEvent("lot-1", 3))

	events := drain(t, sub, 2)
	foundClose := false
	for _, e := range events {
		if e.Type == domain.EventLotClosed {
			foundClose = true
		}
	}
	if !foundClose {
		t.Fatal("critical lot_closed event was dropped")
	}
}

func TestOverflowAllCriticalDropsNonCriticalNewcomer(t *testing.T) {
	f, registry := newTestFanout(2)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")
	registry.SubscribeLot("conn-1", "lot-2")

	f.Publish(closedEvent("lot-1", 1))
	f.Publish(closedEvent("lot-2", 1))
	// Queue full of criticals: the non-critical newcomer is dropped outright
	f.Publish(bidEvent("lot-1", 2))

	events := drain(t, sub, 2)
	for _, e := range events {
		if e.Type != domain.EventLotClosed {
			t.Errorf("non-critical event %s displaced a critical one", e.Type)
		}
	}
	if !sub.Behind() {
		t.Error("subscriber not marked behind")
	}
}

func TestPublishNeverBlocks(t *testing.T) {
	f, registry := newTestFanout(1)
	f.Attach("conn-1") // never drained
	registry.SubscribeLot("conn-1", "lot-1")

	done := make(chan struct{})
	go func() {
		defer close(done)
		for v := uint64(1); v <= 1000; v++ {
			f.Publish(bidEvent("lot-1", v))
		}
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow subscriber")
	}
}

func TestDetachClosesSubscriber(t *testing.T) {
	f, registry := newTestFanout(16)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")

	f.Detach("conn-1")

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if _, _, ok := sub.Next(ctx); ok {
		t.Error("detached subscriber still delivering")
	}

	// Interests are gone too; publish is a no-op
	f.Publish(bidEvent("lot-1", 1))
	if got := registry.InterestedIn("lot-1", ""); len(got) != 0 {
		t.Errorf("registry still holds %v after detach", got)
	}
}

func TestNextUnblocksOnContextCancel(t *testing.T) {
	f, _ := newTestFanout(16)
	sub := f.Attach("conn-1")

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		if _, _, ok := sub.Next(ctx); ok {
			t.Error("Next returned an event after cancel")
		}
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Next did not unblock on context cancel")
	}
}

func TestConcurrentPublishersPreserveDelivery(t *testing.T) {
	f, registry := newTestFanout(4096)
	sub := f.Attach("conn-1")
	registry.SubscribeLot("conn-1", "lot-1")

	const publishers = 4
	const perPublisher = 100
	for p := 0; p < publishers; p++ {
		go func(p int) {
			for i := 0; i < perPublisher; i++ {
				f.Publish(bidEvent("lot-1", uint64(p*perPublisher+i)))
			}
		}(p)
	}

	events := drain(t, sub, publishers*perPublisher)
	if len(events) != publishers*perPublisher {
		t.Fatalf("delivered %d, want %d", len(events), publishers*perPublisher)
	}
	if sub.Behind() {
		t.Error("subscriber marked behind despite ample queue")
	}
}

func TestManySubscribersEachDelivered(t *testing.T) {
	f, registry := newTestFanout(16)

	subs := make([]*Subscriber, 10)
	for i := range subs {
		connID := fmt.Sprintf("conn-%d", i)
		subs[i] = f.Attach(connID)
		registry.SubscribeLot(connID, "lot-1")
	}

	f.Publish(bidEvent("lot-1", 1))

	for i, sub := range subs {
		events := drain(t, sub, 1)
		if events[0].Version != 1 {
			t.Errorf("subscriber %d got version %d", i, events[0].Version)
		}
	}
}
