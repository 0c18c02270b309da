package services

import (
	"context"
	"testing"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

type fakeSubscriber struct {
	events []*domain.LotEvent
}

func (s *fakeSubscriber) SubscribeToLotEvents(ctx context.Context, handler domain.EventHandler) error {
	for _, event := range s.events {
		if err := handler(event); err != nil {
			return err
		}
	}
	return nil
}

type captureApplier struct {
	applied []*domain.LotEvent
}

func (a *captureApplier) ApplyRemoteEvent(ctx context.Context, event *domain.LotEvent) error {
	a.applied = append(a.applied, event)
	return nil
}

type captureFanout struct {
	published []*domain.LotEvent
}

func (f *captureFanout) Publish(event *domain.LotEvent) {
	f.published = append(f.published, event)
}

func TestRelaySkipsOwnOrigin(t *testing.T) {
	local := &domain.LotEvent{Type: domain.EventBidAccepted, LotID: "lot-1", Origin: "instance-a"}
	remote := &domain.LotEvent{Type: domain.EventLotClosed, LotID: "lot-1", Origin: "instance-b"}

	applier := &captureApplier{}
	fanout := &captureFanout{}
	relay := NewEventRelay(&fakeSubscriber{events: []*domain.LotEvent{local, remote}},
		applier, fanout, "instance-a", logger.Nop())

	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("relay: %v", err)
	}

	if len(applier.applied) != 1 || applier.applied[0] != remote {
		t.Errorf("applied = %v, want only the remote event", applier.applied)
	}
	if len(fanout.published) != 1 || fanout.published[0] != remote {
		t.Errorf("published = %v, want only the remote event", fanout.published)
	}
}

func TestRelayAppliesBeforeFanout(t *testing.T) {
	remote := &domain.LotEvent{Type: domain.EventLotClosed, LotID: "lot-1", Origin: "instance-b"}

	order := make([]string, 0, 2)
	applier := &orderedApplier{order: &order}
	fanout := &orderedFanout{order: &order}
	relay := NewEventRelay(&fakeSubscriber{events: []*domain.LotEvent{remote}},
		applier, fanout, "instance-a", logger.Nop())

	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if len(order) != 2 || order[0] != "apply" || order[1] != "fanout" {
		t.Errorf("order = %v, want [apply fanout]", order)
	}
}

type orderedApplier struct{ order *[]string }

func (a *orderedApplier) ApplyRemoteEvent(ctx context.Context, event *domain.LotEvent) error {
	*a.order = append(*a.order, "apply")
	return nil
}

type orderedFanout struct{ order *[]string }

func (f *orderedFanout) Publish(event *domain.LotEvent) {
	*f.order = append(*f.order, "fanout")
}

func TestRelayToleratesNilFanout(t *testing.T) {
	remote := &domain.LotEvent{Type: domain.EventLotClosed, LotID: "lot-1", Origin: "instance-b"}
	applier := &captureApplier{}
	relay := NewEventRelay(&fakeSubscriber{events: []*domain.LotEvent{remote}},
		applier, nil, "instance-a", logger.Nop())

	if err := relay.Start(context.Background()); err != nil {
		t.Fatalf("relay: %v", err)
	}
	if len(applier.applied) != 1 {
		t.Errorf("applied = %d events, want 1", len(applier.applied))
	}
}
