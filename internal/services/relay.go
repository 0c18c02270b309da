package services

import (
	"context"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// RemoteEventApplier folds an event committed elsewhere into the local lot
// state.
type RemoteEventApplier interface {
	ApplyRemoteEvent(ctx context.Context, event *domain.LotEvent) error
}

// EventRelay keeps this instance consistent with commits made on other
// instances: each relayed event is applied to the local lot store first,
// then handed to the local fan-out so subscribers connected here see it.
// Events originating locally are skipped; the coordinator already handled
// those.
type EventRelay struct {
	subscriber domain.EventSubscriber
	applier    RemoteEventApplier
	fanout     domain.EventSink
	instanceID string
	log        logger.Logger
}

func NewEventRelay(subscriber domain.EventSubscriber, applier RemoteEventApplier,
	fanout domain.EventSink, instanceID string, log logger.Logger) *EventRelay {
	return &EventRelay{
		subscriber: subscriber,
		applier:    applier,
		fanout:     fanout,
		instanceID: instanceID,
		log:        log,
	}
}

func (r *EventRelay) Start(ctx context.Context) error {
	r.log.Info("Starting event relay", "instance_id", r.instanceID)

	return r.subscriber.SubscribeToLotEvents(ctx, func(event *domain.LotEvent) error {
		if event.Origin == r.instanceID {
			return nil
		}
		if r.applier != nil {
			if err := r.applier.ApplyRemoteEvent(ctx, event); err != nil {
				r.log.Error("Failed to apply remote event",
					"lot_id", event.LotID, "type", event.Type, "error", err)
			}
		}
		if r.fanout != nil {
			r.fanout.Publish(event)
		}
		return nil
	})
}
