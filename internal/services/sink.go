package services

import (
	"context"

	"auction-core/internal/domain"
	"auction-core/pkg/logger"
)

// CompositeSink hands each committed event to the local fan-out and mirrors
// it to the cross-instance publisher. Publisher failures are logged, never
// surfaced to the bid submitter.
type CompositeSink struct {
	fanout    domain.EventSink
	publisher domain.EventPublisher
	log       logger.Logger
}

func NewCompositeSink(fanout domain.EventSink, publisher domain.EventPublisher, log logger.Logger) *CompositeSink {
	return &CompositeSink{
		fanout:    fanout,
		publisher: publisher,
		log:       log,
	}
}

func (s *CompositeSink) Publish(event *domain.LotEvent) {
	if s.fanout != nil {
		s.fanout.Publish(event)
	}
	if s.publisher != nil {
		if err := s.publisher.PublishLotEvent(context.Background(), event); err != nil {
			s.log.Error("Failed to mirror event", "lot_id", event.LotID, "type", event.Type, "error", err)
		}
	}
}
