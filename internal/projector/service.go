// Package projector consumes lifecycle events and writes them to the journal.
package projector

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/ariefcatur/go-order-to-cash/internal/events"
	kafkax "github.com/ariefcatur/go-order-to-cash/internal/kafka"
	kafkago "github.com/segmentio/kafka-go"
)

type Journal interface {
	Record(ctx context.Context, topic string, ev events.Envelope) (bool, error)
}

// Deduper is a fast path in front of the journal, which is idempotent on its own.
type Deduper interface {
	FirstSeen(ctx context.Context, eventID string) (bool, error)
	Forget(ctx context.Context, eventID string) error
}

type Service struct {
	Journal Journal
	Dedup   Deduper // optional
	Log     *slog.Logger
}

// HandleMessage is installed as the consumer handler. It returns an error only
// when the offset must not be committed.
func (s *Service) HandleMessage(ctx context.Context, m kafkago.Message) error {
	ev, err := kafkax.Decode(m)
	if err != nil {
		// a poison message would block the partition forever; log and skip it
		s.Log.ErrorContext(ctx, "undecodable message skipped", "topic", m.Topic, "offset", m.Offset, "error", err)
		return nil
	}
	if ev.EventVersion != events.Version {
		s.Log.WarnContext(ctx, "unsupported event version skipped", "event_id", ev.EventID, "version", ev.EventVersion)
		return nil
	}

	if s.Dedup != nil {
		first, err := s.Dedup.FirstSeen(ctx, ev.EventID)
		if err != nil {
			s.Log.WarnContext(ctx, "dedup unavailable, relying on journal", "error", err)
		} else if !first {
			return nil
		}
	}

	recorded, err := s.Journal.Record(ctx, m.Topic, ev)
	if err != nil {
		if s.Dedup != nil {
			_ = s.Dedup.Forget(ctx, ev.EventID)
		}
		return fmt.Errorf("record %s: %w", ev.EventID, err)
	}
	s.Log.DebugContext(ctx, "event projected",
		"event_id", ev.EventID, "event_type", ev.EventType, "correlation_id", ev.CorrelationID, "new", recorded)
	return nil
}
