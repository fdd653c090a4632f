// Package usage records per-key recognition volume. Recording is
// best-effort: failures are reported to the caller for logging and never
// affect the recognition response.
package usage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/nikhilbhutani/speechgateway/internal/queue"
)

// Event describes one completed recognition.
type Event struct {
	ID           uuid.UUID
	KeyID        string
	RequestID    string
	Backend      string
	LanguageCode string
	Encoding     string
	AudioBytes   int64
	Results      int
	Latency      time.Duration
	CreatedAt    time.Time
}

// NewEvent stamps a fresh ID and creation time.
func NewEvent() Event {
	return Event{ID: uuid.New(), CreatedAt: time.Now().UTC()}
}

// Recorder accepts usage events.
type Recorder interface {
	Record(ctx context.Context, ev Event) error
}

// Nop discards events. It is used when usage accounting is disabled.
type Nop struct{}

func (Nop) Record(context.Context, Event) error { return nil }

// Counter is the fast per-key tally (Redis in production).
type Counter interface {
	Incr(ctx context.Context, keyID string, audioBytes int64) error
}

// Enqueuer hands events to the background worker for persistence.
type Enqueuer interface {
	EnqueueUsageRecord(ctx context.Context, payload queue.UsageRecordPayload) error
}

// Service bumps the live counter and enqueues the event for persistence.
// Either side may be nil.
type Service struct {
	counter  Counter
	enqueuer Enqueuer
}

func NewService(counter Counter, enqueuer Enqueuer) *Service {
	return &Service{counter: counter, enqueuer: enqueuer}
}

func (s *Service) Record(ctx context.Context, ev Event) error {
	var errs []error
	if s.counter != nil {
		if err := s.counter.Incr(ctx, ev.KeyID, ev.AudioBytes); err != nil {
			errs = append(errs, err)
		}
	}
	if s.enqueuer != nil {
		if err := s.enqueuer.EnqueueUsageRecord(ctx, ToPayload(ev)); err != nil {
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("record usage: %w", errors.Join(errs...))
	}
	return nil
}

func ToPayload(ev Event) queue.UsageRecordPayload {
	return queue.UsageRecordPayload{
		EventID:      ev.ID.String(),
		KeyID:        ev.KeyID,
		RequestID:    ev.RequestID,
		Backend:      ev.Backend,
		LanguageCode: ev.LanguageCode,
		Encoding:     ev.Encoding,
		AudioBytes:   ev.AudioBytes,
		Results:      ev.Results,
		LatencyMs:    ev.Latency.Milliseconds(),
		CreatedAt:    ev.CreatedAt,
	}
}

func FromPayload(p queue.UsageRecordPayload) (Event, error) {
	id, err := uuid.Parse(p.EventID)
	if err != nil {
		return Event{}, fmt.Errorf("parse event ID: %w", err)
	}
	if p.KeyID == "" {
		return Event{}, errors.New("usage event has no key ID")
	}
	return Event{
		ID:           id,
		KeyID:        p.KeyID,
		RequestID:    p.RequestID,
		Backend:      p.Backend,
		LanguageCode: p.LanguageCode,
		Encoding:     p.Encoding,
		AudioBytes:   p.AudioBytes,
		Results:      p.Results,
		Latency:      time.Duration(p.LatencyMs) * time.Millisecond,
		CreatedAt:    p.CreatedAt,
	}, nil
}
