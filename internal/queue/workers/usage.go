package workers

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/hibiken/asynq"

	"github.com/nikhilbhutani/speechgateway/internal/queue"
	"github.com/nikhilbhutani/speechgateway/internal/usage"
)

// UsageStore persists usage events.
type UsageStore interface {
	Insert(ctx context.Context, ev usage.Event) error
}

type UsageWorker struct {
	store UsageStore
}

func NewUsageWorker(store UsageStore) *UsageWorker {
	return &UsageWorker{store: store}
}

func (w *UsageWorker) ProcessTask(ctx context.Context, t *asynq.Task) error {
	var payload queue.UsageRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}

	ev, err := usage.FromPayload(payload)
	if err != nil {
		return fmt.Errorf("%v: %w", err, asynq.SkipRetry)
	}

	if err := w.store.Insert(ctx, ev); err != nil {
		return fmt.Errorf("store usage event %s: %w", ev.ID, err)
	}

	slog.Debug("usage event stored",
		"event_id", ev.ID,
		"key_id", ev.KeyID,
		"backend", ev.Backend,
		"audio_bytes", ev.AudioBytes,
	)
	return nil
}
