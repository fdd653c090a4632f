package usage

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nikhilbhutani/speechgateway/internal/cache"
	"github.com/nikhilbhutani/speechgateway/internal/queue"
)

type fakeEnqueuer struct {
	payloads []queue.UsageRecordPayload
	err      error
}

func (f *fakeEnqueuer) EnqueueUsageRecord(_ context.Context, p queue.UsageRecordPayload) error {
	if f.err != nil {
		return f.err
	}
	f.payloads = append(f.payloads, p)
	return nil
}

func sampleEvent() Event {
	ev := NewEvent()
	ev.KeyID = "k1"
	ev.RequestID = "req-1"
	ev.Backend = "whisper-local"
	ev.LanguageCode = "ja-JP"
	ev.Encoding = "FLAC"
	ev.AudioBytes = 4096
	ev.Results = 1
	ev.Latency = 1500 * time.Millisecond
	return ev
}

func TestService_CountsAndEnqueues(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	counter := cache.NewUsageCounter(rdb)
	enq := &fakeEnqueuer{}
	svc := NewService(counter, enq)

	ev := sampleEvent()
	require.NoError(t, svc.Record(context.Background(), ev))
	require.NoError(t, svc.Record(context.Background(), ev))

	got, err := counter.Get(context.Background(), "k1", time.Now().UTC())
	require.NoError(t, err)
	assert.EqualValues(t, 2, got.Requests)
	assert.EqualValues(t, 8192, got.AudioBytes)

	require.Len(t, enq.payloads, 2)
	assert.Equal(t, ev.ID.String(), enq.payloads[0].EventID)
	assert.EqualValues(t, 1500, enq.payloads[0].LatencyMs)
}

func TestService_JoinsFailures(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })
	mr.Close()

	queueDown := errors.New("queue down")
	svc := NewService(cache.NewUsageCounter(rdb), &fakeEnqueuer{err: queueDown})

	err := svc.Record(context.Background(), sampleEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, queueDown)
}

func TestService_NilSides(t *testing.T) {
	assert.NoError(t, NewService(nil, nil).Record(context.Background(), sampleEvent()))
	assert.NoError(t, Nop{}.Record(context.Background(), sampleEvent()))
}

func TestPayloadRoundTrip(t *testing.T) {
	ev := sampleEvent()
	back, err := FromPayload(ToPayload(ev))
	require.NoError(t, err)
	assert.Equal(t, ev.ID, back.ID)
	assert.Equal(t, ev.Latency, back.Latency)
	assert.Equal(t, ev.Encoding, back.Encoding)

	_, err = FromPayload(queue.UsageRecordPayload{EventID: "x", KeyID: "k"})
	assert.Error(t, err)
}
