package speech

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/nikhilbhutani/speechgateway/internal/stt"
)

// fakeRecognizer returns canned results. With delay set it sleeps without
// watching ctx, like an engine that ignores cancellation.
type fakeRecognizer struct {
	name    string
	results []stt.Result
	err     error
	delay   time.Duration
	panics  bool

	calls   atomic.Int32
	lastReq atomic.Pointer[stt.Request]
}

func (f *fakeRecognizer) Name() string { return f.name }

func (f *fakeRecognizer) Recognize(_ context.Context, req stt.Request) ([]stt.Result, error) {
	f.calls.Add(1)
	f.lastReq.Store(&req)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.panics {
		panic("engine exploded")
	}
	return f.results, f.err
}

func oneResult(transcript string, confidence float64) []stt.Result {
	return []stt.Result{{Alternatives: []stt.Alternative{{Transcript: transcript, Confidence: confidence}}}}
}
