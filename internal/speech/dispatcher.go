package speech

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
	"github.com/nikhilbhutani/speechgateway/internal/metrics"
	"github.com/nikhilbhutani/speechgateway/internal/stt"
)

const (
	defaultTimeout       = 60 * time.Second
	defaultMaxConcurrent = 16
)

// Outcome is a completed recognition.
type Outcome struct {
	Response *RecognizeResponse
	Backend  string
	Elapsed  time.Duration
}

// Dispatcher selects a recognizer for a validated request, calls it under a
// deadline and normalizes the result.
type Dispatcher struct {
	registry *Registry
	timeout  time.Duration
	sem      *semaphore.Weighted
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

type DispatcherOption func(*Dispatcher)

// WithTimeout bounds each engine call, including time spent waiting for an
// admission slot.
func WithTimeout(d time.Duration) DispatcherOption {
	return func(disp *Dispatcher) {
		if d > 0 {
			disp.timeout = d
		}
	}
}

// WithMaxConcurrent caps the number of engine calls in flight.
func WithMaxConcurrent(n int) DispatcherOption {
	return func(disp *Dispatcher) {
		if n > 0 {
			disp.sem = semaphore.NewWeighted(int64(n))
		}
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(disp *Dispatcher) { disp.metrics = m }
}

func WithLogger(l *slog.Logger) DispatcherOption {
	return func(disp *Dispatcher) { disp.logger = l }
}

func NewDispatcher(registry *Registry, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		registry: registry,
		timeout:  defaultTimeout,
		sem:      semaphore.NewWeighted(defaultMaxConcurrent),
		logger:   slog.Default(),
		tracer:   otel.Tracer("github.com/nikhilbhutani/speechgateway/internal/speech"),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

type engineReply struct {
	results []stt.Result
	err     error
}

// Dispatch runs one recognition. Lookup misses are INVALID_ARGUMENT; engine
// faults, timeouts and cancellation are INTERNAL.
func (d *Dispatcher) Dispatch(ctx context.Context, req *RecognizeRequest) (*Outcome, error) {
	cfg := req.Config
	route, err := d.registry.Match(cfg.LanguageCode, cfg.Encoding)
	if err != nil {
		return nil, apierror.InvalidArgument(unsupportedMessage(err, cfg), err)
	}
	rec := route.Recognizer

	ctx, span := d.tracer.Start(ctx, "speech.recognize",
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("speech.backend", rec.Name()),
			attribute.String("speech.language", route.Language),
			attribute.String("speech.encoding", string(cfg.Encoding)),
			attribute.Int("speech.audio_bytes", len(req.Audio)),
		),
	)
	defer span.End()

	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	if err := d.sem.Acquire(ctx, 1); err != nil {
		return nil, d.fail(span, route, start, "admission", err)
	}
	done := d.metrics.TrackInFlight()

	// The engine may ignore ctx, so it runs on its own goroutine; the slot is
	// released when the engine actually returns, not when we stop waiting.
	replies := make(chan engineReply, 1)
	go func() {
		defer d.sem.Release(1)
		defer done()
		defer func() {
			if p := recover(); p != nil {
				replies <- engineReply{err: fmt.Errorf("recognizer panic: %v", p)}
			}
		}()
		results, err := rec.Recognize(ctx, stt.Request{
			Audio:                      req.Audio,
			Encoding:                   string(cfg.Encoding),
			SampleRateHertz:            cfg.SampleRateHertz,
			LanguageCode:               cfg.LanguageCode,
			MaxAlternatives:            cfg.MaxAlternatives,
			EnableAutomaticPunctuation: cfg.EnableAutomaticPunctuation,
			EnableWordTimeOffsets:      cfg.EnableWordTimeOffsets,
		})
		replies <- engineReply{results: results, err: err}
	}()

	var reply engineReply
	select {
	case <-ctx.Done():
		return nil, d.fail(span, route, start, "engine", ctx.Err())
	case reply = <-replies:
	}
	if reply.err != nil {
		return nil, d.fail(span, route, start, "engine", reply.err)
	}

	elapsed := time.Since(start)
	resp := Normalize(reply.results, cfg)

	d.metrics.ObserveRecognition(rec.Name(), route.Language, "ok", elapsed)
	span.SetAttributes(attribute.Int("speech.results", len(resp.Results)))
	span.SetStatus(codes.Ok, "")
	d.logger.Debug("recognition completed",
		"backend", rec.Name(),
		"language", route.Language,
		"results", len(resp.Results),
		"duration", elapsed,
	)

	return &Outcome{Response: resp, Backend: rec.Name(), Elapsed: elapsed}, nil
}

func (d *Dispatcher) fail(span trace.Span, route Route, start time.Time, stage string, err error) error {
	elapsed := time.Since(start)
	class := faultClass(err)
	backend := route.Recognizer.Name()

	d.metrics.ObserveRecognition(backend, route.Language, "error", elapsed)
	d.metrics.ObserveEngineFault(backend, class)
	span.RecordError(err)
	span.SetStatus(codes.Error, class)
	d.logger.Warn("recognition failed",
		"backend", backend,
		"language", route.Language,
		"stage", stage,
		"class", class,
		"duration", elapsed,
		"error", err,
	)

	msg := "Recognition failed."
	switch class {
	case "timeout":
		msg = "Recognition timed out."
	case "cancelled":
		msg = "Recognition was cancelled."
	case "corrupt_audio":
		msg = "Audio could not be processed for the declared encoding."
	}
	return apierror.Internal(msg, err)
}

func faultClass(err error) string {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	case errors.Is(err, context.Canceled):
		return "cancelled"
	case errors.Is(err, stt.ErrCorruptAudio):
		return "corrupt_audio"
	case errors.Is(err, stt.ErrUnavailable):
		return "unavailable"
	case errors.Is(err, stt.ErrBadResponse):
		return "bad_response"
	}
	return "unknown"
}

func unsupportedMessage(err error, cfg RecognitionConfig) string {
	if errors.Is(err, ErrEncodingNotSupported) {
		return fmt.Sprintf("Invalid recognition 'config': encoding %s is not supported for language %q.",
			cfg.Encoding, cfg.LanguageCode)
	}
	return fmt.Sprintf("Invalid recognition 'config': language %q is not supported.", cfg.LanguageCode)
}
