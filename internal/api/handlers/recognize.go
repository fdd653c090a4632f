package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
	"github.com/nikhilbhutani/speechgateway/internal/auth"
	"github.com/nikhilbhutani/speechgateway/internal/metrics"
	"github.com/nikhilbhutani/speechgateway/internal/speech"
	"github.com/nikhilbhutani/speechgateway/internal/usage"
)

const usageRecordTimeout = 5 * time.Second

// Dispatcher runs a validated recognition request.
type Dispatcher interface {
	Dispatch(ctx context.Context, req *speech.RecognizeRequest) (*speech.Outcome, error)
}

type RecognizeHandler struct {
	sizes      *speech.SizeGuard
	validator  *speech.Validator
	dispatcher Dispatcher
	usage      usage.Recorder
	metrics    *metrics.Metrics
	logger     *slog.Logger

	pending sync.WaitGroup
}

func NewRecognizeHandler(
	sizes *speech.SizeGuard,
	validator *speech.Validator,
	dispatcher Dispatcher,
	recorder usage.Recorder,
	m *metrics.Metrics,
	logger *slog.Logger,
) *RecognizeHandler {
	if recorder == nil {
		recorder = usage.Nop{}
	}
	return &RecognizeHandler{
		sizes:      sizes,
		validator:  validator,
		dispatcher: dispatcher,
		usage:      recorder,
		metrics:    m,
		logger:     logger,
	}
}

func (h *RecognizeHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	body, err := h.sizes.ReadBody(w, r)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.sizes.Check(body); err != nil {
		h.fail(w, r, err)
		return
	}

	req, err := h.validator.Validate(body)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.metrics.ObserveAudioBytes(len(req.Audio))

	out, err := h.dispatcher.Dispatch(r.Context(), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}

	writeJSON(w, http.StatusOK, out.Response)
	h.recordUsage(r, req, out)
}

// Wait blocks until every in-flight usage record has finished.
func (h *RecognizeHandler) Wait() {
	h.pending.Wait()
}

// fail renders err. Processing failures were already logged by the
// dispatcher with backend and fault class; only rejections are logged here.
func (h *RecognizeHandler) fail(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierror.From(err)
	if !apiErr.Retryable() {
		h.metrics.ObserveRejection(apiErr.Kind.String())
		attrs := []any{
			"request_id", chimiddleware.GetReqID(r.Context()),
			"status", apiErr.Kind.String(),
			"error", err,
		}
		var vf *speech.ValidationFailure
		if errors.As(err, &vf) {
			attrs = append(attrs, "field", vf.Field)
		}
		h.logger.Info("recognize rejected", attrs...)
	}
	apierror.Write(w, apiErr)
}

// recordUsage runs after the response is written and detached from the
// request context, so accounting never delays or fails the caller.
func (h *RecognizeHandler) recordUsage(r *http.Request, req *speech.RecognizeRequest, out *speech.Outcome) {
	if _, nop := h.usage.(usage.Nop); nop {
		return
	}
	p, _ := auth.PrincipalFromContext(r.Context())

	ev := usage.NewEvent()
	ev.KeyID = p.KeyID
	ev.RequestID = chimiddleware.GetReqID(r.Context())
	ev.Backend = out.Backend
	ev.LanguageCode = req.Config.LanguageCode
	ev.Encoding = string(req.Config.Encoding)
	ev.AudioBytes = int64(len(req.Audio))
	ev.Results = len(out.Response.Results)
	ev.Latency = out.Elapsed

	ctx := context.WithoutCancel(r.Context())
	h.pending.Add(1)
	go func() {
		defer h.pending.Done()
		ctx, cancel := context.WithTimeout(ctx, usageRecordTimeout)
		defer cancel()
		if err := h.usage.Record(ctx, ev); err != nil {
			h.logger.Warn("usage record failed", "event_id", ev.ID, "key_id", ev.KeyID, "error", err)
		}
	}()
}
