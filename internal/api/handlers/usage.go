package handlers

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/nikhilbhutani/speechgateway/internal/apierror"
	"github.com/nikhilbhutani/speechgateway/internal/auth"
	"github.com/nikhilbhutani/speechgateway/internal/cache"
)

// UsageReader returns one key's counters for a day.
type UsageReader interface {
	Get(ctx context.Context, keyID string, day time.Time) (cache.DailyUsage, error)
}

type UsageHandler struct {
	counters UsageReader
	logger   *slog.Logger
}

func NewUsageHandler(counters UsageReader, logger *slog.Logger) *UsageHandler {
	return &UsageHandler{counters: counters, logger: logger}
}

// Usage reports the caller's own counters for ?date=YYYY-MM-DD (UTC),
// defaulting to today.
func (h *UsageHandler) Usage(w http.ResponseWriter, r *http.Request) {
	p, ok := auth.PrincipalFromContext(r.Context())
	if !ok {
		apierror.Write(w, apierror.Unauthenticated("Request is missing required authentication credential.", nil))
		return
	}

	day := time.Now().UTC()
	if s := r.URL.Query().Get("date"); s != "" {
		t, err := time.Parse(time.DateOnly, s)
		if err != nil {
			apierror.Write(w, apierror.InvalidArgument("Invalid 'date': expected YYYY-MM-DD.", err))
			return
		}
		day = t
	}

	u, err := h.counters.Get(r.Context(), p.KeyID, day)
	if err != nil {
		h.logger.Error("read usage counters", "key_id", p.KeyID, "error", err)
		apierror.Write(w, apierror.Internal("internal error", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"keyId":      p.KeyID,
		"date":       day.Format(time.DateOnly),
		"requests":   u.Requests,
		"audioBytes": u.AudioBytes,
	})
}
