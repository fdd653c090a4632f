package api

import (
	"fmt"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/nikhilbhutani/speechgateway/internal/api/handlers"
	"github.com/nikhilbhutani/speechgateway/internal/api/middleware"
	"github.com/nikhilbhutani/speechgateway/internal/apierror"
	"github.com/nikhilbhutani/speechgateway/internal/auth"
	"github.com/nikhilbhutani/speechgateway/internal/config"
	"github.com/nikhilbhutani/speechgateway/internal/metrics"
	"github.com/nikhilbhutani/speechgateway/internal/speech"
	"github.com/nikhilbhutani/speechgateway/internal/usage"
)

// Dependencies are the long-lived objects the router serves with. All of
// them are built once at startup and never modified.
type Dependencies struct {
	Keys     *auth.KeySet
	Registry *speech.Registry
	Metrics  *metrics.Metrics
	Logger   *slog.Logger

	// Optional: usage accounting and the per-key counter endpoint.
	Usage    usage.Recorder
	Counters handlers.UsageReader

	// Readiness names the dependencies GET /readyz pings.
	Readiness map[string]handlers.Pinger
}

type Router struct {
	mux       *chi.Mux
	cfg       *config.Config
	deps      Dependencies
	guard     *auth.Guard
	limiter   *middleware.RateLimiter
	recognize *handlers.RecognizeHandler
}

func NewRouter(cfg *config.Config, deps Dependencies) (*Router, error) {
	if deps.Keys == nil || deps.Keys.Len() == 0 {
		return nil, fmt.Errorf("no API keys configured")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("no recognition backends configured")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}

	validator, err := speech.NewValidator()
	if err != nil {
		return nil, err
	}
	dispatcher := speech.NewDispatcher(deps.Registry,
		speech.WithTimeout(cfg.Recognition.Timeout),
		speech.WithMaxConcurrent(cfg.Recognition.MaxConcurrent),
		speech.WithMetrics(deps.Metrics),
		speech.WithLogger(deps.Logger),
	)

	rt := &Router{
		mux:   chi.NewRouter(),
		cfg:   cfg,
		deps:  deps,
		guard: auth.NewGuard(deps.Keys),
		recognize: handlers.NewRecognizeHandler(
			speech.NewSizeGuard(cfg.Recognition.MaxAudioBytes),
			validator,
			dispatcher,
			deps.Usage,
			deps.Metrics,
			deps.Logger,
		),
	}
	if cfg.RateLimit.RPS > 0 {
		rt.limiter = middleware.NewRateLimiter(cfg.RateLimit.RPS, cfg.RateLimit.Burst)
	}
	return rt, nil
}

func (rt *Router) Setup() http.Handler {
	r := rt.mux

	// Global middleware
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logging(rt.deps.Logger))
	r.Use(middleware.Recover(rt.deps.Logger))
	r.Use(middleware.Metrics(rt.deps.Metrics))
	if len(rt.cfg.Server.CORSOrigins) > 0 {
		r.Use(middleware.CORS(rt.cfg.Server.CORSOrigins))
	}

	// Every route, including unknown ones, is behind the guard.
	r.Use(rt.guard.Authenticate)
	if rt.limiter != nil {
		r.Use(rt.limiter.Limit)
	}

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, apierror.New(apierror.KindNotFound, "Requested entity was not found."))
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		apierror.Write(w, apierror.New(apierror.KindMethodNotAllowed,
			fmt.Sprintf("Method %s is not supported for %s.", r.Method, r.URL.Path)))
	})

	health := handlers.NewHealthHandler(rt.deps.Readiness)
	r.Get("/health", health.Health)
	r.Get("/readyz", health.Readyz)
	r.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())

	r.Post("/recognize", rt.recognize.Recognize)

	if rt.deps.Counters != nil {
		usageH := handlers.NewUsageHandler(rt.deps.Counters, rt.deps.Logger)
		r.Get("/usage", usageH.Usage)
	}

	return otelhttp.NewHandler(r, "speech-gateway")
}

// Close stops background work and waits for pending usage records.
func (rt *Router) Close() {
	if rt.limiter != nil {
		rt.limiter.Stop()
	}
	rt.recognize.Wait()
}
