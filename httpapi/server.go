// Package httpapi exposes the gateway's OpenAI-compatible HTTP surface:
// chat completions (blocking and streaming), session management, model
// and tool listings, and liveness/readiness probes.
package httpapi

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/kevin-toles/llm-gateway/gwlog"
	"github.com/kevin-toles/llm-gateway/orchestrator"
	"github.com/kevin-toles/llm-gateway/provider"
	"github.com/kevin-toles/llm-gateway/ratelimit"
	"github.com/kevin-toles/llm-gateway/session"
	"github.com/kevin-toles/llm-gateway/tools"
)

// MetricsRecorder is the narrow recording surface the rate-limit
// middleware reports rejections to. metrics.Collector satisfies it via
// duck typing.
type MetricsRecorder interface {
	RecordRateLimitRejection(key string)
}

// Server is the gateway's HTTP front end.
type Server struct {
	router   *provider.Router
	orch     *orchestrator.Orchestrator
	sessions *session.Manager
	tools    *tools.Registry
	executor *tools.Executor
	limiter  *ratelimit.Limiter
	log      gwlog.Logger

	cmsEnabled bool
	jwtSecret  []byte
	metrics    http.Handler
	recorder   MetricsRecorder

	addr       string
	httpServer *http.Server
}

// Config holds the dependencies and tuning knobs Server needs to build its
// route tree.
type Config struct {
	Addr       string
	Router     *provider.Router
	Orch       *orchestrator.Orchestrator
	Sessions   *session.Manager
	Tools      *tools.Registry
	Executor   *tools.Executor
	Limiter    *ratelimit.Limiter
	Log        gwlog.Logger
	CMSEnabled bool
	JWTSecret  []byte
	// Metrics, if non-nil, is mounted at GET /metrics verbatim (typically
	// promhttp.Handler()).
	Metrics http.Handler
	// MetricsRecorder, if non-nil, receives rate-limit rejection counts
	// from the rate-limit middleware. Typically the same *metrics.Collector
	// backing Metrics.
	MetricsRecorder MetricsRecorder
}

// NewServer constructs a Server. Any nil Log defaults to gwlog.NoopLogger.
func NewServer(cfg Config) *Server {
	log := cfg.Log
	if log == nil {
		log = gwlog.NoopLogger{}
	}
	return &Server{
		router:     cfg.Router,
		orch:       cfg.Orch,
		sessions:   cfg.Sessions,
		tools:      cfg.Tools,
		executor:   cfg.Executor,
		limiter:    cfg.Limiter,
		log:        log,
		cmsEnabled: cfg.CMSEnabled,
		jwtSecret:  cfg.JWTSecret,
		metrics:    cfg.Metrics,
		recorder:   cfg.MetricsRecorder,
		addr:       cfg.Addr,
	}
}

// Handler builds the full route tree with its middleware chain. Exposed
// directly so tests can exercise it with httptest.NewServer without
// going through ListenAndServe.
func (s *Server) Handler() http.Handler {
	return s.routes()
}

// ListenAndServe starts the HTTP server and blocks until ctx is canceled,
// then gracefully drains in-flight requests.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streaming responses must not be cut off
		IdleTimeout:  120 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Info(ctx, "http server starting", gwlog.F("addr", s.addr))
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- fmt.Errorf("listen and serve: %w", err)
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return s.httpServer.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}
