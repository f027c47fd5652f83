// Package httpapi serves the integration test engine over HTTP.
package httpapi

import (
	"context"
	stderrors "errors"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"missioncontrol/internal/store"
	"missioncontrol/internal/telemetry"
)

const shutdownTimeout = 5 * time.Second

// IntegrationService is the engine surface exposed over HTTP.
type IntegrationService interface {
	RunTest(ctx context.Context, id string) (store.Integration, error)
	List(ctx context.Context) ([]store.Integration, error)
	Get(ctx context.Context, id string) (store.Integration, error)
	History(ctx context.Context, id string, limit int) ([]store.HealthCheck, error)
}

// Pinger reports backing-store reachability for /healthz.
type Pinger interface {
	Ping(ctx context.Context) error
}

type Options struct {
	Addr    string
	Service IntegrationService
	// Events streams notifications at GET /events when set.
	Events http.Handler
	// MCP serves JSON-RPC tool calls at POST /mcp when set.
	MCP     http.Handler
	Metrics *telemetry.Metrics
	Pinger  Pinger
	Logger  zerolog.Logger
}

type Server struct {
	addr    string
	service IntegrationService
	events  http.Handler
	mcp     http.Handler
	metrics *telemetry.Metrics
	pinger  Pinger
	logger  zerolog.Logger
}

func NewServer(opts Options) *Server {
	s := &Server{
		addr:    opts.Addr,
		service: opts.Service,
		events:  opts.Events,
		mcp:     opts.MCP,
		metrics: opts.Metrics,
		pinger:  opts.Pinger,
		logger:  opts.Logger.With().Str("component", "http").Logger(),
	}
	if s.addr == "" {
		s.addr = ":8080"
	}
	if s.metrics == nil {
		s.metrics = &telemetry.Metrics{}
	}
	return s
}

// Handler returns the routed handler, wrapped with request logging.
func (s *Server) Handler() http.Handler {
	return s.logRequests(s.routes())
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	httpServer := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		if err := httpServer.ListenAndServe(); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	s.logger.Info().Str("addr", s.addr).Msg("listening")

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			s.logger.Warn().Err(err).Msg("shutdown incomplete")
		}
		<-errCh
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return err
	}
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", s.handleHealthz)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	mux.HandleFunc("GET /integrations", s.handleListIntegrations)
	mux.HandleFunc("GET /integrations/{id}", s.handleGetIntegration)
	mux.HandleFunc("POST /integrations/{id}/test", s.handleTestIntegration)
	mux.HandleFunc("GET /integrations/{id}/health-checks", s.handleHealthChecks)

	if s.events != nil {
		mux.Handle("GET /events", s.events)
	}
	if s.mcp != nil {
		mux.Handle("POST /mcp", s.mcp)
	}
	return mux
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps SSE streaming working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func (s *Server) logRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		s.logger.Debug().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", rec.status).
			Dur("elapsed", time.Since(start)).
			Msg("request")
	})
}
