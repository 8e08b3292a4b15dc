// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/phucmetlamroi/agency-manager/internal/domain/types"
	"github.com/phucmetlamroi/agency-manager/pkg/logger"
)

// RunTrigger starts one scoring run and reports its outcome.
type RunTrigger interface {
	Trigger(ctx context.Context) (types.RunReport, error)
}

// Server wires HTTP routes for the scoring API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	scoringHandler *ScoringHandler
	metricsHandler http.Handler
}

// Option configures the Server.
type Option func(*serverOptions)

type serverOptions struct {
	cronSecret string
	logger     logger.Logger
}

// WithCronSecret requires "Authorization: Bearer <secret>" on the trigger.
// An empty secret leaves the trigger open.
func WithCronSecret(secret string) Option {
	return func(o *serverOptions) {
		o.cronSecret = secret
	}
}

// WithLogger sets a custom logger.
func WithLogger(l logger.Logger) Option {
	return func(o *serverOptions) {
		if l != nil {
			o.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(trigger RunTrigger, statsProvider StatsProvider, opts ...Option) *Server {
	o := serverOptions{}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = logger.Get().Named("api")
	}

	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(statsProvider),
		scoringHandler: NewScoringHandler(trigger, o.cronSecret, o.logger),
		metricsHandler: NewMetricsHandler(),
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/api/scoring", MetricsMiddleware(s.scoringHandler.HandleTrigger, "scoring"))
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/metrics", MetricsMiddleware(s.metricsHandler.ServeHTTP, "metrics"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	RunID   string `json:"run_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}
