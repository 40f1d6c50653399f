// Package api serves the solver boundary over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"vrpengine/internal/auth"
	"vrpengine/internal/boundary"
	"vrpengine/internal/logging"
	"vrpengine/internal/metrics"
	"vrpengine/internal/progress"
	"vrpengine/internal/store"
	"vrpengine/internal/webhooks"
)

// Check reports whether a dependency is ready to serve.
type Check func(ctx context.Context) error

type Server struct {
	Engine *boundary.Engine
	Store  store.Store
	Broker progress.Broker
	Pub    *webhooks.Publisher
	Auth   *auth.Verifier
	Log    logrus.FieldLogger

	// Limiter throttles the /v1 endpoints; nil disables throttling.
	Limiter      *rate.Limiter
	MaxBodyBytes int64
	Checks       map[string]Check
}

// Options configure NewServer.
type Options struct {
	WebhookSecret string
	RateLimit     float64
	RateBurst     int
	MaxBodyBytes  int64
	Auth          *auth.Verifier
	Log           logrus.FieldLogger
	Checks        map[string]Check
}

// NewServer wires a server around an engine. Store and broker are taken from the engine
// so status, progress and telemetry all see the same records.
func NewServer(e *boundary.Engine, o Options) *Server {
	s := &Server{
		Engine:       e,
		Store:        e.Store(),
		Broker:       e.Broker(),
		Pub:          webhooks.NewPublisher(e.Store(), o.WebhookSecret),
		Auth:         o.Auth,
		Log:          o.Log,
		MaxBodyBytes: o.MaxBodyBytes,
		Checks:       o.Checks,
	}
	if s.Log == nil {
		s.Log = logging.Discard()
	}
	if s.Auth == nil {
		s.Auth, _ = auth.New(auth.ModeNone, "")
	}
	if s.MaxBodyBytes <= 0 {
		s.MaxBodyBytes = 32 << 20
	}
	if o.RateLimit > 0 {
		burst := o.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.Limiter = rate.NewLimiter(rate.Limit(o.RateLimit), burst)
	}
	return s
}

// Routes returns the complete handler of the server.
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.Handle("POST /v1/routing-locations", s.limited(s.RoutingLocationsHandler))
	mux.Handle("POST /v1/convert", s.limited(s.ConvertHandler))
	mux.Handle("POST /v1/solve", s.limited(s.SolveHandler))
	mux.Handle("GET /v1/solves/{id}", s.limited(s.SolveStatusHandler))
	mux.Handle("DELETE /v1/solves/{id}", s.limited(s.CancelSolveHandler))
	mux.HandleFunc("GET /v1/solves/{id}/progress", s.ProgressHandler)

	mux.Handle("GET /v1/admin/solves", s.admin(s.ListSolvesHandler))
	mux.Handle("GET /v1/admin/solves/{id}/webhook-deliveries", s.admin(s.WebhookDeliveriesHandler))

	mux.HandleFunc("GET /v1/version", s.VersionHandler)
	mux.HandleFunc("GET /openapi.yaml", s.OpenAPIHandler)
	mux.HandleFunc("GET /openapi.json", s.OpenAPIJSONHandler)
	mux.HandleFunc("GET /healthz", s.HealthHandler)
	mux.HandleFunc("GET /readyz", s.ReadyHandler)
	mux.Handle("GET /metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	return s.logMiddleware(mux)
}
