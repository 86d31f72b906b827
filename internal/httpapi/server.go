// Package httpapi exposes balances, projections and the two money-moving
// operations (transfer, settlement) over HTTP.
package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/fluxo-dev/fluxo/internal/auditlog"
	"github.com/fluxo-dev/fluxo/internal/balance"
	"github.com/fluxo-dev/fluxo/internal/ledger"
	"github.com/fluxo-dev/fluxo/internal/obligations"
	"github.com/fluxo-dev/fluxo/internal/projection"
)

// Deps are the services behind the API.
type Deps struct {
	Ledger        *ledger.Service
	Balances      *balance.Service
	Obligations   *obligations.Service
	Projection    *projection.Service
	Metrics       *Metrics
	Log           zerolog.Logger
	DefaultWindow projection.Window
	// Audit, when set, is called after every successful write.
	Audit func(tenantID string, e auditlog.Entry)
	Now   func() time.Time
}

// Server is the HTTP surface.
type Server struct {
	deps Deps
}

// New creates a Server. Missing optional deps get defaults.
func New(deps Deps) *Server {
	if deps.Metrics == nil {
		deps.Metrics = NewMetrics()
	}
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.DefaultWindow == "" {
		deps.DefaultWindow = projection.Window30d
	}
	return &Server{deps: deps}
}

// Router builds the chi router.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(s.deps.Metrics.Middleware)

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Method(http.MethodGet, "/metrics", s.deps.Metrics.Handler())

	r.Route("/v1/tenants/{tenant}", func(r chi.Router) {
		r.Get("/accounts/{id}/balance", s.handleBalance)
		r.Get("/balances", s.handleBalances)
		r.Get("/projection", s.handleProjection)
		r.Get("/summary", s.handleSummary)
		r.Post("/transfers", s.handleTransfer)
		r.Post("/{kind:payables|receivables}/{id}/settle", s.handleSettle)
	})
	return r
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		s.deps.Log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("http request")
	})
}

func (s *Server) audit(tenantID string, e auditlog.Entry) {
	if s.deps.Audit == nil {
		return
	}
	e.Timestamp = s.deps.Now().UTC()
	e.Actor = "api"
	s.deps.Audit(tenantID, e)
}
