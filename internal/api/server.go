package api

import (
	"context"
	"encoding/json"
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	temporalclient "go.temporal.io/sdk/client"

	"github.com/edvin/warroom/internal/api/handler"
	mw "github.com/edvin/warroom/internal/api/middleware"
)

// Pinger is a dependency checked by /readyz.
type Pinger interface {
	Ping(ctx context.Context) error
}

// TemporalPinger checks the Temporal frontend.
type TemporalPinger struct {
	Client temporalclient.Client
}

func (p TemporalPinger) Ping(ctx context.Context) error {
	_, err := p.Client.CheckHealth(ctx, &temporalclient.CheckHealthRequest{})
	return err
}

// Services are the backends the HTTP handlers call.
type Services struct {
	Runner       handler.Runner
	Orchestrator handler.Orchestrator
	Resources    handler.ResourceReader
	Gate         handler.Gate
	Scanner      handler.Scanner
	Loop         handler.ScanLoop
}

type Server struct {
	router   chi.Router
	logger   zerolog.Logger
	services Services
	checks   map[string]Pinger
}

// NewServer builds the router. Every entry in checks must answer for /readyz
// to report ready.
func NewServer(logger zerolog.Logger, services Services, checks map[string]Pinger) *Server {
	s := &Server{
		router:   chi.NewRouter(),
		logger:   logger,
		services: services,
		checks:   checks,
	}

	s.setupMiddleware()
	s.setupRoutes()

	return s
}

func (s *Server) setupMiddleware() {
	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(mw.RequestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(mw.Metrics)
}

func (s *Server) setupRoutes() {
	// Prometheus metrics endpoint
	s.router.Handle("/metrics", promhttp.Handler())

	// Health check endpoints
	s.router.Get("/healthz", s.handleHealthz)
	s.router.Get("/readyz", s.handleReadyz)

	s.router.Route("/api/v1", func(r chi.Router) {
		wf := handler.NewWorkflow(s.services.Runner)
		r.Post("/workflow/run", wf.Run)
		r.Get("/workflow/graph", wf.Graph)

		orch := handler.NewOrchestrate(s.services.Orchestrator)
		r.Post("/orchestrate", orch.Create)

		res := handler.NewResource(s.services.Resources)
		r.Get("/resources", res.List)

		incidents := handler.NewIncident(s.services.Loop)
		r.Get("/incidents", incidents.List)

		status := handler.NewStatus(s.services.Loop, s.services.Gate)
		r.Get("/status", status.Get)

		approvals := handler.NewApproval(s.services.Gate)
		r.Get("/approvals", approvals.List)
		r.Get("/approvals/{incidentID}", approvals.Get)
		r.Post("/approvals/{incidentID}/approve", approvals.Approve)
		r.Post("/approvals/{incidentID}/reject", approvals.Reject)
		r.Post("/approvals/{incidentID}/redeliver", approvals.Redeliver)

		scan := handler.NewScan(s.services.Scanner, s.services.Loop)
		r.Post("/scan", scan.Run)
		r.Post("/scan/start", scan.Start)
		r.Post("/scan/stop", scan.Stop)
		r.Post("/scan/trigger", scan.Trigger)
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) handleReadyz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	checks := map[string]string{}
	healthy := true
	for _, name := range names {
		if err := s.checks[name].Ping(ctx); err != nil {
			s.logger.Warn().Err(err).Str("check", name).Msg("readiness check failed")
			checks[name] = err.Error()
			healthy = false
		} else {
			checks[name] = "ok"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if healthy {
		w.WriteHeader(http.StatusOK)
	} else {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(checks)
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
