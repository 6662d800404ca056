// Package httpapi exposes the executor's operator-facing HTTP surface:
// health (/healthz), Prometheus metrics, and JWT-protected admin endpoints
// for circuit-breaker overrides and manual DLQ replay (spec.md §4.3, §4.1;
// supplemented per SPEC_FULL.md §3). Grounded on gateway/routes/router.go's
// chi wiring and gateway/middleware/auth.go's bearer-JWT middleware.
package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"nhbchain/execcore/breaker"
	"nhbchain/execcore/dlq"
)

// HealthCheck reports whether one named dependency is currently healthy.
type HealthCheck func() (healthy bool, detail string)

// Config wires the collaborators the admin/health surface needs.
type Config struct {
	Breakers      map[string]*breaker.Breaker // keyed by chain
	DLQ           *dlq.Manager
	HealthChecks  map[string]HealthCheck
	JWTSecret     string
}

// Server owns the chi router for the operator HTTP surface.
type Server struct {
	cfg  Config
	auth *Authenticator
}

// New constructs the chi router. The returned handler is ready to pass to
// http.Server.
func New(cfg Config) http.Handler {
	s := &Server{cfg: cfg, auth: NewAuthenticator(cfg.JWTSecret)}
	limiter := newRateLimit(0, 0)

	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealthz)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/admin", func(ar chi.Router) {
		ar.Use(s.auth.Middleware, limiter.Middleware)
		ar.Post("/breaker/force-open", s.handleBreakerForceOpen)
		ar.Post("/breaker/force-close", s.handleBreakerForceClose)
		ar.Post("/dlq/replay/{id}", s.handleDLQReplay)
	})

	return r
}

type healthzResponse struct {
	Status string                    `json:"status"`
	Checks map[string]checkResponse `json:"checks"`
}

type checkResponse struct {
	Healthy bool   `json:"healthy"`
	Detail  string `json:"detail,omitempty"`
}

func (s *Server) handleHealthz(w http.ResponseWriter, r *http.Request) {
	resp := healthzResponse{Status: "ok", Checks: make(map[string]checkResponse)}
	for name, check := range s.cfg.HealthChecks {
		healthy, detail := check()
		resp.Checks[name] = checkResponse{Healthy: healthy, Detail: detail}
		if !healthy {
			resp.Status = "degraded"
		}
	}
	for chain, b := range s.cfg.Breakers {
		state := b.State()
		resp.Checks["breaker:"+chain] = checkResponse{Healthy: state != breaker.StateOpen, Detail: string(state)}
		if state == breaker.StateOpen {
			resp.Status = "degraded"
		}
	}

	w.Header().Set("Content-Type", "application/json")
	if resp.Status != "ok" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}

type breakerRequest struct {
	Chain string `json:"chain"`
}

func (s *Server) handleBreakerForceOpen(w http.ResponseWriter, r *http.Request) {
	s.withBreaker(w, r, func(b *breaker.Breaker) { b.ForceOpen() })
}

func (s *Server) handleBreakerForceClose(w http.ResponseWriter, r *http.Request) {
	s.withBreaker(w, r, func(b *breaker.Breaker) { b.ForceClose() })
}

func (s *Server) withBreaker(w http.ResponseWriter, r *http.Request, apply func(*breaker.Breaker)) {
	var req breakerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Chain == "" {
		http.Error(w, "request body must be {\"chain\": \"...\"}", http.StatusBadRequest)
		return
	}
	b, ok := s.cfg.Breakers[req.Chain]
	if !ok {
		http.Error(w, "unknown chain", http.StatusNotFound)
		return
	}
	apply(b)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDLQReplay(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if id == "" {
		http.Error(w, "missing entry id", http.StatusBadRequest)
		return
	}
	if s.cfg.DLQ == nil {
		http.Error(w, "dlq manager not configured", http.StatusServiceUnavailable)
		return
	}
	if err := s.cfg.DLQ.ReplayByID(r.Context(), id); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
