package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Moadams/ProjectTracker/internal/audit"
	"github.com/Moadams/ProjectTracker/internal/auth"
	"github.com/Moadams/ProjectTracker/internal/obs"
	"github.com/Moadams/ProjectTracker/internal/project"
)

const serviceName = "projecttracker"

// ReadinessChecker reports whether backing stores are reachable.
type ReadinessChecker interface {
	Check(ctx context.Context) error
}

// PingFunc adapts a ping function such as (*pg.Store).Ping.
type PingFunc func(ctx context.Context) error

// Check calls f. A nil PingFunc is always ready.
func (f PingFunc) Check(ctx context.Context) error {
	if f == nil {
		return nil
	}
	return f(ctx)
}

// Deps are the services the HTTP layer fronts.
type Deps struct {
	Auth     *auth.Orchestrator
	Projects *project.Service
	AuditLog audit.Store
	Audit    *audit.Sink
	Ready    ReadinessChecker
}

// API: HTTP слой.
type API struct {
	router  chi.Router
	deps    Deps
	version string

	rateBurst       int
	rateRPS         int
	federatedSecret string
	origins         []string
}

// Option configures API behavior.
type Option func(*API)

// WithRateLimit configures the per-client limiter guarding /auth.
func WithRateLimit(burst, perSecond int) Option {
	return func(a *API) {
		a.rateBurst = burst
		a.rateRPS = perSecond
	}
}

// WithFederatedSecret enables POST /auth/federated behind a shared header secret.
func WithFederatedSecret(secret string) Option {
	return func(a *API) { a.federatedSecret = strings.TrimSpace(secret) }
}

// WithAllowedOrigins replaces the CORS allow list.
func WithAllowedOrigins(origins []string) Option {
	return func(a *API) { a.origins = origins }
}

// New builds the router. deps.Auth is required; a nil Projects or AuditLog
// leaves the corresponding routes unmounted.
func New(deps Deps, version string, opts ...Option) *API {
	a := &API{
		deps:      deps,
		version:   version,
		rateBurst: 10,
		rateRPS:   5,
		origins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.deps.Ready == nil {
		a.deps.Ready = PingFunc(nil)
	}
	a.router = a.routes()
	return a
}

// Handler возвращает http.Handler для сервера.
func (a *API) Handler() http.Handler {
	return a.router
}

func (a *API) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(RequestContext)
	r.Use(obs.Instrument)
	r.Use(Logging)
	r.Use(middleware.Recoverer)
	r.Use(SecurityHeaders)
	r.Use(CORS(a.origins))

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusNotFound, "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, r, http.StatusMethodNotAllowed, "method not allowed")
	})

	// health/ready/info
	r.Get("/healthz", a.Healthz)
	r.Get("/readyz", a.Ready)
	r.Get("/v1/info", a.Info)

	// Prometheus metrics
	r.Method(http.MethodGet, "/metrics", obs.Handler())

	authenticated := Authenticate(a.deps.Auth, a.deps.Audit)

	r.Route("/auth", func(r chi.Router) {
		r.Use(RateLimit(a.rateBurst, a.rateRPS))
		r.Post("/register", a.handleRegister)
		r.Post("/login", a.handleLogin)
		r.Post("/refresh", a.handleRefresh)
		if a.federatedSecret != "" {
			r.Post("/federated", a.handleFederated)
		}
		r.With(authenticated).Get("/users/me", a.handleMe)
	})

	if a.deps.AuditLog != nil {
		r.With(authenticated, RequireRole(a.deps.Audit, auth.RoleAdmin, auth.RoleManager)).
			Get("/audit-logs", a.handleAuditLogs)
	}

	if a.deps.Projects != nil {
		r.Route("/projects", func(r chi.Router) {
			r.Use(authenticated)
			writers := RequireRole(a.deps.Audit, auth.RoleAdmin, auth.RoleManager)

			r.Get("/", a.handleListProjects)
			r.With(writers).Post("/", a.handleCreateProject)
			r.Get("/overdue", a.handleOverdueProjects)
			r.Get("/{id}", a.handleGetProject)
			r.With(writers).Put("/{id}", a.handleUpdateProject)
			r.With(RequireRole(a.deps.Audit, auth.RoleAdmin)).Delete("/{id}", a.handleDeleteProject)
		})
	}

	return r
}

// --- Handlers ---

func (a *API) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"service": serviceName,
		"version": a.version,
	})
}

func (a *API) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()
	if err := a.deps.Ready.Check(ctx); err != nil {
		obs.SetReady(false)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{
			"status": "not_ready",
			"error":  err.Error(),
		})
		return
	}
	obs.SetReady(true)
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ready",
	})
}

func (a *API) Info(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"name":    serviceName,
		"time":    time.Now().UTC().Format(time.RFC3339),
		"version": a.version,
	})
}
