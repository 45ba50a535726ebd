package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/middlewares"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
)

// RouterDeps agrupa las dependencias del router principal.
type RouterDeps struct {
	Manager   *tenantsql.Manager
	Resolver  *tenant.Resolver
	Compiler  *filter.Compiler
	Cache     schemacache.Client
	Validator *tenant.Validator
	Deriver   *tenant.Deriver

	// MetricsHandler sirve /metrics; viene de RegisterMetrics.
	MetricsHandler http.Handler
}

// NewRouter arma el router completo: observabilidad global, superficie
// /api/v1 detrás del middleware de tenant, y el plano admin sin tenant.
func NewRouter(deps RouterDeps) *chi.Mux {
	r := chi.NewRouter()

	r.Use(middlewares.WithRequestID())
	r.Use(middlewares.WithLogging())
	r.Use(WithMetrics)

	r.Get("/healthz", Healthz)
	r.Get("/readyz", Readyz(deps.Manager))
	if deps.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", deps.MetricsHandler)
	}

	records := &RecordsController{Compiler: deps.Compiler}
	r.Route("/api/v1", func(api chi.Router) {
		api.Use(middlewares.WithTenant(deps.Resolver))
		api.Get("/{entity}", records.List)
		api.Get("/{entity}/{id}", records.Get)
	})

	admin := &AdminController{
		Manager:   deps.Manager,
		Cache:     deps.Cache,
		Validator: deps.Validator,
		Deriver:   deps.Deriver,
	}
	r.Route("/admin", func(ops chi.Router) {
		ops.Post("/tenants/{id}/provision", admin.Provision)
		ops.Delete("/tenants/{id}", admin.Deprovision)
		ops.Delete("/tenants/{id}/connections", admin.DropConnections)
		ops.Get("/pools", admin.Pools)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apperrors.WriteError(w, apperrors.ErrRouteNotFound)
	})

	return r
}
