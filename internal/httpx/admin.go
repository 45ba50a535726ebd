package httpx

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/middlewares"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
)

// AdminController expone el plano de operaciones: provisioning explícito,
// estado de pools y teardown de conexiones por tenant. No pasa por el
// middleware de tenant; el id viene en el path.
type AdminController struct {
	Manager   *tenantsql.Manager
	Cache     schemacache.Client
	Validator *tenant.Validator
	Deriver   *tenant.Deriver
}

func (c *AdminController) tenantID(w http.ResponseWriter, r *http.Request) (string, bool) {
	id, err := c.Validator.Validate(chi.URLParam(r, "id"))
	if err != nil {
		c.writeError(w, r, apperrors.ErrTenantFormatInvalid.WithDetail(err.Error()))
		return "", false
	}
	return id, true
}

// Provision maneja POST /admin/tenants/{id}/provision: crea el schema y
// corre migraciones si hace falta, idempotente.
func (c *AdminController) Provision(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	schema := c.Deriver.SchemaName(id)

	created, err := c.Manager.ProvisionSchema(r.Context(), id, schema)
	if err != nil {
		logger.From(r.Context()).Error("admin provision failed",
			logger.TenantID(id), logger.Err(err))
		c.writeError(w, r, apperrors.ErrSchemaOperationFailed.WithCause(err).WithTenant(id))
		return
	}
	c.Cache.Set(r.Context(), id, true)

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	WriteJSON(w, status, map[string]any{
		"tenant":  id,
		"schema":  schema,
		"created": created,
	})
}

// Deprovision maneja DELETE /admin/tenants/{id}: elimina el schema del
// tenant con su contenido, cierra su pool e invalida el cache.
func (c *AdminController) Deprovision(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	schema := c.Deriver.SchemaName(id)

	c.Manager.CleanupTenant(id)
	if err := c.Manager.DropSchema(r.Context(), schema); err != nil {
		c.writeError(w, r, apperrors.ErrSchemaOperationFailed.WithCause(err).WithTenant(id))
		return
	}
	c.Cache.Invalidate(r.Context(), id)

	logger.From(r.Context()).Info("tenant deprovisioned",
		logger.TenantID(id), logger.SchemaName(schema))
	w.WriteHeader(http.StatusNoContent)
}

// DropConnections maneja DELETE /admin/tenants/{id}/connections: cierra
// el pool del tenant sin tocar sus datos (recuperación de errores).
func (c *AdminController) DropConnections(w http.ResponseWriter, r *http.Request) {
	id, ok := c.tenantID(w, r)
	if !ok {
		return
	}
	c.Manager.CleanupTenant(id)
	w.WriteHeader(http.StatusNoContent)
}

// Pools maneja GET /admin/pools: snapshot del estado de cada pool más la
// actividad del cache de validación.
func (c *AdminController) Pools(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]any{
		"count":        c.Manager.PoolCount(),
		"pools":        c.Manager.Stats(),
		"schema_cache": c.Cache.Stats(),
	})
}

func (c *AdminController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromError(err)
	if rid := middlewares.GetRequestID(r.Context()); rid != "" && appErr.RequestID == "" {
		appErr = appErr.WithRequestID(rid)
	}
	apperrors.WriteError(w, appErr)
}
