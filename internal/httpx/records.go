package httpx

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/middlewares"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/query"
)

// RecordsController sirve los listados y lecturas de entidades CRM sobre
// la conexión del tenant ya resuelta por el middleware.
type RecordsController struct {
	Compiler *filter.Compiler
}

// listResponse es el envelope de los listados.
type listResponse struct {
	Data   []map[string]any `json:"data"`
	Total  int64            `json:"total"`
	Limit  int              `json:"limit"`
	Offset int              `json:"offset"`
}

// List maneja GET /api/v1/{entity}.
func (c *RecordsController) List(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")
	if !filter.KnownEntity(entity) {
		c.writeError(w, r, apperrors.ErrRouteNotFound.WithDetail("unknown entity "+entity))
		return
	}

	page, err := query.ParsePage(r.URL.Query(), entity)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	rawFilter := r.URL.Query().Get("filter")
	preds, err := c.Compiler.Compile(rawFilter, entity)
	if err != nil {
		logger.From(ctx).Warn("filter rejected",
			logger.Entity(entity), logger.Filter(rawFilter), logger.Err(err))
		c.writeError(w, r, filterToAppError(err))
		return
	}

	h := middlewares.GetConn(ctx)
	if h == nil {
		c.writeError(w, r, apperrors.ErrInternalServerError.WithDetail("no tenant connection in request scope"))
		return
	}

	rows, total, err := query.List(ctx, h.Conn(), entity, preds, page)
	if err != nil {
		c.writeError(w, r, err)
		return
	}

	WriteJSON(w, http.StatusOK, listResponse{
		Data:   rows,
		Total:  total,
		Limit:  page.Limit,
		Offset: page.Offset,
	})
}

// Get maneja GET /api/v1/{entity}/{id}.
func (c *RecordsController) Get(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	entity := chi.URLParam(r, "entity")
	if !filter.KnownEntity(entity) {
		c.writeError(w, r, apperrors.ErrRouteNotFound.WithDetail("unknown entity "+entity))
		return
	}

	h := middlewares.GetConn(ctx)
	if h == nil {
		c.writeError(w, r, apperrors.ErrInternalServerError.WithDetail("no tenant connection in request scope"))
		return
	}

	record, err := query.Get(ctx, h.Conn(), entity, chi.URLParam(r, "id"))
	if err != nil {
		c.writeError(w, r, err)
		return
	}
	WriteJSON(w, http.StatusOK, record)
}

// writeError adjunta tenant y request id antes de serializar.
func (c *RecordsController) writeError(w http.ResponseWriter, r *http.Request, err error) {
	appErr := apperrors.FromError(err)
	if tc := middlewares.GetTenant(r.Context()); tc != nil && appErr.TenantID == "" {
		appErr = appErr.WithTenant(tc.TenantID)
	}
	if rid := middlewares.GetRequestID(r.Context()); rid != "" && appErr.RequestID == "" {
		appErr = appErr.WithRequestID(rid)
	}
	apperrors.WriteError(w, appErr)
}

// filterToAppError traduce los errores tipados del compilador de filtros
// a la taxonomía HTTP, conservando el detalle posicional.
func filterToAppError(err error) error {
	var ferr *filter.Error
	if !errors.As(err, &ferr) {
		return apperrors.ErrFilterSyntax.WithCause(err)
	}

	var base *apperrors.AppError
	switch ferr.Code {
	case filter.CodeUnknownField:
		base = apperrors.ErrFilterUnknownField
	case filter.CodeOperatorMismatch:
		base = apperrors.ErrFilterOperatorMismatch
	case filter.CodeInvalidLiteral:
		base = apperrors.ErrFilterInvalidLiteral
	case filter.CodeTooComplex:
		base = apperrors.ErrFilterTooComplex
	default:
		base = apperrors.ErrFilterSyntax
	}
	return base.WithDetail(ferr.Detail)
}
