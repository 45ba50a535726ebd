package httpx

import (
	"context"
	"net/http"
	"time"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
)

// Healthz responde liveness: el proceso está arriba.
func Healthz(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// Readyz responde readiness: el datastore contesta por el pool admin.
func Readyz(m *tenantsql.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := m.AdminPool().Ping(ctx); err != nil {
			apperrors.WriteError(w, apperrors.ErrDatabaseUnavailable.WithCause(err))
			return
		}
		WriteJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}
