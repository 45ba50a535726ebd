package middlewares

import (
	"net/http"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
)

// TenantHeader es el header que identifica al tenant del request.
const TenantHeader = "Tenant"

// WithTenant resuelve el binding tenant→schema para cada request y deja
// en el contexto el tenant.Context más la conexión adquirida del pool
// del tenant. La conexión se libera acá al terminar el request: los
// handlers la usan vía GetConn y nunca llaman Release.
//
// Cualquier falla de resolución corta el request con el error tipado del
// resolver; no llega nada al handler sin binding validado.
func WithTenant(resolver *tenant.Resolver) Middleware {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			requestID := GetRequestID(r.Context())

			tc, h, err := resolver.Resolve(r.Context(), r.Header.Get(TenantHeader), requestID)
			if err != nil {
				apperrors.WriteError(w, err)
				return
			}
			defer h.Release()

			reqLog := logger.From(r.Context()).With(
				logger.TenantID(tc.TenantID),
				logger.SchemaName(tc.SchemaName),
			)
			ctx := logger.ToContext(r.Context(), reqLog)
			ctx = setTenant(ctx, tc, h)

			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
