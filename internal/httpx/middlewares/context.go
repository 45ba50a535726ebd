package middlewares

import (
	"context"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
)

type requestIDKey struct{}
type tenantCtxKey struct{}
type tenantConnKey struct{}

func setRequestID(ctx context.Context, rid string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, rid)
}

// GetRequestID extrae el request id del contexto ("" si no hay).
func GetRequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

func setTenant(ctx context.Context, tc *tenant.Context, h tenantsql.Handle) context.Context {
	ctx = context.WithValue(ctx, tenantCtxKey{}, tc)
	return context.WithValue(ctx, tenantConnKey{}, h)
}

// GetTenant extrae el binding tenant→schema del request (nil fuera del
// scope del middleware de tenant).
func GetTenant(ctx context.Context) *tenant.Context {
	if v, ok := ctx.Value(tenantCtxKey{}).(*tenant.Context); ok {
		return v
	}
	return nil
}

// GetConn extrae la conexión del tenant adquirida para este request.
// La libera el middleware al final del request; los handlers NO llaman
// Release.
func GetConn(ctx context.Context) tenantsql.Handle {
	if v, ok := ctx.Value(tenantConnKey{}).(tenantsql.Handle); ok {
		return v
	}
	return nil
}
