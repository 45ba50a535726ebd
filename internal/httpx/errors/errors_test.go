package errors

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestAppError_CopySemantics(t *testing.T) {
	base := ErrTenantFormatInvalid

	derived := base.WithDetail("tenant id contains ';'").WithTenant("bad;id").WithRequestID("req-1")

	// Las variables globales no deben mutar.
	require.Empty(t, base.Detail)
	require.Empty(t, base.TenantID)
	require.Equal(t, "tenant id contains ';'", derived.Detail)
	require.Equal(t, "bad;id", derived.TenantID)
	require.Equal(t, "req-1", derived.RequestID)
	require.Equal(t, base.Code, derived.Code)
}

func TestFromError_WrapsUnknown(t *testing.T) {
	cause := errors.New("pgx: broken pipe")
	appErr := FromError(cause)

	require.Equal(t, "INTERNAL_SERVER_ERROR", appErr.Code)
	require.ErrorIs(t, appErr, cause)
}

func TestWriteError_NeverLeaksCause(t *testing.T) {
	cause := errors.New("connect: connection refused on 10.0.0.3:5432")
	rec := httptest.NewRecorder()

	WriteError(rec, ErrDatabaseUnavailable.WithCause(cause).WithTenant("acme_corp").WithRequestID("req-9"))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, "DATABASE_UNAVAILABLE", body["code"])
	require.Equal(t, "acme_corp", body["tenant_id"])
	require.Equal(t, "req-9", body["request_id"])
	require.NotEmpty(t, body["timestamp"])
	require.NotContains(t, rec.Body.String(), "10.0.0.3")
}
