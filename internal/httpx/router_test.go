package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
)

// stubHandle satisface tenantsql.Handle sin datastore.
type stubHandle struct{ tenantID string }

func (h *stubHandle) Conn() *pgxpool.Conn { return nil }
func (h *stubHandle) TenantID() string    { return h.tenantID }
func (h *stubHandle) Admin() bool         { return false }
func (h *stubHandle) Release()            {}

// stubSource resuelve cualquier tenant como existente.
type stubSource struct{}

func (stubSource) Acquire(ctx context.Context, tenantID string, admin bool) (tenantsql.Handle, error) {
	return &stubHandle{tenantID: tenantID}, nil
}
func (stubSource) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	return true, nil
}
func (stubSource) ProvisionSchema(ctx context.Context, tenantID, schemaName string) (bool, error) {
	return true, nil
}

func newTestRouter(t *testing.T) http.Handler {
	t.Helper()

	cache, err := schemacache.New(schemacache.Config{Driver: "memory", TTL: time.Minute, Size: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	validator := tenant.NewValidator(tenant.DefaultMaxIDLength)
	deriver := tenant.NewDeriver(tenant.DefaultSchemaPrefix)

	resolver, err := tenant.NewResolver(tenant.ResolverConfig{
		Validator:     validator,
		Deriver:       deriver,
		Cache:         cache,
		Source:        stubSource{},
		Locks:         tenant.NewLockRegistry(30 * time.Second),
		AutoProvision: true,
	})
	require.NoError(t, err)

	mgr, err := tenantsql.New(context.Background(), tenantsql.Config{
		DSN:          "postgres://localhost:5432/crmx",
		DeriveSchema: deriver.SchemaName,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = mgr.Close() })

	return NewRouter(RouterDeps{
		Manager:   mgr,
		Resolver:  resolver,
		Compiler:  filter.New(filter.Config{MaxDepth: 8, MaxNodes: 64}),
		Cache:     cache,
		Validator: validator,
		Deriver:   deriver,
	})
}

type errorBody struct {
	Code      string `json:"code"`
	RequestID string `json:"request_id"`
	TenantID  string `json:"tenant_id"`
	Detail    string `json:"detail"`
}

func doRequest(t *testing.T, h http.Handler, method, path string, headers map[string]string) (*httptest.ResponseRecorder, errorBody) {
	t.Helper()
	req := httptest.NewRequest(method, path, nil)
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var body errorBody
	_ = json.Unmarshal(rec.Body.Bytes(), &body)
	return rec, body
}

func TestRouter_Healthz(t *testing.T) {
	rec, _ := doRequest(t, newTestRouter(t), http.MethodGet, "/healthz", nil)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestRouter_MissingTenantHeader(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodGet, "/api/v1/account", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "TENANT_HEADER_MISSING", body.Code)
	require.NotEmpty(t, body.RequestID, "error body must carry the correlation id")
}

func TestRouter_MalformedTenantHeader(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodGet, "/api/v1/account",
		map[string]string{"Tenant": "acme;drop"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "TENANT_FORMAT_INVALID", body.Code)
}

func TestRouter_UnknownEntityIs404(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodGet, "/api/v1/invoice",
		map[string]string{"Tenant": "acme"})
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "ROUTE_NOT_FOUND", body.Code)
}

func TestRouter_FilterErrorsMapToTaxonomy(t *testing.T) {
	router := newTestRouter(t)
	cases := []struct {
		name   string
		query  string
		code   string
		status int
	}{
		{"unknown field", `filter=unknownField%20%3D%20%22x%22`, "FILTER_UNKNOWN_FIELD", 400},
		{"syntax", `filter=status%20%3D`, "FILTER_SYNTAX_INVALID", 400},
		{"bad literal", `filter=active%20%3D%20%22yes%22`, "FILTER_INVALID_LITERAL", 400},
		{"operator mismatch", `filter=annual_revenue%20LIKE%20%225%25%22`, "FILTER_OPERATOR_MISMATCH", 400},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec, body := doRequest(t, router, http.MethodGet, "/api/v1/account?"+tc.query,
				map[string]string{"Tenant": "acme"})
			require.Equal(t, tc.status, rec.Code)
			require.Equal(t, tc.code, body.Code)
			require.Equal(t, "acme", body.TenantID)
		})
	}
}

func TestRouter_InvalidPaginationParameter(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodGet, "/api/v1/account?limit=-5",
		map[string]string{"Tenant": "acme"})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "INVALID_PARAMETER", body.Code)
}

func TestRouter_UnknownRoute(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodGet, "/nope", nil)
	require.Equal(t, http.StatusNotFound, rec.Code)
	require.Equal(t, "ROUTE_NOT_FOUND", body.Code)
}

func TestRouter_AdminPoolsSnapshot(t *testing.T) {
	rec, _ := doRequest(t, newTestRouter(t), http.MethodGet, "/admin/pools", nil)
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Count int            `json:"count"`
		Pools map[string]any `json:"pools"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Zero(t, body.Count)
}

func TestRouter_AdminRejectsMalformedTenantID(t *testing.T) {
	rec, body := doRequest(t, newTestRouter(t), http.MethodPost, "/admin/tenants/bad%3Bid/provision", nil)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	require.Equal(t, "TENANT_FORMAT_INVALID", body.Code)
}

func TestRouter_RequestIDPropagation(t *testing.T) {
	router := newTestRouter(t)

	rec, _ := doRequest(t, router, http.MethodGet, "/healthz", nil)
	require.NotEmpty(t, rec.Header().Get("X-Request-ID"))

	rec, _ = doRequest(t, router, http.MethodGet, "/healthz",
		map[string]string{"X-Request-ID": "fixed-id"})
	require.Equal(t, "fixed-id", rec.Header().Get("X-Request-ID"))
}
