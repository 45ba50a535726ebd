package tenant

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"

	apperrors "github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx/errors"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
)

// ---------------------------------------------------------------------------------
// Fakes
// ---------------------------------------------------------------------------------

type fakeHandle struct {
	tenantID string
	released atomic.Bool
}

func (h *fakeHandle) Conn() *pgxpool.Conn { return nil }
func (h *fakeHandle) TenantID() string    { return h.tenantID }
func (h *fakeHandle) Admin() bool         { return false }
func (h *fakeHandle) Release()            { h.released.Store(true) }

// fakeSource simula el pool manager con estado de schemas en memoria.
type fakeSource struct {
	mu      sync.Mutex
	schemas map[string]bool

	existsCalls    atomic.Int32
	provisionCalls atomic.Int32

	existsErr    error
	provisionErr error
	acquireErr   error
	// provisionDelay simula un provisioning lento para forzar contención.
	provisionDelay time.Duration
}

func newFakeSource(existing ...string) *fakeSource {
	s := &fakeSource{schemas: make(map[string]bool)}
	for _, name := range existing {
		s.schemas[name] = true
	}
	return s
}

func (s *fakeSource) Acquire(ctx context.Context, tenantID string, admin bool) (tenantsql.Handle, error) {
	if s.acquireErr != nil {
		return nil, s.acquireErr
	}
	return &fakeHandle{tenantID: tenantID}, nil
}

func (s *fakeSource) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	s.existsCalls.Add(1)
	if s.existsErr != nil {
		return false, s.existsErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schemas[schemaName], nil
}

func (s *fakeSource) ProvisionSchema(ctx context.Context, tenantID, schemaName string) (bool, error) {
	s.provisionCalls.Add(1)
	if s.provisionDelay > 0 {
		time.Sleep(s.provisionDelay)
	}
	if s.provisionErr != nil {
		return false, s.provisionErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.schemas[schemaName] {
		return false, nil
	}
	s.schemas[schemaName] = true
	return true, nil
}

func newTestResolver(t *testing.T, src ConnSource, autoProvision bool) *Resolver {
	t.Helper()
	cache, err := schemacache.New(schemacache.Config{Driver: "memory", TTL: time.Minute, Size: 64})
	require.NoError(t, err)
	t.Cleanup(func() { _ = cache.Close() })

	r, err := NewResolver(ResolverConfig{
		Validator:     NewValidator(DefaultMaxIDLength),
		Deriver:       NewDeriver(DefaultSchemaPrefix),
		Cache:         cache,
		Source:        src,
		Locks:         NewLockRegistry(30 * time.Second),
		AutoProvision: autoProvision,
		LockWait:      2 * time.Second,
	})
	require.NoError(t, err)
	return r
}

func requireAppError(t *testing.T, err error, code string, status int) *apperrors.AppError {
	t.Helper()
	var appErr *apperrors.AppError
	require.ErrorAs(t, err, &appErr)
	require.Equal(t, code, appErr.Code)
	require.Equal(t, status, appErr.HTTPStatus)
	return appErr
}

// ---------------------------------------------------------------------------------
// Validación del header
// ---------------------------------------------------------------------------------

func TestResolve_HeaderErrors(t *testing.T) {
	r := newTestResolver(t, newFakeSource(), true)
	ctx := context.Background()

	cases := []struct {
		name string
		raw  string
		code string
	}{
		{"missing", "", "TENANT_HEADER_MISSING"},
		{"empty", "   ", "TENANT_HEADER_EMPTY"},
		{"bad charset", "acme;drop", "TENANT_FORMAT_INVALID"},
		{"hyphen", "acme-corp", "TENANT_FORMAT_INVALID"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, _, err := r.Resolve(ctx, tc.raw, "req-1")
			appErr := requireAppError(t, err, tc.code, 400)
			require.Equal(t, "req-1", appErr.RequestID)
		})
	}
}

// ---------------------------------------------------------------------------------
// Camino feliz + cache
// ---------------------------------------------------------------------------------

func TestResolve_KnownTenant(t *testing.T) {
	src := newFakeSource("crmx_database_acme")
	r := newTestResolver(t, src, true)

	tc, h, err := r.Resolve(context.Background(), "acme", "req-7")
	require.NoError(t, err)
	defer h.Release()

	require.Equal(t, "acme", tc.TenantID)
	require.Equal(t, "crmx_database_acme", tc.SchemaName)
	require.True(t, tc.IsValidated)
	require.Equal(t, "req-7", tc.RequestID)
	require.False(t, tc.CreatedAt.IsZero())
	require.Equal(t, "acme", h.TenantID())
}

func TestResolve_TrimsHeaderWhitespace(t *testing.T) {
	src := newFakeSource("crmx_database_acme")
	r := newTestResolver(t, src, true)

	tc, h, err := r.Resolve(context.Background(), "  acme  ", "req-1")
	require.NoError(t, err)
	defer h.Release()
	require.Equal(t, "acme", tc.TenantID)
}

func TestResolve_CacheHitSkipsExistenceCheck(t *testing.T) {
	src := newFakeSource("crmx_database_acme")
	r := newTestResolver(t, src, true)
	ctx := context.Background()

	_, h1, err := r.Resolve(ctx, "acme", "req-1")
	require.NoError(t, err)
	h1.Release()
	require.EqualValues(t, 1, src.existsCalls.Load())

	_, h2, err := r.Resolve(ctx, "acme", "req-2")
	require.NoError(t, err)
	h2.Release()
	require.EqualValues(t, 1, src.existsCalls.Load(),
		"second resolution must be served from the validation cache")
}

func TestResolve_ExistenceCheckFailureIs500(t *testing.T) {
	src := newFakeSource()
	src.existsErr = errors.New("connection refused")
	r := newTestResolver(t, src, true)

	_, _, err := r.Resolve(context.Background(), "acme", "req-1")
	appErr := requireAppError(t, err, "SCHEMA_VALIDATION_FAILED", 500)
	require.Equal(t, "acme", appErr.TenantID)
}

// ---------------------------------------------------------------------------------
// Auto-provisioning
// ---------------------------------------------------------------------------------

func TestResolve_UnknownTenantProvisionsWhenEnabled(t *testing.T) {
	src := newFakeSource()
	r := newTestResolver(t, src, true)

	tc, h, err := r.Resolve(context.Background(), "nuevo", "req-1")
	require.NoError(t, err)
	defer h.Release()

	require.Equal(t, "crmx_database_nuevo", tc.SchemaName)
	require.EqualValues(t, 1, src.provisionCalls.Load())
}

func TestResolve_UnknownTenantIs404WithoutAutoProvision(t *testing.T) {
	src := newFakeSource()
	r := newTestResolver(t, src, false)

	_, _, err := r.Resolve(context.Background(), "ghost", "req-1")
	requireAppError(t, err, "TENANT_NOT_FOUND", 404)
	require.EqualValues(t, 0, src.provisionCalls.Load())
}

func TestResolve_ProvisionFailureIs500AndCacheStaysClean(t *testing.T) {
	src := newFakeSource()
	src.provisionErr = errors.New("DDL failed")
	r := newTestResolver(t, src, true)
	ctx := context.Background()

	_, _, err := r.Resolve(ctx, "acme", "req-1")
	requireAppError(t, err, "SCHEMA_OPERATION_FAILED", 500)

	// El siguiente request no debe encontrar un "exists=true" fantasma.
	src.provisionErr = nil
	_, h, err := r.Resolve(ctx, "acme", "req-2")
	require.NoError(t, err)
	h.Release()
	require.EqualValues(t, 2, src.provisionCalls.Load())
}

func TestResolve_ConcurrentFirstRequestsProvisionOnce(t *testing.T) {
	src := newFakeSource()
	src.provisionDelay = 50 * time.Millisecond
	r := newTestResolver(t, src, true)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, h, err := r.Resolve(context.Background(), "acme", "req")
			errs[i] = err
			if err == nil {
				h.Release()
			}
		}(i)
	}
	wg.Wait()

	require.EqualValues(t, 1, src.provisionCalls.Load(),
		"exactly one schema-creation attempt across concurrent first requests")
	for i, err := range errs {
		require.NoError(t, err, "request %d", i)
	}
}

// ---------------------------------------------------------------------------------
// Adquisición de conexión
// ---------------------------------------------------------------------------------

func TestResolve_PoolTimeoutIs503(t *testing.T) {
	src := newFakeSource("crmx_database_acme")
	src.acquireErr = tenantsql.ErrAcquireTimeout
	r := newTestResolver(t, src, true)

	_, _, err := r.Resolve(context.Background(), "acme", "req-1")
	requireAppError(t, err, "POOL_EXHAUSTED", 503)
}

func TestResolve_GenericAcquireFailureIs503Unavailable(t *testing.T) {
	src := newFakeSource("crmx_database_acme")
	src.acquireErr = errors.New("dial tcp: connection refused")
	r := newTestResolver(t, src, true)

	_, _, err := r.Resolve(context.Background(), "acme", "req-1")
	requireAppError(t, err, "DATABASE_UNAVAILABLE", 503)
}
