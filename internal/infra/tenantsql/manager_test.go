package tenantsql

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestProvisionLockID_StableAndDistinct(t *testing.T) {
	a1 := provisionLockID("acme_corp")
	a2 := provisionLockID("acme_corp")
	b := provisionLockID("other_tenant")

	require.Equal(t, a1, a2, "lock id must be deterministic per tenant")
	require.NotEqual(t, a1, b)
}

func TestPgIdentifier_Quoting(t *testing.T) {
	require.Equal(t, `"crmx_database_acme"`, pgIdentifier("crmx_database_acme"))
	// Las comillas embebidas se escapan doblándolas.
	require.Equal(t, `"evil""name"`, pgIdentifier(`evil"name`))
}

func TestNew_RequiresDeriver(t *testing.T) {
	_, err := New(context.Background(), Config{DSN: "postgres://localhost/crmx"})
	require.ErrorIs(t, err, ErrNoDeriver)
}

func TestNew_Defaults(t *testing.T) {
	m, err := New(context.Background(), Config{
		DSN:          "postgres://localhost:5432/crmx",
		DeriveSchema: func(id string) string { return "crmx_database_" + id },
	})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	require.Equal(t, 5, m.cfg.MaxConnsPerTenant)
	require.Equal(t, 100, m.cfg.MaxTotalConns)
	require.Equal(t, 10*time.Minute, m.cfg.IdleTimeout)
	require.Equal(t, 5*time.Second, m.cfg.AcquisitionTimeout)
}

func TestHandle_ReleaseIsIdempotent(t *testing.T) {
	var releases int
	c := &conn{
		tenantID: "acme",
		release:  func() { releases++ },
	}

	c.Release()
	c.Release()
	c.Release()

	require.Equal(t, 1, releases, "double release must not double-free the global slot")
}

func TestCleanupIdle_DropsStaleEntries(t *testing.T) {
	m, err := New(context.Background(), Config{
		DSN:          "postgres://localhost:5432/crmx",
		DeriveSchema: func(id string) string { return "crmx_database_" + id },
		IdleTimeout:  time.Minute,
	})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	// Entradas corruptas (pool nil) se purgan sin panic.
	m.mu.Lock()
	m.pools["ghost"] = &tenantPool{tenantID: "ghost"}
	m.mu.Unlock()

	require.Equal(t, 0, m.CleanupIdle())
	require.Equal(t, 0, m.PoolCount())
}

func TestAcquire_AfterCloseFails(t *testing.T) {
	m, err := New(context.Background(), Config{
		DSN:          "postgres://localhost:5432/crmx",
		DeriveSchema: func(id string) string { return "crmx_database_" + id },
	})
	require.NoError(t, err)
	require.NoError(t, m.Close())

	_, err = m.Acquire(context.Background(), "acme", false)
	require.ErrorIs(t, err, ErrManagerClosed)
}

func TestAcquire_GlobalCapBoundsWait(t *testing.T) {
	m, err := New(context.Background(), Config{
		DSN:                "postgres://localhost:5432/crmx",
		DeriveSchema:       func(id string) string { return "crmx_database_" + id },
		MaxTotalConns:      1,
		MaxConnsPerTenant:  1,
		AcquisitionTimeout: 80 * time.Millisecond,
	})
	require.NoError(t, err)
	defer func() { _ = m.Close() }()

	// Ocupamos el único cupo global directamente; el Acquire siguiente debe
	// esperar a lo sumo AcquisitionTimeout y fallar tipado, sin exceder el cap.
	require.NoError(t, m.sem.Acquire(context.Background(), 1))
	defer m.sem.Release(1)

	start := time.Now()
	_, err = m.Acquire(context.Background(), "acme", false)
	require.ErrorIs(t, err, ErrAcquireTimeout)
	require.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	require.Less(t, time.Since(start), 2*time.Second)
}
