package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func writeYAML(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	p := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestLoad_Defaults(t *testing.T) {
	p := writeYAML(t, "storage:\n  dsn: postgres://localhost/crmx\n")

	c, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, ":8080", c.Server.Addr)
	require.Equal(t, "crmx_database_", c.Tenant.SchemaPrefix)
	require.Equal(t, 63, c.Tenant.MaxTenantIDLength)
	require.Equal(t, "memory", c.Tenant.ValidationCache.Driver)
	require.Equal(t, 5*time.Minute, c.ValidationCacheTTL())
	require.Equal(t, 4096, c.Tenant.ValidationCache.Size)
	require.Equal(t, 5, c.Pool.MaxConnsPerTenant)
	require.Equal(t, 100, c.Pool.MaxTotalConns)
	require.Equal(t, 5*time.Second, c.AcquisitionTimeout())
	require.Equal(t, 10*time.Minute, c.IdleTimeout())
	require.Equal(t, 30*time.Second, c.CreationLockTimeout())
	require.Equal(t, 8, c.Filter.MaxDepth)
}

func TestLoad_EnvOverrides(t *testing.T) {
	p := writeYAML(t, "pool:\n  max_total_conns: 50\n")

	t.Setenv("CRMX_SCHEMA_PREFIX", "acme_db_")
	t.Setenv("CRMX_POOL_MAX_CONNS_PER_TENANT", "7")
	t.Setenv("CRMX_POOL_ACQUISITION_TIMEOUT", "250ms")
	t.Setenv("CRMX_TENANT_AUTO_PROVISION", "true")

	c, err := Load(p)
	require.NoError(t, err)

	require.Equal(t, "acme_db_", c.Tenant.SchemaPrefix)
	require.Equal(t, 7, c.Pool.MaxConnsPerTenant)
	require.Equal(t, 50, c.Pool.MaxTotalConns)
	require.Equal(t, 250*time.Millisecond, c.AcquisitionTimeout())
	require.True(t, c.Tenant.AutoProvision)
}

func TestLoad_InvalidDuration(t *testing.T) {
	p := writeYAML(t, "pool:\n  idle_timeout: nope\n")

	_, err := Load(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "pool.idle_timeout")
}

func TestValidate_PerTenantCapAboveGlobal(t *testing.T) {
	p := writeYAML(t, "pool:\n  max_conns_per_tenant: 20\n  max_total_conns: 10\n")

	_, err := Load(p)
	require.Error(t, err)
	require.Contains(t, err.Error(), "max_conns_per_tenant")
}
