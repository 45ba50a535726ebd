package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config agrupa toda la configuración del servicio. Se lee una sola vez al
// arranque; ningún componente re-valida estos valores por request.
type Config struct {
	// Bloque app (opcional en YAML). Si no está, queda vacío.
	App struct {
		// dev | staging | prod
		Env string `yaml:"app_env"`
	} `yaml:"app"`

	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`

	Log struct {
		Level string `yaml:"level"`
	} `yaml:"log"`

	Storage struct {
		// DSN del cluster Postgres compartido; cada tenant vive en su propio schema.
		DSN      string `yaml:"dsn"`
		Postgres struct {
			ConnMaxLifetime string `yaml:"conn_max_lifetime"`
		} `yaml:"postgres"`
	} `yaml:"storage"`

	Tenant struct {
		// Prefijo fijo para derivar el nombre de schema: {prefix}{tenant_id}.
		SchemaPrefix      string `yaml:"schema_prefix"`
		MaxTenantIDLength int    `yaml:"max_tenant_id_length"`
		// Si es true, el primer request de un tenant desconocido provisiona su schema.
		AutoProvision bool `yaml:"auto_provision"`

		ValidationCache struct {
			// memory | redis
			Driver string `yaml:"driver"`
			TTL    string `yaml:"ttl"`
			Size   int    `yaml:"size"`
			Redis  struct {
				Addr     string `yaml:"addr"`
				Password string `yaml:"password"`
				DB       int    `yaml:"db"`
				Prefix   string `yaml:"prefix"`
			} `yaml:"redis"`
		} `yaml:"validation_cache"`

		CreationLockTimeout string `yaml:"creation_lock_timeout"`
	} `yaml:"tenant"`

	Pool struct {
		MaxConnsPerTenant  int    `yaml:"max_conns_per_tenant"`
		MaxTotalConns      int    `yaml:"max_total_conns"`
		IdleTimeout        string `yaml:"idle_timeout"`
		AcquisitionTimeout string `yaml:"acquisition_timeout"`
		// Intervalo del sweep de pools ociosos (background, fuera del request path).
		CleanupInterval string `yaml:"cleanup_interval"`
	} `yaml:"pool"`

	Filter struct {
		MaxDepth        int    `yaml:"max_depth"`
		MaxNodes        int    `yaml:"max_nodes"`
		CompileCacheTTL string `yaml:"compile_cache_ttl"`
	} `yaml:"filter"`
}

// Load lee el YAML, aplica defaults y overrides de entorno.
func Load(path string) (*Config, error) {
	var c Config
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := yaml.Unmarshal(b, &c); err != nil {
			return nil, err
		}
	}

	// sane defaults
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Tenant.SchemaPrefix == "" {
		c.Tenant.SchemaPrefix = "crmx_database_"
	}
	if c.Tenant.MaxTenantIDLength == 0 {
		c.Tenant.MaxTenantIDLength = 63
	}
	if c.Tenant.ValidationCache.Driver == "" {
		c.Tenant.ValidationCache.Driver = "memory"
	}
	if c.Tenant.ValidationCache.TTL == "" {
		c.Tenant.ValidationCache.TTL = "5m"
	}
	if c.Tenant.ValidationCache.Size == 0 {
		c.Tenant.ValidationCache.Size = 4096
	}
	if c.Tenant.CreationLockTimeout == "" {
		c.Tenant.CreationLockTimeout = "30s"
	}
	if c.Pool.MaxConnsPerTenant == 0 {
		c.Pool.MaxConnsPerTenant = 5
	}
	if c.Pool.MaxTotalConns == 0 {
		c.Pool.MaxTotalConns = 100
	}
	if c.Pool.IdleTimeout == "" {
		c.Pool.IdleTimeout = "10m"
	}
	if c.Pool.AcquisitionTimeout == "" {
		c.Pool.AcquisitionTimeout = "5s"
	}
	if c.Pool.CleanupInterval == "" {
		c.Pool.CleanupInterval = "1m"
	}
	if c.Filter.MaxDepth == 0 {
		c.Filter.MaxDepth = 8
	}
	if c.Filter.MaxNodes == 0 {
		c.Filter.MaxNodes = 64
	}
	if c.Filter.CompileCacheTTL == "" {
		c.Filter.CompileCacheTTL = "2m"
	}
	if c.Storage.Postgres.ConnMaxLifetime == "" {
		c.Storage.Postgres.ConnMaxLifetime = "30m"
	}

	c.applyEnvOverrides()

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

func getEnvStr(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	return strings.TrimSpace(v), ok && strings.TrimSpace(v) != ""
}

func getEnvInt(key string) (int, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

func getEnvBool(key string) (bool, bool) {
	v, ok := getEnvStr(key)
	if !ok {
		return false, false
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, false
	}
	return b, true
}

// applyEnvOverrides permite pisar valores del YAML con variables de entorno.
// Convención: CRMX_<SECCION>_<CAMPO>.
func (c *Config) applyEnvOverrides() {
	if v, ok := getEnvStr("CRMX_APP_ENV"); ok {
		c.App.Env = v
	}
	if v, ok := getEnvStr("CRMX_SERVER_ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := getEnvStr("CRMX_LOG_LEVEL"); ok {
		c.Log.Level = v
	}
	if v, ok := getEnvStr("CRMX_STORAGE_DSN"); ok {
		c.Storage.DSN = v
	}
	if v, ok := getEnvStr("CRMX_SCHEMA_PREFIX"); ok {
		c.Tenant.SchemaPrefix = v
	}
	if v, ok := getEnvInt("CRMX_MAX_TENANT_ID_LENGTH"); ok {
		c.Tenant.MaxTenantIDLength = v
	}
	if v, ok := getEnvBool("CRMX_TENANT_AUTO_PROVISION"); ok {
		c.Tenant.AutoProvision = v
	}
	if v, ok := getEnvStr("CRMX_VALIDATION_CACHE_DRIVER"); ok {
		c.Tenant.ValidationCache.Driver = v
	}
	if v, ok := getEnvStr("CRMX_VALIDATION_CACHE_TTL"); ok {
		c.Tenant.ValidationCache.TTL = v
	}
	if v, ok := getEnvInt("CRMX_VALIDATION_CACHE_SIZE"); ok {
		c.Tenant.ValidationCache.Size = v
	}
	if v, ok := getEnvStr("CRMX_VALIDATION_CACHE_REDIS_ADDR"); ok {
		c.Tenant.ValidationCache.Redis.Addr = v
	}
	if v, ok := getEnvStr("CRMX_CREATION_LOCK_TIMEOUT"); ok {
		c.Tenant.CreationLockTimeout = v
	}
	if v, ok := getEnvInt("CRMX_POOL_MAX_CONNS_PER_TENANT"); ok {
		c.Pool.MaxConnsPerTenant = v
	}
	if v, ok := getEnvInt("CRMX_POOL_MAX_TOTAL_CONNS"); ok {
		c.Pool.MaxTotalConns = v
	}
	if v, ok := getEnvStr("CRMX_POOL_IDLE_TIMEOUT"); ok {
		c.Pool.IdleTimeout = v
	}
	if v, ok := getEnvStr("CRMX_POOL_ACQUISITION_TIMEOUT"); ok {
		c.Pool.AcquisitionTimeout = v
	}
}

// Validate verifica que las duraciones en string parseen y que los límites
// numéricos sean coherentes entre sí.
func (c *Config) Validate() error {
	for name, v := range map[string]string{
		"tenant.validation_cache.ttl":        c.Tenant.ValidationCache.TTL,
		"tenant.creation_lock_timeout":       c.Tenant.CreationLockTimeout,
		"pool.idle_timeout":                  c.Pool.IdleTimeout,
		"pool.acquisition_timeout":           c.Pool.AcquisitionTimeout,
		"pool.cleanup_interval":              c.Pool.CleanupInterval,
		"filter.compile_cache_ttl":           c.Filter.CompileCacheTTL,
		"storage.postgres.conn_max_lifetime": c.Storage.Postgres.ConnMaxLifetime,
	} {
		if _, err := time.ParseDuration(v); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	if c.Pool.MaxConnsPerTenant > c.Pool.MaxTotalConns {
		return fmt.Errorf("config: pool.max_conns_per_tenant (%d) exceeds pool.max_total_conns (%d)",
			c.Pool.MaxConnsPerTenant, c.Pool.MaxTotalConns)
	}
	if c.Tenant.MaxTenantIDLength < 1 || c.Tenant.MaxTenantIDLength > 63 {
		return fmt.Errorf("config: tenant.max_tenant_id_length must be 1..63, got %d", c.Tenant.MaxTenantIDLength)
	}
	return nil
}

// Duration helpers: las secciones guardan strings para que el YAML sea legible;
// estos accessors devuelven el valor ya parseado (Validate garantiza que parsean).

func mustDur(s string) time.Duration {
	d, _ := time.ParseDuration(s)
	return d
}

func (c *Config) ValidationCacheTTL() time.Duration  { return mustDur(c.Tenant.ValidationCache.TTL) }
func (c *Config) CreationLockTimeout() time.Duration { return mustDur(c.Tenant.CreationLockTimeout) }
func (c *Config) IdleTimeout() time.Duration         { return mustDur(c.Pool.IdleTimeout) }
func (c *Config) AcquisitionTimeout() time.Duration  { return mustDur(c.Pool.AcquisitionTimeout) }
func (c *Config) CleanupInterval() time.Duration     { return mustDur(c.Pool.CleanupInterval) }
func (c *Config) CompileCacheTTL() time.Duration     { return mustDur(c.Filter.CompileCacheTTL) }
func (c *Config) ConnMaxLifetime() time.Duration     { return mustDur(c.Storage.Postgres.ConnMaxLifetime) }
