package tenantsql

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
)

var (
	ErrAcquireTimeout   = errors.New("tenantsql: connection acquisition timed out")
	ErrCapacityExceeded = errors.New("tenantsql: global connection capacity exceeded")
	ErrManagerClosed    = errors.New("tenantsql: manager closed")
	ErrNoDeriver        = errors.New("tenantsql: schema deriver not configured")
)

// IsAcquireTimeout indica si el error corresponde a un pool saturado.
func IsAcquireTimeout(err error) bool { return errors.Is(err, ErrAcquireTimeout) }

// Config define parámetros del Manager.
type Config struct {
	// DSN del cluster compartido; los pools por tenant difieren solo en search_path.
	DSN string
	// DeriveSchema mapea un tenant id validado a su schema. Obligatorio.
	DeriveSchema func(tenantID string) string

	MaxConnsPerTenant  int
	MaxTotalConns      int
	IdleTimeout        time.Duration
	AcquisitionTimeout time.Duration
	ConnMaxLifetime    time.Duration

	// Migrations contiene los *_up.sql que provisionan un schema de tenant.
	Migrations fs.FS
}

// PoolStat es un snapshot del estado de un pool específico.
type PoolStat struct {
	Tenant   string
	Acquired int32
	Idle     int32
	Total    int32
	LastUsed time.Time
}

// Handle es el lease de uso exclusivo que devuelve Acquire. El holder es el
// único dueño de la conexión hasta Release; nunca se comparte entre requests
// ni entre tenants.
type Handle interface {
	// Conn expone la conexión subyacente para ejecutar queries.
	Conn() *pgxpool.Conn
	TenantID() string
	Admin() bool
	// Release devuelve la conexión a su pool (idempotente).
	Release()
}

// conn implementa Handle.
type conn struct {
	tenantID string
	admin    bool
	pc       *pgxpool.Conn
	release  func()
	once     sync.Once
}

func (c *conn) Conn() *pgxpool.Conn { return c.pc }
func (c *conn) TenantID() string    { return c.tenantID }
func (c *conn) Admin() bool         { return c.admin }

func (c *conn) Release() {
	c.once.Do(func() {
		if c.pc != nil {
			c.pc.Release()
		}
		if c.release != nil {
			c.release()
		}
	})
}

// tenantPool ata un pgxpool a un tenant. El handle queda ligado a un único
// tenant de por vida: el pool entero apunta al schema del tenant vía
// search_path, así que una conexión jamás puede cruzar de tenant.
type tenantPool struct {
	tenantID string
	schema   string
	pool     *pgxpool.Pool

	mu       sync.Mutex
	lastUsed time.Time
}

func (tp *tenantPool) touch() {
	tp.mu.Lock()
	tp.lastUsed = time.Now()
	tp.mu.Unlock()
}

func (tp *tenantPool) idleSince() time.Time {
	tp.mu.Lock()
	defer tp.mu.Unlock()
	return tp.lastUsed
}

// Manager administra pools de base de datos por tenant: creación on-demand
// bajo singleflight, cap por tenant (pgxpool) y cap global (semáforo
// ponderado), sweep de pools ociosos y teardown por tenant.
//
// El Manager acota y reusa; NO reintenta: una falla de adquisición se
// reporta tipada al caller y la política de retry es del caller.
type Manager struct {
	cfg Config

	sem *semaphore.Weighted
	sf  singleflight.Group

	mu     sync.RWMutex
	pools  map[string]*tenantPool
	admin  *pgxpool.Pool
	closed bool
}

// New crea un Manager y su pool administrativo (schema public), usado para
// chequeos de existencia y provisioning. No conecta eagerly.
func New(ctx context.Context, cfg Config) (*Manager, error) {
	if cfg.DeriveSchema == nil {
		return nil, ErrNoDeriver
	}
	if cfg.MaxConnsPerTenant <= 0 {
		cfg.MaxConnsPerTenant = 5
	}
	if cfg.MaxTotalConns <= 0 {
		cfg.MaxTotalConns = 100
	}
	if cfg.IdleTimeout <= 0 {
		cfg.IdleTimeout = 10 * time.Minute
	}
	if cfg.AcquisitionTimeout <= 0 {
		cfg.AcquisitionTimeout = 5 * time.Second
	}
	if cfg.ConnMaxLifetime <= 0 {
		cfg.ConnMaxLifetime = 30 * time.Minute
	}

	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("tenantsql: parse dsn: %w", err)
	}
	// El pool admin es chico: solo provisioning y chequeos de schema.
	pcfg.MaxConns = 4
	pcfg.MaxConnLifetime = cfg.ConnMaxLifetime
	pcfg.ConnConfig.RuntimeParams["search_path"] = "public"

	admin, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	return &Manager{
		cfg:   cfg,
		sem:   semaphore.NewWeighted(int64(cfg.MaxTotalConns)),
		pools: make(map[string]*tenantPool),
		admin: admin,
	}, nil
}

// Acquire entrega un Handle de uso exclusivo ligado al schema del tenant.
// Bloquea a lo sumo AcquisitionTimeout esperando cupo (global o por tenant);
// al vencer retorna ErrAcquireTimeout, nunca cuelga ni excede los caps.
func (m *Manager) Acquire(ctx context.Context, tenantID string, admin bool) (Handle, error) {
	m.mu.RLock()
	closed := m.closed
	m.mu.RUnlock()
	if closed {
		return nil, ErrManagerClosed
	}

	actx, cancel := context.WithTimeout(ctx, m.cfg.AcquisitionTimeout)
	defer cancel()

	start := time.Now()

	// Cap global primero: un tenant lento no puede acaparar más allá de su
	// cap por tenant, y el total del proceso queda acotado por el semáforo.
	if err := m.sem.Acquire(actx, 1); err != nil {
		metrics.PoolExhausted.WithLabelValues(tenantID).Inc()
		return nil, fmt.Errorf("%w: global capacity (%d) saturated for %s", ErrAcquireTimeout, m.cfg.MaxTotalConns, tenantID)
	}

	var (
		pool  *pgxpool.Pool
		tp    *tenantPool
		label = tenantID
	)
	if admin {
		pool = m.admin
		label = "admin"
	} else {
		var err error
		tp, err = m.getOrCreatePool(actx, tenantID)
		if err != nil {
			m.sem.Release(1)
			return nil, err
		}
		pool = tp.pool
		tp.touch()
	}

	pc, err := pool.Acquire(actx)
	if err != nil {
		m.sem.Release(1)
		if actx.Err() != nil {
			metrics.PoolExhausted.WithLabelValues(label).Inc()
			return nil, fmt.Errorf("%w: per-tenant capacity (%d) saturated for %s", ErrAcquireTimeout, m.cfg.MaxConnsPerTenant, tenantID)
		}
		return nil, fmt.Errorf("tenantsql: acquire for %s: %w", tenantID, err)
	}

	metrics.PoolAcquireLatency.Observe(float64(time.Since(start).Milliseconds()))

	return &conn{
		tenantID: tenantID,
		admin:    admin,
		pc:       pc,
		release: func() {
			if tp != nil {
				tp.touch()
			}
			m.sem.Release(1)
		},
	}, nil
}

func (m *Manager) getOrCreatePool(ctx context.Context, tenantID string) (*tenantPool, error) {
	m.mu.RLock()
	if tp, ok := m.pools[tenantID]; ok {
		m.mu.RUnlock()
		return tp, nil
	}
	m.mu.RUnlock()

	result, err, _ := m.sf.Do(tenantID, func() (interface{}, error) {
		// Re-check bajo singleflight: otro vuelo pudo habernos ganado.
		m.mu.RLock()
		if tp, ok := m.pools[tenantID]; ok {
			m.mu.RUnlock()
			return tp, nil
		}
		m.mu.RUnlock()

		tp, err := m.createPool(ctx, tenantID)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		if m.closed {
			m.mu.Unlock()
			tp.pool.Close()
			return nil, ErrManagerClosed
		}
		m.pools[tenantID] = tp
		m.mu.Unlock()
		return tp, nil
	})
	if err != nil {
		return nil, err
	}
	return result.(*tenantPool), nil
}

func (m *Manager) createPool(ctx context.Context, tenantID string) (*tenantPool, error) {
	schema := m.cfg.DeriveSchema(tenantID)

	pcfg, err := pgxpool.ParseConfig(m.cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("tenantsql: parse dsn: %w", err)
	}
	pcfg.MaxConns = int32(m.cfg.MaxConnsPerTenant)
	pcfg.MaxConnLifetime = m.cfg.ConnMaxLifetime
	pcfg.MaxConnIdleTime = m.cfg.IdleTimeout
	// search_path fijo por pool: toda conexión de este pool nace ligada al
	// schema del tenant. El schema viene del Deriver sobre un id ya validado
	// (charset [A-Za-z0-9_]), así que es seguro como identificador.
	pcfg.ConnConfig.RuntimeParams["search_path"] = pgIdentifier(schema)

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, err
	}

	logger.L().Info("tenant pool ready",
		logger.Component("tenantsql"),
		logger.TenantID(tenantID),
		logger.SchemaName(schema),
		logger.Int("max_conns", m.cfg.MaxConnsPerTenant),
	)

	return &tenantPool{
		tenantID: tenantID,
		schema:   schema,
		pool:     pool,
		lastUsed: time.Now(),
	}, nil
}

// CleanupIdle cierra pools sin conexiones adquiridas cuyo último uso superó
// IdleTimeout. Corre en background (StartCleanup), nunca en el request path.
// Retorna cuántos pools cerró.
func (m *Manager) CleanupIdle() int {
	cutoff := time.Now().Add(-m.cfg.IdleTimeout)

	m.mu.Lock()
	var victims []*tenantPool
	for id, tp := range m.pools {
		if tp == nil || tp.pool == nil {
			delete(m.pools, id)
			continue
		}
		if tp.idleSince().Before(cutoff) && tp.pool.Stat().AcquiredConns() == 0 {
			victims = append(victims, tp)
			delete(m.pools, id)
		}
	}
	m.mu.Unlock()

	for _, tp := range victims {
		tp.pool.Close()
		logger.L().Debug("idle tenant pool closed",
			logger.Component("tenantsql"),
			logger.TenantID(tp.tenantID),
		)
	}
	return len(victims)
}

// StartCleanup lanza el sweep periódico de pools ociosos hasta que ctx termine.
func (m *Manager) StartCleanup(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupIdle()
			}
		}
	}()
}

// CleanupTenant fuerza el cierre de todas las conexiones de un tenant
// (deprovisioning o recuperación de errores).
func (m *Manager) CleanupTenant(tenantID string) {
	m.mu.Lock()
	tp := m.pools[tenantID]
	delete(m.pools, tenantID)
	m.mu.Unlock()

	if tp != nil && tp.pool != nil {
		tp.pool.Close()
		logger.L().Info("tenant pool closed",
			logger.Component("tenantsql"),
			logger.TenantID(tenantID),
		)
	}
}

// PoolCount retorna el número de pools de tenant activos.
func (m *Manager) PoolCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.pools)
}

// Stats devuelve un snapshot con el estado actual de cada pool.
func (m *Manager) Stats() map[string]PoolStat {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]PoolStat, len(m.pools))
	for id, tp := range m.pools {
		if tp == nil || tp.pool == nil {
			continue
		}
		stat := tp.pool.Stat()
		out[id] = PoolStat{
			Tenant:   id,
			Acquired: stat.AcquiredConns(),
			Idle:     stat.IdleConns(),
			Total:    stat.TotalConns(),
			LastUsed: tp.idleSince(),
		}
	}
	return out
}

// AdminPool expone el pool administrativo (health checks y collectors).
func (m *Manager) AdminPool() *pgxpool.Pool {
	return m.admin
}

// Close cierra todos los pools activos, incluido el administrativo.
func (m *Manager) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	pools := m.pools
	m.pools = make(map[string]*tenantPool)
	m.mu.Unlock()

	for _, tp := range pools {
		if tp != nil && tp.pool != nil {
			tp.pool.Close()
		}
	}
	if m.admin != nil {
		m.admin.Close()
	}
	return nil
}

// pgIdentifier sanitiza un string para usarlo como identificador Postgres.
func pgIdentifier(s string) string {
	return `"` + strings.ReplaceAll(s, `"`, `""`) + `"`
}
