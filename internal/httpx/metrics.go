package httpx

import (
	"net/http"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
)

var (
	metricsOnce sync.Once
	metricsErr  error

	// HTTP metrics
	httpRequestsTotal   *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	httpInflight        *prometheus.GaugeVec
)

// MetricsConfig agrupa dependencias necesarias para exponer /metrics y capturar datos.
type MetricsConfig struct {
	Registry      prometheus.Registerer
	TenantManager *tenantsql.Manager
	AdminPool     func() *pgxpool.Pool
}

// RegisterMetrics inicializa las métricas HTTP, registra las métricas del
// core y un collector para los pools por tenant. Devuelve el handler
// para /metrics.
func RegisterMetrics(cfg MetricsConfig) (http.Handler, error) {
	registry := cfg.Registry
	if registry == nil {
		registry = prometheus.DefaultRegisterer
	}

	metricsOnce.Do(func() {
		httpRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Número total de requests procesadas",
		}, []string{"method", "path", "status"})

		httpRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Latencia de los requests HTTP",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "path"})

		httpInflight = prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "http_inflight_requests",
			Help: "Requests en vuelo por método y ruta",
		}, []string{"method", "path"})

		for _, c := range []prometheus.Collector{httpRequestsTotal, httpRequestDuration, httpInflight} {
			if err := metrics.Register(registry, c); err != nil {
				metricsErr = err
				return
			}
		}
		metricsErr = metrics.RegisterCore(registry)
	})
	if metricsErr != nil {
		return nil, metricsErr
	}

	if cfg.TenantManager != nil || cfg.AdminPool != nil {
		collector := newDBPoolCollector(cfg.AdminPool, cfg.TenantManager)
		if err := metrics.Register(registry, collector); err != nil {
			return nil, err
		}
	}

	// Usamos el gatherer global por compatibilidad, ya que las métricas se registran allí.
	return promhttp.Handler(), nil
}

// WithMetrics instrumenta requests HTTP con métricas Prometheus (contadores, latencia, inflight).
func WithMetrics(next http.Handler) http.Handler {
	if next == nil {
		return nil
	}
	if httpRequestsTotal == nil || httpRequestDuration == nil || httpInflight == nil {
		return next
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		method := strings.ToUpper(r.Method)
		pathLabel := normalizePath(r.URL.Path)

		httpInflight.WithLabelValues(method, pathLabel).Inc()
		start := time.Now()

		rec := &metricsRecorder{ResponseWriter: w}
		defer func() {
			httpInflight.WithLabelValues(method, pathLabel).Dec()
			duration := time.Since(start).Seconds()
			httpRequestDuration.WithLabelValues(method, pathLabel).Observe(duration)

			status := rec.status
			if status == 0 {
				status = http.StatusOK
			}
			httpRequestsTotal.WithLabelValues(method, pathLabel, strconv.Itoa(status)).Inc()
		}()

		next.ServeHTTP(rec, r)
	})
}

type metricsRecorder struct {
	http.ResponseWriter
	status int
}

func (r *metricsRecorder) WriteHeader(code int) {
	if r.status == 0 {
		r.status = code
	}
	r.ResponseWriter.WriteHeader(code)
}

// dbPoolCollector expone gauges para el pool admin y los pools por tenant.
type dbPoolCollector struct {
	tenantMgr *tenantsql.Manager
	adminPool func() *pgxpool.Pool

	tenantCountDesc    *prometheus.Desc
	tenantAcquiredDesc *prometheus.Desc
	tenantIdleDesc     *prometheus.Desc
	tenantTotalDesc    *prometheus.Desc

	adminAcquiredDesc *prometheus.Desc
	adminIdleDesc     *prometheus.Desc
	adminTotalDesc    *prometheus.Desc
}

func newDBPoolCollector(admin func() *pgxpool.Pool, mgr *tenantsql.Manager) *dbPoolCollector {
	return &dbPoolCollector{
		tenantMgr:          mgr,
		adminPool:          admin,
		tenantCountDesc:    prometheus.NewDesc("tenant_pool_count", "Cantidad de pools de tenants activos", nil, nil),
		tenantAcquiredDesc: prometheus.NewDesc("tenant_pgxpool_acquired", "Conexiones adquiridas por tenant", []string{"tenant"}, nil),
		tenantIdleDesc:     prometheus.NewDesc("tenant_pgxpool_idle", "Conexiones inactivas por tenant", []string{"tenant"}, nil),
		tenantTotalDesc:    prometheus.NewDesc("tenant_pgxpool_total", "Conexiones totales por tenant", []string{"tenant"}, nil),
		adminAcquiredDesc:  prometheus.NewDesc("pg_admin_acquired", "Conexiones admin adquiridas", nil, nil),
		adminIdleDesc:      prometheus.NewDesc("pg_admin_idle", "Conexiones admin inactivas", nil, nil),
		adminTotalDesc:     prometheus.NewDesc("pg_admin_total", "Conexiones admin totales", nil, nil),
	}
}

func (c *dbPoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tenantCountDesc
	ch <- c.tenantAcquiredDesc
	ch <- c.tenantIdleDesc
	ch <- c.tenantTotalDesc
	ch <- c.adminAcquiredDesc
	ch <- c.adminIdleDesc
	ch <- c.adminTotalDesc
}

func (c *dbPoolCollector) Collect(ch chan<- prometheus.Metric) {
	var tenantStats map[string]tenantsql.PoolStat
	if c.tenantMgr != nil {
		tenantStats = c.tenantMgr.Stats()
	}
	ch <- prometheus.MustNewConstMetric(c.tenantCountDesc, prometheus.GaugeValue, float64(len(tenantStats)))
	for id, snapshot := range tenantStats {
		ch <- prometheus.MustNewConstMetric(c.tenantAcquiredDesc, prometheus.GaugeValue, float64(snapshot.Acquired), id)
		ch <- prometheus.MustNewConstMetric(c.tenantIdleDesc, prometheus.GaugeValue, float64(snapshot.Idle), id)
		ch <- prometheus.MustNewConstMetric(c.tenantTotalDesc, prometheus.GaugeValue, float64(snapshot.Total), id)
	}

	if c.adminPool != nil {
		if pool := c.adminPool(); pool != nil {
			if stat := pool.Stat(); stat != nil {
				ch <- prometheus.MustNewConstMetric(c.adminAcquiredDesc, prometheus.GaugeValue, float64(stat.AcquiredConns()))
				ch <- prometheus.MustNewConstMetric(c.adminIdleDesc, prometheus.GaugeValue, float64(stat.IdleConns()))
				ch <- prometheus.MustNewConstMetric(c.adminTotalDesc, prometheus.GaugeValue, float64(stat.TotalConns()))
			}
		}
	}
}

var (
	uuidSegmentRE = regexp.MustCompile(`^[0-9a-fA-F]{8}-[0-9a-fA-F-]{4}-[0-9a-fA-F-]{4,}$`)
	hexSegmentRE  = regexp.MustCompile(`^[0-9a-fA-F]{16,}$`)
)

// normalizePath colapsa segmentos dinámicos (ids) para acotar la
// cardinalidad de los labels.
func normalizePath(p string) string {
	if p == "" {
		return "/"
	}
	clean := strings.SplitN(p, "?", 2)[0]
	if clean == "" {
		return "/"
	}
	if !strings.HasPrefix(clean, "/") {
		clean = "/" + clean
	}

	segments := strings.Split(clean, "/")
	var out []string
	for _, seg := range segments {
		if seg == "" {
			continue
		}
		if isDynamicSegment(seg) {
			out = append(out, ":param")
		} else {
			out = append(out, seg)
		}
	}
	if len(out) == 0 {
		return "/"
	}
	return "/" + strings.Join(out, "/")
}

func isDynamicSegment(seg string) bool {
	if uuidSegmentRE.MatchString(seg) || hexSegmentRE.MatchString(seg) {
		return true
	}
	if _, err := strconv.Atoi(seg); err == nil {
		return true
	}
	return false
}
