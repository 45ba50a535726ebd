package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Core query-execution metrics. Defined in a standalone package to avoid
// import cycles between the tenant resolver, the pool manager and HTTP packages.

var (
	ResolverFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_resolver_failures_total",
		Help: "Fallas del resolver de tenant por código de error y tenant",
	}, []string{"code", "tenant"})

	PoolExhausted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_pool_exhausted_total",
		Help: "Adquisiciones rechazadas o expiradas por saturación del pool",
	}, []string{"tenant"})

	PoolAcquireLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "tenant_pool_acquire_latency_ms",
		Help:    "Latencia de adquisición de conexión en milisegundos",
		Buckets: prometheus.ExponentialBuckets(1, 2, 12),
	})

	SchemaCacheHits = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schema_validation_cache_hits_total",
		Help: "Hits del cache de validación de schemas",
	})

	SchemaCacheMisses = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "schema_validation_cache_misses_total",
		Help: "Misses del cache de validación de schemas (incluye entradas expiradas)",
	})

	SchemaCreations = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "tenant_schema_creations_total",
		Help: "Provisionamientos de schema por tenant y resultado",
	}, []string{"tenant", "result"}) // result: created|exists|failed

	FilterCompileErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "filter_compile_errors_total",
		Help: "Errores de compilación de filtros por código",
	}, []string{"code"})
)

// RegisterCore registers the core metrics on the given registry (or default if nil).
func RegisterCore(reg prometheus.Registerer) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	for _, c := range []prometheus.Collector{
		ResolverFailures,
		PoolExhausted,
		PoolAcquireLatency,
		SchemaCacheHits,
		SchemaCacheMisses,
		SchemaCreations,
		FilterCompileErrors,
	} {
		if err := Register(reg, c); err != nil {
			return err
		}
	}
	return nil
}

// Register registra el collector en el registry indicado, ignorando duplicados.
func Register(reg prometheus.Registerer, collector prometheus.Collector) error {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	if err := reg.Register(collector); err != nil {
		if _, ok := err.(prometheus.AlreadyRegisteredError); ok {
			return nil
		}
		return err
	}
	return nil
}
