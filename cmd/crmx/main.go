package main

import (
	"context"
	"errors"
	"flag"
	"io/fs"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/config"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/filter"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/httpx"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/infra/tenantsql"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/tenant/schemacache"
	migrations "github.com/leonardocardososenior/crmx-x-backend-sub000/migrations/postgres"
)

func main() {
	// .env primero: en dev el DSN vive ahí.
	if err := godotenv.Load(); err != nil {
		log.Printf("no .env file, continuing with system environment: %v", err)
	}

	cfgPath := flag.String("config", os.Getenv("CRMX_CONFIG"), "ruta al YAML de configuración")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logger.Init(logger.Config{Env: cfg.App.Env, Level: cfg.Log.Level})
	defer func() { _ = logger.Sync() }()
	lg := logger.Named("crmx")

	if cfg.Storage.DSN == "" {
		lg.Fatal("storage.dsn is required (CRMX_STORAGE_DSN)")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	tenantDDL, err := fs.Sub(migrations.TenantFS, migrations.TenantDir)
	if err != nil {
		lg.Fatal("embedded migrations", logger.Err(err))
	}

	deriver := tenant.NewDeriver(cfg.Tenant.SchemaPrefix)
	validator := tenant.NewValidator(cfg.Tenant.MaxTenantIDLength)

	manager, err := tenantsql.New(ctx, tenantsql.Config{
		DSN:                cfg.Storage.DSN,
		DeriveSchema:       deriver.SchemaName,
		MaxConnsPerTenant:  cfg.Pool.MaxConnsPerTenant,
		MaxTotalConns:      cfg.Pool.MaxTotalConns,
		IdleTimeout:        cfg.IdleTimeout(),
		AcquisitionTimeout: cfg.AcquisitionTimeout(),
		ConnMaxLifetime:    cfg.ConnMaxLifetime(),
		Migrations:         tenantDDL,
	})
	if err != nil {
		lg.Fatal("tenant pool manager", logger.Err(err))
	}
	defer func() { _ = manager.Close() }()

	manager.StartCleanup(ctx, cfg.CleanupInterval())

	cache, err := schemacache.New(schemacache.Config{
		Driver: cfg.Tenant.ValidationCache.Driver,
		TTL:    cfg.ValidationCacheTTL(),
		Size:   cfg.Tenant.ValidationCache.Size,
		Redis: schemacache.RedisConfig{
			Addr:     cfg.Tenant.ValidationCache.Redis.Addr,
			Password: cfg.Tenant.ValidationCache.Redis.Password,
			DB:       cfg.Tenant.ValidationCache.Redis.DB,
			Prefix:   cfg.Tenant.ValidationCache.Redis.Prefix,
		},
	})
	if err != nil {
		lg.Fatal("schema validation cache", logger.Err(err))
	}
	defer func() { _ = cache.Close() }()

	resolver, err := tenant.NewResolver(tenant.ResolverConfig{
		Validator:     validator,
		Deriver:       deriver,
		Cache:         cache,
		Source:        manager,
		Locks:         tenant.NewLockRegistry(cfg.CreationLockTimeout()),
		AutoProvision: cfg.Tenant.AutoProvision,
		LockWait:      cfg.CreationLockTimeout(),
	})
	if err != nil {
		lg.Fatal("tenant resolver", logger.Err(err))
	}

	compiler := filter.New(filter.Config{
		MaxDepth: cfg.Filter.MaxDepth,
		MaxNodes: cfg.Filter.MaxNodes,
		CacheTTL: cfg.CompileCacheTTL(),
	})

	metricsHandler, err := httpx.RegisterMetrics(httpx.MetricsConfig{
		TenantManager: manager,
		AdminPool:     manager.AdminPool,
	})
	if err != nil {
		lg.Fatal("metrics registry", logger.Err(err))
	}

	router := httpx.NewRouter(httpx.RouterDeps{
		Manager:        manager,
		Resolver:       resolver,
		Compiler:       compiler,
		Cache:          cache,
		Validator:      validator,
		Deriver:        deriver,
		MetricsHandler: metricsHandler,
	})

	srv := &http.Server{
		Addr:         cfg.Server.Addr,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
	}

	go func() {
		lg.Info("server listening", logger.String("addr", cfg.Server.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Fatal("server", logger.Err(err))
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.Warn("graceful shutdown incomplete", logger.Err(err))
	}
}
