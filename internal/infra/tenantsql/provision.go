package tenantsql

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"io/fs"
	"sort"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/observability/logger"
)

// execer es el subconjunto de pgxpool.Conn que necesitan las migraciones.
type execer interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// provisionLockID genera un ID único para pg_advisory_lock basado en el tenant id.
func provisionLockID(tenantID string) int64 {
	h := sha256.Sum256([]byte("schema_provision:" + tenantID))
	return int64(binary.BigEndian.Uint64(h[:8]))
}

// SchemaExists consulta information_schema por el pool admin.
// Es la fuente de verdad detrás del cache de validación.
func (m *Manager) SchemaExists(ctx context.Context, schemaName string) (bool, error) {
	var exists bool
	err := m.admin.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM information_schema.schemata WHERE schema_name = $1)`,
		schemaName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenantsql: schema existence check for %s: %w", schemaName, err)
	}
	return exists, nil
}

// ProvisionSchema crea el schema del tenant y corre las migraciones DDL
// embebidas, serializado cross-process con un advisory lock de Postgres.
// Retorna true si este vuelo creó el schema, false si ya existía.
//
// El lock es de sesión: se toma y libera sobre la MISMA conexión admin,
// dedicada durante todo el vuelo.
func (m *Manager) ProvisionSchema(ctx context.Context, tenantID, schemaName string) (bool, error) {
	pc, err := m.admin.Acquire(ctx)
	if err != nil {
		return false, fmt.Errorf("tenantsql: provision acquire admin conn: %w", err)
	}
	defer pc.Release()

	lockID := provisionLockID(tenantID)

	lockCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	var acquired bool
	if err := pc.QueryRow(lockCtx, "SELECT pg_try_advisory_lock($1)", lockID).Scan(&acquired); err != nil {
		return false, fmt.Errorf("tenantsql: provision lock for %s: %w", tenantID, err)
	}
	if !acquired {
		// Otro proceso está provisionando: esperar bloqueante con timeout.
		// pg_advisory_lock retorna void, por eso Exec y no QueryRow.
		logger.L().Info("provision lock held elsewhere, waiting",
			logger.Component("tenantsql"), logger.TenantID(tenantID))
		if _, err := pc.Exec(lockCtx, "SELECT pg_advisory_lock($1)", lockID); err != nil {
			return false, fmt.Errorf("tenantsql: wait provision lock for %s: %w", tenantID, err)
		}
	}
	defer func() {
		if _, err := pc.Exec(context.Background(), "SELECT pg_advisory_unlock($1)", lockID); err != nil {
			logger.L().Warn("failed to release provision lock",
				logger.Component("tenantsql"), logger.TenantID(tenantID), logger.Err(err))
		}
	}()

	// Re-check con el lock tomado: el vuelo perdedor llega acá con el schema ya creado.
	exists, err := m.SchemaExists(ctx, schemaName)
	if err != nil {
		metrics.SchemaCreations.WithLabelValues(tenantID, "failed").Inc()
		return false, err
	}
	if exists {
		metrics.SchemaCreations.WithLabelValues(tenantID, "exists").Inc()
		return false, nil
	}

	start := time.Now()

	if _, err := pc.Exec(ctx, "CREATE SCHEMA IF NOT EXISTS "+pgIdentifier(schemaName)); err != nil {
		metrics.SchemaCreations.WithLabelValues(tenantID, "failed").Inc()
		return false, fmt.Errorf("tenantsql: create schema %s: %w", schemaName, err)
	}

	applied, err := m.runMigrations(ctx, pc, schemaName)
	if err != nil {
		metrics.SchemaCreations.WithLabelValues(tenantID, "failed").Inc()
		return false, err
	}

	metrics.SchemaCreations.WithLabelValues(tenantID, "created").Inc()
	logger.L().Info("tenant schema provisioned",
		logger.Component("tenantsql"),
		logger.TenantID(tenantID),
		logger.SchemaName(schemaName),
		logger.Count(applied),
		logger.Duration(time.Since(start)),
	)
	return true, nil
}

// runMigrations ejecuta los *_up.sql embebidos (orden lexicográfico) con el
// search_path de la sesión apuntando al schema nuevo.
func (m *Manager) runMigrations(ctx context.Context, pc execer, schemaName string) (int, error) {
	if m.cfg.Migrations == nil {
		return 0, nil
	}

	files, err := fs.Glob(m.cfg.Migrations, "*_up.sql")
	if err != nil {
		return 0, err
	}
	sort.Strings(files)

	if _, err := pc.Exec(ctx, "SET search_path TO "+pgIdentifier(schemaName)); err != nil {
		return 0, fmt.Errorf("tenantsql: set search_path to %s: %w", schemaName, err)
	}
	defer func() {
		_, _ = pc.Exec(context.Background(), "SET search_path TO public")
	}()

	var applied int
	for _, f := range files {
		b, err := fs.ReadFile(m.cfg.Migrations, f)
		if err != nil {
			return applied, err
		}
		if _, err := pc.Exec(ctx, string(b)); err != nil {
			return applied, fmt.Errorf("tenantsql: exec %s: %w", f, err)
		}
		applied++
	}
	return applied, nil
}

// DropSchema elimina el schema del tenant con todo su contenido
// (deprovisioning). El caller debe invalidar el cache de validación y
// llamar CleanupTenant.
func (m *Manager) DropSchema(ctx context.Context, schemaName string) error {
	if _, err := m.admin.Exec(ctx, "DROP SCHEMA IF EXISTS "+pgIdentifier(schemaName)+" CASCADE"); err != nil {
		return fmt.Errorf("tenantsql: drop schema %s: %w", schemaName, err)
	}
	return nil
}
