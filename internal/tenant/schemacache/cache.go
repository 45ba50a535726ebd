// Package schemacache provee el cache de validación de schemas por tenant.
//
// Cachea el resultado de "¿existe el schema X?" por un TTL acotado para no
// golpear information_schema en cada request. Una entrada vencida se trata
// exactamente igual que un miss: jamás se sirve verdad vieja.
//
// Soporta:
//   - Memory (LRU acotado con TTL, in-process)
//   - Redis (distribuido, para despliegues multi-réplica)
package schemacache

import (
	"context"
	"fmt"
	"time"
)

// Client define las operaciones del cache de validación.
type Client interface {
	// Get retorna (exists, ok). ok == false significa miss (sin entrada o TTL vencido).
	Get(ctx context.Context, tenantID string) (exists bool, ok bool)

	// Set sobrescribe atómicamente la entrada del tenant.
	Set(ctx context.Context, tenantID string, exists bool)

	// Invalidate elimina la entrada (ej: después de crear el schema se
	// invalida el "false" cacheado antes de setear el nuevo valor).
	Invalidate(ctx context.Context, tenantID string)

	// Stats retorna un snapshot de actividad del cache.
	Stats() Stats

	// Close libera recursos del backend.
	Close() error
}

// Stats es el snapshot de actividad de un cliente de cache.
type Stats struct {
	Driver  string `json:"driver"`
	Entries int    `json:"entries"` // solo significativo en memory
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
}

// Config configuración para crear un cliente de cache.
type Config struct {
	// Driver: "memory" | "redis"
	Driver string
	TTL    time.Duration
	// Size acota la cantidad de entradas (solo memory). Bajo fan-out
	// multi-tenant, miles de ids distintos no deben agotar memoria.
	Size  int
	Redis RedisConfig
}

// RedisConfig parametriza el backend redis.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
}

// New crea un cliente de cache según la configuración.
func New(cfg Config) (Client, error) {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.Size <= 0 {
		cfg.Size = 4096
	}
	switch cfg.Driver {
	case "redis":
		return newRedis(cfg)
	case "memory", "":
		return newMemory(cfg), nil
	default:
		return nil, fmt.Errorf("schemacache: unsupported driver %q", cfg.Driver)
	}
}
