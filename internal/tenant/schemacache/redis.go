package schemacache

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
)

// redisClient implementa Client sobre Redis para despliegues multi-réplica:
// todas las réplicas comparten la verdad cacheada y la invalidación post
// provisioning es visible en el cluster completo.
type redisClient struct {
	rdb    *redis.Client
	prefix string
	ttl    time.Duration
	hits   atomic.Uint64
	misses atomic.Uint64
}

func newRedis(cfg Config) (*redisClient, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	prefix := cfg.Redis.Prefix
	if prefix == "" {
		prefix = "crmx:schema"
	}
	return &redisClient{rdb: rdb, prefix: prefix, ttl: cfg.TTL}, nil
}

func (c *redisClient) key(tenantID string) string {
	return c.prefix + ":" + tenantID
}

func (c *redisClient) Get(ctx context.Context, tenantID string) (bool, bool) {
	v, err := c.rdb.Get(ctx, c.key(tenantID)).Result()
	if err != nil {
		// redis.Nil o backend caído: ambos se tratan como miss; el resolver
		// va a information_schema y repuebla.
		c.misses.Add(1)
		metrics.SchemaCacheMisses.Inc()
		return false, false
	}
	c.hits.Add(1)
	metrics.SchemaCacheHits.Inc()
	return v == "1", true
}

func (c *redisClient) Set(ctx context.Context, tenantID string, exists bool) {
	v := "0"
	if exists {
		v = "1"
	}
	// SET con EX es atómico: sobrescribe valor y TTL juntos.
	_ = c.rdb.Set(ctx, c.key(tenantID), v, c.ttl).Err()
}

func (c *redisClient) Invalidate(ctx context.Context, tenantID string) {
	_ = c.rdb.Del(ctx, c.key(tenantID)).Err()
}

func (c *redisClient) Stats() Stats {
	// El conteo de entradas por prefijo requeriría un SCAN; no vale el costo
	// para un snapshot de diagnóstico.
	return Stats{
		Driver: "redis",
		Hits:   c.hits.Load(),
		Misses: c.misses.Load(),
	}
}

func (c *redisClient) Close() error {
	return c.rdb.Close()
}
