package schemacache

import (
	"context"
	"sync/atomic"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/leonardocardososenior/crmx-x-backend-sub000/internal/metrics"
)

// memoryClient implementa Client con un LRU acotado con expiración por TTL.
// La evicción por recency la maneja el LRU; la expiración convierte entradas
// viejas en misses sin intervención nuestra.
type memoryClient struct {
	lru    *expirable.LRU[string, bool]
	hits   atomic.Uint64
	misses atomic.Uint64
}

func newMemory(cfg Config) *memoryClient {
	return &memoryClient{
		lru: expirable.NewLRU[string, bool](cfg.Size, nil, cfg.TTL),
	}
}

func (c *memoryClient) Get(ctx context.Context, tenantID string) (bool, bool) {
	exists, ok := c.lru.Get(tenantID)
	if ok {
		c.hits.Add(1)
		metrics.SchemaCacheHits.Inc()
	} else {
		c.misses.Add(1)
		metrics.SchemaCacheMisses.Inc()
	}
	return exists, ok
}

func (c *memoryClient) Set(ctx context.Context, tenantID string, exists bool) {
	c.lru.Add(tenantID, exists)
}

func (c *memoryClient) Invalidate(ctx context.Context, tenantID string) {
	c.lru.Remove(tenantID)
}

func (c *memoryClient) Stats() Stats {
	return Stats{
		Driver:  "memory",
		Entries: c.lru.Len(),
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
	}
}

func (c *memoryClient) Close() error {
	c.lru.Purge()
	return nil
}
