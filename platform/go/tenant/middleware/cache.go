package middleware

import (
	"context"
	"sync"
	"time"

	"github.com/clinica-io/clinica-backend/platform/go/tenant"
)

// MemoryRouteCache is a small in-process TTL cache for clinic route lookups.
type MemoryRouteCache struct {
	ttl   time.Duration
	mu    sync.RWMutex
	items map[int64]memoryItem
}

type memoryItem struct {
	route     tenant.Route
	expiresAt time.Time
}

// NewMemoryRouteCache constructs a cache with the given entry TTL.
func NewMemoryRouteCache(ttl time.Duration) *MemoryRouteCache {
	return &MemoryRouteCache{ttl: ttl, items: make(map[int64]memoryItem)}
}

func (c *MemoryRouteCache) Get(_ context.Context, clinicID int64) (tenant.Route, bool) {
	c.mu.RLock()
	item, ok := c.items[clinicID]
	c.mu.RUnlock()
	if !ok || time.Now().After(item.expiresAt) {
		return tenant.Route{}, false
	}
	return item.route, true
}

func (c *MemoryRouteCache) Put(_ context.Context, clinicID int64, route tenant.Route) {
	c.mu.Lock()
	c.items[clinicID] = memoryItem{route: route, expiresAt: time.Now().Add(c.ttl)}
	c.mu.Unlock()
}
