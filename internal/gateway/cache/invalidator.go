package cache

import (
	"context"
	"log"
)

// Entity types known to the invalidator.
const (
	EntitySurgeon       = "surgeon"
	EntityClaim         = "claim"
	EntityQualityMetric = "quality_metric"
)

// entityPaths maps entity types to the API path their responses are cached
// under. This mapping is configuration: it must track the routes, not the
// data model.
var entityPaths = map[string]string{
	EntitySurgeon:       "/api/v1/surgeons",
	EntityClaim:         "/api/v1/claims",
	EntityQualityMetric: "/api/v1/quality-metrics",
}

// lookupPaths lists alternate read paths whose responses are cached under an
// entity type, like the surgeon NPI lookup. Cleared wholesale on any write to
// the type since the written record's alternate key is not derivable from its
// id here.
var lookupPaths = map[string][]string{
	EntitySurgeon: {"/api/v1/surgeons/npi"},
}

// cascades lists entity types whose list-level caches must also be cleared
// when the keyed entity changes. Declared explicitly because claim and
// quality-metric collections can be filtered by surgeon id; kept in sync
// with the stores' filter capabilities by hand.
var cascades = map[string][]string{
	EntitySurgeon: {EntityClaim, EntityQualityMetric},
}

// Invalidator clears cached responses when entities are written. Failures
// are logged and swallowed: a stale entry self-heals at TTL expiry, and an
// unreachable cache must never fail the triggering write.
type Invalidator struct {
	cache *Cache
}

func NewInvalidator(c *Cache) *Invalidator {
	return &Invalidator{cache: c}
}

// Invalidate clears the list-level cache for an entity type and, when an id
// is given, that entity's detail-level cache, then applies declared
// cascades.
func (inv *Invalidator) Invalidate(ctx context.Context, entityType, entityID string) {
	path, ok := entityPaths[entityType]
	if !ok {
		log.Printf("cache invalidation: unknown entity type %q", entityType)
		return
	}

	if entityID != "" {
		inv.clear(ctx, DetailPrefix(path, entityID))
	}
	inv.clear(ctx, ListPrefix(path))

	for _, lookup := range lookupPaths[entityType] {
		inv.clear(ctx, "api:"+lookup)
	}

	for _, dep := range cascades[entityType] {
		if depPath, ok := entityPaths[dep]; ok {
			inv.clear(ctx, ListPrefix(depPath))
		}
	}
}

func (inv *Invalidator) clear(ctx context.Context, prefix string) {
	if err := inv.cache.ClearPrefix(ctx, prefix); err != nil {
		log.Printf("cache invalidation failed for prefix %s: %v", prefix, err)
	}
}

// InvalidateAll clears every cached API response.
func (inv *Invalidator) InvalidateAll(ctx context.Context) {
	inv.clear(ctx, "api:")
}
