// Package resolver discovers the secondary store's physical collection
// identifier for a logical entity name.
package resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/yourorg/crmbridge/internal/docstore"
	"github.com/yourorg/crmbridge/internal/domain"
	"github.com/yourorg/crmbridge/internal/observability/metrics"
	"github.com/yourorg/crmbridge/pkg/cache"
)

// CollectionLister is the slice of the store client the resolver needs.
type CollectionLister interface {
	ListCollections(ctx context.Context) (*docstore.CollectionList, error)
}

// aliases are the known collection names per logical entity, checked in order.
var aliases = map[string][]string{
	"client": {"customers", "customer", "client", "clients"},
	"ticket": {"tickets", "ticket"},
}

// Resolver resolves and memoizes collection identifiers. A resolved
// identifier is never re-resolved within the process lifetime, even if the
// store's collections change; a restart is the only invalidation path.
type Resolver struct {
	store  CollectionLister
	cache  *cache.Cache
	logger *slog.Logger
}

// New creates a collection resolver
func New(store CollectionLister, c *cache.Cache, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	if c == nil {
		c = cache.New()
	}
	return &Resolver{store: store, cache: c, logger: logger}
}

// Resolve returns the physical collection identifier for a logical entity
// name. Resolution order: exact alias match, case-insensitive match, then the
// store's first listed collection as a last resort. Fails with NotFoundError
// when the store has no collections at all.
func (r *Resolver) Resolve(ctx context.Context, logicalName string) (string, error) {
	cacheKey := "collection:" + logicalName
	if id, ok := r.cache.GetString(cacheKey); ok {
		metrics.ObserveResolution("cached")
		return id, nil
	}

	listing, err := r.store.ListCollections(ctx)
	if err != nil {
		return "", err
	}
	if len(listing.Collections) == 0 {
		metrics.ObserveResolution("miss")
		return "", &domain.NotFoundError{Kind: "collection", Name: logicalName}
	}

	names := aliases[logicalName]
	if len(names) == 0 {
		names = []string{logicalName}
	}

	if col, ok := matchCollection(listing.Collections, names, false); ok {
		metrics.ObserveResolution("matched")
		r.cache.Set(cacheKey, col.ID, 0)
		return col.ID, nil
	}
	if col, ok := matchCollection(listing.Collections, names, true); ok {
		metrics.ObserveResolution("matched")
		r.cache.Set(cacheKey, col.ID, 0)
		return col.ID, nil
	}

	// Almost certainly wrong in a real deployment, but a misconfigured
	// environment should degrade instead of hard-failing every screen.
	metrics.ObserveResolution("fallback")
	first := listing.Collections[0]
	r.logger.Warn("no matching collection, falling back to first available",
		slog.String("logical_name", logicalName),
		slog.String("collection_id", first.ID),
		slog.String("collection_name", first.Name),
	)
	r.cache.Set(cacheKey, first.ID, 0)
	return first.ID, nil
}

func matchCollection(collections []docstore.Collection, names []string, fold bool) (docstore.Collection, bool) {
	for _, col := range collections {
		for _, name := range names {
			if fold {
				if strings.EqualFold(col.ID, name) || strings.EqualFold(col.Name, name) {
					return col, true
				}
			} else if col.ID == name || col.Name == name {
				return col, true
			}
		}
	}
	return docstore.Collection{}, false
}
