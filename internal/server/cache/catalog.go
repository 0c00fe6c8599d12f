package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/doclearn/doclearn/internal/logging"
	"github.com/doclearn/doclearn/internal/server/models"
)

const catalogNamespace = "catalog:specialization"

// CatalogSource is the authoritative catalog behind the cache.
type CatalogSource interface {
	FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error)
}

// CatalogCache is a read-through cache in front of a CatalogSource. Redis
// failures fall back to the source.
type CatalogCache struct {
	cache  *Cache
	source CatalogSource
	ttl    time.Duration
	logger logging.Logger
}

func NewCatalogCache(c *Cache, source CatalogSource, ttl time.Duration, logger logging.Logger) *CatalogCache {
	return &CatalogCache{
		cache:  c,
		source: source,
		ttl:    ttl,
		logger: logger.With("module", "catalog_cache"),
	}
}

func (c *CatalogCache) FindByID(ctx context.Context, id string) (*models.CatalogSpecialization, error) {
	raw, err := c.cache.Get(ctx, catalogNamespace, id)
	switch {
	case err == nil:
		entry := &models.CatalogSpecialization{}
		if err := json.Unmarshal([]byte(raw), entry); err == nil {
			return entry, nil
		}
		c.logger.Warn(ctx, "dropping undecodable catalog entry", "specialization_id", id)
	case !errors.Is(err, ErrMiss):
		c.logger.Warn(ctx, "catalog cache unavailable", "error", err)
	}

	entry, err := c.source.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(entry); err == nil {
		if err := c.cache.Set(ctx, catalogNamespace, id, b, c.ttl); err != nil {
			c.logger.Warn(ctx, "catalog cache write failed", "error", err)
		}
	}
	return entry, nil
}

// Invalidate drops a cached entry.
func (c *CatalogCache) Invalidate(ctx context.Context, id string) error {
	return c.cache.Delete(ctx, catalogNamespace, id)
}
