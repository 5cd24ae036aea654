// Package cache is a read-through Redis cache in front of a role catalog.
// Role definitions are immutable reference data, so a short TTL only bounds
// the window for newly added roles to become resolvable.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

// Catalog is the resolver being cached.
type Catalog interface {
	Resolve(ctx context.Context, slugs []string) (models.Resolution, error)
	ResolveIDs(ctx context.Context, ids []domain.RoleID) ([]models.RoleDefinition, error)
}

// CachedCatalog caches per-slug definitions. A miss on any requested slug
// falls through to the inner catalog for the full set; cache failures degrade
// to the inner catalog, never to a request failure.
type CachedCatalog struct {
	inner  Catalog
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func New(inner Catalog, client *redis.Client, ttl time.Duration, logger *slog.Logger) *CachedCatalog {
	return &CachedCatalog{inner: inner, client: client, ttl: ttl, logger: logger}
}

// ResolveIDs is a rare admin-view read; it goes straight to the inner catalog.
func (c *CachedCatalog) ResolveIDs(ctx context.Context, ids []domain.RoleID) ([]models.RoleDefinition, error) {
	return c.inner.ResolveIDs(ctx, ids)
}

func cacheKey(slug string) string {
	return "role-catalog:" + slug
}

func (c *CachedCatalog) Resolve(ctx context.Context, slugs []string) (models.Resolution, error) {
	cached := make([]models.RoleDefinition, 0, len(slugs))
	for _, slug := range slugs {
		raw, err := c.client.Get(ctx, cacheKey(slug)).Bytes()
		if err != nil {
			if !errors.Is(err, redis.Nil) {
				c.logger.WarnContext(ctx, "role cache read failed, falling through",
					"slug", slug, "error", err)
			}
			return c.resolveAndFill(ctx, slugs)
		}
		var def models.RoleDefinition
		if err := json.Unmarshal(raw, &def); err != nil {
			return c.resolveAndFill(ctx, slugs)
		}
		cached = append(cached, def)
	}
	return models.Resolution{Found: cached}, nil
}

func (c *CachedCatalog) resolveAndFill(ctx context.Context, slugs []string) (models.Resolution, error) {
	res, err := c.inner.Resolve(ctx, slugs)
	if err != nil {
		return models.Resolution{}, err
	}
	for _, def := range res.Found {
		raw, err := json.Marshal(def)
		if err != nil {
			continue
		}
		if err := c.client.Set(ctx, cacheKey(def.Slug), raw, c.ttl).Err(); err != nil {
			c.logger.WarnContext(ctx, "role cache write failed", "slug", def.Slug, "error", err)
		}
	}
	return res, nil
}
