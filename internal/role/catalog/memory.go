// Package catalog resolves role slugs against immutable role reference data.
// The catalog is injected read-only into the provisioning service, never
// consulted as a global.
package catalog

import (
	"context"
	"sync"

	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

// InMemoryCatalog serves role definitions from memory.
type InMemoryCatalog struct {
	mu     sync.RWMutex
	bySlug map[string]models.RoleDefinition
}

func NewInMemory(defs ...models.RoleDefinition) *InMemoryCatalog {
	c := &InMemoryCatalog{bySlug: make(map[string]models.RoleDefinition, len(defs))}
	for _, def := range defs {
		c.bySlug[def.Slug] = def
	}
	return c
}

// ResolveIDs returns the definitions for known role IDs, silently skipping
// unknown ones. Used by account views, where a stale assignment row must not
// break the read.
func (c *InMemoryCatalog) ResolveIDs(ctx context.Context, ids []domain.RoleID) ([]models.RoleDefinition, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	defs := make([]models.RoleDefinition, 0, len(ids))
	for _, id := range ids {
		for _, def := range c.bySlug {
			if def.ID == id {
				defs = append(defs, def)
				break
			}
		}
	}
	return defs, nil
}

func (c *InMemoryCatalog) Resolve(ctx context.Context, slugs []string) (models.Resolution, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var res models.Resolution
	for _, slug := range slugs {
		if def, ok := c.bySlug[slug]; ok {
			res.Found = append(res.Found, def)
		} else {
			res.Missing = append(res.Missing, slug)
		}
	}
	return res, nil
}
