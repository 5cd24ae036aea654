package catalog

import (
	"context"
	"fmt"

	"database/sql"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

// PostgresCatalog resolves slugs against the roles table.
type PostgresCatalog struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresCatalog {
	return &PostgresCatalog{db: db}
}

// ResolveIDs returns the definitions for known role IDs, silently skipping
// unknown ones.
func (c *PostgresCatalog) ResolveIDs(ctx context.Context, ids []domain.RoleID) ([]models.RoleDefinition, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		raw[i] = uuid.UUID(id)
	}
	query := `SELECT id, slug, name FROM roles WHERE id = ANY($1) ORDER BY slug`
	rows, err := c.db.QueryContext(ctx, query, pq.Array(raw))
	if err != nil {
		return nil, fmt.Errorf("resolve role ids: %w", err)
	}
	defer rows.Close()

	var defs []models.RoleDefinition
	for rows.Next() {
		var id uuid.UUID
		var def models.RoleDefinition
		if err := rows.Scan(&id, &def.Slug, &def.Name); err != nil {
			return nil, fmt.Errorf("scan role: %w", err)
		}
		def.ID = domain.RoleID(id)
		defs = append(defs, def)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("resolve role ids: %w", err)
	}
	return defs, nil
}

func (c *PostgresCatalog) Resolve(ctx context.Context, slugs []string) (models.Resolution, error) {
	if len(slugs) == 0 {
		return models.Resolution{}, nil
	}

	query := `SELECT id, slug, name FROM roles WHERE slug = ANY($1)`
	rows, err := c.db.QueryContext(ctx, query, pq.Array(slugs))
	if err != nil {
		return models.Resolution{}, fmt.Errorf("resolve roles: %w", err)
	}
	defer rows.Close()

	found := make(map[string]models.RoleDefinition, len(slugs))
	for rows.Next() {
		var id uuid.UUID
		var def models.RoleDefinition
		if err := rows.Scan(&id, &def.Slug, &def.Name); err != nil {
			return models.Resolution{}, fmt.Errorf("scan role: %w", err)
		}
		def.ID = domain.RoleID(id)
		found[def.Slug] = def
	}
	if err := rows.Err(); err != nil {
		return models.Resolution{}, fmt.Errorf("resolve roles: %w", err)
	}

	// Preserve request order in the resolution.
	var res models.Resolution
	for _, slug := range slugs {
		if def, ok := found[slug]; ok {
			res.Found = append(res.Found, def)
		} else {
			res.Missing = append(res.Missing, slug)
		}
	}
	return res, nil
}
