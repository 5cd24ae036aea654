package assignment

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

// PostgresStore persists role assignments in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// UpsertAll assigns each role to the profile, skipping pairs that already
// exist. Safe to call twice with the same arguments.
func (s *PostgresStore) UpsertAll(ctx context.Context, profileID domain.ProfileID, roleIDs []domain.RoleID, assignedBy string, assignedAt time.Time) error {
	query := `
		INSERT INTO role_assignments (profile_id, role_id, assigned_by, assigned_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (profile_id, role_id) DO NOTHING
	`
	for _, roleID := range roleIDs {
		_, err := s.db.ExecContext(ctx, query,
			uuid.UUID(profileID), uuid.UUID(roleID), assignedBy, assignedAt)
		if err != nil {
			return fmt.Errorf("upsert role assignment: %w", err)
		}
	}
	return nil
}

func (s *PostgresStore) ListByProfile(ctx context.Context, profileID domain.ProfileID) ([]models.RoleAssignment, error) {
	query := `
		SELECT profile_id, role_id, assigned_by, assigned_at
		FROM role_assignments
		WHERE profile_id = $1
		ORDER BY assigned_at
	`
	rows, err := s.db.QueryContext(ctx, query, uuid.UUID(profileID))
	if err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	defer rows.Close()

	var out []models.RoleAssignment
	for rows.Next() {
		var profile, role uuid.UUID
		var a models.RoleAssignment
		if err := rows.Scan(&profile, &role, &a.AssignedBy, &a.AssignedAt); err != nil {
			return nil, fmt.Errorf("scan role assignment: %w", err)
		}
		a.ProfileID = domain.ProfileID(profile)
		a.RoleID = domain.RoleID(role)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list role assignments: %w", err)
	}
	return out, nil
}

func (s *PostgresStore) DeleteByProfile(ctx context.Context, profileID domain.ProfileID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM role_assignments WHERE profile_id = $1`, uuid.UUID(profileID)); err != nil {
		return fmt.Errorf("delete role assignments: %w", err)
	}
	return nil
}
