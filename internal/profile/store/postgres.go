package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"caretrip/internal/profile/models"
	"caretrip/internal/storage"
	"caretrip/pkg/domain"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/sentinel"
)

// PostgresStore reads and patches the profiles mirror table. Pure I/O; the
// service layer owns all saga logic.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const profileColumns = `id, identity_id, display_name, email, created_at, updated_at`

func (s *PostgresStore) FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE id = $1`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByIdentity(ctx context.Context, identityID domain.IdentityID) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE identity_id = $1`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, uuid.UUID(identityID)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by identity: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) FindByEmail(ctx context.Context, address string) (*models.Profile, error) {
	query := `SELECT ` + profileColumns + ` FROM profiles WHERE lower(email) = $1`
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, email.Normalize(address)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find profile by email: %w", err)
	}
	return p, nil
}

// Patch updates display fields only. Applying the same patch twice is a no-op.
func (s *PostgresStore) Patch(ctx context.Context, id domain.ProfileID, patch models.Patch) (*models.Profile, error) {
	query := `
		UPDATE profiles SET
			display_name = COALESCE($2, display_name),
			email = COALESCE($3, email),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + profileColumns
	var displayName, address *string
	if patch.DisplayName != nil {
		displayName = patch.DisplayName
	}
	if patch.Email != nil {
		normalized := email.Normalize(*patch.Email)
		address = &normalized
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, query, uuid.UUID(id), displayName, address))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("patch profile: %w", err)
	}
	return p, nil
}

// Upsert inserts a profile, falling back to update when the identity already
// has a row. The unique index on identity_id is the authority; a concurrent
// insert losing the race lands in the DO UPDATE branch instead of failing.
func (s *PostgresStore) Upsert(ctx context.Context, attrs models.Attrs) (*models.Profile, error) {
	query := `
		INSERT INTO profiles (id, identity_id, display_name, email, created_at, updated_at)
		VALUES ($1, $2, $3, $4, now(), now())
		ON CONFLICT (identity_id) DO UPDATE SET
			display_name = EXCLUDED.display_name,
			email = EXCLUDED.email,
			updated_at = now()
		RETURNING ` + profileColumns
	var identityID *uuid.UUID
	if attrs.IdentityID != nil {
		raw := uuid.UUID(*attrs.IdentityID)
		identityID = &raw
	}
	p, err := scanProfile(s.db.QueryRowContext(ctx, query,
		uuid.New(), identityID, attrs.DisplayName, email.Normalize(attrs.Email)))
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("upsert profile: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("upsert profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.ProfileID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM profiles WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete profile: %w", err)
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanProfile(row rowScanner) (*models.Profile, error) {
	var p models.Profile
	var id uuid.UUID
	var identityID *uuid.UUID
	if err := row.Scan(&id, &identityID, &p.DisplayName, &p.Email, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = domain.ProfileID(id)
	if identityID != nil {
		converted := domain.IdentityID(*identityID)
		p.IdentityID = &converted
	}
	return &p, nil
}
