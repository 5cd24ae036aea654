package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"caretrip/internal/patient/models"
	"caretrip/internal/storage"
	"caretrip/pkg/domain"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/sentinel"
)

// PostgresStore persists patient records in PostgreSQL. Pure I/O; snapshot
// capture and compensation ordering belong to the service layer.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const patientColumns = `id, identity_id, full_name, contact_email, phone, country, email_verified, created_at, updated_at`

func (s *PostgresStore) Create(ctx context.Context, p models.Patient) (*models.Patient, error) {
	query := `
		INSERT INTO patients (id, identity_id, full_name, contact_email, phone, country, email_verified, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, now(), now())
		RETURNING ` + patientColumns
	id := uuid.UUID(p.ID)
	if p.ID.IsNil() {
		id = uuid.New()
	}
	var identityID *uuid.UUID
	if p.IdentityID != nil {
		raw := uuid.UUID(*p.IdentityID)
		identityID = &raw
	}
	created, err := scanPatient(s.db.QueryRowContext(ctx, query,
		id, identityID, p.FullName, email.Normalize(p.ContactEmail), p.Phone, p.Country, p.EmailVerified))
	if err != nil {
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("create patient: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *PostgresStore) Update(ctx context.Context, id domain.PatientID, patch models.Patch) (*models.Patient, error) {
	query := `
		UPDATE patients SET
			identity_id = COALESCE($2, identity_id),
			full_name = COALESCE($3, full_name),
			contact_email = COALESCE($4, contact_email),
			phone = COALESCE($5, phone),
			country = COALESCE($6, country),
			email_verified = COALESCE($7, email_verified),
			updated_at = now()
		WHERE id = $1
		RETURNING ` + patientColumns
	var identityID *uuid.UUID
	if patch.IdentityID != nil {
		raw := uuid.UUID(*patch.IdentityID)
		identityID = &raw
	}
	var contactEmail *string
	if patch.ContactEmail != nil {
		normalized := email.Normalize(*patch.ContactEmail)
		contactEmail = &normalized
	}
	updated, err := scanPatient(s.db.QueryRowContext(ctx, query,
		uuid.UUID(id), identityID, patch.FullName, contactEmail, patch.Phone, patch.Country, patch.EmailVerified))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		if storage.IsUniqueViolation(err) {
			return nil, fmt.Errorf("update patient: %w", sentinel.ErrConflict)
		}
		return nil, fmt.Errorf("update patient: %w", err)
	}
	return updated, nil
}

// Restore writes a pre-saga snapshot back verbatim, including a null
// identity link if the snapshot had none.
func (s *PostgresStore) Restore(ctx context.Context, snapshot models.Patient) error {
	query := `
		UPDATE patients SET
			identity_id = $2,
			full_name = $3,
			contact_email = $4,
			phone = $5,
			country = $6,
			email_verified = $7,
			updated_at = now()
		WHERE id = $1
	`
	var identityID *uuid.UUID
	if snapshot.IdentityID != nil {
		raw := uuid.UUID(*snapshot.IdentityID)
		identityID = &raw
	}
	_, err := s.db.ExecContext(ctx, query,
		uuid.UUID(snapshot.ID), identityID, snapshot.FullName, snapshot.ContactEmail,
		snapshot.Phone, snapshot.Country, snapshot.EmailVerified)
	if err != nil {
		return fmt.Errorf("restore patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) Delete(ctx context.Context, id domain.PatientID) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM patients WHERE id = $1`, uuid.UUID(id)); err != nil {
		return fmt.Errorf("delete patient: %w", err)
	}
	return nil
}

func (s *PostgresStore) FindByID(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	query := `SELECT ` + patientColumns + ` FROM patients WHERE id = $1`
	p, err := scanPatient(s.db.QueryRowContext(ctx, query, uuid.UUID(id)))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find patient: %w", err)
	}
	return p, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPatient(row rowScanner) (*models.Patient, error) {
	var p models.Patient
	var id uuid.UUID
	var identityID *uuid.UUID
	if err := row.Scan(&id, &identityID, &p.FullName, &p.ContactEmail, &p.Phone, &p.Country, &p.EmailVerified, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.ID = domain.PatientID(id)
	if identityID != nil {
		converted := domain.IdentityID(*identityID)
		p.IdentityID = &converted
	}
	return &p, nil
}
