// Package store persists patient domain records.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"caretrip/internal/patient/models"
	"caretrip/pkg/domain"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/sentinel"
)

// InMemoryStore is the test and local-development patient store.
type InMemoryStore struct {
	mu       sync.Mutex
	patients map[domain.PatientID]*models.Patient

	// FailCreate, FailUpdate, FailDelete inject errors for saga unwind tests.
	FailCreate error
	FailUpdate error
	FailDelete error
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{patients: make(map[domain.PatientID]*models.Patient)}
}

func (s *InMemoryStore) Create(ctx context.Context, p models.Patient) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailCreate != nil {
		return nil, s.FailCreate
	}
	if p.ID.IsNil() {
		p.ID = domain.PatientID(uuid.New())
	}
	p.ContactEmail = email.Normalize(p.ContactEmail)
	now := time.Now()
	p.CreatedAt = now
	p.UpdatedAt = now
	stored := p
	s.patients[p.ID] = &stored
	copied := stored
	return &copied, nil
}

func (s *InMemoryStore) Update(ctx context.Context, id domain.PatientID, patch models.Patch) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpdate != nil {
		return nil, s.FailUpdate
	}
	p, ok := s.patients[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	applyPatch(p, patch)
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

// Restore writes a pre-saga snapshot back verbatim. Compensation for failed
// update sagas; the record is restored, never deleted.
func (s *InMemoryStore) Restore(ctx context.Context, snapshot models.Patient) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := snapshot
	s.patients[snapshot.ID] = &restored
	return nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.PatientID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete != nil {
		return s.FailDelete
	}
	delete(s.patients, id) // idempotent; compensation may run twice
	return nil
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.PatientID) (*models.Patient, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patients[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

// Count returns the number of patient rows. Test helper.
func (s *InMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.patients)
}

func applyPatch(p *models.Patient, patch models.Patch) {
	if patch.IdentityID != nil {
		identityID := *patch.IdentityID
		p.IdentityID = &identityID
	}
	if patch.FullName != nil {
		p.FullName = *patch.FullName
	}
	if patch.ContactEmail != nil {
		p.ContactEmail = email.Normalize(*patch.ContactEmail)
	}
	if patch.Phone != nil {
		p.Phone = *patch.Phone
	}
	if patch.Country != nil {
		p.Country = *patch.Country
	}
	if patch.EmailVerified != nil {
		p.EmailVerified = *patch.EmailVerified
	}
}
