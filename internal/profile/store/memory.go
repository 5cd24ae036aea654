// Package store persists profile rows. The production schema is owned by the
// identity platform's database; this adapter only reads and patches the
// mirror table.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"caretrip/internal/profile/models"
	"caretrip/pkg/domain"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/sentinel"
)

// InMemoryStore is the test and local-development profile store.
type InMemoryStore struct {
	mu       sync.Mutex
	profiles map[domain.ProfileID]*models.Profile

	// FailPatch and FailUpsert inject errors for saga unwind tests.
	FailPatch  error
	FailUpsert error
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{profiles: make(map[domain.ProfileID]*models.Profile)}
}

// Insert adds a profile row directly. Test helper standing in for the
// identity platform's trigger, which populates the row asynchronously after
// identity creation.
func (s *InMemoryStore) Insert(p models.Profile) models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p.ID.IsNil() {
		p.ID = domain.ProfileID(uuid.New())
	}
	p.Email = email.Normalize(p.Email)
	now := time.Now()
	if p.CreatedAt.IsZero() {
		p.CreatedAt = now
	}
	p.UpdatedAt = now
	stored := p
	s.profiles[p.ID] = &stored
	return stored
}

func (s *InMemoryStore) FindByID(ctx context.Context, id domain.ProfileID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) FindByIdentity(ctx context.Context, identityID domain.IdentityID) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, p := range s.profiles {
		if p.IdentityID != nil && *p.IdentityID == identityID {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) FindByEmail(ctx context.Context, address string) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	normalized := email.Normalize(address)
	for _, p := range s.profiles {
		if p.Email == normalized {
			copied := *p
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryStore) Patch(ctx context.Context, id domain.ProfileID, patch models.Patch) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailPatch != nil {
		return nil, s.FailPatch
	}
	p, ok := s.profiles[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	if patch.DisplayName != nil {
		p.DisplayName = *patch.DisplayName
	}
	if patch.Email != nil {
		p.Email = email.Normalize(*patch.Email)
	}
	p.UpdatedAt = time.Now()
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) Upsert(ctx context.Context, attrs models.Attrs) (*models.Profile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpsert != nil {
		return nil, s.FailUpsert
	}

	// Insert; on identity conflict fall back to update, matching the
	// ON CONFLICT clause of the postgres adapter.
	if attrs.IdentityID != nil {
		for _, p := range s.profiles {
			if p.IdentityID != nil && *p.IdentityID == *attrs.IdentityID {
				p.DisplayName = attrs.DisplayName
				p.Email = email.Normalize(attrs.Email)
				p.UpdatedAt = time.Now()
				copied := *p
				return &copied, nil
			}
		}
	}

	now := time.Now()
	p := &models.Profile{
		ID:          domain.ProfileID(uuid.New()),
		IdentityID:  attrs.IdentityID,
		DisplayName: attrs.DisplayName,
		Email:       email.Normalize(attrs.Email),
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.profiles[p.ID] = p
	copied := *p
	return &copied, nil
}

func (s *InMemoryStore) Delete(ctx context.Context, id domain.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.profiles, id) // idempotent; compensation may run twice
	return nil
}

// Count returns the number of profile rows. Test helper for atomicity checks.
func (s *InMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.profiles)
}
