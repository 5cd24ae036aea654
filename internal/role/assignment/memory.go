// Package assignment persists role assignments. Upserts are commutative and
// conflict-free: the (profile, role) pair is unique and reassigning it is a
// no-op, so concurrent provisioning requests cannot corrupt the set.
package assignment

import (
	"context"
	"sync"
	"time"

	"caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

type pairKey struct {
	profileID domain.ProfileID
	roleID    domain.RoleID
}

// InMemoryStore is the test and local-development assignment store.
type InMemoryStore struct {
	mu          sync.Mutex
	assignments map[pairKey]models.RoleAssignment

	// FailUpsert injects an error for saga unwind tests.
	FailUpsert error
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{assignments: make(map[pairKey]models.RoleAssignment)}
}

func (s *InMemoryStore) UpsertAll(ctx context.Context, profileID domain.ProfileID, roleIDs []domain.RoleID, assignedBy string, assignedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailUpsert != nil {
		return s.FailUpsert
	}
	for _, roleID := range roleIDs {
		key := pairKey{profileID: profileID, roleID: roleID}
		if _, exists := s.assignments[key]; exists {
			continue // DO NOTHING semantics
		}
		s.assignments[key] = models.RoleAssignment{
			ProfileID:  profileID,
			RoleID:     roleID,
			AssignedBy: assignedBy,
			AssignedAt: assignedAt,
		}
	}
	return nil
}

func (s *InMemoryStore) ListByProfile(ctx context.Context, profileID domain.ProfileID) ([]models.RoleAssignment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []models.RoleAssignment
	for key, a := range s.assignments {
		if key.profileID == profileID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *InMemoryStore) DeleteByProfile(ctx context.Context, profileID domain.ProfileID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key := range s.assignments {
		if key.profileID == profileID {
			delete(s.assignments, key)
		}
	}
	return nil
}

// Count returns the number of assignment rows. Test helper.
func (s *InMemoryStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.assignments)
}
