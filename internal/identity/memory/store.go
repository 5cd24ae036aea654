// Package memory is an in-memory identity store for tests and local
// development. It mirrors the external store's observable behavior: unique
// emails, asynchronous profile materialization (via an OnCreate hook), and
// one-time action links.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"caretrip/internal/identity"
	"caretrip/pkg/domain"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/sentinel"
)

type record struct {
	identity       identity.Identity
	credentialHash []byte
}

// Store holds identities in memory. Credentials are stored as bcrypt hashes;
// plaintext never survives the Create/Update call.
type Store struct {
	mu      sync.Mutex
	byID    map[domain.IdentityID]*record
	byEmail map[string]domain.IdentityID

	// OnCreate, when set, runs after a successful create. The production
	// store populates a profile row through a database trigger; tests wire
	// this hook to simulate that side effect, immediately or after a delay.
	OnCreate func(identity.Identity)

	// FailCreate, FailDelete, FailLink inject errors for saga unwind tests.
	FailCreate error
	FailDelete error
	FailLink   error
}

func New() *Store {
	return &Store{
		byID:    make(map[domain.IdentityID]*record),
		byEmail: make(map[string]domain.IdentityID),
	}
}

func (s *Store) Create(ctx context.Context, params identity.CreateParams) (identity.Identity, error) {
	s.mu.Lock()
	if s.FailCreate != nil {
		err := s.FailCreate
		s.mu.Unlock()
		return identity.Identity{}, err
	}

	normalized := email.Normalize(params.Email)
	if _, exists := s.byEmail[normalized]; exists {
		s.mu.Unlock()
		return identity.Identity{}, sentinel.ErrConflict
	}

	metadata := make(map[string]any, len(params.Metadata))
	for k, v := range params.Metadata {
		metadata[k] = v
	}
	ident := identity.Identity{
		ID:        domain.IdentityID(uuid.New()),
		Email:     normalized,
		Confirmed: params.Confirmed,
		Metadata:  metadata,
	}

	rec := &record{identity: ident}
	if params.Credential != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(params.Credential), bcrypt.MinCost)
		if err != nil {
			s.mu.Unlock()
			return identity.Identity{}, fmt.Errorf("hash credential: %w", err)
		}
		rec.credentialHash = hash
	}

	s.byID[ident.ID] = rec
	s.byEmail[normalized] = ident.ID
	hook := s.OnCreate
	s.mu.Unlock()

	if hook != nil {
		hook(ident)
	}
	return ident, nil
}

func (s *Store) Update(ctx context.Context, id domain.IdentityID, params identity.UpdateParams) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return identity.Identity{}, sentinel.ErrNotFound
	}

	if params.Credential != nil {
		hash, err := bcrypt.GenerateFromPassword([]byte(*params.Credential), bcrypt.MinCost)
		if err != nil {
			return identity.Identity{}, fmt.Errorf("hash credential: %w", err)
		}
		rec.credentialHash = hash
	}
	if params.Confirmed != nil {
		rec.identity.Confirmed = *params.Confirmed
	}
	if rec.identity.Metadata == nil {
		rec.identity.Metadata = make(map[string]any)
	}
	for k, v := range params.Metadata {
		rec.identity.Metadata[k] = v
	}
	return rec.identity, nil
}

func (s *Store) Delete(ctx context.Context, id domain.IdentityID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailDelete != nil {
		return s.FailDelete
	}
	rec, ok := s.byID[id]
	if !ok {
		return nil // compensation is idempotent
	}
	delete(s.byEmail, rec.identity.Email)
	delete(s.byID, id)
	return nil
}

func (s *Store) Get(ctx context.Context, id domain.IdentityID) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.byID[id]
	if !ok {
		return identity.Identity{}, sentinel.ErrNotFound
	}
	return rec.identity, nil
}

func (s *Store) FindByEmail(ctx context.Context, address string) (identity.Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return identity.Identity{}, sentinel.ErrNotFound
	}
	return s.byID[id].identity, nil
}

func (s *Store) GenerateLink(ctx context.Context, kind identity.LinkType, address, redirectTo string) (identity.Link, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.FailLink != nil {
		return identity.Link{}, s.FailLink
	}
	id, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return identity.Link{}, sentinel.ErrNotFound
	}
	token := uuid.NewString()
	return identity.Link{
		URL:        fmt.Sprintf("https://auth.local/verify?type=%s&token=%s&redirect_to=%s", kind, token, redirectTo),
		IdentityID: id,
	}, nil
}

// VerifyCredential checks a plaintext credential against the stored hash.
// Test helper; the real store does this inside its token endpoint.
func (s *Store) VerifyCredential(address, credential string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	id, ok := s.byEmail[email.Normalize(address)]
	if !ok {
		return false
	}
	rec := s.byID[id]
	if rec.credentialHash == nil {
		return false
	}
	return bcrypt.CompareHashAndPassword(rec.credentialHash, []byte(credential)) == nil
}

// Count returns the number of identities. Test helper for atomicity checks.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.byID)
}
