package store

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"caretrip/internal/profile/models"
	"caretrip/pkg/domain"
	"caretrip/pkg/platform/sentinel"
)

type ProfileMemorySuite struct {
	suite.Suite
	store *InMemoryStore
	ctx   context.Context
}

func (s *ProfileMemorySuite) SetupTest() {
	s.store = NewInMemory()
	s.ctx = context.Background()
}

func TestProfileMemorySuite(t *testing.T) {
	suite.Run(t, new(ProfileMemorySuite))
}

func (s *ProfileMemorySuite) upsert(identityID domain.IdentityID, displayName, email string) *models.Profile {
	p, err := s.store.Upsert(s.ctx, models.Attrs{
		IdentityID:  &identityID,
		DisplayName: displayName,
		Email:       email,
	})
	s.Require().NoError(err)
	return p
}

func (s *ProfileMemorySuite) TestUpsertInsertsThenUpdates() {
	identityID := domain.IdentityID(uuid.New())

	first := s.upsert(identityID, "Ana", "ana@clinic.example.com")
	second := s.upsert(identityID, "Ana Lima", "ana@clinic.example.com")

	s.Equal(first.ID, second.ID)
	s.Equal("Ana Lima", second.DisplayName)
	s.Equal(1, s.store.Count())
}

func (s *ProfileMemorySuite) TestLookups() {
	identityID := domain.IdentityID(uuid.New())
	created := s.upsert(identityID, "Ana", "Ana@Clinic.example.com")

	s.Run("by ID", func() {
		found, err := s.store.FindByID(s.ctx, created.ID)
		s.Require().NoError(err)
		s.Equal(created.ID, found.ID)
	})

	s.Run("by identity", func() {
		found, err := s.store.FindByIdentity(s.ctx, identityID)
		s.Require().NoError(err)
		s.Equal(created.ID, found.ID)
	})

	s.Run("by email, case-insensitive", func() {
		found, err := s.store.FindByEmail(s.ctx, "ANA@clinic.example.com")
		s.Require().NoError(err)
		s.Equal(created.ID, found.ID)
	})

	s.Run("misses return ErrNotFound", func() {
		_, err := s.store.FindByID(s.ctx, domain.ProfileID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)

		_, err = s.store.FindByIdentity(s.ctx, domain.IdentityID(uuid.New()))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *ProfileMemorySuite) TestPatchLeavesNilFieldsAlone() {
	identityID := domain.IdentityID(uuid.New())
	created := s.upsert(identityID, "Ana", "ana@clinic.example.com")

	displayName := "Dr. Ana Lima"
	patched, err := s.store.Patch(s.ctx, created.ID, models.Patch{DisplayName: &displayName})
	s.Require().NoError(err)
	s.Equal("Dr. Ana Lima", patched.DisplayName)
	s.Equal("ana@clinic.example.com", patched.Email)

	_, err = s.store.Patch(s.ctx, domain.ProfileID(uuid.New()), models.Patch{DisplayName: &displayName})
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}

func (s *ProfileMemorySuite) TestSnapshotRoundTrip() {
	identityID := domain.IdentityID(uuid.New())
	created := s.upsert(identityID, "Ana", "ana@clinic.example.com")
	snapshot := created.Snapshot()

	changed := "Someone Else"
	_, err := s.store.Patch(s.ctx, created.ID, models.Patch{DisplayName: &changed})
	s.Require().NoError(err)

	restored, err := s.store.Patch(s.ctx, created.ID, snapshot)
	s.Require().NoError(err)
	s.Equal("Ana", restored.DisplayName)
}

func (s *ProfileMemorySuite) TestDelete() {
	identityID := domain.IdentityID(uuid.New())
	created := s.upsert(identityID, "Ana", "ana@clinic.example.com")

	s.Require().NoError(s.store.Delete(s.ctx, created.ID))
	s.Equal(0, s.store.Count())

	_, err := s.store.FindByIdentity(s.ctx, identityID)
	s.Require().ErrorIs(err, sentinel.ErrNotFound)
}
