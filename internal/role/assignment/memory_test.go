package assignment

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrip/pkg/domain"
)

func TestUpsertAll_IsIdempotentAndKeepsAttribution(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	profileID := domain.ProfileID(uuid.New())
	roles := []domain.RoleID{domain.RoleID(uuid.New()), domain.RoleID(uuid.New())}
	assignedAt := time.Now()

	require.NoError(t, store.UpsertAll(ctx, profileID, roles, "ops@caretrip.example", assignedAt))
	require.NoError(t, store.UpsertAll(ctx, profileID, roles, "someone-else", assignedAt.Add(time.Hour)))

	listed, err := store.ListByProfile(ctx, profileID)
	require.NoError(t, err)
	require.Len(t, listed, 2)
	for _, a := range listed {
		assert.Equal(t, "ops@caretrip.example", a.AssignedBy)
		assert.Equal(t, assignedAt, a.AssignedAt)
	}
}

func TestDeleteByProfile_LeavesOtherProfilesAlone(t *testing.T) {
	ctx := context.Background()
	store := NewInMemory()
	first := domain.ProfileID(uuid.New())
	second := domain.ProfileID(uuid.New())
	role := domain.RoleID(uuid.New())

	require.NoError(t, store.UpsertAll(ctx, first, []domain.RoleID{role}, "ops", time.Now()))
	require.NoError(t, store.UpsertAll(ctx, second, []domain.RoleID{role}, "ops", time.Now()))

	require.NoError(t, store.DeleteByProfile(ctx, first))

	gone, err := store.ListByProfile(ctx, first)
	require.NoError(t, err)
	assert.Empty(t, gone)

	kept, err := store.ListByProfile(ctx, second)
	require.NoError(t, err)
	assert.Len(t, kept, 1)
	assert.Equal(t, 1, store.Count())
}
