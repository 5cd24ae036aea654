package service

import (
	"context"
	"errors"

	"golang.org/x/sync/errgroup"

	profilemodels "caretrip/internal/profile/models"
	"caretrip/internal/provisioning/models"
	rolemodels "caretrip/internal/role/models"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/sentinel"
)

// GetTeamAccount composes the profile and its resolved roles. The two reads
// hit independent tables, so they run concurrently.
func (s *Service) GetTeamAccount(ctx context.Context, profileID domain.ProfileID) (*models.TeamAccount, error) {
	var (
		profile *profilemodels.Profile
		roles   []rolemodels.RoleDefinition
	)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		p, err := s.deps.Profiles.FindByID(ctx, profileID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "profile not found")
			}
			return dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading profile")
		}
		profile = p
		return nil
	})
	g.Go(func() error {
		assignments, err := s.deps.Assignments.ListByProfile(ctx, profileID)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStoreFailure, "listing role assignments")
		}
		ids := make([]domain.RoleID, 0, len(assignments))
		for _, a := range assignments {
			ids = append(ids, a.RoleID)
		}
		defs, err := s.deps.Catalog.ResolveIDs(ctx, ids)
		if err != nil {
			return dErrors.Wrap(err, dErrors.CodeStoreFailure, "resolving roles")
		}
		roles = defs
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return &models.TeamAccount{Profile: *profile, Roles: roles}, nil
}
