package service

import (
	"context"
	"errors"

	"caretrip/internal/provisioning/models"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/audit"
	"caretrip/pkg/platform/sentinel"
	"caretrip/pkg/requestcontext"
)

// DeprovisionTeamAccount tears a staff account down: role assignments first,
// then the identity, then the profile row. This is forward teardown, not a
// saga; the steps are individually idempotent, so a failed run is retried
// rather than compensated.
func (s *Service) DeprovisionTeamAccount(ctx context.Context, profileID domain.ProfileID) (*models.Deprovisioned, error) {
	profile, err := s.deps.Profiles.FindByID(ctx, profileID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "profile not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading profile")
	}

	// Assignments go first so a partially torn-down account has no
	// privileges left even if a later step fails.
	if err := s.deps.Assignments.DeleteByProfile(ctx, profileID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "removing role assignments")
	}

	result := &models.Deprovisioned{ProfileID: profileID, RolesRemoved: true}
	if profile.IdentityID != nil {
		if err := s.deps.Identities.Delete(ctx, *profile.IdentityID); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "deleting identity")
		}
		result.IdentityDeleted = true
	}

	if err := s.deps.Profiles.Delete(ctx, profileID); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "deleting profile")
	}

	s.emitAudit(ctx, audit.Event{
		Subject:   profileID.String(),
		Action:    audit.ActionTeamDeprovisioned,
		Email:     profile.Email,
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.logger.InfoContext(ctx, "team account deprovisioned", "profile_id", profileID.String())
	return result, nil
}
