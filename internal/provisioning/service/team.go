package service

import (
	"context"
	"errors"
	"strings"

	"caretrip/internal/identity"
	"caretrip/internal/notifier"
	profilemodels "caretrip/internal/profile/models"
	"caretrip/internal/provisioning/models"
	"caretrip/internal/provisioning/poll"
	"caretrip/internal/provisioning/saga"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/audit"
	"caretrip/pkg/platform/sentinel"
	strutil "caretrip/pkg/platform/strings"
	"caretrip/pkg/requestcontext"
)

// ProvisionTeamAccount runs the staff onboarding saga: identity, invite,
// profile, role assignments. On any step failure every prior mutation is
// compensated and the caller receives exactly one typed error naming the
// first failure.
func (s *Service) ProvisionTeamAccount(ctx context.Context, req models.TeamAccountRequest) (*models.TeamAccount, error) {
	address := email.Normalize(req.Email)
	if address == "" || !strings.Contains(address, "@") {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "a valid email address is required")
	}
	slugs := strutil.DedupeAndTrimLower(req.Roles)
	if len(slugs) == 0 {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "at least one role is required")
	}

	resolution, err := s.deps.Catalog.Resolve(ctx, slugs)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "resolving roles")
	}
	if len(resolution.Missing) > 0 {
		return nil, dErrors.Newf(dErrors.CodeUnknownRole, "unknown roles: %s", strings.Join(resolution.Missing, ", "))
	}
	if resolution.OnlyBaseRole() {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "a team account needs at least one role beyond the base role")
	}

	displayName := strings.TrimSpace(req.DisplayName)
	if displayName == "" {
		displayName = email.DeriveDisplayName(address)
	}

	// Pre-flight uniqueness checks. Advisory only: the identity store's own
	// conflict on create is the authority under concurrency.
	if err := s.checkStaffEmailFree(ctx, address); err != nil {
		return nil, err
	}

	var account *models.TeamAccount
	err = s.saga.Run(ctx, "provision_team_account", func(ctx context.Context, ex *saga.Execution) error {
		created, err := saga.Step(ctx, ex, "create_identity", func(ctx context.Context) (identity.Identity, saga.CompensationFunc, error) {
			id, err := s.deps.Identities.Create(ctx, identity.CreateParams{
				Email: address,
				Metadata: map[string]any{
					identity.MetaAccountType: domain.AccountTypeStaff.String(),
					identity.MetaRoles:       slugs,
					identity.MetaRedirectTo:  s.onboardingRedirect,
				},
			})
			if err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					return identity.Identity{}, nil, dErrors.Newf(dErrors.CodeConflict, "an account already exists for %s", address)
				}
				return identity.Identity{}, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "creating identity")
			}
			return id, func(ctx context.Context) error {
				return s.deleteCreatedIdentity(ctx, id.ID, address)
			}, nil
		})
		if err != nil {
			return err
		}
		s.emitAudit(ctx, audit.Event{
			Subject:   created.ID.String(),
			Action:    audit.ActionIdentityCreated,
			Email:     address,
			ActorID:   requestcontext.ActorID(ctx),
			RequestID: requestcontext.RequestID(ctx),
		})

		link, err := saga.Step(ctx, ex, "generate_invite_link", func(ctx context.Context) (identity.Link, saga.CompensationFunc, error) {
			link, err := s.deps.Identities.GenerateLink(ctx, identity.LinkInvite, address, s.onboardingRedirect)
			if err != nil {
				return identity.Link{}, nil, dErrors.Wrap(err, dErrors.CodeLinkGeneration, "generating invite link")
			}
			return link, nil, nil
		})
		if err != nil {
			return err
		}

		if err := saga.Do(ctx, ex, "send_invite", func(ctx context.Context) (saga.CompensationFunc, error) {
			err := s.deps.Notifier.SendInvite(ctx, notifier.Invite{
				Email:        address,
				Link:         link.URL,
				Roles:        resolution.Slugs(),
				InviterLabel: requestcontext.ActorID(ctx),
			})
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeNotification, "sending invite")
			}
			return nil, nil
		}); err != nil {
			return err
		}

		profile, err := saga.Step(ctx, ex, "await_profile", func(ctx context.Context) (*profilemodels.Profile, saga.CompensationFunc, error) {
			p, attempts, err := s.awaitProfile(ctx, created.ID)
			if s.metrics != nil {
				s.metrics.PollAttempts.Observe(float64(attempts))
			}
			if err != nil {
				return nil, nil, err
			}
			return p, func(ctx context.Context) error {
				return s.deps.Profiles.Delete(ctx, p.ID)
			}, nil
		})
		if err != nil {
			return err
		}

		snapshot := profile.Snapshot()
		finalized, err := saga.Step(ctx, ex, "finalize_profile", func(ctx context.Context) (*profilemodels.Profile, saga.CompensationFunc, error) {
			p, err := s.deps.Profiles.Patch(ctx, profile.ID, profilemodels.Patch{DisplayName: &displayName})
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "finalizing profile")
			}
			return p, func(ctx context.Context) error {
				_, err := s.deps.Profiles.Patch(ctx, profile.ID, snapshot)
				return err
			}, nil
		})
		if err != nil {
			return err
		}

		if err := saga.Do(ctx, ex, "assign_roles", func(ctx context.Context) (saga.CompensationFunc, error) {
			err := s.deps.Assignments.UpsertAll(ctx, finalized.ID, resolution.IDs(),
				requestcontext.ActorID(ctx), requestcontext.Now(ctx))
			if err != nil {
				return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "assigning roles")
			}
			return func(ctx context.Context) error {
				return s.deps.Assignments.DeleteByProfile(ctx, finalized.ID)
			}, nil
		}); err != nil {
			return err
		}

		account = &models.TeamAccount{Profile: *finalized, Roles: resolution.Found}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementProvisioned("team")
	}
	s.emitAudit(ctx, audit.Event{
		Subject:   account.Profile.ID.String(),
		Action:    audit.ActionTeamProvisioned,
		Email:     address,
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
		Detail:    strings.Join(resolution.Slugs(), ","),
	})
	s.logger.InfoContext(ctx, "team account provisioned",
		"profile_id", account.Profile.ID.String(),
		"roles", resolution.Slugs(),
	)
	return account, nil
}

// checkStaffEmailFree rejects addresses already claimed by a profile or an
// identity. An identity on the patient side is a cross-domain violation, not
// a plain conflict, so operators see which boundary was hit.
func (s *Service) checkStaffEmailFree(ctx context.Context, address string) error {
	existing, err := s.deps.Identities.FindByEmail(ctx, address)
	switch {
	case err == nil:
		// Unknown discriminator values fail closed as cross-domain.
		if accountType, ok := existing.AccountType(); !ok || accountType == domain.AccountTypePatient {
			return dErrors.Newf(dErrors.CodeCrossDomain, "%s belongs to the patient portal domain", address)
		}
		return dErrors.Newf(dErrors.CodeConflict, "an identity already exists for %s", address)
	case !errors.Is(err, sentinel.ErrNotFound):
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "checking identity email")
	}

	if _, err := s.deps.Profiles.FindByEmail(ctx, address); err == nil {
		return dErrors.Newf(dErrors.CodeConflict, "a profile already exists for %s", address)
	} else if !errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.Wrap(err, dErrors.CodeStoreFailure, "checking profile email")
	}
	return nil
}

// awaitProfile polls for the profile row the identity platform materializes
// asynchronously after identity creation. Not-found means "not yet"; any
// other store error aborts the poll.
func (s *Service) awaitProfile(ctx context.Context, identityID domain.IdentityID) (*profilemodels.Profile, int, error) {
	p, attempts, err := poll.Await(ctx, s.poll, func(ctx context.Context) (*profilemodels.Profile, bool, error) {
		p, err := s.deps.Profiles.FindByIdentity(ctx, identityID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, dErrors.Wrap(err, dErrors.CodeStoreFailure, "looking up profile")
		}
		return p, true, nil
	})
	if err != nil {
		// A poll budget larger than the call deadline surfaces as the context
		// error instead of ErrExhausted; both mean the row never became visible.
		if errors.Is(err, poll.ErrExhausted) || errors.Is(err, context.DeadlineExceeded) {
			return nil, attempts, dErrors.Wrap(err, dErrors.CodeProfileNotReady, "profile did not materialize in time")
		}
		return nil, attempts, err
	}
	return p, attempts, nil
}
