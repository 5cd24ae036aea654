package service

import (
	"context"
	"errors"
	"strings"

	"caretrip/internal/identity"
	"caretrip/internal/notifier"
	patientmodels "caretrip/internal/patient/models"
	profilemodels "caretrip/internal/profile/models"
	"caretrip/internal/provisioning/models"
	"caretrip/internal/provisioning/saga"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/email"
	"caretrip/pkg/platform/audit"
	"caretrip/pkg/platform/sentinel"
	"caretrip/pkg/requestcontext"
)

// ensuredIdentity is the outcome of the create-or-link step: the identity
// backing the patient's portal access, tagged with how it was obtained, plus
// the ownership-proof link when an existing identity was adopted.
type ensuredIdentity struct {
	identity     identity.Identity
	disposition  models.IdentityDisposition
	recoveryLink string
}

// ProvisionPatient creates a patient record, optionally provisioning a
// linked portal identity when a credential is supplied. Without a credential
// this is a single domain write and no saga is needed.
func (s *Service) ProvisionPatient(ctx context.Context, req models.PatientRequest) (*models.PatientAccount, error) {
	fullName := strings.TrimSpace(req.FullName)
	if fullName == "" {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "full name is required")
	}
	address := email.Normalize(req.ContactEmail)
	if req.PortalCredential != "" && (address == "" || !strings.Contains(address, "@")) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "a contact email is required to provision portal access")
	}

	if req.PortalCredential == "" {
		created, err := s.deps.Patients.Create(ctx, patientmodels.Patient{
			FullName:     fullName,
			ContactEmail: address,
			Phone:        req.Phone,
			Country:      req.Country,
		})
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "creating patient")
		}
		s.auditPatient(ctx, created.ID.String(), audit.ActionPatientProvisioned, address)
		return &models.PatientAccount{Patient: *created, Disposition: models.IdentityNone}, nil
	}

	var account *models.PatientAccount
	err := s.saga.Run(ctx, "provision_patient", func(ctx context.Context, ex *saga.Execution) error {
		ensured, err := s.ensurePatientIdentity(ctx, ex, address, req.PortalCredential)
		if err != nil {
			return err
		}

		identityID := ensured.identity.ID
		patient, err := saga.Step(ctx, ex, "create_patient", func(ctx context.Context) (*patientmodels.Patient, saga.CompensationFunc, error) {
			p, err := s.deps.Patients.Create(ctx, patientmodels.Patient{
				IdentityID:   &identityID,
				FullName:     fullName,
				ContactEmail: address,
				Phone:        req.Phone,
				Country:      req.Country,
			})
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "creating patient")
			}
			return p, func(ctx context.Context) error {
				return s.deps.Patients.Delete(ctx, p.ID)
			}, nil
		})
		if err != nil {
			return err
		}

		if err := s.syncProfile(ctx, ex, identityID, fullName, address); err != nil {
			return err
		}
		if err := s.sendPatientWelcome(ctx, ex, ensured, address, fullName, req.PortalCredential); err != nil {
			return err
		}

		account = &models.PatientAccount{
			Patient:     *patient,
			Identity:    &ensured.identity,
			Disposition: ensured.disposition,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementProvisioned("patient")
	}
	s.auditPatient(ctx, account.Patient.ID.String(), audit.ActionPatientProvisioned, address)
	s.logger.InfoContext(ctx, "patient provisioned",
		"patient_id", account.Patient.ID.String(),
		"identity", string(account.Disposition),
	)
	return account, nil
}

// UpdatePatient applies a partial edit, optionally granting portal access to
// a patient without one. A failed saga restores the record to its pre-update
// snapshot rather than deleting it.
func (s *Service) UpdatePatient(ctx context.Context, id domain.PatientID, update models.PatientUpdate) (*models.PatientAccount, error) {
	current, err := s.deps.Patients.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "patient not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading patient")
	}
	if update.GrantPortalCredential != "" && current.IdentityID != nil {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "patient already has portal access")
	}

	address := current.ContactEmail
	if update.ContactEmail != nil {
		address = email.Normalize(*update.ContactEmail)
		update.ContactEmail = &address
	}
	fullName := current.FullName
	if update.FullName != nil {
		fullName = strings.TrimSpace(*update.FullName)
		if fullName == "" {
			return nil, dErrors.New(dErrors.CodeInvalidRequest, "full name cannot be empty")
		}
		update.FullName = &fullName
	}
	if update.GrantPortalCredential != "" && (address == "" || !strings.Contains(address, "@")) {
		return nil, dErrors.New(dErrors.CodeInvalidRequest, "a contact email is required to provision portal access")
	}

	snapshot := current.Snapshot()

	var account *models.PatientAccount
	err = s.saga.Run(ctx, "update_patient", func(ctx context.Context, ex *saga.Execution) error {
		patient, err := saga.Step(ctx, ex, "apply_patient_patch", func(ctx context.Context) (*patientmodels.Patient, saga.CompensationFunc, error) {
			p, err := s.deps.Patients.Update(ctx, id, patientmodels.Patch{
				FullName:     update.FullName,
				ContactEmail: update.ContactEmail,
				Phone:        update.Phone,
				Country:      update.Country,
			})
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "updating patient")
			}
			// The record pre-dates this saga: revert, never delete.
			return p, func(ctx context.Context) error {
				if err := s.deps.Patients.Restore(ctx, snapshot); err != nil {
					return err
				}
				s.auditPatient(ctx, id.String(), audit.ActionPatientReverted, address)
				return nil
			}, nil
		})
		if err != nil {
			return err
		}

		if update.GrantPortalCredential == "" {
			account = &models.PatientAccount{Patient: *patient, Disposition: models.IdentityNone}
			return nil
		}

		ensured, err := s.ensurePatientIdentity(ctx, ex, address, update.GrantPortalCredential)
		if err != nil {
			return err
		}

		identityID := ensured.identity.ID
		// The snapshot restore above also reverts this link on unwind.
		linked, err := saga.Step(ctx, ex, "link_identity", func(ctx context.Context) (*patientmodels.Patient, saga.CompensationFunc, error) {
			p, err := s.deps.Patients.Update(ctx, id, patientmodels.Patch{IdentityID: &identityID})
			if err != nil {
				return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "linking identity to patient")
			}
			return p, nil, nil
		})
		if err != nil {
			return err
		}

		if err := s.syncProfile(ctx, ex, identityID, fullName, address); err != nil {
			return err
		}
		if err := s.sendPatientWelcome(ctx, ex, ensured, address, fullName, update.GrantPortalCredential); err != nil {
			return err
		}

		account = &models.PatientAccount{
			Patient:     *linked,
			Identity:    &ensured.identity,
			Disposition: ensured.disposition,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.auditPatient(ctx, id.String(), audit.ActionPatientUpdated, address)
	return account, nil
}

// ensurePatientIdentity is the create-or-link step. A conflict from the
// identity store is authoritative: it switches the flow to adopting the
// existing identity rather than failing, after re-running the cross-domain
// check against the row that actually won.
func (s *Service) ensurePatientIdentity(ctx context.Context, ex *saga.Execution, address, credential string) (ensuredIdentity, error) {
	existing, err := saga.Step(ctx, ex, "check_domain", func(ctx context.Context) (*identity.Identity, saga.CompensationFunc, error) {
		found, err := s.deps.Identities.FindByEmail(ctx, address)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, nil, nil
			}
			return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "checking identity email")
		}
		if err := rejectStaffIdentity(found, address); err != nil {
			return nil, nil, err
		}
		return &found, nil, nil
	})
	if err != nil {
		return ensuredIdentity{}, err
	}

	if existing == nil {
		created, err := saga.Step(ctx, ex, "create_identity", func(ctx context.Context) (*identity.Identity, saga.CompensationFunc, error) {
			id, err := s.deps.Identities.Create(ctx, identity.CreateParams{
				Email:      address,
				Credential: credential,
				Confirmed:  true,
				Metadata: map[string]any{
					identity.MetaAccountType: domain.AccountTypePatient.String(),
				},
			})
			if err != nil {
				if errors.Is(err, sentinel.ErrConflict) {
					// Lost a race with a concurrent create. The store's
					// conflict is authoritative over the pre-flight check, so
					// fall through to the link path.
					return nil, nil, nil
				}
				return nil, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "creating identity")
			}
			return &id, func(ctx context.Context) error {
				return s.deleteCreatedIdentity(ctx, id.ID, address)
			}, nil
		})
		if err != nil {
			return ensuredIdentity{}, err
		}
		if created != nil {
			s.emitAudit(ctx, audit.Event{
				Subject:   created.ID.String(),
				Action:    audit.ActionIdentityCreated,
				Email:     address,
				ActorID:   requestcontext.ActorID(ctx),
				RequestID: requestcontext.RequestID(ctx),
			})
			return ensuredIdentity{identity: *created, disposition: models.IdentityCreated}, nil
		}

		// Conflict path: resolve the winning row and re-check its domain
		// before adopting it.
		won, err := saga.Step(ctx, ex, "resolve_conflicting_identity", func(ctx context.Context) (identity.Identity, saga.CompensationFunc, error) {
			found, err := s.deps.Identities.FindByEmail(ctx, address)
			if err != nil {
				return identity.Identity{}, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "resolving conflicting identity")
			}
			if err := rejectStaffIdentity(found, address); err != nil {
				return identity.Identity{}, nil, err
			}
			return found, nil, nil
		})
		if err != nil {
			return ensuredIdentity{}, err
		}
		existing = &won
	}

	return s.linkExistingIdentity(ctx, ex, *existing, address, credential)
}

// linkExistingIdentity adopts a pre-existing identity: generate the
// ownership-proof link, then apply the requested credential and mark the
// identity confirmed and patient-linked. The identity is never deleted on
// unwind because this saga did not create it.
func (s *Service) linkExistingIdentity(ctx context.Context, ex *saga.Execution, existing identity.Identity, address, credential string) (ensuredIdentity, error) {
	link, err := saga.Step(ctx, ex, "generate_recovery_link", func(ctx context.Context) (identity.Link, saga.CompensationFunc, error) {
		link, err := s.deps.Identities.GenerateLink(ctx, identity.LinkRecovery, address, s.recoveryRedirect)
		if err != nil {
			return identity.Link{}, nil, dErrors.Wrap(err, dErrors.CodeLinkGeneration, "generating recovery link")
		}
		return link, nil, nil
	})
	if err != nil {
		return ensuredIdentity{}, err
	}

	updated, err := saga.Step(ctx, ex, "update_identity", func(ctx context.Context) (identity.Identity, saga.CompensationFunc, error) {
		confirmed := true
		id, err := s.deps.Identities.Update(ctx, existing.ID, identity.UpdateParams{
			Credential: &credential,
			Confirmed:  &confirmed,
			Metadata: map[string]any{
				identity.MetaAccountType: domain.AccountTypePatient.String(),
			},
		})
		if err != nil {
			return identity.Identity{}, nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "updating identity")
		}
		return id, nil, nil
	})
	if err != nil {
		return ensuredIdentity{}, err
	}

	s.emitAudit(ctx, audit.Event{
		Subject:   updated.ID.String(),
		Action:    audit.ActionIdentityLinked,
		Email:     address,
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return ensuredIdentity{identity: updated, disposition: models.IdentityLinked, recoveryLink: link.URL}, nil
}

// syncProfile upserts the profile mirror from patient attributes. The upsert
// compensation depends on what was there before: a row this saga inserted is
// deleted, a pre-existing row is patched back.
func (s *Service) syncProfile(ctx context.Context, ex *saga.Execution, identityID domain.IdentityID, fullName, address string) error {
	return saga.Do(ctx, ex, "sync_profile", func(ctx context.Context) (saga.CompensationFunc, error) {
		prior, err := s.deps.Profiles.FindByIdentity(ctx, identityID)
		if err != nil && !errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "loading profile")
		}

		upserted, err := s.deps.Profiles.Upsert(ctx, profilemodels.Attrs{
			IdentityID:  &identityID,
			DisplayName: fullName,
			Email:       address,
		})
		if err != nil {
			if errors.Is(err, sentinel.ErrConflict) {
				return nil, dErrors.Newf(dErrors.CodeConflict, "a profile already exists for %s", address)
			}
			return nil, dErrors.Wrap(err, dErrors.CodeStoreFailure, "synchronizing profile")
		}

		if prior == nil {
			return func(ctx context.Context) error {
				return s.deps.Profiles.Delete(ctx, upserted.ID)
			}, nil
		}
		priorSnapshot := prior.Snapshot()
		return func(ctx context.Context) error {
			_, err := s.deps.Profiles.Patch(ctx, prior.ID, priorSnapshot)
			return err
		}, nil
	})
}

// sendPatientWelcome dispatches the welcome notification. A freshly created
// identity ships the chosen credential; an adopted one ships the recovery
// link as ownership proof.
func (s *Service) sendPatientWelcome(ctx context.Context, ex *saga.Execution, ensured ensuredIdentity, address, fullName, credential string) error {
	return saga.Do(ctx, ex, "send_welcome", func(ctx context.Context) (saga.CompensationFunc, error) {
		welcome := notifier.Welcome{
			Email:       address,
			DisplayName: fullName,
		}
		if ensured.disposition == models.IdentityLinked {
			welcome.RecoveryLink = ensured.recoveryLink
		} else {
			welcome.Credential = credential
		}
		if err := s.deps.Notifier.SendWelcome(ctx, welcome); err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeNotification, "sending welcome")
		}
		return nil, nil
	})
}

// rejectStaffIdentity enforces domain isolation: a staff identity may never
// back a patient record. Unknown discriminator values fail closed.
func rejectStaffIdentity(found identity.Identity, address string) error {
	accountType, ok := found.AccountType()
	if !ok || accountType.IsStaff() {
		return dErrors.Newf(dErrors.CodeCrossDomain, "%s belongs to the staff domain", address)
	}
	return nil
}

func (s *Service) auditPatient(ctx context.Context, subject, action, address string) {
	s.emitAudit(ctx, audit.Event{
		Subject:   subject,
		Action:    action,
		Email:     address,
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
}
