package service_test

import (
	"context"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"caretrip/internal/identity"
	identitymem "caretrip/internal/identity/memory"
	"caretrip/internal/provisioning/models"
	"caretrip/pkg/domain"
	dErrors "caretrip/pkg/domain-errors"
	"caretrip/pkg/platform/sentinel"
)

func patientRequest() models.PatientRequest {
	return models.PatientRequest{
		FullName:         "Maria Santos",
		ContactEmail:     "maria.santos@example.com",
		Phone:            "+55 11 91234-5678",
		Country:          "BR",
		PortalCredential: "initial-portal-secret",
	}
}

func TestProvisionPatient_WithoutCredential(t *testing.T) {
	f := newFixture(t)

	req := patientRequest()
	req.PortalCredential = ""
	account, err := f.svc.ProvisionPatient(context.Background(), req)
	require.NoError(t, err)

	assert.Equal(t, models.IdentityNone, account.Disposition)
	assert.Nil(t, account.Identity)
	assert.Nil(t, account.Patient.IdentityID)
	assert.Equal(t, 0, f.identities.Count(), "no credential means no identity")
	assert.Equal(t, 1, f.patients.Count())
}

func TestProvisionPatient_WithCredentialCreatesIdentity(t *testing.T) {
	f := newFixture(t)

	account, err := f.svc.ProvisionPatient(context.Background(), patientRequest())
	require.NoError(t, err)

	assert.Equal(t, models.IdentityCreated, account.Disposition)
	require.NotNil(t, account.Identity)
	require.NotNil(t, account.Patient.IdentityID)
	assert.Equal(t, account.Identity.ID, *account.Patient.IdentityID)

	accountType, ok := account.Identity.AccountType()
	require.True(t, ok)
	assert.Equal(t, domain.AccountTypePatient, accountType)
	assert.True(t, account.Identity.Confirmed)
	assert.True(t, f.identities.VerifyCredential("maria.santos@example.com", "initial-portal-secret"))

	// The profile mirror carries the patient's attributes.
	profile, err := f.profiles.FindByIdentity(context.Background(), account.Identity.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", profile.DisplayName)

	welcomes := f.notifier.Welcomes()
	require.Len(t, welcomes, 1)
	assert.Equal(t, "initial-portal-secret", welcomes[0].Credential)
	assert.Empty(t, welcomes[0].RecoveryLink)
}

func TestProvisionPatient_ExistingIdentityIsLinkedNotDuplicated(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.identities.Create(ctx, identity.CreateParams{
		Email:    "maria.santos@example.com",
		Metadata: map[string]any{identity.MetaAccountType: domain.AccountTypePatient.String()},
	})
	require.NoError(t, err)

	account, err := f.svc.ProvisionPatient(ctx, patientRequest())
	require.NoError(t, err)

	assert.Equal(t, models.IdentityLinked, account.Disposition)
	assert.Equal(t, existing.ID, account.Identity.ID)
	assert.Equal(t, 1, f.identities.Count(), "linking must never mint a second identity")
	assert.True(t, account.Identity.Confirmed)
	assert.True(t, f.identities.VerifyCredential("maria.santos@example.com", "initial-portal-secret"))

	// An adopted identity gets ownership proof, not the raw credential.
	welcomes := f.notifier.Welcomes()
	require.Len(t, welcomes, 1)
	assert.NotEmpty(t, welcomes[0].RecoveryLink)
	assert.Empty(t, welcomes[0].Credential)
}

func TestProvisionPatient_StaffIdentityIsCrossDomain(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identities.Create(ctx, identity.CreateParams{
		Email:    "maria.santos@example.com",
		Metadata: map[string]any{identity.MetaAccountType: domain.AccountTypeStaff.String()},
	})
	require.NoError(t, err)

	_, err = f.svc.ProvisionPatient(ctx, patientRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeCrossDomain), "got %v", err)
	assert.Equal(t, 0, f.patients.Count(), "cross-domain violations must perform no writes")
	assert.Equal(t, 1, f.identities.Count())
}

// hideFirstLookup wraps the identity fake so the first FindByEmail misses,
// reproducing a row that lands between the pre-flight check and the create.
type hideFirstLookup struct {
	*identitymem.Store
	mu   sync.Mutex
	seen bool
}

func (h *hideFirstLookup) FindByEmail(ctx context.Context, address string) (identity.Identity, error) {
	h.mu.Lock()
	first := !h.seen
	h.seen = true
	h.mu.Unlock()
	if first {
		return identity.Identity{}, sentinel.ErrNotFound
	}
	return h.Store.FindByEmail(ctx, address)
}

func TestProvisionPatient_CreateConflictSwitchesToLink(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	existing, err := f.identities.Create(ctx, identity.CreateParams{
		Email:    "maria.santos@example.com",
		Metadata: map[string]any{identity.MetaAccountType: domain.AccountTypePatient.String()},
	})
	require.NoError(t, err)

	// First FindByEmail misses, as if the row landed between the pre-flight
	// check and the create.
	f.rebuildService(t, &hideFirstLookup{Store: f.identities})

	account, err := f.svc.ProvisionPatient(ctx, patientRequest())
	require.NoError(t, err)

	assert.Equal(t, models.IdentityLinked, account.Disposition)
	assert.Equal(t, existing.ID, account.Identity.ID)
	assert.Equal(t, 1, f.identities.Count())
}

func TestProvisionPatient_WelcomeFailureUnwindsEverything(t *testing.T) {
	f := newFixture(t)
	f.notifier.FailWelcome = assert.AnError

	_, err := f.svc.ProvisionPatient(context.Background(), patientRequest())
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotification), "got %v", err)

	assert.Equal(t, 0, f.identities.Count(), "created identity must be compensated")
	assert.Equal(t, 0, f.patients.Count(), "created patient must be compensated")
	assert.Equal(t, 0, f.profiles.Count())
}

func TestProvisionPatient_LinkedIdentitySurvivesUnwind(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.identities.Create(ctx, identity.CreateParams{
		Email:    "maria.santos@example.com",
		Metadata: map[string]any{identity.MetaAccountType: domain.AccountTypePatient.String()},
	})
	require.NoError(t, err)
	f.notifier.FailWelcome = assert.AnError

	_, err = f.svc.ProvisionPatient(ctx, patientRequest())
	require.Error(t, err)

	// The adopted identity pre-dates the saga and must not be deleted.
	assert.Equal(t, 1, f.identities.Count())
	assert.Equal(t, 0, f.patients.Count())
}

func TestProvisionPatient_Validation(t *testing.T) {
	f := newFixture(t)

	req := patientRequest()
	req.FullName = "  "
	_, err := f.svc.ProvisionPatient(context.Background(), req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest), "got %v", err)

	req = patientRequest()
	req.ContactEmail = ""
	_, err = f.svc.ProvisionPatient(context.Background(), req)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest), "got %v", err)
}

func TestUpdatePatient_Fields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := patientRequest()
	req.PortalCredential = ""
	created, err := f.svc.ProvisionPatient(ctx, req)
	require.NoError(t, err)

	newName := "Maria Santos-Oliveira"
	newPhone := "+55 11 98888-0000"
	updated, err := f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		FullName: &newName,
		Phone:    &newPhone,
	})
	require.NoError(t, err)
	assert.Equal(t, newName, updated.Patient.FullName)
	assert.Equal(t, newPhone, updated.Patient.Phone)
	assert.Equal(t, "BR", updated.Patient.Country, "untouched fields keep their values")
	assert.Equal(t, models.IdentityNone, updated.Disposition)
}

func TestUpdatePatient_GrantPortalAccess(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := patientRequest()
	req.PortalCredential = ""
	created, err := f.svc.ProvisionPatient(ctx, req)
	require.NoError(t, err)
	require.Nil(t, created.Patient.IdentityID)

	updated, err := f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		GrantPortalCredential: "patient-chosen-secret",
	})
	require.NoError(t, err)
	assert.Equal(t, models.IdentityCreated, updated.Disposition)
	require.NotNil(t, updated.Patient.IdentityID)
	assert.True(t, f.identities.VerifyCredential("maria.santos@example.com", "patient-chosen-secret"))
	require.Len(t, f.notifier.Welcomes(), 1)
}

func TestUpdatePatient_AlreadyLinkedRejectsNewCredential(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	created, err := f.svc.ProvisionPatient(ctx, patientRequest())
	require.NoError(t, err)

	_, err = f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		GrantPortalCredential: "another-secret",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidRequest), "got %v", err)
}

func TestUpdatePatient_FailedSagaRestoresSnapshot(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := patientRequest()
	req.PortalCredential = ""
	created, err := f.svc.ProvisionPatient(ctx, req)
	require.NoError(t, err)

	f.notifier.FailWelcome = assert.AnError
	newName := "Changed Name"
	newPhone := "+00 00 0000"
	_, err = f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		FullName:              &newName,
		Phone:                 &newPhone,
		GrantPortalCredential: "secret",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotification), "got %v", err)

	// The record is restored field for field, never deleted.
	restored, err := f.patients.FindByID(ctx, created.Patient.ID)
	require.NoError(t, err)
	assert.Equal(t, "Maria Santos", restored.FullName)
	assert.Equal(t, "+55 11 91234-5678", restored.Phone)
	assert.Nil(t, restored.IdentityID, "the link is reverted with the snapshot")
	assert.Equal(t, 0, f.identities.Count(), "the mid-update identity is deleted")
}

func TestUpdatePatient_NotFound(t *testing.T) {
	f := newFixture(t)

	name := "Anyone"
	_, err := f.svc.UpdatePatient(context.Background(), domain.PatientID(uuid.New()), models.PatientUpdate{
		FullName: &name,
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeNotFound), "got %v", err)
}

func TestUpdatePatient_ProfileEmailConflictIsConflict(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := patientRequest()
	req.PortalCredential = ""
	created, err := f.svc.ProvisionPatient(ctx, req)
	require.NoError(t, err)

	// The unique index reports another profile already owning the address.
	f.profiles.FailUpsert = sentinel.ErrConflict
	_, err = f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		GrantPortalCredential: "secret",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeConflict), "got %v", err)

	restored, err := f.patients.FindByID(ctx, created.Patient.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.IdentityID)
	assert.Equal(t, 0, f.identities.Count(), "the mid-update identity is deleted")
}

func TestUpdatePatient_StoreFailureLeavesNoPartialState(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	req := patientRequest()
	req.PortalCredential = ""
	created, err := f.svc.ProvisionPatient(ctx, req)
	require.NoError(t, err)

	f.profiles.FailUpsert = sentinel.ErrUnavailable
	_, err = f.svc.UpdatePatient(ctx, created.Patient.ID, models.PatientUpdate{
		GrantPortalCredential: "secret",
	})
	require.Error(t, err)
	assert.True(t, dErrors.HasCode(err, dErrors.CodeStoreFailure), "got %v", err)

	restored, err := f.patients.FindByID(ctx, created.Patient.ID)
	require.NoError(t, err)
	assert.Nil(t, restored.IdentityID)
	assert.Equal(t, 0, f.identities.Count())
}
