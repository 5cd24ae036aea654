// Package models holds the request and result shapes for account
// provisioning flows.
package models

import (
	"caretrip/internal/identity"
	patientmodels "caretrip/internal/patient/models"
	profilemodels "caretrip/internal/profile/models"
	rolemodels "caretrip/internal/role/models"
	"caretrip/pkg/domain"
)

// TeamAccountRequest asks for a staff account with a set of role slugs.
// DisplayName is optional; when empty it is derived from the email local
// part.
type TeamAccountRequest struct {
	Email       string
	DisplayName string
	Roles       []string
}

// TeamAccount is the fully provisioned staff account view.
type TeamAccount struct {
	Profile profilemodels.Profile
	Roles   []rolemodels.RoleDefinition
}

// PatientRequest carries the patient intake fields. PortalCredential, when
// set, requests a linked portal identity alongside the patient record.
type PatientRequest struct {
	FullName         string
	ContactEmail     string
	Phone            string
	Country          string
	PortalCredential string
}

// PatientUpdate carries a partial patient edit. Nil fields are untouched.
// GrantPortalCredential, when set, links a portal identity to a patient that
// does not have one yet.
type PatientUpdate struct {
	FullName              *string
	ContactEmail          *string
	Phone                 *string
	Country               *string
	GrantPortalCredential string
}

// IdentityDisposition says how the flow obtained the identity backing an
// account.
type IdentityDisposition string

const (
	// IdentityCreated means a fresh identity was provisioned.
	IdentityCreated IdentityDisposition = "created"
	// IdentityLinked means an existing identity with the same email was
	// adopted instead of creating a duplicate.
	IdentityLinked IdentityDisposition = "linked"
	// IdentityNone means the flow did not touch the identity store.
	IdentityNone IdentityDisposition = "none"
)

// PatientAccount is the provisioned patient record plus how its portal
// identity, if any, came to be.
type PatientAccount struct {
	Patient     patientmodels.Patient
	Identity    *identity.Identity
	Disposition IdentityDisposition
}

// Deprovisioned reports what a teardown removed.
type Deprovisioned struct {
	ProfileID       domain.ProfileID
	IdentityDeleted bool
	RolesRemoved    bool
}
