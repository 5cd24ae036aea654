package models

import (
	"time"

	"caretrip/pkg/domain"
)

// Patient is the domain record for a person traveling for treatment. One
// patient may or may not be linked to a portal identity; IdentityID stays nil
// until a portal credential is provisioned.
type Patient struct {
	ID            domain.PatientID   `json:"id"`
	IdentityID    *domain.IdentityID `json:"identity_id,omitempty"`
	FullName      string             `json:"full_name"`
	ContactEmail  string             `json:"contact_email"`
	Phone         string             `json:"phone"`
	Country       string             `json:"country"`
	EmailVerified bool               `json:"email_verified"`
	CreatedAt     time.Time          `json:"created_at"`
	UpdatedAt     time.Time          `json:"updated_at"`
}

// Patch carries the mutable fields of a patient record. Nil fields are left
// untouched on update; IdentityID only ever links an identity, never unlinks
// one (reverting a link happens through Restore with a pre-saga snapshot).
type Patch struct {
	IdentityID    *domain.IdentityID
	FullName      *string
	ContactEmail  *string
	Phone         *string
	Country       *string
	EmailVerified *bool
}

// Snapshot returns a value copy of the record. A failed update saga hands the
// snapshot to the store's Restore to put every field back exactly as it was.
func (p *Patient) Snapshot() Patient {
	snap := *p
	if p.IdentityID != nil {
		identityID := *p.IdentityID
		snap.IdentityID = &identityID
	}
	return snap
}
