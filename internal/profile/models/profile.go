package models

import (
	"time"

	"caretrip/pkg/domain"
)

// Profile mirrors an authentication identity with display attributes.
// Invariant: a profile row may exist before its identity's creation call has
// returned to the caller (the identity store populates it asynchronously), so
// lookup-by-identity must tolerate "not yet visible".
type Profile struct {
	ID          domain.ProfileID   `json:"id"`
	IdentityID  *domain.IdentityID `json:"identity_id,omitempty"`
	DisplayName string             `json:"display_name"`
	Email       string             `json:"email"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
}

// Patch carries the display fields the staff flow updates after the profile
// row materializes. Applying the same patch twice is a no-op.
type Patch struct {
	DisplayName *string
	Email       *string
}

// Attrs is the full attribute set the patient flow upserts; insert keyed by
// identity, on unique-constraint conflict fall back to update.
type Attrs struct {
	IdentityID  *domain.IdentityID
	DisplayName string
	Email       string
}

// Snapshot captures a profile's mutable fields for compensation. Reverting a
// failed saga applies the snapshot back verbatim.
func (p *Profile) Snapshot() Patch {
	displayName := p.DisplayName
	email := p.Email
	return Patch{DisplayName: &displayName, Email: &email}
}
