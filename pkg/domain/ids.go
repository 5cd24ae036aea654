// Package domain holds typed identifiers and domain primitives shared across
// the provisioning core. IDs are distinct named UUID types so the compiler
// rejects cross-entity mixups (a PatientID can never be passed where a
// ProfileID is expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "caretrip/pkg/domain-errors"
)

// IdentityID identifies an authentication identity in the external identity store.
type IdentityID uuid.UUID

// ProfileID identifies a local profile row mirroring an identity.
type ProfileID uuid.UUID

// PatientID identifies a patient domain record.
type PatientID uuid.UUID

// RoleID identifies an immutable role definition.
type RoleID uuid.UUID

func parseUUID(s, kind string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s is required", kind)
	}
	parsed, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "invalid %s", kind)
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s must not be nil", kind)
	}
	return parsed, nil
}

// ParseIdentityID validates external input into an IdentityID.
func ParseIdentityID(s string) (IdentityID, error) {
	parsed, err := parseUUID(s, "identity ID")
	return IdentityID(parsed), err
}

// ParseProfileID validates external input into a ProfileID.
func ParseProfileID(s string) (ProfileID, error) {
	parsed, err := parseUUID(s, "profile ID")
	return ProfileID(parsed), err
}

// ParsePatientID validates external input into a PatientID.
func ParsePatientID(s string) (PatientID, error) {
	parsed, err := parseUUID(s, "patient ID")
	return PatientID(parsed), err
}

// ParseRoleID validates external input into a RoleID.
func ParseRoleID(s string) (RoleID, error) {
	parsed, err := parseUUID(s, "role ID")
	return RoleID(parsed), err
}

func (id IdentityID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id IdentityID) String() string { return uuid.UUID(id).String() }

func (id ProfileID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ProfileID) String() string { return uuid.UUID(id).String() }

func (id PatientID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PatientID) String() string { return uuid.UUID(id).String() }

func (id RoleID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id RoleID) String() string { return uuid.UUID(id).String() }

// The named ID types do not inherit uuid.UUID's text marshaling, so each
// implements it explicitly to serialize as the canonical string form.

func (id IdentityID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *IdentityID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id ProfileID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *ProfileID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id PatientID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *PatientID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}

func (id RoleID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }
func (id *RoleID) UnmarshalText(b []byte) error {
	return (*uuid.UUID)(id).UnmarshalText(b)
}
