package domain

// AccountType is the identity metadata discriminator separating staff
// identities from patient-linked ones.
// Invariant: authoritative and immutable once set; a staff identity may never
// be attached to a patient record, and vice versa.
//
// Usage: construct via ParseAccountType at trust boundaries to enforce the
// allowlist; direct casting bypasses validation.
type AccountType string

const (
	AccountTypeStaff   AccountType = "staff"
	AccountTypePatient AccountType = "patient-linked"
	AccountTypeNone    AccountType = "none"
)

var validAccountTypes = map[AccountType]bool{
	AccountTypeStaff:   true,
	AccountTypePatient: true,
	AccountTypeNone:    true,
}

// ParseAccountType constructs an AccountType from external input. Identities
// created before the discriminator existed carry no value; that reads as
// AccountTypeNone, not an error.
func ParseAccountType(s string) (AccountType, bool) {
	if s == "" {
		return AccountTypeNone, true
	}
	t := AccountType(s)
	if !validAccountTypes[t] {
		return AccountTypeNone, false
	}
	return t, true
}

func (t AccountType) String() string {
	return string(t)
}

// IsStaff reports whether the identity belongs to the staff domain.
func (t AccountType) IsStaff() bool {
	return t == AccountTypeStaff
}
