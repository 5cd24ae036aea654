// Package identity defines the types shared by identity store adapters. The
// identity store is an external collaborator: it owns authentication
// identities, their credentials, and one-time action links. This core only
// orchestrates against it.
package identity

import (
	"caretrip/pkg/domain"
)

// Metadata keys the provisioning core reads and writes on identities.
const (
	MetaAccountType = "account_type"
	MetaRoles       = "roles"
	MetaRedirectTo  = "redirect_to"
)

// Identity is an authenticatable external account.
type Identity struct {
	ID        domain.IdentityID
	Email     string
	Confirmed bool
	Metadata  map[string]any
}

// AccountType reads the domain discriminator from identity metadata.
// Unknown values are reported as not-ok so callers fail closed on the
// cross-domain check instead of guessing.
func (i Identity) AccountType() (domain.AccountType, bool) {
	raw, _ := i.Metadata[MetaAccountType].(string)
	return domain.ParseAccountType(raw)
}

// CreateParams describes a new identity. Credential is plaintext in transit;
// the identity store owns hashing and at-rest format.
type CreateParams struct {
	Email      string
	Credential string
	Confirmed  bool
	Metadata   map[string]any
}

// UpdateParams patches an existing identity. Nil fields are left untouched;
// Metadata entries are merged over the existing map.
type UpdateParams struct {
	Credential *string
	Confirmed  *bool
	Metadata   map[string]any
}

// LinkType selects the one-time action link flavor.
type LinkType string

const (
	// LinkInvite is the onboarding link a new staff member follows to set a
	// credential for the first time.
	LinkInvite LinkType = "invite"
	// LinkRecovery is the ownership-proof link used when a portal credential
	// is attached to an email that already has an identity.
	LinkRecovery LinkType = "recovery"
)

// Link is a generated one-time authentication link. The identity store
// resolves the target identity as part of generation, which is how the
// link-not-create path learns the existing identity's ID.
type Link struct {
	URL        string
	IdentityID domain.IdentityID
}
