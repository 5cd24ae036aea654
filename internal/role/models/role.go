package models

import (
	"time"

	"caretrip/pkg/domain"
)

// BaseRoleSlug is the role every authenticated profile implicitly holds.
// A profile is a team account only if it carries at least one role beyond
// this one.
const BaseRoleSlug = "user"

// RoleDefinition is immutable reference data resolved from the catalog.
type RoleDefinition struct {
	ID   domain.RoleID `json:"id"`
	Slug string        `json:"slug"`
	Name string        `json:"name"`
}

// RoleAssignment links a profile to a role. Unique on (ProfileID, RoleID);
// upserts are idempotent.
type RoleAssignment struct {
	ProfileID  domain.ProfileID `json:"profile_id"`
	RoleID     domain.RoleID    `json:"role_id"`
	AssignedBy string           `json:"assigned_by"`
	AssignedAt time.Time        `json:"assigned_at"`
}

// Resolution is the catalog's answer for a set of requested slugs: the
// definitions it recognized and the slugs it did not.
type Resolution struct {
	Found   []RoleDefinition
	Missing []string
}

// IDs returns the resolved role IDs in resolution order.
func (r Resolution) IDs() []domain.RoleID {
	ids := make([]domain.RoleID, 0, len(r.Found))
	for _, def := range r.Found {
		ids = append(ids, def.ID)
	}
	return ids
}

// Slugs returns the resolved slugs in resolution order.
func (r Resolution) Slugs() []string {
	slugs := make([]string, 0, len(r.Found))
	for _, def := range r.Found {
		slugs = append(slugs, def.Slug)
	}
	return slugs
}

// OnlyBaseRole reports whether the resolved set grants no efficacy beyond the
// base role. Such a set never qualifies as a team account.
func (r Resolution) OnlyBaseRole() bool {
	for _, def := range r.Found {
		if def.Slug != BaseRoleSlug {
			return false
		}
	}
	return true
}
