// Package notifier defines the templated notification messages the
// provisioning flows dispatch. Delivery is owned by an external email worker;
// this core only guarantees the send request was durably accepted before the
// saga proceeds.
package notifier

// Invite is the onboarding notification sent to a new team member. Link is
// the one-time authentication link generated for them.
type Invite struct {
	Email        string   `json:"email"`
	Link         string   `json:"link"`
	Roles        []string `json:"roles"`
	InviterLabel string   `json:"inviter_label"`
}

// Welcome is the notification sent to a patient whose portal access was just
// provisioned. Exactly one of Credential and RecoveryLink is set: a fresh
// identity ships the chosen credential, while a pre-existing identity gets a
// recovery link as ownership proof instead of having its credential replaced.
type Welcome struct {
	Email        string `json:"email"`
	DisplayName  string `json:"display_name"`
	Credential   string `json:"credential,omitempty"`
	RecoveryLink string `json:"recovery_link,omitempty"`
}

// Template names, matched by the email worker.
const (
	TemplateInvite  = "team-invite"
	TemplateWelcome = "patient-welcome-credentials"
)
