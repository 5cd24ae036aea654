// Package audit captures provisioning lifecycle events. Events are emitted
// from domain logic, persisted through a Store, and exported to Kafka by the
// outbox worker. Audit is observability, not control flow: an audit failure
// never fails or unwinds the operation it describes.
package audit

import (
	"context"
	"time"
)

// Event records one provisioning action against one subject.
type Event struct {
	Timestamp time.Time
	// Subject is the primary entity the action concerns: a profile, patient,
	// or identity ID rendered as a string.
	Subject string
	Action  string
	// Email is recorded where the subject ID alone would not let compliance
	// answer "what happened to this address".
	Email     string
	ActorID   string
	RequestID string
	Detail    string
}

// Provisioning audit actions.
const (
	ActionIdentityCreated     = "identity_created"
	ActionIdentityLinked      = "identity_linked"
	ActionIdentityCompensated = "identity_compensated"
	ActionTeamProvisioned     = "team_account_provisioned"
	ActionTeamDeprovisioned   = "team_account_deprovisioned"
	ActionPatientProvisioned  = "patient_provisioned"
	ActionPatientUpdated      = "patient_updated"
	ActionPatientReverted     = "patient_reverted"
)

// Store persists audit events.
type Store interface {
	Append(ctx context.Context, event Event) error
	ListBySubject(ctx context.Context, subject string) ([]Event, error)
}

// OutboxEntry is one event row awaiting export to Kafka.
type OutboxEntry struct {
	ID        string
	EventType string
	Payload   []byte
}

// OutboxSource is what the export worker drains.
type OutboxSource interface {
	PendingOutbox(ctx context.Context, limit int) ([]OutboxEntry, error)
	MarkExported(ctx context.Context, ids []string) error
}
