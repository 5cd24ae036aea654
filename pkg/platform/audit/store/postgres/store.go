// Package postgres persists audit events through a transactional outbox.
// Rows land in the outbox table first; the outbox worker publishes them to
// Kafka and marks them exported. Local audit_events rows back the query API.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "caretrip/pkg/platform/audit"
	"caretrip/pkg/platform/tx"
)

type Store struct {
	db *sql.DB
}

func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// outboxPayload is the JSON document published to Kafka.
type outboxPayload struct {
	ID        string `json:"id"`
	Timestamp string `json:"timestamp"`
	Subject   string `json:"subject"`
	Action    string `json:"action"`
	Email     string `json:"email,omitempty"`
	ActorID   string `json:"actor_id,omitempty"`
	RequestID string `json:"request_id,omitempty"`
	Detail    string `json:"detail,omitempty"`
}

// Append writes the event to audit_events and enqueues it on the outbox in
// one transaction, so the local record and the export can never disagree.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	eventID := uuid.New()
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	payload, err := json.Marshal(outboxPayload{
		ID:        eventID.String(),
		Timestamp: event.Timestamp.Format(time.RFC3339Nano),
		Subject:   event.Subject,
		Action:    event.Action,
		Email:     event.Email,
		ActorID:   event.ActorID,
		RequestID: event.RequestID,
		Detail:    event.Detail,
	})
	if err != nil {
		return fmt.Errorf("marshal audit payload: %w", err)
	}

	return tx.Run(ctx, s.db, func(t *sql.Tx) error {
		_, err := t.ExecContext(ctx, `
			INSERT INTO audit_events (id, timestamp, subject, action, email, actor_id, request_id, detail)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		`, eventID, event.Timestamp, event.Subject, event.Action, event.Email, event.ActorID, event.RequestID, event.Detail)
		if err != nil {
			return fmt.Errorf("insert audit event: %w", err)
		}

		_, err = t.ExecContext(ctx, `
			INSERT INTO audit_outbox (id, event_type, payload, created_at)
			VALUES ($1, $2, $3, $4)
		`, uuid.New(), event.Action, payload, time.Now())
		if err != nil {
			return fmt.Errorf("insert outbox entry: %w", err)
		}
		return nil
	})
}

func (s *Store) ListBySubject(ctx context.Context, subject string) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, subject, action, email, actor_id, request_id, detail
		FROM audit_events
		WHERE subject = $1
		ORDER BY timestamp DESC
	`, subject)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// ListRecent returns the newest events across all subjects.
func (s *Store) ListRecent(ctx context.Context, limit int) ([]audit.Event, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT timestamp, subject, action, email, actor_id, request_id, detail
		FROM audit_events
		ORDER BY timestamp DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()
	return scanEvents(rows)
}

// PendingOutbox returns unexported outbox entries, oldest first.
func (s *Store) PendingOutbox(ctx context.Context, limit int) ([]audit.OutboxEntry, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, event_type, payload
		FROM audit_outbox
		WHERE exported_at IS NULL
		ORDER BY created_at
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query outbox: %w", err)
	}
	defer rows.Close()

	var entries []audit.OutboxEntry
	for rows.Next() {
		var entry audit.OutboxEntry
		var id uuid.UUID
		if err := rows.Scan(&id, &entry.EventType, &entry.Payload); err != nil {
			return nil, fmt.Errorf("scan outbox entry: %w", err)
		}
		entry.ID = id.String()
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outbox: %w", err)
	}
	return entries, nil
}

// MarkExported stamps outbox entries as published. Idempotent.
func (s *Store) MarkExported(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	raw := make([]uuid.UUID, len(ids))
	for i, id := range ids {
		parsed, err := uuid.Parse(id)
		if err != nil {
			return fmt.Errorf("parse outbox id %q: %w", id, err)
		}
		raw[i] = parsed
	}
	query := `UPDATE audit_outbox SET exported_at = now() WHERE id = ANY($1) AND exported_at IS NULL`
	if _, err := s.db.ExecContext(ctx, query, pq.Array(raw)); err != nil {
		return fmt.Errorf("mark outbox exported: %w", err)
	}
	return nil
}

func scanEvents(rows *sql.Rows) ([]audit.Event, error) {
	var events []audit.Event
	for rows.Next() {
		var event audit.Event
		err := rows.Scan(
			&event.Timestamp,
			&event.Subject,
			&event.Action,
			&event.Email,
			&event.ActorID,
			&event.RequestID,
			&event.Detail,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		events = append(events, event)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit events: %w", err)
	}
	return events, nil
}
