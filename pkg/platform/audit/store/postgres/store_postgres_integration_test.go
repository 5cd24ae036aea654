//go:build integration

package postgres_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	audit "caretrip/pkg/platform/audit"
	auditpg "caretrip/pkg/platform/audit/store/postgres"
	"caretrip/pkg/testutil/containers"
)

type AuditPostgresSuite struct {
	suite.Suite
	postgres *containers.PostgresContainer
	store    *auditpg.Store
}

func TestAuditPostgresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(AuditPostgresSuite))
}

func (s *AuditPostgresSuite) SetupSuite() {
	mgr := containers.GetManager()
	s.postgres = mgr.GetPostgres(s.T())
	s.store = auditpg.New(s.postgres.DB)
}

func (s *AuditPostgresSuite) SetupTest() {
	err := s.postgres.TruncateTables(context.Background(), "audit_events", "audit_outbox")
	s.Require().NoError(err)
}

func (s *AuditPostgresSuite) append(subject, action string) {
	err := s.store.Append(context.Background(), audit.Event{
		Subject:   subject,
		Action:    action,
		Email:     "ana.lima@clinic.example.com",
		ActorID:   "ops@caretrip.example",
		RequestID: "req-123",
	})
	s.Require().NoError(err)
}

func (s *AuditPostgresSuite) TestAppendWritesEventAndOutboxTogether() {
	ctx := context.Background()
	s.append("identity-1", audit.ActionIdentityCreated)

	events, err := s.store.ListBySubject(ctx, "identity-1")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionIdentityCreated, events[0].Action)
	s.Equal("ops@caretrip.example", events[0].ActorID)
	s.False(events[0].Timestamp.IsZero())

	pending, err := s.store.PendingOutbox(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 1)
	s.Equal(audit.ActionIdentityCreated, pending[0].EventType)

	var payload map[string]any
	s.Require().NoError(json.Unmarshal(pending[0].Payload, &payload))
	s.Equal("identity-1", payload["subject"])
	s.Equal("req-123", payload["request_id"])
}

func (s *AuditPostgresSuite) TestMarkExportedRemovesFromPending() {
	ctx := context.Background()
	s.append("identity-1", audit.ActionIdentityCreated)
	s.append("identity-2", audit.ActionIdentityLinked)

	pending, err := s.store.PendingOutbox(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(pending, 2)

	s.Require().NoError(s.store.MarkExported(ctx, []string{pending[0].ID}))

	remaining, err := s.store.PendingOutbox(ctx, 10)
	s.Require().NoError(err)
	s.Require().Len(remaining, 1)
	s.Equal(pending[1].ID, remaining[0].ID)

	// Marking twice is safe; at-least-once export retries do this.
	s.NoError(s.store.MarkExported(ctx, []string{pending[0].ID}))
}

func (s *AuditPostgresSuite) TestPendingOutboxHonorsLimitAndOrder() {
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		s.append("subject", audit.ActionPatientUpdated)
		time.Sleep(2 * time.Millisecond)
	}

	firstBatch, err := s.store.PendingOutbox(ctx, 3)
	s.Require().NoError(err)
	s.Require().Len(firstBatch, 3)

	s.Require().NoError(s.store.MarkExported(ctx, []string{
		firstBatch[0].ID, firstBatch[1].ID, firstBatch[2].ID,
	}))

	secondBatch, err := s.store.PendingOutbox(ctx, 3)
	s.Require().NoError(err)
	s.Len(secondBatch, 2)
}

func (s *AuditPostgresSuite) TestListBySubjectIsolation() {
	ctx := context.Background()
	s.append("identity-1", audit.ActionIdentityCreated)
	s.append("identity-2", audit.ActionIdentityLinked)

	events, err := s.store.ListBySubject(ctx, "identity-2")
	s.Require().NoError(err)
	s.Require().Len(events, 1)
	s.Equal(audit.ActionIdentityLinked, events[0].Action)

	none, err := s.store.ListBySubject(ctx, "identity-3")
	s.Require().NoError(err)
	s.Empty(none)
}
