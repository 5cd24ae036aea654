// Package service orchestrates account provisioning across the identity
// platform, the domain database, and the notification pipeline. No shared
// transaction spans those systems; every flow that mutates more than one of
// them runs as a saga with per-step compensation.
package service

import (
	"context"
	"log/slog"
	"time"

	"caretrip/internal/identity"
	"caretrip/internal/notifier"
	patientmodels "caretrip/internal/patient/models"
	"caretrip/internal/platform/metrics"
	profilemodels "caretrip/internal/profile/models"
	"caretrip/internal/provisioning/poll"
	"caretrip/internal/provisioning/saga"
	rolemodels "caretrip/internal/role/models"
	"caretrip/pkg/domain"
	"caretrip/pkg/platform/audit"
	"caretrip/pkg/requestcontext"
)

// IdentityStore is the external authentication platform's admin surface.
type IdentityStore interface {
	Create(ctx context.Context, params identity.CreateParams) (identity.Identity, error)
	Update(ctx context.Context, id domain.IdentityID, params identity.UpdateParams) (identity.Identity, error)
	Delete(ctx context.Context, id domain.IdentityID) error
	FindByEmail(ctx context.Context, email string) (identity.Identity, error)
	GenerateLink(ctx context.Context, kind identity.LinkType, email, redirectTo string) (identity.Link, error)
}

// ProfileStore reads and patches the profile mirror table. Rows appear
// asynchronously after identity creation; FindByIdentity returning not-found
// can mean "not yet".
type ProfileStore interface {
	FindByID(ctx context.Context, id domain.ProfileID) (*profilemodels.Profile, error)
	FindByIdentity(ctx context.Context, identityID domain.IdentityID) (*profilemodels.Profile, error)
	FindByEmail(ctx context.Context, address string) (*profilemodels.Profile, error)
	Patch(ctx context.Context, id domain.ProfileID, patch profilemodels.Patch) (*profilemodels.Profile, error)
	Upsert(ctx context.Context, attrs profilemodels.Attrs) (*profilemodels.Profile, error)
	Delete(ctx context.Context, id domain.ProfileID) error
}

// RoleCatalog resolves role reference data.
type RoleCatalog interface {
	Resolve(ctx context.Context, slugs []string) (rolemodels.Resolution, error)
	ResolveIDs(ctx context.Context, ids []domain.RoleID) ([]rolemodels.RoleDefinition, error)
}

// RoleAssignmentStore persists profile-role links.
type RoleAssignmentStore interface {
	UpsertAll(ctx context.Context, profileID domain.ProfileID, roleIDs []domain.RoleID, assignedBy string, assignedAt time.Time) error
	ListByProfile(ctx context.Context, profileID domain.ProfileID) ([]rolemodels.RoleAssignment, error)
	DeleteByProfile(ctx context.Context, profileID domain.ProfileID) error
}

// PatientStore persists patient records.
type PatientStore interface {
	Create(ctx context.Context, p patientmodels.Patient) (*patientmodels.Patient, error)
	Update(ctx context.Context, id domain.PatientID, patch patientmodels.Patch) (*patientmodels.Patient, error)
	Restore(ctx context.Context, snapshot patientmodels.Patient) error
	Delete(ctx context.Context, id domain.PatientID) error
	FindByID(ctx context.Context, id domain.PatientID) (*patientmodels.Patient, error)
}

// Notifier dispatches templated notifications. A nil error means the request
// was durably accepted, not that the mail was delivered.
type Notifier interface {
	SendInvite(ctx context.Context, invite notifier.Invite) error
	SendWelcome(ctx context.Context, welcome notifier.Welcome) error
}

// AuditEmitter records lifecycle events. Emission failures are logged by the
// publisher and never surfaced into flow results.
type AuditEmitter interface {
	Emit(ctx context.Context, event audit.Event) error
}

// Deps are the collaborators a Service orchestrates.
type Deps struct {
	Identities  IdentityStore
	Profiles    ProfileStore
	Catalog     RoleCatalog
	Assignments RoleAssignmentStore
	Patients    PatientStore
	Notifier    Notifier
}

// Service runs the provisioning flows. Stateless between calls; safe for
// concurrent use.
type Service struct {
	deps        Deps
	saga        *saga.Coordinator
	logger      *slog.Logger
	metrics     *metrics.Metrics
	audit       AuditEmitter
	poll        poll.Config
	callTimeout time.Duration

	onboardingRedirect string
	recoveryRedirect   string
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithAuditPublisher sets the audit emitter.
func WithAuditPublisher(emitter AuditEmitter) Option {
	return func(s *Service) {
		s.audit = emitter
	}
}

// WithPollConfig tunes the profile materialization wait.
func WithPollConfig(cfg poll.Config) Option {
	return func(s *Service) {
		s.poll = cfg
	}
}

// WithCallTimeout bounds each saga step.
func WithCallTimeout(d time.Duration) Option {
	return func(s *Service) {
		s.callTimeout = d
	}
}

// WithRedirects sets the post-link landing URLs for onboarding and account
// recovery.
func WithRedirects(onboarding, recovery string) Option {
	return func(s *Service) {
		s.onboardingRedirect = onboarding
		s.recoveryRedirect = recovery
	}
}

// New constructs a Service.
func New(deps Deps, opts ...Option) *Service {
	s := &Service{
		deps:   deps,
		logger: slog.New(slog.DiscardHandler),
		poll: poll.Config{
			MaxAttempts: 10,
			Interval:    300 * time.Millisecond,
		},
		onboardingRedirect: "/onboarding",
		recoveryRedirect:   "/account/recover",
		callTimeout:        10 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.saga = saga.NewCoordinator(
		saga.WithLogger(s.logger),
		saga.WithMetrics(s.metrics),
		saga.WithCallTimeout(s.callTimeout),
	)
	return s
}

// deleteCreatedIdentity compensates an identity this saga created. The
// identity platform materializes a profile row as a side effect of creation;
// stores without a cascade on identity deletion would leak it, so the mirror
// row is removed explicitly.
func (s *Service) deleteCreatedIdentity(ctx context.Context, id domain.IdentityID, address string) error {
	if err := s.deps.Identities.Delete(ctx, id); err != nil {
		return err
	}
	if p, err := s.deps.Profiles.FindByIdentity(ctx, id); err == nil {
		if err := s.deps.Profiles.Delete(ctx, p.ID); err != nil {
			return err
		}
	}
	s.emitAudit(ctx, audit.Event{
		Subject:   id.String(),
		Action:    audit.ActionIdentityCompensated,
		Email:     address,
		ActorID:   requestcontext.ActorID(ctx),
		RequestID: requestcontext.RequestID(ctx),
	})
	return nil
}

// emitAudit records an event, logging rather than propagating failures.
func (s *Service) emitAudit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	if err := s.audit.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "audit emit failed", "action", event.Action, "error", err)
	}
}
