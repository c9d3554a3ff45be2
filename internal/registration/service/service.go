// Package service drives the end-to-end signup: create an authentication
// identity, wait out replication lag, claim the jurisdiction slot, and
// persist the profile, as one failure-atomic unit from the caller's view.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"citizenly/internal/audit"
	"citizenly/internal/identity"
	regmetrics "citizenly/internal/registration/metrics"
	"citizenly/internal/registration/models"
	"citizenly/internal/registration/store/profile"
	dErrors "citizenly/pkg/domain-errors"
	"citizenly/pkg/platform/sentinel"
	"citizenly/pkg/requestcontext"
	"citizenly/pkg/retry"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// IdentityProvider is the auth-service port. Create returns
// sentinel.ErrConflict for duplicate emails; FindByID returns
// sentinel.ErrNotFound while the identity is not yet visible on the read
// path.
type IdentityProvider interface {
	Create(ctx context.Context, email, password string) (*identity.Identity, error)
	FindByID(ctx context.Context, id uuid.UUID) (*identity.Identity, error)
}

// ProfileStore is the slice of the profile store the orchestrator writes
// through. ReserveAndUpsert is the atomic check-and-reserve plus idempotent
// upsert from the store package.
type ProfileStore interface {
	ReserveAndUpsert(ctx context.Context, p *models.Profile) (*models.Profile, error)
	FindByEmail(ctx context.Context, email string) (*models.Profile, error)
}

// RoleStore resolves role names against the immutable catalog.
type RoleStore interface {
	FindByName(ctx context.Context, name models.RoleName) (*models.Role, error)
}

// AuditPublisher records terminal outcomes. Best-effort.
type AuditPublisher interface {
	Publish(ctx context.Context, event audit.Event)
}

// AdminStatusInvalidator drops stale advisory cache entries after an admin
// registration commits.
type AdminStatusInvalidator interface {
	Invalidate(ctx context.Context, code string)
}

// Service is the registration orchestrator. Calls are independent and
// cancelable; all cross-call coordination lives in the profile store's
// constraint, never in process-local state, because many instances may run
// at once.
type Service struct {
	identities IdentityProvider
	profiles   ProfileStore
	roles      RoleStore

	visibility  retry.Policy
	metrics     *regmetrics.Metrics
	audit       AuditPublisher
	invalidator AdminStatusInvalidator
	logger      *slog.Logger
	tracer      trace.Tracer
}

// Option configures optional collaborators.
type Option func(*Service)

func WithVisibilityPolicy(p retry.Policy) Option {
	return func(s *Service) { s.visibility = p }
}

func WithMetrics(m *regmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func WithAuditPublisher(p AuditPublisher) Option {
	return func(s *Service) { s.audit = p }
}

func WithAdminStatusInvalidator(inv AdminStatusInvalidator) Option {
	return func(s *Service) { s.invalidator = inv }
}

func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func NewService(identities IdentityProvider, profiles ProfileStore, roles RoleStore, opts ...Option) *Service {
	s := &Service{
		identities: identities,
		profiles:   profiles,
		roles:      roles,
		visibility: retry.DefaultPolicy,
		logger:     slog.Default(),
		tracer:     otel.Tracer("citizenly/registration"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Register runs the signup state machine:
//
//	Validate -> CreateIdentity -> AwaitVisibility -> ReserveAndPersist
//
// The jurisdiction check and the profile write are a single store call, so
// cancellation can never strand a reserved-but-unpersisted slot. Exactly one
// identity-creation call and at most one profile upsert happen per run; the
// visibility polls in between are read-only.
func (s *Service) Register(ctx context.Context, req models.SignupRequest) (*models.Profile, error) {
	ctx, span := s.tracer.Start(ctx, "registration.Register")
	defer span.End()

	req.Normalize()

	// Step 1: validate with no side effects.
	role, existing, err := s.validate(ctx, &req)
	if err != nil {
		return nil, s.fail(ctx, req, err)
	}
	if existing != nil {
		// A client retry of an already-completed registration with identical
		// input returns the original row rather than a conflict.
		s.metrics.IncrementOutcome("replayed")
		s.logger.InfoContext(ctx, "registration replayed",
			"request_id", requestcontext.RequestID(ctx),
			"profile_id", existing.ID.String(),
		)
		span.AddEvent("replayed")
		return existing, nil
	}
	span.AddEvent("validated")

	// Step 2: create the authentication principal. This is the only
	// provider write; every failure past this point orphans the identity
	// (reconciliation is an operational concern, not handled here).
	ident, err := s.createIdentity(ctx, req.Email, req.Password)
	if err != nil {
		return nil, s.fail(ctx, req, err)
	}
	span.AddEvent("identity_created")

	// Step 3: wait for the identity to become visible on the read path the
	// profile write depends on. Propagation lag is a distribution, not a
	// constant; the policy bounds how long we chase it.
	if err := s.awaitVisibility(ctx, ident); err != nil {
		return nil, s.fail(ctx, req, err)
	}
	span.AddEvent("identity_visible")

	// Steps 4+5: claim the jurisdiction slot and persist the profile in one
	// atomic store operation. A lost race surfaces as a constraint conflict,
	// never as a stale-read double win.
	stored, err := s.reserveAndPersist(ctx, req, ident, role)
	if err != nil {
		return nil, s.fail(ctx, req, err)
	}
	span.AddEvent("profile_persisted")

	if role.JurisdictionScoped() && s.invalidator != nil {
		s.invalidator.Invalidate(ctx, stored.JurisdictionCode)
	}

	s.metrics.IncrementOutcome("succeeded")
	s.emit(ctx, audit.Event{
		Type:             audit.EventRegistrationCompleted,
		ProfileID:        stored.ID.String(),
		Email:            stored.Email,
		RoleName:         string(stored.RoleName),
		JurisdictionCode: stored.JurisdictionCode,
	})
	s.logger.InfoContext(ctx, "registration completed",
		"request_id", requestcontext.RequestID(ctx),
		"profile_id", stored.ID.String(),
		"role_name", stored.RoleName,
	)
	return stored, nil
}

// validate checks the request and resolves its role. When the email already
// belongs to a completed registration with identical input, the existing
// profile is returned for an idempotent replay; any other existing profile is
// a conflict.
func (s *Service) validate(ctx context.Context, req *models.SignupRequest) (*models.Role, *models.Profile, error) {
	if err := req.Validate(); err != nil {
		return nil, nil, err
	}

	role, err := s.roles.FindByName(ctx, models.RoleName(req.RoleName))
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, nil, dErrors.New(dErrors.CodeValidation, "signup request is invalid").
				WithField("role_name", "unknown role")
		}
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve role")
	}
	if role.JurisdictionScoped() && req.JurisdictionCode == "" {
		return nil, nil, dErrors.New(dErrors.CodeValidation, "signup request is invalid").
			WithField("jurisdiction_code", "is required for jurisdiction-scoped roles")
	}

	// Duplicate-email check. The provider's own conflict response and the
	// store's email constraint stay authoritative; this runs before any side
	// effect.
	existing, err := s.profiles.FindByEmail(ctx, req.Email)
	switch {
	case err == nil:
		if isReplay(existing, req, role) {
			return role, existing, nil
		}
		return nil, nil, dErrors.New(dErrors.CodeIdentityConflict, "email is already registered")
	case errors.Is(err, sentinel.ErrNotFound):
		// Free to proceed.
	case errors.Is(err, sentinel.ErrUnavailable):
		return nil, nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "profile store unavailable")
	default:
		return nil, nil, dErrors.Wrap(err, dErrors.CodeInternal, "duplicate email check failed")
	}

	return role, nil, nil
}

// isReplay reports whether an existing profile is the completed result of the
// same signup being retried.
func isReplay(existing *models.Profile, req *models.SignupRequest, role *models.Role) bool {
	return existing.RoleName == role.Name &&
		existing.JurisdictionCode == req.JurisdictionCode &&
		existing.FirstName == req.FirstName &&
		existing.LastName == req.LastName
}

func (s *Service) createIdentity(ctx context.Context, email, password string) (*identity.Identity, error) {
	ident, err := s.identities.Create(ctx, email, password)
	if err == nil {
		return ident, nil
	}

	var de *dErrors.Error
	switch {
	case errors.As(err, &de):
		// The provider enforces the password policy; its validation errors
		// pass through untouched.
		return nil, err
	case errors.Is(err, sentinel.ErrConflict):
		return nil, dErrors.Wrap(err, dErrors.CodeIdentityConflict, "email already has an identity")
	case errors.Is(err, sentinel.ErrUnavailable):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unavailable")
	case ctx.Err() != nil:
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeDeadlineExceeded, "registration deadline exceeded")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "identity creation failed")
	}
}

func (s *Service) awaitVisibility(ctx context.Context, ident *identity.Identity) error {
	start := time.Now()
	attempts := 0
	_, err := retry.WaitVisible(ctx, func(ctx context.Context) (*identity.Identity, bool, error) {
		attempts++
		found, err := s.identities.FindByID(ctx, ident.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return nil, false, nil
			}
			return nil, false, err
		}
		return found, true, nil
	}, s.visibility)
	s.metrics.ObserveVisibilityWait(attempts, time.Since(start).Seconds())

	if err == nil {
		return nil
	}

	var timeout *retry.TimeoutError
	switch {
	case errors.As(err, &timeout):
		s.logger.WarnContext(ctx, "identity never became visible",
			"request_id", requestcontext.RequestID(ctx),
			"identity_id", ident.ID.String(),
			"attempts", timeout.Attempts,
			"elapsed_ms", timeout.Elapsed.Milliseconds(),
		)
		// The identity exists; only visibility lagged. Safe for the caller
		// to retry the whole signup.
		return dErrors.Wrap(err, dErrors.CodePropagationTimeout, "identity not yet visible, retry shortly")
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return dErrors.Wrap(err, dErrors.CodeDeadlineExceeded, "registration deadline exceeded")
	case errors.Is(err, sentinel.ErrUnavailable):
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "identity provider unavailable")
	default:
		return dErrors.Wrap(err, dErrors.CodeInternal, "identity visibility check failed")
	}
}

func (s *Service) reserveAndPersist(ctx context.Context, req models.SignupRequest, ident *identity.Identity, role *models.Role) (*models.Profile, error) {
	p := &models.Profile{
		ID:               ident.ID,
		Email:            req.Email,
		FirstName:        req.FirstName,
		LastName:         req.LastName,
		RoleID:           role.ID,
		RoleName:         role.Name,
		JurisdictionCode: req.JurisdictionCode,
		Status:           models.ProfileStatusPendingApproval,
	}

	stored, err := s.profiles.ReserveAndUpsert(ctx, p)
	if err == nil {
		return stored, nil
	}

	switch {
	case errors.Is(err, profile.ErrJurisdictionTaken):
		return nil, dErrors.Wrap(err, dErrors.CodeJurisdictionConflict, "jurisdiction already has an active admin")
	case errors.Is(err, profile.ErrEmailTaken):
		return nil, dErrors.Wrap(err, dErrors.CodeIdentityConflict, "email is already registered")
	case errors.Is(err, sentinel.ErrUnavailable):
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "profile store unavailable")
	case ctx.Err() != nil:
		// The store call is a single statement: it either committed before
		// the deadline hit or not at all. Nothing is left half-reserved.
		return nil, dErrors.Wrap(ctx.Err(), dErrors.CodeDeadlineExceeded, "registration deadline exceeded")
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "profile persistence failed")
	}
}

// fail records the terminal outcome and returns err unchanged.
func (s *Service) fail(ctx context.Context, req models.SignupRequest, err error) error {
	code := dErrors.CodeOf(err)
	s.metrics.IncrementOutcome(outcomeLabel(code))
	s.emit(ctx, audit.Event{
		Type:             audit.EventRegistrationFailed,
		Email:            req.Email,
		RoleName:         req.RoleName,
		JurisdictionCode: req.JurisdictionCode,
		ErrorCode:        string(code),
	})
	if code == dErrors.CodeInternal || code == dErrors.CodeUnavailable {
		s.logger.ErrorContext(ctx, "registration failed",
			"request_id", requestcontext.RequestID(ctx),
			"error_code", code,
			"error", err.Error(),
		)
	}
	return err
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.audit == nil {
		return
	}
	event.RequestID = requestcontext.RequestID(ctx)
	event.ClientIP = requestcontext.ClientIP(ctx)
	event.Device = requestcontext.Device(ctx)
	event.OccurredAt = requestcontext.Now(ctx)
	s.audit.Publish(ctx, event)
}

func outcomeLabel(code dErrors.Code) string {
	switch code {
	case dErrors.CodeValidation, dErrors.CodeBadRequest:
		return "validation_failed"
	case dErrors.CodeIdentityConflict:
		return "identity_conflict"
	case dErrors.CodeJurisdictionConflict:
		return "jurisdiction_conflict"
	case dErrors.CodePropagationTimeout:
		return "propagation_timeout"
	case dErrors.CodeDeadlineExceeded:
		return "deadline_exceeded"
	case dErrors.CodeUnavailable:
		return "store_unavailable"
	default:
		return "internal"
	}
}
