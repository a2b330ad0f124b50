// Package service contains the provisioning orchestrator: the saga that
// creates a participant across the external provisioner, the identity
// provider, and the local store, with best-effort compensation when a
// later step fails.
package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	opmodels "dataspace/internal/operation/models"
	"dataspace/internal/participant/metrics"
	"dataspace/internal/participant/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/platform/tracer"
	"dataspace/internal/sentinel"
	"dataspace/internal/visibility"
	"dataspace/pkg/dnsname"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/requestcontext"
)

// Service orchestrates the participant lifecycle.
type Service struct {
	participants ParticipantStore
	users        UserStore
	tenants      TenantStore
	operations   OperationStore
	provisioner  Provisioner
	idp          IdentityAdmin
	runner       database.Runner

	logger  *slog.Logger
	metrics *metrics.Metrics
	tracer  tracer.Tracer
	now     func() time.Time
}

// Option configures the service.
type Option func(*Service)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithTracer sets the tracer.
func WithTracer(t tracer.Tracer) Option {
	return func(s *Service) {
		if t != nil {
			s.tracer = t
		}
	}
}

// WithClock overrides the time source; used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires the orchestrator.
func New(participants ParticipantStore, users UserStore, tenants TenantStore,
	operations OperationStore, prov Provisioner, idp IdentityAdmin,
	runner database.Runner, opts ...Option) *Service {
	s := &Service{
		participants: participants,
		users:        users,
		tenants:      tenants,
		operations:   operations,
		provisioner:  prov,
		idp:          idp,
		runner:       runner,
		logger:       slog.Default(),
		tracer:       tracer.Noop(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields accepted when onboarding a participant.
type CreateRequest struct {
	TenantName  string
	Name        string
	Username    string
	CompanyName string
	Description string
	Metadata    map[string]any
	Password    string
}

// CreateParticipant runs the provisioning saga. The external runtime is
// provisioned before any local row exists, so a local failure can always
// be compensated by deprovisioning. Identity-provider failure after the
// participant row exists leaves the row in PROVISION_FAILED with a
// matching audit entry rather than deleting history.
func (s *Service) CreateParticipant(ctx context.Context, identity visibility.Identity, req CreateRequest) (*models.Participant, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}

	tenantName := scope.TenantName
	if scope.Global() {
		tenantName = dnsname.Normalize(req.TenantName)
	}
	if tenantName == "" {
		return nil, dErrors.New(dErrors.CodeBadRequest, "tenant name is required")
	}

	name := dnsname.Normalize(req.Name)
	if len(name) < 3 {
		return nil, dErrors.New(dErrors.CodeValidation, "participant name must normalize to at least 3 characters")
	}
	username := strings.ToLower(strings.TrimSpace(req.Username))
	if username == "" {
		username = name
	}

	start := s.now()
	ctx, span := s.tracer.Start(ctx, "participant.provision", tracer.String("participant", name))
	var sagaErr error
	defer func() { span.End(sagaErr) }()

	tenant, err := s.tenants.FindByName(ctx, tenantName)
	if err != nil {
		sagaErr = wrapNotFound(err, "tenant not found")
		return nil, sagaErr
	}
	if tenant.Deleted() {
		sagaErr = dErrors.New(dErrors.CodeNotFound, "tenant not found")
		return nil, sagaErr
	}

	if taken, err := s.participants.ExistsByName(ctx, name); err != nil {
		sagaErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to check participant name")
		return nil, sagaErr
	} else if taken {
		sagaErr = dErrors.New(dErrors.CodeConflict, "participant name must be unique")
		return nil, sagaErr
	}
	if taken, err := s.users.ExistsByUsername(ctx, username); err != nil {
		sagaErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to check username")
		return nil, sagaErr
	} else if taken {
		sagaErr = dErrors.New(dErrors.CodeConflict, "participant username must be unique")
		return nil, sagaErr
	}

	// Step 1: external runtime first. Nothing local exists yet, so a
	// failure here leaves no trace to clean up.
	provisionOut, err := s.provisioner.Provision(ctx, name)
	if err != nil {
		s.observeProvision(start, "provision_failed")
		sagaErr = err
		return nil, sagaErr
	}
	span.AddEvent("runtime provisioned")

	now := s.now()
	participant := models.New(uuid.NewString(), tenant.ID, tenant.Name, name,
		req.CompanyName, req.Description, req.Metadata,
		s.provisioner.BuildDID(name), s.provisioner.BuildHost(name), now)

	// Step 2: local row plus its audit entry in one transaction.
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.Create(txCtx, participant); err != nil {
			if errors.Is(err, sentinel.ErrAlreadyUsed) {
				return dErrors.New(dErrors.CodeConflict, "participant name must be unique")
			}
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create participant")
		}
		return s.append(txCtx, participant.ID, opmodels.EventProvisionStarted,
			payload("Provisioning started", provisionOut))
	})
	if err != nil {
		s.compensateProvision(ctx, name, participant.DID)
		s.observeProvision(start, "local_failed")
		sagaErr = err
		return nil, sagaErr
	}

	// Step 3: identity-provider user. Failure compensates the runtime and
	// marks the row PROVISION_FAILED; the row and its trail stay.
	password := req.Password
	if password == "" {
		password = uuid.NewString()
	}
	if err := s.idp.CreateUserWithClaim(ctx, username, password, tenant.Name,
		string(visibility.RoleUserParticipant)); err != nil {
		s.failProvision(ctx, participant, err)
		s.compensateProvision(ctx, name, participant.DID)
		s.observeProvision(start, "idp_failed")
		sagaErr = err
		return nil, sagaErr
	}
	span.AddEvent("identity user created")

	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		sagaErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
		return nil, sagaErr
	}
	user := models.NewUser(uuid.NewString(), participant.ID, username, string(hash), nil, s.now())
	if err := s.users.Create(ctx, user); err != nil {
		sagaErr = dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist participant user")
		return nil, sagaErr
	}

	s.observeProvision(start, "started")
	s.logAudit(ctx, "participant provisioning started",
		"participant", participant.ExternalID, "tenant", tenant.Name)
	return participant, nil
}

// Activate marks a provisioned participant ACTIVE. Called when the
// external platform reports the runtime ready.
func (s *Service) Activate(ctx context.Context, identity visibility.Identity, externalID string) (*models.Participant, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	participant, err := s.findScoped(ctx, scope, externalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	transition, err := participant.Transition(models.EventActivated, now)
	if err != nil {
		return nil, err
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.Update(txCtx, participant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant")
		}
		return s.append(txCtx, participant.ID, transition.Audit, payload("Provisioning completed", nil))
	})
	if err != nil {
		return nil, err
	}

	s.logAudit(ctx, "participant activated", "participant", participant.ExternalID)
	return participant, nil
}

// DeleteParticipant runs the deprovisioning saga. The state row and its
// audit entry are written whether or not the external call succeeds, so
// the local record always reflects the last attempt.
func (s *Service) DeleteParticipant(ctx context.Context, identity visibility.Identity, externalID string) (*models.Participant, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	participant, err := s.findScoped(ctx, scope, externalID)
	if err != nil {
		return nil, err
	}

	if participant.State != models.StateActive {
		// Only active participants hold external resources worth tearing
		// down; everything else is left as-is.
		return participant, nil
	}

	ctx, span := s.tracer.Start(ctx, "participant.deprovision",
		tracer.String("participant", participant.Name))
	var sagaErr error
	defer func() { span.End(sagaErr) }()

	deprovisionOut, depErr := s.provisioner.Deprovision(ctx, participant.Name, participant.DID)

	now := s.now()
	event := models.EventDeprovisioned
	message := "Deprovisioning started"
	if depErr != nil {
		event = models.EventDeprovisionFailed
		message = "Deprovisioning failed"
		deprovisionOut = map[string]string{"error": depErr.Error()}
	}
	transition, err := participant.Transition(event, now)
	if err != nil {
		sagaErr = err
		return nil, sagaErr
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.Update(txCtx, participant); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant")
		}
		return s.append(txCtx, participant.ID, transition.Audit, payload(message, deprovisionOut))
	})
	if err != nil {
		sagaErr = err
		return nil, sagaErr
	}

	userStatus := models.UserStatusDeleted
	if depErr != nil {
		userStatus = models.UserStatusDeleteWithError
	}
	s.retireUsers(ctx, participant, userStatus)

	if depErr != nil {
		s.observeDeprovision("failed")
		sagaErr = depErr
		return nil, sagaErr
	}
	s.observeDeprovision("completed")
	s.logAudit(ctx, "participant deprovisioned", "participant", participant.ExternalID)
	return participant, nil
}

// UpdateRequest carries the mutable participant fields.
type UpdateRequest struct {
	CompanyName *string
	Description *string
	Metadata    map[string]any
}

// UpdateParticipant applies a metadata update. Participants in terminal
// or already-updated states are reported as not found, so callers cannot
// distinguish a missing participant from an immutable one.
func (s *Service) UpdateParticipant(ctx context.Context, identity visibility.Identity, externalID string, req UpdateRequest) (*models.Participant, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	participant, err := s.findScoped(ctx, scope, externalID)
	if err != nil {
		return nil, err
	}
	if !participant.State.Updatable() {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}

	if req.CompanyName != nil {
		participant.CompanyName = *req.CompanyName
	}
	if req.Description != nil {
		participant.Description = *req.Description
	}
	if req.Metadata != nil {
		participant.Metadata = req.Metadata
	}

	if _, err := participant.Transition(models.EventMetadataUpdated, s.now()); err != nil {
		return nil, err
	}
	if err := s.participants.Update(ctx, participant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update participant")
	}

	s.logAudit(ctx, "participant updated", "participant", participant.ExternalID)
	return participant, nil
}

// failProvision marks the participant PROVISION_FAILED with its audit
// entry. Best-effort: a bookkeeping failure here is logged, not returned,
// because the caller already has the original saga error.
func (s *Service) failProvision(ctx context.Context, participant *models.Participant, cause error) {
	transition, err := participant.Transition(models.EventProvisionFailed, s.now())
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record provisioning failure",
			"participant", participant.ExternalID, "error", err)
		return
	}
	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.participants.Update(txCtx, participant); err != nil {
			return err
		}
		return s.append(txCtx, participant.ID, transition.Audit,
			payload("Provisioning failed", map[string]string{"error": cause.Error()}))
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record provisioning failure",
			"participant", participant.ExternalID, "error", err)
	}
}

// compensateProvision tears the external runtime back down after a saga
// step failed. Best-effort: compensation failure is logged only.
func (s *Service) compensateProvision(ctx context.Context, name, did string) {
	if _, err := s.provisioner.Deprovision(ctx, name, did); err != nil {
		s.logger.ErrorContext(ctx, "compensating deprovision failed",
			"participant", name, "error", err)
	}
}

// retireUsers soft-deletes the participant's users locally with the given
// terminal status and removes them from the identity provider. The status
// reflects the deprovision outcome; an identity-provider delete failure is
// logged only.
func (s *Service) retireUsers(ctx context.Context, participant *models.Participant, status models.UserStatus) {
	users, err := s.users.FindByParticipantID(ctx, participant.ID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to load participant users for deletion",
			"participant", participant.ExternalID, "error", err)
		return
	}
	for _, user := range users {
		if err := s.idp.DeleteUserByUsername(ctx, user.Username); err != nil {
			s.logger.ErrorContext(ctx, "failed to delete identity provider user",
				"username", user.Username, "error", err)
		}
		user.MarkDeleted(status, s.now())
		if err := s.users.Update(ctx, user); err != nil {
			s.logger.ErrorContext(ctx, "failed to mark participant user deleted",
				"username", user.Username, "error", err)
		}
	}
}

func (s *Service) append(ctx context.Context, participantID int64, eventType opmodels.EventType, body map[string]any) error {
	if eventType == "" {
		return nil
	}
	op := opmodels.New(uuid.NewString(), participantID, eventType, body, s.now())
	if err := s.operations.Append(ctx, op); err != nil {
		return dErrors.Wrap(err, dErrors.CodeInternal, "failed to append operation")
	}
	return nil
}

func payload(message string, extra map[string]string) map[string]any {
	body := map[string]any{"message": message}
	for k, v := range extra {
		body[k] = v
	}
	return body
}

func (s *Service) observeProvision(start time.Time, outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveProvision(start, outcome)
	}
}

func (s *Service) observeDeprovision(outcome string) {
	if s.metrics != nil {
		s.metrics.ObserveDeprovision(outcome)
	}
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	if device := requestcontext.ClientDevice(ctx); device != "" {
		attributes = append(attributes, "client_device", device)
	}
	attributes = append(attributes, "log_type", "audit")
	s.logger.InfoContext(ctx, event, attributes...)
}

func wrapNotFound(err error, message string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, message)
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, message)
}
