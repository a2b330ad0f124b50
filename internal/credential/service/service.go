// Package service implements the credential issuance workflow: batches of
// verifiable credentials requested for active participants through their
// identity hubs.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dataspace/internal/credential/models"
	"dataspace/internal/participant/metrics"
	pmodels "dataspace/internal/participant/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

// CredentialStore persists credentials.
type CredentialStore interface {
	CreateBatch(ctx context.Context, creds []*models.Credential) error
	FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error)
	ListByParticipant(ctx context.Context, participantID int64, status models.Status) ([]*models.Credential, error)
	Update(ctx context.Context, c *models.Credential) error
}

// ParticipantDirectory resolves scope-checked participants; implemented by
// the provisioning orchestrator.
type ParticipantDirectory interface {
	FindScoped(ctx context.Context, scope visibility.Scope, externalID string) (*pmodels.Participant, error)
	FindScopedByID(ctx context.Context, scope visibility.Scope, id int64) (*pmodels.Participant, error)
}

// Issuer requests issuance from a participant's identity hub.
type Issuer interface {
	RequestCredentials(ctx context.Context, participantName, did string, specs []models.Spec) (map[string]string, error)
}

// Service runs the issuance workflow.
type Service struct {
	creds        CredentialStore
	participants ParticipantDirectory
	issuer       Issuer
	runner       database.Runner

	issuerDID string
	holderPID string
	mockMode  bool

	logger  *slog.Logger
	metrics *metrics.Metrics
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

// WithMockIssuance short-circuits the identity hub call and marks batches
// issued immediately; used in demo environments without a hub.
func WithMockIssuance() Option {
	return func(s *Service) { s.mockMode = true }
}

// WithClock overrides the time source; used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires the issuance workflow.
func New(creds CredentialStore, participants ParticipantDirectory, issuer Issuer,
	runner database.Runner, issuerDID, holderPID string, opts ...Option) *Service {
	s := &Service{
		creds:        creds,
		participants: participants,
		issuer:       issuer,
		runner:       runner,
		issuerDID:    issuerDID,
		holderPID:    holderPID,
		logger:       slog.Default(),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RequestCredentials asks the participant's identity hub to issue a batch
// of credentials. Every row in the batch shares one request id so the
// whole batch can be correlated with the hub's asynchronous answer. The
// hub is called before anything is persisted; a hub failure leaves no
// rows.
func (s *Service) RequestCredentials(ctx context.Context, identity visibility.Identity,
	participantExternalID string, specs []models.Spec) ([]*models.Credential, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	participant, err := s.participants.FindScoped(ctx, scope, participantExternalID)
	if err != nil {
		return nil, err
	}
	if participant.State != pmodels.StateActive {
		return nil, dErrors.New(dErrors.CodeNotActive, "participant is not active")
	}

	if len(specs) == 0 {
		return nil, dErrors.New(dErrors.CodeValidation, "at least one credential must be requested")
	}
	for _, spec := range specs {
		if spec.Type == "" || spec.Format == "" {
			return nil, dErrors.New(dErrors.CodeValidation, "credential type and format are required")
		}
	}

	requestID := uuid.NewString()
	now := s.now()

	status := models.StatusRequested
	if s.mockMode {
		status = models.StatusIssued
	} else {
		if _, err := s.issuer.RequestCredentials(ctx, participant.Name, participant.DID, specs); err != nil {
			return nil, err
		}
	}

	batch := make([]*models.Credential, 0, len(specs))
	for _, spec := range specs {
		c := models.New(uuid.NewString(), requestID, s.issuerDID, s.holderPID,
			participant.ID, spec.Type, spec.Format, status, now)
		if status == models.StatusIssued {
			issuedAt := now
			c.IssuedAt = &issuedAt
		}
		batch = append(batch, c)
	}

	err = s.runner.RunInTx(ctx, func(txCtx context.Context) error {
		if err := s.creds.CreateBatch(txCtx, batch); err != nil {
			return dErrors.Wrap(err, dErrors.CodeInternal, "failed to persist credentials")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.IncrementCredentialRequests()
	}
	s.logger.InfoContext(ctx, "credential batch requested",
		"participant", participant.ExternalID, "request_id", requestID,
		"count", len(batch), "log_type", "audit")
	return batch, nil
}

// GetCredential returns one credential visible to the caller.
func (s *Service) GetCredential(ctx context.Context, identity visibility.Identity, externalID string) (*models.Credential, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	return s.findScoped(ctx, scope, externalID)
}

// ListCredentials returns a participant's credentials, optionally filtered
// by status.
func (s *Service) ListCredentials(ctx context.Context, identity visibility.Identity,
	participantExternalID string, status models.Status) ([]*models.Credential, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	participant, err := s.participants.FindScoped(ctx, scope, participantExternalID)
	if err != nil {
		return nil, err
	}
	if status != "" && !status.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown credential status")
	}
	creds, err := s.creds.ListByParticipant(ctx, participant.ID, status)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list credentials")
	}
	return creds, nil
}

// UpdateStatus moves a credential to a new lifecycle status. Reaching
// ISSUED stamps the issuance time once; later status changes keep it.
func (s *Service) UpdateStatus(ctx context.Context, identity visibility.Identity,
	externalID string, status models.Status) (*models.Credential, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, dErrors.New(dErrors.CodeValidation, "unknown credential status")
	}
	cred, err := s.findScoped(ctx, scope, externalID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	cred.Status = status
	if status == models.StatusIssued && cred.IssuedAt == nil {
		cred.IssuedAt = &now
	}
	cred.Touch(now)

	if err := s.creds.Update(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}
	s.logger.InfoContext(ctx, "credential status updated",
		"credential", cred.ExternalID, "status", string(status), "log_type", "audit")
	return cred, nil
}

// DetailsUpdate carries the fields the hub reports after issuance.
type DetailsUpdate struct {
	CredentialType string
	Format         string
	ExpiresAt      *time.Time
}

// UpdateDetails applies post-issuance details. The content fingerprint is
// recomputed because the identity fields may have changed.
func (s *Service) UpdateDetails(ctx context.Context, identity visibility.Identity,
	externalID string, update DetailsUpdate) (*models.Credential, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	cred, err := s.findScoped(ctx, scope, externalID)
	if err != nil {
		return nil, err
	}

	if update.CredentialType != "" {
		cred.CredentialType = update.CredentialType
	}
	if update.Format != "" {
		cred.Format = update.Format
	}
	if update.ExpiresAt != nil {
		cred.ExpiresAt = update.ExpiresAt
	}

	now := s.now()
	cred.Status = models.StatusIssued
	if cred.IssuedAt == nil {
		cred.IssuedAt = &now
	}
	cred.Hash = cred.ComputeHash()
	cred.Touch(now)

	if err := s.creds.Update(ctx, cred); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update credential")
	}
	s.logger.InfoContext(ctx, "credential details updated",
		"credential", cred.ExternalID, "log_type", "audit")
	return cred, nil
}

// findScoped loads the credential and verifies the caller may see its
// participant. Out-of-scope credentials read as not found.
func (s *Service) findScoped(ctx context.Context, scope visibility.Scope, externalID string) (*models.Credential, error) {
	cred, err := s.creds.FindByExternalID(ctx, externalID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load credential")
	}
	if _, err := s.participants.FindScopedByID(ctx, scope, cred.ParticipantID); err != nil {
		return nil, dErrors.New(dErrors.CodeNotFound, "credential not found")
	}
	return cred, nil
}
