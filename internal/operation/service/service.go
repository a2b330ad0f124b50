// Package service exposes the participant audit trail: append-only
// operation records written by the lifecycle sagas and queried per
// participant.
package service

import (
	"context"
	"errors"
	"log/slog"

	"dataspace/internal/operation/models"
	pmodels "dataspace/internal/participant/models"
	"dataspace/internal/sentinel"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

// Store reads the persisted audit trail.
type Store interface {
	ListByParticipant(ctx context.Context, participantID int64, eventType models.EventType, offset, limit int) ([]*models.Operation, int, error)
	Latest(ctx context.Context, participantID int64) (*models.Operation, error)
}

// ParticipantDirectory resolves scope-checked participants; implemented by
// the provisioning orchestrator.
type ParticipantDirectory interface {
	FindScoped(ctx context.Context, scope visibility.Scope, externalID string) (*pmodels.Participant, error)
}

// Service answers audit trail queries.
type Service struct {
	store        Store
	participants ParticipantDirectory
	logger       *slog.Logger
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

// New wires the audit trail query service.
func New(store Store, participants ParticipantDirectory, opts ...Option) *Service {
	s := &Service{store: store, participants: participants, logger: slog.Default()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Query returns a participant's operation records, newest first, with the
// total count before paging. The optional event type narrows the result.
func (s *Service) Query(ctx context.Context, identity visibility.Identity,
	participantExternalID string, eventType models.EventType, offset, limit int) ([]*models.Operation, int, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, 0, err
	}
	participant, err := s.participants.FindScoped(ctx, scope, participantExternalID)
	if err != nil {
		return nil, 0, err
	}
	if eventType != "" && !eventType.Valid() {
		return nil, 0, dErrors.New(dErrors.CodeValidation, "unknown event type")
	}

	ops, total, err := s.store.ListByParticipant(ctx, participant.ID, eventType, offset, limit)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list operations")
	}
	return ops, total, nil
}

// Latest returns the most recent operation record for a participant.
func (s *Service) Latest(ctx context.Context, identity visibility.Identity,
	participantExternalID string) (*models.Operation, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	participant, err := s.participants.FindScoped(ctx, scope, participantExternalID)
	if err != nil {
		return nil, err
	}

	op, err := s.store.Latest(ctx, participant.ID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "no operations recorded")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load latest operation")
	}
	return op, nil
}
