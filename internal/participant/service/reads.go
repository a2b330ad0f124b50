package service

import (
	"context"

	"dataspace/internal/participant/models"
	tenantmodels "dataspace/internal/tenant/models"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

// Profile is the self-service projection returned to participant users.
type Profile struct {
	Participant *models.Participant  `json:"participant"`
	Tenant      *tenantmodels.Tenant `json:"tenant"`
	Users       []*models.User       `json:"users"`
}

// GetParticipant returns one participant visible to the caller. Out-of-scope
// participants are reported as not found, never as forbidden, so their
// existence does not leak.
func (s *Service) GetParticipant(ctx context.Context, identity visibility.Identity, externalID string) (*models.Participant, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	return s.findScoped(ctx, scope, externalID)
}

// ListParticipants returns the participants visible to the caller with the
// total count before paging.
func (s *Service) ListParticipants(ctx context.Context, identity visibility.Identity, filter models.Filter) ([]*models.Participant, int, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, 0, err
	}

	switch scope.Kind {
	case visibility.KindTenant:
		filter.TenantName = scope.TenantName
	case visibility.KindParticipant:
		own, err := s.ownParticipant(ctx, scope)
		if err != nil {
			return nil, 0, err
		}
		return []*models.Participant{own}, 1, nil
	}

	participants, total, err := s.participants.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list participants")
	}
	return participants, total, nil
}

// Me returns the caller's own participant with its tenant and users. Only
// participant users have a "me"; broader roles have no single participant.
func (s *Service) Me(ctx context.Context, identity visibility.Identity) (*Profile, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleUserParticipant)
	if err != nil {
		return nil, err
	}

	participant, err := s.ownParticipant(ctx, scope)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByName(ctx, participant.TenantName)
	if err != nil {
		return nil, wrapNotFound(err, "tenant not found")
	}
	users, err := s.users.FindByParticipantID(ctx, participant.ID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to load participant users")
	}
	return &Profile{Participant: participant, Tenant: tenant, Users: users}, nil
}

// FindScoped exposes scope-checked lookup to sibling workflows that join
// on the participant, such as credential issuance and the audit trail.
func (s *Service) FindScoped(ctx context.Context, scope visibility.Scope, externalID string) (*models.Participant, error) {
	return s.findScoped(ctx, scope, externalID)
}

// FindScopedByID is the surrogate-key variant of FindScoped, used when a
// sibling row already carries the participant id.
func (s *Service) FindScopedByID(ctx context.Context, scope visibility.Scope, id int64) (*models.Participant, error) {
	participant, err := s.participants.FindByID(ctx, id)
	if err != nil {
		return nil, wrapNotFound(err, "participant not found")
	}
	return s.checkScope(ctx, scope, participant)
}

func (s *Service) findScoped(ctx context.Context, scope visibility.Scope, externalID string) (*models.Participant, error) {
	participant, err := s.participants.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, wrapNotFound(err, "participant not found")
	}
	return s.checkScope(ctx, scope, participant)
}

func (s *Service) checkScope(ctx context.Context, scope visibility.Scope, participant *models.Participant) (*models.Participant, error) {

	switch scope.Kind {
	case visibility.KindGlobal:
		return participant, nil
	case visibility.KindTenant:
		if participant.TenantName != scope.TenantName {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return participant, nil
	case visibility.KindParticipant:
		own, err := s.ownParticipant(ctx, scope)
		if err != nil {
			return nil, err
		}
		if own.ID != participant.ID {
			return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
		}
		return participant, nil
	}
	return nil, dErrors.New(dErrors.CodeForbidden, "role not permitted for this operation")
}

// ownParticipant resolves the single participant owned by the caller's
// username claim. Users already retired by a deprovision no longer
// resolve to anything.
func (s *Service) ownParticipant(ctx context.Context, scope visibility.Scope) (*models.Participant, error) {
	user, err := s.users.FindByUsername(ctx, scope.Username)
	if err != nil {
		return nil, wrapNotFound(err, "participant not found")
	}
	if user.Status != models.UserStatusActive && user.Status != models.UserStatusDeleteInProgress {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	participant, err := s.participants.FindByID(ctx, user.ParticipantID)
	if err != nil {
		return nil, wrapNotFound(err, "participant not found")
	}
	if participant.TenantName != scope.TenantName {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	return participant, nil
}
