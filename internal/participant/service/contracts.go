package service

import (
	"context"

	opmodels "dataspace/internal/operation/models"
	"dataspace/internal/participant/models"
	tenantmodels "dataspace/internal/tenant/models"
)

//go:generate mockgen -source=contracts.go -destination=mocks/mocks.go -package=mocks

// ParticipantStore persists participants.
type ParticipantStore interface {
	Create(ctx context.Context, p *models.Participant) error
	ExistsByName(ctx context.Context, name string) (bool, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Participant, error)
	FindByID(ctx context.Context, id int64) (*models.Participant, error)
	Update(ctx context.Context, p *models.Participant) error
	List(ctx context.Context, filter models.Filter) ([]*models.Participant, int, error)
}

// UserStore persists participant users.
type UserStore interface {
	Create(ctx context.Context, u *models.User) error
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	FindByUsername(ctx context.Context, username string) (*models.User, error)
	FindByParticipantID(ctx context.Context, participantID int64) ([]*models.User, error)
	Update(ctx context.Context, u *models.User) error
}

// TenantStore resolves the owning tenant.
type TenantStore interface {
	FindByName(ctx context.Context, name string) (*tenantmodels.Tenant, error)
}

// OperationStore appends audit entries for lifecycle transitions.
type OperationStore interface {
	Append(ctx context.Context, op *opmodels.Operation) error
}

// Provisioner is the external dataspace provisioning API.
type Provisioner interface {
	BuildDID(participantName string) string
	BuildHost(participantName string) string
	Provision(ctx context.Context, participantName string) (map[string]string, error)
	Deprovision(ctx context.Context, participantName, did string) (map[string]string, error)
}

// IdentityAdmin manages the identity-provider users backing participants.
type IdentityAdmin interface {
	CreateUserWithClaim(ctx context.Context, username, password, claimValue, roleName string) error
	DeleteUserByUsername(ctx context.Context, username string) error
}
