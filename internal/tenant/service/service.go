// Package service manages tenants: the organizational scopes that own
// participants. Each tenant gets a tenant-admin user in the identity
// provider at creation time.
package service

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"dataspace/internal/sentinel"
	"dataspace/internal/tenant/models"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
	"dataspace/pkg/requestcontext"
)

// Store persists tenants.
type Store interface {
	Create(ctx context.Context, t *models.Tenant) error
	ExistsByName(ctx context.Context, name string) (bool, error)
	FindByName(ctx context.Context, name string) (*models.Tenant, error)
	FindByExternalID(ctx context.Context, externalID string) (*models.Tenant, error)
	Update(ctx context.Context, t *models.Tenant) error
	List(ctx context.Context, filter models.Filter) ([]*models.Tenant, int, error)
}

// IdentityAdmin manages the identity-provider users backing tenants.
type IdentityAdmin interface {
	CreateUserWithClaim(ctx context.Context, username, password, claimValue, roleName string) error
	DeleteUserByUsername(ctx context.Context, username string) error
}

// Service manages the tenant lifecycle.
type Service struct {
	tenants Store
	idp     IdentityAdmin
	logger  *slog.Logger
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

// WithClock overrides the time source; used in tests.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// New wires the tenant service.
func New(tenants Store, idp IdentityAdmin, opts ...Option) *Service {
	s := &Service{tenants: tenants, idp: idp, logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateRequest carries the fields accepted when creating a tenant.
type CreateRequest struct {
	Name        string
	Description string
	Metadata    map[string]any
	Password    string
}

// adminUsername derives the tenant-admin account name from the tenant.
func adminUsername(tenantName string) string {
	return tenantName + ".tenant"
}

// CreateTenant creates a tenant and its tenant-admin identity-provider
// user. The identity user is created first; a local name conflict then
// removes it again so the two systems stay aligned.
func (s *Service) CreateTenant(ctx context.Context, identity visibility.Identity, req CreateRequest) (*models.Tenant, error) {
	if _, err := visibility.Resolve(identity, visibility.RoleAdmin); err != nil {
		return nil, err
	}

	tenant, err := models.New(uuid.NewString(), req.Name, req.Description, req.Metadata, s.now())
	if err != nil {
		return nil, err
	}

	if taken, err := s.tenants.ExistsByName(ctx, tenant.Name); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to check tenant name")
	} else if taken {
		return nil, dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
	}

	password := req.Password
	if password == "" {
		password = uuid.NewString()
	}
	username := adminUsername(tenant.Name)
	if err := s.idp.CreateUserWithClaim(ctx, username, password, tenant.Name,
		string(visibility.RoleAdminTenant)); err != nil {
		return nil, err
	}

	if err := s.tenants.Create(ctx, tenant); err != nil {
		if delErr := s.idp.DeleteUserByUsername(ctx, username); delErr != nil {
			s.logger.ErrorContext(ctx, "failed to remove tenant admin user after create conflict",
				"username", username, "error", delErr)
		}
		if errors.Is(err, sentinel.ErrAlreadyUsed) {
			return nil, dErrors.New(dErrors.CodeConflict, "tenant name must be unique")
		}
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create tenant")
	}

	s.logAudit(ctx, "tenant created", "tenant", tenant.ExternalID, "name", tenant.Name)
	return tenant, nil
}

// GetTenant returns one tenant visible to the caller. Deleted tenants read
// as not found.
func (s *Service) GetTenant(ctx context.Context, identity visibility.Identity, externalID string) (*models.Tenant, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return s.checkScope(scope, tenant)
}

// GetTenantByName returns one tenant by its normalized name.
func (s *Service) GetTenantByName(ctx context.Context, identity visibility.Identity, name string) (*models.Tenant, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByName(ctx, name)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	return s.checkScope(scope, tenant)
}

// UpdateRequest carries the mutable tenant fields. The name is immutable.
type UpdateRequest struct {
	Description *string
	Metadata    map[string]any
}

// UpdateTenant applies a metadata update.
func (s *Service) UpdateTenant(ctx context.Context, identity visibility.Identity, externalID string, req UpdateRequest) (*models.Tenant, error) {
	scope, err := visibility.Resolve(identity, visibility.RoleAdmin, visibility.RoleAdminTenant)
	if err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	if _, err := s.checkScope(scope, tenant); err != nil {
		return nil, err
	}

	if req.Description != nil {
		tenant.Description = *req.Description
	}
	if req.Metadata != nil {
		tenant.Metadata = req.Metadata
	}
	tenant.Touch(s.now())

	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}
	s.logAudit(ctx, "tenant updated", "tenant", tenant.ExternalID)
	return tenant, nil
}

// DeleteTenant soft-deletes a tenant and removes its tenant-admin user
// from the identity provider. The row is kept for history.
func (s *Service) DeleteTenant(ctx context.Context, identity visibility.Identity, externalID string) (*models.Tenant, error) {
	if _, err := visibility.Resolve(identity, visibility.RoleAdmin); err != nil {
		return nil, err
	}
	tenant, err := s.tenants.FindByExternalID(ctx, externalID)
	if err != nil {
		return nil, wrapTenantErr(err)
	}
	if tenant.Deleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}

	if err := tenant.SoftDelete(s.now()); err != nil {
		return nil, err
	}
	if err := s.tenants.Update(ctx, tenant); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to update tenant")
	}

	if err := s.idp.DeleteUserByUsername(ctx, adminUsername(tenant.Name)); err != nil {
		s.logger.ErrorContext(ctx, "failed to delete tenant admin user",
			"tenant", tenant.Name, "error", err)
	}

	s.logAudit(ctx, "tenant deleted", "tenant", tenant.ExternalID)
	return tenant, nil
}

// ListTenants returns the tenants visible to the caller with the total
// count before paging.
func (s *Service) ListTenants(ctx context.Context, identity visibility.Identity, filter models.Filter) ([]*models.Tenant, int, error) {
	scope, err := visibility.Resolve(identity)
	if err != nil {
		return nil, 0, err
	}

	if !scope.Global() {
		tenant, err := s.tenants.FindByName(ctx, scope.TenantName)
		if err != nil {
			return nil, 0, wrapTenantErr(err)
		}
		if tenant.Deleted() {
			return nil, 0, nil
		}
		return []*models.Tenant{tenant}, 1, nil
	}

	tenants, total, err := s.tenants.List(ctx, filter)
	if err != nil {
		return nil, 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list tenants")
	}
	return tenants, total, nil
}

// checkScope hides tenants outside the caller's scope, and deleted
// tenants from everyone.
func (s *Service) checkScope(scope visibility.Scope, tenant *models.Tenant) (*models.Tenant, error) {
	if tenant.Deleted() {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	if !scope.Global() && tenant.Name != scope.TenantName {
		return nil, dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return tenant, nil
}

func (s *Service) logAudit(ctx context.Context, event string, attributes ...any) {
	if requestID := requestcontext.RequestID(ctx); requestID != "" {
		attributes = append(attributes, "request_id", requestID)
	}
	attributes = append(attributes, "log_type", "audit")
	s.logger.InfoContext(ctx, event, attributes...)
}

func wrapTenantErr(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "tenant not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load tenant")
}
