package service_test

import (
	"context"
	"testing"

	"dataspace/internal/tenant/models"
	"dataspace/internal/tenant/service"
	"dataspace/internal/tenant/store"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

// stubIdP records identity-provider admin calls.
type stubIdP struct {
	created   []string
	deleted   []string
	createErr error
}

func (s *stubIdP) CreateUserWithClaim(_ context.Context, username, _, _, _ string) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.created = append(s.created, username)
	return nil
}

func (s *stubIdP) DeleteUserByUsername(_ context.Context, username string) error {
	s.deleted = append(s.deleted, username)
	return nil
}

func admin() visibility.Identity {
	return visibility.Identity{Roles: []visibility.Role{visibility.RoleAdmin}}
}

func tenantAdmin(name string) visibility.Identity {
	return visibility.Identity{
		Roles:  []visibility.Role{visibility.RoleAdminTenant},
		Claims: visibility.Claims{TenantName: name},
	}
}

func newService(t *testing.T) (*service.Service, *store.InMemory, *stubIdP) {
	t.Helper()
	tenants := store.NewInMemory()
	idp := &stubIdP{}
	return service.New(tenants, idp), tenants, idp
}

func TestCreateTenantNormalizesAndCreatesAdminUser(t *testing.T) {
	svc, _, idp := newService(t)

	tenant, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{
		Name:        "Acme Corp",
		Description: "manufacturing",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tenant.Name != "acmecorp" {
		t.Fatalf("name = %q, want normalized %q", tenant.Name, "acmecorp")
	}
	if tenant.Status != models.StatusActive {
		t.Fatalf("status = %s, want ACTIVE", tenant.Status)
	}
	if len(idp.created) != 1 || idp.created[0] != "acmecorp.tenant" {
		t.Fatalf("expected tenant admin user, got %v", idp.created)
	}
}

func TestCreateTenantConflict(t *testing.T) {
	svc, _, _ := newService(t)

	if _, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	_, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "ACME"})
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict for normalized duplicate, got %v", err)
	}
}

func TestCreateTenantRequiresGlobalAdmin(t *testing.T) {
	svc, _, _ := newService(t)

	_, err := svc.CreateTenant(context.Background(), tenantAdmin("acme"), service.CreateRequest{Name: "newone"})
	if !dErrors.HasCode(err, dErrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCreateTenantIdPFailure(t *testing.T) {
	svc, tenants, idp := newService(t)
	idp.createErr = dErrors.New(dErrors.CodeIdentityAdmin, "idp down")

	_, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"})
	if !dErrors.HasCode(err, dErrors.CodeIdentityAdmin) {
		t.Fatalf("expected identity admin error, got %v", err)
	}
	if _, err := tenants.FindByName(context.Background(), "acme"); err == nil {
		t.Fatalf("tenant must not exist when the identity user could not be created")
	}
}

func TestGetTenantScoping(t *testing.T) {
	svc, _, _ := newService(t)
	tenant, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	if _, err := svc.GetTenant(context.Background(), tenantAdmin("acme"), tenant.ExternalID); err != nil {
		t.Fatalf("own tenant read failed: %v", err)
	}
	_, err = svc.GetTenant(context.Background(), tenantAdmin("other"), tenant.ExternalID)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("cross-tenant read should report not found, got %v", err)
	}
}

func TestDeleteTenantSoftDeletesAndHides(t *testing.T) {
	svc, tenants, idp := newService(t)
	tenant, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	deleted, err := svc.DeleteTenant(context.Background(), admin(), tenant.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted.Status != models.StatusDeleted || deleted.DeletedAt == nil {
		t.Fatalf("expected soft-deleted tenant, got %+v", deleted)
	}
	if len(idp.deleted) != 1 || idp.deleted[0] != "acme.tenant" {
		t.Fatalf("expected tenant admin user removal, got %v", idp.deleted)
	}

	// The row survives but reads as gone.
	stored, err := tenants.FindByExternalID(context.Background(), tenant.ExternalID)
	if err != nil {
		t.Fatalf("row must survive soft delete: %v", err)
	}
	if !stored.Deleted() {
		t.Fatalf("stored row not marked deleted")
	}
	if _, err := svc.GetTenant(context.Background(), admin(), tenant.ExternalID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("deleted tenant should read as not found, got %v", err)
	}
	if _, err := svc.DeleteTenant(context.Background(), admin(), tenant.ExternalID); !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("double delete should report not found, got %v", err)
	}
}

func TestUpdateTenant(t *testing.T) {
	svc, _, _ := newService(t)
	tenant, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	desc := "updated"
	got, err := svc.UpdateTenant(context.Background(), tenantAdmin("acme"), tenant.ExternalID,
		service.UpdateRequest{Description: &desc, Metadata: map[string]any{"tier": "gold"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Description != "updated" || got.Metadata["tier"] != "gold" {
		t.Fatalf("unexpected tenant: %+v", got)
	}
	if got.Name != "acme" {
		t.Fatalf("name must be immutable")
	}
}

func TestListTenantsScoping(t *testing.T) {
	svc, _, _ := newService(t)
	if _, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "acme"}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.CreateTenant(context.Background(), admin(), service.CreateRequest{Name: "other"}); err != nil {
		t.Fatalf("create: %v", err)
	}

	all, total, err := svc.ListTenants(context.Background(), admin(), models.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("admin should see every tenant, got %d", total)
	}

	own, total, err := svc.ListTenants(context.Background(), tenantAdmin("acme"), models.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || own[0].Name != "acme" {
		t.Fatalf("tenant admin should only see own tenant, got %+v", own)
	}
}
