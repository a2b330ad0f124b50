package service_test

import (
	"context"
	"testing"
	"time"

	"go.uber.org/mock/gomock"
	"golang.org/x/crypto/bcrypt"

	opmodels "dataspace/internal/operation/models"
	opstore "dataspace/internal/operation/store"
	"dataspace/internal/participant/models"
	"dataspace/internal/participant/service"
	"dataspace/internal/participant/service/mocks"
	"dataspace/internal/participant/store"
	"dataspace/internal/platform/database"
	tenantmodels "dataspace/internal/tenant/models"
	tenantstore "dataspace/internal/tenant/store"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

type fixture struct {
	svc          *service.Service
	participants *store.InMemory
	users        *store.InMemoryUsers
	tenants      *tenantstore.InMemory
	operations   *opstore.InMemory
	provisioner  *mocks.MockProvisioner
	idp          *mocks.MockIdentityAdmin
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctrl := gomock.NewController(t)
	f := &fixture{
		participants: store.NewInMemory(),
		users:        store.NewInMemoryUsers(),
		tenants:      tenantstore.NewInMemory(),
		operations:   opstore.NewInMemory(),
		provisioner:  mocks.NewMockProvisioner(ctrl),
		idp:          mocks.NewMockIdentityAdmin(ctrl),
	}
	f.svc = service.New(f.participants, f.users, f.tenants, f.operations,
		f.provisioner, f.idp, database.NopRunner{})
	return f
}

func (f *fixture) seedTenant(t *testing.T, name string) *tenantmodels.Tenant {
	t.Helper()
	tenant, err := tenantmodels.New("tenant-"+name, name, "", nil, time.Now())
	if err != nil {
		t.Fatalf("build tenant: %v", err)
	}
	if err := f.tenants.Create(context.Background(), tenant); err != nil {
		t.Fatalf("seed tenant: %v", err)
	}
	return tenant
}

func (f *fixture) expectDIDAndHost(name string) {
	f.provisioner.EXPECT().BuildDID(name).Return("did:web:" + name).AnyTimes()
	f.provisioner.EXPECT().BuildHost(name).Return(name + ".dataspace.local").AnyTimes()
}

func adminIdentity() visibility.Identity {
	return visibility.Identity{Roles: []visibility.Role{visibility.RoleAdmin}}
}

func tenantAdminIdentity(tenant string) visibility.Identity {
	return visibility.Identity{
		Roles:  []visibility.Role{visibility.RoleAdminTenant},
		Claims: visibility.Claims{TenantName: tenant},
	}
}

func participantIdentity(tenant, username string) visibility.Identity {
	return visibility.Identity{
		Roles:  []visibility.Role{visibility.RoleUserParticipant},
		Claims: visibility.Claims{TenantName: tenant, Username: username},
	}
}

func (f *fixture) lastOperation(t *testing.T, participantID int64) *opmodels.Operation {
	t.Helper()
	op, err := f.operations.Latest(context.Background(), participantID)
	if err != nil {
		t.Fatalf("latest operation: %v", err)
	}
	return op
}

func TestCreateParticipantHappyPath(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	f.expectDIDAndHost("widgets")
	f.provisioner.EXPECT().Provision(gomock.Any(), "widgets").
		Return(map[string]string{"cluster": "eu-1"}, nil)
	f.idp.EXPECT().CreateUserWithClaim(gomock.Any(), "widgets", "s3cret", "acme", "ROLE_USER_PARTICIPANT").
		Return(nil)

	p, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "Widgets",
		Password:   "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.State != models.StateProvisionInProgress {
		t.Fatalf("state = %s, want PROVISION_IN_PROGRESS", p.State)
	}
	if p.Name != "widgets" || p.TenantName != "acme" {
		t.Fatalf("unexpected participant: %+v", p)
	}
	if p.DID != "did:web:widgets" || p.Host != "widgets.dataspace.local" {
		t.Fatalf("unexpected did/host: %s %s", p.DID, p.Host)
	}

	op := f.lastOperation(t, p.ID)
	if op.EventType != opmodels.EventProvisionStarted {
		t.Fatalf("audit event = %s, want PROVISION_STARTED", op.EventType)
	}
	if op.EventPayload["message"] != "Provisioning started" || op.EventPayload["cluster"] != "eu-1" {
		t.Fatalf("unexpected payload: %v", op.EventPayload)
	}

	user, err := f.users.FindByUsername(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte("s3cret")); err != nil {
		t.Fatalf("password not stored as bcrypt hash of the request password")
	}
	if user.Status != models.UserStatusActive {
		t.Fatalf("user status = %s, want ACTIVE", user.Status)
	}
}

func TestCreateParticipantProvisionFailureLeavesNoRows(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	f.provisioner.EXPECT().Provision(gomock.Any(), "widgets").
		Return(nil, dErrors.New(dErrors.CodeExternalAPI, "provisioner down"))

	_, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "widgets",
	})
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}

	ps, total, err := f.participants.List(context.Background(), models.Filter{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if total != 0 || len(ps) != 0 {
		t.Fatalf("expected no participant rows after provision failure")
	}
}

func TestCreateParticipantIdPFailureCompensates(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	f.expectDIDAndHost("widgets")
	f.provisioner.EXPECT().Provision(gomock.Any(), "widgets").Return(map[string]string{}, nil)
	f.idp.EXPECT().CreateUserWithClaim(gomock.Any(), "widgets", gomock.Any(), "acme", "ROLE_USER_PARTICIPANT").
		Return(dErrors.New(dErrors.CodeIdentityAdmin, "idp down"))
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(map[string]string{}, nil)

	_, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "widgets",
	})
	if !dErrors.HasCode(err, dErrors.CodeIdentityAdmin) {
		t.Fatalf("expected identity admin error, got %v", err)
	}

	ps, _, _ := f.participants.List(context.Background(), models.Filter{})
	if len(ps) != 1 {
		t.Fatalf("expected the participant row to survive the failure")
	}
	if ps[0].State != models.StateProvisionFailed {
		t.Fatalf("state = %s, want PROVISION_FAILED", ps[0].State)
	}
	op := f.lastOperation(t, ps[0].ID)
	if op.EventType != opmodels.EventProvisionFailed {
		t.Fatalf("audit event = %s, want PROVISION_FAILED", op.EventType)
	}
}

func TestCreateParticipantNameConflictSkipsProvisioner(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "acme")
	existing := models.New("p-1", tenant.ID, "acme", "widgetsinc", "", "", nil, "", "", time.Now())
	if err := f.participants.Create(context.Background(), existing); err != nil {
		t.Fatalf("seed participant: %v", err)
	}

	_, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "Widgets Inc", // normalizes to the taken name
	})
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateParticipantWithDistinctUsername(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	f.expectDIDAndHost("widgetsinc")
	f.provisioner.EXPECT().Provision(gomock.Any(), "widgetsinc").Return(map[string]string{}, nil)
	f.idp.EXPECT().CreateUserWithClaim(gomock.Any(), "alice", "s3cret", "acme", "ROLE_USER_PARTICIPANT").
		Return(nil)

	p, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "Widgets Inc",
		Username:   "Alice",
		Password:   "s3cret",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Name != "widgetsinc" {
		t.Fatalf("name = %s, want widgetsinc", p.Name)
	}

	user, err := f.users.FindByUsername(context.Background(), "alice")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.ParticipantID != p.ID {
		t.Fatalf("user bound to participant %d, want %d", user.ParticipantID, p.ID)
	}

	// The caller's username claim resolves the participant, not its name.
	profile, err := f.svc.Me(context.Background(), participantIdentity("acme", "alice"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Participant.ID != p.ID {
		t.Fatalf("unexpected profile participant: %+v", profile.Participant)
	}
}

func TestCreateParticipantUsernameConflictSkipsProvisioner(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	other := seedActiveParticipant(t, f, "acme", "gadgets")
	u := models.NewUser("u-alice", other.ID, "alice", "hash", nil, time.Now())
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}

	_, err := f.svc.CreateParticipant(context.Background(), adminIdentity(), service.CreateRequest{
		TenantName: "acme",
		Name:       "widgets",
		Username:   "alice",
	})
	if !dErrors.HasCode(err, dErrors.CodeConflict) {
		t.Fatalf("expected conflict, got %v", err)
	}
}

func TestCreateParticipantTenantAdminIgnoresRequestedTenant(t *testing.T) {
	f := newFixture(t)
	f.seedTenant(t, "acme")
	f.seedTenant(t, "other")
	f.expectDIDAndHost("widgets")
	f.provisioner.EXPECT().Provision(gomock.Any(), "widgets").Return(map[string]string{}, nil)
	f.idp.EXPECT().CreateUserWithClaim(gomock.Any(), "widgets", gomock.Any(), "acme", "ROLE_USER_PARTICIPANT").
		Return(nil)

	p, err := f.svc.CreateParticipant(context.Background(), tenantAdminIdentity("acme"), service.CreateRequest{
		TenantName: "other",
		Name:       "widgets",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.TenantName != "acme" {
		t.Fatalf("tenant = %s, want the caller's own tenant", p.TenantName)
	}
}

func TestCreateParticipantRequiresPermittedRole(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.CreateParticipant(context.Background(),
		participantIdentity("acme", "widgets"), service.CreateRequest{Name: "widgets"})
	if !dErrors.HasCode(err, dErrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}

	_, err = f.svc.CreateParticipant(context.Background(), visibility.Identity{}, service.CreateRequest{Name: "widgets"})
	if !dErrors.HasCode(err, dErrors.CodeUnauthorized) {
		t.Fatalf("expected unauthorized, got %v", err)
	}
}

func seedActiveParticipant(t *testing.T, f *fixture, tenantName, name string) *models.Participant {
	t.Helper()
	tenant, err := f.tenants.FindByName(context.Background(), tenantName)
	if err != nil {
		tenant = f.seedTenant(t, tenantName)
	}
	p := models.New("p-"+name, tenant.ID, tenantName, name, "", "", nil,
		"did:web:"+name, name+".dataspace.local", time.Now())
	p.State = models.StateActive
	if err := f.participants.Create(context.Background(), p); err != nil {
		t.Fatalf("seed participant: %v", err)
	}
	u := models.NewUser("u-"+name, p.ID, name, "hash", nil, time.Now())
	if err := f.users.Create(context.Background(), u); err != nil {
		t.Fatalf("seed user: %v", err)
	}
	return p
}

func TestDeleteParticipantHappyPath(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(map[string]string{"message": "removed"}, nil)
	f.idp.EXPECT().DeleteUserByUsername(gomock.Any(), "widgets").Return(nil)

	got, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != models.StateDeprovisionCompleted {
		t.Fatalf("state = %s, want DEPROVISION_COMPLETED", got.State)
	}

	op := f.lastOperation(t, p.ID)
	if op.EventType != opmodels.EventDeprovisionStarted {
		t.Fatalf("audit event = %s, want DEPROVISION_STARTED", op.EventType)
	}

	user, err := f.users.FindByUsername(context.Background(), "widgets")
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.Status != models.UserStatusDeleted || user.DeletedAt == nil {
		t.Fatalf("expected soft-deleted user, got %+v", user)
	}
}

func TestDeleteParticipantExternalFailureStillBookkeeps(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(nil, dErrors.New(dErrors.CodeExternalAPI, "provisioner down"))
	f.idp.EXPECT().DeleteUserByUsername(gomock.Any(), "widgets").
		Return(dErrors.New(dErrors.CodeIdentityAdmin, "idp down"))

	_, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID)
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}

	stored, _ := f.participants.FindByExternalID(context.Background(), p.ExternalID)
	if stored.State != models.StateDeprovisionFailed {
		t.Fatalf("state = %s, want DEPROVISION_FAILED", stored.State)
	}
	op := f.lastOperation(t, p.ID)
	if op.EventType != opmodels.EventDeprovisionFailed {
		t.Fatalf("audit event = %s, want DEPROVISION_FAILED", op.EventType)
	}
	user, _ := f.users.FindByUsername(context.Background(), "widgets")
	if user.Status != models.UserStatusDeleteWithError {
		t.Fatalf("user status = %s, want DELETE_WITH_ERROR", user.Status)
	}
}

func TestDeleteParticipantExternalFailureMarksUsersDeleteWithError(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(nil, dErrors.New(dErrors.CodeExternalAPI, "provisioner down"))
	f.idp.EXPECT().DeleteUserByUsername(gomock.Any(), "widgets").Return(nil)

	_, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID)
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}

	// The user status tracks the deprovision outcome, not the identity
	// provider call: the account was removed cleanly but the runtime was not.
	user, _ := f.users.FindByUsername(context.Background(), "widgets")
	if user.Status != models.UserStatusDeleteWithError {
		t.Fatalf("user status = %s, want DELETE_WITH_ERROR", user.Status)
	}
}

func TestDeleteParticipantIdPFailureStillMarksUsersDeleted(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(map[string]string{"message": "removed"}, nil)
	f.idp.EXPECT().DeleteUserByUsername(gomock.Any(), "widgets").
		Return(dErrors.New(dErrors.CodeIdentityAdmin, "idp down"))

	got, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != models.StateDeprovisionCompleted {
		t.Fatalf("state = %s, want DEPROVISION_COMPLETED", got.State)
	}

	user, _ := f.users.FindByUsername(context.Background(), "widgets")
	if user.Status != models.UserStatusDeleted {
		t.Fatalf("user status = %s, want DELETED", user.Status)
	}
}

func TestMeAfterDeprovisionReportsNotFound(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	f.provisioner.EXPECT().Deprovision(gomock.Any(), "widgets", "did:web:widgets").
		Return(map[string]string{}, nil)
	f.idp.EXPECT().DeleteUserByUsername(gomock.Any(), "widgets").Return(nil)

	if _, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The retired user's claim must not resolve the participant anymore.
	_, err := f.svc.Me(context.Background(), participantIdentity("acme", "widgets"))
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found after deprovision, got %v", err)
	}
}

func TestDeleteParticipantNonActiveIsNoOp(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "acme")
	p := models.New("p-widgets", tenant.ID, "acme", "widgets", "", "", nil, "", "", time.Now())
	if err := f.participants.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := f.svc.DeleteParticipant(context.Background(), adminIdentity(), p.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != models.StateProvisionInProgress {
		t.Fatalf("expected untouched state, got %s", got.State)
	}
}

func TestUpdateParticipant(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")

	desc := "updated description"
	got, err := f.svc.UpdateParticipant(context.Background(), adminIdentity(), p.ExternalID,
		service.UpdateRequest{Description: &desc, Metadata: map[string]any{"tier": "gold"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != models.StateUpdated || got.Description != desc {
		t.Fatalf("unexpected participant: %+v", got)
	}

	// UPDATED itself accepts no further updates.
	_, err = f.svc.UpdateParticipant(context.Background(), adminIdentity(), p.ExternalID,
		service.UpdateRequest{Description: &desc})
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("expected not found for immutable participant, got %v", err)
	}
}

func TestGetParticipantScoping(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")
	seedActiveParticipant(t, f, "other", "gadgets")

	if _, err := f.svc.GetParticipant(context.Background(), tenantAdminIdentity("acme"), p.ExternalID); err != nil {
		t.Fatalf("tenant admin should see own participant: %v", err)
	}
	_, err := f.svc.GetParticipant(context.Background(), tenantAdminIdentity("other"), p.ExternalID)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("cross-tenant read should report not found, got %v", err)
	}

	if _, err := f.svc.GetParticipant(context.Background(), participantIdentity("acme", "widgets"), p.ExternalID); err != nil {
		t.Fatalf("participant user should see own participant: %v", err)
	}
	_, err = f.svc.GetParticipant(context.Background(), participantIdentity("other", "gadgets"), p.ExternalID)
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("foreign participant read should report not found, got %v", err)
	}
}

func TestListParticipantsScoping(t *testing.T) {
	f := newFixture(t)
	seedActiveParticipant(t, f, "acme", "widgets")
	seedActiveParticipant(t, f, "other", "gadgets")

	all, total, err := f.svc.ListParticipants(context.Background(), adminIdentity(), models.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 2 || len(all) != 2 {
		t.Fatalf("admin should see everything, got %d", total)
	}

	own, total, err := f.svc.ListParticipants(context.Background(), tenantAdminIdentity("acme"), models.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || own[0].TenantName != "acme" {
		t.Fatalf("tenant admin should only see own tenant, got %+v", own)
	}

	mine, total, err := f.svc.ListParticipants(context.Background(), participantIdentity("acme", "widgets"), models.Filter{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if total != 1 || mine[0].Name != "widgets" {
		t.Fatalf("participant user should only see own participant, got %+v", mine)
	}
}

func TestMe(t *testing.T) {
	f := newFixture(t)
	p := seedActiveParticipant(t, f, "acme", "widgets")

	profile, err := f.svc.Me(context.Background(), participantIdentity("acme", "widgets"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if profile.Participant.ID != p.ID || profile.Tenant.Name != "acme" || len(profile.Users) != 1 {
		t.Fatalf("unexpected profile: %+v", profile)
	}

	// Broader roles have no single participant of their own.
	_, err = f.svc.Me(context.Background(), adminIdentity())
	if !dErrors.HasCode(err, dErrors.CodeForbidden) {
		t.Fatalf("expected forbidden for admin, got %v", err)
	}
}

func TestActivate(t *testing.T) {
	f := newFixture(t)
	tenant := f.seedTenant(t, "acme")
	p := models.New("p-widgets", tenant.ID, "acme", "widgets", "", "", nil, "", "", time.Now())
	if err := f.participants.Create(context.Background(), p); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := f.svc.Activate(context.Background(), adminIdentity(), p.ExternalID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.State != models.StateActive {
		t.Fatalf("state = %s, want ACTIVE", got.State)
	}
	op := f.lastOperation(t, p.ID)
	if op.EventType != opmodels.EventProvisionCompleted {
		t.Fatalf("audit event = %s, want PROVISION_COMPLETED", op.EventType)
	}

	// Activating twice violates the lifecycle.
	if _, err := f.svc.Activate(context.Background(), adminIdentity(), p.ExternalID); err == nil {
		t.Fatalf("expected error on double activation")
	}
}
