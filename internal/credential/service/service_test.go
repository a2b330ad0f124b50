package service_test

import (
	"context"
	"testing"
	"time"

	"dataspace/internal/credential/models"
	"dataspace/internal/credential/service"
	credstore "dataspace/internal/credential/store"
	pmodels "dataspace/internal/participant/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/visibility"
	dErrors "dataspace/pkg/domain-errors"
)

// directory is a test double for the orchestrator's scoped lookups.
type directory struct {
	participants map[string]*pmodels.Participant
}

func (d *directory) FindScoped(_ context.Context, scope visibility.Scope, externalID string) (*pmodels.Participant, error) {
	p, ok := d.participants[externalID]
	if !ok {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	if scope.Kind == visibility.KindTenant && p.TenantName != scope.TenantName {
		return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
	}
	return p, nil
}

func (d *directory) FindScopedByID(ctx context.Context, scope visibility.Scope, id int64) (*pmodels.Participant, error) {
	for _, p := range d.participants {
		if p.ID == id {
			return d.FindScoped(ctx, scope, p.ExternalID)
		}
	}
	return nil, dErrors.New(dErrors.CodeNotFound, "participant not found")
}

// stubIssuer records issuance calls.
type stubIssuer struct {
	calls int
	err   error
}

func (s *stubIssuer) RequestCredentials(context.Context, string, string, []models.Spec) (map[string]string, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return map[string]string{"status": "accepted"}, nil
}

func admin() visibility.Identity {
	return visibility.Identity{Roles: []visibility.Role{visibility.RoleAdmin}}
}

func activeParticipant(id int64, externalID string) *pmodels.Participant {
	p := pmodels.New(externalID, 1, "acme", "widgets", "", "", nil,
		"did:web:widgets", "widgets.dataspace.local", time.Now())
	p.ID = id
	p.State = pmodels.StateActive
	return p
}

func newService(dir *directory, issuer *stubIssuer, opts ...service.Option) (*service.Service, *credstore.InMemory) {
	creds := credstore.NewInMemory()
	svc := service.New(creds, dir, issuer, database.NopRunner{},
		"did:web:issuer", "holder-1", opts...)
	return svc, creds
}

func TestRequestCredentialsBatchSharesRequestID(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	issuer := &stubIssuer{}
	svc, creds := newService(dir, issuer)

	batch, err := svc.RequestCredentials(context.Background(), admin(), "p-1", []models.Spec{
		{Type: "MembershipCredential", Format: "VC1_0_JWT"},
		{Type: "DataProcessorCredential", Format: "VC1_0_JWT"},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer.calls != 1 {
		t.Fatalf("expected one hub call, got %d", issuer.calls)
	}
	if len(batch) != 2 {
		t.Fatalf("expected two credentials, got %d", len(batch))
	}
	if batch[0].RequestID != batch[1].RequestID {
		t.Fatalf("batch rows must share one request id")
	}
	for _, c := range batch {
		if c.Status != models.StatusRequested {
			t.Fatalf("status = %s, want REQUESTED", c.Status)
		}
		if c.Hash != c.ComputeHash() {
			t.Fatalf("stored hash does not match recomputation")
		}
		if c.IssuerDID != "did:web:issuer" || c.HolderPID != "holder-1" {
			t.Fatalf("unexpected issuer identity: %+v", c)
		}
	}

	stored, err := creds.ListByParticipant(context.Background(), 1, "")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected persisted batch, got %d rows", len(stored))
	}
}

func TestRequestCredentialsInactiveParticipant(t *testing.T) {
	p := activeParticipant(1, "p-1")
	p.State = pmodels.StateProvisionInProgress
	dir := &directory{participants: map[string]*pmodels.Participant{"p-1": p}}
	issuer := &stubIssuer{}
	svc, creds := newService(dir, issuer)

	_, err := svc.RequestCredentials(context.Background(), admin(), "p-1",
		[]models.Spec{{Type: "MembershipCredential", Format: "VC1_0_JWT"}})
	if !dErrors.HasCode(err, dErrors.CodeNotActive) {
		t.Fatalf("expected not-active error, got %v", err)
	}
	if issuer.calls != 0 {
		t.Fatalf("hub must not be called for inactive participants")
	}
	stored, _ := creds.ListByParticipant(context.Background(), 1, "")
	if len(stored) != 0 {
		t.Fatalf("expected zero rows, got %d", len(stored))
	}
}

func TestRequestCredentialsHubFailureLeavesNoRows(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	issuer := &stubIssuer{err: dErrors.New(dErrors.CodeExternalAPI, "hub down")}
	svc, creds := newService(dir, issuer)

	_, err := svc.RequestCredentials(context.Background(), admin(), "p-1",
		[]models.Spec{{Type: "MembershipCredential", Format: "VC1_0_JWT"}})
	if !dErrors.HasCode(err, dErrors.CodeExternalAPI) {
		t.Fatalf("expected external API error, got %v", err)
	}
	stored, _ := creds.ListByParticipant(context.Background(), 1, "")
	if len(stored) != 0 {
		t.Fatalf("expected zero rows after hub failure, got %d", len(stored))
	}
}

func TestRequestCredentialsMockModeIssuesImmediately(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	issuer := &stubIssuer{}
	svc, _ := newService(dir, issuer, service.WithMockIssuance())

	batch, err := svc.RequestCredentials(context.Background(), admin(), "p-1",
		[]models.Spec{{Type: "MembershipCredential", Format: "VC1_0_JWT"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if issuer.calls != 0 {
		t.Fatalf("mock mode must not call the hub")
	}
	if batch[0].Status != models.StatusIssued || batch[0].IssuedAt == nil {
		t.Fatalf("expected immediately issued credential, got %+v", batch[0])
	}
}

func TestUpdateStatusStampsIssuedAtOnce(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	svc, creds := newService(dir, &stubIssuer{})

	c := models.New("c-1", "req-1", "did:web:issuer", "holder-1", 1,
		"MembershipCredential", "VC1_0_JWT", models.StatusRequested, time.Now())
	if err := creds.CreateBatch(context.Background(), []*models.Credential{c}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	got, err := svc.UpdateStatus(context.Background(), admin(), "c-1", models.StatusIssued)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusIssued || got.IssuedAt == nil {
		t.Fatalf("expected issued credential with timestamp, got %+v", got)
	}
	issuedAt := *got.IssuedAt

	got, err = svc.UpdateStatus(context.Background(), admin(), "c-1", models.StatusSuspended)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusSuspended || got.IssuedAt == nil || !got.IssuedAt.Equal(issuedAt) {
		t.Fatalf("suspension must keep the original issuance time")
	}
}

func TestUpdateStatusRejectsUnknownStatus(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{}}
	svc, _ := newService(dir, &stubIssuer{})

	_, err := svc.UpdateStatus(context.Background(), admin(), "c-1", models.Status("BOGUS"))
	if !dErrors.HasCode(err, dErrors.CodeValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}

func TestUpdateDetailsRecomputesHash(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	svc, creds := newService(dir, &stubIssuer{})

	c := models.New("c-1", "req-1", "did:web:issuer", "holder-1", 1,
		"MembershipCredential", "VC1_0_JWT", models.StatusRequested, time.Now())
	if err := creds.CreateBatch(context.Background(), []*models.Credential{c}); err != nil {
		t.Fatalf("seed: %v", err)
	}
	oldHash := c.Hash

	expires := time.Now().Add(24 * time.Hour)
	got, err := svc.UpdateDetails(context.Background(), admin(), "c-1", service.DetailsUpdate{
		CredentialType: "DataProcessorCredential",
		ExpiresAt:      &expires,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != models.StatusIssued || got.ExpiresAt == nil {
		t.Fatalf("unexpected credential: %+v", got)
	}
	if got.Hash == oldHash {
		t.Fatalf("hash must change when the credential type changes")
	}
	if got.Hash != got.ComputeHash() {
		t.Fatalf("stored hash does not match recomputation")
	}
}

func TestCredentialVisibilityScoping(t *testing.T) {
	dir := &directory{participants: map[string]*pmodels.Participant{
		"p-1": activeParticipant(1, "p-1"),
	}}
	svc, creds := newService(dir, &stubIssuer{})

	c := models.New("c-1", "req-1", "did:web:issuer", "holder-1", 1,
		"MembershipCredential", "VC1_0_JWT", models.StatusRequested, time.Now())
	if err := creds.CreateBatch(context.Background(), []*models.Credential{c}); err != nil {
		t.Fatalf("seed: %v", err)
	}

	otherTenant := visibility.Identity{
		Roles:  []visibility.Role{visibility.RoleAdminTenant},
		Claims: visibility.Claims{TenantName: "other"},
	}
	_, err := svc.GetCredential(context.Background(), otherTenant, "c-1")
	if !dErrors.HasCode(err, dErrors.CodeNotFound) {
		t.Fatalf("cross-tenant credential read should report not found, got %v", err)
	}

	sameTenant := visibility.Identity{
		Roles:  []visibility.Role{visibility.RoleAdminTenant},
		Claims: visibility.Claims{TenantName: "acme"},
	}
	if _, err := svc.GetCredential(context.Background(), sameTenant, "c-1"); err != nil {
		t.Fatalf("same-tenant read failed: %v", err)
	}
}
