// Package seeder populates the in-memory stores with demo data so the
// service is explorable without a database or external collaborators.
package seeder

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	credmodels "dataspace/internal/credential/models"
	opmodels "dataspace/internal/operation/models"
	pmodels "dataspace/internal/participant/models"
	tenantmodels "dataspace/internal/tenant/models"
)

// DemoPassword is the password of every seeded participant user.
const DemoPassword = "password"

type TenantStore interface {
	Create(ctx context.Context, t *tenantmodels.Tenant) error
}

type ParticipantStore interface {
	Create(ctx context.Context, p *pmodels.Participant) error
	Update(ctx context.Context, p *pmodels.Participant) error
}

type UserStore interface {
	Create(ctx context.Context, u *pmodels.User) error
}

type OperationStore interface {
	Append(ctx context.Context, op *opmodels.Operation) error
}

type CredentialStore interface {
	CreateBatch(ctx context.Context, creds []*credmodels.Credential) error
}

// Seeder writes demo rows directly into the stores, bypassing the sagas so
// no external calls happen.
type Seeder struct {
	tenants      TenantStore
	participants ParticipantStore
	users        UserStore
	operations   OperationStore
	credentials  CredentialStore
	logger       *slog.Logger
}

// New creates a seeder.
func New(tenants TenantStore, participants ParticipantStore, users UserStore,
	operations OperationStore, credentials CredentialStore, logger *slog.Logger) *Seeder {
	return &Seeder{
		tenants:      tenants,
		participants: participants,
		users:        users,
		operations:   operations,
		credentials:  credentials,
		logger:       logger,
	}
}

// SeedAll creates one demo tenant with an active, credentialed participant.
func (s *Seeder) SeedAll(ctx context.Context) error {
	s.logger.Info("seeding demo data")
	now := time.Now()

	tenant, err := tenantmodels.New(uuid.NewString(), "demo", "demo tenant", nil, now)
	if err != nil {
		return fmt.Errorf("failed to build demo tenant: %w", err)
	}
	if err := s.tenants.Create(ctx, tenant); err != nil {
		return fmt.Errorf("failed to seed tenant: %w", err)
	}

	participant, err := s.seedParticipant(ctx, tenant, now)
	if err != nil {
		return err
	}
	if err := s.seedCredential(ctx, participant, now); err != nil {
		return err
	}

	s.logger.Info("demo data seeded",
		"tenant", tenant.Name,
		"participant", participant.Name,
		"username", participant.Name,
		"password", DemoPassword,
	)
	return nil
}

func (s *Seeder) seedParticipant(ctx context.Context, tenant *tenantmodels.Tenant, now time.Time) (*pmodels.Participant, error) {
	name := "demoparticipant"
	participant := pmodels.New(uuid.NewString(), tenant.ID, tenant.Name, name,
		"Demo Participant Inc.", "seeded demo participant", nil,
		"did:web:"+name+".dataspace.local", name+".dataspace.local", now)
	if err := s.participants.Create(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to seed participant: %w", err)
	}
	if err := s.operations.Append(ctx, opmodels.New(uuid.NewString(), participant.ID,
		opmodels.EventProvisionStarted, map[string]any{"message": "Provisioning started"}, now)); err != nil {
		return nil, fmt.Errorf("failed to seed operation: %w", err)
	}

	transition, err := participant.Transition(pmodels.EventActivated, now.Add(time.Second))
	if err != nil {
		return nil, fmt.Errorf("failed to activate seeded participant: %w", err)
	}
	if err := s.participants.Update(ctx, participant); err != nil {
		return nil, fmt.Errorf("failed to update seeded participant: %w", err)
	}
	if err := s.operations.Append(ctx, opmodels.New(uuid.NewString(), participant.ID,
		transition.Audit, map[string]any{"message": "Provisioning completed"}, now.Add(time.Second))); err != nil {
		return nil, fmt.Errorf("failed to seed operation: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}
	user := pmodels.NewUser(uuid.NewString(), participant.ID, name, string(hash), nil, now)
	if err := s.users.Create(ctx, user); err != nil {
		return nil, fmt.Errorf("failed to seed participant user: %w", err)
	}
	return participant, nil
}

func (s *Seeder) seedCredential(ctx context.Context, participant *pmodels.Participant, now time.Time) error {
	issuedAt := now.Add(2 * time.Second)
	cred := credmodels.New(uuid.NewString(), uuid.NewString(),
		"did:web:issuer.dataspace.local", "holder-demo", participant.ID,
		"MembershipCredential", "VC1_0_JWT", credmodels.StatusIssued, issuedAt)
	cred.IssuedAt = &issuedAt
	if err := s.credentials.CreateBatch(ctx, []*credmodels.Credential{cred}); err != nil {
		return fmt.Errorf("failed to seed credential: %w", err)
	}
	return nil
}
