package models

import (
	"time"

	"dataspace/pkg/domain"
)

// Participant is a tenant-owned dataspace member provisioned in the
// external system and given its own identity-provider user. The name is
// the DNS-safe normalized form, unique and immutable once set.
type Participant struct {
	domain.Record
	TenantID    int64          `json:"-"`
	TenantName  string         `json:"tenant_name"`
	Name        string         `json:"name"`
	CompanyName string         `json:"company_name,omitempty"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	DID         string         `json:"did"`
	Host        string         `json:"host"`
	State       State          `json:"current_operation"`
}

// New builds a participant entering the provisioning saga. Participants are
// created only through the orchestrator, always in PROVISION_IN_PROGRESS.
func New(externalID string, tenantID int64, tenantName, name, companyName, description string,
	metadata map[string]any, did, host string, now time.Time) *Participant {
	return &Participant{
		Record:      domain.NewRecord(externalID, now),
		TenantID:    tenantID,
		TenantName:  tenantName,
		Name:        name,
		CompanyName: companyName,
		Description: description,
		Metadata:    metadata,
		DID:         did,
		Host:        host,
		State:       StateProvisionInProgress,
	}
}

// Transition applies a lifecycle event and returns the audit event type to
// append ("" when the transition is not audited).
func (p *Participant) Transition(event Event, now time.Time) (Transition, error) {
	t, err := p.State.Apply(event)
	if err != nil {
		return Transition{}, err
	}
	p.State = t.Next
	p.Touch(now)
	return t, nil
}
