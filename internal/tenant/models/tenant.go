package models

import (
	"time"

	"dataspace/pkg/dnsname"
	"dataspace/pkg/domain"
	dErrors "dataspace/pkg/domain-errors"
)

// Status is the tenant lifecycle status. Tenants are soft-deleted only.
type Status string

const (
	StatusActive   Status = "ACTIVE"
	StatusInactive Status = "INACTIVE"
	StatusDeleted  Status = "DELETED"
)

// Tenant is the top-level organizational scope owning zero or more
// participants. The name is DNS-safe, unique, and immutable once set.
type Tenant struct {
	domain.Record
	Name        string         `json:"name"`
	Description string         `json:"description,omitempty"`
	Metadata    map[string]any `json:"metadata,omitempty"`
	Status      Status         `json:"status"`
	DeletedAt   *time.Time     `json:"deleted_at,omitempty"`
}

// New normalizes the requested name and builds an active tenant.
func New(externalID, name, description string, metadata map[string]any, now time.Time) (*Tenant, error) {
	normalized := dnsname.Normalize(name)
	if normalized == "" {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name is required")
	}
	if len(normalized) < 3 {
		return nil, dErrors.New(dErrors.CodeValidation, "tenant name must normalize to at least 3 characters")
	}
	return &Tenant{
		Record:      domain.NewRecord(externalID, now),
		Name:        normalized,
		Description: description,
		Metadata:    metadata,
		Status:      StatusActive,
	}, nil
}

// Deleted reports whether the tenant has been soft-deleted.
func (t *Tenant) Deleted() bool {
	return t.Status == StatusDeleted
}

// SoftDelete marks the tenant deleted, keeping the row.
func (t *Tenant) SoftDelete(now time.Time) error {
	if t.Deleted() {
		return dErrors.New(dErrors.CodeInvariantViolation, "tenant is already deleted")
	}
	t.Status = StatusDeleted
	t.DeletedAt = &now
	t.Touch(now)
	return nil
}
