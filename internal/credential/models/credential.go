package models

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"time"

	"dataspace/pkg/domain"
)

// Status is the credential lifecycle status.
type Status string

const (
	StatusRequested Status = "REQUESTED"
	StatusIssued    Status = "ISSUED"
	StatusExpired   Status = "EXPIRED"
	StatusRevoked   Status = "REVOKED"
	StatusSuspended Status = "SUSPENDED"
	StatusError     Status = "ERROR"
)

// Valid reports whether the status is a known value.
func (s Status) Valid() bool {
	switch s {
	case StatusRequested, StatusIssued, StatusExpired, StatusRevoked, StatusSuspended, StatusError:
		return true
	}
	return false
}

// Spec is one requested credential within a batch.
type Spec struct {
	ID     string `json:"id,omitempty"`
	Type   string `json:"type"`
	Format string `json:"format"`
}

// Credential is a verifiable credential requested for a participant.
// Immutable once issued except for status, issuance timestamps, and hash.
type Credential struct {
	domain.Record
	RequestID      string     `json:"request_id"`
	IssuerDID      string     `json:"issuer_did"`
	HolderPID      string     `json:"holder_pid"`
	ParticipantID  int64      `json:"-"`
	CredentialType string     `json:"credential_type"`
	Format         string     `json:"format"`
	Status         Status     `json:"status"`
	IssuedAt       *time.Time `json:"issued_at,omitempty"`
	ExpiresAt      *time.Time `json:"expires_at,omitempty"`
	Hash           string     `json:"credential_hash"`
}

// New builds a credential in the given initial status with its content
// fingerprint populated.
func New(externalID, requestID, issuerDID, holderPID string, participantID int64,
	credentialType, format string, status Status, now time.Time) *Credential {
	c := &Credential{
		Record:         domain.NewRecord(externalID, now),
		RequestID:      requestID,
		IssuerDID:      issuerDID,
		HolderPID:      holderPID,
		ParticipantID:  participantID,
		CredentialType: credentialType,
		Format:         format,
		Status:         status,
	}
	c.Hash = c.ComputeHash()
	return c
}

// ComputeHash derives the deterministic content fingerprint from the six
// identity fields. Recomputing for identical inputs yields the identical
// hex string; changing any one field changes the hash.
func (c *Credential) ComputeHash() string {
	data := strings.Join([]string{
		c.ExternalID,
		c.RequestID,
		c.IssuerDID,
		c.HolderPID,
		c.CredentialType,
		c.Format,
	}, "|")
	sum := sha256.Sum256([]byte(data))
	return hex.EncodeToString(sum[:])
}
