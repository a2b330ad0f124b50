package models

import (
	"time"

	"dataspace/pkg/domain"
)

// EventType classifies a lifecycle transition recorded in the audit trail.
type EventType string

const (
	EventProvisionStarted    EventType = "PROVISION_STARTED"
	EventProvisionInProgress EventType = "PROVISION_IN_PROGRESS"
	EventProvisionCompleted  EventType = "PROVISION_COMPLETED"
	EventProvisionFailed     EventType = "PROVISION_FAILED"

	EventDeprovisionStarted    EventType = "DEPROVISION_STARTED"
	EventDeprovisionInProgress EventType = "DEPROVISION_IN_PROGRESS"
	EventDeprovisionCompleted  EventType = "DEPROVISION_COMPLETED"
	EventDeprovisionFailed     EventType = "DEPROVISION_FAILED"
)

// Valid reports whether the event type is a known value.
func (e EventType) Valid() bool {
	switch e {
	case EventProvisionStarted, EventProvisionInProgress, EventProvisionCompleted, EventProvisionFailed,
		EventDeprovisionStarted, EventDeprovisionInProgress, EventDeprovisionCompleted, EventDeprovisionFailed:
		return true
	}
	return false
}

// Operation is one immutable audit entry for a participant lifecycle
// transition. Entries are append-only; they are never updated or deleted.
type Operation struct {
	domain.Record
	ParticipantID int64          `json:"-"`
	EventType     EventType      `json:"event_type"`
	EventPayload  map[string]any `json:"event_payload,omitempty"`
}

// New builds an audit entry for a participant.
func New(externalID string, participantID int64, eventType EventType, payload map[string]any, now time.Time) *Operation {
	return &Operation{
		Record:        domain.NewRecord(externalID, now),
		ParticipantID: participantID,
		EventType:     eventType,
		EventPayload:  payload,
	}
}
