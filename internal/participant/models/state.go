package models

import (
	opmodels "dataspace/internal/operation/models"
	dErrors "dataspace/pkg/domain-errors"
)

// State is the participant's current lifecycle operation. Transitions only
// happen through Apply so every state change maps to a known audit event.
type State string

const (
	StateProvisionInProgress   State = "PROVISION_IN_PROGRESS"
	StateProvisionFailed       State = "PROVISION_FAILED"
	StateActive                State = "ACTIVE"
	StateUpdated               State = "UPDATED"
	StateDetailsUpdated        State = "DETAILS_UPDATED"
	StateDeprovisionInProgress State = "DEPROVISION_IN_PROGRESS"
	StateDeprovisionCompleted  State = "DEPROVISION_COMPLETED"
	StateDeprovisionFailed     State = "DEPROVISION_FAILED"
	StateError                 State = "ERROR"
)

// Event is a lifecycle trigger applied to a participant state.
type Event string

const (
	// EventActivated is the external activation signal completing
	// provisioning.
	EventActivated Event = "activated"
	// EventProvisionFailed compensates a failed provisioning saga.
	EventProvisionFailed Event = "provision_failed"
	// EventDeprovisioned records a successful external deprovision.
	EventDeprovisioned Event = "deprovisioned"
	// EventDeprovisionFailed records a failed external deprovision.
	EventDeprovisionFailed Event = "deprovision_failed"
	// EventMetadataUpdated records a metadata/description update.
	EventMetadataUpdated Event = "metadata_updated"
)

// Transition is the outcome of applying an event: the new state and the
// audit event type to append, if any.
type Transition struct {
	Next  State
	Audit opmodels.EventType
}

// transitions is the closed (state, event) table. A pair absent from the
// table is an invalid transition.
var transitions = map[State]map[Event]Transition{
	StateProvisionInProgress: {
		EventActivated:       {Next: StateActive, Audit: opmodels.EventProvisionCompleted},
		EventProvisionFailed: {Next: StateProvisionFailed, Audit: opmodels.EventProvisionFailed},
		EventMetadataUpdated: {Next: StateUpdated},
	},
	StateActive: {
		// A successful deprovision records its start event; the state write
		// itself is the completion marker.
		EventDeprovisioned:     {Next: StateDeprovisionCompleted, Audit: opmodels.EventDeprovisionStarted},
		EventDeprovisionFailed: {Next: StateDeprovisionFailed, Audit: opmodels.EventDeprovisionFailed},
		EventMetadataUpdated:   {Next: StateUpdated},
	},
}

// Apply resolves the transition for the given event. It returns an
// invariant violation when the event is not valid in the current state.
func (s State) Apply(event Event) (Transition, error) {
	if t, ok := transitions[s][event]; ok {
		return t, nil
	}
	return Transition{}, dErrors.New(dErrors.CodeInvariantViolation,
		"invalid lifecycle transition: "+string(event)+" in state "+string(s))
}

// Updatable reports whether metadata updates are allowed in this state.
func (s State) Updatable() bool {
	_, err := s.Apply(EventMetadataUpdated)
	return err == nil
}
