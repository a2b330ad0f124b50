package models

import (
	"testing"

	opmodels "dataspace/internal/operation/models"
	dErrors "dataspace/pkg/domain-errors"
)

func TestApplyKnownTransitions(t *testing.T) {
	cases := []struct {
		state State
		event Event
		next  State
		audit opmodels.EventType
	}{
		{StateProvisionInProgress, EventActivated, StateActive, opmodels.EventProvisionCompleted},
		{StateProvisionInProgress, EventProvisionFailed, StateProvisionFailed, opmodels.EventProvisionFailed},
		{StateProvisionInProgress, EventMetadataUpdated, StateUpdated, ""},
		{StateActive, EventDeprovisioned, StateDeprovisionCompleted, opmodels.EventDeprovisionStarted},
		{StateActive, EventDeprovisionFailed, StateDeprovisionFailed, opmodels.EventDeprovisionFailed},
		{StateActive, EventMetadataUpdated, StateUpdated, ""},
	}
	for _, tc := range cases {
		got, err := tc.state.Apply(tc.event)
		if err != nil {
			t.Fatalf("(%s, %s): unexpected error: %v", tc.state, tc.event, err)
		}
		if got.Next != tc.next || got.Audit != tc.audit {
			t.Fatalf("(%s, %s): got (%s, %s), want (%s, %s)",
				tc.state, tc.event, got.Next, got.Audit, tc.next, tc.audit)
		}
	}
}

func TestApplyRejectsUnknownPairs(t *testing.T) {
	allStates := []State{
		StateProvisionInProgress, StateProvisionFailed, StateActive, StateUpdated,
		StateDetailsUpdated, StateDeprovisionInProgress, StateDeprovisionCompleted,
		StateDeprovisionFailed, StateError,
	}
	allEvents := []Event{
		EventActivated, EventProvisionFailed, EventDeprovisioned,
		EventDeprovisionFailed, EventMetadataUpdated,
	}

	// Every pair either resolves through the table or fails with an
	// invariant violation; nothing panics or silently succeeds.
	for _, s := range allStates {
		for _, e := range allEvents {
			tr, err := s.Apply(e)
			if err != nil {
				if !dErrors.HasCode(err, dErrors.CodeInvariantViolation) {
					t.Fatalf("(%s, %s): unexpected error kind: %v", s, e, err)
				}
				continue
			}
			if tr.Next == "" {
				t.Fatalf("(%s, %s): transition resolved to empty state", s, e)
			}
		}
	}

	// Terminal states accept no lifecycle events.
	for _, s := range []State{StateProvisionFailed, StateDeprovisionCompleted} {
		for _, e := range allEvents {
			if _, err := s.Apply(e); err == nil {
				t.Fatalf("expected terminal state %s to reject %s", s, e)
			}
		}
	}
}

func TestUpdatable(t *testing.T) {
	if !StateProvisionInProgress.Updatable() || !StateActive.Updatable() {
		t.Fatalf("expected provisioning and active participants to be updatable")
	}
	for _, s := range []State{StateDeprovisionCompleted, StateDeprovisionFailed, StateProvisionFailed, StateUpdated} {
		if s.Updatable() {
			t.Fatalf("expected %s to be non-updatable", s)
		}
	}
}
