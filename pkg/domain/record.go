// Package domain holds small value types shared by every entity.
package domain

import "time"

// Record carries the audited bookkeeping fields common to all persisted
// entities. Entities embed it by composition; the surrogate ID stays internal
// to the store while ExternalID is the only identifier exposed to callers.
type Record struct {
	ID         int64     `json:"-"`
	ExternalID string    `json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

// NewRecord initializes the audited fields with a freshly assigned external
// identifier. External IDs are assigned exactly once and never reused.
func NewRecord(externalID string, now time.Time) Record {
	return Record{
		ExternalID: externalID,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

// Touch updates the modification timestamp.
func (r *Record) Touch(now time.Time) {
	r.UpdatedAt = now
}
