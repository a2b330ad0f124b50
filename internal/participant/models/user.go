package models

import (
	"time"

	"dataspace/pkg/domain"
)

// UserStatus mirrors the identity-provider account lifecycle.
type UserStatus string

const (
	UserStatusActive           UserStatus = "ACTIVE"
	UserStatusInactive         UserStatus = "INACTIVE"
	UserStatusDeleteInProgress UserStatus = "DELETE_IN_PROGRESS"
	UserStatusDeleteWithError  UserStatus = "DELETE_WITH_ERROR"
	UserStatusDeleted          UserStatus = "DELETED"
	UserStatusError            UserStatus = "ERROR"
)

// User is a participant-owned account mirroring an identity-provider user.
// The password is stored as a bcrypt hash, never in clear.
type User struct {
	domain.Record
	ParticipantID int64          `json:"-"`
	Username      string         `json:"username"`
	PasswordHash  string         `json:"-"`
	Metadata      map[string]any `json:"metadata,omitempty"`
	Status        UserStatus     `json:"status"`
	DeletedAt     *time.Time     `json:"deleted_at,omitempty"`
}

// NewUser builds an active participant user.
func NewUser(externalID string, participantID int64, username, passwordHash string,
	metadata map[string]any, now time.Time) *User {
	return &User{
		Record:        domain.NewRecord(externalID, now),
		ParticipantID: participantID,
		Username:      username,
		PasswordHash:  passwordHash,
		Metadata:      metadata,
		Status:        UserStatusActive,
	}
}

// MarkDeleted soft-deletes the user with the given terminal status.
func (u *User) MarkDeleted(status UserStatus, now time.Time) {
	u.Status = status
	u.DeletedAt = &now
	u.Touch(now)
}
