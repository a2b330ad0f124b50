package store

import (
	"context"
	"fmt"
	"sync"

	"dataspace/internal/participant/models"
	"dataspace/internal/sentinel"
)

// InMemoryUsers stores participant users in memory.
type InMemoryUsers struct {
	mu          sync.RWMutex
	nextID      int64
	users       map[int64]*models.User
	usernameIdx map[string]int64
}

// NewInMemoryUsers creates an in-memory participant user store.
func NewInMemoryUsers() *InMemoryUsers {
	return &InMemoryUsers{
		users:       make(map[int64]*models.User),
		usernameIdx: make(map[string]int64),
	}
}

// Create atomically persists the user if the username is not already taken.
func (s *InMemoryUsers) Create(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.usernameIdx[u.Username]; exists {
		return fmt.Errorf("username must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.nextID++
	u.ID = s.nextID
	cp := *u
	s.users[u.ID] = &cp
	s.usernameIdx[u.Username] = u.ID
	return nil
}

// ExistsByUsername reports whether a user with the username exists.
func (s *InMemoryUsers) ExistsByUsername(_ context.Context, username string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.usernameIdx[username]
	return ok, nil
}

// FindByUsername retrieves a user by username.
func (s *InMemoryUsers) FindByUsername(_ context.Context, username string) (*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.usernameIdx[username]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.users[id]
	return &cp, nil
}

// FindByParticipantID retrieves every user attached to a participant.
func (s *InMemoryUsers) FindByParticipantID(_ context.Context, participantID int64) ([]*models.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*models.User
	for _, u := range s.users {
		if u.ParticipantID == participantID {
			cp := *u
			out = append(out, &cp)
		}
	}
	return out, nil
}

// Update replaces a stored user.
func (s *InMemoryUsers) Update(_ context.Context, u *models.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[u.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *u
	s.users[u.ID] = &cp
	return nil
}
