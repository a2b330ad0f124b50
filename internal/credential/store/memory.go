package store

import (
	"context"
	"sort"
	"sync"

	"dataspace/internal/credential/models"
	"dataspace/internal/sentinel"
)

// InMemory stores credentials in memory.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	creds  map[int64]*models.Credential
	extIdx map[string]int64
}

// NewInMemory creates an in-memory credential store.
func NewInMemory() *InMemory {
	return &InMemory{
		creds:  make(map[int64]*models.Credential),
		extIdx: make(map[string]int64),
	}
}

// CreateBatch persists a batch of credentials atomically.
func (s *InMemory) CreateBatch(_ context.Context, creds []*models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range creds {
		s.nextID++
		c.ID = s.nextID
		cp := *c
		s.creds[c.ID] = &cp
		s.extIdx[c.ExternalID] = c.ID
	}
	return nil
}

// FindByExternalID retrieves a credential by its external identifier.
func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.extIdx[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.creds[id]
	return &cp, nil
}

// ListByParticipant returns a participant's credentials ordered by creation
// time, optionally filtered by status.
func (s *InMemory) ListByParticipant(_ context.Context, participantID int64, status models.Status) ([]*models.Credential, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Credential
	for _, c := range s.creds {
		if c.ParticipantID != participantID {
			continue
		}
		if status != "" && c.Status != status {
			continue
		}
		cp := *c
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID < matched[j].ID
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})
	return matched, nil
}

// Update replaces a stored credential.
func (s *InMemory) Update(_ context.Context, c *models.Credential) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.creds[c.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *c
	s.creds[c.ID] = &cp
	return nil
}
