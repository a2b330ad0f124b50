package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dataspace/internal/participant/models"
	"dataspace/internal/sentinel"
)

// InMemory stores participants in memory for tests and the demo
// environment.
type InMemory struct {
	mu           sync.RWMutex
	nextID       int64
	participants map[int64]*models.Participant
	nameIdx      map[string]int64
	extIdx       map[string]int64
}

// NewInMemory creates an in-memory participant store.
func NewInMemory() *InMemory {
	return &InMemory{
		participants: make(map[int64]*models.Participant),
		nameIdx:      make(map[string]int64),
		extIdx:       make(map[string]int64),
	}
}

// Create atomically persists the participant if the normalized name is not
// already taken.
func (s *InMemory) Create(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nameIdx[p.Name]; exists {
		return fmt.Errorf("participant name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.nextID++
	p.ID = s.nextID
	cp := *p
	s.participants[p.ID] = &cp
	s.nameIdx[p.Name] = p.ID
	s.extIdx[p.ExternalID] = p.ID
	return nil
}

// ExistsByName reports whether a participant with the normalized name
// exists.
func (s *InMemory) ExistsByName(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nameIdx[name]
	return ok, nil
}

// FindByExternalID retrieves a participant by its external identifier.
func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.extIdx[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.participants[id]
	return &cp, nil
}

// FindByID retrieves a participant by its surrogate identifier.
func (s *InMemory) FindByID(_ context.Context, id int64) (*models.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.participants[id]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

// Update replaces a stored participant.
func (s *InMemory) Update(_ context.Context, p *models.Participant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.participants[p.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *p
	s.participants[p.ID] = &cp
	return nil
}

// List returns participants matching the filter ordered by creation time,
// with the total count before paging.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Participant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Participant
	for _, p := range s.participants {
		if filter.TenantName != "" && p.TenantName != filter.TenantName {
			continue
		}
		if filter.State != "" && p.State != filter.State {
			continue
		}
		if filter.Name != "" && !strings.Contains(p.Name, strings.ToLower(filter.Name)) {
			continue
		}
		cp := *p
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	if filter.Offset >= total {
		return nil, total, nil
	}
	matched = matched[filter.Offset:]
	if filter.Limit > 0 && filter.Limit < len(matched) {
		matched = matched[:filter.Limit]
	}
	return matched, total, nil
}
