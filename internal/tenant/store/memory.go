package store

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"

	"dataspace/internal/sentinel"
	"dataspace/internal/tenant/models"
)

// InMemory stores tenants in memory for tests and the demo environment.
type InMemory struct {
	mu      sync.RWMutex
	nextID  int64
	tenants map[int64]*models.Tenant
	nameIdx map[string]int64
	extIdx  map[string]int64
}

// NewInMemory creates an in-memory tenant store.
func NewInMemory() *InMemory {
	return &InMemory{
		tenants: make(map[int64]*models.Tenant),
		nameIdx: make(map[string]int64),
		extIdx:  make(map[string]int64),
	}
}

// Create atomically persists the tenant if the name is not already taken.
func (s *InMemory) Create(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.nameIdx[t.Name]; exists {
		return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
	}
	s.nextID++
	t.ID = s.nextID
	cp := *t
	s.tenants[t.ID] = &cp
	s.nameIdx[t.Name] = t.ID
	s.extIdx[t.ExternalID] = t.ID
	return nil
}

// ExistsByName reports whether a tenant with the normalized name exists.
func (s *InMemory) ExistsByName(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.nameIdx[name]
	return ok, nil
}

// FindByName retrieves a tenant by its normalized name.
func (s *InMemory) FindByName(_ context.Context, name string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.nameIdx[name]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.tenants[id]
	return &cp, nil
}

// FindByExternalID retrieves a tenant by its external identifier.
func (s *InMemory) FindByExternalID(_ context.Context, externalID string) (*models.Tenant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.extIdx[externalID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	cp := *s.tenants[id]
	return &cp, nil
}

// Update replaces a stored tenant.
func (s *InMemory) Update(_ context.Context, t *models.Tenant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.tenants[t.ID]; !ok {
		return sentinel.ErrNotFound
	}
	cp := *t
	s.tenants[t.ID] = &cp
	return nil
}

// List returns tenants filtered by status and optional name substring,
// ordered by creation time, with the total count before paging.
func (s *InMemory) List(_ context.Context, filter models.Filter) ([]*models.Tenant, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Tenant
	for _, t := range s.tenants {
		if filter.Status != "" && t.Status != filter.Status {
			continue
		}
		if filter.Status == "" && t.Deleted() {
			continue
		}
		if filter.Name != "" && !strings.Contains(t.Name, strings.ToLower(filter.Name)) {
			continue
		}
		cp := *t
		matched = append(matched, &cp)
	}
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := len(matched)
	return page(matched, filter.Offset, filter.Limit), total, nil
}

func page(items []*models.Tenant, offset, limit int) []*models.Tenant {
	if offset >= len(items) {
		return nil
	}
	items = items[offset:]
	if limit > 0 && limit < len(items) {
		items = items[:limit]
	}
	return items
}
