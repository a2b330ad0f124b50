package store

import (
	"context"
	"sort"
	"sync"

	"dataspace/internal/operation/models"
	"dataspace/internal/sentinel"
)

// InMemory stores operation records in memory. Records are append-only;
// there is no update or delete path.
type InMemory struct {
	mu     sync.RWMutex
	nextID int64
	ops    []*models.Operation
}

// NewInMemory creates an in-memory operation store.
func NewInMemory() *InMemory {
	return &InMemory{}
}

// Append persists a new operation record.
func (s *InMemory) Append(_ context.Context, op *models.Operation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	op.ID = s.nextID
	cp := *op
	s.ops = append(s.ops, &cp)
	return nil
}

// ListByParticipant returns a participant's operation records, newest
// first, optionally filtered by event type, with the total count before
// paging.
func (s *InMemory) ListByParticipant(_ context.Context, participantID int64, eventType models.EventType, offset, limit int) ([]*models.Operation, int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var matched []*models.Operation
	for _, op := range s.ops {
		if op.ParticipantID != participantID {
			continue
		}
		if eventType != "" && op.EventType != eventType {
			continue
		}
		cp := *op
		matched = append(matched, &cp)
	}
	sort.SliceStable(matched, func(i, j int) bool {
		if matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].ID > matched[j].ID
		}
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	if offset >= total {
		return nil, total, nil
	}
	matched = matched[offset:]
	if limit > 0 && limit < len(matched) {
		matched = matched[:limit]
	}
	return matched, total, nil
}

// Latest returns the most recent operation record for a participant.
func (s *InMemory) Latest(ctx context.Context, participantID int64) (*models.Operation, error) {
	ops, _, err := s.ListByParticipant(ctx, participantID, "", 0, 1)
	if err != nil {
		return nil, err
	}
	if len(ops) == 0 {
		return nil, sentinel.ErrNotFound
	}
	return ops[0], nil
}
