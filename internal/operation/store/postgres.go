package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dataspace/internal/operation/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
)

// Postgres persists operation records in PostgreSQL. Records are
// append-only; there is no update or delete path.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed operation store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const operationColumns = `id, external_id, participant_id, event_type, event_payload, created_at, updated_at`

// Append persists a new operation record. It joins the transaction
// carried by the context so an entry commits with the state change it
// records.
func (s *Postgres) Append(ctx context.Context, op *models.Operation) error {
	query := `
		INSERT INTO provisioning_operations (external_id, participant_id, event_type, event_payload, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id
	`
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		op.ExternalID,
		op.ParticipantID,
		string(op.EventType),
		database.JSONMap(op.EventPayload),
		op.CreatedAt,
		op.UpdatedAt,
	).Scan(&op.ID)
	if err != nil {
		return fmt.Errorf("append operation: %w", err)
	}
	return nil
}

// ListByParticipant returns a participant's operation records, newest
// first, optionally filtered by event type, with the total count before
// paging.
func (s *Postgres) ListByParticipant(ctx context.Context, participantID int64, eventType models.EventType, offset, limit int) ([]*models.Operation, int, error) {
	where := ` WHERE participant_id = $1`
	args := []any{participantID}
	if eventType != "" {
		args = append(args, string(eventType))
		where += fmt.Sprintf(" AND event_type = $%d", len(args))
	}

	exec := database.ExecutorFrom(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM provisioning_operations`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count operations: %w", err)
	}

	query := `SELECT ` + operationColumns + ` FROM provisioning_operations` + where + ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		args = append(args, limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if offset > 0 {
		args = append(args, offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list operations: %w", err)
	}
	defer rows.Close()

	var ops []*models.Operation
	for rows.Next() {
		op, err := scanOperation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate operations: %w", err)
	}
	return ops, total, nil
}

// Latest returns the most recent operation record for a participant.
func (s *Postgres) Latest(ctx context.Context, participantID int64) (*models.Operation, error) {
	query := `SELECT ` + operationColumns + `
		FROM provisioning_operations
		WHERE participant_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT 1`
	op, err := scanOperation(database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, participantID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("latest operation: %w", err)
	}
	return op, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanOperation(r row) (*models.Operation, error) {
	var op models.Operation
	var payload database.JSONMap
	var eventType string
	if err := r.Scan(&op.ID, &op.ExternalID, &op.ParticipantID, &eventType, &payload,
		&op.CreatedAt, &op.UpdatedAt); err != nil {
		return nil, err
	}
	op.EventType = models.EventType(eventType)
	op.EventPayload = map[string]any(payload)
	return &op, nil
}
