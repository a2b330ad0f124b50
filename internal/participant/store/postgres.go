package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dataspace/internal/participant/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
)

// Postgres persists participants in PostgreSQL. Operations join the
// transaction carried by the context when one is present.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed participant store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const participantColumns = `id, external_id, tenant_id, tenant_name, name, company_name,
	description, metadata, did, host, state, created_at, updated_at`

// Create persists the participant, relying on the unique name index for
// conflict detection.
func (s *Postgres) Create(ctx context.Context, p *models.Participant) error {
	query := `
		INSERT INTO participants (external_id, tenant_id, tenant_name, name, company_name,
			description, metadata, did, host, state, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id
	`
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		p.ExternalID,
		p.TenantID,
		p.TenantName,
		p.Name,
		p.CompanyName,
		p.Description,
		database.JSONMap(p.Metadata),
		p.DID,
		p.Host,
		string(p.State),
		p.CreatedAt,
		p.UpdatedAt,
	).Scan(&p.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("participant name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create participant: %w", err)
	}
	return nil
}

// ExistsByName reports whether a participant with the normalized name
// exists.
func (s *Postgres) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participants WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("participant exists by name: %w", err)
	}
	return exists, nil
}

// FindByExternalID retrieves a participant by its external identifier.
func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE external_id = $1`
	return s.findOne(ctx, query, externalID)
}

// FindByID retrieves a participant by its surrogate identifier.
func (s *Postgres) FindByID(ctx context.Context, id int64) (*models.Participant, error) {
	query := `SELECT ` + participantColumns + ` FROM participants WHERE id = $1`
	return s.findOne(ctx, query, id)
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.Participant, error) {
	p, err := scanParticipant(database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find participant: %w", err)
	}
	return p, nil
}

// Update replaces the mutable participant fields.
func (s *Postgres) Update(ctx context.Context, p *models.Participant) error {
	query := `
		UPDATE participants
		SET company_name = $2, description = $3, metadata = $4, did = $5, host = $6,
			state = $7, updated_at = $8
		WHERE id = $1
	`
	res, err := database.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		p.ID,
		p.CompanyName,
		p.Description,
		database.JSONMap(p.Metadata),
		p.DID,
		p.Host,
		string(p.State),
		p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update participant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns participants matching the filter ordered by creation time,
// with the total count before paging.
func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]*models.Participant, int, error) {
	var conds []string
	var args []any
	if filter.TenantName != "" {
		args = append(args, filter.TenantName)
		conds = append(conds, fmt.Sprintf("tenant_name = $%d", len(args)))
	}
	if filter.State != "" {
		args = append(args, string(filter.State))
		conds = append(conds, fmt.Sprintf("state = $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
		conds = append(conds, fmt.Sprintf("name LIKE $%d", len(args)))
	}
	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	exec := database.ExecutorFrom(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM participants`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count participants: %w", err)
	}

	query := `SELECT ` + participantColumns + ` FROM participants` + where + ` ORDER BY created_at, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := exec.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list participants: %w", err)
	}
	defer rows.Close()

	var participants []*models.Participant
	for rows.Next() {
		p, err := scanParticipant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan participant: %w", err)
		}
		participants = append(participants, p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate participants: %w", err)
	}
	return participants, total, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanParticipant(r row) (*models.Participant, error) {
	var p models.Participant
	var metadata database.JSONMap
	var state string
	if err := r.Scan(&p.ID, &p.ExternalID, &p.TenantID, &p.TenantName, &p.Name, &p.CompanyName,
		&p.Description, &metadata, &p.DID, &p.Host, &state, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	p.Metadata = map[string]any(metadata)
	p.State = models.State(state)
	return &p, nil
}
