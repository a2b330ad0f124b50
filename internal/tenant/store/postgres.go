package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
	"dataspace/internal/tenant/models"
)

// Postgres persists tenants in PostgreSQL. Operations join the
// transaction carried by the context when one is present.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed tenant store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const tenantColumns = `id, external_id, name, description, metadata, status, deleted_at, created_at, updated_at`

// Create persists the tenant, relying on the unique name index for
// conflict detection.
func (s *Postgres) Create(ctx context.Context, t *models.Tenant) error {
	query := `
		INSERT INTO tenants (external_id, name, description, metadata, status, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id
	`
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		t.ExternalID,
		t.Name,
		t.Description,
		database.JSONMap(t.Metadata),
		string(t.Status),
		t.DeletedAt,
		t.CreatedAt,
		t.UpdatedAt,
	).Scan(&t.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("tenant name must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create tenant: %w", err)
	}
	return nil
}

// ExistsByName reports whether a tenant with the normalized name exists.
func (s *Postgres) ExistsByName(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM tenants WHERE name = $1)`, name,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("tenant exists by name: %w", err)
	}
	return exists, nil
}

// FindByName retrieves a tenant by its normalized name.
func (s *Postgres) FindByName(ctx context.Context, name string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE name = $1`
	return s.findOne(ctx, query, name)
}

// FindByExternalID retrieves a tenant by its external identifier.
func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.Tenant, error) {
	query := `SELECT ` + tenantColumns + ` FROM tenants WHERE external_id = $1`
	return s.findOne(ctx, query, externalID)
}

func (s *Postgres) findOne(ctx context.Context, query string, arg any) (*models.Tenant, error) {
	t, err := scanTenant(database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, arg))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find tenant: %w", err)
	}
	return t, nil
}

// Update replaces the mutable tenant fields.
func (s *Postgres) Update(ctx context.Context, t *models.Tenant) error {
	query := `
		UPDATE tenants
		SET description = $2, metadata = $3, status = $4, deleted_at = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := database.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		t.ID,
		t.Description,
		database.JSONMap(t.Metadata),
		string(t.Status),
		t.DeletedAt,
		t.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update tenant: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update tenant rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

// List returns tenants filtered by status and optional name substring,
// ordered by creation time, with the total count before paging.
func (s *Postgres) List(ctx context.Context, filter models.Filter) ([]*models.Tenant, int, error) {
	var conds []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		conds = append(conds, fmt.Sprintf("status = $%d", len(args)))
	} else {
		args = append(args, string(models.StatusDeleted))
		conds = append(conds, fmt.Sprintf("status <> $%d", len(args)))
	}
	if filter.Name != "" {
		args = append(args, "%"+strings.ToLower(filter.Name)+"%")
		conds = append(conds, fmt.Sprintf("name LIKE $%d", len(args)))
	}
	where := " WHERE " + strings.Join(conds, " AND ")

	exec := database.ExecutorFrom(ctx, s.db)
	var total int
	if err := exec.QueryRowContext(ctx, `SELECT COUNT(*) FROM tenants`+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count tenants: %w", err)
	}

	query := `SELECT ` + tenantColumns + ` FROM tenants` + where + ` ORDER BY created_at, id`
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
		return nil, 0, fmt.Errorf("list tenants: %w", err)
	}
	defer rows.Close()

	var tenants []*models.Tenant
	for rows.Next() {
		t, err := scanTenant(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan tenant: %w", err)
		}
		tenants = append(tenants, t)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate tenants: %w", err)
	}
	return tenants, total, nil
}

type row interface {
	Scan(dest ...any) error
}

func scanTenant(r row) (*models.Tenant, error) {
	var t models.Tenant
	var metadata database.JSONMap
	var status string
	var deletedAt sql.NullTime
	if err := r.Scan(&t.ID, &t.ExternalID, &t.Name, &t.Description, &metadata,
		&status, &deletedAt, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Metadata = map[string]any(metadata)
	t.Status = models.Status(status)
	if deletedAt.Valid {
		t.DeletedAt = &deletedAt.Time
	}
	return &t, nil
}
