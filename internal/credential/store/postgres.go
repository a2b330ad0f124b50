package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dataspace/internal/credential/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
)

// Postgres persists credentials in PostgreSQL.
type Postgres struct {
	db *sql.DB
}

// NewPostgres constructs a PostgreSQL-backed credential store.
func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

const credentialColumns = `id, external_id, request_id, issuer_did, holder_pid, participant_id,
	credential_type, format, status, issued_at, expires_at, credential_hash, created_at, updated_at`

// CreateBatch persists a batch of credentials. When the context carries a
// transaction the whole batch commits or rolls back together.
func (s *Postgres) CreateBatch(ctx context.Context, creds []*models.Credential) error {
	query := `
		INSERT INTO credentials (external_id, request_id, issuer_did, holder_pid, participant_id,
			credential_type, format, status, issued_at, expires_at, credential_hash, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		RETURNING id
	`
	exec := database.ExecutorFrom(ctx, s.db)
	for _, c := range creds {
		err := exec.QueryRowContext(ctx, query,
			c.ExternalID,
			c.RequestID,
			c.IssuerDID,
			c.HolderPID,
			c.ParticipantID,
			c.CredentialType,
			c.Format,
			string(c.Status),
			c.IssuedAt,
			c.ExpiresAt,
			c.Hash,
			c.CreatedAt,
			c.UpdatedAt,
		).Scan(&c.ID)
		if err != nil {
			return fmt.Errorf("create credential: %w", err)
		}
	}
	return nil
}

// FindByExternalID retrieves a credential by its external identifier.
func (s *Postgres) FindByExternalID(ctx context.Context, externalID string) (*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE external_id = $1`
	c, err := scanCredential(database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find credential: %w", err)
	}
	return c, nil
}

// ListByParticipant returns a participant's credentials ordered by creation
// time, optionally filtered by status.
func (s *Postgres) ListByParticipant(ctx context.Context, participantID int64, status models.Status) ([]*models.Credential, error) {
	query := `SELECT ` + credentialColumns + ` FROM credentials WHERE participant_id = $1`
	args := []any{participantID}
	if status != "" {
		args = append(args, string(status))
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	query += ` ORDER BY created_at, id`

	rows, err := database.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list credentials: %w", err)
	}
	defer rows.Close()

	var creds []*models.Credential
	for rows.Next() {
		c, err := scanCredential(rows)
		if err != nil {
			return nil, fmt.Errorf("scan credential: %w", err)
		}
		creds = append(creds, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credentials: %w", err)
	}
	return creds, nil
}

// Update replaces the mutable credential fields.
func (s *Postgres) Update(ctx context.Context, c *models.Credential) error {
	query := `
		UPDATE credentials
		SET status = $2, issued_at = $3, expires_at = $4, credential_hash = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := database.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		c.ID,
		string(c.Status),
		c.IssuedAt,
		c.ExpiresAt,
		c.Hash,
		c.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update credential: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update credential rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

type row interface {
	Scan(dest ...any) error
}

func scanCredential(r row) (*models.Credential, error) {
	var c models.Credential
	var status string
	var issuedAt, expiresAt sql.NullTime
	if err := r.Scan(&c.ID, &c.ExternalID, &c.RequestID, &c.IssuerDID, &c.HolderPID, &c.ParticipantID,
		&c.CredentialType, &c.Format, &status, &issuedAt, &expiresAt, &c.Hash,
		&c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	c.Status = models.Status(status)
	if issuedAt.Valid {
		c.IssuedAt = &issuedAt.Time
	}
	if expiresAt.Valid {
		c.ExpiresAt = &expiresAt.Time
	}
	return &c, nil
}
