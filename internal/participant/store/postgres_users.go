package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"dataspace/internal/participant/models"
	"dataspace/internal/platform/database"
	"dataspace/internal/sentinel"
)

// PostgresUsers persists participant users in PostgreSQL.
type PostgresUsers struct {
	db *sql.DB
}

// NewPostgresUsers constructs a PostgreSQL-backed participant user store.
func NewPostgresUsers(db *sql.DB) *PostgresUsers {
	return &PostgresUsers{db: db}
}

const userColumns = `id, external_id, participant_id, username, password_hash, metadata,
	status, deleted_at, created_at, updated_at`

// Create persists the user, relying on the unique username index for
// conflict detection.
func (s *PostgresUsers) Create(ctx context.Context, u *models.User) error {
	query := `
		INSERT INTO participant_users (external_id, participant_id, username, password_hash,
			metadata, status, deleted_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id
	`
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query,
		u.ExternalID,
		u.ParticipantID,
		u.Username,
		u.PasswordHash,
		database.JSONMap(u.Metadata),
		string(u.Status),
		u.DeletedAt,
		u.CreatedAt,
		u.UpdatedAt,
	).Scan(&u.ID)
	if err != nil {
		if database.IsUniqueViolation(err) {
			return fmt.Errorf("username must be unique: %w", sentinel.ErrAlreadyUsed)
		}
		return fmt.Errorf("create participant user: %w", err)
	}
	return nil
}

// ExistsByUsername reports whether a user with the username exists.
func (s *PostgresUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	var exists bool
	err := database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM participant_users WHERE username = $1)`, username,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("participant user exists by username: %w", err)
	}
	return exists, nil
}

// FindByUsername retrieves a user by username.
func (s *PostgresUsers) FindByUsername(ctx context.Context, username string) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM participant_users WHERE username = $1`
	u, err := scanUser(database.ExecutorFrom(ctx, s.db).QueryRowContext(ctx, query, username))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find participant user: %w", err)
	}
	return u, nil
}

// FindByParticipantID retrieves every user attached to a participant.
func (s *PostgresUsers) FindByParticipantID(ctx context.Context, participantID int64) ([]*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM participant_users WHERE participant_id = $1 ORDER BY created_at, id`
	rows, err := database.ExecutorFrom(ctx, s.db).QueryContext(ctx, query, participantID)
	if err != nil {
		return nil, fmt.Errorf("list participant users: %w", err)
	}
	defer rows.Close()

	var users []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scan participant user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate participant users: %w", err)
	}
	return users, nil
}

// Update replaces the mutable user fields.
func (s *PostgresUsers) Update(ctx context.Context, u *models.User) error {
	query := `
		UPDATE participant_users
		SET password_hash = $2, metadata = $3, status = $4, deleted_at = $5, updated_at = $6
		WHERE id = $1
	`
	res, err := database.ExecutorFrom(ctx, s.db).ExecContext(ctx, query,
		u.ID,
		u.PasswordHash,
		database.JSONMap(u.Metadata),
		string(u.Status),
		u.DeletedAt,
		u.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update participant user: %w", err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update participant user rows: %w", err)
	}
	if rows == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func scanUser(r row) (*models.User, error) {
	var u models.User
	var metadata database.JSONMap
	var status string
	var deletedAt sql.NullTime
	if err := r.Scan(&u.ID, &u.ExternalID, &u.ParticipantID, &u.Username, &u.PasswordHash,
		&metadata, &status, &deletedAt, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	u.Metadata = map[string]any(metadata)
	u.Status = models.UserStatus(status)
	if deletedAt.Valid {
		u.DeletedAt = &deletedAt.Time
	}
	return &u, nil
}
