package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/lib/pq"
	"github.com/videotube/accounts/types"
)

const uniqueViolation = "23505"

// PostgresStore handles persistence for users, sessions and subscriptions on Postgres.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore constructs a store on a migrated database.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

const selectIdentity = `
	SELECT id, username, email, full_name, avatar, cover_image, watch_history,
		password_hash, refresh_token, created_at, updated_at
	FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanIdentity(row rowScanner) (types.Identity, error) {
	var (
		identity types.Identity
		refresh  sql.NullString
		history  pq.StringArray
	)
	err := row.Scan(
		&identity.ID,
		&identity.Username,
		&identity.Email,
		&identity.FullName,
		&identity.Avatar,
		&identity.CoverImage,
		&history,
		&identity.PasswordHash,
		&refresh,
		&identity.CreatedAt,
		&identity.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Identity{}, ErrNotFound
		}
		return types.Identity{}, err
	}
	identity.WatchHistory = []string(history)
	if identity.WatchHistory == nil {
		identity.WatchHistory = []string{}
	}
	if refresh.Valid {
		identity.RefreshToken = &refresh.String
	}
	return identity, nil
}

func (r *PostgresStore) GetByID(ctx context.Context, id string) (types.Identity, error) {
	return scanIdentity(r.db.QueryRowContext(ctx, selectIdentity+` WHERE id = $1`, id))
}

func (r *PostgresStore) GetByUsernameOrEmail(ctx context.Context, username, email string) (types.Identity, error) {
	username, email = normalize(username), normalize(email)
	if username == "" && email == "" {
		return types.Identity{}, ErrNotFound
	}
	const where = `
	WHERE ($1 <> '' AND username = $1) OR ($2 <> '' AND email = $2)
	LIMIT 1`
	return scanIdentity(r.db.QueryRowContext(ctx, selectIdentity+where, username, email))
}

func (r *PostgresStore) Create(ctx context.Context, identity types.Identity) (types.Identity, error) {
	now := time.Now().UTC()
	identity.ID = newID()
	identity.CreatedAt = now
	identity.UpdatedAt = now
	if identity.WatchHistory == nil {
		identity.WatchHistory = []string{}
	}

	const query = `
		INSERT INTO users (id, username, email, full_name, avatar, cover_image, watch_history,
			password_hash, refresh_token, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := r.db.ExecContext(
		ctx,
		query,
		identity.ID,
		identity.Username,
		identity.Email,
		identity.FullName,
		identity.Avatar,
		identity.CoverImage,
		pq.Array(identity.WatchHistory),
		identity.PasswordHash,
		nullString(identity.RefreshToken),
		identity.CreatedAt,
		identity.UpdatedAt,
	)
	if err != nil {
		return types.Identity{}, translate(err)
	}
	return identity, nil
}

func (r *PostgresStore) UpdatePassword(ctx context.Context, id, passwordHash string) error {
	const query = `UPDATE users SET password_hash = $1, updated_at = $2 WHERE id = $3`
	return r.exec(ctx, query, passwordHash, time.Now().UTC(), id)
}

func (r *PostgresStore) UpdateDetails(ctx context.Context, id, fullName, email string) (types.Identity, error) {
	const query = `
		UPDATE users
		SET full_name = $1,
			email = $2,
			updated_at = $3
		WHERE id = $4`
	if err := r.exec(ctx, query, fullName, email, time.Now().UTC(), id); err != nil {
		return types.Identity{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresStore) UpdateAvatar(ctx context.Context, id, url string) (types.Identity, error) {
	const query = `UPDATE users SET avatar = $1, updated_at = $2 WHERE id = $3`
	if err := r.exec(ctx, query, url, time.Now().UTC(), id); err != nil {
		return types.Identity{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresStore) UpdateCoverImage(ctx context.Context, id, url string) (types.Identity, error) {
	const query = `UPDATE users SET cover_image = $1, updated_at = $2 WHERE id = $3`
	if err := r.exec(ctx, query, url, time.Now().UTC(), id); err != nil {
		return types.Identity{}, err
	}
	return r.GetByID(ctx, id)
}

func (r *PostgresStore) GetRefreshToken(ctx context.Context, id string) (*string, error) {
	var refresh sql.NullString
	err := r.db.QueryRowContext(ctx, `SELECT refresh_token FROM users WHERE id = $1`, id).Scan(&refresh)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if !refresh.Valid {
		return nil, nil
	}
	return &refresh.String, nil
}

func (r *PostgresStore) SetRefreshToken(ctx context.Context, id string, token *string) error {
	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2`
	return r.exec(ctx, query, nullString(token), id)
}

// SwapRefreshToken is a single conditional UPDATE; the row lock serializes concurrent swaps.
func (r *PostgresStore) SwapRefreshToken(ctx context.Context, id, expected, next string) (bool, error) {
	const query = `UPDATE users SET refresh_token = $1 WHERE id = $2 AND refresh_token = $3`
	result, err := r.db.ExecContext(ctx, query, next, id, expected)
	if err != nil {
		return false, err
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, err
	}
	return affected == 1, nil
}

func (r *PostgresStore) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return translate(err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func translate(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == uniqueViolation {
		return ErrConflict
	}
	return err
}

func nullString(s *string) sql.NullString {
	if s == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: *s, Valid: true}
}
