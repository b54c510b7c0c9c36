package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/sonht113/recipebook/internal/apperrors"
	"github.com/sonht113/recipebook/internal/models"
)

type RefreshTokenRepo struct {
	DB DBTX
}

const saveToken = `-- name: SaveRefreshToken
INSERT INTO refresh_tokens (token, user_id, created_at, expires_at)
VALUES ($1, $2, $3, $4)
RETURNING token, user_id, created_at, expires_at
`

func (r *RefreshTokenRepo) Save(ctx context.Context, token models.RefreshToken) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, saveToken, token.Token, token.UserID, token.CreatedAt, token.ExpiresAt)
	saved, err := pgx.CollectOneRow(rows, rowToRefreshToken)
	if err != nil {
		return saved, fmt.Errorf("db error: %w", err)
	}
	return saved, nil
}

const takeToken = `-- name: TakeRefreshToken
DELETE FROM refresh_tokens
WHERE token = $1
RETURNING token, user_id, created_at, expires_at
`

// Take deletes the token and returns the deleted row.
// On concurrent takes of the same token exactly one caller gets the row,
// the rest get apperrors.ErrRefreshTokenNotFound.
func (r *RefreshTokenRepo) Take(ctx context.Context, tokenString string) (models.RefreshToken, error) {
	rows, _ := r.DB.Query(ctx, takeToken, tokenString)
	token, err := pgx.CollectOneRow(rows, rowToRefreshToken)

	switch {
	case err == nil:
		return token, nil
	case errors.Is(err, pgx.ErrNoRows):
		return token, fmt.Errorf("repo error: %w", apperrors.ErrRefreshTokenNotFound)
	default:
		return token, fmt.Errorf("db error: %w", err)
	}
}

const deleteToken = `-- name: DeleteRefreshToken
DELETE FROM refresh_tokens
WHERE token = $1
`

// Delete is idempotent: deleting a missing token is not an error
func (r *RefreshTokenRepo) Delete(ctx context.Context, tokenString string) error {
	_, err := r.DB.Exec(ctx, deleteToken, tokenString)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteUserTokens = `-- name: DeleteUserRefreshTokens
DELETE FROM refresh_tokens
WHERE user_id = $1
`

func (r *RefreshTokenRepo) DeleteForUser(ctx context.Context, userID uuid.UUID) error {
	_, err := r.DB.Exec(ctx, deleteUserTokens, userID)
	if err != nil {
		return fmt.Errorf("db error: %w", err)
	}
	return nil
}

const deleteExpiredTokens = `-- name: DeleteExpiredRefreshTokens
DELETE FROM refresh_tokens
WHERE expires_at < $1
`

func (r *RefreshTokenRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	tag, err := r.DB.Exec(ctx, deleteExpiredTokens, before)
	if err != nil {
		return 0, fmt.Errorf("db error: %w", err)
	}
	return tag.RowsAffected(), nil
}

func rowToRefreshToken(row pgx.CollectableRow) (models.RefreshToken, error) {
	var t models.RefreshToken
	err := row.Scan(&t.Token, &t.UserID, &t.CreatedAt, &t.ExpiresAt)
	return t, err
}
