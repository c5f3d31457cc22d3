package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"go-invoice/internal/model"
)

// TokenRepository records issued refresh tokens by their jti so they can be
// rotated and revoked. Access tokens are never stored.
type TokenRepository struct {
	pool *pgxpool.Pool
}

func NewTokenRepository(pool *pgxpool.Pool) *TokenRepository {
	return &TokenRepository{pool: pool}
}

func (r *TokenRepository) Store(ctx context.Context, tokenID string, userID string, expiresAt time.Time) error {
	_, err := r.pool.Exec(ctx,
		`INSERT INTO refresh_tokens (token_id, user_id, created_at, expires_at)
		 VALUES ($1, $2, $3, $4)`,
		tokenID, userID, time.Now().UTC(), expiresAt)
	if err != nil {
		return fmt.Errorf("store refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) Consume(ctx context.Context, tokenID string) (string, error) {
	var userID string
	err := r.pool.QueryRow(ctx,
		`UPDATE refresh_tokens SET revoked_at = now()
		 WHERE token_id = $1 AND revoked_at IS NULL AND expires_at > now()
		 RETURNING user_id::text`, tokenID).Scan(&userID)

	if errors.Is(err, pgx.ErrNoRows) {
		return "", model.ErrTokenNotFound
	}
	if err != nil {
		return "", fmt.Errorf("consume refresh token: %w", err)
	}
	return userID, nil
}

func (r *TokenRepository) Revoke(ctx context.Context, tokenID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE token_id = $1 AND revoked_at IS NULL`, tokenID)
	if err != nil {
		return fmt.Errorf("revoke refresh token: %w", err)
	}
	return nil
}

func (r *TokenRepository) RevokeAllForUser(ctx context.Context, userID string) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE refresh_tokens SET revoked_at = now() WHERE user_id = $1 AND revoked_at IS NULL`, userID)
	if err != nil {
		return fmt.Errorf("revoke all refresh tokens: %w", err)
	}
	return nil
}

func (r *TokenRepository) CleanExpired(ctx context.Context) (int64, error) {
	tag, err := r.pool.Exec(ctx,
		`DELETE FROM refresh_tokens WHERE expires_at <= now() OR revoked_at < now() - interval '1 day'`)
	if err != nil {
		return 0, fmt.Errorf("clean expired tokens: %w", err)
	}
	return tag.RowsAffected(), nil
}
