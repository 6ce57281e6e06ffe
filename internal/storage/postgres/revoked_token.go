package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

// SaveRevokedToken заносит access-токен в чёрный список.
// Вставка идемпотентна: повторный отзыв того же токена — не ошибка.
func (s *Storage) SaveRevokedToken(ctx context.Context, token *models.RevokedToken) error {
	const op = "storage.postgres.SaveRevokedToken"

	query := `
        INSERT INTO revoked_tokens(token_hash, user_id, expires_at, revoked_at)
        VALUES ($1, $2, $3, $4)
        ON CONFLICT (token_hash) DO NOTHING
    `

	_, err := s.db.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.ExpiresAt,
		token.RevokedAt,
	)

	if err != nil {
		return wrapErr(op, err)
	}

	return nil
}

// RevokedTokenByHash находит запись чёрного списка по хэшу токена.
func (s *Storage) RevokedTokenByHash(ctx context.Context, hash string) (*models.RevokedToken, error) {
	const op = "storage.postgres.RevokedTokenByHash"

	query := `
        SELECT token_hash, user_id, expires_at, revoked_at
        FROM revoked_tokens
        WHERE token_hash = $1
    `

	var token models.RevokedToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.ExpiresAt,
		&token.RevokedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, wrapErr(op, err)
	}

	return &token, nil
}

// DeleteExpiredRevokedTokens удаляет записи, чей скопированный exp прошёл:
// такие токены кодек отклонит и без чёрного списка.
func (s *Storage) DeleteExpiredRevokedTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRevokedTokens"

	query := `
        DELETE FROM revoked_tokens
        WHERE expires_at < $1
    `

	cmdTag, err := s.db.Exec(ctx, query, before)
	if err != nil {
		return 0, wrapErr(op, err)
	}

	return cmdTag.RowsAffected(), nil
}
