package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

// SaveRefreshToken сохраняет новый refresh-токен в БД.
func (s *Storage) SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error {
	const op = "storage.postgres.SaveRefreshToken"

	query := `
        INSERT INTO refresh_tokens(token_hash, user_id, device, created_at, expires_at, last_used_at, revoked)
        VALUES ($1, $2, $3, $4, $5, $6, $7)
    `

	_, err := s.db.Exec(ctx, query,
		token.TokenHash,
		token.UserID,
		token.Device,
		token.CreatedAt,
		token.ExpiresAt,
		token.LastUsedAt,
		token.Revoked,
	)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
			return fmt.Errorf("%s: %w", op, storage.ErrAlreadyExists)
		}

		return wrapErr(op, err)
	}

	return nil
}

// RefreshTokenByHash находит refresh-токен по его хэшу.
func (s *Storage) RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error) {
	const op = "storage.postgres.RefreshTokenByHash"

	query := `
        SELECT token_hash, user_id, device, created_at, expires_at, last_used_at, revoked, revoked_at
        FROM refresh_tokens
        WHERE token_hash = $1
    `

	var token models.RefreshToken
	err := s.db.QueryRow(ctx, query, hash).Scan(
		&token.TokenHash,
		&token.UserID,
		&token.Device,
		&token.CreatedAt,
		&token.ExpiresAt,
		&token.LastUsedAt,
		&token.Revoked,
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

// TouchRefreshToken обновляет last_used_at. Отсутствие строки ошибкой
// не считается: вызов best-effort и идёт после успешного lookup.
func (s *Storage) TouchRefreshToken(ctx context.Context, hash string, usedAt time.Time) error {
	const op = "storage.postgres.TouchRefreshToken"

	query := `
        UPDATE refresh_tokens
        SET last_used_at = $2
        WHERE token_hash = $1
    `

	if _, err := s.db.Exec(ctx, query, hash, usedAt); err != nil {
		return wrapErr(op, err)
	}

	return nil
}

// RevokeRefreshToken пытается отозвать refresh-токен, если он ещё не был отозван.
// Возвращает:
//
//	(true, nil)  — токен был активен и успешно отозван сейчас;
//	(false, nil) — токен существует, но уже был отозван;
//	(false, ErrNotFound) — токен не найден.
func (s *Storage) RevokeRefreshToken(ctx context.Context, hash string, revokedAt time.Time) (bool, error) {
	const op = "storage.postgres.RevokeRefreshToken"

	const upd = `
		UPDATE refresh_tokens
		SET revoked = TRUE, revoked_at = $2
		WHERE token_hash = $1 AND revoked = FALSE
		RETURNING user_id
	`

	var userID int64
	err := s.db.QueryRow(ctx, upd, hash, revokedAt).Scan(&userID)
	if err == nil {
		return true, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, wrapErr(op, err)
	}

	const sel = `
		SELECT revoked
		FROM refresh_tokens
		WHERE token_hash = $1
	`

	var revoked bool
	err = s.db.QueryRow(ctx, sel, hash).Scan(&revoked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return false, wrapErr(op, err)
	}

	return false, nil
}

// RevokeAllForUser массово отзывает все активные токены пользователя.
// Токены, чья вставка закоммитилась до этого UPDATE, попадают под отзыв;
// созданные после — нет. Этого достаточно: процесс один, БД одна.
func (s *Storage) RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error) {
	const op = "storage.postgres.RevokeAllForUser"

	query := `
        UPDATE refresh_tokens
        SET revoked = TRUE, revoked_at = $2
        WHERE user_id = $1 AND revoked = FALSE
    `

	cmdTag, err := s.db.Exec(ctx, query, userID, revokedAt)
	if err != nil {
		return 0, wrapErr(op, err)
	}

	return cmdTag.RowsAffected(), nil
}

// DeleteExpiredRefreshTokens удаляет все просроченные токены.
func (s *Storage) DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error) {
	const op = "storage.postgres.DeleteExpiredRefreshTokens"

	query := `
        DELETE FROM refresh_tokens
        WHERE expires_at < $1
    `

	cmdTag, err := s.db.Exec(ctx, query, before)
	if err != nil {
		return 0, wrapErr(op, err)
	}

	return cmdTag.RowsAffected(), nil
}
