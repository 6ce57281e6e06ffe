package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

// Узкий адаптер к таблице пользователей админ-панели: ядро сессий
// читает аккаунт и меняет хэш пароля, CRUD живёт снаружи.

// UserByID находит пользователя по ID.
func (s *Storage) UserByID(ctx context.Context, id int64) (*models.User, error) {
	const op = "storage.postgres.UserByID"

	query := `
        SELECT id, username, email, role, is_active, password_hash
        FROM users
        WHERE id = $1
    `

	return s.scanUser(ctx, op, query, id)
}

// UserByUsername находит пользователя по логину.
func (s *Storage) UserByUsername(ctx context.Context, username string) (*models.User, error) {
	const op = "storage.postgres.UserByUsername"

	query := `
        SELECT id, username, email, role, is_active, password_hash
        FROM users
        WHERE username = $1
    `

	return s.scanUser(ctx, op, query, username)
}

// UpdatePasswordHash сохраняет новый хэш пароля.
func (s *Storage) UpdatePasswordHash(ctx context.Context, id int64, hash string) error {
	const op = "storage.postgres.UpdatePasswordHash"

	query := `
        UPDATE users
        SET password_hash = $2, updated_at = now()
        WHERE id = $1
    `

	cmdTag, err := s.db.Exec(ctx, query, id, hash)
	if err != nil {
		return wrapErr(op, err)
	}

	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%s: %w", op, storage.ErrNotFound)
	}

	return nil
}

func (s *Storage) scanUser(ctx context.Context, op, query string, arg any) (*models.User, error) {
	var user models.User
	err := s.db.QueryRow(ctx, query, arg).Scan(
		&user.ID,
		&user.Username,
		&user.Email,
		&user.Role,
		&user.IsActive,
		&user.PasswordHash,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		return nil, wrapErr(op, err)
	}

	return &user, nil
}
