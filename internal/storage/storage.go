// storage задаёт контракт работы с долговременным хранилищем.
//
// Хранилище — единственный источник истины для refresh-токенов и
// чёрного списка; in-memory индексы (internal/cache) — производные и
// восстанавливаются read-through'ом. Реализация в ./postgres.
package storage

//go:generate mockgen -source=storage.go -destination=../../mocks/mock_storage.go -package=mocks

import (
	"context"
	"errors"
	"time"

	"github.com/pribylovaa/go-session-core/internal/models"
)

var (
	// ErrNotFound — запись не найдена (пользователь/токен).
	ErrNotFound = errors.New("not found")

	// ErrAlreadyExists — нарушение уникальности (хэш токена).
	ErrAlreadyExists = errors.New("already exists")

	// ErrUnavailable — БД недоступна или соединение оборвано.
	// На путях записи ошибка поднимается наверх; на пути проверки
	// отзыва трактуется как deny (fail-closed, см. internal/store).
	ErrUnavailable = errors.New("storage unavailable")
)

// RefreshTokenStorage выполняет операции над refresh-токенами.
type RefreshTokenStorage interface {
	// SaveRefreshToken сохраняет новый refresh-токен.
	SaveRefreshToken(ctx context.Context, token *models.RefreshToken) error
	// RefreshTokenByHash находит refresh-токен по его хэшу.
	RefreshTokenByHash(ctx context.Context, hash string) (*models.RefreshToken, error)
	// TouchRefreshToken обновляет last_used_at.
	TouchRefreshToken(ctx context.Context, hash string, usedAt time.Time) error
	// RevokeRefreshToken отзывает токен, если тот ещё активен.
	// (true, nil) — отозван сейчас; (false, nil) — уже был отозван;
	// (false, ErrNotFound) — токен неизвестен.
	RevokeRefreshToken(ctx context.Context, hash string, revokedAt time.Time) (bool, error)
	// RevokeAllForUser массово отзывает активные токены пользователя,
	// возвращает число затронутых строк.
	RevokeAllForUser(ctx context.Context, userID int64, revokedAt time.Time) (int64, error)
	// DeleteExpiredRefreshTokens удаляет строки с expires_at < before.
	DeleteExpiredRefreshTokens(ctx context.Context, before time.Time) (int64, error)
}

// RevokedTokenStorage выполняет операции над чёрным списком access-токенов.
type RevokedTokenStorage interface {
	// SaveRevokedToken — идемпотентная вставка (повтор того же хэша безвреден).
	SaveRevokedToken(ctx context.Context, token *models.RevokedToken) error
	// RevokedTokenByHash находит запись чёрного списка по хэшу.
	RevokedTokenByHash(ctx context.Context, hash string) (*models.RevokedToken, error)
	// DeleteExpiredRevokedTokens удаляет строки с expires_at < before.
	DeleteExpiredRevokedTokens(ctx context.Context, before time.Time) (int64, error)
}

// UserStorage — узкий адаптер к внешнему CRUD-хранилищу пользователей.
// Ядро читает аккаунт при ротации и меняет только хэш пароля.
type UserStorage interface {
	// UserByID находит пользователя по ID.
	UserByID(ctx context.Context, id int64) (*models.User, error)
	// UserByUsername находит пользователя по логину.
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	// UpdatePasswordHash сохраняет новый хэш пароля.
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// Storage задает контракт работы с БД.
type Storage interface {
	RefreshTokenStorage
	RevokedTokenStorage
	UserStorage
	Close()
}
