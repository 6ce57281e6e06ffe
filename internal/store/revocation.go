package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-session-core/internal/cache"
	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
	"github.com/pribylovaa/go-session-core/internal/pkg/redact"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

// RevocationStore — чёрный список access-токенов.
//
// Contains стоит на горячем пути каждого аутентифицированного запроса,
// поэтому порядок проверки: память → Redis-зеркало (если есть) → БД.
// Единственная операция ядра, где ложный negative недопустим: сбой БД
// поднимается ошибкой, и вызывающий обязан трактовать её как deny.
type RevocationStore struct {
	db     storage.RevokedTokenStorage
	set    *cache.RevokedSet
	mirror cache.RevocationMirror // nil, если зеркало не сконфигурировано
}

// NewRevocationStore создаёт store с пустым множеством.
func NewRevocationStore(db storage.RevokedTokenStorage) *RevocationStore {
	return &RevocationStore{
		db:  db,
		set: cache.NewRevokedSet(),
	}
}

// SetMirror подключает Redis-зеркало (опционально).
func (s *RevocationStore) SetMirror(m cache.RevocationMirror) {
	s.mirror = m
}

// Add заносит токен в чёрный список до expiresAt (exp самого токена).
// Durable-вставка идёт первой; память и зеркало обновляются после.
// Сбой зеркала не фатален — это кэш, истина уже в БД.
func (s *RevocationStore) Add(ctx context.Context, plain string, userID int64, expiresAt time.Time) error {
	const op = "store.revocation.Add"

	hash := HashToken(plain)
	now := time.Now().UTC()

	entry := &models.RevokedToken{
		TokenHash: hash,
		UserID:    userID,
		ExpiresAt: expiresAt,
		RevokedAt: now,
	}

	if err := s.db.SaveRevokedToken(ctx, entry); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	s.set.Add(hash, expiresAt)

	if s.mirror != nil {
		ttl := int64(expiresAt.Sub(now).Seconds())
		if err := s.mirror.Add(ctx, hash, ttl); err != nil {
			log.WithOp(ctx, op).Warn("revocation_mirror_add_failed",
				slog.String("hash", redact.Hash(hash)),
				slog.String("err", err.Error()),
			)
		}
	}

	return nil
}

// Contains проверяет, отозван ли токен.
//
// Возврат (false, err) означает "неизвестно": БД недоступна, быстрые
// уровни ответа не дали. Вызывающий обязан отказать в доступе —
// трактовать неопределённость как "не отозван" нельзя.
func (s *RevocationStore) Contains(ctx context.Context, plain string) (bool, error) {
	const op = "store.revocation.Contains"

	hash := HashToken(plain)
	now := time.Now().UTC()

	if s.set.Contains(hash, now) {
		return true, nil
	}

	if s.mirror != nil {
		found, err := s.mirror.Contains(ctx, hash)
		if err != nil {
			// Зеркало — ускоритель, не источник истины: идём в БД.
			log.WithOp(ctx, op).Warn("revocation_mirror_lookup_failed",
				slog.String("err", err.Error()),
			)
		} else if found {
			s.set.Add(hash, now.Add(time.Minute))
			return true, nil
		}
	}

	entry, err := s.db.RevokedTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	// Read-through: прогреваем память для последующих запросов.
	s.set.Add(hash, entry.ExpiresAt)

	return true, nil
}

// DeleteExpired удаляет из БД записи, чей скопированный exp прошёл.
func (s *RevocationStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const op = "store.revocation.DeleteExpired"

	count, err := s.db.DeleteExpiredRevokedTokens(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// CachedLen — размер in-memory множества (для тестов и метрик).
func (s *RevocationStore) CachedLen() int { return s.set.Len() }
