package store

import (
	"context"
	"crypto/rand"
	"encoding/base64"
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

// ErrRefreshCollision — исчерпаны попытки сгенерировать уникальный
// refresh-токен (крайне редкие коллизии хэша при вставке).
var ErrRefreshCollision = errors.New("refresh token collision")

// RefreshStore — реестр refresh-токенов: durable-запись в storage,
// производный индекс в памяти. Порядок строгий: сначала БД, потом кэш —
// падение между ними безопасно (кэш догонится read-through'ом), обратный
// порядок дал бы кэшу запись, которой нет в источнике истины.
type RefreshStore struct {
	db  storage.RefreshTokenStorage
	idx *cache.RefreshIndex
	ttl time.Duration
}

// NewRefreshStore создаёт store с пустым индексом.
// ttl — срок жизни выпускаемых токенов, приходит из конфигурации.
func NewRefreshStore(db storage.RefreshTokenStorage, ttl time.Duration) *RefreshStore {
	return &RefreshStore{
		db:  db,
		idx: cache.NewRefreshIndex(),
		ttl: ttl,
	}
}

// Create генерирует криптослучайный токен (256 бит), сохраняет его хэш
// в БД и лишь затем индексирует. Возвращает plaintext — единственный
// момент, когда он существует на сервере.
func (s *RefreshStore) Create(ctx context.Context, userID int64, device string) (string, *models.RefreshToken, error) {
	const (
		op          = "store.refresh.Create"
		maxAttempts = 5
	)

	lg := log.WithOp(ctx, op)

	for attempt := 0; attempt < maxAttempts; attempt++ {
		b := make([]byte, 32)
		if _, err := rand.Read(b); err != nil {
			lg.Error("refresh_rand_failed",
				slog.String("err", err.Error()),
			)
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}
		plain := base64.RawURLEncoding.EncodeToString(b)

		// Снимок поколения до durable-записи: если между коммитом вставки
		// и индексацией произойдёт массовый отзыв, PutFresh откажется
		// класть доотзывную копию, и ByToken перечитает строку из БД.
		gen := s.idx.Gen()

		now := time.Now().UTC()
		token := &models.RefreshToken{
			TokenHash:  HashToken(plain),
			UserID:     userID,
			Device:     device,
			CreatedAt:  now,
			ExpiresAt:  now.Add(s.ttl),
			LastUsedAt: now,
			Revoked:    false,
		}

		if err := s.db.SaveRefreshToken(ctx, token); err != nil {
			if errors.Is(err, storage.ErrAlreadyExists) {
				// Редкая коллизия — пробуем сгенерировать заново.
				continue
			}

			lg.Error("save_refresh_token_failed",
				slog.String("err", err.Error()),
			)
			return "", nil, fmt.Errorf("%s: %w", op, err)
		}

		s.idx.PutFresh(*token, gen)

		return plain, token, nil
	}

	lg.Error("refresh_collision_exceeded")

	return "", nil, fmt.Errorf("%s: %w", op, ErrRefreshCollision)
}

// ByToken ищет токен по предъявленному значению: сначала индекс, при
// промахе — БД с заполнением индекса. Так рестарт процесса не даёт
// cold-start-штрафа, пропорционального общему числу токенов.
func (s *RefreshStore) ByToken(ctx context.Context, plain string) (*models.RefreshToken, error) {
	const op = "store.refresh.ByToken"

	hash := HashToken(plain)
	now := time.Now().UTC()

	if cached, ok := s.idx.Get(hash); ok {
		if cached.Expired(now) {
			// Запись бесполезна — убираем из индекса, но решение об
			// ошибке принимает вызывающий по данным источника истины.
			s.idx.Delete(hash)
		} else {
			return &cached, nil
		}
	}

	gen := s.idx.Gen()

	token, err := s.db.RefreshTokenByHash(ctx, hash)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, storage.ErrNotFound)
		}

		log.WithOp(ctx, op).Error("refresh_lookup_failed",
			slog.String("hash", redact.Hash(hash)),
			slog.String("err", err.Error()),
		)
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !token.Expired(now) {
		s.idx.PutFresh(*token, gen)
	}

	return token, nil
}

// TouchLastUsed обновляет отметку последнего использования.
// Best-effort: сбой логируется и не прерывает запрос — устаревший
// last_used_at не угрожает корректности.
func (s *RefreshStore) TouchLastUsed(ctx context.Context, plain string) {
	const op = "store.refresh.TouchLastUsed"

	hash := HashToken(plain)
	now := time.Now().UTC()
	gen := s.idx.Gen()

	if err := s.db.TouchRefreshToken(ctx, hash, now); err != nil {
		log.WithOp(ctx, op).Warn("touch_last_used_failed",
			slog.String("hash", redact.Hash(hash)),
			slog.String("err", err.Error()),
		)
		return
	}

	if cached, ok := s.idx.Get(hash); ok {
		cached.LastUsedAt = now
		s.idx.PutFresh(cached, gen)
	}
}

// Revoke отзывает токен. Идемпотентен: повторный вызов возвращает
// (false, nil), как и отзыв неизвестного токена.
func (s *RefreshStore) Revoke(ctx context.Context, plain string) (bool, error) {
	const op = "store.refresh.Revoke"

	hash := HashToken(plain)
	now := time.Now().UTC()

	revoked, err := s.db.RevokeRefreshToken(ctx, hash, now)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}

		return false, fmt.Errorf("%s: %w", op, err)
	}

	if revoked {
		s.idx.MarkRevoked(hash, now)
	}

	return revoked, nil
}

// RevokeAllForUser массово отзывает активные токены пользователя:
// bulk-update в БД, затем инвалидация всех записей пользователя в
// индексе. Токен, созданный конкурентно до коммита bulk-запроса,
// попадает под отзыв; созданный после — живёт. Глобальный лок не нужен.
func (s *RefreshStore) RevokeAllForUser(ctx context.Context, userID int64) (int64, error) {
	const op = "store.refresh.RevokeAllForUser"

	count, err := s.db.RevokeAllForUser(ctx, userID, time.Now().UTC())
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	s.idx.InvalidateUser(userID)

	return count, nil
}

// DeleteExpired удаляет просроченные строки из БД. Индекс не трогаем:
// просроченные записи и так отклоняются по expires_at, а из памяти
// уходят лениво при обращении.
func (s *RefreshStore) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	const op = "store.refresh.DeleteExpired"

	count, err := s.db.DeleteExpiredRefreshTokens(ctx, before)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	return count, nil
}

// CachedLen — число записей в индексе (для тестов и метрик).
func (s *RefreshStore) CachedLen() int { return s.idx.Len() }
