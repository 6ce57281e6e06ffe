package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/pribylovaa/go-session-core/internal/metrics"
	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
	"github.com/pribylovaa/go-session-core/internal/pkg/redact"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

// IssueSession выпускает новую пару access+refresh для пользователя.
// device — свободный описатель устройства, попадает в запись refresh-токена.
func (s *Service) IssueSession(ctx context.Context, user *models.User, device string) (*models.Session, error) {
	const op = "service.session.IssueSession"

	now := time.Now().UTC()

	access, expiresAt, err := s.codec.Issue(user, now)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	refreshPlain, _, err := s.refresh.Create(ctx, user.ID, device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	metrics.SessionsIssued.Inc()

	return &models.Session{
		AccessToken:     access,
		RefreshToken:    refreshPlain,
		AccessTTL:       s.codec.TTL(),
		AccessExpiresAt: expiresAt,
	}, nil
}

// Rotate обменивает refresh-токен на свежий access-токен.
//
// Значение refresh-токена при этом сознательно НЕ заменяется
// (sliding-window reuse): меньше записей в БД ценой того, что
// легитимная ротация не инвалидирует украденную копию токена.
// Это зафиксированное решение, а не упущение.
func (s *Service) Rotate(ctx context.Context, refreshPlain string) (*models.Session, error) {
	const op = "service.session.Rotate"

	lg := log.WithOp(ctx, op)
	now := time.Now().UTC()

	rt, err := s.refresh.ByToken(ctx, refreshPlain)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.Rotations.WithLabelValues("invalid").Inc()
			return nil, fmt.Errorf("%s: %w", op, ErrRefreshInvalid)
		}

		metrics.Rotations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if rt.Revoked {
		metrics.Rotations.WithLabelValues("invalid").Inc()
		lg.Warn("rotate_revoked_refresh",
			slog.Int64("user_id", rt.UserID),
			slog.String("hash", redact.Hash(rt.TokenHash)),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshInvalid)
	}

	if rt.Expired(now) {
		metrics.Rotations.WithLabelValues("expired").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrRefreshExpired)
	}

	// Перепроверяем владельца: аккаунт могли деактивировать после login.
	user, err := s.users.UserByID(ctx, rt.UserID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			metrics.Rotations.WithLabelValues("user_inactive").Inc()
			return nil, fmt.Errorf("%s: %w", op, ErrUserInactive)
		}

		metrics.Rotations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if !user.IsActive {
		metrics.Rotations.WithLabelValues("user_inactive").Inc()
		return nil, fmt.Errorf("%s: %w", op, ErrUserInactive)
	}

	access, expiresAt, err := s.codec.Issue(user, now)
	if err != nil {
		metrics.Rotations.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	// Best-effort: устаревший last_used_at не ломает корректность.
	s.refresh.TouchLastUsed(ctx, refreshPlain)

	metrics.Rotations.WithLabelValues("ok").Inc()

	return &models.Session{
		AccessToken:     access,
		RefreshToken:    refreshPlain,
		AccessTTL:       s.codec.TTL(),
		AccessExpiresAt: expiresAt,
	}, nil
}

// Invalidate гасит предъявленные токены (любой из аргументов может быть
// пустым). Access-токен декодируется без проверки срока — разлогиниться
// можно и с ещё живым токеном — и попадает в чёрный список под своим
// собственным exp. Refresh-токен отзывается идемпотентно.
func (s *Service) Invalidate(ctx context.Context, accessToken, refreshToken string) error {
	const op = "service.session.Invalidate"

	lg := log.WithOp(ctx, op)

	if accessToken != "" {
		claims, err := s.codec.Decode(accessToken)
		if err != nil {
			// Подпись не наша или мусор: в чёрном списке такому токену
			// делать нечего, Verify отклонит его и так.
			lg.Warn("invalidate_undecodable_access",
				slog.String("token", redact.Token()),
				slog.String("err", err.Error()),
			)
		} else {
			if err := s.revoked.Add(ctx, accessToken, claims.UserID, claims.ExpiresAt.Time); err != nil {
				return fmt.Errorf("%s: %w", op, err)
			}

			metrics.Revocations.WithLabelValues("access").Inc()
		}
	}

	if refreshToken != "" {
		revoked, err := s.refresh.Revoke(ctx, refreshToken)
		if err != nil {
			return fmt.Errorf("%s: %w", op, err)
		}

		// Повторный или чужой токен отзыва не производит — не считаем.
		if revoked {
			metrics.Revocations.WithLabelValues("refresh").Inc()
		}
	}

	return nil
}

// InvalidateAllSessions отзывает все refresh-токены пользователя
// ("выйти на всех устройствах", смена пароля).
//
// Уже выпущенные access-токены при этом остаются валидны до своего
// собственного короткого exp: реестра выпущенных access-токенов нет,
// и перечислить их невозможно. Окно ограничено access-TTL — это
// осознанный компромисс, который надо учитывать при выборе TTL.
func (s *Service) InvalidateAllSessions(ctx context.Context, userID int64) (int64, error) {
	const op = "service.session.InvalidateAllSessions"

	count, err := s.refresh.RevokeAllForUser(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	metrics.Revocations.WithLabelValues("all").Inc()

	log.WithOp(ctx, op).Info("all_sessions_invalidated",
		slog.Int64("user_id", userID),
		slog.Int64("count", count),
	)

	return count, nil
}

// IsRevoked проверяет access-токен по чёрному списку. Вызывается на
// каждом аутентифицированном запросе до доверия клеймам.
//
// Fail-closed: если хранилище не ответило, токен считается отозванным.
// Ложный deny на время сбоя БД лучше, чем реанимация токена, который
// пользователь считает погашенным.
func (s *Service) IsRevoked(ctx context.Context, accessToken string) bool {
	const op = "service.session.IsRevoked"

	revoked, err := s.revoked.Contains(ctx, accessToken)
	if err != nil {
		metrics.RevocationCheckDenied.Inc()
		log.WithOp(ctx, op).Warn("revocation_check_unavailable_deny",
			slog.String("err", err.Error()),
		)
		return true
	}

	return revoked
}
