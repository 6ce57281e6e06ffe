// auth — фасад аутентификации, единственная точка входа для верхних
// слоёв (HTTP-контроллеры админ-панели). Композиция сервиса токенов,
// справочника пользователей и шины событий; собственной логики
// хранения здесь нет.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"github.com/pribylovaa/go-session-core/internal/events"
	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
	"github.com/pribylovaa/go-session-core/internal/pkg/redact"
	"github.com/pribylovaa/go-session-core/internal/service"
	"github.com/pribylovaa/go-session-core/internal/storage"
	"github.com/pribylovaa/go-session-core/internal/token"
)

var (
	// ErrInvalidCredentials — логин/пароль неверны, пользователь не найден
	// или деактивирован. Намеренно неразличимо снаружи.
	ErrInvalidCredentials = errors.New("invalid credentials")

	// ErrAccessRevoked — access-токен отозван до естественного истечения.
	ErrAccessRevoked = errors.New("access token revoked")
)

// Users — внешний коллаборатор: пользователи админ-панели.
type Users interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
	UserByUsername(ctx context.Context, username string) (*models.User, error)
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
}

// PasswordHasher — внешний коллаборатор: медленная односторонняя
// функция хэширования паролей. Референсная реализация — bcrypt.go.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hash, password string) bool
}

// Auth — оркестратор: login, refresh, logout, logout-everywhere,
// массовый отзыв по смене пароля.
type Auth struct {
	sessions *service.Service
	users    Users
	hasher   PasswordHasher
	bus      *events.Bus
}

// New создаёт оркестратор.
func New(sessions *service.Service, users Users, hasher PasswordHasher, bus *events.Bus) *Auth {
	return &Auth{
		sessions: sessions,
		users:    users,
		hasher:   hasher,
		bus:      bus,
	}
}

// Login аутентифицирует по логину и паролю и выпускает сессию.
func (a *Auth) Login(ctx context.Context, username, password, device string) (*models.Session, error) {
	const op = "auth.Login"

	lg := log.WithOp(ctx, op)

	if username == "" || password == "" {
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	user, err := a.users.UserByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if !user.IsActive || !a.hasher.Verify(user.PasswordHash, password) {
		lg.Warn("login_rejected",
			slog.Int64("user_id", user.ID),
			slog.String("password", redact.Password()),
		)
		return nil, fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	session, err := a.sessions.IssueSession(ctx, user, device)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.bus.Publish(ctx, models.NewEvent(models.EventLogin, user.ID, map[string]string{
		"device": redact.Device(device),
	}))

	return session, nil
}

// Refresh обменивает refresh-токен на свежий access-токен.
func (a *Auth) Refresh(ctx context.Context, refreshToken string) (*models.Session, error) {
	const op = "auth.Refresh"

	session, err := a.sessions.Rotate(ctx, refreshToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	a.bus.Publish(ctx, models.NewEvent(models.EventTokenRotated, a.subjectOf(session.AccessToken), nil))

	return session, nil
}

// Logout гасит токены текущей сессии (любой аргумент может быть пустым).
func (a *Auth) Logout(ctx context.Context, accessToken, refreshToken string) error {
	const op = "auth.Logout"

	userID := a.subjectOf(accessToken)

	if err := a.sessions.Invalidate(ctx, accessToken, refreshToken); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.bus.Publish(ctx, models.NewEvent(models.EventLogout, userID, nil))

	return nil
}

// LogoutAll отзывает все refresh-токены пользователя. Подписчик события
// logout_all дополнительно пинает janitor на внеплановую чистку.
func (a *Auth) LogoutAll(ctx context.Context, userID int64) (int64, error) {
	const op = "auth.LogoutAll"

	count, err := a.sessions.InvalidateAllSessions(ctx, userID)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}

	a.bus.Publish(ctx, models.NewEvent(models.EventLogoutAll, userID, map[string]string{
		"revoked": strconv.FormatInt(count, 10),
	}))

	return count, nil
}

// ChangePassword меняет пароль и массово отзывает сессии пользователя.
// Уже выпущенные access-токены доживают свой короткий срок (см.
// service.InvalidateAllSessions).
func (a *Auth) ChangePassword(ctx context.Context, userID int64, oldPassword, newPassword string) error {
	const op = "auth.ChangePassword"

	user, err := a.users.UserByID(ctx, userID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
		}

		return fmt.Errorf("%s: %w", op, err)
	}

	if !a.hasher.Verify(user.PasswordHash, oldPassword) {
		return fmt.Errorf("%s: %w", op, ErrInvalidCredentials)
	}

	hash, err := a.hasher.Hash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	if err := a.users.UpdatePasswordHash(ctx, userID, hash); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	count, err := a.sessions.InvalidateAllSessions(ctx, userID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}

	a.bus.Publish(ctx, models.NewEvent(models.EventPasswordChanged, userID, map[string]string{
		"revoked": strconv.FormatInt(count, 10),
	}))

	return nil
}

// Authenticate — проверка access-токена на каждом запросе: подпись и
// срок через кодек, затем чёрный список. Порядок важен: чужие и
// просроченные токены отсекаются без похода в хранилище.
func (a *Auth) Authenticate(ctx context.Context, accessToken string) (*token.Claims, error) {
	const op = "auth.Authenticate"

	claims, err := a.sessions.Codec().Verify(accessToken)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	if a.sessions.IsRevoked(ctx, accessToken) {
		return nil, fmt.Errorf("%s: %w", op, ErrAccessRevoked)
	}

	return claims, nil
}

// subjectOf достаёт user_id из access-токена для атрибуции события.
// Ошибки глотаются: событие с нулевым user_id лучше сорванной операции.
func (a *Auth) subjectOf(accessToken string) int64 {
	if accessToken == "" {
		return 0
	}

	claims, err := a.sessions.Codec().Decode(accessToken)
	if err != nil {
		return 0
	}

	return claims.UserID
}
