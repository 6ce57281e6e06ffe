// token — stateless-кодек подписанных access-токенов (HS256).
//
// Кодек ничего не знает ни о хранилище, ни о чёрном списке: Verify
// отвечает только за подпись и срок действия. Проверка отзыва —
// отдельный шаг на уровне сервиса (см. internal/service).
package token

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/pribylovaa/go-session-core/internal/models"
)

var (
	// ErrMalformed — строка не декодируется как токен.
	ErrMalformed = errors.New("token malformed")

	// ErrBadSignature — структура корректна, но подпись не сходится
	// либо токен подписан неожиданным алгоритмом.
	ErrBadSignature = errors.New("token signature mismatch")

	// ErrExpired — подпись верна, срок действия истёк.
	ErrExpired = errors.New("token expired")
)

// Claims — полезная нагрузка access-токена.
type Claims struct {
	UserID   int64  `json:"uid"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Role     string `json:"role"`
	jwt.RegisteredClaims
}

// Codec выпускает и проверяет access-токены. Безопасен для
// конкурентного использования: всё состояние неизменяемо после New.
type Codec struct {
	secret []byte
	issuer string
	ttl    time.Duration
}

// New создаёт кодек. Секрет и TTL приходят из конфигурации,
// скрытых значений по умолчанию нет.
func New(secret, issuer string, ttl time.Duration) *Codec {
	return &Codec{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
	}
}

// TTL возвращает срок действия выпускаемых токенов.
func (c *Codec) TTL() time.Duration { return c.ttl }

// Issue выпускает подписанный токен для пользователя.
// Ошибка возможна только при сбое сериализации/подписи.
func (c *Codec) Issue(user *models.User, now time.Time) (string, time.Time, error) {
	const op = "token.Issue"

	expiresAt := now.Add(c.ttl)
	claims := Claims{
		UserID:   user.ID,
		Username: user.Username,
		Email:    user.Email,
		Role:     user.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    c.issuer,
			Subject:   strconv.FormatInt(user.ID, 10),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("%s: %w", op, err)
	}

	return signed, expiresAt, nil
}

// Verify проверяет подпись и срок действия. Leeway нулевой: TTL
// access-токенов измеряется минутами, расхождение часов не компенсируем.
func (c *Codec) Verify(raw string) (*Claims, error) {
	const op = "token.Verify"

	claims, err := c.parse(raw, false)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

// Decode проверяет подпись, но игнорирует срок действия.
// Нужен Invalidate: токен можно отозвать и после истечения,
// а exp-клейм задаёт срок жизни записи в чёрном списке.
func (c *Codec) Decode(raw string) (*Claims, error) {
	const op = "token.Decode"

	claims, err := c.parse(raw, true)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	return claims, nil
}

func (c *Codec) parse(raw string, skipValidation bool) (*Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(c.issuer),
	}
	if skipValidation {
		opts = append(opts, jwt.WithoutClaimsValidation())
	}

	parsed, err := jwt.ParseWithClaims(raw, &Claims{},
		func(t *jwt.Token) (interface{}, error) {
			if t.Method != jwt.SigningMethodHS256 {
				return nil, ErrMalformed
			}

			return c.secret, nil
		},
		opts...,
	)

	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpired
		case errors.Is(err, jwt.ErrTokenSignatureInvalid):
			return nil, ErrBadSignature
		default:
			return nil, ErrMalformed
		}
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid {
		return nil, ErrMalformed
	}

	return claims, nil
}
