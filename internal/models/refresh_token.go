package models

import "time"

// RefreshToken - данные refresh-токена для управления сессиями.
//
// В БД и кэше хранится только хэш значения (sha256 → base64url);
// само значение существует лишь в ответе на выпуск сессии.
// Один пользователь может держать несколько активных токенов
// одновременно (по одному на устройство). Отзыв необратим.
type RefreshToken struct {
	// TokenHash — ключ записи в БД и в in-memory индексе.
	TokenHash string
	UserID    int64
	// Device — свободный описатель устройства/клиента ("Chrome on macOS").
	Device    string
	CreatedAt time.Time
	ExpiresAt time.Time
	// LastUsedAt обновляется best-effort при каждой ротации.
	LastUsedAt time.Time
	Revoked    bool
	RevokedAt  *time.Time
}

// Expired сообщает, истёк ли токен к моменту now.
func (t *RefreshToken) Expired(now time.Time) bool {
	return !now.Before(t.ExpiresAt)
}

// Active — токен не отозван и не истёк.
func (t *RefreshToken) Active(now time.Time) bool {
	return !t.Revoked && !t.Expired(now)
}
