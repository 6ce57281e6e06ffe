package models

import "time"

// Session — результат выпуска или ротации сессии.
//
// Описание:
//   - AccessToken — короткоживущий подписанный токен для доступа к API;
//   - RefreshToken — случайный секрет, который клиент хранит и предъявляет
//     для выпуска новых access-токенов; на сервере хранится только его хэш;
//   - AccessTTL/AccessExpiresAt — срок действия access-токена; клиент
//     использует TTL для планирования проактивной ротации.
type Session struct {
	AccessToken     string
	RefreshToken    string
	AccessTTL       time.Duration
	AccessExpiresAt time.Time
}
