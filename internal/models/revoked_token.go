package models

import "time"

// RevokedToken — запись чёрного списка access-токенов.
//
// Запись нужна только до момента ExpiresAt (он скопирован из exp-клейма
// самого токена): после него кодек и так отклонит токен как просроченный,
// поэтому janitor удаляет такие строки без ущерба для корректности.
type RevokedToken struct {
	// TokenHash — sha256/base64url от строки access-токена; сырое
	// значение в БД не попадает.
	TokenHash string
	// UserID может быть нулевым, если токен отзывали без декодирования.
	UserID    int64
	ExpiresAt time.Time
	RevokedAt time.Time
}
