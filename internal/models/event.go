package models

import (
	"time"

	"github.com/google/uuid"
)

// EventKind — тип события аутентификации.
type EventKind string

const (
	EventLogin            EventKind = "login"
	EventLogout           EventKind = "logout"
	EventLogoutAll        EventKind = "logout_all"
	EventTokenRotated     EventKind = "token_rotated"
	EventPasswordChanged  EventKind = "password_changed"
	EventCleanupCompleted EventKind = "cleanup_completed"
)

// AuthEvent — событие шины (см. internal/events).
// Эфемерно: ядро события не персистит, подписчики — по своему усмотрению.
type AuthEvent struct {
	ID     uuid.UUID
	Kind   EventKind
	UserID int64
	At     time.Time
	// Payload — произвольные строковые атрибуты события
	// (device, счётчики очистки и т.п.).
	Payload map[string]string
}

// NewEvent собирает событие с проставленными ID и временем.
func NewEvent(kind EventKind, userID int64, payload map[string]string) AuthEvent {
	return AuthEvent{
		ID:      uuid.New(),
		Kind:    kind,
		UserID:  userID,
		At:      time.Now().UTC(),
		Payload: payload,
	}
}
