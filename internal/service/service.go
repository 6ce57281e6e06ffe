// service — сервис токенов: оркестрирует кодек, реестр refresh-токенов
// и чёрный список. Владеет временем жизни токенов через конфигурацию
// кодека и store'ов.
//
// Экземпляр Service создаётся один раз на процесс и передаётся по
// ссылке оркестратору и janitor'у — никакого глобального состояния.
// Безопасен для конкурентного использования при условии
// потокобезопасности переданных хранилищ.
package service

import (
	"context"
	"errors"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/store"
	"github.com/pribylovaa/go-session-core/internal/token"
)

var (
	// ErrRefreshInvalid — refresh-токен неизвестен или отозван.
	// Транспорт обычно маппит в 401.
	ErrRefreshInvalid = errors.New("refresh token invalid")

	// ErrRefreshExpired — срок действия refresh-токена истёк.
	ErrRefreshExpired = errors.New("refresh token expired")

	// ErrUserInactive — владелец токена не найден или деактивирован;
	// новые access-токены для него не выпускаются.
	ErrUserInactive = errors.New("user inactive or missing")
)

// UserProvider — внешний коллаборатор: справочник пользователей
// админ-панели. Rotate перепроверяет через него, что аккаунт жив.
type UserProvider interface {
	UserByID(ctx context.Context, id int64) (*models.User, error)
}

// Service описывает операции над токенами, используемые всем остальным.
type Service struct {
	codec   *token.Codec
	refresh *store.RefreshStore
	revoked *store.RevocationStore
	users   UserProvider
}

// New создаёт новый экземпляр Service.
func New(codec *token.Codec, refresh *store.RefreshStore, revoked *store.RevocationStore, users UserProvider) *Service {
	return &Service{
		codec:   codec,
		refresh: refresh,
		revoked: revoked,
		users:   users,
	}
}

// Codec отдаёт кодек access-токенов (нужен транспорту для верификации).
func (s *Service) Codec() *token.Codec { return s.codec }
