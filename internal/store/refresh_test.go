package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/storage"
	"github.com/pribylovaa/go-session-core/mocks"
)

func newRefreshStore(t *testing.T) (*RefreshStore, *mocks.MockStorage, *gomock.Controller) {
	t.Helper()
	ctrl := gomock.NewController(t)
	st := mocks.NewMockStorage(ctrl)
	return NewRefreshStore(st, 24*time.Hour), st, ctrl
}

func TestRefreshStoreCreate_OK(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	var saved *models.RefreshToken
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, tok *models.RefreshToken) error {
			saved = tok
			return nil
		})

	plain, token, err := s.Create(context.Background(), 42, "ios-app")
	require.NoError(t, err)
	require.NotEmpty(t, plain)
	require.Equal(t, int64(42), token.UserID)
	require.Equal(t, "ios-app", token.Device)
	require.False(t, token.Revoked)

	// В storage уходит только хэш, plaintext нигде не сохраняется.
	require.Equal(t, HashToken(plain), saved.TokenHash)
	require.NotEqual(t, plain, saved.TokenHash)
	require.WithinDuration(t, time.Now().Add(24*time.Hour), saved.ExpiresAt, 2*time.Second)

	// Индекс заполняется после durable-записи.
	require.Equal(t, 1, s.CachedLen())
}

func TestRefreshStoreCreate_CollisionRetry(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	gomock.InOrder(
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(storage.ErrAlreadyExists),
		st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil),
	)

	plain, _, err := s.Create(context.Background(), 1, "")
	require.NoError(t, err)
	require.NotEmpty(t, plain)
}

func TestRefreshStoreCreate_CollisionExceeded(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		Return(storage.ErrAlreadyExists).Times(5)

	_, _, err := s.Create(context.Background(), 1, "")
	require.ErrorIs(t, err, ErrRefreshCollision)
}

func TestRefreshStoreCreate_StorageError_NoCacheEntry(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(errors.New("db down"))

	_, _, err := s.Create(context.Background(), 1, "")
	require.Error(t, err)
	require.Equal(t, 0, s.CachedLen())
}

func TestRefreshStoreByToken_CacheHit(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)

	plain, _, err := s.Create(context.Background(), 42, "dev")
	require.NoError(t, err)

	// Повторный поиск не должен ходить в БД: EXPECT на
	// RefreshTokenByHash не ставится.
	got, err := s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.UserID)
	require.False(t, got.Revoked)
}

func TestRefreshStoreByToken_MissReadThrough(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	plain := "opaque-from-before-restart"
	hash := HashToken(plain)
	now := time.Now().UTC()

	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
		Return(&models.RefreshToken{
			TokenHash: hash,
			UserID:    7,
			CreatedAt: now,
			ExpiresAt: now.Add(time.Hour),
		}, nil)

	got, err := s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.UserID)

	// Промах прогрел индекс: второй вызов обслуживается из памяти.
	require.Equal(t, 1, s.CachedLen())
	_, err = s.ByToken(context.Background(), plain)
	require.NoError(t, err)
}

func TestRefreshStoreByToken_NotFound(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().RefreshTokenByHash(gomock.Any(), gomock.Any()).
		Return(nil, storage.ErrNotFound)

	_, err := s.ByToken(context.Background(), "unknown")
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestRefreshStoreByToken_ExpiredEvictedFromIndex(t *testing.T) {
	t.Parallel()

	ctrl := gomock.NewController(t)
	defer ctrl.Finish()
	st := mocks.NewMockStorage(ctrl)
	// Отрицательный ttl: токен рождается уже просроченным.
	s := NewRefreshStore(st, -time.Minute)

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	plain, _, err := s.Create(context.Background(), 1, "")
	require.NoError(t, err)
	require.Equal(t, 1, s.CachedLen())

	// Просроченная запись выбрасывается из индекса, решение принимает БД.
	st.EXPECT().RefreshTokenByHash(gomock.Any(), HashToken(plain)).
		Return(nil, storage.ErrNotFound)

	_, err = s.ByToken(context.Background(), plain)
	require.ErrorIs(t, err, storage.ErrNotFound)
	require.Equal(t, 0, s.CachedLen())
}

func TestRefreshStoreRevoke_TwiceReturnsTrueThenFalse(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	plain := "tok"
	hash := HashToken(plain)

	gomock.InOrder(
		st.EXPECT().RevokeRefreshToken(gomock.Any(), hash, gomock.Any()).Return(true, nil),
		st.EXPECT().RevokeRefreshToken(gomock.Any(), hash, gomock.Any()).Return(false, nil),
	)

	ok, err := s.Revoke(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = s.Revoke(context.Background(), plain)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshStoreRevoke_UnknownTokenIsNoError(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().RevokeRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(false, storage.ErrNotFound)

	ok, err := s.Revoke(context.Background(), "ghost")
	require.NoError(t, err)
	require.False(t, ok)
}

func TestRefreshStoreRevoke_MarksIndexEntry(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	plain, _, err := s.Create(context.Background(), 42, "")
	require.NoError(t, err)

	st.EXPECT().RevokeRefreshToken(gomock.Any(), HashToken(plain), gomock.Any()).Return(true, nil)
	ok, err := s.Revoke(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, ok)

	// Кэшированная запись отражает отзыв без похода в БД.
	got, err := s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, got.Revoked)
	require.NotNil(t, got.RevokedAt)
}

func TestRefreshStoreRevokeAllForUser(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil).Times(3)
	for _, dev := range []string{"ios", "android", "web"} {
		_, _, err := s.Create(context.Background(), 42, dev)
		require.NoError(t, err)
	}
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).Return(nil)
	otherPlain, _, err := s.Create(context.Background(), 7, "web")
	require.NoError(t, err)

	st.EXPECT().RevokeAllForUser(gomock.Any(), int64(42), gomock.Any()).Return(int64(3), nil)

	count, err := s.RevokeAllForUser(context.Background(), 42)
	require.NoError(t, err)
	require.Equal(t, int64(3), count)

	// Записи пользователя 42 вычищены из индекса, чужие не тронуты.
	require.Equal(t, 1, s.CachedLen())
	got, err := s.ByToken(context.Background(), otherPlain)
	require.NoError(t, err)
	require.Equal(t, int64(7), got.UserID)
}

func TestRefreshStoreCreate_BulkRevokeBetweenSaveAndIndex(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	// Вставка коммитится, и до того как Create успевает индексировать
	// токен, проходит массовый отзыв: bulk-update в БД плюс инвалидация
	// индекса. Доотзывная копия не должна осесть в кэше живой.
	var saved models.RefreshToken
	st.EXPECT().RevokeAllForUser(gomock.Any(), int64(42), gomock.Any()).Return(int64(1), nil)
	st.EXPECT().SaveRefreshToken(gomock.Any(), gomock.Any()).
		DoAndReturn(func(ctx context.Context, tok *models.RefreshToken) error {
			saved = *tok
			_, err := s.RevokeAllForUser(ctx, 42)
			require.NoError(t, err)
			return nil
		})

	plain, _, err := s.Create(context.Background(), 42, "laptop")
	require.NoError(t, err)
	require.Equal(t, 0, s.CachedLen())

	// Следующий поиск идёт в БД и видит отозванную строку.
	now := time.Now().UTC()
	revokedRow := saved
	revokedRow.Revoked = true
	revokedRow.RevokedAt = &now
	st.EXPECT().RefreshTokenByHash(gomock.Any(), saved.TokenHash).Return(&revokedRow, nil)

	got, err := s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func TestRefreshStoreByToken_BulkRevokeDuringReadThrough(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	plain := "opaque-from-before-restart"
	hash := HashToken(plain)
	now := time.Now().UTC()
	live := models.RefreshToken{
		TokenHash: hash,
		UserID:    42,
		CreatedAt: now,
		ExpiresAt: now.Add(time.Hour),
	}

	// БД отдаёт ещё живую строку, но до возврата результата успевает
	// пройти массовый отзыв — read-through не должен прогреть индекс
	// устаревшей копией.
	st.EXPECT().RevokeAllForUser(gomock.Any(), int64(42), gomock.Any()).Return(int64(1), nil)
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).
		DoAndReturn(func(ctx context.Context, _ string) (*models.RefreshToken, error) {
			_, err := s.RevokeAllForUser(ctx, 42)
			require.NoError(t, err)
			row := live
			return &row, nil
		})

	got, err := s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.Equal(t, int64(42), got.UserID)
	require.Equal(t, 0, s.CachedLen())

	// Повторный вызов снова консультируется с источником истины.
	revokedRow := live
	revokedRow.Revoked = true
	revokedRow.RevokedAt = &now
	st.EXPECT().RefreshTokenByHash(gomock.Any(), hash).Return(&revokedRow, nil)

	got, err = s.ByToken(context.Background(), plain)
	require.NoError(t, err)
	require.True(t, got.Revoked)
}

func TestRefreshStoreTouchLastUsed_BestEffort(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	// Сбой обновления не паникует и не ломает вызывающего.
	st.EXPECT().TouchRefreshToken(gomock.Any(), gomock.Any(), gomock.Any()).
		Return(errors.New("db down"))

	s.TouchLastUsed(context.Background(), "tok")
}

func TestRefreshStoreDeleteExpired(t *testing.T) {
	t.Parallel()

	s, st, ctrl := newRefreshStore(t)
	defer ctrl.Finish()

	cutoff := time.Now().UTC()
	st.EXPECT().DeleteExpiredRefreshTokens(gomock.Any(), cutoff).Return(int64(11), nil)

	n, err := s.DeleteExpired(context.Background(), cutoff)
	require.NoError(t, err)
	require.Equal(t, int64(11), n)
}
