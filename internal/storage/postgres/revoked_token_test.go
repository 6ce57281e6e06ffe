package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/storage"
)

func TestIntegration_SaveRevokedToken_And_GetByHash_OK(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	hash := hashRefresh("revoked-access-1")

	require.NoError(t, st.SaveRevokedToken(ctx, &models.RevokedToken{
		TokenHash: hash,
		UserID:    42,
		ExpiresAt: now.Add(15 * time.Minute),
		RevokedAt: now,
	}))

	got, err := st.RevokedTokenByHash(ctx, hash)
	require.NoError(t, err)
	require.Equal(t, hash, got.TokenHash)
	require.Equal(t, int64(42), got.UserID)
	require.WithinDuration(t, now.Add(15*time.Minute), got.ExpiresAt, 2*time.Second)
	require.WithinDuration(t, now, got.RevokedAt, 2*time.Second)
}

func TestIntegration_SaveRevokedToken_Idempotent(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()
	hash := hashRefresh("double-logout")

	entry := &models.RevokedToken{
		TokenHash: hash,
		UserID:    42,
		ExpiresAt: now.Add(15 * time.Minute),
		RevokedAt: now,
	}

	// Повторный logout того же токена — не ошибка.
	require.NoError(t, st.SaveRevokedToken(ctx, entry))
	require.NoError(t, st.SaveRevokedToken(ctx, entry))

	_, err := st.RevokedTokenByHash(ctx, hash)
	require.NoError(t, err)
}

func TestIntegration_RevokedTokenByHash_NotFound(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	_, err := st.RevokedTokenByHash(context.Background(), hashRefresh("clean"))
	require.Error(t, err)
	require.ErrorIs(t, err, storage.ErrNotFound)
}

func TestIntegration_DeleteExpiredRevokedTokens_StrictCutoff(t *testing.T) {
	st, cleanup := startPostgres(t)
	defer cleanup()

	ctx := context.Background()
	now := time.Now().UTC()

	save := func(plain string, expiresAt time.Time) {
		require.NoError(t, st.SaveRevokedToken(ctx, &models.RevokedToken{
			TokenHash: hashRefresh(plain),
			UserID:    1,
			ExpiresAt: expiresAt,
			RevokedAt: now.Add(-time.Hour),
		}))
	}

	save("gone", now.Add(-time.Minute))
	save("edge", now)
	save("live", now.Add(10*time.Minute))

	count, err := st.DeleteExpiredRevokedTokens(ctx, now)
	require.NoError(t, err)
	require.Equal(t, int64(1), count)

	_, err = st.RevokedTokenByHash(ctx, hashRefresh("gone"))
	require.ErrorIs(t, err, storage.ErrNotFound)

	_, err = st.RevokedTokenByHash(ctx, hashRefresh("edge"))
	require.NoError(t, err)

	_, err = st.RevokedTokenByHash(ctx, hashRefresh("live"))
	require.NoError(t, err)
}
