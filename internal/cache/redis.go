package cache

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
)

type redisMirror struct {
	rdb    *redis.Client
	prefix string
}

// NewRedisMirror создаёт Redis-зеркало чёрного списка из URL
// (например, redis://:pass@host:6379/0). Если prefix пустой —
// используется "sessions:bl:".
func NewRedisMirror(redisURL, prefix string) (RevocationMirror, error) {
	if prefix == "" {
		prefix = "sessions:bl:"
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}

	rdb := redis.NewClient(opt)

	// Fail-fast на старте.
	if err := rdb.Ping(context.Background()).Err(); err != nil {
		return nil, err
	}

	return &redisMirror{rdb: rdb, prefix: prefix}, nil
}

func (m *redisMirror) key(hash string) string { return m.prefix + hash }

// Add выставляет ключ с TTL, равным остатку жизни токена: зеркало
// самоочищается без участия janitor'а.
func (m *redisMirror) Add(ctx context.Context, hash string, ttlSeconds int64) error {
	if ttlSeconds <= 0 {
		// Токен уже истёк, кодек отклонит его и так.
		return nil
	}

	return m.rdb.Set(ctx, m.key(hash), "1", time.Duration(ttlSeconds)*time.Second).Err()
}

func (m *redisMirror) Contains(ctx context.Context, hash string) (bool, error) {
	n, err := m.rdb.Exists(ctx, m.key(hash)).Result()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (m *redisMirror) Close() error { return m.rdb.Close() }
