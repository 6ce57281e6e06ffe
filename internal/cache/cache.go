// cache — производные in-memory индексы поверх долговременного хранилища.
//
// Инварианты:
//   - индекс заполняется только после успешной записи в БД либо
//     read-through'ом при промахе; сам по себе он не авторитетен;
//   - мьютексы не удерживаются через вызовы I/O: структуры кэша
//     принимают и отдают копии значений (copy-then-write).
//
// Дополнительно поддерживается необязательное Redis-зеркало чёрного
// списка: после рестарта процесс получает тёплый deny-путь, не
// дожидаясь прогрева из Postgres.
package cache

import "context"

// RevocationMirror — контракт внешнего зеркала чёрного списка.
// Реализация — Redis (см. redis.go); отсутствие зеркала — валидная
// конфигурация, поведение при этом не меняется.
type RevocationMirror interface {
	// Add помечает хэш токена отозванным на срок ttl.
	Add(ctx context.Context, hash string, ttlSeconds int64) error
	// Contains проверяет наличие хэша в зеркале.
	Contains(ctx context.Context, hash string) (bool, error)
	// Close закрывает клиент.
	Close() error
}
