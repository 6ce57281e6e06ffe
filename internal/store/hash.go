// store — read-through-хранилища ядра сессий: refresh-токены и чёрный
// список access-токенов. Каждое сочетает долговременное хранилище
// (источник истины) и производный in-memory индекс из internal/cache.
package store

import (
	"crypto/sha256"
	"encoding/base64"
)

// HashToken — каноническое преобразование предъявленного токена в ключ
// хранения (sha256 → base64url). Сырые значения токенов не хранятся
// нигде: ни в БД, ни в индексах, ни в логах.
func HashToken(plain string) string {
	sum := sha256.Sum256([]byte(plain))
	return base64.RawURLEncoding.EncodeToString(sum[:])
}
