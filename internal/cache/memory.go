package cache

import (
	"sync"
	"time"

	"github.com/pribylovaa/go-session-core/internal/models"
)

// RefreshIndex — потокобезопасный индекс refresh-токенов:
// первичный ключ — хэш токена (O(1) lookup на каждую ротацию),
// вторичный — user_id ("все сессии пользователя" для массового отзыва).
type RefreshIndex struct {
	mu sync.RWMutex
	// gen растёт на каждом отзыве. Заполнение индекса, начатое до отзыва,
	// сверяет снимок gen в PutFresh и не кладёт устаревшую копию поверх
	// уже инвалидированного состояния.
	gen    uint64
	byHash map[string]models.RefreshToken
	byUser map[int64]map[string]struct{}
}

// NewRefreshIndex создаёт пустой индекс.
func NewRefreshIndex() *RefreshIndex {
	return &RefreshIndex{
		byHash: make(map[string]models.RefreshToken),
		byUser: make(map[int64]map[string]struct{}),
	}
}

// Get возвращает копию записи и признак её наличия.
func (i *RefreshIndex) Get(hash string) (models.RefreshToken, bool) {
	i.mu.RLock()
	defer i.mu.RUnlock()

	t, ok := i.byHash[hash]
	return t, ok
}

// Gen возвращает текущее поколение индекса. Снимается перед обращением
// к БД, чей результат предполагается закэшировать через PutFresh.
func (i *RefreshIndex) Gen() uint64 {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return i.gen
}

// PutFresh сохраняет запись, только если с момента снимка gen не было
// ни одного отзыва. Иначе запись отбрасывается: она могла быть прочитана
// из БД до отзыва и реанимировала бы токен в кэше.
func (i *RefreshIndex) PutFresh(t models.RefreshToken, gen uint64) bool {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.gen != gen {
		return false
	}

	i.putLocked(t)

	return true
}

// Delete убирает запись из обоих индексов.
func (i *RefreshIndex) Delete(hash string) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.deleteLocked(hash)
}

// MarkRevoked помечает закэшированную запись отозванной.
// Промах — не ошибка: запись восстановится read-through'ом уже
// в отозванном состоянии. Поколение растёт в любом случае, чтобы
// параллельное заполнение индекса не вернуло доотзывную копию.
func (i *RefreshIndex) MarkRevoked(hash string, at time.Time) {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.gen++

	t, ok := i.byHash[hash]
	if !ok {
		return
	}

	t.Revoked = true
	revokedAt := at
	t.RevokedAt = &revokedAt
	i.byHash[hash] = t
}

// InvalidateUser выбрасывает все записи пользователя из индекса и
// возвращает их число. Используется после массового отзыва в БД:
// следующее обращение перечитает актуальное (отозванное) состояние.
func (i *RefreshIndex) InvalidateUser(userID int64) int {
	i.mu.Lock()
	defer i.mu.Unlock()

	i.gen++

	set, ok := i.byUser[userID]
	if !ok {
		return 0
	}

	n := len(set)
	for hash := range set {
		delete(i.byHash, hash)
	}
	delete(i.byUser, userID)

	return n
}

// Len — размер первичного индекса (для тестов и метрик).
func (i *RefreshIndex) Len() int {
	i.mu.RLock()
	defer i.mu.RUnlock()

	return len(i.byHash)
}

func (i *RefreshIndex) putLocked(t models.RefreshToken) {
	i.byHash[t.TokenHash] = t

	set, ok := i.byUser[t.UserID]
	if !ok {
		set = make(map[string]struct{})
		i.byUser[t.UserID] = set
	}
	set[t.TokenHash] = struct{}{}
}

func (i *RefreshIndex) deleteLocked(hash string) {
	t, ok := i.byHash[hash]
	if !ok {
		return
	}

	delete(i.byHash, hash)
	if set, ok := i.byUser[t.UserID]; ok {
		delete(set, hash)
		if len(set) == 0 {
			delete(i.byUser, t.UserID)
		}
	}
}
