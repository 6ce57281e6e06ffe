package cache

import (
	"sync"
	"time"
)

// RevokedSet — in-memory множество отозванных access-токенов.
// Значение элемента — скопированный exp токена: после него запись
// бесполезна и вычищается лениво при обращениях, так что память
// ограничена числом живых отзывов, а не историей.
type RevokedSet struct {
	mu sync.RWMutex
	m  map[string]time.Time
}

// NewRevokedSet создаёт пустое множество.
func NewRevokedSet() *RevokedSet {
	return &RevokedSet{m: make(map[string]time.Time)}
}

// Add помечает хэш токена отозванным до expiresAt.
func (s *RevokedSet) Add(hash string, expiresAt time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.m[hash] = expiresAt
}

// Contains проверяет наличие хэша. Протухшую запись убирает попутно.
func (s *RevokedSet) Contains(hash string, now time.Time) bool {
	s.mu.RLock()
	exp, ok := s.m[hash]
	s.mu.RUnlock()

	if !ok {
		return false
	}

	if !now.Before(exp) {
		s.mu.Lock()
		// Перепроверка под write-lock: запись могли успеть обновить.
		if exp2, ok2 := s.m[hash]; ok2 && !now.Before(exp2) {
			delete(s.m, hash)
		}
		s.mu.Unlock()

		return false
	}

	return true
}

// Len — размер множества (для тестов и метрик).
func (s *RevokedSet) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.m)
}
