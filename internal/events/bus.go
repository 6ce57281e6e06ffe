// events — синхронная in-process шина событий аутентификации.
//
// Side-эффекты (журнал активности, внеплановая чистка после
// logout_all) развязаны от сервиса токенов через подписку, а не
// через прямые вызовы. Никаких брокеров и очередей: один процесс,
// доставка в порядке регистрации.
package events

import (
	"context"
	"log/slog"
	"sync"

	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
)

// Handler — обработчик события. Ошибка логируется и не мешает
// остальным подписчикам.
type Handler func(ctx context.Context, e models.AuthEvent) error

// Bus — шина событий. Нулевое значение непригодно, создавать через New.
type Bus struct {
	mu   sync.RWMutex
	subs map[models.EventKind][]Handler
}

// New создаёт пустую шину.
func New() *Bus {
	return &Bus{subs: make(map[models.EventKind][]Handler)}
}

// Subscribe регистрирует обработчик на тип события. Обработчики
// вызываются в порядке регистрации. Подписка после старта публикаций
// допустима, но типовой сценарий — вся подписка при сборке процесса.
func (b *Bus) Subscribe(kind models.EventKind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.subs[kind] = append(b.subs[kind], h)
}

// Publish синхронно доставляет событие всем подписчикам его типа.
// Паника или ошибка одного подписчика логируется и не прерывает
// ни остальных, ни публикующего.
func (b *Bus) Publish(ctx context.Context, e models.AuthEvent) {
	b.mu.RLock()
	handlers := make([]Handler, len(b.subs[e.Kind]))
	copy(handlers, b.subs[e.Kind])
	b.mu.RUnlock()

	for _, h := range handlers {
		b.deliver(ctx, e, h)
	}
}

func (b *Bus) deliver(ctx context.Context, e models.AuthEvent, h Handler) {
	const op = "events.Publish"

	lg := log.WithOp(ctx, op)

	defer func() {
		if r := recover(); r != nil {
			lg.Error("event_subscriber_panic",
				slog.String("kind", string(e.Kind)),
				slog.Any("panic", r),
			)
		}
	}()

	if err := h(ctx, e); err != nil {
		lg.Error("event_subscriber_failed",
			slog.String("kind", string(e.Kind)),
			slog.Int64("user_id", e.UserID),
			slog.String("err", err.Error()),
		)
	}
}
