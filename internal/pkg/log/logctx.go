// log — прокидывание request-scoped логгера через context.
//
// Сервис и фоновые задачи не держат логгер в полях структур:
// он кладётся в контекст на входе (ops-сервер, janitor) и достаётся
// через From в каждой операции.
package log

import (
	"context"
	"log/slog"
)

type ctxKey struct{}

// Into кладёт логгер в контекст.
func Into(ctx context.Context, l *slog.Logger) context.Context {
	return context.WithValue(ctx, ctxKey{}, l)
}

// From достаёт логгер из контекста (или возвращает slog.Default()).
func From(ctx context.Context) *slog.Logger {
	if v := ctx.Value(ctxKey{}); v != nil {
		if l, ok := v.(*slog.Logger); ok && l != nil {
			return l
		}
	}

	return slog.Default()
}

// WithOp возвращает логгер из контекста с уже навешенным атрибутом op.
// Сокращает типовой паттерн lg := log.From(ctx); lg.Error(..., "op", op).
func WithOp(ctx context.Context, op string) *slog.Logger {
	return From(ctx).With(slog.String("op", op))
}
