// http — тонкий HTTP-слой над фасадом auth.Auth.
//
// Контроллеры админ-панели остаются снаружи: здесь только операции
// жизненного цикла сессий (login/refresh/logout/logout_all/validate)
// и унифицированный маппинг доменных ошибок в HTTP-статусы.
package http

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pribylovaa/go-session-core/internal/auth"
)

// Options — параметры сборки HTTP-роутера.
type Options struct {
	Logger  *slog.Logger
	Timeout time.Duration
}

// NewRouter собирает http.Handler с chi и подключёнными middleware/роутами.
func NewRouter(a *auth.Auth, opts Options) http.Handler {
	root := chi.NewRouter()

	// Middleware (внешний -> внутренний).
	root.Use(
		Recover(),            // безопасно ловим паники
		Logging(opts.Logger), // кладём request-scoped логгер в контекст и логируем
	)
	if opts.Timeout > 0 {
		root.Use(Timeout(opts.Timeout)) // общий дедлайн запроса
	}

	h := newHandlers(a)

	root.Post("/sessions/login", h.Login)
	root.Post("/sessions/refresh", h.Refresh)
	root.Post("/sessions/logout", h.Logout)
	root.Post("/sessions/logout_all", h.LogoutAll)
	root.Post("/sessions/validate", h.Validate)
	root.Post("/sessions/password", h.ChangePassword)

	return root
}
