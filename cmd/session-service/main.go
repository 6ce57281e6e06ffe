package main

import (
	"context"
	"errors"
	"flag"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pribylovaa/go-session-core/internal/auth"
	"github.com/pribylovaa/go-session-core/internal/cache"
	"github.com/pribylovaa/go-session-core/internal/cleanup"
	"github.com/pribylovaa/go-session-core/internal/config"
	"github.com/pribylovaa/go-session-core/internal/events"
	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
	"github.com/pribylovaa/go-session-core/internal/service"
	"github.com/pribylovaa/go-session-core/internal/storage/postgres"
	"github.com/pribylovaa/go-session-core/internal/store"
	"github.com/pribylovaa/go-session-core/internal/token"
	transport "github.com/pribylovaa/go-session-core/internal/transport/http"
)

// Константы для определения окружения.
const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	var configPath string
	flag.StringVar(&configPath, "config", "", "path to config file")
	flag.Parse()

	cfg := config.MustLoad(configPath)

	lg := setupLogger(cfg.Env)
	slog.SetDefault(lg)
	lg.Info("starting application", "env", cfg.Env)

	// Корневой контекст по сигналам; логгер едет в контексте
	// до janitor'а и подписчиков шины.
	rootCtx, rootCancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	rootCtx = log.Into(rootCtx, lg)

	// Подключение к БД c таймаутом.
	dbCtx, dbCancel := context.WithTimeout(rootCtx, 10*time.Second)
	str, err := postgres.New(dbCtx, cfg.DB.DatabaseURL)
	dbCancel()
	if err != nil {
		lg.Error("postgres_connect_failed", slog.String("err", err.Error()))
		rootCancel()
		os.Exit(1)
	}
	lg.Info("postgres_connected")

	// Сборка ядра: кодек, store'ы, сервис токенов, оркестратор, шина.
	codec := token.New(cfg.Tokens.Secret, cfg.Tokens.Issuer, cfg.Tokens.AccessTokenTTL)
	refreshStore := store.NewRefreshStore(str, cfg.Tokens.RefreshTokenTTL)
	revocationStore := store.NewRevocationStore(str)

	if cfg.Redis.RedisURL != "" {
		mirror, err := cache.NewRedisMirror(cfg.Redis.RedisURL, "")
		if err != nil {
			lg.Error("redis_connect_failed", slog.String("err", err.Error()))
			rootCancel()
			str.Close()
			os.Exit(1)
		}
		defer func() { _ = mirror.Close() }()
		revocationStore.SetMirror(mirror)
		lg.Info("revocation_mirror_enabled")
	}

	bus := events.New()
	srvc := service.New(codec, refreshStore, revocationStore, str)
	orch := auth.New(srvc, str, auth.BcryptHasher{}, bus)

	janitor := cleanup.New(refreshStore, revocationStore, bus, cfg.Cleanup.Interval, cfg.Cleanup.Timeout)

	// Подписчики шины: журнал активности + внеплановая чистка после logout_all.
	bus.Subscribe(models.EventLogin, auditSubscriber(lg))
	bus.Subscribe(models.EventLogout, auditSubscriber(lg))
	bus.Subscribe(models.EventLogoutAll, auditSubscriber(lg))
	bus.Subscribe(models.EventTokenRotated, auditSubscriber(lg))
	bus.Subscribe(models.EventPasswordChanged, auditSubscriber(lg))
	bus.Subscribe(models.EventLogoutAll, func(ctx context.Context, e models.AuthEvent) error {
		janitor.Kick()
		return nil
	})

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		janitor.Run(rootCtx)
	}()
	lg.Info("cleanup_janitor_started", "interval", cfg.Cleanup.Interval.String())

	// HTTP-сервер: ops-эндпойнты + API жизненного цикла сессий.
	var ready int32 // 0 — not ready; 1 — ready
	httpAddr := cfg.HTTP.Addr()

	router := chi.NewRouter()
	router.Get("/livez", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	router.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if atomic.LoadInt32(&ready) == 1 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
			return
		}
		http.Error(w, "not ready", http.StatusServiceUnavailable)
	})
	router.Handle("/metrics", promhttp.Handler())
	router.Mount("/api", transport.NewRouter(orch, transport.Options{
		Logger:  lg,
		Timeout: cfg.Timeouts.Service,
	}))

	httpSrv := &http.Server{
		Addr:              httpAddr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		lg.Info("http_listen_start", "addr", httpAddr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.Error("http_serve_failed", slog.String("err", err.Error()))
		}
	}()

	atomic.StoreInt32(&ready, 1)

	// Ожидание сигнала завершения.
	<-rootCtx.Done()
	lg.Info("shutdown_requested")

	atomic.StoreInt32(&ready, 0)

	// Грейсфул остановка HTTP и janitor'а.
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	_ = httpSrv.Shutdown(shutdownCtx)
	shutdownCancel()

	rootCancel()
	wg.Wait()
	str.Close()

	lg.Info("service_stopped")
}

// auditSubscriber — journaling-подписчик: события аутентификации в лог.
func auditSubscriber(lg *slog.Logger) func(ctx context.Context, e models.AuthEvent) error {
	return func(_ context.Context, e models.AuthEvent) error {
		attrs := []any{
			slog.String("event_id", e.ID.String()),
			slog.String("kind", string(e.Kind)),
			slog.Int64("user_id", e.UserID),
			slog.Time("at", e.At),
		}
		for k, v := range e.Payload {
			attrs = append(attrs, slog.String(k, v))
		}
		lg.Info("auth_event", attrs...)
		return nil
	}
}

// setupLogger настраивает slog по окружению.
func setupLogger(env string) *slog.Logger {
	var lg *slog.Logger

	switch env {
	case envLocal:
		lg = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envDev:
		lg = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		lg = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		lg = slog.New(
			slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	}

	return lg
}
