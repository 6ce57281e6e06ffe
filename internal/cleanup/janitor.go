// cleanup — фоновая чистка просроченных записей обоих хранилищ.
//
// Janitor удаляет только то, что уже непригодно по определению
// (expires_at в прошлом), поэтому ему не нужна линеаризация с живыми
// Rotate/Invalidate: он не держит никаких общих локов с путями запросов.
package cleanup

import (
	"context"
	"log/slog"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/pribylovaa/go-session-core/internal/events"
	"github.com/pribylovaa/go-session-core/internal/metrics"
	"github.com/pribylovaa/go-session-core/internal/models"
	"github.com/pribylovaa/go-session-core/internal/pkg/log"
)

// Pruner — то, что janitor умеет чистить.
type Pruner interface {
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// Janitor периодически (и по требованию через Kick) удаляет
// просроченные refresh-токены и записи чёрного списка.
type Janitor struct {
	refresh  Pruner
	revoked  Pruner
	bus      *events.Bus
	interval time.Duration
	timeout  time.Duration
	kick     chan struct{}
}

// New создаёт janitor. interval — период тика; timeout ограничивает
// один проход (0 — без ограничения).
func New(refresh, revoked Pruner, bus *events.Bus, interval, timeout time.Duration) *Janitor {
	return &Janitor{
		refresh:  refresh,
		revoked:  revoked,
		bus:      bus,
		interval: interval,
		timeout:  timeout,
		kick:     make(chan struct{}, 1),
	}
}

// Kick запрашивает внеплановый проход (используется подписчиком
// logout_all). Неблокирующий: если проход уже запрошен, второй сигнал
// не нужен — чистка идемпотентна.
func (j *Janitor) Kick() {
	select {
	case j.kick <- struct{}{}:
	default:
	}
}

// Run блокируется до отмены контекста. Таймер останавливается при
// выходе, незавершённых горутин не остаётся.
func (j *Janitor) Run(ctx context.Context) {
	t := time.NewTicker(j.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			j.pass(ctx)
		case <-j.kick:
			j.pass(ctx)
		}
	}
}

// pass — один проход чистки. Сбои логируются и не роняют процесс:
// следующий тик повторит попытку. Повторный проход безвреден.
func (j *Janitor) pass(ctx context.Context) {
	const op = "cleanup.pass"

	if j.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, j.timeout)
		defer cancel()
	}

	lg := log.WithOp(ctx, op)
	before := time.Now().UTC()
	timer := prometheus.NewTimer(metrics.CleanupDuration)
	defer timer.ObserveDuration()

	refreshDeleted, err := j.refresh.DeleteExpired(ctx, before)
	if err != nil {
		lg.Error("cleanup_refresh_failed",
			slog.String("err", err.Error()),
		)
	}

	revokedDeleted, err := j.revoked.DeleteExpired(ctx, before)
	if err != nil {
		lg.Error("cleanup_revoked_failed",
			slog.String("err", err.Error()),
		)
	}

	metrics.CleanupDeleted.WithLabelValues("refresh").Add(float64(refreshDeleted))
	metrics.CleanupDeleted.WithLabelValues("revoked").Add(float64(revokedDeleted))

	lg.Info("cleanup_pass_done",
		slog.Int64("refresh_deleted", refreshDeleted),
		slog.Int64("revoked_deleted", revokedDeleted),
	)

	if j.bus != nil {
		j.bus.Publish(ctx, models.NewEvent(models.EventCleanupCompleted, 0, map[string]string{
			"refresh_deleted": strconv.FormatInt(refreshDeleted, 10),
			"revoked_deleted": strconv.FormatInt(revokedDeleted, 10),
		}))
	}
}
