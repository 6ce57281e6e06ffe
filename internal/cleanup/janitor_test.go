package cleanup

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pribylovaa/go-session-core/internal/events"
	"github.com/pribylovaa/go-session-core/internal/models"
)

// countingPruner считает вызовы и отдаёт фиксированный результат.
type countingPruner struct {
	calls   atomic.Int64
	deleted int64
	err     error
}

func (p *countingPruner) DeleteExpired(_ context.Context, _ time.Time) (int64, error) {
	p.calls.Add(1)
	if p.err != nil {
		return 0, p.err
	}
	return p.deleted, nil
}

func TestJanitor_KickTriggersPass(t *testing.T) {
	t.Parallel()

	refresh := &countingPruner{deleted: 2}
	revoked := &countingPruner{deleted: 1}
	// Интервал заведомо больше длительности теста: сработать
	// может только Kick.
	j := New(refresh, revoked, nil, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		j.Run(ctx)
		close(done)
	}()

	j.Kick()
	require.Eventually(t, func() bool {
		return refresh.calls.Load() == 1 && revoked.calls.Load() == 1
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("janitor did not stop after context cancel")
	}
}

func TestJanitor_TickerTriggersPasses(t *testing.T) {
	t.Parallel()

	refresh := &countingPruner{}
	revoked := &countingPruner{}
	j := New(refresh, revoked, nil, 20*time.Millisecond, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	require.Eventually(t, func() bool {
		return refresh.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}

func TestJanitor_PublishesCompletionEvent(t *testing.T) {
	t.Parallel()

	refresh := &countingPruner{deleted: 5}
	revoked := &countingPruner{deleted: 3}

	bus := events.New()
	got := make(chan models.AuthEvent, 1)
	bus.Subscribe(models.EventCleanupCompleted, func(_ context.Context, e models.AuthEvent) error {
		select {
		case got <- e:
		default:
		}
		return nil
	})

	j := New(refresh, revoked, bus, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)
	j.Kick()

	select {
	case e := <-got:
		require.Equal(t, "5", e.Payload["refresh_deleted"])
		require.Equal(t, "3", e.Payload["revoked_deleted"])
	case <-time.After(2 * time.Second):
		t.Fatal("cleanup event was not published")
	}
}

func TestJanitor_PrunerErrorDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	refresh := &countingPruner{err: errors.New("db down")}
	revoked := &countingPruner{deleted: 1}
	j := New(refresh, revoked, nil, time.Hour, 0)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go j.Run(ctx)

	// Два прохода подряд: сбой первого стора не мешает ни второму
	// стору, ни следующему проходу.
	j.Kick()
	require.Eventually(t, func() bool {
		return revoked.calls.Load() >= 1
	}, 2*time.Second, 10*time.Millisecond)

	j.Kick()
	require.Eventually(t, func() bool {
		return revoked.calls.Load() >= 2
	}, 2*time.Second, 10*time.Millisecond)
}
