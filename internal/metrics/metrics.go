// metrics — prometheus-счётчики ядра сессий.
// Регистрируются в default-реестре и отдаются ops-сервером на /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// SessionsIssued — выпуски сессий (login/registration).
	SessionsIssued = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "session_core",
		Name:      "sessions_issued_total",
		Help:      "Total number of issued sessions (access+refresh pairs).",
	})

	// Rotations — ротации access-токенов по исходу.
	Rotations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session_core",
		Name:      "rotations_total",
		Help:      "Access token rotations by outcome.",
	}, []string{"outcome"}) // ok | invalid | expired | user_inactive | error

	// Revocations — отзывы по виду (access/refresh/all).
	Revocations = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session_core",
		Name:      "revocations_total",
		Help:      "Token revocations by kind.",
	}, []string{"kind"})

	// RevocationCheckDenied — fail-closed отказы: хранилище не ответило,
	// токен сочтён отозванным.
	RevocationCheckDenied = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "session_core",
		Name:      "revocation_check_denied_total",
		Help:      "Revocation checks denied due to storage uncertainty (fail-closed).",
	})

	// CleanupDeleted — удалённые janitor'ом строки по хранилищу.
	CleanupDeleted = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "session_core",
		Name:      "cleanup_deleted_total",
		Help:      "Rows deleted by the cleanup janitor.",
	}, []string{"store"}) // refresh | revoked

	// CleanupDuration — длительность прохода чистки.
	CleanupDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "session_core",
		Name:      "cleanup_pass_duration_seconds",
		Help:      "Duration of a cleanup pass.",
		Buckets:   prometheus.DefBuckets,
	})
)
