package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики spark-воркера. Экспортируются на /metrics.
var (
	// Wakeups — количество пробуждений основного цикла по причинам
	// (timeout, signal).
	Wakeups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_wakeups_total",
		Help: "Number of main loop wakeups by cause.",
	}, []string{"cause"})

	// Invocations — количество успешных вызовов процедуры.
	Invocations = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_invocations_total",
		Help: "Number of procedure invocations fired.",
	})

	// ProcedureMissing — количество циклов, в которых процедура
	// не найдена в каталоге. Это не ошибка, но знать о ней полезно.
	ProcedureMissing = promauto.NewCounter(prometheus.CounterOpts{
		Name: "spark_procedure_missing_total",
		Help: "Number of cycles where the target procedure was absent.",
	})

	// ConfigReloads — количество перезагрузок конфигурации.
	ConfigReloads = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "spark_config_reloads_total",
		Help: "Number of configuration reloads by result.",
	}, []string{"result"})

	// CycleDuration — длительность одного wake-цикла
	// (транзакция целиком: lookup + вызов + commit).
	CycleDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "spark_cycle_duration_seconds",
		Help:    "Duration of one check-and-invoke cycle.",
		Buckets: prometheus.DefBuckets,
	})

	// LastFire — unix-время последнего успешного вызова процедуры.
	LastFire = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "spark_last_fire_timestamp_seconds",
		Help: "Unix timestamp of the last successful invocation.",
	})
)
