package spark

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gciolli/worker-spark/internal/config"
	"github.com/gciolli/worker-spark/internal/signals"
	"github.com/gciolli/worker-spark/internal/telemetry"
)

// DB — возможность открыть транзакцию. Реализуется *pgxpool.Pool.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// wakeCause — причина пробуждения из таймированного ожидания.
type wakeCause int

const (
	wakeTimeout wakeCause = iota
	wakeSignal
	wakeHostDeath
	wakeStop
)

func (c wakeCause) String() string {
	switch c {
	case wakeTimeout:
		return "timeout"
	case wakeSignal:
		return "signal"
	case wakeHostDeath:
		return "host_death"
	default:
		return "stop"
	}
}

// Loop — основной цикл воркера: Waiting → {Reloading} → Executing → Waiting.
//
// Цикл однопоточный: весь жизненный цикл транзакции принадлежит одной
// итерации, два Executing никогда не пересекаются во времени.
type Loop struct {
	db       DB
	store    *config.Store
	flags    *signals.Flags
	invoker  *Invoker
	hostDead <-chan struct{}
	logger   *slog.Logger
}

// Config — конфигурация Loop.
type Config struct {
	DB    DB
	Store *config.Store
	Flags *signals.Flags

	// Invoker (опционально; если nil — используется NewInvoker).
	Invoker *Invoker

	// HostDead — канал, закрываемый watchdog'ом при смерти сервера.
	HostDead <-chan struct{}

	Logger *slog.Logger
}

// New создаёт новый Loop.
func New(cfg Config) *Loop {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	invoker := cfg.Invoker
	if invoker == nil {
		invoker = NewInvoker(logger)
	}

	return &Loop{
		db:       cfg.DB,
		store:    cfg.Store,
		flags:    cfg.Flags,
		invoker:  invoker,
		hostDead: cfg.HostDead,
		logger:   logger,
	}
}

// Run выполняет цикл до запроса завершения.
//
// Возвращает nil при graceful shutdown, ErrHostLost при смерти сервера
// и *FatalError при невосстановимой ошибке цикла. Вызывающий решает,
// какие пути выхода получают какой exit-код; Run сам процесс не завершает.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Info("spark worker: start")

	for !l.flags.ShutdownRequested() {
		cause := l.wait(ctx, NextWait(l.store.Current(), time.Now()))

		switch cause {
		case wakeHostDeath:
			// Аварийный выход: хост умер, ресурсы вернёт ОС.
			return ErrHostLost
		case wakeStop:
			l.logger.Info("spark worker: stop")
			return nil
		}

		telemetry.Wakeups.WithLabelValues(cause.String()).Inc()

		// Reload-чекпоинт: единственное место, где новый снимок
		// конфигурации становится активным.
		if l.flags.ConsumeReload() {
			if err := l.store.Reload(); err != nil {
				l.logger.Error("config reload failed, keeping previous", "error", err)
				telemetry.ConfigReloads.WithLabelValues("error").Inc()
			} else {
				l.logger.Info("configuration reloaded")
				telemetry.ConfigReloads.WithLabelValues("ok").Inc()
			}
		}

		// Завершение, запрошенное во время ожидания, не начинает
		// новый Executing.
		if l.flags.ShutdownRequested() {
			break
		}

		if err := l.cycle(ctx); err != nil {
			return err
		}
	}

	l.logger.Info("spark worker: stop")
	return nil
}

// wait блокируется до истечения паузы, пробуждения флагами,
// смерти хоста или отмены ctx — что наступит раньше.
func (l *Loop) wait(ctx context.Context, d time.Duration) wakeCause {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return wakeTimeout
	case <-l.flags.Wake():
		return wakeSignal
	case <-l.hostDead:
		return wakeHostDeath
	case <-ctx.Done():
		return wakeStop
	}
}

// cycle выполняет ровно один check-and-invoke шаг в собственной
// транзакции. Транзакция освобождается на каждом пути выхода:
// commit при успехе, rollback перед подъёмом фатальной ошибки.
func (l *Loop) cycle(ctx context.Context) error {
	cfg := l.store.Current()
	logger := telemetry.WithCycleID(l.logger, uuid.NewString())
	start := time.Now()

	tx, err := l.db.Begin(ctx)
	if err != nil {
		return fatalf("begin transaction", err)
	}

	logger.Debug("spark worker: looking for the procedure",
		"schema", cfg.Schema,
		"procedure", cfg.Procedure,
	)

	if err := l.invoker.Fire(ctx, tx, cfg); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}

	if err := tx.Commit(ctx); err != nil {
		_ = tx.Rollback(ctx)
		return fatalf("commit transaction", err)
	}

	telemetry.CycleDuration.Observe(time.Since(start).Seconds())
	return nil
}
