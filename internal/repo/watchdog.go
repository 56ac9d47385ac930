package repo

import (
	"context"
	"log/slog"
	"time"
)

// Параметры watchdog'а. Порог в несколько подряд неудачных пингов
// отличает смерть сервера от единичной сетевой икоты.
const (
	watchdogInterval  = time.Second
	watchdogTimeout   = 2 * time.Second
	watchdogThreshold = 3
)

// Pinger — минимальная возможность проверить доступность сервера.
// Реализуется *pgxpool.Pool.
type Pinger interface {
	Ping(ctx context.Context) error
}

// WatchHost следит за доступностью сервера PostgreSQL и закрывает
// возвращённый канал, когда сервер признан умершим.
//
// Закрытие канала — это сигнал аварийного выхода для основного цикла:
// хост-сервер пропал, воркер должен немедленно завершиться и оставить
// освобождение ресурсов операционной системе.
func WatchHost(ctx context.Context, db Pinger, logger *slog.Logger) <-chan struct{} {
	return watchHost(ctx, db, logger, watchdogInterval, watchdogTimeout, watchdogThreshold)
}

func watchHost(ctx context.Context, db Pinger, logger *slog.Logger, interval, timeout time.Duration, threshold int) <-chan struct{} {
	dead := make(chan struct{})

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		failures := 0
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			pingCtx, cancel := context.WithTimeout(ctx, timeout)
			err := db.Ping(pingCtx)
			cancel()

			if err == nil {
				failures = 0
				continue
			}

			failures++
			logger.Warn("host ping failed",
				"failures", failures,
				"threshold", threshold,
				"error", err,
			)

			if failures >= threshold {
				logger.Error("database server lost")
				close(dead)
				return
			}
		}
	}()

	return dead
}
