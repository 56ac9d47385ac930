package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/gciolli/worker-spark/internal/config"
	"github.com/gciolli/worker-spark/internal/mq"
	"github.com/gciolli/worker-spark/internal/repo"
	"github.com/gciolli/worker-spark/internal/signals"
	"github.com/gciolli/worker-spark/internal/spark"
	"github.com/gciolli/worker-spark/internal/telemetry"
)

// runDaemon собирает воркер и крутит основной цикл до завершения.
//
// Возвращается только при graceful shutdown; оба фатальных пути
// (невосстановимая ошибка цикла, смерть сервера) завершают процесс
// с кодом 1 — дальше дело сервисного менеджера.
func runDaemon(cfgPath string, flags *signals.Flags) {
	// Инициализируем structured logging
	logger := telemetry.SetupLogger()
	logger.Info("starting worker-spark", "version", version)

	store := config.NewStore(cfgPath)
	store.SetValidator(spark.ValidateConfig)
	cfg, err := store.Load()
	if err != nil {
		logger.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// SIGHUP → reload. SIGTERM/SIGINT обрабатывает сервисная обёртка
	// через program.Stop. Обработчик только ставит флаг и будит цикл.
	hup := make(chan os.Signal, 1)
	signal.Notify(hup, syscall.SIGHUP)
	defer signal.Stop(hup)
	go func() {
		for range hup {
			flags.RequestReload()
		}
	}()

	// Изменение конфиг-файла на диске равнозначно SIGHUP.
	if cfgPath != "" {
		go func() {
			err := config.Watch(ctx, cfgPath, flags.RequestReload, logger)
			if err != nil && !errors.Is(err, context.Canceled) {
				logger.Warn("config watcher stopped", "error", err)
			}
		}()
	}

	// DB pool
	pool, err := repo.NewPool(ctx, cfg.Database)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	logger.Info("database connected")

	// Watchdog смерти хоста: закрытие канала — аварийный выход.
	hostDead := repo.WatchHost(ctx, pool, logger)

	// Контрольная очередь (опционально).
	if url := os.Getenv("SPARK_AMQP_URL"); url != "" {
		conn, err := mq.NewConnection(url, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, control queue disabled", "error", err)
		} else {
			defer conn.Close()
			logger.Info("control queue connected", "queue", mq.ControlQueue)

			consumer := mq.NewControlConsumer(conn, flags, logger)
			go func() {
				if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
					logger.Error("control consumer error", "error", err)
				}
			}()
		}
	}

	// HTTP mux: /healthz + /metrics
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	mux.Handle("/metrics", promhttp.Handler())

	port := ":9188"
	if v := os.Getenv("SPARK_METRICS_PORT"); v != "" {
		port = ":" + v
	}
	go func() {
		logger.Info("listening", "addr", port)
		if err := http.ListenAndServe(port, mux); err != nil {
			logger.Error("http server error", "error", err)
		}
	}()

	loop := spark.New(spark.Config{
		DB:       pool,
		Store:    store,
		Flags:    flags,
		HostDead: hostDead,
		Logger:   logger,
	})

	err = loop.Run(ctx)
	switch {
	case errors.Is(err, spark.ErrHostLost):
		// Хост умер: выходим немедленно, без очистки. Ресурсы
		// вернёт операционная система.
		logger.Error("database server lost, exiting immediately")
		os.Exit(1)
	case err != nil:
		logger.Error("spark worker failed", "error", err)
		cancel()
		pool.Close()
		os.Exit(1)
	}

	cancel()
	pool.Close()
	logger.Info("worker-spark stopped")
}
