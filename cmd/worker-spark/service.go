package main

import (
	"os"
	"sync/atomic"
	"time"

	"github.com/kardianos/service"
	"github.com/spf13/cobra"

	"github.com/gciolli/worker-spark/internal/signals"
)

// serviceConfig — регистрация воркера в сервисном менеджере ОС.
//
// Restart=on-failure воспроизводит нужную политику восстановления:
// после аварийного выхода (fatal-ошибка цикла, смерть сервера) воркер
// перезапускается автоматически, graceful shutdown с кодом 0 рестарта
// не вызывает.
func serviceConfig(cfgPath string) *service.Config {
	var args []string
	if cfgPath != "" {
		args = append(args, "--config", cfgPath)
	}

	return &service.Config{
		Name:        "worker-spark",
		DisplayName: "spark worker",
		Description: "Periodically fires a stored procedure in a PostgreSQL database.",
		Arguments:   args,
		Option: service.KeyValue{
			"Restart": "on-failure",
		},
	}
}

// program — адаптер демона под service.Interface.
type program struct {
	cfgPath  string
	flags    *signals.Flags
	done     chan struct{}
	stopping atomic.Bool
}

func (p *program) Start(_ service.Service) error {
	go func() {
		runDaemon(p.cfgPath, p.flags)
		close(p.done)

		// Завершение пришло изнутри (terminate-уведомление из очереди):
		// сервисная обёртка сама не остановится, выходим напрямую.
		if !p.stopping.Load() {
			os.Exit(0)
		}
	}()
	return nil
}

func (p *program) Stop(_ service.Service) error {
	p.stopping.Store(true)
	p.flags.RequestShutdown()

	select {
	case <-p.done:
	case <-time.After(10 * time.Second):
	}
	return nil
}

// runService запускает демон либо выполняет управляющее действие
// (install, start, ...).
func runService(cfgPath, action string) error {
	prg := &program{
		cfgPath: cfgPath,
		flags:   signals.New(),
		done:    make(chan struct{}),
	}

	svc, err := service.New(prg, serviceConfig(cfgPath))
	if err != nil {
		return err
	}

	if action != "" {
		return service.Control(svc, action)
	}
	return svc.Run()
}

// newServiceCmd — подкоманда управления системным сервисом.
func newServiceCmd(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:       "service [install|uninstall|start|stop|restart]",
		Short:     "Manage the OS service registration",
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		ValidArgs: service.ControlAction[:],
		RunE: func(cmd *cobra.Command, args []string) error {
			return runService(*cfgPath, args[0])
		},
	}
}
