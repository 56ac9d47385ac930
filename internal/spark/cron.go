package spark

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/gciolli/worker-spark/internal/config"
)

// cronParser — парсер cron-выражений, стандартные пять полей.
var cronParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)

// NextWait возвращает длительность ожидания до следующей вспышки.
//
// Если задано cron-выражение, пауза считается до ближайшего времени
// по расписанию; иначе — фиксированные Naptime секунд. Невалидный cron
// сюда не доходит: он отбрасывается валидатором при загрузке снимка.
func NextWait(cfg config.Config, from time.Time) time.Duration {
	if cfg.Cron != "" {
		if sched, err := cronParser.Parse(cfg.Cron); err == nil {
			if d := sched.Next(from).Sub(from); d > 0 {
				return d
			}
		}
	}
	return time.Duration(cfg.Naptime) * time.Second
}

// ValidateConfig — валидатор снимка конфигурации для config.Store.
func ValidateConfig(cfg config.Config) error {
	if cfg.Cron == "" {
		return nil
	}
	if _, err := cronParser.Parse(cfg.Cron); err != nil {
		return fmt.Errorf("invalid cron expression %q: %w", cfg.Cron, err)
	}
	return nil
}
