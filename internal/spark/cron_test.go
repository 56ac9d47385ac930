package spark

import (
	"testing"
	"time"

	"github.com/gciolli/worker-spark/internal/config"
)

func TestNextWait_FixedNaptime(t *testing.T) {
	cfg := config.Config{Naptime: 30}

	if d := NextWait(cfg, time.Now()); d != 30*time.Second {
		t.Errorf("expected 30s, got %v", d)
	}
}

func TestNextWait_CronOverridesNaptime(t *testing.T) {
	cfg := config.Config{
		Naptime: 10,
		Cron:    "0 3 * * *", // каждый день в 03:00
	}
	from := time.Date(2026, 8, 30, 2, 0, 0, 0, time.UTC)

	if d := NextWait(cfg, from); d != time.Hour {
		t.Errorf("expected 1h until 03:00, got %v", d)
	}
}

func TestNextWait_CronEveryFiveMinutes(t *testing.T) {
	cfg := config.Config{
		Naptime: 10,
		Cron:    "*/5 * * * *",
	}
	from := time.Date(2026, 8, 30, 12, 1, 0, 0, time.UTC)

	if d := NextWait(cfg, from); d != 4*time.Minute {
		t.Errorf("expected 4m until 12:05, got %v", d)
	}
}

func TestValidateConfig(t *testing.T) {
	if err := ValidateConfig(config.Config{Naptime: 10}); err != nil {
		t.Errorf("empty cron is valid: %v", err)
	}
	if err := ValidateConfig(config.Config{Cron: "*/5 * * * *"}); err != nil {
		t.Errorf("valid cron rejected: %v", err)
	}
	if err := ValidateConfig(config.Config{Cron: "every five minutes"}); err == nil {
		t.Error("invalid cron expression should be rejected")
	}
}
