package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"sync/atomic"

	"gopkg.in/yaml.v3"
)

// Значения по умолчанию.
const (
	// DefaultNaptime — пауза между вспышками в секундах.
	DefaultNaptime = 10

	// MinNaptime — нижняя граница паузы.
	MinNaptime = 1
)

// Config — снимок конфигурации воркера.
//
// Снимок иммутабелен: новое значение вступает в силу только когда
// основной цикл явно вызывает Reload на своём reload-чекпоинте.
type Config struct {
	// Naptime — пауза между вспышками в секундах (>= 1).
	Naptime int `yaml:"naptime"`

	// Cron — опциональное cron-выражение; если задано,
	// имеет приоритет над Naptime.
	Cron string `yaml:"cron"`

	// Database — DSN сервера PostgreSQL (postgresql://...).
	// Требуется для открытия соединения.
	Database string `yaml:"database"`

	// Schema — имя схемы, в которой ищется процедура.
	// Не валидируется: пустое или несуществующее имя просто
	// никогда не найдётся в каталоге.
	Schema string `yaml:"schema"`

	// Procedure — имя процедуры. Так же не валидируется.
	Procedure string `yaml:"procedure"`
}

// Store держит активный снимок конфигурации.
//
// Current всегда возвращает последний успешно загруженный снимок;
// неудачный Reload оставляет предыдущий снимок активным.
type Store struct {
	path     string
	validate func(Config) error
	cur      atomic.Pointer[Config]
}

// NewStore создаёт Store для указанного файла конфигурации.
// Пустой path означает конфигурацию только из переменных окружения.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// SetValidator устанавливает проверку, выполняемую перед фиксацией
// нового снимка. Вызывается до Load.
func (s *Store) SetValidator(fn func(Config) error) {
	s.validate = fn
}

// Load читает конфигурацию и делает её активным снимком.
func (s *Store) Load() (Config, error) {
	cfg, err := s.parse()
	if err != nil {
		return Config{}, err
	}
	s.cur.Store(&cfg)
	return cfg, nil
}

// Reload перечитывает конфигурацию и атомарно заменяет активный снимок.
// При ошибке активным остаётся предыдущий снимок.
func (s *Store) Reload() error {
	cfg, err := s.parse()
	if err != nil {
		return err
	}
	s.cur.Store(&cfg)
	return nil
}

// Current возвращает активный снимок.
func (s *Store) Current() Config {
	if p := s.cur.Load(); p != nil {
		return *p
	}
	return Config{Naptime: DefaultNaptime}
}

// Path возвращает путь к файлу конфигурации ("" — файла нет).
func (s *Store) Path() string {
	return s.path
}

// parse собирает Config: значения по умолчанию, затем YAML-файл,
// затем переменные окружения.
func (s *Store) parse() (Config, error) {
	cfg := Config{Naptime: DefaultNaptime}

	if s.path != "" {
		if err := readFile(s.path, &cfg); err != nil {
			return Config{}, err
		}
	}

	if err := applyEnv(&cfg); err != nil {
		return Config{}, err
	}

	if cfg.Naptime < MinNaptime {
		cfg.Naptime = MinNaptime
	}

	if s.validate != nil {
		if err := s.validate(cfg); err != nil {
			return Config{}, err
		}
	}

	return cfg, nil
}

// readFile читает YAML-файл в cfg. Неизвестные ключи — ошибка:
// опечатка в имени опции не должна молча игнорироваться.
func readFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		Spark Config `yaml:"spark"`
	}
	raw.Spark = *cfg

	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		// Пустой файл — не ошибка, остаются значения по умолчанию.
		if errors.Is(err, io.EOF) {
			return nil
		}
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	*cfg = raw.Spark
	return nil
}

// applyEnv накладывает переменные окружения SPARK_* поверх cfg.
func applyEnv(cfg *Config) error {
	if v := os.Getenv("SPARK_NAPTIME"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("SPARK_NAPTIME: %w", err)
		}
		cfg.Naptime = n
	}
	if v := os.Getenv("SPARK_CRON"); v != "" {
		cfg.Cron = v
	}
	if v := os.Getenv("SPARK_DATABASE"); v != "" {
		cfg.Database = v
	}
	if v := os.Getenv("SPARK_SCHEMA"); v != "" {
		cfg.Schema = v
	}
	if v := os.Getenv("SPARK_PROCEDURE"); v != "" {
		cfg.Procedure = v
	}
	return nil
}
