package spark

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gciolli/worker-spark/internal/config"
	"github.com/gciolli/worker-spark/internal/telemetry"
)

// Querier — транзакционная возможность выполнения запросов.
// Реализуется pgx.Tx; в тестах подменяется фейком.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
}

// lookupSQL проверяет существование процедуры в каталоге.
// LIMIT 1: нужен только факт "хотя бы одно совпадение есть",
// перегрузки по сигнатурам не различаются.
const lookupSQL = `
	SELECT 1
	FROM pg_proc p
	JOIN pg_namespace n ON p.pronamespace = n.oid
	WHERE n.nspname = $1 AND p.proname = $2
	LIMIT 1
`

// Invoker выполняет один check-and-invoke шаг внутри чужой транзакции.
type Invoker struct {
	logger *slog.Logger
}

// NewInvoker создаёт новый Invoker.
func NewInvoker(logger *slog.Logger) *Invoker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Invoker{logger: logger}
}

// Fire проверяет, существует ли процедура cfg.Schema.cfg.Procedure,
// и вызывает её без аргументов, отбрасывая результат.
//
// Отсутствие процедуры — не ошибка: воркер молча пропускает цикл.
// Любая ошибка запроса — фатальная: она не ретраится, а поднимается
// наверх, чтобы процесс завершился.
func (inv *Invoker) Fire(ctx context.Context, q Querier, cfg config.Config) error {
	var one int
	err := q.QueryRow(ctx, lookupSQL, cfg.Schema, cfg.Procedure).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		inv.logger.Debug("spark worker: procedure not found",
			"schema", cfg.Schema,
			"procedure", cfg.Procedure,
		)
		telemetry.ProcedureMissing.Inc()
		return nil
	}
	if err != nil {
		return fatalf("look up procedure", err)
	}

	call := fmt.Sprintf("SELECT %s()", pgx.Identifier{cfg.Schema, cfg.Procedure}.Sanitize())

	inv.logger.Debug("spark worker: firing the procedure",
		"schema", cfg.Schema,
		"procedure", cfg.Procedure,
	)
	if _, err := q.Exec(ctx, call); err != nil {
		return fatalf("fire procedure", err)
	}

	telemetry.Invocations.Inc()
	telemetry.LastFire.SetToCurrentTime()
	return nil
}
