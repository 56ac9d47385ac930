package spark

import (
	"errors"
	"fmt"
)

// ErrHostLost — сервер PostgreSQL признан умершим.
//
// Это аварийный выход: процесс завершается немедленно, с кодом 1 и без
// попыток освободить ресурсы. Перезапуск — ответственность сервисного
// менеджера.
var ErrHostLost = errors.New("database server lost")

// FatalError — невосстановимая ошибка цикла: запрос к каталогу или вызов
// процедуры завершился не так, как ожидалось.
//
// Внутри процесса не ретраится: ошибка поднимается из цикла, процесс
// завершается с кодом 1, восстановление — рестарт со стороны сервисного
// менеджера.
type FatalError struct {
	Op  string
	Err error
}

func (e *FatalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *FatalError) Unwrap() error {
	return e.Err
}

func fatalf(op string, err error) error {
	return &FatalError{Op: op, Err: err}
}
