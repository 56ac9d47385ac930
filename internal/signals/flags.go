package signals

import "sync/atomic"

// Flags — процессные флаги уведомлений.
//
// Пишутся из контекста уведомления (обработчик OS-сигнала, watcher
// конфиг-файла, consumer контрольной очереди), читаются основным циклом.
// В контексте уведомления не выполняется никакой работы: только установка
// флага и пробуждение цикла.
type Flags struct {
	reload   atomic.Bool
	shutdown atomic.Bool

	// wake — буферизованный канал на 1 элемент; повторные
	// пробуждения до того, как цикл проснулся, схлопываются.
	wake chan struct{}
}

// New создаёт новый набор флагов.
func New() *Flags {
	return &Flags{wake: make(chan struct{}, 1)}
}

// RequestReload помечает, что нужно перечитать конфигурацию,
// и будит основной цикл.
func (f *Flags) RequestReload() {
	f.reload.Store(true)
	f.notify()
}

// RequestShutdown помечает, что нужно завершить работу,
// и будит основной цикл. Флаг не сбрасывается.
func (f *Flags) RequestShutdown() {
	f.shutdown.Store(true)
	f.notify()
}

// ConsumeReload атомарно читает и сбрасывает флаг reload.
func (f *Flags) ConsumeReload() bool {
	return f.reload.Swap(false)
}

// ShutdownRequested проверяет, запрошено ли завершение.
func (f *Flags) ShutdownRequested() bool {
	return f.shutdown.Load()
}

// Wake — канал пробуждения для таймированного ожидания цикла.
func (f *Flags) Wake() <-chan struct{} {
	return f.wake
}

// notify будит цикл, не блокируясь, если тот ещё не забрал
// предыдущее пробуждение.
func (f *Flags) notify() {
	select {
	case f.wake <- struct{}{}:
	default:
	}
}
