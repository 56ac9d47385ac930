package signals

import (
	"sync"
	"testing"
	"time"
)

func TestConsumeReload_ReadsAndClears(t *testing.T) {
	f := New()

	if f.ConsumeReload() {
		t.Fatal("reload should not be set initially")
	}

	f.RequestReload()

	if !f.ConsumeReload() {
		t.Fatal("reload should be set after RequestReload")
	}
	if f.ConsumeReload() {
		t.Fatal("reload should be cleared after consume")
	}
}

func TestShutdown_IsSticky(t *testing.T) {
	f := New()

	if f.ShutdownRequested() {
		t.Fatal("shutdown should not be set initially")
	}

	f.RequestShutdown()

	// Повторные чтения не сбрасывают флаг.
	for i := 0; i < 3; i++ {
		if !f.ShutdownRequested() {
			t.Fatal("shutdown flag must stay set")
		}
	}
}

func TestRequest_WakesWaiter(t *testing.T) {
	f := New()

	done := make(chan struct{})
	go func() {
		defer close(done)
		select {
		case <-f.Wake():
		case <-time.After(2 * time.Second):
			t.Error("waiter was not woken")
		}
	}()

	f.RequestReload()
	<-done
}

func TestRequest_NeverBlocks(t *testing.T) {
	f := New()

	// Никто не читает wake-канал; уведомления всё равно
	// должны завершаться мгновенно.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			f.RequestReload()
			f.RequestShutdown()
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("notification context blocked on wake channel")
	}
}

func TestConcurrentNotifiers(t *testing.T) {
	f := New()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				f.RequestReload()
			}
		}()
	}

	// Потребитель работает параллельно с писателями.
	stop := make(chan struct{})
	go func() {
		for {
			select {
			case <-stop:
				return
			case <-f.Wake():
				f.ConsumeReload()
			}
		}
	}()

	wg.Wait()
	close(stop)

	// Последний RequestReload мог остаться непотреблённым — это
	// допустимо, цикл заберёт его на следующем пробуждении.
}
