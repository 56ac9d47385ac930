package spark

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/gciolli/worker-spark/internal/config"
	"github.com/gciolli/worker-spark/internal/signals"
)

// fakeDB считает транзакции и отслеживает их пересечение во времени.
type fakeDB struct {
	mu        sync.Mutex
	begins    int
	commits   int
	rollbacks int
	lookups   [][2]string

	beginErr  error
	lookupErr error
	execErr   error

	active    atomic.Int32
	maxActive atomic.Int32

	began chan struct{}
}

func newFakeDB() *fakeDB {
	return &fakeDB{began: make(chan struct{}, 64)}
}

func (db *fakeDB) Begin(ctx context.Context) (pgx.Tx, error) {
	if db.beginErr != nil {
		return nil, db.beginErr
	}

	n := db.active.Add(1)
	for {
		max := db.maxActive.Load()
		if n <= max || db.maxActive.CompareAndSwap(max, n) {
			break
		}
	}

	db.mu.Lock()
	db.begins++
	db.mu.Unlock()

	select {
	case db.began <- struct{}{}:
	default:
	}

	return &fakeTx{db: db}, nil
}

func (db *fakeDB) counts() (begins, commits, rollbacks int) {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.begins, db.commits, db.rollbacks
}

func (db *fakeDB) lastLookup() [2]string {
	db.mu.Lock()
	defer db.mu.Unlock()
	if len(db.lookups) == 0 {
		return [2]string{}
	}
	return db.lookups[len(db.lookups)-1]
}

// fakeTx реализует ту часть pgx.Tx, которую трогает цикл.
type fakeTx struct {
	pgx.Tx
	db *fakeDB
}

func (tx *fakeTx) QueryRow(_ context.Context, _ string, args ...any) pgx.Row {
	if len(args) == 2 {
		tx.db.mu.Lock()
		tx.db.lookups = append(tx.db.lookups, [2]string{args[0].(string), args[1].(string)})
		tx.db.mu.Unlock()
	}
	return fakeRow{err: tx.db.lookupErr}
}

func (tx *fakeTx) Exec(_ context.Context, _ string, _ ...any) (pgconn.CommandTag, error) {
	return pgconn.CommandTag{}, tx.db.execErr
}

func (tx *fakeTx) Commit(_ context.Context) error {
	tx.db.active.Add(-1)
	tx.db.mu.Lock()
	tx.db.commits++
	tx.db.mu.Unlock()
	return nil
}

func (tx *fakeTx) Rollback(_ context.Context) error {
	tx.db.active.Add(-1)
	tx.db.mu.Lock()
	tx.db.rollbacks++
	tx.db.mu.Unlock()
	return nil
}

type testLoop struct {
	loop     *Loop
	flags    *signals.Flags
	store    *config.Store
	hostDead chan struct{}
	db       *fakeDB
	result   chan error
}

func startLoop(t *testing.T, db *fakeDB, store *config.Store) *testLoop {
	t.Helper()

	if store == nil {
		store = config.NewStore("")
		if _, err := store.Load(); err != nil {
			t.Fatal(err)
		}
	}

	tl := &testLoop{
		flags:    signals.New(),
		store:    store,
		hostDead: make(chan struct{}),
		db:       db,
		result:   make(chan error, 1),
	}
	tl.loop = New(Config{
		DB:       db,
		Store:    store,
		Flags:    tl.flags,
		HostDead: tl.hostDead,
	})

	go func() {
		tl.result <- tl.loop.Run(context.Background())
	}()

	return tl
}

func (tl *testLoop) waitResult(t *testing.T) error {
	t.Helper()
	select {
	case err := <-tl.result:
		return err
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not terminate")
		return nil
	}
}

func (tl *testLoop) waitBegin(t *testing.T) {
	t.Helper()
	select {
	case <-tl.db.began:
	case <-time.After(5 * time.Second):
		t.Fatal("no transaction was started")
	}
}

func TestRun_SignalWakeFiresOneCycle(t *testing.T) {
	db := newFakeDB()
	tl := startLoop(t, db, nil)

	tl.flags.RequestReload()
	tl.waitBegin(t)

	tl.flags.RequestShutdown()
	if err := tl.waitResult(t); err != nil {
		t.Fatalf("graceful shutdown must return nil, got %v", err)
	}

	begins, commits, rollbacks := db.counts()
	if begins != 1 || commits != 1 || rollbacks != 0 {
		t.Errorf("expected one committed cycle, got begins=%d commits=%d rollbacks=%d",
			begins, commits, rollbacks)
	}
}

func TestRun_ShutdownWhileWaitingSkipsExecute(t *testing.T) {
	db := newFakeDB()
	tl := startLoop(t, db, nil)

	tl.flags.RequestShutdown()
	if err := tl.waitResult(t); err != nil {
		t.Fatalf("graceful shutdown must return nil, got %v", err)
	}

	if begins, _, _ := db.counts(); begins != 0 {
		t.Errorf("shutdown during Waiting must not start an Executing phase, begins=%d", begins)
	}
}

func TestRun_HostDeathBypassesCleanup(t *testing.T) {
	db := newFakeDB()
	tl := startLoop(t, db, nil)

	close(tl.hostDead)

	err := tl.waitResult(t)
	if !errors.Is(err, ErrHostLost) {
		t.Fatalf("expected ErrHostLost, got %v", err)
	}

	begins, commits, rollbacks := db.counts()
	if begins != 0 || commits != 0 || rollbacks != 0 {
		t.Errorf("host death must not touch transactions, got begins=%d commits=%d rollbacks=%d",
			begins, commits, rollbacks)
	}
}

func TestRun_FatalErrorRollsBackAndPropagates(t *testing.T) {
	db := newFakeDB()
	db.execErr = errors.New("unexpected result")
	tl := startLoop(t, db, nil)

	tl.flags.RequestReload()

	err := tl.waitResult(t)
	var fatal *FatalError
	if !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}

	_, commits, rollbacks := db.counts()
	if commits != 0 || rollbacks != 1 {
		t.Errorf("fatal path must roll back the transaction, commits=%d rollbacks=%d",
			commits, rollbacks)
	}
}

func TestRun_BeginFailureIsFatal(t *testing.T) {
	db := newFakeDB()
	db.beginErr = errors.New("connection refused")
	tl := startLoop(t, db, nil)

	tl.flags.RequestReload()

	var fatal *FatalError
	if err := tl.waitResult(t); !errors.As(err, &fatal) {
		t.Fatalf("expected FatalError, got %v", err)
	}
}

func TestRun_ReloadTakesEffectNextCycle(t *testing.T) {
	path := filepath.Join(t.TempDir(), "worker-spark.yaml")
	if err := os.WriteFile(path, []byte("spark:\n  procedure: before\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	store := config.NewStore(path)
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	db := newFakeDB()
	db.lookupErr = pgx.ErrNoRows
	tl := startLoop(t, db, store)

	// Первый цикл со старым снимком.
	tl.flags.RequestReload() // файл ещё не менялся: reload вернёт то же самое
	tl.waitBegin(t)

	if err := os.WriteFile(path, []byte("spark:\n  procedure: after\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	tl.flags.RequestReload()
	tl.waitBegin(t)

	tl.flags.RequestShutdown()
	if err := tl.waitResult(t); err != nil {
		t.Fatal(err)
	}

	if got := db.lastLookup(); got[1] != "after" {
		t.Errorf("second cycle must see the reloaded procedure name, got %q", got[1])
	}
}

func TestRun_CyclesNeverOverlap(t *testing.T) {
	db := newFakeDB()
	tl := startLoop(t, db, nil)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 25; j++ {
				tl.flags.RequestReload()
				time.Sleep(time.Millisecond)
			}
		}()
	}
	wg.Wait()

	tl.flags.RequestShutdown()
	if err := tl.waitResult(t); err != nil {
		t.Fatal(err)
	}

	if max := db.maxActive.Load(); max > 1 {
		t.Errorf("executing phases overlapped: %d transactions were active at once", max)
	}
}

func TestRun_TimeoutWakeHonorsNaptime(t *testing.T) {
	t.Setenv("SPARK_NAPTIME", "1")

	db := newFakeDB()
	store := config.NewStore("")
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	start := time.Now()
	tl := startLoop(t, db, store)

	tl.waitBegin(t)
	if elapsed := time.Since(start); elapsed < 999*time.Millisecond {
		t.Errorf("loop woke after %v, expected to wait at least the naptime", elapsed)
	}

	tl.flags.RequestShutdown()
	if err := tl.waitResult(t); err != nil {
		t.Fatal(err)
	}
}

func TestRun_ContextCancelIsGraceful(t *testing.T) {
	db := newFakeDB()

	store := config.NewStore("")
	if _, err := store.Load(); err != nil {
		t.Fatal(err)
	}

	flags := signals.New()
	loop := New(Config{
		DB:       db,
		Store:    store,
		Flags:    flags,
		HostDead: make(chan struct{}),
	})

	ctx, cancel := context.WithCancel(context.Background())
	result := make(chan error, 1)
	go func() { result <- loop.Run(ctx) }()

	cancel()

	select {
	case err := <-result:
		if err != nil {
			t.Fatalf("context cancel must be a graceful stop, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("loop did not stop on context cancel")
	}
}
