package watch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/svcbuilder/internal/build"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/metrics"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
)

const waitTimeout = 2 * time.Second

type fakeSource struct {
	startErr error
	changes  chan ChangeSet
	closed   atomic.Bool
}

func newFakeSource() *fakeSource {
	return &fakeSource{changes: make(chan ChangeSet, 8)}
}

func (f *fakeSource) Start(context.Context) error { return f.startErr }
func (f *fakeSource) Changes() <-chan ChangeSet   { return f.changes }
func (f *fakeSource) Close() error {
	f.closed.Store(true)
	return nil
}

type buildResult struct {
	ok  bool
	err error
}

// fakeBuilder blocks every build until the test releases it.
type fakeBuilder struct {
	calls   atomic.Int32
	started chan struct{}
	results chan buildResult
}

func newFakeBuilder() *fakeBuilder {
	return &fakeBuilder{started: make(chan struct{}, 16), results: make(chan buildResult)}
}

func (b *fakeBuilder) Dispatch(ctx context.Context, variant config.BuildVariant, _ []string) (*build.Outcome, error) {
	b.calls.Add(1)
	b.started <- struct{}{}
	select {
	case r := <-b.results:
		return &build.Outcome{Variant: variant, Succeeded: r.ok}, r.err
	case <-ctx.Done():
		return &build.Outcome{Variant: variant}, ctx.Err()
	}
}

func (b *fakeBuilder) release(t *testing.T, r buildResult) {
	t.Helper()
	select {
	case b.results <- r:
	case <-time.After(waitTimeout):
		t.Fatal("timed out releasing build")
	}
}

func (b *fakeBuilder) awaitStart(t *testing.T) {
	t.Helper()
	select {
	case <-b.started:
	case <-time.After(waitTimeout):
		t.Fatal("timed out waiting for build to start")
	}
}

type fakeChild struct {
	pid      int
	events   chan process.Event
	stopped  atomic.Bool
	exitOnce sync.Once
	log      *eventLog
}

func (c *fakeChild) PID() int                     { return c.pid }
func (c *fakeChild) Events() <-chan process.Event { return c.events }

func (c *fakeChild) Stop(time.Duration) error {
	c.log.add(fmt.Sprintf("stop:%d", c.pid))
	c.stopped.Store(true)
	c.exit(-1)
	return nil
}

func (c *fakeChild) exit(code int) {
	c.exitOnce.Do(func() {
		c.events <- process.EventExit{Code: code}
		close(c.events)
	})
}

type eventLog struct {
	mu      sync.Mutex
	entries []string
}

func (l *eventLog) add(e string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, e)
}

func (l *eventLog) snapshot() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.entries...)
}

type fakeSpawner struct {
	mu       sync.Mutex
	children []*fakeChild
	err      error
	log      eventLog
}

func (s *fakeSpawner) spawn(_ context.Context, _ process.Command) (Child, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	c := &fakeChild{pid: len(s.children) + 1, events: make(chan process.Event, 1), log: &s.log}
	s.children = append(s.children, c)
	s.log.add(fmt.Sprintf("spawn:%d", c.pid))
	return c, nil
}

func (s *fakeSpawner) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.children)
}

func (s *fakeSpawner) child(i int) *fakeChild {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.children[i]
}

type countingRecorder struct {
	metrics.NoopRecorder
	coalesced atomic.Int32
	restarts  atomic.Int32
	crashes   atomic.Int32
}

func (r *countingRecorder) IncCoalescedChange() { r.coalesced.Add(1) }
func (r *countingRecorder) IncChildRestart()    { r.restarts.Add(1) }
func (r *countingRecorder) IncChildExit(crashed bool) {
	if crashed {
		r.crashes.Add(1)
	}
}

type harness struct {
	source   *fakeSource
	builder  *fakeBuilder
	spawner  *fakeSpawner
	recorder *countingRecorder
	states   chan State
	sup      *Supervisor
	cancel   context.CancelFunc
	result   chan error
	exited   chan struct{}
}

func newHarness(t *testing.T, stdin io.Reader) *harness {
	t.Helper()
	h := &harness{
		source:   newFakeSource(),
		builder:  newFakeBuilder(),
		spawner:  &fakeSpawner{},
		recorder: &countingRecorder{},
		states:   make(chan State, 128),
		result:   make(chan error, 1),
		exited:   make(chan struct{}),
	}
	h.sup = NewSupervisor(h.source, h.builder, Options{
		Variant:   config.VariantDevelopment,
		Services:  []string{"api"},
		Server:    process.Command{Name: "node", Args: []string{"dist/development/server/main.cjs"}},
		StopGrace: 100 * time.Millisecond,
		Stdin:     stdin,
	}).
		WithSpawner(h.spawner.spawn).
		WithRecorder(h.recorder).
		WithObserver(func(_, to State) { h.states <- to })
	return h
}

func (h *harness) start(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithCancel(t.Context())
	h.cancel = cancel
	go func() {
		h.result <- h.sup.Run(ctx)
		close(h.exited)
	}()
	t.Cleanup(func() {
		cancel()
		select {
		case <-h.exited:
		case <-time.After(waitTimeout):
			t.Error("supervisor did not stop")
		}
	})
}

func (h *harness) awaitState(t *testing.T, want State) {
	t.Helper()
	deadline := time.After(waitTimeout)
	for {
		select {
		case got := <-h.states:
			if got == want {
				return
			}
		case <-deadline:
			t.Fatalf("timed out waiting for state %s", want)
		}
	}
}

// runInitialBuild drives the supervisor to Running with one child.
func (h *harness) runInitialBuild(t *testing.T) {
	t.Helper()
	h.start(t)
	h.awaitState(t, StateBuilding)
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)
	require.Equal(t, 1, h.spawner.count())
}

func TestSupervisor_InitialBuildStartsServer(t *testing.T) {
	h := newHarness(t, nil)
	h.runInitialBuild(t)

	assert.Equal(t, int32(1), h.builder.calls.Load())
	assert.Equal(t, []string{"spawn:1"}, h.spawner.log.snapshot())
	assert.NotEmpty(t, h.sup.SessionID())
}

func TestSupervisor_SuccessfulRebuildStopsOldChildBeforeSpawning(t *testing.T) {
	h := newHarness(t, nil)
	h.runInitialBuild(t)

	h.source.changes <- ChangeSet{Paths: []string{"src/backend/main.ts"}, Events: 1}
	h.awaitState(t, StateRestarting)
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)

	assert.Equal(t, []string{"spawn:1", "stop:1", "spawn:2"}, h.spawner.log.snapshot())
	assert.True(t, h.spawner.child(0).stopped.Load())
	assert.Equal(t, int32(1), h.recorder.restarts.Load())
}

func TestSupervisor_FailedBuildKeepsCurrentChild(t *testing.T) {
	h := newHarness(t, nil)
	h.runInitialBuild(t)

	h.source.changes <- ChangeSet{Paths: []string{"src/backend/main.ts"}, Events: 1}
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: false})
	h.awaitState(t, StateRunning)

	h.source.changes <- ChangeSet{Paths: []string{"src/backend/db.ts"}, Events: 1}
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{err: stderrors.New("bundler crashed")})
	h.awaitState(t, StateRunning)

	assert.Equal(t, 1, h.spawner.count())
	assert.False(t, h.spawner.child(0).stopped.Load())
	assert.Equal(t, []string{"spawn:1"}, h.spawner.log.snapshot())
}

func TestSupervisor_ChangesDuringBuildCoalesceIntoOneFollowUp(t *testing.T) {
	h := newHarness(t, nil)
	h.start(t)
	h.builder.awaitStart(t)

	for i := range 3 {
		h.source.changes <- ChangeSet{Paths: []string{fmt.Sprintf("src/backend/f%d.ts", i)}, Events: 1}
	}
	require.Eventually(t, func() bool { return h.recorder.coalesced.Load() == 3 }, waitTimeout, 5*time.Millisecond)

	h.builder.release(t, buildResult{ok: true})
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)
	h.awaitState(t, StateRunning)

	select {
	case <-h.builder.started:
		t.Fatal("expected exactly one follow-up build")
	case <-time.After(100 * time.Millisecond):
	}
	assert.Equal(t, int32(2), h.builder.calls.Load())
	assert.Equal(t, 2, h.spawner.count())
}

func TestSupervisor_ChildCrashWaitsForChanges(t *testing.T) {
	h := newHarness(t, nil)
	h.runInitialBuild(t)

	h.spawner.child(0).exit(1)
	require.Eventually(t, func() bool { return h.recorder.crashes.Load() == 1 }, waitTimeout, 5*time.Millisecond)

	select {
	case <-h.builder.started:
		t.Fatal("a crash must not trigger a rebuild")
	case <-time.After(50 * time.Millisecond):
	}

	h.source.changes <- ChangeSet{Paths: []string{"src/backend/main.ts"}, Events: 1}
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)

	// the crashed child is not stopped again
	assert.Equal(t, []string{"spawn:1", "spawn:2"}, h.spawner.log.snapshot())
}

func TestSupervisor_SpawnErrorKeepsWatching(t *testing.T) {
	h := newHarness(t, nil)
	h.spawner.err = stderrors.New("no such runtime")
	h.start(t)
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)

	h.spawner.mu.Lock()
	h.spawner.err = nil
	h.spawner.mu.Unlock()

	h.source.changes <- ChangeSet{Paths: []string{"src/backend/main.ts"}, Events: 1}
	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)
	assert.Equal(t, 1, h.spawner.count())
}

func TestSupervisor_QuitStopsChild(t *testing.T) {
	h := newHarness(t, nil)
	h.runInitialBuild(t)

	h.cancel()
	select {
	case err := <-h.result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancellation")
	}
	assert.True(t, h.spawner.child(0).stopped.Load())
	assert.True(t, h.source.closed.Load())
}

func TestSupervisor_WatcherStartFailure(t *testing.T) {
	h := newHarness(t, nil)
	h.source.startErr = stderrors.New("too many open files")
	h.start(t)

	select {
	case err := <-h.result:
		require.Error(t, err)
		assert.Equal(t, ferrors.CategoryWatch, ferrors.GetCategory(err))
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return")
	}
	assert.Equal(t, int32(0), h.builder.calls.Load())
}

// slowStartSource holds Start until its context is cancelled and records
// whether Close ran after Start had returned.
type slowStartSource struct {
	entered          chan struct{}
	startReturned    atomic.Bool
	closedAfterStart atomic.Bool
	closed           atomic.Bool
}

func (s *slowStartSource) Start(ctx context.Context) error {
	close(s.entered)
	<-ctx.Done()
	time.Sleep(20 * time.Millisecond)
	s.startReturned.Store(true)
	return ctx.Err()
}

func (s *slowStartSource) Changes() <-chan ChangeSet { return nil }

func (s *slowStartSource) Close() error {
	s.closedAfterStart.Store(s.startReturned.Load())
	s.closed.Store(true)
	return nil
}

func TestSupervisor_CancelBeforeWatcherReadyClosesSourceAfterStart(t *testing.T) {
	src := &slowStartSource{entered: make(chan struct{})}
	sup := NewSupervisor(src, newFakeBuilder(), Options{
		Variant:  config.VariantDevelopment,
		Services: []string{"api"},
		Server:   process.Command{Name: "node"},
	}).WithSpawner((&fakeSpawner{}).spawn)

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() { result <- sup.Run(ctx) }()

	select {
	case <-src.entered:
	case <-time.After(waitTimeout):
		t.Fatal("source was never started")
	}
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancellation")
	}
	assert.True(t, src.closed.Load())
	assert.True(t, src.closedAfterStart.Load(), "source closed while Start was still running")
}

func TestSupervisor_CancelImmediatelyClosesRealWatcher(t *testing.T) {
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "src", "backend"), 0o755))
	w, err := NewFSWatcher(root, config.WatchSettings{
		Paths:    []string{"src/backend/**/*.ts"},
		Debounce: "30ms",
		MaxDelay: "500ms",
	})
	require.NoError(t, err)

	builder := newFakeBuilder()
	sup := NewSupervisor(w, builder, Options{
		Variant:  config.VariantDevelopment,
		Services: []string{"api"},
		Server:   process.Command{Name: "node"},
	}).WithSpawner((&fakeSpawner{}).spawn)

	ctx, cancel := context.WithCancel(t.Context())
	result := make(chan error, 1)
	go func() { result <- sup.Run(ctx) }()
	cancel()

	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(waitTimeout):
		t.Fatal("Run did not return after cancellation")
	}

	w.mu.Lock()
	closed, watcher := w.closed, w.watcher
	w.mu.Unlock()
	assert.True(t, closed)
	if watcher != nil {
		assert.ErrorIs(t, watcher.Add(root), fsnotify.ErrClosed, "watcher created by Start must be closed")
	}
	assert.ErrorIs(t, w.Start(t.Context()), ErrWatcherClosed)
}

func TestSupervisor_ManualRestartFromStdin(t *testing.T) {
	r, w := io.Pipe()
	t.Cleanup(func() { _ = w.Close() })

	h := newHarness(t, r)
	h.runInitialBuild(t)

	_, err := io.WriteString(w, "hello\nrs\n")
	require.NoError(t, err)

	h.builder.awaitStart(t)
	h.builder.release(t, buildResult{ok: true})
	h.awaitState(t, StateRunning)
	assert.Equal(t, 2, h.spawner.count())
}

func TestState_String(t *testing.T) {
	assert.Equal(t, "restarting", StateRestarting.String())
	assert.Equal(t, "unknown", State(42).String())
}
