package watch

import (
	"bufio"
	"context"
	stderrors "errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/svcbuilder/internal/build"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	ferrors "git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/metrics"
	"git.home.luguber.info/inful/svcbuilder/internal/observability"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
)

// RestartCommand typed on stdin forces a rebuild and restart.
const RestartCommand = "rs"

// State is the supervisor lifecycle state.
type State int

const (
	StateIdle State = iota
	StateStarting
	StateBuilding
	StateRunning
	StateRestarting
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateStarting:
		return "starting"
	case StateBuilding:
		return "building"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Builder runs one build of the selected services.
type Builder interface {
	Dispatch(ctx context.Context, variant config.BuildVariant, names []string) (*build.Outcome, error)
}

// Child is a running server process.
type Child interface {
	PID() int
	Events() <-chan process.Event
	Stop(grace time.Duration) error
}

// Spawner starts the server process.
type Spawner func(ctx context.Context, c process.Command) (Child, error)

// ProcessSpawner spawns real child processes.
func ProcessSpawner(ctx context.Context, c process.Command) (Child, error) {
	h, err := process.Spawn(ctx, c)
	if err != nil {
		return nil, err
	}
	return h, nil
}

// Options configure a Supervisor.
type Options struct {
	Variant   config.BuildVariant
	Services  []string
	Server    process.Command
	StopGrace time.Duration
	// Stdin is scanned for the restart command. Nil disables manual restarts.
	Stdin io.Reader
}

// message is anything the supervisor loop reacts to.
type message interface{ isMessage() }

type watcherReady struct{ err error }

type changeSet struct{ set ChangeSet }

type buildSettled struct {
	outcome *build.Outcome
	err     error
}

type childExited struct {
	child Child
	event process.Event
}

type manualRestart struct{}

type quit struct{}

func (watcherReady) isMessage()  {}
func (changeSet) isMessage()     {}
func (buildSettled) isMessage()  {}
func (childExited) isMessage()   {}
func (manualRestart) isMessage() {}
func (quit) isMessage()          {}

// Supervisor rebuilds and restarts the server whenever watched sources change.
//
// All state lives in the Run goroutine and only changes in response to
// messages on the inbox. At most one build runs at a time; changes arriving
// while a build is in flight are collapsed into a single follow-up build.
type Supervisor struct {
	opts     Options
	source   Source
	builder  Builder
	spawn    Spawner
	recorder metrics.Recorder
	observe  func(from, to State)

	inbox chan message
	done  chan struct{}
	wg    sync.WaitGroup

	sessionID string
	state     State
	building  bool
	pending   bool
	trigger   string
	child     Child
}

// NewSupervisor creates a supervisor. Spawner defaults to ProcessSpawner.
func NewSupervisor(source Source, builder Builder, opts Options) *Supervisor {
	if opts.StopGrace <= 0 {
		opts.StopGrace = process.DefaultStopGrace
	}
	return &Supervisor{
		opts:      opts,
		source:    source,
		builder:   builder,
		spawn:     ProcessSpawner,
		recorder:  metrics.NoopRecorder{},
		inbox:     make(chan message, 16),
		done:      make(chan struct{}),
		sessionID: uuid.NewString(),
	}
}

// WithSpawner replaces the child process spawner (for testing).
func (s *Supervisor) WithSpawner(sp Spawner) *Supervisor {
	if sp != nil {
		s.spawn = sp
	}
	return s
}

// WithRecorder sets the metrics recorder.
func (s *Supervisor) WithRecorder(r metrics.Recorder) *Supervisor {
	if r != nil {
		s.recorder = r
	}
	return s
}

// WithObserver registers a callback invoked on every state transition from
// the Run goroutine.
func (s *Supervisor) WithObserver(fn func(from, to State)) *Supervisor {
	s.observe = fn
	return s
}

// SessionID identifies this watch session in logs.
func (s *Supervisor) SessionID() string { return s.sessionID }

// Run drives the supervisor until ctx is done or the watcher fails to start.
// On return the child has been stopped and no build is running.
func (s *Supervisor) Run(ctx context.Context) error {
	ctx = observability.WithSessionID(ctx, s.sessionID)
	ctx = observability.WithVariant(ctx, string(s.opts.Variant))
	ctx = observability.WithStage(ctx, "watch")

	// The source is closed only after every helper, including an in-flight
	// Start, has returned.
	defer func() {
		if err := s.source.Close(); err != nil {
			observability.DebugContext(ctx, "Watcher close failed", logfields.Error(err))
		}
	}()
	defer s.wg.Wait()
	defer close(s.done)
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	s.transition(ctx, StateStarting)
	s.goSend(func() message { return watcherReady{err: s.source.Start(ctx)} })
	if s.opts.Stdin != nil {
		go s.readStdin(s.opts.Stdin)
	}

	for {
		var msg message
		select {
		case <-ctx.Done():
			msg = quit{}
		case msg = <-s.inbox:
		}

		if err := s.handle(ctx, msg); err != nil {
			s.shutdown(ctx)
			return err
		}
		if s.state == StateStopped {
			return nil
		}
	}
}

func (s *Supervisor) handle(ctx context.Context, msg message) error {
	switch m := msg.(type) {
	case watcherReady:
		if m.err != nil && ctx.Err() != nil {
			s.shutdown(ctx)
			return nil
		}
		if m.err != nil {
			return ferrors.WatchError("failed to start file watcher").WithCause(m.err).Build()
		}
		observability.InfoContext(ctx, "Watching for changes", logfields.Count(len(s.opts.Services)))
		s.goForwardChanges()
		s.startBuild(ctx, "initial")

	case changeSet:
		observability.DebugContext(ctx, "Change set received",
			logfields.Count(len(m.set.Paths)), slog.String("cause", m.set.Cause))
		s.requestRebuild(ctx, "change")

	case manualRestart:
		observability.InfoContext(ctx, "Manual restart requested")
		s.requestRebuild(ctx, "manual")

	case buildSettled:
		s.onBuildSettled(ctx, m)

	case childExited:
		s.onChildExited(ctx, m)

	case quit:
		s.shutdown(ctx)
	}
	return nil
}

func (s *Supervisor) requestRebuild(ctx context.Context, trigger string) {
	if s.state != StateRunning || s.building {
		if !s.pending {
			s.pending = true
			s.trigger = trigger
		}
		s.recorder.IncCoalescedChange()
		observability.DebugContext(ctx, "Build in progress; change queued", logfields.State(s.state.String()))
		return
	}
	s.transition(ctx, StateRestarting)
	s.startBuild(ctx, trigger)
}

func (s *Supervisor) startBuild(ctx context.Context, trigger string) {
	s.transition(ctx, StateBuilding)
	s.building = true
	s.recorder.IncWatchRebuild(trigger)
	observability.InfoContext(ctx, "Building", slog.String("trigger", trigger))

	s.goSend(func() message {
		outcome, err := s.builder.Dispatch(ctx, s.opts.Variant, s.opts.Services)
		return buildSettled{outcome: outcome, err: err}
	})
}

func (s *Supervisor) onBuildSettled(ctx context.Context, m buildSettled) {
	s.building = false

	switch {
	case m.err != nil:
		observability.ErrorContext(ctx, "Build failed; keeping current server", logfields.Error(m.err))
	case m.outcome == nil || !m.outcome.Succeeded:
		observability.ErrorContext(ctx, "Build has errors; keeping current server")
	default:
		s.replaceChild(ctx)
	}
	s.transition(ctx, StateRunning)

	if s.pending {
		trigger := s.trigger
		s.pending = false
		s.trigger = ""
		s.transition(ctx, StateRestarting)
		s.startBuild(ctx, trigger)
	}
}

// replaceChild stops the current child completely before spawning the next.
func (s *Supervisor) replaceChild(ctx context.Context) {
	if s.child != nil {
		s.stopChild(ctx)
		s.recorder.IncChildRestart()
	}

	child, err := s.spawn(ctx, s.opts.Server)
	if err != nil {
		observability.ErrorContext(ctx, "Failed to start server", logfields.Command(s.opts.Server.String()), logfields.Error(err))
		return
	}
	s.child = child
	observability.InfoContext(ctx, "Server started", logfields.PID(child.PID()))

	events := child.Events()
	s.goSend(func() message {
		ev, ok := <-events
		if !ok {
			ev = process.EventError{Err: stderrors.New("child event stream closed")}
		}
		return childExited{child: child, event: ev}
	})
}

func (s *Supervisor) stopChild(ctx context.Context) {
	child := s.child
	s.child = nil
	if err := child.Stop(s.opts.StopGrace); err != nil {
		observability.WarnContext(ctx, "Failed to stop server", logfields.PID(child.PID()), logfields.Error(err))
	}
}

func (s *Supervisor) onChildExited(ctx context.Context, m childExited) {
	if m.child != s.child {
		return
	}
	s.child = nil

	switch ev := m.event.(type) {
	case process.EventExit:
		s.recorder.IncChildExit(ev.Code != 0)
		if ev.Code != 0 {
			observability.ErrorContext(ctx, "Server crashed; waiting for changes", logfields.ExitCode(ev.Code))
		} else {
			observability.InfoContext(ctx, "Server exited; waiting for changes")
		}
	case process.EventError:
		s.recorder.IncChildExit(true)
		observability.ErrorContext(ctx, "Server failed; waiting for changes", logfields.Error(ev.Err))
	}
}

func (s *Supervisor) shutdown(ctx context.Context) {
	if s.child != nil {
		observability.InfoContext(ctx, "Stopping server", logfields.PID(s.child.PID()))
		s.stopChild(ctx)
	}
	s.transition(ctx, StateStopped)
}

func (s *Supervisor) transition(ctx context.Context, to State) {
	from := s.state
	if from == to {
		return
	}
	s.state = to
	s.recorder.SetWatchState(to.String())
	observability.DebugContext(ctx, "Supervisor state changed", slog.String("from", from.String()), logfields.State(to.String()))
	if s.observe != nil {
		s.observe(from, to)
	}
}

// goSend runs fn in a goroutine and delivers its message unless Run has returned.
func (s *Supervisor) goSend(fn func() message) {
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.send(fn())
	}()
}

func (s *Supervisor) send(m message) {
	select {
	case s.inbox <- m:
	case <-s.done:
	}
}

func (s *Supervisor) goForwardChanges() {
	changes := s.source.Changes()
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case set, ok := <-changes:
				if !ok {
					return
				}
				s.send(changeSet{set: set})
			case <-s.done:
				return
			}
		}
	}()
}

// readStdin is not tracked by the wait group: a blocked read cannot be interrupted.
func (s *Supervisor) readStdin(r io.Reader) {
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		if strings.TrimSpace(sc.Text()) != RestartCommand {
			continue
		}
		select {
		case s.inbox <- manualRestart{}:
		case <-s.done:
			return
		}
	}
}
