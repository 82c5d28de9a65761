package process

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os/exec"
	"sync"
	"syscall"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
)

// DefaultStopGrace is used when Stop is given a non-positive grace period.
const DefaultStopGrace = 5 * time.Second

// ErrEmptyCommand is returned when a Command has no program name.
var ErrEmptyCommand = stderrors.New("empty command")

// Event is delivered once when a spawned child ends.
type Event interface {
	isEvent()
}

// EventExit reports that the child exited. Code is -1 when it was killed by a signal.
type EventExit struct {
	Code int
}

// EventError reports that waiting on the child failed.
type EventError struct {
	Err error
}

func (EventExit) isEvent()  {}
func (EventError) isEvent() {}

// Handle owns one running child process.
type Handle struct {
	cmd     *exec.Cmd
	command Command
	events  chan Event
	done    chan struct{}

	mu    sync.Mutex
	event Event

	stopOnce sync.Once
	stopErr  error
}

// Spawn starts c. Cancelling ctx terminates the child the same way Stop does.
func Spawn(ctx context.Context, c Command) (*Handle, error) {
	if c.Name == "" {
		return nil, errors.ProcessError("cannot spawn process").WithCause(ErrEmptyCommand).Build()
	}

	// #nosec G204 -- command comes from the project configuration
	cmd := exec.CommandContext(ctx, c.Name, c.Args...)
	cmd.Dir = c.Dir
	cmd.Env = c.Env
	cmd.Stdin = c.stdin()
	cmd.Stdout = c.stdout()
	cmd.Stderr = c.stderr()
	cmd.Cancel = func() error { return cmd.Process.Signal(syscall.SIGTERM) }
	cmd.WaitDelay = DefaultStopGrace

	if err := cmd.Start(); err != nil {
		return nil, errors.ProcessError("failed to start process").WithCause(err).
			WithContext("command", c.String()).
			Build()
	}

	h := &Handle{
		cmd:     cmd,
		command: c,
		events:  make(chan Event, 1),
		done:    make(chan struct{}),
	}
	slog.Debug("Process started", logfields.Command(c.String()), logfields.PID(cmd.Process.Pid))
	go h.wait()
	return h, nil
}

func (h *Handle) wait() {
	err := h.cmd.Wait()

	var ev Event
	var exitErr *exec.ExitError
	switch {
	case err == nil:
		ev = EventExit{Code: 0}
	case stderrors.As(err, &exitErr):
		ev = EventExit{Code: exitErr.ExitCode()}
	default:
		ev = EventError{Err: err}
	}

	h.mu.Lock()
	h.event = ev
	h.mu.Unlock()

	h.events <- ev
	close(h.events)
	close(h.done)
}

// PID returns the child's process id.
func (h *Handle) PID() int { return h.cmd.Process.Pid }

// Command returns the command the handle was spawned from.
func (h *Handle) Command() Command { return h.command }

// Events delivers exactly one Event and is then closed.
func (h *Handle) Events() <-chan Event { return h.events }

// Done is closed once the child has been reaped.
func (h *Handle) Done() <-chan struct{} { return h.done }

// Wait blocks until the child ends or ctx is done and returns the final event.
func (h *Handle) Wait(ctx context.Context) (Event, error) {
	select {
	case <-h.done:
		return h.result(), nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (h *Handle) result() Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.event
}

// Exited reports whether the child has been reaped.
func (h *Handle) Exited() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}

// Stop sends SIGTERM, waits up to grace for the child to exit and then kills it.
// It returns once the child has been reaped. Calling Stop again is a no-op.
func (h *Handle) Stop(grace time.Duration) error {
	h.stopOnce.Do(func() {
		h.stopErr = h.stop(grace)
	})
	return h.stopErr
}

func (h *Handle) stop(grace time.Duration) error {
	if h.Exited() {
		return nil
	}
	if grace <= 0 {
		grace = DefaultStopGrace
	}
	pid := h.PID()
	slog.Debug("Stopping process", logfields.PID(pid), slog.Duration("grace", grace))

	if err := h.cmd.Process.Signal(syscall.SIGTERM); err != nil && !h.Exited() {
		slog.Debug("SIGTERM failed, killing process", logfields.PID(pid), logfields.Error(err))
	} else {
		timer := time.NewTimer(grace)
		defer timer.Stop()
		select {
		case <-h.done:
			return nil
		case <-timer.C:
			slog.Warn("Process did not exit within grace period, killing", logfields.PID(pid))
		}
	}

	if err := h.cmd.Process.Kill(); err != nil && !h.Exited() {
		return fmt.Errorf("kill pid %d: %w", pid, err)
	}
	<-h.done
	return nil
}
