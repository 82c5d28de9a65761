package process

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
)

// Policy decides how RunOnce treats a non-zero exit.
type Policy int

const (
	// PolicyReport logs a non-zero exit and returns it in the Result without an error.
	PolicyReport Policy = iota
	// PolicyAbort turns a non-zero exit into an *ExitError carrying the same code.
	PolicyAbort
)

func (p Policy) String() string {
	if p == PolicyAbort {
		return "abort"
	}
	return "report"
}

// Result describes a finished one-shot command.
type Result struct {
	Code     int
	Duration time.Duration
}

// Succeeded reports whether the command exited with code 0.
func (r Result) Succeeded() bool { return r.Code == 0 }

// ExitError is returned under PolicyAbort when the child exits non-zero.
type ExitError struct {
	Command string
	Code    int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("%s exited with code %d", e.Command, e.Code)
}

// ExitCode exposes the child's code so the CLI can exit with it.
func (e *ExitError) ExitCode() int { return e.Code }

// RunOnce runs c to completion. Spawn failures and wait failures are always errors;
// a non-zero exit is an error only under PolicyAbort. Cancelling ctx stops the child.
func RunOnce(ctx context.Context, c Command, policy Policy) (Result, error) {
	start := time.Now()
	h, err := Spawn(ctx, c)
	if err != nil {
		return Result{Code: -1}, err
	}

	ev, err := h.Wait(ctx)
	if err != nil {
		_ = h.Stop(DefaultStopGrace)
		return Result{Code: -1, Duration: time.Since(start)}, err
	}

	res := Result{Duration: time.Since(start)}
	switch e := ev.(type) {
	case EventError:
		res.Code = -1
		return res, errors.ProcessError("failed waiting for process").WithCause(e.Err).
			WithContext("command", c.String()).
			Build()
	case EventExit:
		res.Code = e.Code
	}

	if res.Code == 0 {
		slog.Debug("Command finished", logfields.Command(c.String()), logfields.DurationMS(float64(res.Duration.Milliseconds())))
		return res, nil
	}
	if policy == PolicyAbort {
		return res, &ExitError{Command: c.String(), Code: res.Code}
	}
	slog.Warn("Command exited with non-zero code", logfields.Command(c.String()), logfields.ExitCode(res.Code))
	return res, nil
}
