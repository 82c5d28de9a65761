package build

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/metrics"
	"git.home.luguber.info/inful/svcbuilder/internal/observability"
)

// Dispatcher obtains units from a factory, runs them through one compiler
// and classifies the results.
type Dispatcher struct {
	project   *config.Project
	factory   UnitFactory
	compilers CompilerFactory
	recorder  metrics.Recorder
	newID     func() string
}

// NewDispatcher creates a dispatcher for project using the config-backed unit factory.
// The compiler factory must be provided.
func NewDispatcher(project *config.Project, compilers CompilerFactory) *Dispatcher {
	return &Dispatcher{
		project:   project,
		factory:   ConfigUnitFactory{},
		compilers: compilers,
		recorder:  metrics.NoopRecorder{},
		newID:     func() string { return uuid.NewString() },
	}
}

// WithUnitFactory allows injecting a custom unit factory (for testing).
func (d *Dispatcher) WithUnitFactory(f UnitFactory) *Dispatcher {
	d.factory = f
	return d
}

// WithRecorder sets the metrics recorder.
func (d *Dispatcher) WithRecorder(r metrics.Recorder) *Dispatcher {
	if r != nil {
		d.recorder = r
	}
	return d
}

// Dispatch builds the named services (all services when names is empty) for variant.
//
// Configuration problems (unknown names, no matching units) return a failed
// Outcome together with a classified config error; the compiler is not created.
// Compiler errors reported per unit never produce an error: they are reflected
// in Outcome.Succeeded. An error from the compiler itself returns a failed
// Outcome and a build error.
func (d *Dispatcher) Dispatch(ctx context.Context, variant config.BuildVariant, names []string) (*Outcome, error) {
	start := time.Now()
	outcome := &Outcome{BuildID: d.newID(), Variant: variant}
	ctx = observability.WithBuildID(ctx, outcome.BuildID)
	ctx = observability.WithVariant(ctx, string(variant))
	ctx = observability.WithStage(ctx, "dispatch")

	finish := func(label metrics.OutcomeLabel) {
		outcome.Duration = time.Since(start)
		d.recorder.ObserveDispatchDuration(string(variant), outcome.Duration)
		d.recorder.IncDispatchOutcome(label)
	}

	if unknown := d.project.UnknownServices(names); len(unknown) > 0 {
		finish(metrics.OutcomeFailed)
		return outcome, errors.ConfigError("requested services are not configured").
			WithCause(fmt.Errorf("%w: %s", ErrUnknownService, strings.Join(unknown, ", "))).
			WithContext("services", unknown).
			Build()
	}

	units, err := d.factory.CreateUnits(d.project, variant, names)
	if err != nil {
		finish(metrics.OutcomeFailed)
		return outcome, errors.ConfigError("failed to create build units").WithCause(err).Build()
	}
	if len(units) == 0 {
		finish(metrics.OutcomeNoUnits)
		observability.ErrorContext(ctx, "No build units matched the selection")
		return outcome, errors.ConfigError("no service matched the build selection").
			WithCause(ErrNoUnits).
			WithContext("variant", string(variant)).
			WithContext("services", names).
			Build()
	}

	observability.InfoContext(ctx, "Dispatching build", logfields.Count(len(units)))

	compiler, err := d.compilers(units)
	if err != nil {
		finish(metrics.OutcomeFailed)
		return outcome, errors.BuildError("failed to create compiler").WithCause(fmt.Errorf("%w: %w", ErrCompiler, err)).Build()
	}
	defer func() {
		if cerr := compiler.Close(); cerr != nil {
			observability.WarnContext(ctx, "Failed to close compiler", logfields.Error(cerr))
		}
	}()

	results, err := compiler.RunAll(ctx, units)
	if err != nil {
		if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
			finish(metrics.OutcomeCanceled)
			return outcome, err
		}
		finish(metrics.OutcomeFailed)
		return outcome, errors.BuildError("compiler failed").WithCause(fmt.Errorf("%w: %w", ErrCompiler, err)).Build()
	}

	outcome.Units = d.classify(ctx, units, results)
	outcome.Succeeded = len(outcome.Failed()) == 0

	label := metrics.OutcomeSuccess
	switch outcome.Status() {
	case StatusFailed:
		label = metrics.OutcomeFailed
	case StatusWarning:
		label = metrics.OutcomeWarning
	}
	finish(label)

	attrs := []slog.Attr{
		slog.String("status", string(outcome.Status())),
		logfields.DurationMS(float64(outcome.Duration.Milliseconds())),
	}
	if outcome.Succeeded {
		observability.InfoContext(ctx, "Build finished", attrs...)
	} else {
		observability.ErrorContext(ctx, "Build finished with errors", append(attrs, logfields.Count(len(outcome.Failed())))...)
	}
	return outcome, nil
}

// classify pairs each unit with its compile result in unit order. A unit the
// compiler did not report on counts as failed.
func (d *Dispatcher) classify(ctx context.Context, units []Unit, results []CompileResult) []UnitResult {
	byService := make(map[string]CompileResult, len(results))
	for _, r := range results {
		byService[r.Service] = r
	}

	out := make([]UnitResult, 0, len(units))
	for _, u := range units {
		cr, ok := byService[u.Service]
		var res UnitResult
		if ok {
			res = normalizeResult(u.Service, cr)
		} else {
			res = UnitResult{
				Service:   u.Service,
				HasErrors: true,
				Errors:    []Diagnostic{{File: NoDetail, Message: "compiler returned no result for this unit"}},
			}
		}
		out = append(out, res)

		var label metrics.ResultLabel
		switch res.Status() {
		case StatusFailed:
			label = metrics.ResultFailed
		case StatusWarning:
			label = metrics.ResultWarning
		default:
			label = metrics.ResultSuccess
		}
		d.recorder.IncUnitResult(u.Service, label)

		for _, diag := range res.Errors {
			observability.ErrorContext(ctx, diag.Message, logfields.Service(u.Service), logfields.File(diag.File))
		}
		for _, w := range res.Warnings {
			observability.WarnContext(ctx, w, logfields.Service(u.Service))
		}
	}
	return out
}

// FailureError converts a failed outcome into a classified build error for
// one-shot callers. It returns nil for a successful outcome.
func FailureError(o *Outcome) error {
	if o == nil || o.Succeeded {
		return nil
	}
	failed := o.Failed()
	names := make([]string, 0, len(failed))
	for _, u := range failed {
		names = append(names, u.Service)
	}
	return errors.BuildError("build failed").WithCause(ErrBuildFailed).
		WithContext("services", names).
		WithContext("build_id", o.BuildID).
		Build()
}
