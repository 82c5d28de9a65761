// Package testrun runs the project's unit or integration tests service by service.
package testrun

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/artifact"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/observability"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
)

// ErrTestsFailed is wrapped by the error returned when any service's tests fail.
var ErrTestsFailed = stderrors.New("tests failed")

// ServiceResult is the outcome of one service's test run.
type ServiceResult struct {
	Service  string
	Kind     config.ServiceKind
	Code     int
	Duration time.Duration
}

// Summary collects the results in project service order.
type Summary struct {
	Type     config.TestType
	Services []ServiceResult
}

// Failed returns the services whose test command exited non-zero.
func (s *Summary) Failed() []string {
	var names []string
	for _, r := range s.Services {
		if r.Code != 0 {
			names = append(names, r.Service)
		}
	}
	return names
}

// Runner regenerates the artifacts and runs the configured test command once per service.
type Runner struct {
	rc        *runctx.RunContext
	project   *config.Project
	generator *artifact.Generator
}

func NewRunner(rc *runctx.RunContext, p *config.Project) *Runner {
	return &Runner{rc: rc, project: p, generator: artifact.NewGenerator(rc)}
}

// Run executes tests of type tt for every service. All services run even when
// an earlier one fails; the returned error lists every failing service.
func (r *Runner) Run(ctx context.Context, tt config.TestType) (*Summary, error) {
	ctx = observability.WithStage(ctx, "test")
	summary := &Summary{Type: tt}

	if _, err := r.generator.Generate(ctx, r.project); err != nil {
		return summary, err
	}

	argv := r.project.Orchestrator.Test.Command
	if len(argv) == 0 {
		return summary, errors.ConfigError("no test command configured").Build()
	}

	for _, svc := range r.project.Services {
		cfg, err := RunnerConfig(r.project, svc.Kind, r.rc.WorkDir)
		if err != nil {
			return summary, errors.InternalError("failed to render test runner config").WithCause(err).
				WithContext("service", svc.Name).
				Build()
		}

		cmd := process.FromArgv(argv)
		cmd.Args = append(cmd.Args, "--config", string(cfg), "--testNamePattern", NamePattern(tt))
		cmd.Dir = r.rc.WorkDir
		cmd.Env = r.rc.Environment
		cmd.Stdout = r.rc.Stdout
		cmd.Stderr = r.rc.Stderr

		observability.InfoContext(ctx, "Running tests",
			logfields.Service(svc.Name),
			logfields.ServiceKind(string(svc.Kind)),
			slog.String("type", string(tt)))

		res, err := process.RunOnce(ctx, cmd, process.PolicyReport)
		if err != nil {
			return summary, err
		}
		summary.Services = append(summary.Services, ServiceResult{
			Service:  svc.Name,
			Kind:     svc.Kind,
			Code:     res.Code,
			Duration: res.Duration,
		})
	}

	if failed := summary.Failed(); len(failed) > 0 {
		return summary, errors.BuildError(string(tt)+" tests failed").WithCause(fmt.Errorf("%w: %s", ErrTestsFailed, strings.Join(failed, ", "))).
			WithContext("services", failed).
			Build()
	}
	observability.InfoContext(ctx, "All tests passed", logfields.Count(len(summary.Services)))
	return summary, nil
}
