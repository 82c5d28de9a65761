package build

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"
	"text/template"

	"golang.org/x/sync/errgroup"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
)

// commandData is the template input for one build command argument.
type commandData struct {
	Project   string
	Service   string
	Kind      string
	Variant   string
	Subdomain string
}

// ExecCompiler runs the configured build command once per unit, up to
// Concurrency units at a time, and parses each command's output.
type ExecCompiler struct {
	rc          *runctx.RunContext
	project     string
	args        []*template.Template
	concurrency int
	closed      atomic.Bool
}

// NewExecCompiler parses the command templates from settings.
func NewExecCompiler(rc *runctx.RunContext, project *config.Project) (*ExecCompiler, error) {
	settings := project.Orchestrator.Build
	if len(settings.Command) == 0 {
		return nil, fmt.Errorf("build command is empty")
	}
	args := make([]*template.Template, 0, len(settings.Command))
	for i, a := range settings.Command {
		tpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(a)
		if err != nil {
			return nil, fmt.Errorf("build command argument %d: %w", i, err)
		}
		args = append(args, tpl)
	}
	concurrency := settings.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	return &ExecCompiler{rc: rc, project: project.Name, args: args, concurrency: concurrency}, nil
}

// ExecCompilerFactory returns a CompilerFactory producing ExecCompilers.
func ExecCompilerFactory(rc *runctx.RunContext, project *config.Project) CompilerFactory {
	return func([]Unit) (Compiler, error) {
		return NewExecCompiler(rc, project)
	}
}

// Argv renders the command line for u.
func (c *ExecCompiler) Argv(u Unit) ([]string, error) {
	data := commandData{
		Project:   c.project,
		Service:   u.Service,
		Kind:      string(u.Kind),
		Variant:   string(u.Variant),
		Subdomain: u.Subdomain,
	}
	argv := make([]string, 0, len(c.args))
	for _, tpl := range c.args {
		var b bytes.Buffer
		if err := tpl.Execute(&b, data); err != nil {
			return nil, err
		}
		argv = append(argv, b.String())
	}
	return argv, nil
}

// RunAll implements Compiler. Results are returned in unit order.
func (c *ExecCompiler) RunAll(ctx context.Context, units []Unit) ([]CompileResult, error) {
	if c.closed.Load() {
		return nil, ErrCompilerClosed
	}
	results := make([]CompileResult, len(units))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, u := range units {
		g.Go(func() error {
			res, err := c.runUnit(gctx, u)
			if err != nil {
				return fmt.Errorf("%s: %w", u.Service, err)
			}
			results[i] = res
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (c *ExecCompiler) runUnit(ctx context.Context, u Unit) (CompileResult, error) {
	argv, err := c.Argv(u)
	if err != nil {
		return CompileResult{}, err
	}
	var out bytes.Buffer
	cmd := process.FromArgv(argv)
	cmd.Dir = c.rc.WorkDir
	cmd.Env = c.rc.Environment
	cmd.Stdin = bytes.NewReader(nil)
	cmd.Stdout = &out
	cmd.Stderr = &out

	slog.Debug("Running build command", logfields.Service(u.Service), logfields.Command(cmd.String()))
	res, err := process.RunOnce(ctx, cmd, process.PolicyReport)
	if err != nil {
		return CompileResult{}, err
	}

	raw, formatted, warnings := ParseDiagnostics(out.String())
	if res.Code != 0 && len(raw) == 0 && len(formatted) == 0 {
		raw = append(raw, RawError{Message: fmt.Sprintf("build command exited with code %d", res.Code)})
	}
	return CompileResult{
		Service:         u.Service,
		Errors:          raw,
		FormattedErrors: formatted,
		Warnings:        warnings,
	}, nil
}

// Close implements Compiler. Subsequent RunAll calls fail.
func (c *ExecCompiler) Close() error {
	c.closed.Store(true)
	return nil
}
