// Package prepare readies a project for a container image: it optionally runs a
// one-shot build, copies the service configuration into the output directory
// and installs runtime dependencies.
package prepare

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"text/template"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/observability"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
)

// Options override the project's prepare settings for one invocation.
type Options struct {
	ServiceConfig string
	Sections      []string
	SkipInstall   bool
	// Build runs the prepare build command for this variant first. Empty skips it.
	Build config.BuildVariant
	// ConfigPath is passed to the build command as .Config.
	ConfigPath string
}

// Result describes what Run did.
type Result struct {
	Source  string
	Output  string
	Whole   bool
	Missing []string
	// Build is nil when no build step ran.
	Build *process.Result
	// Install is nil when installation was skipped.
	Install *process.Result
}

type Preparer struct {
	rc      *runctx.RunContext
	project *config.Project
}

func NewPreparer(rc *runctx.RunContext, p *config.Project) *Preparer {
	return &Preparer{rc: rc, project: p}
}

// Run builds when asked, copies the service config and runs the install
// command. A failing build aborts Run with an error carrying the build's exit
// code. A failing install is logged and reported in the result but does not
// fail Run.
func (p *Preparer) Run(ctx context.Context, opts Options) (*Result, error) {
	ctx = observability.WithStage(ctx, "prepare")
	settings := p.project.Orchestrator.Prepare

	src := opts.ServiceConfig
	if src == "" {
		src = settings.ServiceConfig
	}
	sections := opts.Sections
	if len(sections) == 0 {
		sections = settings.Sections
	}

	res := &Result{Source: src, Output: settings.Output, Whole: len(sections) == 0}
	if opts.Build != "" {
		built, err := p.build(ctx, opts.Build, opts.ConfigPath)
		res.Build = &built
		if err != nil {
			return res, err
		}
	}
	if err := p.copyConfig(ctx, res, sections); err != nil {
		return res, err
	}

	if opts.SkipInstall {
		return res, nil
	}
	install, err := p.install(ctx)
	if err != nil {
		return res, err
	}
	res.Install = &install
	return res, nil
}

func (p *Preparer) copyConfig(ctx context.Context, res *Result, sections []string) error {
	srcPath := p.rc.Resolve(res.Source)
	data, err := os.ReadFile(srcPath) // #nosec G304 -- path from project configuration
	if err != nil {
		if os.IsNotExist(err) {
			return errors.NotFoundError("cannot access service config file").
				WithCause(err).
				WithContext("path", res.Source).
				Build()
		}
		return errors.FileSystemError("failed to read service config").WithCause(err).
			WithContext("path", res.Source).
			Build()
	}

	if !res.Whole {
		var missing []string
		data, missing, err = CopySections(data, sections)
		if err != nil {
			return errors.ConfigError("failed to extract service config sections").WithCause(err).
				WithContext("path", res.Source).
				Build()
		}
		res.Missing = missing
		for _, m := range missing {
			observability.WarnContext(ctx, "Service config section not found", logfields.Path(res.Source), logfields.Section(m))
		}
	}

	dst := p.rc.Resolve(res.Output)
	if err := os.MkdirAll(filepath.Dir(dst), 0o750); err != nil {
		return errors.FileSystemError("failed to create output directory").WithCause(err).Build()
	}
	if err := os.WriteFile(dst, data, 0o600); err != nil {
		return errors.FileSystemError("failed to write service config").WithCause(err).
			WithContext("path", res.Output).
			Build()
	}

	if res.Whole {
		observability.InfoContext(ctx, "Copied service config", logfields.Path(res.Output))
	} else {
		observability.InfoContext(ctx, "Copied service config sections", logfields.Path(res.Output), logfields.Count(len(sections)-len(res.Missing)))
	}
	return nil
}

func (p *Preparer) install(ctx context.Context) (process.Result, error) {
	argv := p.project.Orchestrator.Install.Command
	if len(argv) == 0 {
		return process.Result{}, errors.ConfigError("no install command configured").Build()
	}
	cmd := process.FromArgv(argv)
	cmd.Dir = p.rc.WorkDir
	cmd.Env = p.rc.Environment
	cmd.Stdout = p.rc.Stdout
	cmd.Stderr = p.rc.Stderr

	observability.InfoContext(ctx, "Installing dependencies", logfields.Command(cmd.String()))
	res, err := process.RunOnce(ctx, cmd, process.PolicyReport)
	if err != nil {
		return res, err
	}
	if res.Succeeded() {
		observability.InfoContext(ctx, "Dependencies installed", logfields.DurationMS(float64(res.Duration.Milliseconds())))
	} else {
		observability.ErrorContext(ctx, "Dependency installation failed", logfields.ExitCode(res.Code))
	}
	return res, nil
}

// buildData is the template input for the prepare build command.
type buildData struct {
	Variant string
	Config  string
}

func (p *Preparer) buildCommand(variant config.BuildVariant, configPath string) (process.Command, error) {
	if configPath == "" {
		configPath = config.DefaultConfigFile
	}
	data := buildData{Variant: string(variant), Config: configPath}
	argv := make([]string, 0, len(p.project.Orchestrator.Prepare.Build))
	for i, a := range p.project.Orchestrator.Prepare.Build {
		tpl, err := template.New(fmt.Sprintf("arg%d", i)).Option("missingkey=error").Parse(a)
		if err != nil {
			return process.Command{}, err
		}
		var b strings.Builder
		if err := tpl.Execute(&b, data); err != nil {
			return process.Command{}, err
		}
		argv = append(argv, b.String())
	}
	if len(argv) == 0 {
		return process.Command{}, fmt.Errorf("prepare build command is empty")
	}
	cmd := process.FromArgv(argv)
	cmd.Dir = p.rc.WorkDir
	cmd.Env = p.rc.Environment
	cmd.Stdout = p.rc.Stdout
	cmd.Stderr = p.rc.Stderr
	return cmd, nil
}

// build runs the one-shot build under the abort policy so a non-zero exit
// surfaces as a *process.ExitError with the same code.
func (p *Preparer) build(ctx context.Context, variant config.BuildVariant, configPath string) (process.Result, error) {
	cmd, err := p.buildCommand(variant, configPath)
	if err != nil {
		return process.Result{}, errors.ConfigError("invalid prepare build command").WithCause(err).Build()
	}

	observability.InfoContext(ctx, "Building before prepare", logfields.Command(cmd.String()))
	res, err := process.RunOnce(ctx, cmd, process.PolicyAbort)
	if err != nil {
		observability.ErrorContext(ctx, "Build failed", logfields.ExitCode(res.Code))
		return res, errors.BuildError("prepare build step failed").WithCause(err).
			WithContext("command", cmd.String()).
			WithContext("variant", string(variant)).
			Build()
	}
	observability.InfoContext(ctx, "Build completed", logfields.DurationMS(float64(res.Duration.Milliseconds())))
	return res, nil
}
