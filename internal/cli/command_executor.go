package cli

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"text/template"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"

	"git.home.luguber.info/inful/svcbuilder/internal/artifact"
	"git.home.luguber.info/inful/svcbuilder/internal/build"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/metrics"
	"git.home.luguber.info/inful/svcbuilder/internal/prepare"
	"git.home.luguber.info/inful/svcbuilder/internal/process"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
	"git.home.luguber.info/inful/svcbuilder/internal/testrun"
	"git.home.luguber.info/inful/svcbuilder/internal/watch"
)

// CommandExecutor provides a service-oriented interface for CLI command execution
type CommandExecutor interface {
	ExecuteBuild(ctx context.Context, req BuildRequest) foundation.Result[BuildResponse, error]
	ExecuteUpdate(ctx context.Context, req UpdateRequest) foundation.Result[UpdateResponse, error]
	ExecuteTest(ctx context.Context, req TestRequest) foundation.Result[TestResponse, error]
	ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error]
	ExecutePrepare(ctx context.Context, req PrepareRequest) foundation.Result[PrepareResponse, error]
}

// Request/Response types for each command

type BuildRequest struct {
	ConfigPath  string
	Environment string
	Services    []string
}

type BuildResponse struct {
	Artifacts *artifact.Report
	Outcome   *build.Outcome
}

type UpdateRequest struct {
	ConfigPath string
}

type UpdateResponse struct {
	Artifacts *artifact.Report
}

type TestRequest struct {
	ConfigPath string
	Type       string
}

type TestResponse struct {
	Summary *testrun.Summary
}

type RunRequest struct {
	ConfigPath   string
	Environment  string
	Services     []string
	WatchBackend bool
	BuildBefore  bool
	// MetricsAddr overrides orchestrator.metrics_addr for watch mode.
	MetricsAddr string
}

type RunResponse struct {
	// SessionID is set in watch mode.
	SessionID string
	ExitCode  int
}

type PrepareRequest struct {
	ConfigPath    string
	ServiceConfig string
	Sections      []string
	SkipInstall   bool
	// BuildEnvironment runs the prepare build command for this environment first.
	BuildEnvironment string
}

type PrepareResponse struct {
	Result *prepare.Result
}

// SourceFactory creates the change source for watch mode.
type SourceFactory func(root string, settings config.WatchSettings) (watch.Source, error)

// DefaultCommandExecutor implements the CommandExecutor interface
type DefaultCommandExecutor struct {
	rc        *runctx.RunContext
	compilers func(rc *runctx.RunContext, p *config.Project) build.CompilerFactory
	sources   SourceFactory
	spawner   watch.Spawner
}

// NewCommandExecutor creates a command executor bound to rc.
func NewCommandExecutor(rc *runctx.RunContext) *DefaultCommandExecutor {
	return &DefaultCommandExecutor{
		rc:        rc,
		compilers: build.ExecCompilerFactory,
		sources: func(root string, settings config.WatchSettings) (watch.Source, error) {
			return watch.NewFSWatcher(root, settings)
		},
		spawner: watch.ProcessSpawner,
	}
}

// WithCompilerFactory allows injecting a custom compiler (for testing).
func (e *DefaultCommandExecutor) WithCompilerFactory(f func(*runctx.RunContext, *config.Project) build.CompilerFactory) *DefaultCommandExecutor {
	e.compilers = f
	return e
}

// WithSourceFactory allows injecting the watch-mode change source (for testing).
func (e *DefaultCommandExecutor) WithSourceFactory(f SourceFactory) *DefaultCommandExecutor {
	e.sources = f
	return e
}

// WithSpawner allows injecting the watch-mode server spawner (for testing).
func (e *DefaultCommandExecutor) WithSpawner(s watch.Spawner) *DefaultCommandExecutor {
	e.spawner = s
	return e
}

// Command execution implementations

func (e *DefaultCommandExecutor) ExecuteBuild(ctx context.Context, req BuildRequest) foundation.Result[BuildResponse, error] {
	variant, err := parseEnvironment(req.Environment)
	if err != nil {
		return foundation.Err[BuildResponse](err)
	}
	p, err := e.load(req.ConfigPath)
	if err != nil {
		return foundation.Err[BuildResponse](err)
	}

	resp := BuildResponse{}
	resp.Artifacts, err = artifact.NewGenerator(e.rc).Generate(ctx, p)
	if err != nil {
		return foundation.Err[BuildResponse](err)
	}

	resp.Outcome, err = build.NewDispatcher(p, e.compilers(e.rc, p)).Dispatch(ctx, variant, req.Services)
	if err != nil {
		return foundation.Err[BuildResponse](err)
	}
	if err := build.FailureError(resp.Outcome); err != nil {
		return foundation.Err[BuildResponse](err)
	}
	return foundation.Ok[BuildResponse, error](resp)
}

func (e *DefaultCommandExecutor) ExecuteUpdate(ctx context.Context, req UpdateRequest) foundation.Result[UpdateResponse, error] {
	p, err := e.load(req.ConfigPath)
	if err != nil {
		return foundation.Err[UpdateResponse](err)
	}
	report, err := artifact.NewGenerator(e.rc).Generate(ctx, p)
	if err != nil {
		return foundation.Err[UpdateResponse](err)
	}
	return foundation.Ok[UpdateResponse, error](UpdateResponse{Artifacts: report})
}

func (e *DefaultCommandExecutor) ExecuteTest(ctx context.Context, req TestRequest) foundation.Result[TestResponse, error] {
	tt, err := config.ParseTestType(req.Type)
	if err != nil {
		return foundation.Err[TestResponse, error](errors.ValidationError("invalid test type").WithCause(err).
			WithContext("valid", config.TestTypes()).
			Build())
	}
	p, err := e.load(req.ConfigPath)
	if err != nil {
		return foundation.Err[TestResponse](err)
	}
	summary, err := testrun.NewRunner(e.rc, p).Run(ctx, tt)
	if err != nil {
		return foundation.Err[TestResponse](err)
	}
	return foundation.Ok[TestResponse, error](TestResponse{Summary: summary})
}

// ExecuteRun starts the server, either once or under the watch supervisor.
// Outside watch mode the server's non-zero exit code is returned as an error
// carrying that code; a server killed by an outside signal fails with code 1.
func (e *DefaultCommandExecutor) ExecuteRun(ctx context.Context, req RunRequest) foundation.Result[RunResponse, error] {
	variant, err := parseEnvironment(req.Environment)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}
	p, err := e.load(req.ConfigPath)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}
	if unknown := p.UnknownServices(req.Services); len(unknown) > 0 {
		return foundation.Err[RunResponse, error](errors.ConfigError("requested services are not configured").WithCause(build.ErrUnknownService).
			WithContext("services", unknown).
			Build())
	}

	server, err := serverCommand(e.rc, p, variant)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}

	if req.WatchBackend {
		return e.runWatch(ctx, p, variant, req, server)
	}

	if req.BuildBefore {
		if _, err := artifact.NewGenerator(e.rc).Generate(ctx, p); err != nil {
			return foundation.Err[RunResponse](err)
		}
		outcome, err := build.NewDispatcher(p, e.compilers(e.rc, p)).Dispatch(ctx, variant, req.Services)
		if err == nil {
			err = build.FailureError(outcome)
		}
		if err != nil {
			return foundation.Err[RunResponse](err)
		}
	}

	code, err := runServer(ctx, server)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}
	e.rc.SetExit(code)
	switch {
	case code > 0:
		return foundation.Err[RunResponse, error](&process.ExitError{Command: server.String(), Code: code})
	case code < 0:
		// Killed by a signal we did not send; there is no code to propagate.
		return foundation.Err[RunResponse, error](errors.ProcessError("server was terminated by a signal").
			WithCause(&process.ExitError{Command: server.String(), Code: code}).
			WithContext("command", server.String()).
			Build())
	}
	return foundation.Ok[RunResponse, error](RunResponse{ExitCode: code})
}

func (e *DefaultCommandExecutor) runWatch(ctx context.Context, p *config.Project, variant config.BuildVariant, req RunRequest, server process.Command) foundation.Result[RunResponse, error] {
	settings := p.Orchestrator.Watch
	// stdin belongs to the restart command reader in watch mode.
	server.Stdin = strings.NewReader("")
	source, err := e.sources(e.rc.WorkDir, settings)
	if err != nil {
		return foundation.Err[RunResponse](err)
	}

	var recorder metrics.Recorder = metrics.NoopRecorder{}
	addr := req.MetricsAddr
	if addr == "" {
		addr = p.Orchestrator.MetricsAddr
	}
	if addr != "" {
		reg := prom.NewRegistry()
		recorder = metrics.NewPrometheusRecorder(reg)
		stop, err := serveMetrics(ctx, addr, reg)
		if err != nil {
			_ = source.Close()
			return foundation.Err[RunResponse](err)
		}
		defer stop()
	}

	if _, err := artifact.NewGenerator(e.rc).Generate(ctx, p); err != nil {
		_ = source.Close()
		return foundation.Err[RunResponse](err)
	}

	dispatcher := build.NewDispatcher(p, e.compilers(e.rc, p)).WithRecorder(recorder)
	sup := watch.NewSupervisor(source, dispatcher, watch.Options{
		Variant:   variant,
		Services:  req.Services,
		Server:    server,
		StopGrace: settings.StopGraceDuration(),
		Stdin:     e.rc.Stdin,
	}).WithSpawner(e.spawner).WithRecorder(recorder)

	slog.Info("Watching backend for changes", logfields.SessionID(sup.SessionID()), logfields.Variant(string(variant)))
	if err := sup.Run(ctx); err != nil {
		return foundation.Err[RunResponse](err)
	}
	return foundation.Ok[RunResponse, error](RunResponse{SessionID: sup.SessionID()})
}

func (e *DefaultCommandExecutor) ExecutePrepare(ctx context.Context, req PrepareRequest) foundation.Result[PrepareResponse, error] {
	var variant config.BuildVariant
	if req.BuildEnvironment != "" {
		v, err := parseEnvironment(req.BuildEnvironment)
		if err != nil {
			return foundation.Err[PrepareResponse](err)
		}
		variant = v
	}
	p, err := e.load(req.ConfigPath)
	if err != nil {
		return foundation.Err[PrepareResponse](err)
	}
	res, err := prepare.NewPreparer(e.rc, p).Run(ctx, prepare.Options{
		ServiceConfig: req.ServiceConfig,
		Sections:      req.Sections,
		SkipInstall:   req.SkipInstall,
		Build:         variant,
		ConfigPath:    req.ConfigPath,
	})
	if err != nil {
		return foundation.Err[PrepareResponse](err)
	}
	return foundation.Ok[PrepareResponse, error](PrepareResponse{Result: res})
}

func parseEnvironment(raw string) (config.BuildVariant, error) {
	v, err := config.ParseBuildVariant(raw)
	if err != nil {
		return "", errors.ValidationError(fmt.Sprintf("invalid environment %q", raw)).WithCause(err).
			WithContext("valid", config.BuildVariants()).
			Build()
	}
	return v, nil
}

func (e *DefaultCommandExecutor) load(path string) (*config.Project, error) {
	if path == "" {
		path = config.DefaultConfigFile
	}
	return config.Load(e.rc.Resolve(path))
}

// serverCommand renders the server entry point for variant and prefixes the runtime.
func serverCommand(rc *runctx.RunContext, p *config.Project, variant config.BuildVariant) (process.Command, error) {
	w := p.Orchestrator.Watch
	tmpl, err := template.New("server").Option("missingkey=error").Parse(w.Server)
	if err != nil {
		return process.Command{}, errors.ConfigError("invalid server template").WithCause(err).Build()
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, struct{ Variant config.BuildVariant }{variant}); err != nil {
		return process.Command{}, errors.ConfigError("failed to render server path").WithCause(err).Build()
	}

	cmd := process.Command{Name: w.Runtime, Args: []string{buf.String()}}
	if w.Runtime == "" {
		cmd = process.Command{Name: buf.String()}
	}
	cmd.Dir = rc.WorkDir
	cmd.Env = rc.Environment
	cmd.Stdin = rc.Stdin
	cmd.Stdout = rc.Stdout
	cmd.Stderr = rc.Stderr
	return cmd, nil
}

// runServer runs the server until it exits. A shutdown requested through ctx
// is not a failure.
func runServer(ctx context.Context, server process.Command) (int, error) {
	h, err := process.Spawn(ctx, server)
	if err != nil {
		slog.Error("Failed to start server", logfields.Command(server.String()), logfields.Error(err))
		return 1, err
	}
	slog.Info("Server started", logfields.PID(h.PID()), logfields.Command(server.String()))

	ev := <-h.Events()
	switch ev := ev.(type) {
	case process.EventExit:
		if ctx.Err() != nil {
			slog.Info("Server stopped")
			return 0, nil
		}
		if ev.Code != 0 {
			slog.Error("Server exited", logfields.ExitCode(ev.Code))
		}
		return ev.Code, nil
	case process.EventError:
		return 1, errors.ProcessError("server failed").WithCause(ev.Err).Build()
	}
	return 0, nil
}

// serveMetrics exposes reg on addr until ctx is done or the returned stop is called.
func serveMetrics(ctx context.Context, addr string, reg *prom.Registry) (func(), error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, errors.RuntimeError("failed to listen for metrics").WithCause(err).
			WithContext("addr", addr).
			Build()
	}
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.HTTPHandler(reg))
	srv := &http.Server{Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
			slog.Error("Metrics server failed", logfields.Error(err))
		}
	}()
	slog.Info("Serving metrics", slog.String("addr", ln.Addr().String()))

	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}, nil
}
