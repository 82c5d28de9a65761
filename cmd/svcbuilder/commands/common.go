package commands

import (
	"context"
	"log/slog"
	"os"
	"strings"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/svcbuilder/internal/cli"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
)

// LogLevelEnv overrides the level chosen by --verbose.
const LogLevelEnv = "SVCBUILDER_LOG_LEVEL"

// Global is the state shared by every subcommand.
type Global struct {
	Logger *slog.Logger
	// Context is cancelled on SIGINT or SIGTERM.
	Context context.Context
	RC      *runctx.RunContext
}

// Executor returns the command executor bound to the invocation's run context.
func (g *Global) Executor() cli.CommandExecutor {
	return cli.NewCommandExecutor(g.RC)
}

// CLI is the root command; global flags are read by every subcommand through root.
type CLI struct {
	Config      string           `short:"c" help:"Project configuration file" default:"project.config.yaml"`
	Verbose     bool             `short:"v" help:"Enable verbose logging"`
	Workdir     string           `short:"C" help:"Project root (defaults to the current directory)" type:"path"`
	ShowVersion kong.VersionFlag `name:"version" help:"Show version and exit"`

	Build   BuildCmd   `cmd:"" help:"Regenerate artifacts and build services for an environment"`
	Update  UpdateCmd  `cmd:"" help:"Regenerate the path-mapping and declarations files"`
	Test    TestCmd    `cmd:"" help:"Run unit or integration tests for every service"`
	Run     RunCmd     `cmd:"" help:"Run the backend server, optionally rebuilding on changes"`
	Prepare PrepareCmd `cmd:"" help:"Prepare a built project for a container image"`
	Version VersionCmd `cmd:"" help:"Show version and build information"`
}

// AfterApply runs after flag parsing; setup logging once.
// nolint:unparam // AfterApply currently never returns an error.
func (c *CLI) AfterApply() error {
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: parseLogLevel(c.Verbose)}))
	slog.SetDefault(logger)
	return nil
}

// parseLogLevel honours LogLevelEnv before the verbose flag.
func parseLogLevel(verbose bool) slog.Level {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(LogLevelEnv))) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	if verbose {
		return slog.LevelDebug
	}
	return slog.LevelInfo
}

// NewRunContext loads the project's .env files and captures the process state
// rooted at the selected working directory.
func NewRunContext(c *CLI) (*runctx.RunContext, error) {
	rc, err := runctx.FromProcess(c.Workdir)
	if err != nil {
		return nil, err
	}
	loaded, err := config.LoadEnvFiles(rc.WorkDir)
	if err != nil {
		return nil, err
	}
	if len(loaded) > 0 {
		rc.Environment = os.Environ()
	}
	return rc, nil
}
