package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/alecthomas/kong"

	"git.home.luguber.info/inful/svcbuilder/cmd/svcbuilder/commands"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
	"git.home.luguber.info/inful/svcbuilder/internal/version"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	root := &commands.CLI{}
	parser, err := kong.New(root,
		kong.Name("svcbuilder"),
		kong.Description("Build, test and run the services of a multi-service TypeScript project."),
		kong.UsageOnError(),
		kong.Vars{"version": version.Version},
	)
	if err != nil {
		slog.Error("Failed to initialise command line", "error", err)
		return 1
	}
	kctx, err := parser.Parse(args)
	if err != nil {
		parser.Errorf("%s", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	adapter := errors.NewCLIErrorAdapter(root.Verbose, slog.Default())
	rc, err := commands.NewRunContext(root)
	if err != nil {
		return adapter.Report(errors.ConfigError("failed to prepare environment").WithCause(err).Build())
	}

	global := &commands.Global{Logger: slog.Default(), Context: ctx, RC: rc}
	if err := kctx.Run(global, root); err != nil {
		return adapter.Report(err)
	}
	if sink, ok := rc.Exit.(*runctx.ExitCode); ok {
		return sink.Code()
	}
	return 0
}
