package commands

import (
	"git.home.luguber.info/inful/svcbuilder/internal/cli"
)

// RunCmd implements the 'run' command.
type RunCmd struct {
	Environment  string   `arg:"" help:"Build variant (development|production|test)"`
	Services     []string `short:"s" sep:"," help:"Comma-separated services to build (default: all)"`
	WatchBackend bool     `name:"watch-backend" short:"w" help:"Rebuild and restart the server when backend sources change"`
	BuildBefore  bool     `name:"build-before" short:"b" help:"Build before starting the server"`
	MetricsAddr  string   `name:"metrics-addr" help:"Serve Prometheus metrics on this address in watch mode"`
}

func (r *RunCmd) Run(g *Global, root *CLI) error {
	_, err := g.Executor().ExecuteRun(g.Context, cli.RunRequest{
		ConfigPath:   root.Config,
		Environment:  r.Environment,
		Services:     r.Services,
		WatchBackend: r.WatchBackend,
		BuildBefore:  r.BuildBefore,
		MetricsAddr:  r.MetricsAddr,
	}).ToTuple()
	return err
}
