package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/build"
	"git.home.luguber.info/inful/svcbuilder/internal/cli"
)

// BuildCmd implements the 'build' command.
type BuildCmd struct {
	Environment string   `arg:"" help:"Build variant (development|production|test)"`
	Services    []string `short:"s" sep:"," help:"Comma-separated services to build (default: all)"`
}

func (b *BuildCmd) Run(g *Global, root *CLI) error {
	resp, err := g.Executor().ExecuteBuild(g.Context, cli.BuildRequest{
		ConfigPath:  root.Config,
		Environment: b.Environment,
		Services:    b.Services,
	}).ToTuple()
	if err != nil {
		return err
	}
	printOutcome(g, resp.Outcome)
	return nil
}

func printOutcome(g *Global, o *build.Outcome) {
	for _, u := range o.Units {
		_, _ = fmt.Fprintf(g.RC.Stdout, "%-8s %s\n", u.Status(), u.Service)
	}
	_, _ = fmt.Fprintf(g.RC.Stdout, "Built %d service(s) for %s in %s\n", len(o.Units), o.Variant, o.Duration.Round(time.Millisecond))
}
