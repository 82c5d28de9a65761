package commands

import (
	"fmt"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/cli"
)

// PrepareCmd implements the 'prepare' command.
type PrepareCmd struct {
	ServiceConfig string   `name:"service-config" help:"Service config file to copy (default from orchestrator.prepare)"`
	Sections      []string `sep:"," help:"Comma-separated dotted sections to copy instead of the whole file"`
	SkipInstall   bool     `name:"skip-install" help:"Do not install runtime dependencies"`
	Build         string   `name:"build" placeholder:"ENV" help:"Run the prepare build command for this environment first; its exit code is propagated on failure"`
}

func (p *PrepareCmd) Run(g *Global, root *CLI) error {
	resp, err := g.Executor().ExecutePrepare(g.Context, cli.PrepareRequest{
		ConfigPath:       root.Config,
		ServiceConfig:    p.ServiceConfig,
		Sections:         p.Sections,
		SkipInstall:      p.SkipInstall,
		BuildEnvironment: p.Build,
	}).ToTuple()
	if err != nil {
		return err
	}
	res := resp.Result
	_, _ = fmt.Fprintf(g.RC.Stdout, "Copied %s to %s\n", res.Source, res.Output)
	if res.Build != nil {
		_, _ = fmt.Fprintf(g.RC.Stdout, "Build finished in %s\n", res.Build.Duration.Round(time.Millisecond))
	}
	if res.Install != nil && !res.Install.Succeeded() {
		_, _ = fmt.Fprintf(g.RC.Stdout, "Dependency installation failed with code %d\n", res.Install.Code)
	}
	return nil
}
