package commands

import (
	"fmt"

	"git.home.luguber.info/inful/svcbuilder/internal/cli"
)

// TestCmd implements the 'test' command.
type TestCmd struct {
	Type string `arg:"" enum:"unit,integration" help:"Test type (unit|integration)"`
}

func (c *TestCmd) Run(g *Global, root *CLI) error {
	resp, err := g.Executor().ExecuteTest(g.Context, cli.TestRequest{ConfigPath: root.Config, Type: c.Type}).ToTuple()
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintf(g.RC.Stdout, "%s tests passed for %d service(s)\n", resp.Summary.Type, len(resp.Summary.Services))
	return nil
}
