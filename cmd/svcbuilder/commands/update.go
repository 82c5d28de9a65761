package commands

import (
	"fmt"

	"git.home.luguber.info/inful/svcbuilder/internal/cli"
)

// UpdateCmd implements the 'update' command.
type UpdateCmd struct{}

func (u *UpdateCmd) Run(g *Global, root *CLI) error {
	resp, err := g.Executor().ExecuteUpdate(g.Context, cli.UpdateRequest{ConfigPath: root.Config}).ToTuple()
	if err != nil {
		return err
	}
	for _, f := range resp.Artifacts.Files {
		_, _ = fmt.Fprintf(g.RC.Stdout, "%s %s\n", f.Status, g.RC.Rel(f.Path))
	}
	return nil
}
