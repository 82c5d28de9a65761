package commands

import (
	"fmt"

	"git.home.luguber.info/inful/svcbuilder/internal/version"
)

// VersionCmd implements the 'version' command.
type VersionCmd struct{}

func (v *VersionCmd) Run(g *Global) error {
	_, err := fmt.Fprintf(g.RC.Stdout, "svcbuilder %s (commit %s, built %s)\n", version.Version, version.GitCommit, version.BuildTime)
	return err
}
