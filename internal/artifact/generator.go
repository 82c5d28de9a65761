// Package artifact regenerates the derived files downstream tooling reads:
// the path-mapping file (tsconfig.json) and the ambient declarations module.
package artifact

import (
	"context"
	stderrors "errors"

	"git.home.luguber.info/inful/svcbuilder/internal/alias"
	"git.home.luguber.info/inful/svcbuilder/internal/config"
	"git.home.luguber.info/inful/svcbuilder/internal/foundation/errors"
	"git.home.luguber.info/inful/svcbuilder/internal/logfields"
	"git.home.luguber.info/inful/svcbuilder/internal/observability"
	"git.home.luguber.info/inful/svcbuilder/internal/runctx"
)

// FileStatus describes what happened to one artifact.
type FileStatus string

const (
	StatusWritten FileStatus = "written"
	StatusSkipped FileStatus = "skipped"
)

// FileResult records the outcome for one artifact path.
type FileResult struct {
	Path   string
	Status FileStatus
	Reason string
}

// Report lists the artifacts touched by one Generate call.
type Report struct {
	Files []FileResult
	Rules int
}

// Written returns the paths that were rewritten.
func (r *Report) Written() []string {
	var out []string
	for _, f := range r.Files {
		if f.Status == StatusWritten {
			out = append(out, f.Path)
		}
	}
	return out
}

// snapshot is the resolved input shared by both artifacts of one run.
type snapshot struct {
	project *config.Project
	table   *alias.Table
}

// Generator regenerates artifacts relative to a run context's working directory.
type Generator struct {
	rc   *runctx.RunContext
	stat alias.StatFunc
}

// NewGenerator creates a generator rooted at rc.WorkDir.
func NewGenerator(rc *runctx.RunContext) *Generator {
	return &Generator{rc: rc, stat: alias.DirStat(rc.WorkDir)}
}

// WithStat overrides how alias targets are inspected.
func (g *Generator) WithStat(stat alias.StatFunc) *Generator {
	g.stat = stat
	return g
}

// Generate resolves aliases once, then rewrites the path-mapping file followed
// by the declarations file. A failure on the path-mapping file stops the run
// before declarations are touched; nothing already written is rolled back.
func (g *Generator) Generate(ctx context.Context, p *config.Project) (*Report, error) {
	ctx = observability.WithStage(ctx, "artifacts")

	table, err := alias.ResolveAll(p, g.stat)
	if err != nil {
		return nil, err
	}
	snap := snapshot{project: p, table: table}
	report := &Report{Rules: table.Len()}

	if err := ctx.Err(); err != nil {
		return report, err
	}
	res, err := g.pathMapping(ctx, snap)
	if err != nil {
		return report, err
	}
	report.Files = append(report.Files, res)

	if err := ctx.Err(); err != nil {
		return report, err
	}
	res, err = g.declarations(ctx, snap)
	if err != nil {
		return report, err
	}
	report.Files = append(report.Files, res)
	return report, nil
}

func (g *Generator) pathMapping(ctx context.Context, snap snapshot) (FileResult, error) {
	rel := snap.project.Orchestrator.PathMappingFile
	written, err := updatePathMapping(g.rc.Resolve(rel), snap.table)
	if err != nil {
		b := errors.FileSystemError("failed to update path-mapping file")
		if stderrors.Is(err, ErrMalformedPathMapping) {
			b = errors.ArtifactError("failed to update path-mapping file")
		}
		return FileResult{}, b.WithCause(err).WithContext("path", rel).Build()
	}
	if !written {
		observability.WarnContext(ctx, "Path-mapping file not found, skipping update", logfields.Path(rel))
		return FileResult{Path: rel, Status: StatusSkipped, Reason: "file not found"}, nil
	}
	observability.InfoContext(ctx, "Updated path-mapping file", logfields.Path(rel), logfields.Count(snap.table.Len()))
	return FileResult{Path: rel, Status: StatusWritten}, nil
}

func (g *Generator) declarations(ctx context.Context, snap snapshot) (FileResult, error) {
	rel := snap.project.Orchestrator.DeclarationsFile
	if err := writeDeclarations(g.rc.Resolve(rel), snap.project); err != nil {
		return FileResult{}, errors.FileSystemError("failed to write declarations file").WithCause(err).
			WithContext("path", rel).
			Build()
	}
	observability.InfoContext(ctx, "Generated declarations file", logfields.Path(rel), logfields.Count(len(snap.project.Services)))
	return FileResult{Path: rel, Status: StatusWritten}, nil
}
