package build

import (
	"context"
	"time"

	"git.home.luguber.info/inful/svcbuilder/internal/config"
)

// NoDetail stands in for the file of an error the compiler did not attribute.
const NoDetail = "<no detail available>"

// Unit is one compilable target for one service. It is owned by the
// dispatcher for the duration of a single dispatch.
type Unit struct {
	Service   string
	Kind      config.ServiceKind
	Variant   config.BuildVariant
	Subdomain string
}

// UnitFactory creates the units for a variant and a service selection.
// An empty names slice selects every configured service. Returning no
// units signals that nothing matched.
type UnitFactory interface {
	CreateUnits(p *config.Project, variant config.BuildVariant, names []string) ([]Unit, error)
}

// RawError is an error as the compiler reported it. File is empty when the
// compiler could not attribute the error.
type RawError struct {
	File    string
	Message string
}

// CompileResult is the compiler's status for one unit. Errors and
// FormattedErrors are two renderings of the same failures and may disagree
// in length.
type CompileResult struct {
	Service         string
	Errors          []RawError
	FormattedErrors []string
	Warnings        []string
}

// Compiler runs a batch of units. Close releases whatever the compiler holds
// and is called exactly once per dispatch.
type Compiler interface {
	RunAll(ctx context.Context, units []Unit) ([]CompileResult, error)
	Close() error
}

// CompilerFactory constructs a compiler for one dispatch.
type CompilerFactory func(units []Unit) (Compiler, error)

// Diagnostic is one build error attributed to a file.
type Diagnostic struct {
	File    string
	Message string
}

// UnitResult is the normalized result of one unit.
type UnitResult struct {
	Service   string
	HasErrors bool
	Errors    []Diagnostic
	Warnings  []string
}

// Status classifies the unit result.
func (r UnitResult) Status() Status {
	switch {
	case r.HasErrors:
		return StatusFailed
	case len(r.Warnings) > 0:
		return StatusWarning
	default:
		return StatusSuccess
	}
}

// Outcome aggregates every unit of one dispatch. It is immutable once returned.
type Outcome struct {
	BuildID   string
	Variant   config.BuildVariant
	Succeeded bool
	Units     []UnitResult
	Duration  time.Duration
}

// Failed returns the units that reported errors.
func (o *Outcome) Failed() []UnitResult {
	var out []UnitResult
	for _, u := range o.Units {
		if u.HasErrors {
			out = append(out, u)
		}
	}
	return out
}

// HasWarnings reports whether any unit produced warnings.
func (o *Outcome) HasWarnings() bool {
	for _, u := range o.Units {
		if len(u.Warnings) > 0 {
			return true
		}
	}
	return false
}

// Status represents the classification of a unit or a whole dispatch.
type Status string

const (
	StatusSuccess  Status = "success"
	StatusWarning  Status = "warning"
	StatusFailed   Status = "failed"
	StatusCanceled Status = "canceled"
)

// IsSuccess returns true for statuses that do not fail a build.
func (s Status) IsSuccess() bool {
	return s == StatusSuccess || s == StatusWarning
}

// Status classifies the whole dispatch.
func (o *Outcome) Status() Status {
	switch {
	case !o.Succeeded:
		return StatusFailed
	case o.HasWarnings():
		return StatusWarning
	default:
		return StatusSuccess
	}
}
