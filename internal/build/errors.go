package build

import "errors"

// Sentinel errors used to classify dispatch failures.
// They should always be wrapped with contextual information at the call site.
var (
	ErrNoUnits        = errors.New("svcbuilder: no build units matched")
	ErrUnknownService = errors.New("svcbuilder: unknown service")
	ErrCompiler       = errors.New("svcbuilder: compiler error")
	ErrBuildFailed    = errors.New("svcbuilder: build failed")
	ErrCompilerClosed = errors.New("svcbuilder: compiler closed")
)
