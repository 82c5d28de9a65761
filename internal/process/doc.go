// Package process spawns external commands and reports their lifecycle.
//
// Long-running children (the development server) are driven through a Handle:
// the caller receives exactly one Event when the child ends and may Stop it
// with a grace period. One-shot steps (dependency install, production build)
// go through RunOnce, whose Policy decides whether a non-zero exit aborts the
// caller (PolicyAbort, an *ExitError carrying the child's code) or is merely
// reported (PolicyReport).
package process
