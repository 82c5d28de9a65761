// Package build dispatches build units to an external compiler and aggregates
// their results into one Outcome.
//
// All execution paths (one-shot CLI builds, the watch supervisor, tests) route
// through Dispatcher. The unit factory and the compiler are injected so the
// dispatcher never depends on a concrete bundler.
//
// The package also defines sentinel errors for classifying dispatch failures.
// They are always wrapped with contextual information at the call site.
package build
