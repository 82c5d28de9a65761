// Package errors provides the classified error primitives used across svcbuilder.
//
// Every failure that crosses a component boundary (config loading, artifact
// regeneration, build dispatch, process supervision) is expressed as a
// ClassifiedError so the CLI can choose an exit code and the watch loop can
// decide whether a failure is recoverable.
//
// Key features:
//   - ErrorCategory: broad classification (config, validation, artifact, build, process, ...)
//   - ErrorSeverity: impact level (fatal, error)
//   - RetryStrategy: whether re-running the same operation can help
//   - ErrorBuilder: fluent construction with structured context
//   - CLIErrorAdapter: exit code mapping and user-facing formatting
//
// Example usage:
//
//	err := errors.ArtifactError("path-mapping file is not valid JSON").
//		WithContext("file", "tsconfig.json").
//		Build()
package errors
