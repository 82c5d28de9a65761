// Package metrics provides the metrics hooks for build dispatch and watch supervision.
//
// Components receive a Recorder through dependency injection and default to
// NoopRecorder, so no nil checks are needed at call sites:
//
//	dispatcher := build.NewDispatcher(project, factory, compilers).
//		WithRecorder(metrics.NewPrometheusRecorder(reg))
//
// The Prometheus implementation registers its collectors on the supplied
// registry; HTTPHandler exposes that registry for scraping while a watch
// session is running.
package metrics
