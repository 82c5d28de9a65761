package metrics

import "time"

// ResultLabel enumerates per-unit result categories for counters.
type ResultLabel string

const (
	ResultSuccess ResultLabel = "success"
	ResultWarning ResultLabel = "warning"
	ResultFailed  ResultLabel = "failed"
)

// OutcomeLabel enumerates dispatch outcomes.
type OutcomeLabel string

const (
	OutcomeSuccess  OutcomeLabel = "success"
	OutcomeWarning  OutcomeLabel = "warning"
	OutcomeFailed   OutcomeLabel = "failed"
	OutcomeNoUnits  OutcomeLabel = "no_units"
	OutcomeCanceled OutcomeLabel = "canceled"
)

// Recorder defines observability hooks for dispatch and watch metrics.
// Implementations must be safe for concurrent use.
type Recorder interface {
	ObserveDispatchDuration(variant string, d time.Duration)
	IncDispatchOutcome(outcome OutcomeLabel)
	IncUnitResult(service string, result ResultLabel)
	IncWatchRebuild(trigger string)
	IncCoalescedChange()
	IncChildRestart()
	IncChildExit(crashed bool)
	SetWatchState(state string)
}

// NoopRecorder is a Recorder that does nothing (default when metrics not configured).
type NoopRecorder struct{}

func (NoopRecorder) ObserveDispatchDuration(string, time.Duration) {}
func (NoopRecorder) IncDispatchOutcome(OutcomeLabel)               {}
func (NoopRecorder) IncUnitResult(string, ResultLabel)             {}
func (NoopRecorder) IncWatchRebuild(string)                        {}
func (NoopRecorder) IncCoalescedChange()                           {}
func (NoopRecorder) IncChildRestart()                              {}
func (NoopRecorder) IncChildExit(bool)                             {}
func (NoopRecorder) SetWatchState(string)                          {}
