package metrics

import (
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
)

// WatchStates lists the supervisor states exported through the state gauge.
var WatchStates = []string{"idle", "starting", "building", "running", "restarting", "stopped"}

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	dispatchDuration *prom.HistogramVec
	dispatchOutcome  *prom.CounterVec
	unitResults      *prom.CounterVec
	watchRebuilds    *prom.CounterVec
	coalesced        prom.Counter
	childRestarts    prom.Counter
	childExits       *prom.CounterVec
	watchState       *prom.GaugeVec
}

// NewPrometheusRecorder constructs and registers the svcbuilder collectors on reg.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		dispatchDuration: prom.NewHistogramVec(prom.HistogramOpts{
			Namespace: "svcbuilder",
			Name:      "dispatch_duration_seconds",
			Help:      "Duration of build dispatches",
			Buckets:   prom.DefBuckets,
		}, []string{"variant"}),
		dispatchOutcome: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "dispatch_outcomes_total",
			Help:      "Build dispatch outcomes by final status",
		}, []string{"outcome"}),
		unitResults: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "unit_results_total",
			Help:      "Build unit results by service and status",
		}, []string{"service", "result"}),
		watchRebuilds: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "watch_rebuilds_total",
			Help:      "Rebuilds started by the watch supervisor",
		}, []string{"trigger"}),
		coalesced: prom.NewCounter(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "watch_coalesced_changes_total",
			Help:      "Change sets folded into a pending rebuild while a build was in flight",
		}),
		childRestarts: prom.NewCounter(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "child_restarts_total",
			Help:      "Server process replacements after a successful rebuild",
		}),
		childExits: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "svcbuilder",
			Name:      "child_exits_total",
			Help:      "Unrequested server process exits",
		}, []string{"kind"}),
		watchState: prom.NewGaugeVec(prom.GaugeOpts{
			Namespace: "svcbuilder",
			Name:      "watch_state",
			Help:      "Current watch supervisor state (1 for the active state)",
		}, []string{"state"}),
	}
	reg.MustRegister(pr.dispatchDuration, pr.dispatchOutcome, pr.unitResults, pr.watchRebuilds,
		pr.coalesced, pr.childRestarts, pr.childExits, pr.watchState)
	return pr
}

func (p *PrometheusRecorder) ObserveDispatchDuration(variant string, d time.Duration) {
	p.dispatchDuration.WithLabelValues(variant).Observe(d.Seconds())
}

func (p *PrometheusRecorder) IncDispatchOutcome(outcome OutcomeLabel) {
	p.dispatchOutcome.WithLabelValues(string(outcome)).Inc()
}

func (p *PrometheusRecorder) IncUnitResult(service string, result ResultLabel) {
	p.unitResults.WithLabelValues(service, string(result)).Inc()
}

func (p *PrometheusRecorder) IncWatchRebuild(trigger string) {
	p.watchRebuilds.WithLabelValues(trigger).Inc()
}

func (p *PrometheusRecorder) IncCoalescedChange() { p.coalesced.Inc() }

func (p *PrometheusRecorder) IncChildRestart() { p.childRestarts.Inc() }

func (p *PrometheusRecorder) IncChildExit(crashed bool) {
	kind := "clean"
	if crashed {
		kind = "crash"
	}
	p.childExits.WithLabelValues(kind).Inc()
}

func (p *PrometheusRecorder) SetWatchState(state string) {
	for _, s := range WatchStates {
		v := 0.0
		if s == state {
			v = 1
		}
		p.watchState.WithLabelValues(s).Set(v)
	}
}
