package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	prom "github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/require"
)

func TestPrometheusRecorder(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)

	pr.ObserveDispatchDuration("production", 500*time.Millisecond)
	pr.IncDispatchOutcome(OutcomeFailed)
	pr.IncUnitResult("api", ResultFailed)
	pr.IncUnitResult("web", ResultSuccess)
	pr.IncWatchRebuild("change")
	pr.IncCoalescedChange()
	pr.IncChildRestart()
	pr.IncChildExit(true)
	pr.SetWatchState("running")

	mfs, err := reg.Gather()
	require.NoError(t, err)

	values := map[string]float64{}
	for _, mf := range mfs {
		for _, m := range mf.GetMetric() {
			key := mf.GetName()
			for _, lp := range m.GetLabel() {
				key += "|" + lp.GetName() + "=" + lp.GetValue()
			}
			switch {
			case m.GetCounter() != nil:
				values[key] = m.GetCounter().GetValue()
			case m.GetGauge() != nil:
				values[key] = m.GetGauge().GetValue()
			}
		}
	}

	require.InDelta(t, 1, values["svcbuilder_dispatch_outcomes_total|outcome=failed"], 0)
	require.InDelta(t, 1, values["svcbuilder_unit_results_total|result=failed|service=api"], 0)
	require.InDelta(t, 1, values["svcbuilder_child_exits_total|kind=crash"], 0)
	require.InDelta(t, 1, values["svcbuilder_watch_state|state=running"], 0)
	require.InDelta(t, 0, values["svcbuilder_watch_state|state=building"], 0)
}

func TestHTTPHandlerServesRegistry(t *testing.T) {
	reg := prom.NewRegistry()
	pr := NewPrometheusRecorder(reg)
	pr.IncChildRestart()

	rec := httptest.NewRecorder()
	HTTPHandler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	require.True(t, strings.Contains(rec.Body.String(), "svcbuilder_child_restarts_total 1"))
}

func TestNoopRecorderSatisfiesInterface(t *testing.T) {
	var r Recorder = NoopRecorder{}
	r.IncDispatchOutcome(OutcomeSuccess)
	r.SetWatchState("idle")
}
