package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.ObserveAnalysis(150 * time.Millisecond)
	r.ObserveService("active")
	r.ObserveService("active")
	r.ObserveService("not_found")
	r.ObserveCheck("ok", 10*time.Millisecond)
	r.ObserveCheck("timeout", time.Second)
	r.AddDroppedEdges(3)
	r.AddDroppedEdges(0)
	r.ObserveGlobalIssue("missing_critical_service")
	r.ObserveStrategy("canary")

	cases := []struct {
		name string
		got  float64
		want float64
	}{
		{name: "analyses", got: testutil.ToFloat64(r.analysesTotal), want: 1},
		{name: "active_services", got: testutil.ToFloat64(r.servicesAnalyzed.WithLabelValues("active")), want: 2},
		{name: "not_found_services", got: testutil.ToFloat64(r.servicesAnalyzed.WithLabelValues("not_found")), want: 1},
		{name: "timeouts", got: testutil.ToFloat64(r.checksTotal.WithLabelValues("timeout")), want: 1},
		{name: "dropped_edges", got: testutil.ToFloat64(r.edgesDroppedTotal), want: 3},
		{name: "global_issues", got: testutil.ToFloat64(r.globalIssuesTotal.WithLabelValues("missing_critical_service")), want: 1},
		{name: "strategies", got: testutil.ToFloat64(r.strategiesTotal.WithLabelValues("canary")), want: 1},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if tc.got != tc.want {
				t.Fatalf("expected %v, got %v", tc.want, tc.got)
			}
		})
	}
}

func TestBreakerStateGauge(t *testing.T) {
	r := New()

	r.SetBreakerState("open")
	if got := testutil.ToFloat64(r.breakerState); got != 2 {
		t.Fatalf("expected open=2, got %v", got)
	}
	r.SetBreakerState("half-open")
	if got := testutil.ToFloat64(r.breakerState); got != 1 {
		t.Fatalf("expected half-open=1, got %v", got)
	}
	r.SetBreakerState("closed")
	if got := testutil.ToFloat64(r.breakerState); got != 0 {
		t.Fatalf("expected closed=0, got %v", got)
	}
}

func TestNilRecorderIsNoop(t *testing.T) {
	var r *Recorder
	r.ObserveAnalysis(time.Second)
	r.ObserveService("active")
	r.ObserveCheck("ok", time.Second)
	r.AddDroppedEdges(1)
	r.ObserveGlobalIssue("x")
	r.ObserveStrategy("immediate")
	r.SetBreakerState("open")
	if r.Registry() != nil {
		t.Fatal("expected nil registry for nil recorder")
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveStrategy("gradual")

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `compatspectre_strategies_total{kind="gradual"} 1`) {
		t.Fatalf("expected strategy counter in exposition, got:\n%s", rec.Body.String())
	}
}
