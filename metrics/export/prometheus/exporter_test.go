package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/MrEthical07/twostep"
)

type fakeSource struct {
	snapshot twostep.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() twostep.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                     { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: twostep.MetricsSnapshot{
			Counters:   map[twostep.MetricID]uint64{},
			Histograms: map[twostep.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCounterAndHistogram(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: twostep.MetricsSnapshot{
			Counters: map[twostep.MetricID]uint64{
				twostep.MetricLoginVerifySuccess: 7,
				twostep.MetricRollback:           1,
			},
			Histograms: map[twostep.MetricID][]uint64{
				twostep.MetricFlowLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"# TYPE twostep_flow_steps_total counter",
		`twostep_flow_steps_total{flow="login_verify",outcome="success"} 7`,
		`twostep_flow_steps_total{flow="create_first",outcome="success"} 0`,
		`twostep_flow_steps_total{flow="authenticate",outcome="failure"} 0`,
		"twostep_rollback_total 1",
		"twostep_flow_latency_seconds_bucket{le=\"0.01\"} 1",
		"twostep_flow_latency_seconds_bucket{le=\"+Inf\"} 36",
		"twostep_flow_latency_seconds_count 36",
		"twostep_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: twostep.MetricsSnapshot{
			Counters:   map[twostep.MetricID]uint64{twostep.MetricLogout: 1},
			Histograms: map[twostep.MetricID][]uint64{},
		},
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, req)

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "twostep_logout_total 1") {
		t.Fatalf("expected logout counter in body, got:\n%s", rec.Body.String())
	}
}

func BenchmarkRender(b *testing.B) {
	exp := NewPrometheusExporterFromSource(fakeSource{
		snapshot: twostep.MetricsSnapshot{
			Counters: map[twostep.MetricID]uint64{
				twostep.MetricLoginFirstSuccess:  1000,
				twostep.MetricLoginFirstFailure:  40,
				twostep.MetricLoginVerifySuccess: 800,
				twostep.MetricSessionCreated:     800,
				twostep.MetricSessionRevoked:     20,
			},
			Histograms: map[twostep.MetricID][]uint64{
				twostep.MetricFlowLatency: {10, 20, 30, 40, 50, 60, 70, 80},
			},
		},
	})

	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = exp.Render()
	}
}
