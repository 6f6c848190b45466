package metrics_test

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/replay"
)

func gatherFamily(t *testing.T, m *metrics.ReplayMetrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Gather() error = %v", err)
	}
	for _, f := range families {
		if f.GetName() == name {
			return f
		}
	}
	t.Fatalf("metric family %q not gathered", name)
	return nil
}

func TestReplayMetricsObserver(t *testing.T) {
	m := metrics.NewReplayMetrics()

	m.DatasetLoaded(3, 20*time.Millisecond, nil)
	m.DatasetLoaded(0, time.Millisecond, errors.New("down"))
	m.BatchServed(replay.Batch{Records: []dataset.Record{{}, {}}})
	m.BatchServed(replay.Batch{Records: []dataset.Record{{}}, Wrapped: true})
	m.RequestFailed()

	if got := gatherFamily(t, m, "streamsim_batches_served_total").GetMetric()[0].GetCounter().GetValue(); got != 2 {
		t.Errorf("batches_served_total = %g, want 2", got)
	}
	if got := gatherFamily(t, m, "streamsim_records_served_total").GetMetric()[0].GetCounter().GetValue(); got != 3 {
		t.Errorf("records_served_total = %g, want 3", got)
	}
	if got := gatherFamily(t, m, "streamsim_cursor_wraps_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("cursor_wraps_total = %g, want 1", got)
	}
	if got := gatherFamily(t, m, "streamsim_batch_request_failures_total").GetMetric()[0].GetCounter().GetValue(); got != 1 {
		t.Errorf("batch_request_failures_total = %g, want 1", got)
	}
	// a failed load leaves the last good size in place
	if got := gatherFamily(t, m, "streamsim_dataset_records").GetMetric()[0].GetGauge().GetValue(); got != 3 {
		t.Errorf("dataset_records = %g, want 3", got)
	}
	if got := gatherFamily(t, m, "streamsim_dataset_load_duration_seconds").GetMetric()[0].GetHistogram().GetSampleCount(); got != 2 {
		t.Errorf("load duration samples = %d, want 2", got)
	}

	loads := map[string]float64{}
	for _, metric := range gatherFamily(t, m, "streamsim_dataset_loads_total").GetMetric() {
		for _, label := range metric.GetLabel() {
			if label.GetName() == "result" {
				loads[label.GetValue()] = metric.GetCounter().GetValue()
			}
		}
	}
	if loads["ok"] != 1 || loads["error"] != 1 {
		t.Errorf("dataset_loads_total = %v, want ok=1 error=1", loads)
	}
}

func TestReplayMetricsHandler(t *testing.T) {
	m := metrics.NewReplayMetrics()
	handler := m.InstrumentHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	handler.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/fetchdata", nil))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	body, _ := io.ReadAll(rec.Body)
	text := string(body)
	for _, want := range []string{
		`streamsim_http_requests_total{code="500",method="get"} 1`,
		"streamsim_batches_served_total 0",
		"go_goroutines",
	} {
		if !strings.Contains(text, want) {
			t.Errorf("exposition missing %q", want)
		}
	}
}
