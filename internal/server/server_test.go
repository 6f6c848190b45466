package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/metrics"
	"github.com/torosent/streamsim/internal/replay"
	"github.com/torosent/streamsim/internal/server"
)

var base = time.Date(2022, 10, 12, 8, 0, 0, 0, time.UTC)

func newService(t *testing.T, batchSize int) *replay.Service {
	t.Helper()
	records := []dataset.Record{
		{"timestamp": base, "id": int64(1), "value": 20.5},
		{"timestamp": base.Add(time.Minute), "id": int64(2), "value": 21.0},
		{"timestamp": base.Add(2 * time.Minute), "id": int64(1), "value": "n/a"},
	}
	src := dataset.SourceFunc(func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.NewDataset("timestamp", records)
	})
	svc, err := replay.NewService(src, replay.Options{BatchSize: batchSize})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	return svc
}

type failingSource struct{}

func (failingSource) Next(ctx context.Context) (replay.Batch, error) {
	return replay.Batch{}, &dataset.ConnectionError{Driver: "postgres", Op: "ping", Err: errors.New("password authentication failed")}
}

func getJSON(t *testing.T, h http.Handler, path string) (*httptest.ResponseRecorder, []map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	if rec.Code != http.StatusOK {
		return rec, nil
	}
	var rows []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &rows); err != nil {
		t.Fatalf("decode body %q: %v", rec.Body.String(), err)
	}
	return rec, rows
}

func TestFetchBatchesInOrder(t *testing.T) {
	h := server.NewHandler(newService(t, 2), server.Options{Path: "fetchdata"})

	rec, rows := getJSON(t, h, "/fetchdata")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q", ct)
	}
	if rec.Header().Get(server.HeaderBatchID) == "" {
		t.Error("missing batch id header")
	}
	if rec.Header().Get(server.HeaderBatchOffset) != "0" {
		t.Errorf("offset header = %q, want 0", rec.Header().Get(server.HeaderBatchOffset))
	}
	if len(rows) != 2 {
		t.Fatalf("rows = %d, want 2", len(rows))
	}
	if rows[0]["timestamp"] != "2022-10-12T08:00:00Z" {
		t.Errorf("timestamp = %v, want RFC3339", rows[0]["timestamp"])
	}
	if rows[1]["value"] != 21.0 {
		t.Errorf("value = %v, want 21", rows[1]["value"])
	}

	rec, rows = getJSON(t, h, "/fetchdata")
	if len(rows) != 1 || rows[0]["value"] != "n/a" {
		t.Fatalf("second batch = %v", rows)
	}
	if rec.Header().Get(server.HeaderBatchOffset) != "2" {
		t.Errorf("offset header = %q, want 2", rec.Header().Get(server.HeaderBatchOffset))
	}

	_, rows = getJSON(t, h, "/fetchdata")
	if len(rows) != 2 || rows[0]["timestamp"] != "2022-10-12T08:00:00Z" {
		t.Fatalf("wrapped batch = %v", rows)
	}
}

func TestTimestampLayout(t *testing.T) {
	h := server.NewHandler(newService(t, 1), server.Options{Path: "/batch", TimestampLayout: "2006-01-02 15:04:05"})
	_, rows := getJSON(t, h, "/batch")
	if len(rows) != 1 || rows[0]["timestamp"] != "2022-10-12 08:00:00" {
		t.Fatalf("rows = %v", rows)
	}
}

func TestFetchErrorReturns500(t *testing.T) {
	m := metrics.NewReplayMetrics()
	h := server.NewHandler(failingSource{}, server.Options{Path: "fetchdata", Metrics: m, MetricsPath: "/metrics"})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fetchdata", nil))
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	var body map[string]string
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"] != "internal server error" {
		t.Errorf("error body = %v", body)
	}
	if strings.Contains(rec.Body.String(), "password") {
		t.Error("error body leaks the cause")
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "streamsim_batch_request_failures_total 1") {
		t.Errorf("metrics missing failure count:\n%s", rec.Body.String())
	}
}

func TestEmptyBatchIsEmptyArray(t *testing.T) {
	src := dataset.SourceFunc(func(ctx context.Context) (*dataset.Dataset, error) {
		return dataset.NewDataset("timestamp", nil)
	})
	svc, err := replay.NewService(src, replay.Options{BatchSize: 3})
	if err != nil {
		t.Fatalf("NewService() error = %v", err)
	}
	h := server.NewHandler(svc, server.Options{Path: "fetchdata"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/fetchdata", nil))
	if rec.Code != http.StatusOK || strings.TrimSpace(rec.Body.String()) != "[]" {
		t.Fatalf("status = %d body = %q, want 200 []", rec.Code, rec.Body.String())
	}
}

func TestRootRedirects(t *testing.T) {
	h := server.NewHandler(newService(t, 1), server.Options{Path: "fetchdata"})
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	if rec.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/fetchdata" {
		t.Fatalf("Location = %q, want /fetchdata", loc)
	}
}

func TestRoutes(t *testing.T) {
	h := server.NewHandler(newService(t, 1), server.Options{Path: "fetchdata", Metrics: metrics.NewReplayMetrics(), MetricsPath: "/metrics"})

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/healthz", http.StatusOK},
		{http.MethodGet, "/metrics", http.StatusOK},
		{http.MethodPost, "/fetchdata", http.StatusMethodNotAllowed},
		{http.MethodGet, "/unknown", http.StatusNotFound},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(tt.method, tt.path, nil))
		if rec.Code != tt.want {
			t.Errorf("%s %s = %d, want %d", tt.method, tt.path, rec.Code, tt.want)
		}
	}
}

func TestServeAndShutdown(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	srv := server.New(ln.Addr().String(), server.NewHandler(newService(t, 1), server.Options{Path: "fetchdata"}), time.Second)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/fetchdata")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "2022-10-12T08:00:00Z") {
		t.Fatalf("status = %d body = %s", resp.StatusCode, body)
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Serve() error = %v", err)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("server did not shut down")
	}
}

func TestRunListenError(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	srv := server.New(ln.Addr().String(), http.NotFoundHandler(), 0)
	if err := srv.Run(context.Background()); err == nil {
		t.Fatal("expected error when the address is in use")
	}
}
