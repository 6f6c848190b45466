package output

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/metrics"
)

func TestPrintReportBasic(t *testing.T) {
	stats := metrics.Stats{
		Total:       100,
		Successes:   95,
		Failures:    5,
		Records:     190,
		PollsPerSec: 1.0,
		Duration:    100 * time.Second,
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	if !strings.Contains(output, "Total Polls") {
		t.Errorf("Expected total polls in output")
	}
	if !strings.Contains(output, "95") {
		t.Errorf("Expected successes in output")
	}
	if !strings.Contains(output, "190") {
		t.Errorf("Expected record count in output")
	}
	if strings.Contains(output, "Errors:") {
		t.Errorf("Errors section should be omitted without failures")
	}
}

func TestPrintReportErrorsOrderedByCount(t *testing.T) {
	stats := metrics.Stats{
		Total:    6,
		Failures: 6,
		Errors: map[string]int{
			"Connection failed": 1,
			"HTTP 500 response": 5,
		},
	}

	var buf bytes.Buffer
	PrintReport(&buf, stats)

	output := buf.String()
	httpIdx := strings.Index(output, "HTTP 500 response: 5")
	urlIdx := strings.Index(output, "Connection failed: 1")
	if httpIdx == -1 || urlIdx == -1 {
		t.Fatalf("missing error lines:\n%s", output)
	}
	if httpIdx > urlIdx {
		t.Errorf("expected most frequent error first:\n%s", output)
	}
}

func TestPrintJSONReport(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintJSONReport(&buf, metrics.Stats{Total: 3, Successes: 3, Records: 9}); err != nil {
		t.Fatalf("PrintJSONReport() error = %v", err)
	}
	var parsed map[string]any
	if err := json.Unmarshal(buf.Bytes(), &parsed); err != nil {
		t.Fatalf("invalid JSON: %v", err)
	}
	if parsed["records"] != 9.0 {
		t.Errorf("records = %v, want 9", parsed["records"])
	}
}

func TestPrintRecords(t *testing.T) {
	ts := time.Date(2022, 10, 12, 8, 0, 0, 0, time.UTC)
	records := []dataset.Record{
		{"timestamp": ts, "id": int64(7), "temp": 20.5},
		{"timestamp": ts.Add(time.Second), "id": int64(8), "humidity": nil},
	}

	var buf bytes.Buffer
	if err := PrintRecords(&buf, "timestamp", records); err != nil {
		t.Fatalf("PrintRecords() error = %v", err)
	}
	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("lines = %d, want 3:\n%s", len(lines), buf.String())
	}
	header := strings.Fields(lines[0])
	want := []string{"timestamp", "humidity", "id", "temp"}
	if strings.Join(header, ",") != strings.Join(want, ",") {
		t.Errorf("header = %v, want %v", header, want)
	}
	if !strings.HasPrefix(lines[1], "2022-10-12T08:00:00Z") {
		t.Errorf("row 1 = %q", lines[1])
	}
	if !strings.Contains(lines[2], "-") || !strings.Contains(lines[2], "8") {
		t.Errorf("row 2 = %q", lines[2])
	}
}

func TestPrintRecordsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PrintRecords(&buf, "timestamp", nil); err != nil {
		t.Fatalf("PrintRecords() error = %v", err)
	}
	if strings.TrimSpace(buf.String()) != "(empty batch)" {
		t.Errorf("output = %q", buf.String())
	}
}
