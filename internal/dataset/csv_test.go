package dataset

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeCSV(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "readings.csv")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile() error = %v", err)
	}
	return path
}

const unsortedReadings = `id,timestamp,value
B,2022-10-12 00:00:02,20
A,2022-10-12 00:00:00,10
C,2022-10-12 00:00:01,15
A,2022-10-12 00:00:03,30
`

func TestCSVSourceSortsByTimestamp(t *testing.T) {
	path := writeCSV(t, unsortedReadings)
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}

	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 4 {
		t.Fatalf("Len() = %d, want 4", ds.Len())
	}

	var prev time.Time
	for i, rec := range ds.Records() {
		ts, ok := rec.Time("timestamp")
		if !ok {
			t.Fatalf("record %d timestamp is %T, want time.Time", i, rec["timestamp"])
		}
		if ts.Before(prev) {
			t.Errorf("record %d at %s is before %s", i, ts, prev)
		}
		prev = ts
	}

	first := ds.Records()[0]
	if first["id"] != "A" || first["value"] != int64(10) {
		t.Errorf("first record = %v, want id A value 10", first)
	}
}

func TestCSVSourceFilters(t *testing.T) {
	path := writeCSV(t, unsortedReadings)
	min := time.Date(2022, 10, 12, 0, 0, 1, 0, time.UTC)

	tests := []struct {
		name   string
		filter Filter
		want   []string
	}{
		{"none", Filter{}, []string{"A", "C", "B", "A"}},
		{"ids", Filter{IDs: []string{"A", "B"}}, []string{"A", "B", "A"}},
		{"min timestamp", Filter{MinTimestamp: min}, []string{"C", "B", "A"}},
		{"ids and min timestamp", Filter{IDs: []string{"A", "B"}, MinTimestamp: min}, []string{"B", "A"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src, err := NewCSVSource(path, "timestamp", "", tt.filter)
			if err != nil {
				t.Fatalf("NewCSVSource() error = %v", err)
			}
			ds, err := src.Load(context.Background())
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			got := ids(ds)
			if !equalStrings(got, tt.want) {
				t.Errorf("ids = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCSVSourceNumericIDs(t *testing.T) {
	path := writeCSV(t, "id,timestamp\n1,2022-01-01\n2,2022-01-02\n3,2022-01-03\n")
	src, err := NewCSVSource(path, "timestamp", "id", Filter{IDs: []string{"1", " 3"}})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if got := ids(ds); !equalStrings(got, []string{"1", "3"}) {
		t.Errorf("ids = %v, want [1 3]", got)
	}
}

func TestCSVSourceHeaderOnlyIsEmpty(t *testing.T) {
	path := writeCSV(t, "id,timestamp,value\n")
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	ds, err := src.Load(context.Background())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if ds.Len() != 0 {
		t.Errorf("Len() = %d, want 0", ds.Len())
	}
}

func TestCSVSourceBadTimestamp(t *testing.T) {
	path := writeCSV(t, "id,timestamp\nA,2022-10-12 00:00:00\nB,yesterday\n")
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}

	_, err = src.Load(context.Background())
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
	if perr.Line != 3 {
		t.Errorf("Line = %d, want 3", perr.Line)
	}
	if perr.Value != "yesterday" {
		t.Errorf("Value = %q, want yesterday", perr.Value)
	}
}

func TestCSVSourceRaggedRow(t *testing.T) {
	path := writeCSV(t, "id,timestamp\nA,2022-10-12\nB\n")
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	_, err = src.Load(context.Background())
	var perr *ParseError
	if !errors.As(err, &perr) {
		t.Fatalf("Load() error = %v, want *ParseError", err)
	}
}

func TestCSVSourceMissingTimestampColumn(t *testing.T) {
	path := writeCSV(t, "id,time\nA,2022-10-12\n")
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	_, err = src.Load(context.Background())
	var cerr *ConfigurationError
	if !errors.As(err, &cerr) {
		t.Fatalf("Load() error = %v, want *ConfigurationError", err)
	}
}

func TestCSVSourceMissingFile(t *testing.T) {
	src, err := NewCSVSource(filepath.Join(t.TempDir(), "absent.csv"), "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	if _, err := src.Load(context.Background()); !errors.Is(err, os.ErrNotExist) {
		t.Errorf("Load() error = %v, want os.ErrNotExist", err)
	}
}

func TestCSVSourceCancelledContext(t *testing.T) {
	path := writeCSV(t, unsortedReadings)
	src, err := NewCSVSource(path, "timestamp", "id", Filter{})
	if err != nil {
		t.Fatalf("NewCSVSource() error = %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := src.Load(ctx); !errors.Is(err, context.Canceled) {
		t.Errorf("Load() error = %v, want context.Canceled", err)
	}
}

func ids(ds *Dataset) []string {
	out := make([]string, 0, ds.Len())
	for _, rec := range ds.Records() {
		out = append(out, formatID(rec["id"]))
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
