package replay_test

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
	"github.com/torosent/streamsim/internal/replay"
)

var base = time.Date(2022, 10, 12, 8, 0, 0, 0, time.UTC)

func makeDataset(t *testing.T, n int) *dataset.Dataset {
	t.Helper()
	records := make([]dataset.Record, n)
	for i := range records {
		records[i] = dataset.Record{
			"timestamp": base.Add(time.Duration(i) * time.Minute),
			"seq":       i + 1,
		}
	}
	ds, err := dataset.NewDataset("timestamp", records)
	if err != nil {
		t.Fatalf("NewDataset() error = %v", err)
	}
	return ds
}

func seqs(records []dataset.Record) []int {
	out := make([]int, len(records))
	for i, r := range records {
		out[i] = r["seq"].(int)
	}
	return out
}

func equalInts(a, b []int) bool {
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

func TestCursorExample(t *testing.T) {
	cur, err := replay.NewCursor(makeDataset(t, 3), 2)
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}

	want := [][]int{{1, 2}, {3}, {1, 2}}
	for i, w := range want {
		got := seqs(cur.Next())
		if !equalInts(got, w) {
			t.Fatalf("call %d: Next() = %v, want %v", i+1, got, w)
		}
	}
}

func TestCursorFullCycle(t *testing.T) {
	tests := []struct {
		records   int
		batchSize int
		cycle     int
	}{
		{records: 10, batchSize: 1, cycle: 10},
		{records: 10, batchSize: 3, cycle: 4},
		{records: 10, batchSize: 5, cycle: 2},
		{records: 10, batchSize: 10, cycle: 1},
		{records: 10, batchSize: 25, cycle: 1},
	}

	for _, tt := range tests {
		cur, err := replay.NewCursor(makeDataset(t, tt.records), tt.batchSize)
		if err != nil {
			t.Fatalf("NewCursor() error = %v", err)
		}
		if cur.CycleLength() != tt.cycle {
			t.Errorf("len=%d b=%d: CycleLength() = %d, want %d", tt.records, tt.batchSize, cur.CycleLength(), tt.cycle)
		}

		var seen []int
		for i := 0; i < tt.cycle; i++ {
			b := cur.NextBatch()
			if wantWrap := i == tt.cycle-1; b.Wrapped != wantWrap {
				t.Errorf("len=%d b=%d call %d: Wrapped = %t, want %t", tt.records, tt.batchSize, i, b.Wrapped, wantWrap)
			}
			seen = append(seen, seqs(b.Records)...)
		}
		if len(seen) != tt.records {
			t.Fatalf("len=%d b=%d: cycle yielded %d records", tt.records, tt.batchSize, len(seen))
		}
		for i, s := range seen {
			if s != i+1 {
				t.Fatalf("len=%d b=%d: record %d = %d, want %d", tt.records, tt.batchSize, i, s, i+1)
			}
		}
		if cur.Position() != 0 {
			t.Errorf("len=%d b=%d: Position() after cycle = %d, want 0", tt.records, tt.batchSize, cur.Position())
		}
	}
}

func TestCursorWrapStartsAtZero(t *testing.T) {
	cur, err := replay.NewCursor(makeDataset(t, 4), 3)
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}
	first := cur.NextBatch()
	last := cur.NextBatch()
	again := cur.NextBatch()

	if first.Offset != 0 || last.Offset != 3 || again.Offset != 0 {
		t.Errorf("offsets = %d, %d, %d, want 0, 3, 0", first.Offset, last.Offset, again.Offset)
	}
	if !equalInts(seqs(last.Records), []int{4}) {
		t.Errorf("tail batch = %v, want [4]", seqs(last.Records))
	}
	if !equalInts(seqs(again.Records), seqs(first.Records)) {
		t.Errorf("after wrap = %v, want %v", seqs(again.Records), seqs(first.Records))
	}
}

func TestCursorEmptyDataset(t *testing.T) {
	ds, err := dataset.NewDataset("timestamp", nil)
	if err != nil {
		t.Fatalf("NewDataset() error = %v", err)
	}
	cur, err := replay.NewCursor(ds, 5)
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}
	for i := 0; i < 3; i++ {
		got := cur.Next()
		if got == nil || len(got) != 0 {
			t.Fatalf("Next() = %v, want empty non-nil slice", got)
		}
		if cur.Position() != 0 {
			t.Fatalf("Position() = %d, want 0", cur.Position())
		}
	}
}

func TestNewCursorInvalidBatchSize(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := replay.NewCursor(makeDataset(t, 3), size)
		var cfgErr *dataset.ConfigurationError
		if !errors.As(err, &cfgErr) {
			t.Errorf("NewCursor(b=%d) error = %v, want ConfigurationError", size, err)
		}
	}
}

func TestCursorNextDoesNotAliasDataset(t *testing.T) {
	ds := makeDataset(t, 3)
	cur, err := replay.NewCursor(ds, 2)
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}
	batch := cur.Next()
	batch[0] = dataset.Record{"seq": 99}
	if got := ds.Records()[0]["seq"]; got != 1 {
		t.Errorf("dataset record 0 seq = %v, want 1", got)
	}
}

func TestCursorConcurrentNext(t *testing.T) {
	const (
		records = 100
		workers = 10
	)
	cur, err := replay.NewCursor(makeDataset(t, records), 1)
	if err != nil {
		t.Fatalf("NewCursor() error = %v", err)
	}

	var (
		mu   sync.Mutex
		seen = make(map[int]int)
		wg   sync.WaitGroup
	)
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < records/workers; i++ {
				rec := cur.Next()
				mu.Lock()
				seen[rec[0]["seq"].(int)]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	if len(seen) != records {
		t.Fatalf("distinct records = %d, want %d", len(seen), records)
	}
	for seq, n := range seen {
		if n != 1 {
			t.Errorf("record %d served %d times in one cycle", seq, n)
		}
	}
}
