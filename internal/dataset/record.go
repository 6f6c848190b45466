package dataset

import (
	"math"
	"sort"
	"strconv"
	"time"
)

// Record is one timestamped observation keyed by column name. The
// designated timestamp column always holds a time.Time. Records are shared
// between batches and must not be mutated after load.
type Record map[string]any

// Time returns the value of field as a time.Time.
func (r Record) Time(field string) (time.Time, bool) {
	v, ok := r[field]
	if !ok {
		return time.Time{}, false
	}
	t, ok := v.(time.Time)
	return t, ok
}

// Dataset is an immutable, timestamp-sorted sequence of records produced by
// one load. Reloading yields a new Dataset.
type Dataset struct {
	timestampField string
	records        []Record
}

// NewDataset builds a Dataset from records whose timestamp field already
// holds a time.Time. The input slice is copied and stable-sorted.
func NewDataset(timestampField string, records []Record) (*Dataset, error) {
	if timestampField == "" {
		return nil, configErrorf("timestamp_column", "timestamp field name is required")
	}
	for i, rec := range records {
		if _, ok := rec.Time(timestampField); !ok {
			return nil, &ParseError{Line: i + 1, Field: timestampField, Err: errMissingTimestamp}
		}
	}
	return newDataset(timestampField, append([]Record(nil), records...)), nil
}

// newDataset takes ownership of records and sorts them in place.
func newDataset(timestampField string, records []Record) *Dataset {
	sort.SliceStable(records, func(i, j int) bool {
		ti, _ := records[i].Time(timestampField)
		tj, _ := records[j].Time(timestampField)
		return ti.Before(tj)
	})
	return &Dataset{
		timestampField: timestampField,
		records:        records,
	}
}

// Len returns the number of records. A nil Dataset is empty.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.records)
}

// TimestampField returns the name of the designated timestamp column.
func (d *Dataset) TimestampField() string {
	if d == nil {
		return ""
	}
	return d.timestampField
}

// Slice returns records [start, end) clipped to the dataset bounds. The
// returned slice is a fresh header; appending to it never touches the
// dataset.
func (d *Dataset) Slice(start, end int) []Record {
	n := d.Len()
	if start < 0 {
		start = 0
	}
	if end > n {
		end = n
	}
	if start >= end {
		return []Record{}
	}
	out := make([]Record, end-start)
	copy(out, d.records[start:end])
	return out
}

// Records returns a copy of the full record sequence.
func (d *Dataset) Records() []Record {
	return d.Slice(0, d.Len())
}

// formatID renders an id value the way it is compared against configured
// ids, so that 7, int64(7), 7.0 and "7" all match "7".
func formatID(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case int:
		return strconv.Itoa(x)
	case int32:
		return strconv.FormatInt(int64(x), 10)
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		if x == math.Trunc(x) && math.Abs(x) < 1<<63 {
			return strconv.FormatInt(int64(x), 10)
		}
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	default:
		return stringify(v)
	}
}
