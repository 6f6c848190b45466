package consumer

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
)

// decodeBatch parses a JSON array of objects. Numbers become int64 when
// integral and float64 otherwise, and the timestamp field is converted back
// to time.Time using layout, falling back to the accepted input layouts.
func decodeBatch(r io.Reader, timestampField, layout string) ([]dataset.Record, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var rows []map[string]any
	if err := dec.Decode(&rows); err != nil {
		return nil, &DecodeError{Err: err}
	}
	if rows == nil {
		return nil, &DecodeError{Err: errors.New("expected a JSON array, got null")}
	}

	records := make([]dataset.Record, len(rows))
	for i, row := range rows {
		rec := make(dataset.Record, len(row))
		for k, v := range row {
			rec[k] = convertNumber(v)
		}
		if timestampField != "" {
			raw, ok := rec[timestampField].(string)
			if !ok {
				return nil, &DecodeError{Err: fmt.Errorf("record %d: timestamp field %q missing or not a string", i, timestampField)}
			}
			ts, err := parseTimestamp(raw, layout)
			if err != nil {
				return nil, &DecodeError{Err: fmt.Errorf("record %d: %w", i, err)}
			}
			rec[timestampField] = ts
		}
		records[i] = rec
	}
	return records, nil
}

func parseTimestamp(raw, layout string) (time.Time, error) {
	if layout != "" {
		if ts, err := time.Parse(layout, raw); err == nil {
			return ts.UTC(), nil
		}
	}
	return dataset.ParseTimestamp(raw)
}

func convertNumber(v any) any {
	n, ok := v.(json.Number)
	if !ok {
		return v
	}
	if i, err := n.Int64(); err == nil {
		return i
	}
	if f, err := n.Float64(); err == nil {
		return f
	}
	return n.String()
}
