package dataset

import (
	"strings"
	"time"
)

// Filter restricts which records enter a Dataset. It is applied once at
// load time.
type Filter struct {
	// IDs keeps only records whose id column matches one of the values.
	// Empty means no id restriction.
	IDs []string
	// MinTimestamp keeps only records at or after this instant. The zero
	// value means no lower bound.
	MinTimestamp time.Time
}

// HasIDs reports whether the filter restricts by id.
func (f Filter) HasIDs() bool {
	return len(f.IDs) > 0
}

// HasMinTimestamp reports whether the filter has a timestamp lower bound.
func (f Filter) HasMinTimestamp() bool {
	return !f.MinTimestamp.IsZero()
}

func (f Filter) idSet() map[string]struct{} {
	if !f.HasIDs() {
		return nil
	}
	set := make(map[string]struct{}, len(f.IDs))
	for _, id := range f.IDs {
		set[strings.TrimSpace(id)] = struct{}{}
	}
	return set
}

// apply returns the records that pass the filter, preserving order.
func (f Filter) apply(records []Record, idField, timestampField string) []Record {
	if !f.HasIDs() && !f.HasMinTimestamp() {
		return records
	}
	ids := f.idSet()
	out := records[:0:0]
	for _, rec := range records {
		if ids != nil {
			if _, ok := ids[formatID(rec[idField])]; !ok {
				continue
			}
		}
		if f.HasMinTimestamp() {
			ts, _ := rec.Time(timestampField)
			if ts.Before(f.MinTimestamp) {
				continue
			}
		}
		out = append(out, rec)
	}
	return out
}
