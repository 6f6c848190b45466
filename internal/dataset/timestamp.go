package dataset

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// CanonicalTimestampFormat is the layout used when a timestamp crosses the
// wire and no other layout is configured.
const CanonicalTimestampFormat = time.RFC3339Nano

// sqlTimestampFormat matches SQLite's datetime() text and PostgreSQL's
// timestamp literal syntax.
const sqlTimestampFormat = "2006-01-02 15:04:05.999999999"

var errMissingTimestamp = errors.New("timestamp is missing")

// timestampLayouts are tried in order. Layouts without a zone yield UTC.
var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02 15:04:05.999999999Z07:00",
	"2006-01-02 15:04:05.999999999-07",
	sqlTimestampFormat,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04",
	"2006-01-02",
	time.RFC1123,
	time.RFC1123Z,
}

// ParseTimestamp parses the textual timestamp forms accepted by CSV files,
// SQL text columns, and the replay endpoint.
func ParseTimestamp(value string) (time.Time, error) {
	s := strings.TrimSpace(value)
	if s == "" {
		return time.Time{}, errMissingTimestamp
	}
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised timestamp %q", value)
}

// toTimestamp converts a scanned column value into a time.Time. Integers are
// read as Unix seconds.
func toTimestamp(v any) (time.Time, error) {
	switch x := v.(type) {
	case time.Time:
		return x, nil
	case string:
		return ParseTimestamp(x)
	case []byte:
		return ParseTimestamp(string(x))
	case int64:
		return time.Unix(x, 0).UTC(), nil
	case float64:
		sec, frac := math.Modf(x)
		return time.Unix(int64(sec), int64(frac*1e9)).UTC(), nil
	case nil:
		return time.Time{}, errMissingTimestamp
	default:
		return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
	}
}

// inferValue types a CSV cell: integers, then finite floats, else the raw
// string. Empty cells become nil.
func inferValue(s string) any {
	if s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return f
	}
	return s
}

func stringify(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case []byte:
		return string(x)
	case fmt.Stringer:
		return x.String()
	default:
		return fmt.Sprint(v)
	}
}
