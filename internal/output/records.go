package output

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
)

// PrintRecords writes records as an aligned table indexed by the timestamp
// column, followed by the remaining columns in name order.
func PrintRecords(w io.Writer, timestampField string, records []dataset.Record) error {
	if len(records) == 0 {
		_, err := fmt.Fprintln(w, "(empty batch)")
		return err
	}

	columnSet := map[string]struct{}{}
	for _, rec := range records {
		for k := range rec {
			if k != timestampField {
				columnSet[k] = struct{}{}
			}
		}
	}
	columns := make([]string, 0, len(columnSet))
	for k := range columnSet {
		columns = append(columns, k)
	}
	sort.Strings(columns)

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, strings.Join(append([]string{timestampField}, columns...), "\t"))
	for _, rec := range records {
		cells := make([]string, 0, len(columns)+1)
		cells = append(cells, formatCell(rec[timestampField]))
		for _, c := range columns {
			cells = append(cells, formatCell(rec[c]))
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	return tw.Flush()
}

func formatCell(v any) string {
	switch tv := v.(type) {
	case nil:
		return "-"
	case time.Time:
		return tv.UTC().Format(dataset.CanonicalTimestampFormat)
	default:
		return fmt.Sprint(tv)
	}
}
