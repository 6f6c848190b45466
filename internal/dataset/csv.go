package dataset

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
)

// CSVSource loads a dataset from a CSV file whose first row is the header.
// Filtering happens in memory after the rows are sorted.
type CSVSource struct {
	path           string
	timestampField string
	idField        string
	filter         Filter
}

// NewCSVSource returns a source reading path. The file is not opened until
// Load.
func NewCSVSource(path, timestampField, idField string, filter Filter) (*CSVSource, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, configErrorf("source.path", "CSV path is required")
	}
	if strings.TrimSpace(timestampField) == "" {
		return nil, configErrorf("source.timestamp_column", "timestamp field name is required")
	}
	if idField == "" {
		idField = DefaultIDField
	}
	return &CSVSource{
		path:           path,
		timestampField: timestampField,
		idField:        idField,
		filter:         filter,
	}, nil
}

// Load reads the whole file, parses the timestamp column, sorts by it and
// applies the filter.
func (s *CSVSource) Load(ctx context.Context) (*Dataset, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	default:
	}

	file, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("open CSV file: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.TrimLeadingSpace = true

	rows, err := reader.ReadAll()
	if err != nil {
		perr := &ParseError{Source: s.path, Err: err}
		var csvErr *csv.ParseError
		if errors.As(err, &csvErr) {
			perr.Line = csvErr.Line
		}
		return nil, perr
	}

	if len(rows) == 0 {
		return nil, &ParseError{Source: s.path, Line: 1, Err: errors.New("CSV file has no header row")}
	}

	header := rows[0]
	tsIndex := -1
	for i, name := range header {
		header[i] = strings.TrimSpace(name)
		if header[i] == s.timestampField {
			tsIndex = i
		}
	}
	if tsIndex < 0 {
		return nil, configErrorf("source.timestamp_column", "column %q not found in %s", s.timestampField, s.path)
	}

	dataRows := rows[1:]
	records := make([]Record, 0, len(dataRows))
	for i, row := range dataRows {
		ts, err := ParseTimestamp(row[tsIndex])
		if err != nil {
			return nil, &ParseError{
				Source: s.path,
				Line:   i + 2,
				Field:  s.timestampField,
				Value:  row[tsIndex],
				Err:    err,
			}
		}

		record := make(Record, len(header))
		for j, field := range header {
			if j == tsIndex {
				record[field] = ts
				continue
			}
			record[field] = inferValue(row[j])
		}
		records = append(records, record)
	}

	ds := newDataset(s.timestampField, records)
	ds.records = s.filter.apply(ds.records, s.idField, s.timestampField)
	logger.Debugf("loaded %d of %d CSV rows from %s", ds.Len(), len(dataRows), s.path)
	return ds, nil
}
