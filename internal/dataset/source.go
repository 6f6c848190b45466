package dataset

import (
	"context"
	"strings"

	"github.com/juju/loggo/v2"
)

var logger = loggo.GetLogger("streamsim.dataset")

// Backend names the origin of a dataset.
type Backend string

const (
	BackendDatabase Backend = "database"
	BackendCSV      Backend = "csv"
)

// DefaultIDField is the id column used when none is configured.
const DefaultIDField = "id"

// ParseBackend normalises a configured backend name. "relational" and "sql"
// are accepted as aliases of "database".
func ParseBackend(value string) (Backend, error) {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "database", "db", "relational", "sql":
		return BackendDatabase, nil
	case "csv":
		return BackendCSV, nil
	default:
		return "", configErrorf("source.type", "backend must be 'database' or 'csv', got %q", value)
	}
}

// Source loads one Dataset per call. Each call produces a fresh Dataset.
type Source interface {
	Load(ctx context.Context) (*Dataset, error)
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (*Dataset, error)

func (f SourceFunc) Load(ctx context.Context) (*Dataset, error) { return f(ctx) }

// Spec holds everything needed to load a dataset from either backend.
type Spec struct {
	Backend        Backend
	Path           string
	Database       DatabaseSettings
	TimestampField string
	IDField        string
	Filter         Filter
}

// NewSource validates spec and returns the Source for its backend.
func NewSource(spec Spec) (Source, error) {
	tsField := strings.TrimSpace(spec.TimestampField)
	if tsField == "" {
		return nil, configErrorf("source.timestamp_column", "timestamp field name is required")
	}
	idField := strings.TrimSpace(spec.IDField)
	if idField == "" {
		idField = DefaultIDField
	}

	switch spec.Backend {
	case BackendCSV:
		return NewCSVSource(spec.Path, tsField, idField, spec.Filter)
	case BackendDatabase:
		return NewSQLSource(spec.Database, tsField, idField, spec.Filter)
	default:
		return nil, configErrorf("source.type", "backend must be 'database' or 'csv', got %q", spec.Backend)
	}
}

// Load builds the Source for spec and loads it once.
func Load(ctx context.Context, spec Spec) (*Dataset, error) {
	src, err := NewSource(spec)
	if err != nil {
		return nil, err
	}
	return src.Load(ctx)
}
