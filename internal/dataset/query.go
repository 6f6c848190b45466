package dataset

import (
	"regexp"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
)

var identPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// quoteIdent validates an optionally schema-qualified identifier and quotes
// each part. Both PostgreSQL and SQLite accept double-quoted identifiers.
func quoteIdent(field, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", configErrorf(field, "identifier is required")
	}
	parts := strings.Split(name, ".")
	if len(parts) > 2 {
		return "", configErrorf(field, "invalid identifier %q", name)
	}
	for i, p := range parts {
		if !identPattern.MatchString(p) {
			return "", configErrorf(field, "invalid identifier %q", name)
		}
		parts[i] = `"` + p + `"`
	}
	return strings.Join(parts, "."), nil
}

// dialect captures the per-driver differences that matter to the replay
// query.
type dialect struct {
	name        string
	driverName  string
	placeholder sq.PlaceholderFormat
	// timeArg encodes the timestamp lower bound as a query argument. Nil
	// leaves the bound to the in-memory filter.
	timeArg func(time.Time) any
}

var dialects = map[string]dialect{
	"postgres": {
		name:        "postgres",
		driverName:  "pgx",
		placeholder: sq.Dollar,
		timeArg:     func(t time.Time) any { return t },
	},
	// SQLite has no timestamp type. Text in mixed layouts, or epoch
	// numbers, do not order chronologically, so the bound is not pushed down.
	"sqlite": {
		name:        "sqlite",
		driverName:  "sqlite",
		placeholder: sq.Question,
	},
}

func lookupDialect(driver string) (dialect, error) {
	switch strings.ToLower(strings.TrimSpace(driver)) {
	case "postgres", "postgresql", "pgx":
		return dialects["postgres"], nil
	case "sqlite", "sqlite3":
		return dialects["sqlite"], nil
	default:
		return dialect{}, configErrorf("database.driver", "unsupported driver %q (use postgres or sqlite)", driver)
	}
}

// Query describes the replay selection: every column of Table, optionally
// restricted by id membership and a timestamp lower bound, ordered by
// timestamp.
type Query struct {
	Table           string
	TimestampColumn string
	IDColumn        string
	Filter          Filter
}

// QueryBuilder renders a Query into SQL with bound parameters.
type QueryBuilder struct {
	dialect dialect
}

// NewQueryBuilder returns a builder for the named driver.
func NewQueryBuilder(driver string) (QueryBuilder, error) {
	d, err := lookupDialect(driver)
	if err != nil {
		return QueryBuilder{}, err
	}
	return QueryBuilder{dialect: d}, nil
}

// Build returns the SQL text and its arguments.
func (b QueryBuilder) Build(q Query) (string, []any, error) {
	table, err := quoteIdent("database.table", q.Table)
	if err != nil {
		return "", nil, err
	}
	tsCol, err := quoteIdent("source.timestamp_column", q.TimestampColumn)
	if err != nil {
		return "", nil, err
	}

	sel := sq.Select("*").
		From(table).
		OrderBy(tsCol + " ASC").
		PlaceholderFormat(b.dialect.placeholder)

	if q.Filter.HasIDs() {
		idCol, err := quoteIdent("source.id_column", q.IDColumn)
		if err != nil {
			return "", nil, err
		}
		sel = sel.Where(sq.Eq{"CAST(" + idCol + " AS TEXT)": idArgs(q.Filter.IDs)})
	}
	if q.Filter.HasMinTimestamp() && b.dialect.timeArg != nil {
		sel = sel.Where(sq.GtOrEq{tsCol: b.dialect.timeArg(q.Filter.MinTimestamp)})
	}

	return sel.ToSql()
}

// idArgs binds ids as text. The id column is cast to text in the query so
// integer and text id columns compare the same way the CSV backend does.
func idArgs(ids []string) []any {
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = strings.TrimSpace(id)
	}
	return args
}
