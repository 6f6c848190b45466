package dataset

import (
	"context"
	"database/sql"
	"net"
	"net/url"
	"strconv"
	"strings"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// DatabaseSettings are the connection parameters of the relational backend.
type DatabaseSettings struct {
	Driver   string
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Table    string
	SSLMode  string
	// DSN, when set, is passed to the driver verbatim and the discrete
	// connection fields are ignored.
	DSN string
}

// ConnString assembles the driver connection string. For sqlite, Name is
// the database file path.
func (s DatabaseSettings) ConnString() (string, error) {
	if dsn := strings.TrimSpace(s.DSN); dsn != "" {
		return dsn, nil
	}
	d, err := lookupDialect(s.Driver)
	if err != nil {
		return "", err
	}
	switch d.name {
	case "sqlite":
		if strings.TrimSpace(s.Name) == "" {
			return "", configErrorf("database.name", "sqlite database path is required")
		}
		return s.Name, nil
	default:
		if strings.TrimSpace(s.Host) == "" {
			return "", configErrorf("database.host", "host is required")
		}
		port := s.Port
		if port == 0 {
			port = 5432
		}
		u := url.URL{
			Scheme: "postgres",
			Host:   net.JoinHostPort(s.Host, strconv.Itoa(port)),
			Path:   "/" + s.Name,
		}
		if s.User != "" {
			if s.Password != "" {
				u.User = url.UserPassword(s.User, s.Password)
			} else {
				u.User = url.User(s.User)
			}
		}
		if s.SSLMode != "" {
			u.RawQuery = url.Values{"sslmode": []string{s.SSLMode}}.Encode()
		}
		return u.String(), nil
	}
}

// SQLSource loads a dataset by querying a table. Each Load opens and closes
// its own connection pool.
type SQLSource struct {
	settings       DatabaseSettings
	dialect        dialect
	timestampField string
	idField        string
	filter         Filter
}

// NewSQLSource validates the settings and returns a source for them.
func NewSQLSource(settings DatabaseSettings, timestampField, idField string, filter Filter) (*SQLSource, error) {
	d, err := lookupDialect(settings.Driver)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(timestampField) == "" {
		return nil, configErrorf("source.timestamp_column", "timestamp field name is required")
	}
	if strings.TrimSpace(settings.Table) == "" {
		return nil, configErrorf("database.table", "table is required")
	}
	if idField == "" {
		idField = DefaultIDField
	}
	return &SQLSource{
		settings:       settings,
		dialect:        d,
		timestampField: timestampField,
		idField:        idField,
		filter:         filter,
	}, nil
}

// Query returns the statement Load will execute.
func (s *SQLSource) Query() (string, []any, error) {
	b := QueryBuilder{dialect: s.dialect}
	return b.Build(Query{
		Table:           s.settings.Table,
		TimestampColumn: s.timestampField,
		IDColumn:        s.idField,
		Filter:          s.filter,
	})
}

// Load runs the replay query, materialises every row and applies the filter
// to the parsed records, which settles predicates the database cannot
// evaluate on typed values.
func (s *SQLSource) Load(ctx context.Context) (*Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	query, args, err := s.Query()
	if err != nil {
		return nil, err
	}
	dsn, err := s.settings.ConnString()
	if err != nil {
		return nil, err
	}

	db, err := sql.Open(s.dialect.driverName, dsn)
	if err != nil {
		return nil, &ConnectionError{Driver: s.dialect.name, Op: "open", Err: err}
	}
	defer db.Close()

	if err := db.PingContext(ctx); err != nil {
		return nil, &ConnectionError{Driver: s.dialect.name, Op: "ping", Err: err}
	}

	logger.Debugf("running %s with %d args", query, len(args))
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &ConnectionError{Driver: s.dialect.name, Op: "query", Err: err}
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, &ConnectionError{Driver: s.dialect.name, Op: "columns", Err: err}
	}
	tsIndex := -1
	for i, c := range columns {
		if c == s.timestampField {
			tsIndex = i
		}
	}
	if tsIndex < 0 {
		return nil, configErrorf("source.timestamp_column", "column %q not found in table %s", s.timestampField, s.settings.Table)
	}

	var records []Record
	values := make([]any, len(columns))
	ptrs := make([]any, len(columns))
	for i := range values {
		ptrs[i] = &values[i]
	}
	line := 0
	for rows.Next() {
		line++
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &ConnectionError{Driver: s.dialect.name, Op: "scan", Err: err}
		}
		record := make(Record, len(columns))
		for i, c := range columns {
			v := values[i]
			if b, ok := v.([]byte); ok {
				v = string(b)
			}
			if i == tsIndex {
				ts, err := toTimestamp(v)
				if err != nil {
					return nil, &ParseError{
						Source: s.settings.Table,
						Line:   line,
						Field:  c,
						Value:  stringify(v),
						Err:    err,
					}
				}
				v = ts
			}
			record[c] = v
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, &ConnectionError{Driver: s.dialect.name, Op: "read rows", Err: err}
	}

	ds := newDataset(s.timestampField, records)
	ds.records = s.filter.apply(ds.records, s.idField, s.timestampField)
	logger.Debugf("loaded %d of %d rows from %s", ds.Len(), line, s.settings.Table)
	return ds, nil
}
