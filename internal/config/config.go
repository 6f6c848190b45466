package config

import (
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/torosent/streamsim/internal/dataset"
)

// Role selects which parts of the configuration a binary depends on.
type Role int

const (
	RoleServer Role = iota
	RoleConsumer
)

type Config struct {
	Server     ServerConfig
	Source     SourceConfig
	Database   DatabaseConfig
	Replay     ReplayConfig
	Consumer   ConsumerConfig
	Logging    LoggingConfig
	Tracing    TracingConfig
	ConfigFile string
}

type ServerConfig struct {
	Host            string
	Port            int
	Path            string
	TimestampFormat string
	MetricsPath     string
	ShutdownTimeout time.Duration
}

type SourceConfig struct {
	Type            string // "database" or "csv"
	Path            string // CSV file, when Type is csv
	TimestampColumn string
	IDColumn        string
	IDs             []string
	StartTime       string // initial minimum timestamp, empty for none
}

type DatabaseConfig struct {
	Driver   string // "postgres" or "sqlite"
	Host     string
	Port     int
	User     string
	Password string
	Name     string
	Table    string
	SSLMode  string
	DSN      string
}

type ReplayConfig struct {
	BatchSize int
	Reload    string // "once", "per-request" or "on-wrap"
}

type ConsumerConfig struct {
	URL          string
	PollInterval time.Duration
	Timeout      time.Duration
	MaxPolls     int // 0 means poll until interrupted
	Headers      map[string]string
	JSONOutput   bool // print the closing summary as JSON
}

type LoggingConfig struct {
	// Level is a loggo level name ("DEBUG") or a full loggo spec
	// ("<root>=INFO;streamsim.replay=DEBUG").
	Level string
}

type TracingConfig struct {
	Endpoint    string
	Protocol    string // "grpc" or "http"
	Insecure    bool
	SampleRate  float64
	ServiceName string
	Propagate   *bool // nil follows Enabled
}

// Enabled reports whether an OTLP endpoint is configured, directly or via
// OTEL_EXPORTER_OTLP_ENDPOINT.
func (t TracingConfig) Enabled() bool {
	return strings.TrimSpace(t.Endpoint) != "" || envValue("OTEL_EXPORTER_OTLP_ENDPOINT") != ""
}

// ShouldPropagate reports whether W3C trace headers are exchanged.
func (t TracingConfig) ShouldPropagate() bool {
	if t.Propagate != nil {
		return *t.Propagate
	}
	return t.Enabled()
}

// Addr returns the listen address.
func (s ServerConfig) Addr() string {
	return net.JoinHostPort(s.Host, strconv.Itoa(s.Port))
}

// RoutePath returns the batch route with a single leading slash.
func (s ServerConfig) RoutePath() string {
	return "/" + strings.Trim(strings.TrimSpace(s.Path), "/")
}

var namedTimestampFormats = map[string]string{
	"rfc3339":     time.RFC3339,
	"rfc3339nano": time.RFC3339Nano,
	"rfc1123":     time.RFC1123,
	"sql":         "2006-01-02 15:04:05",
	"iso8601":     "2006-01-02T15:04:05.000Z07:00",
}

// TimestampLayout resolves TimestampFormat, which is either a name from
// namedTimestampFormats or a Go time layout.
func (s ServerConfig) TimestampLayout() string {
	f := strings.TrimSpace(s.TimestampFormat)
	if f == "" {
		return dataset.CanonicalTimestampFormat
	}
	if layout, ok := namedTimestampFormats[strings.ToLower(f)]; ok {
		return layout
	}
	return f
}

// MinTimestamp parses StartTime. The zero time means no lower bound.
func (s SourceConfig) MinTimestamp() (time.Time, error) {
	if strings.TrimSpace(s.StartTime) == "" {
		return time.Time{}, nil
	}
	return dataset.ParseTimestamp(s.StartTime)
}

// DatasetSpec translates the source and database sections into a load spec.
func (c Config) DatasetSpec() (dataset.Spec, error) {
	backend, err := dataset.ParseBackend(c.Source.Type)
	if err != nil {
		return dataset.Spec{}, err
	}
	min, err := c.Source.MinTimestamp()
	if err != nil {
		return dataset.Spec{}, &dataset.ConfigurationError{Field: "source.start_time", Reason: err.Error()}
	}
	return dataset.Spec{
		Backend: backend,
		Path:    c.Source.Path,
		Database: dataset.DatabaseSettings{
			Driver:   c.Database.Driver,
			Host:     c.Database.Host,
			Port:     c.Database.Port,
			User:     c.Database.User,
			Password: c.Database.Password,
			Name:     c.Database.Name,
			Table:    c.Database.Table,
			SSLMode:  c.Database.SSLMode,
			DSN:      c.Database.DSN,
		},
		TimestampField: c.Source.TimestampColumn,
		IDField:        c.Source.IDColumn,
		Filter: dataset.Filter{
			IDs:          append([]string(nil), c.Source.IDs...),
			MinTimestamp: min,
		},
	}, nil
}

// ConsumerURL returns the endpoint the consumer polls. Without an explicit
// URL it is derived from the server section, with a wildcard host replaced
// by localhost.
func (c Config) ConsumerURL() string {
	if u := strings.TrimSpace(c.Consumer.URL); u != "" {
		return u
	}
	host := c.Server.Host
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "localhost"
	}
	return "http://" + net.JoinHostPort(host, strconv.Itoa(c.Server.Port)) + c.Server.RoutePath()
}

type ValidationError struct {
	issues []string
}

func (e ValidationError) Error() string {
	if len(e.issues) == 0 {
		return "validation failed"
	}
	return fmt.Sprintf("validation failed: %s", strings.Join(e.issues, "; "))
}

func (e ValidationError) Issues() []string {
	return append([]string(nil), e.issues...)
}

// Validate checks the sections role depends on and reports every issue at
// once.
func (c Config) Validate(role Role) error {
	var issues []string

	if strings.TrimSpace(c.Source.TimestampColumn) == "" {
		issues = append(issues, "source: timestamp_column is required")
	}
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		issues = append(issues, fmt.Sprintf("server: port must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.RoutePath() == "/" {
		issues = append(issues, "server: path is required")
	}

	switch role {
	case RoleServer:
		issues = append(issues, validateServerConfig(c.Server)...)
		issues = append(issues, validateSourceConfig(c.Source, c.Database)...)
		issues = append(issues, validateReplayConfig(c.Replay)...)
	case RoleConsumer:
		issues = append(issues, validateConsumerConfig(c.Consumer)...)
	}

	if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
		issues = append(issues, fmt.Sprintf("tracing: sample_rate must be between 0.0 and 1.0, got %g", c.Tracing.SampleRate))
	}
	if p := strings.ToLower(strings.TrimSpace(c.Tracing.Protocol)); p != "" && p != "grpc" && p != "http" {
		issues = append(issues, fmt.Sprintf("tracing: protocol must be 'grpc' or 'http', got %q", c.Tracing.Protocol))
	}

	if len(issues) > 0 {
		return ValidationError{issues: issues}
	}
	return nil
}

func validateServerConfig(s ServerConfig) []string {
	var issues []string
	if s.ShutdownTimeout < 0 {
		issues = append(issues, "server: shutdown_timeout must be >= 0")
	}
	if mp := strings.TrimSpace(s.MetricsPath); mp != "" {
		if !strings.HasPrefix(mp, "/") {
			issues = append(issues, "server: metrics_path must start with /")
		} else if strings.TrimRight(mp, "/") == strings.TrimRight(s.RoutePath(), "/") {
			issues = append(issues, "server: metrics_path must differ from path")
		}
	}
	layout := s.TimestampLayout()
	sample := time.Date(2022, 10, 12, 8, 30, 15, 0, time.UTC)
	if sample.Format(layout) == layout {
		issues = append(issues, fmt.Sprintf("server: timestamp_format %q is not a time layout", s.TimestampFormat))
	}
	return issues
}

func validateSourceConfig(src SourceConfig, db DatabaseConfig) []string {
	var issues []string
	backend, err := dataset.ParseBackend(src.Type)
	if err != nil {
		issues = append(issues, fmt.Sprintf("source: type must be 'database' or 'csv', got %q", src.Type))
	}
	switch backend {
	case dataset.BackendCSV:
		if strings.TrimSpace(src.Path) == "" {
			issues = append(issues, "source: path is required when type is csv")
		}
	case dataset.BackendDatabase:
		issues = append(issues, validateDatabaseConfig(db)...)
	}
	if _, err := src.MinTimestamp(); err != nil {
		issues = append(issues, fmt.Sprintf("source: start_time: %v", err))
	}
	return issues
}

func validateDatabaseConfig(db DatabaseConfig) []string {
	var issues []string
	switch strings.ToLower(strings.TrimSpace(db.Driver)) {
	case "postgres", "postgresql", "pgx":
		if strings.TrimSpace(db.DSN) == "" && strings.TrimSpace(db.Host) == "" {
			issues = append(issues, "database: host is required for postgres")
		}
	case "sqlite", "sqlite3":
		if strings.TrimSpace(db.DSN) == "" && strings.TrimSpace(db.Name) == "" {
			issues = append(issues, "database: name (file path) is required for sqlite")
		}
	default:
		issues = append(issues, fmt.Sprintf("database: driver must be 'postgres' or 'sqlite', got %q", db.Driver))
	}
	if strings.TrimSpace(db.Table) == "" {
		issues = append(issues, "database: table is required")
	}
	if db.Port < 0 || db.Port > 65535 {
		issues = append(issues, fmt.Sprintf("database: port must be between 0 and 65535, got %d", db.Port))
	}
	return issues
}

func validateReplayConfig(r ReplayConfig) []string {
	var issues []string
	if r.BatchSize < 1 {
		issues = append(issues, "replay: batch_size must be >= 1")
	}
	switch strings.ReplaceAll(strings.ToLower(strings.TrimSpace(r.Reload)), "_", "-") {
	case "", "once", "per-request", "on-wrap":
	default:
		issues = append(issues, fmt.Sprintf("replay: reload must be 'once', 'per-request' or 'on-wrap', got %q", r.Reload))
	}
	return issues
}

func validateConsumerConfig(c ConsumerConfig) []string {
	var issues []string
	if c.PollInterval <= 0 {
		issues = append(issues, "consumer: poll_interval must be > 0")
	}
	if c.Timeout < 0 {
		issues = append(issues, "consumer: timeout must be >= 0")
	}
	if c.MaxPolls < 0 {
		issues = append(issues, "consumer: max_polls must be >= 0")
	}
	for key, value := range c.Headers {
		if strings.TrimSpace(key) == "" || strings.ContainsAny(key, "\r\n") || strings.ContainsAny(value, "\r\n") {
			issues = append(issues, fmt.Sprintf("consumer: invalid header %q", key))
		}
	}
	return issues
}
