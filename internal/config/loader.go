package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Environment variables consulted when the matching setting is empty, so
// that credentials can stay out of config files.
const (
	envDatabasePassword = "STREAMSIM_DB_PASSWORD"
	envDatabaseDSN      = "STREAMSIM_DB_DSN"
)

// Loader handles loading configuration from files and command-line arguments.
type Loader struct {
	name string
}

// ErrHelpRequested is returned when the user requests help via --help flag.
var ErrHelpRequested = errors.New("help requested")

// NewLoader creates a new configuration Loader. name is the binary name
// shown in usage output.
func NewLoader(name string) *Loader {
	return &Loader{name: name}
}

// Defaults returns the configuration used when neither a file nor a flag
// sets a value.
func Defaults() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            9977,
			Path:            "fetchdata",
			MetricsPath:     "/metrics",
			ShutdownTimeout: 5 * time.Second,
		},
		Source: SourceConfig{
			Type:            "database",
			TimestampColumn: "timestamp",
			IDColumn:        "id",
		},
		Database: DatabaseConfig{
			Driver: "postgres",
			Port:   5432,
		},
		Replay: ReplayConfig{
			BatchSize: 1,
			Reload:    "once",
		},
		Consumer: ConsumerConfig{
			PollInterval: time.Second,
			Timeout:      10 * time.Second,
			Headers:      map[string]string{},
		},
		Logging: LoggingConfig{Level: "INFO"},
		Tracing: TracingConfig{Protocol: "grpc", SampleRate: 1.0},
	}
}

// Load parses command-line arguments and configuration files to produce a Config.
func (l Loader) Load(args []string) (*Config, error) {
	cmd := newFlagCommand(l.name)
	if err := cmd.Flags().Parse(args); err != nil {
		if errors.Is(err, pflag.ErrHelp) {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
		return nil, err
	}

	flagSet := cmd.Flags()
	if helpFlag := flagSet.Lookup("help"); helpFlag != nil {
		if wantsHelp, err := strconv.ParseBool(helpFlag.Value.String()); err == nil && wantsHelp {
			displayHelp(cmd)
			return nil, ErrHelpRequested
		}
	}

	configPath := flagSet.Lookup("config").Value.String()
	cfgViper := viper.New()
	if configPath != "" {
		cfgViper.SetConfigFile(configPath)
		if err := cfgViper.ReadInConfig(); err != nil {
			return nil, err
		}
	}

	settings := cfgViper.AllSettings()

	cfg := Defaults()
	cfg.ConfigFile = configPath

	if err := applyConfigSettings(cfg, settings); err != nil {
		return nil, err
	}

	if err := applyFlagOverrides(cfg, flagSet); err != nil {
		return nil, err
	}

	applyEnvFallbacks(cfg)

	cfg.Source.Type = strings.ToLower(strings.TrimSpace(cfg.Source.Type))
	cfg.Database.Driver = strings.ToLower(strings.TrimSpace(cfg.Database.Driver))
	cfg.Replay.Reload = strings.ToLower(strings.TrimSpace(cfg.Replay.Reload))
	if cfg.Consumer.Headers == nil {
		cfg.Consumer.Headers = map[string]string{}
	}

	return cfg, nil
}

func envValue(key string) string {
	return strings.TrimSpace(os.Getenv(key))
}

func applyEnvFallbacks(cfg *Config) {
	if cfg.Database.Password == "" {
		if v := os.Getenv(envDatabasePassword); v != "" {
			cfg.Database.Password = v
		}
	}
	if cfg.Database.DSN == "" {
		cfg.Database.DSN = envValue(envDatabaseDSN)
	}
}

// applyConfigSettings applies the decoded config file: legacy flat keys
// first, then the sectioned layout.
func applyConfigSettings(cfg *Config, raw map[string]interface{}) error {
	if len(raw) == 0 {
		return nil
	}
	root, err := newSettings(raw)
	if err != nil {
		return err
	}

	if err := applyFlatSettings(cfg, root); err != nil {
		return err
	}

	sections := []struct {
		name  string
		build func(settings) error
	}{
		{"server", func(s settings) error { return buildServerConfig(&cfg.Server, s) }},
		{"source", func(s settings) error { return buildSourceConfig(&cfg.Source, s) }},
		{"database", func(s settings) error { return buildDatabaseConfig(&cfg.Database, s) }},
		{"replay", func(s settings) error { return buildReplayConfig(&cfg.Replay, s) }},
		{"consumer", func(s settings) error { return buildConsumerConfig(&cfg.Consumer, s) }},
		{"logging", func(s settings) error { return buildLoggingConfig(&cfg.Logging, s) }},
		{"tracing", func(s settings) error { return buildTracingConfig(&cfg.Tracing, s) }},
	}
	for _, sec := range sections {
		values, err := root.section(sec.name)
		if err != nil {
			return err
		}
		if values == nil {
			continue
		}
		if err := sec.build(values); err != nil {
			return fmt.Errorf("%s: %w", sec.name, err)
		}
	}
	return nil
}

// applyFlatSettings accepts the single-level key names of the original
// Python conf module, e.g. DATA_TYPE, DB_TABLE, BATCH. TIMEOUT there is the
// poll period in seconds.
func applyFlatSettings(cfg *Config, s settings) error {
	return firstError(
		s.setString(&cfg.Server.Host, "host"),
		s.setString(&cfg.Server.Path, "url_path"),
		s.setInt(&cfg.Server.Port, "port"),
		s.setString(&cfg.Source.Type, "data_type"),
		s.setString(&cfg.Source.Path, "dataset"),
		s.setString(&cfg.Source.TimestampColumn, "date_time_col"),
		s.setString(&cfg.Source.StartTime, "start_time"),
		s.setIDs(&cfg.Source.IDs, "ids"),
		s.setString(&cfg.Database.Driver, "dbms"),
		s.setString(&cfg.Database.Host, "db_host"),
		s.setInt(&cfg.Database.Port, "db_port"),
		s.setString(&cfg.Database.User, "db_user"),
		s.setString(&cfg.Database.Password, "db_pass"),
		s.setString(&cfg.Database.Name, "db_name"),
		s.setString(&cfg.Database.Table, "db_table"),
		s.setInt(&cfg.Replay.BatchSize, "batch"),
		s.setDuration(&cfg.Consumer.PollInterval, "timeout"),
	)
}

func firstError(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}

func buildServerConfig(server *ServerConfig, s settings) error {
	return firstError(
		s.setString(&server.Host, "host"),
		s.setInt(&server.Port, "port"),
		s.setString(&server.Path, "path", "url_path"),
		s.setString(&server.TimestampFormat, "timestamp_format"),
		s.setString(&server.MetricsPath, "metrics_path"),
		s.setDuration(&server.ShutdownTimeout, "shutdown_timeout"),
	)
}

func buildSourceConfig(src *SourceConfig, s settings) error {
	if err := firstError(
		s.setString(&src.Type, "type"),
		s.setString(&src.Path, "path"),
		s.setString(&src.TimestampColumn, "timestamp_column"),
		s.setString(&src.IDColumn, "id_column"),
		s.setIDs(&src.IDs, "ids"),
		s.setString(&src.StartTime, "start_time"),
	); err != nil {
		return err
	}
	src.Type = strings.ToLower(src.Type)
	return nil
}

func buildDatabaseConfig(db *DatabaseConfig, s settings) error {
	return firstError(
		s.setString(&db.Driver, "driver", "dbms"),
		s.setString(&db.Host, "host"),
		s.setInt(&db.Port, "port"),
		s.setString(&db.User, "user", "username"),
		s.setString(&db.Password, "password"),
		s.setString(&db.Name, "name", "database"),
		s.setString(&db.Table, "table"),
		s.setString(&db.SSLMode, "sslmode"),
		s.setString(&db.DSN, "dsn"),
	)
}

func buildReplayConfig(r *ReplayConfig, s settings) error {
	if err := firstError(
		s.setInt(&r.BatchSize, "batch_size", "batch"),
		s.setString(&r.Reload, "reload"),
	); err != nil {
		return err
	}
	r.Reload = strings.ToLower(r.Reload)
	return nil
}

func buildConsumerConfig(c *ConsumerConfig, s settings) error {
	if c.Headers == nil {
		c.Headers = map[string]string{}
	}
	return firstError(
		s.setString(&c.URL, "url"),
		s.setDuration(&c.PollInterval, "poll_interval"),
		s.setDuration(&c.Timeout, "timeout"),
		s.setInt(&c.MaxPolls, "max_polls"),
		s.setBool(&c.JSONOutput, "json_output"),
		s.mergeHeaders(c.Headers, "headers"),
	)
}

func buildLoggingConfig(l *LoggingConfig, s settings) error {
	return s.setString(&l.Level, "level")
}

func buildTracingConfig(t *TracingConfig, s settings) error {
	if err := firstError(
		s.setString(&t.Endpoint, "endpoint"),
		s.setString(&t.Protocol, "protocol"),
		s.setBool(&t.Insecure, "insecure"),
		s.setFloat(&t.SampleRate, "sample_rate"),
		s.setString(&t.ServiceName, "service_name"),
	); err != nil {
		return err
	}
	t.Protocol = strings.ToLower(t.Protocol)
	if _, ok := s.lookup("propagate"); ok {
		var propagate bool
		if err := s.setBool(&propagate, "propagate"); err != nil {
			return err
		}
		t.Propagate = &propagate
	}
	return nil
}
