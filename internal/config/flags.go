package config

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// newFlagCommand creates a cobra command with all flags configured.
func newFlagCommand(name string) *cobra.Command {
	if name == "" {
		name = "streamsim"
	}
	cmd := &cobra.Command{
		Use:           name,
		SilenceErrors: true,
		SilenceUsage:  true,
	}
	cmd.SetOut(os.Stdout)
	configureFlags(cmd.Flags())
	return cmd
}

// configureFlags sets up all CLI flags on the provided flag set. Defaults
// shown here are documentation only; Defaults() is authoritative and a flag
// only overrides the file when it is set explicitly.
func configureFlags(flags *pflag.FlagSet) {
	flags.String("config", "", "Path to configuration file (JSON, YAML or TOML)")

	// Server flags
	flags.String("host", "0.0.0.0", "Address the replay server listens on")
	flags.IntP("port", "p", 9977, "Port the replay server listens on")
	flags.String("path", "fetchdata", "Route serving the next batch")
	flags.String("timestamp-format", "", "Timestamp layout in responses (rfc3339nano, rfc3339, sql, or a Go layout)")
	flags.String("metrics-path", "/metrics", "Route exposing Prometheus metrics (empty disables)")
	flags.Duration("shutdown-timeout", 5*time.Second, "Max time to drain in-flight requests on shutdown")

	// Source flags
	flags.String("source-type", "database", "Dataset backend: 'database' or 'csv'")
	flags.String("source-path", "", "CSV file to replay when source-type is csv")
	flags.String("timestamp-column", "timestamp", "Column holding the record timestamp")
	flags.String("id-column", "id", "Column holding the entity id")
	flags.StringSlice("ids", nil, "Entity ids to replay (repeatable, empty means all)")
	flags.String("start-time", "", "Skip records older than this timestamp")

	// Database flags
	flags.String("db-driver", "postgres", "Database driver: 'postgres' or 'sqlite'")
	flags.String("db-host", "", "Database host")
	flags.Int("db-port", 5432, "Database port")
	flags.String("db-user", "", "Database user")
	flags.String("db-password", "", "Database password (or set "+envDatabasePassword+")")
	flags.String("db-name", "", "Database name, or file path for sqlite")
	flags.String("db-table", "", "Table holding the dataset")
	flags.String("db-sslmode", "", "PostgreSQL sslmode")
	flags.String("db-dsn", "", "Full connection string, overrides the individual settings")

	// Replay flags
	flags.IntP("batch-size", "b", 1, "Records returned per request")
	flags.String("reload", "once", "Dataset reload policy: 'once', 'per-request' or 'on-wrap'")

	// Consumer flags
	flags.String("url", "", "Endpoint the consumer polls (defaults to the server address)")
	flags.Duration("poll-interval", time.Second, "Delay between consumer polls")
	flags.Duration("timeout", 10*time.Second, "Per-request timeout for the consumer")
	flags.IntP("max-polls", "n", 0, "Stop after this many polls (0 means unlimited)")
	flags.StringSlice("header", nil, "Additional request header in key=value form")
	flags.Bool("json-output", false, "Print the closing summary as JSON")

	// Observability flags
	flags.String("log-level", "INFO", "Log level or loggo spec (e.g. '<root>=INFO;streamsim.replay=DEBUG')")
	flags.String("tracing-endpoint", "", "OTLP collector endpoint (enables tracing)")
	flags.String("tracing-protocol", "grpc", "OTLP protocol: 'grpc' or 'http'")
	flags.Bool("tracing-insecure", false, "Disable TLS for the OTLP exporter")
	flags.Float64("tracing-sample-rate", 1.0, "Trace sampling ratio between 0.0 and 1.0")
	flags.String("tracing-service-name", "", "service.name resource attribute")
	flags.Bool("tracing-propagate", false, "Exchange W3C trace context headers")
}

// displayHelp prints the help message for a command.
func displayHelp(cmd *cobra.Command) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Usage: %s\n\nFlags:\n", cmd.UseLine())
	fs := cmd.Flags()
	fs.SetOutput(out)
	fs.PrintDefaults()
}

// applyFlagOverrides applies command-line flag values to the config, overriding
// values from the config file.
func applyFlagOverrides(cfg *Config, fs *pflag.FlagSet) error {
	stringFlags := []struct {
		name string
		dst  *string
	}{
		{"host", &cfg.Server.Host},
		{"path", &cfg.Server.Path},
		{"timestamp-format", &cfg.Server.TimestampFormat},
		{"metrics-path", &cfg.Server.MetricsPath},
		{"source-type", &cfg.Source.Type},
		{"source-path", &cfg.Source.Path},
		{"timestamp-column", &cfg.Source.TimestampColumn},
		{"id-column", &cfg.Source.IDColumn},
		{"start-time", &cfg.Source.StartTime},
		{"db-driver", &cfg.Database.Driver},
		{"db-host", &cfg.Database.Host},
		{"db-user", &cfg.Database.User},
		{"db-password", &cfg.Database.Password},
		{"db-name", &cfg.Database.Name},
		{"db-table", &cfg.Database.Table},
		{"db-sslmode", &cfg.Database.SSLMode},
		{"db-dsn", &cfg.Database.DSN},
		{"reload", &cfg.Replay.Reload},
		{"url", &cfg.Consumer.URL},
		{"log-level", &cfg.Logging.Level},
		{"tracing-endpoint", &cfg.Tracing.Endpoint},
		{"tracing-protocol", &cfg.Tracing.Protocol},
		{"tracing-service-name", &cfg.Tracing.ServiceName},
	}
	for _, f := range stringFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetString(f.name)
		if err != nil {
			return err
		}
		*f.dst = strings.TrimSpace(val)
	}

	intFlags := []struct {
		name string
		dst  *int
	}{
		{"port", &cfg.Server.Port},
		{"db-port", &cfg.Database.Port},
		{"batch-size", &cfg.Replay.BatchSize},
		{"max-polls", &cfg.Consumer.MaxPolls},
	}
	for _, f := range intFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetInt(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	durationFlags := []struct {
		name string
		dst  *time.Duration
	}{
		{"shutdown-timeout", &cfg.Server.ShutdownTimeout},
		{"poll-interval", &cfg.Consumer.PollInterval},
		{"timeout", &cfg.Consumer.Timeout},
	}
	for _, f := range durationFlags {
		if !fs.Changed(f.name) {
			continue
		}
		val, err := fs.GetDuration(f.name)
		if err != nil {
			return err
		}
		*f.dst = val
	}

	if fs.Changed("ids") {
		vals, err := fs.GetStringSlice("ids")
		if err != nil {
			return err
		}
		cfg.Source.IDs = vals
	}
	if fs.Changed("json-output") {
		val, err := fs.GetBool("json-output")
		if err != nil {
			return err
		}
		cfg.Consumer.JSONOutput = val
	}
	if fs.Changed("tracing-insecure") {
		val, err := fs.GetBool("tracing-insecure")
		if err != nil {
			return err
		}
		cfg.Tracing.Insecure = val
	}
	if fs.Changed("tracing-sample-rate") {
		val, err := fs.GetFloat64("tracing-sample-rate")
		if err != nil {
			return err
		}
		cfg.Tracing.SampleRate = val
	}
	if fs.Changed("tracing-propagate") {
		val, err := fs.GetBool("tracing-propagate")
		if err != nil {
			return err
		}
		cfg.Tracing.Propagate = &val
	}

	vals, err := fs.GetStringSlice("header")
	if err != nil {
		return err
	}
	if len(vals) > 0 {
		if cfg.Consumer.Headers == nil {
			cfg.Consumer.Headers = map[string]string{}
		}
		for _, entry := range vals {
			parts := strings.SplitN(entry, "=", 2)
			if len(parts) != 2 {
				return fmt.Errorf("header must be in key=value format: %s", entry)
			}
			key := http.CanonicalHeaderKey(strings.TrimSpace(parts[0]))
			if key == "" {
				return fmt.Errorf("header key cannot be empty")
			}
			cfg.Consumer.Headers[key] = strings.TrimSpace(parts[1])
		}
	}

	return nil
}
