// Package logging configures loggo for the streamsim binaries.
package logging

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/juju/errors"
	"github.com/juju/loggo/v2"
)

// DefaultLevel applies when no level is configured.
const DefaultLevel = "INFO"

// Configure sends all log output to w and applies level, which is either a
// level name such as "DEBUG" or a loggo spec like
// "<root>=INFO;streamsim.replay=DEBUG".
func Configure(w io.Writer, level string) error {
	spec, err := loggerSpec(level)
	if err != nil {
		return err
	}
	if _, err := loggo.ReplaceDefaultWriter(loggo.NewSimpleWriter(w, formatEntry)); err != nil {
		return errors.Annotate(err, "replacing log writer")
	}
	if err := loggo.ConfigureLoggers(spec); err != nil {
		return errors.Annotatef(err, "configuring loggers %q", spec)
	}
	return nil
}

func loggerSpec(level string) (string, error) {
	level = strings.TrimSpace(level)
	if level == "" {
		level = DefaultLevel
	}
	if strings.Contains(level, "=") {
		return level, nil
	}
	parsed, ok := loggo.ParseLevel(level)
	if !ok {
		return "", errors.NotValidf("log level %q", level)
	}
	return fmt.Sprintf("<root>=%s", parsed), nil
}

func formatEntry(entry loggo.Entry) string {
	ts := entry.Timestamp.In(time.UTC).Format("2006-01-02 15:04:05.000")
	return fmt.Sprintf("%s %-7s %s %s", ts, entry.Level, entry.Module, entry.Message)
}
