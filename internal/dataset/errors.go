package dataset

import (
	"fmt"
	"strings"
)

// ConfigurationError reports settings that can never produce a dataset:
// a missing timestamp field, an unknown backend, an invalid identifier.
// It is fatal at startup.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

func configErrorf(field, format string, args ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// ConnectionError reports that the relational backend could not be opened,
// reached, or queried.
type ConnectionError struct {
	Driver string
	Op     string
	Err    error
}

func (e *ConnectionError) Error() string {
	var b strings.Builder
	b.WriteString("connection error")
	if e.Driver != "" {
		b.WriteString(" (")
		b.WriteString(e.Driver)
		b.WriteString(")")
	}
	if e.Op != "" {
		b.WriteString(": ")
		b.WriteString(e.Op)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// ParseError reports a row whose content could not be decoded, most often a
// timestamp that matches none of the accepted layouts. Line is 1-based and
// counts the CSV header; for SQL rows it is the result row number.
type ParseError struct {
	Source string
	Line   int
	Field  string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	var b strings.Builder
	b.WriteString("parse error")
	if e.Source != "" {
		b.WriteString(" in ")
		b.WriteString(e.Source)
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Field != "" {
		fmt.Fprintf(&b, ": field %q", e.Field)
	}
	if e.Value != "" {
		fmt.Fprintf(&b, " value %q", e.Value)
	}
	if e.Err != nil {
		b.WriteString(": ")
		b.WriteString(e.Err.Error())
	}
	return b.String()
}

func (e *ParseError) Unwrap() error { return e.Err }
