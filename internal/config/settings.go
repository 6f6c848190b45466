package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/cast"
)

// settings is one level of a decoded config file. Keys match regardless of
// case, '-' and '_', so poll_interval, poll-interval and pollInterval name
// the same setting.
type settings map[string]any

func normalizeKey(key string) string {
	return strings.NewReplacer("_", "", "-", "").Replace(strings.ToLower(strings.TrimSpace(key)))
}

func newSettings(raw any) (settings, error) {
	if raw == nil {
		return settings{}, nil
	}
	m, err := cast.ToStringMapE(raw)
	if err != nil {
		return nil, fmt.Errorf("expected a table of settings, got %T", raw)
	}
	s := make(settings, len(m))
	for k, v := range m {
		s[normalizeKey(k)] = v
	}
	return s, nil
}

// lookup returns the value of the first key present.
func (s settings) lookup(keys ...string) (any, bool) {
	for _, key := range keys {
		if v, ok := s[normalizeKey(key)]; ok {
			return v, true
		}
	}
	return nil, false
}

// section returns the nested table under key, or nil if it is absent.
func (s settings) section(key string) (settings, error) {
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		return nil, nil
	}
	sec, err := newSettings(raw)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", key, err)
	}
	return sec, nil
}

// The setters below leave dst untouched when none of keys is present and
// report conversion failures under the first key.

func (s settings) setString(dst *string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = strings.TrimSpace(v)
	return nil
}

func (s settings) setInt(dst *int, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	if str, isStr := raw.(string); isStr {
		raw = strings.TrimSpace(str)
	}
	v, err := cast.ToIntE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) setFloat(dst *float64, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	v, err := cast.ToFloat64E(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

func (s settings) setBool(dst *bool, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	if str, isStr := raw.(string); isStr && strings.TrimSpace(str) == "" {
		*dst = false
		return nil
	}
	v, err := cast.ToBoolE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = v
	return nil
}

// setDuration accepts Go duration strings ("250ms"). Bare numbers are
// seconds, as in the flat conf keys.
func (s settings) setDuration(dst *time.Duration, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	d, err := toDuration(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", keys[0], err)
	}
	*dst = d
	return nil
}

func toDuration(raw any) (time.Duration, error) {
	switch v := raw.(type) {
	case nil:
		return 0, nil
	case time.Duration:
		return v, nil
	case string:
		v = strings.TrimSpace(v)
		if v == "" {
			return 0, nil
		}
		if secs, err := cast.ToFloat64E(v); err == nil {
			return time.Duration(secs * float64(time.Second)), nil
		}
		return time.ParseDuration(v)
	default:
		secs, err := cast.ToFloat64E(v)
		if err != nil {
			return 0, err
		}
		return time.Duration(secs * float64(time.Second)), nil
	}
}

// setIDs accepts a list or a comma-separated string.
func (s settings) setIDs(dst *[]string, keys ...string) error {
	raw, ok := s.lookup(keys...)
	if !ok {
		return nil
	}
	var ids []string
	if str, isStr := raw.(string); isStr {
		ids = strings.Split(str, ",")
	} else {
		list, err := cast.ToStringSliceE(raw)
		if err != nil {
			return fmt.Errorf("%s: %w", keys[0], err)
		}
		ids = list
	}
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	*dst = out
	return nil
}

// mergeHeaders adds the header table under key to dst with canonical names.
func (s settings) mergeHeaders(dst map[string]string, key string) error {
	raw, ok := s.lookup(key)
	if !ok || raw == nil {
		return nil
	}
	hdrs, err := cast.ToStringMapStringE(raw)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	for k, v := range hdrs {
		name := strings.TrimSpace(k)
		if name == "" {
			return fmt.Errorf("%s: header name cannot be empty", key)
		}
		dst[http.CanonicalHeaderKey(name)] = v
	}
	return nil
}
