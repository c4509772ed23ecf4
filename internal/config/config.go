// Package config implements the declarative-wiring surface: the
// ";"-separated "key=value" string grammar used by channel/device
// factories, and the Configurable interface they implement.
package config

import (
	"fmt"
	"strconv"
	"strings"
)

// Configurable is implemented by anything that accepts string-keyed,
// string-valued configuration at wiring time.
type Configurable interface {
	Configure(key, value string) error
}

// ParseString splits a ";"-separated "key=value" configuration string into
// a map. Empty segments (from a trailing ";" or doubled ";;") are skipped.
func ParseString(configuration string) (map[string]string, error) {
	fields := make(map[string]string)
	for _, segment := range strings.Split(configuration, ";") {
		segment = strings.TrimSpace(segment)
		if segment == "" {
			continue
		}
		key, value, ok := strings.Cut(segment, "=")
		if !ok {
			return nil, fmt.Errorf("config: malformed segment %q, want key=value", segment)
		}
		key = strings.TrimSpace(key)
		if key == "" {
			return nil, fmt.Errorf("config: empty key in segment %q", segment)
		}
		fields[key] = strings.TrimSpace(value)
	}
	return fields, nil
}

// ParseSize parses a channel element-count field.
func ParseSize(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("config: invalid size %q: %w", s, err)
	}
	if n < 0 {
		return 0, fmt.Errorf("config: negative size %q", s)
	}
	return n, nil
}

// ParseFrequency parses a device "frequency" field (Hz, as a float).
func ParseFrequency(s string) (float64, error) {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("config: invalid frequency %q: %w", s, err)
	}
	if f <= 0 {
		return 0, fmt.Errorf("config: frequency must be positive, got %q", s)
	}
	return f, nil
}

// ParseBool parses a device boolean field such as
// "stop_providing_when_empty".
func ParseBool(s string) (bool, error) {
	b, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("config: invalid bool %q: %w", s, err)
	}
	return b, nil
}

// ParseAliasPair splits a "ALIAS=TARGET" field, used by the "record" and
// "sample" keys.
func ParseAliasPair(s string) (alias, target string, err error) {
	alias, target, ok := strings.Cut(s, "=")
	if !ok {
		return "", "", fmt.Errorf("config: expected ALIAS=TARGET, got %q", s)
	}
	alias = strings.TrimSpace(alias)
	target = strings.TrimSpace(target)
	if alias == "" || target == "" {
		return "", "", fmt.Errorf("config: empty alias or target in %q", s)
	}
	return alias, target, nil
}
