// Package config holds the file and environment helpers shared by every
// service bootstrap: defaults first, then the YAML file, then environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// LoadFile decodes a YAML file into out. A missing file is not an error;
// found reports whether one was read.
func LoadFile(path string, out any) (found bool, err error) {
	raw, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("parse config file: %w", err)
	}
	return true, nil
}

// env returns the trimmed value of name and whether it was set to anything.
func env(name string) (string, bool) {
	raw := strings.TrimSpace(os.Getenv(name))
	return raw, raw != ""
}

func EnvOrDefault(name, fallback string) string {
	if raw, ok := env(name); ok {
		return raw
	}
	return fallback
}

// EnvInt, EnvBool and EnvDuration fall back on unparsable values as well as
// unset ones.
func EnvInt(name string, fallback int) int {
	if raw, ok := env(name); ok {
		if v, err := strconv.Atoi(raw); err == nil {
			return v
		}
	}
	return fallback
}

func EnvBool(name string, fallback bool) bool {
	raw, ok := env(name)
	if !ok {
		return fallback
	}
	switch strings.ToLower(raw) {
	case "yes", "on":
		return true
	case "no", "off":
		return false
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return fallback
}

// EnvDuration accepts Go duration strings ("90s") or bare seconds ("90").
func EnvDuration(name string, fallback time.Duration) time.Duration {
	raw, ok := env(name)
	if !ok {
		return fallback
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil {
		return time.Duration(secs) * time.Second
	}
	return fallback
}

func EnvCSV(name string, fallback []string) []string {
	if raw, ok := env(name); ok {
		return TrimNonEmpty(strings.Split(raw, ","))
	}
	return fallback
}

// TrimNonEmpty trims each value and drops the blanks.
func TrimNonEmpty(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			out = append(out, v)
		}
	}
	return out
}
