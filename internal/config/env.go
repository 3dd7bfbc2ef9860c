package config

import (
	"errors"
	"fmt"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dustin/go-humanize"
)

// envKnob is a setting read only from the environment. set receives the
// trimmed, non-empty value.
type envKnob struct {
	key string
	set func(raw string) error
}

func (c *Config) envKnobs() []envKnob {
	return []envKnob{
		{"ASKBOX_DB_NAME", stringSetter(&c.DBName)},
		{"ASKBOX_DB_MIGRATE_AT_START", boolSetter(&c.DatastoreMigrateAtStart)},
		{"ASKBOX_DB_TX_MAX_RETRIES", intSetter(&c.TxMaxRetries, 0)},
		{"ASKBOX_CACHE_HANDLE_TTL", durationSetter(&c.CacheHandleTTL)},
		{"ASKBOX_CACHE_LOCAL_MAX_ENTRIES", func(raw string) error {
			n, err := strconv.ParseInt(raw, 10, 64)
			if err != nil || n < 1 {
				return fmt.Errorf("must be a positive integer, got %q", raw)
			}
			c.CacheLocalMaxEntries = n
			return nil
		}},
		{"ASKBOX_MAX_BODY_SIZE", func(raw string) error {
			n, err := parseByteSize(raw)
			if err != nil {
				return err
			}
			c.MaxBodySize = n
			return nil
		}},
		{"ASKBOX_MESSAGES_DEFAULT_PAGE_SIZE", intSetter(&c.DefaultPageSize, 1)},
		{"ASKBOX_CORS_ENABLED", boolSetter(&c.CORSEnabled)},
		{"ASKBOX_CORS_ORIGINS", stringSetter(&c.CORSOrigins)},
		{"ASKBOX_OIDC_CLIENT_ID", stringSetter(&c.OIDCClientID)},
	}
}

// ApplyEnv reads the settings that have no serve flag. Every malformed
// variable is reported, not just the first.
func (c *Config) ApplyEnv() error {
	if c == nil {
		return nil
	}
	var errs []error
	for _, k := range c.envKnobs() {
		raw := strings.TrimSpace(os.Getenv(k.key))
		if raw == "" {
			continue
		}
		if err := k.set(raw); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", k.key, err))
		}
	}
	return errors.Join(errs...)
}

func stringSetter(dest *string) func(string) error {
	return func(raw string) error {
		*dest = raw
		return nil
	}
}

func boolSetter(dest *bool) func(string) error {
	return func(raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*dest = v
		return nil
	}
}

func intSetter(dest *int, min int) func(string) error {
	return func(raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		if v < min {
			return fmt.Errorf("must be at least %d", min)
		}
		*dest = v
		return nil
	}
}

func durationSetter(dest *time.Duration) func(string) error {
	return func(raw string) error {
		d, err := parseDuration(raw)
		if err != nil {
			return err
		}
		*dest = d
		return nil
	}
}

var isoDuration = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// parseDuration accepts Go durations (30s, 5m) and ISO-8601 time durations
// (PT1H30M). The result must be positive.
func parseDuration(raw string) (time.Duration, error) {
	d, err := time.ParseDuration(strings.ToLower(raw))
	if err != nil {
		m := isoDuration.FindStringSubmatch(strings.ToUpper(raw))
		if m == nil || strings.EqualFold(raw, "PT") {
			return 0, fmt.Errorf("unsupported duration %q", raw)
		}
		d = 0
		for i, unit := range []time.Duration{time.Hour, time.Minute, time.Second} {
			if m[i+1] == "" {
				continue
			}
			n, _ := strconv.Atoi(m[i+1])
			d += time.Duration(n) * unit
		}
	}
	if d <= 0 {
		return 0, fmt.Errorf("duration must be positive, got %q", raw)
	}
	return d, nil
}

// parseByteSize accepts plain byte counts and humanized sizes such as 512KiB
// or 2MB.
func parseByteSize(raw string) (int64, error) {
	n, err := humanize.ParseBytes(raw)
	if err != nil {
		return 0, err
	}
	if n == 0 || n > 1<<40 {
		return 0, fmt.Errorf("size out of range: %q", raw)
	}
	return int64(n), nil
}
