// Package config provides configuration helpers and TOML parsing.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/verte-zerg/taskcount/internal/model"
)

var (
	// ErrIntervalNotShorter is returned when the summary period does not exceed the interval.
	ErrIntervalNotShorter = errors.New("summary period must be longer than the count interval")
	// ErrNotMultiple is returned when the summary period is not a whole number of intervals.
	ErrNotMultiple = errors.New("summary period must be a multiple of the count interval")
	// ErrBadCountLimit is returned for a negative cycle count.
	ErrBadCountLimit = errors.New("count limit must be >= 0")
)

// FileConfig represents the TOML configuration file.
type FileConfig struct {
	Count   CountConfig   `toml:"count"`
	Client  ClientConfig  `toml:"client"`
	Notify  NotifyConfig  `toml:"notify"`
	Logging LoggingConfig `toml:"logging"`
}

// CountConfig maps counting settings.
type CountConfig struct {
	Interval    *string `toml:"interval"`
	Summary     *string `toml:"summary"`
	CountLimit  *int    `toml:"count-lim"`
	Log         *bool   `toml:"log"`
	NoticeEvery *string `toml:"notice-every"`
	AutoUpdate  *bool   `toml:"auto-update"`
}

// ClientConfig maps how boinccmd is reached.
type ClientConfig struct {
	Boinccmd *string `toml:"boinccmd"`
	Host     *string `toml:"host"`
	Password *string `toml:"password"`
}

// NotifyConfig maps where notices are escalated.
type NotifyConfig struct {
	Desktop      *bool   `toml:"desktop"`
	SlackWebhook *string `toml:"slack-webhook"`
}

// LoggingConfig maps diagnostic logging.
type LoggingConfig struct {
	Level *string `toml:"level"`
}

// LoadConfig reads a TOML config from the given path. Missing file is not an error.
func LoadConfig(path string) (FileConfig, error) {
	if path == "" {
		return FileConfig{}, fmt.Errorf("config path is empty")
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return FileConfig{}, nil
		}
		return FileConfig{}, fmt.Errorf("failed to stat config: %w", err)
	}
	var cfg FileConfig
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return FileConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	return cfg, nil
}

// ParseNoticeEvery reads a Go duration such as "15s".
func ParseNoticeEvery(s string) (time.Duration, error) {
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid notice period %q: %w", s, err)
	}
	if d < time.Second {
		return 0, fmt.Errorf("notice period %q must be at least 1s", s)
	}
	return d, nil
}

// Validate checks the interval and summary relationship and the cycle count.
func Validate(cfg model.Config) error {
	if cfg.CountLimit < 0 {
		return ErrBadCountLimit
	}
	iv, sum := cfg.Interval.Minutes(), cfg.Summary.Minutes()
	if iv <= 0 || sum <= 0 {
		return model.ErrBadPeriod
	}
	if sum <= iv {
		return fmt.Errorf("%w: interval %s, summary %s", ErrIntervalNotShorter, cfg.Interval, cfg.Summary)
	}
	if sum%iv != 0 {
		return fmt.Errorf("%w: interval %s, summary %s", ErrNotMultiple, cfg.Interval, cfg.Summary)
	}
	return nil
}
