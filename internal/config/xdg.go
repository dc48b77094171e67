// Package config provides XDG path helpers.
package config

import (
	"os"
	"path/filepath"
)

const appName = "taskcount"

// XDGConfigHome returns the XDG config home or a default fallback.
func XDGConfigHome() string {
	if v := os.Getenv("XDG_CONFIG_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".config")
}

// XDGDataHome returns the XDG data home or a default fallback.
func XDGDataHome() string {
	if v := os.Getenv("XDG_DATA_HOME"); v != "" {
		return v
	}
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return "."
	}
	return filepath.Join(home, ".local", "share")
}

// DefaultLogPath returns the default task log path.
func DefaultLogPath() string {
	return filepath.Join(XDGDataHome(), appName, appName+"_log.txt")
}

// DefaultAnalysisPath returns where exported analyses are appended.
func DefaultAnalysisPath() string {
	return filepath.Join(XDGDataHome(), appName, appName+"_analysis.txt")
}

// DefaultDBPath returns the default path for the SQLite database.
func DefaultDBPath() string {
	return filepath.Join(XDGDataHome(), appName, appName+".db")
}

// DefaultDebugLogPath returns where diagnostics go while the TUI owns the terminal.
func DefaultDebugLogPath() string {
	return filepath.Join(XDGDataHome(), appName, appName+"-debug.log")
}

// DefaultConfigPath returns the default TOML config path.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigHome(), appName, "config.toml")
}
