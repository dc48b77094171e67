// Package model defines shared data structures.
package model

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// WorkUnitTime is the elapsed time of a completed task, in seconds.
// Its value doubles as the task's identity.
type WorkUnitTime float64

// Config defines monitor settings after flags and the config file are merged.
type Config struct {
	Interval          Period
	Summary           Period
	CountLimit        int
	LogPath           string
	NoticeEvery       time.Duration
	AutoUpdateStalled bool
}

// SummaryFactor returns how many intervals make up one summary window.
func (c Config) SummaryFactor() int {
	if c.Interval.Minutes() == 0 {
		return 0
	}
	return c.Summary.Minutes() / c.Interval.Minutes()
}

// StatBlock holds display-ready statistics for a set of task times.
// Fields that do not apply hold "na".
type StatBlock struct {
	Count int
	Total string
	Mean  string
	Stdev string
	Min   string
	Max   string

	TotalSec float64
	MeanSec  float64
	StdevSec float64
	MinSec   float64
	MaxSec   float64
}

// IntervalSnapshot is the result of one interval tick.
type IntervalSnapshot struct {
	At              time.Time
	Cycle           int
	Period          Period
	NewUnits        []WorkUnitTime
	Stats           StatBlock
	QueueTotal      int
	CyclesRemaining int
}

// SummaryWindow is the rollup over the intervals of one summary period.
type SummaryWindow struct {
	Start          time.Time
	End            time.Time
	Period         Period
	Units          []WorkUnitTime
	IntervalMeans  []float64
	IntervalCounts []int
	Stats          StatBlock
}

// RunState is the client's current task-state census.
type RunState struct {
	Total                  int
	Running                int
	SuspendedByUser        int
	Uploading              int
	Uploaded               int
	Aborted                int
	Errored                int
	ClientSuspendReason    string
	ProjectSuspendedByUser bool
	NoNewWork              bool
	Unreachable            bool
	Err                    string
	ProjectURLs            []string
	RefreshedAt            time.Time
}

// NoticeRecord is the currently selected operational notice.
type NoticeRecord struct {
	Kind int
	Text string
	At   time.Time
}

// Period is a count-interval label such as 15m, 1h or 1d.
type Period struct {
	Value int
	Unit  byte
}

// ErrBadPeriod is returned for a period label that is not <N>m, <N>h or <N>d.
var ErrBadPeriod = errors.New("period must be a positive number followed by m, h or d")

// ParsePeriod reads labels such as "15m", "1h" or "1d".
func ParsePeriod(s string) (Period, error) {
	if len(s) < 2 {
		return Period{}, fmt.Errorf("%w: %q", ErrBadPeriod, s)
	}
	unit := s[len(s)-1]
	if unit != 'm' && unit != 'h' && unit != 'd' {
		return Period{}, fmt.Errorf("%w: %q", ErrBadPeriod, s)
	}
	n, err := strconv.Atoi(s[:len(s)-1])
	if err != nil || n <= 0 {
		return Period{}, fmt.Errorf("%w: %q", ErrBadPeriod, s)
	}
	return Period{Value: n, Unit: unit}, nil
}

// Minutes returns the period length in minutes.
func (p Period) Minutes() int {
	switch p.Unit {
	case 'm':
		return p.Value
	case 'h':
		return p.Value * 60
	case 'd':
		return p.Value * 1440
	default:
		return 0
	}
}

// Duration returns the period as a time.Duration.
func (p Period) Duration() time.Duration {
	return time.Duration(p.Minutes()) * time.Minute
}

func (p Period) String() string {
	if p.Unit == 0 {
		return ""
	}
	return fmt.Sprintf("%d%c", p.Value, p.Unit)
}

// AnalysisRecord is one exported log analysis kept in history.
type AnalysisRecord struct {
	ID          int64
	CreatedAt   time.Time
	LogPath     string
	Intervals   int
	TotalTasks  int
	AvgTaskSec  float64
	UptimeHours float64
	UptimeKnown bool
	Report      string
}
