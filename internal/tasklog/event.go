// Package tasklog writes the append-only task log and reads it back for analysis.
package tasklog

import (
	"fmt"
	"strings"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
)

// TimeLayout is the timestamp format that starts every log entry.
const TimeLayout = "2006-Jan-02 15:04:05"

const (
	detailIndent = "    "
	stdevIndent  = "                 "
)

// Event is one logged entry.
type Event interface {
	When() time.Time
	Encode() string
}

// Start records the tasks present when counting began.
type Start struct {
	At         time.Time
	Stats      model.StatBlock
	QueueTotal int
}

// Interval records the tasks reported during one count interval.
type Interval struct {
	At              time.Time
	Period          model.Period
	Stats           model.StatBlock
	QueueTotal      int
	CountsRemaining int
}

// Summary records the rollup of a summary window.
type Summary struct {
	At     time.Time
	Period model.Period
	Stats  model.StatBlock
}

// Notice records an operator-facing status notice.
type Notice struct {
	At   time.Time
	Text string
}

// End records that the configured number of cycles has run.
type End struct {
	At     time.Time
	Cycles int
}

func (e Start) When() time.Time    { return e.At }
func (e Interval) When() time.Time { return e.At }
func (e Summary) When() time.Time  { return e.At }
func (e Notice) When() time.Time   { return e.At }
func (e End) When() time.Time      { return e.At }

func (e Start) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s; Number of tasks in the most recent report: %d\n", stamp(e.At), e.Stats.Count)
	writeTaskTime(&b, e.Stats)
	fmt.Fprintf(&b, "%sTotal tasks in queue: %d\n", detailIndent, e.QueueTotal)
	return b.String()
}

func (e Interval) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s; Tasks reported in the past %s: %d\n", stamp(e.At), e.Period, e.Stats.Count)
	writeTaskTime(&b, e.Stats)
	fmt.Fprintf(&b, "%sTotal tasks in queue: %d\n", detailIndent, e.QueueTotal)
	fmt.Fprintf(&b, "%s%d counts remain.\n", detailIndent, e.CountsRemaining)
	return b.String()
}

func (e Summary) Encode() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s; >>> SUMMARY: Task count for the past %s: %d\n", stamp(e.At), e.Period, e.Stats.Count)
	fmt.Fprintf(&b, "%sTask Time: mean %s, range [%s - %s], stdev %s, total %s\n",
		detailIndent, e.Stats.Mean, e.Stats.Min, e.Stats.Max, e.Stats.Stdev, e.Stats.Total)
	return b.String()
}

func (e Notice) Encode() string {
	return fmt.Sprintf("%s; *** %s ***\n", stamp(e.At), e.Text)
}

func (e End) Encode() string {
	return fmt.Sprintf("%s; ### %d counting cycles have ended. ###\n", stamp(e.At), e.Cycles)
}

func writeTaskTime(b *strings.Builder, s model.StatBlock) {
	fmt.Fprintf(b, "%sTask Time: avg %s, range [%s - %s],\n", detailIndent, s.Mean, s.Min, s.Max)
	fmt.Fprintf(b, "%sstdev %s, total %s\n", stdevIndent, s.Stdev, s.Total)
}

func stamp(t time.Time) string {
	return t.Format(TimeLayout)
}
