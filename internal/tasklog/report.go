package tasklog

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
)

// Render writes the human-readable analysis report.
func Render(w io.Writer, a Analysis) error {
	rows := [][]string{
		{FormatUptime(a.UptimeHours, a.UptimeKnown), "hours counting tasks"},
		{fmt.Sprint(a.TotalTasks), fmt.Sprintf("tasks in %d count intervals", a.Intervals)},
		{fmt.Sprint(a.CountAvg), "tasks per " + periodLabel(a.Periods) + " count interval"},
		{fmt.Sprintf("[%d - %d]", a.CountMin, a.CountMax), "range of task counts"},
		{a.WeightedMean, "weighted mean task time"},
		{a.Stdev, "std deviation task time"},
		{fmt.Sprintf("[%s - %s]", a.RangeLo, a.RangeHi), "range of task times"},
	}
	title := fmt.Sprintf("Analysis of reported tasks logged from\n%s to %s", stamp(a.First), stamp(a.Last))
	if err := stats.RenderTable(w, title, nil, indent(rows), nil); err != nil {
		return err
	}
	if err := cautionNote(w, "interval", a.Periods); err != nil {
		return err
	}
	if a.Skipped > 0 {
		if _, err := fmt.Fprintf(w, "%d log lines could not be read, so interpret results with caution.\n\n", a.Skipped); err != nil {
			return err
		}
	}

	if a.Summaries == 0 {
		_, err := fmt.Fprintln(w, "No summary counts are logged yet.")
		return err
	}
	rows = [][]string{
		{fmt.Sprint(a.Summaries), "summaries logged"},
		{fmt.Sprint(a.SummaryCountAvg), "tasks per " + periodLabel(a.SummaryPeriods) + " summary"},
		{fmt.Sprintf("[%d - %d]", a.SummaryCountMin, a.SummaryCountMax), "range of task counts"},
	}
	title = fmt.Sprintf("Summary data logged from\n%s to %s", stamp(a.SummaryFirst), stamp(a.SummaryLast))
	if err := stats.RenderTable(w, title, nil, indent(rows), nil); err != nil {
		return err
	}
	if err := cautionNote(w, "summary", a.SummaryPeriods); err != nil {
		return err
	}

	if a.Recent == nil {
		_, err := fmt.Fprintln(w, "No counts logged since the last summary.")
		return err
	}
	r := a.Recent
	rows = [][]string{
		{fmt.Sprint(r.Tasks), fmt.Sprintf("tasks in %d intervals of %s", r.Intervals, periodLabel(r.Periods))},
		{r.WeightedMean, "weighted mean task time"},
	}
	title = fmt.Sprintf("Since last summary, additional counts from\n%s to %s", stamp(r.First), stamp(r.Last))
	if err := stats.RenderTable(w, title, nil, indent(rows), nil); err != nil {
		return err
	}
	return cautionNote(w, "interval", r.Periods)
}

// RenderString is Render into a string.
func RenderString(a Analysis) string {
	var buf bytes.Buffer
	if err := Render(&buf, a); err != nil {
		return err.Error()
	}
	return buf.String()
}

// Export appends a timestamped report to the analysis file.
func Export(path, report string, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create analysis directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("failed to open analysis file: %w", err)
	}
	header := fmt.Sprintf("Log analysis exported %s\n%s\n", stamp(now), strings.Repeat("=", 40))
	if _, err := f.WriteString(header + report + "\n"); err != nil {
		_ = f.Close()
		return fmt.Errorf("failed to write analysis file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("failed to close analysis file: %w", err)
	}
	return nil
}

// Record builds the history entry stored for an exported analysis.
func Record(a Analysis, logPath, report string, now time.Time) model.AnalysisRecord {
	return model.AnalysisRecord{
		CreatedAt:   now,
		LogPath:     logPath,
		Intervals:   a.Intervals,
		TotalTasks:  a.TotalTasks,
		AvgTaskSec:  a.WeightedMeanSec,
		UptimeHours: a.UptimeHours,
		UptimeKnown: a.UptimeKnown,
		Report:      report,
	}
}

func periodLabel(periods []string) string {
	if len(periods) == 1 {
		return periods[0]
	}
	return "various length"
}

func cautionNote(w io.Writer, what string, periods []string) error {
	if len(periods) < 2 {
		return nil
	}
	_, err := fmt.Fprintf(w, "%d different %s lengths are logged: %s,\nso interpret results with caution.\n\n",
		len(periods), what, strings.Join(periods, ", "))
	return err
}

func indent(rows [][]string) [][]string {
	out := make([][]string, len(rows))
	for i, row := range rows {
		out[i] = append([]string{"  "}, row...)
	}
	return out
}
