package tasklog

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
)

var (
	quarter = model.Period{Value: 15, Unit: 'm'}
	hour    = model.Period{Value: 1, Unit: 'h'}
)

func interval(at time.Time, p model.Period, times ...float64) Interval {
	return Interval{At: at, Period: p, Stats: stats.Aggregate(times)}
}

func encodeAll(events ...Event) string {
	var b strings.Builder
	for _, ev := range events {
		b.WriteString(ev.Encode())
	}
	return b.String()
}

func TestUptimeSumsSegmentMaxima(t *testing.T) {
	s1 := t0
	s2 := t0.Add(24 * time.Hour)
	text := encodeAll(
		Start{At: s1, Stats: stats.Aggregate(nil)},
		interval(s1.Add(time.Hour), hour, 600),
		interval(s1.Add(2*time.Hour), hour, 600),
		Start{At: s2, Stats: stats.Aggregate(nil)},
		interval(s2.Add(30*time.Minute), hour, 600),
		interval(s2.Add(90*time.Minute), hour, 600),
	)
	hours, err := Uptime(Decode(text))
	if err != nil {
		t.Fatalf("Uptime: %v", err)
	}
	if got := FormatUptime(hours, true); got != "3.5" {
		t.Fatalf("expected 3.5 hours, got %s", got)
	}
}

func TestUptimeNegativeCannotDetermine(t *testing.T) {
	text := encodeAll(
		Start{At: t0, Stats: stats.Aggregate(nil)},
		interval(t0.Add(-time.Hour), hour, 600),
	)
	if _, err := Uptime(Decode(text)); !errors.Is(err, ErrUptimeUndetermined) {
		t.Fatalf("expected ErrUptimeUndetermined, got %v", err)
	}
	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.UptimeKnown || FormatUptime(a.UptimeHours, a.UptimeKnown) != stats.CannotDetermine {
		t.Fatalf("expected unknown uptime, got %+v", a)
	}
}

func TestAnalyzeNoIntervals(t *testing.T) {
	text := encodeAll(Start{At: t0, Stats: stats.Aggregate(nil)})
	if _, err := Analyze(text); !errors.Is(err, ErrNoIntervals) {
		t.Fatalf("expected ErrNoIntervals, got %v", err)
	}
}

func TestAnalyzeWithRecentSegment(t *testing.T) {
	text := encodeAll(
		Start{At: t0, Stats: stats.Aggregate(nil)},
		interval(t0.Add(15*time.Minute), quarter, 600, 600),
		interval(t0.Add(30*time.Minute), quarter),
		interval(t0.Add(45*time.Minute), quarter, 720, 720, 720),
		interval(t0.Add(60*time.Minute), quarter, 480),
		Summary{At: t0.Add(60 * time.Minute), Period: hour, Stats: model.StatBlock{Count: 6, Mean: "00:10:40"}},
		interval(t0.Add(75*time.Minute), quarter, 1200),
		interval(t0.Add(90*time.Minute), quarter, 600, 1200, 1200),
	)
	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Intervals != 6 || a.TotalTasks != 10 {
		t.Fatalf("unexpected totals: %d intervals, %d tasks", a.Intervals, a.TotalTasks)
	}
	if a.CountAvg != 1.7 || a.CountMin != 0 || a.CountMax != 3 {
		t.Fatalf("unexpected count stats: %+v", a)
	}
	if a.RangeLo != "00:08:00" || a.RangeHi != "00:20:00" {
		t.Fatalf("unexpected range [%s - %s]", a.RangeLo, a.RangeHi)
	}
	if a.Summaries != 1 || a.SummaryCountAvg != 6 {
		t.Fatalf("unexpected summary stats: %+v", a)
	}
	if a.Recent == nil {
		t.Fatalf("expected a recent segment")
	}
	if a.Recent.Intervals != 2 || a.Recent.Tasks != 4 {
		t.Fatalf("unexpected recent segment: %+v", a.Recent)
	}
	// (1200*1 + 1000*3) / 4 = 1050
	if a.Recent.WeightedMean != "00:17:30" {
		t.Fatalf("expected recent weighted mean 00:17:30, got %s", a.Recent.WeightedMean)
	}
	if got := FormatUptime(a.UptimeHours, a.UptimeKnown); got != "1.5" {
		t.Fatalf("expected 1.5 hours uptime, got %s", got)
	}
}

func TestAnalyzeNoRecentWhenLastIntervalClosedSummary(t *testing.T) {
	text := encodeAll(
		interval(t0, quarter, 600),
		Summary{At: t0, Period: quarter, Stats: stats.Aggregate([]float64{600})},
	)
	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Recent != nil {
		t.Fatalf("expected no recent segment, got %+v", a.Recent)
	}
}

func TestAnalyzeCorruptLog(t *testing.T) {
	text := encodeAll(
		interval(t0, quarter, 600),
		interval(t0.Add(15*time.Minute), quarter, 600),
		Summary{At: t0.Add(7 * time.Minute), Period: hour, Stats: stats.Aggregate([]float64{600})},
	)
	if _, err := Analyze(text); !errors.Is(err, ErrCorruptLog) {
		t.Fatalf("expected ErrCorruptLog, got %v", err)
	}
}

func TestAnalyzeRejectsUnreadableInterval(t *testing.T) {
	second := t0.Add(15 * time.Minute)
	text := encodeAll(
		interval(t0, quarter, 600, 600),
		interval(second, quarter, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600, 600),
	)
	text = strings.Replace(text, stamp(second)+"; Tasks", "2021-Dex-21 06:00:00; Tasks", 1)

	_, err := Analyze(text)
	if !errors.Is(err, ErrUnreadableEntry) {
		t.Fatalf("expected ErrUnreadableEntry, got %v", err)
	}
	if !strings.Contains(err.Error(), "2021-Dex-21") {
		t.Fatalf("expected the bad line in the error, got %v", err)
	}
}

func TestRenderNotesSkippedLines(t *testing.T) {
	text := encodeAll(
		interval(t0, quarter, 600),
		interval(t0.Add(15*time.Minute), quarter, 900),
	) + "stray line typed by hand\n"

	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if a.Skipped != 1 || a.Intervals != 2 {
		t.Fatalf("unexpected analysis: skipped %d, intervals %d", a.Skipped, a.Intervals)
	}
	if out := RenderString(a); !strings.Contains(out, "1 log lines could not be read") {
		t.Fatalf("expected skipped-line note in report:\n%s", out)
	}
}

func TestRenderMentionsMixedPeriods(t *testing.T) {
	text := encodeAll(
		interval(t0, quarter, 600),
		interval(t0.Add(time.Hour), hour, 900, 300),
	)
	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	out := RenderString(a)
	for _, want := range []string{
		"Analysis of reported tasks logged from",
		"tasks per various length count interval",
		"2 different interval lengths are logged: 15m, 1h",
		"No summary counts are logged yet.",
		"weighted mean task time",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in report:\n%s", want, out)
		}
	}
}

func TestExportAppendsAndRecord(t *testing.T) {
	text := encodeAll(interval(t0, quarter, 600, 1200))
	a, err := Analyze(text)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	report := RenderString(a)
	path := filepath.Join(t.TempDir(), "out", "taskcount_analysis.txt")
	for i := 0; i < 2; i++ {
		if err := Export(path, report, t0); err != nil {
			t.Fatalf("Export: %v", err)
		}
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if got := strings.Count(string(data), "Log analysis exported 2024-Mar-05 08:00:00"); got != 2 {
		t.Fatalf("expected 2 export headers, got %d", got)
	}

	rec := Record(a, "/tmp/log.txt", report, t0)
	if rec.Intervals != 1 || rec.TotalTasks != 2 || rec.AvgTaskSec != 900 || rec.Report != report {
		t.Fatalf("unexpected record %+v", rec)
	}
}
