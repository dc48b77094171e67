package tasklog

import (
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/verte-zerg/taskcount/internal/stats"
)

var (
	// ErrNoIntervals means the log holds no interval counts to analyze.
	ErrNoIntervals = errors.New("no interval counts in log")
	// ErrCorruptLog means interval and summary entries do not line up.
	ErrCorruptLog = errors.New("index error, log data likely corrupted; back up then delete the log file and restart")
	// ErrUnreadableEntry means a start, interval or summary entry could not be decoded.
	ErrUnreadableEntry = errors.New("log entry with a task count could not be read; fix or remove it and analyze again")
	// ErrUptimeUndetermined means elapsed counting time went negative somewhere in the log.
	ErrUptimeUndetermined = errors.New("cannot determine uptime")
)

var epoch = time.Date(1970, time.January, 1, 0, 0, 0, 0, time.Local)

// Analysis is the aggregate history recovered from a log.
type Analysis struct {
	First time.Time
	Last  time.Time

	UptimeHours float64
	UptimeKnown bool

	Intervals  int
	TotalTasks int
	Periods    []string
	CountAvg   float64
	CountMin   int
	CountMax   int

	WeightedMean    string
	WeightedMeanSec float64
	Stdev           string
	RangeLo         string
	RangeHi         string

	Summaries       int
	SummaryFirst    time.Time
	SummaryLast     time.Time
	SummaryPeriods  []string
	SummaryCountAvg float64
	SummaryCountMin int
	SummaryCountMax int

	// Recent covers the intervals logged after the last summary; nil when there are none.
	Recent *Segment

	Series stats.IntervalSeries

	// Skipped counts log lines without a task count that could not be read.
	Skipped int
}

// Segment is a run of intervals analyzed on its own.
type Segment struct {
	First        time.Time
	Last         time.Time
	Intervals    int
	Tasks        int
	Periods      []string
	WeightedMean string
}

// Analyze decodes text and recovers its aggregate history.
func Analyze(text string) (Analysis, error) {
	return AnalyzeLog(Decode(text))
}

// AnalyzeLog recovers aggregate history from decoded events.
func AnalyzeLog(l Log) (Analysis, error) {
	if n := len(l.Unreadable); n > 0 {
		return Analysis{}, fmt.Errorf("%w: %d entries, first %q", ErrUnreadableEntry, n, l.Unreadable[0])
	}
	intervals := l.Intervals()
	if len(intervals) == 0 {
		return Analysis{}, ErrNoIntervals
	}
	summaries := l.Summaries()

	var a Analysis
	a.Skipped = l.Skipped
	a.First = intervals[0].At
	a.Last = intervals[len(intervals)-1].At
	if hours, err := Uptime(l); err == nil {
		a.UptimeHours, a.UptimeKnown = hours, true
	}

	counts := make([]int, len(intervals))
	avgs := make([]float64, len(intervals))
	var spread, nonzeroAvgs []float64
	for i, iv := range intervals {
		counts[i] = iv.Stats.Count
		avgs[i] = iv.Stats.MeanSec
		a.TotalTasks += iv.Stats.Count
		if iv.Stats.Count > 0 {
			nonzeroAvgs = append(nonzeroAvgs, iv.Stats.MeanSec)
		}
		spread = append(spread, iv.Stats.MeanSec, iv.Stats.MinSec, iv.Stats.MaxSec)
	}
	a.Intervals = len(intervals)
	a.Periods = intervalPeriods(intervals)
	a.CountAvg = round1(float64(a.TotalTasks) / float64(len(intervals)))
	a.CountMin, a.CountMax = stats.IntRange(counts)
	a.WeightedMean = stats.WeightedMeanString(avgs, counts)
	a.WeightedMeanSec, _ = stats.WeightedMean(avgs, counts)
	a.Stdev = stats.SecondsToDuration(int(stats.Stdev(nonzeroAvgs)), stats.ModeStd)
	if len(nonzeroAvgs) < 2 {
		a.Stdev = stats.NotApplicable
	}
	a.RangeLo, a.RangeHi = stats.NotApplicable, stats.NotApplicable
	if lo, hi, ok := stats.NonzeroRange(spread); ok {
		a.RangeLo = stats.SecondsToDuration(int(lo), stats.ModeStd)
		a.RangeHi = stats.SecondsToDuration(int(hi), stats.ModeStd)
	}
	a.Series = stats.IntervalSeries{Counts: counts, Avgs: avgs}

	if len(summaries) == 0 {
		return a, nil
	}
	sumCounts := make([]int, len(summaries))
	sumTotal := 0
	periods := map[string]struct{}{}
	for i, s := range summaries {
		sumCounts[i] = s.Stats.Count
		sumTotal += s.Stats.Count
		if _, ok := periods[s.Period.String()]; !ok {
			periods[s.Period.String()] = struct{}{}
			a.SummaryPeriods = append(a.SummaryPeriods, s.Period.String())
		}
	}
	a.Summaries = len(summaries)
	a.SummaryFirst = summaries[0].At
	a.SummaryLast = summaries[len(summaries)-1].At
	a.SummaryCountAvg = round1(float64(sumTotal) / float64(len(summaries)))
	a.SummaryCountMin, a.SummaryCountMax = stats.IntRange(sumCounts)

	recent, err := recentSegment(intervals, summaries[len(summaries)-1])
	if err != nil {
		return Analysis{}, err
	}
	a.Recent = recent
	return a, nil
}

// recentSegment returns the intervals after the one logged with the last summary.
// The summary is written with the same timestamp as the interval that closed it.
func recentSegment(intervals []Interval, last Summary) (*Segment, error) {
	if intervals[len(intervals)-1].At.Equal(last.At) {
		return nil, nil
	}
	idx := -1
	for i, iv := range intervals {
		if iv.At.Equal(last.At) {
			idx = i
			break
		}
	}
	if idx < 0 || idx+1 >= len(intervals) {
		return nil, ErrCorruptLog
	}
	rest := intervals[idx+1:]
	counts := make([]int, len(rest))
	avgs := make([]float64, len(rest))
	seg := &Segment{
		First:     rest[0].At,
		Last:      rest[len(rest)-1].At,
		Intervals: len(rest),
		Periods:   intervalPeriods(rest),
	}
	for i, iv := range rest {
		counts[i] = iv.Stats.Count
		avgs[i] = iv.Stats.MeanSec
		seg.Tasks += iv.Stats.Count
	}
	seg.WeightedMean = stats.WeightedMeanString(avgs, counts)
	return seg, nil
}

// Uptime sums the hours spent counting. Each start entry begins a segment and
// every interval entry reports hours since that start; the last value of each
// rising run is that segment's length. This is a best-effort reading of free
// text and cannot tell a restart from an edited timestamp.
func Uptime(l Log) (float64, error) {
	since := epoch
	var hours []float64
	for _, ev := range l.Events {
		switch e := ev.(type) {
		case Start:
			since = e.At
		case Interval:
			h := e.At.Sub(since).Hours()
			if h < 0 {
				return 0, ErrUptimeUndetermined
			}
			hours = append(hours, h)
		}
	}
	var total float64
	for i, h := range hours {
		if i == len(hours)-1 || hours[i+1] < h {
			total += h
		}
	}
	return total, nil
}

// FormatUptime renders uptime hours to one decimal.
func FormatUptime(hours float64, known bool) string {
	if !known {
		return stats.CannotDetermine
	}
	return fmt.Sprintf("%.1f", round1(hours))
}

func intervalPeriods(intervals []Interval) []string {
	seen := map[string]struct{}{}
	var out []string
	for _, iv := range intervals {
		p := iv.Period.String()
		if _, ok := seen[p]; ok {
			continue
		}
		seen[p] = struct{}{}
		out = append(out, p)
	}
	return out
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
