package tasklog

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
)

const durPattern = `((?:\d+d? )?\d{1,2}:\d{2}:\d{2}|na)`

var (
	headRe     = regexp.MustCompile(`^(.+?); (.*)$`)
	startRe    = regexp.MustCompile(`most recent (?:BOINC )?report: (\d+)$`)
	intervalRe = regexp.MustCompile(`^Tasks reported .+ (\d+[mhd]): (\d+)$`)
	summaryRe  = regexp.MustCompile(`^>>> SUMMARY: .+ (\d+[mhd]): (\d+)$`)
	noticeRe   = regexp.MustCompile(`^\*\*\* (.*) \*\*\*$`)
	endRe      = regexp.MustCompile(`^### (\d+) counting cycles have ended\. ###$`)

	meanRe   = regexp.MustCompile(`(?:avg|mean) ` + durPattern)
	rangeRe  = regexp.MustCompile(`range \[` + durPattern + ` -{1,2} ` + durPattern + `\]`)
	stdevRe  = regexp.MustCompile(`stdev ` + durPattern)
	totalRe  = regexp.MustCompile(`total ` + durPattern)
	queueRe  = regexp.MustCompile(`Total tasks in queue: (\d+)`)
	remainRe = regexp.MustCompile(`^\s*(\d+) counts remain\.`)
)

// Log is the decoded content of a task log.
type Log struct {
	Events []Event
	// Skipped counts entry lines whose timestamp or body could not be read.
	Skipped int
	// Unreadable holds skipped lines that still look like a task count.
	Unreadable []string
}

// Intervals returns the interval events in log order.
func (l Log) Intervals() []Interval {
	var out []Interval
	for _, ev := range l.Events {
		if iv, ok := ev.(Interval); ok {
			out = append(out, iv)
		}
	}
	return out
}

// Summaries returns the summary events in log order.
func (l Log) Summaries() []Summary {
	var out []Summary
	for _, ev := range l.Events {
		if s, ok := ev.(Summary); ok {
			out = append(out, s)
		}
	}
	return out
}

// Decode parses log text. Indented detail lines belong to the entry above them.
func Decode(text string) Log {
	var (
		log     Log
		current Event
	)
	flush := func() {
		if current != nil {
			log.Events = append(log.Events, current)
			current = nil
		}
	}

	sc := bufio.NewScanner(strings.NewReader(text))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := sc.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		if line[0] == ' ' || line[0] == '\t' {
			if current != nil {
				current = applyDetail(current, line)
			}
			continue
		}
		flush()
		ev, ok := decodeHead(line)
		if !ok {
			log.Skipped++
			if carriesCount(line) {
				log.Unreadable = append(log.Unreadable, line)
			}
			continue
		}
		current = ev
	}
	flush()
	return log
}

func decodeHead(line string) (Event, bool) {
	m := headRe.FindStringSubmatch(line)
	if m == nil {
		return nil, false
	}
	at, err := time.ParseInLocation(TimeLayout, m[1], time.Local)
	if err != nil {
		return nil, false
	}
	body := m[2]
	if sm := intervalRe.FindStringSubmatch(body); sm != nil {
		period, perr := model.ParsePeriod(sm[1])
		count, cerr := strconv.Atoi(sm[2])
		if perr != nil || cerr != nil {
			return nil, false
		}
		return Interval{At: at, Period: period, Stats: model.StatBlock{Count: count}}, true
	}
	if sm := summaryRe.FindStringSubmatch(body); sm != nil {
		period, perr := model.ParsePeriod(sm[1])
		count, cerr := strconv.Atoi(sm[2])
		if perr != nil || cerr != nil {
			return nil, false
		}
		return Summary{At: at, Period: period, Stats: model.StatBlock{Count: count}}, true
	}
	if sm := startRe.FindStringSubmatch(body); sm != nil {
		count, err := strconv.Atoi(sm[1])
		if err != nil {
			return nil, false
		}
		return Start{At: at, Stats: model.StatBlock{Count: count}}, true
	}
	if sm := endRe.FindStringSubmatch(body); sm != nil {
		cycles, err := strconv.Atoi(sm[1])
		if err != nil {
			return nil, false
		}
		return End{At: at, Cycles: cycles}, true
	}
	if sm := noticeRe.FindStringSubmatch(body); sm != nil {
		return Notice{At: at, Text: sm[1]}, true
	}
	return nil, false
}

// carriesCount reports whether an undecodable line has the body of a
// start, interval or summary entry.
func carriesCount(line string) bool {
	body := line
	if m := headRe.FindStringSubmatch(line); m != nil {
		body = m[2]
	}
	return intervalRe.MatchString(body) || summaryRe.MatchString(body) || startRe.MatchString(body)
}

func applyDetail(ev Event, line string) Event {
	switch e := ev.(type) {
	case Start:
		applyStats(&e.Stats, line)
		applyQueue(&e.QueueTotal, line)
		return e
	case Interval:
		applyStats(&e.Stats, line)
		applyQueue(&e.QueueTotal, line)
		if m := remainRe.FindStringSubmatch(line); m != nil {
			e.CountsRemaining, _ = strconv.Atoi(m[1])
		}
		return e
	case Summary:
		applyStats(&e.Stats, line)
		return e
	default:
		return ev
	}
}

func applyStats(s *model.StatBlock, line string) {
	if m := meanRe.FindStringSubmatch(line); m != nil {
		s.Mean, s.MeanSec = durField(m[1])
	}
	if m := rangeRe.FindStringSubmatch(line); m != nil {
		s.Min, s.MinSec = durField(m[1])
		s.Max, s.MaxSec = durField(m[2])
	}
	if m := stdevRe.FindStringSubmatch(line); m != nil {
		s.Stdev, s.StdevSec = durField(m[1])
	}
	if m := totalRe.FindStringSubmatch(line); m != nil {
		s.Total, s.TotalSec = durField(m[1])
	}
}

func applyQueue(dst *int, line string) {
	if m := queueRe.FindStringSubmatch(line); m != nil {
		*dst, _ = strconv.Atoi(m[1])
	}
}

// durField keeps the logged text and its seconds; "na" reads as zero seconds.
func durField(text string) (string, float64) {
	secs, err := stats.DurationToSeconds(text)
	if err != nil {
		return text, 0
	}
	return text, float64(secs)
}
