package tui

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/verte-zerg/taskcount/internal/engine"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/stats"
)

type fixedSource struct {
	st engine.Status
}

func (f fixedSource) Status() engine.Status { return f.st }

func sampleStatus() engine.Status {
	return engine.Status{
		Config: model.Config{
			Interval:   model.Period{Value: 1, Unit: 'h'},
			Summary:    model.Period{Value: 1, Unit: 'd'},
			CountLimit: 10,
		},
		Start:           stats.Aggregate([]float64{600, 1200}),
		Interval:        model.IntervalSnapshot{Stats: stats.Aggregate([]float64{900})},
		HasInterval:     true,
		Run:             model.RunState{Total: 12, Running: 4},
		Notice:          model.NoticeRecord{Kind: int(notice.KindComputeError), Text: "1 task(s) ended with a computation error; check BOINC Manager"},
		Countdown:       30 * time.Minute,
		CyclesRemaining: 7,
	}
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, needle) {
			return false
		}
	}
	return true
}

func TestViewShowsMonitorSections(t *testing.T) {
	m := NewModel(fixedSource{st: sampleStatus()}, nil, "/tmp/taskcount_log.txt")
	out := m.View()
	want := []string{"taskcount", "interval 1h", "Past 1h", "Past 1d", "waiting", "Next count in 30:00", "7 counts remain.", "computation error", "Quit: q"}
	if !containsAll(out, want) {
		t.Fatalf("view missing expected segments:\n%s", out)
	}
}

func TestElapsedFraction(t *testing.T) {
	st := sampleStatus()
	if got := elapsedFraction(st); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}
	st.Countdown = 2 * time.Hour
	if got := elapsedFraction(st); got != 0 {
		t.Fatalf("expected clamp to 0, got %v", got)
	}
}

func TestDoneMessageFinishes(t *testing.T) {
	st := sampleStatus()
	st.Done = true
	st.CyclesRemaining = 0
	m := NewModel(fixedSource{st: st}, nil, "")
	_, cmd := m.Update(doneMsg{err: errors.New("boom")})
	if cmd != nil {
		t.Fatalf("expected no follow-up command")
	}
	out := m.View()
	if !containsAll(out, []string{"Counting finished after 10 cycle(s)", "Counting stopped: boom"}) {
		t.Fatalf("unexpected finished view:\n%s", out)
	}
}
