package engine

import (
	"slices"
	"sync"
	"time"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/stats"
	"github.com/verte-zerg/taskcount/internal/tasklog"
	"github.com/verte-zerg/taskcount/internal/tracker"
)

// Status is a point-in-time copy of the engine's state for observers.
type Status struct {
	Config          model.Config
	StartedAt       time.Time
	Start           model.StatBlock
	StartQueue      int
	Interval        model.IntervalSnapshot
	HasInterval     bool
	Summary         model.SummaryWindow
	HasSummary      bool
	Run             model.RunState
	Notice          model.NoticeRecord
	Countdown       time.Duration
	NextAt          time.Time
	CyclesRemaining int
	Seen            int
	NoNewStreak     int
	LogErr          string
	Done            bool
}

// state owns everything the loops share. All access goes through its methods.
type state struct {
	mu           sync.RWMutex
	s            Status
	tr           *tracker.Tracker
	agg          *aggregator
	lastLogged   notice.Kind
	lastNotified notice.Kind
	stalledSent  bool
}

type tickInput struct {
	At     time.Time
	Cycle  int
	Polled []model.WorkUnitTime
	Run    model.RunState
}

type tickOutput struct {
	Interval  tasklog.Interval
	Summary   *tasklog.Summary
	Notice    *tasklog.Notice
	UpdateURL string
}

func newState(cfg model.Config) *state {
	return &state{
		s:  Status{Config: cfg, CyclesRemaining: cfg.CountLimit},
		tr: tracker.New(),
	}
}

// begin commits the first poll as the baseline.
func (st *state) begin(at time.Time, polled []model.WorkUnitTime, run model.RunState) (tasklog.Start, *tasklog.Notice) {
	st.mu.Lock()
	defer st.mu.Unlock()

	units := st.tr.Baseline(polled)
	block := stats.AggregateUnits(units)
	st.agg = newAggregator(st.s.Config, at)
	st.s.StartedAt = at
	st.s.Start = block
	st.s.StartQueue = run.Total
	st.s.Run = run
	st.s.Seen = st.tr.Seen()
	rec := st.selectNotice(at)

	return tasklog.Start{At: at, Stats: block, QueueTotal: run.Total}, st.noticeToLog(rec)
}

func (st *state) applyTick(in tickInput) tickOutput {
	st.mu.Lock()
	defer st.mu.Unlock()

	cfg := st.s.Config
	st.s.Run = in.Run

	units := st.tr.NewSinceSeen(in.Polled)
	st.tr.Commit(units)
	st.s.Seen = st.tr.Seen()

	switch {
	case len(units) == 0:
		st.s.NoNewStreak++
	case in.Run.Running > 0:
		st.s.NoNewStreak = 0
	}

	remaining := cfg.CountLimit - (in.Cycle + 1)
	snap := model.IntervalSnapshot{
		At:              in.At,
		Cycle:           in.Cycle,
		Period:          cfg.Interval,
		NewUnits:        units,
		Stats:           stats.AggregateUnits(units),
		QueueTotal:      in.Run.Total,
		CyclesRemaining: remaining,
	}
	st.s.Interval = snap
	st.s.HasInterval = true
	st.s.CyclesRemaining = remaining

	out := tickOutput{Interval: tasklog.Interval{
		At:              in.At,
		Period:          cfg.Interval,
		Stats:           snap.Stats,
		QueueTotal:      snap.QueueTotal,
		CountsRemaining: remaining,
	}}

	if win, ok := st.agg.feed(in.Cycle, snap); ok {
		st.s.Summary = win
		st.s.HasSummary = true
		out.Summary = &tasklog.Summary{At: in.At, Period: win.Period, Stats: win.Stats}
	}

	rec := st.selectNotice(in.At)
	out.Notice = st.noticeToLog(rec)

	if notice.Kind(rec.Kind) != notice.KindStalled {
		st.stalledSent = false
	} else if cfg.AutoUpdateStalled && !st.stalledSent && len(in.Run.ProjectURLs) > 0 {
		st.stalledSent = true
		out.UpdateURL = in.Run.ProjectURLs[0]
	}
	return out
}

// applyNotice refreshes the run state between ticks. changed reports a new
// notice kind; escalate reports an urgent kind not yet sent to the notifier.
func (st *state) applyNotice(run model.RunState, at time.Time) (rec model.NoticeRecord, changed, escalate bool) {
	st.mu.Lock()
	defer st.mu.Unlock()

	prev := st.s.Notice.Kind
	st.s.Run = run
	rec = st.selectNotice(at)

	kind := notice.Kind(rec.Kind)
	if !notice.Urgent(kind) {
		st.lastNotified = notice.KindNone
	} else if kind != st.lastNotified {
		st.lastNotified = kind
		escalate = true
	}
	return rec, rec.Kind != prev, escalate
}

func (st *state) setCountdown(left time.Duration, next time.Time) {
	st.mu.Lock()
	st.s.Countdown = left
	st.s.NextAt = next
	st.mu.Unlock()
}

func (st *state) setLogErr(err error) {
	st.mu.Lock()
	st.s.LogErr = err.Error()
	st.mu.Unlock()
}

func (st *state) finish() {
	st.mu.Lock()
	st.s.Done = true
	st.s.Countdown = 0
	st.mu.Unlock()
}

func (st *state) snapshot() Status {
	st.mu.RLock()
	defer st.mu.RUnlock()

	out := st.s
	out.Interval.NewUnits = slices.Clone(st.s.Interval.NewUnits)
	out.Summary.Units = slices.Clone(st.s.Summary.Units)
	out.Summary.IntervalMeans = slices.Clone(st.s.Summary.IntervalMeans)
	out.Summary.IntervalCounts = slices.Clone(st.s.Summary.IntervalCounts)
	out.Run.ProjectURLs = slices.Clone(st.s.Run.ProjectURLs)
	return out
}

// selectNotice requires st.mu held.
func (st *state) selectNotice(at time.Time) model.NoticeRecord {
	rec := notice.Select(notice.Input{
		State:       st.s.Run,
		NoNewStreak: st.s.NoNewStreak,
		Interval:    st.s.Config.Interval,
	}, at)
	st.s.Notice = rec
	return rec
}

// noticeToLog returns the log entry for rec when its kind is urgent and
// differs from the last one logged. Requires st.mu held.
func (st *state) noticeToLog(rec model.NoticeRecord) *tasklog.Notice {
	kind := notice.Kind(rec.Kind)
	if !notice.Urgent(kind) {
		st.lastLogged = notice.KindNone
		return nil
	}
	if kind == st.lastLogged {
		return nil
	}
	st.lastLogged = kind
	return &tasklog.Notice{At: rec.At, Text: rec.Text}
}
