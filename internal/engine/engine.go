// Package engine runs the counting cycles and owns the state the views read.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/verte-zerg/taskcount/internal/boinc"
	"github.com/verte-zerg/taskcount/internal/config"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/notify"
	"github.com/verte-zerg/taskcount/internal/tasklog"
)

const (
	// DefaultNoticeEvery is how often the run state is refreshed between ticks.
	DefaultNoticeEvery = 15 * time.Second
	eventBuffer        = 64
)

// EventWriter receives every event the engine logs.
type EventWriter interface {
	Write(ev tasklog.Event) error
}

// Options configures an Engine.
type Options struct {
	Config   model.Config
	Client   boinc.Client
	Writers  []EventWriter
	Notifier notify.Notifier
	Logger   *slog.Logger
	Now      func() time.Time
	// Slice is the countdown update step. Defaults to one second.
	Slice time.Duration
	// Tick overrides the wall-clock length of one interval.
	Tick time.Duration
}

// Engine polls the client once per interval and logs what it finds.
type Engine struct {
	cfg      model.Config
	client   boinc.Client
	writers  []EventWriter
	notifier notify.Notifier
	log      *slog.Logger
	now      func() time.Time
	slice    time.Duration
	tick     time.Duration
	host     string
	st       *state
}

// New validates opts and returns an engine ready to Run.
func New(opts Options) (*Engine, error) {
	if opts.Client == nil {
		return nil, errors.New("engine requires a BOINC client")
	}
	if err := config.Validate(opts.Config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	cfg := opts.Config
	if cfg.NoticeEvery <= 0 {
		cfg.NoticeEvery = DefaultNoticeEvery
	}

	e := &Engine{
		cfg:      cfg,
		client:   opts.Client,
		writers:  opts.Writers,
		notifier: opts.Notifier,
		log:      opts.Logger,
		now:      opts.Now,
		slice:    opts.Slice,
		tick:     opts.Tick,
		st:       newState(cfg),
	}
	if e.notifier == nil {
		e.notifier = notify.Noop{}
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.slice <= 0 {
		e.slice = time.Second
	}
	if e.tick <= 0 {
		e.tick = cfg.Interval.Duration()
	}
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	e.host = host
	return e, nil
}

// Status returns a copy of the current state.
func (e *Engine) Status() Status {
	return e.st.snapshot()
}

// Run counts until the configured number of cycles has passed or ctx is
// cancelled. Queued log events are flushed before it returns.
func (e *Engine) Run(ctx context.Context) error {
	events := make(chan tasklog.Event, eventBuffer)

	var flush errgroup.Group
	flush.Go(func() error {
		e.logLoop(events)
		return nil
	})

	err := e.produce(ctx, events)
	close(events)
	_ = flush.Wait()
	e.st.finish()

	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (e *Engine) produce(ctx context.Context, events chan<- tasklog.Event) error {
	ref := e.now()
	e.begin(ctx, ref, events)
	if e.cfg.CountLimit == 0 {
		return nil
	}

	g, gctx := errgroup.WithContext(ctx)
	loopCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return e.intervalLoop(loopCtx, ref, events)
	})
	g.Go(func() error {
		return e.noticeLoop(loopCtx)
	})
	return g.Wait()
}

func (e *Engine) begin(ctx context.Context, at time.Time, events chan<- tasklog.Event) {
	polled, run := e.poll(ctx, at)
	start, n := e.st.begin(at, polled, run)
	events <- start
	if n != nil {
		events <- *n
	}
	e.log.Info("counting started",
		"tasks", start.Stats.Count,
		"queue", start.QueueTotal,
		"interval", e.cfg.Interval.String(),
		"cycles", e.cfg.CountLimit)
}

func (e *Engine) intervalLoop(ctx context.Context, ref time.Time, events chan<- tasklog.Event) error {
	for cycle := 0; cycle < e.cfg.CountLimit; cycle++ {
		wake := ref.Add(e.tick * time.Duration(cycle+1))
		if err := e.sleepUntil(ctx, wake); err != nil {
			return err
		}

		at := e.now()
		polled, run := e.poll(ctx, at)
		out := e.st.applyTick(tickInput{At: at, Cycle: cycle, Polled: polled, Run: run})

		events <- out.Interval
		if out.Summary != nil {
			events <- *out.Summary
		}
		if out.Notice != nil {
			events <- *out.Notice
		}
		if out.UpdateURL != "" {
			events <- e.requestUpdate(ctx, out.UpdateURL, at)
		}
		e.log.Debug("interval counted",
			"cycle", cycle+1,
			"tasks", out.Interval.Stats.Count,
			"remaining", out.Interval.CountsRemaining)
	}

	events <- tasklog.End{At: e.now(), Cycles: e.cfg.CountLimit}
	e.log.Info("counting finished", "cycles", e.cfg.CountLimit)
	return nil
}

// sleepUntil waits for wake in slices, publishing the countdown each slice.
func (e *Engine) sleepUntil(ctx context.Context, wake time.Time) error {
	for {
		left := wake.Sub(e.now())
		if left <= 0 {
			e.st.setCountdown(0, wake)
			return nil
		}
		e.st.setCountdown(left, wake)

		timer := time.NewTimer(min(e.slice, left))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
}

// poll reads reported task times and the run state. A failed poll counts
// nothing and marks the client unreachable.
func (e *Engine) poll(ctx context.Context, at time.Time) ([]model.WorkUnitTime, model.RunState) {
	polled, err := boinc.ReportedTimes(ctx, e.client)
	if err != nil {
		e.log.Warn("failed to poll reported tasks", "err", err)
		polled = nil
	}
	run, rerr := boinc.ReadRunState(ctx, e.client, at)
	if rerr != nil {
		e.log.Warn("failed to read client state", "err", rerr)
	}
	if err != nil && !run.Unreachable {
		run.Unreachable = true
		run.Err = err.Error()
	}
	return polled, run
}

func (e *Engine) requestUpdate(ctx context.Context, projectURL string, at time.Time) tasklog.Event {
	if err := e.client.ProjectAction(ctx, projectURL, "update"); err != nil {
		e.log.Warn("failed to update stalled project", "project", projectURL, "err", err)
		return tasklog.Notice{At: at, Text: fmt.Sprintf("Project update for %s failed: %v", projectURL, err)}
	}
	e.log.Info("requested update of stalled project", "project", projectURL)
	return tasklog.Notice{At: at, Text: "Project update requested for " + projectURL}
}

func (e *Engine) noticeLoop(ctx context.Context) error {
	ticker := time.NewTicker(e.cfg.NoticeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
		}

		at := e.now()
		run, err := boinc.ReadRunState(ctx, e.client, at)
		if err != nil && ctx.Err() != nil {
			return nil
		}
		if err != nil {
			e.log.Debug("notice refresh failed", "err", err)
		}

		rec, changed, escalate := e.st.applyNotice(run, at)
		if changed {
			e.log.Info("notice changed", "notice", rec.Text)
		}
		if escalate {
			if err := e.notifier.Send(ctx, e.notification(rec)); err != nil {
				e.log.Warn("failed to send notification", "err", err)
			}
		}
	}
}

func (e *Engine) notification(rec model.NoticeRecord) notify.Notification {
	level := notify.LevelWarning
	if notice.Kind(rec.Kind) == notice.KindClientUnreachable {
		level = notify.LevelError
	}
	return notify.Notification{Title: "taskcount", Message: rec.Text, Level: level, Host: e.host}
}

func (e *Engine) logLoop(events <-chan tasklog.Event) {
	for ev := range events {
		for _, w := range e.writers {
			if err := w.Write(ev); err != nil {
				e.log.Error("failed to write log entry", "err", err)
				e.st.setLogErr(err)
			}
		}
	}
}
