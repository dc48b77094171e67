package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/verte-zerg/taskcount/internal/boinc"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/notify"
	"github.com/verte-zerg/taskcount/internal/tasklog"
)

type fakeClient struct {
	mu       sync.Mutex
	polls    [][]float64
	reported int
	tasks    []string
	projects []string
	actions  []string
	down     bool
	// delay stalls every Reported call, outside the lock.
	delay time.Duration
}

func (f *fakeClient) Reported(_ context.Context, _ string) ([]string, error) {
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, boinc.ErrUnreachable
	}
	i := min(f.reported, len(f.polls)-1)
	f.reported++
	var lines []string
	if i >= 0 {
		for _, v := range f.polls[i] {
			lines = append(lines, fmt.Sprintf("   elapsed time: %f sec", v))
		}
	}
	return lines, nil
}

func (f *fakeClient) Tasks(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.down {
		return nil, boinc.ErrUnreachable
	}
	return f.tasks, nil
}

func (f *fakeClient) SimpleStatus(context.Context) ([]string, error) {
	return nil, nil
}

func (f *fakeClient) ProjectStatus(context.Context, string) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.projects, nil
}

func (f *fakeClient) ProjectAction(_ context.Context, projectURL, action string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.actions = append(f.actions, action+" "+projectURL)
	return nil
}

func (f *fakeClient) setTasks(lines []string) {
	f.mu.Lock()
	f.tasks = lines
	f.mu.Unlock()
}

func (f *fakeClient) reportedCalls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reported
}

type recorder struct {
	mu     sync.Mutex
	events []tasklog.Event
	err    error
}

func (r *recorder) Write(ev tasklog.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, ev)
	return r.err
}

func (r *recorder) count(match func(tasklog.Event) bool) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, ev := range r.events {
		if match(ev) {
			n++
		}
	}
	return n
}

func taskLines(running, total int, state string) []string {
	var lines []string
	for i := 0; i < total; i++ {
		lines = append(lines, fmt.Sprintf("   name: wu_%d", i))
		lines = append(lines, "   state: "+state)
		if i < running {
			lines = append(lines, "   active_task_state: EXECUTING")
		}
	}
	return lines
}

func testConfig(cycles int) model.Config {
	return model.Config{
		Interval:    model.Period{Value: 15, Unit: 'm'},
		Summary:     model.Period{Value: 1, Unit: 'h'},
		CountLimit:  cycles,
		NoticeEvery: time.Hour,
	}
}

func newTestEngine(t *testing.T, cfg model.Config, client boinc.Client, writers ...EventWriter) *Engine {
	t.Helper()
	e, err := New(Options{
		Config:  cfg,
		Client:  client,
		Writers: writers,
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Slice:   time.Millisecond,
		Tick:    2 * time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func isInterval(ev tasklog.Event) bool {
	_, ok := ev.(tasklog.Interval)
	return ok
}

func isSummary(ev tasklog.Event) bool {
	_, ok := ev.(tasklog.Summary)
	return ok
}

func isNotice(ev tasklog.Event) bool {
	_, ok := ev.(tasklog.Notice)
	return ok
}

func isEnd(ev tasklog.Event) bool {
	_, ok := ev.(tasklog.End)
	return ok
}

func TestSummaryFiresOnFourthTick(t *testing.T) {
	base := []float64{100}
	tick1 := append(append([]float64{}, base...), 590, 610)
	tick3 := append(append([]float64{}, tick1...), 700, 720, 740)
	tick4 := append(append([]float64{}, tick3...), 480)
	client := &fakeClient{
		polls: [][]float64{base, tick1, tick1, tick3, tick4},
		tasks: taskLines(4, 10, "downloaded"),
	}
	rec := &recorder{}
	e := newTestEngine(t, testConfig(4), client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if n := rec.count(isInterval); n != 4 {
		t.Fatalf("expected 4 interval events, got %d", n)
	}
	if n := rec.count(isSummary); n != 1 {
		t.Fatalf("expected exactly 1 summary, got %d", n)
	}
	if n := rec.count(isEnd); n != 1 {
		t.Fatalf("expected 1 end event, got %d", n)
	}

	var summary tasklog.Summary
	for i, ev := range rec.events {
		if s, ok := ev.(tasklog.Summary); ok {
			summary = s
			if _, prev := rec.events[i-1].(tasklog.Interval); !prev {
				t.Fatalf("summary must follow the 4th interval")
			}
		}
	}
	if summary.Stats.Count != 6 {
		t.Fatalf("expected summary count 6, got %d", summary.Stats.Count)
	}
	if summary.Stats.Mean != "00:10:40" {
		t.Fatalf("expected weighted mean 00:10:40, got %s", summary.Stats.Mean)
	}

	st := e.Status()
	if !st.Done || st.CyclesRemaining != 0 || !st.HasSummary {
		t.Fatalf("unexpected final status %+v", st)
	}
	if st.Start.Count != 1 || st.Seen != 7 {
		t.Fatalf("expected baseline 1 and 7 seen, got %d and %d", st.Start.Count, st.Seen)
	}
}

func TestZeroCycleMode(t *testing.T) {
	client := &fakeClient{polls: [][]float64{{100, 200}}, tasks: taskLines(2, 6, "downloaded")}
	rec := &recorder{}
	e := newTestEngine(t, testConfig(0), client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if calls := client.reportedCalls(); calls != 1 {
		t.Fatalf("expected exactly one poll, got %d", calls)
	}
	if rec.count(isInterval) != 0 || rec.count(isSummary) != 0 || rec.count(isEnd) != 0 {
		t.Fatalf("zero-cycle mode must not count intervals: %v", rec.events)
	}
	if _, ok := rec.events[0].(tasklog.Start); !ok {
		t.Fatalf("expected start event first, got %T", rec.events[0])
	}
	st := e.Status()
	if !st.Done || st.Start.Count != 2 || st.HasInterval {
		t.Fatalf("unexpected status %+v", st)
	}
}

func TestNoNewReportsStreak(t *testing.T) {
	client := &fakeClient{polls: [][]float64{{100}}, tasks: taskLines(4, 10, "downloaded")}
	rec := &recorder{}
	e := newTestEngine(t, testConfig(3), client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := e.Status()
	if st.NoNewStreak != 3 {
		t.Fatalf("expected streak 3, got %d", st.NoNewStreak)
	}
	if notice.Kind(st.Notice.Kind) != notice.KindNoNewReports {
		t.Fatalf("expected no-new-reports notice, got %q", st.Notice.Text)
	}
	if n := rec.count(isNotice); n != 1 {
		t.Fatalf("expected the notice to be logged once, got %d", n)
	}
}

func TestLogErrorDoesNotStopCounting(t *testing.T) {
	client := &fakeClient{polls: [][]float64{{100}, {100, 200}}, tasks: taskLines(4, 10, "downloaded")}
	rec := &recorder{err: errors.New("disk full")}
	e := newTestEngine(t, testConfig(2), client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := e.Status()
	if !strings.Contains(st.LogErr, "disk full") {
		t.Fatalf("expected log error in status, got %q", st.LogErr)
	}
	if rec.count(isEnd) != 1 {
		t.Fatalf("expected counting to finish")
	}
}

func TestUnreachableClientCountsZero(t *testing.T) {
	client := &fakeClient{polls: [][]float64{{100}}, down: true}
	rec := &recorder{}
	e := newTestEngine(t, testConfig(1), client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	st := e.Status()
	if !st.Run.Unreachable || st.Interval.Stats.Count != 0 {
		t.Fatalf("expected unreachable zero-count tick, got %+v", st)
	}
	if notice.Kind(st.Notice.Kind) != notice.KindClientUnreachable {
		t.Fatalf("expected unreachable notice, got %q", st.Notice.Text)
	}
}

func TestStalledProjectUpdatedOnce(t *testing.T) {
	client := &fakeClient{
		polls:    [][]float64{{100}},
		tasks:    taskLines(0, 2, "uploading"),
		projects: []string{"   master URL: https://example.org/"},
	}
	cfg := testConfig(3)
	cfg.AutoUpdateStalled = true
	rec := &recorder{}
	e := newTestEngine(t, cfg, client, rec)

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	client.mu.Lock()
	defer client.mu.Unlock()
	if len(client.actions) != 1 || client.actions[0] != "update https://example.org/" {
		t.Fatalf("expected a single update request, got %v", client.actions)
	}
}

func TestCancelStopsRun(t *testing.T) {
	client := &fakeClient{polls: [][]float64{{100}}, tasks: taskLines(4, 10, "downloaded")}
	rec := &recorder{}
	e, err := New(Options{
		Config:  testConfig(5),
		Client:  client,
		Writers: []EventWriter{rec},
		Logger:  slog.New(slog.NewTextHandler(io.Discard, nil)),
		Slice:   time.Millisecond,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	deadline := time.Now().Add(5 * time.Second)
	for e.Status().Countdown == 0 {
		if time.Now().After(deadline) {
			t.Fatalf("countdown never published")
		}
		time.Sleep(time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run after cancel: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("Run did not stop after cancel")
	}
	if rec.count(isInterval) != 0 || rec.count(isEnd) != 0 {
		t.Fatalf("no interval should complete: %v", rec.events)
	}
	if _, ok := rec.events[0].(tasklog.Start); !ok {
		t.Fatalf("start event must be flushed")
	}
}

func TestNewRejectsBadConfig(t *testing.T) {
	cfg := testConfig(1)
	cfg.Summary = model.Period{Value: 20, Unit: 'm'}
	if _, err := New(Options{Config: cfg, Client: &fakeClient{}}); err == nil {
		t.Fatalf("expected non-multiple summary to be rejected")
	}
	if _, err := New(Options{Config: testConfig(1)}); err == nil {
		t.Fatalf("expected missing client to be rejected")
	}
}

type countingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (c *countingNotifier) Send(_ context.Context, n notify.Notification) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, n)
	return nil
}

func (c *countingNotifier) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.sent)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(time.Millisecond)
	}
}

func TestNoticeLoopSendsOncePerUrgentEpisode(t *testing.T) {
	healthy := taskLines(4, 10, "downloaded")
	failing := append(append([]string{}, healthy...), "   name: wu_err", "   state: compute error")
	client := &fakeClient{polls: [][]float64{{100}}, tasks: failing}
	n := &countingNotifier{}

	cfg := testConfig(5)
	cfg.NoticeEvery = 5 * time.Millisecond
	e, err := New(Options{
		Config:   cfg,
		Client:   client,
		Notifier: n,
		Logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
		Slice:    time.Millisecond,
		Tick:     time.Hour,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- e.Run(ctx) }()

	waitFor(t, "first notification", func() bool { return n.count() == 1 })
	// Several more refreshes in the same state must stay quiet.
	time.Sleep(50 * time.Millisecond)
	if got := n.count(); got != 1 {
		t.Fatalf("expected one notification while the error persists, got %d", got)
	}

	client.setTasks(healthy)
	waitFor(t, "all-is-well notice", func() bool {
		return notice.Kind(e.Status().Notice.Kind) == notice.KindAllWell
	})
	if got := n.count(); got != 1 {
		t.Fatalf("all-is-well must not notify, got %d", got)
	}

	client.setTasks(failing)
	waitFor(t, "second notification", func() bool { return n.count() == 2 })

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := n.count(); got != 2 {
		t.Fatalf("expected exactly two notifications, got %d", got)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, sent := range n.sent {
		if sent.Level != notify.LevelWarning || !strings.Contains(sent.Message, "error") {
			t.Fatalf("unexpected notification %+v", sent)
		}
	}
}

func TestWakeTimesDoNotDriftWithPollTime(t *testing.T) {
	const (
		cycles = 8
		tick   = 50 * time.Millisecond
		poll   = 40 * time.Millisecond
	)
	client := &fakeClient{polls: [][]float64{{100}}, tasks: taskLines(4, 10, "downloaded"), delay: poll}
	e, err := New(Options{
		Config: testConfig(cycles),
		Client: client,
		Logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		Slice:  time.Millisecond,
		Tick:   tick,
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	began := time.Now()
	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	elapsed := time.Since(began)

	// Anchored wakes finish near cycles*tick plus one poll (440ms); a loop
	// that sleeps a full tick after each poll needs cycles*(tick+poll) (720ms).
	if elapsed < cycles*tick {
		t.Fatalf("finished too early: %v", elapsed)
	}
	if limit := cycles*tick + 4*poll; elapsed >= limit {
		t.Fatalf("wake times drifted: took %v, want under %v", elapsed, limit)
	}
}

func TestNoticeEscalatesOncePerKind(t *testing.T) {
	st := newState(testConfig(1))
	st.begin(time.Now(), nil, model.RunState{Total: 10, Running: 4})

	run := model.RunState{Total: 10, Running: 4, Errored: 1}
	if _, changed, escalate := st.applyNotice(run, time.Now()); !changed || !escalate {
		t.Fatalf("expected first error notice to escalate")
	}
	if _, changed, escalate := st.applyNotice(run, time.Now()); changed || escalate {
		t.Fatalf("repeated notice must not escalate")
	}

	e := &Engine{host: "box"}
	got := e.notification(model.NoticeRecord{Kind: int(notice.KindClientUnreachable), Text: "down"})
	if got.Level != notify.LevelError || got.Host != "box" {
		t.Fatalf("unexpected notification %+v", got)
	}
}
