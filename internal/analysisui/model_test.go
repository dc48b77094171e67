package analysisui

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
	"github.com/verte-zerg/taskcount/internal/tasklog"
)

type memHistory struct {
	records []model.AnalysisRecord
}

func (h *memHistory) InsertAnalysis(_ context.Context, rec model.AnalysisRecord) (int64, error) {
	rec.ID = int64(len(h.records) + 1)
	h.records = append(h.records, rec)
	return rec.ID, nil
}

func (h *memHistory) ListAnalyses(_ context.Context, last int) ([]model.AnalysisRecord, error) {
	if last > 0 && len(h.records) > last {
		return h.records[len(h.records)-last:], nil
	}
	return h.records, nil
}

var t0 = time.Date(2024, time.March, 5, 8, 0, 0, 0, time.Local)

func writeLog(t *testing.T, path string, events ...tasklog.Event) {
	t.Helper()
	w := tasklog.NewWriter(path)
	for _, ev := range events {
		if err := w.Write(ev); err != nil {
			t.Fatalf("write: %v", err)
		}
	}
}

func keyMsg(s string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func TestExportSavesHistoryAndFile(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "taskcount_log.txt")
	exportPath := filepath.Join(dir, "taskcount_analysis.txt")
	hour := model.Period{Value: 1, Unit: 'h'}
	writeLog(t, logPath,
		tasklog.Start{At: t0, Stats: stats.Aggregate(nil)},
		tasklog.Interval{At: t0.Add(time.Hour), Period: hour, Stats: stats.Aggregate([]float64{600, 1200})},
	)

	hist := &memHistory{}
	m := NewModel(Options{LogPath: logPath, ExportPath: exportPath, History: hist, Now: func() time.Time { return t0 }})
	m.Update(tea.WindowSizeMsg{Width: 100, Height: 30})
	if m.errMsg != "" || !strings.Contains(m.report, "Analysis of reported tasks") {
		t.Fatalf("unexpected load: err=%q report=%q", m.errMsg, m.report)
	}

	m.Update(keyMsg("e"))
	if len(hist.records) != 1 || hist.records[0].TotalTasks != 2 {
		t.Fatalf("expected one stored analysis, got %+v", hist.records)
	}
	if _, err := os.Stat(exportPath); err != nil {
		t.Fatalf("expected export file: %v", err)
	}

	m.Update(keyMsg("l"))
	m.Update(keyMsg("l"))
	if m.activeTab != tabHistory {
		t.Fatalf("expected history tab, got %d", m.activeTab)
	}
	if view := m.View(); !strings.Contains(view, "2024-Mar-05 08:00:00") {
		t.Fatalf("history row missing from view:\n%s", view)
	}
	m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	if m.activeTab != tabReport {
		t.Fatalf("expected enter to show the saved report")
	}
}

func TestChangeRefreshesAnalysis(t *testing.T) {
	dir := t.TempDir()
	logPath := filepath.Join(dir, "taskcount_log.txt")
	changes := make(chan struct{}, 1)
	m := NewModel(Options{LogPath: logPath, Changes: changes})
	if m.errMsg == "" {
		t.Fatalf("expected error for missing log")
	}

	writeLog(t, logPath, tasklog.Interval{At: t0, Period: model.Period{Value: 15, Unit: 'm'}, Stats: stats.Aggregate([]float64{900})})
	changes <- struct{}{}
	msg := m.Init()()
	if _, ok := msg.(changedMsg); !ok {
		t.Fatalf("expected changedMsg, got %T", msg)
	}
	_, cmd := m.Update(msg)
	if cmd == nil {
		t.Fatalf("expected to keep waiting for changes")
	}
	if m.errMsg != "" || m.analysis.Intervals != 1 {
		t.Fatalf("expected refreshed analysis, got err=%q intervals=%d", m.errMsg, m.analysis.Intervals)
	}
}
