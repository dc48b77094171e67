package stats

import (
	"bytes"
	"strings"
	"testing"
	"unicode/utf8"
)

func TestPlotSeriesGrid(t *testing.T) {
	var buf bytes.Buffer
	err := PlotSeries(&buf, "Test Plot", []Series{
		{Name: "A", Values: []float64{1, 2, 3, 2, 1}},
		{Name: "B", Values: []float64{1, 1, 2, 3, 4}},
		{Name: "empty"},
	}, 12, 4, false)
	if err != nil {
		t.Fatalf("PlotSeries failed: %v", err)
	}
	out := buf.String()
	if strings.Contains(out, "empty") {
		t.Fatalf("empty series should be skipped: %q", out)
	}
	if !strings.Contains(out, "A (solid): 1.00 .. 3.00") || !strings.Contains(out, "B (dashed): 1.00 .. 4.00") {
		t.Fatalf("expected range headers, got %q", out)
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected color codes")
	}

	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	// title, two headers, four grid rows, base rule
	if len(lines) != 8 {
		t.Fatalf("expected 8 lines, got %d: %q", len(lines), out)
	}
	for _, row := range lines[3:7] {
		if !strings.HasPrefix(row, axisGutter) {
			t.Fatalf("grid row missing gutter: %q", row)
		}
		if got := utf8.RuneCountInString(row); got != 12+utf8.RuneCountInString(axisGutter) {
			t.Fatalf("unexpected row width %d: %q", got, row)
		}
	}
}

func TestPlotIntervalsHoldsMeanOverEmptyIntervals(t *testing.T) {
	var buf bytes.Buffer
	err := PlotIntervals(&buf, IntervalSeries{
		Counts: []int{0, 2, 0, 3, 1},
		Avgs:   []float64{0, 600, 0, 720, 3900},
	}, 40, 4, false)
	if err != nil {
		t.Fatalf("PlotIntervals failed: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "Task history (5 intervals)") {
		t.Fatalf("expected title, got %q", out)
	}
	if !strings.Contains(out, "Mean time (dashed): 00:10:00 .. 01:05:00") {
		t.Fatalf("expected duration range without empty intervals, got %q", out)
	}
	if !strings.Contains(out, "Tasks (solid): 0 .. 3") {
		t.Fatalf("expected count range, got %q", out)
	}
}

func TestHoldMeans(t *testing.T) {
	got := holdMeans([]int{0, 2, 0, 1}, []float64{0, 600, 0, 900})
	want := []float64{600, 600, 600, 900}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("holdMeans = %v, want %v", got, want)
		}
	}
	if holdMeans([]int{0, 0}, []float64{0, 0}) != nil {
		t.Fatalf("expected nil without any tasks")
	}
}

func TestPlotIntervalsEmpty(t *testing.T) {
	var buf bytes.Buffer
	if err := PlotIntervals(&buf, IntervalSeries{}, 40, 4, false); err != nil {
		t.Fatalf("PlotIntervals failed: %v", err)
	}
	if !strings.Contains(buf.String(), "No intervals") {
		t.Fatalf("expected empty message, got %q", buf.String())
	}
}

func TestFitWidth(t *testing.T) {
	down := fitWidth([]float64{1, 3, 5, 7}, 2)
	if down[0] != 2 || down[1] != 6 {
		t.Fatalf("bucket means wrong: %v", down)
	}
	up := fitWidth([]float64{0, 10}, 3)
	if up[0] != 0 || up[1] != 5 || up[2] != 10 {
		t.Fatalf("interpolation wrong: %v", up)
	}
}

func TestPlotWidthFor(t *testing.T) {
	gutter := utf8.RuneCountInString(axisGutter)
	if got := PlotWidthFor(80); got != 80-gutter {
		t.Fatalf("expected width %d, got %d", 80-gutter, got)
	}
	if got := PlotWidthFor(0); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
	if got := PlotWidthFor(5); got != minPlotWidth {
		t.Fatalf("expected min width %d, got %d", minPlotWidth, got)
	}
}
