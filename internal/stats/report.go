package stats

import (
	"fmt"
	"io"
	"strings"

	"github.com/mattn/go-runewidth"
)

// IntervalSeries is the per-interval history used for plotting.
type IntervalSeries struct {
	Counts []int
	Avgs   []float64
}

// RenderTable prints an aligned table under an optional title.
func RenderTable(w io.Writer, title string, headers []string, rows [][]string, rightAlign map[int]bool) error {
	if title != "" {
		if _, err := fmt.Fprintln(w, title); err != nil {
			return err
		}
	}
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "No rows.")
		return err
	}
	for _, line := range tableLines(headers, rows, rightAlign) {
		if _, err := fmt.Fprintln(w, line); err != nil {
			return err
		}
	}
	_, err := fmt.Fprintln(w, "")
	return err
}

// PlotIntervals plots task counts and mean task time per interval. An
// interval without tasks has no mean time, so that line holds its last value.
func PlotIntervals(w io.Writer, series IntervalSeries, totalWidth, height int, useColor bool) error {
	if len(series.Counts) == 0 {
		_, err := fmt.Fprintln(w, "No intervals to plot.")
		return err
	}
	counts := make([]float64, len(series.Counts))
	for i, c := range series.Counts {
		counts[i] = float64(c)
	}
	width := 0
	if totalWidth > 0 {
		width = PlotWidthFor(totalWidth)
	}
	return PlotSeries(w, fmt.Sprintf("Task history (%d intervals)", len(counts)), []Series{
		{Name: "Tasks", Values: counts, Format: func(v float64) string { return fmt.Sprintf("%.0f", v) }},
		{Name: "Mean time", Values: holdMeans(series.Counts, series.Avgs), Format: func(v float64) string {
			return SecondsToDuration(int(v), ModeStd)
		}},
	}, width, height, useColor)
}

func holdMeans(counts []int, avgs []float64) []float64 {
	first := -1
	for i := range avgs {
		if i < len(counts) && counts[i] > 0 {
			first = i
			break
		}
	}
	if first < 0 {
		return nil
	}
	out := make([]float64, len(avgs))
	last := avgs[first]
	for i, v := range avgs {
		if i < len(counts) && counts[i] > 0 {
			last = v
		}
		out[i] = last
	}
	return out
}

// tableLines aligns headers and rows into columns padded to display width,
// so wide runes line up in a terminal.
func tableLines(headers []string, rows [][]string, rightAlign map[int]bool) []string {
	all := rows
	if len(headers) > 0 {
		all = append([][]string{headers}, rows...)
	}
	var widths []int
	for _, row := range all {
		for i, cell := range row {
			if i == len(widths) {
				widths = append(widths, 0)
			}
			widths[i] = max(widths[i], runewidth.StringWidth(cell))
		}
	}
	if len(widths) == 0 {
		return nil
	}

	lines := make([]string, 0, len(all))
	cells := make([]string, len(widths))
	for _, row := range all {
		for i, w := range widths {
			cell := ""
			if i < len(row) {
				cell = row[i]
			}
			if rightAlign[i] {
				cells[i] = runewidth.FillLeft(cell, w)
			} else {
				cells[i] = runewidth.FillRight(cell, w)
			}
		}
		lines = append(lines, strings.Join(cells, " "))
	}
	return lines
}
