package stats

import (
	"fmt"
	"io"
	"math"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/fatih/color"
	"golang.org/x/term"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Series is one line of a text plot. Format renders its range; nil prints
// two decimals.
type Series struct {
	Name   string
	Values []float64
	Format func(float64) string
}

const (
	defaultPlotHeight = 10
	minPlotWidth      = 10
	fallbackTermWidth = 80
	axisGutter        = "│ "
)

// Lines alternate between these; each keeps its own scale.
var plotLines = []struct {
	style string
	mark  string
	keep  func(x int) bool
	attr  color.Attribute
}{
	{style: "solid", mark: "━", keep: func(int) bool { return true }, attr: color.FgCyan},
	{style: "dashed", mark: "╌", keep: func(x int) bool { return x%6 < 3 }, attr: color.FgMagenta},
	{style: "dotted", mark: "┈", keep: func(x int) bool { return x%4 == 0 }, attr: color.FgYellow},
}

// brailleBits maps a dot at (row, col) inside one cell to its bit.
var brailleBits = [4][2]uint8{
	{0x01, 0x08},
	{0x02, 0x10},
	{0x04, 0x20},
	{0x40, 0x80},
}

// canvas is a grid of braille cells, two dots wide and four high each.
type canvas struct {
	cells [][]uint8
}

func newCanvas(width, height int) *canvas {
	cells := make([][]uint8, height)
	for i := range cells {
		cells[i] = make([]uint8, width)
	}
	return &canvas{cells: cells}
}

func (c *canvas) dot(x, y int) {
	row, col := y/4, x/2
	if x < 0 || y < 0 || row >= len(c.cells) || col >= len(c.cells[row]) {
		return
	}
	c.cells[row][col] |= brailleBits[y%4][x%2]
}

// line joins two dots, keeping only the x positions keep accepts.
func (c *canvas) line(x0, y0, x1, y1 int, keep func(int) bool) {
	steps := max(absInt(x1-x0), absInt(y1-y0))
	if steps == 0 {
		if keep(x0) {
			c.dot(x0, y0)
		}
		return
	}
	for i := 0; i <= steps; i++ {
		x := x0 + int(math.Round(float64((x1-x0)*i)/float64(steps)))
		y := y0 + int(math.Round(float64((y1-y0)*i)/float64(steps)))
		if keep(x) {
			c.dot(x, y)
		}
	}
}

// PlotSeries draws every non-empty series on a shared braille grid.
// A width of zero fits the terminal.
func PlotSeries(w io.Writer, title string, series []Series, width, height int, useColor bool) error {
	lines := make([]Series, 0, len(series))
	for _, s := range series {
		if len(s.Values) > 0 {
			lines = append(lines, s)
		}
	}
	if len(lines) == 0 {
		return nil
	}
	if height <= 0 {
		height = defaultPlotHeight
	}
	if width <= 0 {
		width = PlotWidthFor(terminalWidth())
	}
	width = max(width, minPlotWidth)
	useColor = useColor && os.Getenv("NO_COLOR") == ""

	canvases := make([]*canvas, len(lines))
	var out strings.Builder
	if title != "" {
		out.WriteString(title + "\n")
	}
	for i, s := range lines {
		pl := plotLines[i%len(plotLines)]
		values := fitWidth(s.Values, width)
		lo, hi := floats.Min(s.Values), floats.Max(s.Values)
		out.WriteString(fmt.Sprintf("%s %s (%s): %s .. %s\n",
			paint(pl.attr, pl.mark, useColor), s.Name, pl.style, s.format(lo), s.format(hi)))
		if hi-lo < 1e-9 {
			lo, hi = lo-1, hi+1
		}

		canvases[i] = newCanvas(width, height)
		dotRows := height * 4
		prevX, prevY := -1, 0
		for x, v := range values {
			y := int(math.Round((hi - v) / (hi - lo) * float64(dotRows-1)))
			px := x * 2
			if prevX < 0 {
				prevX, prevY = px, y
			}
			canvases[i].line(prevX, prevY, px, y, pl.keep)
			prevX, prevY = px, y
		}
	}

	for row := 0; row < height; row++ {
		out.WriteString(axisGutter)
		for col := 0; col < width; col++ {
			var mask uint8
			owner := -1
			for i, cv := range canvases {
				if bits := cv.cells[row][col]; bits != 0 {
					mask |= bits
					if owner < 0 {
						owner = i
					}
				}
			}
			cell := string(rune(0x2800 + int(mask)))
			if owner >= 0 {
				cell = paint(plotLines[owner%len(plotLines)].attr, cell, useColor)
			}
			out.WriteString(cell)
		}
		out.WriteString("\n")
	}
	out.WriteString("└" + strings.Repeat("─", width+utf8.RuneCountInString(axisGutter)-1) + "\n")

	_, err := io.WriteString(w, out.String())
	return err
}

func (s Series) format(v float64) string {
	if s.Format == nil {
		return fmt.Sprintf("%.2f", v)
	}
	return s.Format(v)
}

func paint(attr color.Attribute, text string, on bool) string {
	if !on {
		return text
	}
	c := color.New(attr)
	c.EnableColor()
	return c.Sprint(text)
}

// fitWidth averages buckets when there are more values than columns and
// interpolates linearly when there are fewer.
func fitWidth(values []float64, width int) []float64 {
	n := len(values)
	out := make([]float64, width)
	switch {
	case n >= width:
		for i := range out {
			lo := i * n / width
			hi := max((i+1)*n/width, lo+1)
			out[i] = stat.Mean(values[lo:hi], nil)
		}
	case n == 1 || width == 1:
		for i := range out {
			out[i] = values[0]
		}
	default:
		for i := range out {
			pos := float64(i*(n-1)) / float64(width-1)
			j := int(pos)
			if j >= n-1 {
				out[i] = values[n-1]
				continue
			}
			out[i] = values[j] + (values[j+1]-values[j])*(pos-float64(j))
		}
	}
	return out
}

// PlotWidthFor returns the plot columns left in totalWidth after the gutter.
func PlotWidthFor(totalWidth int) int {
	if totalWidth <= 0 {
		return minPlotWidth
	}
	return max(totalWidth-utf8.RuneCountInString(axisGutter), minPlotWidth)
}

func terminalWidth() int {
	width, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || width <= 0 {
		return fallbackTermWidth
	}
	return width
}

// IsTerminal reports whether w is an interactive terminal.
func IsTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
