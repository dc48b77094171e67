// Package console prints logged events to a plain terminal.
package console

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"

	"github.com/verte-zerg/taskcount/internal/tasklog"
)

// Printer writes each event in its log form, colored by kind when the
// output is a terminal.
type Printer struct {
	w        io.Writer
	mu       sync.Mutex
	start    *color.Color
	interval *color.Color
	summary  *color.Color
	notice   *color.Color
	end      *color.Color
}

// New returns a printer for w. Color is used only for os.Stdout or
// os.Stderr, and never when NO_COLOR is set.
func New(w io.Writer) *Printer {
	p := &Printer{
		w:        w,
		start:    color.New(color.FgCyan),
		interval: color.New(color.FgGreen),
		summary:  color.New(color.FgMagenta, color.Bold),
		notice:   color.New(color.FgYellow),
		end:      color.New(color.FgCyan, color.Bold),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.start, p.interval, p.summary, p.notice, p.end} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	if w != os.Stdout && w != os.Stderr {
		return false
	}
	return !color.NoColor
}

// Write prints ev. The first line carries the color; detail lines stay plain.
func (p *Printer) Write(ev tasklog.Event) error {
	c := p.colorFor(ev)
	head, rest, _ := strings.Cut(ev.Encode(), "\n")

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, err := c.Fprintln(p.w, head); err != nil {
		return err
	}
	if rest == "" {
		return nil
	}
	_, err := io.WriteString(p.w, rest)
	return err
}

func (p *Printer) colorFor(ev tasklog.Event) *color.Color {
	switch ev.(type) {
	case tasklog.Start:
		return p.start
	case tasklog.Summary:
		return p.summary
	case tasklog.Notice:
		return p.notice
	case tasklog.End:
		return p.end
	default:
		return p.interval
	}
}
