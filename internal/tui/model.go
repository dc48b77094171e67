// Package tui provides the Bubble Tea live monitor.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/progress"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/taskcount/internal/engine"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/stats"
)

const refreshEvery = time.Second

// StatusSource is what the monitor observes.
type StatusSource interface {
	Status() engine.Status
}

type tickMsg time.Time

type doneMsg struct {
	err error
}

// Model implements the Bubble Tea monitor UI.
type Model struct {
	src     StatusSource
	done    <-chan error
	logPath string

	status   engine.Status
	finished bool
	runErr   error
	bar      progress.Model

	width  int
	height int
}

var (
	titleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A")).Bold(true)
	cardStyle  = lipgloss.NewStyle().
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#4A4A4A"))
	cardTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#8C8C8C"))
	cardValueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0")).Bold(true)
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F0F0F0"))
	urgentStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	footerStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
)

// NewModel constructs a monitor over src. done receives the engine's
// result when counting ends.
func NewModel(src StatusSource, done <-chan error, logPath string) *Model {
	return &Model{
		src:     src,
		done:    done,
		logPath: logPath,
		status:  src.Status(),
		bar:     progress.New(progress.WithDefaultGradient(), progress.WithoutPercentage()),
	}
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return tea.Batch(tick(), waitDone(m.done))
}

func tick() tea.Cmd {
	return tea.Tick(refreshEvery, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func waitDone(done <-chan error) tea.Cmd {
	if done == nil {
		return nil
	}
	return func() tea.Msg {
		return doneMsg{err: <-done}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.bar.Width = maxInt(10, m.contentWidth()-16)
		return m, nil
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		return m, nil
	case tickMsg:
		m.status = m.src.Status()
		if m.finished {
			return m, nil
		}
		return m, tick()
	case doneMsg:
		m.finished = true
		m.runErr = msg.err
		m.status = m.src.Status()
		return m, nil
	default:
		return m, nil
	}
}

// View implements tea.Model.
func (m *Model) View() string {
	width := m.contentWidth()
	parts := []string{
		m.renderHeader(width),
		m.renderCards(width),
		m.renderCountdown(),
		m.renderNotice(width),
	}
	if m.status.LogErr != "" {
		parts = append(parts, errorStyle.Render(wrapText("Log write failed: "+m.status.LogErr, lipgloss.NewStyle(), width)))
	}
	if m.runErr != nil {
		parts = append(parts, errorStyle.Render("Counting stopped: "+m.runErr.Error()))
	}
	parts = append(parts, m.renderFooter())
	content := strings.Join(parts, "\n\n")
	if m.width == 0 || m.height == 0 {
		return content
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, content)
}

func (m *Model) contentWidth() int {
	if m.width <= 0 {
		return 80
	}
	return maxInt(20, int(float64(m.width)*0.85))
}

func (m *Model) renderHeader(width int) string {
	cfg := m.status.Config
	line := fmt.Sprintf("interval %s · summary %s", cfg.Interval, cfg.Summary)
	if !m.status.StartedAt.IsZero() {
		line += " · since " + m.status.StartedAt.Format("2006-Jan-02 15:04")
	}
	return titleStyle.Render("taskcount") + "  " + footerStyle.Render(truncate(line, width-11))
}

func (m *Model) renderCards(width int) string {
	st := m.status
	cards := []string{
		metricCard("Start", fmt.Sprintf("%d", st.Start.Count), "avg "+st.Start.Mean),
		intervalCard(st),
		summaryCard(st),
		metricCard("Queue", fmt.Sprintf("%d", st.Run.Total), fmt.Sprintf("%d running", st.Run.Running)),
	}
	if width < 80 {
		return strings.Join(cards, "\n")
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

func intervalCard(st engine.Status) string {
	label := "Past " + st.Config.Interval.String()
	if !st.HasInterval {
		return metricCard(label, "-", "waiting")
	}
	return metricCard(label, fmt.Sprintf("%d", st.Interval.Stats.Count), "avg "+st.Interval.Stats.Mean)
}

func summaryCard(st engine.Status) string {
	label := "Past " + st.Config.Summary.String()
	if !st.HasSummary {
		return metricCard(label, "-", "waiting")
	}
	return metricCard(label, fmt.Sprintf("%d", st.Summary.Stats.Count), "mean "+st.Summary.Stats.Mean)
}

func metricCard(label, value, detail string) string {
	content := fmt.Sprintf("%s\n%s\n%s", cardTitleStyle.Render(label), cardValueStyle.Render(value), cardTitleStyle.Render(detail))
	return cardStyle.Render(content)
}

func (m *Model) renderCountdown() string {
	st := m.status
	if m.finished || st.Done {
		return fmt.Sprintf("Counting finished after %d cycle(s). %d task(s) seen.", st.Config.CountLimit-st.CyclesRemaining, st.Seen)
	}
	left := stats.SecondsToDuration(int(st.Countdown.Seconds()), stats.ModeClock)
	line := fmt.Sprintf("Next count in %s  %s", left, m.bar.ViewAs(elapsedFraction(st)))
	return line + "\n" + footerStyle.Render(fmt.Sprintf("%d counts remain.", st.CyclesRemaining))
}

func elapsedFraction(st engine.Status) float64 {
	total := st.Config.Interval.Duration()
	if total <= 0 {
		return 0
	}
	f := 1 - float64(st.Countdown)/float64(total)
	switch {
	case f < 0:
		return 0
	case f > 1:
		return 1
	default:
		return f
	}
}

func (m *Model) renderNotice(width int) string {
	rec := m.status.Notice
	if rec.Text == "" {
		return ""
	}
	style := noticeStyle
	if notice.Urgent(notice.Kind(rec.Kind)) {
		style = urgentStyle
	}
	return wrapText(noticeLine(rec), style, width)
}

func noticeLine(rec model.NoticeRecord) string {
	if rec.At.IsZero() {
		return rec.Text
	}
	return rec.At.Format("15:04:05") + "  " + rec.Text
}

func (m *Model) renderFooter() string {
	segments := []string{"Quit: q"}
	if m.logPath != "" {
		segments = append(segments, "Log: "+m.logPath)
	}
	return footerStyle.Render(strings.Join(segments, "  "))
}

func truncate(s string, width int) string {
	runes := []rune(s)
	if width <= 3 || len(runes) <= width {
		return s
	}
	return string(runes[:width-3]) + "..."
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
