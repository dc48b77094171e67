// Package analysisui provides the Bubble Tea log analysis viewer.
package analysisui

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
	"github.com/verte-zerg/taskcount/internal/tasklog"
)

const (
	tabReport = iota
	tabPlot
	tabHistory
)

const (
	plotHeight   = 10
	historyLimit = 50
)

var (
	activeNavStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F0F0F0")).
			Bold(true).
			Padding(0, 1).
			Border(lipgloss.RoundedBorder(), true).
			BorderForeground(lipgloss.Color("#C89A3A"))
	inactiveNavStyle = lipgloss.NewStyle().
				Foreground(lipgloss.Color("#B0B0B0")).
				Padding(0, 1).
				Border(lipgloss.RoundedBorder(), true).
				BorderForeground(lipgloss.Color("#4A4A4A"))
	headerStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#6E6E6E"))
	errorStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF4D4F"))
	statusStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#C89A3A"))
	tableMutedStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#B8B8B8"))
)

// History is the analysis history the viewer reads and appends to.
type History interface {
	InsertAnalysis(ctx context.Context, rec model.AnalysisRecord) (int64, error)
	ListAnalyses(ctx context.Context, last int) ([]model.AnalysisRecord, error)
}

// Options configures the viewer.
type Options struct {
	LogPath    string
	ExportPath string
	History    History
	// Changes receives a value whenever the log file is written.
	Changes <-chan struct{}
	Now     func() time.Time
}

type changedMsg struct{}

// Model implements the Bubble Tea analysis UI.
type Model struct {
	opts Options

	analysis tasklog.Analysis
	report   string
	records  []model.AnalysisRecord
	errMsg   string
	status   string

	tabs         []string
	activeTab    int
	viewports    []viewport.Model
	historyTable table.Model

	width  int
	height int
}

// NewModel constructs an analysis UI model and loads the log.
func NewModel(opts Options) *Model {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	m := &Model{
		opts: opts,
		tabs: []string{"Analysis", "Plot", "History"},
	}
	m.initViewports()
	m.historyTable = buildHistoryTable(nil, 0, 1)
	m.refresh()
	return m
}

// Init implements tea.Model.
func (m *Model) Init() tea.Cmd {
	return waitChange(m.opts.Changes)
}

func waitChange(changes <-chan struct{}) tea.Cmd {
	if changes == nil {
		return nil
	}
	return func() tea.Msg {
		if _, ok := <-changes; !ok {
			return nil
		}
		return changedMsg{}
	}
}

// Update implements tea.Model.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.updateLayout()
		m.renderTabContents()
		return m, nil
	case changedMsg:
		m.refresh()
		m.status = "Log changed, analysis refreshed at " + m.opts.Now().Format("15:04:05")
		return m, waitChange(m.opts.Changes)
	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.String() == "q" {
			return m, tea.Quit
		}
		if m.activeTab == tabHistory {
			m.historyTable.Focus()
		} else {
			m.historyTable.Blur()
		}
		switch msg.String() {
		case "left", "h":
			m.moveTab(-1)
			return m, tea.ClearScreen
		case "right", "l":
			m.moveTab(1)
			return m, tea.ClearScreen
		case "r":
			m.refresh()
			m.status = "Reloaded"
			return m, nil
		case "e":
			m.export()
			return m, nil
		case "g", "home":
			if m.activeTab == tabHistory {
				m.historyTable.GotoTop()
			} else {
				m.viewports[m.activeTab].GotoTop()
			}
			return m, nil
		case "G", "end":
			if m.activeTab == tabHistory {
				m.historyTable.GotoBottom()
			} else {
				m.viewports[m.activeTab].GotoBottom()
			}
			return m, nil
		case "enter":
			if m.activeTab == tabHistory {
				m.showSelectedReport()
			}
			return m, nil
		default:
			if m.activeTab == tabHistory {
				var cmd tea.Cmd
				m.historyTable, cmd = m.historyTable.Update(msg)
				return m, cmd
			}
			vp := m.viewports[m.activeTab]
			var cmd tea.Cmd
			vp, cmd = vp.Update(msg)
			m.viewports[m.activeTab] = vp
			return m, cmd
		}
	}
	return m, nil
}

// View implements tea.Model.
func (m *Model) View() string {
	if m.width == 0 || m.height == 0 {
		return ""
	}
	headerHeight, bodyHeight, footerHeight := m.layoutHeights()
	header := fitLines(m.renderHeader(), m.width, headerHeight)
	body := fitLines(m.renderBody(), m.width, bodyHeight)
	footer := fitLines(m.renderFooter(), m.width, footerHeight)
	return strings.Join([]string{header, body, footer}, "\n")
}

func (m *Model) initViewports() {
	m.viewports = make([]viewport.Model, len(m.tabs))
	for i := range m.viewports {
		m.viewports[i] = viewport.New(0, 0)
	}
}

func (m *Model) layoutHeights() (headerHeight, bodyHeight, footerHeight int) {
	tabsHeight := lipgloss.Height(activeNavStyle.Render("X"))
	if tabsHeight < 1 {
		tabsHeight = 1
	}
	headerHeight = tabsHeight + 1
	footerHeight = 1
	if m.errMsg != "" || m.status != "" {
		footerHeight++
	}
	bodyHeight = m.height - headerHeight - footerHeight
	if bodyHeight < 1 {
		bodyHeight = 1
	}
	return headerHeight, bodyHeight, footerHeight
}

func (m *Model) updateLayout() {
	if m.width <= 0 || m.height <= 0 {
		return
	}
	_, vpHeight, _ := m.layoutHeights()
	for i := range m.viewports {
		m.viewports[i].Width = m.width
		m.viewports[i].Height = vpHeight
	}
	m.historyTable.SetWidth(m.width)
	m.historyTable.SetHeight(maxInt(1, vpHeight-1))
}

func (m *Model) moveTab(delta int) {
	count := len(m.tabs)
	if count == 0 {
		return
	}
	next := m.activeTab + delta
	if next < 0 {
		next = count - 1
	}
	if next >= count {
		next = 0
	}
	m.activeTab = next
	if m.activeTab == tabHistory {
		m.historyTable.Focus()
	} else {
		m.historyTable.Blur()
	}
}

func (m *Model) renderTabs() string {
	parts := make([]string, 0, len(m.tabs))
	for i, tab := range m.tabs {
		if i == m.activeTab {
			parts = append(parts, activeNavStyle.Render(tab))
		} else {
			parts = append(parts, inactiveNavStyle.Render(tab))
		}
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, parts...)
}

func (m *Model) renderHeader() string {
	tabs := padLines(m.renderTabs(), m.width)
	line := truncateLine("Log: "+m.opts.LogPath, m.width)
	return tabs + "\n" + padLines(headerStyle.Render(line), m.width)
}

func (m *Model) renderHelp() string {
	help := "Nav: left/right  Scroll: up/down/pgup/pgdn  Reload: r  Export: e  Quit: q"
	if m.activeTab == tabHistory {
		help = "Nav: left/right  Select: up/down  Show report: enter  Export: e  Quit: q"
	}
	return headerStyle.Render(help)
}

func (m *Model) renderFooter() string {
	switch {
	case m.errMsg != "":
		return m.renderHelp() + "\n" + errorStyle.Render(m.errMsg)
	case m.status != "":
		return m.renderHelp() + "\n" + statusStyle.Render(m.status)
	default:
		return m.renderHelp()
	}
}

func (m *Model) renderBody() string {
	if m.activeTab == tabHistory {
		if len(m.records) == 0 {
			return "No exported analyses yet. Press e to export one."
		}
		return tableMutedStyle.Render(m.historyTable.View())
	}
	return m.viewports[m.activeTab].View()
}

func (m *Model) refresh() {
	m.errMsg = ""
	text, err := tasklog.ReadFile(m.opts.LogPath)
	if err == nil {
		m.analysis, err = tasklog.Analyze(text)
	}
	if err != nil {
		m.errMsg = err.Error()
		m.report = ""
	} else {
		m.report = tasklog.RenderString(m.analysis)
	}
	m.loadHistory()
	m.renderTabContents()
}

func (m *Model) loadHistory() {
	if m.opts.History == nil {
		return
	}
	records, err := m.opts.History.ListAnalyses(context.Background(), historyLimit)
	if err != nil {
		m.errMsg = fmt.Sprintf("failed to load history: %v", err)
		return
	}
	m.records = records
	width := m.width
	if width <= 0 {
		width = 80
	}
	_, bodyHeight, _ := m.layoutHeights()
	m.historyTable = buildHistoryTable(records, width, bodyHeight)
}

func (m *Model) export() {
	if m.report == "" {
		m.status = "Nothing to export"
		return
	}
	now := m.opts.Now()
	if m.opts.ExportPath != "" {
		if err := tasklog.Export(m.opts.ExportPath, m.report, now); err != nil {
			m.errMsg = err.Error()
			return
		}
	}
	if m.opts.History != nil {
		rec := tasklog.Record(m.analysis, m.opts.LogPath, m.report, now)
		if _, err := m.opts.History.InsertAnalysis(context.Background(), rec); err != nil {
			m.errMsg = fmt.Sprintf("failed to save analysis: %v", err)
			return
		}
		m.loadHistory()
	}
	m.status = "Analysis exported at " + now.Format("15:04:05")
}

func (m *Model) showSelectedReport() {
	// Rows are newest first.
	idx := len(m.records) - 1 - m.historyTable.Cursor()
	if idx < 0 || idx >= len(m.records) {
		return
	}
	rec := m.records[idx]
	m.viewports[tabReport].SetContent(rec.Report)
	m.activeTab = tabReport
	m.historyTable.Blur()
	m.status = "Showing analysis saved " + rec.CreatedAt.Format(tasklog.TimeLayout) + "; press r to return"
}

func (m *Model) renderTabContents() {
	if len(m.viewports) == 0 {
		return
	}
	if m.errMsg != "" && m.report == "" {
		for i := range m.viewports {
			m.viewports[i].SetContent(failedContent(m.errMsg))
		}
		return
	}
	width := m.width
	if width <= 0 {
		width = 80
	}
	m.viewports[tabReport].SetContent(m.report)
	m.viewports[tabPlot].SetContent(renderPlot(m.analysis.Series, width))
}

func failedContent(msg string) string {
	if strings.Contains(msg, tasklog.ErrNoIntervals.Error()) {
		return "No interval counts logged yet."
	}
	return "Failed to analyze log: " + msg
}

func renderPlot(series stats.IntervalSeries, width int) string {
	var buf bytes.Buffer
	if err := stats.PlotIntervals(&buf, series, width, plotHeight, true); err != nil {
		return fmt.Sprintf("Failed to render plot: %v", err)
	}
	return strings.TrimRight(buf.String(), "\n")
}

func buildHistoryTable(records []model.AnalysisRecord, width, height int) table.Model {
	columns := []table.Column{
		{Title: "Exported", Width: 20},
		{Title: "Intervals", Width: 9},
		{Title: "Tasks", Width: 7},
		{Title: "Mean time", Width: 11},
		{Title: "Uptime (h)", Width: 10},
	}
	rows := make([]table.Row, 0, len(records))
	for i := len(records) - 1; i >= 0; i-- {
		rec := records[i]
		rows = append(rows, table.Row{
			rec.CreatedAt.Format(tasklog.TimeLayout),
			fmt.Sprintf("%d", rec.Intervals),
			fmt.Sprintf("%d", rec.TotalTasks),
			stats.SecondsToDuration(int(rec.AvgTaskSec), stats.ModeStd),
			tasklog.FormatUptime(rec.UptimeHours, rec.UptimeKnown),
		})
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithHeight(maxInt(1, height-1)),
	)
	t.SetWidth(width)
	t.SetStyles(historyTableStyles())
	return t
}

func historyTableStyles() table.Styles {
	styles := table.DefaultStyles()
	styles.Header = styles.Header.
		Border(lipgloss.NormalBorder(), false, false, true, false).
		BorderForeground(lipgloss.Color("#4A4A4A")).
		Foreground(lipgloss.Color("#C0C0C0")).
		Bold(true).
		Padding(0, 1).
		PaddingLeft(0)
	styles.Cell = styles.Cell.
		Padding(0, 1).
		PaddingLeft(0)
	styles.Selected = styles.Cell.
		Foreground(lipgloss.Color("#F0F0F0")).
		Bold(true)
	return styles
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func padLines(s string, width int) string {
	if width <= 0 || s == "" {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	return strings.Join(lines, "\n")
}

func padLine(line string, width int) string {
	lineWidth := lipgloss.Width(line)
	if lineWidth < width {
		return line + strings.Repeat(" ", width-lineWidth)
	}
	return line
}

func fitLines(s string, width, height int) string {
	if width <= 0 || height <= 0 {
		return s
	}
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = padLine(line, width)
	}
	if len(lines) > height {
		lines = lines[:height]
	}
	for len(lines) < height {
		lines = append(lines, strings.Repeat(" ", width))
	}
	return strings.Join(lines, "\n")
}

func truncateLine(s string, width int) string {
	if width <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= width {
		return s
	}
	if width <= 3 {
		return string(runes[:width])
	}
	return string(runes[:width-3]) + "..."
}
