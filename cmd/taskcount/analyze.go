package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/taskcount/internal/analysisui"
	"github.com/verte-zerg/taskcount/internal/config"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/stats"
	"github.com/verte-zerg/taskcount/internal/store"
	"github.com/verte-zerg/taskcount/internal/tasklog"
)

var (
	analyzeExport bool
	analyzeFollow bool
	analyzeTUI    bool

	plotHeight int

	historyLast  int
	historyPrune string
)

func newAnalyzeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "analyze",
		Short: "Analyze the task log",
		Args:  cobra.NoArgs,
		RunE:  runAnalyzeCmd,
	}
	cmd.Flags().BoolVar(&analyzeExport, "export", false, "append the report to the analysis file and history")
	cmd.Flags().BoolVar(&analyzeFollow, "follow", false, "re-analyze whenever the log changes")
	cmd.Flags().BoolVar(&analyzeTUI, "tui", false, "browse the analysis, plot and history interactively")
	return cmd
}

func runAnalyzeCmd(_ *cobra.Command, _ []string) error {
	if analyzeTUI {
		return runAnalyzeTUI()
	}

	report, analysis, err := analyzeLog(logFile)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprint(os.Stdout, report); err != nil {
		return err
	}
	if analyzeExport && analysis != nil {
		if err := exportAnalysis(*analysis, report, time.Now()); err != nil {
			return err
		}
	}
	if !analyzeFollow {
		return nil
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	err = tasklog.Follow(ctx, logFile, tasklog.DefaultDebounce, func() {
		report, _, err := analyzeLog(logFile)
		if err != nil {
			logErrf("%v\n", err)
			return
		}
		if _, err := fmt.Fprintf(os.Stdout, "\n%s", report); err != nil {
			logErrf("failed to print analysis: %v\n", err)
		}
	})
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// analyzeLog returns the printable report. A log without intervals yields a
// short message and a nil analysis.
func analyzeLog(path string) (string, *tasklog.Analysis, error) {
	text, err := tasklog.ReadFile(path)
	if err != nil {
		return "", nil, err
	}
	analysis, err := tasklog.Analyze(text)
	if errors.Is(err, tasklog.ErrNoIntervals) {
		return "No interval counts logged yet in " + path + ".\n", nil, nil
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to analyze log: %w", err)
	}
	return tasklog.RenderString(analysis), &analysis, nil
}

func exportAnalysis(analysis tasklog.Analysis, report string, now time.Time) error {
	exportPath := config.DefaultAnalysisPath()
	if err := tasklog.Export(exportPath, report, now); err != nil {
		return err
	}

	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()
	if _, err := st.InsertAnalysis(context.Background(), tasklog.Record(analysis, logFile, report, now)); err != nil {
		return fmt.Errorf("failed to record analysis: %w", err)
	}
	logErrf("Analysis exported to %s\n", exportPath)
	return nil
}

func runAnalyzeTUI() error {
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	changes := make(chan struct{}, 1)
	go func() {
		err := tasklog.Follow(ctx, logFile, tasklog.DefaultDebounce, func() {
			select {
			case changes <- struct{}{}:
			default:
			}
		})
		if err != nil && !errors.Is(err, context.Canceled) {
			logErrf("failed to follow log: %v\n", err)
		}
	}()

	ui := analysisui.NewModel(analysisui.Options{
		LogPath:    logFile,
		ExportPath: config.DefaultAnalysisPath(),
		History:    st,
		Changes:    changes,
	})
	program := tea.NewProgram(ui, tea.WithAltScreen())
	if _, err := program.Run(); err != nil {
		return fmt.Errorf("failed to run TUI: %w", err)
	}
	return nil
}

func newPlotCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot",
		Short: "Plot task counts and mean task time per interval",
		Args:  cobra.NoArgs,
		RunE:  runPlotCmd,
	}
	cmd.Flags().IntVar(&plotHeight, "height", 10, "plot height in rows")
	return cmd
}

func runPlotCmd(_ *cobra.Command, _ []string) error {
	if plotHeight <= 0 {
		return fmt.Errorf("height must be > 0")
	}
	_, analysis, err := analyzeLog(logFile)
	if err != nil {
		return err
	}
	if analysis == nil {
		return stats.PlotIntervals(os.Stdout, stats.IntervalSeries{}, 0, plotHeight, stats.IsTerminal(os.Stdout))
	}
	return stats.PlotIntervals(os.Stdout, analysis.Series, 0, plotHeight, stats.IsTerminal(os.Stdout))
}

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List exported analyses",
		Args:  cobra.NoArgs,
		RunE:  runHistoryCmd,
	}
	cmd.Flags().IntVar(&historyLast, "last", 0, "show only the most recent N analyses")
	cmd.Flags().StringVar(&historyPrune, "prune-older-than", "", "delete analyses older than a period, e.g. 30d")
	return cmd
}

func runHistoryCmd(cmd *cobra.Command, _ []string) error {
	if historyLast < 0 {
		return fmt.Errorf("last must be >= 0")
	}
	st, err := store.Open(config.DefaultDBPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer func() {
		if cerr := st.Close(); cerr != nil {
			logErrf("failed to close history: %v\n", cerr)
		}
	}()
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if historyPrune != "" {
		age, err := pruneAge(historyPrune)
		if err != nil {
			return err
		}
		n, err := st.DeleteBefore(ctx, time.Now().Add(-age))
		if err != nil {
			return fmt.Errorf("failed to prune history: %w", err)
		}
		logErrf("Deleted %d analyses.\n", n)
	}

	records, err := st.ListAnalyses(ctx, historyLast)
	if err != nil {
		return fmt.Errorf("failed to list history: %w", err)
	}
	rows := make([][]string, 0, len(records))
	for _, rec := range records {
		rows = append(rows, []string{
			fmt.Sprintf("%d", rec.ID),
			humanize.Time(rec.CreatedAt),
			fmt.Sprintf("%d", rec.Intervals),
			humanize.Comma(int64(rec.TotalTasks)),
			stats.ShortDuration(rec.AvgTaskSec),
			tasklog.FormatUptime(rec.UptimeHours, rec.UptimeKnown),
		})
	}
	headers := []string{"ID", "Exported", "Intervals", "Tasks", "Mean time", "Uptime (h)"}
	return stats.RenderTable(os.Stdout, "Exported analyses", headers, rows, map[int]bool{0: true, 2: true, 3: true, 5: true})
}

// pruneAge accepts either a count period (30d) or a Go duration (720h).
func pruneAge(s string) (time.Duration, error) {
	if d, err := time.ParseDuration(s); err == nil && d > 0 {
		return d, nil
	}
	p, err := model.ParsePeriod(s)
	if err != nil {
		return 0, fmt.Errorf("invalid --prune-older-than %q: %w", s, err)
	}
	return p.Duration(), nil
}

func newLogCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Inspect or back up the task log",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the task log",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			text, err := tasklog.ReadFile(logFile)
			if err != nil {
				return err
			}
			_, err = fmt.Fprint(os.Stdout, text)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "backup",
		Short: "Copy the task log to a timestamped file",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			dst, err := tasklog.Backup(logFile, time.Now())
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(os.Stdout, dst)
			return err
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "path",
		Short: "Print the task log path",
		Args:  cobra.NoArgs,
		RunE: func(_ *cobra.Command, _ []string) error {
			_, err := fmt.Fprintln(os.Stdout, logFile)
			return err
		},
	})
	return cmd
}
