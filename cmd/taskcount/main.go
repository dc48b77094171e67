// Package main provides the CLI entrypoint for taskcount.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/verte-zerg/taskcount/internal/boinc"
	"github.com/verte-zerg/taskcount/internal/config"
	"github.com/verte-zerg/taskcount/internal/console"
	"github.com/verte-zerg/taskcount/internal/engine"
	"github.com/verte-zerg/taskcount/internal/model"
	"github.com/verte-zerg/taskcount/internal/notice"
	"github.com/verte-zerg/taskcount/internal/notify"
	"github.com/verte-zerg/taskcount/internal/tasklog"
	"github.com/verte-zerg/taskcount/internal/tui"
)

const (
	defaultInterval    = "1h"
	defaultSummary     = "1d"
	defaultCountLimit  = 1008
	defaultNoticeEvery = "15s"
	defaultLogLevel    = "info"
)

var (
	runInterval   string
	runSummary    string
	runCountLimit int
	runLog        bool
	runPlain      bool
	runAutoUpdate bool

	clientBoinccmd string
	clientHost     string

	logFile string
)

func main() {
	rootCmd := newRootCmd()
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "taskcount",
		Short:         "Count and log BOINC tasks reported per interval",
		SilenceUsage:  true,
		SilenceErrors: false,
		RunE:          runRunCmd,
	}
	addRunFlags(rootCmd)
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", config.DefaultLogPath(), "task log file")
	rootCmd.PersistentFlags().StringVar(&clientBoinccmd, "boinccmd", "", "path to boinccmd (default: OS install location)")
	rootCmd.PersistentFlags().StringVar(&clientHost, "host", "", "BOINC client host (default: local client)")

	rootCmd.AddCommand(newRunCmd())
	rootCmd.AddCommand(newStatusCmd())
	rootCmd.AddCommand(newAnalyzeCmd())
	rootCmd.AddCommand(newPlotCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newLogCmd())
	rootCmd.AddCommand(newConfigCmd())

	return rootCmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Count reported tasks every interval (default command)",
		Args:  cobra.NoArgs,
		RunE:  runRunCmd,
	}
	addRunFlags(cmd)
	return cmd
}

func addRunFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&runInterval, "interval", defaultInterval, "count interval, e.g. 15m, 1h")
	cmd.Flags().StringVar(&runSummary, "summary", defaultSummary, "summary period, a multiple of the interval")
	cmd.Flags().IntVar(&runCountLimit, "count-lim", defaultCountLimit, "number of count intervals (0 reports once and exits)")
	cmd.Flags().BoolVar(&runLog, "log", true, "append counts to the task log")
	cmd.Flags().BoolVar(&runPlain, "plain", false, "print counts to the terminal instead of the live view")
	cmd.Flags().BoolVar(&runAutoUpdate, "auto-update", false, "request a project update when all tasks are stalled")
}

func runRunCmd(cmd *cobra.Command, _ []string) error {
	cfg, fileCfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	logger, closeLogger, err := newLogger(fileCfg, runPlain)
	if err != nil {
		return err
	}
	defer closeLogger()

	var writers []engine.EventWriter
	if runLog {
		if msg, err := tasklog.CheckSize(cfg.LogPath); err != nil {
			logErrf("failed to check log size: %v\n", err)
		} else if msg != "" {
			logErrln(msg)
		}
		writers = append(writers, tasklog.NewWriter(cfg.LogPath))
	}
	if runPlain {
		writers = append(writers, console.New(os.Stdout))
	}

	eng, err := engine.New(engine.Options{
		Config:   cfg,
		Client:   newClient(fileCfg),
		Writers:  writers,
		Notifier: newNotifier(fileCfg),
		Logger:   logger,
	})
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if runPlain {
		return eng.Run(ctx)
	}

	uiDone := make(chan error, 1)
	runDone := make(chan error, 1)
	go func() {
		err := eng.Run(ctx)
		uiDone <- err
		runDone <- err
	}()

	logPath := ""
	if runLog {
		logPath = cfg.LogPath
	}
	program := tea.NewProgram(tui.NewModel(eng, uiDone, logPath), tea.WithAltScreen())
	_, uiErr := program.Run()
	stop()
	runErr := <-runDone
	if uiErr != nil {
		return fmt.Errorf("failed to run TUI: %w", uiErr)
	}
	return runErr
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Report the most recent tasks and client state once",
		Args:  cobra.NoArgs,
		RunE:  runStatusCmd,
	}
}

func runStatusCmd(cmd *cobra.Command, _ []string) error {
	cfg, fileCfg, err := resolveConfig(cmd)
	if err != nil {
		return err
	}
	cfg.CountLimit = 0
	logger, closeLogger, err := newLogger(fileCfg, true)
	if err != nil {
		return err
	}
	defer closeLogger()

	printer := console.New(os.Stdout)
	eng, err := engine.New(engine.Options{
		Config:  cfg,
		Client:  newClient(fileCfg),
		Writers: []engine.EventWriter{printer},
		Logger:  logger,
	})
	if err != nil {
		return err
	}
	if err := eng.Run(cmd.Context()); err != nil {
		return err
	}
	st := eng.Status()
	if st.Notice.Text != "" && !notice.Urgent(notice.Kind(st.Notice.Kind)) {
		return printer.Write(tasklog.Notice{At: st.Notice.At, Text: st.Notice.Text})
	}
	return nil
}

// resolveConfig merges flags over the config file.
func resolveConfig(cmd *cobra.Command) (model.Config, config.FileConfig, error) {
	fileCfg, err := config.LoadConfig(config.DefaultConfigPath())
	if err != nil {
		return model.Config{}, config.FileConfig{}, fmt.Errorf("failed to load config: %w", err)
	}
	applyStringConfig(cmd, "interval", &runInterval, fileCfg.Count.Interval)
	applyStringConfig(cmd, "summary", &runSummary, fileCfg.Count.Summary)
	applyIntConfig(cmd, "count-lim", &runCountLimit, fileCfg.Count.CountLimit)
	applyBoolConfig(cmd, "log", &runLog, fileCfg.Count.Log)
	applyBoolConfig(cmd, "auto-update", &runAutoUpdate, fileCfg.Count.AutoUpdate)
	applyStringConfig(cmd, "boinccmd", &clientBoinccmd, fileCfg.Client.Boinccmd)
	applyStringConfig(cmd, "host", &clientHost, fileCfg.Client.Host)

	interval, err := model.ParsePeriod(runInterval)
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("invalid --interval: %w", err)
	}
	summary, err := model.ParsePeriod(runSummary)
	if err != nil {
		return model.Config{}, fileCfg, fmt.Errorf("invalid --summary: %w", err)
	}
	noticeEvery := defaultNoticeEvery
	if fileCfg.Count.NoticeEvery != nil {
		noticeEvery = *fileCfg.Count.NoticeEvery
	}
	every, err := config.ParseNoticeEvery(noticeEvery)
	if err != nil {
		return model.Config{}, fileCfg, err
	}

	cfg := model.Config{
		Interval:          interval,
		Summary:           summary,
		CountLimit:        runCountLimit,
		LogPath:           logFile,
		NoticeEvery:       every,
		AutoUpdateStalled: runAutoUpdate,
	}
	if err := config.Validate(cfg); err != nil {
		return model.Config{}, fileCfg, err
	}
	return cfg, fileCfg, nil
}

func newClient(fileCfg config.FileConfig) *boinc.Cmd {
	password := ""
	if fileCfg.Client.Password != nil {
		password = *fileCfg.Client.Password
	}
	return boinc.NewCmd(clientBoinccmd, clientHost, password)
}

func newNotifier(fileCfg config.FileConfig) notify.Notifier {
	var notifiers notify.Multi
	if fileCfg.Notify.Desktop != nil && *fileCfg.Notify.Desktop {
		notifiers = append(notifiers, notify.NewDesktop())
	}
	if fileCfg.Notify.SlackWebhook != nil && *fileCfg.Notify.SlackWebhook != "" {
		notifiers = append(notifiers, notify.NewSlack(*fileCfg.Notify.SlackWebhook))
	}
	if len(notifiers) == 0 {
		return notify.Noop{}
	}
	return notifiers
}

// newLogger writes diagnostics to stderr, or to the debug log while the
// live view owns the terminal.
func newLogger(fileCfg config.FileConfig, toStderr bool) (*slog.Logger, func(), error) {
	levelName := defaultLogLevel
	if fileCfg.Logging.Level != nil {
		levelName = *fileCfg.Logging.Level
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(levelName)); err != nil {
		return nil, nil, fmt.Errorf("invalid logging level %q: %w", levelName, err)
	}
	opts := &slog.HandlerOptions{Level: level}
	if toStderr {
		return slog.New(slog.NewTextHandler(os.Stderr, opts)), func() {}, nil
	}

	path := config.DefaultDebugLogPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, nil, fmt.Errorf("failed to create debug log directory: %w", err)
	}
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open debug log: %w", err)
	}
	closeFn := func() {
		if cerr := f.Close(); cerr != nil {
			logErrf("failed to close debug log: %v\n", cerr)
		}
	}
	return slog.New(slog.NewTextHandler(f, opts)), closeFn, nil
}

func newConfigCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "config",
		Short: "Create/open config file",
		Args:  cobra.NoArgs,
		RunE:  runConfigCmd,
	}
}

func runConfigCmd(_ *cobra.Command, _ []string) error {
	path := config.DefaultConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if _, err := os.Stat(path); err != nil {
		if !os.IsNotExist(err) {
			return fmt.Errorf("failed to stat config: %w", err)
		}
		if err := os.WriteFile(path, []byte(defaultConfigTemplate()), 0o644); err != nil {
			return fmt.Errorf("failed to write config: %w", err)
		}
	}

	editor := strings.TrimSpace(os.Getenv("EDITOR"))
	if editor == "" {
		editor = "vi"
	}
	parts := strings.Fields(editor)
	if len(parts) == 0 {
		return fmt.Errorf("editor command is empty")
	}
	cmd := exec.Command(parts[0], append(parts[1:], path)...)
	cmd.Stdin = os.Stdin
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("failed to open editor: %w", err)
	}
	return nil
}

func applyStringConfig(cmd *cobra.Command, name string, target, value *string) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyIntConfig(cmd *cobra.Command, name string, target, value *int) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func applyBoolConfig(cmd *cobra.Command, name string, target, value *bool) {
	if value == nil {
		return
	}
	if cmd.Flags().Changed(name) {
		return
	}
	*target = *value
}

func defaultConfigTemplate() string {
	return fmt.Sprintf(`# taskcount configuration
# Uncomment a value to enable it. CLI flags override config values.

[count]
# interval = %q        # Count interval: <N>m, <N>h or <N>d
# summary = %q         # Summary period, a multiple of the interval
# count-lim = %d       # Number of count intervals (0 reports once)
# log = true             # Append counts to the task log
# notice-every = %q   # How often the client state is refreshed
# auto-update = false    # Request a project update when all tasks are stalled

[client]
# boinccmd = ""          # Path to boinccmd (default: OS install location)
# host = ""              # Remote BOINC client host
# password = ""          # GUI RPC password

[notify]
# desktop = false        # Show desktop notifications for urgent notices
# slack-webhook = ""     # Post urgent notices to a Slack incoming webhook

[logging]
# level = %q         # Diagnostic level: debug, info, warn, error
`,
		defaultInterval,
		defaultSummary,
		defaultCountLimit,
		defaultNoticeEvery,
		defaultLogLevel,
	)
}

func logErrf(format string, args ...any) {
	if _, err := fmt.Fprintf(os.Stderr, format, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}

func logErrln(args ...any) {
	if _, err := fmt.Fprintln(os.Stderr, args...); err != nil {
		// Best-effort logging to stderr.
		_ = err
	}
}
