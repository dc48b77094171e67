package notify

import (
	"context"
	"fmt"
	"os/exec"
	"runtime"
	"strings"
)

// Desktop shows notifications through notify-send or osascript.
type Desktop struct {
	goos string
	run  func(ctx context.Context, name string, args ...string) error
}

// NewDesktop returns a desktop notifier for the running OS.
func NewDesktop() *Desktop {
	return &Desktop{goos: runtime.GOOS, run: runCommand}
}

// Send shows n. Unsupported platforms are ignored.
func (d *Desktop) Send(ctx context.Context, n Notification) error {
	var err error
	switch d.goos {
	case "darwin":
		script := fmt.Sprintf("display notification %q with title %q", n.Message, n.Title)
		err = d.run(ctx, "osascript", "-e", script)
	case "linux":
		err = d.run(ctx, "notify-send", "--urgency="+urgency(n.Level), "--icon="+icon(n.Level), n.Title, n.Message)
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("desktop notification failed: %w", err)
	}
	return nil
}

func urgency(l Level) string {
	if l == LevelError {
		return "critical"
	}
	return "normal"
}

func icon(l Level) string {
	switch l {
	case LevelWarning:
		return "dialog-warning"
	case LevelError:
		return "dialog-error"
	default:
		return "dialog-information"
	}
}

func runCommand(ctx context.Context, name string, args ...string) error {
	out, err := exec.CommandContext(ctx, name, args...).CombinedOutput()
	if err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(out)))
	}
	return nil
}
