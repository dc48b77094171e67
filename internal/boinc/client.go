// Package boinc queries a BOINC client through its boinccmd tool.
package boinc

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// ErrUnreachable is returned when boinccmd cannot talk to the client.
var ErrUnreachable = errors.New("can't connect to BOINC client")

// ErrUnknownAction is returned for a project action boinccmd does not support.
var ErrUnknownAction = errors.New("unknown project action")

// Client is the set of queries the monitor needs. Each call returns the
// output lines containing tag, or every line when tag is empty.
type Client interface {
	Reported(ctx context.Context, tag string) ([]string, error)
	Tasks(ctx context.Context, tag string) ([]string, error)
	SimpleStatus(ctx context.Context) ([]string, error)
	ProjectStatus(ctx context.Context, tag string) ([]string, error)
	ProjectAction(ctx context.Context, projectURL, action string) error
}

// ProjectActions lists the actions accepted by boinccmd --project.
var ProjectActions = []string{
	"reset", "detach", "update", "suspend", "resume",
	"nomorework", "allowmorework", "detach_when_done", "dont_detach_when_done",
}

// Runner executes a command and returns its combined output.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

// ExecRunner runs commands with os/exec.
type ExecRunner struct{}

// Run executes name with args.
func (ExecRunner) Run(ctx context.Context, name string, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, name, args...).CombinedOutput()
}

// Cmd implements Client with the boinccmd binary.
type Cmd struct {
	Path     string
	Host     string
	Password string
	Runner   Runner
}

// NewCmd returns a boinccmd client. An empty path uses DefaultPath.
func NewCmd(path, host, password string) *Cmd {
	if path == "" {
		path = DefaultPath(runtime.GOOS)
	}
	return &Cmd{Path: path, Host: host, Password: password, Runner: ExecRunner{}}
}

// DefaultPath is where BOINC installs boinccmd on goos.
func DefaultPath(goos string) string {
	switch goos {
	case "windows":
		return filepath.Join(`C:\Program Files`, "BOINC", "boinccmd.exe")
	case "darwin":
		home, err := os.UserHomeDir()
		if err != nil {
			home = "~"
		}
		return filepath.Join(home, "Library", "Application Support", "BOINC", "boinccmd")
	default:
		return "/usr/bin/boinccmd"
	}
}

// Reported queries tasks already reported to the project server.
func (c *Cmd) Reported(ctx context.Context, tag string) ([]string, error) {
	return c.query(ctx, tag, "--get_old_tasks")
}

// Tasks queries tasks currently held by the client.
func (c *Cmd) Tasks(ctx context.Context, tag string) ([]string, error) {
	return c.query(ctx, tag, "--get_tasks")
}

// SimpleStatus queries the client's run and suspension status.
func (c *Cmd) SimpleStatus(ctx context.Context) ([]string, error) {
	return c.query(ctx, "", "--get_cc_status")
}

// ProjectStatus queries attached projects.
func (c *Cmd) ProjectStatus(ctx context.Context, tag string) ([]string, error) {
	return c.query(ctx, tag, "--get_project_status")
}

// ProjectAction runs a project command such as "update".
func (c *Cmd) ProjectAction(ctx context.Context, projectURL, action string) error {
	known := false
	for _, a := range ProjectActions {
		if a == action {
			known = true
			break
		}
	}
	if !known {
		return fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
	_, err := c.run(ctx, "--project", projectURL, action)
	return err
}

func (c *Cmd) query(ctx context.Context, tag string, args ...string) ([]string, error) {
	lines, err := c.run(ctx, args...)
	if err != nil {
		return nil, err
	}
	return filterTag(lines, tag), nil
}

func (c *Cmd) run(ctx context.Context, args ...string) ([]string, error) {
	full := make([]string, 0, len(args)+4)
	if c.Host != "" {
		full = append(full, "--host", c.Host)
	}
	if c.Password != "" {
		full = append(full, "--passwd", c.Password)
	}
	full = append(full, args...)

	out, err := c.Runner.Run(ctx, c.Path, full...)
	text := string(out)
	if strings.Contains(text, "can't connect to") {
		return nil, fmt.Errorf("%w: %s", ErrUnreachable, firstLine(text))
	}
	if err != nil {
		return nil, fmt.Errorf("boinccmd %s failed: %w", strings.Join(args, " "), err)
	}
	return strings.Split(strings.ReplaceAll(text, "\r\n", "\n"), "\n"), nil
}

func filterTag(lines []string, tag string) []string {
	if tag == "" {
		return lines
	}
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if strings.Contains(line, tag) {
			out = append(out, line)
		}
	}
	return out
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
