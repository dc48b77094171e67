package tasklog

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
)

// SizeWarnBytes is the log size above which CheckSize warns.
const SizeWarnBytes = 20_000_000

// WriteError reports a failed append with the file and host involved.
type WriteError struct {
	Path string
	Host string
	Err  error
}

func (e *WriteError) Error() string {
	return fmt.Sprintf("on %s, cannot write log file %s: %v", e.Host, e.Path, e.Err)
}

func (e *WriteError) Unwrap() error { return e.Err }

// Writer appends events to the log file. Existing content is never rewritten.
type Writer struct {
	mu   sync.Mutex
	path string
	host string
}

// NewWriter returns a writer for path.
func NewWriter(path string) *Writer {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "localhost"
	}
	return &Writer{path: path, host: host}
}

// Path returns the log file path.
func (w *Writer) Path() string {
	return w.path
}

// Write appends one encoded event.
func (w *Writer) Write(ev Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(w.path), 0o755); err != nil {
		return &WriteError{Path: w.path, Host: w.host, Err: err}
	}
	f, err := os.OpenFile(w.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return &WriteError{Path: w.path, Host: w.host, Err: err}
	}
	if _, err := io.WriteString(f, ev.Encode()); err != nil {
		_ = f.Close()
		return &WriteError{Path: w.path, Host: w.host, Err: err}
	}
	if err := f.Close(); err != nil {
		return &WriteError{Path: w.path, Host: w.host, Err: err}
	}
	return nil
}

// ReadFile returns the log text. A missing file is reported with the host name.
func ReadFile(path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		host, _ := os.Hostname()
		return "", fmt.Errorf("on %s, failed to read log file %s: %w", host, path, err)
	}
	return string(data), nil
}

// CheckSize returns a warning when the log has grown past SizeWarnBytes.
// A missing log yields no warning.
func CheckSize(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to stat log: %w", err)
	}
	if info.Size() <= SizeWarnBytes {
		return "", nil
	}
	return fmt.Sprintf("The log file %s is %s, over %s.\n"+
		"Consider backing it up (taskcount log backup) and deleting it before the next start.\n"+
		"Do not delete the log file while counting is running.",
		path, humanize.Bytes(uint64(info.Size())), humanize.Bytes(SizeWarnBytes)), nil
}

// Backup copies the log next to itself with a timestamp in the name.
func Backup(path string, now time.Time) (string, error) {
	src, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open log: %w", err)
	}
	defer func() {
		// Best-effort close of a read-only file.
		_ = src.Close()
	}()

	ext := filepath.Ext(path)
	base := strings.TrimSuffix(path, ext)
	dstPath := fmt.Sprintf("%s_%s%s", base, now.Format("2006-01-02_15-04-05"), ext)
	dst, err := os.OpenFile(dstPath, os.O_CREATE|os.O_EXCL|os.O_WRONLY, 0o644)
	if err != nil {
		return "", fmt.Errorf("failed to create backup: %w", err)
	}
	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return "", fmt.Errorf("failed to copy log: %w", err)
	}
	if err := dst.Close(); err != nil {
		return "", fmt.Errorf("failed to close backup: %w", err)
	}
	return dstPath, nil
}
