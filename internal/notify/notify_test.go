package notify

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestSlackSendPostsJSON(t *testing.T) {
	var got slackMessage
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("expected POST, got %s", r.Method)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	err := NewSlack(server.URL).Send(context.Background(), Notification{
		Title:   "taskcount",
		Message: "No tasks reported in the past 2 intervals",
		Level:   LevelWarning,
		Host:    "cruncher",
	})
	if err != nil {
		t.Fatalf("Send failed: %v", err)
	}
	if got.Text != "taskcount" || len(got.Attachments) != 1 {
		t.Fatalf("unexpected payload: %+v", got)
	}
	if got.Attachments[0].Color != "warning" || !strings.Contains(got.Attachments[0].Footer, "cruncher") {
		t.Fatalf("unexpected attachment: %+v", got.Attachments[0])
	}
}

func TestSlackSendReportsStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer server.Close()
	if err := NewSlack(server.URL).Send(context.Background(), Notification{}); err == nil {
		t.Fatalf("expected error for 403")
	}
	if err := NewSlack("").Send(context.Background(), Notification{}); err != nil {
		t.Fatalf("expected disabled notifier to succeed, got %v", err)
	}
}

func TestDesktopUsesNotifySendOnLinux(t *testing.T) {
	var args []string
	d := &Desktop{goos: "linux", run: func(_ context.Context, name string, a ...string) error {
		args = append([]string{name}, a...)
		return nil
	}}
	if err := d.Send(context.Background(), Notification{Title: "t", Message: "m", Level: LevelError}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	want := []string{"notify-send", "--urgency=critical", "--icon=dialog-error", "t", "m"}
	if strings.Join(args, "|") != strings.Join(want, "|") {
		t.Fatalf("unexpected command %v", args)
	}
	d.goos = "plan9"
	args = nil
	if err := d.Send(context.Background(), Notification{}); err != nil || args != nil {
		t.Fatalf("expected unsupported OS to be ignored")
	}
}

type recorder struct {
	calls int
	err   error
}

func (r *recorder) Send(context.Context, Notification) error {
	r.calls++
	return r.err
}

func TestMultiSendsToAll(t *testing.T) {
	failing := &recorder{err: errors.New("boom")}
	ok := &recorder{}
	err := Multi{failing, ok, Noop{}}.Send(context.Background(), Notification{Title: "x"})
	if err == nil || failing.calls != 1 || ok.calls != 1 {
		t.Fatalf("expected both called and error joined, got %v %d %d", err, failing.calls, ok.calls)
	}
}
