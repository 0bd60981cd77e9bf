package notifier

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/wisbric/argowatch/pkg/task"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestIsEnabled(t *testing.T) {
	tests := []struct {
		name    string
		token   string
		channel string
		want    bool
	}{
		{"token and channel", "xoxb-token", "#deployments", true},
		{"missing token", "", "#deployments", false},
		{"missing channel", "xoxb-token", "", false},
		{"nothing configured", "", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := NewSlackNotifier(tt.token, tt.channel, testLogger())
			if n.IsEnabled() != tt.want {
				t.Errorf("IsEnabled() = %v, want %v", n.IsEnabled(), tt.want)
			}
		})
	}
}

func TestNotifyVerdictDisabledIsNoop(t *testing.T) {
	n := NewSlackNotifier("", "", testLogger())

	err := n.NotifyVerdict(context.Background(), task.Task{
		ID:     "task-1",
		App:    "test_app",
		Status: task.StatusDeployed,
	})
	if err != nil {
		t.Errorf("NotifyVerdict() on disabled notifier: %v", err)
	}
}

func TestVerdictText(t *testing.T) {
	base := task.Task{
		ID:      "task-1",
		App:     "test_app",
		Author:  "test_author",
		Project: "test_project",
		Images:  []task.Image{{Image: "example", Tag: "latest"}},
	}

	tests := []struct {
		status string
		want   string
	}{
		{task.StatusDeployed, ":white_check_mark:"},
		{task.StatusFailed, ":x:"},
		{task.StatusAppNotFound, ":warning:"},
	}

	for _, tt := range tests {
		t.Run(tt.status, func(t *testing.T) {
			tsk := base
			tsk.Status = tt.status

			text := verdictText(tsk)
			if !strings.HasPrefix(text, tt.want) {
				t.Errorf("verdictText() = %q, want prefix %q", text, tt.want)
			}
			for _, fragment := range []string{"example:latest", "test_app", tt.status} {
				if !strings.Contains(text, fragment) {
					t.Errorf("verdictText() = %q, missing %q", text, fragment)
				}
			}
		})
	}
}
