// Package notifier posts rollout verdicts to Slack. The notifier is a noop
// when no bot token is configured.
package notifier

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	goslack "github.com/slack-go/slack"

	"github.com/wisbric/argowatch/pkg/task"
)

// SlackNotifier sends verdict messages to a single Slack channel.
type SlackNotifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewSlackNotifier creates a Slack notifier. If botToken is empty, the
// notifier will be a noop (logging only).
func NewSlackNotifier(botToken, channel string, logger *slog.Logger) *SlackNotifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &SlackNotifier{
		client:  client,
		channel: channel,
		logger:  logger,
	}
}

// IsEnabled returns true if the notifier has a Slack client and a channel.
func (n *SlackNotifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// NotifyVerdict posts the terminal status of a verification task.
func (n *SlackNotifier) NotifyVerdict(ctx context.Context, t task.Task) error {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping verdict post",
			"task_id", t.ID,
			"status", t.Status,
		)
		return nil
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		goslack.MsgOptionText(verdictText(t), false),
	)
	if err != nil {
		return fmt.Errorf("posting verdict to slack: %w", err)
	}

	n.logger.Info("posted verdict to slack",
		"task_id", t.ID,
		"app", t.App,
		"status", t.Status,
	)
	return nil
}

func verdictText(t task.Task) string {
	refs := make([]string, 0, len(t.Images))
	for _, img := range t.Images {
		refs = append(refs, img.Ref())
	}

	var emoji string
	switch t.Status {
	case task.StatusDeployed:
		emoji = ":white_check_mark:"
	case task.StatusFailed:
		emoji = ":x:"
	default:
		emoji = ":warning:"
	}

	return fmt.Sprintf("%s rollout of %s for app %s: %s (author: %s, project: %s)",
		emoji, strings.Join(refs, ", "), t.App, t.Status, t.Author, t.Project)
}
