// Package notify delivers managed-host health alerts to Slack so fleet
// operators see PREVENT_ALLOCATIONS and other classified alerts without
// polling the API.
package notify

import (
	"context"
	"fmt"
	"log/slog"

	goslack "github.com/slack-go/slack"
)

// HealthAlert is the subset of a machine health alert the notifier needs.
// It mirrors pkg/machine.HealthAlert without importing the domain package,
// keeping this an ambient, reusable notification sink.
type HealthAlert struct {
	MachineID      string
	Kind           string
	Target         string
	Message        string
	Classification string
}

// Notifier posts health-alert notifications to a Slack channel.
type Notifier struct {
	client  *goslack.Client
	channel string
	logger  *slog.Logger
}

// NewNotifier creates a Slack Notifier. If botToken is empty, the notifier
// is a noop (logging only), so Forge runs without Slack configured.
func NewNotifier(botToken, channel string, logger *slog.Logger) *Notifier {
	var client *goslack.Client
	if botToken != "" {
		client = goslack.New(botToken)
	}
	return &Notifier{client: client, channel: channel, logger: logger}
}

// IsEnabled reports whether the notifier has a usable Slack client and
// destination channel.
func (n *Notifier) IsEnabled() bool {
	return n.client != nil && n.channel != ""
}

// PostHealthAlert sends a health-alert notification to the configured
// channel. It never returns an error to callers that treat delivery as
// best-effort; failures are logged instead.
func (n *Notifier) PostHealthAlert(ctx context.Context, alert HealthAlert) {
	if !n.IsEnabled() {
		n.logger.Debug("slack notifier disabled, skipping health alert post",
			"machine_id", alert.MachineID, "kind", alert.Kind)
		return
	}

	text := fmt.Sprintf("%s %s on %s: %s", classificationEmoji(alert.Classification), alert.Kind, alert.MachineID, alert.Message)

	header := goslack.NewHeaderBlock(
		goslack.NewTextBlockObject(goslack.PlainTextType, text, true, false),
	)
	var fields []*goslack.TextBlockObject
	fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Machine:* %s", alert.MachineID), false, false))
	if alert.Target != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Target:* %s", alert.Target), false, false))
	}
	if alert.Classification != "" {
		fields = append(fields, goslack.NewTextBlockObject(goslack.MarkdownType, fmt.Sprintf("*Classification:* %s", alert.Classification), false, false))
	}
	section := goslack.NewSectionBlock(nil, fields, nil)

	opts := []goslack.MsgOption{
		goslack.MsgOptionBlocks(header, section),
		goslack.MsgOptionText(text, false),
	}

	if _, _, err := n.client.PostMessageContext(ctx, n.channel, opts...); err != nil {
		n.logger.Error("posting health alert to slack", "machine_id", alert.MachineID, "error", err)
		return
	}
	n.logger.Info("posted health alert to slack", "machine_id", alert.MachineID, "kind", alert.Kind)
}

func classificationEmoji(classification string) string {
	switch classification {
	case "PREVENT_ALLOCATIONS":
		return "🔴"
	default:
		return "🟡"
	}
}
