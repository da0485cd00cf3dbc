package alerts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/slack-go/slack"

	"github.com/fabricpulse/dashboard/internal/metrics"
)

// Notifier pushes alert batches to an external channel. Implementations
// must treat delivery as best-effort; failures are logged, never fatal.
type Notifier interface {
	NotifyAlerts(ctx context.Context, alerts []Alert) error
}

// SlackNotifier posts HIGH-priority alerts to a Slack channel.
type SlackNotifier struct {
	client  *slack.Client
	channel string
	log     *slog.Logger
}

// NewSlackNotifier creates a notifier posting to the given channel.
func NewSlackNotifier(token, channel string, log *slog.Logger) *SlackNotifier {
	return &SlackNotifier{
		client:  slack.New(token),
		channel: channel,
		log:     log,
	}
}

// NotifyAlerts posts one message summarizing the HIGH-priority alerts in
// the batch. Batches without HIGH-priority alerts are skipped.
func (n *SlackNotifier) NotifyAlerts(ctx context.Context, batch []Alert) error {
	var high []Alert
	for _, a := range batch {
		if a.Priority == PriorityHigh {
			high = append(high, a)
		}
	}
	if len(high) == 0 {
		return nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "*%d operators critically below target*\n", len(high))
	for _, a := range high {
		fmt.Fprintf(&b, "• %s (%s), %s / %s / %s, at %.1f%% efficiency\n",
			a.EmployeeName, a.EmployeeCode, a.UnitCode, a.LineName, a.Operation, a.Efficiency)
	}

	_, _, err := n.client.PostMessageContext(ctx, n.channel,
		slack.MsgOptionText(b.String(), false),
	)
	if err != nil {
		metrics.AlertNotificationsTotal.WithLabelValues("err").Inc()
		n.log.Error("slack notification failed", "error", err, "alerts", len(high))
		return fmt.Errorf("post slack message: %w", err)
	}
	metrics.AlertNotificationsTotal.WithLabelValues("ok").Inc()
	n.log.Info("slack notification sent", "alerts", len(high), "channel", n.channel)
	return nil
}
