// Package notify sends operator alerts to a Slack incoming webhook.
package notify

import (
	"context"
	"fmt"
	"net/http"

	"github.com/slack-go/slack"

	"github.com/okian/affirmbot/internal/domain/model"
	"github.com/okian/affirmbot/pkg/metrics"
)

// Slack posts alerts for events the dispatcher gave up on. With an empty
// webhook URL it does nothing.
type Slack struct {
	webhookURL string
	httpClient *http.Client
}

// NewSlack returns a Slack alerter. httpClient may be nil.
func NewSlack(webhookURL string, httpClient *http.Client) *Slack {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Slack{webhookURL: webhookURL, httpClient: httpClient}
}

// Enabled reports whether a webhook is configured.
func (s *Slack) Enabled() bool { return s.webhookURL != "" }

// Alert implements dispatch.Alerter.
func (s *Slack) Alert(ctx context.Context, e model.Event, cause error) error {
	if !s.Enabled() {
		return nil
	}
	msg := &slack.WebhookMessage{
		Text: fmt.Sprintf("affirmbot gave up on <https://bsky.app/profile/%s/post/%s|a post> by `%s`",
			e.ActorDID, e.RecordKey, e.ActorDID),
		Attachments: []slack.Attachment{{
			Color: "danger",
			Fields: []slack.AttachmentField{
				{Title: "event", Value: e.ID(), Short: true},
				{Title: "error", Value: errText(cause)},
			},
		}},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.webhookURL, s.httpClient, msg); err != nil {
		metrics.RecordErrorByComponent("notify", "slack")
		return fmt.Errorf("post slack webhook: %w", err)
	}
	return nil
}

func errText(err error) string {
	if err == nil {
		return "unknown"
	}
	return err.Error()
}
