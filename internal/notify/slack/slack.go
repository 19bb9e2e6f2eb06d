// Package slack implements the notify Adapter for Slack.
package slack

import (
	"context"
	"fmt"

	slackapi "github.com/slack-go/slack"

	"github.com/huddleworks/huddle/internal/notify"
)

// client abstracts the Slack API methods we use, enabling test mocks.
type client interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Adapter posts events to a Slack channel.
type Adapter struct {
	client  client
	channel string
}

// New creates a Slack adapter from a bot token and target channel.
func New(token, channel string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("slack: token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("slack: channel is required")
	}
	return &Adapter{client: slackapi.New(token), channel: channel}, nil
}

// Send posts the event as an attachment-styled message.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	attachment := slackapi.Attachment{
		Title: ev.Title,
		Text:  ev.Body,
		Color: colorFor(ev.Severity),
	}
	_, _, err := a.client.PostMessageContext(ctx, a.channel,
		slackapi.MsgOptionAttachments(attachment))
	if err != nil {
		return fmt.Errorf("slack: post to %s: %w", a.channel, err)
	}
	return nil
}

func colorFor(severity string) string {
	switch severity {
	case notify.SeveritySuccess:
		return "good"
	case notify.SeverityWarning:
		return "warning"
	case notify.SeverityError:
		return "danger"
	default:
		return ""
	}
}
