package communication

import (
	"context"
	"fmt"
	"os"

	"github.com/slack-go/slack"

	appconfig "axiapac.com/payroll/config"
)

// Notifier posts operational messages.
type Notifier interface {
	Info(ctx context.Context, message string) error
	Error(ctx context.Context, message string) error
}

type Slack struct {
	client  *slack.Client
	options SlackOption
}

type SlackOption struct {
	InfoChannelID  string
	ErrorChannelID string
}

// ConnectSlack builds a notifier from the environment.
func ConnectSlack() *Slack {
	token := os.Getenv("SLACK_BOT_TOKEN")
	infoCh := os.Getenv("SLACK_INFO_CHANNEL")
	errorCh := os.Getenv("SLACK_ERROR_CHANNEL")

	return NewSlack(token, SlackOption{InfoChannelID: infoCh, ErrorChannelID: errorCh})
}

// FromConfig returns a Slack notifier, or a no-op one when Slack is not
// configured.
func FromConfig(cfg appconfig.SlackConfig, opts ...slack.Option) Notifier {
	if !cfg.Enabled() {
		return Discard{}
	}
	return NewSlack(cfg.Token, SlackOption{InfoChannelID: cfg.InfoChannelID, ErrorChannelID: cfg.ErrorChannelID}, opts...)
}

func NewSlack(token string, options SlackOption, opts ...slack.Option) *Slack {
	client := slack.New(token, opts...)
	return &Slack{client: client, options: options}
}

func (s *Slack) postMessage(ctx context.Context, channelID, message string) error {
	if channelID == "" {
		return nil
	}
	_, _, err := s.client.PostMessageContext(
		ctx,
		channelID,
		slack.MsgOptionText(message, false),
		slack.MsgOptionAsUser(true),
	)
	if err != nil {
		return fmt.Errorf("failed to post message to Slack: %w", err)
	}
	return nil
}

func (s *Slack) Info(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.InfoChannelID, message)
}

func (s *Slack) Error(ctx context.Context, message string) error {
	return s.postMessage(ctx, s.options.ErrorChannelID, message)
}

// Discard drops every message.
type Discard struct{}

func (Discard) Info(context.Context, string) error  { return nil }
func (Discard) Error(context.Context, string) error { return nil }
