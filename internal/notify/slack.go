package notify

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Slack posts notifications to an operations channel.
type Slack struct {
	client    slackClient
	channelID string
}

// SlackOpts holds parameters for creating a Slack sink.
type SlackOpts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// NewSlack creates a Slack sink.
func NewSlack(opts SlackOpts) (*Slack, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("notify: slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("notify: slack: channel is required")
	}
	client := opts.Client
	if client == nil {
		client = slackapi.New(opts.BotToken)
	}
	return &Slack{client: client, channelID: opts.ChannelID}, nil
}

// Notify posts n as a message with a single attachment.
func (s *Slack) Notify(ctx context.Context, n Notification) error {
	options := []slackapi.MsgOption{
		slackapi.MsgOptionText(n.Title, false),
		slackapi.MsgOptionAttachments(notificationAttachment(n)),
	}
	err := retryOnSlackRateLimit(ctx, func() error {
		_, _, postErr := s.client.PostMessageContext(ctx, s.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("notify: slack: post message: %w", err)
	}
	return nil
}

// notificationAttachment converts a Notification to a Slack Attachment.
func notificationAttachment(n Notification) slackapi.Attachment {
	return slackapi.Attachment{
		Title:    n.Title,
		Text:     n.Message,
		Color:    kindColor(n.Kind),
		Fallback: n.Title,
		Fields: []slackapi.AttachmentField{
			{Title: "Account", Value: n.AccountID, Short: true},
			{Title: "Kind", Value: n.Kind, Short: true},
		},
	}
}

// kindColor picks a sidebar color for a notification kind.
func kindColor(kind string) string {
	switch kind {
	case KindMutualMatch:
		return "#36a64f"
	case KindInterestReceived:
		return "#439fe0"
	default:
		return "#cccccc"
	}
}

// retryOnSlackRateLimit calls fn and retries with backoff on Slack rate
// limit errors. It respects context cancellation and Slack's RetryAfter.
func retryOnSlackRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; attempt <= maxRetries; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * time.Second
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return nil // unreachable
}
