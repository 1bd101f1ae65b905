// Package slack posts notify messages to a Slack channel with a bot token.
package slack

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	slackapi "github.com/slack-go/slack"
	"github.com/zulandar/leadyard/internal/notify"
)

// maxRetries is the max number of retries for rate-limited API calls.
const maxRetries = 3

// slackClient abstracts the Slack API methods we use, enabling test mocks.
type slackClient interface {
	PostMessageContext(ctx context.Context, channelID string, options ...slackapi.MsgOption) (string, string, error)
}

// Notifier implements notify.Notifier for Slack.
type Notifier struct {
	client    slackClient
	channelID string
	backoff   time.Duration
}

// Opts holds parameters for creating a Slack Notifier.
type Opts struct {
	BotToken  string // xoxb-... Slack bot token
	ChannelID string
	// For testing: inject a mock client instead of the real Slack API.
	Client slackClient
}

// New creates a Slack Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Client == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("slack: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("slack: channel id is required")
	}

	n := &Notifier{
		client:    opts.Client,
		channelID: opts.ChannelID,
		backoff:   time.Second,
	}
	if n.client == nil {
		n.client = slackapi.New(opts.BotToken)
	}
	return n, nil
}

// Notify posts msg as a message with a single attachment.
func (n *Notifier) Notify(ctx context.Context, msg notify.Message) error {
	options := buildMessageOptions(msg)
	err := retryOnRateLimit(ctx, n.backoff, func() error {
		_, _, postErr := n.client.PostMessageContext(ctx, n.channelID, options...)
		return postErr
	})
	if err != nil {
		return fmt.Errorf("slack: post message: %w", err)
	}
	return nil
}

// buildMessageOptions translates a notify.Message into Slack MsgOptions.
func buildMessageOptions(msg notify.Message) []slackapi.MsgOption {
	return []slackapi.MsgOption{
		slackapi.MsgOptionText(msg.Title, false),
		slackapi.MsgOptionAttachments(messageToAttachment(msg)),
	}
}

func messageToAttachment(msg notify.Message) slackapi.Attachment {
	att := slackapi.Attachment{
		Title:    msg.Title,
		Text:     msg.Body,
		Color:    msg.Color(),
		Fallback: msg.Text(),
	}
	for _, f := range msg.Fields {
		att.Fields = append(att.Fields, slackapi.AttachmentField{
			Title: f.Name,
			Value: f.Value,
			Short: f.Short,
		})
	}
	return att
}

// retryOnRateLimit calls fn and retries on Slack rate limit errors, waiting
// for the RetryAfter duration Slack reports.
func retryOnRateLimit(ctx context.Context, base time.Duration, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		var rle *slackapi.RateLimitedError
		if !errors.As(err, &rle) || attempt == maxRetries {
			return err
		}

		wait := rle.RetryAfter
		if wait <= 0 {
			wait = time.Duration(math.Pow(2, float64(attempt))) * base
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
