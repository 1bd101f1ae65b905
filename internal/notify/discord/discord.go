// Package discord posts notify messages to a Discord channel as embeds.
package discord

import (
	"context"
	"fmt"
	"log"
	"math"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/zulandar/leadyard/internal/notify"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial backoff duration for rate-limit retries.
	baseBackoff = time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 30 * time.Second
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Notifier implements notify.Notifier for Discord. It only uses the REST
// API, so no gateway connection is opened.
type Notifier struct {
	sess        session
	channelID   string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// Opts holds parameters for creating a Discord Notifier.
type Opts struct {
	BotToken  string
	ChannelID string
	// For testing: inject a mock session instead of the real Discord API.
	Session session
}

// New creates a Discord Notifier.
func New(opts Opts) (*Notifier, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	if opts.ChannelID == "" {
		return nil, fmt.Errorf("discord: channel id is required")
	}

	n := &Notifier{
		sess:        opts.Session,
		channelID:   opts.ChannelID,
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if n.sess == nil {
		dg, err := discordgo.New("Bot " + opts.BotToken)
		if err != nil {
			return nil, fmt.Errorf("discord: create session: %w", err)
		}
		n.sess = dg
	}
	return n, nil
}

// Notify sends msg as a single embed.
func (n *Notifier) Notify(ctx context.Context, msg notify.Message) error {
	embed := messageToEmbed(msg)
	err := n.retryOnRateLimit(ctx, func() error {
		_, sendErr := n.sess.ChannelMessageSendEmbed(n.channelID, embed, discordgo.WithContext(ctx))
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

// messageToEmbed converts a notify.Message to a Discord Embed.
func messageToEmbed(msg notify.Message) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:       msg.Title,
		Description: msg.Body,
		Color:       parseHexColor(msg.Color()),
	}
	for _, f := range msg.Fields {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:   f.Name,
			Value:  f.Value,
			Inline: f.Short,
		})
	}
	return embed
}

// parseHexColor converts a hex color string (e.g. "#36a64f") to an int.
func parseHexColor(hex string) int {
	if len(hex) > 0 && hex[0] == '#' {
		hex = hex[1:]
	}
	var color int
	for _, c := range hex {
		color <<= 4
		switch {
		case c >= '0' && c <= '9':
			color |= int(c - '0')
		case c >= 'a' && c <= 'f':
			color |= int(c-'a') + 10
		case c >= 'A' && c <= 'F':
			color |= int(c-'A') + 10
		}
	}
	return color
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// 429 responses.
func (n *Notifier) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}

		restErr, ok := err.(*discordgo.RESTError)
		if !ok || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * n.baseBackoff
		if wait > n.maxBackoff {
			wait = n.maxBackoff
		}
		log.Printf("discord: rate limited (attempt %d/%d), retrying in %v", attempt+1, maxRetries, wait)

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
