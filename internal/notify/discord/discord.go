// Package discord implements the notify Adapter for Discord.
package discord

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/huddleworks/huddle/internal/notify"
)

// session abstracts the discordgo methods we use, enabling test mocks.
type session interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Adapter posts events to a Discord channel as embeds.
type Adapter struct {
	session session
	channel string
}

// New creates a Discord adapter from a bot token and target channel ID.
func New(token, channel string) (*Adapter, error) {
	if token == "" {
		return nil, fmt.Errorf("discord: token is required")
	}
	if channel == "" {
		return nil, fmt.Errorf("discord: channel is required")
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: create session: %w", err)
	}
	return &Adapter{session: s, channel: channel}, nil
}

// Send posts the event as an embed. discordgo has no context-aware send;
// cancellation is bounded by the session's HTTP client timeout.
func (a *Adapter) Send(ctx context.Context, ev notify.Event) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	embed := &discordgo.MessageEmbed{
		Title:       ev.Title,
		Description: ev.Body,
		Color:       embedColor(ev.Severity),
	}
	if _, err := a.session.ChannelMessageSendEmbed(a.channel, embed); err != nil {
		return fmt.Errorf("discord: send to %s: %w", a.channel, err)
	}
	return nil
}

// embedColor converts the shared hex color hint to Discord's integer form.
func embedColor(severity string) int {
	hex := strings.TrimPrefix(notify.SeverityColor(severity), "#")
	n, err := strconv.ParseInt(hex, 16, 32)
	if err != nil {
		return 0
	}
	return int(n)
}
