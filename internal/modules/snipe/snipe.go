// Package snipe keeps recently deleted messages per channel and forwards them
// to the moderation log on request.
package snipe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/duration"
	"warden/internal/moderation"
	"warden/internal/utils"
)

// MaxForward caps how many messages one snipe forwards.
const MaxForward = 50

var (
	ErrNothingRecorded = errors.New("no deleted messages")
	ErrNoLogChannel    = errors.New("log channel not set")
)

type Deleted struct {
	AuthorID    string
	AuthorTag   string
	AvatarURL   string
	Content     string
	Attachments []string
	At          time.Time
}

type Service struct {
	buffer        *utils.TimedBuffer[Deleted]
	messenger     discord.Messenger
	settings      moderation.SettingsSource
	clock         clock.Clock
	defaultPeriod string
	colors        config.EmbedColors
	logger        *zap.Logger
}

func New(messenger discord.Messenger, settings moderation.SettingsSource, cfg config.SnipeConfig, colors config.EmbedColors, logger *zap.Logger) *Service {
	period := cfg.DefaultPeriod
	if _, ok := duration.Parse(period); !ok {
		period = "2h"
	}
	return &Service{
		buffer:        utils.NewTimedBuffer[Deleted](cfg.PerChannel),
		messenger:     messenger,
		settings:      settings,
		clock:         clock.Real(),
		defaultPeriod: period,
		colors:        colors,
		logger:        logger,
	}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// Record stores a deleted message. Messages the gateway never cached arrive
// without an author and are skipped, as are bot messages.
func (s *Service) Record(channelID string, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot {
		return
	}
	entry := Deleted{
		AuthorID:  msg.Author.ID,
		AuthorTag: discord.Tag(msg.Author),
		AvatarURL: msg.Author.AvatarURL(""),
		Content:   msg.Content,
		At:        s.clock.Now(),
	}
	for _, attachment := range msg.Attachments {
		if attachment != nil {
			entry.Attachments = append(entry.Attachments, attachment.URL)
		}
	}
	s.buffer.Add(channelID, entry.At, entry)
}

// Snipe forwards the channel's deleted messages from the last period to the
// guild log channel, oldest first. An invalid period falls back to the default.
func (s *Service) Snipe(ctx context.Context, guildID, channelID string, args []string) (int, error) {
	period := s.defaultPeriod
	if len(args) > 0 {
		if _, ok := duration.Parse(args[0]); ok {
			period = args[0]
		}
	}
	window, _ := duration.Parse(period)

	if s.buffer.Len(channelID) == 0 {
		return 0, moderation.NewUserError(ErrNothingRecorded, "No deleted messages recorded in this channel.")
	}
	recent := s.buffer.Since(channelID, s.clock.Now(), window, MaxForward)
	if len(recent) == 0 {
		return 0, moderation.NewUserError(ErrNothingRecorded, "No deleted messages in that period.")
	}
	logChannel := s.settings.Get(ctx, guildID).LogChannel
	if logChannel == "" {
		return 0, moderation.NewUserError(ErrNoLogChannel, "Mod log channel not set. Use `logset` first.")
	}

	sent := 0
	for i := len(recent) - 1; i >= 0; i-- {
		if err := s.messenger.SendEmbed(logChannel, s.embed(channelID, recent[i])); err != nil {
			s.logger.Warn("snipe forward failed", zap.String("guild_id", guildID), zap.String("channel_id", logChannel), zap.Error(err))
			continue
		}
		sent++
	}
	reply := discord.NewEmbed("🕵️ Sniped Messages Sent", fmt.Sprintf("Sent %d deleted messages from the last %s to the mod logs.", sent, period), s.colors.Success, s.clock.Now())
	if err := s.messenger.SendEmbed(channelID, reply); err != nil {
		s.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return sent, nil
}

func (s *Service) embed(channelID string, entry Deleted) *discordgo.MessageEmbed {
	content := entry.Content
	if content == "" {
		content = "*[no content]*"
	}
	embed := discord.NewEmbed("🕵️ Deleted Message", content, s.colors.Action, entry.At,
		&discordgo.MessageEmbedField{Name: "Channel", Value: discord.ChannelMention(channelID), Inline: true})
	embed.Author = &discordgo.MessageEmbedAuthor{Name: entry.AuthorTag, IconURL: entry.AvatarURL}
	switch len(entry.Attachments) {
	case 0:
	case 1:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Attachment", Value: entry.Attachments[0]})
	default:
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Attachments", Value: strings.Join(entry.Attachments, "\n")})
	}
	if len(entry.Attachments) > 0 {
		embed.Image = &discordgo.MessageEmbedImage{URL: entry.Attachments[0]}
	}
	return embed
}
