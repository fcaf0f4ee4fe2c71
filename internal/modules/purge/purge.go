// Package purge bulk-deletes channel history and keeps a transcript in the
// guild's purge log channel.
package purge

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
)

const (
	// pageSize is both the history page size and the bulk delete limit.
	pageSize = 100
	// scanLimit bounds how far back a per-user purge looks.
	scanLimit = 1000
	// transcriptLimit keeps the transcript inside one embed description.
	transcriptLimit = 3800
	// bulkWindow is the age past which messages must be deleted one by one.
	bulkWindow = 14*24*time.Hour - time.Minute
)

var ErrNoPurgeChannel = errors.New("purge log channel not set")

const usage = "Usage: `purge <amount>` or `purge <user> <amount>`"

type Platform interface {
	discord.History
	discord.Messenger
}

type Service struct {
	platform Platform
	settings moderation.SettingsSource
	resolver *resolve.Resolver
	audit    *audit.Logger
	clock    clock.Clock
	colors   config.EmbedColors
	logger   *zap.Logger
}

func New(platform Platform, settings moderation.SettingsSource, resolver *resolve.Resolver, auditLogger *audit.Logger, colors config.EmbedColors, logger *zap.Logger) *Service {
	return &Service{
		platform: platform,
		settings: settings,
		resolver: resolver,
		audit:    auditLogger,
		clock:    clock.Real(),
		colors:   colors,
		logger:   logger,
	}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// Purge handles `purge <amount>` and `purge <user> <amount>` and returns how
// many messages were deleted.
func (s *Service) Purge(ctx context.Context, req moderation.Request) (int, error) {
	logChannel := s.settings.Get(ctx, req.GuildID).PurgeChannel
	if logChannel == "" {
		return 0, moderation.NewUserError(ErrNoPurgeChannel, "No purge log channel set. Use `purgeset #channel` first.")
	}

	var (
		target   *discordgo.Member
		messages []*discordgo.Message
		err      error
	)
	switch {
	case len(req.Args) == 1 && isAmount(req.Args[0]):
		amount, _ := strconv.Atoi(req.Args[0])
		messages, err = s.collect(req.ChannelID, min(amount, scanLimit), "")
	case len(req.Args) == 2 && isAmount(req.Args[1]):
		member, ok := s.resolver.Member(req.GuildID, req.Args[0], req.Mentions)
		if !ok {
			return 0, moderation.NewUserError(moderation.ErrNoTargets, "Could not find that user.")
		}
		target = member
		amount, _ := strconv.Atoi(req.Args[1])
		messages, err = s.collect(req.ChannelID, amount, member.User.ID)
		if err == nil && len(messages) == 0 {
			return 0, moderation.NewUserError(moderation.ErrNoTargets, "No messages found from that user.")
		}
	default:
		return 0, moderation.Usage(usage)
	}
	if err != nil {
		return 0, err
	}

	deleted := 0
	for _, batch := range batches(messages, s.clock.Now().Add(-bulkWindow)) {
		ids := make([]string, 0, len(batch))
		for _, msg := range batch {
			ids = append(ids, msg.ID)
		}
		if err := s.platform.DeleteMessages(req.ChannelID, ids); err != nil {
			if deleted == 0 {
				return 0, moderation.NewUserError(err, fmt.Sprintf("Failed to purge. Error: %v", err))
			}
			s.logger.Warn("purge incomplete", zap.String("guild_id", req.GuildID), zap.String("channel_id", req.ChannelID), zap.Int("deleted", deleted), zap.Error(err))
			break
		}
		deleted += len(ids)
	}
	messages = messages[:deleted]

	channel := discord.ChannelMention(req.ChannelID)
	summary := fmt.Sprintf("Purged %d messages in %s", deleted, channel)
	header := "Channel: " + channel
	details := fmt.Sprintf("Messages: %d", deleted)
	entry := audit.Entry{GuildID: req.GuildID, Action: audit.ActionPurge, ModeratorID: req.Actor.ID}
	if target != nil {
		summary = fmt.Sprintf("Purged %d messages from %s in %s", deleted, discord.Mention(target.User.ID), channel)
		header += "\nUser: " + discord.Tag(target.User)
		entry.TargetID = target.User.ID
		entry.TargetName = discord.Tag(target.User)
	}
	s.send(req.ChannelID, discord.NewEmbed("🧹 Purge", summary, s.colors.Warning, s.clock.Now()))
	if text := Transcript(messages); text != "" {
		s.send(logChannel, discord.NewEmbed("📝 Purge Log", fmt.Sprintf("%s\n\n```\n%s\n```", header, text), s.colors.Warning, s.clock.Now()))
	}
	entry.Details = details + " | Channel: " + channel
	s.audit.Log(ctx, entry)
	return deleted, nil
}

// collect pages back through history, newest first. With authorID set it
// scans at most scanLimit messages for that author.
func (s *Service) collect(channelID string, amount int, authorID string) ([]*discordgo.Message, error) {
	limit := amount
	if authorID != "" {
		limit = scanLimit
	}
	var out []*discordgo.Message
	before := ""
	scanned := 0
	for scanned < limit && len(out) < amount {
		page, err := s.platform.Messages(channelID, min(pageSize, limit-scanned), before)
		if err != nil {
			return nil, err
		}
		if len(page) == 0 {
			break
		}
		for _, msg := range page {
			scanned++
			if authorID == "" || (msg.Author != nil && msg.Author.ID == authorID) {
				out = append(out, msg)
				if len(out) == amount {
					break
				}
			}
		}
		before = page[len(page)-1].ID
	}
	return out, nil
}

// batches splits newest-first messages into bulk deletes of at most pageSize
// and single deletes for messages older than cutoff, preserving order.
func batches(messages []*discordgo.Message, cutoff time.Time) [][]*discordgo.Message {
	split := len(messages)
	for i, msg := range messages {
		if at, err := discordgo.SnowflakeTimestamp(msg.ID); err == nil && at.Before(cutoff) {
			split = i
			break
		}
	}
	var out [][]*discordgo.Message
	for start := 0; start < split; start += pageSize {
		out = append(out, messages[start:min(start+pageSize, split)])
	}
	for i := split; i < len(messages); i++ {
		out = append(out, messages[i:i+1])
	}
	return out
}

// Transcript renders "author: content" lines oldest first, skipping empty
// messages and truncating to fit an embed.
func Transcript(messages []*discordgo.Message) string {
	var b strings.Builder
	for i := len(messages) - 1; i >= 0; i-- {
		msg := messages[i]
		if msg.Content == "" {
			continue
		}
		line := fmt.Sprintf("%s: %s\n", discord.Tag(msg.Author), strings.ReplaceAll(msg.Content, "```", "'''"))
		if b.Len()+len(line) > transcriptLimit {
			b.WriteString("…")
			break
		}
		b.WriteString(line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

func (s *Service) send(channelID string, embed *discordgo.MessageEmbed) {
	if err := s.platform.SendEmbed(channelID, embed); err != nil {
		s.logger.Warn("purge message failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func isAmount(arg string) bool {
	n, err := strconv.Atoi(arg)
	return err == nil && n > 0
}
