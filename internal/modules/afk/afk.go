// Package afk tracks members who stepped away and answers mentions of them.
package afk

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/storage"
	"warden/internal/utils"
)

const DefaultReason = "AFK"

type Store interface {
	SetAFK(ctx context.Context, status storage.AFKStatus) error
	GetAFK(ctx context.Context, userID string) (storage.AFKStatus, bool, error)
	DeleteAFK(ctx context.Context, userID string) error
}

type Service struct {
	store     Store
	messenger discord.Messenger
	clock     clock.Clock
	colors    config.EmbedColors
	logger    *zap.Logger
	locks     *utils.KeyedMutex
}

func New(store Store, messenger discord.Messenger, colors config.EmbedColors, logger *zap.Logger) *Service {
	return &Service{
		store:     store,
		messenger: messenger,
		clock:     clock.Real(),
		colors:    colors,
		logger:    logger,
		locks:     utils.NewKeyedMutex(),
	}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

func (s *Service) Set(ctx context.Context, channelID string, user *discordgo.User, reason string) error {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		reason = DefaultReason
	}
	unlock := s.locks.Lock(user.ID)
	defer unlock()
	if err := s.store.SetAFK(ctx, storage.AFKStatus{UserID: user.ID, Reason: reason, Since: s.clock.Now()}); err != nil {
		return err
	}
	embed := discord.NewEmbed("💤 AFK Activated", fmt.Sprintf("%s, you are now AFK.\n**Reason:** %s", discord.Mention(user.ID), reason), s.colors.Action, s.clock.Now())
	embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(user), IconURL: user.AvatarURL("")}
	s.send(channelID, embed)
	return nil
}

// Observe runs for every member message before command dispatch. It clears
// the author's AFK status and reports mentioned members who are away.
func (s *Service) Observe(ctx context.Context, channelID string, author *discordgo.User, mentions []*discordgo.User) {
	if author == nil || author.Bot {
		return
	}
	if status, ok := s.clear(ctx, author.ID); ok {
		embed := discord.NewEmbed("✅ Welcome Back!", fmt.Sprintf("%s, you are no longer AFK.\n**Reason was:** %s", discord.Mention(author.ID), status.Reason), s.colors.Success, s.clock.Now())
		embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(author), IconURL: author.AvatarURL("")}
		s.send(channelID, embed)
	}

	seen := make(map[string]struct{}, len(mentions))
	for _, user := range mentions {
		if user == nil || user.ID == author.ID {
			continue
		}
		if _, dup := seen[user.ID]; dup {
			continue
		}
		seen[user.ID] = struct{}{}
		status, found, err := s.store.GetAFK(ctx, user.ID)
		if err != nil {
			s.logger.Warn("afk lookup failed", zap.String("user_id", user.ID), zap.Error(err))
			continue
		}
		if !found {
			continue
		}
		embed := discord.NewEmbed("💤 User is AFK", fmt.Sprintf("%s is currently AFK.\n**Reason:** %s\n**Since:** %s",
			discord.Mention(user.ID), status.Reason, Since(s.clock.Now().Sub(status.Since))), s.colors.Warning, s.clock.Now())
		embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(user), IconURL: user.AvatarURL("")}
		s.send(channelID, embed)
	}
}

func (s *Service) clear(ctx context.Context, userID string) (storage.AFKStatus, bool) {
	unlock := s.locks.Lock(userID)
	defer unlock()
	status, found, err := s.store.GetAFK(ctx, userID)
	if err != nil {
		s.logger.Warn("afk lookup failed", zap.String("user_id", userID), zap.Error(err))
		return storage.AFKStatus{}, false
	}
	if !found {
		return storage.AFKStatus{}, false
	}
	if err := s.store.DeleteAFK(ctx, userID); err != nil {
		s.logger.Warn("afk clear failed", zap.String("user_id", userID), zap.Error(err))
		return storage.AFKStatus{}, false
	}
	return status, true
}

func (s *Service) send(channelID string, embed *discordgo.MessageEmbed) {
	if err := s.messenger.SendEmbed(channelID, embed); err != nil {
		s.logger.Warn("afk notice failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// Since renders how long ago a member went away: "just now", "Nm ago" or
// "Hh Mm ago".
func Since(d time.Duration) string {
	mins := int(d / time.Minute)
	hrs := mins / 60
	switch {
	case hrs > 0:
		return fmt.Sprintf("%dh %dm ago", hrs, mins%60)
	case mins > 0:
		return fmt.Sprintf("%dm ago", mins)
	default:
		return "just now"
	}
}
