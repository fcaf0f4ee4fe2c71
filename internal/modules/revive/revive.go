// Package revive pings a role with a conversation topic on a fixed interval
// to bring a quiet channel back to life.
package revive

import (
	"bufio"
	"context"
	"fmt"
	"math/rand"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/duration"
	"warden/internal/moderation"
	"warden/internal/resolve"
	"warden/internal/storage"
	"warden/internal/utils"
)

var fallbackTopics = []string{
	"What's your favorite movie?",
	"If you could travel anywhere right now, where would you go?",
	"What's the best advice you've ever received?",
	"If you had a superpower, what would it be?",
	"What's your favorite food and why?",
}

// LoadTopics reads one topic per non-blank line. A missing or empty file
// yields the built-in list.
func LoadTopics(path string) []string {
	file, err := os.Open(path)
	if err != nil {
		return fallbackTopics
	}
	defer file.Close()

	var topics []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			topics = append(topics, line)
		}
	}
	if len(topics) == 0 {
		return fallbackTopics
	}
	return topics
}

type Store interface {
	GetReviveSettings(ctx context.Context, guildID string) (storage.ReviveSettings, error)
	UpsertReviveSettings(ctx context.Context, settings storage.ReviveSettings) error
	ListEnabledRevive(ctx context.Context) ([]storage.ReviveSettings, error)
}

type Service struct {
	store     Store
	cron      *cron.Cron
	messenger discord.Messenger
	topics    []string
	clock     clock.Clock
	colors    config.EmbedColors
	logger    *zap.Logger
	locks     *utils.KeyedMutex

	mu      sync.Mutex
	rand    *rand.Rand
	entries map[string]cron.EntryID
}

func New(store Store, scheduler *cron.Cron, messenger discord.Messenger, topics []string, colors config.EmbedColors, logger *zap.Logger) *Service {
	if len(topics) == 0 {
		topics = fallbackTopics
	}
	return &Service{
		store:     store,
		cron:      scheduler,
		messenger: messenger,
		topics:    topics,
		clock:     clock.Real(),
		colors:    colors,
		logger:    logger,
		locks:     utils.NewKeyedMutex(),
		rand:      rand.New(rand.NewSource(time.Now().UnixNano())),
		entries:   make(map[string]cron.EntryID),
	}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// SetRole handles `reviveset <role>`.
func (s *Service) SetRole(ctx context.Context, guildID, channelID string, args []string) error {
	if len(args) == 0 {
		return moderation.Usage("Usage: `reviveset <role>`")
	}
	roleID, ok := resolve.ID(args[0])
	if !ok {
		return moderation.Usage("Usage: `reviveset <role>`")
	}
	unlock := s.locks.Lock(guildID)
	defer unlock()

	current, err := s.store.GetReviveSettings(ctx, guildID)
	if err != nil {
		return err
	}
	current.GuildID = guildID
	current.RoleID = roleID
	if err := s.store.UpsertReviveSettings(ctx, current); err != nil {
		return err
	}
	s.sendEmbed(channelID, discord.NewEmbed("✅ Revive Role Set", "Revive role has been set to "+discord.RoleMention(roleID), s.colors.Action, s.clock.Now()))
	return nil
}

// Toggle handles `revivechat [interval]`. It turns the revive job off when it
// is running, otherwise it starts one in the invoking channel.
func (s *Service) Toggle(ctx context.Context, guildID, channelID string, args []string) error {
	unlock := s.locks.Lock(guildID)
	defer unlock()

	current, err := s.store.GetReviveSettings(ctx, guildID)
	if err != nil {
		return err
	}
	current.GuildID = guildID
	if current.RoleID == "" {
		s.sendEmbed(channelID, discord.NewEmbed("⚠️ Revive Role Not Set", "Please set a revive role first using `reviveset <role>`.", s.colors.Warning, s.clock.Now()))
		return nil
	}

	if current.Enabled {
		s.unschedule(guildID)
		current.Enabled = false
		if err := s.store.UpsertReviveSettings(ctx, current); err != nil {
			return err
		}
		s.sendEmbed(channelID, discord.NewEmbed("❌ Chat revive system disabled", "", s.colors.Error, s.clock.Now()))
		return nil
	}

	if len(args) == 0 {
		s.sendText(channelID, "⏰ Provide the time interval (e.g., `1h`, `30m`, `2h30m`): `revivechat <interval>`")
		return nil
	}
	interval, ok := duration.ParseCompound(args[0])
	if !ok {
		s.sendText(channelID, "❌ Invalid time format. Use formats like `1h`, `30m`, `2h30m`.")
		return nil
	}
	current.Enabled = true
	current.ChannelID = channelID
	current.IntervalText = args[0]
	if err := s.schedule(current, interval); err != nil {
		return err
	}
	if err := s.store.UpsertReviveSettings(ctx, current); err != nil {
		s.unschedule(guildID)
		return err
	}
	s.sendEmbed(channelID, discord.NewEmbed("✅ Chat revive system toggled ON", fmt.Sprintf("Reviving chat every **%s**", current.IntervalText), s.colors.Success, s.clock.Now()))
	return nil
}

// Restore schedules every enabled configuration. Entries with an interval that
// no longer parses are skipped and logged.
func (s *Service) Restore(ctx context.Context) (int, error) {
	enabled, err := s.store.ListEnabledRevive(ctx)
	if err != nil {
		return 0, err
	}
	restored := 0
	for _, settings := range enabled {
		interval, ok := duration.ParseCompound(settings.IntervalText)
		if !ok || settings.RoleID == "" || settings.ChannelID == "" {
			s.logger.Warn("revive restore skipped", zap.String("guild_id", settings.GuildID), zap.String("interval", settings.IntervalText))
			continue
		}
		if err := s.schedule(settings, interval); err != nil {
			s.logger.Warn("revive restore failed", zap.String("guild_id", settings.GuildID), zap.Error(err))
			continue
		}
		restored++
	}
	return restored, nil
}

func (s *Service) Active(guildID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[guildID]
	return ok
}

func (s *Service) schedule(settings storage.ReviveSettings, interval time.Duration) error {
	id, err := s.cron.AddFunc("@every "+interval.String(), func() {
		s.ping(settings.GuildID, settings.ChannelID, settings.RoleID)
	})
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.entries[settings.GuildID]; ok {
		s.cron.Remove(prev)
	}
	s.entries[settings.GuildID] = id
	return nil
}

func (s *Service) unschedule(guildID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if id, ok := s.entries[guildID]; ok {
		s.cron.Remove(id)
		delete(s.entries, guildID)
	}
}

func (s *Service) ping(guildID, channelID, roleID string) {
	s.mu.Lock()
	topic := s.topics[s.rand.Intn(len(s.topics))]
	s.mu.Unlock()
	if err := s.messenger.SendText(channelID, fmt.Sprintf("%s 💬 Chat topic: **%s**", discord.RoleMention(roleID), topic)); err != nil {
		s.logger.Warn("revive ping failed", zap.String("guild_id", guildID), zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *Service) sendEmbed(channelID string, embed *discordgo.MessageEmbed) {
	if err := s.messenger.SendEmbed(channelID, embed); err != nil {
		s.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (s *Service) sendText(channelID, content string) {
	if err := s.messenger.SendText(channelID, content); err != nil {
		s.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}
