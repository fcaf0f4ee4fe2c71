// Package reminder delivers one-shot reminders by direct message.
package reminder

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/duration"
)

type Service struct {
	messenger discord.Messenger
	clock     clock.Clock
	max       time.Duration
	colors    config.EmbedColors
	logger    *zap.Logger

	mu     sync.Mutex
	nextID uint64
	timers map[uint64]clock.Timer
}

func New(messenger discord.Messenger, cfg config.ReminderConfig, colors config.EmbedColors, logger *zap.Logger) *Service {
	maxHours := cfg.MaxHours
	if maxHours <= 0 {
		maxHours = 24
	}
	return &Service{
		messenger: messenger,
		clock:     clock.Real(),
		max:       time.Duration(maxHours) * time.Hour,
		colors:    colors,
		logger:    logger,
		timers:    make(map[uint64]clock.Timer),
	}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// Remind handles `remind <time> <text>`. The time uses the compound grammar
// and may not exceed the configured maximum.
func (s *Service) Remind(channelID string, author *discordgo.User, args []string) {
	if len(args) < 2 {
		s.sendEmbed(channelID, discord.NewEmbed("📝 Usage", "`remind [time] [reminder]`\nExample: `remind 10m Drink water`", s.colors.Warning, s.clock.Now()))
		return
	}
	wait, ok := duration.ParseCompound(args[0])
	if !ok || wait > s.max {
		s.sendText(channelID, fmt.Sprintf("❌ Invalid time or exceeds %dh.", int(s.max/time.Hour)))
		return
	}
	text := strings.Join(args[1:], " ")
	s.sendEmbed(channelID, discord.NewEmbed("", fmt.Sprintf("✅ I'll remind you in **%s** about: **%s**", args[0], text), s.colors.Success, s.clock.Now()))
	s.schedule(wait, func() { s.deliver(channelID, author.ID, args[0], text) })
}

func (s *Service) schedule(wait time.Duration, fn func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	id := s.nextID
	s.timers[id] = s.clock.AfterFunc(wait, func() {
		s.mu.Lock()
		delete(s.timers, id)
		s.mu.Unlock()
		fn()
	})
}

func (s *Service) deliver(channelID, userID, after, text string) {
	embed := discord.NewEmbed("", fmt.Sprintf("⏰ Reminder: **%s** (set %s ago)", text, after), s.colors.Action, s.clock.Now())
	err := s.messenger.DirectMessage(userID, embed)
	if err == nil {
		return
	}
	s.logger.Debug("reminder dm failed", zap.String("user_id", userID), zap.Error(err))
	s.sendText(channelID, fmt.Sprintf("%s I couldn't DM you, but here's your reminder:\n**%s**", discord.Mention(userID), text))
}

// Pending reports reminders that have not fired yet.
func (s *Service) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.timers)
}

// Stop drops every pending reminder.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, timer := range s.timers {
		timer.Stop()
		delete(s.timers, id)
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
