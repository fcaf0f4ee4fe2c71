// Package timezone stores a member's IANA zone and reports their local time.
package timezone

import (
	"context"
	_ "embed"
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/discord"
)

//go:embed zones.txt
var zoneList string

// Zones is the bundled list of IANA zone names, sorted.
var Zones = strings.Fields(zoneList)

// previewLimit caps how many candidates an ambiguous keyword lists.
const previewLimit = 10

type Store interface {
	SetTimezone(ctx context.Context, userID, zone string) error
	GetTimezone(ctx context.Context, userID string) (string, error)
}

type Platform interface {
	Members(guildID string) ([]*discordgo.Member, error)
	Member(guildID, userID string) (*discordgo.Member, error)
	SendText(channelID, content string) error
}

type Service struct {
	store    Store
	platform Platform
	clock    clock.Clock
	logger   *zap.Logger
}

func New(store Store, platform Platform, logger *zap.Logger) *Service {
	return &Service{store: store, platform: platform, clock: clock.Real(), logger: logger}
}

func (s *Service) WithClock(c clock.Clock) {
	s.clock = c
}

// Match returns the zone equal to keyword ignoring case, otherwise every zone
// containing it.
func Match(keyword string) []string {
	keyword = strings.ToLower(strings.TrimSpace(keyword))
	if keyword == "" {
		return nil
	}
	var matches []string
	for _, zone := range Zones {
		lower := strings.ToLower(zone)
		if lower == keyword {
			return []string{zone}
		}
		if strings.Contains(lower, keyword) {
			matches = append(matches, zone)
		}
	}
	return matches
}

// Handle runs `tz set <keyword>`, `tz <member>` and `tz`.
func (s *Service) Handle(ctx context.Context, guildID, channelID string, author *discordgo.User, args []string, mentions []*discordgo.User) error {
	if len(args) >= 2 && strings.EqualFold(args[0], "set") {
		return s.set(ctx, channelID, author.ID, strings.Join(args[1:], " "))
	}
	if len(args) == 0 {
		zone, err := s.store.GetTimezone(ctx, author.ID)
		if err != nil {
			return err
		}
		if zone == "" {
			return s.reply(channelID, "⚠️ You haven't set a timezone yet. Use `tz set <location>`.\nExample: `tz set London`")
		}
		local, err := s.localTime(zone)
		if err != nil {
			return s.reply(channelID, fmt.Sprintf("⚠️ Error fetching time: %v", err))
		}
		return s.reply(channelID, fmt.Sprintf("🕒 Your current local time is **%s** (%s)", local, zone))
	}

	target := s.find(guildID, strings.Join(args, " "), mentions)
	if target == nil {
		return s.reply(channelID, "⚠️ Could not find that user.")
	}
	name := discord.DisplayName(target)
	zone, err := s.store.GetTimezone(ctx, target.User.ID)
	if err != nil {
		return err
	}
	if zone == "" {
		return s.reply(channelID, fmt.Sprintf("🌍 %s hasn't set a timezone.", name))
	}
	local, err := s.localTime(zone)
	if err != nil {
		return s.reply(channelID, fmt.Sprintf("⚠️ Error fetching %s's time: %v", name, err))
	}
	return s.reply(channelID, fmt.Sprintf("🕒 %s's local time is **%s** (%s)", name, local, zone))
}

func (s *Service) set(ctx context.Context, channelID, userID, keyword string) error {
	matches := Match(keyword)
	switch {
	case len(matches) == 0:
		return s.reply(channelID, "⚠️ No timezone found with that keyword. Try something like `Europe/London` or `Africa/Cairo`.")
	case len(matches) > 1:
		if len(matches) > previewLimit {
			matches = matches[:previewLimit]
		}
		return s.reply(channelID, fmt.Sprintf("⚠️ Multiple matches found, be more specific:\n```%s```", strings.Join(matches, "\n")))
	}
	if err := s.store.SetTimezone(ctx, userID, matches[0]); err != nil {
		return err
	}
	return s.reply(channelID, fmt.Sprintf("✅ Timezone set to **%s**.", matches[0]))
}

// find prefers the first mention, then an exact username or display name
// ignoring case.
func (s *Service) find(guildID, name string, mentions []*discordgo.User) *discordgo.Member {
	if len(mentions) > 0 && mentions[0] != nil {
		member, err := s.platform.Member(guildID, mentions[0].ID)
		if err == nil {
			return member
		}
		return &discordgo.Member{User: mentions[0]}
	}
	members, err := s.platform.Members(guildID)
	if err != nil {
		s.logger.Warn("member list failed", zap.String("guild_id", guildID), zap.Error(err))
		return nil
	}
	for _, member := range members {
		if member.User == nil {
			continue
		}
		if strings.EqualFold(member.User.Username, name) || strings.EqualFold(discord.DisplayName(member), name) {
			return member
		}
	}
	return nil
}

func (s *Service) localTime(zone string) (string, error) {
	loc, err := time.LoadLocation(zone)
	if err != nil {
		return "", err
	}
	return s.clock.Now().In(loc).Format("15:04:05"), nil
}

func (s *Service) reply(channelID, content string) error {
	if err := s.platform.SendText(channelID, content); err != nil {
		s.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
	return nil
}
