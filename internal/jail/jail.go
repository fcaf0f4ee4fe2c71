// Package jail quarantines members to a single channel through a jail role
// and a per-channel permission overlay, with optional timed release.
package jail

import (
	"context"
	"errors"
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
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
	"warden/internal/storage"
)

var (
	ErrNotConfigured = errors.New("jail not configured")
	ErrNotJailed     = errors.New("member not jailed")
)

const (
	textPerms  = discordgo.PermissionViewChannel | discordgo.PermissionSendMessages
	voicePerms = discordgo.PermissionVoiceConnect | discordgo.PermissionVoiceSpeak
)

type Store interface {
	SaveJail(ctx context.Context, record storage.JailRecord) error
	DeleteJail(ctx context.Context, guildID, userID string) error
	ListJails(ctx context.Context) ([]storage.JailRecord, error)
}

// Guard is the target resolution and permission check shared with the
// moderation pipeline.
type Guard interface {
	Resolver() *resolve.Resolver
	ActorPermissions(req moderation.Request) int64
	Guard(req moderation.Request, actorPerms int64, target *discordgo.Member, verb, past string) moderation.Status
}

type session struct {
	timer  clock.Timer
	gen    uint64
	record storage.JailRecord
}

type Engine struct {
	platform moderation.Platform
	settings moderation.SettingsSource
	store    Store
	audit    *audit.Logger
	guard    Guard
	clock    clock.Clock
	colors   config.EmbedColors
	logger   *zap.Logger

	mu       sync.Mutex
	gen      uint64
	sessions map[string]session
}

func New(platform moderation.Platform, settings moderation.SettingsSource, store Store, auditLogger *audit.Logger, guard Guard, colors config.EmbedColors, logger *zap.Logger) *Engine {
	return &Engine{
		platform: platform,
		settings: settings,
		store:    store,
		audit:    auditLogger,
		guard:    guard,
		clock:    clock.Real(),
		colors:   colors,
		logger:   logger,
		sessions: make(map[string]session),
	}
}

func (e *Engine) WithClock(c clock.Clock) {
	e.clock = c
}

// Jail grants the jail role, sweeps every text and voice channel's overlay for
// that role and, when the second argument is a duration, schedules the release.
func (e *Engine) Jail(ctx context.Context, req moderation.Request) (moderation.Status, error) {
	cfg := e.settings.Get(ctx, req.GuildID)
	if cfg.JailChannel == "" || cfg.JailRole == "" {
		return moderation.Failed, moderation.NewUserError(ErrNotConfigured, "You must set both a jail channel (`jailset`) and a jail role (`jailrole`) first.")
	}
	if len(req.Args) == 0 {
		return moderation.Failed, moderation.Usage("Usage: `jail <user> [duration] [reason]`")
	}
	target, ok := e.guard.Resolver().Member(req.GuildID, req.Args[0], req.Mentions)
	if !ok {
		return moderation.Failed, moderation.NewUserError(moderation.ErrNoTargets, "Could not find that user.")
	}
	channels, err := e.platform.Channels(req.GuildID)
	if err != nil {
		return moderation.Failed, err
	}
	roles, err := e.platform.Roles(req.GuildID)
	if err != nil {
		return moderation.Failed, err
	}
	if !hasChannel(channels, cfg.JailChannel) || !hasRole(roles, cfg.JailRole) {
		return moderation.Failed, moderation.NewUserError(ErrNotConfigured, "Jail role or channel is invalid. Please set them again.")
	}

	if status := e.guard.Guard(req, e.guard.ActorPermissions(req), target, "jail", "jailed"); status != moderation.Done {
		return status, nil
	}

	rest := req.Args[1:]
	var length time.Duration
	display := "Infinite"
	if len(rest) > 0 {
		if d, ok := duration.Parse(rest[0]); ok {
			length, display = d, rest[0]
			rest = rest[1:]
		}
	}
	reason := moderation.DefaultReason
	if len(rest) > 0 {
		reason = strings.Join(rest, " ")
	}

	user := target.User
	if err := e.platform.AddRole(req.GuildID, user.ID, cfg.JailRole); err != nil {
		return moderation.Failed, moderation.NewUserError(err, fmt.Sprintf("Failed to jail %s. Error: %v", discord.Tag(user), err))
	}
	e.sweep(req.GuildID, channels, cfg.JailChannel, cfg.JailRole)

	embed := e.embed("🚨 User Jailed", fmt.Sprintf("**%s** has been jailed.\n**Reason:** %s\n**Duration:** %s", discord.Tag(user), reason, display), e.colors.Action)
	embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(req.Actor), IconURL: req.Actor.AvatarURL("")}
	e.send(req.ChannelID, embed)
	e.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      audit.ActionJail,
		TargetID:    user.ID,
		TargetName:  discord.Tag(user),
		ModeratorID: req.Actor.ID,
		Reason:      reason,
		Details:     "Duration: " + display,
	})

	if length <= 0 {
		e.cancel(req.GuildID, user.ID)
		if err := e.store.DeleteJail(ctx, req.GuildID, user.ID); err != nil {
			e.logger.Warn("jail record delete failed", zap.String("guild_id", req.GuildID), zap.String("user_id", user.ID), zap.Error(err))
		}
		return moderation.Done, nil
	}
	record := storage.JailRecord{
		GuildID:   req.GuildID,
		UserID:    user.ID,
		ChannelID: req.ChannelID,
		RoleID:    cfg.JailRole,
		Reason:    reason,
		ReleaseAt: e.clock.Now().Add(length),
	}
	if err := e.store.SaveJail(ctx, record); err != nil {
		e.logger.Warn("jail record save failed", zap.String("guild_id", req.GuildID), zap.String("user_id", user.ID), zap.Error(err))
	}
	e.schedule(record, length)
	return moderation.Done, nil
}

// Unjail revokes the jail role. The channel overlay stays in place; it only
// applies to holders of the role.
func (e *Engine) Unjail(ctx context.Context, req moderation.Request) error {
	if len(req.Args) == 0 {
		return moderation.Usage("Usage: `unjail <user> [reason]`")
	}
	cfg := e.settings.Get(ctx, req.GuildID)
	roles, err := e.platform.Roles(req.GuildID)
	if err != nil {
		return err
	}
	if cfg.JailRole == "" || !hasRole(roles, cfg.JailRole) {
		return moderation.NewUserError(ErrNotConfigured, "Jail role is not set or invalid.")
	}
	target, ok := e.guard.Resolver().Member(req.GuildID, req.Args[0], req.Mentions)
	if !ok {
		return moderation.NewUserError(moderation.ErrNoTargets, "Could not find that user.")
	}
	user := target.User
	mention := discord.Mention(user.ID)
	if !discord.HasRole(target, cfg.JailRole) {
		return moderation.NewUserError(ErrNotJailed, mention+" is not jailed.")
	}
	reason := moderation.DefaultReason
	if len(req.Args) > 1 {
		reason = strings.Join(req.Args[1:], " ")
	}

	pending, scheduled := e.cancel(req.GuildID, user.ID)
	if err := e.platform.RemoveRole(req.GuildID, user.ID, cfg.JailRole); err != nil {
		if scheduled {
			e.schedule(pending, remaining(pending, e.clock.Now()))
		}
		return moderation.NewUserError(err, fmt.Sprintf("Failed to unjail. Error: %v", err))
	}
	if err := e.store.DeleteJail(ctx, req.GuildID, user.ID); err != nil {
		e.logger.Warn("jail record delete failed", zap.String("guild_id", req.GuildID), zap.String("user_id", user.ID), zap.Error(err))
	}

	e.send(req.ChannelID, e.embed("✅ User Unjailed", fmt.Sprintf("%s has been released from jail.\n**Reason:** %s", mention, reason), e.colors.Success))
	e.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      audit.ActionUnjail,
		TargetID:    user.ID,
		TargetName:  discord.Tag(user),
		ModeratorID: req.Actor.ID,
		Reason:      reason,
	})
	return nil
}

// Restore reschedules persisted timed jails. Overdue ones are released on the
// next tick.
func (e *Engine) Restore(ctx context.Context) (int, error) {
	records, err := e.store.ListJails(ctx)
	if err != nil {
		return 0, err
	}
	now := e.clock.Now()
	for _, record := range records {
		e.schedule(record, remaining(record, now))
	}
	return len(records), nil
}

func remaining(record storage.JailRecord, now time.Time) time.Duration {
	if wait := record.ReleaseAt.Sub(now); wait > 0 {
		return wait
	}
	return 0
}

// Stop cancels every pending release. Persisted records are kept for Restore.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for key, s := range e.sessions {
		s.timer.Stop()
		delete(e.sessions, key)
	}
}

func (e *Engine) schedule(record storage.JailRecord, wait time.Duration) {
	key := record.GuildID + "|" + record.UserID
	e.mu.Lock()
	defer e.mu.Unlock()
	if prev, ok := e.sessions[key]; ok {
		prev.timer.Stop()
	}
	e.gen++
	gen := e.gen
	e.sessions[key] = session{
		gen:    gen,
		record: record,
		timer:  e.clock.AfterFunc(wait, func() { e.expire(record, gen) }),
	}
}

// cancel stops the pending release for the member and returns its record.
func (e *Engine) cancel(guildID, userID string) (storage.JailRecord, bool) {
	key := guildID + "|" + userID
	e.mu.Lock()
	defer e.mu.Unlock()
	s, ok := e.sessions[key]
	if !ok {
		return storage.JailRecord{}, false
	}
	s.timer.Stop()
	delete(e.sessions, key)
	return s.record, true
}

func (e *Engine) expire(record storage.JailRecord, gen uint64) {
	key := record.GuildID + "|" + record.UserID
	e.mu.Lock()
	s, ok := e.sessions[key]
	if !ok || s.gen != gen {
		e.mu.Unlock()
		return
	}
	delete(e.sessions, key)
	e.mu.Unlock()

	ctx := context.Background()
	logger := e.logger.With(zap.String("guild_id", record.GuildID), zap.String("user_id", record.UserID))
	if err := e.store.DeleteJail(ctx, record.GuildID, record.UserID); err != nil {
		logger.Warn("jail record delete failed", zap.Error(err))
	}
	member, err := e.platform.Member(record.GuildID, record.UserID)
	if err != nil {
		if !errors.Is(err, discord.ErrMemberNotFound) {
			logger.Warn("auto unjail lookup failed", zap.Error(err))
		}
		return
	}
	if !discord.HasRole(member, record.RoleID) {
		return
	}
	if err := e.platform.RemoveRole(record.GuildID, record.UserID, record.RoleID); err != nil {
		logger.Warn("auto unjail failed", zap.Error(err))
		return
	}
	e.send(record.ChannelID, e.embed("✅ Auto Unjailed", fmt.Sprintf("%s has been unjailed (time expired).", discord.Mention(record.UserID)), e.colors.Success))
	e.audit.Log(ctx, audit.Entry{
		GuildID:    record.GuildID,
		Action:     audit.ActionAutoUnjail,
		TargetID:   record.UserID,
		TargetName: discord.Tag(member.User),
		Reason:     "Jail time expired",
	})
}

func (e *Engine) sweep(guildID string, channels []*discordgo.Channel, jailChannel, roleID string) {
	failed := 0
	for _, ch := range channels {
		var perms int64
		switch ch.Type {
		case discordgo.ChannelTypeGuildText, discordgo.ChannelTypeGuildNews:
			perms = textPerms
		case discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice:
			perms = voicePerms
		default:
			continue
		}
		var err error
		if ch.ID == jailChannel {
			err = e.platform.SetRoleOverwrite(ch.ID, roleID, perms, 0)
		} else {
			err = e.platform.SetRoleOverwrite(ch.ID, roleID, 0, perms)
		}
		if err != nil {
			failed++
			e.logger.Debug("jail overwrite failed", zap.String("channel_id", ch.ID), zap.Error(err))
		}
	}
	if failed > 0 {
		e.logger.Warn("jail sweep incomplete", zap.String("guild_id", guildID), zap.Int("failed", failed))
	}
}

func (e *Engine) send(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if err := e.platform.SendEmbed(channelID, embed); err != nil {
		e.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (e *Engine) embed(title, description string, color int) *discordgo.MessageEmbed {
	return discord.NewEmbed(title, description, color, e.clock.Now())
}

func hasChannel(channels []*discordgo.Channel, id string) bool {
	for _, ch := range channels {
		if ch.ID == id {
			return true
		}
	}
	return false
}

func hasRole(roles []*discordgo.Role, id string) bool {
	for _, role := range roles {
		if role.ID == id {
			return true
		}
	}
	return false
}
