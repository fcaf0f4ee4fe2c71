package audit

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"warden/internal/discord"
	"warden/internal/storage"
)

const (
	ActionBan        = "ban"
	ActionUnban      = "unban"
	ActionKick       = "kick"
	ActionMute       = "mute"
	ActionUnmute     = "unmute"
	ActionWarn       = "warn"
	ActionClearWarn  = "clearwarn"
	ActionClearWarns = "clearwarns"
	ActionJail       = "jail"
	ActionUnjail     = "unjail"
	ActionAutoUnjail = "auto_unjail"
	ActionPurge      = "purge"
	ActionRoleAdd    = "role_add"
	ActionRoleRemove = "role_remove"
)

type Store interface {
	AddModAction(ctx context.Context, entry storage.ModAction) error
}

// Entry is one moderation event. Details holds action-specific context such
// as a mute duration or a case id.
type Entry struct {
	GuildID     string
	Action      string
	TargetID    string
	TargetName  string
	ModeratorID string
	Reason      string
	Details     string
}

type Logger struct {
	store  Store
	logger *zap.Logger
	notify func(context.Context, Entry, storage.ModAction)
	now    func() time.Time
}

func NewLogger(store Store, logger *zap.Logger) *Logger {
	return &Logger{store: store, logger: logger, now: time.Now}
}

func (l *Logger) SetNotifier(notify func(context.Context, Entry, storage.ModAction)) {
	l.notify = notify
}

// Log persists the entry, forwards it to the notifier and writes a
// "moderation" log line. Persistence failures are logged and swallowed.
func (l *Logger) Log(ctx context.Context, entry Entry) storage.ModAction {
	record := storage.ModAction{
		ID:          uuid.NewString(),
		GuildID:     entry.GuildID,
		Action:      entry.Action,
		TargetID:    entry.TargetID,
		ModeratorID: entry.ModeratorID,
		Reason:      entry.Reason,
		Details:     entry.Details,
		CreatedAt:   l.now(),
	}
	if l.store != nil {
		if err := l.store.AddModAction(ctx, record); err != nil {
			l.logger.Warn("moderation record failed", zap.String("guild_id", entry.GuildID), zap.Error(err))
		}
	}
	if l.notify != nil {
		l.notify(ctx, entry, record)
	}
	l.logger.Info("moderation",
		zap.String("id", record.ID),
		zap.String("guild_id", entry.GuildID),
		zap.String("action", entry.Action),
		zap.String("target_id", entry.TargetID),
		zap.String("moderator_id", entry.ModeratorID),
		zap.String("reason", entry.Reason),
		zap.String("details", entry.Details),
	)
	return record
}

// ChannelNotifier posts every entry to the guild's log channel. Guilds
// without a log channel are skipped.
func ChannelNotifier(logChannel func(ctx context.Context, guildID string) string, messenger discord.Messenger, color int, logger *zap.Logger) func(context.Context, Entry, storage.ModAction) {
	return func(ctx context.Context, entry Entry, record storage.ModAction) {
		channelID := logChannel(ctx, entry.GuildID)
		if channelID == "" {
			return
		}
		if err := messenger.SendEmbed(channelID, Embed(entry, record, color)); err != nil {
			logger.Warn("moderation log delivery failed", zap.String("guild_id", entry.GuildID), zap.String("channel_id", channelID), zap.Error(err))
		}
	}
}

func Embed(entry Entry, record storage.ModAction, color int) *discordgo.MessageEmbed {
	target := entry.TargetName
	if target == "" {
		target = entry.TargetID
	}
	if entry.TargetID != "" {
		target = fmt.Sprintf("%s (`%s`)", target, entry.TargetID)
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Target", Value: orDash(target), Inline: true},
		{Name: "Moderator", Value: mention(entry.ModeratorID), Inline: true},
		{Name: "Reason", Value: orDash(entry.Reason), Inline: false},
	}
	if entry.Details != "" {
		fields = append(fields, &discordgo.MessageEmbedField{Name: "Details", Value: entry.Details, Inline: false})
	}
	return &discordgo.MessageEmbed{
		Title:     Title(entry.Action),
		Color:     color,
		Fields:    fields,
		Timestamp: record.CreatedAt.Format(time.RFC3339),
		Footer:    &discordgo.MessageEmbedFooter{Text: "Case " + record.ID[:8]},
	}
}

func Title(action string) string {
	switch action {
	case ActionBan:
		return "🔨 Member Banned"
	case ActionUnban:
		return "✅ Member Unbanned"
	case ActionKick:
		return "👢 Member Kicked"
	case ActionMute:
		return "🔇 Member Muted"
	case ActionUnmute:
		return "🔊 Member Unmuted"
	case ActionWarn:
		return "⚠️ Member Warned"
	case ActionClearWarn:
		return "🧹 Warning Removed"
	case ActionClearWarns:
		return "🧹 Warnings Cleared"
	case ActionJail:
		return "🚔 Member Jailed"
	case ActionUnjail:
		return "🔓 Member Unjailed"
	case ActionAutoUnjail:
		return "⏰ Auto Unjailed"
	case ActionPurge:
		return "🗑️ Messages Purged"
	case ActionRoleAdd:
		return "➕ Role Added"
	case ActionRoleRemove:
		return "➖ Role Removed"
	case "":
		return "Moderation"
	default:
		return strings.ToUpper(action[:1]) + action[1:]
	}
}

func mention(userID string) string {
	if userID == "" {
		return "System"
	}
	return "<@" + userID + ">"
}

func orDash(value string) string {
	if value == "" {
		return "-"
	}
	return value
}
