package moderation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/discord"
)

// AppealNotice DMs a member banned outside the pipeline (for example from
// the client) with the reason found in the audit trail and the appeal link.
// It returns whether the DM went through.
func (p *Pipeline) AppealNotice(ctx context.Context, trail discord.AuditTrail, guildID, guildName string, user *discordgo.User) bool {
	if user == nil || user.Bot || p.IssuedBan(guildID, user.ID) {
		return false
	}
	moderator, reason := "", DefaultReason
	moderatorID, auditReason, err := trail.BanEntry(guildID, user.ID)
	if err != nil {
		p.logger.Debug("ban audit lookup failed", zap.String("guild_id", guildID), zap.Error(err))
	}
	if moderatorID != "" {
		moderator = discord.Mention(moderatorID)
		if mod, err := p.platform.User(moderatorID); err == nil && mod != nil {
			moderator = discord.Tag(mod)
		}
	}
	if auditReason != "" {
		reason = auditReason
	}
	return p.notify(user.ID, p.banNotice(ctx, guildID, guildName, reason, moderator))
}

func (p *Pipeline) banNotice(ctx context.Context, guildID, guildName, reason, moderator string) *discordgo.MessageEmbed {
	if guildName == "" {
		guildName = "the server"
	}
	embed := p.embed("You were banned from the server", fmt.Sprintf(
		"You were banned from **%s**.\n**Reason:** %s\n\nIf you believe this was a mistake or want another chance you can appeal right here:\n%s",
		guildName, reason, p.appealLink(ctx, guildID)), p.colors.Action)
	if moderator != "" {
		embed.Footer = &discordgo.MessageEmbedFooter{Text: "Banned by: " + moderator}
	}
	return embed
}
