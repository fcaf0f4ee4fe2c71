package moderation

import (
	"context"
	"fmt"

	"github.com/bwmarrin/discordgo"

	"warden/internal/discord"
)

func (p *Pipeline) confirmation(action Action, req Request, result Result, outcome Outcome) *discordgo.MessageEmbed {
	user := outcome.Target.User
	tag := discord.Tag(user)
	switch action {
	case Ban:
		embed := p.embed("🚫 User Banned", fmt.Sprintf("**%s** has been banned.\n**Reason:** %s", tag, result.Reason), p.colors.Action)
		embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(req.Actor), IconURL: req.Actor.AvatarURL("")}
		return embed
	case Kick:
		return p.embed("👢 User Kicked", fmt.Sprintf("**%s** has been kicked.\n**Reason:** %s", tag, result.Reason), p.colors.Action)
	case Mute:
		if result.DurationText == "" {
			return p.embed("🔇 User Muted (Indefinite)", fmt.Sprintf("**%s** muted indefinitely.\n**Reason:** %s", tag, result.Reason), p.colors.Warning)
		}
		return p.embed("🔇 User Muted", fmt.Sprintf("**%s** muted for **%s**.\n**Reason:** %s", tag, result.DurationText, result.Reason), p.colors.Warning)
	case Unmute:
		return p.embed("🔊 User Unmuted", fmt.Sprintf("**%s** has been unmuted.\n**Reason:** %s", tag, result.Reason), p.colors.Success)
	case Warn:
		return p.embed("⚠️ Warn Issued", fmt.Sprintf("User: %s (`%s`)\nModerator: %s\nCase ID: `%d`\nReason: %s\nTotal warns: %d",
			tag, user.ID, discord.Tag(req.Actor), outcome.CaseID, result.Reason, outcome.Count), p.colors.Warning)
	default:
		return p.embed("✅ Done", tag, p.colors.Success)
	}
}

// notice is the direct message sent to the target.
func (p *Pipeline) notice(ctx context.Context, action Action, req Request, result Result, outcome Outcome) *discordgo.MessageEmbed {
	guild := req.GuildName
	if guild == "" {
		guild = "the server"
	}
	switch action {
	case Ban:
		return p.banNotice(ctx, req.GuildID, req.GuildName, result.Reason, discord.Tag(req.Actor))
	case Kick:
		return p.embed("👢 You were kicked", fmt.Sprintf("You were kicked from **%s**.\n**Reason:** %s", guild, result.Reason), p.colors.Action)
	case Mute:
		if result.DurationText == "" {
			return p.embed("🔇 You were muted", fmt.Sprintf("You were muted indefinitely in **%s**.\n**Reason:** %s", guild, result.Reason), p.colors.Warning)
		}
		return p.embed("🔇 You were muted", fmt.Sprintf("You were muted in **%s** for **%s**.\n**Reason:** %s", guild, result.DurationText, result.Reason), p.colors.Warning)
	case Unmute:
		return p.embed("🔊 You were unmuted", fmt.Sprintf("You were unmuted in **%s**.\n**Reason:** %s", guild, result.Reason), p.colors.Success)
	case Warn:
		return p.embed("⚠️ You Have Been Warned", fmt.Sprintf("You were warned in **%s**.\n\n**Moderator:** %s\n**Reason:** %s\n**Case ID:** `%d`\n**Total Warnings:** %d",
			guild, discord.Tag(req.Actor), result.Reason, outcome.CaseID, outcome.Count), p.colors.Warning)
	default:
		return nil
	}
}

// NoAppealLink replaces the appeal link for guilds that never set one.
const NoAppealLink = "No appeal form set by server admins"

func (p *Pipeline) appealLink(ctx context.Context, guildID string) string {
	if p.settings == nil {
		return NoAppealLink
	}
	link := p.settings.Get(ctx, guildID).AppealLink
	if link == "" {
		return NoAppealLink
	}
	return link
}
