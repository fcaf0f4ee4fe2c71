package bot

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/analytics"
	"warden/internal/discord"
	"warden/internal/moderation"
	"warden/internal/resolve"
	"warden/internal/storage"
	"warden/internal/utils"
)

const (
	categoryModeration = "🛠️ Moderation"
	categorySetup      = "⚙️ Setup"
	categoryUtility    = "🔧 Utility"
)

var (
	errChannelNotFound = errors.New("channel not found")
	errRoleNotFound    = errors.New("role not found")
)

func (b *Bot) commands() []*Command {
	return []*Command{
		{Name: "ban", Aliases: []string{"fuckoff", "doom", "apple"}, Category: categoryModeration, Usage: "<users...> [reason]", Summary: "Ban one or more users", Permission: discordgo.PermissionBanMembers, Run: b.action(moderation.Ban)},
		{Name: "unban", Category: categoryModeration, Usage: "<user_id> [reason]", Summary: "Unban a user", Permission: discordgo.PermissionBanMembers, Run: b.unban},
		{Name: "kick", Category: categoryModeration, Usage: "<users...> [reason]", Summary: "Kick one or more users", Permission: discordgo.PermissionKickMembers, Run: b.action(moderation.Kick)},
		{Name: "mute", Aliases: []string{"stfu"}, Category: categoryModeration, Usage: "<users...> [time] [reason]", Summary: "Time out one or more users", Permission: discordgo.PermissionModerateMembers, Run: b.action(moderation.Mute)},
		{Name: "unmute", Category: categoryModeration, Usage: "<users...> [reason]", Summary: "Lift a timeout", Permission: discordgo.PermissionModerateMembers, Run: b.action(moderation.Unmute)},
		{Name: "warn", Category: categoryModeration, Usage: "<users...> [reason]", Summary: "Warn one or more users", Permission: discordgo.PermissionManageMessages, Run: b.action(moderation.Warn)},
		{Name: "warnings", Category: categoryModeration, Usage: "<user>", Summary: "List a user's warnings", Permission: discordgo.PermissionManageMessages, Run: b.pipeline.ShowWarnings},
		{Name: "clearwarn", Category: categoryModeration, Usage: "<user> <case_id>", Summary: "Remove one warning", Permission: discordgo.PermissionManageMessages, Run: b.pipeline.ClearWarning},
		{Name: "clearwarns", Category: categoryModeration, Usage: "<user>", Summary: "Remove all of a user's warnings", Permission: discordgo.PermissionManageMessages, Run: b.pipeline.ClearWarnings},
		{Name: "jail", Category: categoryModeration, Usage: "<user> [time] [reason]", Summary: "Confine a user to the jail channel", Permission: discordgo.PermissionManageRoles, Run: b.jailUser},
		{Name: "unjail", Category: categoryModeration, Usage: "<user> [reason]", Summary: "Release a jailed user", Permission: discordgo.PermissionManageRoles, Run: b.jail.Unjail},
		{Name: "role", Aliases: []string{"r", "xr"}, Category: categoryModeration, Usage: "<user> <role>", Summary: "Toggle a role on a user", Permission: discordgo.PermissionManageRoles, Run: b.toggleRole},
		{Name: "purge", Category: categoryModeration, Usage: "[user] <amount>", Summary: "Bulk delete messages", Permission: discordgo.PermissionManageMessages, Run: b.purgeMessages},
		{Name: "snipe", Aliases: []string{"s", "xs"}, Category: categoryModeration, Usage: "[period]", Summary: "Forward recently deleted messages to the mod log", Permission: discordgo.PermissionManageMessages, Run: b.snipeMessages},
		{Name: "modstats", Category: categoryModeration, Usage: "[day|week]", Summary: "Moderation activity report", Permission: discordgo.PermissionManageMessages, Run: b.modStats},

		{Name: "logset", Category: categorySetup, Usage: "<channel>", Summary: "Set the moderation log channel", Permission: discordgo.PermissionAdministrator, Run: b.logSet},
		{Name: "jailset", Category: categorySetup, Usage: "<channel>", Summary: "Set the jail channel", Permission: discordgo.PermissionAdministrator, Run: b.jailSet},
		{Name: "jailrole", Category: categorySetup, Usage: "<role>", Summary: "Set the jail role", Permission: discordgo.PermissionAdministrator, Run: b.jailRole},
		{Name: "purgeset", Category: categorySetup, Usage: "<channel>", Summary: "Set the purge log channel", Permission: discordgo.PermissionManageMessages, Run: b.purgeSet},
		{Name: "appealset", Aliases: []string{"xappealset"}, Category: categorySetup, Usage: "<link>", Summary: "Set the ban appeal link", Permission: discordgo.PermissionAdministrator, Run: b.appealSet},
		{Name: "reviveset", Category: categorySetup, Usage: "<role>", Summary: "Set the chat revive role", Permission: discordgo.PermissionAdministrator, Run: b.reviveSet},
		{Name: "revivechat", Category: categorySetup, Usage: "[interval]", Summary: "Toggle chat revive pings in this channel", Permission: discordgo.PermissionAdministrator, Run: b.reviveChat},

		{Name: "afk", Category: categoryUtility, Usage: "[reason]", Summary: "Let people know you're away", Run: b.setAFK},
		{Name: "tz", Category: categoryUtility, Usage: "[set <zone> | user]", Summary: "Show or set a timezone", Run: b.timezoneCommand},
		{Name: "remind", Category: categoryUtility, Usage: "<time> <text>", Summary: "Get a reminder by DM", Permission: discordgo.PermissionManageMessages, Run: b.remind},
		{Name: "help", Category: categoryUtility, Summary: "Show this help menu", Run: b.help},
	}
}

func (b *Bot) action(action moderation.Action) func(context.Context, moderation.Request) error {
	return func(ctx context.Context, req moderation.Request) error {
		_, err := b.pipeline.Run(ctx, action, req)
		return err
	}
}

func (b *Bot) unban(ctx context.Context, req moderation.Request) error {
	_, err := b.pipeline.Unban(ctx, req)
	return err
}

func (b *Bot) jailUser(ctx context.Context, req moderation.Request) error {
	_, err := b.jail.Jail(ctx, req)
	return err
}

func (b *Bot) toggleRole(ctx context.Context, req moderation.Request) error {
	_, err := b.pipeline.ToggleRole(ctx, req)
	return err
}

func (b *Bot) purgeMessages(ctx context.Context, req moderation.Request) error {
	_, err := b.purge.Purge(ctx, req)
	return err
}

func (b *Bot) snipeMessages(ctx context.Context, req moderation.Request) error {
	_, err := b.snipe.Snipe(ctx, req.GuildID, req.ChannelID, req.Args)
	return err
}

func (b *Bot) logSet(ctx context.Context, req moderation.Request) error {
	channelID, err := b.channelArg(req, "logset")
	if err != nil {
		return err
	}
	if _, err := b.settings.Update(ctx, req.GuildID, func(s *storage.GuildSettings) { s.LogChannel = channelID }); err != nil {
		return err
	}
	b.replyAuthored(req, "✅ Log Channel Set", "All moderation logs will now be sent to "+discord.ChannelMention(channelID))
	return nil
}

func (b *Bot) jailSet(ctx context.Context, req moderation.Request) error {
	channelID, err := b.channelArg(req, "jailset")
	if err != nil {
		return err
	}
	if _, err := b.settings.Update(ctx, req.GuildID, func(s *storage.GuildSettings) { s.JailChannel = channelID }); err != nil {
		return err
	}
	b.replySuccess(req.ChannelID, "✅ Jail Channel Set", "Jail channel set to "+discord.ChannelMention(channelID))
	return nil
}

func (b *Bot) purgeSet(ctx context.Context, req moderation.Request) error {
	channelID, err := b.channelArg(req, "purgeset")
	if err != nil {
		return err
	}
	if _, err := b.settings.Update(ctx, req.GuildID, func(s *storage.GuildSettings) { s.PurgeChannel = channelID }); err != nil {
		return err
	}
	b.replyAuthored(req, "✅ Purge Channel Set", "Purge log channel set to "+discord.ChannelMention(channelID))
	return nil
}

func (b *Bot) jailRole(ctx context.Context, req moderation.Request) error {
	if len(req.Args) == 0 {
		return moderation.Usage("Usage: `jailrole <role>`")
	}
	roles, err := b.platform.Roles(req.GuildID)
	if err != nil {
		return err
	}
	role, ok := resolve.Role(roles, strings.Join(req.Args, " "))
	if !ok {
		return moderation.NewUserError(errRoleNotFound, "Role not found. Use the role ID, mention, or part of the role name.")
	}
	if _, err := b.settings.Update(ctx, req.GuildID, func(s *storage.GuildSettings) { s.JailRole = role.ID }); err != nil {
		return err
	}
	b.replySuccess(req.ChannelID, "✅ Jail Role Set", "Jail role set to "+discord.RoleMention(role.ID))
	return nil
}

func (b *Bot) appealSet(ctx context.Context, req moderation.Request) error {
	if len(req.Args) == 0 {
		return moderation.Usage("Usage: `appealset <link>`")
	}
	link, err := utils.NormalizeLink(strings.Join(req.Args, " "))
	if err != nil {
		return moderation.NewUserError(err, "That doesn't look like a valid link. Use a full http(s) URL.")
	}
	if _, err := b.settings.Update(ctx, req.GuildID, func(s *storage.GuildSettings) { s.AppealLink = link }); err != nil {
		return err
	}
	b.replySuccess(req.ChannelID, "✅ Ban Appeal Link Set", "The ban appeal link for this server has been set to:\n"+link)
	return nil
}

func (b *Bot) reviveSet(ctx context.Context, req moderation.Request) error {
	return b.revive.SetRole(ctx, req.GuildID, req.ChannelID, req.Args)
}

func (b *Bot) reviveChat(ctx context.Context, req moderation.Request) error {
	return b.revive.Toggle(ctx, req.GuildID, req.ChannelID, req.Args)
}

func (b *Bot) setAFK(ctx context.Context, req moderation.Request) error {
	return b.afk.Set(ctx, req.ChannelID, req.Actor, strings.Join(req.Args, " "))
}

func (b *Bot) timezoneCommand(ctx context.Context, req moderation.Request) error {
	return b.timezone.Handle(ctx, req.GuildID, req.ChannelID, req.Actor, req.Args, req.Mentions)
}

func (b *Bot) remind(_ context.Context, req moderation.Request) error {
	b.reminder.Remind(req.ChannelID, req.Actor, req.Args)
	return nil
}

func (b *Bot) help(_ context.Context, req moderation.Request) error {
	embed := b.router.Help()
	embed.Footer = &discordgo.MessageEmbedFooter{Text: "Requested by " + discord.Tag(req.Actor), IconURL: req.Actor.AvatarURL("")}
	b.router.reply(req.ChannelID, embed)
	return nil
}

func (b *Bot) modStats(ctx context.Context, req moderation.Request) error {
	window, label := 24*time.Hour, "day"
	if len(req.Args) > 0 {
		switch strings.ToLower(req.Args[0]) {
		case "day":
		case "week":
			window, label = 7*24*time.Hour, "week"
		default:
			return moderation.Usage("Usage: `modstats [day|week]`")
		}
	}
	report, err := b.analytics.Report(ctx, req.GuildID, b.clock.Now().Add(-window))
	if err != nil {
		return err
	}
	b.router.reply(req.ChannelID, statsEmbed(report, label, b.cfg.Notifications.EmbedColors.Action, b.clock.Now()))
	return nil
}

func statsEmbed(report analytics.Report, label string, color int, now time.Time) *discordgo.MessageEmbed {
	if report.Total == 0 {
		return discord.NewEmbed("📊 Moderation Stats", fmt.Sprintf("No moderation actions in the last %s.", label), color, now)
	}
	var lines []string
	for _, action := range report.Actions() {
		lines = append(lines, fmt.Sprintf("**%s**: %d", action, report.ByAction[action]))
	}
	fields := []*discordgo.MessageEmbedField{
		{Name: "Actions", Value: strings.Join(lines, "\n")},
	}
	if report.TopModerator != "" {
		fields = append(fields, &discordgo.MessageEmbedField{
			Name:  "Most active moderator",
			Value: fmt.Sprintf("%s (%d)", discord.Mention(report.TopModerator), report.ByModerator[report.TopModerator]),
		})
	}
	return discord.NewEmbed("📊 Moderation Stats", fmt.Sprintf("%d actions in the last %s.", report.Total, label), color, now, fields...)
}

// channelArg resolves the first argument to a channel of the guild.
func (b *Bot) channelArg(req moderation.Request, command string) (string, error) {
	usage := fmt.Sprintf("Usage: `%s <channel>`", command)
	if len(req.Args) == 0 {
		return "", moderation.Usage(usage)
	}
	channelID, ok := resolve.ID(req.Args[0])
	if !ok {
		return "", moderation.Usage(usage)
	}
	channels, err := b.platform.Channels(req.GuildID)
	if err != nil {
		return "", err
	}
	for _, channel := range channels {
		if channel.ID == channelID {
			return channelID, nil
		}
	}
	return "", moderation.NewUserError(errChannelNotFound, "Channel not found in this server.")
}

func (b *Bot) replySuccess(channelID, title, description string) {
	b.router.reply(channelID, discord.NewEmbed(title, description, b.cfg.Notifications.EmbedColors.Success, b.clock.Now()))
}

func (b *Bot) replyAuthored(req moderation.Request, title, description string) {
	embed := discord.NewEmbed(title, description, b.cfg.Notifications.EmbedColors.Success, b.clock.Now())
	embed.Author = &discordgo.MessageEmbedAuthor{Name: discord.Tag(req.Actor), IconURL: req.Actor.AvatarURL("")}
	b.router.reply(req.ChannelID, embed)
}
