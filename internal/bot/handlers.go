package bot

import (
	"context"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
)

func (b *Bot) onReady(session *discordgo.Session, event *discordgo.Ready) {
	b.logger.Info("discord ready", zap.String("user", session.State.User.Username), zap.Int("guilds", len(event.Guilds)))
}

func (b *Bot) onMessageCreate(_ *discordgo.Session, msg *discordgo.MessageCreate) {
	b.handleMessage(context.Background(), msg.Message)
}

// handleMessage runs AFK bookkeeping for every member message, then the
// command router. Bots and direct messages are ignored.
func (b *Bot) handleMessage(ctx context.Context, msg *discordgo.Message) {
	if msg == nil || msg.Author == nil || msg.Author.Bot || msg.GuildID == "" {
		return
	}
	b.afk.Observe(ctx, msg.ChannelID, msg.Author, msg.Mentions)
	b.router.Handle(ctx, msg, b.guildName(msg.GuildID))
}

// onMessageDelete feeds the snipe buffer. The gateway only carries the
// content when the message was still in the state cache.
func (b *Bot) onMessageDelete(_ *discordgo.Session, event *discordgo.MessageDelete) {
	if event.GuildID == "" || event.BeforeDelete == nil {
		return
	}
	b.snipe.Record(event.ChannelID, event.BeforeDelete)
}

func (b *Bot) onGuildBanAdd(_ *discordgo.Session, event *discordgo.GuildBanAdd) {
	if !b.pipeline.AppealNotice(context.Background(), b.platform, event.GuildID, b.guildName(event.GuildID), event.User) {
		b.logger.Debug("ban appeal notice skipped", zap.String("guild_id", event.GuildID))
	}
}
