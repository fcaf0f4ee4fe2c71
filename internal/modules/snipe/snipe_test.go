package snipe

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/clock/clocktest"
	"warden/internal/config"
	"warden/internal/discord/discordtest"
	"warden/internal/storage"
)

type staticSettings struct{ logChannel string }

func (s staticSettings) Get(ctx context.Context, guildID string) storage.GuildSettings {
	return storage.GuildSettings{GuildID: guildID, LogChannel: s.logChannel}
}

func newService(guild *discordtest.Guild, logChannel string) (*Service, *clocktest.Fake) {
	fake := clocktest.New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := New(guild, staticSettings{logChannel: logChannel}, config.SnipeConfig{PerChannel: 500, DefaultPeriod: "2h"}, config.DefaultConfig().Notifications.EmbedColors, zap.NewNop())
	svc.WithClock(fake)
	return svc, fake
}

func message(id, content string) *discordgo.Message {
	return &discordgo.Message{ID: id, Content: content, Author: &discordgo.User{ID: "u" + id, Username: "user" + id}}
}

func TestSnipeForwardsWithinPeriod(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, fake := newService(guild, "log")
	ctx := context.Background()

	svc.Record("c1", message("1", "old"))
	fake.Advance(3 * time.Hour)
	svc.Record("c1", message("2", "first"))
	svc.Record("c1", &discordgo.Message{ID: "3", Author: &discordgo.User{ID: "b", Bot: true}, Content: "bot"})
	svc.Record("c1", &discordgo.Message{ID: "4"})
	fake.Advance(time.Minute)
	msg := message("5", "")
	msg.Attachments = []*discordgo.MessageAttachment{{URL: "https://cdn.example.com/a.png"}}
	svc.Record("c1", msg)

	sent, err := svc.Snipe(ctx, "g1", "c1", nil)
	require.NoError(t, err)
	assert.Equal(t, 2, sent)

	forwarded := guild.SentTo("log")
	require.Len(t, forwarded, 2)
	assert.Equal(t, "first", forwarded[0].Embed.Description)
	assert.Equal(t, "*[no content]*", forwarded[1].Embed.Description)
	assert.Equal(t, "https://cdn.example.com/a.png", forwarded[1].Embed.Image.URL)

	reply := guild.SentTo("c1")
	require.Len(t, reply, 1)
	assert.Contains(t, reply[0].Embed.Description, "Sent 2 deleted messages from the last 2h")

	sent, err = svc.Snipe(ctx, "g1", "c1", []string{"5h"})
	require.NoError(t, err)
	assert.Equal(t, 3, sent)
}

func TestSnipeCapsForwarding(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, _ := newService(guild, "log")
	for i := 0; i < 80; i++ {
		svc.Record("c1", message(fmt.Sprint(i), fmt.Sprint("msg ", i)))
	}
	sent, err := svc.Snipe(context.Background(), "g1", "c1", []string{"bogus"})
	require.NoError(t, err)
	assert.Equal(t, MaxForward, sent)
	assert.Equal(t, "msg 30", guild.SentTo("log")[0].Embed.Description)
}

func TestSnipeErrors(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, fake := newService(guild, "")
	ctx := context.Background()

	_, err := svc.Snipe(ctx, "g1", "c1", nil)
	assert.ErrorIs(t, err, ErrNothingRecorded)

	svc.Record("c1", message("1", "hello"))
	_, err = svc.Snipe(ctx, "g1", "c1", nil)
	assert.ErrorIs(t, err, ErrNoLogChannel)

	fake.Advance(3 * time.Hour)
	_, err = svc.Snipe(ctx, "g1", "c1", nil)
	assert.ErrorIs(t, err, ErrNothingRecorded)
}
