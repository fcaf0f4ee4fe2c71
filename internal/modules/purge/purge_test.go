package purge

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/clock/clocktest"
	"warden/internal/config"
	"warden/internal/discord/discordtest"
	"warden/internal/moderation"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
	"warden/internal/storage"
)

type staticSettings struct{ purgeChannel string }

func (s staticSettings) Get(ctx context.Context, guildID string) storage.GuildSettings {
	return storage.GuildSettings{GuildID: guildID, PurgeChannel: s.purgeChannel}
}

func setup(t *testing.T, purgeChannel string) (*Service, *discordtest.Guild, *storage.Store) {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	guild := discordtest.NewGuild("g1")
	guild.AddMember("1", "alice", "0", 0)
	guild.AddMember("2", "bob", "0", 0)
	alice := &discordgo.User{ID: "1", Username: "alice"}
	bob := &discordgo.User{ID: "2", Username: "bob"}
	for i := 1; i <= 250; i++ {
		author := alice
		if i%2 == 0 {
			author = bob
		}
		guild.AddHistory("c1", &discordgo.Message{ID: fmt.Sprintf("m%03d", i), ChannelID: "c1", Author: author, Content: fmt.Sprintf("hello %d", i)})
	}

	svc := New(guild, staticSettings{purgeChannel: purgeChannel}, resolve.New(guild), audit.NewLogger(store, zap.NewNop()), config.DefaultConfig().Notifications.EmbedColors, zap.NewNop())
	return svc, guild, store
}

func request(args string) moderation.Request {
	return moderation.Request{GuildID: "g1", ChannelID: "c1", Actor: &discordgo.User{ID: "9", Username: "mod"}, Args: strings.Fields(args)}
}

func TestPurgeAmount(t *testing.T) {
	svc, guild, store := setup(t, "plog")
	deleted, err := svc.Purge(context.Background(), request("150"))
	require.NoError(t, err)
	assert.Equal(t, 150, deleted)
	assert.Len(t, guild.History["c1"], 100)
	assert.Equal(t, "m100", guild.History["c1"][99].ID)

	assert.Equal(t, []string{"🧹 Purge"}, guild.Titles("c1"))
	logs := guild.SentTo("plog")
	require.Len(t, logs, 1)
	assert.Equal(t, "📝 Purge Log", logs[0].Embed.Title)
	assert.True(t, strings.Index(logs[0].Embed.Description, "hello 101") < strings.Index(logs[0].Embed.Description, "hello 102"))

	records, err := store.ListModActions(context.Background(), "g1", time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Contains(t, records[0].Details, "Messages: 150")
}

func TestPurgeUser(t *testing.T) {
	svc, guild, _ := setup(t, "plog")
	deleted, err := svc.Purge(context.Background(), request("bob 10"))
	require.NoError(t, err)
	assert.Equal(t, 10, deleted)
	for _, id := range guild.Deleted["c1"] {
		var n int
		_, _ = fmt.Sscanf(id, "m%d", &n)
		assert.Zero(t, n%2, id)
	}
	assert.Contains(t, guild.SentTo("c1")[0].Embed.Description, "from <@2>")
	assert.Contains(t, guild.SentTo("plog")[0].Embed.Description, "User: bob")
}

func TestPurgeErrors(t *testing.T) {
	svc, _, _ := setup(t, "")
	_, err := svc.Purge(context.Background(), request("5"))
	assert.ErrorIs(t, err, ErrNoPurgeChannel)

	svc, guild, _ := setup(t, "plog")
	_, err = svc.Purge(context.Background(), request("zero"))
	assert.ErrorIs(t, err, moderation.ErrUsage)
	_, err = svc.Purge(context.Background(), request("carol 5"))
	assert.ErrorIs(t, err, moderation.ErrNoTargets)

	guild.Fail("delete", "c1", discordtest.ErrForbidden)
	_, err = svc.Purge(context.Background(), request("5"))
	msg, ok := moderation.Message(err)
	require.True(t, ok)
	assert.Contains(t, msg, "Failed to purge")
}

func snowflake(at time.Time) string {
	return strconv.FormatInt((at.UnixMilli()-1420070400000)<<22, 10)
}

func TestPurgeDeletesOldMessagesSingly(t *testing.T) {
	svc, guild, _ := setup(t, "plog")
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	svc.WithClock(clocktest.New(now))
	guild.BulkCutoff = now.Add(-14 * 24 * time.Hour)

	alice := &discordgo.User{ID: "1", Username: "alice"}
	for _, age := range []time.Duration{30 * 24 * time.Hour, 20 * 24 * time.Hour, 2 * time.Hour, time.Minute} {
		guild.AddHistory("old", &discordgo.Message{ID: snowflake(now.Add(-age)), ChannelID: "old", Author: alice, Content: "hi"})
	}
	req := request("10")
	req.ChannelID = "old"

	deleted, err := svc.Purge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 4, deleted)
	assert.Empty(t, guild.History["old"])
	assert.Equal(t, []int{2, 1, 1}, guild.DeleteCalls["old"])
}

func TestTranscriptTruncates(t *testing.T) {
	var messages []*discordgo.Message
	for i := 0; i < 200; i++ {
		messages = append(messages, &discordgo.Message{Author: &discordgo.User{Username: "spammer"}, Content: strings.Repeat("x", 50)})
	}
	messages = append(messages, &discordgo.Message{Author: &discordgo.User{Username: "quiet"}})
	text := Transcript(messages)
	assert.LessOrEqual(t, len(text), transcriptLimit+len("…"))
	assert.True(t, strings.HasSuffix(text, "…"))
	assert.NotContains(t, text, "quiet")
}
