package revive

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/config"
	"warden/internal/discord/discordtest"
	"warden/internal/storage"
)

func setup(t *testing.T) (*Service, *cron.Cron, *discordtest.Guild, *storage.Store) {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	guild := discordtest.NewGuild("g1")
	scheduler := cron.New()
	svc := New(store, scheduler, guild, []string{"Best pizza topping?"}, config.DefaultConfig().Notifications.EmbedColors, zap.NewNop())
	return svc, scheduler, guild, store
}

func TestToggle(t *testing.T) {
	svc, scheduler, guild, store := setup(t)
	ctx := context.Background()

	require.NoError(t, svc.Toggle(ctx, "g1", "c1", []string{"1h"}))
	assert.Equal(t, []string{"⚠️ Revive Role Not Set"}, guild.Titles("c1"))

	require.NoError(t, svc.SetRole(ctx, "g1", "c1", []string{"<@&55>"}))
	require.NoError(t, svc.Toggle(ctx, "g1", "c1", []string{"bogus"}))
	assert.False(t, svc.Active("g1"))

	require.NoError(t, svc.Toggle(ctx, "g1", "c1", []string{"1h30m"}))
	assert.True(t, svc.Active("g1"))
	require.Len(t, scheduler.Entries(), 1)

	settings, err := store.GetReviveSettings(ctx, "g1")
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "c1", settings.ChannelID)
	assert.Equal(t, "1h30m", settings.IntervalText)

	scheduler.Entries()[0].Job.Run()
	sent := guild.SentTo("c1")
	assert.Equal(t, "<@&55> 💬 Chat topic: **Best pizza topping?**", sent[len(sent)-1].Text)

	require.NoError(t, svc.Toggle(ctx, "g1", "c1", nil))
	assert.False(t, svc.Active("g1"))
	assert.Empty(t, scheduler.Entries())
	titles := guild.Titles("c1")
	assert.Equal(t, "❌ Chat revive system disabled", titles[len(titles)-1])
}

func TestRestore(t *testing.T) {
	svc, scheduler, _, store := setup(t)
	ctx := context.Background()
	require.NoError(t, store.UpsertReviveSettings(ctx, storage.ReviveSettings{GuildID: "g1", RoleID: "r", ChannelID: "c", Enabled: true, IntervalText: "30m"}))
	require.NoError(t, store.UpsertReviveSettings(ctx, storage.ReviveSettings{GuildID: "g2", RoleID: "r", ChannelID: "c", Enabled: true, IntervalText: "nope"}))
	require.NoError(t, store.UpsertReviveSettings(ctx, storage.ReviveSettings{GuildID: "g3", RoleID: "r", ChannelID: "c", IntervalText: "1h"}))

	restored, err := svc.Restore(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, restored)
	assert.True(t, svc.Active("g1"))
	assert.Len(t, scheduler.Entries(), 1)
}

func TestLoadTopics(t *testing.T) {
	assert.Equal(t, fallbackTopics, LoadTopics(filepath.Join(t.TempDir(), "missing.txt")))

	path := filepath.Join(t.TempDir(), "topics.txt")
	require.NoError(t, os.WriteFile(path, []byte("one\n\n  two  \n"), 0o644))
	assert.Equal(t, []string{"one", "two"}, LoadTopics(path))
}
