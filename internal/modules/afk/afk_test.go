package afk

import (
	"context"
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

func newService(t *testing.T) (*Service, *discordtest.Guild, *clocktest.Fake) {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	guild := discordtest.NewGuild("g1")
	fake := clocktest.New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	svc := New(store, guild, config.DefaultConfig().Notifications.EmbedColors, zap.NewNop())
	svc.WithClock(fake)
	return svc, guild, fake
}

func TestAFKLifecycle(t *testing.T) {
	svc, guild, fake := newService(t)
	ctx := context.Background()
	alice := &discordgo.User{ID: "1", Username: "alice"}
	bob := &discordgo.User{ID: "2", Username: "bob"}

	require.NoError(t, svc.Set(ctx, "c1", alice, ""))
	fake.Advance(90 * time.Minute)

	svc.Observe(ctx, "c1", bob, []*discordgo.User{alice, alice})
	sent := guild.SentTo("c1")
	require.Len(t, sent, 2)
	assert.Equal(t, "💤 AFK Activated", sent[0].Embed.Title)
	assert.Equal(t, "💤 User is AFK", sent[1].Embed.Title)
	assert.Contains(t, sent[1].Embed.Description, "**Reason:** AFK")
	assert.Contains(t, sent[1].Embed.Description, "1h 30m ago")

	svc.Observe(ctx, "c1", alice, nil)
	assert.Equal(t, "✅ Welcome Back!", guild.Titles("c1")[2])

	svc.Observe(ctx, "c1", bob, []*discordgo.User{alice})
	assert.Len(t, guild.Titles("c1"), 3)
}

func TestObserveIgnoresBots(t *testing.T) {
	svc, guild, _ := newService(t)
	ctx := context.Background()
	require.NoError(t, svc.Set(ctx, "c1", &discordgo.User{ID: "1"}, "lunch"))

	svc.Observe(ctx, "c1", &discordgo.User{ID: "1", Bot: true}, nil)
	assert.Len(t, guild.Titles("c1"), 1)
}

func TestSince(t *testing.T) {
	assert.Equal(t, "just now", Since(30*time.Second))
	assert.Equal(t, "5m ago", Since(5*time.Minute))
	assert.Equal(t, "2h 0m ago", Since(2*time.Hour))
	assert.Equal(t, "26h 1m ago", Since(26*time.Hour+time.Minute))
}
