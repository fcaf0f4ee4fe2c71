package reminder

import (
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
)

func newService(guild *discordtest.Guild) (*Service, *clocktest.Fake) {
	fake := clocktest.New(time.Unix(1700000000, 0))
	svc := New(guild, config.ReminderConfig{MaxHours: 24}, config.DefaultConfig().Notifications.EmbedColors, zap.NewNop())
	svc.WithClock(fake)
	return svc, fake
}

func TestRemindDelivers(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, fake := newService(guild)
	user := &discordgo.User{ID: "1"}

	svc.Remind("c1", user, strings.Fields("1h30m drink water"))
	assert.Equal(t, 1, svc.Pending())
	require.Len(t, guild.SentTo("c1"), 1)

	fake.Advance(time.Hour)
	assert.Zero(t, guild.DMCount("1"))

	fake.Advance(30 * time.Minute)
	require.Equal(t, 1, guild.DMCount("1"))
	assert.Contains(t, guild.DMs["1"][0].Description, "**drink water** (set 1h30m ago)")
	assert.Zero(t, svc.Pending())
}

func TestRemindFallsBackToChannel(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, fake := newService(guild)
	guild.NoDM["1"] = true

	svc.Remind("c1", &discordgo.User{ID: "1"}, strings.Fields("5m stretch"))
	fake.Advance(5 * time.Minute)

	sent := guild.SentTo("c1")
	require.Len(t, sent, 2)
	assert.Equal(t, "<@1> I couldn't DM you, but here's your reminder:\n**stretch**", sent[1].Text)
}

func TestRemindRejects(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, _ := newService(guild)
	user := &discordgo.User{ID: "1"}

	svc.Remind("c1", user, []string{"10m"})
	svc.Remind("c1", user, strings.Fields("25h too late"))
	svc.Remind("c1", user, strings.Fields("soon later"))

	sent := guild.SentTo("c1")
	require.Len(t, sent, 3)
	assert.Equal(t, "📝 Usage", sent[0].Embed.Title)
	assert.Equal(t, "❌ Invalid time or exceeds 24h.", sent[1].Text)
	assert.Equal(t, sent[1].Text, sent[2].Text)
	assert.Zero(t, svc.Pending())
}

func TestStop(t *testing.T) {
	guild := discordtest.NewGuild("g1")
	svc, fake := newService(guild)

	svc.Remind("c1", &discordgo.User{ID: "1"}, strings.Fields("1m tea"))
	svc.Stop()
	fake.Advance(time.Minute)
	assert.Zero(t, guild.DMCount("1"))
}
