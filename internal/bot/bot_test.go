package bot

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"warden/internal/analytics"
	"warden/internal/clock/clocktest"
	"warden/internal/config"
	"warden/internal/discord/discordtest"
	"warden/internal/moderation"
	"warden/internal/storage"
)

const (
	channel     = "500"
	logChannel  = "501"
	jailChannel = "502"
	jailRole    = "700"
)

type fixture struct {
	guild *discordtest.Guild
	store *storage.Store
	clock *clocktest.Fake
	bot   *Bot
	mod   *discordgo.User
	admin *discordgo.User
	alice *discordgo.User
	bob   *discordgo.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := storage.New(storage.DriverSQLite, ":memory:")
	require.NoError(t, err)
	t.Cleanup(store.Close)
	require.NoError(t, store.Migrate())

	guild := discordtest.NewGuild("g1")
	mod := guild.AddMember("100", "mod", "0001", discordgo.PermissionBanMembers|discordgo.PermissionManageMessages|discordgo.PermissionModerateMembers)
	admin := guild.AddMember("101", "boss", "0002", discordgo.PermissionAdministrator)
	alice := guild.AddMember("200", "alice", "1111", 0)
	bob := guild.AddMember("201", "bob", "2222", 0)
	guild.AddMember(guild.BotID, "warden", "0000", discordgo.PermissionAdministrator, "top")
	guild.AddRoleDef("top", "Warden", 10)
	guild.AddRoleDef(jailRole, "Jailed", 1)
	guild.AddChannel(channel, "commands", discordgo.ChannelTypeGuildText)
	guild.AddChannel(logChannel, "mod-log", discordgo.ChannelTypeGuildText)
	guild.AddChannel(jailChannel, "jail", discordgo.ChannelTypeGuildText)

	cfg := config.DefaultConfig()
	cfg.TopicsPath = ""
	cfg.Commands.CooldownSeconds = 0
	fake := clocktest.New(time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))

	b := newBot(cfg, zap.NewNop(), store, guild)
	b.router.WithClock(fake)
	t.Cleanup(func() {
		b.jail.Stop()
		b.reminder.Stop()
	})
	return &fixture{guild: guild, store: store, clock: fake, bot: b, mod: mod.User, admin: admin.User, alice: alice.User, bob: bob.User}
}

func (f *fixture) send(author *discordgo.User, content string) {
	msg := &discordgo.Message{ID: "m", GuildID: f.guild.ID, ChannelID: channel, Author: author, Content: content}
	for _, field := range strings.Fields(content) {
		if strings.HasPrefix(field, "<@") && len(field) > 3 && field[2] >= '0' && field[2] <= '9' {
			msg.Mentions = append(msg.Mentions, &discordgo.User{ID: strings.Trim(field, "<@!>")})
		}
	}
	f.bot.handleMessage(context.Background(), msg)
}

func (f *fixture) last(t *testing.T, channelID string) discordtest.Sent {
	t.Helper()
	sent := f.guild.SentTo(channelID)
	require.NotEmpty(t, sent)
	return sent[len(sent)-1]
}

func (f *fixture) settings() storage.GuildSettings {
	return f.bot.settings.Get(context.Background(), f.guild.ID)
}

func TestParse(t *testing.T) {
	r := NewRouter(config.Config{Prefixes: []string{"x", "w!"}}, nil, nil, zap.NewNop())
	cases := []struct {
		content string
		name    string
		args    []string
		ok      bool
	}{
		{"xban <@200> spam", "ban", []string{"<@200>", "spam"}, true},
		{"XBAN <@200>", "ban", []string{"<@200>"}, true},
		{"x ban", "ban", []string{}, true},
		{"  w!Help  ", "help", []string{}, true},
		{"x", "", nil, false},
		{"hello there", "", nil, false},
	}
	for _, tc := range cases {
		name, args, ok := r.Parse(tc.content)
		assert.Equal(t, tc.ok, ok, tc.content)
		assert.Equal(t, tc.name, name, tc.content)
		if tc.ok {
			assert.Equal(t, tc.args, args, tc.content)
		}
	}
}

func TestAliasRunsBan(t *testing.T) {
	f := newFixture(t)
	f.send(f.mod, "xdoom <@200> <@201> raiding")
	assert.Equal(t, "raiding", f.guild.Banned["200"])
	assert.Equal(t, "raiding", f.guild.Banned["201"])
	assert.Equal(t, []string{"🚫 User Banned", "🚫 User Banned"}, f.guild.Titles(channel))
}

func TestUnknownCommandIgnored(t *testing.T) {
	f := newFixture(t)
	f.send(f.mod, "xylophone is great")
	assert.Empty(t, f.guild.SentTo(channel))
}

func TestPermissionDenied(t *testing.T) {
	f := newFixture(t)
	f.send(f.alice, "xban <@201>")
	assert.NotContains(t, f.guild.Banned, "201")
	sent := f.last(t, channel)
	assert.Equal(t, "❌ Error", sent.Embed.Title)
	assert.Equal(t, "You don't have permission to use this command.", sent.Embed.Description)

	f.send(f.mod, "xlogset <#501>")
	assert.Empty(t, f.settings().LogChannel)
}

func TestRemindRequiresManageMessages(t *testing.T) {
	f := newFixture(t)
	f.send(f.alice, "xremind 10m stretch")
	assert.Equal(t, "You don't have permission to use this command.", f.last(t, channel).Embed.Description)

	f.send(f.mod, "xremind 10m stretch")
	assert.Contains(t, f.last(t, channel).Embed.Description, "I'll remind you in **10m**")
}

func TestUserErrorRendered(t *testing.T) {
	f := newFixture(t)
	f.send(f.mod, "xwarn")
	sent := f.last(t, channel)
	assert.Equal(t, "❌ Error", sent.Embed.Title)
	assert.Equal(t, "You must specify at least one user.", sent.Embed.Description)
}

func TestFailuresAreContained(t *testing.T) {
	f := newFixture(t)
	f.bot.router.Register(&Command{Name: "boom", Run: func(context.Context, moderation.Request) error {
		panic("nil map")
	}})
	f.bot.router.Register(&Command{Name: "broken", Run: func(context.Context, moderation.Request) error {
		return errors.New("database is locked")
	}})

	f.send(f.alice, "xboom")
	assert.Equal(t, genericFailure, f.last(t, channel).Embed.Description)

	f.send(f.alice, "xbroken")
	sent := f.guild.SentTo(channel)
	require.Len(t, sent, 2)
	assert.Equal(t, genericFailure, sent[1].Embed.Description)
}

func TestCooldown(t *testing.T) {
	f := newFixture(t)
	f.bot.router.cooldown = newCooldown(2*time.Second, 3)
	for i := 0; i < 4; i++ {
		f.send(f.alice, "xhelp")
	}
	assert.Len(t, f.guild.SentTo(channel), 3)

	f.send(f.bob, "xhelp")
	assert.Len(t, f.guild.SentTo(channel), 4)

	f.clock.Advance(2 * time.Second)
	f.send(f.alice, "xhelp")
	assert.Len(t, f.guild.SentTo(channel), 5)

	f.clock.Advance(time.Minute)
	assert.Equal(t, 2, f.bot.router.cooldown.prune(f.clock.Now()))
}

func TestHelpListsCommands(t *testing.T) {
	f := newFixture(t)
	f.send(f.alice, "xhelp")
	embed := f.last(t, channel).Embed
	assert.Equal(t, "📜 Help Menu", embed.Title)
	require.Len(t, embed.Fields, 3)
	assert.Equal(t, categoryModeration, embed.Fields[0].Name)
	assert.Contains(t, embed.Fields[0].Value, "`xban <users...> [reason]`")
	assert.Contains(t, embed.Fields[2].Value, "`xremind <time> <text>`")
	assert.Equal(t, "Requested by alice#1111", embed.Footer.Text)
}

func TestBotsAndDirectMessagesIgnored(t *testing.T) {
	f := newFixture(t)
	f.bot.handleMessage(context.Background(), &discordgo.Message{GuildID: "g1", ChannelID: channel, Author: &discordgo.User{ID: "999", Bot: true}, Content: "xhelp"})
	f.bot.handleMessage(context.Background(), &discordgo.Message{ChannelID: channel, Author: f.alice, Content: "xhelp"})
	assert.Empty(t, f.guild.Sent)
}

func TestSetupCommands(t *testing.T) {
	f := newFixture(t)

	f.send(f.admin, "xlogset <#501>")
	f.send(f.admin, "xjailset <#502>")
	f.send(f.admin, "xjailrole jailed")
	f.send(f.admin, "xpurgeset mod-log")
	f.send(f.admin, "xappealset example.com/appeal?utm_source=discord")

	got := f.settings()
	assert.Equal(t, logChannel, got.LogChannel)
	assert.Equal(t, jailChannel, got.JailChannel)
	assert.Equal(t, jailRole, got.JailRole)
	assert.Empty(t, got.PurgeChannel)
	assert.Equal(t, "https://example.com/appeal", got.AppealLink)
	assert.Equal(t, []string{
		"✅ Log Channel Set",
		"✅ Jail Channel Set",
		"✅ Jail Role Set",
		"❌ Error",
		"✅ Ban Appeal Link Set",
	}, f.guild.Titles(channel))
}

func TestSetupRejectsUnknownTargets(t *testing.T) {
	f := newFixture(t)
	f.send(f.admin, "xlogset <#999>")
	assert.Equal(t, "Channel not found in this server.", f.last(t, channel).Embed.Description)

	f.send(f.admin, "xjailrole nonexistent")
	assert.Contains(t, f.last(t, channel).Embed.Description, "Role not found")

	f.send(f.admin, "xappealset nothing")
	assert.Contains(t, f.last(t, channel).Embed.Description, "valid link")
	assert.Empty(t, f.settings().AppealLink)
}

func TestActionsReachLogChannel(t *testing.T) {
	f := newFixture(t)
	f.send(f.admin, "xlogset <#501>")
	f.send(f.mod, "xwarn <@200> spamming")
	require.Len(t, f.guild.SentTo(logChannel), 1)

	f.send(f.admin, "xjailset <#502>")
	f.send(f.admin, "xjailrole <@&700>")
	f.send(f.admin, "xjail <@201> 10m cooling off")
	assert.True(t, f.guild.HasRole("201", jailRole))
	assert.Len(t, f.guild.SentTo(logChannel), 2)
}

func TestAFKRunsBeforeCommands(t *testing.T) {
	f := newFixture(t)
	f.send(f.alice, "xafk lunch")
	f.send(f.bob, "<@200> are you around")
	assert.Equal(t, []string{"💤 AFK Activated", "💤 User is AFK"}, f.guild.Titles(channel))

	f.send(f.alice, "back")
	assert.Equal(t, "✅ Welcome Back!", f.last(t, channel).Embed.Title)
}

func TestSnipeForwardsDeletedMessages(t *testing.T) {
	f := newFixture(t)
	f.send(f.admin, "xlogset <#501>")
	f.bot.onMessageDelete(nil, &discordgo.MessageDelete{
		Message:      &discordgo.Message{ID: "m1", GuildID: "g1", ChannelID: channel},
		BeforeDelete: &discordgo.Message{ID: "m1", GuildID: "g1", ChannelID: channel, Author: f.alice, Content: "oops"},
	})
	f.send(f.mod, "xs 10m")
	assert.Len(t, f.guild.SentTo(logChannel), 1)
	assert.Equal(t, "🕵️ Sniped Messages Sent", f.last(t, channel).Embed.Title)
}

func TestBanEventSendsAppealNotice(t *testing.T) {
	f := newFixture(t)
	f.guild.BanAudit["200"] = [2]string{"100", "alt account"}
	f.bot.onGuildBanAdd(nil, &discordgo.GuildBanAdd{GuildID: "g1", User: f.alice})

	dms := f.guild.DMs["200"]
	require.Len(t, dms, 1)
	assert.Equal(t, "You were banned from the server", dms[0].Title)
	assert.Contains(t, dms[0].Description, "**Reason:** alt account")
	assert.Contains(t, dms[0].Description, moderation.NoAppealLink)
}

func TestModStats(t *testing.T) {
	f := newFixture(t)
	f.send(f.mod, "xwarn <@200> one")
	f.clock.Advance(time.Minute)
	f.send(f.mod, "xwarn <@201> two")
	f.clock.Advance(time.Minute)
	f.send(f.mod, "xmodstats week")

	embed := f.last(t, channel).Embed
	assert.Equal(t, "📊 Moderation Stats", embed.Title)
	assert.Equal(t, "2 actions in the last week.", embed.Description)
	require.Len(t, embed.Fields, 2)
	assert.Equal(t, "**warn**: 2", embed.Fields[0].Value)
	assert.Equal(t, "<@100> (2)", embed.Fields[1].Value)

	f.clock.Advance(time.Minute)
	f.send(f.mod, "xmodstats year")
	assert.Equal(t, "Usage: `modstats [day|week]`", f.last(t, channel).Embed.Description)
}

func TestStatsEmbedEmpty(t *testing.T) {
	embed := statsEmbed(analytics.Report{}, "day", 0, time.Now())
	assert.Equal(t, "No moderation actions in the last day.", embed.Description)
}

func TestDailyRetention(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	require.NoError(t, f.store.AddModAction(ctx, storage.ModAction{ID: "old", GuildID: "g1", Action: "warn", CreatedAt: time.Now().AddDate(0, 0, -200)}))
	require.NoError(t, f.store.AddModAction(ctx, storage.ModAction{ID: "new", GuildID: "g1", Action: "warn", CreatedAt: time.Now()}))

	f.bot.daily()

	records, err := f.store.ListModActions(ctx, "g1", time.Time{})
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "new", records[0].ID)
}

func TestStatusAPI(t *testing.T) {
	f := newFixture(t)
	f.send(f.mod, "xwarn <@200> spam")
	server := httptest.NewServer(f.bot.Handler())
	t.Cleanup(server.Close)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Get(server.URL + "/guilds/g1/report?period=week")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	var report analytics.Report
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&report))
	assert.Equal(t, "g1", report.GuildID)
	assert.Equal(t, 1, report.Total)
	assert.Equal(t, 1, report.ByAction["warn"])

	bad, err := http.Get(server.URL + "/guilds/g1/report?period=year")
	require.NoError(t, err)
	bad.Body.Close()
	assert.Equal(t, http.StatusBadRequest, bad.StatusCode)
}
