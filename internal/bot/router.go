package bot

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/moderation"
)

const genericFailure = "Something went wrong while running that command."

// Command is one prefix command. Permission is the set of bits the invoking
// member needs; zero means anyone may run it.
type Command struct {
	Name       string
	Aliases    []string
	Category   string
	Usage      string
	Summary    string
	Permission int64
	Run        func(ctx context.Context, req moderation.Request) error
}

type permissionSource interface {
	Permissions(guildID, userID string) (int64, error)
}

// Router matches prefixed messages to commands, enforces permissions and the
// per-user cooldown, and renders command errors.
type Router struct {
	prefixes  []string
	commands  []*Command
	lookup    map[string]*Command
	perms     permissionSource
	messenger discord.Messenger
	cooldown  *cooldown
	colors    config.EmbedColors
	clock     clock.Clock
	logger    *zap.Logger
}

func NewRouter(cfg config.Config, perms permissionSource, messenger discord.Messenger, logger *zap.Logger) *Router {
	r := &Router{
		prefixes:  cfg.Prefixes,
		lookup:    make(map[string]*Command),
		perms:     perms,
		messenger: messenger,
		colors:    cfg.Notifications.EmbedColors,
		clock:     clock.Real(),
		logger:    logger,
	}
	if cfg.Commands.CooldownSeconds > 0 {
		r.cooldown = newCooldown(time.Duration(cfg.Commands.CooldownSeconds)*time.Second, cfg.Commands.Burst)
	}
	return r
}

func (r *Router) WithClock(c clock.Clock) {
	r.clock = c
}

// Register adds cmd under its name and aliases. Later registrations win.
func (r *Router) Register(cmd *Command) {
	r.commands = append(r.commands, cmd)
	r.lookup[cmd.Name] = cmd
	for _, alias := range cmd.Aliases {
		r.lookup[alias] = cmd
	}
}

func (r *Router) Commands() []*Command {
	return r.commands
}

// Parse splits a message into a lowercase command name and its arguments.
// Prefixes match case-insensitively.
func (r *Router) Parse(content string) (string, []string, bool) {
	content = strings.TrimSpace(content)
	for _, prefix := range r.prefixes {
		if prefix == "" || len(content) <= len(prefix) || !strings.EqualFold(content[:len(prefix)], prefix) {
			continue
		}
		fields := strings.Fields(content[len(prefix):])
		if len(fields) == 0 {
			continue
		}
		return strings.ToLower(fields[0]), fields[1:], true
	}
	return "", nil, false
}

// Handle runs the command in msg, if any, and reports whether msg was a
// command.
func (r *Router) Handle(ctx context.Context, msg *discordgo.Message, guildName string) bool {
	if msg == nil || msg.Author == nil {
		return false
	}
	name, args, ok := r.Parse(msg.Content)
	if !ok {
		return false
	}
	cmd, ok := r.lookup[name]
	if !ok {
		return false
	}

	if !r.cooldown.allow(msg.Author.ID, r.clock.Now()) {
		r.logger.Debug("command throttled", zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID), zap.String("command", cmd.Name))
		return true
	}
	if cmd.Permission != 0 {
		perms, err := r.perms.Permissions(msg.GuildID, msg.Author.ID)
		if err != nil {
			r.logger.Warn("author permissions unavailable", zap.String("guild_id", msg.GuildID), zap.String("user_id", msg.Author.ID), zap.Error(err))
		}
		if !discord.Can(perms, cmd.Permission) {
			r.fail(msg.ChannelID, "You don't have permission to use this command.")
			return true
		}
	}

	r.run(ctx, cmd, moderation.Request{
		GuildID:   msg.GuildID,
		GuildName: guildName,
		ChannelID: msg.ChannelID,
		Actor:     msg.Author,
		Args:      args,
		Mentions:  msg.Mentions,
	})
	return true
}

func (r *Router) run(ctx context.Context, cmd *Command, req moderation.Request) {
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Error("command panicked",
				zap.String("guild_id", req.GuildID),
				zap.String("command", cmd.Name),
				zap.Any("panic", rec),
				zap.Stack("stack"),
			)
			r.fail(req.ChannelID, genericFailure)
		}
	}()

	err := cmd.Run(ctx, req)
	if err == nil {
		return
	}
	if message, ok := moderation.Message(err); ok {
		r.fail(req.ChannelID, message)
		return
	}
	r.logger.Error("command failed", zap.String("guild_id", req.GuildID), zap.String("command", cmd.Name), zap.Error(err))
	r.fail(req.ChannelID, genericFailure)
}

func (r *Router) fail(channelID, message string) {
	r.reply(channelID, discord.NewEmbed("❌ Error", message, r.colors.Error, r.clock.Now()))
}

func (r *Router) reply(channelID string, embed *discordgo.MessageEmbed) {
	if err := r.messenger.SendEmbed(channelID, embed); err != nil {
		r.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

// Help lists the registered commands grouped by category, in registration
// order.
func (r *Router) Help() *discordgo.MessageEmbed {
	prefix := "x"
	if len(r.prefixes) > 0 {
		prefix = r.prefixes[0]
	}
	var categories []string
	lines := make(map[string][]string)
	for _, cmd := range r.commands {
		if _, ok := lines[cmd.Category]; !ok {
			categories = append(categories, cmd.Category)
		}
		usage := cmd.Name
		if cmd.Usage != "" {
			usage += " " + cmd.Usage
		}
		lines[cmd.Category] = append(lines[cmd.Category], fmt.Sprintf("`%s%s` - %s", prefix, usage, cmd.Summary))
	}

	embed := discord.NewEmbed("📜 Help Menu", "Here are all the commands you can use, organized by category.", r.colors.Action, r.clock.Now())
	for _, category := range categories {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: category, Value: strings.Join(lines[category], "\n")})
	}
	return embed
}

// cooldown is a token bucket per user. A nil cooldown allows everything.
type cooldown struct {
	mu       sync.Mutex
	every    rate.Limit
	burst    int
	limiters map[string]*rate.Limiter
}

func newCooldown(every time.Duration, burst int) *cooldown {
	if burst <= 0 {
		burst = 1
	}
	return &cooldown{every: rate.Every(every), burst: burst, limiters: make(map[string]*rate.Limiter)}
}

func (c *cooldown) allow(userID string, now time.Time) bool {
	if c == nil {
		return true
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	limiter, ok := c.limiters[userID]
	if !ok {
		limiter = rate.NewLimiter(c.every, c.burst)
		c.limiters[userID] = limiter
	}
	return limiter.AllowN(now, 1)
}

// prune forgets users whose bucket has refilled.
func (c *cooldown) prune(now time.Time) int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	removed := 0
	for userID, limiter := range c.limiters {
		if limiter.TokensAt(now) >= float64(c.burst) {
			delete(c.limiters, userID)
			removed++
		}
	}
	return removed
}
