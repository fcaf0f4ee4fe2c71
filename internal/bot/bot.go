package bot

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"warden/internal/analytics"
	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/jail"
	"warden/internal/ledger"
	"warden/internal/moderation"
	"warden/internal/modules/afk"
	"warden/internal/modules/audit"
	"warden/internal/modules/purge"
	"warden/internal/modules/reminder"
	"warden/internal/modules/revive"
	"warden/internal/modules/snipe"
	"warden/internal/modules/timezone"
	"warden/internal/settings"
	"warden/internal/storage"
)

type Bot struct {
	cfg       config.Config
	logger    *zap.Logger
	store     *storage.Store
	session   *discordgo.Session
	platform  discord.Platform
	guildName func(guildID string) string
	clock     clock.Clock

	settings  *settings.Service
	audit     *audit.Logger
	pipeline  *moderation.Pipeline
	jail      *jail.Engine
	afk       *afk.Service
	timezone  *timezone.Service
	reminder  *reminder.Service
	snipe     *snipe.Service
	purge     *purge.Service
	revive    *revive.Service
	analytics *analytics.Service
	scheduler *cron.Cron
	router    *Router
}

func New(cfg config.Config, logger *zap.Logger, store *storage.Store) (*Bot, error) {
	session, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}

	session.Identify.Intents = discordgo.IntentsGuilds |
		discordgo.IntentsGuildMessages |
		discordgo.IntentsGuildMembers |
		discordgo.IntentsGuildBans |
		discordgo.IntentsMessageContent
	session.State.MaxMessageCount = cfg.Snipe.PerChannel

	b := newBot(cfg, logger, store, discord.NewSession(session))
	b.session = session
	b.guildName = func(guildID string) string {
		if guild, err := session.State.Guild(guildID); err == nil {
			return guild.Name
		}
		return ""
	}
	return b, nil
}

// newBot wires every service against platform. It does not touch the gateway.
func newBot(cfg config.Config, logger *zap.Logger, store *storage.Store, platform discord.Platform) *Bot {
	colors := cfg.Notifications.EmbedColors
	scheduler := cron.New(cron.WithChain(cron.Recover(cronLogger{logger.Sugar()})))

	b := &Bot{
		cfg:       cfg,
		logger:    logger,
		store:     store,
		platform:  platform,
		guildName: func(string) string { return "" },
		clock:     clock.Real(),
		scheduler: scheduler,
	}

	b.settings = settings.New(store, logger, cfg.DefaultLogChannel)
	b.audit = audit.NewLogger(store, logger)
	b.audit.SetNotifier(audit.ChannelNotifier(func(ctx context.Context, guildID string) string {
		return b.settings.Get(ctx, guildID).LogChannel
	}, platform, colors.Action, logger))

	b.pipeline = moderation.New(platform, ledger.New(store), b.audit, b.settings, cfg.Notifications, logger)
	b.jail = jail.New(platform, b.settings, store, b.audit, b.pipeline, colors, logger)
	b.afk = afk.New(store, platform, colors, logger)
	b.timezone = timezone.New(store, platform, logger)
	b.reminder = reminder.New(platform, cfg.Reminder, colors, logger)
	b.snipe = snipe.New(platform, b.settings, cfg.Snipe, colors, logger)
	b.purge = purge.New(platform, b.settings, b.pipeline.Resolver(), b.audit, colors, logger)
	b.revive = revive.New(store, scheduler, platform, revive.LoadTopics(cfg.TopicsPath), colors, logger)
	b.analytics = analytics.New(store)

	b.router = NewRouter(cfg, platform, platform, logger)
	for _, cmd := range b.commands() {
		b.router.Register(cmd)
	}
	return b
}

func (b *Bot) Start() error {
	b.session.AddHandler(b.onReady)
	b.session.AddHandler(b.onMessageCreate)
	b.session.AddHandler(b.onMessageDelete)
	b.session.AddHandler(b.onGuildBanAdd)

	if err := b.session.Open(); err != nil {
		return err
	}

	b.restore(context.Background())
	if _, err := b.scheduler.AddFunc("@daily", b.daily); err != nil {
		return err
	}
	b.scheduler.Start()
	return nil
}

// Close stops timers and scheduled jobs, then the gateway session. Pending
// jail releases stay persisted and are restored on the next start.
func (b *Bot) Close(ctx context.Context) {
	b.jail.Stop()
	b.reminder.Stop()
	select {
	case <-b.scheduler.Stop().Done():
	case <-ctx.Done():
		b.logger.Warn("scheduled jobs still running at shutdown")
	}
	if b.session != nil {
		_ = b.session.Close()
	}
}

func (b *Bot) restore(ctx context.Context) {
	if b.cfg.Jail.RestoreOnStart {
		restored, err := b.jail.Restore(ctx)
		if err != nil {
			b.logger.Error("jail restore failed", zap.Error(err))
		} else if restored > 0 {
			b.logger.Info("jails restored", zap.Int("count", restored))
		}
	}
	restored, err := b.revive.Restore(ctx)
	if err != nil {
		b.logger.Error("revive restore failed", zap.Error(err))
	} else if restored > 0 {
		b.logger.Info("revive jobs restored", zap.Int("count", restored))
	}
}

// daily trims the moderation log to the retention window and forgets idle
// cooldown buckets.
func (b *Bot) daily() {
	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if b.cfg.RetentionDays > 0 {
		removed, err := b.store.CleanupModActions(ctx, b.cfg.RetentionDays)
		if err != nil {
			b.logger.Error("moderation log cleanup failed", zap.Error(err))
		} else if removed > 0 {
			b.logger.Info("moderation log cleaned", zap.Int64("removed", removed), zap.Int("retention_days", b.cfg.RetentionDays))
		}
	}
	if pruned := b.router.cooldown.prune(b.clock.Now()); pruned > 0 {
		b.logger.Debug("cooldowns pruned", zap.Int("count", pruned))
	}
}

type cronLogger struct {
	log *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.log.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.log.Errorw(msg, append(keysAndValues, "error", err)...)
}
