// Package moderation runs the shared target/reason pipeline behind ban, kick,
// mute, unmute and warn, plus the single-target unban and role toggle.
package moderation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.uber.org/zap"

	"warden/internal/clock"
	"warden/internal/config"
	"warden/internal/discord"
	"warden/internal/duration"
	"warden/internal/ledger"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
	"warden/internal/storage"
)

type Action string

const (
	Ban    Action = "ban"
	Kick   Action = "kick"
	Mute   Action = "mute"
	Unmute Action = "unmute"
	Warn   Action = "warn"
)

const DefaultReason = "No reason provided"

var (
	ErrNoArguments = errors.New("you must specify at least one user")
	ErrNoTargets   = errors.New("could not find any valid users")
)

type Status int

const (
	Done Status = iota
	RejectedSelf
	RejectedImmune
	Failed
)

func (s Status) String() string {
	switch s {
	case Done:
		return "done"
	case RejectedSelf:
		return "self"
	case RejectedImmune:
		return "immune"
	default:
		return "failed"
	}
}

type Platform interface {
	discord.Directory
	discord.Messenger
}

type SettingsSource interface {
	Get(ctx context.Context, guildID string) storage.GuildSettings
}

type Request struct {
	GuildID   string
	GuildName string
	ChannelID string
	Actor     *discordgo.User
	Args      []string
	Mentions  []*discordgo.User
}

// Outcome is the per-target result. Err carries the platform error when
// Status is Failed. Notified reports whether the direct message went through.
type Outcome struct {
	Target   *discordgo.Member
	Status   Status
	Err      error
	CaseID   int
	Count    int
	Notified bool
}

type Result struct {
	Action       Action
	Targets      []Outcome
	Reason       string
	Duration     time.Duration
	DurationText string
}

type Pipeline struct {
	platform  Platform
	resolver  *resolve.Resolver
	ledger    *ledger.Ledger
	audit     *audit.Logger
	settings  SettingsSource
	clock     clock.Clock
	colors    config.EmbedColors
	dmEnabled bool
	logger    *zap.Logger

	bansMu sync.Mutex
	bans   map[string]time.Time
}

func New(platform Platform, ledger *ledger.Ledger, auditLogger *audit.Logger, settings SettingsSource, notify config.NotifyConfig, logger *zap.Logger) *Pipeline {
	return &Pipeline{
		platform:  platform,
		resolver:  resolve.New(platform),
		ledger:    ledger,
		audit:     auditLogger,
		settings:  settings,
		clock:     clock.Real(),
		colors:    notify.EmbedColors,
		dmEnabled: notify.DMEnabled,
		logger:    logger,
		bans:      make(map[string]time.Time),
	}
}

func (p *Pipeline) WithClock(c clock.Clock) {
	p.clock = c
}

func (p *Pipeline) Resolver() *resolve.Resolver {
	return p.resolver
}

type parsed struct {
	targets      []*discordgo.Member
	reason       string
	duration     time.Duration
	durationText string
}

// parse splits arguments into targets and reason. Mute also claims the first
// token that parses as a duration.
func (p *Pipeline) parse(action Action, req Request) parsed {
	var out parsed
	var reason []string
	seen := make(map[string]struct{})
	for _, arg := range req.Args {
		if action == Mute && out.duration == 0 {
			if d, ok := duration.Parse(arg); ok {
				out.duration = d
				out.durationText = arg
				continue
			}
		}
		member, ok := p.resolver.Member(req.GuildID, arg, req.Mentions)
		if !ok {
			reason = append(reason, arg)
			continue
		}
		if _, dup := seen[member.User.ID]; dup {
			continue
		}
		seen[member.User.ID] = struct{}{}
		out.targets = append(out.targets, member)
	}
	out.reason = strings.Join(reason, " ")
	if out.reason == "" {
		out.reason = DefaultReason
	}
	return out
}

// Run executes action against every target resolved from req.Args. Input
// errors are returned before anything is mutated. Per-target rejections and
// platform failures are reported in the channel and in Result.Targets, and
// never stop the batch.
func (p *Pipeline) Run(ctx context.Context, action Action, req Request) (Result, error) {
	if len(req.Args) == 0 {
		message := "You must specify at least one user."
		if action == Mute {
			message = "You must specify at least one user (and optional time and reason)."
		}
		return Result{Action: action}, NewUserError(ErrNoArguments, message)
	}
	args := p.parse(action, req)
	if len(args.targets) == 0 {
		return Result{Action: action}, NewUserError(ErrNoTargets, fmt.Sprintf("Could not find any valid users to %s.", action))
	}

	result := Result{
		Action:       action,
		Reason:       args.reason,
		Duration:     args.duration,
		DurationText: args.durationText,
	}
	actorPerms := p.ActorPermissions(req)
	for _, target := range args.targets {
		outcome := p.apply(ctx, action, req, result, actorPerms, target)
		result.Targets = append(result.Targets, outcome)
	}
	return result, nil
}

func (p *Pipeline) apply(ctx context.Context, action Action, req Request, result Result, actorPerms int64, target *discordgo.Member) Outcome {
	outcome := Outcome{Target: target}
	user := target.User

	if status := p.Guard(req, actorPerms, target, string(action), pastTense(action)); status != Done {
		outcome.Status = status
		return outcome
	}

	if err := p.perform(ctx, action, req, result, &outcome); err != nil {
		outcome.Status = Failed
		outcome.Err = err
		p.send(req.ChannelID, p.embed("❌ Error", fmt.Sprintf("Failed to %s %s. Error: %v", action, discord.Tag(user), err), p.colors.Error))
		p.logger.Info("moderation action failed", zap.String("guild_id", req.GuildID), zap.String("action", string(action)), zap.String("target_id", user.ID), zap.Error(err))
		return outcome
	}

	outcome.Status = Done
	p.send(req.ChannelID, p.confirmation(action, req, result, outcome))
	if action != Ban && action != Kick {
		outcome.Notified = p.notify(user.ID, p.notice(ctx, action, req, result, outcome))
		if action == Warn && p.dmEnabled && !outcome.Notified {
			_ = p.platform.SendText(req.ChannelID, fmt.Sprintf("⚠️ Could not DM %s. They might have DMs disabled.", discord.Mention(user.ID)))
		}
	}
	p.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      string(action),
		TargetID:    user.ID,
		TargetName:  discord.Tag(user),
		ModeratorID: req.Actor.ID,
		Reason:      result.Reason,
		Details:     details(action, result, outcome),
	})
	return outcome
}

// Guard applies the self-action and staff immunity checks and replies in the
// channel when one rejects. Administrators bypass immunity, never the self
// check. A target whose permissions cannot be read is not acted on.
func (p *Pipeline) Guard(req Request, actorPerms int64, target *discordgo.Member, verb, past string) Status {
	user := target.User
	if user.ID == req.Actor.ID {
		p.send(req.ChannelID, p.embed("😂 Nice Try", fmt.Sprintf("You can't %s yourself.", verb), p.colors.Warning))
		return RejectedSelf
	}
	targetPerms, err := p.platform.Permissions(req.GuildID, user.ID)
	if err != nil && !errors.Is(err, discord.ErrMemberNotFound) {
		p.logger.Warn("target permissions unavailable", zap.String("guild_id", req.GuildID), zap.String("user_id", user.ID), zap.Error(err))
		p.send(req.ChannelID, p.embed("❌ Error", fmt.Sprintf("Failed to %s %s. Error: %v", verb, discord.Tag(user), err), p.colors.Error))
		return Failed
	}
	if discord.IsStaff(targetPerms) && !discord.IsAdmin(actorPerms) {
		p.send(req.ChannelID, p.embed("🛡️ Staff Immunity", fmt.Sprintf("%s is staff and cannot be %s by you.", discord.Mention(user.ID), past), p.colors.Warning))
		return RejectedImmune
	}
	return Done
}

// ActorPermissions looks up the invoking member's permissions. Lookup failures
// count as no permissions.
func (p *Pipeline) ActorPermissions(req Request) int64 {
	perms, err := p.platform.Permissions(req.GuildID, req.Actor.ID)
	if err != nil {
		p.logger.Warn("actor permissions unavailable", zap.String("guild_id", req.GuildID), zap.String("user_id", req.Actor.ID), zap.Error(err))
		return 0
	}
	return perms
}

func (p *Pipeline) perform(ctx context.Context, action Action, req Request, result Result, outcome *Outcome) error {
	userID := outcome.Target.User.ID
	switch action {
	case Ban:
		// the platform stops delivering once the member is gone
		outcome.Notified = p.notify(userID, p.notice(ctx, action, req, result, *outcome))
		p.markBan(req.GuildID, userID)
		if err := p.platform.Ban(req.GuildID, userID, result.Reason); err != nil {
			p.forgetBan(req.GuildID, userID)
			if outcome.Notified {
				p.notify(userID, p.embed("ℹ️ Ban Not Applied", fmt.Sprintf("The ban in **%s** did not go through. You are still a member.", req.GuildName), p.colors.Success))
				outcome.Notified = false
			}
			return err
		}
		return nil
	case Kick:
		if err := p.platform.Kick(req.GuildID, userID, result.Reason); err != nil {
			return err
		}
		outcome.Notified = p.notify(userID, p.notice(ctx, action, req, result, *outcome))
		return nil
	case Mute:
		length := result.Duration
		if length <= 0 {
			length = discord.MaxTimeout
		}
		until := p.clock.Now().Add(length)
		return p.platform.Timeout(req.GuildID, userID, &until)
	case Unmute:
		return p.platform.Timeout(req.GuildID, userID, nil)
	case Warn:
		entry, err := p.ledger.Add(ctx, req.GuildID, userID, result.Reason, discord.Tag(req.Actor))
		if err != nil {
			return err
		}
		outcome.CaseID = entry.CaseID
		outcome.Count = entry.Count
		return nil
	default:
		return fmt.Errorf("unsupported action %q", action)
	}
}

// notify attempts a direct message. Failures are expected when the member
// blocks DMs and are only reported through the return value.
func (p *Pipeline) notify(userID string, embed *discordgo.MessageEmbed) bool {
	if !p.dmEnabled || embed == nil {
		return false
	}
	if err := p.platform.DirectMessage(userID, embed); err != nil {
		p.logger.Debug("direct message failed", zap.String("user_id", userID), zap.Error(err))
		return false
	}
	return true
}

func (p *Pipeline) send(channelID string, embed *discordgo.MessageEmbed) {
	if channelID == "" {
		return
	}
	if err := p.platform.SendEmbed(channelID, embed); err != nil {
		p.logger.Warn("reply failed", zap.String("channel_id", channelID), zap.Error(err))
	}
}

func (p *Pipeline) embed(title, description string, color int, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return discord.NewEmbed(title, description, color, p.clock.Now(), fields...)
}

func (p *Pipeline) markBan(guildID, userID string) {
	p.bansMu.Lock()
	defer p.bansMu.Unlock()
	now := p.clock.Now()
	for key, at := range p.bans {
		if now.Sub(at) > time.Minute {
			delete(p.bans, key)
		}
	}
	p.bans[guildID+"|"+userID] = now
}

func (p *Pipeline) forgetBan(guildID, userID string) {
	p.bansMu.Lock()
	defer p.bansMu.Unlock()
	delete(p.bans, guildID+"|"+userID)
}

// IssuedBan reports and forgets whether the pipeline banned userID within the
// last minute. The ban event handler uses it to avoid a second DM.
func (p *Pipeline) IssuedBan(guildID, userID string) bool {
	p.bansMu.Lock()
	defer p.bansMu.Unlock()
	key := guildID + "|" + userID
	at, ok := p.bans[key]
	delete(p.bans, key)
	return ok && p.clock.Now().Sub(at) <= time.Minute
}

func details(action Action, result Result, outcome Outcome) string {
	switch action {
	case Mute:
		if result.DurationText == "" {
			return "Duration: Indefinite"
		}
		return "Duration: " + result.DurationText
	case Warn:
		return fmt.Sprintf("Case ID: %d | Total warnings: %d", outcome.CaseID, outcome.Count)
	default:
		return ""
	}
}

func pastTense(action Action) string {
	switch action {
	case Ban:
		return "banned"
	case Kick:
		return "kicked"
	case Mute:
		return "muted"
	case Unmute:
		return "unmuted"
	case Warn:
		return "warned"
	default:
		return string(action) + "ed"
	}
}

func joinArgs(args []string) string {
	return strings.Join(args, " ")
}
