package moderation

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden/internal/discord"
	"warden/internal/ledger"
	"warden/internal/modules/audit"
)

func (p *Pipeline) target(req Request, usage string) (*discordgo.Member, error) {
	if len(req.Args) == 0 {
		return nil, Usage(usage)
	}
	member, ok := p.resolver.Member(req.GuildID, req.Args[0], req.Mentions)
	if !ok {
		return nil, NewUserError(ErrNoTargets, "Could not find that user.")
	}
	return member, nil
}

// ShowWarnings replies with the member's warnings in insertion order.
func (p *Pipeline) ShowWarnings(ctx context.Context, req Request) error {
	member, err := p.target(req, "Usage: `warnings <user>`")
	if err != nil {
		return err
	}
	list, err := p.ledger.List(ctx, req.GuildID, member.User.ID)
	if err != nil {
		return err
	}
	if len(list) == 0 {
		p.send(req.ChannelID, p.embed("📋 Warnings", fmt.Sprintf("%s has no warnings.", discord.Mention(member.User.ID)), p.colors.Success))
		return nil
	}
	embed := p.embed("📋 Warnings for "+discord.Tag(member.User), "", p.colors.Warning)
	for _, w := range list {
		if len(embed.Fields) == 25 {
			break
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  fmt.Sprintf("Case %d", w.CaseID),
			Value: fmt.Sprintf("**Reason:** %s\n**Moderator:** %s\n**Time:** <t:%d:f>", w.Reason, w.Moderator, w.CreatedAt.Unix()),
		})
	}
	p.send(req.ChannelID, embed)
	return nil
}

func (p *Pipeline) ClearWarnings(ctx context.Context, req Request) error {
	member, err := p.target(req, "Usage: `clearwarns <user>`")
	if err != nil {
		return err
	}
	cleared, err := p.ledger.ClearAll(ctx, req.GuildID, member.User.ID)
	if err != nil {
		return err
	}
	mention := discord.Mention(member.User.ID)
	if cleared == 0 {
		p.send(req.ChannelID, p.embed("ℹ️ No Warnings", mention+" has no warnings.", p.colors.Action))
		return nil
	}
	p.send(req.ChannelID, p.embed("🗑️ Cleared All Warnings", "All warnings cleared for "+mention+".", p.colors.Success))
	p.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      audit.ActionClearWarns,
		TargetID:    member.User.ID,
		TargetName:  discord.Tag(member.User),
		ModeratorID: req.Actor.ID,
		Details:     fmt.Sprintf("Removed: %d", cleared),
	})
	return nil
}

func (p *Pipeline) ClearWarning(ctx context.Context, req Request) error {
	const usage = "Usage: `clearwarn <user> <case_id>`"
	if len(req.Args) < 2 {
		return Usage(usage)
	}
	member, err := p.target(req, usage)
	if err != nil {
		return err
	}
	caseID, err := strconv.Atoi(strings.TrimSpace(req.Args[1]))
	if err != nil {
		return Usage(usage)
	}
	mention := discord.Mention(member.User.ID)
	if err := p.ledger.ClearOne(ctx, req.GuildID, member.User.ID, caseID); err != nil {
		if errors.Is(err, ledger.ErrCaseNotFound) {
			return NewUserError(err, fmt.Sprintf("No warning found with Case ID `%d` for %s.", caseID, mention))
		}
		return err
	}
	p.send(req.ChannelID, p.embed("🗑️ Cleared Warning", fmt.Sprintf("Cleared warning `%d` for %s.", caseID, mention), p.colors.Success))
	p.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      audit.ActionClearWarn,
		TargetID:    member.User.ID,
		TargetName:  discord.Tag(member.User),
		ModeratorID: req.Actor.ID,
		Details:     fmt.Sprintf("Case ID: %d", caseID),
	})
	return nil
}
