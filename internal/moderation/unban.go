package moderation

import (
	"context"
	"fmt"

	"warden/internal/discord"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
)

// Unban lifts a ban by user id. There is no tokenizer step and no guard.
func (p *Pipeline) Unban(ctx context.Context, req Request) (Outcome, error) {
	if len(req.Args) == 0 {
		return Outcome{}, Usage("Usage: `unban <user_id>`")
	}
	userID, ok := resolve.ID(req.Args[0])
	if !ok {
		return Outcome{}, Usage("Usage: `unban <user_id>`")
	}
	user, err := p.platform.User(userID)
	if err != nil {
		return Outcome{}, NewUserError(err, fmt.Sprintf("Failed to unban. Error: %v", err))
	}
	if err := p.platform.Unban(req.GuildID, userID); err != nil {
		p.send(req.ChannelID, p.embed("❌ Error", fmt.Sprintf("Failed to unban. Error: %v", err), p.colors.Error))
		return Outcome{Status: Failed, Err: err}, nil
	}

	reason := DefaultReason
	if len(req.Args) > 1 {
		reason = joinArgs(req.Args[1:])
	}
	p.send(req.ChannelID, p.embed("✅ User Unbanned", fmt.Sprintf("**%s** (`%s`) has been unbanned.", discord.Tag(user), userID), p.colors.Success))
	p.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      audit.ActionUnban,
		TargetID:    userID,
		TargetName:  discord.Tag(user),
		ModeratorID: req.Actor.ID,
		Reason:      reason,
	})
	return Outcome{Status: Done}, nil
}
