package moderation

import (
	"context"
	"fmt"

	"warden/internal/discord"
	"warden/internal/modules/audit"
	"warden/internal/resolve"
)

// ToggleRole adds the role when the member lacks it and removes it otherwise.
// The member match is loose and the role must sit below the bot's top role.
func (p *Pipeline) ToggleRole(ctx context.Context, req Request) (added bool, err error) {
	if len(req.Args) < 2 {
		return false, Usage("Usage: `role <user> <role>`")
	}
	member, ok := p.resolver.Loose(req.GuildID, req.Args[0], req.Mentions)
	if !ok {
		return false, NewUserError(ErrNoTargets, "User not found. Use the user ID or part of their username/display name.")
	}
	roles, err := p.platform.Roles(req.GuildID)
	if err != nil {
		return false, err
	}
	role, ok := resolve.Role(roles, joinArgs(req.Args[1:]))
	if !ok {
		return false, Usage("Role not found. Use the role ID, exact name, or part of the role name.")
	}
	top, err := p.platform.BotTopRole(req.GuildID)
	if err != nil {
		return false, err
	}
	if role.Position >= top {
		return false, Usage("I cannot manage that role because it is higher than or equal to my top role.")
	}

	action := audit.ActionRoleAdd
	if discord.HasRole(member, role.ID) {
		action = audit.ActionRoleRemove
		err = p.platform.RemoveRole(req.GuildID, member.User.ID, role.ID)
	} else {
		added = true
		err = p.platform.AddRole(req.GuildID, member.User.ID, role.ID)
	}
	if err != nil {
		return false, NewUserError(err, fmt.Sprintf("Failed to toggle role. Error: %v", err))
	}

	mention := discord.Mention(member.User.ID)
	if added {
		p.send(req.ChannelID, p.embed("✅ Role Added", fmt.Sprintf("Added **%s** to %s.", role.Name, mention), p.colors.Success))
	} else {
		p.send(req.ChannelID, p.embed("❌ Role Removed", fmt.Sprintf("Removed **%s** from %s.", role.Name, mention), p.colors.Error))
	}
	p.audit.Log(ctx, audit.Entry{
		GuildID:     req.GuildID,
		Action:      action,
		TargetID:    member.User.ID,
		TargetName:  discord.Tag(member.User),
		ModeratorID: req.Actor.ID,
		Details:     "Role: " + role.Name,
	})
	return added, nil
}
