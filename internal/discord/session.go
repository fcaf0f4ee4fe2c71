package discord

import (
	"errors"
	"net/http"
	"time"

	"github.com/bwmarrin/discordgo"
)

// Session implements Platform over a live gateway session. Reads prefer the
// state cache and fall back to REST.
type Session struct {
	s *discordgo.Session
}

func NewSession(s *discordgo.Session) *Session {
	return &Session{s: s}
}

func (d *Session) Member(guildID, userID string) (*discordgo.Member, error) {
	if d.s.State != nil {
		if member, err := d.s.State.Member(guildID, userID); err == nil && member != nil {
			return member, nil
		}
	}
	member, err := d.s.GuildMember(guildID, userID)
	if err != nil {
		var restErr *discordgo.RESTError
		if errors.As(err, &restErr) && restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			return nil, ErrMemberNotFound
		}
		return nil, err
	}
	return member, nil
}

func (d *Session) Members(guildID string) ([]*discordgo.Member, error) {
	if guild := d.stateGuild(guildID); guild != nil && len(guild.Members) > 0 && len(guild.Members) >= guild.MemberCount {
		return guild.Members, nil
	}
	var out []*discordgo.Member
	after := ""
	for {
		page, err := d.s.GuildMembers(guildID, after, 1000)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < 1000 {
			return out, nil
		}
		after = page[len(page)-1].User.ID
	}
}

func (d *Session) User(userID string) (*discordgo.User, error) {
	return d.s.User(userID)
}

func (d *Session) Permissions(guildID, userID string) (int64, error) {
	guild, err := d.guild(guildID)
	if err != nil {
		return 0, err
	}
	member, err := d.Member(guildID, userID)
	if err != nil {
		return 0, err
	}
	return MemberPermissions(guild, member), nil
}

func (d *Session) Ban(guildID, userID, reason string) error {
	return d.s.GuildBanCreateWithReason(guildID, userID, reason, 0)
}

func (d *Session) Unban(guildID, userID string) error {
	return d.s.GuildBanDelete(guildID, userID)
}

func (d *Session) Kick(guildID, userID, reason string) error {
	return d.s.GuildMemberDeleteWithReason(guildID, userID, reason)
}

func (d *Session) Timeout(guildID, userID string, until *time.Time) error {
	return d.s.GuildMemberTimeout(guildID, userID, until)
}

func (d *Session) AddRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleAdd(guildID, userID, roleID)
}

func (d *Session) RemoveRole(guildID, userID, roleID string) error {
	return d.s.GuildMemberRoleRemove(guildID, userID, roleID)
}

func (d *Session) Channels(guildID string) ([]*discordgo.Channel, error) {
	if guild := d.stateGuild(guildID); guild != nil && len(guild.Channels) > 0 {
		return guild.Channels, nil
	}
	return d.s.GuildChannels(guildID)
}

func (d *Session) Roles(guildID string) ([]*discordgo.Role, error) {
	if guild := d.stateGuild(guildID); guild != nil && len(guild.Roles) > 0 {
		return guild.Roles, nil
	}
	return d.s.GuildRoles(guildID)
}

func (d *Session) SetRoleOverwrite(channelID, roleID string, allow, deny int64) error {
	return d.s.ChannelPermissionSet(channelID, roleID, discordgo.PermissionOverwriteTypeRole, allow, deny)
}

func (d *Session) BotTopRole(guildID string) (int, error) {
	if d.s.State == nil || d.s.State.User == nil {
		return 0, errors.New("session state not ready")
	}
	member, err := d.Member(guildID, d.s.State.User.ID)
	if err != nil {
		return 0, err
	}
	roles, err := d.Roles(guildID)
	if err != nil {
		return 0, err
	}
	return TopRolePosition(member, roles), nil
}

func (d *Session) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	_, err := d.s.ChannelMessageSendEmbed(channelID, embed)
	return err
}

func (d *Session) SendText(channelID, content string) error {
	_, err := d.s.ChannelMessageSend(channelID, content)
	return err
}

func (d *Session) DirectMessage(userID string, embed *discordgo.MessageEmbed) error {
	channel, err := d.s.UserChannelCreate(userID)
	if err != nil {
		return err
	}
	_, err = d.s.ChannelMessageSendEmbed(channel.ID, embed)
	return err
}

func (d *Session) Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	return d.s.ChannelMessages(channelID, limit, beforeID, "", "")
}

func (d *Session) DeleteMessages(channelID string, ids []string) error {
	switch len(ids) {
	case 0:
		return nil
	case 1:
		return d.s.ChannelMessageDelete(channelID, ids[0])
	default:
		return d.s.ChannelMessagesBulkDelete(channelID, ids)
	}
}

func (d *Session) BanEntry(guildID, userID string) (string, string, error) {
	logs, err := d.s.GuildAuditLog(guildID, "", "", int(discordgo.AuditLogActionMemberBanAdd), 5)
	if err != nil || logs == nil {
		return "", "", err
	}
	for _, entry := range logs.AuditLogEntries {
		if entry == nil || entry.TargetID != userID {
			continue
		}
		return entry.UserID, entry.Reason, nil
	}
	return "", "", nil
}

func (d *Session) stateGuild(guildID string) *discordgo.Guild {
	if d.s.State == nil {
		return nil
	}
	guild, err := d.s.State.Guild(guildID)
	if err != nil {
		return nil
	}
	return guild
}

func (d *Session) guild(guildID string) (*discordgo.Guild, error) {
	if guild := d.stateGuild(guildID); guild != nil {
		return guild, nil
	}
	return d.s.Guild(guildID)
}

// TopRolePosition is the highest position among the member's roles.
func TopRolePosition(member *discordgo.Member, roles []*discordgo.Role) int {
	if member == nil {
		return 0
	}
	positions := make(map[string]int, len(roles))
	for _, role := range roles {
		positions[role.ID] = role.Position
	}
	top := 0
	for _, id := range member.Roles {
		if pos, ok := positions[id]; ok && pos > top {
			top = pos
		}
	}
	return top
}
