// Package discord is the slice of the chat platform the moderation core
// depends on. Session adapts a live discordgo session to it.
package discord

import (
	"errors"
	"time"

	"github.com/bwmarrin/discordgo"
)

// StaffPermissions grant immunity from moderation by non-administrators.
const StaffPermissions = discordgo.PermissionManageMessages |
	discordgo.PermissionKickMembers |
	discordgo.PermissionBanMembers |
	discordgo.PermissionManageRoles |
	discordgo.PermissionModerateMembers

// MaxTimeout is the longest communication timeout the platform accepts.
const MaxTimeout = 28 * 24 * time.Hour

var ErrMemberNotFound = errors.New("member not found")

type Directory interface {
	Member(guildID, userID string) (*discordgo.Member, error)
	Members(guildID string) ([]*discordgo.Member, error)
	User(userID string) (*discordgo.User, error)
	Permissions(guildID, userID string) (int64, error)
	Ban(guildID, userID, reason string) error
	Unban(guildID, userID string) error
	Kick(guildID, userID, reason string) error
	Timeout(guildID, userID string, until *time.Time) error
	AddRole(guildID, userID, roleID string) error
	RemoveRole(guildID, userID, roleID string) error
	Channels(guildID string) ([]*discordgo.Channel, error)
	Roles(guildID string) ([]*discordgo.Role, error)
	SetRoleOverwrite(channelID, roleID string, allow, deny int64) error
	// BotTopRole is the position of the highest role the bot holds.
	BotTopRole(guildID string) (int, error)
}

type Messenger interface {
	SendEmbed(channelID string, embed *discordgo.MessageEmbed) error
	SendText(channelID, content string) error
	DirectMessage(userID string, embed *discordgo.MessageEmbed) error
}

type History interface {
	Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error)
	DeleteMessages(channelID string, ids []string) error
}

type AuditTrail interface {
	// BanEntry returns the moderator and reason of the most recent ban of userID.
	// Both are empty when the audit log has no matching entry.
	BanEntry(guildID, userID string) (moderatorID, reason string, err error)
}

type Platform interface {
	Directory
	Messenger
	History
	AuditTrail
}

// MemberPermissions folds the @everyone role and the member's roles together.
// The guild owner is reported as an administrator.
func MemberPermissions(guild *discordgo.Guild, member *discordgo.Member) int64 {
	if guild == nil || member == nil {
		return 0
	}
	perms := int64(0)
	if member.User != nil && member.User.ID == guild.OwnerID {
		perms |= discordgo.PermissionAdministrator
	}
	roleMap := make(map[string]*discordgo.Role, len(guild.Roles))
	for _, role := range guild.Roles {
		roleMap[role.ID] = role
		if role.ID == guild.ID {
			perms |= role.Permissions
		}
	}
	for _, roleID := range member.Roles {
		if role := roleMap[roleID]; role != nil {
			perms |= role.Permissions
		}
	}
	return perms
}

func IsAdmin(perms int64) bool {
	return perms&discordgo.PermissionAdministrator != 0
}

// Can reports whether perms include every bit of required. Administrators can
// do anything.
func Can(perms, required int64) bool {
	return IsAdmin(perms) || perms&required == required
}

// IsStaff reports whether perms grant any staff permission.
func IsStaff(perms int64) bool {
	return IsAdmin(perms) || perms&StaffPermissions != 0
}

func HasRole(member *discordgo.Member, roleID string) bool {
	if member == nil || roleID == "" {
		return false
	}
	for _, id := range member.Roles {
		if id == roleID {
			return true
		}
	}
	return false
}

// DisplayName is the nickname when set, otherwise the username.
func DisplayName(member *discordgo.Member) string {
	if member == nil {
		return ""
	}
	if member.Nick != "" {
		return member.Nick
	}
	if member.User != nil {
		return member.User.Username
	}
	return ""
}

// Tag renders name#discriminator, or just the name for migrated accounts.
func Tag(user *discordgo.User) string {
	if user == nil {
		return ""
	}
	if user.Discriminator == "" || user.Discriminator == "0" {
		return user.Username
	}
	return user.Username + "#" + user.Discriminator
}
