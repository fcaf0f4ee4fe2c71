package discord

import (
	"testing"

	"github.com/bwmarrin/discordgo"
	"github.com/stretchr/testify/assert"
)

func TestMemberPermissions(t *testing.T) {
	guild := &discordgo.Guild{
		ID:      "g1",
		OwnerID: "owner",
		Roles: []*discordgo.Role{
			{ID: "g1", Permissions: discordgo.PermissionSendMessages},
			{ID: "mod", Permissions: discordgo.PermissionKickMembers},
			{ID: "admin", Permissions: discordgo.PermissionAdministrator},
		},
	}

	member := &discordgo.Member{User: &discordgo.User{ID: "u1"}, Roles: []string{"mod"}}
	perms := MemberPermissions(guild, member)
	assert.NotZero(t, perms&discordgo.PermissionKickMembers)
	assert.NotZero(t, perms&discordgo.PermissionSendMessages)
	assert.Zero(t, perms&discordgo.PermissionBanMembers)

	admin := &discordgo.Member{User: &discordgo.User{ID: "u2"}, Roles: []string{"admin"}}
	assert.True(t, IsAdmin(MemberPermissions(guild, admin)))
	assert.True(t, Can(MemberPermissions(guild, admin), discordgo.PermissionBanMembers))

	owner := &discordgo.Member{User: &discordgo.User{ID: "owner"}}
	assert.True(t, IsAdmin(MemberPermissions(guild, owner)))

	assert.Zero(t, MemberPermissions(nil, member))
}

func TestTag(t *testing.T) {
	assert.Equal(t, "alice#0001", Tag(&discordgo.User{Username: "alice", Discriminator: "0001"}))
	assert.Equal(t, "bob", Tag(&discordgo.User{Username: "bob", Discriminator: "0"}))
}

func TestTopRolePosition(t *testing.T) {
	roles := []*discordgo.Role{{ID: "a", Position: 3}, {ID: "b", Position: 7}}
	member := &discordgo.Member{Roles: []string{"a", "b", "missing"}}
	assert.Equal(t, 7, TopRolePosition(member, roles))
}

func TestStaffAndCan(t *testing.T) {
	assert.True(t, IsStaff(discordgo.PermissionModerateMembers))
	assert.True(t, IsStaff(discordgo.PermissionManageMessages))
	assert.False(t, IsStaff(discordgo.PermissionSendMessages))
	assert.False(t, Can(discordgo.PermissionKickMembers, discordgo.PermissionKickMembers|discordgo.PermissionBanMembers))
	assert.True(t, Can(discordgo.PermissionAdministrator, discordgo.PermissionManageRoles))
}
