// Package discordtest provides an in-memory guild implementing discord.Platform.
package discordtest

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"warden/internal/discord"
)

var ErrForbidden = errors.New("403 Forbidden: Missing Permissions")

type Overwrite struct {
	Allow int64
	Deny  int64
}

type Sent struct {
	ChannelID string
	Embed     *discordgo.MessageEmbed
	Text      string
}

// Guild is a single fake guild. Operations are recorded so tests can assert
// on side effects, and Fail injects an error for one operation and user.
type Guild struct {
	mu sync.Mutex

	ID       string
	OwnerID  string
	BotID    string
	members  map[string]*discordgo.Member
	order    []string
	roles    []*discordgo.Role
	channels []*discordgo.Channel
	perms    map[string]int64

	Banned     map[string]string
	Kicked     map[string]string
	Timeouts   map[string]*time.Time
	Overwrites map[string]map[string]Overwrite
	Sent       []Sent
	DMs        map[string][]*discordgo.MessageEmbed
	NoDM       map[string]bool
	History    map[string][]*discordgo.Message
	Deleted    map[string][]string
	BanAudit   map[string][2]string

	// BulkCutoff, when set, rejects multi-message deletes that include a
	// message created before it. DeleteCalls records each request's size.
	BulkCutoff  time.Time
	DeleteCalls map[string][]int

	failures map[string]error
}

func NewGuild(id string) *Guild {
	return &Guild{
		ID:          id,
		BotID:       "bot",
		members:     make(map[string]*discordgo.Member),
		perms:       make(map[string]int64),
		Banned:      make(map[string]string),
		Kicked:      make(map[string]string),
		Timeouts:    make(map[string]*time.Time),
		Overwrites:  make(map[string]map[string]Overwrite),
		DMs:         make(map[string][]*discordgo.MessageEmbed),
		NoDM:        make(map[string]bool),
		History:     make(map[string][]*discordgo.Message),
		Deleted:     make(map[string][]string),
		DeleteCalls: make(map[string][]int),
		BanAudit:    make(map[string][2]string),
		failures:    make(map[string]error),
	}
}

// AddMember registers a member with the given permission bits.
func (g *Guild) AddMember(id, username, discriminator string, perms int64, roles ...string) *discordgo.Member {
	g.mu.Lock()
	defer g.mu.Unlock()
	member := &discordgo.Member{
		GuildID: g.ID,
		User:    &discordgo.User{ID: id, Username: username, Discriminator: discriminator},
		Roles:   append([]string(nil), roles...),
	}
	if _, ok := g.members[id]; !ok {
		g.order = append(g.order, id)
	}
	g.members[id] = member
	g.perms[id] = perms
	return member
}

func (g *Guild) AddRoleDef(id, name string, position int) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.roles = append(g.roles, &discordgo.Role{ID: id, Name: name, Position: position})
}

func (g *Guild) AddChannel(id, name string, kind discordgo.ChannelType) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.channels = append(g.channels, &discordgo.Channel{ID: id, GuildID: g.ID, Name: name, Type: kind})
}

// Fail makes op (e.g. "ban", "addrole") return err for userID. An empty
// userID matches every call.
func (g *Guild) Fail(op, userID string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.failures[op+"|"+userID] = err
}

func (g *Guild) failure(op, userID string) error {
	if err := g.failures[op+"|"+userID]; err != nil {
		return err
	}
	return g.failures[op+"|"]
}

func (g *Guild) MemberRoles(userID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	member := g.members[userID]
	if member == nil {
		return nil
	}
	return append([]string(nil), member.Roles...)
}

func (g *Guild) HasRole(userID, roleID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return discord.HasRole(g.members[userID], roleID)
}

// SentTo returns the messages sent to a channel in order.
func (g *Guild) SentTo(channelID string) []Sent {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []Sent
	for _, sent := range g.Sent {
		if sent.ChannelID == channelID {
			out = append(out, sent)
		}
	}
	return out
}

// Titles lists the embed titles sent to a channel.
func (g *Guild) Titles(channelID string) []string {
	var titles []string
	for _, sent := range g.SentTo(channelID) {
		if sent.Embed != nil {
			titles = append(titles, sent.Embed.Title)
		}
	}
	return titles
}

func (g *Guild) DMCount(userID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.DMs[userID])
}

func (g *Guild) Member(guildID, userID string) (*discordgo.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("member", userID); err != nil {
		return nil, err
	}
	member := g.members[userID]
	if member == nil {
		return nil, discord.ErrMemberNotFound
	}
	return member, nil
}

func (g *Guild) Members(guildID string) ([]*discordgo.Member, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]*discordgo.Member, 0, len(g.order))
	for _, id := range g.order {
		if member := g.members[id]; member != nil {
			out = append(out, member)
		}
	}
	return out, nil
}

func (g *Guild) User(userID string) (*discordgo.User, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if member := g.members[userID]; member != nil {
		return member.User, nil
	}
	return &discordgo.User{ID: userID, Username: "user-" + userID}, nil
}

func (g *Guild) Permissions(guildID, userID string) (int64, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("permissions", userID); err != nil {
		return 0, err
	}
	perms, ok := g.perms[userID]
	if !ok {
		return 0, discord.ErrMemberNotFound
	}
	if userID == g.OwnerID {
		perms |= discordgo.PermissionAdministrator
	}
	return perms, nil
}

func (g *Guild) Ban(guildID, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("ban", userID); err != nil {
		return err
	}
	g.Banned[userID] = reason
	g.removeMemberLocked(userID)
	return nil
}

func (g *Guild) Unban(guildID, userID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("unban", userID); err != nil {
		return err
	}
	if _, ok := g.Banned[userID]; !ok {
		return fmt.Errorf("404 Not Found: Unknown Ban")
	}
	delete(g.Banned, userID)
	return nil
}

func (g *Guild) Kick(guildID, userID, reason string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("kick", userID); err != nil {
		return err
	}
	g.Kicked[userID] = reason
	g.removeMemberLocked(userID)
	return nil
}

func (g *Guild) Timeout(guildID, userID string, until *time.Time) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("timeout", userID); err != nil {
		return err
	}
	if until == nil {
		delete(g.Timeouts, userID)
		return nil
	}
	g.Timeouts[userID] = until
	return nil
}

func (g *Guild) AddRole(guildID, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("addrole", userID); err != nil {
		return err
	}
	member := g.members[userID]
	if member == nil {
		return discord.ErrMemberNotFound
	}
	if !discord.HasRole(member, roleID) {
		member.Roles = append(member.Roles, roleID)
	}
	return nil
}

func (g *Guild) RemoveRole(guildID, userID, roleID string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("removerole", userID); err != nil {
		return err
	}
	member := g.members[userID]
	if member == nil {
		return discord.ErrMemberNotFound
	}
	kept := member.Roles[:0]
	for _, id := range member.Roles {
		if id != roleID {
			kept = append(kept, id)
		}
	}
	member.Roles = kept
	return nil
}

func (g *Guild) Channels(guildID string) ([]*discordgo.Channel, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*discordgo.Channel(nil), g.channels...), nil
}

func (g *Guild) Roles(guildID string) ([]*discordgo.Role, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*discordgo.Role(nil), g.roles...), nil
}

func (g *Guild) SetRoleOverwrite(channelID, roleID string, allow, deny int64) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("overwrite", channelID); err != nil {
		return err
	}
	if g.Overwrites[channelID] == nil {
		g.Overwrites[channelID] = make(map[string]Overwrite)
	}
	g.Overwrites[channelID][roleID] = Overwrite{Allow: allow, Deny: deny}
	return nil
}

func (g *Guild) BotTopRole(guildID string) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return discord.TopRolePosition(g.members[g.BotID], g.roles), nil
}

func (g *Guild) SendEmbed(channelID string, embed *discordgo.MessageEmbed) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("send", channelID); err != nil {
		return err
	}
	g.Sent = append(g.Sent, Sent{ChannelID: channelID, Embed: embed})
	return nil
}

func (g *Guild) SendText(channelID, content string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("send", channelID); err != nil {
		return err
	}
	g.Sent = append(g.Sent, Sent{ChannelID: channelID, Text: content})
	return nil
}

func (g *Guild) DirectMessage(userID string, embed *discordgo.MessageEmbed) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.NoDM[userID] {
		return errors.New("50007: Cannot send messages to this user")
	}
	g.DMs[userID] = append(g.DMs[userID], embed)
	return nil
}

// AddHistory appends messages to a channel, oldest first.
func (g *Guild) AddHistory(channelID string, messages ...*discordgo.Message) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.History[channelID] = append(g.History[channelID], messages...)
}

// Messages pages newest first, like the platform does.
func (g *Guild) Messages(channelID string, limit int, beforeID string) ([]*discordgo.Message, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	history := g.History[channelID]
	end := len(history)
	if beforeID != "" {
		for i, msg := range history {
			if msg.ID == beforeID {
				end = i
				break
			}
		}
	}
	var out []*discordgo.Message
	for i := end - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, history[i])
	}
	return out, nil
}

func (g *Guild) DeleteMessages(channelID string, ids []string) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failure("delete", channelID); err != nil {
		return err
	}
	if len(ids) > 1 && !g.BulkCutoff.IsZero() {
		for _, id := range ids {
			if at, err := discordgo.SnowflakeTimestamp(id); err == nil && at.Before(g.BulkCutoff) {
				return errors.New("400 Bad Request: 50034 You can only bulk delete messages that are under 14 days old")
			}
		}
	}
	g.DeleteCalls[channelID] = append(g.DeleteCalls[channelID], len(ids))
	remove := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		remove[id] = struct{}{}
	}
	kept := g.History[channelID][:0]
	for _, msg := range g.History[channelID] {
		if _, ok := remove[msg.ID]; !ok {
			kept = append(kept, msg)
		}
	}
	g.History[channelID] = kept
	g.Deleted[channelID] = append(g.Deleted[channelID], ids...)
	sort.Strings(g.Deleted[channelID])
	return nil
}

func (g *Guild) BanEntry(guildID, userID string) (string, string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry := g.BanAudit[userID]
	return entry[0], entry[1], nil
}

func (g *Guild) removeMemberLocked(userID string) {
	delete(g.members, userID)
	for i, id := range g.order {
		if id == userID {
			g.order = append(g.order[:i], g.order[i+1:]...)
			break
		}
	}
}

var _ discord.Platform = (*Guild)(nil)
