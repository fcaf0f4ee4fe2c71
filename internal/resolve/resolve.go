// Package resolve maps free-text command tokens to guild members and roles.
package resolve

import (
	"regexp"
	"strings"

	"github.com/bwmarrin/discordgo"

	"warden/internal/discord"
)

var (
	mentionPattern = regexp.MustCompile(`^<@!?(\d+)>$`)
	rolePattern    = regexp.MustCompile(`^<@&(\d+)>$`)
	channelPattern = regexp.MustCompile(`^<#(\d+)>$`)
	numeric        = regexp.MustCompile(`^\d+$`)
)

type Resolver struct {
	dir discord.Directory
}

func New(dir discord.Directory) *Resolver {
	return &Resolver{dir: dir}
}

// Member resolves token within guildID. Resolution order: a mention attached
// to the invoking message, a numeric id, name#discriminator, then exact
// username. Matching is case-sensitive.
func (r *Resolver) Member(guildID, token string, mentions []*discordgo.User) (*discordgo.Member, bool) {
	if token == "" {
		return nil, false
	}
	if match := mentionPattern.FindStringSubmatch(token); match != nil {
		if !mentioned(mentions, match[1]) {
			return nil, false
		}
		return r.byID(guildID, match[1])
	}
	if numeric.MatchString(token) {
		return r.byID(guildID, token)
	}

	members, err := r.dir.Members(guildID)
	if err != nil {
		return nil, false
	}
	if idx := strings.LastIndex(token, "#"); idx > 0 {
		name, discrim := token[:idx], token[idx+1:]
		for _, member := range members {
			if member.User != nil && member.User.Username == name && member.User.Discriminator == discrim {
				return member, true
			}
		}
		return nil, false
	}
	for _, member := range members {
		if member.User != nil && member.User.Username == token {
			return member, true
		}
	}
	return nil, false
}

func (r *Resolver) byID(guildID, userID string) (*discordgo.Member, bool) {
	member, err := r.dir.Member(guildID, userID)
	if err != nil || member == nil {
		return nil, false
	}
	return member, true
}

// Loose is the forgiving matcher used by the role toggle: a mention or id,
// otherwise the first member whose username or display name contains query,
// ignoring case.
func (r *Resolver) Loose(guildID, query string, mentions []*discordgo.User) (*discordgo.Member, bool) {
	if mentionPattern.MatchString(query) || numeric.MatchString(query) {
		return r.Member(guildID, query, mentions)
	}
	members, err := r.dir.Members(guildID)
	if err != nil {
		return nil, false
	}
	needle := strings.ToLower(query)
	if needle == "" {
		return nil, false
	}
	for _, member := range members {
		if member.User == nil {
			continue
		}
		if strings.Contains(strings.ToLower(member.User.Username), needle) ||
			strings.Contains(strings.ToLower(discord.DisplayName(member)), needle) {
			return member, true
		}
	}
	return nil, false
}

// Role matches a role mention, id, or case-insensitive name substring.
func Role(roles []*discordgo.Role, query string) (*discordgo.Role, bool) {
	if match := rolePattern.FindStringSubmatch(query); match != nil {
		query = match[1]
	}
	for _, role := range roles {
		if role.ID == query {
			return role, true
		}
	}
	needle := strings.ToLower(query)
	if needle == "" {
		return nil, false
	}
	for _, role := range roles {
		if strings.Contains(strings.ToLower(role.Name), needle) {
			return role, true
		}
	}
	return nil, false
}

// ID strips mention syntax from a user, role or channel token. It returns
// false when the result is not a snowflake.
func ID(token string) (string, bool) {
	for _, pattern := range []*regexp.Regexp{mentionPattern, rolePattern, channelPattern} {
		if match := pattern.FindStringSubmatch(token); match != nil {
			return match[1], true
		}
	}
	if numeric.MatchString(token) {
		return token, true
	}
	return "", false
}

func mentioned(mentions []*discordgo.User, userID string) bool {
	for _, user := range mentions {
		if user != nil && user.ID == userID {
			return true
		}
	}
	return false
}
