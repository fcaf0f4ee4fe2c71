package discord

import (
	"time"

	"github.com/bwmarrin/discordgo"
)

func NewEmbed(title, description string, color int, now time.Time, fields ...*discordgo.MessageEmbedField) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       title,
		Description: description,
		Color:       color,
		Timestamp:   now.Format(time.RFC3339),
		Fields:      fields,
	}
}

func Mention(userID string) string {
	return "<@" + userID + ">"
}

func ChannelMention(channelID string) string {
	return "<#" + channelID + ">"
}

func RoleMention(roleID string) string {
	return "<@&" + roleID + ">"
}
