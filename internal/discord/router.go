package discord

import (
	"github.com/bwmarrin/discordgo"
)

// Stable action identifiers carried in component custom IDs. One flat table
// of handlers keyed by action id, dispatched from a single interaction
// callback, instead of one handler object per control.
const (
	actionSignup = "party_signup"
)

// valueLeave is the signup menu entry that drops the user from the roster.
const valueLeave = "leave"

type componentHandler func(b *Bot, s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData)

var componentActions = map[string]componentHandler{
	actionSignup: (*Bot).handleSignupSelect,
}

// signupMenu builds the role select component for a recruitment thread.
func signupMenu(roles []string) []discordgo.MessageComponent {
	options := make([]discordgo.SelectMenuOption, 0, len(roles)+1)
	for _, role := range roles {
		options = append(options, discordgo.SelectMenuOption{
			Label: role,
			Value: role,
		})
	}
	options = append(options, discordgo.SelectMenuOption{
		Label:       "Leave party",
		Value:       valueLeave,
		Description: "Drop out of the roster or waitlist",
	})

	return []discordgo.MessageComponent{
		discordgo.ActionsRow{
			Components: []discordgo.MessageComponent{
				discordgo.SelectMenu{
					CustomID:    actionSignup,
					Placeholder: "Pick a role to join, or leave the party",
					Options:     options,
				},
			},
		},
	}
}
