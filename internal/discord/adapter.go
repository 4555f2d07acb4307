package discord

import (
	"context"
	"errors"
	"net/http"

	"github.com/bwmarrin/discordgo"

	"github.com/asheshgoplani/party-deck/internal/party"
)

// Adapter implements party.ChatPlatform on top of a discordgo session. All
// calls are plain REST and work whether or not the gateway is open.
type Adapter struct {
	s *discordgo.Session
}

// NewAdapter wraps an existing discordgo session.
func NewAdapter(s *discordgo.Session) *Adapter {
	return &Adapter{s: s}
}

func (a *Adapter) CreateThread(ctx context.Context, channelID, name string) (string, error) {
	thread, err := a.s.ThreadStartComplex(channelID, &discordgo.ThreadStart{
		Name:                name,
		AutoArchiveDuration: 60,
		Invitable:           false,
		Type:                discordgo.ChannelTypeGuildPublicThread,
	}, discordgo.WithContext(ctx))
	if err != nil {
		return "", platformErr("create_thread", err)
	}
	return thread.ID, nil
}

func (a *Adapter) SendMessage(ctx context.Context, threadID, content string) (string, error) {
	msg, err := a.s.ChannelMessageSend(threadID, content, discordgo.WithContext(ctx))
	if err != nil {
		return "", platformErr("send_message", err)
	}
	return msg.ID, nil
}

func (a *Adapter) EditMessage(ctx context.Context, threadID, messageID, content string) error {
	_, err := a.s.ChannelMessageEdit(threadID, messageID, content, discordgo.WithContext(ctx))
	return platformErr("edit_message", err)
}

func (a *Adapter) PinMessage(ctx context.Context, threadID, messageID string) error {
	err := a.s.ChannelMessagePin(threadID, messageID, discordgo.WithContext(ctx))
	return platformErr("pin_message", err)
}

// ArchiveThread archives and locks the thread. Discord auto-archives threads
// on its own timer; this forces it at cleanup time.
func (a *Adapter) ArchiveThread(ctx context.Context, threadID string) error {
	archived := true
	locked := true
	_, err := a.s.ChannelEditComplex(threadID, &discordgo.ChannelEdit{
		Archived: &archived,
		Locked:   &locked,
	}, discordgo.WithContext(ctx))
	return platformErr("archive_thread", err)
}

func (a *Adapter) ResolveMember(ctx context.Context, userID string) (party.Member, error) {
	user, err := a.s.User(userID, discordgo.WithContext(ctx))
	if err != nil {
		return party.Member{}, platformErr("resolve_member", err)
	}
	name := user.GlobalName
	if name == "" {
		name = user.Username
	}
	return party.Member{
		DisplayName: name,
		Mention:     user.Mention(),
	}, nil
}

// platformErr wraps a discordgo error as a party.PlatformError, classifying
// "target no longer exists" responses as terminal so the core stops
// retrying them.
func platformErr(op string, err error) error {
	if err == nil {
		return nil
	}

	terminal := false
	var restErr *discordgo.RESTError
	if errors.As(err, &restErr) {
		if restErr.Response != nil && restErr.Response.StatusCode == http.StatusNotFound {
			terminal = true
		}
		if restErr.Message != nil {
			switch restErr.Message.Code {
			case discordgo.ErrCodeUnknownChannel, discordgo.ErrCodeUnknownMessage:
				terminal = true
			}
		}
	}

	return &party.PlatformError{Op: op, Terminal: terminal, Err: err}
}
