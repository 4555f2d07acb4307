// Package discord binds the party core to Discord: prefix commands and the
// sign-up select menu on the way in, the party.ChatPlatform adapter on the
// way out.
package discord

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/asheshgoplani/party-deck/internal/config"
	"github.com/asheshgoplani/party-deck/internal/logging"
	"github.com/asheshgoplani/party-deck/internal/party"
)

var discordLog = logging.ForComponent(logging.CompDiscord)

// callTimeout bounds REST calls made from event handlers.
const callTimeout = 15 * time.Second

type waiterKey struct {
	channelID string
	userID    string
}

// settings is the hot-reloadable slice of config the bot reads per event.
type settings struct {
	prefix           string
	recruitChannelID string
	roles            []string
	promptTimeout    time.Duration
	location         *time.Location
}

// Bot owns the gateway connection and routes commands and component
// interactions into the session manager.
type Bot struct {
	session *discordgo.Session
	adapter *Adapter
	manager *party.Manager

	mu       sync.Mutex
	cfg      settings
	waiters  map[waiterKey]chan *discordgo.MessageCreate
}

// New builds a bot over a fresh discordgo session. Call Start to connect.
func New(cfg *config.Config, manager *party.Manager) (*Bot, error) {
	if cfg.Discord.Token == "" {
		return nil, fmt.Errorf("discord bot token is not configured (set PARTYDECK_TOKEN)")
	}

	session, err := discordgo.New("Bot " + cfg.Discord.Token)
	if err != nil {
		return nil, fmt.Errorf("create discord session: %w", err)
	}
	session.Identify.Intents = discordgo.IntentGuilds |
		discordgo.IntentGuildMessages |
		discordgo.IntentGuildMembers |
		discordgo.IntentMessageContent

	b := &Bot{
		session: session,
		adapter: NewAdapter(session),
		manager: manager,
		waiters: map[waiterKey]chan *discordgo.MessageCreate{},
	}
	b.applyConfig(cfg)

	session.AddHandler(b.onReady)
	session.AddHandler(b.onMessage)
	session.AddHandler(b.onInteraction)

	return b, nil
}

// Adapter returns the chat platform binding for the dispatcher.
func (b *Bot) Adapter() party.ChatPlatform {
	return b.adapter
}

// UpdateConfig applies a hot-reloaded config to the event handlers.
func (b *Bot) UpdateConfig(cfg *config.Config) {
	b.applyConfig(cfg)
}

func (b *Bot) applyConfig(cfg *config.Config) {
	b.mu.Lock()
	b.cfg = settings{
		prefix:           cfg.Discord.CommandPrefix,
		recruitChannelID: cfg.Discord.RecruitChannelID,
		roles:            append([]string(nil), cfg.Discord.Roles...),
		promptTimeout:    cfg.Session.PromptTimeout(),
		location:         cfg.Location(),
	}
	b.mu.Unlock()
}

func (b *Bot) settings() settings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.cfg
}

// Start opens the gateway and blocks until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if err := b.session.Open(); err != nil {
		return fmt.Errorf("open discord session: %w", err)
	}
	defer b.session.Close()

	<-ctx.Done()
	return nil
}

func (b *Bot) onReady(s *discordgo.Session, _ *discordgo.Ready) {
	discordLog.Info("gateway_ready",
		slog.String("user", s.State.User.Username),
		slog.Int("sessions", len(b.manager.Snapshot())))
}

func (b *Bot) onMessage(s *discordgo.Session, m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.ID == s.State.User.ID || m.Author.Bot {
		return
	}

	// Interactive flows get first claim on the author's next message in
	// this channel.
	if b.deliverToWaiter(m) {
		return
	}

	cfg := b.settings()
	content := strings.TrimSpace(m.Content)
	if !strings.HasPrefix(content, cfg.prefix) {
		return
	}
	command := strings.Fields(strings.TrimPrefix(content, cfg.prefix))
	if len(command) == 0 {
		return
	}

	switch command[0] {
	case "party":
		b.handleRecruit(s, m, cfg)
	case "edit":
		b.handleEdit(s, m, cfg)
	case "cancel":
		b.handleCancel(s, m)
	}
}

// handleRecruit runs the interactive creation flow: prompt, bounded wait,
// parse, thread, session, pinned summary, sign-up menu.
func (b *Bot) handleRecruit(s *discordgo.Session, m *discordgo.MessageCreate, cfg settings) {
	if cfg.recruitChannelID != "" && m.ChannelID != cfg.recruitChannelID {
		b.reply(m.ChannelID, "⚠️ Recruiting only works in the recruitment channel.")
		return
	}

	b.reply(m.ChannelID, "📥 Enter the party details in one line: "+detailsUsage)
	reply, ok := b.await(m.ChannelID, m.Author.ID, cfg.promptTimeout)
	if !ok {
		b.reply(m.ChannelID, "Timed out, try again.")
		return
	}

	activity, dateLabel, timeLabel, err := parseDetails(reply.Content)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}
	startsAt, err := ParseStartTime(dateLabel, timeLabel, time.Now(), cfg.location)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()

	threadID, err := b.adapter.CreateThread(ctx, m.ChannelID,
		fmt.Sprintf("%s's party", displayNameOf(m.Member, m.Author)))
	if err != nil {
		discordLog.Error("thread_create_failed", slog.String("error", err.Error()))
		b.reply(m.ChannelID, "⚠️ Could not create the recruitment thread.")
		return
	}

	sess, err := b.manager.Create(threadID, m.Author.ID, activity, dateLabel, timeLabel, startsAt)
	if err != nil {
		b.replyError(m.ChannelID, err)
		// Best effort: do not leave an orphan thread behind.
		if archiveErr := b.adapter.ArchiveThread(ctx, threadID); archiveErr != nil && !party.IsTerminal(archiveErr) {
			discordLog.Warn("orphan_thread_archive_failed",
				slog.String("thread", threadID),
				slog.String("error", archiveErr.Error()))
		}
		return
	}

	msgID, err := b.adapter.SendMessage(ctx, threadID, renderSummary(sess))
	if err == nil {
		if err := b.adapter.PinMessage(ctx, threadID, msgID); err != nil {
			discordLog.Warn("summary_pin_failed", slog.String("error", err.Error()))
		}
		if err := b.manager.SetMessageRef(threadID, msgID); err != nil {
			discordLog.Warn("message_ref_persist_failed", slog.String("error", err.Error()))
		}
	} else {
		discordLog.Error("summary_send_failed", slog.String("error", err.Error()))
	}

	if _, err := s.ChannelMessageSendComplex(threadID, &discordgo.MessageSend{
		Components: signupMenu(cfg.roles),
	}, discordgo.WithContext(ctx)); err != nil {
		discordLog.Error("signup_menu_send_failed", slog.String("error", err.Error()))
	}

	b.reply(m.ChannelID, fmt.Sprintf("%s recruitment thread created: <#%s>", m.Author.Mention(), threadID))
}

// handleEdit reworks details inside a recruitment thread: bounded wait for
// the new one-liner, then an atomic reschedule through the manager.
func (b *Bot) handleEdit(s *discordgo.Session, m *discordgo.MessageCreate, cfg settings) {
	if _, ok := b.manager.Get(m.ChannelID); !ok {
		b.reply(m.ChannelID, "⚠️ This command only works inside a recruitment thread.")
		return
	}

	b.reply(m.ChannelID, "✏️ Enter the new details in one line: "+detailsUsage)
	reply, ok := b.await(m.ChannelID, m.Author.ID, cfg.promptTimeout)
	if !ok {
		b.reply(m.ChannelID, "Timed out, nothing changed.")
		return
	}

	activity, dateLabel, timeLabel, err := parseDetails(reply.Content)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}
	startsAt, err := ParseStartTime(dateLabel, timeLabel, time.Now(), cfg.location)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}

	sess, err := b.manager.Edit(m.ChannelID, m.Author.ID, activity, dateLabel, timeLabel, startsAt)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}

	b.reply(m.ChannelID, "✅ Party details updated.")
	b.refreshSummary(sess)
}

// handleCancel retires a session on the owner's request and discards its
// thread.
func (b *Bot) handleCancel(s *discordgo.Session, m *discordgo.MessageCreate) {
	sess, err := b.manager.Cancel(m.ChannelID, m.Author.ID)
	if err != nil {
		b.replyError(m.ChannelID, err)
		return
	}

	b.reply(m.ChannelID, "🛑 Recruitment cancelled.")

	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := b.adapter.ArchiveThread(ctx, sess.ID); err != nil && !party.IsTerminal(err) {
		discordLog.Warn("cancel_archive_failed",
			slog.String("thread", sess.ID),
			slog.String("error", err.Error()))
	}
}

func (b *Bot) onInteraction(s *discordgo.Session, ic *discordgo.InteractionCreate) {
	if ic.Type != discordgo.InteractionMessageComponent {
		return
	}
	data := ic.MessageComponentData()
	handler, ok := componentActions[data.CustomID]
	if !ok {
		discordLog.Debug("unknown_component_action", slog.String("custom_id", data.CustomID))
		return
	}
	handler(b, s, ic, data)
}

// handleSignupSelect is the single handler behind the role menu: a role
// value joins (or re-joins, updating the role in place), the leave value
// drops the user.
func (b *Bot) handleSignupSelect(s *discordgo.Session, ic *discordgo.InteractionCreate, data discordgo.MessageComponentInteractionData) {
	if ic.Member == nil || ic.Member.User == nil || len(data.Values) == 0 {
		return
	}
	userID := ic.Member.User.ID
	choice := data.Values[0]

	var (
		view party.RosterView
		err  error
		ack  string
	)
	if choice == valueLeave {
		view, err = b.manager.Leave(ic.ChannelID, userID)
		ack = "You left the party."
	} else {
		view, err = b.manager.Join(ic.ChannelID, userID, displayNameOf(ic.Member, ic.Member.User), choice)
		ack = fmt.Sprintf("Joined as **%s**!", choice)
		if err == nil && onWaitlist(view, userID) {
			ack = fmt.Sprintf("Roster is full, you are on the waitlist as **%s**.", choice)
		}
	}
	if err != nil {
		b.respondEphemeral(s, ic, userFacing(err))
		return
	}

	b.respondEphemeral(s, ic, ack)

	if sess, ok := b.manager.Get(ic.ChannelID); ok {
		b.refreshSummary(sess)
	}
}

// onWaitlist reports whether userID landed anywhere on the waitlist. A user
// changing role keeps their position, so last place is not a safe check.
func onWaitlist(view party.RosterView, userID string) bool {
	for _, p := range view.Waitlist {
		if p.UserID == userID {
			return true
		}
	}
	return false
}

// refreshSummary re-renders the pinned summary after a mutation.
func (b *Bot) refreshSummary(sess *party.Session) {
	if sess.MessageRef == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if err := b.adapter.EditMessage(ctx, sess.ID, sess.MessageRef, renderSummary(sess)); err != nil {
		discordLog.Warn("summary_refresh_failed",
			slog.String("session", sess.ID),
			slog.String("error", err.Error()))
	}
}

// await blocks for the author's next message in the channel, up to timeout.
// Abandonment on timeout is a cancellation, not an error: prior state is
// untouched.
func (b *Bot) await(channelID, userID string, timeout time.Duration) (*discordgo.MessageCreate, bool) {
	key := waiterKey{channelID: channelID, userID: userID}
	ch := make(chan *discordgo.MessageCreate, 1)

	b.mu.Lock()
	b.waiters[key] = ch
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.waiters, key)
		b.mu.Unlock()
	}()

	select {
	case m := <-ch:
		return m, true
	case <-time.After(timeout):
		return nil, false
	}
}

func (b *Bot) deliverToWaiter(m *discordgo.MessageCreate) bool {
	key := waiterKey{channelID: m.ChannelID, userID: m.Author.ID}

	b.mu.Lock()
	ch, ok := b.waiters[key]
	if ok {
		delete(b.waiters, key)
	}
	b.mu.Unlock()

	if ok {
		ch <- m
	}
	return ok
}

func (b *Bot) reply(channelID, content string) {
	ctx, cancel := context.WithTimeout(context.Background(), callTimeout)
	defer cancel()
	if _, err := b.adapter.SendMessage(ctx, channelID, content); err != nil {
		discordLog.Warn("reply_failed",
			slog.String("channel", channelID),
			slog.String("error", err.Error()))
	}
}

func (b *Bot) replyError(channelID string, err error) {
	b.reply(channelID, userFacing(err))
}

func (b *Bot) respondEphemeral(s *discordgo.Session, ic *discordgo.InteractionCreate, content string) {
	err := s.InteractionRespond(ic.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content: content,
			Flags:   discordgo.MessageFlagsEphemeral,
		},
	})
	if err != nil {
		discordLog.Warn("interaction_respond_failed", slog.String("error", err.Error()))
	}
}

// userFacing maps domain errors to messages shown to the initiating user.
func userFacing(err error) string {
	var verr *party.ValidationError
	switch {
	case errors.As(err, &verr):
		return "⚠️ " + verr.Reason + "."
	case errors.Is(err, party.ErrNotFound):
		return "⚠️ There is no open recruitment here."
	case errors.Is(err, party.ErrNotOwner):
		return "⚠️ Only the party owner can do that."
	default:
		return "⚠️ Something went wrong, try again."
	}
}

func displayNameOf(member *discordgo.Member, user *discordgo.User) string {
	if member != nil && member.Nick != "" {
		return member.Nick
	}
	if user.GlobalName != "" {
		return user.GlobalName
	}
	return user.Username
}
