package party

import "context"

// Member is a resolved chat-platform user.
type Member struct {
	DisplayName string
	Mention     string
}

// ChatPlatform is the external chat binding the core calls to produce
// observable effects. The core depends only on success/failure outcomes (and
// the terminal/transient split carried by PlatformError), never on transport
// details.
type ChatPlatform interface {
	// CreateThread opens a new thread under channelID and returns its id.
	CreateThread(ctx context.Context, channelID, name string) (string, error)

	// SendMessage posts content to a thread and returns the message id.
	SendMessage(ctx context.Context, threadID, content string) (string, error)

	// EditMessage replaces the content of an existing message.
	EditMessage(ctx context.Context, threadID, messageID, content string) error

	// PinMessage pins a message in its thread.
	PinMessage(ctx context.Context, threadID, messageID string) error

	// ArchiveThread archives (or deletes, platform permitting) a thread.
	ArchiveThread(ctx context.Context, threadID string) error

	// ResolveMember resolves a user id to display name and mention token.
	ResolveMember(ctx context.Context, userID string) (Member, error)
}

// EventRecorder receives lifecycle and dispatch events for audit history.
// Recording is best-effort; implementations must not block mutations on it.
type EventRecorder interface {
	RecordEvent(kind, sessionID, detail string)
}
