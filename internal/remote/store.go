package remote

import "context"

// Store is the contract of the remote realtime database: keyed,
// tree-shaped collections with one-shot reads/writes, equality/range
// queries on indexed child fields, and long-lived listeners.
//
// Point lookups return (nil, nil) when no record exists.
//
// Watch streams deliver a full snapshot of the queried collection on
// every server-side change, including the first value after
// subscription; they never deliver diffs. A snapshot superseded before
// the consumer reads it may be dropped. The channel closes when ctx is
// cancelled or when the subscription fails unrecoverably; cancellation
// releases the underlying listener.
type Store interface {
	// Chats
	GetChat(ctx context.Context, chatID string) (*ChatRecord, error)
	SetChat(ctx context.Context, chat *ChatRecord) error
	UpdateChat(ctx context.Context, chatID string, fields map[string]any) error
	GetUserChats(ctx context.Context, userID string) ([]ChatRecord, error)
	WatchUserChats(ctx context.Context, userID string) (<-chan []ChatRecord, error)

	// Messages
	GetMessage(ctx context.Context, messageID string) (*MessageRecord, error)
	SetMessage(ctx context.Context, msg *MessageRecord) error
	GetChatMessages(ctx context.Context, chatID string) ([]MessageRecord, error)
	WatchChatMessages(ctx context.Context, chatID string) (<-chan []MessageRecord, error)
	// MarkMessagesRead flags every listed message as read by userID in a
	// single multi-path write.
	MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) error

	// Users
	GetUser(ctx context.Context, userID string) (*UserRecord, error)
	SetUser(ctx context.Context, user *UserRecord) error
	UpdateUser(ctx context.Context, userID string, fields map[string]any) error
	SearchUsersByEmail(ctx context.Context, prefix string) ([]UserRecord, error)
	IsEmailRegistered(ctx context.Context, email string) (bool, error)
	WatchUser(ctx context.Context, userID string) (<-chan *UserRecord, error)

	// Presence
	GetStatus(ctx context.Context, userID string) (*StatusRecord, error)
	SetStatus(ctx context.Context, status *StatusRecord) error
	WatchStatus(ctx context.Context, userID string) (<-chan StatusRecord, error)
}

// pushLatest delivers v on a 1-buffered channel, displacing a pending
// value the consumer has not picked up yet. Used by Watch producers so a
// slow consumer always observes the newest snapshot instead of a
// backlog of stale ones.
func pushLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
