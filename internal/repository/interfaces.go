package repository

import (
	"context"

	"github.com/simplify-chat/chat-bridge/internal/domain"
)

type ChatRepository interface {
	// UserChats starts the chat subscription for the signed-in user and
	// returns the live, ordered chat list. Every remote snapshot is
	// reconciled into the cache before the stream re-emits.
	UserChats(ctx context.Context) (<-chan []domain.ChatWithUser, error)
	// ChatMessages starts the message subscription for one chat and
	// returns its live, ascending message list.
	ChatMessages(ctx context.Context, chatID string) (<-chan []domain.Message, error)
	// Messages fetches the chat's messages once, refreshing the cache
	// from the remote store when it is reachable.
	Messages(ctx context.Context, chatID string) ([]domain.Message, error)
	UnreadCount(ctx context.Context, chatID string) (<-chan int, error)
	UserStatus(ctx context.Context, userID string) (<-chan domain.UserStatus, error)
	SetOnline(ctx context.Context, online bool) error
	ChatByID(ctx context.Context, chatID string) (*domain.Chat, error)
	// CreateChat returns the existing chat with otherUserID when one
	// already exists, otherwise creates it remotely first.
	CreateChat(ctx context.Context, otherUserID string) (*domain.Chat, error)
	// SendMessage writes the message and advances the chat's
	// last-message pointer. The message is returned even when the
	// pointer update fails after the message write succeeded.
	SendMessage(ctx context.Context, chatID, text string) (*domain.Message, error)
	// MarkChatRead flags every unread message in the chat as read by
	// the signed-in user, remotely in one write and then locally.
	MarkChatRead(ctx context.Context, chatID string) error
}

type UserRepository interface {
	// CurrentProfile returns the live profile of the signed-in user.
	// While the remote record is still absent a minimal profile built
	// from the session is emitted instead.
	CurrentProfile(ctx context.Context) (<-chan *domain.User, error)
	UserByID(ctx context.Context, userID string) (*domain.User, error)
	// SearchByEmail finds users whose email starts with prefix,
	// excluding the signed-in user.
	SearchByEmail(ctx context.Context, prefix string) ([]*domain.User, error)
	UpdateProfile(ctx context.Context, displayName, photoURL string) error
	// EnsureProfile creates the signed-in user's profile record if it
	// does not exist yet.
	EnsureProfile(ctx context.Context) error
	IsEmailRegistered(ctx context.Context, email string) (bool, error)
}

type AuthRepository interface {
	IsAuthenticated() bool
	CurrentUserID() string
	SignIn(ctx context.Context, email, password string) (*domain.User, error)
	SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error)
	// SignOut ends the session and wipes the local cache.
	SignOut(ctx context.Context) error
	SendPasswordReset(ctx context.Context, email string) error
	SaveCredentials(email, password string) error
	LoadSavedCredentials() (email, password string, err error)
	HasSavedCredentials() bool
	ClearSavedCredentials() error
}
