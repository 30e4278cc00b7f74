package domain

import "time"

// Chat is a two-participant conversation. Participants is a set; a chat
// whose only participant is the current user is a self-chat.
type Chat struct {
	ID            string
	Participants  []string
	LastMessageID string
	CreatedAt     time.Time
	UpdatedAt     time.Time
	LastMessage   *Message
}

func (c *Chat) HasParticipant(userID string) bool {
	for _, p := range c.Participants {
		if p == userID {
			return true
		}
	}
	return false
}

// ChatWithUser is the denormalized read row the chat list renders from:
// one chat, its other participant, and derived preview/presence/unread
// fields. Rows are produced only by reconciliation and read back from the
// local cache.
type ChatWithUser struct {
	Chat                Chat
	User                User
	LastMessageText     string
	LastMessageSentByMe bool
	LastMessageTime     time.Time
	IsOnline            bool
	UnreadCount         int
}
