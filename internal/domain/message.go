package domain

import "time"

// Message as seen by the current viewer. IsRead collapses the remote
// per-recipient read map to "read by the signed-in user" at mapping time.
type Message struct {
	ID        string
	ChatID    string
	SenderID  string
	Text      string
	Timestamp time.Time
	IsRead    bool
}

func NewTextMessage(id, chatID, senderID, text string, timestamp time.Time) *Message {
	return &Message{
		ID:        id,
		ChatID:    chatID,
		SenderID:  senderID,
		Text:      text,
		Timestamp: timestamp,
		IsRead:    true,
	}
}
