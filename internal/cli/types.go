package cli

import "time"

// ChatInfo is one row of the chat list as shown to the user.
type ChatInfo struct {
	ChatID          string    `json:"chat_id"`
	Name            string    `json:"name"`
	Email           string    `json:"email"`
	Online          bool      `json:"online"`
	UnreadCount     int       `json:"unread_count"`
	LastMessageText string    `json:"last_message_text,omitempty"`
	LastFromMe      bool      `json:"last_from_me"`
	LastMessageTime time.Time `json:"last_message_time,omitempty"`
}

type MessageInfo struct {
	ID        string    `json:"id"`
	SenderID  string    `json:"sender_id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
	IsFromMe  bool      `json:"is_from_me"`
	IsRead    bool      `json:"is_read"`
}

type UserInfo struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"display_name,omitempty"`
	PhotoURL    string `json:"photo_url,omitempty"`
}

// SessionStatus describes the signed-in state for /status.
type SessionStatus struct {
	SignedIn bool   `json:"signed_in"`
	UserID   string `json:"user_id,omitempty"`
	Email    string `json:"email,omitempty"`
	Status   string `json:"status"`
}

// Event is a realtime notification surfaced while the prompt is idle.
type Event struct {
	Type      string      `json:"type"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
}
