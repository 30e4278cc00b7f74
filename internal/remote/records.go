package remote

import "time"

// Wire records for the four remote collections. Field names follow the
// backend schema; timestamps are milliseconds since the epoch, the
// backend's native representation.

type ChatRecord struct {
	ID            string          `json:"id"`
	Participants  map[string]bool `json:"participants"`
	LastMessageID string          `json:"lastMessageId"`
	CreatedAt     int64           `json:"createdAt"`
	UpdatedAt     int64           `json:"updatedAt"`
}

func (c *ChatRecord) HasParticipant(userID string) bool {
	return c.Participants[userID]
}

// OtherParticipant returns the participant id that is not userID. For a
// self-chat, where userID is the only participant, it returns userID
// itself.
func (c *ChatRecord) OtherParticipant(userID string) string {
	for id, member := range c.Participants {
		if member && id != userID {
			return id
		}
	}
	return userID
}

type MessageRecord struct {
	ID        string          `json:"id"`
	ChatID    string          `json:"chatId"`
	SenderID  string          `json:"senderId"`
	Text      string          `json:"text"`
	Timestamp int64           `json:"timestamp"`
	ReadBy    map[string]bool `json:"readBy"`
}

// UnreadFor reports whether the message counts as unread for userID:
// sent by someone else and not yet flagged read by userID.
func (m *MessageRecord) UnreadFor(userID string) bool {
	return m.SenderID != userID && !m.ReadBy[userID]
}

type UserRecord struct {
	ID          string `json:"id"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
	PhotoURL    string `json:"photoUrl"`
	IsOnline    bool   `json:"isOnline"`
	LastSeen    int64  `json:"lastSeen"`
	LastUpdated int64  `json:"lastUpdated"`
}

type StatusRecord struct {
	UserID   string `json:"userId"`
	IsOnline bool   `json:"isOnline"`
	LastSeen int64  `json:"lastSeen"`
}

// Millis converts a time to the wire timestamp representation.
func Millis(t time.Time) int64 {
	return t.UnixMilli()
}

// FromMillis converts a wire timestamp to a time. Zero maps to the zero
// time rather than the epoch.
func FromMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
