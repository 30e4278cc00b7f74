package cache

import (
	"sort"
	"strings"
	"time"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/remote"
)

// participantSep joins the participant set into one column. User ids
// are backend-issued and never contain it, so split/join round-trips
// the set.
const participantSep = ","

type ChatModel struct {
	ID            string    `gorm:"primaryKey;column:id"`
	Participants  string    `gorm:"column:participants"`
	LastMessageID string    `gorm:"column:last_message_id"`
	CreatedAt     time.Time `gorm:"column:created_at"`
	UpdatedAt     time.Time `gorm:"column:updated_at"`
}

func (ChatModel) TableName() string { return "chats" }

type UserModel struct {
	ID          string    `gorm:"primaryKey;column:id"`
	Email       string    `gorm:"column:email;index"`
	DisplayName string    `gorm:"column:display_name"`
	PhotoURL    string    `gorm:"column:photo_url"`
	LastUpdated time.Time `gorm:"column:last_updated"`
}

func (UserModel) TableName() string { return "users" }

type MessageModel struct {
	ID        string    `gorm:"primaryKey;column:id"`
	ChatID    string    `gorm:"column:chat_id;index:idx_chat_timestamp"`
	SenderID  string    `gorm:"column:sender_id"`
	Text      string    `gorm:"column:text"`
	Timestamp time.Time `gorm:"column:timestamp;index:idx_chat_timestamp"`
	IsRead    bool      `gorm:"column:is_read;index"`
}

func (MessageModel) TableName() string { return "messages" }

// ChatWithUserModel is the persisted denormalized read row. It is
// written only by reconciliation and wiped wholesale on cache clear.
type ChatWithUserModel struct {
	ChatID              string    `gorm:"primaryKey;column:chat_id"`
	UserID              string    `gorm:"primaryKey;column:user_id"`
	LastMessageText     string    `gorm:"column:last_message_text"`
	LastMessageSentByMe bool      `gorm:"column:last_message_sent_by_me"`
	LastMessageTime     time.Time `gorm:"column:last_message_time;index"`
	IsOnline            bool      `gorm:"column:is_online"`
	UnreadCount         int       `gorm:"column:unread_count"`
}

func (ChatWithUserModel) TableName() string { return "chat_with_user" }

// JoinParticipants produces the canonical stored form of a participant
// set: sorted, separator-joined.
func JoinParticipants(ids []string) string {
	sorted := make([]string, len(ids))
	copy(sorted, ids)
	sort.Strings(sorted)
	return strings.Join(sorted, participantSep)
}

func SplitParticipants(joined string) []string {
	if joined == "" {
		return nil
	}
	return strings.Split(joined, participantSep)
}

// Conversion functions

func ChatModelFromRecord(rec *remote.ChatRecord) *ChatModel {
	ids := make([]string, 0, len(rec.Participants))
	for id, member := range rec.Participants {
		if member {
			ids = append(ids, id)
		}
	}
	return &ChatModel{
		ID:            rec.ID,
		Participants:  JoinParticipants(ids),
		LastMessageID: rec.LastMessageID,
		CreatedAt:     remote.FromMillis(rec.CreatedAt),
		UpdatedAt:     remote.FromMillis(rec.UpdatedAt),
	}
}

func ChatModelFromDomain(chat *domain.Chat) *ChatModel {
	return &ChatModel{
		ID:            chat.ID,
		Participants:  JoinParticipants(chat.Participants),
		LastMessageID: chat.LastMessageID,
		CreatedAt:     chat.CreatedAt,
		UpdatedAt:     chat.UpdatedAt,
	}
}

func (m *ChatModel) ToDomain(lastMessage *domain.Message) *domain.Chat {
	if m == nil {
		return nil
	}
	return &domain.Chat{
		ID:            m.ID,
		Participants:  SplitParticipants(m.Participants),
		LastMessageID: m.LastMessageID,
		CreatedAt:     m.CreatedAt,
		UpdatedAt:     m.UpdatedAt,
		LastMessage:   lastMessage,
	}
}

func UserModelFromRecord(rec *remote.UserRecord) *UserModel {
	return &UserModel{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		PhotoURL:    rec.PhotoURL,
		LastUpdated: remote.FromMillis(rec.LastUpdated),
	}
}

func (m *UserModel) ToDomain() *domain.User {
	if m == nil {
		return nil
	}
	return &domain.User{
		ID:          m.ID,
		Email:       m.Email,
		DisplayName: m.DisplayName,
		PhotoURL:    m.PhotoURL,
		LastUpdated: m.LastUpdated,
	}
}

// MessageModelFromRecord collapses the per-recipient read map to the
// viewer's perspective.
func MessageModelFromRecord(rec *remote.MessageRecord, viewerID string) *MessageModel {
	return &MessageModel{
		ID:        rec.ID,
		ChatID:    rec.ChatID,
		SenderID:  rec.SenderID,
		Text:      rec.Text,
		Timestamp: remote.FromMillis(rec.Timestamp),
		IsRead:    rec.ReadBy[viewerID],
	}
}

func MessageModelFromDomain(msg *domain.Message) *MessageModel {
	return &MessageModel{
		ID:        msg.ID,
		ChatID:    msg.ChatID,
		SenderID:  msg.SenderID,
		Text:      msg.Text,
		Timestamp: msg.Timestamp,
		IsRead:    msg.IsRead,
	}
}

func (m *MessageModel) ToDomain() *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:        m.ID,
		ChatID:    m.ChatID,
		SenderID:  m.SenderID,
		Text:      m.Text,
		Timestamp: m.Timestamp,
		IsRead:    m.IsRead,
	}
}
