package cache

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/simplify-chat/chat-bridge/internal/domain"
)

func (s *Store) UpsertChatRow(ctx context.Context, row *ChatWithUserModel) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
		UpdateAll: true,
	}).Create(row).Error
	if err != nil {
		return err
	}
	s.notifyChatRows()
	return nil
}

// ChatBundle is everything reconciliation derives for one chat. It is
// committed atomically: either the whole bundle lands or none of it.
type ChatBundle struct {
	Chat        ChatModel
	User        UserModel
	LastMessage *MessageModel
	Row         ChatWithUserModel
}

func (s *Store) ApplyChatBundle(ctx context.Context, bundle ChatBundle) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&bundle.Chat).Error; err != nil {
			return err
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			UpdateAll: true,
		}).Create(&bundle.User).Error; err != nil {
			return err
		}
		if bundle.LastMessage != nil {
			if err := tx.Clauses(clause.OnConflict{
				Columns:   []clause.Column{{Name: "id"}},
				UpdateAll: true,
			}).Create(bundle.LastMessage).Error; err != nil {
				return err
			}
		}
		return tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "chat_id"}, {Name: "user_id"}},
			UpdateAll: true,
		}).Create(&bundle.Row).Error
	})
	if err != nil {
		return err
	}

	s.notifyChats()
	s.notifyUsers()
	if bundle.LastMessage != nil {
		s.notifyMessages(bundle.Chat.ID)
	}
	s.notifyChatRows()
	return nil
}

type chatRowJoin struct {
	ChatID              string    `gorm:"column:chat_id"`
	UserID              string    `gorm:"column:user_id"`
	LastMessageText     string    `gorm:"column:last_message_text"`
	LastMessageSentByMe bool      `gorm:"column:last_message_sent_by_me"`
	LastMessageTime     time.Time `gorm:"column:last_message_time"`
	IsOnline            bool      `gorm:"column:is_online"`
	UnreadCount         int       `gorm:"column:unread_count"`
	Participants        string    `gorm:"column:participants"`
	LastMessageID       string    `gorm:"column:last_message_id"`
	ChatCreatedAt       time.Time `gorm:"column:chat_created_at"`
	ChatUpdatedAt       time.Time `gorm:"column:chat_updated_at"`
	Email               string    `gorm:"column:email"`
	DisplayName         string    `gorm:"column:display_name"`
	PhotoURL            string    `gorm:"column:photo_url"`
	UserLastUpdated     time.Time `gorm:"column:user_last_updated"`
}

// ChatRows returns the denormalized chat list, joined and ordered by
// last message time at the storage layer so consumers never re-sort.
func (s *Store) ChatRows(ctx context.Context) ([]domain.ChatWithUser, error) {
	var rows []chatRowJoin
	err := s.db.WithContext(ctx).Raw(`
		SELECT cu.chat_id, cu.user_id, cu.last_message_text, cu.last_message_sent_by_me,
		       cu.last_message_time, cu.is_online, cu.unread_count,
		       c.participants, c.last_message_id,
		       c.created_at AS chat_created_at, c.updated_at AS chat_updated_at,
		       u.email, u.display_name, u.photo_url,
		       u.last_updated AS user_last_updated
		FROM chat_with_user cu
		INNER JOIN chats c ON cu.chat_id = c.id
		INNER JOIN users u ON cu.user_id = u.id
		ORDER BY cu.last_message_time DESC
	`).Scan(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]domain.ChatWithUser, len(rows))
	for i, r := range rows {
		out[i] = domain.ChatWithUser{
			Chat: domain.Chat{
				ID:            r.ChatID,
				Participants:  SplitParticipants(r.Participants),
				LastMessageID: r.LastMessageID,
				CreatedAt:     r.ChatCreatedAt,
				UpdatedAt:     r.ChatUpdatedAt,
			},
			User: domain.User{
				ID:          r.UserID,
				Email:       r.Email,
				DisplayName: r.DisplayName,
				PhotoURL:    r.PhotoURL,
				LastUpdated: r.UserLastUpdated,
			},
			LastMessageText:     r.LastMessageText,
			LastMessageSentByMe: r.LastMessageSentByMe,
			LastMessageTime:     r.LastMessageTime,
			IsOnline:            r.IsOnline,
			UnreadCount:         r.UnreadCount,
		}
	}
	return out, nil
}
