package cache

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) UpsertMessage(ctx context.Context, msg *MessageModel) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(msg).Error
	if err != nil {
		return err
	}
	s.notifyMessages(msg.ChatID)
	return nil
}

// UpsertMessages replaces the given messages in one transaction. All
// messages are expected to belong to chatID, which scopes the change
// notification.
func (s *Store) UpsertMessages(ctx context.Context, chatID string, msgs []MessageModel) error {
	if len(msgs) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&msgs).Error
	if err != nil {
		return err
	}
	s.notifyMessages(chatID)
	return nil
}

func (s *Store) MessageByID(ctx context.Context, messageID string) (*MessageModel, error) {
	var model MessageModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", messageID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

func (s *Store) MessagesByChat(ctx context.Context, chatID string) ([]MessageModel, error) {
	var models []MessageModel
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Order("timestamp ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}

// MarkMessagesRead flags every message in the chat not authored by
// userID as read from the viewer's perspective.
func (s *Store) MarkMessagesRead(ctx context.Context, chatID, userID string) error {
	err := s.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("chat_id = ? AND sender_id != ?", chatID, userID).
		Update("is_read", true).Error
	if err != nil {
		return err
	}
	s.notifyMessages(chatID)
	return nil
}

func (s *Store) UnreadCount(ctx context.Context, chatID, userID string) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&MessageModel{}).
		Where("chat_id = ? AND sender_id != ? AND is_read = ?", chatID, userID, false).
		Count(&count).Error
	if err != nil {
		return 0, err
	}
	return int(count), nil
}

func (s *Store) DeleteMessagesByChat(ctx context.Context, chatID string) error {
	err := s.db.WithContext(ctx).
		Where("chat_id = ?", chatID).
		Delete(&MessageModel{}).Error
	if err != nil {
		return err
	}
	s.notifyMessages(chatID)
	return nil
}
