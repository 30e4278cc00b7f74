package cache

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) UpsertChat(ctx context.Context, chat *ChatModel) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(chat).Error
	if err != nil {
		return err
	}
	s.notifyChats()
	return nil
}

func (s *Store) UpsertChats(ctx context.Context, chats []ChatModel) error {
	if len(chats) == 0 {
		return nil
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&chats).Error
	if err != nil {
		return err
	}
	s.notifyChats()
	return nil
}

func (s *Store) ChatByID(ctx context.Context, chatID string) (*ChatModel, error) {
	var model ChatModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", chatID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}
