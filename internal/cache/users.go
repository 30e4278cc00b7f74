package cache

import (
	"context"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

func (s *Store) UpsertUser(ctx context.Context, user *UserModel) error {
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(user).Error
	if err != nil {
		return err
	}
	s.notifyUsers()
	return nil
}

func (s *Store) UserByID(ctx context.Context, userID string) (*UserModel, error) {
	var model UserModel
	if err := s.db.WithContext(ctx).First(&model, "id = ?", userID).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, nil
		}
		return nil, err
	}
	return &model, nil
}

func (s *Store) SearchUsersByEmail(ctx context.Context, prefix string) ([]UserModel, error) {
	escaped := strings.ReplaceAll(prefix, "%", "\\%")
	escaped = strings.ReplaceAll(escaped, "_", "\\_")

	var models []UserModel
	err := s.db.WithContext(ctx).
		Where("email LIKE ? ESCAPE '\\'", escaped+"%").
		Order("email ASC").
		Find(&models).Error
	if err != nil {
		return nil, err
	}
	return models, nil
}
