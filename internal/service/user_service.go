package service

import (
	"context"
	"strings"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/repository"
)

type UserService struct {
	userRepo repository.UserRepository
}

func NewUserService(userRepo repository.UserRepository) *UserService {
	return &UserService{userRepo: userRepo}
}

func (s *UserService) LiveProfile(ctx context.Context) (<-chan *domain.User, error) {
	return s.userRepo.CurrentProfile(ctx)
}

func (s *UserService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	return s.userRepo.UserByID(ctx, userID)
}

// Search matches emails by prefix. Lookups are case-insensitive in the
// sense that addresses are stored lowercased, so the query is lowered
// before it leaves the process.
func (s *UserService) Search(ctx context.Context, emailPrefix string) ([]*domain.User, error) {
	emailPrefix = strings.ToLower(strings.TrimSpace(emailPrefix))
	if emailPrefix == "" {
		return nil, nil
	}
	return s.userRepo.SearchByEmail(ctx, emailPrefix)
}

func (s *UserService) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	return s.userRepo.UpdateProfile(ctx, strings.TrimSpace(displayName), strings.TrimSpace(photoURL))
}

func (s *UserService) EnsureProfile(ctx context.Context) error {
	return s.userRepo.EnsureProfile(ctx)
}

func (s *UserService) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	return s.userRepo.IsEmailRegistered(ctx, strings.ToLower(strings.TrimSpace(email)))
}
