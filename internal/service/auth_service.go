package service

import (
	"context"
	"strings"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/repository"
)

type AuthService struct {
	authRepo repository.AuthRepository
	userRepo repository.UserRepository
}

func NewAuthService(authRepo repository.AuthRepository, userRepo repository.UserRepository) *AuthService {
	return &AuthService{
		authRepo: authRepo,
		userRepo: userRepo,
	}
}

func (s *AuthService) SignIn(ctx context.Context, email, password string, remember bool) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.authRepo.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	if err := s.userRepo.EnsureProfile(ctx); err != nil {
		return nil, err
	}
	if remember {
		if err := s.authRepo.SaveCredentials(email, password); err != nil {
			return nil, err
		}
	}
	return user, nil
}

// SignInSaved signs in with the credentials remembered on this device.
func (s *AuthService) SignInSaved(ctx context.Context) (*domain.User, error) {
	email, password, err := s.authRepo.LoadSavedCredentials()
	if err != nil {
		return nil, err
	}
	return s.SignIn(ctx, email, password, false)
}

func (s *AuthService) SignUp(ctx context.Context, email, password, displayName string, remember bool) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := s.authRepo.SignUp(ctx, email, password, displayName)
	if err != nil {
		return nil, err
	}
	if remember {
		if err := s.authRepo.SaveCredentials(email, password); err != nil {
			return nil, err
		}
	}
	return user, nil
}

func (s *AuthService) SignOut(ctx context.Context) error {
	return s.authRepo.SignOut(ctx)
}

func (s *AuthService) SendPasswordReset(ctx context.Context, email string) error {
	return s.authRepo.SendPasswordReset(ctx, strings.ToLower(strings.TrimSpace(email)))
}

func (s *AuthService) HasSavedCredentials() bool {
	return s.authRepo.HasSavedCredentials()
}

func (s *AuthService) ClearSavedCredentials() error {
	return s.authRepo.ClearSavedCredentials()
}
