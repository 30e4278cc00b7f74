package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/repository"
)

type ChatService struct {
	chatRepo repository.ChatRepository
	userRepo repository.UserRepository
}

func NewChatService(chatRepo repository.ChatRepository, userRepo repository.UserRepository) *ChatService {
	return &ChatService{
		chatRepo: chatRepo,
		userRepo: userRepo,
	}
}

func (s *ChatService) LiveChats(ctx context.Context) (<-chan []domain.ChatWithUser, error) {
	return s.chatRepo.UserChats(ctx)
}

func (s *ChatService) LiveMessages(ctx context.Context, chatID string) (<-chan []domain.Message, error) {
	return s.chatRepo.ChatMessages(ctx, chatID)
}

func (s *ChatService) Messages(ctx context.Context, chatID string) ([]domain.Message, error) {
	return s.chatRepo.Messages(ctx, chatID)
}

func (s *ChatService) LiveUnreadCount(ctx context.Context, chatID string) (<-chan int, error) {
	return s.chatRepo.UnreadCount(ctx, chatID)
}

func (s *ChatService) LiveUserStatus(ctx context.Context, userID string) (<-chan domain.UserStatus, error) {
	return s.chatRepo.UserStatus(ctx, userID)
}

func (s *ChatService) SetOnline(ctx context.Context, online bool) error {
	return s.chatRepo.SetOnline(ctx, online)
}

func (s *ChatService) GetChat(ctx context.Context, chatID string) (*domain.Chat, error) {
	return s.chatRepo.ChatByID(ctx, chatID)
}

// StartChat returns the conversation with the given user, creating it
// if none exists yet.
func (s *ChatService) StartChat(ctx context.Context, otherUserID string) (*domain.Chat, error) {
	other, err := s.userRepo.UserByID(ctx, otherUserID)
	if err != nil {
		return nil, err
	}
	if other == nil {
		return nil, fmt.Errorf("user %s not found", otherUserID)
	}
	return s.chatRepo.CreateChat(ctx, otherUserID)
}

func (s *ChatService) SendMessage(ctx context.Context, chatID, text string) (*domain.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, fmt.Errorf("message text is empty")
	}
	return s.chatRepo.SendMessage(ctx, chatID, text)
}

func (s *ChatService) MarkChatRead(ctx context.Context, chatID string) error {
	return s.chatRepo.MarkChatRead(ctx, chatID)
}
