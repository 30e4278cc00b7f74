package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"
	"time"

	"github.com/simplify-chat/chat-bridge/internal/auth"
	"github.com/simplify-chat/chat-bridge/internal/cache"
	"github.com/simplify-chat/chat-bridge/internal/cli"
	"github.com/simplify-chat/chat-bridge/internal/config"
	"github.com/simplify-chat/chat-bridge/internal/logger"
	"github.com/simplify-chat/chat-bridge/internal/remote"
	"github.com/simplify-chat/chat-bridge/internal/repository"
	"github.com/simplify-chat/chat-bridge/internal/service"
	"github.com/simplify-chat/chat-bridge/internal/sync"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cacheStore, err := cache.Open(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("Failed to open local cache: %v", err)
	}

	session := auth.NewSession()
	authClient := auth.NewClient(cfg.APIKey)
	credsStore := auth.NewCredentialsStore(cfg.CredsStorePath)

	var remoteStore remote.Store
	if cfg.Mode == "offline" {
		remoteStore = seededDemoStore(session)
	} else {
		if cfg.DatabaseURL == "" {
			log.Fatal("Missing -database-url (or CB_DATABASE_URL); use -mode offline for the in-memory demo backend")
		}
		remoteStore, err = remote.NewFirebaseStore(ctx, remote.FirebaseConfig{
			DatabaseURL:     cfg.DatabaseURL,
			CredentialsFile: cfg.CredentialsFile,
		})
		if err != nil {
			log.Fatalf("Failed to connect to remote database: %v", err)
		}
	}

	engine := sync.NewEngine(remoteStore, cacheStore)

	chatRepo := repository.NewChatRepository(remoteStore, cacheStore, engine, session)
	userRepo := repository.NewUserRepository(remoteStore, cacheStore, session)
	authRepo := repository.NewAuthRepository(authClient, session, credsStore, remoteStore, cacheStore)

	authSvc := service.NewAuthService(authRepo, userRepo)
	chatSvc := service.NewChatService(chatRepo, userRepo)
	userSvc := service.NewUserService(userRepo)

	handler := cli.NewCommandHandler(authSvc, chatSvc, userSvc, session)
	interactive := cli.NewInteractiveCLI(handler)

	if err := interactive.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("CLI error: %v", err)
	}

	// Best effort: leave the presence record offline on the way out.
	if session.Authenticated() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := chatSvc.SetOnline(shutdownCtx, false); err != nil {
			logger.Log.Warn().Err(err).Msg("publishing offline presence on exit failed")
		}
	}
}

// seededDemoStore builds an in-memory backend with a signed-in demo
// account and a couple of conversations, so the CLI is usable without
// any remote project configured.
func seededDemoStore(session *auth.Session) remote.Store {
	store := remote.NewMemoryStore()
	now := time.Now()
	ms := func(off time.Duration) int64 { return remote.Millis(now.Add(off)) }

	me := "demo-user"
	alice := "demo-alice"
	bob := "demo-bob"

	store.Seed(
		[]remote.UserRecord{
			{ID: me, Email: "demo@example.com", DisplayName: "Demo", LastUpdated: ms(0)},
			{ID: alice, Email: "alice@example.com", DisplayName: "Alice", IsOnline: true, LastUpdated: ms(0)},
			{ID: bob, Email: "bob@example.com", DisplayName: "Bob", LastSeen: ms(-time.Hour), LastUpdated: ms(0)},
		},
		[]remote.ChatRecord{
			{ID: "chat-alice", Participants: map[string]bool{me: true, alice: true}, LastMessageID: "msg-2", CreatedAt: ms(-48 * time.Hour), UpdatedAt: ms(-time.Minute)},
			{ID: "chat-bob", Participants: map[string]bool{me: true, bob: true}, LastMessageID: "msg-3", CreatedAt: ms(-24 * time.Hour), UpdatedAt: ms(-2 * time.Hour)},
		},
		[]remote.MessageRecord{
			{ID: "msg-1", ChatID: "chat-alice", SenderID: me, Text: "Hey Alice!", Timestamp: ms(-10 * time.Minute), ReadBy: map[string]bool{me: true, alice: true}},
			{ID: "msg-2", ChatID: "chat-alice", SenderID: alice, Text: "Hi! How is the new client coming along?", Timestamp: ms(-time.Minute), ReadBy: map[string]bool{alice: true}},
			{ID: "msg-3", ChatID: "chat-bob", SenderID: bob, Text: "Lunch tomorrow?", Timestamp: ms(-2 * time.Hour), ReadBy: map[string]bool{bob: true}},
		},
		[]remote.StatusRecord{
			{UserID: alice, IsOnline: true, LastSeen: ms(0)},
			{UserID: bob, IsOnline: false, LastSeen: ms(-time.Hour)},
		},
	)

	session.Begin(&auth.Account{UserID: me, Email: "demo@example.com", DisplayName: "Demo"})
	return store
}
