package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"sort"
	"strconv"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/db"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"

	"github.com/simplify-chat/chat-bridge/internal/logger"
)

// Firebase Realtime Database scopes needed for admin reads/writes and
// REST streaming.
var databaseScopes = []string{
	"https://www.googleapis.com/auth/firebase.database",
	"https://www.googleapis.com/auth/userinfo.email",
}

type FirebaseConfig struct {
	DatabaseURL     string
	CredentialsFile string
}

// firebaseStore implements Store over the Firebase Realtime Database.
// One-shot operations go through the admin SDK; listeners go through the
// REST streaming protocol, which the admin SDK does not expose.
type firebaseStore struct {
	chats    *db.Ref
	messages *db.Ref
	users    *db.Ref
	statuses *db.Ref
	stream   *streamClient
	log      zerolog.Logger
}

func NewFirebaseStore(ctx context.Context, cfg FirebaseConfig) (Store, error) {
	app, err := firebase.NewApp(ctx,
		&firebase.Config{DatabaseURL: cfg.DatabaseURL},
		option.WithCredentialsFile(cfg.CredentialsFile),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize firebase app: %w", err)
	}

	client, err := app.Database(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database client: %w", err)
	}

	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials: %w", err)
	}
	creds, err := google.CredentialsFromJSON(ctx, data, databaseScopes...)
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	return &firebaseStore{
		chats:    client.NewRef("chats"),
		messages: client.NewRef("messages"),
		users:    client.NewRef("users"),
		statuses: client.NewRef("userStatus"),
		stream:   newStreamClient(cfg.DatabaseURL, creds.TokenSource, logger.Module("remote.stream")),
		log:      logger.Module("remote"),
	}, nil
}

// Chats

func (s *firebaseStore) GetChat(ctx context.Context, chatID string) (*ChatRecord, error) {
	var rec ChatRecord
	if err := s.chats.Child(chatID).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to get chat %s: %w", chatID, err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *firebaseStore) SetChat(ctx context.Context, chat *ChatRecord) error {
	return s.chats.Child(chat.ID).Set(ctx, chat)
}

func (s *firebaseStore) UpdateChat(ctx context.Context, chatID string, fields map[string]any) error {
	return s.chats.Child(chatID).Update(ctx, fields)
}

func (s *firebaseStore) GetUserChats(ctx context.Context, userID string) ([]ChatRecord, error) {
	nodes, err := s.chats.OrderByChild("participants/" + userID).EqualTo(true).GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query chats for %s: %w", userID, err)
	}
	chats := make([]ChatRecord, 0, len(nodes))
	for _, node := range nodes {
		var rec ChatRecord
		if err := node.Unmarshal(&rec); err != nil {
			s.log.Warn().Err(err).Str("chat", node.Key()).Msg("skipping malformed chat record")
			continue
		}
		if rec.ID == "" {
			rec.ID = node.Key()
		}
		chats = append(chats, rec)
	}
	sortChats(chats)
	return chats, nil
}

func (s *firebaseStore) WatchUserChats(ctx context.Context, userID string) (<-chan []ChatRecord, error) {
	params := url.Values{}
	params.Set("orderBy", strconv.Quote("participants/"+userID))
	params.Set("equalTo", "true")
	raw, err := s.stream.listen(ctx, "chats", params)
	if err != nil {
		return nil, err
	}

	out := make(chan []ChatRecord, 1)
	go func() {
		defer close(out)
		for snap := range raw {
			var byID map[string]ChatRecord
			if err := json.Unmarshal(snap, &byID); err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed chats snapshot")
				continue
			}
			chats := make([]ChatRecord, 0, len(byID))
			for id, rec := range byID {
				if rec.ID == "" {
					rec.ID = id
				}
				chats = append(chats, rec)
			}
			sortChats(chats)
			pushLatest(out, chats)
		}
	}()
	return out, nil
}

// Messages

func (s *firebaseStore) GetMessage(ctx context.Context, messageID string) (*MessageRecord, error) {
	var rec MessageRecord
	if err := s.messages.Child(messageID).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to get message %s: %w", messageID, err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *firebaseStore) SetMessage(ctx context.Context, msg *MessageRecord) error {
	return s.messages.Child(msg.ID).Set(ctx, msg)
}

func (s *firebaseStore) GetChatMessages(ctx context.Context, chatID string) ([]MessageRecord, error) {
	nodes, err := s.messages.OrderByChild("chatId").EqualTo(chatID).GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages for chat %s: %w", chatID, err)
	}
	msgs := make([]MessageRecord, 0, len(nodes))
	for _, node := range nodes {
		var rec MessageRecord
		if err := node.Unmarshal(&rec); err != nil {
			s.log.Warn().Err(err).Str("message", node.Key()).Msg("skipping malformed message record")
			continue
		}
		if rec.ID == "" {
			rec.ID = node.Key()
		}
		msgs = append(msgs, rec)
	}
	sortMessages(msgs)
	return msgs, nil
}

func (s *firebaseStore) WatchChatMessages(ctx context.Context, chatID string) (<-chan []MessageRecord, error) {
	params := url.Values{}
	params.Set("orderBy", strconv.Quote("chatId"))
	params.Set("equalTo", strconv.Quote(chatID))
	raw, err := s.stream.listen(ctx, "messages", params)
	if err != nil {
		return nil, err
	}

	out := make(chan []MessageRecord, 1)
	go func() {
		defer close(out)
		for snap := range raw {
			var byID map[string]MessageRecord
			if err := json.Unmarshal(snap, &byID); err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed messages snapshot")
				continue
			}
			msgs := make([]MessageRecord, 0, len(byID))
			for id, rec := range byID {
				if rec.ID == "" {
					rec.ID = id
				}
				msgs = append(msgs, rec)
			}
			sortMessages(msgs)
			pushLatest(out, msgs)
		}
	}()
	return out, nil
}

func (s *firebaseStore) MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	fields := make(map[string]any, len(messageIDs))
	for _, id := range messageIDs {
		fields[id+"/readBy/"+userID] = true
	}
	return s.messages.Update(ctx, fields)
}

// Users

func (s *firebaseStore) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	var rec UserRecord
	if err := s.users.Child(userID).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	if rec.ID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *firebaseStore) SetUser(ctx context.Context, user *UserRecord) error {
	return s.users.Child(user.ID).Set(ctx, user)
}

func (s *firebaseStore) UpdateUser(ctx context.Context, userID string, fields map[string]any) error {
	return s.users.Child(userID).Update(ctx, fields)
}

func (s *firebaseStore) SearchUsersByEmail(ctx context.Context, prefix string) ([]UserRecord, error) {
	// "\uf8ff" sorts after any valid unicode suffix, turning the range
	// query into a prefix match.
	nodes, err := s.users.OrderByChild("email").StartAt(prefix).EndAt(prefix + "\uf8ff").GetOrdered(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to search users: %w", err)
	}
	users := make([]UserRecord, 0, len(nodes))
	for _, node := range nodes {
		var rec UserRecord
		if err := node.Unmarshal(&rec); err != nil {
			s.log.Warn().Err(err).Str("user", node.Key()).Msg("skipping malformed user record")
			continue
		}
		if rec.ID == "" {
			rec.ID = node.Key()
		}
		users = append(users, rec)
	}
	return users, nil
}

func (s *firebaseStore) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	nodes, err := s.users.OrderByChild("email").EqualTo(email).GetOrdered(ctx)
	if err != nil {
		return false, fmt.Errorf("failed to check email: %w", err)
	}
	return len(nodes) > 0, nil
}

func (s *firebaseStore) WatchUser(ctx context.Context, userID string) (<-chan *UserRecord, error) {
	raw, err := s.stream.listen(ctx, "users/"+userID, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan *UserRecord, 1)
	go func() {
		defer close(out)
		for snap := range raw {
			var rec *UserRecord
			if err := json.Unmarshal(snap, &rec); err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed user snapshot")
				continue
			}
			pushLatest(out, rec)
		}
	}()
	return out, nil
}

// Presence

func (s *firebaseStore) GetStatus(ctx context.Context, userID string) (*StatusRecord, error) {
	var rec StatusRecord
	if err := s.statuses.Child(userID).Get(ctx, &rec); err != nil {
		return nil, fmt.Errorf("failed to get status for %s: %w", userID, err)
	}
	if rec.UserID == "" {
		return nil, nil
	}
	return &rec, nil
}

func (s *firebaseStore) SetStatus(ctx context.Context, status *StatusRecord) error {
	return s.statuses.Child(status.UserID).Set(ctx, status)
}

func (s *firebaseStore) WatchStatus(ctx context.Context, userID string) (<-chan StatusRecord, error) {
	raw, err := s.stream.listen(ctx, "userStatus/"+userID, nil)
	if err != nil {
		return nil, err
	}

	out := make(chan StatusRecord, 1)
	go func() {
		defer close(out)
		for snap := range raw {
			var rec StatusRecord
			if err := json.Unmarshal(snap, &rec); err != nil {
				s.log.Warn().Err(err).Msg("skipping malformed status snapshot")
				continue
			}
			pushLatest(out, rec)
		}
	}()
	return out, nil
}

func sortChats(chats []ChatRecord) {
	sort.Slice(chats, func(i, j int) bool { return chats[i].ID < chats[j].ID })
}

func sortMessages(msgs []MessageRecord) {
	sort.Slice(msgs, func(i, j int) bool {
		if msgs[i].Timestamp == msgs[j].Timestamp {
			return msgs[i].ID < msgs[j].ID
		}
		return msgs[i].Timestamp < msgs[j].Timestamp
	})
}

var _ Store = (*firebaseStore)(nil)
