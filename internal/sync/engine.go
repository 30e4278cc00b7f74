package sync

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/simplify-chat/chat-bridge/internal/cache"
	"github.com/simplify-chat/chat-bridge/internal/logger"
	"github.com/simplify-chat/chat-bridge/internal/remote"
)

// Engine reconciles remote snapshots into the local cache and derives
// the denormalized chat-with-user read rows. It is the only writer of
// those rows.
type Engine struct {
	remote remote.Store
	cache  *cache.Store
	log    zerolog.Logger
}

func NewEngine(remoteStore remote.Store, cacheStore *cache.Store) *Engine {
	return &Engine{
		remote: remoteStore,
		cache:  cacheStore,
		log:    logger.Module("sync"),
	}
}

// ReconcileChats merges one snapshot of the user's chats into the
// cache. Chats are processed sequentially; a chat that fails to resolve
// is skipped for this pass and retried on the next snapshot, without
// committing any partial row. Re-running on an unchanged snapshot
// produces identical overwrites and no other cache delta.
//
// Snapshots for one subscription must be passed in arrival order;
// callers consume the watch channel in a single loop, which also makes
// passes for that subscription run one at a time.
func (e *Engine) ReconcileChats(ctx context.Context, userID string, chats []remote.ChatRecord) error {
	for i := range chats {
		if err := ctx.Err(); err != nil {
			return err
		}
		chat := &chats[i]
		// The server-side query should already restrict to the user's
		// chats; treat that as unconfirmed.
		if !chat.HasParticipant(userID) {
			continue
		}
		if err := e.reconcileChat(ctx, userID, chat); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			e.log.Warn().Err(err).Str("chat", chat.ID).Msg("chat skipped this pass")
		}
	}
	return nil
}

func (e *Engine) reconcileChat(ctx context.Context, userID string, chat *remote.ChatRecord) error {
	if chat.ID == "" {
		return fmt.Errorf("chat record without id")
	}
	otherID := chat.OtherParticipant(userID)

	user, err := e.resolveUser(ctx, otherID)
	if err != nil {
		return err
	}

	lastMsg, err := e.resolveLastMessage(ctx, userID, chat)
	if err != nil {
		return err
	}

	status, err := e.remote.GetStatus(ctx, otherID)
	if err != nil {
		return err
	}
	isOnline := status != nil && status.IsOnline

	unread, err := e.countUnread(ctx, userID, chat.ID)
	if err != nil {
		return err
	}

	lastText := ""
	sentByMe := false
	lastTime := remote.FromMillis(chat.UpdatedAt)
	if lastMsg != nil {
		lastText = lastMsg.Text
		sentByMe = lastMsg.SenderID == userID
		lastTime = lastMsg.Timestamp
	}

	return e.cache.ApplyChatBundle(ctx, cache.ChatBundle{
		Chat:        *cache.ChatModelFromRecord(chat),
		User:        *user,
		LastMessage: lastMsg,
		Row: cache.ChatWithUserModel{
			ChatID:              chat.ID,
			UserID:              otherID,
			LastMessageText:     lastText,
			LastMessageSentByMe: sentByMe,
			LastMessageTime:     lastTime,
			IsOnline:            isOnline,
			UnreadCount:         unread,
		},
	})
}

// resolveUser returns the other participant's profile, from the cache
// when present, otherwise from the remote store.
func (e *Engine) resolveUser(ctx context.Context, userID string) (*cache.UserModel, error) {
	cached, err := e.cache.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := e.remote.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, fmt.Errorf("profile %s not found", userID)
	}
	return cache.UserModelFromRecord(rec), nil
}

func (e *Engine) resolveLastMessage(ctx context.Context, userID string, chat *remote.ChatRecord) (*cache.MessageModel, error) {
	if chat.LastMessageID == "" {
		return nil, nil
	}

	cached, err := e.cache.MessageByID(ctx, chat.LastMessageID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached, nil
	}

	rec, err := e.remote.GetMessage(ctx, chat.LastMessageID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		// Dangling pointer; the row falls back to the chat's updatedAt.
		return nil, nil
	}
	return cache.MessageModelFromRecord(rec, userID), nil
}

func (e *Engine) countUnread(ctx context.Context, userID, chatID string) (int, error) {
	msgs, err := e.remote.GetChatMessages(ctx, chatID)
	if err != nil {
		return 0, err
	}
	unread := 0
	for i := range msgs {
		if msgs[i].UnreadFor(userID) {
			unread++
		}
	}
	return unread, nil
}

// CacheMessages mirrors one snapshot of a chat's messages into the
// cache, collapsing per-recipient read state to the viewer's
// perspective. Records not belonging to chatID are dropped defensively.
func (e *Engine) CacheMessages(ctx context.Context, userID, chatID string, msgs []remote.MessageRecord) error {
	models := make([]cache.MessageModel, 0, len(msgs))
	for i := range msgs {
		rec := &msgs[i]
		if rec.ID == "" || rec.ChatID != chatID {
			e.log.Warn().Str("message", rec.ID).Str("chat", chatID).Msg("dropping malformed message record")
			continue
		}
		models = append(models, *cache.MessageModelFromRecord(rec, userID))
	}
	return e.cache.UpsertMessages(ctx, chatID, models)
}
