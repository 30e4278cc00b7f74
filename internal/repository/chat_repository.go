package repository

import (
	"context"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/simplify-chat/chat-bridge/internal/auth"
	"github.com/simplify-chat/chat-bridge/internal/cache"
	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/logger"
	"github.com/simplify-chat/chat-bridge/internal/remote"
	"github.com/simplify-chat/chat-bridge/internal/sync"
)

type chatRepository struct {
	remote  remote.Store
	cache   *cache.Store
	engine  *sync.Engine
	session *auth.Session
	log     zerolog.Logger
}

func NewChatRepository(remoteStore remote.Store, cacheStore *cache.Store, engine *sync.Engine, session *auth.Session) ChatRepository {
	return &chatRepository{
		remote:  remoteStore,
		cache:   cacheStore,
		engine:  engine,
		session: session,
		log:     logger.Module("chat-repo"),
	}
}

func errNotSignedIn() error {
	return domain.NewAuthError(domain.AuthCodeNotSignedIn, "no user is signed in")
}

func (r *chatRepository) UserChats(ctx context.Context) (<-chan []domain.ChatWithUser, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	snapshots, err := r.remote.WatchUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}

	// The live view is scoped to the remote subscription: when the
	// watch channel closes, for whatever reason, cancelling liveCtx
	// closes the returned stream so consumers see the feed end
	// instead of silently reading an unrefreshed cache.
	liveCtx, stopLive := context.WithCancel(ctx)

	// Consuming the watch channel in one loop keeps reconciliation
	// passes for this subscription strictly sequential.
	go func() {
		defer stopLive()
		for chats := range snapshots {
			if err := r.engine.ReconcileChats(ctx, userID, chats); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Error().Err(err).Msg("chat snapshot reconciliation failed")
			}
		}
		if ctx.Err() == nil {
			r.log.Warn().Msg("chat subscription lost, ending live chat stream")
		}
	}()

	return r.cache.LiveChatRows(liveCtx), nil
}

func (r *chatRepository) ChatMessages(ctx context.Context, chatID string) (<-chan []domain.Message, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	snapshots, err := r.remote.WatchChatMessages(ctx, chatID)
	if err != nil {
		return nil, err
	}

	liveCtx, stopLive := context.WithCancel(ctx)

	go func() {
		defer stopLive()
		for msgs := range snapshots {
			if err := r.engine.CacheMessages(ctx, userID, chatID, msgs); err != nil {
				if ctx.Err() != nil {
					return
				}
				r.log.Error().Err(err).Str("chat", chatID).Msg("message snapshot caching failed")
			}
		}
		if ctx.Err() == nil {
			r.log.Warn().Str("chat", chatID).Msg("message subscription lost, ending live message stream")
		}
	}()

	return r.cache.LiveMessages(liveCtx, chatID), nil
}

func (r *chatRepository) Messages(ctx context.Context, chatID string) ([]domain.Message, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	recs, err := r.remote.GetChatMessages(ctx, chatID)
	if err != nil {
		r.log.Warn().Err(err).Str("chat", chatID).Msg("remote message fetch failed, serving cache")
	} else if err := r.engine.CacheMessages(ctx, userID, chatID, recs); err != nil {
		return nil, err
	}

	models, err := r.cache.MessagesByChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, len(models))
	for i := range models {
		msgs[i] = *models[i].ToDomain()
	}
	return msgs, nil
}

func (r *chatRepository) UnreadCount(ctx context.Context, chatID string) (<-chan int, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}
	return r.cache.LiveUnreadCount(ctx, chatID, userID), nil
}

func (r *chatRepository) UserStatus(ctx context.Context, userID string) (<-chan domain.UserStatus, error) {
	snapshots, err := r.remote.WatchStatus(ctx, userID)
	if err != nil {
		return nil, err
	}

	out := make(chan domain.UserStatus, 1)
	go func() {
		defer close(out)
		for rec := range snapshots {
			status := domain.OfflineStatus(userID)
			if rec.UserID != "" {
				status = domain.UserStatus{
					UserID:   rec.UserID,
					IsOnline: rec.IsOnline,
					LastSeen: remote.FromMillis(rec.LastSeen),
				}
			}
			sendLatest(out, status)
		}
	}()
	return out, nil
}

func (r *chatRepository) SetOnline(ctx context.Context, online bool) error {
	userID := r.session.UserID()
	if userID == "" {
		return errNotSignedIn()
	}

	now := remote.Millis(time.Now())
	if err := r.remote.SetStatus(ctx, &remote.StatusRecord{
		UserID:   userID,
		IsOnline: online,
		LastSeen: now,
	}); err != nil {
		return err
	}
	// Keep the profile record's presence fields in step.
	return r.remote.UpdateUser(ctx, userID, map[string]any{
		"isOnline": online,
		"lastSeen": now,
	})
}

func (r *chatRepository) ChatByID(ctx context.Context, chatID string) (*domain.Chat, error) {
	model, err := r.cache.ChatByID(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if model != nil {
		var last *domain.Message
		if model.LastMessageID != "" {
			msg, err := r.cache.MessageByID(ctx, model.LastMessageID)
			if err != nil {
				return nil, err
			}
			if msg != nil {
				last = msg.ToDomain()
			}
		}
		return model.ToDomain(last), nil
	}

	rec, err := r.remote.GetChat(ctx, chatID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if err := r.cache.UpsertChat(ctx, cache.ChatModelFromRecord(rec)); err != nil {
		r.log.Warn().Err(err).Str("chat", chatID).Msg("caching fetched chat failed")
	}
	return chatRecordToDomain(rec), nil
}

// CreateChat looks for an existing chat whose participant set is
// exactly {me, other} before creating one, so repeated starts converge
// on the same chat. A self-chat is the single-participant set {me}.
func (r *chatRepository) CreateChat(ctx context.Context, otherUserID string) (*domain.Chat, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	existing, err := r.remote.GetUserChats(ctx, userID)
	if err != nil {
		return nil, err
	}
	for i := range existing {
		if sameConversation(&existing[i], userID, otherUserID) {
			return chatRecordToDomain(&existing[i]), nil
		}
	}

	participants := map[string]bool{userID: true}
	if otherUserID != userID {
		participants[otherUserID] = true
	}
	now := remote.Millis(time.Now())
	rec := &remote.ChatRecord{
		ID:           uuid.NewString(),
		Participants: participants,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := r.remote.SetChat(ctx, rec); err != nil {
		return nil, err
	}
	r.log.Info().Str("chat", rec.ID).Str("with", otherUserID).Msg("chat created")
	return chatRecordToDomain(rec), nil
}

func (r *chatRepository) SendMessage(ctx context.Context, chatID, text string) (*domain.Message, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	msg := domain.NewTextMessage(uuid.NewString(), chatID, userID, text, time.Now())
	rec := &remote.MessageRecord{
		ID:        msg.ID,
		ChatID:    chatID,
		SenderID:  userID,
		Text:      text,
		Timestamp: remote.Millis(msg.Timestamp),
		ReadBy:    map[string]bool{userID: true},
	}
	if err := r.remote.SetMessage(ctx, rec); err != nil {
		return nil, err
	}

	// Mirror locally so the message shows before the next snapshot.
	if err := r.cache.UpsertMessage(ctx, cache.MessageModelFromDomain(msg)); err != nil {
		r.log.Warn().Err(err).Str("message", msg.ID).Msg("local mirror of sent message failed")
	}

	// The message exists remotely at this point; a failed pointer
	// update still hands the message back with the error.
	if err := r.remote.UpdateChat(ctx, chatID, map[string]any{
		"lastMessageId": msg.ID,
		"updatedAt":     remote.Millis(msg.Timestamp),
	}); err != nil {
		return msg, err
	}
	return msg, nil
}

func (r *chatRepository) MarkChatRead(ctx context.Context, chatID string) error {
	userID := r.session.UserID()
	if userID == "" {
		return errNotSignedIn()
	}

	msgs, err := r.remote.GetChatMessages(ctx, chatID)
	if err != nil {
		return err
	}
	ids := make([]string, 0, len(msgs))
	for i := range msgs {
		if msgs[i].UnreadFor(userID) {
			ids = append(ids, msgs[i].ID)
		}
	}
	if len(ids) == 0 {
		return nil
	}

	if err := r.remote.MarkMessagesRead(ctx, ids, userID); err != nil {
		return err
	}
	return r.cache.MarkMessagesRead(ctx, chatID, userID)
}

func chatRecordToDomain(rec *remote.ChatRecord) *domain.Chat {
	participants := make([]string, 0, len(rec.Participants))
	for id, member := range rec.Participants {
		if member {
			participants = append(participants, id)
		}
	}
	sort.Strings(participants)
	return &domain.Chat{
		ID:            rec.ID,
		Participants:  participants,
		LastMessageID: rec.LastMessageID,
		CreatedAt:     remote.FromMillis(rec.CreatedAt),
		UpdatedAt:     remote.FromMillis(rec.UpdatedAt),
	}
}

func sameConversation(rec *remote.ChatRecord, userID, otherUserID string) bool {
	if !rec.HasParticipant(userID) {
		return false
	}
	members := 0
	for _, m := range rec.Participants {
		if m {
			members++
		}
	}
	if userID == otherUserID {
		return members == 1
	}
	return members == 2 && rec.HasParticipant(otherUserID)
}

// sendLatest replaces a pending value the consumer has not read yet, so
// the channel always holds the newest state.
func sendLatest[T any](ch chan T, v T) {
	for {
		select {
		case ch <- v:
			return
		default:
			select {
			case <-ch:
			default:
			}
		}
	}
}
