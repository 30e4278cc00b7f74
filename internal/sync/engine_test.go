package sync

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simplify-chat/chat-bridge/internal/cache"
	"github.com/simplify-chat/chat-bridge/internal/remote"
)

const viewer = "me"

func newTestEngine(t *testing.T) (*Engine, *remote.MemoryStore, *cache.Store) {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	cacheStore, err := cache.New(db)
	require.NoError(t, err)
	remoteStore := remote.NewMemoryStore()
	return NewEngine(remoteStore, cacheStore), remoteStore, cacheStore
}

func seedConversation(store *remote.MemoryStore, now time.Time) {
	store.Seed(
		[]remote.UserRecord{
			{ID: "bob", Email: "bob@example.com", DisplayName: "Bob", LastUpdated: remote.Millis(now)},
		},
		[]remote.ChatRecord{
			{
				ID:            "c1",
				Participants:  map[string]bool{viewer: true, "bob": true},
				LastMessageID: "m2",
				CreatedAt:     remote.Millis(now.Add(-time.Hour)),
				UpdatedAt:     remote.Millis(now),
			},
		},
		[]remote.MessageRecord{
			{ID: "m1", ChatID: "c1", SenderID: viewer, Text: "hi bob", Timestamp: remote.Millis(now.Add(-time.Minute)), ReadBy: map[string]bool{viewer: true, "bob": true}},
			{ID: "m2", ChatID: "c1", SenderID: "bob", Text: "hi back", Timestamp: remote.Millis(now), ReadBy: map[string]bool{"bob": true}},
		},
		[]remote.StatusRecord{
			{UserID: "bob", IsOnline: true, LastSeen: remote.Millis(now)},
		},
	)
}

func fetchChats(t *testing.T, store *remote.MemoryStore, userID string) []remote.ChatRecord {
	t.Helper()
	chats, err := store.GetUserChats(context.Background(), userID)
	require.NoError(t, err)
	return chats
}

func TestReconcileBuildsRow(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Millisecond)
	seedConversation(remoteStore, now)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	row := rows[0]
	assert.Equal(t, "c1", row.Chat.ID)
	assert.Equal(t, "bob", row.User.ID)
	assert.Equal(t, "Bob", row.User.DisplayName)
	assert.Equal(t, "hi back", row.LastMessageText)
	assert.False(t, row.LastMessageSentByMe)
	assert.True(t, row.LastMessageTime.Equal(now))
	assert.True(t, row.IsOnline)
	assert.Equal(t, 1, row.UnreadCount)
}

func TestReconcileIgnoresForeignChats(t *testing.T) {
	engine, _, cacheStore := newTestEngine(t)
	ctx := context.Background()

	chats := []remote.ChatRecord{
		{ID: "c9", Participants: map[string]bool{"alice": true, "bob": true}},
	}
	require.NoError(t, engine.ReconcileChats(ctx, viewer, chats))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)
}

func TestReconcileSelfChat(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	remoteStore.Seed(
		[]remote.UserRecord{{ID: viewer, Email: "me@example.com", DisplayName: "Me"}},
		[]remote.ChatRecord{{
			ID:           "self",
			Participants: map[string]bool{viewer: true},
			CreatedAt:    remote.Millis(now),
			UpdatedAt:    remote.Millis(now),
		}},
		nil, nil,
	)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, viewer, rows[0].User.ID)
	assert.Equal(t, 0, rows[0].UnreadCount)
}

func TestReconcileIdempotent(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()
	seedConversation(remoteStore, time.Now())
	chats := fetchChats(t, remoteStore, viewer)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, chats))
	first, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, chats))
	second, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)

	assert.Equal(t, first, second)
}

func TestReconcileLastMessageFallback(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()
	updatedAt := time.Now().Truncate(time.Millisecond)

	remoteStore.Seed(
		[]remote.UserRecord{{ID: "bob", Email: "bob@example.com"}},
		[]remote.ChatRecord{{
			ID:            "c1",
			Participants:  map[string]bool{viewer: true, "bob": true},
			LastMessageID: "gone",
			UpdatedAt:     remote.Millis(updatedAt),
		}},
		nil, nil,
	)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].LastMessageText)
	assert.True(t, rows[0].LastMessageTime.Equal(updatedAt))
}

func TestReconcileEmptyLastMessagePointer(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()
	updatedAt := time.Now().Truncate(time.Millisecond)

	remoteStore.Seed(
		[]remote.UserRecord{{ID: "bob", Email: "bob@example.com"}},
		[]remote.ChatRecord{{
			ID:           "c1",
			Participants: map[string]bool{viewer: true, "bob": true},
			UpdatedAt:    remote.Millis(updatedAt),
		}},
		nil, nil,
	)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Empty(t, rows[0].LastMessageText)
	assert.False(t, rows[0].LastMessageSentByMe)
	assert.True(t, rows[0].LastMessageTime.Equal(updatedAt))
	assert.Zero(t, rows[0].UnreadCount)
}

func TestReconcilePresenceDefaultsOffline(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()

	remoteStore.Seed(
		[]remote.UserRecord{{ID: "bob", Email: "bob@example.com"}},
		[]remote.ChatRecord{{ID: "c1", Participants: map[string]bool{viewer: true, "bob": true}}},
		nil, nil,
	)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.False(t, rows[0].IsOnline)
}

func TestReconcileSkipsChatWithMissingProfile(t *testing.T) {
	engine, remoteStore, cacheStore := newTestEngine(t)
	ctx := context.Background()

	remoteStore.Seed(
		[]remote.UserRecord{{ID: "bob", Email: "bob@example.com"}},
		[]remote.ChatRecord{
			{ID: "c-ghost", Participants: map[string]bool{viewer: true, "ghost": true}},
			{ID: "c-bob", Participants: map[string]bool{viewer: true, "bob": true}},
		},
		nil, nil,
	)

	require.NoError(t, engine.ReconcileChats(ctx, viewer, fetchChats(t, remoteStore, viewer)))

	rows, err := cacheStore.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, "c-bob", rows[0].Chat.ID)
}

func TestCacheMessagesViewerPerspective(t *testing.T) {
	engine, _, cacheStore := newTestEngine(t)
	ctx := context.Background()
	now := time.Now()

	msgs := []remote.MessageRecord{
		{ID: "m1", ChatID: "c1", SenderID: "bob", Text: "unread", Timestamp: remote.Millis(now.Add(-time.Minute)), ReadBy: map[string]bool{"bob": true}},
		{ID: "m2", ChatID: "c1", SenderID: "bob", Text: "seen", Timestamp: remote.Millis(now), ReadBy: map[string]bool{"bob": true, viewer: true}},
		{ID: "m3", ChatID: "other", SenderID: "bob", Text: "misfiled", Timestamp: remote.Millis(now)},
	}
	require.NoError(t, engine.CacheMessages(ctx, viewer, "c1", msgs))

	cached, err := cacheStore.MessagesByChat(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, cached, 2)
	assert.False(t, cached[0].IsRead)
	assert.True(t, cached[1].IsRead)
}
