package cache

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

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/remote"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)
	store, err := New(db)
	require.NoError(t, err)
	return store
}

func waitFor[T any](t *testing.T, ch <-chan T, pred func(T) bool) T {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case v, ok := <-ch:
			require.True(t, ok, "channel closed before expected value")
			if pred(v) {
				return v
			}
		case <-deadline:
			t.Fatal("timed out waiting for value")
		}
	}
}

func testBundle(chatID, userID string, lastTime time.Time, unread int) ChatBundle {
	return ChatBundle{
		Chat: ChatModel{
			ID:           chatID,
			Participants: JoinParticipants([]string{"me", userID}),
			CreatedAt:    lastTime.Add(-time.Hour),
			UpdatedAt:    lastTime,
		},
		User: UserModel{
			ID:          userID,
			Email:       userID + "@example.com",
			DisplayName: userID,
		},
		Row: ChatWithUserModel{
			ChatID:          chatID,
			UserID:          userID,
			LastMessageText: "hello from " + userID,
			LastMessageTime: lastTime,
			UnreadCount:     unread,
		},
	}
}

func TestParticipantsRoundTrip(t *testing.T) {
	joined := JoinParticipants([]string{"zoe", "abe"})
	assert.Equal(t, "abe,zoe", joined)
	assert.Equal(t, []string{"abe", "zoe"}, SplitParticipants(joined))
	assert.Nil(t, SplitParticipants(""))
}

func TestChatRecordRoundTrip(t *testing.T) {
	now := time.Now().Truncate(time.Millisecond)
	rec := &remote.ChatRecord{
		ID:            "c1",
		Participants:  map[string]bool{"zoe": true, "abe": true, "gone": false},
		LastMessageID: "m1",
		CreatedAt:     remote.Millis(now.Add(-time.Hour)),
		UpdatedAt:     remote.Millis(now),
	}

	chat := ChatModelFromRecord(rec).ToDomain(nil)
	assert.Equal(t, "c1", chat.ID)
	assert.ElementsMatch(t, []string{"abe", "zoe"}, chat.Participants)
	assert.Equal(t, "m1", chat.LastMessageID)
	assert.True(t, chat.CreatedAt.Equal(now.Add(-time.Hour)))
	assert.True(t, chat.UpdatedAt.Equal(now))
}

func TestUpsertChatReplaces(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chat := &ChatModel{ID: "c1", Participants: "a,b", LastMessageID: "m1"}
	require.NoError(t, store.UpsertChat(ctx, chat))

	chat.LastMessageID = "m2"
	require.NoError(t, store.UpsertChat(ctx, chat))

	got, err := store.ChatByID(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "m2", got.LastMessageID)
}

func TestChatByIDMissing(t *testing.T) {
	store := newTestStore(t)
	got, err := store.ChatByID(context.Background(), "nope")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestChatRowsOrderedByActivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now().Truncate(time.Second)

	require.NoError(t, store.ApplyChatBundle(ctx, testBundle("c-old", "u1", now.Add(-time.Hour), 0)))
	require.NoError(t, store.ApplyChatBundle(ctx, testBundle("c-new", "u2", now, 2)))
	require.NoError(t, store.ApplyChatBundle(ctx, testBundle("c-mid", "u3", now.Add(-time.Minute), 0)))

	rows, err := store.ChatRows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 3)
	assert.Equal(t, "c-new", rows[0].Chat.ID)
	assert.Equal(t, "c-mid", rows[1].Chat.ID)
	assert.Equal(t, "c-old", rows[2].Chat.ID)
	assert.Equal(t, 2, rows[0].UnreadCount)
	assert.Equal(t, "u2", rows[0].User.ID)
}

func TestUnreadCountAndMarkRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	msgs := []MessageModel{
		{ID: "m1", ChatID: "c1", SenderID: "them", Text: "hi", Timestamp: now.Add(-2 * time.Minute)},
		{ID: "m2", ChatID: "c1", SenderID: "them", Text: "there", Timestamp: now.Add(-time.Minute)},
		{ID: "m3", ChatID: "c1", SenderID: "me", Text: "hey", Timestamp: now, IsRead: true},
	}
	require.NoError(t, store.UpsertMessages(ctx, "c1", msgs))

	count, err := store.UnreadCount(ctx, "c1", "me")
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	require.NoError(t, store.MarkMessagesRead(ctx, "c1", "me"))

	count, err = store.UnreadCount(ctx, "c1", "me")
	require.NoError(t, err)
	assert.Equal(t, 0, count)

	// Own messages stay untouched by read marking.
	mine, err := store.MessageByID(ctx, "m3")
	require.NoError(t, err)
	assert.True(t, mine.IsRead)
}

func TestMessagesByChatAscending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, store.UpsertMessages(ctx, "c1", []MessageModel{
		{ID: "m2", ChatID: "c1", SenderID: "a", Timestamp: now},
		{ID: "m1", ChatID: "c1", SenderID: "a", Timestamp: now.Add(-time.Minute)},
	}))

	msgs, err := store.MessagesByChat(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "m1", msgs[0].ID)
	assert.Equal(t, "m2", msgs[1].ID)
}

func TestSearchUsersByEmailPrefix(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.UpsertUser(ctx, &UserModel{ID: "u1", Email: "alice@example.com"}))
	require.NoError(t, store.UpsertUser(ctx, &UserModel{ID: "u2", Email: "albert@example.com"}))
	require.NoError(t, store.UpsertUser(ctx, &UserModel{ID: "u3", Email: "bob@example.com"}))

	users, err := store.SearchUsersByEmail(ctx, "al")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "albert@example.com", users[0].Email)
	assert.Equal(t, "alice@example.com", users[1].Email)
}

func TestLiveChatRowsReemits(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	rows := store.LiveChatRows(ctx)
	initial := waitFor(t, rows, func([]domain.ChatWithUser) bool { return true })
	assert.Empty(t, initial)

	require.NoError(t, store.ApplyChatBundle(ctx, testBundle("c1", "u1", time.Now(), 1)))

	updated := waitFor(t, rows, func(v []domain.ChatWithUser) bool { return len(v) == 1 })
	assert.Equal(t, "c1", updated[0].Chat.ID)
}

func TestLiveUnreadCount(t *testing.T) {
	store := newTestStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	counts := store.LiveUnreadCount(ctx, "c1", "me")
	waitFor(t, counts, func(n int) bool { return n == 0 })

	require.NoError(t, store.UpsertMessages(ctx, "c1", []MessageModel{
		{ID: "m1", ChatID: "c1", SenderID: "them", Timestamp: time.Now()},
	}))
	waitFor(t, counts, func(n int) bool { return n == 1 })

	require.NoError(t, store.MarkMessagesRead(ctx, "c1", "me"))
	waitFor(t, counts, func(n int) bool { return n == 0 })
}

func TestClearWipesEverything(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.ApplyChatBundle(ctx, testBundle("c1", "u1", time.Now(), 0)))
	require.NoError(t, store.UpsertMessages(ctx, "c1", []MessageModel{
		{ID: "m1", ChatID: "c1", SenderID: "u1", Timestamp: time.Now()},
	}))

	require.NoError(t, store.Clear(ctx))

	rows, err := store.ChatRows(ctx)
	require.NoError(t, err)
	assert.Empty(t, rows)

	msgs, err := store.MessagesByChat(ctx, "c1")
	require.NoError(t, err)
	assert.Empty(t, msgs)

	user, err := store.UserByID(ctx, "u1")
	require.NoError(t, err)
	assert.Nil(t, user)
}
