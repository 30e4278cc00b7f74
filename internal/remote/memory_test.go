package remote

import (
	"context"
	"fmt"
	gosync "sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv[T any](t *testing.T, ch <-chan T) T {
	t.Helper()
	select {
	case v, ok := <-ch:
		require.True(t, ok, "channel closed unexpectedly")
		return v
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for snapshot")
		panic("unreachable")
	}
}

func waitClosed[T any](t *testing.T, ch <-chan T) {
	t.Helper()
	deadline := time.After(2 * time.Second)
	for {
		select {
		case _, ok := <-ch:
			if !ok {
				return
			}
		case <-deadline:
			t.Fatal("channel never closed")
		}
	}
}

func TestOtherParticipant(t *testing.T) {
	chat := &ChatRecord{Participants: map[string]bool{"a": true, "b": true}}
	assert.Equal(t, "b", chat.OtherParticipant("a"))
	assert.Equal(t, "a", chat.OtherParticipant("b"))

	self := &ChatRecord{Participants: map[string]bool{"a": true}}
	assert.Equal(t, "a", self.OtherParticipant("a"))
}

func TestUnreadFor(t *testing.T) {
	msg := &MessageRecord{SenderID: "a", ReadBy: map[string]bool{"a": true}}
	assert.False(t, msg.UnreadFor("a"), "own messages are never unread")
	assert.True(t, msg.UnreadFor("b"))

	msg.ReadBy["b"] = true
	assert.False(t, msg.UnreadFor("b"))
}

func TestFromMillisZero(t *testing.T) {
	assert.True(t, FromMillis(0).IsZero())
	now := time.Now().Truncate(time.Millisecond)
	assert.True(t, FromMillis(Millis(now)).Equal(now))
}

func TestWatchUserChatsEmitsInitialAndUpdates(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.WatchUserChats(ctx, "me")
	require.NoError(t, err)
	assert.Empty(t, recv(t, ch))

	require.NoError(t, store.SetChat(ctx, &ChatRecord{
		ID:           "c1",
		Participants: map[string]bool{"me": true, "bob": true},
	}))

	snap := recv(t, ch)
	require.Len(t, snap, 1)
	assert.Equal(t, "c1", snap[0].ID)

	// Chats of other users never show up.
	require.NoError(t, store.SetChat(ctx, &ChatRecord{
		ID:           "c2",
		Participants: map[string]bool{"alice": true, "bob": true},
	}))
	snap = recv(t, ch)
	require.Len(t, snap, 1)
}

func TestWatchClosesOnCancel(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := store.WatchChatMessages(ctx, "c1")
	require.NoError(t, err)
	recv(t, ch)

	cancel()
	waitClosed(t, ch)
}

func TestWatchChatMessagesOrdered(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	now := time.Now()

	ch, err := store.WatchChatMessages(ctx, "c1")
	require.NoError(t, err)
	recv(t, ch)

	require.NoError(t, store.SetMessage(ctx, &MessageRecord{ID: "m2", ChatID: "c1", SenderID: "a", Timestamp: Millis(now)}))
	require.NoError(t, store.SetMessage(ctx, &MessageRecord{ID: "m1", ChatID: "c1", SenderID: "a", Timestamp: Millis(now.Add(-time.Minute))}))

	var snap []MessageRecord
	deadline := time.After(2 * time.Second)
	for len(snap) != 2 {
		select {
		case snap = <-ch:
		case <-deadline:
			t.Fatal("never saw both messages")
		}
	}
	assert.Equal(t, "m1", snap[0].ID)
	assert.Equal(t, "m2", snap[1].ID)
}

func TestMarkMessagesRead(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetMessage(ctx, &MessageRecord{ID: "m1", ChatID: "c1", SenderID: "bob", ReadBy: map[string]bool{"bob": true}}))
	require.NoError(t, store.SetMessage(ctx, &MessageRecord{ID: "m2", ChatID: "c1", SenderID: "bob", ReadBy: map[string]bool{"bob": true}}))

	require.NoError(t, store.MarkMessagesRead(ctx, []string{"m1", "m2"}, "me"))

	for _, id := range []string{"m1", "m2"} {
		rec, err := store.GetMessage(ctx, id)
		require.NoError(t, err)
		require.NotNil(t, rec)
		assert.True(t, rec.ReadBy["me"])
		assert.True(t, rec.ReadBy["bob"], "existing read marks survive")
	}
}

func TestSearchUsersByEmail(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()
	store.Seed([]UserRecord{
		{ID: "u1", Email: "alice@example.com"},
		{ID: "u2", Email: "albert@example.com"},
		{ID: "u3", Email: "bob@example.com"},
	}, nil, nil, nil)

	users, err := store.SearchUsersByEmail(ctx, "al")
	require.NoError(t, err)
	require.Len(t, users, 2)
	assert.Equal(t, "albert@example.com", users[0].Email)
	assert.Equal(t, "alice@example.com", users[1].Email)

	registered, err := store.IsEmailRegistered(ctx, "bob@example.com")
	require.NoError(t, err)
	assert.True(t, registered)

	registered, err = store.IsEmailRegistered(ctx, "carol@example.com")
	require.NoError(t, err)
	assert.False(t, registered)
}

func TestWatchStatusAbsentIsZero(t *testing.T) {
	store := NewMemoryStore()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	ch, err := store.WatchStatus(ctx, "ghost")
	require.NoError(t, err)

	status := recv(t, ch)
	assert.Empty(t, status.UserID)
	assert.False(t, status.IsOnline)

	require.NoError(t, store.SetStatus(ctx, &StatusRecord{UserID: "ghost", IsOnline: true, LastSeen: Millis(time.Now())}))
	status = recv(t, ch)
	assert.True(t, status.IsOnline)
}

func TestUpdateChatFields(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	require.NoError(t, store.SetChat(ctx, &ChatRecord{
		ID:           "c1",
		Participants: map[string]bool{"me": true},
		UpdatedAt:    1,
	}))
	require.NoError(t, store.UpdateChat(ctx, "c1", map[string]any{
		"lastMessageId": "m9",
		"updatedAt":     int64(42),
	}))

	rec, err := store.GetChat(ctx, "c1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "m9", rec.LastMessageID)
	assert.Equal(t, int64(42), rec.UpdatedAt)
}

func TestWatchCancelDuringWrites(t *testing.T) {
	store := NewMemoryStore()
	ctx := context.Background()

	stop := make(chan struct{})
	var wg gosync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			for j := 0; ; j++ {
				select {
				case <-stop:
					return
				default:
				}
				_ = store.SetChat(ctx, &ChatRecord{
					ID:           fmt.Sprintf("c%d-%d", n, j%8),
					Participants: map[string]bool{"me": true},
				})
			}
		}(i)
	}

	// Writes racing subscription cancels must never reach a closed
	// snapshot channel.
	for i := 0; i < 5000; i++ {
		watchCtx, cancel := context.WithCancel(ctx)
		ch, err := store.WatchUserChats(watchCtx, "me")
		require.NoError(t, err)
		<-ch
		cancel()
	}

	close(stop)
	wg.Wait()
}
