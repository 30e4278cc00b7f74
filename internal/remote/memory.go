package remote

import (
	"context"
	"sort"
	"strings"
	"sync"
)

// MemoryStore is an in-process implementation of Store with the same
// listener semantics as the real backend. It backs the offline demo mode
// and the test suites.
type MemoryStore struct {
	mu       sync.RWMutex
	chats    map[string]ChatRecord
	messages map[string]MessageRecord
	users    map[string]UserRecord
	statuses map[string]StatusRecord

	nextWatcher  int64
	chatWatchers map[int64]*memWatcher
	msgWatchers  map[int64]*memWatcher
	userWatchers map[int64]*memWatcher
	statWatchers map[int64]*memWatcher
}

// memWatcher serializes emission against channel close. A write racing a
// subscription cancel must never send on the closed snapshot channel.
type memWatcher struct {
	mu     sync.Mutex
	closed bool
	emit   func()
	done   func()
}

func (w *memWatcher) fire() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.emit()
}

func (w *memWatcher) close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	w.done()
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		chats:        make(map[string]ChatRecord),
		messages:     make(map[string]MessageRecord),
		users:        make(map[string]UserRecord),
		statuses:     make(map[string]StatusRecord),
		chatWatchers: make(map[int64]*memWatcher),
		msgWatchers:  make(map[int64]*memWatcher),
		userWatchers: make(map[int64]*memWatcher),
		statWatchers: make(map[int64]*memWatcher),
	}
}

// Seed loads records wholesale, then fires all listeners once.
func (s *MemoryStore) Seed(users []UserRecord, chats []ChatRecord, messages []MessageRecord, statuses []StatusRecord) {
	s.mu.Lock()
	for _, u := range users {
		s.users[u.ID] = u
	}
	for _, c := range chats {
		s.chats[c.ID] = c
	}
	for _, m := range messages {
		s.messages[m.ID] = m
	}
	for _, st := range statuses {
		s.statuses[st.UserID] = st
	}
	s.mu.Unlock()
	s.fire(s.chatWatchers)
	s.fire(s.msgWatchers)
	s.fire(s.userWatchers)
	s.fire(s.statWatchers)
}

// fire runs the registered watchers outside the store lock; each emit
// re-reads state under RLock. Watchers already closed no-op.
func (s *MemoryStore) fire(watchers map[int64]*memWatcher) {
	s.mu.RLock()
	ws := make([]*memWatcher, 0, len(watchers))
	for _, w := range watchers {
		ws = append(ws, w)
	}
	s.mu.RUnlock()
	for _, w := range ws {
		w.fire()
	}
}

func (s *MemoryStore) register(ctx context.Context, watchers map[int64]*memWatcher, emit func(), done func()) {
	w := &memWatcher{emit: emit, done: done}
	s.mu.Lock()
	s.nextWatcher++
	id := s.nextWatcher
	watchers[id] = w
	s.mu.Unlock()

	w.fire()

	go func() {
		<-ctx.Done()
		s.mu.Lock()
		delete(watchers, id)
		s.mu.Unlock()
		w.close()
	}()
}

// Chats

func (s *MemoryStore) GetChat(ctx context.Context, chatID string) (*ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.chats[chatID]
	if !ok {
		return nil, nil
	}
	return &c, nil
}

func (s *MemoryStore) SetChat(ctx context.Context, chat *ChatRecord) error {
	s.mu.Lock()
	s.chats[chat.ID] = *chat
	s.mu.Unlock()
	s.fire(s.chatWatchers)
	return nil
}

func (s *MemoryStore) UpdateChat(ctx context.Context, chatID string, fields map[string]any) error {
	s.mu.Lock()
	c := s.chats[chatID]
	c.ID = chatID
	for k, v := range fields {
		switch k {
		case "lastMessageId":
			c.LastMessageID, _ = v.(string)
		case "updatedAt":
			c.UpdatedAt, _ = v.(int64)
		case "createdAt":
			c.CreatedAt, _ = v.(int64)
		}
	}
	s.chats[chatID] = c
	s.mu.Unlock()
	s.fire(s.chatWatchers)
	return nil
}

func (s *MemoryStore) GetUserChats(ctx context.Context, userID string) ([]ChatRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.userChatsLocked(userID), nil
}

func (s *MemoryStore) userChatsLocked(userID string) []ChatRecord {
	out := make([]ChatRecord, 0)
	for _, c := range s.chats {
		if c.Participants[userID] {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) WatchUserChats(ctx context.Context, userID string) (<-chan []ChatRecord, error) {
	ch := make(chan []ChatRecord, 1)
	emit := func() {
		s.mu.RLock()
		snap := s.userChatsLocked(userID)
		s.mu.RUnlock()
		pushLatest(ch, snap)
	}
	s.register(ctx, s.chatWatchers, emit, func() { close(ch) })
	return ch, nil
}

// Messages

func (s *MemoryStore) GetMessage(ctx context.Context, messageID string) (*MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.messages[messageID]
	if !ok {
		return nil, nil
	}
	return &m, nil
}

func (s *MemoryStore) SetMessage(ctx context.Context, msg *MessageRecord) error {
	s.mu.Lock()
	s.messages[msg.ID] = *msg
	s.mu.Unlock()
	s.fire(s.msgWatchers)
	return nil
}

func (s *MemoryStore) GetChatMessages(ctx context.Context, chatID string) ([]MessageRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.chatMessagesLocked(chatID), nil
}

func (s *MemoryStore) chatMessagesLocked(chatID string) []MessageRecord {
	out := make([]MessageRecord, 0)
	for _, m := range s.messages {
		if m.ChatID == chatID {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Timestamp == out[j].Timestamp {
			return out[i].ID < out[j].ID
		}
		return out[i].Timestamp < out[j].Timestamp
	})
	return out
}

func (s *MemoryStore) WatchChatMessages(ctx context.Context, chatID string) (<-chan []MessageRecord, error) {
	ch := make(chan []MessageRecord, 1)
	emit := func() {
		s.mu.RLock()
		snap := s.chatMessagesLocked(chatID)
		s.mu.RUnlock()
		pushLatest(ch, snap)
	}
	s.register(ctx, s.msgWatchers, emit, func() { close(ch) })
	return ch, nil
}

func (s *MemoryStore) MarkMessagesRead(ctx context.Context, messageIDs []string, userID string) error {
	s.mu.Lock()
	for _, id := range messageIDs {
		m, ok := s.messages[id]
		if !ok {
			continue
		}
		if m.ReadBy == nil {
			m.ReadBy = make(map[string]bool)
		}
		m.ReadBy[userID] = true
		s.messages[id] = m
	}
	s.mu.Unlock()
	s.fire(s.msgWatchers)
	return nil
}

// Users

func (s *MemoryStore) GetUser(ctx context.Context, userID string) (*UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (s *MemoryStore) SetUser(ctx context.Context, user *UserRecord) error {
	s.mu.Lock()
	s.users[user.ID] = *user
	s.mu.Unlock()
	s.fire(s.userWatchers)
	return nil
}

func (s *MemoryStore) UpdateUser(ctx context.Context, userID string, fields map[string]any) error {
	s.mu.Lock()
	u := s.users[userID]
	u.ID = userID
	for k, v := range fields {
		switch k {
		case "displayName":
			u.DisplayName, _ = v.(string)
		case "photoUrl":
			u.PhotoURL, _ = v.(string)
		case "lastUpdated":
			u.LastUpdated, _ = v.(int64)
		case "isOnline":
			u.IsOnline, _ = v.(bool)
		case "lastSeen":
			u.LastSeen, _ = v.(int64)
		}
	}
	s.users[userID] = u
	s.mu.Unlock()
	s.fire(s.userWatchers)
	return nil
}

func (s *MemoryStore) SearchUsersByEmail(ctx context.Context, prefix string) ([]UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]UserRecord, 0)
	for _, u := range s.users {
		if strings.HasPrefix(u.Email, prefix) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	return out, nil
}

func (s *MemoryStore) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, u := range s.users {
		if u.Email == email {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryStore) WatchUser(ctx context.Context, userID string) (<-chan *UserRecord, error) {
	ch := make(chan *UserRecord, 1)
	emit := func() {
		s.mu.RLock()
		var snap *UserRecord
		if u, ok := s.users[userID]; ok {
			snap = &u
		}
		s.mu.RUnlock()
		pushLatest(ch, snap)
	}
	s.register(ctx, s.userWatchers, emit, func() { close(ch) })
	return ch, nil
}

// Presence

func (s *MemoryStore) GetStatus(ctx context.Context, userID string) (*StatusRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	st, ok := s.statuses[userID]
	if !ok {
		return nil, nil
	}
	return &st, nil
}

func (s *MemoryStore) SetStatus(ctx context.Context, status *StatusRecord) error {
	s.mu.Lock()
	s.statuses[status.UserID] = *status
	s.mu.Unlock()
	s.fire(s.statWatchers)
	return nil
}

func (s *MemoryStore) WatchStatus(ctx context.Context, userID string) (<-chan StatusRecord, error) {
	ch := make(chan StatusRecord, 1)
	emit := func() {
		s.mu.RLock()
		snap := s.statuses[userID]
		s.mu.RUnlock()
		pushLatest(ch, snap)
	}
	s.register(ctx, s.statWatchers, emit, func() { close(ch) })
	return ch, nil
}

var _ Store = (*MemoryStore)(nil)
