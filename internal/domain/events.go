package domain

import (
	"sync"
	"time"
)

type EventType string

const (
	EventChatsChanged    EventType = "cache.chats"
	EventUsersChanged    EventType = "cache.users"
	EventMessagesChanged EventType = "cache.messages"
	EventChatRowsChanged EventType = "cache.chat_rows"
	EventCacheCleared    EventType = "cache.cleared"
)

type Event interface {
	Type() EventType
	Timestamp() time.Time
}

type ChatsChangedEvent struct {
	EventTime time.Time
}

func (e ChatsChangedEvent) Type() EventType      { return EventChatsChanged }
func (e ChatsChangedEvent) Timestamp() time.Time { return e.EventTime }

type UsersChangedEvent struct {
	EventTime time.Time
}

func (e UsersChangedEvent) Type() EventType      { return EventUsersChanged }
func (e UsersChangedEvent) Timestamp() time.Time { return e.EventTime }

// MessagesChangedEvent fires after any mutation of the messages table.
// ChatID is empty for mutations spanning multiple chats.
type MessagesChangedEvent struct {
	ChatID    string
	EventTime time.Time
}

func (e MessagesChangedEvent) Type() EventType      { return EventMessagesChanged }
func (e MessagesChangedEvent) Timestamp() time.Time { return e.EventTime }

type ChatRowsChangedEvent struct {
	EventTime time.Time
}

func (e ChatRowsChangedEvent) Type() EventType      { return EventChatRowsChanged }
func (e ChatRowsChangedEvent) Timestamp() time.Time { return e.EventTime }

type CacheClearedEvent struct {
	EventTime time.Time
}

func (e CacheClearedEvent) Type() EventType      { return EventCacheCleared }
func (e CacheClearedEvent) Timestamp() time.Time { return e.EventTime }

// EventBus provides pub/sub for cache change notifications. Live queries
// subscribe to the tables they read and re-run on every published change.
type EventBus interface {
	Publish(event Event)
	Subscribe(eventTypes []EventType) <-chan Event
	Unsubscribe(ch <-chan Event)
}

// SimpleEventBus is a basic in-memory implementation of EventBus
type SimpleEventBus struct {
	mu          sync.RWMutex
	subscribers map[<-chan Event]subscription
}

type subscription struct {
	ch         chan Event
	eventTypes map[EventType]bool
}

func NewEventBus() *SimpleEventBus {
	return &SimpleEventBus{
		subscribers: make(map[<-chan Event]subscription),
	}
}

func (b *SimpleEventBus) Publish(event Event) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for _, sub := range b.subscribers {
		if len(sub.eventTypes) == 0 || sub.eventTypes[event.Type()] {
			select {
			case sub.ch <- event:
			default:
				// Channel full, skip this subscriber
			}
		}
	}
}

func (b *SimpleEventBus) Subscribe(eventTypes []EventType) <-chan Event {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch := make(chan Event, 100)
	typeMap := make(map[EventType]bool)
	for _, t := range eventTypes {
		typeMap[t] = true
	}

	b.subscribers[ch] = subscription{
		ch:         ch,
		eventTypes: typeMap,
	}

	return ch
}

func (b *SimpleEventBus) Unsubscribe(ch <-chan Event) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if sub, ok := b.subscribers[ch]; ok {
		close(sub.ch)
		delete(b.subscribers, ch)
	}
}
