package cache

import (
	"context"

	"github.com/simplify-chat/chat-bridge/internal/domain"
)

// live emits fetch's result immediately, then re-fetches and re-emits
// after every change event accepted by match. Bursts of changes are
// coalesced: superseded emissions the consumer never read are dropped,
// so a subscriber always observes the newest state. The returned
// channel closes when ctx is cancelled.
func live[T any](ctx context.Context, s *Store, types []domain.EventType, match func(domain.Event) bool, fetch func(context.Context) (T, error)) <-chan T {
	out := make(chan T, 1)
	events := s.bus.Subscribe(types)

	go func() {
		defer close(out)
		defer s.bus.Unsubscribe(events)

		emit := func() {
			v, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					s.log.Error().Err(err).Msg("live query failed")
				}
				return
			}
			sendLatest(out, v)
		}

		emit()
		for {
			select {
			case <-ctx.Done():
				return
			case evt, ok := <-events:
				if !ok {
					return
				}
				relevant := match == nil || match(evt)
				// Drain the backlog so one re-query covers a burst.
				for drained := false; !drained; {
					select {
					case evt, ok = <-events:
						if !ok {
							return
						}
						if match == nil || match(evt) {
							relevant = true
						}
					default:
						drained = true
					}
				}
				if relevant {
					emit()
				}
			}
		}
	}()
	return out
}

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

// LiveChatRows re-emits the ordered chat list whenever the read rows or
// their joined base tables change. Message events are deliberately not
// watched: the unread counts stored in the rows refresh on the next
// chat snapshot reconciliation, so a local mark-read shows up in the
// chat list only then. LiveUnreadCount tracks it immediately.
func (s *Store) LiveChatRows(ctx context.Context) <-chan []domain.ChatWithUser {
	types := []domain.EventType{
		domain.EventChatRowsChanged,
		domain.EventChatsChanged,
		domain.EventUsersChanged,
		domain.EventCacheCleared,
	}
	return live(ctx, s, types, nil, s.ChatRows)
}

// LiveMessages re-emits a chat's messages, oldest first.
func (s *Store) LiveMessages(ctx context.Context, chatID string) <-chan []domain.Message {
	types := []domain.EventType{domain.EventMessagesChanged, domain.EventCacheCleared}
	match := func(evt domain.Event) bool {
		if m, ok := evt.(domain.MessagesChangedEvent); ok {
			return m.ChatID == "" || m.ChatID == chatID
		}
		return true
	}
	fetch := func(ctx context.Context) ([]domain.Message, error) {
		models, err := s.MessagesByChat(ctx, chatID)
		if err != nil {
			return nil, err
		}
		msgs := make([]domain.Message, len(models))
		for i := range models {
			msgs[i] = *models[i].ToDomain()
		}
		return msgs, nil
	}
	return live(ctx, s, types, match, fetch)
}

// LiveUnreadCount re-emits the unread-message count for one chat.
func (s *Store) LiveUnreadCount(ctx context.Context, chatID, userID string) <-chan int {
	types := []domain.EventType{domain.EventMessagesChanged, domain.EventCacheCleared}
	match := func(evt domain.Event) bool {
		if m, ok := evt.(domain.MessagesChangedEvent); ok {
			return m.ChatID == "" || m.ChatID == chatID
		}
		return true
	}
	fetch := func(ctx context.Context) (int, error) {
		return s.UnreadCount(ctx, chatID, userID)
	}
	return live(ctx, s, types, match, fetch)
}
