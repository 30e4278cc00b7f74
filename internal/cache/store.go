package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/logger"
)

// Store is the local cache: a durable, queryable mirror of the remote
// collections plus the denormalized chat-with-user read rows. All
// writes are keyed upserts with replace semantics; every mutation
// publishes a change event that drives the live queries.
type Store struct {
	db  *gorm.DB
	bus *domain.SimpleEventBus
	log zerolog.Logger
}

// Open opens (or creates) the SQLite cache at path.
func Open(path string) (*Store, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open cache database: %w", err)
	}

	// Enable WAL mode for better concurrency
	db.Exec("PRAGMA journal_mode=WAL")

	return New(db)
}

// New wraps an already-open database, migrating the schema.
func New(db *gorm.DB) (*Store, error) {
	err := db.AutoMigrate(
		&ChatModel{},
		&UserModel{},
		&MessageModel{},
		&ChatWithUserModel{},
	)
	if err != nil {
		return nil, fmt.Errorf("failed to migrate cache schema: %w", err)
	}

	return &Store{
		db:  db,
		bus: domain.NewEventBus(),
		log: logger.Module("cache"),
	}, nil
}

// Bus exposes the change notifications, e.g. for a presentation layer
// that wants to react to cache updates directly.
func (s *Store) Bus() domain.EventBus { return s.bus }

// Clear wipes the entire cache, read rows first so no joined query can
// observe a row whose base entities are already gone.
func (s *Store) Clear(ctx context.Context) error {
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, model := range []any{
			&ChatWithUserModel{},
			&MessageModel{},
			&ChatModel{},
			&UserModel{},
		} {
			if err := tx.Where("1 = 1").Delete(model).Error; err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to clear cache: %w", err)
	}

	now := time.Now()
	s.bus.Publish(domain.CacheClearedEvent{EventTime: now})
	s.bus.Publish(domain.ChatsChangedEvent{EventTime: now})
	s.bus.Publish(domain.UsersChangedEvent{EventTime: now})
	s.bus.Publish(domain.MessagesChangedEvent{EventTime: now})
	s.bus.Publish(domain.ChatRowsChangedEvent{EventTime: now})
	return nil
}

func (s *Store) notifyChats()    { s.bus.Publish(domain.ChatsChangedEvent{EventTime: time.Now()}) }
func (s *Store) notifyUsers()    { s.bus.Publish(domain.UsersChangedEvent{EventTime: time.Now()}) }
func (s *Store) notifyChatRows() { s.bus.Publish(domain.ChatRowsChangedEvent{EventTime: time.Now()}) }

func (s *Store) notifyMessages(chatID string) {
	s.bus.Publish(domain.MessagesChangedEvent{ChatID: chatID, EventTime: time.Now()})
}
