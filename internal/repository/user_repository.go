package repository

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/simplify-chat/chat-bridge/internal/auth"
	"github.com/simplify-chat/chat-bridge/internal/cache"
	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/logger"
	"github.com/simplify-chat/chat-bridge/internal/remote"
)

type userRepository struct {
	remote  remote.Store
	cache   *cache.Store
	session *auth.Session
	log     zerolog.Logger
}

func NewUserRepository(remoteStore remote.Store, cacheStore *cache.Store, session *auth.Session) UserRepository {
	return &userRepository{
		remote:  remoteStore,
		cache:   cacheStore,
		session: session,
		log:     logger.Module("user-repo"),
	}
}

func (r *userRepository) CurrentProfile(ctx context.Context) (<-chan *domain.User, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	snapshots, err := r.remote.WatchUser(ctx, userID)
	if err != nil {
		return nil, err
	}

	email := r.session.Email()
	out := make(chan *domain.User, 1)
	go func() {
		defer close(out)
		for rec := range snapshots {
			if rec == nil {
				// Record not written yet; hand out what the session
				// knows so callers always see a profile.
				sendLatest(out, &domain.User{ID: userID, Email: email})
				continue
			}
			if err := r.cache.UpsertUser(ctx, cache.UserModelFromRecord(rec)); err != nil && ctx.Err() == nil {
				r.log.Warn().Err(err).Msg("caching own profile failed")
			}
			sendLatest(out, userRecordToDomain(rec))
		}
	}()
	return out, nil
}

func (r *userRepository) UserByID(ctx context.Context, userID string) (*domain.User, error) {
	cached, err := r.cache.UserByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cached != nil {
		return cached.ToDomain(), nil
	}

	rec, err := r.remote.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	if err := r.cache.UpsertUser(ctx, cache.UserModelFromRecord(rec)); err != nil {
		r.log.Warn().Err(err).Str("user", userID).Msg("caching fetched profile failed")
	}
	return userRecordToDomain(rec), nil
}

func (r *userRepository) SearchByEmail(ctx context.Context, prefix string) ([]*domain.User, error) {
	userID := r.session.UserID()
	if userID == "" {
		return nil, errNotSignedIn()
	}

	records, err := r.remote.SearchUsersByEmail(ctx, prefix)
	if err != nil {
		return nil, err
	}
	users := make([]*domain.User, 0, len(records))
	for i := range records {
		if records[i].ID == userID {
			continue
		}
		users = append(users, userRecordToDomain(&records[i]))
	}
	return users, nil
}

func (r *userRepository) UpdateProfile(ctx context.Context, displayName, photoURL string) error {
	userID := r.session.UserID()
	if userID == "" {
		return errNotSignedIn()
	}

	if err := r.remote.UpdateUser(ctx, userID, map[string]any{
		"displayName": displayName,
		"photoUrl":    photoURL,
		"lastUpdated": remote.Millis(time.Now()),
	}); err != nil {
		return err
	}

	rec, err := r.remote.GetUser(ctx, userID)
	if err != nil || rec == nil {
		return err
	}
	return r.cache.UpsertUser(ctx, cache.UserModelFromRecord(rec))
}

func (r *userRepository) EnsureProfile(ctx context.Context) error {
	userID := r.session.UserID()
	if userID == "" {
		return errNotSignedIn()
	}

	rec, err := r.remote.GetUser(ctx, userID)
	if err != nil {
		return err
	}
	if rec != nil {
		return nil
	}

	email := r.session.Email()
	displayName := email
	if at := strings.Index(email, "@"); at > 0 {
		displayName = email[:at]
	}
	return r.remote.SetUser(ctx, &remote.UserRecord{
		ID:          userID,
		Email:       email,
		DisplayName: displayName,
		LastUpdated: remote.Millis(time.Now()),
	})
}

func (r *userRepository) IsEmailRegistered(ctx context.Context, email string) (bool, error) {
	return r.remote.IsEmailRegistered(ctx, email)
}

func userRecordToDomain(rec *remote.UserRecord) *domain.User {
	return &domain.User{
		ID:          rec.ID,
		Email:       rec.Email,
		DisplayName: rec.DisplayName,
		PhotoURL:    rec.PhotoURL,
		LastUpdated: remote.FromMillis(rec.LastUpdated),
	}
}
