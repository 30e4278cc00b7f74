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

type authRepository struct {
	client  *auth.Client
	session *auth.Session
	creds   *auth.CredentialsStore
	remote  remote.Store
	cache   *cache.Store
	log     zerolog.Logger
}

func NewAuthRepository(client *auth.Client, session *auth.Session, creds *auth.CredentialsStore, remoteStore remote.Store, cacheStore *cache.Store) AuthRepository {
	return &authRepository{
		client:  client,
		session: session,
		creds:   creds,
		remote:  remoteStore,
		cache:   cacheStore,
		log:     logger.Module("auth-repo"),
	}
}

func (r *authRepository) IsAuthenticated() bool {
	return r.session.Authenticated()
}

func (r *authRepository) CurrentUserID() string {
	return r.session.UserID()
}

func (r *authRepository) SignIn(ctx context.Context, email, password string) (*domain.User, error) {
	account, err := r.client.SignIn(ctx, email, password)
	if err != nil {
		return nil, err
	}
	r.session.Begin(account)
	r.log.Info().Str("user", account.UserID).Msg("signed in")

	rec, err := r.remote.GetUser(ctx, account.UserID)
	if err != nil {
		r.log.Warn().Err(err).Msg("profile fetch after sign-in failed")
	}
	if rec != nil {
		return userRecordToDomain(rec), nil
	}
	return &domain.User{ID: account.UserID, Email: account.Email}, nil
}

func (r *authRepository) SignUp(ctx context.Context, email, password, displayName string) (*domain.User, error) {
	account, err := r.client.SignUp(ctx, email, password)
	if err != nil {
		return nil, err
	}
	r.session.Begin(account)
	r.log.Info().Str("user", account.UserID).Msg("account created")

	if displayName == "" {
		displayName = email
		if at := strings.Index(email, "@"); at > 0 {
			displayName = email[:at]
		}
	}
	rec := &remote.UserRecord{
		ID:          account.UserID,
		Email:       email,
		DisplayName: displayName,
		LastUpdated: remote.Millis(time.Now()),
	}
	// The account exists either way; a failed profile write is
	// repaired by EnsureProfile on the next sign-in.
	if err := r.remote.SetUser(ctx, rec); err != nil {
		r.log.Warn().Err(err).Msg("profile write after sign-up failed")
	}
	return userRecordToDomain(rec), nil
}

func (r *authRepository) SignOut(ctx context.Context) error {
	userID := r.session.UserID()
	if userID == "" {
		return errNotSignedIn()
	}
	r.session.End()
	r.log.Info().Str("user", userID).Msg("signed out")
	// Locally cached conversations belong to the account, not the
	// device; wipe them so the next account starts clean.
	return r.cache.Clear(ctx)
}

func (r *authRepository) SendPasswordReset(ctx context.Context, email string) error {
	return r.client.SendPasswordReset(ctx, email)
}

func (r *authRepository) SaveCredentials(email, password string) error {
	return r.creds.Save(email, password)
}

func (r *authRepository) LoadSavedCredentials() (email, password string, err error) {
	return r.creds.Load()
}

func (r *authRepository) HasSavedCredentials() bool {
	return r.creds.Has()
}

func (r *authRepository) ClearSavedCredentials() error {
	return r.creds.Clear()
}
