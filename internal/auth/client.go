package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/simplify-chat/chat-bridge/internal/domain"
	"github.com/simplify-chat/chat-bridge/internal/logger"
)

const defaultBaseURL = "https://identitytoolkit.googleapis.com/v1"

// Account is the authenticated identity returned by sign-in/sign-up.
type Account struct {
	UserID       string
	Email        string
	DisplayName  string
	IDToken      string
	RefreshToken string
}

// Client performs email/password authentication against the Identity
// Toolkit REST API. Failures surface as the closed domain.AuthError set.
type Client struct {
	apiKey  string
	baseURL string
	client  *http.Client
	log     zerolog.Logger
}

func NewClient(apiKey string) *Client {
	return &Client{
		apiKey:  apiKey,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
		log:     logger.Module("auth"),
	}
}

// NewClientWithBaseURL is used by tests to point the client at a stub
// server.
func NewClientWithBaseURL(apiKey, baseURL string) *Client {
	c := NewClient(apiKey)
	c.baseURL = strings.TrimRight(baseURL, "/")
	return c
}

type signInResponse struct {
	LocalID      string `json:"localId"`
	Email        string `json:"email"`
	DisplayName  string `json:"displayName"`
	IDToken      string `json:"idToken"`
	RefreshToken string `json:"refreshToken"`
}

func (c *Client) SignIn(ctx context.Context, email, password string) (*Account, error) {
	var resp signInResponse
	err := c.post(ctx, "accounts:signInWithPassword", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return accountFrom(resp), nil
}

func (c *Client) SignUp(ctx context.Context, email, password string) (*Account, error) {
	var resp signInResponse
	err := c.post(ctx, "accounts:signUp", map[string]any{
		"email":             email,
		"password":          password,
		"returnSecureToken": true,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return accountFrom(resp), nil
}

func (c *Client) SendPasswordReset(ctx context.Context, email string) error {
	return c.post(ctx, "accounts:sendOobCode", map[string]any{
		"requestType": "PASSWORD_RESET",
		"email":       email,
	}, &struct{}{})
}

func accountFrom(resp signInResponse) *Account {
	return &Account{
		UserID:       resp.LocalID,
		Email:        resp.Email,
		DisplayName:  resp.DisplayName,
		IDToken:      resp.IDToken,
		RefreshToken: resp.RefreshToken,
	}
}

func (c *Client) post(ctx context.Context, endpoint string, body map[string]any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return &domain.AuthError{Code: domain.AuthCodeUnknown, Message: "encode request", Cause: err}
	}

	url := fmt.Sprintf("%s/%s?key=%s", c.baseURL, endpoint, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return &domain.AuthError{Code: domain.AuthCodeUnknown, Message: "build request", Cause: err}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &domain.AuthError{Code: domain.AuthCodeNetwork, Message: "auth service unreachable", Cause: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var wire struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		if err := json.NewDecoder(resp.Body).Decode(&wire); err != nil {
			return &domain.AuthError{Code: domain.AuthCodeUnknown, Message: resp.Status}
		}
		c.log.Debug().Str("endpoint", endpoint).Str("code", wire.Error.Message).Msg("auth request rejected")
		return mapWireError(wire.Error.Message)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &domain.AuthError{Code: domain.AuthCodeUnknown, Message: "decode response", Cause: err}
	}
	return nil
}

// mapWireError converts an Identity Toolkit error code into the closed
// AuthError set. Some codes arrive suffixed with an explanation
// ("WEAK_PASSWORD : Password should be at least 6 characters").
func mapWireError(wireCode string) *domain.AuthError {
	code := strings.SplitN(wireCode, " ", 2)[0]
	switch code {
	case "EMAIL_NOT_FOUND", "USER_DISABLED", "USER_NOT_FOUND":
		return domain.NewAuthError(domain.AuthCodeUserNotFound, wireCode)
	case "INVALID_PASSWORD", "INVALID_LOGIN_CREDENTIALS":
		return domain.NewAuthError(domain.AuthCodeWrongPassword, wireCode)
	case "INVALID_EMAIL", "MISSING_EMAIL":
		return domain.NewAuthError(domain.AuthCodeInvalidEmail, wireCode)
	case "EMAIL_EXISTS":
		return domain.NewAuthError(domain.AuthCodeEmailInUse, wireCode)
	case "WEAK_PASSWORD":
		return domain.NewAuthError(domain.AuthCodeWeakPassword, wireCode)
	default:
		return domain.NewAuthError(domain.AuthCodeUnknown, wireCode)
	}
}
