package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simplify-chat/chat-bridge/internal/domain"
)

func stubServer(t *testing.T, status int, body any) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "test-key", r.URL.Query().Get("key"))
		w.WriteHeader(status)
		json.NewEncoder(w).Encode(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func errorBody(code string) map[string]any {
	return map[string]any{"error": map[string]any{"message": code}}
}

func TestSignInSuccess(t *testing.T) {
	srv := stubServer(t, http.StatusOK, map[string]any{
		"localId":      "uid-1",
		"email":        "me@example.com",
		"displayName":  "Me",
		"idToken":      "tok",
		"refreshToken": "ref",
	})
	client := NewClientWithBaseURL("test-key", srv.URL)

	account, err := client.SignIn(context.Background(), "me@example.com", "secret")
	require.NoError(t, err)
	assert.Equal(t, "uid-1", account.UserID)
	assert.Equal(t, "me@example.com", account.Email)
	assert.Equal(t, "tok", account.IDToken)
}

func TestSignInErrorMapping(t *testing.T) {
	cases := []struct {
		wire string
		want domain.AuthErrorCode
	}{
		{"EMAIL_NOT_FOUND", domain.AuthCodeUserNotFound},
		{"INVALID_LOGIN_CREDENTIALS", domain.AuthCodeWrongPassword},
		{"INVALID_PASSWORD", domain.AuthCodeWrongPassword},
		{"INVALID_EMAIL", domain.AuthCodeInvalidEmail},
		{"USER_DISABLED", domain.AuthCodeUserNotFound},
		{"TOO_MANY_ATTEMPTS_TRY_LATER", domain.AuthCodeUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.wire, func(t *testing.T) {
			srv := stubServer(t, http.StatusBadRequest, errorBody(tc.wire))
			client := NewClientWithBaseURL("test-key", srv.URL)

			_, err := client.SignIn(context.Background(), "me@example.com", "bad")
			assert.True(t, domain.IsAuthCode(err, tc.want), "wire %s should map to %s, got %v", tc.wire, tc.want, err)
		})
	}
}

func TestSignUpWeakPassword(t *testing.T) {
	srv := stubServer(t, http.StatusBadRequest, errorBody("WEAK_PASSWORD : Password should be at least 6 characters"))
	client := NewClientWithBaseURL("test-key", srv.URL)

	_, err := client.SignUp(context.Background(), "me@example.com", "123")
	assert.True(t, domain.IsAuthCode(err, domain.AuthCodeWeakPassword))
}

func TestSignUpEmailExists(t *testing.T) {
	srv := stubServer(t, http.StatusBadRequest, errorBody("EMAIL_EXISTS"))
	client := NewClientWithBaseURL("test-key", srv.URL)

	_, err := client.SignUp(context.Background(), "me@example.com", "secret")
	assert.True(t, domain.IsAuthCode(err, domain.AuthCodeEmailInUse))
}

func TestNetworkFailure(t *testing.T) {
	srv := stubServer(t, http.StatusOK, nil)
	client := NewClientWithBaseURL("test-key", srv.URL)
	srv.Close()

	_, err := client.SignIn(context.Background(), "me@example.com", "secret")
	assert.True(t, domain.IsAuthCode(err, domain.AuthCodeNetwork))
}

func TestSendPasswordReset(t *testing.T) {
	var gotType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		gotType, _ = body["requestType"].(string)
		fmt.Fprint(w, "{}")
	}))
	t.Cleanup(srv.Close)
	client := NewClientWithBaseURL("test-key", srv.URL)

	require.NoError(t, client.SendPasswordReset(context.Background(), "me@example.com"))
	assert.Equal(t, "PASSWORD_RESET", gotType)
}

func TestSessionLifecycle(t *testing.T) {
	session := NewSession()
	assert.False(t, session.Authenticated())
	assert.Empty(t, session.UserID())

	session.Begin(&Account{UserID: "uid-1", Email: "me@example.com"})
	assert.True(t, session.Authenticated())
	assert.Equal(t, "uid-1", session.UserID())
	assert.Equal(t, "me@example.com", session.Email())

	session.End()
	assert.False(t, session.Authenticated())
	assert.Empty(t, session.Email())
}
