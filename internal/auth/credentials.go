package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
)

// ErrNoSavedCredentials is returned by Load when nothing has been saved.
var ErrNoSavedCredentials = errors.New("no saved credentials")

// CredentialsStore persists remember-me sign-in credentials encrypted
// with AES-GCM under a locally generated key. The key lives next to the
// credentials file with owner-only permissions.
type CredentialsStore struct {
	path string
}

func NewCredentialsStore(path string) *CredentialsStore {
	return &CredentialsStore{path: path}
}

type savedCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *CredentialsStore) Save(email, password string) error {
	key, err := s.loadOrCreateKey()
	if err != nil {
		return err
	}

	plaintext, err := json.Marshal(savedCredentials{Email: email, Password: password})
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	aead, err := newAEAD(key)
	if err != nil {
		return err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, plaintext, nil)

	if err := os.WriteFile(s.path, sealed, 0600); err != nil {
		return fmt.Errorf("failed to write credentials: %w", err)
	}
	return nil
}

func (s *CredentialsStore) Load() (email, password string, err error) {
	sealed, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", "", ErrNoSavedCredentials
		}
		return "", "", fmt.Errorf("failed to read credentials: %w", err)
	}

	key, err := s.loadOrCreateKey()
	if err != nil {
		return "", "", err
	}
	aead, err := newAEAD(key)
	if err != nil {
		return "", "", err
	}
	if len(sealed) < aead.NonceSize() {
		return "", "", errors.New("credentials file truncated")
	}

	plaintext, err := aead.Open(nil, sealed[:aead.NonceSize()], sealed[aead.NonceSize():], nil)
	if err != nil {
		return "", "", fmt.Errorf("failed to decrypt credentials: %w", err)
	}

	var creds savedCredentials
	if err := json.Unmarshal(plaintext, &creds); err != nil {
		return "", "", fmt.Errorf("failed to decode credentials: %w", err)
	}
	return creds.Email, creds.Password, nil
}

func (s *CredentialsStore) Has() bool {
	_, err := os.Stat(s.path)
	return err == nil
}

func (s *CredentialsStore) Clear() error {
	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to clear credentials: %w", err)
	}
	return nil
}

func (s *CredentialsStore) keyPath() string {
	return s.path + ".key"
}

func (s *CredentialsStore) loadOrCreateKey() ([]byte, error) {
	key, err := os.ReadFile(s.keyPath())
	if err == nil && len(key) == 32 {
		return key, nil
	}
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to read key: %w", err)
	}

	key = make([]byte, 32)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := os.WriteFile(s.keyPath(), key, 0600); err != nil {
		return nil, fmt.Errorf("failed to write key: %w", err)
	}
	return key, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return aead, nil
}
