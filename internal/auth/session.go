package auth

import "sync"

// Session holds the signed-in user for the lifetime of the process.
// Every repository reads the current user id from here; reconciliation
// is always scoped to it.
type Session struct {
	mu      sync.RWMutex
	account *Account
}

func NewSession() *Session {
	return &Session{}
}

func (s *Session) Begin(account *Account) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = account
}

func (s *Session) End() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.account = nil
}

func (s *Session) Authenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account != nil
}

// UserID returns the signed-in user id, or "" when signed out.
func (s *Session) UserID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return ""
	}
	return s.account.UserID
}

func (s *Session) Email() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.account == nil {
		return ""
	}
	return s.account.Email
}
