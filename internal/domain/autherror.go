package domain

import (
	"errors"
	"fmt"
)

// AuthErrorCode is the closed set of failure reasons auth operations
// surface to callers.
type AuthErrorCode string

const (
	AuthCodeInvalidEmail  AuthErrorCode = "invalid_email"
	AuthCodeWrongPassword AuthErrorCode = "wrong_password"
	AuthCodeUserNotFound  AuthErrorCode = "user_not_found"
	AuthCodeEmailInUse    AuthErrorCode = "email_already_in_use"
	AuthCodeWeakPassword  AuthErrorCode = "weak_password"
	AuthCodeNetwork       AuthErrorCode = "network_error"
	AuthCodeUnknown       AuthErrorCode = "unknown"
	AuthCodeNotSignedIn   AuthErrorCode = "not_signed_in"
)

type AuthError struct {
	Code    AuthErrorCode
	Message string
	Cause   error
}

func NewAuthError(code AuthErrorCode, message string) *AuthError {
	return &AuthError{Code: code, Message: message}
}

func (e *AuthError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("auth: %s", e.Code)
	}
	return fmt.Sprintf("auth: %s: %s", e.Code, e.Message)
}

func (e *AuthError) Unwrap() error { return e.Cause }

// IsAuthCode reports whether err is an AuthError carrying the given code.
func IsAuthCode(err error, code AuthErrorCode) bool {
	var ae *AuthError
	return errors.As(err, &ae) && ae.Code == code
}
