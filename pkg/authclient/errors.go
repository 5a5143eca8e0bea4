package authclient

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrInvalidResponse reports a success payload that did not match its
// expected schema. Non-session-invalidating.
var ErrInvalidResponse = errors.New("invalid response format")

// Safe user-facing messages produced by classification. Raw backend and
// transport errors never reach the UI layer.
const (
	msgInvalidCredentials = "Invalid email or password."
	msgRateLimited        = "Too many attempts. Please wait and try again."
	msgUnreachable        = "Unable to reach the server. Please try again."
	msgSignInGeneric      = "Unable to sign in. Please try again."
)

// APIError is a non-2xx response from the backend. Its text includes the
// numeric status code, which classification relies on.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%d %s: %s", e.Status, http.StatusText(e.Status), e.Message)
	}
	return fmt.Sprintf("%d %s", e.Status, http.StatusText(e.Status))
}

// AuthError is the sanitized error the controller returns to callers. Error()
// yields only the classified message; the original cause stays wrapped for
// logs and errors.Is/As.
type AuthError struct {
	msg   string
	cause error
}

func (e *AuthError) Error() string { return e.msg }
func (e *AuthError) Unwrap() error { return e.cause }

// normalizeAuthError maps an operation failure onto a safe message. Rules
// apply in order, matching case-insensitive substrings of the error text.
func normalizeAuthError(err error) *AuthError {
	msg := strings.ToLower(err.Error())

	switch {
	case containsAny(msg, "invalid", "credential", "unauthorized", "forbidden", "401", "403"):
		return &AuthError{msg: msgInvalidCredentials, cause: err}
	case strings.Contains(msg, "rate"):
		return &AuthError{msg: msgRateLimited, cause: err}
	case containsAny(msg, "fetch", "network", "timeout"):
		return &AuthError{msg: msgUnreachable, cause: err}
	case err.Error() != "":
		return &AuthError{msg: err.Error(), cause: err}
	default:
		return &AuthError{msg: msgSignInGeneric, cause: err}
	}
}

// isSessionInvalidating decides whether a failure means the local session and
// stored token must be cleared. Transient failures (network blips) must not
// log the user out.
func isSessionInvalidating(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return containsAny(msg, "unauthorized", "forbidden", "expired", "session", "401", "403")
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}
