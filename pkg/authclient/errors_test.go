package authclient

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNormalizeAuthError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{"invalid credentials", errors.New("invalid credentials"), msgInvalidCredentials},
		{"credential mention", errors.New("bad credential material"), msgInvalidCredentials},
		{"unauthorized", errors.New("401 Unauthorized"), msgInvalidCredentials},
		{"forbidden", errors.New("403 Forbidden"), msgInvalidCredentials},
		{"rate limited", errors.New("rate limit exceeded"), msgRateLimited},
		{"network", errors.New("network error: connection refused"), msgUnreachable},
		{"timeout", errors.New("request timeout"), msgUnreachable},
		{"fetch", errors.New("fetch failed"), msgUnreachable},
		{"passthrough", errors.New("something unexpected happened"), "something unexpected happened"},
		{"empty message", errors.New(""), msgSignInGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := normalizeAuthError(tt.err)
			require.Equal(t, tt.want, got.Error())
			require.ErrorIs(t, got, tt.err, "cause must stay wrapped")
		})
	}
}

func TestNormalizeAuthErrorRuleOrder(t *testing.T) {
	// "invalid" wins over "rate" when both substrings are present.
	err := errors.New("invalid request, rate limited")
	require.Equal(t, msgInvalidCredentials, normalizeAuthError(err).Error())
}

func TestIsSessionInvalidating(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"unauthorized", errors.New("401 Unauthorized"), true},
		{"forbidden", errors.New("Forbidden"), true},
		{"expired", errors.New("token expired"), true},
		{"session", errors.New("session not found"), true},
		{"numeric 403", errors.New("status 403"), true},
		{"network blip", errors.New("network timeout"), false},
		{"invalid credentials", errors.New("invalid credentials"), false},
		{"schema mismatch", errors.New("invalid response format"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, isSessionInvalidating(tt.err))
		})
	}
}

func TestAPIErrorText(t *testing.T) {
	err := &APIError{Status: 401, Message: "token expired"}
	require.Equal(t, "401 Unauthorized: token expired", err.Error())

	bare := &APIError{Status: 503}
	require.Equal(t, "503 Service Unavailable", bare.Error())

	// Classification must see both the status code and the server message.
	require.True(t, isSessionInvalidating(err))
	require.Equal(t, msgInvalidCredentials, normalizeAuthError(err).Error())
}
