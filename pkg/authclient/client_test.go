package authclient

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/acehq/aceauth/pkg/tokenstore"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestClientUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/auth/me", r.URL.Path)
		require.NotEmpty(t, r.Header.Get("X-Request-Id"))
		_ = json.NewEncoder(w).Encode(map[string]any{
			"success": true,
			"data":    map[string]any{"user": map[string]any{"id": "1", "email": "a@b.com", "name": "A"}},
		})
	}))
	defer srv.Close()

	tokens := tokenstore.Open("", discardLogger())
	client := NewClient(srv.URL, tokens, discardLogger())

	var resp MeResponse
	err := client.Do(context.Background(), http.MethodGet, "/api/auth/me", nil, &resp)
	require.NoError(t, err)
	require.NotNil(t, resp.User)
	require.Equal(t, "a@b.com", resp.User.Email)
}

func TestClientAttachesBearerToken(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		_ = json.NewEncoder(w).Encode(map[string]any{"success": true, "data": map[string]any{}})
	}))
	defer srv.Close()

	tokens := tokenstore.Open("", discardLogger())
	client := NewClient(srv.URL, tokens, discardLogger())

	require.NoError(t, client.Do(context.Background(), http.MethodPost, "/api/auth/refresh", struct{}{}, nil))
	require.Empty(t, gotAuth, "no header without a stored token")

	tokens.SetToken("tok-123")
	require.NoError(t, client.Do(context.Background(), http.MethodPost, "/api/auth/refresh", struct{}{}, nil))
	require.Equal(t, "Bearer tok-123", gotAuth)
}

func TestClientEnvelopeFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "invalid credentials"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, tokenstore.Open("", discardLogger()), discardLogger())

	err := client.Do(context.Background(), http.MethodPost, "/api/auth/login", LoginRequest{}, nil)
	require.Error(t, err)
	require.Equal(t, "invalid credentials", err.Error())
}

func TestClientStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "token expired"})
	}))
	defer srv.Close()

	client := NewClient(srv.URL, tokenstore.Open("", discardLogger()), discardLogger())

	err := client.Do(context.Background(), http.MethodGet, "/api/auth/me", nil, &MeResponse{})
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	require.Equal(t, http.StatusUnauthorized, apiErr.Status)
	require.Contains(t, err.Error(), "401")
	require.Contains(t, err.Error(), "token expired")
}

func TestClientMalformedEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>gateway error</html>"))
	}))
	defer srv.Close()

	client := NewClient(srv.URL, tokenstore.Open("", discardLogger()), discardLogger())

	err := client.Do(context.Background(), http.MethodGet, "/api/auth/me", nil, &MeResponse{})
	require.Error(t, err)
	// A mangled envelope reads as a reachability problem, not a schema one.
	require.Contains(t, err.Error(), "network error")
}

func TestClientUnreachable(t *testing.T) {
	client := NewClient("http://127.0.0.1:1", tokenstore.Open("", discardLogger()), discardLogger())

	err := client.Do(context.Background(), http.MethodGet, "/api/auth/me", nil, &MeResponse{})
	require.Error(t, err)
	require.Contains(t, err.Error(), "network error")
	require.Equal(t, msgUnreachable, normalizeAuthError(err).Error())
}
