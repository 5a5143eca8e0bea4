package authclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestGuardCheckPendingBeforeFirstSettle(t *testing.T) {
	transport := newFakeTransport()
	c, _ := newTestController(t, transport)
	g := NewGuard(c)

	decision := g.Check("/artifacts")
	require.True(t, decision.Pending)
	require.False(t, decision.Allow)
	require.Empty(t, decision.RedirectURL)
}

func TestGuardCheckAllowWhenAuthenticated(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return setOut(out, MeResponse{User: testUser()})
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())
	g := NewGuard(c)

	require.True(t, g.Check("/artifacts").Allow)
}

func TestGuardRedirectCarriesCurrentLocation(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return errors.New("401 Unauthorized")
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())
	g := NewGuard(c)

	tests := []struct {
		name    string
		current string
		want    string
	}{
		{"path with query", "/artifacts?tab=2", "/sign-in?redirect=%2Fartifacts%3Ftab%3D2"},
		{"bare path", "/settings", "/sign-in?redirect=%2Fsettings"},
		{"empty falls back to root", "", "/sign-in?redirect=%2F"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, g.Check(tt.current).RedirectURL)
		})
	}
}

func TestGuardRedirectWithQueryInSignInPath(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return errors.New("401 Unauthorized")
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())

	g := NewGuard(c)
	g.SignInPath = "/sign-in?source=guard"

	require.Equal(t, "/sign-in?source=guard&redirect=%2Fsettings", g.Check("/settings").RedirectURL)
}

func TestGuardMiddlewareAllows(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return setOut(out, MeResponse{User: testUser()})
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())
	g := NewGuard(c)

	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts?tab=2", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestGuardMiddlewareRedirects(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return errors.New("401 Unauthorized")
	})
	c, _ := newTestController(t, transport)
	g := NewGuard(c)

	// The session check has not run yet; the middleware settles it inline.
	handler := g.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("protected handler must not run")
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/artifacts?tab=2", nil))
	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.Equal(t, "/sign-in?redirect=%2Fartifacts%3Ftab%3D2", rec.Header().Get("Location"))
}

func TestGuardRunCatchesRevocation(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return setOut(out, MeResponse{User: testUser()})
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())
	require.True(t, c.Snapshot().IsAuthenticated)

	g := NewGuard(c)
	g.RecheckInterval = 10 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go g.Run(ctx)

	// Session revoked server-side; the periodic recheck must notice.
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return errors.New("session expired")
	})

	require.Eventually(t, func() bool {
		return !c.Snapshot().IsAuthenticated
	}, 2*time.Second, 5*time.Millisecond)
}

func TestGuardNotifyVisibleRechecks(t *testing.T) {
	transport := newFakeTransport()
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return setOut(out, MeResponse{User: testUser()})
	})
	c, _ := newTestController(t, transport)
	c.Start(context.Background())
	g := NewGuard(c)

	// Session revoked while the consumer was hidden.
	transport.handle("GET /api/auth/me", func(body, out any) error {
		return errors.New("session expired")
	})
	g.NotifyVisible(context.Background())

	require.False(t, c.Snapshot().IsAuthenticated)
}
