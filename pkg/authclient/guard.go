package authclient

import (
	"context"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// defaultRecheckInterval re-validates an authenticated session often enough
// to catch server-side revocation promptly.
const defaultRecheckInterval = 5 * time.Minute

// Decision is the guard's verdict for a protected resource. Exactly one of
// Allow, Pending, or RedirectURL is meaningful.
type Decision struct {
	// Allow means the session is authenticated; render the content.
	Allow bool

	// Pending means the session check has not settled yet; render a
	// non-interactive placeholder, nothing protected.
	Pending bool

	// RedirectURL is the sign-in location to send the consumer to,
	// carrying the current path and query under the redirect parameter.
	RedirectURL string
}

// Guard gates protected content on the controller's session state. It is the
// Go shape of a protected-route wrapper: consumers ask it for a Decision per
// request, hand it foreground-visibility events, and let Run re-validate on
// an interval.
type Guard struct {
	Controller *Controller

	// SignInPath is the redirect target for unauthenticated consumers.
	// Defaults to "/sign-in".
	SignInPath string

	// RecheckInterval paces Run's periodic re-validation.
	RecheckInterval time.Duration
}

// NewGuard wraps the controller with default settings.
func NewGuard(c *Controller) *Guard {
	return &Guard{
		Controller:      c,
		SignInPath:      "/sign-in",
		RecheckInterval: defaultRecheckInterval,
	}
}

// Check evaluates the gate for the resource at currentURL (path plus query).
func (g *Guard) Check(currentURL string) Decision {
	snap := g.Controller.Snapshot()

	if snap.IsAuthenticated {
		return Decision{Allow: true}
	}
	if snap.IsLoading {
		return Decision{Pending: true}
	}
	return Decision{RedirectURL: g.redirectURL(currentURL)}
}

// redirectURL builds the sign-in location carrying the current path+query
// URL-encoded under the redirect parameter.
func (g *Guard) redirectURL(current string) string {
	target := g.SignInPath
	if target == "" {
		target = "/sign-in"
	}
	if current == "" {
		current = "/"
	}

	sep := "?"
	if strings.Contains(target, "?") {
		sep = "&"
	}
	return target + sep + "redirect=" + url.QueryEscape(current)
}

// Middleware protects an http.Handler with the gate. A pending session check
// is given one synchronous chance to settle before the request is rejected.
func (g *Guard) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		current := r.URL.RequestURI()

		decision := g.Check(current)
		if decision.Pending {
			g.Controller.CheckAuth(r.Context())
			decision = g.Check(current)
		}

		switch {
		case decision.Allow:
			next.ServeHTTP(w, r)
		case decision.RedirectURL != "":
			http.Redirect(w, r, decision.RedirectURL, http.StatusSeeOther)
		default:
			w.Header().Set("Retry-After", "1")
			http.Error(w, "session check in progress", http.StatusServiceUnavailable)
		}
	})
}

// NotifyVisible re-validates the session when the consumer regains
// foreground visibility, catching revocation that happened while hidden.
func (g *Guard) NotifyVisible(ctx context.Context) {
	g.Controller.CheckAuth(ctx)
}

// Run re-validates the session on a fixed interval while authenticated.
// It blocks until ctx is cancelled.
func (g *Guard) Run(ctx context.Context) {
	interval := g.RecheckInterval
	if interval <= 0 {
		interval = defaultRecheckInterval
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if g.Controller.Snapshot().IsAuthenticated {
				g.Controller.CheckAuth(ctx)
			}
		}
	}
}
