package authclient

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/time/rate"

	"github.com/acehq/aceauth/pkg/passkey"
	"github.com/acehq/aceauth/pkg/tokenstore"
)

const (
	// defaultRefreshInterval paces silent background refresh while a user
	// is present.
	defaultRefreshInterval = 10 * time.Minute

	// refreshBuffer refreshes slightly before a JWT access token actually
	// expires.
	refreshBuffer = 30 * time.Second

	// minRefreshDelay keeps a short-lived token from spinning the refresh
	// loop.
	minRefreshDelay = 30 * time.Second
)

// Snapshot is the controller's observable state at a point in time.
//
// IsLoading is true from construction until the first CheckAuth settles, and
// whenever any operation is in flight. Consumers must not render protected
// content while it is true.
type Snapshot struct {
	User            *User
	IsAuthenticated bool
	IsLoading       bool
}

// Config wires a Controller.
type Config struct {
	Transport Transport         // required
	Tokens    *tokenstore.Store // required
	Passkeys  *passkey.Driver   // optional; nil means passkeys unsupported
	Logger    *slog.Logger

	// RefreshInterval overrides the silent-refresh cadence. When the stored
	// token is a JWT expiring sooner, the refresh runs earlier.
	RefreshInterval time.Duration

	// LoginLimiter throttles local login attempts. Defaults to one attempt
	// per second with a small burst.
	LoginLimiter *rate.Limiter
}

// Controller owns the session state machine: current user, the epoch counter
// guarding against stale concurrent completions, the refresh scheduler, and
// error classification. It is the only writer of the token store and the
// in-memory user state.
type Controller struct {
	transport Transport
	tokens    *tokenstore.Store
	passkeys  *passkey.Driver
	logger    *slog.Logger
	limiter   *rate.Limiter
	interval  time.Duration

	mu       sync.Mutex
	epoch    uint64
	user     *User
	checked  bool // first CheckAuth settled
	inflight int
	closed   bool

	subs    map[int]func(Snapshot)
	nextSub int

	refreshCancel context.CancelFunc
	storeCancel   func()
}

// NewController builds a Controller. Call Start to run the initial session
// check and Close to tear the controller down.
func NewController(cfg Config) *Controller {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	interval := cfg.RefreshInterval
	if interval <= 0 {
		interval = defaultRefreshInterval
	}
	limiter := cfg.LoginLimiter
	if limiter == nil {
		limiter = rate.NewLimiter(rate.Every(time.Second), 5)
	}

	c := &Controller{
		transport: cfg.Transport,
		tokens:    cfg.Tokens,
		passkeys:  cfg.Passkeys,
		logger:    logger,
		limiter:   limiter,
		interval:  interval,
		subs:      make(map[int]func(Snapshot)),
	}

	// Another consumer of the same store (a second window, in browser
	// terms) may change the token underneath us; re-derive state from the
	// store when that happens.
	c.storeCancel = cfg.Tokens.OnChange(c.onTokenChange)

	return c
}

// Start performs the initial session check. The controller reports
// IsLoading until this settles.
func (c *Controller) Start(ctx context.Context) {
	c.CheckAuth(ctx)
}

// Close tears down the refresh scheduler and store subscription. The
// controller must not be used afterwards.
func (c *Controller) Close() {
	c.mu.Lock()
	c.closed = true
	c.epoch++ // in-flight operations may no longer mutate state
	if c.refreshCancel != nil {
		c.refreshCancel()
		c.refreshCancel = nil
	}
	cancel := c.storeCancel
	c.storeCancel = nil
	c.mu.Unlock()

	if cancel != nil {
		cancel()
	}
}

// Snapshot returns the current observable state.
func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe registers fn to receive every state change. The returned cancel
// function removes the subscription.
func (c *Controller) Subscribe(fn func(Snapshot)) (cancel func()) {
	c.mu.Lock()
	id := c.nextSub
	c.nextSub++
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

// CheckAuth validates the session against the backend. It is read-only with
// respect to the epoch: it never supersedes other operations, and its own
// result is dropped if a state-changing operation began meanwhile.
//
// A session-invalidating failure clears the token and user. Transient
// failures leave existing state untouched: a network blip must not log the
// user out. CheckAuth never returns an error; it reports whether the session
// is valid.
func (c *Controller) CheckAuth(ctx context.Context) bool {
	id := c.beginRead()

	var resp MeResponse
	err := c.transport.Do(ctx, http.MethodGet, "/api/auth/me", nil, &resp)
	if err == nil {
		if verr := resp.Validate(); verr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidResponse, verr)
		}
	}

	ok := false
	clearToken := false
	c.mutate(func() {
		c.inflight--
		if c.epoch != id {
			return
		}
		c.checked = true
		switch {
		case err == nil:
			c.setUserLocked(resp.User)
			ok = true
		case isSessionInvalidating(err):
			c.setUserLocked(nil)
			clearToken = true
		}
	})

	if clearToken {
		c.tokens.Clear()
	}
	if err != nil {
		c.logger.Info("session check failed", slog.String("error", err.Error()))
	}
	return ok
}

// Login performs credential authentication. When the response signals that a
// step-up factor is required, it returns (true, nil) without establishing a
// session; the caller then runs AuthenticateWithPasskey. If a newer
// operation superseded this login, the result is dropped and (false, nil) is
// returned.
func (c *Controller) Login(ctx context.Context, email, password string) (requiresTwoFactor bool, err error) {
	if strings.TrimSpace(email) == "" || !strings.Contains(email, "@") || password == "" {
		return false, &AuthError{msg: msgInvalidCredentials}
	}
	if !c.limiter.Allow() {
		return false, &AuthError{msg: msgRateLimited}
	}

	id := c.beginWrite()

	var resp LoginResponse
	reqErr := c.transport.Do(ctx, http.MethodPost, "/api/auth/login", LoginRequest{Email: email, Password: password}, &resp)
	if reqErr == nil {
		if verr := resp.Validate(); verr != nil {
			reqErr = fmt.Errorf("%w: %v", ErrInvalidResponse, verr)
		}
	}

	stale := false
	clearToken := false
	newToken := ""
	c.mutate(func() {
		c.inflight--
		if c.epoch != id {
			stale = true
			return
		}
		switch {
		case reqErr == nil && resp.RequiresTwoFactor:
			// Credentials accepted, passkey pending. The session stays
			// unauthenticated until the step-up completes.
		case reqErr == nil:
			if resp.User != nil {
				c.setUserLocked(resp.User)
			}
			newToken = resp.Token
		case isSessionInvalidating(reqErr):
			c.setUserLocked(nil)
			clearToken = true
		}
	})

	if stale {
		return false, nil
	}
	if clearToken {
		c.tokens.Clear()
	}
	if newToken != "" {
		c.tokens.SetToken(newToken)
	}
	if reqErr != nil {
		c.logger.Error("login failed", slog.String("error", reqErr.Error()))
		return false, normalizeAuthError(reqErr)
	}
	return resp.RequiresTwoFactor, nil
}

// AuthenticateWithPasskey runs the full assertion flow: fetch request
// options, run the platform ceremony, submit the assertion, receive the
// confirmed user. If the epoch advanced while any of those steps were
// suspended, the result is discarded without mutating state, so a slow or
// cancelled ceremony cannot resurrect a logged-out session.
func (c *Controller) AuthenticateWithPasskey(ctx context.Context) error {
	id := c.beginWrite()

	user, token, err := c.runPasskeyAuthentication(ctx)

	stale := false
	c.mutate(func() {
		c.inflight--
		if c.epoch != id {
			stale = true
			return
		}
		if err == nil {
			c.setUserLocked(user)
		} else {
			c.setUserLocked(nil)
		}
	})

	if stale {
		return nil
	}
	if err != nil {
		c.logger.Error("passkey authentication failed", slog.String("error", err.Error()))
		return &AuthError{msg: passkey.DescribeError(err), cause: err}
	}
	if token != "" {
		c.tokens.SetToken(token)
	}
	return nil
}

func (c *Controller) runPasskeyAuthentication(ctx context.Context) (*User, string, error) {
	var start PasskeyAuthStartResponse
	if err := c.transport.Do(ctx, http.MethodPost, "/api/auth/webauthn/authenticate/start", struct{}{}, &start); err != nil {
		return nil, "", err
	}
	if err := start.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	assertion, err := c.passkeys.Authenticate(ctx, start.PublicKey)
	if err != nil {
		return nil, "", err
	}

	var finish PasskeyAuthFinishResponse
	if err := c.transport.Do(ctx, http.MethodPost, "/api/auth/webauthn/authenticate/finish", assertion, &finish); err != nil {
		return nil, "", err
	}
	if err := finish.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return finish.User, finish.Token, nil
}

// RegisterPasskey runs the attestation flow to add a passkey to the current
// account. Same epoch discipline as AuthenticateWithPasskey; on success the
// user is updated only if the server returned one.
func (c *Controller) RegisterPasskey(ctx context.Context) error {
	id := c.beginWrite()

	user, token, err := c.runPasskeyRegistration(ctx)

	stale := false
	c.mutate(func() {
		c.inflight--
		if c.epoch != id {
			stale = true
			return
		}
		if err == nil && user != nil {
			c.setUserLocked(user)
		}
	})

	if stale {
		return nil
	}
	if err != nil {
		c.logger.Error("passkey registration failed", slog.String("error", err.Error()))
		return &AuthError{msg: passkey.DescribeError(err), cause: err}
	}
	if token != "" {
		c.tokens.SetToken(token)
	}
	return nil
}

func (c *Controller) runPasskeyRegistration(ctx context.Context) (*User, string, error) {
	var start PasskeyRegisterStartResponse
	if err := c.transport.Do(ctx, http.MethodPost, "/api/auth/webauthn/register/start", struct{}{}, &start); err != nil {
		return nil, "", err
	}
	if err := start.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	attestation, err := c.passkeys.Register(ctx, start.PublicKey)
	if err != nil {
		return nil, "", err
	}

	var finish PasskeyRegisterFinishResponse
	if err := c.transport.Do(ctx, http.MethodPost, "/api/auth/webauthn/register/finish", attestation, &finish); err != nil {
		return nil, "", err
	}
	if err := finish.Validate(); err != nil {
		return nil, "", fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}
	return finish.User, finish.Token, nil
}

// RefreshSession silently re-validates the session in the background. It
// never returns an error: session-invalidating failures clear local state,
// transient ones are only logged.
func (c *Controller) RefreshSession(ctx context.Context) {
	id := c.beginRead()

	var resp RefreshResponse
	err := c.transport.Do(ctx, http.MethodPost, "/api/auth/refresh", struct{}{}, &resp)
	if err == nil {
		if verr := resp.Validate(); verr != nil {
			err = fmt.Errorf("%w: %v", ErrInvalidResponse, verr)
		}
	}

	clearToken := false
	c.mutate(func() {
		c.inflight--
		if c.epoch != id {
			return
		}
		switch {
		case err == nil && resp.User != nil:
			c.setUserLocked(resp.User)
		case err != nil && isSessionInvalidating(err):
			c.setUserLocked(nil)
			clearToken = true
		}
	})

	if clearToken {
		c.tokens.Clear()
	}
	if err != nil {
		c.logger.Info("session refresh failed", slog.String("error", err.Error()))
	}
}

// Logout ends the session. The network call is best-effort; local state is
// cleared unconditionally even when it fails, and the epoch bump guarantees
// no in-flight operation can re-establish the session afterwards.
func (c *Controller) Logout(ctx context.Context) {
	// The epoch bump supersedes in-flight operations; the cleanup below
	// deliberately skips the epoch check so logout always wins.
	c.beginWrite()

	defer func() {
		c.mutate(func() {
			c.inflight--
			c.setUserLocked(nil)
		})
		c.tokens.Clear()
	}()

	if err := c.transport.Do(ctx, http.MethodPost, "/api/auth/logout", struct{}{}, nil); err != nil {
		c.logger.Warn("logout request failed", slog.String("error", err.Error()))
	}
}

// ---- internals ----

// beginRead captures the current epoch without bumping it and marks an
// operation in flight.
func (c *Controller) beginRead() uint64 {
	c.mu.Lock()
	id := c.epoch
	c.inflight++
	subs, snap := c.fanoutLocked()
	c.mu.Unlock()

	deliver(subs, snap)
	return id
}

// beginWrite bumps the epoch, superseding every in-flight operation, and
// captures the new value.
func (c *Controller) beginWrite() uint64 {
	c.mu.Lock()
	c.epoch++
	id := c.epoch
	c.inflight++
	subs, snap := c.fanoutLocked()
	c.mu.Unlock()

	deliver(subs, snap)
	return id
}

// mutate runs fn under the controller lock and notifies subscribers of the
// resulting snapshot.
func (c *Controller) mutate(fn func()) {
	c.mu.Lock()
	fn()
	subs, snap := c.fanoutLocked()
	c.mu.Unlock()

	deliver(subs, snap)
}

// setUserLocked replaces the current user and reconciles the refresh
// scheduler with the new presence state.
func (c *Controller) setUserLocked(u *User) {
	c.user = u

	switch {
	case u != nil && c.refreshCancel == nil && !c.closed:
		ctx, cancel := context.WithCancel(context.Background())
		c.refreshCancel = cancel
		go c.refreshLoop(ctx)
	case u == nil && c.refreshCancel != nil:
		c.refreshCancel()
		c.refreshCancel = nil
	}
}

func (c *Controller) refreshLoop(ctx context.Context) {
	for {
		timer := time.NewTimer(c.nextRefreshDelay())
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		c.RefreshSession(ctx)
	}
}

// nextRefreshDelay returns the fixed interval, or sooner when the stored
// token is a JWT whose exp claim lands earlier. The token is parsed without
// verification; the client has no keys and only needs the timestamp.
func (c *Controller) nextRefreshDelay() time.Duration {
	delay := c.interval

	token := c.tokens.Token()
	if token == "" {
		return delay
	}

	parsed, _, err := jwt.NewParser().ParseUnverified(token, jwt.MapClaims{})
	if err != nil {
		return delay // opaque token, fixed cadence
	}
	exp, err := parsed.Claims.GetExpirationTime()
	if err != nil || exp == nil {
		return delay
	}

	until := time.Until(exp.Time) - refreshBuffer
	if until < delay {
		delay = until
	}
	if delay < minRefreshDelay {
		delay = minRefreshDelay
	}
	return delay
}

// onTokenChange re-derives in-memory state when the token store changes
// underneath the controller. Writes the controller itself performed are
// already consistent by the time they reach the store, so they fall through
// both branches.
func (c *Controller) onTokenChange(token string) {
	c.mu.Lock()
	hasUser := c.user != nil
	closed := c.closed
	c.mu.Unlock()

	if closed {
		return
	}

	switch {
	case token == "" && hasUser:
		c.logger.Info("session token cleared externally, dropping user state")
		c.mutate(func() {
			c.epoch++
			c.setUserLocked(nil)
		})
	case token != "" && !hasUser:
		go c.CheckAuth(context.Background())
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	var user *User
	if c.user != nil {
		u := *c.user
		user = &u
	}
	return Snapshot{
		User:            user,
		IsAuthenticated: c.user != nil,
		IsLoading:       !c.checked || c.inflight > 0,
	}
}

func (c *Controller) fanoutLocked() ([]func(Snapshot), Snapshot) {
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	return subs, c.snapshotLocked()
}

func deliver(subs []func(Snapshot), snap Snapshot) {
	for _, fn := range subs {
		fn(snap)
	}
}
