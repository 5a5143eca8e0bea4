/*
Package authclient is the session and authentication core for ACE clients:
it establishes, verifies, refreshes, and tears down a user's authenticated
identity against the ACE backend, including the passkey step-up ceremony.

# Controller and Guard

The package is organized around two types:

  - Controller: the session state machine. It owns the current user, the
    stored token, and the epoch counter that discards stale concurrent
    completions.
  - Guard: a reusable gate that blocks protected content until the
    Controller confirms authentication and redirects otherwise.

Construct one Controller at application root and pass it down by reference:

	tokens := tokenstore.Open(statePath, logger)
	client := authclient.NewClient("https://ace.example.com", tokens, logger)
	ctrl := authclient.NewController(authclient.Config{
		Transport: client,
		Tokens:    tokens,
		Passkeys:  driver,
		Logger:    logger,
	})
	defer ctrl.Close()

	ctrl.Start(ctx) // initial session check

# Authentication flows

Credential login, optionally followed by a passkey step-up:

	requiresTwoFactor, err := ctrl.Login(ctx, email, password)
	if err != nil {
		// err.Error() is already a safe, user-facing message
	}
	if requiresTwoFactor {
		if err := ctrl.AuthenticateWithPasskey(ctx); err != nil {
			// fixed ceremony message, render inline
		}
	}

Logout always clears local state, even when the network call fails:

	ctrl.Logout(ctx)

# Concurrency

Every state-changing operation bumps the controller's epoch and re-checks it
before mutating shared state; a completion belonging to an older epoch is
silently dropped. Explicit user actions therefore always win over stale
in-flight operations, never the reverse.

# Observing state

Snapshot returns the current state; Subscribe delivers every change:

	cancel := ctrl.Subscribe(func(s authclient.Snapshot) {
		render(s.User, s.IsLoading)
	})
	defer cancel()

While a user is present the controller silently refreshes the session in the
background, pacing itself by the stored token's exp claim when the token is a
JWT.
*/
package authclient
