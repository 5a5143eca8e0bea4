// Package cli implements acectl, a terminal consumer of the auth client SDK.
// It exercises the same controller the embedded consumers use: credential
// login, session inspection, refresh, and logout against an ACE backend.
package cli

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"

	"github.com/acehq/aceauth/pkg/authclient"
	"github.com/acehq/aceauth/pkg/passkey"
	"github.com/acehq/aceauth/pkg/slogx"
	"github.com/acehq/aceauth/pkg/tokenstore"
)

const usage = `Usage: acectl <command>

Commands:
  login <email>   sign in with email and password (password read from stdin)
  whoami          show the current session's user
  refresh         refresh the current session
  logout          end the current session
  passkeys        report passkey ceremony support for this environment
  totp            print the current TOTP code for ACE_TOTP_SECRET
`

// App wires the SDK for terminal use. Construct with New, then Run once.
type App struct {
	cfg    Config
	logger *slog.Logger
	out    io.Writer
	in     *bufio.Reader

	tokens *tokenstore.Store
	ctrl   *authclient.Controller
	driver *passkey.Driver
}

func New(cfg Config) (*App, error) {
	logger := slogx.New(slogx.Config{
		Service: "acectl",
		Version: "dev",
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	if cfg.StateDir != "" {
		if err := os.MkdirAll(cfg.StateDir, 0o700); err != nil {
			return nil, fmt.Errorf("failed to create state directory: %w", err)
		}
	}

	tokens := tokenstore.Open(cfg.TokenPath(), logger)
	client := authclient.NewClient(cfg.BaseURL, tokens, logger)
	if cfg.Timeout > 0 {
		client.HTTPClient.Timeout = cfg.Timeout
	}

	// Terminal sessions have no platform credential API; the driver reports
	// ceremonies as unsupported rather than pretending.
	driver := &passkey.Driver{}

	ctrl := authclient.NewController(authclient.Config{
		Transport: client,
		Tokens:    tokens,
		Passkeys:  driver,
		Logger:    logger,
	})

	return &App{
		cfg:    cfg,
		logger: logger,
		out:    os.Stdout,
		in:     bufio.NewReader(os.Stdin),
		tokens: tokens,
		ctrl:   ctrl,
		driver: driver,
	}, nil
}

// Run dispatches a single subcommand and tears the controller down.
func (a *App) Run(ctx context.Context, args []string) error {
	defer a.ctrl.Close()

	if len(args) == 0 {
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("missing command")
	}

	switch args[0] {
	case "login":
		return a.login(ctx, args[1:])
	case "whoami":
		return a.whoami(ctx)
	case "refresh":
		return a.refresh(ctx)
	case "logout":
		a.ctrl.Logout(ctx)
		fmt.Fprintln(a.out, "signed out")
		return nil
	case "passkeys":
		return a.passkeys()
	case "totp":
		return a.totpCommand()
	default:
		fmt.Fprint(a.out, usage)
		return fmt.Errorf("unknown command: %s", args[0])
	}
}

func (a *App) login(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: acectl login <email>")
	}
	email := args[0]

	fmt.Fprint(a.out, "Password: ")
	password, err := a.in.ReadString('\n')
	if err != nil {
		return fmt.Errorf("failed to read password: %w", err)
	}
	password = strings.TrimRight(password, "\r\n")

	requiresTwoFactor, err := a.ctrl.Login(ctx, email, password)
	if err != nil {
		return err
	}

	if requiresTwoFactor {
		fmt.Fprintln(a.out, "Additional verification required.")
		if a.cfg.TOTPSecret != "" {
			code, cerr := totpCode(a.cfg.TOTPSecret, time.Now())
			if cerr != nil {
				return fmt.Errorf("failed to generate TOTP code: %w", cerr)
			}
			fmt.Fprintf(a.out, "Current TOTP code: %s\n", code)
		}
		return fmt.Errorf("complete the passkey step in a browser session, then run acectl whoami")
	}

	snap := a.ctrl.Snapshot()
	if snap.User != nil {
		fmt.Fprintf(a.out, "Signed in as %s (%s)\n", snap.User.Name, snap.User.Email)
	}
	return nil
}

func (a *App) whoami(ctx context.Context) error {
	if !a.ctrl.CheckAuth(ctx) {
		return fmt.Errorf("not signed in")
	}

	user := a.ctrl.Snapshot().User
	fmt.Fprintf(a.out, "id:    %s\n", user.ID)
	fmt.Fprintf(a.out, "email: %s\n", user.Email)
	fmt.Fprintf(a.out, "name:  %s\n", user.Name)
	return nil
}

func (a *App) refresh(ctx context.Context) error {
	if !a.ctrl.CheckAuth(ctx) {
		return fmt.Errorf("not signed in")
	}

	a.ctrl.RefreshSession(ctx)
	if !a.ctrl.Snapshot().IsAuthenticated {
		return fmt.Errorf("session is no longer valid")
	}
	fmt.Fprintln(a.out, "session refreshed")
	return nil
}

func (a *App) passkeys() error {
	if a.driver.IsSupported() {
		fmt.Fprintln(a.out, "passkeys: supported")
		return nil
	}
	fmt.Fprintln(a.out, "passkeys: unsupported (no platform credential API in terminal sessions)")
	return nil
}

func (a *App) totpCommand() error {
	if a.cfg.TOTPSecret == "" {
		return fmt.Errorf("ACE_TOTP_SECRET is not set")
	}
	code, err := totpCode(a.cfg.TOTPSecret, time.Now())
	if err != nil {
		return fmt.Errorf("failed to generate TOTP code: %w", err)
	}
	fmt.Fprintln(a.out, code)
	return nil
}

// totpCode generates the code for a provisioning secret, tolerating the
// lowercase and spaced forms issuers tend to display.
func totpCode(secret string, at time.Time) (string, error) {
	normalized := strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(secret), " ", ""))
	return totp.GenerateCode(normalized, at)
}
