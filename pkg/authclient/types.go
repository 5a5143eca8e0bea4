package authclient

import (
	"fmt"
	"strings"

	"github.com/acehq/aceauth/pkg/passkey"
)

// User is the backend-owned identity record. The controller does not
// interpret its fields beyond existence.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}

// Validate checks the identity record has the shape the backend promises.
func (u User) Validate() error {
	switch {
	case strings.TrimSpace(u.ID) == "":
		return fmt.Errorf("user: id is required")
	case strings.TrimSpace(u.Email) == "" || !strings.Contains(u.Email, "@"):
		return fmt.Errorf("user: invalid email")
	case strings.TrimSpace(u.Name) == "":
		return fmt.Errorf("user: name is required")
	}
	return nil
}

// LoginRequest is the POST /api/auth/login body.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse signals whether a step-up factor is still required. The user
// and token appear only when the session is complete without step-up.
type LoginResponse struct {
	RequiresTwoFactor bool   `json:"requiresTwoFactor"`
	Message           string `json:"message,omitempty"`
	Token             string `json:"token,omitempty"`
	User              *User  `json:"user,omitempty"`
}

func (r LoginResponse) Validate() error {
	if r.User != nil {
		return r.User.Validate()
	}
	return nil
}

// MeResponse is the GET /api/auth/me payload.
type MeResponse struct {
	User *User `json:"user"`
}

func (r MeResponse) Validate() error {
	if r.User == nil {
		return fmt.Errorf("me: user is required")
	}
	return r.User.Validate()
}

// RefreshResponse optionally carries a refreshed user record.
type RefreshResponse struct {
	User *User `json:"user,omitempty"`
}

func (r RefreshResponse) Validate() error {
	if r.User != nil {
		return r.User.Validate()
	}
	return nil
}

// PasskeyAuthStartResponse carries the server-issued one-time request
// options. Consumed exactly once, never persisted.
type PasskeyAuthStartResponse struct {
	PublicKey passkey.RequestOptionsJSON `json:"publicKey"`
}

func (r PasskeyAuthStartResponse) Validate() error {
	if r.PublicKey.Challenge == "" {
		return fmt.Errorf("passkey auth start: challenge is required")
	}
	return nil
}

// PasskeyAuthFinishResponse confirms the assertion and returns the user.
type PasskeyAuthFinishResponse struct {
	User  *User  `json:"user"`
	Token string `json:"token,omitempty"`
}

func (r PasskeyAuthFinishResponse) Validate() error {
	if r.User == nil {
		return fmt.Errorf("passkey auth finish: user is required")
	}
	return r.User.Validate()
}

// PasskeyRegisterStartResponse carries the one-time creation options.
type PasskeyRegisterStartResponse struct {
	PublicKey passkey.CreationOptionsJSON `json:"publicKey"`
}

func (r PasskeyRegisterStartResponse) Validate() error {
	switch {
	case r.PublicKey.Challenge == "":
		return fmt.Errorf("passkey register start: challenge is required")
	case r.PublicKey.RP.Name == "":
		return fmt.Errorf("passkey register start: rp.name is required")
	case r.PublicKey.User.ID == "":
		return fmt.Errorf("passkey register start: user.id is required")
	case len(r.PublicKey.PubKeyCredParams) == 0:
		return fmt.Errorf("passkey register start: pubKeyCredParams is required")
	}
	return nil
}

// PasskeyRegisterFinishResponse may or may not return an updated user.
type PasskeyRegisterFinishResponse struct {
	User  *User  `json:"user,omitempty"`
	Token string `json:"token,omitempty"`
}

func (r PasskeyRegisterFinishResponse) Validate() error {
	if r.User != nil {
		return r.User.Validate()
	}
	return nil
}
