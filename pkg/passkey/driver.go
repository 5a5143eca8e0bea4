// Package passkey orchestrates WebAuthn browser ceremonies for the ACE auth
// client: it translates server-issued challenge options into platform
// credential calls and the resulting credentials back into JSON-transportable
// assertions and attestations.
//
// The package holds no state between calls. Each ceremony is single-shot:
// challenges are one-time use, so retrying means re-running the whole
// ceremony from the start endpoint.
package passkey

import (
	"context"
	"errors"
)

// ErrorKind classifies ceremony failures the way platform credential APIs
// name them.
type ErrorKind string

const (
	KindNotSupported ErrorKind = "NotSupportedError"
	KindNotAllowed   ErrorKind = "NotAllowedError"
	KindSecurity     ErrorKind = "SecurityError"
)

// Fixed user-facing sentences for the known failure kinds. DescribeError
// returns these verbatim; nothing else from the platform leaks through.
const (
	msgNotSupported = "Passkeys are not supported in this browser."
	msgNotAllowed   = "Passkey authentication was cancelled or timed out."
	msgSecurity     = "Security error during passkey authentication."
	msgGeneric      = "Unable to complete passkey authentication."
)

// CeremonyError is a classified ceremony failure.
type CeremonyError struct {
	Kind ErrorKind
	msg  string
}

func (e *CeremonyError) Error() string { return e.msg }

func newCeremonyError(kind ErrorKind, msg string) *CeremonyError {
	return &CeremonyError{Kind: kind, msg: msg}
}

// Authenticator is the platform credential interface the driver invokes. The
// platform call may block indefinitely awaiting user presence or biometric
// input; the driver imposes no timeout of its own beyond ctx cancellation.
//
// Get returns nil when the user cancelled or the platform timed out.
// Create behaves the same for registration.
type Authenticator interface {
	Get(ctx context.Context, opts RequestOptions) (*Assertion, error)
	Create(ctx context.Context, opts CreationOptions) (*Attestation, error)
}

// Driver runs the two WebAuthn ceremonies against a platform authenticator.
type Driver struct {
	// Authenticator is nil when the platform has no credential API.
	Authenticator Authenticator

	// Secure reports whether the context is secure (HTTPS or local).
	// Ceremonies refuse to run in insecure contexts.
	Secure bool
}

// IsSupported reports whether ceremonies can run here: a credential API must
// be present and the context must be secure. Pure capability probe, no side
// effects.
func (d *Driver) IsSupported() bool {
	return d != nil && d.Authenticator != nil && d.Secure
}

// ensureAvailable asserts the preconditions every ceremony shares.
func (d *Driver) ensureAvailable() error {
	if d == nil || d.Authenticator == nil {
		return newCeremonyError(KindNotSupported, msgNotSupported)
	}
	if !d.Secure {
		return newCeremonyError(KindSecurity, msgSecurity)
	}
	return nil
}

// Authenticate runs the assertion ceremony: normalizes the server-issued
// request options, invokes the platform "get credential" operation, and
// re-encodes the result for JSON transport.
func (d *Driver) Authenticate(ctx context.Context, opts RequestOptionsJSON) (*AssertionJSON, error) {
	if err := d.ensureAvailable(); err != nil {
		return nil, err
	}

	normalized, err := NormalizeRequestOptions(opts)
	if err != nil {
		return nil, err
	}

	assertion, err := d.Authenticator.Get(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if assertion == nil {
		return nil, newCeremonyError(KindNotAllowed, msgNotAllowed)
	}

	return EncodeAssertion(assertion), nil
}

// Register runs the attestation ceremony using the platform "create
// credential" operation. Cancellation and support failures are handled the
// same way as Authenticate.
func (d *Driver) Register(ctx context.Context, opts CreationOptionsJSON) (*AttestationJSON, error) {
	if err := d.ensureAvailable(); err != nil {
		return nil, err
	}

	normalized, err := NormalizeCreationOptions(opts)
	if err != nil {
		return nil, err
	}

	attestation, err := d.Authenticator.Create(ctx, normalized)
	if err != nil {
		return nil, err
	}
	if attestation == nil {
		return nil, newCeremonyError(KindNotAllowed, "Passkey registration was cancelled or timed out.")
	}

	return EncodeAttestation(attestation), nil
}

// DescribeError maps a ceremony failure to a fixed human-readable sentence.
// Unknown errors fall back to their own message, then to a generic string.
func DescribeError(err error) string {
	var cerr *CeremonyError
	if errors.As(err, &cerr) {
		switch cerr.Kind {
		case KindNotSupported:
			return msgNotSupported
		case KindNotAllowed:
			return msgNotAllowed
		case KindSecurity:
			return msgSecurity
		}
	}
	if err != nil && err.Error() != "" {
		return err.Error()
	}
	return msgGeneric
}
