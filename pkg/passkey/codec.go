package passkey

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// validTransports is the closed set of credential descriptor transports.
// Unknown values fail validation here instead of surfacing later as cryptic
// platform exceptions mid-ceremony.
var validTransports = map[string]struct{}{
	"usb":      {},
	"nfc":      {},
	"ble":      {},
	"internal": {},
	"hybrid":   {},
}

// EncodeBuffer encodes raw bytes as unpadded base64url text. It is the exact
// inverse of DecodeBuffer for every byte sequence, including the empty one.
func EncodeBuffer(buf []byte) string {
	return base64.RawURLEncoding.EncodeToString(buf)
}

// DecodeBuffer decodes base64url text into raw bytes. Padded input is
// tolerated; the canonical form is unpadded.
func DecodeBuffer(text string) ([]byte, error) {
	buf, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(text, "="))
	if err != nil {
		return nil, fmt.Errorf("passkey: invalid base64url data: %w", err)
	}
	return buf, nil
}

// NormalizeRequestOptions maps the wire-shaped request options into the
// binary form the platform credential interface requires. Binary-as-text
// fields are decoded; everything else passes through unchanged. An empty
// allow-list is omitted rather than passed as an empty slice.
func NormalizeRequestOptions(opts RequestOptionsJSON) (RequestOptions, error) {
	challenge, err := DecodeBuffer(opts.Challenge)
	if err != nil {
		return RequestOptions{}, fmt.Errorf("challenge: %w", err)
	}

	allowed, err := normalizeDescriptors(opts.AllowCredentials)
	if err != nil {
		return RequestOptions{}, fmt.Errorf("allowCredentials: %w", err)
	}

	return RequestOptions{
		Challenge:        challenge,
		Timeout:          opts.Timeout,
		RPID:             opts.RPID,
		AllowCredentials: allowed,
		UserVerification: opts.UserVerification,
	}, nil
}

// NormalizeCreationOptions is the registration-side counterpart of
// NormalizeRequestOptions.
func NormalizeCreationOptions(opts CreationOptionsJSON) (CreationOptions, error) {
	challenge, err := DecodeBuffer(opts.Challenge)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("challenge: %w", err)
	}

	userID, err := DecodeBuffer(opts.User.ID)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("user.id: %w", err)
	}

	excluded, err := normalizeDescriptors(opts.ExcludeCredentials)
	if err != nil {
		return CreationOptions{}, fmt.Errorf("excludeCredentials: %w", err)
	}

	return CreationOptions{
		Challenge: challenge,
		RP: RelyingParty{
			ID:   opts.RP.ID,
			Name: opts.RP.Name,
		},
		User: UserEntity{
			ID:          userID,
			Name:        opts.User.Name,
			DisplayName: opts.User.DisplayName,
		},
		PubKeyCredParams:       opts.PubKeyCredParams,
		Timeout:                opts.Timeout,
		Attestation:            opts.Attestation,
		ExcludeCredentials:     excluded,
		AuthenticatorSelection: opts.AuthenticatorSelection,
	}, nil
}

// normalizeDescriptors decodes credential IDs and validates transports.
// Returns nil for an empty input list.
func normalizeDescriptors(descs []CredentialDescriptorJSON) ([]CredentialDescriptor, error) {
	if len(descs) == 0 {
		return nil, nil
	}

	out := make([]CredentialDescriptor, 0, len(descs))
	for _, d := range descs {
		id, err := DecodeBuffer(d.ID)
		if err != nil {
			return nil, fmt.Errorf("credential id: %w", err)
		}
		for _, tr := range d.Transports {
			if _, ok := validTransports[tr]; !ok {
				return nil, fmt.Errorf("passkey: unknown credential transport %q", tr)
			}
		}
		out = append(out, CredentialDescriptor{
			ID:         id,
			Type:       d.Type,
			Transports: d.Transports,
		})
	}
	return out, nil
}

// EncodeAssertion re-encodes a platform assertion's binary fields back to
// base64url for JSON transport.
func EncodeAssertion(a *Assertion) *AssertionJSON {
	out := &AssertionJSON{
		ID:    a.ID,
		RawID: EncodeBuffer(a.RawID),
		Type:  "public-key",
		Response: AssertionResponseJSON{
			AuthenticatorData: EncodeBuffer(a.AuthenticatorData),
			ClientDataJSON:    EncodeBuffer(a.ClientDataJSON),
			Signature:         EncodeBuffer(a.Signature),
		},
	}
	if len(a.UserHandle) > 0 {
		out.Response.UserHandle = EncodeBuffer(a.UserHandle)
	}
	return out
}

// EncodeAttestation re-encodes a platform attestation for JSON transport,
// including the optional transport hints.
func EncodeAttestation(a *Attestation) *AttestationJSON {
	return &AttestationJSON{
		ID:    a.ID,
		RawID: EncodeBuffer(a.RawID),
		Type:  "public-key",
		Response: AttestationResponseJSON{
			AttestationObject: EncodeBuffer(a.AttestationObject),
			ClientDataJSON:    EncodeBuffer(a.ClientDataJSON),
			Transports:        a.Transports,
		},
	}
}
