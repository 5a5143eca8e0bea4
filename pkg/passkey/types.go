package passkey

// Wire types carry every binary field as a base64url string so they can be
// exchanged with the backend as plain JSON. Native types carry the same
// fields as raw bytes, which is what platform credential interfaces consume.
// The codec in this package translates between the two.

// CredentialDescriptorJSON identifies a previously registered credential on
// the wire.
type CredentialDescriptorJSON struct {
	ID         string   `json:"id"`
	Type       string   `json:"type"`
	Transports []string `json:"transports,omitempty"`
}

// RequestOptionsJSON is the server-issued challenge payload for an
// authentication ceremony.
type RequestOptionsJSON struct {
	Challenge        string                     `json:"challenge"`
	Timeout          int64                      `json:"timeout,omitempty"`
	RPID             string                     `json:"rpId,omitempty"`
	AllowCredentials []CredentialDescriptorJSON `json:"allowCredentials,omitempty"`
	UserVerification string                     `json:"userVerification,omitempty"`
}

// RelyingPartyJSON names the relying party in creation options.
type RelyingPartyJSON struct {
	ID   string `json:"id,omitempty"`
	Name string `json:"name"`
}

// UserEntityJSON identifies the account a new credential is created for.
type UserEntityJSON struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	DisplayName string `json:"displayName"`
}

// CredentialParameterJSON is an acceptable credential type/algorithm pair.
type CredentialParameterJSON struct {
	Type      string `json:"type"`
	Algorithm int    `json:"alg"`
}

// AuthenticatorSelectionJSON constrains which authenticators may be used.
type AuthenticatorSelectionJSON struct {
	AuthenticatorAttachment string `json:"authenticatorAttachment,omitempty"`
	ResidentKey             string `json:"residentKey,omitempty"`
	RequireResidentKey      bool   `json:"requireResidentKey,omitempty"`
	UserVerification        string `json:"userVerification,omitempty"`
}

// CreationOptionsJSON is the server-issued challenge payload for a
// registration ceremony.
type CreationOptionsJSON struct {
	Challenge              string                      `json:"challenge"`
	RP                     RelyingPartyJSON            `json:"rp"`
	User                   UserEntityJSON              `json:"user"`
	PubKeyCredParams       []CredentialParameterJSON   `json:"pubKeyCredParams"`
	Timeout                int64                       `json:"timeout,omitempty"`
	Attestation            string                      `json:"attestation,omitempty"`
	ExcludeCredentials     []CredentialDescriptorJSON  `json:"excludeCredentials,omitempty"`
	AuthenticatorSelection *AuthenticatorSelectionJSON `json:"authenticatorSelection,omitempty"`
}

// AssertionJSON is the JSON-safe proof produced by an authentication
// ceremony, ready to submit to the finish endpoint.
type AssertionJSON struct {
	ID       string                `json:"id"`
	RawID    string                `json:"rawId"`
	Type     string                `json:"type"`
	Response AssertionResponseJSON `json:"response"`
}

type AssertionResponseJSON struct {
	AuthenticatorData string `json:"authenticatorData"`
	ClientDataJSON    string `json:"clientDataJSON"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
}

// AttestationJSON is the JSON-safe proof produced by a registration ceremony.
type AttestationJSON struct {
	ID       string                  `json:"id"`
	RawID    string                  `json:"rawId"`
	Type     string                  `json:"type"`
	Response AttestationResponseJSON `json:"response"`
}

type AttestationResponseJSON struct {
	AttestationObject string   `json:"attestationObject"`
	ClientDataJSON    string   `json:"clientDataJSON"`
	Transports        []string `json:"transports,omitempty"`
}

// ---- native (platform-facing) shapes ----

// CredentialDescriptor is the binary form of CredentialDescriptorJSON.
type CredentialDescriptor struct {
	ID         []byte
	Type       string
	Transports []string
}

// RequestOptions is what the platform "get credential" operation consumes.
// AllowCredentials is nil, never empty: some platform implementations treat
// an explicit empty allow-list differently from an absent one.
type RequestOptions struct {
	Challenge        []byte
	Timeout          int64
	RPID             string
	AllowCredentials []CredentialDescriptor
	UserVerification string
}

// RelyingParty and UserEntity are the binary-side counterparts used in
// CreationOptions.
type RelyingParty struct {
	ID   string
	Name string
}

type UserEntity struct {
	ID          []byte
	Name        string
	DisplayName string
}

// CreationOptions is what the platform "create credential" operation consumes.
type CreationOptions struct {
	Challenge              []byte
	RP                     RelyingParty
	User                   UserEntity
	PubKeyCredParams       []CredentialParameterJSON
	Timeout                int64
	Attestation            string
	ExcludeCredentials     []CredentialDescriptor
	AuthenticatorSelection *AuthenticatorSelectionJSON
}

// Assertion is the platform-produced authentication proof.
type Assertion struct {
	ID                string
	RawID             []byte
	AuthenticatorData []byte
	ClientDataJSON    []byte
	Signature         []byte
	UserHandle        []byte // nil when the authenticator returned none
}

// Attestation is the platform-produced registration proof.
type Attestation struct {
	ID                string
	RawID             []byte
	AttestationObject []byte
	ClientDataJSON    []byte
	Transports        []string
}
