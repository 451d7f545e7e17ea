// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-passkey.
//
// go-passkey is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

package passkey

import (
	"time"

	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/codec"
)

// ChallengeType distinguishes registration from authentication ceremonies.
type ChallengeType string

const (
	// ChallengeRegistration marks a challenge issued for credential registration.
	ChallengeRegistration ChallengeType = "registration"

	// ChallengeAuthentication marks a challenge issued for sign-in.
	ChallengeAuthentication ChallengeType = "authentication"
)

// Challenge is the pending ceremony record persisted per caller identity.
// At most one live challenge exists per identity; issuing a new one
// overwrites any prior record.
type Challenge struct {
	// Type is the ceremony this challenge was issued for.
	Type ChallengeType `json:"type"`

	// Challenge is the urlsafe-base64 encoded random nonce.
	Challenge string `json:"challenge"`

	// CreatedAt is when the challenge was issued, used for TTL enforcement.
	CreatedAt time.Time `json:"created_at"`
}

// Credential is the public-key credential record stored by the Relying Party.
// Created exactly once at registration and never deleted; only Counter is
// mutated afterwards.
type Credential struct {
	// Identity is the caller identity partition this credential is stored under.
	Identity string `json:"identity"`

	// Owner is the account identity tokens are minted for.
	Owner string `json:"user"`

	// CredentialID is the urlsafe-base64 encoded credential id assigned by the
	// authenticator. Globally unique by construction.
	CredentialID string `json:"cred_id"`

	// PublicKey is the credential's public key in COSE format.
	PublicKey []byte `json:"public_key"`

	// AAGUID identifies the authenticator model.
	AAGUID []byte `json:"aaguid"`

	// Counter is the authenticator's signature counter as of the last
	// successful assertion. Monotonically non-decreasing.
	Counter uint32 `json:"prev_counter"`

	// Transports lists the declared transport hints for the credential.
	Transports []string `json:"transports"`

	// CreatedAt is when the credential was registered.
	CreatedAt time.Time `json:"created"`
}

// toWebAuthn converts the stored record to the go-webauthn library's
// credential type for signature verification.
func (c *Credential) toWebAuthn() (webauthn.Credential, error) {
	id, err := codec.Decode(c.CredentialID, codec.URLSafe)
	if err != nil {
		return webauthn.Credential{}, WrapError("decode credential id", err)
	}
	return webauthn.Credential{
		ID:        id,
		PublicKey: c.PublicKey,
		Authenticator: webauthn.Authenticator{
			AAGUID:    c.AAGUID,
			SignCount: c.Counter,
		},
	}, nil
}

// CallerContext carries the implicit request context every operation receives:
// the opaque installation identifier and, when the transport authenticated the
// call, the account identity it ran as.
type CallerContext struct {
	// InstanceToken is the opaque installation identifier. Required.
	InstanceToken string

	// AuthenticatedUID is the account identity of an authenticated caller,
	// empty for anonymous calls.
	AuthenticatedUID string
}

// RegisterChallenge is the registerRequest result.
type RegisterChallenge struct {
	Challenge string `json:"challenge"`
}

// RegisterResponseRequest carries the verify-phase inputs of registration.
// All fields are urlsafe-base64 wire strings except APKSigSha256, which is a
// hash string.
type RegisterResponseRequest struct {
	RawID             string `json:"rawId"`
	CredentialID      string `json:"credentialId"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AttestationObject string `json:"attestationObject"`
	APKSigSha256      string `json:"apkSigSha256,omitempty"`
}

// validate checks the required wire fields and names the first one missing.
func (r *RegisterResponseRequest) validate() error {
	if r == nil {
		return WrapError("registration response", ErrInvalidArgument)
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"rawId", r.RawID},
		{"credentialId", r.CredentialID},
		{"clientDataJSON", r.ClientDataJSON},
		{"attestationObject", r.AttestationObject},
	} {
		if f.value == "" {
			return NewError(f.name+" is required", ErrInvalidArgument)
		}
	}
	return nil
}

// RegisterResult is the registerResponse result.
type RegisterResult struct {
	Token        string `json:"token"`
	CredentialID string `json:"credentialId"`
}

// AllowCredential describes one credential the caller may sign in with.
type AllowCredential struct {
	CredID     string   `json:"credId"`
	Type       string   `json:"type"`
	Transports []string `json:"transports"`
}

// SignInChallenge is the signInRequest result.
type SignInChallenge struct {
	Challenge        string            `json:"challenge"`
	AllowCredentials []AllowCredential `json:"allowCredentials"`
}

// SignInResponseRequest carries the verify-phase inputs of sign-in.
type SignInResponseRequest struct {
	Type              string `json:"type"`
	RawID             string `json:"rawId"`
	ClientDataJSON    string `json:"clientDataJSON"`
	AuthenticatorData string `json:"authenticatorData"`
	Signature         string `json:"signature"`
	UserHandle        string `json:"userHandle,omitempty"`
	APKSigSha256      string `json:"apkSigSha256,omitempty"`
}

func (r *SignInResponseRequest) validate() error {
	if r == nil {
		return WrapError("sign-in response", ErrInvalidArgument)
	}
	for _, f := range []struct {
		name  string
		value string
	}{
		{"rawId", r.RawID},
		{"clientDataJSON", r.ClientDataJSON},
		{"authenticatorData", r.AuthenticatorData},
		{"signature", r.Signature},
	} {
		if f.value == "" {
			return NewError(f.name+" is required", ErrInvalidArgument)
		}
	}
	return nil
}

// SignInResult is the signInResponse result.
type SignInResult struct {
	Token string `json:"token"`
}
