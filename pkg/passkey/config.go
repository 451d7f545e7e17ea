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
	"fmt"
	"strings"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/protocol/webauthncose"
	"github.com/go-webauthn/webauthn/webauthn"
)

const (
	// DefaultChallengeSize is the nonce length in bytes.
	DefaultChallengeSize = 32

	// DefaultChallengeTTL bounds how long an unconsumed challenge stays valid.
	DefaultChallengeTTL = 30 * time.Minute

	// apkKeyHashScheme is the origin scheme used for native Android app
	// attestation binding. The APK signing certificate hash is appended.
	apkKeyHashScheme = "android:apk-key-hash:"
)

// Config configures the passkey service. All settings are passed explicitly at
// construction; there is no process-wide configuration state.
type Config struct {
	// RPID is the Relying Party identifier, typically the domain name.
	// Example: "example.web.app"
	RPID string `yaml:"id" json:"id" mapstructure:"id"`

	// RPDisplayName is the human-readable name of the Relying Party.
	RPDisplayName string `yaml:"display_name" json:"display_name" mapstructure:"display_name"`

	// RPOrigin is the relying party's canonical web origin. Derived from RPID
	// when unset ("https://" + RPID).
	RPOrigin string `yaml:"origin" json:"origin" mapstructure:"origin"`

	// ChallengeSize is the random nonce length in bytes.
	// Default: 32
	ChallengeSize int `yaml:"challenge_size" json:"challenge_size" mapstructure:"challenge_size"`

	// ChallengeTTL is how long an issued challenge may be consumed.
	// Challenges older than this fail verification. Default: 30 minutes.
	ChallengeTTL time.Duration `yaml:"challenge_ttl" json:"challenge_ttl" mapstructure:"challenge_ttl"`

	// CredentialAlgorithms lists the COSE algorithm identifiers accepted for
	// newly attested credential public keys. Default: ES256 (-7).
	CredentialAlgorithms []int64 `yaml:"credential_algorithms" json:"credential_algorithms" mapstructure:"credential_algorithms"`

	// Debug enables debug logging in the underlying WebAuthn library.
	Debug bool `yaml:"debug" json:"debug" mapstructure:"debug"`
}

// Validate validates the configuration and returns an error if invalid.
func (c *Config) Validate() error {
	if c.RPID == "" {
		return fmt.Errorf("RPID is required")
	}
	if c.RPDisplayName == "" {
		return fmt.Errorf("RPDisplayName is required")
	}
	if c.ChallengeSize < 16 {
		return fmt.Errorf("challenge size must be at least 16 bytes, got %d", c.ChallengeSize)
	}
	if c.ChallengeTTL <= 0 {
		return fmt.Errorf("challenge TTL must be positive")
	}
	if c.RPOrigin != "" && !strings.Contains(c.RPOrigin, "://") {
		return fmt.Errorf("RPOrigin must be a full origin, got %q", c.RPOrigin)
	}
	return nil
}

// SetDefaults sets default values for unset configuration fields.
func (c *Config) SetDefaults() {
	if c.ChallengeSize == 0 {
		c.ChallengeSize = DefaultChallengeSize
	}
	if c.ChallengeTTL == 0 {
		c.ChallengeTTL = DefaultChallengeTTL
	}
	if c.RPOrigin == "" && c.RPID != "" {
		c.RPOrigin = "https://" + c.RPID
	}
	if len(c.CredentialAlgorithms) == 0 {
		c.CredentialAlgorithms = []int64{int64(webauthncose.AlgES256)}
	}
}

// credentialParameters converts the configured algorithm list into the
// library's credential parameter type. Attestations carrying a public key
// outside this list are rejected.
func (c *Config) credentialParameters() []protocol.CredentialParameter {
	params := make([]protocol.CredentialParameter, len(c.CredentialAlgorithms))
	for i, alg := range c.CredentialAlgorithms {
		params[i] = protocol.CredentialParameter{
			Type:      protocol.PublicKeyCredentialType,
			Algorithm: webauthncose.COSEAlgorithmIdentifier(alg),
		}
	}
	return params
}

// ExpectedOrigin computes the origin a ceremony response must be bound to.
// When the client presents an APK signing certificate hash the ceremony ran in
// a native Android app and the origin is the app-specific scheme embedding
// that hash; otherwise it is the relying party's canonical web origin.
func (c *Config) ExpectedOrigin(apkSigSha256 string) string {
	if apkSigSha256 != "" {
		return apkKeyHashScheme + apkSigSha256
	}
	return c.RPOrigin
}

// toWebAuthnConfig converts the Config to the go-webauthn library's
// configuration, bound to a single expected origin. A fresh instance is built
// per verification because the expected origin varies per request.
func (c *Config) toWebAuthnConfig(origin string) *webauthn.Config {
	return &webauthn.Config{
		RPID:          c.RPID,
		RPDisplayName: c.RPDisplayName,
		RPOrigins:     []string{origin},
		Debug:         c.Debug,
	}
}
