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
	"context"
	"crypto"
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/rsa"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// TokenMinter mints the session token returned after a verified ceremony.
// The token attests possession of a registered credential; downstream
// services trust it in place of a password.
type TokenMinter interface {
	// MintToken creates a session token for the account uid. The token must
	// mark that possession of a registered credential was proven.
	MintToken(ctx context.Context, uid string) (string, error)
}

// JWTMinter mints signed JWTs carrying the webauthn proof claim.
type JWTMinter struct {
	// privateKey is the key used to sign tokens
	privateKey crypto.PrivateKey
	// method is the signing method selected from the key type
	method jwt.SigningMethod
	// issuer is the JWT issuer claim
	issuer string
	// audience is the JWT audience claim
	audience []string
	// expiresIn is how long tokens are valid
	expiresIn time.Duration
	// keyID is the key identifier for the kid header
	keyID string
}

// JWTMinterConfig contains configuration for the JWT minter.
type JWTMinterConfig struct {
	// PrivateKey is the key used to sign tokens (required)
	PrivateKey crypto.PrivateKey
	// Issuer is the JWT issuer claim (default: "go-passkey")
	Issuer string
	// Audience is the JWT audience claim (default: ["go-passkey"])
	Audience []string
	// ExpiresIn is how long tokens are valid (default: 1 hour)
	ExpiresIn time.Duration
	// KeyID is the key identifier for the kid header (optional)
	KeyID string
}

// NewJWTMinter creates a new JWT minter with the given configuration.
func NewJWTMinter(config *JWTMinterConfig) (*JWTMinter, error) {
	if config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if config.PrivateKey == nil {
		return nil, fmt.Errorf("private key is required")
	}

	method, err := signingMethodFor(config.PrivateKey)
	if err != nil {
		return nil, err
	}

	issuer := config.Issuer
	if issuer == "" {
		issuer = "go-passkey"
	}

	audience := config.Audience
	if len(audience) == 0 {
		audience = []string{"go-passkey"}
	}

	expiresIn := config.ExpiresIn
	if expiresIn == 0 {
		expiresIn = time.Hour
	}

	return &JWTMinter{
		privateKey: config.PrivateKey,
		method:     method,
		issuer:     issuer,
		audience:   audience,
		expiresIn:  expiresIn,
		keyID:      config.KeyID,
	}, nil
}

func signingMethodFor(key crypto.PrivateKey) (jwt.SigningMethod, error) {
	switch key.(type) {
	case *ecdsa.PrivateKey:
		return jwt.SigningMethodES256, nil
	case ed25519.PrivateKey:
		return jwt.SigningMethodEdDSA, nil
	case *rsa.PrivateKey:
		return jwt.SigningMethodRS256, nil
	default:
		return nil, fmt.Errorf("unsupported signing key type %T", key)
	}
}

// MintToken creates a JWT for the account uid. The webauthn claim marks the
// token as backed by a verified credential ceremony.
func (m *JWTMinter) MintToken(ctx context.Context, uid string) (string, error) {
	now := time.Now()

	claims := jwt.MapClaims{
		"iss": m.issuer,
		"aud": m.audience,
		"sub": uid,
		"iat": now.Unix(),
		"exp": now.Add(m.expiresIn).Unix(),
		"nbf": now.Unix(),
		// Custom claims
		"webauthn": true,
	}

	token := jwt.NewWithClaims(m.method, claims)
	if m.keyID != "" {
		token.Header["kid"] = m.keyID
	}

	signed, err := token.SignedString(m.privateKey)
	if err != nil {
		return "", WrapError("sign token", err)
	}
	return signed, nil
}

// VerifyToken verifies a JWT minted by this minter and returns the claims.
func (m *JWTMinter) VerifyToken(tokenString string) (jwt.MapClaims, error) {
	signer, ok := m.privateKey.(crypto.Signer)
	if !ok {
		return nil, fmt.Errorf("public key not available for verification")
	}
	publicKey := signer.Public()

	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != m.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method %s", t.Method.Alg())
		}
		return publicKey, nil
	}, jwt.WithIssuer(m.issuer), jwt.WithAudience(m.audience[0]), jwt.WithExpirationRequired())
	if err != nil {
		return nil, fmt.Errorf("token verification failed: %w", err)
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, fmt.Errorf("invalid claims type")
	}
	return claims, nil
}

// VerifySubject verifies a JWT minted by this minter and returns the account
// identity it was minted for.
func (m *JWTMinter) VerifySubject(tokenString string) (string, error) {
	claims, err := m.VerifyToken(tokenString)
	if err != nil {
		return "", err
	}
	sub, err := claims.GetSubject()
	if err != nil || sub == "" {
		return "", fmt.Errorf("token has no subject")
	}
	return sub, nil
}

// Issuer returns the configured issuer.
func (m *JWTMinter) Issuer() string {
	return m.issuer
}

// ExpiresIn returns the token expiration duration.
func (m *JWTMinter) ExpiresIn() time.Duration {
	return m.expiresIn
}
