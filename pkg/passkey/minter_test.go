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
	"crypto/ecdsa"
	"crypto/ed25519"
	"crypto/elliptic"
	"crypto/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJWTMinter_MintAndVerify(t *testing.T) {
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	minter, err := NewJWTMinter(&JWTMinterConfig{PrivateKey: key})
	require.NoError(t, err)

	token, err := minter.MintToken(ctx, "user-123")
	require.NoError(t, err)
	require.NotEmpty(t, token)

	claims, err := minter.VerifyToken(token)
	require.NoError(t, err)

	assert.Equal(t, "user-123", claims["sub"])
	assert.Equal(t, "go-passkey", claims["iss"])

	// The proof-of-possession claim marks the token as passkey-backed
	assert.Equal(t, true, claims["webauthn"])
}

func TestJWTMinter_Ed25519(t *testing.T) {
	ctx := context.Background()

	_, key, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)

	minter, err := NewJWTMinter(&JWTMinterConfig{
		PrivateKey: key,
		Issuer:     "auth.example.com",
		Audience:   []string{"example-app"},
		ExpiresIn:  15 * time.Minute,
		KeyID:      "key-1",
	})
	require.NoError(t, err)

	token, err := minter.MintToken(ctx, "user-456")
	require.NoError(t, err)

	claims, err := minter.VerifyToken(token)
	require.NoError(t, err)
	assert.Equal(t, "user-456", claims["sub"])
	assert.Equal(t, "auth.example.com", claims["iss"])
}

func TestJWTMinter_RequiresPrivateKey(t *testing.T) {
	_, err := NewJWTMinter(&JWTMinterConfig{})
	require.Error(t, err)

	_, err = NewJWTMinter(nil)
	require.Error(t, err)
}

func TestJWTMinter_UnsupportedKeyType(t *testing.T) {
	_, err := NewJWTMinter(&JWTMinterConfig{PrivateKey: "not a key"})
	require.Error(t, err)
}

func TestJWTMinter_VerifyRejectsTampered(t *testing.T) {
	ctx := context.Background()

	key, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	require.NoError(t, err)

	minter, err := NewJWTMinter(&JWTMinterConfig{PrivateKey: key})
	require.NoError(t, err)

	token, err := minter.MintToken(ctx, "user-123")
	require.NoError(t, err)

	_, err = minter.VerifyToken(token + "x")
	require.Error(t, err)
}
