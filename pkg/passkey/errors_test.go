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
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasskeyError_Wrapping(t *testing.T) {
	err := NewError("registerResponse", ErrInvalidChallenge)

	assert.ErrorIs(t, err, ErrInvalidChallenge)
	assert.Contains(t, err.Error(), "registerResponse")
	assert.Contains(t, err.Error(), "invalid challenge")

	var pkErr *PasskeyError
	require.True(t, errors.As(err, &pkErr))
	assert.Equal(t, "registerResponse", pkErr.Op)
}

func TestPasskeyError_NestedUnwrap(t *testing.T) {
	inner := fmt.Errorf("challenge expired: %w", ErrInvalidChallenge)
	err := WrapError("signInResponse", inner)

	assert.ErrorIs(t, err, ErrInvalidChallenge)
	assert.True(t, IsInvalidChallenge(err))
}

func TestWrapError_Nil(t *testing.T) {
	assert.NoError(t, WrapError("op", nil))
}

func TestIsProtocolError(t *testing.T) {
	for _, err := range []error{
		ErrMissingIdentity,
		ErrInvalidArgument,
		ErrInvalidChallenge,
		ErrUnknownCredential,
		ErrNoCredentials,
		ErrAttestationFailed,
		ErrAssertionFailed,
		ErrCredentialExists,
	} {
		assert.True(t, IsProtocolError(err), err.Error())
		assert.True(t, IsProtocolError(WrapError("op", err)), err.Error())
	}

	assert.False(t, IsProtocolError(ErrInternal))
	assert.False(t, IsProtocolError(errors.New("disk on fire")))
}

func TestIsVerificationFailed(t *testing.T) {
	assert.True(t, IsVerificationFailed(ErrAttestationFailed))
	assert.True(t, IsVerificationFailed(WrapError("op", ErrAssertionFailed)))
	assert.False(t, IsVerificationFailed(ErrInvalidChallenge))
}
