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
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func encodeAttestation(t *testing.T, format string) []byte {
	t.Helper()
	doc, err := cbor.Marshal(map[string]any{
		"fmt":      format,
		"attStmt":  map[string]any{},
		"authData": []byte{0x00, 0x01},
	})
	require.NoError(t, err)
	return doc
}

func TestAttestationFormat(t *testing.T) {
	format, err := attestationFormat(encodeAttestation(t, "packed"))
	require.NoError(t, err)
	assert.Equal(t, "packed", format)
}

func TestAttestationFormat_Invalid(t *testing.T) {
	_, err := attestationFormat([]byte{0xff, 0xfe})
	require.Error(t, err)
}

func TestGuessTransports(t *testing.T) {
	// U2F attestations come from roaming USB keys
	assert.Equal(t, []string{"usb"}, guessTransports(encodeAttestation(t, "fido-u2f")))

	// Anything else is treated as a platform authenticator
	assert.Equal(t, []string{"internal"}, guessTransports(encodeAttestation(t, "packed")))
	assert.Equal(t, []string{"internal"}, guessTransports(encodeAttestation(t, "none")))
	assert.Equal(t, []string{"internal"}, guessTransports(encodeAttestation(t, "android-safetynet")))

	// Undecodable input falls back to the platform guess
	assert.Equal(t, []string{"internal"}, guessTransports([]byte{0xff}))
}
