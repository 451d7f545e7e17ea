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
	"github.com/fxamacker/cbor/v2"
)

// attestationEnvelope is the outer CBOR map of an attestation object. Only the
// format identifier is needed here; the full statement is verified by the
// WebAuthn library.
type attestationEnvelope struct {
	Format   string `cbor:"fmt"`
	AuthData []byte `cbor:"authData"`
}

// attestationFormat extracts the attestation statement format identifier from
// a raw attestation object.
func attestationFormat(attestationObject []byte) (string, error) {
	var env attestationEnvelope
	if err := cbor.Unmarshal(attestationObject, &env); err != nil {
		return "", WrapError("decode attestation object", err)
	}
	return env.Format, nil
}

// guessTransports derives transport hints from the attestation format when the
// client did not declare any. U2F attestations come from roaming USB security
// keys; everything else is treated as a platform authenticator.
func guessTransports(attestationObject []byte) []string {
	format, err := attestationFormat(attestationObject)
	if err == nil && format == "fido-u2f" {
		return []string{"usb"}
	}
	return []string{"internal"}
}
