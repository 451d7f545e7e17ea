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

// Package codec converts public-key credential material and signatures between
// their wire representation (base64 strings) and raw bytes.
//
// Two modes are supported: Standard (RFC 4648 base64 with padding) and URLSafe
// (base64url, no padding). Decode is tolerant of inputs produced by either
// alphabet because authenticator client libraries are inconsistent about which
// one they emit.
package codec

import (
	"encoding/base64"
	"fmt"
	"strings"
)

// Mode selects the base64 alphabet used by Encode and Decode.
type Mode string

const (
	// Standard is RFC 4648 base64 with padding.
	Standard Mode = "standard"

	// URLSafe is base64url without padding ('+' -> '-', '/' -> '_').
	URLSafe Mode = "urlsafe"
)

// ErrUnsupportedMode is returned for any mode other than Standard or URLSafe.
var ErrUnsupportedMode = fmt.Errorf("codec: unsupported mode")

// Encode encodes raw bytes into the wire representation for the given mode.
func Encode(b []byte, mode Mode) (string, error) {
	switch mode {
	case Standard:
		return base64.StdEncoding.EncodeToString(b), nil
	case URLSafe:
		return base64.RawURLEncoding.EncodeToString(b), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

// Decode converts a wire string back into raw bytes. For URLSafe input the
// padding is restored to a multiple of four before decoding.
func Decode(s string, mode Mode) ([]byte, error) {
	switch mode {
	case Standard:
		return base64.StdEncoding.DecodeString(s)
	case URLSafe:
		normalized := strings.NewReplacer("+", "-", "/", "_").Replace(s)
		normalized = strings.TrimRight(normalized, "=")
		if pad := len(normalized) % 4; pad != 0 {
			normalized += strings.Repeat("=", 4-pad)
		}
		return base64.URLEncoding.DecodeString(normalized)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedMode, mode)
	}
}

// ToBuffer is an alias for Decode, matching the naming used by authenticator
// client libraries.
func ToBuffer(s string, mode Mode) ([]byte, error) {
	return Decode(s, mode)
}
