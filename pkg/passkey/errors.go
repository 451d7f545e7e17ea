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
)

// Sentinel errors for passkey ceremony operations. These are the only error
// kinds that cross the trust boundary to callers; anything unclassified is
// logged server-side and converted to ErrInternal.
var (
	// ErrMissingIdentity is returned when no caller identity can be resolved
	// from the request context.
	ErrMissingIdentity = errors.New("caller identity is missing")

	// ErrInvalidArgument is returned when required wire fields are missing or
	// malformed. Caller bug; not retried.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrInvalidChallenge is returned when no pending challenge exists for the
	// caller, or the pending challenge does not match the ceremony. The caller
	// must restart from the request phase.
	ErrInvalidChallenge = errors.New("invalid challenge")

	// ErrUnknownCredential is returned when the presented credential id is not
	// registered.
	ErrUnknownCredential = errors.New("unknown credential")

	// ErrNoCredentials is returned when the caller has no registered
	// credentials to sign in with.
	ErrNoCredentials = errors.New("no registered credentials")

	// ErrAttestationFailed is returned when registration proof verification is
	// rejected. Never retried with the same proof.
	ErrAttestationFailed = errors.New("attestation verification failed")

	// ErrAssertionFailed is returned when sign-in proof verification is
	// rejected, including signature counter regressions.
	ErrAssertionFailed = errors.New("assertion verification failed")

	// ErrCredentialExists is returned when registering a credential id that is
	// already present. Integrity violation; logged as an anomaly, not retried.
	ErrCredentialExists = errors.New("credential already exists")

	// ErrInternal is returned for unexpected failures in a dependency. Full
	// detail is logged server-side; the caller sees only this opaque message.
	ErrInternal = errors.New("internal error")

	// ErrNotConfigured is returned when the service is not properly configured.
	ErrNotConfigured = errors.New("passkey service not configured")
)

// PasskeyError wraps an error with the operation that produced it.
type PasskeyError struct {
	Op  string // Operation that failed
	Err error  // Underlying error
}

// Error returns the error message.
func (e *PasskeyError) Error() string {
	if e.Op != "" {
		return fmt.Sprintf("%s: %v", e.Op, e.Err)
	}
	return e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *PasskeyError) Unwrap() error {
	return e.Err
}

// Is reports whether the target error matches.
func (e *PasskeyError) Is(target error) bool {
	return errors.Is(e.Err, target)
}

// NewError creates a new PasskeyError with the given operation and error.
func NewError(op string, err error) error {
	return &PasskeyError{
		Op:  op,
		Err: err,
	}
}

// WrapError wraps an error with an operation name if it's not nil.
func WrapError(op string, err error) error {
	if err == nil {
		return nil
	}
	return NewError(op, err)
}

// IsProtocolError reports whether err is one of the typed, caller-visible
// failure kinds. Everything else must be converted to ErrInternal before
// crossing the trust boundary.
func IsProtocolError(err error) bool {
	for _, kind := range []error{
		ErrMissingIdentity,
		ErrInvalidArgument,
		ErrInvalidChallenge,
		ErrUnknownCredential,
		ErrNoCredentials,
		ErrAttestationFailed,
		ErrAssertionFailed,
		ErrCredentialExists,
	} {
		if errors.Is(err, kind) {
			return true
		}
	}
	return false
}

// IsInvalidChallenge returns true if the error indicates a missing or stale challenge.
func IsInvalidChallenge(err error) bool {
	return errors.Is(err, ErrInvalidChallenge)
}

// IsVerificationFailed returns true if the error indicates rejected proof for
// either ceremony.
func IsVerificationFailed(err error) bool {
	return errors.Is(err, ErrAttestationFailed) || errors.Is(err, ErrAssertionFailed)
}
