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

package correlation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWithCorrelationID(t *testing.T) {
	ctx := WithCorrelationID(context.Background(), "ceremony-req-1")
	assert.Equal(t, "ceremony-req-1", GetCorrelationID(ctx))

	// A nil parent is tolerated; the REST middleware never passes one, but
	// service helpers called outside a request might
	ctx = WithCorrelationID(nil, "ceremony-req-2") //nolint:staticcheck
	require.NotNil(t, ctx)
	assert.Equal(t, "ceremony-req-2", GetCorrelationID(ctx))
}

func TestGetCorrelationID_Absent(t *testing.T) {
	assert.Empty(t, GetCorrelationID(context.Background()))
	assert.Empty(t, GetCorrelationID(nil)) //nolint:staticcheck
}

func TestNewID(t *testing.T) {
	first := NewID()
	second := NewID()

	_, err := uuid.Parse(first)
	require.NoError(t, err)
	assert.NotEqual(t, first, second)
}

func TestGetOrGenerate(t *testing.T) {
	// An id set by the middleware is reused so the request and response
	// phases of a ceremony share one id in the logs
	ctx := WithCorrelationID(context.Background(), "attestation-abc")
	assert.Equal(t, "attestation-abc", GetOrGenerate(ctx))

	// Without one a fresh UUID is minted
	generated := GetOrGenerate(context.Background())
	_, err := uuid.Parse(generated)
	require.NoError(t, err)
}

func TestCorrelationIDSurvivesDerivedContexts(t *testing.T) {
	// The id set at the top of the middleware chain must still be visible
	// after timeouts and values are layered on for the ceremony handlers
	ctx := WithCorrelationID(context.Background(), "assertion-xyz")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	type otherKey struct{}
	ctx = context.WithValue(ctx, otherKey{}, "unrelated")

	assert.Equal(t, "assertion-xyz", GetCorrelationID(ctx))
}

func TestContextKeyIsolation(t *testing.T) {
	// A plain string key with the same spelling must not collide with the
	// typed key this package uses
	ctx := context.WithValue(context.Background(), "correlation-id", "wrong") //nolint:staticcheck
	ctx = WithCorrelationID(ctx, "right")

	assert.Equal(t, "right", GetCorrelationID(ctx))
}

func TestHeaderNames(t *testing.T) {
	// The header names are part of the wire contract with clients and
	// proxies; changing them breaks request tracing
	assert.Equal(t, "X-Request-ID", RequestIDHeader)
	assert.Equal(t, "X-Correlation-ID", CorrelationIDHeader)
}
