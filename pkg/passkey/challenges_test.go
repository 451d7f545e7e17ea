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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jeremyhahn/go-passkey/pkg/codec"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

func newChallengeStore(t *testing.T) *ChallengeStore {
	t.Helper()
	cfg := &Config{RPID: "example.com", RPDisplayName: "Example Corp"}
	cfg.SetDefaults()
	return NewChallengeStore(storage.New(), cfg)
}

func TestChallengeStore_IssueAndConsume(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	challenge, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)
	require.NotEmpty(t, challenge)

	// The challenge string decodes to the configured nonce size
	nonce, err := codec.Decode(challenge, codec.URLSafe)
	require.NoError(t, err)
	assert.Len(t, nonce, DefaultChallengeSize)

	record, err := store.Consume(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, ChallengeRegistration, record.Type)
	assert.Equal(t, challenge, record.Challenge)

	// Consume does not delete; a second read still succeeds
	record, err = store.Consume(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, challenge, record.Challenge)
}

func TestChallengeStore_ConsumeMissing(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	_, err := store.Consume(ctx, "device-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestChallengeStore_Overwrite(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	first, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)

	second, err := store.Issue(ctx, "device-1", ChallengeAuthentication)
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// Only the most recent challenge survives
	record, err := store.Consume(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, second, record.Challenge)
	assert.Equal(t, ChallengeAuthentication, record.Type)
}

func TestChallengeStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	_, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)

	// Advance the clock past the TTL
	store.now = func() time.Time {
		return time.Now().Add(DefaultChallengeTTL + time.Minute)
	}

	_, err = store.Consume(ctx, "device-1")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestChallengeStore_WithinTTL(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	challenge, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)

	store.now = func() time.Time {
		return time.Now().Add(DefaultChallengeTTL - time.Minute)
	}

	record, err := store.Consume(ctx, "device-1")
	require.NoError(t, err)
	assert.Equal(t, challenge, record.Challenge)
}

func TestChallengeStore_Delete(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	_, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, "device-1"))

	_, err = store.Consume(ctx, "device-1")
	assert.ErrorIs(t, err, ErrInvalidChallenge)

	// Deleting an absent record is not an error
	require.NoError(t, store.Delete(ctx, "device-1"))
}

func TestChallengeStore_PerIdentityIsolation(t *testing.T) {
	ctx := context.Background()
	store := newChallengeStore(t)

	one, err := store.Issue(ctx, "device-1", ChallengeRegistration)
	require.NoError(t, err)
	two, err := store.Issue(ctx, "device-2", ChallengeRegistration)
	require.NoError(t, err)
	require.NotEqual(t, one, two)

	require.NoError(t, store.Delete(ctx, "device-1"))

	record, err := store.Consume(ctx, "device-2")
	require.NoError(t, err)
	assert.Equal(t, two, record.Challenge)
}
