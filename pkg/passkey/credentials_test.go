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

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

func testCredential(identity, credID, owner string) *Credential {
	return &Credential{
		Identity:     identity,
		Owner:        owner,
		CredentialID: credID,
		PublicKey:    []byte{0x01, 0x02, 0x03},
		AAGUID:       make([]byte, 16),
		Counter:      0,
		Transports:   []string{"internal"},
		CreatedAt:    time.Now().UTC(),
	}
}

func TestCredentialStore_CreateAndList(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	require.NoError(t, store.CreateUnique(ctx, "device-1", testCredential("device-1", "cred-a", "user-1")))
	require.NoError(t, store.CreateUnique(ctx, "device-1", testCredential("device-1", "cred-b", "user-1")))
	require.NoError(t, store.CreateUnique(ctx, "device-2", testCredential("device-2", "cred-c", "user-2")))

	creds, err := store.ListByIdentity(ctx, "device-1")
	require.NoError(t, err)
	require.Len(t, creds, 2)
	assert.Equal(t, "cred-a", creds[0].CredentialID)
	assert.Equal(t, "cred-b", creds[1].CredentialID)
}

func TestCredentialStore_ListEmpty(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	creds, err := store.ListByIdentity(ctx, "device-1")
	require.NoError(t, err)
	assert.Empty(t, creds)
}

func TestCredentialStore_CreateUniqueNeverOverwrites(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	original := testCredential("device-1", "cred-a", "user-1")
	require.NoError(t, store.CreateUnique(ctx, "device-1", original))

	// Registering the same credential id again must not replace the record
	dupe := testCredential("device-1", "cred-a", "intruder")
	err := store.CreateUnique(ctx, "device-1", dupe)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCredentialExists)

	cred, err := store.FindByCredentialID(ctx, "cred-a")
	require.NoError(t, err)
	assert.Equal(t, "user-1", cred.Owner)
}

func TestCredentialStore_FindByCredentialID(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	require.NoError(t, store.CreateUnique(ctx, "device-1", testCredential("device-1", "cred-a", "user-1")))
	require.NoError(t, store.CreateUnique(ctx, "device-2", testCredential("device-2", "cred-b", "user-2")))

	// The lookup crosses identity partitions
	cred, err := store.FindByCredentialID(ctx, "cred-b")
	require.NoError(t, err)
	assert.Equal(t, "device-2", cred.Identity)
	assert.Equal(t, "user-2", cred.Owner)
}

func TestCredentialStore_FindUnknown(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	_, err := store.FindByCredentialID(ctx, "cred-x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnknownCredential)
}

func TestCredentialStore_UpdateCounter(t *testing.T) {
	ctx := context.Background()
	store := NewCredentialStore(storage.New())

	cred := testCredential("device-1", "cred-a", "user-1")
	require.NoError(t, store.CreateUnique(ctx, "device-1", cred))

	require.NoError(t, store.UpdateCounter(ctx, cred, 42))

	stored, err := store.FindByCredentialID(ctx, "cred-a")
	require.NoError(t, err)
	assert.Equal(t, uint32(42), stored.Counter)

	// The rest of the record is untouched
	assert.Equal(t, cred.PublicKey, stored.PublicKey)
	assert.Equal(t, cred.Owner, stored.Owner)
}
