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
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

// AccountProvider supplies the account identity a new credential is bound to.
// Registration from an already authenticated caller binds the existing
// account; anonymous registration provisions a fresh account first.
type AccountProvider interface {
	// EnsureAccount returns the account id to bind a new credential to. When
	// authenticatedUID is non-empty that account is reused, otherwise a new
	// anonymous account is provisioned.
	EnsureAccount(ctx context.Context, authenticatedUID string) (string, error)
}

// accountRecord is the persisted shape of a provisioned account.
type accountRecord struct {
	UID       string    `json:"uid"`
	Anonymous bool      `json:"anonymous"`
	CreatedAt time.Time `json:"created_at"`
}

// StoreAccountProvider provisions anonymous accounts in the document store,
// one document per account under users/{uid}.
type StoreAccountProvider struct {
	backend storage.Backend
	now     func() time.Time
}

// NewStoreAccountProvider creates an account provider over the given store.
func NewStoreAccountProvider(backend storage.Backend) *StoreAccountProvider {
	return &StoreAccountProvider{backend: backend, now: time.Now}
}

func accountKey(uid string) string {
	return "users/" + uid
}

// EnsureAccount returns the authenticated account unchanged, or provisions a
// new anonymous one. Anonymous ids are random UUIDs so concurrent bootstraps
// never collide.
func (p *StoreAccountProvider) EnsureAccount(ctx context.Context, authenticatedUID string) (string, error) {
	if authenticatedUID != "" {
		return authenticatedUID, nil
	}

	uid := uuid.NewString()
	doc, err := json.Marshal(accountRecord{
		UID:       uid,
		Anonymous: true,
		CreatedAt: p.now().UTC(),
	})
	if err != nil {
		return "", WrapError("marshal account", err)
	}

	if err := p.backend.Create(accountKey(uid), doc, nil); err != nil {
		return "", WrapError("provision account", err)
	}
	return uid, nil
}
