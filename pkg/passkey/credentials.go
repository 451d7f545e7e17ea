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
	"errors"
	"sort"
	"strings"

	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

const (
	accountsPrefix  = "accounts/"
	credentialsPart = "/credentials/"
)

// CredentialStore persists registered credentials in the external document
// store, one document per credential under the owning caller identity:
//
//	accounts/{identity}/credentials/{credentialId}
//
// Credentials are created exactly once and never deleted by this store; the
// only mutation after creation is the signature counter update.
type CredentialStore struct {
	backend storage.Backend
}

// NewCredentialStore creates a credential store over the given document store.
func NewCredentialStore(backend storage.Backend) *CredentialStore {
	return &CredentialStore{backend: backend}
}

func credentialKey(identity, credID string) string {
	return accountsPrefix + identity + credentialsPart + credID
}

// ListByIdentity returns all credentials registered for the identity, in
// store order. An identity with no credentials yields an empty slice.
func (s *CredentialStore) ListByIdentity(ctx context.Context, identity string) ([]*Credential, error) {
	keys, err := s.backend.List(accountsPrefix + identity + credentialsPart)
	if err != nil {
		return nil, WrapError("list credentials", err)
	}
	sort.Strings(keys)

	creds := make([]*Credential, 0, len(keys))
	for _, key := range keys {
		cred, err := s.read(key)
		if err != nil {
			return nil, err
		}
		creds = append(creds, cred)
	}
	return creds, nil
}

// FindByCredentialID looks up a credential by id across ALL identities.
// Credential ids are authenticator-generated and effectively collision-free,
// so the id alone selects the record. Returns ErrUnknownCredential when no
// identity has the credential.
func (s *CredentialStore) FindByCredentialID(ctx context.Context, credID string) (*Credential, error) {
	keys, err := s.backend.List(accountsPrefix)
	if err != nil {
		return nil, WrapError("scan credentials", err)
	}

	suffix := credentialsPart + credID
	for _, key := range keys {
		if strings.HasSuffix(key, suffix) {
			return s.read(key)
		}
	}
	return nil, ErrUnknownCredential
}

// CreateUnique persists a new credential document. The write is atomic
// create-if-absent: an existing document with the same credential id is never
// overwritten and surfaces ErrCredentialExists.
func (s *CredentialStore) CreateUnique(ctx context.Context, identity string, cred *Credential) error {
	doc, err := json.Marshal(cred)
	if err != nil {
		return WrapError("marshal credential", err)
	}

	err = s.backend.Create(credentialKey(identity, cred.CredentialID), doc, nil)
	if err != nil {
		if errors.Is(err, storage.ErrAlreadyExists) {
			return ErrCredentialExists
		}
		return WrapError("create credential", err)
	}
	return nil
}

// UpdateCounter replaces the credential document with the new signature
// counter value. Full-document replace, last writer wins; updates are
// sequenced behind the per-identity challenge protocol so they do not race
// within one identity.
func (s *CredentialStore) UpdateCounter(ctx context.Context, cred *Credential, newCounter uint32) error {
	cred.Counter = newCounter

	doc, err := json.Marshal(cred)
	if err != nil {
		return WrapError("marshal credential", err)
	}

	if err := s.backend.Put(credentialKey(cred.Identity, cred.CredentialID), doc, nil); err != nil {
		return WrapError("update credential counter", err)
	}
	return nil
}

func (s *CredentialStore) read(key string) (*Credential, error) {
	doc, err := s.backend.Get(key)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrUnknownCredential
		}
		return nil, WrapError("read credential", err)
	}

	var cred Credential
	if err := json.Unmarshal(doc, &cred); err != nil {
		return nil, WrapError("unmarshal credential", err)
	}
	return &cred, nil
}
