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
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jeremyhahn/go-passkey/pkg/codec"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
)

// ChallengeStore persists the single pending challenge per caller identity in
// the external document store.
//
// Issue is an unconditional overwrite: a second request before the first
// verify invalidates the in-flight ceremony (last challenge wins). Consume
// does not delete; verifiers delete explicitly in guaranteed cleanup so the
// nonce is invalidated exactly once regardless of verification outcome.
type ChallengeStore struct {
	backend       storage.Backend
	challengeSize int
	ttl           time.Duration
	now           func() time.Time
}

// NewChallengeStore creates a challenge store over the given document store.
func NewChallengeStore(backend storage.Backend, cfg *Config) *ChallengeStore {
	size := cfg.ChallengeSize
	if size == 0 {
		size = DefaultChallengeSize
	}
	ttl := cfg.ChallengeTTL
	if ttl == 0 {
		ttl = DefaultChallengeTTL
	}
	return &ChallengeStore{
		backend:       backend,
		challengeSize: size,
		ttl:           ttl,
		now:           time.Now,
	}
}

func challengeKey(identity string) string {
	return "challenges/" + identity
}

// Issue generates a fresh random nonce, persists the pending challenge record
// for the identity (overwriting any prior record) and returns the
// urlsafe-base64 encoded challenge string.
func (s *ChallengeStore) Issue(ctx context.Context, identity string, typ ChallengeType) (string, error) {
	nonce := make([]byte, s.challengeSize)
	if _, err := rand.Read(nonce); err != nil {
		return "", WrapError("generate challenge nonce", err)
	}

	encoded, err := codec.Encode(nonce, codec.URLSafe)
	if err != nil {
		return "", WrapError("encode challenge", err)
	}

	record := Challenge{
		Type:      typ,
		Challenge: encoded,
		CreatedAt: s.now().UTC(),
	}
	doc, err := json.Marshal(record)
	if err != nil {
		return "", WrapError("marshal challenge", err)
	}

	if err := s.backend.Put(challengeKey(identity), doc, nil); err != nil {
		return "", WrapError("persist challenge", err)
	}

	return encoded, nil
}

// Consume reads the pending challenge for the identity. The record is NOT
// deleted; the caller must invoke Delete once verification has run. A missing
// record or one older than the configured TTL fails with ErrInvalidChallenge.
func (s *ChallengeStore) Consume(ctx context.Context, identity string) (*Challenge, error) {
	doc, err := s.backend.Get(challengeKey(identity))
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrInvalidChallenge
		}
		return nil, WrapError("read challenge", err)
	}

	var record Challenge
	if err := json.Unmarshal(doc, &record); err != nil {
		return nil, WrapError("unmarshal challenge", err)
	}

	if s.ttl > 0 && s.now().UTC().Sub(record.CreatedAt) > s.ttl {
		return nil, fmt.Errorf("challenge expired: %w", ErrInvalidChallenge)
	}

	return &record, nil
}

// Delete removes the pending challenge for the identity. Deleting an already
// absent record is not an error; the nonce must end up invalidated either way.
func (s *ChallengeStore) Delete(ctx context.Context, identity string) error {
	err := s.backend.Delete(challengeKey(identity))
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return WrapError("delete challenge", err)
	}
	return nil
}
