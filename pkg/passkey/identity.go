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
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// Identity is the stable caller identity derived from an installation token.
// It partitions both the challenge and credential stores.
type Identity struct {
	// ID is the stable identifier. Its raw bytes are the expected userHandle
	// during assertion verification.
	ID string
}

// Bytes returns the identity's raw bytes for userHandle binding.
func (i Identity) Bytes() []byte {
	return []byte(i.ID)
}

// IdentityResolver maps an opaque installation token to a stable caller
// identity. External lookup boundary; implementations must not cache across
// process restarts on behalf of the verifiers.
type IdentityResolver interface {
	// Resolve derives the caller identity for the installation token.
	// Returns ErrMissingIdentity when the token is empty.
	Resolve(ctx context.Context, instanceToken string) (Identity, error)
}

// TokenResolver derives a stable identity locally from the installation token
// with HKDF, requiring no network round trip. The identity is deterministic
// for the lifetime of the installation.
type TokenResolver struct {
	secret []byte
}

// NewTokenResolver creates a resolver keyed with the given secret. The secret
// only namespaces derived identities; it is not a credential.
func NewTokenResolver(secret []byte) *TokenResolver {
	return &TokenResolver{secret: secret}
}

// Resolve derives the caller identity for the installation token.
func (r *TokenResolver) Resolve(ctx context.Context, instanceToken string) (Identity, error) {
	if instanceToken == "" {
		return Identity{}, ErrMissingIdentity
	}

	kdf := hkdf.New(sha256.New, []byte(instanceToken), r.secret, []byte("caller-identity"))
	id := make([]byte, 16)
	if _, err := io.ReadFull(kdf, id); err != nil {
		return Identity{}, WrapError("derive identity", err)
	}

	return Identity{ID: hex.EncodeToString(id)}, nil
}

// IIDResolver resolves installation tokens through the instance-id info
// endpoint of the push-messaging service the mobile client registered with.
// The stable identity is the token segment before the first ':'; the lookup
// validates the token is known to the service.
type IIDResolver struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// NewIIDResolver creates a resolver against the given instance-id info
// endpoint (e.g. "https://iid.googleapis.com/iid/info").
func NewIIDResolver(endpoint, apiKey string, client *http.Client) *IIDResolver {
	if client == nil {
		client = http.DefaultClient
	}
	return &IIDResolver{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		client:   client,
	}
}

// Resolve validates the token against the info endpoint and returns the
// stable identity segment.
func (r *IIDResolver) Resolve(ctx context.Context, instanceToken string) (Identity, error) {
	if instanceToken == "" {
		return Identity{}, ErrMissingIdentity
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		fmt.Sprintf("%s/%s?details=true", r.endpoint, instanceToken), nil)
	if err != nil {
		return Identity{}, WrapError("build instance info request", err)
	}
	req.Header.Set("Authorization", "key="+r.apiKey)

	resp, err := r.client.Do(req)
	if err != nil {
		return Identity{}, WrapError("instance info lookup", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return Identity{}, NewError("instance info lookup",
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var info struct {
		Application string `json:"application"`
		Platform    string `json:"platform"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return Identity{}, WrapError("decode instance info", err)
	}

	id, _, _ := strings.Cut(instanceToken, ":")
	return Identity{ID: id}, nil
}
