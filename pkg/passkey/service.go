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
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/go-webauthn/webauthn/webauthn"

	"github.com/jeremyhahn/go-passkey/pkg/codec"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
)

// Service implements the four passkey ceremony operations: challenge issuance
// and proof verification for both registration and sign-in. Each verify
// operation consumes the caller's pending challenge exactly once, whatever the
// verification outcome.
type Service struct {
	config     *Config
	challenges *ChallengeStore
	creds      *CredentialStore
	accounts   AccountProvider
	resolver   IdentityResolver
	minter     TokenMinter
	logger     *logging.Logger
	configured bool
}

// ServiceParams contains dependencies for creating a passkey service.
type ServiceParams struct {
	// Config is the passkey configuration (required).
	Config *Config

	// ChallengeStore is the pending challenge persistence layer (required).
	ChallengeStore *ChallengeStore

	// CredentialStore is the credential persistence layer (required).
	CredentialStore *CredentialStore

	// AccountProvider supplies the account a new credential binds to (required).
	AccountProvider AccountProvider

	// IdentityResolver maps installation tokens to caller identities (required).
	IdentityResolver IdentityResolver

	// TokenMinter mints session tokens after verified ceremonies (required).
	TokenMinter TokenMinter

	// Logger receives server-side detail for errors the caller only sees as
	// ErrInternal. Optional; defaults to the package default logger.
	Logger *logging.Logger
}

// NewService creates a new passkey service with the provided dependencies.
func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, fmt.Errorf("config is required")
	}
	if params.ChallengeStore == nil {
		return nil, fmt.Errorf("challenge store is required")
	}
	if params.CredentialStore == nil {
		return nil, fmt.Errorf("credential store is required")
	}
	if params.AccountProvider == nil {
		return nil, fmt.Errorf("account provider is required")
	}
	if params.IdentityResolver == nil {
		return nil, fmt.Errorf("identity resolver is required")
	}
	if params.TokenMinter == nil {
		return nil, fmt.Errorf("token minter is required")
	}

	params.Config.SetDefaults()
	if err := params.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	logger := params.Logger
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	return &Service{
		config:     params.Config,
		challenges: params.ChallengeStore,
		creds:      params.CredentialStore,
		accounts:   params.AccountProvider,
		resolver:   params.IdentityResolver,
		minter:     params.TokenMinter,
		logger:     logger,
		configured: true,
	}, nil
}

// RegisterRequest issues a registration challenge for the caller. A prior
// pending challenge, if any, is overwritten.
func (s *Service) RegisterRequest(ctx context.Context, caller CallerContext) (*RegisterChallenge, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	identity, err := s.resolver.Resolve(ctx, caller.InstanceToken)
	if err != nil {
		return nil, s.classify("registerRequest", err)
	}

	challenge, err := s.challenges.Issue(ctx, identity.ID, ChallengeRegistration)
	if err != nil {
		return nil, s.classify("registerRequest", err)
	}

	return &RegisterChallenge{Challenge: challenge}, nil
}

// RegisterResponse verifies a registration proof against the caller's pending
// registration challenge. On success the credential is persisted under the
// caller identity, bound to the caller's account (provisioned anonymously when
// the call is unauthenticated), and a session token is minted. The pending
// challenge is invalidated regardless of outcome.
func (s *Service) RegisterResponse(ctx context.Context, caller CallerContext, req *RegisterResponseRequest) (result *RegisterResult, err error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	identity, err := s.resolver.Resolve(ctx, caller.InstanceToken)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	if err = req.validate(); err != nil {
		return nil, s.classify("registerResponse", err)
	}

	challenge, err := s.challenges.Consume(ctx, identity.ID)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	// From here on the nonce is spent: the challenge is deleted whether or
	// not verification succeeds, so a failed proof cannot be retried.
	defer func() {
		if delErr := s.challenges.Delete(ctx, identity.ID); delErr != nil {
			s.logger.Errorf("delete challenge for %s: %v", identity.ID, delErr)
			if err == nil {
				result, err = nil, s.classify("registerResponse", delErr)
			}
		}
	}()

	if challenge.Type != ChallengeRegistration {
		return nil, NewError("registerResponse", ErrInvalidChallenge)
	}

	parsed, err := parseAttestation(req)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	wa, session, err := s.ceremony(identity, challenge.Challenge, req.APKSigSha256, nil)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	user := &ceremonyUser{id: identity.Bytes(), name: identity.ID}
	waCred, err := wa.CreateCredential(user, *session, parsed)
	if err != nil {
		s.logger.Debugf("attestation rejected for %s: %v", identity.ID, err)
		return nil, NewError("registerResponse", ErrAttestationFailed)
	}

	uid, err := s.accounts.EnsureAccount(ctx, caller.AuthenticatedUID)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	credID, err := codec.Encode(waCred.ID, codec.URLSafe)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	attObj, err := codec.Decode(req.AttestationObject, codec.URLSafe)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	cred := &Credential{
		Identity:     identity.ID,
		Owner:        uid,
		CredentialID: credID,
		PublicKey:    waCred.PublicKey,
		AAGUID:       waCred.Authenticator.AAGUID,
		Counter:      waCred.Authenticator.SignCount,
		Transports:   guessTransports(attObj),
		CreatedAt:    time.Now().UTC(),
	}
	if err = s.creds.CreateUnique(ctx, identity.ID, cred); err != nil {
		s.logger.Errorf("credential %s already registered for %s", credID, identity.ID)
		return nil, s.classify("registerResponse", err)
	}

	token, err := s.minter.MintToken(ctx, uid)
	if err != nil {
		return nil, s.classify("registerResponse", err)
	}

	return &RegisterResult{Token: token, CredentialID: credID}, nil
}

// SignInRequest issues an authentication challenge for the caller along with
// the list of credentials the caller may assert with. Callers with no
// registered credentials fail with ErrNoCredentials and no challenge is
// issued.
func (s *Service) SignInRequest(ctx context.Context, caller CallerContext) (*SignInChallenge, error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	identity, err := s.resolver.Resolve(ctx, caller.InstanceToken)
	if err != nil {
		return nil, s.classify("signInRequest", err)
	}

	creds, err := s.creds.ListByIdentity(ctx, identity.ID)
	if err != nil {
		return nil, s.classify("signInRequest", err)
	}
	if len(creds) == 0 {
		return nil, NewError("signInRequest", ErrNoCredentials)
	}

	challenge, err := s.challenges.Issue(ctx, identity.ID, ChallengeAuthentication)
	if err != nil {
		return nil, s.classify("signInRequest", err)
	}

	allow := make([]AllowCredential, len(creds))
	for i, cred := range creds {
		allow[i] = AllowCredential{
			CredID:     cred.CredentialID,
			Type:       "public-key",
			Transports: cred.Transports,
		}
	}

	return &SignInChallenge{Challenge: challenge, AllowCredentials: allow}, nil
}

// SignInResponse verifies a sign-in assertion against the caller's pending
// authentication challenge. On success the credential's signature counter is
// advanced and a session token is minted for the credential's owning account.
// The pending challenge is invalidated regardless of outcome.
func (s *Service) SignInResponse(ctx context.Context, caller CallerContext, req *SignInResponseRequest) (result *SignInResult, err error) {
	if !s.configured {
		return nil, ErrNotConfigured
	}

	identity, err := s.resolver.Resolve(ctx, caller.InstanceToken)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	if err = req.validate(); err != nil {
		return nil, s.classify("signInResponse", err)
	}

	challenge, err := s.challenges.Consume(ctx, identity.ID)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	defer func() {
		if delErr := s.challenges.Delete(ctx, identity.ID); delErr != nil {
			s.logger.Errorf("delete challenge for %s: %v", identity.ID, delErr)
			if err == nil {
				result, err = nil, s.classify("signInResponse", delErr)
			}
		}
	}()

	if challenge.Type != ChallengeAuthentication {
		return nil, NewError("signInResponse", ErrInvalidChallenge)
	}

	credID, err := normalizeURLSafe(req.RawID)
	if err != nil {
		return nil, NewError("signInResponse", ErrInvalidArgument)
	}

	cred, err := s.creds.FindByCredentialID(ctx, credID)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	waCred, err := cred.toWebAuthn()
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	parsed, err := parseAssertion(req)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	wa, session, err := s.ceremony(identity, challenge.Challenge, req.APKSigSha256, nil)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	user := &ceremonyUser{
		id:          identity.Bytes(),
		name:        identity.ID,
		credentials: []webauthn.Credential{waCred},
	}
	validated, err := wa.ValidateLogin(user, *session, parsed)
	if err != nil {
		s.logger.Debugf("assertion rejected for %s: %v", identity.ID, err)
		return nil, NewError("signInResponse", ErrAssertionFailed)
	}

	// The library flags a counter that failed to advance; a cloned
	// authenticator replaying an old counter is treated as a failed proof.
	if validated.Authenticator.CloneWarning {
		s.logger.Errorf("possible cloned authenticator for credential %s", credID)
		return nil, NewError("signInResponse", ErrAssertionFailed)
	}

	if err = s.creds.UpdateCounter(ctx, cred, validated.Authenticator.SignCount); err != nil {
		return nil, s.classify("signInResponse", err)
	}

	token, err := s.minter.MintToken(ctx, cred.Owner)
	if err != nil {
		return nil, s.classify("signInResponse", err)
	}

	return &SignInResult{Token: token}, nil
}

// ceremony builds a single-use WebAuthn instance bound to the request's
// expected origin, plus the session data reconstructed from the stored
// challenge. A fresh instance per verification is required because native app
// callers present per-app origins.
func (s *Service) ceremony(identity Identity, challenge, apkSigSha256 string, allowedIDs [][]byte) (*webauthn.WebAuthn, *webauthn.SessionData, error) {
	origin := s.config.ExpectedOrigin(apkSigSha256)

	wa, err := webauthn.New(s.config.toWebAuthnConfig(origin))
	if err != nil {
		return nil, nil, WrapError("create webauthn instance", err)
	}

	session := &webauthn.SessionData{
		Challenge:            challenge,
		UserID:               identity.Bytes(),
		AllowedCredentialIDs: allowedIDs,
		Expires:              time.Now().Add(s.config.ChallengeTTL),
		UserVerification:     protocol.VerificationPreferred,
		CredParams:           s.config.credentialParameters(),
	}
	return wa, session, nil
}

// classify passes the typed protocol errors through unchanged and converts
// everything else to an opaque ErrInternal after logging the full detail.
func (s *Service) classify(op string, err error) error {
	if IsProtocolError(err) {
		return WrapError(op, err)
	}
	s.logger.Errorf("%s: %v", op, err)
	return NewError(op, ErrInternal)
}

// parseAttestation converts the wire fields of a registration response into
// the library's parsed attestation type.
func parseAttestation(req *RegisterResponseRequest) (*protocol.ParsedCredentialCreationData, error) {
	rawID, err := codec.Decode(req.RawID, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode rawId", ErrInvalidArgument)
	}
	clientData, err := codec.Decode(req.ClientDataJSON, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode clientDataJSON", ErrInvalidArgument)
	}
	attObj, err := codec.Decode(req.AttestationObject, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode attestationObject", ErrInvalidArgument)
	}

	id, err := codec.Encode(rawID, codec.URLSafe)
	if err != nil {
		return nil, WrapError("encode rawId", err)
	}

	ccr := protocol.CredentialCreationResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{
				ID:   id,
				Type: "public-key",
			},
			RawID: rawID,
		},
		AttestationResponse: protocol.AuthenticatorAttestationResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData,
			},
			AttestationObject: attObj,
		},
	}

	parsed, err := ccr.Parse()
	if err != nil {
		return nil, NewError("parse attestation response", ErrAttestationFailed)
	}
	return parsed, nil
}

// parseAssertion converts the wire fields of a sign-in response into the
// library's parsed assertion type.
func parseAssertion(req *SignInResponseRequest) (*protocol.ParsedCredentialAssertionData, error) {
	rawID, err := codec.Decode(req.RawID, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode rawId", ErrInvalidArgument)
	}
	clientData, err := codec.Decode(req.ClientDataJSON, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode clientDataJSON", ErrInvalidArgument)
	}
	authData, err := codec.Decode(req.AuthenticatorData, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode authenticatorData", ErrInvalidArgument)
	}
	signature, err := codec.Decode(req.Signature, codec.URLSafe)
	if err != nil {
		return nil, NewError("decode signature", ErrInvalidArgument)
	}

	var userHandle []byte
	if req.UserHandle != "" {
		if userHandle, err = codec.Decode(req.UserHandle, codec.URLSafe); err != nil {
			return nil, NewError("decode userHandle", ErrInvalidArgument)
		}
	}

	id, err := codec.Encode(rawID, codec.URLSafe)
	if err != nil {
		return nil, WrapError("encode rawId", err)
	}

	car := protocol.CredentialAssertionResponse{
		PublicKeyCredential: protocol.PublicKeyCredential{
			Credential: protocol.Credential{
				ID:   id,
				Type: "public-key",
			},
			RawID: rawID,
		},
		AssertionResponse: protocol.AuthenticatorAssertionResponse{
			AuthenticatorResponse: protocol.AuthenticatorResponse{
				ClientDataJSON: clientData,
			},
			AuthenticatorData: authData,
			Signature:         signature,
			UserHandle:        userHandle,
		},
	}

	parsed, err := car.Parse()
	if err != nil {
		return nil, NewError("parse assertion response", ErrAssertionFailed)
	}
	return parsed, nil
}

// normalizeURLSafe re-encodes a wire base64 string into the canonical
// unpadded base64url form used as the credential store key.
func normalizeURLSafe(s string) (string, error) {
	raw, err := codec.Decode(s, codec.URLSafe)
	if err != nil {
		return "", err
	}
	return codec.Encode(raw, codec.URLSafe)
}

// ceremonyUser adapts a caller identity to the library's user interface. The
// relying party has no user names; the identity doubles as both.
type ceremonyUser struct {
	id          []byte
	name        string
	credentials []webauthn.Credential
}

func (u *ceremonyUser) WebAuthnID() []byte                         { return u.id }
func (u *ceremonyUser) WebAuthnName() string                       { return u.name }
func (u *ceremonyUser) WebAuthnDisplayName() string                { return u.name }
func (u *ceremonyUser) WebAuthnCredentials() []webauthn.Credential { return u.credentials }
