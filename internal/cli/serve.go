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

package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jeremyhahn/go-passkey/internal/config"
	"github.com/jeremyhahn/go-passkey/internal/rest"
	"github.com/jeremyhahn/go-passkey/pkg/health"
	"github.com/jeremyhahn/go-passkey/pkg/logging"
	"github.com/jeremyhahn/go-passkey/pkg/metrics"
	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
	"github.com/jeremyhahn/go-passkey/pkg/storage"
	"github.com/jeremyhahn/go-passkey/pkg/storage/file"
)

// shutdownTimeout bounds how long in-flight ceremonies may finish after a
// termination signal.
const shutdownTimeout = 30 * time.Second

// serveCmd runs the passkey server until interrupted
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the passkey server",
	Long: `Run the passkey REST server. The server issues WebAuthn challenges,
verifies attestations and assertions, and mints session tokens.

Configuration is read from the file given with --config (or the
PASSKEY_CONFIG environment variable), with secrets preferred from the
environment.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := getConfig().LoadServerConfig()
		if err != nil {
			return fmt.Errorf("failed to load configuration: %w", err)
		}
		return runServer(cfg)
	},
}

// runServer wires the storage, identity, minting and transport layers
// together and blocks until shutdown.
func runServer(cfg *config.Config) error {
	logger := newLogger(cfg)

	backend, err := newStorageBackend(cfg)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	defer func() { logger.MaybeError(backend.Close()) }()

	resolver, err := newIdentityResolver(cfg)
	if err != nil {
		return err
	}

	minter, err := newTokenMinter(cfg)
	if err != nil {
		return err
	}

	service, err := passkey.NewService(passkey.ServiceParams{
		Config:           &cfg.RelyingParty,
		ChallengeStore:   passkey.NewChallengeStore(backend, &cfg.RelyingParty),
		CredentialStore:  passkey.NewCredentialStore(backend),
		AccountProvider:  passkey.NewStoreAccountProvider(backend),
		IdentityResolver: resolver,
		TokenMinter:      minter,
		Logger:           logger,
	})
	if err != nil {
		return fmt.Errorf("failed to create ceremony service: %w", err)
	}

	tlsCfg, err := cfg.TLS.LoadTLSConfig()
	if err != nil {
		return fmt.Errorf("failed to load TLS configuration: %w", err)
	}

	var limiter *ratelimit.Limiter
	if cfg.RateLimit.Enabled {
		limiter = ratelimit.New(&cfg.RateLimit)
		defer limiter.Stop()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.Metrics.Enabled {
		metrics.Enable()
		metrics.StartResourceCollector(ctx, 15*time.Second)
	}

	server, err := rest.NewServer(&rest.Config{
		Addr:           cfg.ListenAddr(),
		Service:        service,
		Version:        Version,
		TLSConfig:      tlsCfg,
		TokenVerifier:  minter,
		RateLimiter:    limiter,
		MetricsEnabled: cfg.Metrics.Enabled,
		MetricsPath:    cfg.Metrics.Path,
		Logger:         logger,
		ReadTimeout:    cfg.Server.ReadTimeout,
		WriteTimeout:   cfg.Server.WriteTimeout,
		IdleTimeout:    cfg.Server.IdleTimeout,
	})
	if err != nil {
		return fmt.Errorf("failed to create server: %w", err)
	}

	if cfg.Health.Enabled {
		checker := health.NewChecker()
		checker.RegisterCheck("storage", health.CheckOf("storage", func(ctx context.Context) error {
			_, err := backend.List("health/")
			return err
		}))
		checker.MarkStarted()
		server.SetHealthChecker(checker)
	}

	errChan := make(chan error, 1)
	go func() {
		if err := server.Start(); err != nil {
			errChan <- err
		}
	}()

	logger.Info("Server started",
		"addr", cfg.ListenAddr(),
		"tls", cfg.TLS.Enabled,
		"storage", cfg.Storage.Backend,
		"resolver", cfg.Identity.Resolver)

	signalCh := make(chan os.Signal, 1)
	signal.Notify(signalCh, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-signalCh:
		logger.Info("Shutdown signal received", "signal", sig.String())
	case err := <-errChan:
		return err
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stopCancel()

	return server.Stop(stopCtx)
}

// newLogger builds the process logger from the logging configuration.
func newLogger(cfg *config.Config) *logging.Logger {
	debug := strings.EqualFold(cfg.Logging.Level, "debug")
	if strings.EqualFold(cfg.Logging.Format, "text") {
		return logging.NewLogger(debug)
	}
	return logging.NewJSONLogger(debug)
}

// newStorageBackend builds the document store backing challenges,
// credentials and accounts.
func newStorageBackend(cfg *config.Config) (storage.Backend, error) {
	switch cfg.Storage.Backend {
	case "memory":
		return storage.New(), nil
	case "file":
		return file.New(cfg.Storage.Path)
	default:
		return nil, fmt.Errorf("unknown storage backend: %s", cfg.Storage.Backend)
	}
}

// newIdentityResolver builds the resolver mapping installation tokens to
// caller identities.
func newIdentityResolver(cfg *config.Config) (passkey.IdentityResolver, error) {
	switch cfg.Identity.Resolver {
	case "local":
		return passkey.NewTokenResolver([]byte(cfg.Identity.Secret)), nil
	case "iid":
		return passkey.NewIIDResolver(cfg.Identity.Endpoint, cfg.Identity.APIKey, nil), nil
	default:
		return nil, fmt.Errorf("unknown identity resolver: %s", cfg.Identity.Resolver)
	}
}

// newTokenMinter loads the signing key and builds the session token minter.
func newTokenMinter(cfg *config.Config) (*passkey.JWTMinter, error) {
	key, err := cfg.Tokens.LoadSigningKey()
	if err != nil {
		return nil, fmt.Errorf("failed to load signing key: %w", err)
	}

	return passkey.NewJWTMinter(&passkey.JWTMinterConfig{
		PrivateKey: key,
		Issuer:     cfg.Tokens.Issuer,
		Audience:   cfg.Tokens.Audience,
		ExpiresIn:  cfg.Tokens.ExpiresIn,
		KeyID:      cfg.Tokens.KeyID,
	})
}
