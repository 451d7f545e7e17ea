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

package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/pkg/passkey"
	"github.com/jeremyhahn/go-passkey/pkg/ratelimit"
)

// Config represents the complete server configuration
type Config struct {
	Server       ServerConfig     `yaml:"server"`
	Logging      LoggingConfig    `yaml:"logging"`
	TLS          TLSConfig        `yaml:"tls"`
	RelyingParty passkey.Config   `yaml:"relying_party"`
	Identity     IdentityConfig   `yaml:"identity"`
	Tokens       TokensConfig     `yaml:"tokens"`
	RateLimit    ratelimit.Config `yaml:"ratelimit"`
	Metrics      MetricsConfig    `yaml:"metrics"`
	Health       HealthConfig     `yaml:"health"`
	Storage      StorageConfig    `yaml:"storage"`
}

// ServerConfig contains server-level settings
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout"`
}

// LoggingConfig controls logging behavior
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// TLSConfig controls TLS/SSL settings
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
	CAFile   string `yaml:"ca_file"`

	// Client certificate verification (mTLS)
	ClientAuth string   `yaml:"client_auth"` // none, request, require, verify, require_and_verify
	ClientCAs  []string `yaml:"client_cas"`  // Additional client CA certificates

	// TLS version bounds
	MinVersion string `yaml:"min_version"` // TLS1.2, TLS1.3
	MaxVersion string `yaml:"max_version"` // TLS1.2, TLS1.3
}

// IdentityConfig controls how installation tokens are resolved to caller
// identities.
type IdentityConfig struct {
	// Resolver selects the resolution strategy: "local" derives the identity
	// from the token itself, "iid" verifies tokens against the upstream
	// instance-id service.
	Resolver string `yaml:"resolver"`

	// Secret is the derivation secret for the local resolver.
	Secret string `yaml:"secret"`

	// Endpoint is the instance-id service URL for the iid resolver.
	Endpoint string `yaml:"endpoint"`

	// APIKey authenticates requests to the instance-id service.
	APIKey string `yaml:"api_key"`
}

// TokensConfig controls session token minting
type TokensConfig struct {
	PrivateKeyFile string        `yaml:"private_key_file"`
	Issuer         string        `yaml:"issuer"`
	Audience       []string      `yaml:"audience"`
	ExpiresIn      time.Duration `yaml:"expires_in"`
	KeyID          string        `yaml:"key_id"`
}

// MetricsConfig controls the metrics endpoint
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// HealthConfig controls health check endpoints
type HealthConfig struct {
	Enabled bool `yaml:"enabled"`
}

// StorageConfig controls the document store backing challenges, credentials
// and accounts
type StorageConfig struct {
	Backend string `yaml:"backend"` // memory, file
	Path    string `yaml:"path"`
}

// Load reads configuration from a YAML file and applies environment variable overrides
func Load(path string) (*Config, error) {
	// #nosec G304 - Config file path is provided by admin/user
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	applyEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// Default returns a configuration suitable for local development: memory
// storage, local identity resolution and no TLS.
func Default() *Config {
	cfg := &Config{}
	cfg.ApplyDefaults()
	return cfg
}

// ApplyDefaults fills unset fields with their default values.
func (c *Config) ApplyDefaults() {
	if c.Server.Host == "" {
		c.Server.Host = "0.0.0.0"
	}
	if c.Server.Port == 0 {
		c.Server.Port = 8443
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 15 * time.Second
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15 * time.Second
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60 * time.Second
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Identity.Resolver == "" {
		c.Identity.Resolver = "local"
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = "memory"
	}
	c.RelyingParty.SetDefaults()
}

// applyEnvOverrides applies environment variable overrides to the configuration
func applyEnvOverrides(cfg *Config) {
	if host := os.Getenv("PASSKEY_HOST"); host != "" {
		cfg.Server.Host = host
	}
	if portEnv := os.Getenv("PASSKEY_PORT"); portEnv != "" {
		port, err := strconv.Atoi(portEnv)
		if err != nil {
			log.Printf("Warning: invalid PASSKEY_PORT value %q, using default %d: %v",
				portEnv, cfg.Server.Port, err)
		} else if port < 1 || port > 65535 {
			log.Printf("Warning: invalid PASSKEY_PORT value %q (out of range 1-65535), using default %d",
				portEnv, cfg.Server.Port)
		} else {
			cfg.Server.Port = port
		}
	}

	// Logging
	if level := os.Getenv("PASSKEY_LOG_LEVEL"); level != "" {
		cfg.Logging.Level = level
	}
	if format := os.Getenv("PASSKEY_LOG_FORMAT"); format != "" {
		cfg.Logging.Format = format
	}

	// Relying party
	if rpID := os.Getenv("PASSKEY_RP_ID"); rpID != "" {
		cfg.RelyingParty.RPID = rpID
		if os.Getenv("PASSKEY_RP_ORIGIN") == "" {
			cfg.RelyingParty.RPOrigin = "https://" + rpID
		}
	}
	if origin := os.Getenv("PASSKEY_RP_ORIGIN"); origin != "" {
		cfg.RelyingParty.RPOrigin = origin
	}

	// Secrets are preferred from the environment so config files stay free
	// of credentials.
	if secret := os.Getenv("PASSKEY_IDENTITY_SECRET"); secret != "" {
		cfg.Identity.Secret = secret
	}
	if apiKey := os.Getenv("PASSKEY_IID_API_KEY"); apiKey != "" {
		cfg.Identity.APIKey = apiKey
	}
	if keyFile := os.Getenv("PASSKEY_TOKEN_KEY_FILE"); keyFile != "" {
		cfg.Tokens.PrivateKeyFile = keyFile
	}

	// Storage
	if dataDir := os.Getenv("PASSKEY_DATA_DIR"); dataDir != "" {
		cfg.Storage.Path = dataDir
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "fatal": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("invalid log level: %s (must be debug, info, warn, error, or fatal)", c.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"json": true, "text": true,
	}
	if !validFormats[strings.ToLower(c.Logging.Format)] {
		return fmt.Errorf("invalid log format: %s (must be json or text)", c.Logging.Format)
	}

	// Validate TLS settings
	if c.TLS.Enabled {
		if c.TLS.CertFile == "" {
			return fmt.Errorf("TLS cert_file is required when TLS is enabled")
		}
		if c.TLS.KeyFile == "" {
			return fmt.Errorf("TLS key_file is required when TLS is enabled")
		}
	}

	// Validate relying party settings
	if err := c.RelyingParty.Validate(); err != nil {
		return fmt.Errorf("invalid relying_party configuration: %w", err)
	}

	// Validate identity resolution
	switch c.Identity.Resolver {
	case "local":
		if c.Identity.Secret == "" {
			return fmt.Errorf("identity secret is required for the local resolver")
		}
	case "iid":
		if c.Identity.Endpoint == "" {
			return fmt.Errorf("identity endpoint is required for the iid resolver")
		}
		if c.Identity.APIKey == "" {
			return fmt.Errorf("identity api_key is required for the iid resolver")
		}
	default:
		return fmt.Errorf("invalid identity resolver: %s (must be local or iid)", c.Identity.Resolver)
	}

	// Validate token minting
	if c.Tokens.PrivateKeyFile == "" {
		return fmt.Errorf("tokens private_key_file is required")
	}

	// Validate storage
	switch c.Storage.Backend {
	case "memory":
	case "file":
		if c.Storage.Path == "" {
			return fmt.Errorf("storage path is required for the file backend")
		}
	default:
		return fmt.Errorf("invalid storage backend: %s (must be memory or file)", c.Storage.Backend)
	}

	return nil
}

// ListenAddr returns the host:port the server binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
