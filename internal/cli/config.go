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
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/jeremyhahn/go-passkey/internal/config"
)

// DefaultConfigPath is used when no --config flag or environment override
// is given.
const DefaultConfigPath = "/etc/passkey/config.yaml"

// Config holds global CLI configuration
type Config struct {
	// ConfigFile is the path to the server configuration file
	ConfigFile string

	// OutputFormat controls output formatting (json, text)
	OutputFormat string

	// Verbose enables verbose logging
	Verbose bool
}

// NewConfig creates a new Config with default values
func NewConfig() *Config {
	return &Config{
		OutputFormat: "text",
		Verbose:      false,
	}
}

// ConfigPath resolves the server config file path: the --config flag wins,
// then PASSKEY_CONFIG, then the default location.
func (c *Config) ConfigPath() string {
	if c.ConfigFile != "" {
		return c.ConfigFile
	}
	if envPath := os.Getenv("PASSKEY_CONFIG"); envPath != "" {
		return envPath
	}
	return DefaultConfigPath
}

// LoadServerConfig loads and validates the server configuration file.
func (c *Config) LoadServerConfig() (*config.Config, error) {
	return config.Load(c.ConfigPath())
}

// configCmd groups configuration inspection subcommands
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect server configuration",
}

// configValidateCmd loads the config file and reports whether it is usable
var configValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the server configuration file",
	Run: func(cmd *cobra.Command, args []string) {
		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)

		path := getConfig().ConfigPath()
		if _, err := config.Load(path); err != nil {
			handleError(fmt.Errorf("config %s: %w", path, err))
			return
		}
		_ = printer.PrintSuccess(fmt.Sprintf("Configuration %s is valid", path))
	},
}

// configShowCmd prints the effective configuration after defaults and
// environment overrides. Secrets are redacted.
var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show the effective server configuration",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := getConfig().LoadServerConfig()
		if err != nil {
			handleError(err)
			return
		}

		redacted := *cfg
		if redacted.Identity.Secret != "" {
			redacted.Identity.Secret = "[REDACTED]"
		}
		if redacted.Identity.APIKey != "" {
			redacted.Identity.APIKey = "[REDACTED]"
		}

		printer := NewPrinter(getConfig().OutputFormat, os.Stdout)
		if getConfig().OutputFormat == "json" {
			_ = printer.printJSON(redacted)
			return
		}

		out, err := yaml.Marshal(redacted)
		if err != nil {
			handleError(err)
			return
		}
		fmt.Fprint(os.Stdout, string(out))
	},
}

func init() {
	configCmd.AddCommand(configValidateCmd)
	configCmd.AddCommand(configShowCmd)
}
