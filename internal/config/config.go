// Package config loads openapi-mcp configuration with priority:
// defaults -> TOML file -> OPENAPI_MCP_* environment variables.
package config

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
)

// Config holds all openapi-mcp configuration.
type Config struct {
	Server     ServerConfig                 `toml:"server"`
	Logging    LoggingConfig                `toml:"logging"`
	Auth       AuthConfig                   `toml:"auth"`
	Operations map[string]OperationOverride `toml:"operations"`
}

// ServerConfig holds MCP server settings.
type ServerConfig struct {
	Name       string `toml:"name"`
	Version    string `toml:"version"`
	BaseURL    string `toml:"base_url"`
	ToolPrefix string `toml:"tool_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `toml:"level"`
}

// AuthConfig holds the credentials injected into upstream requests.
type AuthConfig struct {
	BearerToken  string `toml:"bearer_token"`
	Username     string `toml:"username"`
	Password     string `toml:"password"`
	APIKeyHeader string `toml:"api_key_header"`
	APIKey       string `toml:"api_key"`
}

// OperationOverride customizes how one operation (keyed by operation id)
// is mapped. Kind forces resource or tool classification; Name replaces
// the derived candidate name.
type OperationOverride struct {
	Kind string `toml:"kind"`
	Name string `toml:"name"`
}

// NewDefaultConfig returns a Config with sensible defaults.
func NewDefaultConfig() *Config {
	return &Config{
		Logging: LoggingConfig{Level: "info"},
	}
}

// Load reads configuration from an optional TOML file, then applies
// environment overrides. A missing file is not an error; defaults apply.
func Load(path string) (*Config, error) {
	cfg := NewDefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case os.IsNotExist(err):
		case err != nil:
			return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
		default:
			if err := toml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
			}
		}
	}

	applyEnvOverrides(cfg)

	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("OPENAPI_MCP_SERVER_NAME"); v != "" {
		cfg.Server.Name = v
	}
	if v := os.Getenv("OPENAPI_MCP_BASE_URL"); v != "" {
		cfg.Server.BaseURL = v
	}
	if v := os.Getenv("OPENAPI_MCP_TOOL_PREFIX"); v != "" {
		cfg.Server.ToolPrefix = v
	}
	if v := os.Getenv("OPENAPI_MCP_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("OPENAPI_MCP_BEARER_TOKEN"); v != "" {
		cfg.Auth.BearerToken = v
	}
	if v := os.Getenv("OPENAPI_MCP_API_KEY"); v != "" {
		cfg.Auth.APIKey = v
	}
}
