// Copyright 2026 The Parley Authors
// SPDX-License-Identifier: Apache-2.0

// Package config provides configuration loading for Parley commands.
//
// Configuration is loaded from a single file specified by:
//   - PARLEY_CONFIG environment variable, or
//   - --config flag passed to the command
//
// There are no fallbacks or automatic discovery. The config file is the
// single source of truth; environment variables never override values
// from it.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the master configuration for a Parley client.
type Config struct {
	// Server locates the chat server.
	Server ServerConfig `yaml:"server"`

	// Auth carries the credential used for both the REST and the live
	// connection.
	Auth AuthConfig `yaml:"auth"`

	// Session tunes the engine.
	Session SessionConfig `yaml:"session"`

	// Log configures logging.
	Log LogConfig `yaml:"log"`
}

// ServerConfig locates the chat server.
type ServerConfig struct {
	// BaseURL is the REST endpoint root, e.g. https://chat.example.com.
	BaseURL string `yaml:"base_url"`

	// SocketURL is the live-connection endpoint, e.g.
	// wss://chat.example.com/socket. Empty derives it from BaseURL.
	SocketURL string `yaml:"socket_url"`
}

// AuthConfig carries the credential. Exactly one mode should be
// configured: a pre-provisioned bearer token (Token or TokenFile —
// TokenFile keeps the secret out of the config file itself), or a
// Handle plus Password pair exchanged for a token at startup via the
// server's login endpoint.
type AuthConfig struct {
	Token     string `yaml:"token,omitempty"`
	TokenFile string `yaml:"token_file,omitempty"`
	Handle    string `yaml:"handle,omitempty"`
	Password  string `yaml:"password,omitempty"`
}

// HasCredentials reports whether the config carries a handle/password
// pair for a startup login.
func (a AuthConfig) HasCredentials() bool {
	return a.Handle != "" && a.Password != ""
}

// SessionConfig tunes the engine. Zero values mean the engine defaults.
type SessionConfig struct {
	// PageSize is the history page size.
	PageSize int `yaml:"page_size"`

	// ReconnectDelay is the wait between reconnect attempts, e.g. "1s".
	ReconnectDelay string `yaml:"reconnect_delay"`

	// MaxReconnectAttempts bounds consecutive failed dials.
	MaxReconnectAttempts int `yaml:"max_reconnect_attempts"`

	// TypingDebounce is the outbound typing silence window, e.g. "2s".
	TypingDebounce string `yaml:"typing_debounce"`
}

// LogConfig configures logging.
type LogConfig struct {
	// Level is one of debug, info, warn, error. Default: info.
	Level string `yaml:"level"`
}

// Default returns the default configuration. It exists to give every
// field a sensible zero-value base before the file is merged in, not as
// a substitute for the file.
func Default() *Config {
	return &Config{
		Session: SessionConfig{
			PageSize:             50,
			ReconnectDelay:       "1s",
			MaxReconnectAttempts: 5,
			TypingDebounce:       "2s",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load loads configuration from the PARLEY_CONFIG environment variable.
// There is no fallback: if PARLEY_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv("PARLEY_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("config: PARLEY_CONFIG environment variable not set; " +
			"set it to the path of your parley.yaml config file, or use --config")
	}
	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path, merging it
// over the defaults and validating the result.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: reading %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("config: parsing %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for problems a command could not
// work around.
func (c *Config) Validate() error {
	if c.Server.BaseURL == "" {
		return fmt.Errorf("config: server.base_url is required")
	}
	if c.Auth.Token != "" && c.Auth.TokenFile != "" {
		return fmt.Errorf("config: auth.token and auth.token_file are mutually exclusive")
	}
	hasToken := c.Auth.Token != "" || c.Auth.TokenFile != ""
	if hasToken && (c.Auth.Handle != "" || c.Auth.Password != "") {
		return fmt.Errorf("config: a pre-provisioned token and login credentials are mutually exclusive")
	}
	if c.Auth.Handle != "" && c.Auth.Password == "" {
		return fmt.Errorf("config: auth.password is required with auth.handle")
	}
	if c.Auth.Password != "" && c.Auth.Handle == "" {
		return fmt.Errorf("config: auth.handle is required with auth.password")
	}
	if !hasToken && !c.Auth.HasCredentials() {
		return fmt.Errorf("config: one of auth.token, auth.token_file, or auth.handle + auth.password is required")
	}
	if _, err := c.Session.reconnectDelay(); err != nil {
		return err
	}
	if _, err := c.Session.typingDebounce(); err != nil {
		return err
	}
	return nil
}

// ResolveToken returns the bearer token, reading the token file if the
// config points at one.
func (c *Config) ResolveToken() (string, error) {
	if c.Auth.Token != "" {
		return c.Auth.Token, nil
	}
	if c.Auth.TokenFile == "" {
		return "", fmt.Errorf("config: no pre-provisioned token configured")
	}
	data, err := os.ReadFile(c.Auth.TokenFile)
	if err != nil {
		return "", fmt.Errorf("config: reading auth.token_file: %w", err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("config: auth.token_file %s is empty", c.Auth.TokenFile)
	}
	return token, nil
}

// SocketURL returns the live-connection endpoint, deriving it from
// BaseURL (http to ws scheme) when not set explicitly.
func (c *Config) SocketURL() string {
	if c.Server.SocketURL != "" {
		return c.Server.SocketURL
	}
	url := c.Server.BaseURL
	switch {
	case strings.HasPrefix(url, "https://"):
		url = "wss://" + strings.TrimPrefix(url, "https://")
	case strings.HasPrefix(url, "http://"):
		url = "ws://" + strings.TrimPrefix(url, "http://")
	}
	return strings.TrimRight(url, "/") + "/socket"
}

// ReconnectDelay returns the parsed reconnect delay.
func (c *Config) ReconnectDelay() time.Duration {
	d, _ := c.Session.reconnectDelay()
	return d
}

// TypingDebounce returns the parsed typing debounce window.
func (c *Config) TypingDebounce() time.Duration {
	d, _ := c.Session.typingDebounce()
	return d
}

func (s SessionConfig) reconnectDelay() (time.Duration, error) {
	return parseDuration("session.reconnect_delay", s.ReconnectDelay)
}

func (s SessionConfig) typingDebounce() (time.Duration, error) {
	return parseDuration("session.typing_debounce", s.TypingDebounce)
}

func parseDuration(field, value string) (time.Duration, error) {
	if value == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("config: invalid %s %q: %w", field, value, err)
	}
	return d, nil
}
