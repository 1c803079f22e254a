// Package agent implements the log-forwarding agent that tails local log
// files and streams them to a logtower server over WebSocket.
package agent

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the agent configuration, loaded from a YAML file with
// flag overrides applied on top.
type Config struct {
	// MachineID identifies this host in forwarded records. Defaults to
	// the hostname.
	MachineID string `yaml:"machine_id"`

	// ServerURL is the WebSocket endpoint of the logtower server,
	// e.g. ws://localhost:8000/ws/logs.
	ServerURL string `yaml:"server_url"`

	// Token is an optional bearer token appended to the connection URL.
	Token string `yaml:"token"`

	// Files lists the log files to tail.
	Files []string `yaml:"files"`

	// Source labels forwarded records, e.g. "system" or "app".
	Source string `yaml:"source"`

	// Severities restricts forwarding to the listed severity levels.
	// Empty means forward everything.
	Severities []string `yaml:"severities"`

	// ReconnectDelay is the wait between reconnection attempts.
	ReconnectDelay time.Duration `yaml:"reconnect_delay"`

	// MaxReconnectDelay caps the exponential backoff.
	MaxReconnectDelay time.Duration `yaml:"max_reconnect_delay"`
}

// LoadConfig reads a YAML config file. A missing path returns defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{
		ServerURL:         "ws://localhost:8000/ws/logs",
		Source:            "system",
		ReconnectDelay:    time.Second,
		MaxReconnectDelay: 30 * time.Second,
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if cfg.MachineID == "" {
		hostname, err := os.Hostname()
		if err != nil {
			hostname = "unknown-machine"
		}
		cfg.MachineID = hostname
	}

	return cfg, nil
}

// Validate checks the configuration for completeness.
func (c *Config) Validate() error {
	if c.ServerURL == "" {
		return fmt.Errorf("server_url is required")
	}
	if !strings.HasPrefix(c.ServerURL, "ws://") && !strings.HasPrefix(c.ServerURL, "wss://") {
		return fmt.Errorf("server_url must start with ws:// or wss://, got %q", c.ServerURL)
	}
	if len(c.Files) == 0 {
		return fmt.Errorf("at least one file to tail is required")
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive")
	}
	return nil
}

// SeveritySet returns the configured severity filter as an uppercase set.
func (c *Config) SeveritySet() map[string]bool {
	if len(c.Severities) == 0 {
		return nil
	}
	set := make(map[string]bool, len(c.Severities))
	for _, s := range c.Severities {
		set[strings.ToUpper(strings.TrimSpace(s))] = true
	}
	return set
}
