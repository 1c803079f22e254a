package agent

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig("")
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.ServerURL != "ws://localhost:8000/ws/logs" {
		t.Errorf("ServerURL = %q", cfg.ServerURL)
	}
	if cfg.MachineID == "" {
		t.Error("MachineID should default to the hostname")
	}
	if cfg.ReconnectDelay != time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}
}

func TestLoadConfigFromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "agent.yaml")
	content := `
machine_id: web-1
server_url: ws://logtower:8000/ws/logs
files:
  - /var/log/app.log
  - /var/log/nginx/access.log
source: app
severities: [error, warning]
reconnect_delay: 2s
`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}

	if cfg.MachineID != "web-1" {
		t.Errorf("MachineID = %q", cfg.MachineID)
	}
	if len(cfg.Files) != 2 {
		t.Errorf("Files = %v", cfg.Files)
	}
	if cfg.ReconnectDelay != 2*time.Second {
		t.Errorf("ReconnectDelay = %v", cfg.ReconnectDelay)
	}

	set := cfg.SeveritySet()
	if !set["ERROR"] || !set["WARNING"] || set["INFO"] {
		t.Errorf("SeveritySet = %v", set)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	if _, err := LoadConfig("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing config file")
	}
}

func TestValidate(t *testing.T) {
	valid := &Config{
		MachineID:      "web-1",
		ServerURL:      "ws://localhost:8000/ws/logs",
		Files:          []string{"/var/log/app.log"},
		ReconnectDelay: time.Second,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"empty server url", func(c *Config) { c.ServerURL = "" }},
		{"http scheme", func(c *Config) { c.ServerURL = "http://localhost:8000" }},
		{"no files", func(c *Config) { c.Files = nil }},
		{"zero reconnect delay", func(c *Config) { c.ReconnectDelay = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := *valid
			cfg.Files = append([]string(nil), valid.Files...)
			tt.mutate(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestSeveritySetEmptyMeansNoFilter(t *testing.T) {
	cfg := &Config{}
	if cfg.SeveritySet() != nil {
		t.Error("empty severities should produce a nil set")
	}
}
