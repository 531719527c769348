// internal/bridge/config_test.go
package bridge

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	config := DefaultConfig()

	if config.Host != "127.0.0.1" {
		t.Errorf("expected host 127.0.0.1, got %q", config.Host)
	}
	if config.Port != 8081 {
		t.Errorf("expected port 8081, got %d", config.Port)
	}
	if config.MaxQueueDepth != 64 {
		t.Errorf("expected queue depth 64, got %d", config.MaxQueueDepth)
	}
	if config.ExecTimeout != 120*time.Second {
		t.Errorf("expected 120s exec timeout, got %v", config.ExecTimeout)
	}
	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate, got %v", err)
	}
}

func TestDefaultConfigEnvOverride(t *testing.T) {
	t.Setenv("BRIDGE_PORT", "9000")
	t.Setenv("BRIDGE_MAX_QUEUE_DEPTH", "8")
	t.Setenv("BRIDGE_DEBUG", "true")

	config := DefaultConfig()
	if config.Port != 9000 {
		t.Errorf("expected env port 9000, got %d", config.Port)
	}
	if config.MaxQueueDepth != 8 {
		t.Errorf("expected env queue depth 8, got %d", config.MaxQueueDepth)
	}
	if !config.Debug {
		t.Error("expected debug enabled from env")
	}
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
		want   error
	}{
		{"bad port", func(c *Config) { c.Port = -1 }, ErrInvalidPort},
		{"huge port", func(c *Config) { c.Port = 70000 }, ErrInvalidPort},
		{"non-loopback host", func(c *Config) { c.Host = "0.0.0.0" }, ErrNonLoopbackHost},
		{"public host", func(c *Config) { c.Host = "192.168.1.5" }, ErrNonLoopbackHost},
		{"no connections", func(c *Config) { c.MaxConnections = 0 }, ErrInvalidMaxConnections},
		{"short exec timeout", func(c *Config) { c.ExecTimeout = 10 * time.Millisecond }, ErrInvalidExecTimeout},
		{"tiny payload limit", func(c *Config) { c.MaxPayloadBytes = 100 }, ErrInvalidPayloadLimit},
		{"no queue", func(c *Config) { c.MaxQueueDepth = 0 }, ErrInvalidQueueDepth},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			config := DefaultConfig()
			tc.mutate(config)
			if err := config.Validate(); err != tc.want {
				t.Errorf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestConfigValidateEphemeralPort(t *testing.T) {
	config := DefaultConfig()
	config.Port = 0
	if err := config.Validate(); err != nil {
		t.Errorf("port 0 should validate, got %v", err)
	}
}

func TestConfigValidateLocalhostName(t *testing.T) {
	config := DefaultConfig()
	config.Host = "localhost"
	if err := config.Validate(); err != nil {
		t.Errorf("localhost should validate, got %v", err)
	}

	config.Host = "::1"
	if err := config.Validate(); err != nil {
		t.Errorf("::1 should validate, got %v", err)
	}
}

func TestLoadConfig(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bridge.yaml")
	data := []byte("port: 9100\nmax_queue_depth: 16\nexec_timeout_seconds: 30\nmonitor_enabled: false\n")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	config, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	if config.Port != 9100 {
		t.Errorf("expected port 9100, got %d", config.Port)
	}
	if config.MaxQueueDepth != 16 {
		t.Errorf("expected queue depth 16, got %d", config.MaxQueueDepth)
	}
	if config.ExecTimeout != 30*time.Second {
		t.Errorf("expected 30s exec timeout, got %v", config.ExecTimeout)
	}
	if config.MonitorEnabled {
		t.Error("expected monitor disabled")
	}

	// Fields the file omits keep their defaults.
	if config.Host != "127.0.0.1" {
		t.Errorf("expected default host, got %q", config.Host)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	_, err := LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	if err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestLoadConfigBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	if err := os.WriteFile(path, []byte("port: [not an int"), 0644); err != nil {
		t.Fatalf("could not write config: %v", err)
	}

	_, err := LoadConfig(path)
	if err == nil {
		t.Error("expected an error for malformed YAML")
	}
}

func TestConfigAddr(t *testing.T) {
	config := DefaultConfig()
	config.Port = 9000
	if got := config.Addr(); got != "127.0.0.1:9000" {
		t.Errorf("expected 127.0.0.1:9000, got %q", got)
	}

	config.Host = "::1"
	if got := config.Addr(); got != "[::1]:9000" {
		t.Errorf("expected bracketed IPv6 address, got %q", got)
	}
}
