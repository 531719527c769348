// internal/bridge/config.go
package bridge

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the bridge server configuration
type Config struct {
	// Host is the address the bridge listens on. Must be a loopback address.
	Host string `yaml:"host"`

	// Port is the TCP port the bridge listens on
	Port int `yaml:"port"`

	// MaxConnections is the maximum number of concurrent client connections
	MaxConnections int `yaml:"max_connections"`

	// MaxPayloadBytes is the largest accepted frame payload
	MaxPayloadBytes int `yaml:"max_payload_bytes"`

	// MaxQueueDepth is the bound on jobs waiting for the host thread
	MaxQueueDepth int `yaml:"max_queue_depth"`

	// ExecTimeout is how long a handler waits for a job's outcome before
	// reporting a timeout to its client. The job itself is not cancelled.
	ExecTimeout time.Duration `yaml:"-"`

	// IdleTimeout is how long a connection may sit between frames before
	// the read fails and the connection is closed
	IdleTimeout time.Duration `yaml:"-"`

	// RateLimitRPS is the connection rate limit per client IP
	RateLimitRPS float64 `yaml:"rate_limit_rps"`

	// RateLimitBurst is the burst limit for connection rate limiting
	RateLimitBurst int `yaml:"rate_limit_burst"`

	// MonitorEnabled controls the HTTP observer endpoint
	MonitorEnabled bool `yaml:"monitor_enabled"`

	// MonitorPort is the port for the HTTP observer endpoint
	MonitorPort int `yaml:"monitor_port"`

	// Debug enables verbose debug logging
	Debug bool `yaml:"debug"`
}

// fileConfig mirrors Config for YAML loading, with durations in seconds and
// pointer fields so absent keys keep their defaults.
type fileConfig struct {
	Host               *string  `yaml:"host"`
	Port               *int     `yaml:"port"`
	MaxConnections     *int     `yaml:"max_connections"`
	MaxPayloadBytes    *int     `yaml:"max_payload_bytes"`
	MaxQueueDepth      *int     `yaml:"max_queue_depth"`
	ExecTimeoutSeconds *int     `yaml:"exec_timeout_seconds"`
	IdleTimeoutSeconds *int     `yaml:"idle_timeout_seconds"`
	RateLimitRPS       *float64 `yaml:"rate_limit_rps"`
	RateLimitBurst     *int     `yaml:"rate_limit_burst"`
	MonitorEnabled     *bool    `yaml:"monitor_enabled"`
	MonitorPort        *int     `yaml:"monitor_port"`
	Debug              *bool    `yaml:"debug"`
}

// DefaultConfig returns a Config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Host:            getEnvOrDefault("BRIDGE_HOST", "127.0.0.1"),
		Port:            getEnvInt("BRIDGE_PORT", 8081),
		MaxConnections:  getEnvInt("BRIDGE_MAX_CONNECTIONS", 16),
		MaxPayloadBytes: getEnvInt("BRIDGE_MAX_PAYLOAD_BYTES", 1<<20),
		MaxQueueDepth:   getEnvInt("BRIDGE_MAX_QUEUE_DEPTH", 64),
		ExecTimeout:     time.Duration(getEnvInt("BRIDGE_EXEC_TIMEOUT", 120)) * time.Second,
		IdleTimeout:     time.Duration(getEnvInt("BRIDGE_IDLE_TIMEOUT", 300)) * time.Second,
		RateLimitRPS:    5.0,
		RateLimitBurst:  10,
		MonitorEnabled:  getEnvBool("BRIDGE_MONITOR_ENABLED", true),
		MonitorPort:     getEnvInt("BRIDGE_MONITOR_PORT", 8082),
		Debug:           getEnvBool("BRIDGE_DEBUG", false),
	}
}

// LoadConfig reads a YAML config file and overlays it on the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("could not read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return nil, fmt.Errorf("could not parse config %s: %w", path, err)
	}

	if fc.Host != nil {
		cfg.Host = *fc.Host
	}
	if fc.Port != nil {
		cfg.Port = *fc.Port
	}
	if fc.MaxConnections != nil {
		cfg.MaxConnections = *fc.MaxConnections
	}
	if fc.MaxPayloadBytes != nil {
		cfg.MaxPayloadBytes = *fc.MaxPayloadBytes
	}
	if fc.MaxQueueDepth != nil {
		cfg.MaxQueueDepth = *fc.MaxQueueDepth
	}
	if fc.ExecTimeoutSeconds != nil {
		cfg.ExecTimeout = time.Duration(*fc.ExecTimeoutSeconds) * time.Second
	}
	if fc.IdleTimeoutSeconds != nil {
		cfg.IdleTimeout = time.Duration(*fc.IdleTimeoutSeconds) * time.Second
	}
	if fc.RateLimitRPS != nil {
		cfg.RateLimitRPS = *fc.RateLimitRPS
	}
	if fc.RateLimitBurst != nil {
		cfg.RateLimitBurst = *fc.RateLimitBurst
	}
	if fc.MonitorEnabled != nil {
		cfg.MonitorEnabled = *fc.MonitorEnabled
	}
	if fc.MonitorPort != nil {
		cfg.MonitorPort = *fc.MonitorPort
	}
	if fc.Debug != nil {
		cfg.Debug = *fc.Debug
	}

	return cfg, nil
}

// Validate checks that the configuration is valid
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return ErrInvalidPort
	}
	if !isLoopback(c.Host) {
		return ErrNonLoopbackHost
	}
	if c.MaxConnections < 1 {
		return ErrInvalidMaxConnections
	}
	if c.ExecTimeout < time.Second {
		return ErrInvalidExecTimeout
	}
	if c.MaxPayloadBytes < 1024 {
		return ErrInvalidPayloadLimit
	}
	if c.MaxQueueDepth < 1 {
		return ErrInvalidQueueDepth
	}
	return nil
}

// Addr returns the listen address in host:port form.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// isLoopback reports whether host names a loopback address.
func isLoopback(host string) bool {
	if host == "localhost" {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// getEnvOrDefault returns the environment variable value or a default
func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvInt returns the environment variable as an int or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvBool returns the environment variable as a bool or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}
