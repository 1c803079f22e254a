// Package config provides environment-based configuration for logtower.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config holds all configuration for the logtower server.
type Config struct {
	// Server configuration
	BindHost string
	BindPort int

	// Pipeline sizing
	BufferCapacity  int
	SubscriberQueue int

	// Ticket storage. Empty DSN selects the in-memory store.
	DatabaseDSN string

	// Optional bearer-token authentication. Auth is disabled when the
	// secret is empty, preserving the open dashboard contract.
	AuthSecret string
	AuthExpiry time.Duration

	// Optional Kafka ingestion source. Disabled when Brokers is empty.
	Kafka KafkaConfig

	// Graceful shutdown timeout
	ShutdownTimeout time.Duration

	// Logging
	LogLevel string
	LogJSON  bool
}

// KafkaConfig holds Kafka ingestion source configuration.
type KafkaConfig struct {
	Brokers []string
	Topic   string
	GroupID string
}

// Load reads configuration from environment variables.
func Load() (*Config, error) {
	cfg := &Config{
		BindHost:        getEnv("BIND_HOST", "0.0.0.0"),
		BindPort:        getIntEnv("BIND_PORT", 8000),
		BufferCapacity:  getIntEnv("BUFFER_CAPACITY", 1000),
		SubscriberQueue: getIntEnv("SUBSCRIBER_QUEUE", 1000),
		DatabaseDSN:     getEnv("DATABASE_URL", ""),
		AuthSecret:      getEnv("AUTH_SECRET", ""),
		AuthExpiry:      getDurationEnv("AUTH_EXPIRY", 24*time.Hour),
		Kafka: KafkaConfig{
			Brokers: getSliceEnv("KAFKA_BROKERS"),
			Topic:   getEnv("KAFKA_TOPIC", "logs"),
			GroupID: getEnv("KAFKA_GROUP", "logtower"),
		},
		ShutdownTimeout: getDurationEnv("SHUTDOWN_TIMEOUT", 30*time.Second),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogJSON:         getBoolEnv("LOG_JSON", true),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that configuration values are usable.
func (c *Config) Validate() error {
	if c.BindPort <= 0 || c.BindPort > 65535 {
		return fmt.Errorf("BIND_PORT must be between 1 and 65535, got %d", c.BindPort)
	}
	if c.BufferCapacity <= 0 {
		return fmt.Errorf("BUFFER_CAPACITY must be positive, got %d", c.BufferCapacity)
	}
	if c.SubscriberQueue <= 0 {
		return fmt.Errorf("SUBSCRIBER_QUEUE must be positive, got %d", c.SubscriberQueue)
	}
	if c.AuthSecret != "" && len(c.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be at least 32 characters")
	}
	return nil
}

// Addr returns the host:port bind address for the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.BindHost, c.BindPort)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getSliceEnv(key string) []string {
	value := os.Getenv(key)
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
