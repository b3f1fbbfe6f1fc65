// Package config provides YAML configuration loading for the identity context service.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the identityctx service configuration
type Config struct {
	// Global settings
	Global GlobalConfig `yaml:"global"`

	// Identity derivation settings
	Identity IdentityConfig `yaml:"identity"`

	// Host CLI executor settings
	Executor ExecutorConfig `yaml:"executor"`

	// Telemetry envelope settings
	Payload PayloadConfig `yaml:"payload"`

	// Observability settings
	Observability ObservabilityConfig `yaml:"observability"`
}

// GlobalConfig contains settings shared across deployment environments
type GlobalConfig struct {
	Environment string `yaml:"environment"` // dev, staging, prod
	LogLevel    string `yaml:"log_level"`   // debug, info, warn, error
}

// IdentityConfig contains identity derivation settings
type IdentityConfig struct {
	// Number of rollout cohort buckets (must be > 0)
	CohortCount int `yaml:"cohort_count"`

	// Email domains that classify an account as internal (e.g. "@ozlabs.io")
	InternalDomains []string `yaml:"internal_domains"`

	// Refresh interval for agent mode (e.g. "15m")
	RefreshInterval string `yaml:"refresh_interval"`
}

// ExecutorConfig contains host CLI query settings
type ExecutorConfig struct {
	// Shell used to run query scripts
	Shell string `yaml:"shell"`

	// Per-query timeout (e.g. "5s")
	Timeout string `yaml:"timeout"`

	// Script returning the signed-in account identifier, one line
	AccountScript string `yaml:"account_script"`

	// Script returning installed extension versions, one per line
	ExtensionsScript string `yaml:"extensions_script"`

	// Script returning the host CLI's own version, one line
	HostVersionScript string `yaml:"host_version_script"`
}

// PayloadConfig contains telemetry envelope settings
type PayloadConfig struct {
	// Path to the envelope JSON Schema
	SchemaPath string `yaml:"schema_path"`

	// Validate envelopes against the schema before emitting
	EnableValidation bool `yaml:"enable_validation"`
}

// ObservabilityConfig contains metrics and health settings
type ObservabilityConfig struct {
	// Prometheus metrics endpoint port (e.g. ":8080")
	MetricsPort string `yaml:"metrics_port"`

	// Enable health check endpoint
	HealthCheckEnabled bool `yaml:"health_check_enabled"`

	// Health check port (e.g. ":8081")
	HealthCheckPort string `yaml:"health_check_port"`
}

// Load reads and validates configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", path, err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse YAML from %s: %w", path, err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return config, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Identity.CohortCount <= 0 {
		return fmt.Errorf("identity.cohort_count must be positive, got %d", c.Identity.CohortCount)
	}

	if c.Identity.RefreshInterval != "" {
		if _, err := time.ParseDuration(c.Identity.RefreshInterval); err != nil {
			return fmt.Errorf("invalid identity.refresh_interval format: %w", err)
		}
	}

	if c.Executor.Timeout != "" {
		if _, err := time.ParseDuration(c.Executor.Timeout); err != nil {
			return fmt.Errorf("invalid executor.timeout format: %w", err)
		}
	}

	if c.Payload.EnableValidation && c.Payload.SchemaPath == "" {
		return fmt.Errorf("payload.schema_path is required when payload.enable_validation is set")
	}

	return nil
}
