// Package config handles configuration management with validation
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config represents the complete configuration structure
type Config struct {
	App         AppConfig         `yaml:"app"`
	Service     ServiceConfig     `yaml:"service"`
	System      SystemConfig      `yaml:"system"`
	Notify      NotifyConfig      `yaml:"notify"`
	Concurrency ConcurrencyConfig `yaml:"concurrency"`
	Telemetry   TelemetryConfig   `yaml:"telemetry"`
}

// AppConfig contains application-level settings
type AppConfig struct {
	OwnerID string `yaml:"owner_id"` // Identifier of the signed-in farmer
}

// ServiceConfig describes the remote marketplace service endpoint
type ServiceConfig struct {
	BaseURL            string  `yaml:"base_url"`
	TimeoutSeconds     int     `yaml:"timeout_seconds"`
	RateLimitPerSecond float64 `yaml:"rate_limit_per_second"` // 0 disables client-side limiting
}

// SystemConfig contains system settings
type SystemConfig struct {
	LogLevel string `yaml:"log_level"`
}

// NotifyConfig contains marketplace event stream settings
type NotifyConfig struct {
	Enabled               bool   `yaml:"enabled"`
	URL                   string `yaml:"url"`
	ReconnectDelaySeconds int    `yaml:"reconnect_delay_seconds"`
}

// ConcurrencyConfig contains worker pool settings
type ConcurrencyConfig struct {
	RefreshPoolSize   int `yaml:"refresh_pool_size"`
	RefreshPoolBuffer int `yaml:"refresh_pool_buffer"`
	BidLoadLimit      int `yaml:"bid_load_limit"` // Max concurrent per-listing bid fetches
}

// TelemetryConfig contains telemetry settings
type TelemetryConfig struct {
	MetricsPort   int  `yaml:"metrics_port"`
	EnableMetrics bool `yaml:"enable_metrics"`
}

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s' (value: %v): %s", e.Field, e.Value, e.Message)
}

// LoadConfig loads configuration from a YAML file with environment variable expansion
func LoadConfig(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var config Config
	if err := yaml.Unmarshal([]byte(expandedData), &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyDefaults() {
	if c.Service.TimeoutSeconds == 0 {
		c.Service.TimeoutSeconds = 15
	}
	if c.System.LogLevel == "" {
		c.System.LogLevel = "INFO"
	}
	if c.Notify.ReconnectDelaySeconds == 0 {
		c.Notify.ReconnectDelaySeconds = 5
	}
	if c.Concurrency.RefreshPoolSize == 0 {
		c.Concurrency.RefreshPoolSize = 4
	}
	if c.Concurrency.RefreshPoolBuffer == 0 {
		c.Concurrency.RefreshPoolBuffer = 64
	}
	if c.Concurrency.BidLoadLimit == 0 {
		c.Concurrency.BidLoadLimit = 4
	}
	if c.Telemetry.MetricsPort == 0 {
		c.Telemetry.MetricsPort = 9090
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	var errs []string

	if err := c.validateApp(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateService(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateSystem(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateNotify(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateConcurrency(); err != nil {
		errs = append(errs, err.Error())
	}
	if err := c.validateTelemetry(); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n%s", strings.Join(errs, "\n"))
	}

	return nil
}

func (c *Config) validateApp() error {
	if strings.TrimSpace(c.App.OwnerID) == "" {
		return ValidationError{
			Field:   "app.owner_id",
			Message: "owner identifier is required",
		}
	}
	return nil
}

func (c *Config) validateService() error {
	if c.Service.BaseURL == "" {
		return ValidationError{
			Field:   "service.base_url",
			Message: "marketplace service URL is required",
		}
	}
	if !strings.HasPrefix(c.Service.BaseURL, "http://") && !strings.HasPrefix(c.Service.BaseURL, "https://") {
		return ValidationError{
			Field:   "service.base_url",
			Value:   c.Service.BaseURL,
			Message: "must be an http(s) URL",
		}
	}
	if strings.HasSuffix(c.Service.BaseURL, "/") {
		return ValidationError{
			Field:   "service.base_url",
			Value:   c.Service.BaseURL,
			Message: "must not end with a trailing slash",
		}
	}
	if c.Service.TimeoutSeconds < 1 || c.Service.TimeoutSeconds > 300 {
		return ValidationError{
			Field:   "service.timeout_seconds",
			Value:   c.Service.TimeoutSeconds,
			Message: "must be between 1 and 300",
		}
	}
	if c.Service.RateLimitPerSecond < 0 {
		return ValidationError{
			Field:   "service.rate_limit_per_second",
			Value:   c.Service.RateLimitPerSecond,
			Message: "must not be negative",
		}
	}
	return nil
}

func (c *Config) validateSystem() error {
	validLevels := []string{"DEBUG", "INFO", "WARN", "ERROR", "FATAL"}
	if !contains(validLevels, strings.ToUpper(c.System.LogLevel)) {
		return ValidationError{
			Field:   "system.log_level",
			Value:   c.System.LogLevel,
			Message: fmt.Sprintf("must be one of: %s", strings.Join(validLevels, ", ")),
		}
	}
	return nil
}

func (c *Config) validateNotify() error {
	if !c.Notify.Enabled {
		return nil
	}
	if !strings.HasPrefix(c.Notify.URL, "ws://") && !strings.HasPrefix(c.Notify.URL, "wss://") {
		return ValidationError{
			Field:   "notify.url",
			Value:   c.Notify.URL,
			Message: "must be a ws(s) URL when notify is enabled",
		}
	}
	if c.Notify.ReconnectDelaySeconds < 1 || c.Notify.ReconnectDelaySeconds > 300 {
		return ValidationError{
			Field:   "notify.reconnect_delay_seconds",
			Value:   c.Notify.ReconnectDelaySeconds,
			Message: "must be between 1 and 300",
		}
	}
	return nil
}

func (c *Config) validateConcurrency() error {
	if c.Concurrency.RefreshPoolSize < 1 || c.Concurrency.RefreshPoolSize > 100 {
		return ValidationError{
			Field:   "concurrency.refresh_pool_size",
			Value:   c.Concurrency.RefreshPoolSize,
			Message: "must be between 1 and 100",
		}
	}
	if c.Concurrency.BidLoadLimit < 1 || c.Concurrency.BidLoadLimit > 100 {
		return ValidationError{
			Field:   "concurrency.bid_load_limit",
			Value:   c.Concurrency.BidLoadLimit,
			Message: "must be between 1 and 100",
		}
	}
	return nil
}

func (c *Config) validateTelemetry() error {
	if c.Telemetry.MetricsPort < 1 || c.Telemetry.MetricsPort > 65535 {
		return ValidationError{
			Field:   "telemetry.metrics_port",
			Value:   c.Telemetry.MetricsPort,
			Message: "must be a valid TCP port",
		}
	}
	return nil
}

// expandEnvVars expands ${VAR} references in the raw YAML content
func expandEnvVars(s string) string {
	return os.Expand(s, os.Getenv)
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
