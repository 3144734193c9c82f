// Package config loads the bridge configuration from file and environment.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the bridge configuration.
type Config struct {
	// Device configuration
	DeviceNamePrefix string `mapstructure:"device_name_prefix"`

	// Station backend: "networkmanager" or "simulator"
	Station string `mapstructure:"station"`

	// WiFi timing configuration (milliseconds)
	ScanTimeoutMs      int `mapstructure:"scan_timeout_ms"`
	ScanStalenessMs    int `mapstructure:"scan_staleness_ms"`
	ListPollIntervalMs int `mapstructure:"list_poll_interval_ms"`
	ListPollAttempts   int `mapstructure:"list_poll_attempts"`
	ListLimit          int `mapstructure:"list_limit"`
	NotifyPeriodMs     int `mapstructure:"notify_period_ms"`
	ConnectWaitMs      int `mapstructure:"connect_wait_ms"`

	// Database configuration
	DatabasePath string `mapstructure:"database_path"`

	// Logging configuration
	LogLevel string `mapstructure:"log_level"`
	LogFile  string `mapstructure:"log_file"`

	// Diagnostic API configuration
	APIEnabled bool   `mapstructure:"api_enabled"`
	APIHost    string `mapstructure:"api_host"`
	APIPort    int    `mapstructure:"api_port"`
}

// DefaultConfig returns a configuration with default values. The timing
// defaults match the companion app's expectations.
func DefaultConfig() *Config {
	return &Config{
		DeviceNamePrefix:   "ESP32",
		Station:            "networkmanager",
		ScanTimeoutMs:      1000,
		ScanStalenessMs:    10000,
		ListPollIntervalMs: 500,
		ListPollAttempts:   20,
		ListLimit:          10,
		NotifyPeriodMs:     1000,
		ConnectWaitMs:      5000,
		DatabasePath:       "./bridge.db",
		LogLevel:           "info",
		LogFile:            "",
		APIEnabled:         true,
		APIHost:            "127.0.0.1",
		APIPort:            8081,
	}
}

// Load loads configuration from file and environment variables.
func Load(configFile string) (*Config, error) {
	cfg := DefaultConfig()

	v := viper.New()
	setDefaults(v, cfg)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/wifi-bridge")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wifi-bridge"))
		}
	}

	v.SetEnvPrefix("BRIDGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		// Config file not found is OK, we'll use defaults
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper, cfg *Config) {
	v.SetDefault("device_name_prefix", cfg.DeviceNamePrefix)
	v.SetDefault("station", cfg.Station)
	v.SetDefault("scan_timeout_ms", cfg.ScanTimeoutMs)
	v.SetDefault("scan_staleness_ms", cfg.ScanStalenessMs)
	v.SetDefault("list_poll_interval_ms", cfg.ListPollIntervalMs)
	v.SetDefault("list_poll_attempts", cfg.ListPollAttempts)
	v.SetDefault("list_limit", cfg.ListLimit)
	v.SetDefault("notify_period_ms", cfg.NotifyPeriodMs)
	v.SetDefault("connect_wait_ms", cfg.ConnectWaitMs)
	v.SetDefault("database_path", cfg.DatabasePath)
	v.SetDefault("log_level", cfg.LogLevel)
	v.SetDefault("log_file", cfg.LogFile)
	v.SetDefault("api_enabled", cfg.APIEnabled)
	v.SetDefault("api_host", cfg.APIHost)
	v.SetDefault("api_port", cfg.APIPort)
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.DeviceNamePrefix == "" {
		return fmt.Errorf("device_name_prefix is required")
	}

	if c.Station != "networkmanager" && c.Station != "simulator" {
		return fmt.Errorf("station must be one of: networkmanager, simulator")
	}

	if c.DatabasePath == "" {
		return fmt.Errorf("database_path is required")
	}

	for name, value := range map[string]int{
		"scan_timeout_ms":       c.ScanTimeoutMs,
		"scan_staleness_ms":     c.ScanStalenessMs,
		"list_poll_interval_ms": c.ListPollIntervalMs,
		"list_poll_attempts":    c.ListPollAttempts,
		"list_limit":            c.ListLimit,
		"notify_period_ms":      c.NotifyPeriodMs,
		"connect_wait_ms":       c.ConnectWaitMs,
	} {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", name)
		}
	}

	validLogLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLogLevels[c.LogLevel] {
		return fmt.Errorf("log_level must be one of: debug, info, warn, error")
	}

	if c.APIEnabled && (c.APIPort <= 0 || c.APIPort > 65535) {
		return fmt.Errorf("api_port must be a valid port")
	}

	return nil
}

// ScanTimeout returns the active scan bound as a duration.
func (c *Config) ScanTimeout() time.Duration {
	return time.Duration(c.ScanTimeoutMs) * time.Millisecond
}

// ScanStaleness returns the staleness threshold as a duration.
func (c *Config) ScanStaleness() time.Duration {
	return time.Duration(c.ScanStalenessMs) * time.Millisecond
}

// ListPollInterval returns the list read poll increment as a duration.
func (c *Config) ListPollInterval() time.Duration {
	return time.Duration(c.ListPollIntervalMs) * time.Millisecond
}

// NotifyPeriod returns the status notification cadence as a duration.
func (c *Config) NotifyPeriod() time.Duration {
	return time.Duration(c.NotifyPeriodMs) * time.Millisecond
}

// ConnectWait returns the bound on a connect call's immediate result.
func (c *Config) ConnectWait() time.Duration {
	return time.Duration(c.ConnectWaitMs) * time.Millisecond
}

// APIAddr returns the diagnostic API listen address.
func (c *Config) APIAddr() string {
	return fmt.Sprintf("%s:%d", c.APIHost, c.APIPort)
}
