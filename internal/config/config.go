package config

import (
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v2"
)

// DefaultEtcdPort is used when the ETCD_HOST value carries no explicit port.
const DefaultEtcdPort = "2379"

// Config represents the main configuration structure
type Config struct {
	Registry RegistryConfig `yaml:"registry"`
	HAProxy  HAProxyConfig  `yaml:"haproxy"`
	Sync     SyncConfig     `yaml:"sync"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// RegistryConfig contains etcd connection configuration
type RegistryConfig struct {
	Endpoint       string        `yaml:"endpoint"`
	Prefix         string        `yaml:"prefix"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// HAProxyConfig contains haproxy invocation configuration
type HAProxyConfig struct {
	Binary        string        `yaml:"binary"`
	ConfigPath    string        `yaml:"config_path"`
	PidPath       string        `yaml:"pid_path"`
	TemplateFile  string        `yaml:"template_file"`
	ReloadScript  string        `yaml:"reload_script"`
	ReloadTimeout time.Duration `yaml:"reload_timeout"`
}

// SyncConfig contains reconcile loop configuration
type SyncConfig struct {
	Interval          time.Duration `yaml:"interval"`
	MinReloadInterval time.Duration `yaml:"min_reload_interval"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
	File   string `yaml:"file"`
}

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Registry: RegistryConfig{
			Prefix:         "/backends",
			DialTimeout:    5 * time.Second,
			RequestTimeout: 5 * time.Second,
		},
		HAProxy: HAProxyConfig{
			Binary:        "haproxy",
			ConfigPath:    "/etc/haproxy.cfg",
			PidPath:       "/var/run/haproxy.pid",
			ReloadTimeout: 30 * time.Second,
		},
		Sync: SyncConfig{
			Interval:          5 * time.Second,
			MinReloadInterval: time.Second,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// LoadConfig loads configuration following 12-Factor App methodology:
// defaults, overridden by an optional YAML file (CONFIG_FILE), overridden
// by environment variables. ETCD_HOST is mandatory.
func LoadConfig() (*Config, error) {
	config := DefaultConfig()

	if configFile := os.Getenv("CONFIG_FILE"); configFile != "" {
		data, err := os.ReadFile(configFile)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file %s: %w", configFile, err)
		}
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", configFile, err)
		}
	}

	config.applyEnvOverrides()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// applyEnvOverrides overrides configuration values from environment variables
func (c *Config) applyEnvOverrides() {
	if etcdHost := os.Getenv("ETCD_HOST"); etcdHost != "" {
		c.Registry.Endpoint = etcdHost
	}

	if prefix := os.Getenv("ETCD_PREFIX"); prefix != "" {
		c.Registry.Prefix = prefix
	}

	if configPath := os.Getenv("HAPROXY_CONFIG"); configPath != "" {
		c.HAProxy.ConfigPath = configPath
	}

	if pidPath := os.Getenv("HAPROXY_PID"); pidPath != "" {
		c.HAProxy.PidPath = pidPath
	}

	if interval := os.Getenv("POLL_INTERVAL"); interval != "" {
		if d, err := time.ParseDuration(interval); err == nil && d > 0 {
			c.Sync.Interval = d
		}
	}

	if logLevel := os.Getenv("LOG_LEVEL"); logLevel != "" {
		c.Logging.Level = logLevel
	}
}

// EtcdEndpoint normalizes the configured endpoint to a host:port address,
// applying the default etcd client port when none is given.
func (c *Config) EtcdEndpoint() (string, error) {
	endpoint := strings.TrimSpace(c.Registry.Endpoint)
	if endpoint == "" {
		return "", fmt.Errorf("ETCD_HOST not set")
	}

	if host, port, err := net.SplitHostPort(endpoint); err == nil {
		if host == "" {
			return "", fmt.Errorf("invalid ETCD_HOST %q: empty host", endpoint)
		}
		return net.JoinHostPort(host, port), nil
	}

	// Bare host without a port
	if strings.Contains(endpoint, ":") {
		return "", fmt.Errorf("invalid ETCD_HOST %q", endpoint)
	}

	return net.JoinHostPort(endpoint, DefaultEtcdPort), nil
}

// Validate validates the configuration for correctness
func (c *Config) Validate() error {
	if _, err := c.EtcdEndpoint(); err != nil {
		return err
	}

	if !strings.HasPrefix(c.Registry.Prefix, "/") {
		return fmt.Errorf("registry prefix must start with '/': %s", c.Registry.Prefix)
	}

	if c.Registry.DialTimeout <= 0 {
		return fmt.Errorf("registry dial_timeout must be positive: %v", c.Registry.DialTimeout)
	}

	if c.Registry.RequestTimeout <= 0 {
		return fmt.Errorf("registry request_timeout must be positive: %v", c.Registry.RequestTimeout)
	}

	if c.HAProxy.Binary == "" && c.HAProxy.ReloadScript == "" {
		return fmt.Errorf("either haproxy binary or reload_script must be configured")
	}

	if c.HAProxy.ConfigPath == "" {
		return fmt.Errorf("haproxy config_path cannot be empty")
	}

	// The pid file is only read for the direct -sf handoff; a reload
	// script manages the haproxy process itself.
	if c.HAProxy.ReloadScript == "" && c.HAProxy.PidPath == "" {
		return fmt.Errorf("haproxy pid_path cannot be empty")
	}

	if c.HAProxy.ReloadTimeout <= 0 {
		return fmt.Errorf("haproxy reload_timeout must be positive: %v", c.HAProxy.ReloadTimeout)
	}

	if c.Sync.Interval <= 0 {
		return fmt.Errorf("sync interval must be positive: %v", c.Sync.Interval)
	}

	if c.Sync.MinReloadInterval < 0 {
		return fmt.Errorf("sync min_reload_interval cannot be negative: %v", c.Sync.MinReloadInterval)
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s", c.Logging.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s", c.Logging.Format)
	}

	validOutputs := map[string]bool{"stdout": true, "stderr": true, "file": true}
	if !validOutputs[c.Logging.Output] {
		return fmt.Errorf("invalid log output: %s", c.Logging.Output)
	}

	return nil
}
