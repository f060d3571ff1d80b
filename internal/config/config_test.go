package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestEtcdEndpoint tests ETCD_HOST normalization
func TestEtcdEndpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		endpoint  string
		expected  string
		expectErr bool
	}{
		{
			name:     "Host with explicit port",
			endpoint: "etcd.internal:4001",
			expected: "etcd.internal:4001",
		},
		{
			name:     "Bare host gets the default port",
			endpoint: "etcd.internal",
			expected: "etcd.internal:" + DefaultEtcdPort,
		},
		{
			name:     "IP with port",
			endpoint: "10.0.0.5:2379",
			expected: "10.0.0.5:2379",
		},
		{
			name:      "Empty endpoint is an error",
			endpoint:  "",
			expectErr: true,
		},
		{
			name:      "Port without host is an error",
			endpoint:  ":2379",
			expectErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			cfg.Registry.Endpoint = tt.endpoint

			endpoint, err := cfg.EtcdEndpoint()
			if tt.expectErr {
				assert.Error(t, err)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.expected, endpoint)
		})
	}
}

// TestLoadConfigFromEnv tests environment variable overrides
func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ETCD_HOST", "etcd.internal:4001")
	t.Setenv("ETCD_PREFIX", "/services")
	t.Setenv("HAPROXY_CONFIG", "/tmp/haproxy.cfg")
	t.Setenv("HAPROXY_PID", "/tmp/haproxy.pid")
	t.Setenv("POLL_INTERVAL", "10s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "etcd.internal:4001", cfg.Registry.Endpoint)
	assert.Equal(t, "/services", cfg.Registry.Prefix)
	assert.Equal(t, "/tmp/haproxy.cfg", cfg.HAProxy.ConfigPath)
	assert.Equal(t, "/tmp/haproxy.pid", cfg.HAProxy.PidPath)
	assert.Equal(t, 10*time.Second, cfg.Sync.Interval)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

// TestLoadConfigMissingEtcdHost tests that an absent ETCD_HOST is fatal
func TestLoadConfigMissingEtcdHost(t *testing.T) {
	t.Setenv("CONFIG_FILE", "")
	t.Setenv("ETCD_HOST", "")

	_, err := LoadConfig()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ETCD_HOST")
}

// TestLoadConfigFromFile tests YAML file loading with env overrides on top
func TestLoadConfigFromFile(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yaml")
	content := `
registry:
  endpoint: file-etcd:2379
  prefix: /file-prefix
haproxy:
  config_path: /file/haproxy.cfg
sync:
  interval: 30s
`
	require.NoError(t, os.WriteFile(configFile, []byte(content), 0644))

	t.Setenv("CONFIG_FILE", configFile)
	t.Setenv("ETCD_HOST", "env-etcd:2379")
	t.Setenv("ETCD_PREFIX", "")
	t.Setenv("HAPROXY_CONFIG", "")
	t.Setenv("HAPROXY_PID", "")
	t.Setenv("POLL_INTERVAL", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)

	// Env wins over file for the endpoint, file wins over defaults elsewhere
	assert.Equal(t, "env-etcd:2379", cfg.Registry.Endpoint)
	assert.Equal(t, "/file-prefix", cfg.Registry.Prefix)
	assert.Equal(t, "/file/haproxy.cfg", cfg.HAProxy.ConfigPath)
	assert.Equal(t, 30*time.Second, cfg.Sync.Interval)
}

// TestValidate tests configuration validation
func TestValidate(t *testing.T) {
	t.Parallel()

	valid := func() *Config {
		cfg := DefaultConfig()
		cfg.Registry.Endpoint = "etcd:2379"
		return cfg
	}

	t.Run("Default config with endpoint is valid", func(t *testing.T) {
		assert.NoError(t, valid().Validate())
	})

	t.Run("Reload script needs no pid path", func(t *testing.T) {
		cfg := valid()
		cfg.HAProxy.ReloadScript = "/usr/local/bin/reload-haproxy.sh"
		cfg.HAProxy.PidPath = ""
		assert.NoError(t, cfg.Validate())
	})

	t.Run("Direct binary requires a pid path", func(t *testing.T) {
		cfg := valid()
		cfg.HAProxy.PidPath = ""
		assert.Error(t, cfg.Validate())
	})

	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "Prefix without leading slash",
			mutate: func(c *Config) { c.Registry.Prefix = "backends" },
		},
		{
			name:   "Zero dial timeout",
			mutate: func(c *Config) { c.Registry.DialTimeout = 0 },
		},
		{
			name:   "No reload mechanism",
			mutate: func(c *Config) { c.HAProxy.Binary = ""; c.HAProxy.ReloadScript = "" },
		},
		{
			name:   "Empty config path",
			mutate: func(c *Config) { c.HAProxy.ConfigPath = "" },
		},
		{
			name:   "Zero poll interval",
			mutate: func(c *Config) { c.Sync.Interval = 0 },
		},
		{
			name:   "Invalid log level",
			mutate: func(c *Config) { c.Logging.Level = "verbose" },
		},
		{
			name:   "Invalid log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
