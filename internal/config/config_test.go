package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestDefault(t *testing.T) {
	cfg := Default()
	assert.Equal(t, 8000, cfg.ServerPort)
	assert.Equal(t, 600*time.Second, cfg.UpdateInterval)
	assert.Equal(t, "", cfg.PCIP)
	assert.Equal(t, ProviderNBAStats, cfg.Provider)
	assert.Equal(t, DefaultOutputName, filepath.Base(cfg.OutputFile))
	assert.NoError(t, cfg.Validate())
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `{
  "pc_ip": "192.168.1.20",
  "server_port": 9000,
  "update_interval": 120,
  "output_file": "/tmp/feed/standings.json",
  "cors_allow_origins": ["http://display.local"]
}
`)
	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "192.168.1.20", cfg.PCIP)
	assert.Equal(t, 9000, cfg.ServerPort)
	assert.Equal(t, 2*time.Minute, cfg.UpdateInterval)
	assert.Equal(t, "/tmp/feed/standings.json", cfg.OutputFile)
	assert.Equal(t, []string{"http://display.local"}, cfg.CORSAllowOrigins)
	assert.Equal(t, "http://192.168.1.20:9000/standings.json", cfg.ClientURL())
}

func TestLoadPCPortAlias(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"pc_port": 8123}`))
	require.NoError(t, err)
	assert.Equal(t, 8123, cfg.ServerPort)

	cfg, err = Load(writeConfig(t, `{"pc_port": 8123, "server_port": 8124}`))
	require.NoError(t, err)
	assert.Equal(t, 8124, cfg.ServerPort, "server_port wins over pc_port")
}

func TestLoadPartialFileKeepsDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"pc_ip": "10.0.0.5"}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
	assert.Equal(t, DefaultUpdateInterval, cfg.UpdateInterval)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	assert.ErrorContains(t, err, "read config")
}

func TestLoadMalformedFile(t *testing.T) {
	_, err := Load(writeConfig(t, `{"server_port": [`))
	assert.ErrorContains(t, err, "parse config")
}

func TestLoadEnvOverridesFile(t *testing.T) {
	t.Setenv("STANDINGS_SERVER_PORT", "8500")
	t.Setenv("STANDINGS_UPDATE_INTERVAL", "30")
	t.Setenv("CORS_ALLOW_ORIGINS", "http://a.local, http://b.local")
	t.Setenv("RATE_LIMIT_ENABLED", "false")

	cfg, err := Load(writeConfig(t, `{"server_port": 9000, "update_interval": 120}`))
	require.NoError(t, err)
	assert.Equal(t, 8500, cfg.ServerPort)
	assert.Equal(t, 30*time.Second, cfg.UpdateInterval)
	assert.Equal(t, []string{"http://a.local", "http://b.local"}, cfg.CORSAllowOrigins)
	assert.False(t, cfg.RateLimitEnabled)
}

func TestLoadIgnoresUnparsableEnv(t *testing.T) {
	t.Setenv("STANDINGS_SERVER_PORT", "eighty")
	cfg, err := Load(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, DefaultServerPort, cfg.ServerPort)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"port zero", func(c *Config) { c.ServerPort = 0 }, "server_port"},
		{"port too large", func(c *Config) { c.ServerPort = 70000 }, "server_port"},
		{"interval", func(c *Config) { c.UpdateInterval = 0 }, "update_interval"},
		{"metrics clash", func(c *Config) { c.MetricsPort = c.ServerPort }, "metrics_port"},
		{"provider", func(c *Config) { c.Provider = "espn" }, "unknown provider"},
		{"postgres url", func(c *Config) { c.Provider = ProviderPostgres }, "database_url"},
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "log_level"},
		{"rate limit", func(c *Config) { c.RateLimitRequests = 0 }, "rate limit"},
		{"refresh cron", func(c *Config) { c.RefreshCron = "whenever" }, "refresh_cron"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.ErrorContains(t, cfg.Validate(), tt.want)
		})
	}
}

func TestAddr(t *testing.T) {
	cfg := Default()
	assert.Equal(t, ":8000", cfg.Addr())

	cfg.ListenHost = "127.0.0.1"
	cfg.MetricsPort = 9100
	assert.Equal(t, "127.0.0.1:8000", cfg.Addr())
	assert.Equal(t, "127.0.0.1:9100", cfg.MetricsAddr())
}

func TestClientURLDefaultsToLocalhost(t *testing.T) {
	cfg := Default()
	assert.Equal(t, "http://localhost:8000/standings.json", cfg.ClientURL())
}

func TestLoadRejectsInvalidRefreshCron(t *testing.T) {
	_, err := Load(writeConfig(t, `{"refresh_cron": "whenever"}`))
	assert.ErrorContains(t, err, `refresh_cron "whenever"`)
}

func TestLoadAcceptsRefreshCron(t *testing.T) {
	cfg, err := Load(writeConfig(t, `{"refresh_cron": "*/10 * * * *"}`))
	require.NoError(t, err)
	assert.Equal(t, "*/10 * * * *", cfg.RefreshCron)

	t.Setenv("STANDINGS_REFRESH_CRON", "@every 5m")
	cfg, err = Load(writeConfig(t, `{}`))
	require.NoError(t, err)
	assert.Equal(t, "@every 5m", cfg.RefreshCron)
}
