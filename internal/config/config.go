// Package config provides the feed's configuration, loaded once at startup
// from defaults, an optional config file, and environment variables (in
// that order; later sources win). The result is passed explicitly to every
// component.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

// --------------------------------------------------------------------------
// Defaults
// --------------------------------------------------------------------------

const (
	DefaultConfigFile     = "config.json"
	DefaultServerPort     = 8000
	DefaultUpdateInterval = 600 * time.Second
	DefaultFetchTimeout   = 30 * time.Second
	DefaultDataDir        = "NBAStandingsFetcher"
	DefaultOutputName     = "standings.json"

	ProviderNBAStats = "nbastats"
	ProviderPostgres = "postgres"
)

// --------------------------------------------------------------------------
// Config struct
// --------------------------------------------------------------------------

type Config struct {
	// Serving endpoint
	PCIP       string // address the display client is told to poll; informational
	ListenHost string
	ServerPort int

	// Refresh scheduling
	UpdateInterval time.Duration
	RefreshCron    string
	RetryBackoff   time.Duration
	FetchTimeout   time.Duration

	// Snapshot and logs
	OutputFile string
	LogFile    string
	LogLevel   string

	// Upstream provider
	Provider          string
	Season            string
	SeasonType        string
	NBAStatsURL       string
	RequestsPerMinute int
	DatabaseURL       string

	// CORS
	CORSAllowOrigins []string

	// Rate limiting
	RateLimitEnabled  bool
	RateLimitRequests int
	RateLimitWindow   time.Duration

	// Ops endpoint (/health, /metrics); 0 disables it
	MetricsPort int
}

// fileConfig mirrors the on-disk keys. Pointers tell "absent" from zero.
// Durations are whole seconds.
type fileConfig struct {
	PCIP              *string  `yaml:"pc_ip"`
	ListenHost        *string  `yaml:"listen_host"`
	ServerPort        *int     `yaml:"server_port"`
	PCPort            *int     `yaml:"pc_port"`
	UpdateInterval    *int     `yaml:"update_interval"`
	RefreshCron       *string  `yaml:"refresh_cron"`
	RetryBackoff      *int     `yaml:"retry_backoff"`
	FetchTimeout      *int     `yaml:"fetch_timeout"`
	OutputFile        *string  `yaml:"output_file"`
	LogFile           *string  `yaml:"log_file"`
	LogLevel          *string  `yaml:"log_level"`
	Provider          *string  `yaml:"provider"`
	Season            *string  `yaml:"season"`
	SeasonType        *string  `yaml:"season_type"`
	NBAStatsURL       *string  `yaml:"nba_stats_url"`
	RequestsPerMinute *int     `yaml:"requests_per_minute"`
	DatabaseURL       *string  `yaml:"database_url"`
	CORSAllowOrigins  []string `yaml:"cors_allow_origins"`
	RateLimitEnabled  *bool    `yaml:"rate_limit_enabled"`
	RateLimitRequests *int     `yaml:"rate_limit_requests"`
	RateLimitWindow   *int     `yaml:"rate_limit_window"`
	MetricsPort       *int     `yaml:"metrics_port"`
}

// Default returns the configuration used when nothing is set.
func Default() *Config {
	return &Config{
		PCIP:       "",
		ListenHost: "",
		ServerPort: DefaultServerPort,

		UpdateInterval: DefaultUpdateInterval,
		FetchTimeout:   DefaultFetchTimeout,

		OutputFile: DefaultOutputFile(),
		LogLevel:   "info",

		Provider:          ProviderNBAStats,
		SeasonType:        "Regular Season",
		NBAStatsURL:       "https://stats.nba.com/stats",
		RequestsPerMinute: 30,

		CORSAllowOrigins: []string{"*"},

		RateLimitEnabled:  true,
		RateLimitRequests: 120,
		RateLimitWindow:   60 * time.Second,
	}
}

// Load builds the configuration. An empty path means DefaultPath(), which
// may be absent; an explicit path must exist.
func Load(path string) (*Config, error) {
	cfg := Default()

	explicit := path != ""
	if !explicit {
		path = DefaultPath()
	}
	if err := cfg.applyFile(path, explicit); err != nil {
		return nil, err
	}
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyFile(path string, required bool) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) && !required {
			return nil
		}
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}

	setString(&c.PCIP, fc.PCIP)
	setString(&c.ListenHost, fc.ListenHost)
	setInt(&c.ServerPort, fc.PCPort)
	setInt(&c.ServerPort, fc.ServerPort)
	setSeconds(&c.UpdateInterval, fc.UpdateInterval)
	setString(&c.RefreshCron, fc.RefreshCron)
	setSeconds(&c.RetryBackoff, fc.RetryBackoff)
	setSeconds(&c.FetchTimeout, fc.FetchTimeout)
	setString(&c.OutputFile, fc.OutputFile)
	setString(&c.LogFile, fc.LogFile)
	setString(&c.LogLevel, fc.LogLevel)
	setString(&c.Provider, fc.Provider)
	setString(&c.Season, fc.Season)
	setString(&c.SeasonType, fc.SeasonType)
	setString(&c.NBAStatsURL, fc.NBAStatsURL)
	setInt(&c.RequestsPerMinute, fc.RequestsPerMinute)
	setString(&c.DatabaseURL, fc.DatabaseURL)
	if len(fc.CORSAllowOrigins) > 0 {
		c.CORSAllowOrigins = fc.CORSAllowOrigins
	}
	if fc.RateLimitEnabled != nil {
		c.RateLimitEnabled = *fc.RateLimitEnabled
	}
	setInt(&c.RateLimitRequests, fc.RateLimitRequests)
	setSeconds(&c.RateLimitWindow, fc.RateLimitWindow)
	setInt(&c.MetricsPort, fc.MetricsPort)
	return nil
}

func (c *Config) applyEnv() {
	c.PCIP = envOr("STANDINGS_PC_IP", c.PCIP)
	c.ListenHost = envOr("STANDINGS_LISTEN_HOST", c.ListenHost)
	c.ServerPort = envInt("STANDINGS_SERVER_PORT", c.ServerPort)

	c.UpdateInterval = envSeconds("STANDINGS_UPDATE_INTERVAL", c.UpdateInterval)
	c.RefreshCron = envOr("STANDINGS_REFRESH_CRON", c.RefreshCron)
	c.RetryBackoff = envSeconds("STANDINGS_RETRY_BACKOFF", c.RetryBackoff)
	c.FetchTimeout = envSeconds("STANDINGS_FETCH_TIMEOUT", c.FetchTimeout)

	c.OutputFile = envOr("STANDINGS_OUTPUT_FILE", c.OutputFile)
	c.LogFile = envOr("STANDINGS_LOG_FILE", c.LogFile)
	c.LogLevel = envOr("LOG_LEVEL", c.LogLevel)

	c.Provider = envOr("STANDINGS_PROVIDER", c.Provider)
	c.Season = envOr("STANDINGS_SEASON", c.Season)
	c.SeasonType = envOr("STANDINGS_SEASON_TYPE", c.SeasonType)
	c.NBAStatsURL = envOr("NBA_STATS_URL", c.NBAStatsURL)
	c.RequestsPerMinute = envInt("NBA_STATS_RPM", c.RequestsPerMinute)
	c.DatabaseURL = envOr("DATABASE_URL", c.DatabaseURL)

	c.CORSAllowOrigins = envList("CORS_ALLOW_ORIGINS", c.CORSAllowOrigins)

	c.RateLimitEnabled = envBool("RATE_LIMIT_ENABLED", c.RateLimitEnabled)
	c.RateLimitRequests = envInt("RATE_LIMIT_REQUESTS", c.RateLimitRequests)
	c.RateLimitWindow = envSeconds("RATE_LIMIT_WINDOW", c.RateLimitWindow)

	c.MetricsPort = envInt("METRICS_PORT", c.MetricsPort)
}

// Validate rejects settings the feed cannot run with.
func (c *Config) Validate() error {
	if c.ServerPort <= 0 || c.ServerPort > 65535 {
		return fmt.Errorf("server_port %d out of range", c.ServerPort)
	}
	if c.MetricsPort < 0 || c.MetricsPort > 65535 {
		return fmt.Errorf("metrics_port %d out of range", c.MetricsPort)
	}
	if c.MetricsPort != 0 && c.MetricsPort == c.ServerPort {
		return fmt.Errorf("metrics_port must differ from server_port")
	}
	if c.UpdateInterval <= 0 {
		return fmt.Errorf("update_interval must be positive")
	}
	if c.RefreshCron != "" {
		if _, err := cron.ParseStandard(c.RefreshCron); err != nil {
			return fmt.Errorf("refresh_cron %q: %w", c.RefreshCron, err)
		}
	}
	if c.RetryBackoff < 0 || c.FetchTimeout < 0 {
		return fmt.Errorf("retry_backoff and fetch_timeout must not be negative")
	}
	if c.OutputFile == "" {
		return fmt.Errorf("output_file must be set")
	}
	if _, err := ParseLevel(c.LogLevel); err != nil {
		return err
	}
	switch c.Provider {
	case ProviderNBAStats:
	case ProviderPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("database_url is required for the %s provider", ProviderPostgres)
		}
	default:
		return fmt.Errorf("unknown provider %q", c.Provider)
	}
	if c.RateLimitEnabled && (c.RateLimitRequests <= 0 || c.RateLimitWindow <= 0) {
		return fmt.Errorf("rate limit needs positive requests and window")
	}
	return nil
}

// Addr is the serving endpoint's listen address.
func (c *Config) Addr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.ServerPort))
}

// MetricsAddr is the ops endpoint's listen address.
func (c *Config) MetricsAddr() string {
	return net.JoinHostPort(c.ListenHost, strconv.Itoa(c.MetricsPort))
}

// ClientURL is the URL a display client should poll for the snapshot.
func (c *Config) ClientURL() string {
	host := c.PCIP
	if host == "" {
		host = "localhost"
	}
	return fmt.Sprintf("http://%s/%s", net.JoinHostPort(host, strconv.Itoa(c.ServerPort)), filepath.Base(c.OutputFile))
}

// ParseLevel maps a level name onto slog.
func ParseLevel(s string) (slog.Level, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.TrimSpace(s))); err != nil {
		return 0, fmt.Errorf("log_level %q: %w", s, err)
	}
	return lvl, nil
}

// DefaultPath is config.json next to the executable.
func DefaultPath() string {
	exe, err := os.Executable()
	if err != nil {
		return DefaultConfigFile
	}
	return filepath.Join(filepath.Dir(exe), DefaultConfigFile)
}

// DefaultOutputFile is standings.json in the per-user config directory
// (%AppData% on Windows).
func DefaultOutputFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return DefaultOutputName
	}
	return filepath.Join(dir, DefaultDataDir, DefaultOutputName)
}

// --------------------------------------------------------------------------
// File helpers
// --------------------------------------------------------------------------

func setString(dst *string, v *string) {
	if v != nil {
		*dst = *v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func setSeconds(dst *time.Duration, v *int) {
	if v != nil {
		*dst = time.Duration(*v) * time.Second
	}
}

// --------------------------------------------------------------------------
// Env helpers
// --------------------------------------------------------------------------

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envSeconds(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return fallback
}

func envList(key string, fallback []string) []string {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		result := make([]string, 0, len(parts))
		for _, p := range parts {
			if trimmed := strings.TrimSpace(p); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return fallback
}
