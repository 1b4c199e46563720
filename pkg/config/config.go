package config

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/arturoeanton/gitlab-tokens-exporter/internal/port"
)

// Refresh interval bounds, in hours.
const (
	DefaultRefreshHours = 6
	MinRefreshHours     = 1
	MaxRefreshHours     = 24
)

// Config holds all application configuration. Values come from defaults, then
// an optional TOML file (CONFIG_FILE), then environment variables.
type Config struct {
	// Server
	Port     string
	AppName  string
	LogLevel string

	// GitLab
	GitLabBaseURL  string
	GitLabToken    string
	GitLabAuthMode string // private-token or bearer
	ProjectsQuery  string

	// Refresh
	RefreshHours          int
	RefreshTimeoutMinutes int // 0 = no timeout
	FetchConcurrency      int
	HTTPTimeoutSeconds    int
	RenderErrorPolicy     string // skip or fail

	// History
	HistoryDriver string // memory, postgres, sqlite
	DatabaseURL   string
	SQLitePath    string
	HistoryLimit  int

	// Scrape auth (disabled when JWTSecret is empty)
	JWTSecret string
	JWTIssuer string
}

// fileConfig mirrors the TOML layout.
type fileConfig struct {
	Server struct {
		Port     string `toml:"port"`
		AppName  string `toml:"app_name"`
		LogLevel string `toml:"log_level"`
	} `toml:"server"`
	GitLab struct {
		BaseURL       string `toml:"base_url"`
		Token         string `toml:"token"`
		AuthMode      string `toml:"auth_mode"`
		ProjectsQuery string `toml:"projects_query"`
	} `toml:"gitlab"`
	Refresh struct {
		IntervalHours      *int   `toml:"interval_hours"`
		TimeoutMinutes     *int   `toml:"timeout_minutes"`
		FetchConcurrency   *int   `toml:"fetch_concurrency"`
		HTTPTimeoutSeconds *int   `toml:"http_timeout_seconds"`
		RenderErrorPolicy  string `toml:"render_error_policy"`
	} `toml:"refresh"`
	History struct {
		Driver      string `toml:"driver"`
		DatabaseURL string `toml:"database_url"`
		SQLitePath  string `toml:"sqlite_path"`
		Limit       *int   `toml:"limit"`
	} `toml:"history"`
	Auth struct {
		JWTSecret string `toml:"jwt_secret"`
		JWTIssuer string `toml:"jwt_issuer"`
	} `toml:"auth"`
}

// Defaults returns the configuration used when nothing is set.
func Defaults() *Config {
	return &Config{
		Port:                  "3000",
		AppName:               "gitlab-tokens-exporter",
		LogLevel:              "info",
		GitLabAuthMode:        "private-token",
		RefreshHours:          DefaultRefreshHours,
		RefreshTimeoutMinutes: 0,
		FetchConcurrency:      4,
		HTTPTimeoutSeconds:    30,
		RenderErrorPolicy:     "skip",
		HistoryDriver:         "memory",
		SQLitePath:            "data/history.db",
		HistoryLimit:          100,
		JWTIssuer:             "gitlab-tokens-exporter",
	}
}

// Load builds the configuration. It fails only when CONFIG_FILE names a file
// that cannot be read or parsed; required values are checked by Validate.
func Load() (*Config, error) {
	cfg := Defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := cfg.overlayFile(path); err != nil {
			return nil, err
		}
	}

	cfg.overlayEnv()
	return cfg, nil
}

func (c *Config) overlayFile(path string) error {
	var fc fileConfig
	md, err := toml.DecodeFile(path, &fc)
	if err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		keys := make([]string, len(undecoded))
		for i, k := range undecoded {
			keys[i] = k.String()
		}
		slog.Warn("config file contains undecoded keys", "path", path, "keys", keys)
	}

	setString(&c.Port, fc.Server.Port)
	setString(&c.AppName, fc.Server.AppName)
	setString(&c.LogLevel, fc.Server.LogLevel)

	setString(&c.GitLabBaseURL, fc.GitLab.BaseURL)
	setString(&c.GitLabToken, fc.GitLab.Token)
	setString(&c.GitLabAuthMode, fc.GitLab.AuthMode)
	setString(&c.ProjectsQuery, fc.GitLab.ProjectsQuery)

	if fc.Refresh.IntervalHours != nil {
		c.RefreshHours = clampRefreshHours(*fc.Refresh.IntervalHours)
	}
	setInt(&c.RefreshTimeoutMinutes, fc.Refresh.TimeoutMinutes)
	setInt(&c.FetchConcurrency, fc.Refresh.FetchConcurrency)
	setInt(&c.HTTPTimeoutSeconds, fc.Refresh.HTTPTimeoutSeconds)
	setString(&c.RenderErrorPolicy, fc.Refresh.RenderErrorPolicy)

	setString(&c.HistoryDriver, fc.History.Driver)
	setString(&c.DatabaseURL, fc.History.DatabaseURL)
	setString(&c.SQLitePath, fc.History.SQLitePath)
	setInt(&c.HistoryLimit, fc.History.Limit)

	setString(&c.JWTSecret, fc.Auth.JWTSecret)
	setString(&c.JWTIssuer, fc.Auth.JWTIssuer)
	return nil
}

func (c *Config) overlayEnv() {
	c.Port = envOrDefault("PORT", c.Port)
	c.AppName = envOrDefault("APP_NAME", c.AppName)
	c.LogLevel = envOrDefault("LOG_LEVEL", c.LogLevel)

	c.GitLabBaseURL = envOrDefault("GITLAB_BASEURL", c.GitLabBaseURL)
	c.GitLabToken = envOrDefault("GITLAB_TOKEN", c.GitLabToken)
	c.GitLabAuthMode = envOrDefault("GITLAB_AUTH_MODE", c.GitLabAuthMode)
	c.ProjectsQuery = envOrDefault("GITLAB_PROJECTS_QUERY", c.ProjectsQuery)

	// DATA_REFRESH_HOURS is the historical name.
	if v := envOrDefault("REFRESH_INTERVAL_HOURS", os.Getenv("DATA_REFRESH_HOURS")); v != "" {
		c.RefreshHours = ParseRefreshHours(v)
	}
	c.RefreshTimeoutMinutes = envOrDefaultInt("REFRESH_TIMEOUT_MINUTES", c.RefreshTimeoutMinutes)
	c.FetchConcurrency = envOrDefaultInt("FETCH_CONCURRENCY", c.FetchConcurrency)
	c.HTTPTimeoutSeconds = envOrDefaultInt("HTTP_TIMEOUT_SECONDS", c.HTTPTimeoutSeconds)
	c.RenderErrorPolicy = envOrDefault("RENDER_ERROR_POLICY", c.RenderErrorPolicy)

	c.HistoryDriver = envOrDefault("HISTORY_DRIVER", c.HistoryDriver)
	c.DatabaseURL = envOrDefault("DATABASE_URL", c.DatabaseURL)
	c.SQLitePath = envOrDefault("SQLITE_PATH", c.SQLitePath)
	c.HistoryLimit = envOrDefaultInt("HISTORY_LIMIT", c.HistoryLimit)

	c.JWTSecret = envOrDefault("SCRAPE_JWT_SECRET", c.JWTSecret)
	c.JWTIssuer = envOrDefault("SCRAPE_JWT_ISSUER", c.JWTIssuer)
}

// Validate reports missing required values and invalid enum values.
func (c *Config) Validate() error {
	if c.GitLabBaseURL == "" {
		return fmt.Errorf("GITLAB_BASEURL: %w", port.ErrMissingBaseURL)
	}
	if !strings.HasPrefix(c.GitLabBaseURL, "http://") && !strings.HasPrefix(c.GitLabBaseURL, "https://") {
		return fmt.Errorf("GITLAB_BASEURL must be an absolute http(s) url, got %q", c.GitLabBaseURL)
	}
	if c.GitLabToken == "" {
		return fmt.Errorf("GITLAB_TOKEN: %w", port.ErrMissingToken)
	}
	switch c.GitLabAuthMode {
	case "private-token", "bearer":
	default:
		return fmt.Errorf("invalid GITLAB_AUTH_MODE %q: must be one of private-token, bearer", c.GitLabAuthMode)
	}
	switch c.RenderErrorPolicy {
	case "skip", "fail":
	default:
		return fmt.Errorf("invalid RENDER_ERROR_POLICY %q: must be one of skip, fail", c.RenderErrorPolicy)
	}
	switch c.HistoryDriver {
	case "memory", "sqlite":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres history driver")
		}
	default:
		return fmt.Errorf("invalid HISTORY_DRIVER %q: must be one of memory, postgres, sqlite", c.HistoryDriver)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1, got %d", c.FetchConcurrency)
	}
	if c.RefreshTimeoutMinutes < 0 || c.HTTPTimeoutSeconds < 0 {
		return fmt.Errorf("timeouts must not be negative")
	}
	return nil
}

// RefreshInterval is the time between two scheduled refreshes.
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.RefreshHours) * time.Hour
}

// RefreshTimeout bounds one refresh; zero means unbounded.
func (c *Config) RefreshTimeout() time.Duration {
	return time.Duration(c.RefreshTimeoutMinutes) * time.Minute
}

// HTTPTimeout bounds one GitLab request; zero means unbounded.
func (c *Config) HTTPTimeout() time.Duration {
	return time.Duration(c.HTTPTimeoutSeconds) * time.Second
}

// JWTEnabled reports whether scrape endpoints require a token.
func (c *Config) JWTEnabled() bool {
	return c.JWTSecret != ""
}

// ParseRefreshHours parses a refresh interval in hours. Anything non-numeric
// or outside [MinRefreshHours, MaxRefreshHours] yields DefaultRefreshHours.
func ParseRefreshHours(v string) int {
	n, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return DefaultRefreshHours
	}
	return clampRefreshHours(n)
}

func clampRefreshHours(n int) int {
	if n < MinRefreshHours || n > MaxRefreshHours {
		return DefaultRefreshHours
	}
	return n
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envOrDefaultInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		n, err := strconv.Atoi(v)
		if err == nil {
			return n
		}
	}
	return fallback
}
