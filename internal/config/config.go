// Package config loads and validates client configuration.
//
// DESIGN: Configuration is layered, later sources win:
//
//	defaults  <  ~/.gdelt/config.toml  <  GDELT_* environment variables
//
// and callers may still override individual fields programmatically
// before the client starts. A missing config file is not an error; a
// present but unparseable one is.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"time"

	"github.com/BurntSushi/toml"

	"github.com/gdeltkit/gdelt-go/internal/monitoring"
)

// Duration decodes TOML strings like "45s" into a time.Duration.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// Config is the root configuration for a client.
type Config struct {
	ProjectID   string `toml:"project_id"`  // billing project for warehouse queries
	Credentials string `toml:"credentials"` // path to a service account key file

	// QueryTimeout bounds one warehouse statement end to end. Zero, the
	// default, imposes none.
	QueryTimeout Duration `toml:"query_timeout"`

	Cache   CacheConfig             `toml:"cache"`
	HTTP    HTTPConfig              `toml:"http"`
	Source  SourceConfig            `toml:"source"`
	Logging monitoring.LoggerConfig `toml:"logging"`
}

// CacheConfig controls the on-disk artifact cache.
type CacheConfig struct {
	Dir         string   `toml:"dir"`          // cache root directory
	TTL         Duration `toml:"ttl"`          // freshness window for recent slot artifacts
	MasterTTL   Duration `toml:"master_ttl"`   // freshness window for the master file list
	StableAfter Duration `toml:"stable_after"` // slot age past which artifacts cache indefinitely
}

// HTTPConfig controls outbound HTTP behavior.
type HTTPConfig struct {
	Timeout        Duration `toml:"timeout"`         // per-request timeout
	MaxRetries     int      `toml:"max_retries"`     // attempts beyond the first
	MaxConcurrency int      `toml:"max_concurrency"` // in-flight slot downloads
	FileBaseURL    string   `toml:"file_base_url"`   // file server root, overridable for mirrors
	APIBaseURL     string   `toml:"api_base_url"`    // query API root
}

// SourceConfig controls data source selection.
type SourceConfig struct {
	Fallback bool `toml:"fallback"` // fall back from files to the warehouse on upstream trouble
}

// DefaultPath returns the conventional config file location.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".gdelt", "config.toml")
}

func defaultCacheDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "gdelt-cache")
	}
	return filepath.Join(home, ".gdelt", "cache")
}

// Default returns the configuration used when no file and no
// environment overrides are present.
func Default() Config {
	return Config{
		Cache: CacheConfig{
			Dir:         defaultCacheDir(),
			TTL:         Duration(time.Hour),
			MasterTTL:   Duration(5 * time.Minute),
			StableAfter: Duration(30 * 24 * time.Hour),
		},
		HTTP: HTTPConfig{
			Timeout:        Duration(30 * time.Second),
			MaxRetries:     5,
			MaxConcurrency: 10,
			FileBaseURL:    "https://data.gdeltproject.org",
			APIBaseURL:     "https://api.gdeltproject.org/api/v2",
		},
		Source: SourceConfig{
			Fallback: true,
		},
		Logging: monitoring.LoggerConfig{
			Level: "info",
		},
	}
}

// expandEnvWithDefaults expands environment variables with support for
// default values. Supports both ${VAR} and ${VAR:-default} syntax.
func expandEnvWithDefaults(s string) string {
	re := regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		parts := re.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		varName := parts[1]
		defaultValue := ""
		if len(parts) > 2 {
			defaultValue = parts[2]
		}

		if value := os.Getenv(varName); value != "" {
			return value
		}

		return defaultValue
	})
}

// Load resolves the full configuration. With an empty path the
// conventional file is consulted and may be absent; an explicit path
// must exist.
func Load(path string) (*Config, error) {
	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			loaded, err := fromBytes(data, cfg)
			if err != nil {
				return nil, fmt.Errorf("config file '%s': %w", path, err)
			}
			cfg = *loaded
		case errors.Is(err, fs.ErrNotExist) && !explicit:
			// No file, defaults apply.
		default:
			return nil, fmt.Errorf("failed to read config file '%s': %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// LoadFromBytes parses configuration from raw TOML bytes on top of the
// defaults. Supports ${VAR:-default} env var expansion, env overrides,
// and validation.
func LoadFromBytes(data []byte) (*Config, error) {
	cfg, err := fromBytes(data, Default())
	if err != nil {
		return nil, err
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	cfg.expandPaths()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func fromBytes(data []byte, base Config) (*Config, error) {
	expanded := expandEnvWithDefaults(string(data))

	cfg := base
	if err := toml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	return &cfg, nil
}

// applyEnvOverrides applies GDELT_* environment variables on top of
// whatever the file provided.
func (c *Config) applyEnvOverrides() error {
	envString("GDELT_PROJECT_ID", &c.ProjectID)
	envString("GDELT_CREDENTIALS", &c.Credentials)
	envString("GDELT_CACHE_DIR", &c.Cache.Dir)
	envString("GDELT_FILE_BASE_URL", &c.HTTP.FileBaseURL)
	envString("GDELT_API_BASE_URL", &c.HTTP.APIBaseURL)
	envString("GDELT_LOG_LEVEL", &c.Logging.Level)
	envString("GDELT_LOG_FORMAT", &c.Logging.Format)

	if err := envDuration("GDELT_CACHE_TTL", &c.Cache.TTL); err != nil {
		return err
	}
	if err := envDuration("GDELT_TIMEOUT", &c.HTTP.Timeout); err != nil {
		return err
	}
	if err := envDuration("GDELT_QUERY_TIMEOUT", &c.QueryTimeout); err != nil {
		return err
	}
	if err := envInt("GDELT_MAX_RETRIES", &c.HTTP.MaxRetries); err != nil {
		return err
	}
	if err := envInt("GDELT_MAX_CONCURRENCY", &c.HTTP.MaxConcurrency); err != nil {
		return err
	}
	if err := envBool("GDELT_FALLBACK", &c.Source.Fallback); err != nil {
		return err
	}
	return nil
}

func envString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func envInt(key string, dst *int) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = n
	return nil
}

func envBool(key string, dst *bool) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = b
	return nil
}

func envDuration(key string, dst *Duration) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("%s: %w", key, err)
	}
	*dst = Duration(d)
	return nil
}

// expandPaths resolves the home-relative shorthand in path fields.
func (c *Config) expandPaths() {
	c.Credentials = expandHome(c.Credentials)
	c.Cache.Dir = expandHome(c.Cache.Dir)
}

func expandHome(p string) string {
	if p != "~" && !hasHomePrefix(p) {
		return p
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return p
	}
	if p == "~" {
		return home
	}
	return filepath.Join(home, p[2:])
}

func hasHomePrefix(p string) bool {
	return len(p) >= 2 && p[0] == '~' && (p[1] == '/' || p[1] == filepath.Separator)
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Cache.Dir == "" {
		return fmt.Errorf("cache.dir is required")
	}
	if c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive")
	}
	if c.Cache.MasterTTL <= 0 {
		return fmt.Errorf("cache.master_ttl must be positive")
	}
	if c.Cache.StableAfter <= 0 {
		return fmt.Errorf("cache.stable_after must be positive")
	}

	if c.QueryTimeout < 0 {
		return fmt.Errorf("query_timeout cannot be negative")
	}

	if c.HTTP.Timeout <= 0 {
		return fmt.Errorf("http.timeout must be positive")
	}
	if c.HTTP.MaxRetries < 0 || c.HTTP.MaxRetries > 20 {
		return fmt.Errorf("invalid http.max_retries: %d (must be 0-20)", c.HTTP.MaxRetries)
	}
	if c.HTTP.MaxConcurrency < 1 || c.HTTP.MaxConcurrency > 64 {
		return fmt.Errorf("invalid http.max_concurrency: %d (must be 1-64)", c.HTTP.MaxConcurrency)
	}
	if err := validateBaseURL("http.file_base_url", c.HTTP.FileBaseURL); err != nil {
		return err
	}
	if err := validateBaseURL("http.api_base_url", c.HTTP.APIBaseURL); err != nil {
		return err
	}

	switch c.Logging.Format {
	case "", "json", "console":
	default:
		return fmt.Errorf("invalid logging.format: %q (must be json or console)", c.Logging.Format)
	}

	return nil
}

func validateBaseURL(field, raw string) error {
	if raw == "" {
		return fmt.Errorf("%s is required", field)
	}
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid %s: scheme must be http or https", field)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid %s: missing host", field)
	}
	return nil
}
