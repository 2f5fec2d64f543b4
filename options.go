package gdelt

import (
	"time"

	"github.com/gdeltkit/gdelt-go/internal/config"
)

// Option adjusts the client configuration. Options are applied last, on
// top of environment variables and the config file, so a value passed
// here always wins.
type Option func(*settings)

type settings struct {
	configFile string
	mutate     []func(*config.Config)
}

func (s *settings) override(fn func(*config.Config)) {
	s.mutate = append(s.mutate, fn)
}

// WithConfigFile reads configuration from path instead of the
// conventional ~/.gdelt/config.toml. The file must exist.
func WithConfigFile(path string) Option {
	return func(s *settings) { s.configFile = path }
}

// WithProjectID sets the billing project for warehouse queries and
// enables the warehouse source.
func WithProjectID(id string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.ProjectID = id })
	}
}

// WithCredentialsFile points at a service account key file. Without it
// the warehouse uses ambient application default credentials.
func WithCredentialsFile(path string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Credentials = path })
	}
}

// WithQueryTimeout bounds one warehouse statement end to end.
func WithQueryTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.QueryTimeout = config.Duration(d) })
	}
}

// WithCacheDir relocates the on-disk artifact cache.
func WithCacheDir(dir string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Cache.Dir = dir })
	}
}

// WithCacheTTL sets the freshness window for recent slot artifacts.
func WithCacheTTL(d time.Duration) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Cache.TTL = config.Duration(d) })
	}
}

// WithTimeout sets the per-request HTTP timeout.
func WithTimeout(d time.Duration) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.HTTP.Timeout = config.Duration(d) })
	}
}

// WithMaxRetries sets how many times a failed request is retried.
func WithMaxRetries(n int) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.HTTP.MaxRetries = n })
	}
}

// WithMaxConcurrency sets the number of concurrent slot downloads.
func WithMaxConcurrency(n int) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.HTTP.MaxConcurrency = n })
	}
}

// WithFileBaseURL points file downloads at a mirror.
func WithFileBaseURL(u string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.HTTP.FileBaseURL = u })
	}
}

// WithAPIBaseURL points the analysis services at a different root.
func WithAPIBaseURL(u string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.HTTP.APIBaseURL = u })
	}
}

// WithFallback enables or disables automatic files-to-warehouse
// fallback. It only matters when a project is configured.
func WithFallback(enabled bool) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Source.Fallback = enabled })
	}
}

// WithLogLevel sets the log level: debug, info, warn, or error.
func WithLogLevel(level string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Logging.Level = level })
	}
}

// WithLogFormat selects json or console log output.
func WithLogFormat(format string) Option {
	return func(s *settings) {
		s.override(func(c *config.Config) { c.Logging.Format = format })
	}
}
