package enrich

import (
	"time"

	"github.com/hazyhaar/courrier/safeurl"
)

// Config configures the enrichment consumer.
type Config struct {
	// Enabled turns the rendering backend on. When false the consumer acks
	// every job without doing work.
	Enabled bool `yaml:"enabled"`
	// BackendURL is the rendering backend base URL, e.g.
	// "https://render.internal". The consumer calls {BackendURL}/render.
	BackendURL string `yaml:"backend_url"`
	// BackendToken is sent as a bearer token when set.
	BackendToken string `yaml:"backend_token"`
	// Timeout bounds each backend call. Default: 60s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxImageBytes bounds cover image downloads. Default: 5MB.
	MaxImageBytes int64 `yaml:"max_image_bytes"`
	// URLValidator validates cover image URLs before fetch and on every
	// redirect. Cover URLs come from feed content, unlike the
	// operator-configured BackendURL, which is exempt. Default:
	// safeurl.Validate.
	URLValidator func(string) error `yaml:"-"`
}

func (c *Config) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.MaxImageBytes <= 0 {
		c.MaxImageBytes = 5 * 1024 * 1024
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.Validate
	}
}
