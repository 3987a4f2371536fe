package feedpoll

import (
	"time"

	"github.com/hazyhaar/courrier/store"
)

// deactivateThreshold is the consecutive-error count at which a feed is
// turned off.
const deactivateThreshold = 5

// Config configures the poll scheduler.
type Config struct {
	// CheckInterval is how often to look for due feeds. Default: 1 minute.
	CheckInterval time.Duration `yaml:"check_interval"`
	// Fetch configures the HTTP fetcher.
	Fetch FetchConfig `yaml:"fetch"`
	// LowQuality marks a freshly created document as a candidate for
	// content enrichment. Nil disables the content-enrichment handoff.
	LowQuality func(*store.Document) bool `yaml:"-"`
}

func (c *Config) defaults() {
	if c.CheckInterval <= 0 {
		c.CheckInterval = time.Minute
	}
}

// MinWordCount returns a LowQuality heuristic flagging documents below n
// words.
func MinWordCount(n int) func(*store.Document) bool {
	return func(d *store.Document) bool {
		return d.WordCount < n
	}
}
