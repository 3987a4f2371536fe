// CLAUDE:SUMMARY HTTP feed fetcher with conditional GET, content-hash change detection, and SSRF validation on redirects.
package feedpoll

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hazyhaar/courrier/safeurl"
)

// FetchResult contains the outcome of one feed fetch.
type FetchResult struct {
	Body       []byte
	StatusCode int
	Hash       string // SHA-256 of body
	ETag       string // from response header
	// Changed is false on 304 Not Modified or when the body hash matches the
	// previous fetch: a successful poll with nothing new.
	Changed bool
}

// FetchConfig configures the fetcher.
type FetchConfig struct {
	// Timeout bounds one request. Default: 30s.
	Timeout time.Duration `yaml:"timeout"`
	// MaxBytes bounds the response body. Default: 10MB.
	MaxBytes int64 `yaml:"max_bytes"`
	// UserAgent sent with requests.
	UserAgent string `yaml:"user_agent"`
	// URLValidator validates URLs before fetch and on every redirect.
	// Default: safeurl.Validate.
	URLValidator func(string) error `yaml:"-"`
}

func (c *FetchConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "courrier-feedpoll/1.0"
	}
	if c.URLValidator == nil {
		c.URLValidator = safeurl.Validate
	}
}

// Fetcher performs feed requests with conditional GET.
type Fetcher struct {
	client *http.Client
	config FetchConfig
}

// NewFetcher creates a Fetcher with SSRF protection on redirects.
func NewFetcher(cfg FetchConfig) *Fetcher {
	cfg.defaults()
	validate := cfg.URLValidator
	return &Fetcher{
		client: &http.Client{
			Timeout: cfg.Timeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= 5 {
					return fmt.Errorf("too many redirects (%d)", len(via))
				}
				if err := validate(req.URL.String()); err != nil {
					return fmt.Errorf("redirect blocked: %w", err)
				}
				return nil
			},
		},
		config: cfg,
	}
}

// Fetch retrieves a feed URL. etag and prevHash come from the feed's last
// successful fetch; a 304 response or an identical body hash returns
// Changed=false.
func (f *Fetcher) Fetch(ctx context.Context, url, etag, prevHash string) (*FetchResult, error) {
	if err := f.config.URLValidator(url); err != nil {
		return nil, fmt.Errorf("URL blocked: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("new request: %w", err)
	}
	req.Header.Set("User-Agent", f.config.UserAgent)
	if etag != "" {
		req.Header.Set("If-None-Match", etag)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotModified {
		return &FetchResult{
			StatusCode: http.StatusNotModified,
			ETag:       etag,
			Hash:       prevHash,
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		return nil, fmt.Errorf("http %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBytes))
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}

	h := sha256.Sum256(body)
	hash := fmt.Sprintf("%x", h)

	return &FetchResult{
		Body:       body,
		StatusCode: resp.StatusCode,
		Hash:       hash,
		ETag:       resp.Header.Get("ETag"),
		Changed:    prevHash == "" || hash != prevHash,
	}, nil
}
