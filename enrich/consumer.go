// CLAUDE:SUMMARY Enrichment consumer: content re-fetch through the rendering backend and best-effort cover image caching.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/hazyhaar/courrier/blobstore"
	"github.com/hazyhaar/courrier/markup"
	"github.com/hazyhaar/courrier/store"
)

// Consumer processes enrichment jobs. Idempotent against redelivery:
// re-applying content or re-caching a cover overwrites the same rows and
// keys.
type Consumer struct {
	cfg    Config
	st     *store.Store
	blobs  blobstore.Store
	render *markup.Renderer
	client *http.Client
	// imageClient fetches feed-supplied cover URLs; redirects are
	// re-validated so a safe URL cannot bounce to a private address.
	imageClient *http.Client
	logger      *slog.Logger
}

// NewConsumer creates the consumer. logger may be nil.
func NewConsumer(cfg Config, st *store.Store, blobs blobstore.Store, logger *slog.Logger) *Consumer {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	validate := cfg.URLValidator
	return &Consumer{
		cfg:    cfg,
		st:     st,
		blobs:  blobs,
		render: markup.New(),
		client: &http.Client{Timeout: cfg.Timeout},
		imageClient: &http.Client{
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
		logger: logger,
	}
}

// Handle processes one job. Returning nil acks; returning an error nacks for
// redelivery. Only backend 5xx and transport failures are worth redelivering;
// everything else acks so the queue never wedges on unprocessable jobs.
func (c *Consumer) Handle(ctx context.Context, job *Job) error {
	if !c.cfg.Enabled {
		return nil
	}

	switch job.JobType {
	case JobImageCache:
		return c.cacheImage(ctx, job)
	case JobContentEnrichment, "":
		return c.enrichContent(ctx, job)
	default:
		c.logger.Warn("enrich: unknown job type, acking", "id", job.ID, "type", job.JobType)
		return nil
	}
}

// renderResult is the rendering backend's response body.
type renderResult struct {
	Title string `json:"title"`
	HTML  string `json:"html"`
}

func (c *Consumer) enrichContent(ctx context.Context, job *Job) error {
	doc, err := c.st.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	if doc == nil {
		// The document may have been deleted since enqueue. Non-fatal.
		return nil
	}

	result, retryable, err := c.callBackend(ctx, job.URL)
	if err != nil {
		if retryable {
			return err
		}
		c.logger.Warn("enrich: backend rejected url, acking",
			"id", job.ID, "url", job.URL, "error", err.Error())
		return nil
	}

	sanitized := c.render.Sanitize(result.HTML)
	md := c.render.ToMarkdown(sanitized)
	words := markup.WordCount(md)

	title := doc.Title
	if strings.TrimSpace(result.Title) != "" {
		title = strings.TrimSpace(result.Title)
	}
	return c.st.UpdateDocumentContent(ctx, doc.ID, title, sanitized, md,
		words, markup.ReadingTime(words))
}

// callBackend fetches rendered content. retryable is true for transport
// failures and 5xx responses.
func (c *Consumer) callBackend(ctx context.Context, contentURL string) (*renderResult, bool, error) {
	endpoint := strings.TrimRight(c.cfg.BackendURL, "/") + "/render?url=" + url.QueryEscape(contentURL)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, false, err
	}
	if c.cfg.BackendToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.BackendToken)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, true, fmt.Errorf("backend call: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return nil, true, fmt.Errorf("backend http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("backend http %d", resp.StatusCode)
	}

	var result renderResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, false, fmt.Errorf("decode backend response: %w", err)
	}
	return &result, false, nil
}

func (c *Consumer) cacheImage(ctx context.Context, job *Job) error {
	doc, err := c.st.GetDocument(ctx, job.DocumentID)
	if err != nil {
		return err
	}
	if doc == nil || job.URL == "" {
		// Missing document or missing cover candidate: nothing to cache.
		return nil
	}

	// Cover URLs come from feed content; a blocked URL stays blocked, so ack.
	if err := c.cfg.URLValidator(job.URL); err != nil {
		c.logger.Warn("enrich: cover url blocked, acking",
			"id", job.ID, "url", job.URL, "error", err.Error())
		return nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, job.URL, nil)
	if err != nil {
		return nil
	}
	resp, err := c.imageClient.Do(req)
	if err != nil {
		return fmt.Errorf("fetch cover: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 {
		return fmt.Errorf("cover http %d", resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		c.logger.Warn("enrich: cover fetch rejected, acking",
			"id", job.ID, "url", job.URL, "status", resp.StatusCode)
		return nil
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, c.cfg.MaxImageBytes))
	if err != nil {
		return fmt.Errorf("read cover: %w", err)
	}
	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	key := "covers/" + doc.ID
	if err := c.blobs.Put(ctx, key, data, contentType); err != nil {
		return fmt.Errorf("store cover: %w", err)
	}
	return c.st.SetCoverImage(ctx, doc.ID, key)
}
