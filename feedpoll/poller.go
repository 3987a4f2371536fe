// CLAUDE:SUMMARY Feed poll scheduler: due-feed selection, per-item dedup, document creation, error streaks, enrichment handoff.
// Package feedpoll polls active feeds and turns new items into documents.
//
// Each tick is an independent, stateless pass: due-feed selection is a pure
// function of stored state, and per-item identity lives in the feed_items
// unique keys, so overlapping pollers converge instead of duplicating.
package feedpoll

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/courrier/enrich"
	"github.com/hazyhaar/courrier/feedpoll/internal/feed"
	"github.com/hazyhaar/courrier/idgen"
	"github.com/hazyhaar/courrier/identity"
	"github.com/hazyhaar/courrier/markup"
	"github.com/hazyhaar/courrier/store"
)

// Enqueuer hands new-item followup jobs to the enrichment queue.
// *enrich.Queue satisfies it.
type Enqueuer interface {
	Publish(ctx context.Context, job *enrich.Job) error
}

// Poller polls due feeds and ingests their new items.
type Poller struct {
	cfg     Config
	st      *store.Store
	fetcher *Fetcher
	norm    *identity.Normalizer
	render  *markup.Renderer
	queue   Enqueuer // nil disables the enrichment handoff
	logger  *slog.Logger

	newDocID   idgen.Generator
	newEventID idgen.Generator
	newJobID   idgen.Generator
	newID      idgen.Generator
	now        func() time.Time
}

// NewPoller creates a Poller. queue and logger may be nil.
func NewPoller(cfg Config, st *store.Store, queue Enqueuer, logger *slog.Logger) *Poller {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		cfg:        cfg,
		st:         st,
		fetcher:    NewFetcher(cfg.Fetch),
		norm:       identity.NewNormalizer(),
		render:     markup.New(),
		queue:      queue,
		logger:     logger,
		newDocID:   idgen.Prefixed("doc_", idgen.Default),
		newEventID: idgen.Prefixed("evt_", idgen.Default),
		newJobID:   idgen.Prefixed("job_", idgen.Default),
		newID:      idgen.Default,
		now:        time.Now,
	}
}

// Run polls on a ticker. Blocks until ctx is cancelled.
func (p *Poller) Run(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.CheckInterval)
	defer ticker.Stop()

	// Run once immediately on start.
	p.PollOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.PollOnce(ctx)
		}
	}
}

// PollOnce processes every feed currently due. One feed's failure never
// stops the pass.
func (p *Poller) PollOnce(ctx context.Context) {
	due, err := p.st.ListFeedsDueForPoll(ctx, p.now().UnixMilli())
	if err != nil {
		p.logger.Error("feedpoll: list due feeds", "error", err)
		return
	}
	for _, f := range due {
		p.pollFeed(ctx, f)
	}
	if len(due) > 0 {
		p.logger.Debug("feedpoll: pass complete", "feeds", len(due))
	}
}

func (p *Poller) pollFeed(ctx context.Context, f *store.Feed) {
	logger := p.logger.With("feed_id", f.ID, "feed_url", f.FeedURL)

	start := p.now()
	res, err := p.fetcher.Fetch(ctx, f.FeedURL, f.ETag, f.LastHash)
	if err != nil {
		p.recordError(ctx, f, err, logger)
		return
	}
	logger.Debug("feedpoll: fetched",
		"status", res.StatusCode,
		"changed", res.Changed,
		"duration_ms", time.Since(start).Milliseconds())

	if !res.Changed {
		// 304 or identical body: a successful fetch with nothing new.
		if err := p.st.MarkFeedFetched(ctx, f.ID, p.now().UnixMilli(), res.ETag, res.Hash); err != nil {
			logger.Warn("feedpoll: mark fetched", "error", err)
		}
		return
	}

	parsed, err := feed.Parse(res.Body, f.FeedURL)
	if err != nil {
		p.recordError(ctx, f, err, logger)
		return
	}

	tags, err := p.st.ListTagsForFeed(ctx, f.ID)
	if err != nil {
		p.recordError(ctx, f, err, logger)
		return
	}

	created := 0
	for _, it := range parsed.Items {
		guid := it.GUID
		urlNorm := ""
		if it.URL != "" {
			if nu, err := p.norm.NormalizeItemURL(it.URL); err == nil {
				urlNorm = nu
			}
		}
		if guid == "" && urlNorm == "" {
			continue // no usable identity
		}

		seen, err := p.st.SeenFeedItem(ctx, f.ID, guid, urlNorm)
		if err != nil {
			logger.Warn("feedpoll: dedup lookup", "error", err)
			continue
		}
		if seen {
			continue
		}

		if p.ingestItem(ctx, f, tags, it, guid, urlNorm, logger) {
			created++
		}
	}

	// A fetch with zero new items is still a successful fetch.
	if err := p.st.MarkFeedFetched(ctx, f.ID, p.now().UnixMilli(), res.ETag, res.Hash); err != nil {
		logger.Warn("feedpoll: mark fetched", "error", err)
	}
	if created > 0 {
		logger.Info("feedpoll: new items ingested", "count", created)
	}
}

// ingestItem claims the item's identity, creates its document, inherits feed
// tags, logs the outcome, and hands followup work to the enrichment queue.
// Reports whether a document was created.
func (p *Poller) ingestItem(ctx context.Context, f *store.Feed, tags []*store.Tag, it feed.Item, guid, urlNorm string, logger *slog.Logger) bool {
	docID := p.newDocID()
	eventID := p.newEventID()

	// Claim identity first: a concurrent poll cycle that loses here creates
	// nothing.
	inserted, err := p.st.InsertFeedItem(ctx, f.ID, guid, urlNorm, docID)
	if err != nil {
		logger.Warn("feedpoll: claim item", "error", err)
		return false
	}
	if !inserted {
		return false
	}

	sanitized := p.render.Sanitize(it.ContentHTML)
	md := p.render.ToMarkdown(sanitized)
	words := markup.WordCount(md)

	title := it.Title
	if title == "" {
		title = it.URL
	}
	doc := &store.Document{
		ID:             docID,
		AccountID:      f.AccountID,
		ContentType:    "rss",
		Title:          title,
		Author:         it.Author,
		ContentHTML:    sanitized,
		ContentMD:      md,
		WordCount:      words,
		ReadingTimeMin: markup.ReadingTime(words),
		SiteURL:        it.URL,
		SourceID:       f.ID,
		OriginType:     store.OriginFeed,
	}
	if _, err := p.st.InsertDocumentIfAbsent(ctx, doc); err != nil {
		logger.Warn("feedpoll: create document", "error", err)
		p.logItem(ctx, eventID, nil, store.StatusFailure, err)
		return false
	}

	for _, t := range tags {
		if err := p.st.AddTagToDocument(ctx, docID, t.ID); err != nil {
			logger.Warn("feedpoll: inherit tag", "tag", t.Name, "error", err)
		}
	}

	p.logItem(ctx, eventID, &docID, store.StatusSuccess, nil)
	p.enqueueFollowups(ctx, f, doc, it, logger)
	return true
}

// enqueueFollowups emits enrichment jobs instead of blocking the poll loop
// on expensive rendering: image-cache when the item carries a cover
// candidate, content-enrichment when the quality heuristic flags the
// document. Items with neither enqueue nothing — an image-cache job without
// a cover URL carries nothing to fetch and the consumer would ack it
// untouched.
func (p *Poller) enqueueFollowups(ctx context.Context, f *store.Feed, doc *store.Document, it feed.Item, logger *slog.Logger) {
	if p.queue == nil {
		return
	}

	if it.CoverImage != "" {
		job := &enrich.Job{
			ID:         p.newJobID(),
			AccountID:  f.AccountID,
			DocumentID: doc.ID,
			URL:        it.CoverImage,
			Source:     enrich.SourceFeedpoll,
			JobType:    enrich.JobImageCache,
		}
		if err := p.queue.Publish(ctx, job); err != nil {
			logger.Warn("feedpoll: enqueue image-cache", "error", err)
		}
	}

	if p.cfg.LowQuality != nil && p.cfg.LowQuality(doc) && it.URL != "" {
		job := &enrich.Job{
			ID:         p.newJobID(),
			AccountID:  f.AccountID,
			DocumentID: doc.ID,
			URL:        it.URL,
			Source:     enrich.SourceFeedpoll,
			JobType:    enrich.JobContentEnrichment,
		}
		if err := p.queue.Publish(ctx, job); err != nil {
			logger.Warn("feedpoll: enqueue content-enrichment", "error", err)
		}
	}
}

// recordError accumulates the feed's consecutive-error streak and turns the
// feed off at the threshold. The last error message is kept for diagnosis.
func (p *Poller) recordError(ctx context.Context, f *store.Feed, cause error, logger *slog.Logger) {
	count, err := p.st.IncrementFeedError(ctx, f.ID, cause.Error())
	if err != nil {
		logger.Warn("feedpoll: record error", "error", err)
		return
	}
	logger.Warn("feedpoll: poll failed",
		"error", cause.Error(), "error_count", count)

	if count >= deactivateThreshold {
		if err := p.st.DeactivateFeed(ctx, f.ID); err != nil {
			logger.Warn("feedpoll: deactivate", "error", err)
			return
		}
		logger.Warn("feedpoll: feed deactivated after consecutive failures",
			"error_count", count)
	}

	p.logItem(ctx, p.newEventID(), nil, store.StatusFailure, cause)
}

// logItem appends one ingestion-log row. Best-effort.
func (p *Poller) logItem(ctx context.Context, eventID string, documentID *string, status string, cause error) {
	entry := &store.IngestionLogEntry{
		ID:         p.newID(),
		EventID:    eventID,
		DocumentID: documentID,
		Channel:    store.ChannelFeed,
		Status:     status,
	}
	if cause != nil {
		entry.ErrorCode = "poll_error"
		entry.ErrorDetail = cause.Error()
	}
	if err := p.st.LogIngestion(ctx, entry); err != nil {
		p.logger.Warn("feedpoll: ingestion log write failed", "error", err)
	}
}
