package enrich

// Job kinds.
const (
	// JobContentEnrichment re-fetches full content through the rendering
	// backend for low-quality extractions.
	JobContentEnrichment = "content-enrichment"
	// JobImageCache caches a document's cover image into object storage.
	JobImageCache = "image-cache"
)

// Job origins.
const (
	SourceFeedpoll = "feedpoll"
	SourceMailroom = "mailroom"
)

// Job is one enrichment queue message. Delivery is at-least-once; handlers
// must tolerate redelivery (re-applying the same result is harmless).
type Job struct {
	ID         string `json:"job_id"`
	AccountID  string `json:"account_id"`
	DocumentID string `json:"document_id"`
	// URL is the content URL for content-enrichment jobs and the cover image
	// URL for image-cache jobs.
	URL        string `json:"url"`
	Source     string `json:"source"`
	JobType    string `json:"job_type"`
	EnqueuedAt int64  `json:"enqueued_at"`
	// Attempt is the delivery count, set by the queue on claim.
	Attempt int `json:"attempt"`
}
