// CLAUDE:SUMMARY All store data types: Account, Subscription, Document, EmailMeta, Feed, Attachment, Tag, IngestionLogEntry.
package store

// Document locations.
const (
	LocationInbox   = "inbox"
	LocationLater   = "later"
	LocationArchive = "archive"
)

// Origin types: the class of source that created a document.
const (
	OriginSubscription = "subscription"
	OriginFeed         = "feed"
	OriginManual       = "manual"
)

// Ingestion channels and statuses.
const (
	ChannelEmail = "email"
	ChannelFeed  = "feed"

	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Account owns subscriptions, feeds, tags, and documents.
type Account struct {
	ID        string `json:"id"`
	Slug      string `json:"slug"`
	Email     string `json:"email"`
	CreatedAt int64  `json:"created_at"`
}

// Tag is a per-account label.
type Tag struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// Subscription maps a sender to a recipient pseudo-address, auto-created on
// the first inbound message to a previously unseen address.
type Subscription struct {
	ID        string `json:"id"`
	AccountID string `json:"account_id"`
	Address   string `json:"address"`
	Name      string `json:"name"`
	CreatedAt int64  `json:"created_at"`
}

// AutoTagRule binds a pattern to a tag; evaluated against new documents of
// the owning subscription.
type AutoTagRule struct {
	ID             string `json:"id"`
	SubscriptionID string `json:"subscription_id"`
	Pattern        string `json:"pattern"`
	TagID          string `json:"tag_id"`
	CreatedAt      int64  `json:"created_at"`
}

// Document is the canonical ingested unit.
type Document struct {
	ID             string `json:"id"`
	AccountID      string `json:"account_id"`
	ContentType    string `json:"content_type"` // email | rss | ...
	Title          string `json:"title"`
	Author         string `json:"author"`
	ContentHTML    string `json:"content_html"`
	ContentMD      string `json:"content_md"`
	WordCount      int    `json:"word_count"`
	ReadingTimeMin int    `json:"reading_time_min"`
	SiteURL        string `json:"site_url"`
	CoverImageKey  string `json:"cover_image_key"`
	SourceID       string `json:"source_id"`
	OriginType     string `json:"origin_type"`
	Location       string `json:"location"`
	IsRead         bool   `json:"is_read"`
	IsStarred      bool   `json:"is_starred"`
	CreatedAt      int64  `json:"created_at"`
	UpdatedAt      int64  `json:"updated_at"`
	DeletedAt      *int64 `json:"deleted_at,omitempty"`
}

// EmailMeta is the 1:1 child of an email-type document. Exactly one of
// MessageID / Fingerprint must resolve uniquely to a document.
type EmailMeta struct {
	DocumentID        string  `json:"document_id"`
	MessageID         *string `json:"message_id,omitempty"`
	Fingerprint       *string `json:"fingerprint,omitempty"`
	SenderAddress     string  `json:"sender_address"`
	SenderName        string  `json:"sender_name"`
	IsRejected        bool    `json:"is_rejected"`
	RejectionReason   string  `json:"rejection_reason"`
	NeedsConfirmation bool    `json:"needs_confirmation"`
	DeliveryAttempts  int     `json:"delivery_attempts"`
	CreatedAt         int64   `json:"created_at"`
}

// Attachment is one extracted email part. StorageKey is nil when the upload
// failed or the part was not content-addressed.
type Attachment struct {
	ID          string  `json:"id"`
	DocumentID  string  `json:"document_id"`
	Filename    string  `json:"filename"`
	ContentType string  `json:"content_type"`
	ContentID   *string `json:"content_id,omitempty"`
	SizeBytes   int64   `json:"size_bytes"`
	StorageKey  *string `json:"storage_key,omitempty"`
	CreatedAt   int64   `json:"created_at"`
}

// Feed is a polled source.
type Feed struct {
	ID                   string `json:"id"`
	AccountID            string `json:"account_id"`
	FeedURL              string `json:"feed_url"`
	SiteURL              string `json:"site_url"`
	Title                string `json:"title"`
	IconURL              string `json:"icon_url"`
	FetchIntervalMinutes int    `json:"fetch_interval_minutes"`
	LastFetchedAt        *int64 `json:"last_fetched_at,omitempty"`
	ETag                 string `json:"etag"`
	LastHash             string `json:"last_hash"`
	IsActive             bool   `json:"is_active"`
	ErrorCount           int    `json:"error_count"`
	LastError            string `json:"last_error"`
	CreatedAt            int64  `json:"created_at"`
	UpdatedAt            int64  `json:"updated_at"`
	DeletedAt            *int64 `json:"deleted_at,omitempty"`
}

// IngestionLogEntry is one pipeline attempt outcome.
type IngestionLogEntry struct {
	ID          string  `json:"id"`
	EventID     string  `json:"event_id"`
	DocumentID  *string `json:"document_id,omitempty"`
	Channel     string  `json:"channel"`
	Status      string  `json:"status"`
	ErrorCode   string  `json:"error_code"`
	ErrorDetail string  `json:"error_detail"`
	CreatedAt   int64   `json:"created_at"`
}
