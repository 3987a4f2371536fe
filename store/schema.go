// CLAUDE:SUMMARY Complete courrier SQL schema: accounts, subscriptions, documents, email_meta, feeds, attachments, tags, ingestion log.
package store

import "database/sql"

// Schema is the complete courrier schema. Timestamps are milliseconds since
// epoch unless noted.
const Schema = `
-- Accounts own everything below
CREATE TABLE IF NOT EXISTS accounts (
    id          TEXT PRIMARY KEY,
    slug        TEXT NOT NULL UNIQUE,
    email       TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL
);

-- Tags (per account)
CREATE TABLE IF NOT EXISTS tags (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    name        TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    UNIQUE (account_id, name)
);

-- Subscriptions: pseudo-address → sender mapping, auto-created on first mail
CREATE TABLE IF NOT EXISTS subscriptions (
    id          TEXT PRIMARY KEY,
    account_id  TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    address     TEXT NOT NULL,
    name        TEXT NOT NULL DEFAULT '',
    created_at  INTEGER NOT NULL,
    UNIQUE (account_id, address)
);

CREATE TABLE IF NOT EXISTS subscription_tags (
    subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    tag_id          TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (subscription_id, tag_id)
);

-- Auto-tag rules: pattern → tag bindings evaluated against new documents
CREATE TABLE IF NOT EXISTS auto_tag_rules (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES subscriptions(id) ON DELETE CASCADE,
    pattern         TEXT NOT NULL,
    tag_id          TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    created_at      INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_auto_tag_rules_sub ON auto_tag_rules(subscription_id);

-- Documents: the canonical ingested unit
CREATE TABLE IF NOT EXISTS documents (
    id                TEXT PRIMARY KEY,
    account_id        TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    content_type      TEXT NOT NULL,
    title             TEXT NOT NULL DEFAULT '',
    author            TEXT NOT NULL DEFAULT '',
    content_html      TEXT NOT NULL DEFAULT '',
    content_md        TEXT NOT NULL DEFAULT '',
    word_count        INTEGER NOT NULL DEFAULT 0,
    reading_time_min  INTEGER NOT NULL DEFAULT 0,
    site_url          TEXT NOT NULL DEFAULT '',
    cover_image_key   TEXT NOT NULL DEFAULT '',
    source_id         TEXT NOT NULL DEFAULT '',
    origin_type       TEXT NOT NULL DEFAULT 'manual',
    location          TEXT NOT NULL DEFAULT 'inbox',
    is_read           INTEGER NOT NULL DEFAULT 0,
    is_starred        INTEGER NOT NULL DEFAULT 0,
    created_at        INTEGER NOT NULL,
    updated_at        INTEGER NOT NULL,
    deleted_at        INTEGER
);
CREATE INDEX IF NOT EXISTS idx_documents_account ON documents(account_id, created_at DESC);
CREATE INDEX IF NOT EXISTS idx_documents_source ON documents(source_id);

CREATE TABLE IF NOT EXISTS document_tags (
    document_id TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    tag_id      TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (document_id, tag_id)
);

-- Email metadata, 1:1 with an email-type document.
-- message_id and fingerprint are the dedup keys; the partial unique indexes
-- are the only atomicity primitive the email pipeline relies on.
CREATE TABLE IF NOT EXISTS email_meta (
    document_id        TEXT PRIMARY KEY REFERENCES documents(id) ON DELETE CASCADE,
    message_id         TEXT,
    fingerprint        TEXT,
    sender_address     TEXT NOT NULL DEFAULT '',
    sender_name        TEXT NOT NULL DEFAULT '',
    is_rejected        INTEGER NOT NULL DEFAULT 0,
    rejection_reason   TEXT NOT NULL DEFAULT '',
    needs_confirmation INTEGER NOT NULL DEFAULT 0,
    delivery_attempts  INTEGER NOT NULL DEFAULT 1,
    created_at         INTEGER NOT NULL
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_email_meta_message_id
    ON email_meta(message_id) WHERE message_id IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS idx_email_meta_fingerprint
    ON email_meta(fingerprint) WHERE fingerprint IS NOT NULL;

-- Attachments: one row per extracted part, storage_key null on upload failure
CREATE TABLE IF NOT EXISTS attachments (
    id           TEXT PRIMARY KEY,
    document_id  TEXT NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
    filename     TEXT NOT NULL DEFAULT '',
    content_type TEXT NOT NULL DEFAULT '',
    content_id   TEXT,
    size_bytes   INTEGER NOT NULL DEFAULT 0,
    storage_key  TEXT,
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_attachments_document ON attachments(document_id);

-- Feeds: polled sources
CREATE TABLE IF NOT EXISTS feeds (
    id                     TEXT PRIMARY KEY,
    account_id             TEXT NOT NULL REFERENCES accounts(id) ON DELETE CASCADE,
    feed_url               TEXT NOT NULL UNIQUE,
    site_url               TEXT NOT NULL DEFAULT '',
    title                  TEXT NOT NULL DEFAULT '',
    icon_url               TEXT NOT NULL DEFAULT '',
    fetch_interval_minutes INTEGER NOT NULL DEFAULT 60,
    last_fetched_at        INTEGER,
    etag                   TEXT NOT NULL DEFAULT '',
    last_hash              TEXT NOT NULL DEFAULT '',
    is_active              INTEGER NOT NULL DEFAULT 1,
    error_count            INTEGER NOT NULL DEFAULT 0,
    last_error             TEXT NOT NULL DEFAULT '',
    created_at             INTEGER NOT NULL,
    updated_at             INTEGER NOT NULL,
    deleted_at             INTEGER
);
CREATE INDEX IF NOT EXISTS idx_feeds_poll ON feeds(is_active, last_fetched_at);

CREATE TABLE IF NOT EXISTS feed_tags (
    feed_id TEXT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    tag_id  TEXT NOT NULL REFERENCES tags(id) ON DELETE CASCADE,
    PRIMARY KEY (feed_id, tag_id)
);

-- Seen feed items: dedup by guid (scoped per feed) else normalized URL
CREATE TABLE IF NOT EXISTS feed_items (
    feed_id     TEXT NOT NULL REFERENCES feeds(id) ON DELETE CASCADE,
    guid        TEXT NOT NULL DEFAULT '',
    url_norm    TEXT NOT NULL DEFAULT '',
    document_id TEXT NOT NULL,
    created_at  INTEGER NOT NULL,
    PRIMARY KEY (feed_id, guid, url_norm)
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_feed_items_guid
    ON feed_items(feed_id, guid) WHERE guid != '';
-- URL uniqueness only claims guid-less items: distinct guids may share a URL
CREATE UNIQUE INDEX IF NOT EXISTS idx_feed_items_url
    ON feed_items(feed_id, url_norm) WHERE guid = '' AND url_norm != '';

-- Sender domain denylist
CREATE TABLE IF NOT EXISTS denied_domains (
    domain     TEXT PRIMARY KEY,
    created_at INTEGER NOT NULL
);

-- Ingestion log: one row per pipeline attempt outcome (append-only)
CREATE TABLE IF NOT EXISTS ingestion_log (
    id           TEXT PRIMARY KEY,
    event_id     TEXT NOT NULL,
    document_id  TEXT,
    channel      TEXT NOT NULL,
    status       TEXT NOT NULL,
    error_code   TEXT NOT NULL DEFAULT '',
    error_detail TEXT NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_ingestion_log_event ON ingestion_log(event_id);
CREATE INDEX IF NOT EXISTS idx_ingestion_log_time ON ingestion_log(created_at DESC);
`

// ApplySchema creates all tables and indexes on the given database.
func ApplySchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	return err
}
