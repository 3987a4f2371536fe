// CLAUDE:SUMMARY Feed CRUD, due-for-poll query, error streak counters, and per-feed item dedup.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertFeed adds a polled feed. Insert-or-ignore on the feed_url unique
// key. Returns whether a row was inserted.
func (s *Store) InsertFeed(ctx context.Context, f *Feed) (bool, error) {
	now := time.Now().UnixMilli()
	if f.CreatedAt == 0 {
		f.CreatedAt = now
	}
	if f.UpdatedAt == 0 {
		f.UpdatedAt = now
	}
	if f.FetchIntervalMinutes == 0 {
		f.FetchIntervalMinutes = 60
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO feeds (id, account_id, feed_url, site_url, title,
		icon_url, fetch_interval_minutes, last_fetched_at, etag, last_hash,
		is_active, error_count, last_error, created_at, updated_at, deleted_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.AccountID, f.FeedURL, f.SiteURL, f.Title,
		f.IconURL, f.FetchIntervalMinutes, f.LastFetchedAt, f.ETag, f.LastHash,
		f.IsActive, f.ErrorCount, f.LastError, f.CreatedAt, f.UpdatedAt, f.DeletedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetFeed returns a feed by ID, or nil.
func (s *Store) GetFeed(ctx context.Context, id string) (*Feed, error) {
	row := s.DB.QueryRowContext(ctx, feedSelect+` WHERE id = ?`, id)
	return scanFeed(row)
}

// ListFeedsDueForPoll returns active, non-deleted feeds whose fetch interval
// has elapsed at nowMillis. Never-fetched feeds are always due.
func (s *Store) ListFeedsDueForPoll(ctx context.Context, nowMillis int64) ([]*Feed, error) {
	rows, err := s.DB.QueryContext(ctx, feedSelect+`
		WHERE is_active = 1 AND deleted_at IS NULL
		AND (last_fetched_at IS NULL
			OR last_fetched_at + fetch_interval_minutes * 60000 <= ?)
		ORDER BY last_fetched_at`, nowMillis)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var feeds []*Feed
	for rows.Next() {
		f, err := scanFeed(rows)
		if err != nil {
			return nil, err
		}
		feeds = append(feeds, f)
	}
	return feeds, rows.Err()
}

// MarkFeedFetched records a successful poll: stamps last_fetched_at, stores
// conditional-request validators, and resets the error streak. A poll with
// zero new items still counts as fetched.
func (s *Store) MarkFeedFetched(ctx context.Context, id string, fetchedAt int64, etag, lastHash string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE feeds SET last_fetched_at = ?, etag = ?, last_hash = ?,
		error_count = 0, last_error = '', updated_at = ?
		WHERE id = ?`,
		fetchedAt, etag, lastHash, time.Now().UnixMilli(), id)
	return err
}

// IncrementFeedError bumps the consecutive-failure counter and records the
// message. Returns the new count so the caller can decide on deactivation.
func (s *Store) IncrementFeedError(ctx context.Context, id, message string) (int, error) {
	now := time.Now().UnixMilli()
	// UPDATE ... RETURNING keeps increment-and-read atomic across pollers.
	row := s.DB.QueryRowContext(ctx,
		`UPDATE feeds SET error_count = error_count + 1, last_error = ?,
		last_fetched_at = ?, updated_at = ?
		WHERE id = ?
		RETURNING error_count`,
		message, now, now, id)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, fmt.Errorf("increment feed error: %w", err)
	}
	return count, nil
}

// DeactivateFeed turns a feed off; polling skips it until reactivated.
func (s *Store) DeactivateFeed(ctx context.Context, id string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE feeds SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UnixMilli(), id)
	return err
}

// AddTagToFeed binds a tag to a feed. Idempotent.
func (s *Store) AddTagToFeed(ctx context.Context, feedID, tagID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO feed_tags (feed_id, tag_id) VALUES (?, ?)`,
		feedID, tagID)
	return err
}

// ListTagsForFeed returns the feed's inherited tag set.
func (s *Store) ListTagsForFeed(ctx context.Context, feedID string) ([]*Tag, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT t.id, t.account_id, t.name, t.created_at
		FROM tags t JOIN feed_tags ft ON ft.tag_id = t.id
		WHERE ft.feed_id = ? ORDER BY t.name`, feedID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

// SeenFeedItem reports whether an item was already ingested for this feed,
// matching by guid when present, else by normalized URL.
func (s *Store) SeenFeedItem(ctx context.Context, feedID, guid, urlNorm string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM feed_items
		WHERE feed_id = ?
		AND ((? != '' AND guid = ?) OR (? = '' AND ? != '' AND url_norm = ?))`,
		feedID, guid, guid, guid, urlNorm, urlNorm).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// InsertFeedItem records an ingested item under its dedup keys. Returns
// whether a row was inserted; false means another poll cycle won the race.
func (s *Store) InsertFeedItem(ctx context.Context, feedID, guid, urlNorm, documentID string) (bool, error) {
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO feed_items (feed_id, guid, url_norm, document_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		feedID, guid, urlNorm, documentID, time.Now().UnixMilli())
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

const feedSelect = `SELECT id, account_id, feed_url, site_url, title, icon_url,
	fetch_interval_minutes, last_fetched_at, etag, last_hash,
	is_active, error_count, last_error, created_at, updated_at, deleted_at
	FROM feeds`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanFeed(row rowScanner) (*Feed, error) {
	var f Feed
	var isActive int
	err := row.Scan(&f.ID, &f.AccountID, &f.FeedURL, &f.SiteURL, &f.Title, &f.IconURL,
		&f.FetchIntervalMinutes, &f.LastFetchedAt, &f.ETag, &f.LastHash,
		&isActive, &f.ErrorCount, &f.LastError, &f.CreatedAt, &f.UpdatedAt, &f.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan feed: %w", err)
	}
	f.IsActive = isActive != 0
	return &f, nil
}
