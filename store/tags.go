package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertTag adds a tag.
func (s *Store) InsertTag(ctx context.Context, t *Tag) error {
	if t.CreatedAt == 0 {
		t.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO tags (id, account_id, name, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Name, t.CreatedAt)
	return err
}

// GetTagByName returns the tag with the given name in an account, or nil.
func (s *Store) GetTagByName(ctx context.Context, accountID, name string) (*Tag, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, account_id, name, created_at FROM tags
		WHERE account_id = ? AND name = ?`, accountID, name)
	var t Tag
	err := row.Scan(&t.ID, &t.AccountID, &t.Name, &t.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan tag: %w", err)
	}
	return &t, nil
}

// EnsureTag returns the existing tag with the given name or creates it.
// newID supplies the identifier for a freshly created tag.
func (s *Store) EnsureTag(ctx context.Context, accountID, name string, newID func() string) (*Tag, error) {
	existing, err := s.GetTagByName(ctx, accountID, name)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	t := &Tag{ID: newID(), AccountID: accountID, Name: name, CreatedAt: time.Now().UnixMilli()}
	// A concurrent creator may win the race on (account_id, name); re-read.
	_, err = s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO tags (id, account_id, name, created_at) VALUES (?, ?, ?, ?)`,
		t.ID, t.AccountID, t.Name, t.CreatedAt)
	if err != nil {
		return nil, err
	}
	return s.GetTagByName(ctx, accountID, name)
}

// AddTagToDocument attaches a tag to a document. Idempotent.
func (s *Store) AddTagToDocument(ctx context.Context, documentID, tagID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO document_tags (document_id, tag_id) VALUES (?, ?)`,
		documentID, tagID)
	return err
}

// ListTagsForDocument returns all tags attached to a document.
func (s *Store) ListTagsForDocument(ctx context.Context, documentID string) ([]*Tag, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT t.id, t.account_id, t.name, t.created_at
		FROM tags t JOIN document_tags dt ON dt.tag_id = t.id
		WHERE dt.document_id = ? ORDER BY t.name`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

func scanTags(rows *sql.Rows) ([]*Tag, error) {
	var tags []*Tag
	for rows.Next() {
		var t Tag
		if err := rows.Scan(&t.ID, &t.AccountID, &t.Name, &t.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan tag: %w", err)
		}
		tags = append(tags, &t)
	}
	return tags, rows.Err()
}
