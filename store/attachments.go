package store

import (
	"context"
	"fmt"
	"time"
)

// InsertAttachment records one extracted email part. A part whose upload
// failed is still recorded, with a nil storage key.
func (s *Store) InsertAttachment(ctx context.Context, a *Attachment) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO attachments (id, document_id, filename, content_type,
		content_id, size_bytes, storage_key, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.DocumentID, a.Filename, a.ContentType,
		a.ContentID, a.SizeBytes, a.StorageKey, a.CreatedAt)
	return err
}

// ListAttachmentsForDocument returns all attachment rows for a document in
// original part order.
func (s *Store) ListAttachmentsForDocument(ctx context.Context, documentID string) ([]*Attachment, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, document_id, filename, content_type, content_id,
		size_bytes, storage_key, created_at
		FROM attachments WHERE document_id = ? ORDER BY created_at, id`, documentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var atts []*Attachment
	for rows.Next() {
		var a Attachment
		if err := rows.Scan(&a.ID, &a.DocumentID, &a.Filename, &a.ContentType,
			&a.ContentID, &a.SizeBytes, &a.StorageKey, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		atts = append(atts, &a)
	}
	return atts, rows.Err()
}

// CountAttachmentsForDocument returns the number of attachment rows for a
// document. Used by the retry path to detect already-written child rows.
func (s *Store) CountAttachmentsForDocument(ctx context.Context, documentID string) (int, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM attachments WHERE document_id = ?`, documentID).Scan(&n)
	return n, err
}
