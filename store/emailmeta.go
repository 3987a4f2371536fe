// CLAUDE:SUMMARY Email metadata: unique-key dedup lookups by Message-ID and fingerprint, delivery-attempt counter.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// InsertEmailMeta creates the email metadata row for a document.
// Insert-or-ignore on the partial unique indexes over message_id and
// fingerprint: a concurrent redelivery that raced past the dedup check loses
// here instead of failing. Returns whether a row was inserted.
func (s *Store) InsertEmailMeta(ctx context.Context, m *EmailMeta) (bool, error) {
	if m.CreatedAt == 0 {
		m.CreatedAt = time.Now().UnixMilli()
	}
	if m.DeliveryAttempts == 0 {
		m.DeliveryAttempts = 1
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO email_meta (document_id, message_id, fingerprint,
		sender_address, sender_name, is_rejected, rejection_reason,
		needs_confirmation, delivery_attempts, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		m.DocumentID, m.MessageID, m.Fingerprint,
		m.SenderAddress, m.SenderName, m.IsRejected, m.RejectionReason,
		m.NeedsConfirmation, m.DeliveryAttempts, m.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetEmailMetaByMessageID returns the metadata row for a native message
// identifier, or nil.
func (s *Store) GetEmailMetaByMessageID(ctx context.Context, messageID string) (*EmailMeta, error) {
	return s.getEmailMetaWhere(ctx, "message_id = ?", messageID)
}

// GetEmailMetaByFingerprint returns the metadata row for a content
// fingerprint, or nil.
func (s *Store) GetEmailMetaByFingerprint(ctx context.Context, fingerprint string) (*EmailMeta, error) {
	return s.getEmailMetaWhere(ctx, "fingerprint = ?", fingerprint)
}

// GetEmailMeta returns the metadata row for a document, or nil.
func (s *Store) GetEmailMeta(ctx context.Context, documentID string) (*EmailMeta, error) {
	return s.getEmailMetaWhere(ctx, "document_id = ?", documentID)
}

// IncrementDeliveryAttempts bumps the redelivery counter for a document's
// email metadata.
func (s *Store) IncrementDeliveryAttempts(ctx context.Context, documentID string) error {
	_, err := s.DB.ExecContext(ctx,
		`UPDATE email_meta SET delivery_attempts = delivery_attempts + 1
		WHERE document_id = ?`, documentID)
	return err
}

func (s *Store) getEmailMetaWhere(ctx context.Context, where string, arg any) (*EmailMeta, error) {
	row := s.DB.QueryRowContext(ctx, strings.Join([]string{
		`SELECT document_id, message_id, fingerprint, sender_address, sender_name,
		is_rejected, rejection_reason, needs_confirmation, delivery_attempts, created_at
		FROM email_meta WHERE`, where}, " "), arg)

	var m EmailMeta
	var isRejected, needsConfirmation int
	err := row.Scan(&m.DocumentID, &m.MessageID, &m.Fingerprint,
		&m.SenderAddress, &m.SenderName, &isRejected, &m.RejectionReason,
		&needsConfirmation, &m.DeliveryAttempts, &m.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan email meta: %w", err)
	}
	m.IsRejected = isRejected != 0
	m.NeedsConfirmation = needsConfirmation != 0
	return &m, nil
}
