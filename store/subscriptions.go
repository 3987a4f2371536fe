// CLAUDE:SUMMARY Subscription CRUD, inherited tag lookup, and auto-tag rules.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertSubscription adds a subscription. Insert-or-ignore on the
// (account_id, address) unique key: concurrent auto-creation for the same
// address converges on one row. Returns whether a row was inserted.
func (s *Store) InsertSubscription(ctx context.Context, sub *Subscription) (bool, error) {
	if sub.CreatedAt == 0 {
		sub.CreatedAt = time.Now().UnixMilli()
	}
	res, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscriptions (id, account_id, address, name, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		sub.ID, sub.AccountID, sub.Address, sub.Name, sub.CreatedAt)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	return n > 0, err
}

// GetSubscriptionByAddress returns the subscription for a recipient
// pseudo-address within an account, or nil.
func (s *Store) GetSubscriptionByAddress(ctx context.Context, accountID, address string) (*Subscription, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, account_id, address, name, created_at
		FROM subscriptions WHERE account_id = ? AND address = ?`, accountID, address)
	var sub Subscription
	err := row.Scan(&sub.ID, &sub.AccountID, &sub.Address, &sub.Name, &sub.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan subscription: %w", err)
	}
	return &sub, nil
}

// ListTagsForSubscription returns the subscription's inherited tag set.
func (s *Store) ListTagsForSubscription(ctx context.Context, subscriptionID string) ([]*Tag, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT t.id, t.account_id, t.name, t.created_at
		FROM tags t JOIN subscription_tags st ON st.tag_id = t.id
		WHERE st.subscription_id = ? ORDER BY t.name`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanTags(rows)
}

// AddTagToSubscription binds a tag to a subscription. Idempotent.
func (s *Store) AddTagToSubscription(ctx context.Context, subscriptionID, tagID string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO subscription_tags (subscription_id, tag_id) VALUES (?, ?)`,
		subscriptionID, tagID)
	return err
}

// InsertAutoTagRule adds a pattern → tag binding to a subscription.
func (s *Store) InsertAutoTagRule(ctx context.Context, r *AutoTagRule) error {
	if r.CreatedAt == 0 {
		r.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO auto_tag_rules (id, subscription_id, pattern, tag_id, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		r.ID, r.SubscriptionID, r.Pattern, r.TagID, r.CreatedAt)
	return err
}

// ListAutoTagRules returns a subscription's auto-tag rules.
func (s *Store) ListAutoTagRules(ctx context.Context, subscriptionID string) ([]*AutoTagRule, error) {
	rows, err := s.DB.QueryContext(ctx,
		`SELECT id, subscription_id, pattern, tag_id, created_at
		FROM auto_tag_rules WHERE subscription_id = ?`, subscriptionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rules []*AutoTagRule
	for rows.Next() {
		var r AutoTagRule
		if err := rows.Scan(&r.ID, &r.SubscriptionID, &r.Pattern, &r.TagID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan auto tag rule: %w", err)
		}
		rules = append(rules, &r)
	}
	return rules, rows.Err()
}
