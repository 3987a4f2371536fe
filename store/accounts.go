package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// InsertAccount adds an account.
func (s *Store) InsertAccount(ctx context.Context, a *Account) error {
	if a.CreatedAt == 0 {
		a.CreatedAt = time.Now().UnixMilli()
	}
	_, err := s.DB.ExecContext(ctx,
		`INSERT INTO accounts (id, slug, email, created_at) VALUES (?, ?, ?, ?)`,
		a.ID, a.Slug, a.Email, a.CreatedAt)
	return err
}

// GetAccountBySlug returns the account with the given slug, or nil.
func (s *Store) GetAccountBySlug(ctx context.Context, slug string) (*Account, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, slug, email, created_at FROM accounts WHERE slug = ?`, slug)
	return scanAccount(row)
}

// FirstAccount returns the oldest account, used as the routing target in
// single-account mode. Nil when no account exists.
func (s *Store) FirstAccount(ctx context.Context) (*Account, error) {
	row := s.DB.QueryRowContext(ctx,
		`SELECT id, slug, email, created_at FROM accounts ORDER BY created_at ASC LIMIT 1`)
	return scanAccount(row)
}

// IsDomainDenied reports whether a sender domain is on the denylist.
func (s *Store) IsDomainDenied(ctx context.Context, domain string) (bool, error) {
	var n int
	err := s.DB.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM denied_domains WHERE domain = ?`, domain).Scan(&n)
	return n > 0, err
}

// DenyDomain adds a sender domain to the denylist. Idempotent.
func (s *Store) DenyDomain(ctx context.Context, domain string) error {
	_, err := s.DB.ExecContext(ctx,
		`INSERT OR IGNORE INTO denied_domains (domain, created_at) VALUES (?, ?)`,
		domain, time.Now().UnixMilli())
	return err
}

func scanAccount(row *sql.Row) (*Account, error) {
	var a Account
	err := row.Scan(&a.ID, &a.Slug, &a.Email, &a.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan account: %w", err)
	}
	return &a, nil
}
