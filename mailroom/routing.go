// CLAUDE:SUMMARY Recipient routing: pseudo-address → owning account + optional inline tag token.
package mailroom

import (
	"context"
	"fmt"
	"strings"

	"github.com/hazyhaar/courrier/store"
)

// route is a resolved destination for one inbound message.
type route struct {
	account *store.Account
	// address is the full recipient pseudo-address, the subscription key.
	address string
	// tagToken is the optional "+token" from the local part, attached to the
	// document as a tag.
	tagToken string
}

// resolveRoute maps a recipient address to its owning account. The local
// part is "slug" or "slug+tag"; in single-account mode the slug is ignored
// and everything routes to the first account.
func (s *Service) resolveRoute(ctx context.Context, recipient string) (*route, error) {
	local, domain, ok := splitAddress(recipient)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrNoRoute, recipient)
	}
	if s.cfg.Domain != "" && !strings.EqualFold(domain, s.cfg.Domain) {
		return nil, fmt.Errorf("%w: domain %q", ErrNoRoute, domain)
	}

	slug := local
	tagToken := ""
	if i := strings.Index(local, "+"); i >= 0 {
		slug, tagToken = local[:i], local[i+1:]
	}

	var account *store.Account
	var err error
	if s.cfg.MultiAccount {
		account, err = s.st.GetAccountBySlug(ctx, strings.ToLower(slug))
	} else {
		account, err = s.st.FirstAccount(ctx)
	}
	if err != nil {
		return nil, fmt.Errorf("resolve account: %w", err)
	}
	if account == nil {
		return nil, fmt.Errorf("%w: %q", ErrNoRoute, recipient)
	}

	return &route{
		account:  account,
		address:  strings.ToLower(strings.TrimSpace(recipient)),
		tagToken: tagToken,
	}, nil
}

func splitAddress(addr string) (local, domain string, ok bool) {
	addr = strings.TrimSpace(addr)
	i := strings.LastIndex(addr, "@")
	if i <= 0 || i == len(addr)-1 {
		return "", "", false
	}
	return addr[:i], addr[i+1:], true
}
