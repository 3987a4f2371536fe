package mailroom

import (
	"context"
	"strings"

	"github.com/hazyhaar/courrier/mailparse"
)

// Rejection reasons recorded on email metadata. Rejection is metadata, not a
// pipeline failure: the document is still created and the attempt logs
// success.
const (
	RejectEmptyBody    = "empty_body"
	RejectDeniedDomain = "denied_domain"
)

// validationOutcome is the computed rejection state for one message.
type validationOutcome struct {
	rejected bool
	reason   string
}

func (s *Service) validate(ctx context.Context, email *mailparse.Email) (validationOutcome, error) {
	if !email.HasBody() {
		return validationOutcome{rejected: true, reason: RejectEmptyBody}, nil
	}
	if _, domain, ok := splitAddress(email.From.Address); ok {
		denied, err := s.st.IsDomainDenied(ctx, strings.ToLower(domain))
		if err != nil {
			return validationOutcome{}, err
		}
		if denied {
			return validationOutcome{rejected: true, reason: RejectDeniedDomain}, nil
		}
	}
	return validationOutcome{}, nil
}

// isConfirmation applies the configured phrase heuristic to subject and body.
func (s *Service) isConfirmation(email *mailparse.Email) bool {
	haystack := strings.ToLower(email.Subject + "\n" + email.BodyText())
	for _, phrase := range s.cfg.ConfirmationPhrases {
		if strings.Contains(haystack, strings.ToLower(phrase)) {
			return true
		}
	}
	return false
}
