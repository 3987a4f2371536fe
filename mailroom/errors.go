package mailroom

import "errors"

// Sentinel errors for the email pipeline. ErrNoRoute and ErrMalformed
// (from mailparse) are terminal: retrying the same bytes cannot change the
// outcome, so the pipeline fails immediately instead of burning attempts.
var (
	// ErrNoRoute means no account matches the recipient address.
	ErrNoRoute = errors.New("mailroom: no account matches recipient")
)
