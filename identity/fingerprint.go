// CLAUDE:SUMMARY Content fingerprint for emails lacking a Message-ID: sha256 over the normalized recipient/sender/subject/date/body tuple.
// Package identity computes stable identities for inbound content:
// content fingerprints for emails without a native message identifier,
// and normalized URLs for feed-item dedup.
package identity

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// fieldSep joins tuple fields inside the hash input. A non-printable
// separator prevents ("ab","c") and ("a","bc") from colliding.
const fieldSep = "\x1f"

// Fingerprint computes a deterministic content fingerprint for an email.
// Used as the dedup key only when no Message-ID is present.
//
// bodyText must be the plain-text body, with the HTML body substituted by
// the caller only when plain text is absent — passing an empty string for
// HTML-only emails would collapse distinct messages onto one fingerprint.
func Fingerprint(recipient, sender, subject string, date time.Time, bodyText string) string {
	fields := []string{
		strings.ToLower(strings.TrimSpace(recipient)),
		strings.ToLower(strings.TrimSpace(sender)),
		strings.TrimSpace(subject),
		strconv.FormatInt(date.UTC().Unix(), 10),
		strings.TrimSpace(bodyText),
	}
	sum := sha256.Sum256([]byte(strings.Join(fields, fieldSep)))
	return hex.EncodeToString(sum[:])
}
