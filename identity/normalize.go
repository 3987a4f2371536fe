// CLAUDE:SUMMARY Feed-item URL normalization: lowercase host, strip tracking params and trailing slash, sort remaining query params.
package identity

import (
	"fmt"
	"net/url"
	"sort"
	"strings"
)

// Tracking query parameters stripped during normalization. The list is a
// policy default, not an exhaustive law — callers can extend it via
// NewNormalizer.
var defaultTrackingParams = []string{
	"fbclid",
	"gclid",
	"gbraid",
	"wbraid",
	"msclkid",
	"igshid",
	"mc_cid",
	"mc_eid",
	"ref_src",
	"ref_url",
	"_hsenc",
	"_hsmi",
}

// trackingPrefixes match parameter families (utm_source, utm_medium, ...).
var trackingPrefixes = []string{"utm_"}

// Normalizer normalizes feed-item URLs for stable identity across
// re-publication with different tracking decoration.
type Normalizer struct {
	tracking map[string]bool
	prefixes []string
}

// NewNormalizer creates a Normalizer with the default strip list plus any
// extra parameter names.
func NewNormalizer(extraParams ...string) *Normalizer {
	tracking := make(map[string]bool, len(defaultTrackingParams)+len(extraParams))
	for _, p := range defaultTrackingParams {
		tracking[p] = true
	}
	for _, p := range extraParams {
		tracking[strings.ToLower(p)] = true
	}
	return &Normalizer{tracking: tracking, prefixes: trackingPrefixes}
}

// NormalizeItemURL normalizes an http/https URL: lowercases scheme and host,
// removes the fragment, strips tracking parameters and the trailing slash,
// and sorts surviving query parameters for stable comparison.
// Two URLs differing only in tracking decoration normalize identically.
func (n *Normalizer) NormalizeItemURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", fmt.Errorf("identity: empty URL")
	}

	parsed, err := url.Parse(raw)
	if err != nil {
		return "", fmt.Errorf("identity: parse URL: %w", err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		// Non-HTTP identifiers (tag: URIs used as guids, etc.) pass through.
		return raw, nil
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("identity: URL missing host")
	}

	parsed.Scheme = scheme
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""
	parsed.Path = strings.TrimRight(parsed.Path, "/")

	if parsed.RawQuery != "" {
		params := parsed.Query()
		keys := make([]string, 0, len(params))
		for k := range params {
			if n.isTracking(k) {
				continue
			}
			keys = append(keys, k)
		}
		sort.Strings(keys)

		var buf strings.Builder
		for i, k := range keys {
			vals := params[k]
			sort.Strings(vals)
			for j, v := range vals {
				if i > 0 || j > 0 {
					buf.WriteByte('&')
				}
				buf.WriteString(url.QueryEscape(k))
				buf.WriteByte('=')
				buf.WriteString(url.QueryEscape(v))
			}
		}
		parsed.RawQuery = buf.String()
	}

	return parsed.String(), nil
}

func (n *Normalizer) isTracking(param string) bool {
	param = strings.ToLower(param)
	if n.tracking[param] {
		return true
	}
	for _, prefix := range n.prefixes {
		if strings.HasPrefix(param, prefix) {
			return true
		}
	}
	return false
}
