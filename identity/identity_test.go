package identity

import (
	"testing"
	"time"
)

var testDate = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

func TestFingerprint_Deterministic(t *testing.T) {
	// WHAT: identical tuples produce identical fingerprints.
	// WHY: fingerprint is the fallback dedup key for redelivered emails.
	a := Fingerprint("inbox@example.com", "news@sender.io", "Weekly", testDate, "body text")
	b := Fingerprint("inbox@example.com", "news@sender.io", "Weekly", testDate, "body text")
	if a != b {
		t.Errorf("fingerprints differ: %s vs %s", a, b)
	}
}

func TestFingerprint_AddressCaseInsensitive(t *testing.T) {
	// WHAT: address casing doesn't change the fingerprint.
	// WHY: MTAs may re-case addresses between deliveries of the same message.
	a := Fingerprint("Inbox@Example.com", "News@Sender.IO", "Weekly", testDate, "body")
	b := Fingerprint("inbox@example.com", "news@sender.io", "Weekly", testDate, "body")
	if a != b {
		t.Error("case-variant addresses should fingerprint identically")
	}
}

func TestFingerprint_FieldDistinctness(t *testing.T) {
	// WHAT: any one differing field yields a different fingerprint.
	base := Fingerprint("r@x.com", "s@y.com", "Subj", testDate, "body")
	variants := []string{
		Fingerprint("other@x.com", "s@y.com", "Subj", testDate, "body"),
		Fingerprint("r@x.com", "other@y.com", "Subj", testDate, "body"),
		Fingerprint("r@x.com", "s@y.com", "Other", testDate, "body"),
		Fingerprint("r@x.com", "s@y.com", "Subj", testDate.Add(time.Second), "body"),
		Fingerprint("r@x.com", "s@y.com", "Subj", testDate, "other body"),
	}
	for i, v := range variants {
		if v == base {
			t.Errorf("variant %d collides with base", i)
		}
	}
}

func TestFingerprint_HTMLOnlyBodiesDistinct(t *testing.T) {
	// WHAT: two HTML-only emails with different bodies must not collapse.
	// WHY: callers substitute the HTML body when plain text is absent; if
	// they passed "" instead, every HTML-only email would dedupe together.
	a := Fingerprint("r@x.com", "s@y.com", "Subj", testDate, "<p>first</p>")
	b := Fingerprint("r@x.com", "s@y.com", "Subj", testDate, "<p>second</p>")
	if a == b {
		t.Error("different HTML bodies collapsed onto one fingerprint")
	}
}

func TestFingerprint_NoFieldBleed(t *testing.T) {
	// WHAT: field boundaries are preserved in the hash input.
	a := Fingerprint("ab", "c", "x", testDate, "y")
	b := Fingerprint("a", "bc", "x", testDate, "y")
	if a == b {
		t.Error("adjacent fields bled into each other")
	}
}

func TestNormalizeItemURL(t *testing.T) {
	n := NewNormalizer()
	tests := []struct {
		name string
		in   string
		want string
	}{
		{
			name: "strips utm params",
			in:   "https://blog.example.com/post?utm_source=rss&utm_medium=feed",
			want: "https://blog.example.com/post",
		},
		{
			name: "strips click ids",
			in:   "https://blog.example.com/post?fbclid=abc123&gclid=def",
			want: "https://blog.example.com/post",
		},
		{
			name: "strips trailing slash",
			in:   "https://blog.example.com/post/",
			want: "https://blog.example.com/post",
		},
		{
			name: "lowercases host",
			in:   "https://Blog.Example.COM/Post",
			want: "https://blog.example.com/Post",
		},
		{
			name: "keeps meaningful params sorted",
			in:   "https://blog.example.com/post?page=2&id=7&utm_campaign=x",
			want: "https://blog.example.com/post?id=7&page=2",
		},
		{
			name: "removes fragment",
			in:   "https://blog.example.com/post#section-3",
			want: "https://blog.example.com/post",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := n.NormalizeItemURL(tt.in)
			if err != nil {
				t.Fatalf("normalize: %v", err)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestNormalizeItemURL_TrackingVariantsConverge(t *testing.T) {
	// WHAT: URLs differing only in tracking decoration normalize identically.
	// WHY: feed items are re-published with fresh tracking params; without
	// convergence every poll would create duplicate documents.
	n := NewNormalizer()
	a, err := n.NormalizeItemURL("https://blog.example.com/post/?utm_source=rss")
	if err != nil {
		t.Fatal(err)
	}
	b, err := n.NormalizeItemURL("https://blog.example.com/post?fbclid=xyz")
	if err != nil {
		t.Fatal(err)
	}
	if a != b {
		t.Errorf("tracking variants diverge: %q vs %q", a, b)
	}
}

func TestNormalizeItemURL_NonHTTPPassthrough(t *testing.T) {
	// WHAT: non-HTTP identifiers (tag: URIs used as guids) pass through.
	n := NewNormalizer()
	in := "tag:blog.example.com,2026:post-42"
	got, err := n.NormalizeItemURL(in)
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != in {
		t.Errorf("got %q, want passthrough %q", got, in)
	}
}

func TestNormalizeItemURL_Errors(t *testing.T) {
	n := NewNormalizer()
	for _, in := range []string{"", "https://"} {
		if _, err := n.NormalizeItemURL(in); err == nil {
			t.Errorf("expected error for %q", in)
		}
	}
}
