package feed

import (
	"errors"
	"testing"
)

const rssPayload = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0" xmlns:content="http://purl.org/rss/1.0/modules/content/"
     xmlns:media="http://search.yahoo.com/mrss/" xmlns:dc="http://purl.org/dc/elements/1.1/">
<channel>
  <title>Example Blog</title>
  <link>https://blog.example</link>
  <description>Posts about examples</description>
  <item>
    <guid>post-1</guid>
    <title>First Post</title>
    <link>https://blog.example/post/1</link>
    <description>Summary one</description>
    <content:encoded><![CDATA[<p>Full <b>content</b> one</p>]]></content:encoded>
    <pubDate>Sat, 14 Mar 2026 09:00:00 +0000</pubDate>
    <dc:creator>Ada</dc:creator>
    <enclosure url="https://blog.example/cover1.jpg" type="image/jpeg" length="1000"/>
  </item>
  <item>
    <title>Second Post</title>
    <link>https://blog.example/post/2</link>
    <description>Summary two</description>
    <media:thumbnail url="https://blog.example/thumb2.png"/>
  </item>
</channel>
</rss>`

func TestParse_RSS(t *testing.T) {
	// WHAT: RSS 2.0 parses with content:encoded preferred over description,
	// dc:creator as author fallback, and enclosure as cover.
	f, err := Parse([]byte(rssPayload), "https://blog.example/feed.xml")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Example Blog" || f.SiteURL != "https://blog.example" {
		t.Errorf("feed head = %q / %q", f.Title, f.SiteURL)
	}
	if len(f.Items) != 2 {
		t.Fatalf("items = %d, want 2", len(f.Items))
	}

	first := f.Items[0]
	if first.GUID != "post-1" || first.Author != "Ada" {
		t.Errorf("first = %+v", first)
	}
	if first.ContentHTML != "<p>Full <b>content</b> one</p>" {
		t.Errorf("ContentHTML = %q", first.ContentHTML)
	}
	if first.CoverImage != "https://blog.example/cover1.jpg" {
		t.Errorf("CoverImage = %q, want enclosure URL", first.CoverImage)
	}

	second := f.Items[1]
	if second.GUID != "" {
		t.Errorf("second GUID = %q, want empty (no guid element)", second.GUID)
	}
	if second.ContentHTML != "Summary two" {
		t.Errorf("description fallback: %q", second.ContentHTML)
	}
	if second.CoverImage != "https://blog.example/thumb2.png" {
		t.Errorf("CoverImage = %q, want media:thumbnail", second.CoverImage)
	}
}

const atomPayload = `<?xml version="1.0" encoding="utf-8"?>
<feed xmlns="http://www.w3.org/2005/Atom">
  <title>Atom Site</title>
  <subtitle>All atom</subtitle>
  <link rel="alternate" href="https://atom.example"/>
  <entry>
    <id>urn:entry:1</id>
    <title>Entry One</title>
    <link rel="alternate" href="https://atom.example/1"/>
    <link rel="enclosure" type="image/png" href="https://atom.example/1.png"/>
    <updated>2026-03-14T10:00:00Z</updated>
    <author><name>Grace</name></author>
    <content type="html">&lt;p&gt;entry one&lt;/p&gt;</content>
  </entry>
</feed>`

func TestParse_Atom(t *testing.T) {
	// WHAT: Atom parses with published→updated date fallback and an
	// image-typed enclosure link as cover.
	f, err := Parse([]byte(atomPayload), "https://atom.example/feed")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "Atom Site" || len(f.Items) != 1 {
		t.Fatalf("feed = %+v", f)
	}
	e := f.Items[0]
	if e.GUID != "urn:entry:1" || e.URL != "https://atom.example/1" {
		t.Errorf("identity = %q / %q", e.GUID, e.URL)
	}
	if e.Published != "2026-03-14T10:00:00Z" {
		t.Errorf("Published = %q, want updated fallback", e.Published)
	}
	if e.Author != "Grace" {
		t.Errorf("Author = %q", e.Author)
	}
	if e.CoverImage != "https://atom.example/1.png" {
		t.Errorf("CoverImage = %q", e.CoverImage)
	}
}

const jsonPayload = `{
  "version": "https://jsonfeed.org/version/1.1",
  "title": "JSON Site",
  "home_page_url": "https://json.example",
  "items": [
    {
      "id": "j1",
      "url": "https://json.example/1",
      "title": "Json One",
      "content_html": "<p>json one</p>",
      "date_published": "2026-03-14T11:00:00Z",
      "image": "https://json.example/1.jpg",
      "authors": [{"name": "Linus"}]
    },
    {
      "id": "j2",
      "url": "https://json.example/2",
      "title": "Json Two",
      "content_text": "plain only",
      "date_modified": "2026-03-15T11:00:00Z"
    }
  ]
}`

func TestParse_JSONFeed(t *testing.T) {
	// WHAT: JSON Feed parses with content_html→content_text and
	// published→modified fallbacks.
	f, err := Parse([]byte(jsonPayload), "https://json.example/feed.json")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if f.Title != "JSON Site" || len(f.Items) != 2 {
		t.Fatalf("feed = %+v", f)
	}
	one := f.Items[0]
	if one.Author != "Linus" || one.CoverImage != "https://json.example/1.jpg" {
		t.Errorf("one = %+v", one)
	}
	two := f.Items[1]
	if two.ContentHTML != "plain only" {
		t.Errorf("content_text fallback: %q", two.ContentHTML)
	}
	if two.Published != "2026-03-15T11:00:00Z" {
		t.Errorf("Published = %q, want date_modified fallback", two.Published)
	}
}

func TestParse_UnknownFormat(t *testing.T) {
	// WHAT: non-feed payloads fail with ErrUnknownFormat.
	for _, payload := range []string{
		"",
		"<html><body>not a feed</body></html>",
		`{"hello": "world"}`,
		"plain text",
	} {
		if _, err := Parse([]byte(payload), "https://x.example"); !errors.Is(err, ErrUnknownFormat) {
			t.Errorf("payload %q: err = %v, want ErrUnknownFormat", payload, err)
		}
	}
}
