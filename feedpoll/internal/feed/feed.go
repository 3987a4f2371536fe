// CLAUDE:SUMMARY RSS 2.0, Atom 1.0, and JSON Feed parser with auto-detection, date fallback, and cover image resolution.
// Package feed parses web feed payloads into one structured form.
//
// Auto-detects format from the payload shape:
//   - <rss ...> / <rdf ...> → RSS 2.0
//   - <feed ...> → Atom 1.0
//   - { ... }    → JSON Feed
//
// Unrecognized payloads fail with ErrUnknownFormat.
package feed

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownFormat is returned for payloads that are not RSS, Atom, or
// JSON Feed.
var ErrUnknownFormat = errors.New("feed: unknown format")

// Item represents one entry in a feed.
type Item struct {
	GUID        string `json:"guid"`
	URL         string `json:"url"`
	Title       string `json:"title"`
	Author      string `json:"author"`
	ContentHTML string `json:"content_html"`
	// Published is the source date string: explicit published date, falling
	// back to updated/modified, else empty.
	Published string `json:"published"`
	// CoverImage is the best-effort cover URL, resolved from
	// enclosure → media:thumbnail → media:content in that order.
	CoverImage string `json:"cover_image"`
}

// Feed represents a parsed feed of any supported format.
type Feed struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	SiteURL     string `json:"site_url"`
	IconURL     string `json:"icon_url"`
	Items       []Item `json:"items"`
}

// Parse auto-detects and parses a feed payload. feedURL is used only for
// diagnostics.
func Parse(data []byte, feedURL string) (*Feed, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("%w: empty payload from %s", ErrUnknownFormat, feedURL)
	}

	if trimmed[0] == '{' {
		return parseJSONFeed(trimmed, feedURL)
	}

	switch detectXMLFormat(trimmed) {
	case "rss":
		return parseRSS(data, feedURL)
	case "atom":
		return parseAtom(data, feedURL)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, feedURL)
	}
}

func detectXMLFormat(data []byte) string {
	d := xml.NewDecoder(bytes.NewReader(data))
	for {
		tok, err := d.Token()
		if err != nil {
			return ""
		}
		if se, ok := tok.(xml.StartElement); ok {
			switch strings.ToLower(se.Name.Local) {
			case "rss", "rdf":
				return "rss"
			case "feed":
				return "atom"
			default:
				return ""
			}
		}
	}
}

// --- RSS 2.0 ---

type rssRoot struct {
	Channel rssChannel `xml:"channel"`
}

type rssChannel struct {
	Title       string    `xml:"title"`
	Link        string    `xml:"link"`
	Description string    `xml:"description"`
	Image       rssImage  `xml:"image"`
	Items       []rssItem `xml:"item"`
}

type rssImage struct {
	URL string `xml:"url"`
}

type rssItem struct {
	GUID        string     `xml:"guid"`
	Title       string     `xml:"title"`
	Link        string     `xml:"link"`
	Description string     `xml:"description"`
	Encoded     string     `xml:"encoded"` // content:encoded
	PubDate     string     `xml:"pubDate"`
	Date        string     `xml:"date"` // dc:date
	Author      string     `xml:"author"`
	Creator     string     `xml:"creator"` // dc:creator
	Enclosure   mediaRef   `xml:"enclosure"`
	Thumbnails  []mediaRef `xml:"thumbnail"` // media:thumbnail
	Media       []mediaRef `xml:"content"`   // media:content
}

type mediaRef struct {
	URL  string `xml:"url,attr"`
	Type string `xml:"type,attr"`
}

func parseRSS(data []byte, feedURL string) (*Feed, error) {
	var root rssRoot
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse rss %s: %w", feedURL, err)
	}

	ch := root.Channel
	f := &Feed{
		Title:       strings.TrimSpace(ch.Title),
		Description: strings.TrimSpace(ch.Description),
		SiteURL:     strings.TrimSpace(ch.Link),
		IconURL:     strings.TrimSpace(ch.Image.URL),
		Items:       make([]Item, 0, len(ch.Items)),
	}

	for _, it := range ch.Items {
		author := strings.TrimSpace(it.Author)
		if author == "" {
			author = strings.TrimSpace(it.Creator)
		}
		content := strings.TrimSpace(it.Encoded)
		if content == "" {
			content = strings.TrimSpace(it.Description)
		}
		published := strings.TrimSpace(it.PubDate)
		if published == "" {
			published = strings.TrimSpace(it.Date)
		}

		f.Items = append(f.Items, Item{
			GUID:        strings.TrimSpace(it.GUID),
			URL:         strings.TrimSpace(it.Link),
			Title:       strings.TrimSpace(it.Title),
			Author:      author,
			ContentHTML: content,
			Published:   published,
			CoverImage:  rssCover(it),
		})
	}
	return f, nil
}

// rssCover resolves the cover image: enclosure first, then media:thumbnail,
// then media:content.
func rssCover(it rssItem) string {
	if it.Enclosure.URL != "" && isImageRef(it.Enclosure) {
		return strings.TrimSpace(it.Enclosure.URL)
	}
	for _, t := range it.Thumbnails {
		if t.URL != "" {
			return strings.TrimSpace(t.URL)
		}
	}
	for _, m := range it.Media {
		if m.URL != "" && isImageRef(m) {
			return strings.TrimSpace(m.URL)
		}
	}
	return ""
}

// isImageRef treats an untyped reference as an image; enclosures and
// media:content declaring a non-image type are skipped.
func isImageRef(m mediaRef) bool {
	return m.Type == "" || strings.HasPrefix(m.Type, "image/")
}

// --- Atom 1.0 ---

type atomFeed struct {
	Title    string      `xml:"title"`
	Subtitle string      `xml:"subtitle"`
	Icon     string      `xml:"icon"`
	Links    []atomLink  `xml:"link"`
	Entries  []atomEntry `xml:"entry"`
}

type atomLink struct {
	Href string `xml:"href,attr"`
	Rel  string `xml:"rel,attr"`
	Type string `xml:"type,attr"`
}

type atomEntry struct {
	ID        string       `xml:"id"`
	Title     string       `xml:"title"`
	Links     []atomLink   `xml:"link"`
	Summary   string       `xml:"summary"`
	Content   atomContent  `xml:"content"`
	Published string       `xml:"published"`
	Updated   string       `xml:"updated"`
	Authors   []atomAuthor `xml:"author"`
}

type atomContent struct {
	Body string `xml:",chardata"`
}

type atomAuthor struct {
	Name string `xml:"name"`
}

func parseAtom(data []byte, feedURL string) (*Feed, error) {
	var root atomFeed
	if err := xml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("feed: parse atom %s: %w", feedURL, err)
	}

	f := &Feed{
		Title:       strings.TrimSpace(root.Title),
		Description: strings.TrimSpace(root.Subtitle),
		SiteURL:     alternateLink(root.Links),
		IconURL:     strings.TrimSpace(root.Icon),
		Items:       make([]Item, 0, len(root.Entries)),
	}

	for _, e := range root.Entries {
		content := strings.TrimSpace(e.Content.Body)
		if content == "" {
			content = strings.TrimSpace(e.Summary)
		}
		published := strings.TrimSpace(e.Published)
		if published == "" {
			published = strings.TrimSpace(e.Updated)
		}
		var author string
		if len(e.Authors) > 0 {
			author = strings.TrimSpace(e.Authors[0].Name)
		}

		f.Items = append(f.Items, Item{
			GUID:        strings.TrimSpace(e.ID),
			URL:         alternateLink(e.Links),
			Title:       strings.TrimSpace(e.Title),
			Author:      author,
			ContentHTML: content,
			Published:   published,
			CoverImage:  atomCover(e.Links),
		})
	}
	return f, nil
}

func alternateLink(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "alternate" || l.Rel == "" {
			return strings.TrimSpace(l.Href)
		}
	}
	if len(links) > 0 {
		return strings.TrimSpace(links[0].Href)
	}
	return ""
}

// atomCover uses an image-typed enclosure link as the cover candidate.
func atomCover(links []atomLink) string {
	for _, l := range links {
		if l.Rel == "enclosure" && strings.HasPrefix(l.Type, "image/") {
			return strings.TrimSpace(l.Href)
		}
	}
	return ""
}

// --- JSON Feed ---

type jsonFeed struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	HomePageURL string     `json:"home_page_url"`
	Icon        string     `json:"icon"`
	Favicon     string     `json:"favicon"`
	Items       []jsonItem `json:"items"`
}

type jsonItem struct {
	ID           string       `json:"id"`
	URL          string       `json:"url"`
	Title        string       `json:"title"`
	ContentHTML  string       `json:"content_html"`
	ContentText  string       `json:"content_text"`
	Published    string       `json:"date_published"`
	Modified     string       `json:"date_modified"`
	Image        string       `json:"image"`
	BannerImage  string       `json:"banner_image"`
	Author       *jsonAuthor  `json:"author"`
	Authors      []jsonAuthor `json:"authors"`
}

type jsonAuthor struct {
	Name string `json:"name"`
}

func parseJSONFeed(data []byte, feedURL string) (*Feed, error) {
	var root jsonFeed
	if err := json.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("%w: invalid json from %s: %v", ErrUnknownFormat, feedURL, err)
	}
	if root.Title == "" && len(root.Items) == 0 {
		return nil, fmt.Errorf("%w: json without feed fields from %s", ErrUnknownFormat, feedURL)
	}

	icon := strings.TrimSpace(root.Icon)
	if icon == "" {
		icon = strings.TrimSpace(root.Favicon)
	}
	f := &Feed{
		Title:       strings.TrimSpace(root.Title),
		Description: strings.TrimSpace(root.Description),
		SiteURL:     strings.TrimSpace(root.HomePageURL),
		IconURL:     icon,
		Items:       make([]Item, 0, len(root.Items)),
	}

	for _, it := range root.Items {
		content := strings.TrimSpace(it.ContentHTML)
		if content == "" {
			content = strings.TrimSpace(it.ContentText)
		}
		published := strings.TrimSpace(it.Published)
		if published == "" {
			published = strings.TrimSpace(it.Modified)
		}
		var author string
		if len(it.Authors) > 0 {
			author = strings.TrimSpace(it.Authors[0].Name)
		} else if it.Author != nil {
			author = strings.TrimSpace(it.Author.Name)
		}
		cover := strings.TrimSpace(it.Image)
		if cover == "" {
			cover = strings.TrimSpace(it.BannerImage)
		}

		f.Items = append(f.Items, Item{
			GUID:        strings.TrimSpace(it.ID),
			URL:         strings.TrimSpace(it.URL),
			Title:       strings.TrimSpace(it.Title),
			Author:      author,
			ContentHTML: content,
			Published:   published,
			CoverImage:  cover,
		})
	}
	return f, nil
}
