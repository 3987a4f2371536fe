// CLAUDE:SUMMARY Rewrites cid: references in sanitized HTML to attachment proxy paths; unresolved references are left untouched.
package markup

import (
	"bytes"
	"net/url"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// RewriteCIDReferences replaces cid: URLs in htmlStr with proxy paths of the
// form /api/attachments/{documentID}/{contentID} for every content ID present
// in resolved. References without a resolved entry are left untouched — a
// broken inline image is acceptable, a failed pipeline is not.
//
// Returns the input unchanged on parse failure or when nothing was rewritten.
func RewriteCIDReferences(htmlStr, documentID string, resolved map[string]string) string {
	if htmlStr == "" || len(resolved) == 0 {
		return htmlStr
	}

	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}

	var rewrote bool
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			for i, a := range n.Attr {
				if a.Key != "src" && a.Key != "href" {
					continue
				}
				val := strings.TrimSpace(a.Val)
				if !strings.HasPrefix(strings.ToLower(val), "cid:") {
					continue
				}
				cid := val[len("cid:"):]
				if _, ok := resolved[cid]; !ok {
					continue
				}
				n.Attr[i].Val = "/api/attachments/" + documentID + "/" + url.PathEscape(cid)
				rewrote = true
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)

	if !rewrote {
		return htmlStr
	}

	// html.Parse wraps fragments in html/head/body; render only the body
	// children to return a fragment comparable to the input.
	body := findNode(doc, atom.Body)
	if body == nil {
		return htmlStr
	}
	var buf bytes.Buffer
	for c := body.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return htmlStr
		}
	}
	return buf.String()
}

// StripTags extracts visible text from HTML, skipping script and style
// subtrees. Best-effort: on parse failure the raw input is returned.
func StripTags(htmlStr string) string {
	doc, err := html.Parse(strings.NewReader(htmlStr))
	if err != nil {
		return htmlStr
	}
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				if sb.Len() > 0 {
					sb.WriteByte(' ')
				}
				sb.WriteString(text)
			}
		}
		if n.Type == html.ElementNode {
			switch n.DataAtom {
			case atom.Script, atom.Style, atom.Noscript:
				return
			}
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(doc)
	return sb.String()
}

func findNode(n *html.Node, a atom.Atom) *html.Node {
	if n.Type == html.ElementNode && n.DataAtom == a {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findNode(c, a); found != nil {
			return found
		}
	}
	return nil
}
