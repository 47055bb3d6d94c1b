// Package sanitize cleans scraped report-card text before it is analyzed.
package sanitize

import (
	"strings"

	"golang.org/x/net/html"
)

// skipTags never contribute text.
var skipTags = map[string]bool{
	"script": true, "style": true, "noscript": true,
	"iframe": true, "head": true, "template": true,
}

// Comment returns the readable text of a report-card comment. The portal
// sometimes hands back HTML fragments (<p>, <br>, entities); markup is
// stripped and whitespace collapsed. Plain text only has its whitespace
// collapsed.
func Comment(s string) string {
	if !strings.ContainsAny(s, "<&") {
		return collapse(s)
	}

	doc, err := html.Parse(strings.NewReader(s))
	if err != nil {
		return collapse(s)
	}

	var sb strings.Builder
	var extract func(*html.Node)
	extract = func(n *html.Node) {
		if n.Type == html.ElementNode && skipTags[n.Data] {
			return
		}

		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
			sb.WriteString(" ")
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			extract(c)
		}

		if n.Type == html.ElementNode {
			switch n.Data {
			case "p", "div", "li", "br", "h1", "h2", "h3", "h4", "h5", "h6":
				sb.WriteString("\n")
			}
		}
	}

	extract(doc)
	return collapse(sb.String())
}

// Label trims a scraped item label. Inner text is kept verbatim because
// labels are knowledge-base keys.
func Label(s string) string {
	return strings.TrimSpace(s)
}

// Blank reports whether s has no visible text.
func Blank(s string) bool {
	return strings.TrimSpace(Comment(s)) == ""
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
