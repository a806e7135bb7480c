package google

import (
	"encoding/base64"
	"strings"

	"golang.org/x/net/html"
)

// extractBody returns the readable text of a message payload.
// text/plain parts win; HTML-only messages are converted to text.
func extractBody(p messagePart) string {
	if text := findPart(p, "text/plain"); text != "" {
		return strings.TrimSpace(text)
	}
	if markup := findPart(p, "text/html"); markup != "" {
		return htmlToText(markup)
	}
	return ""
}

// findPart returns the decoded data of the first part with the given MIME type, depth first.
func findPart(p messagePart, mimeType string) string {
	if strings.EqualFold(p.MimeType, mimeType) && p.Body.Data != "" {
		return decodeBase64URL(p.Body.Data)
	}
	for _, part := range p.Parts {
		if text := findPart(part, mimeType); text != "" {
			return text
		}
	}
	return ""
}

// decodeBase64URL decodes Gmail's base64url data, padded or not.
func decodeBase64URL(data string) string {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(data, "="))
	if err != nil {
		return ""
	}
	return string(b)
}

var blockElements = map[string]bool{
	"p": true, "div": true, "br": true, "li": true, "tr": true, "table": true,
	"h1": true, "h2": true, "h3": true, "h4": true, "h5": true, "h6": true,
	"blockquote": true, "section": true, "article": true, "header": true, "footer": true,
}

var skippedElements = map[string]bool{
	"script": true, "style": true, "head": true, "title": true, "noscript": true,
}

// htmlToText flattens an HTML document into lines of text.
func htmlToText(markup string) string {
	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return ""
	}

	var (
		sb    strings.Builder
		space bool // whitespace seen since the last word
		walk  func(n *html.Node)
	)
	newline := func() {
		if sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteByte('\n')
		}
		space = false
	}
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			words := strings.Fields(n.Data)
			if len(words) == 0 {
				space = space || n.Data != ""
				return
			}
			if (space || isSpace(n.Data[0])) && sb.Len() > 0 && !strings.HasSuffix(sb.String(), "\n") {
				sb.WriteByte(' ')
			}
			sb.WriteString(strings.Join(words, " "))
			space = isSpace(n.Data[len(n.Data)-1])
			return
		case html.ElementNode:
			if skippedElements[n.Data] {
				return
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
		if n.Type == html.ElementNode && blockElements[n.Data] {
			newline()
		}
	}
	walk(doc)

	return strings.TrimSpace(sb.String())
}

func isSpace(b byte) bool {
	return b == ' ' || b == '\n' || b == '\t' || b == '\r'
}
