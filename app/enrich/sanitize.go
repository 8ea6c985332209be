package enrich

import (
	"regexp"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

var (
	tagPattern        = regexp.MustCompile(`<[^>]*>`)
	emailPattern      = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern      = regexp.MustCompile(`\+?\d{1,3}[\s.-]?\(?\d{3}\)?[\s.-]?\d{3}[\s.-]?\d{4}`)
	userURLPattern    = regexp.MustCompile(`/users/\d+`)
	whitespacePattern = regexp.MustCompile(`\s+`)
)

// Sanitize reduces scraped HTML to readable plain text. Readability
// extraction handles full pages; fragments that it rejects fall back to
// a plain tag strip.
func Sanitize(html string) string {
	text := ""

	if article, err := readability.FromReader(strings.NewReader(html), nil); err == nil {
		text = article.TextContent
	}
	if text == "" {
		text = tagPattern.ReplaceAllString(html, " ")
	}

	return strings.TrimSpace(whitespacePattern.ReplaceAllString(text, " "))
}

// RedactPII masks emails, phone numbers and Canvas user profile paths
// before text is sent to the enrichment API.
func RedactPII(text string) string {
	text = emailPattern.ReplaceAllString(text, "[email]")
	text = phonePattern.ReplaceAllString(text, "[phone]")
	text = userURLPattern.ReplaceAllString(text, "/users/[id]")
	return text
}

// Truncate clips text at the given rune budget on a word boundary. Used
// as the summary fallback when the enrichment API is unavailable.
func Truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}

	clipped := string(runes[:limit])
	if idx := strings.LastIndex(clipped, " "); idx > 0 {
		clipped = clipped[:idx]
	}
	return clipped + "..."
}
