package content

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Option identifiers are slugs derived from the anchor or heading of a
// release note feature block. Scraped headings sometimes carry transient
// annotation text ("[Added 2026-01-28]", "This feature is currently
// delayed...") which must never leak into the identifier: a polluted id
// is a duplicate of the clean id, not a distinct option.

// annotationSuffixes is the known-finite, ordered set of scrape
// artifacts observed on option slugs. New artifact patterns are a
// one-line addition here.
var annotationSuffixes = []*regexp.Regexp{
	regexp.MustCompile(`-added-\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`-updated-\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`-delayed-as-of-\d{4}-\d{2}-\d{2}$`),
	regexp.MustCompile(`-this-feature-is-currently-delayed.*$`),
	regexp.MustCompile(`-feature-preview$`),
	regexp.MustCompile(`-\d{4}-\d{2}-\d{2}$`),
}

// bracketAnnotation matches inline editorial notes in display names,
// e.g. "Discussions [Added 2026-01-28]".
var bracketAnnotation = regexp.MustCompile(`\s*[\[(](?i:added|updated|delayed|removed)[^)\]]*[)\]]`)

var nonSlug = regexp.MustCompile(`[^a-z0-9]+`)

var asciiFold = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// NormalizeOptionID derives the canonical option identifier from a raw
// slug or heading. It is the single place annotation artifacts are
// stripped; both ingestion and the startup repair pass go through it.
func NormalizeOptionID(raw string) string {
	id := Slugify(raw)

	for changed := true; changed; {
		changed = false
		for _, re := range annotationSuffixes {
			if stripped := re.ReplaceAllString(id, ""); stripped != id && stripped != "" {
				id = stripped
				changed = true
			}
		}
	}

	return id
}

// HasAnnotation reports whether an option id still carries a known
// annotation artifact. Used by the repair pass short-circuit scan.
func HasAnnotation(optionID string) bool {
	for _, re := range annotationSuffixes {
		if re.MatchString(optionID) {
			return true
		}
	}
	return false
}

// StripAnnotations removes bracketed editorial notes from a display
// name, collapsing leftover whitespace.
func StripAnnotations(name string) string {
	cleaned := bracketAnnotation.ReplaceAllString(name, "")
	return strings.Join(strings.Fields(cleaned), " ")
}

// Slugify lowercases, folds diacritics and reduces a string to a
// hyphen-separated slug.
func Slugify(s string) string {
	if folded, _, err := transform.String(asciiFold, s); err == nil {
		s = folded
	}
	s = strings.ToLower(s)
	s = nonSlug.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}
