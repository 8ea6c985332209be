package sources

import (
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/lysyi3m/canvas-comb/app/content"
)

var (
	titleDateRe  = regexp.MustCompile(`\((\d{4}-\d{2}-\d{2})\)`)
	bracketsRe   = regexp.MustCompile(`(?i)\[(added|updated|delayed)[^\]]*\]`)
	bracketDate  = regexp.MustCompile(`(?i)\[(?:added|updated)\s+(\d{4}-\d{2}-\d{2})\]`)
	upcomingLine = regexp.MustCompile(`^(\d{4}-\d{2}-\d{2})[:\s]+(.+)$`)
)

var dateLayouts = []string{
	"2006-01-02",
	"January 2, 2006",
	"Jan 2, 2006",
	"2006-01-02T15:04:05Z07:00",
}

// ParseReleaseNotePage parses a release note page into feature records.
// Each H4 heading is one feature entry; its anchor id, bracket
// annotations and trailing configuration table are extracted. Features
// are grouped into sections by the nearest preceding H2/H3 heading.
func ParseReleaseNotePage(r io.Reader, pageURL string) (*content.ReleaseNotePage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	page := &content.ReleaseNotePage{
		Title:       title,
		URL:         pageURL,
		ReleaseDate: dateFromTitle(title),
	}

	page.Features, page.Sections = collectRecords(doc)
	page.UpcomingChanges = collectUpcomingChanges(doc)

	return page, nil
}

// ParseDeployNotePage parses a deploy note page. Deploy entries share
// the release note block structure but carry no added-date annotation.
func ParseDeployNotePage(r io.Reader, pageURL string) (*content.DeployNotePage, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to parse page HTML: %w", err)
	}

	title := strings.TrimSpace(doc.Find("h1").First().Text())
	page := &content.DeployNotePage{
		Title:      title,
		URL:        pageURL,
		DeployDate: dateFromTitle(title),
		Sections:   make(map[string][]content.ChangeRecord),
	}

	records, sections := collectRecords(doc)
	for _, rec := range records {
		page.Changes = append(page.Changes, featureToChange(rec))
	}
	for name, recs := range sections {
		changes := make([]content.ChangeRecord, 0, len(recs))
		for _, rec := range recs {
			changes = append(changes, featureToChange(rec))
		}
		page.Sections[name] = changes
	}
	page.UpcomingChanges = collectUpcomingChanges(doc)

	return page, nil
}

func collectRecords(doc *goquery.Document) ([]content.FeatureRecord, map[string][]content.FeatureRecord) {
	var records []content.FeatureRecord
	sections := make(map[string][]content.FeatureRecord)

	category := ""
	doc.Find("h2, h3, h4").Each(func(_ int, s *goquery.Selection) {
		if goquery.NodeName(s) != "h4" {
			category = strings.TrimSpace(s.Text())
			return
		}

		rawName := strings.TrimSpace(s.Text())
		if rawName == "" {
			return
		}

		rec := content.FeatureRecord{
			Category:  category,
			Name:      strings.TrimSpace(bracketsRe.ReplaceAllString(rawName, "")),
			AnchorID:  anchorID(s),
			AddedDate: addedDate(rawName),
		}
		rec.RawContent, rec.Table = blockContent(s)

		records = append(records, rec)
		if category != "" {
			sections[category] = append(sections[category], rec)
		}
	})

	return records, sections
}

// blockContent walks the siblings following an H4 up to the next
// heading, collecting text and the first table as configuration data.
func blockContent(heading *goquery.Selection) (string, *content.TableData) {
	var parts []string
	var table *content.TableData

	for s := heading.Next(); s.Length() > 0; s = s.Next() {
		switch goquery.NodeName(s) {
		case "h2", "h3", "h4":
			return strings.Join(parts, "\n"), table
		case "table":
			if table == nil {
				table = parseConfigTable(s)
			}
		default:
			if text := strings.TrimSpace(s.Text()); text != "" {
				parts = append(parts, text)
			}
		}
	}
	return strings.Join(parts, "\n"), table
}

func parseConfigTable(s *goquery.Selection) *content.TableData {
	table := &content.TableData{}
	found := false

	s.Find("tr").Each(func(_ int, row *goquery.Selection) {
		cells := row.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		key := strings.ToLower(strings.TrimSpace(cells.Eq(0).Text()))
		value := strings.TrimSpace(cells.Eq(1).Text())
		if value == "" {
			return
		}

		switch {
		case strings.Contains(key, "config"):
			table.ConfigLevel = value
		case strings.Contains(key, "default"):
			table.DefaultState = value
		case strings.Contains(key, "enable"):
			table.EnableLocation = value
		case strings.Contains(key, "permission"):
			table.Permissions = value
		case strings.Contains(key, "affect"):
			table.AffectedAreas = value
		case strings.Contains(key, "idea"):
			table.RelatedIdeas = value
		case strings.Contains(key, "beta"):
			table.BetaDate = parseDate(value)
		case strings.Contains(key, "production"):
			table.ProductionDate = parseDate(value)
		case strings.Contains(key, "deprecat"):
			table.DeprecationDate = parseDate(value)
		default:
			return
		}
		found = true
	})

	if !found {
		return nil
	}
	return table
}

func collectUpcomingChanges(doc *goquery.Document) []content.UpcomingChange {
	var changes []content.UpcomingChange

	doc.Find("h2, h3").Each(func(_ int, s *goquery.Selection) {
		if !strings.Contains(strings.ToLower(s.Text()), "upcoming") {
			return
		}
		for sib := s.Next(); sib.Length() > 0; sib = sib.Next() {
			name := goquery.NodeName(sib)
			if name == "h2" || name == "h3" || name == "h4" {
				break
			}
			sib.Find("li").Each(func(_ int, li *goquery.Selection) {
				m := upcomingLine.FindStringSubmatch(strings.TrimSpace(li.Text()))
				if m == nil {
					return
				}
				date, err := time.Parse("2006-01-02", m[1])
				if err != nil {
					return
				}
				changes = append(changes, content.UpcomingChange{
					ChangeDate:  date,
					Description: strings.TrimSpace(m[2]),
				})
			})
		}
	})

	return changes
}

// anchorID prefers the heading's own id, then a named/ided anchor
// inside it. Entries without any anchor fall back to the option slug
// derived from the name downstream.
func anchorID(s *goquery.Selection) string {
	if id, ok := s.Attr("id"); ok && id != "" {
		return id
	}
	if id, ok := s.Find("a").First().Attr("id"); ok && id != "" {
		return id
	}
	if name, ok := s.Find("a").First().Attr("name"); ok && name != "" {
		return name
	}
	return ""
}

func addedDate(rawName string) *time.Time {
	m := bracketDate.FindStringSubmatch(rawName)
	if m == nil {
		return nil
	}
	date, err := time.Parse("2006-01-02", m[1])
	if err != nil {
		return nil
	}
	return &date
}

func dateFromTitle(title string) time.Time {
	if m := titleDateRe.FindStringSubmatch(title); m != nil {
		if date, err := time.Parse("2006-01-02", m[1]); err == nil {
			return date
		}
	}
	return time.Time{}
}

func parseDate(value string) *time.Time {
	value = strings.TrimSpace(value)
	for _, layout := range dateLayouts {
		if date, err := time.Parse(layout, value); err == nil {
			return &date
		}
	}
	return nil
}

func featureToChange(rec content.FeatureRecord) content.ChangeRecord {
	return content.ChangeRecord{
		Category:   rec.Category,
		Name:       rec.Name,
		AnchorID:   rec.AnchorID,
		RawContent: rec.RawContent,
		Table:      rec.Table,
	}
}
