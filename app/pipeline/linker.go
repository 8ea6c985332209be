package pipeline

import (
	"cmp"
	"fmt"
	"log/slog"
	"strings"

	"github.com/lysyi3m/canvas-comb/app/content"
	"github.com/lysyi3m/canvas-comb/app/database"
)

// Linker maps announcement records inside release/deploy note pages to
// canonical feature and option identifiers, upserts option metadata and
// records content-feature references. It never writes directly: all
// invariants (ref uniqueness, option id hygiene) live in the store
// operations it calls.
type Linker struct {
	featureRepo database.FeatureRepository

	featureIDs map[string]string // slug -> feature_id
}

func NewLinker(featureRepo database.FeatureRepository) (*Linker, error) {
	features, err := featureRepo.GetFeatures()
	if err != nil {
		return nil, fmt.Errorf("failed to load feature taxonomy: %w", err)
	}

	ids := make(map[string]string, len(features))
	for _, f := range features {
		ids[f.FeatureID] = f.FeatureID
		ids[content.Slugify(f.Name)] = f.FeatureID
	}

	return &Linker{featureRepo: featureRepo, featureIDs: ids}, nil
}

// LinkStats reports what a page contributed.
type LinkStats struct {
	NewAnnouncements int
	KnownAnchors     int
	UpcomingChanges  int
}

// LinkReleasePage processes every feature record of a release note page:
// option upsert, announcement-exists gate, content-feature ref. A page
// already seen contributes only the anchors not previously persisted.
func (l *Linker) LinkReleasePage(contentID string, page content.ReleaseNotePage) (LinkStats, error) {
	// Sections group the same records as the flat list; only records the
	// flat list is missing are picked up, with the section name as the
	// category fallback.
	records := page.Features
	seen := make(map[string]bool, len(records))
	for _, r := range records {
		seen[recordKey(r)] = true
	}
	for section, sectionRecords := range page.Sections {
		for _, r := range sectionRecords {
			if seen[recordKey(r)] {
				continue
			}
			if r.Category == "" {
				r.Category = section
			}
			records = append(records, r)
			seen[recordKey(r)] = true
		}
	}

	stats, err := l.linkRecords(contentID, records)
	if err != nil {
		return stats, err
	}

	upcoming, err := l.linkUpcomingChanges(contentID, page.UpcomingChanges)
	if err != nil {
		return stats, err
	}
	stats.UpcomingChanges = upcoming

	return stats, nil
}

// LinkDeployPage is the deploy-note analogue of LinkReleasePage.
func (l *Linker) LinkDeployPage(contentID string, page content.DeployNotePage) (LinkStats, error) {
	var records []content.FeatureRecord
	seen := make(map[string]bool, len(page.Changes))
	for _, c := range page.Changes {
		r := changeToFeatureRecord(c)
		records = append(records, r)
		seen[recordKey(r)] = true
	}
	for section, sectionChanges := range page.Sections {
		for _, c := range sectionChanges {
			r := changeToFeatureRecord(c)
			if seen[recordKey(r)] {
				continue
			}
			if r.Category == "" {
				r.Category = section
			}
			records = append(records, r)
			seen[recordKey(r)] = true
		}
	}

	stats, err := l.linkRecords(contentID, records)
	if err != nil {
		return stats, err
	}

	upcoming, err := l.linkUpcomingChanges(contentID, page.UpcomingChanges)
	if err != nil {
		return stats, err
	}
	stats.UpcomingChanges = upcoming

	return stats, nil
}

func (l *Linker) linkRecords(contentID string, records []content.FeatureRecord) (LinkStats, error) {
	var stats LinkStats

	for _, record := range records {
		featureID := l.ResolveFeature(record.Category)
		optionID := content.NormalizeOptionID(cmp.Or(record.AnchorID, record.Name))
		if optionID == "" {
			slog.Warn("Skipping record with no derivable option id", "name", record.Name)
			continue
		}

		opt := database.FeatureOption{
			OptionID:      optionID,
			FeatureID:     featureID,
			Name:          content.StripAnnotations(record.Name),
			CanonicalName: content.Slugify(content.StripAnnotations(record.Name)),
			Status:        optionStatus(record.Table),
		}
		if record.Table != nil {
			// Absent table values stay null; absence is preserved,
			// never fabricated.
			opt.ConfigLevel = nonEmpty(record.Table.ConfigLevel)
			opt.DefaultState = nonEmpty(record.Table.DefaultState)
			opt.BetaDate = record.Table.BetaDate
			opt.ProductionDate = record.Table.ProductionDate
			opt.DeprecationDate = record.Table.DeprecationDate
		}
		if err := l.featureRepo.UpsertFeatureOption(opt); err != nil {
			return stats, err
		}

		anchorID := cmp.Or(record.AnchorID, optionID)
		exists, err := l.featureRepo.AnnouncementExists(contentID, anchorID)
		if err != nil {
			return stats, err
		}
		if exists {
			stats.KnownAnchors++
		} else {
			announcement := database.FeatureAnnouncement{
				ContentID: contentID,
				FeatureID: featureID,
				OptionID:  optionID,
				AnchorID:  anchorID,
			}
			if record.Table != nil {
				announcement.EnableLocation = nonEmpty(record.Table.EnableLocation)
				announcement.Permissions = nonEmpty(record.Table.Permissions)
				announcement.AffectedAreas = nonEmpty(record.Table.AffectedAreas)
				announcement.RelatedIdeas = nonEmpty(record.Table.RelatedIdeas)
				announcement.BetaDate = record.Table.BetaDate
				announcement.ProductionDate = record.Table.ProductionDate
			}
			if _, err := l.featureRepo.InsertFeatureAnnouncement(announcement); err != nil {
				return stats, err
			}
			stats.NewAnnouncements++
		}

		if err := l.featureRepo.AddContentFeatureRef(contentID, featureID, optionID, "announces"); err != nil {
			return stats, err
		}
	}

	return stats, nil
}

func (l *Linker) linkUpcomingChanges(contentID string, changes []content.UpcomingChange) (int, error) {
	inserted := 0
	for _, change := range changes {
		exists, err := l.featureRepo.UpcomingChangeExists(contentID, change.ChangeDate, change.Description)
		if err != nil {
			return inserted, err
		}
		if exists {
			continue
		}
		if err := l.featureRepo.InsertUpcomingChange(contentID, change.ChangeDate, change.Description); err != nil {
			return inserted, err
		}
		inserted++
	}
	return inserted, nil
}

// LinkMentions records keyword-matched feature references for community
// and reddit items. Question posts reference features with mention type
// "questions", feedback/idea posts with "feedback", everything else with
// "discusses".
func (l *Linker) LinkMentions(contentID string, item content.Item) (int, error) {
	text := strings.ToLower(item.Title + " " + item.Content)
	mention := mentionType(item)

	linked := 0
	seen := make(map[string]bool)
	for slug, featureID := range l.featureIDs {
		if seen[featureID] || featureID == "general" {
			continue
		}
		keyword := strings.ReplaceAll(slug, "-", " ")
		if !strings.Contains(text, keyword) {
			continue
		}
		if err := l.featureRepo.AddContentFeatureRef(contentID, featureID, "", mention); err != nil {
			return linked, err
		}
		seen[featureID] = true
		linked++
	}
	return linked, nil
}

// ResolveFeature maps a scraped category name to a canonical feature id.
// Unrecognized categories resolve to the "general" catch-all rather than
// failing.
func (l *Linker) ResolveFeature(category string) string {
	slug := content.Slugify(category)
	if slug == "" {
		return "general"
	}
	if id, ok := l.featureIDs[slug]; ok {
		return id
	}
	// Compound categories like "Gradebook and SpeedGrader" resolve to
	// their first recognizable part.
	for part := range strings.SplitSeq(slug, "-") {
		if id, ok := l.featureIDs[part]; ok {
			return id
		}
	}
	return "general"
}

// optionStatus derives a reasonable initial status from the
// configuration table. The upsert keeps status last-write-wins, so a
// later announcement refines it.
func optionStatus(table *content.TableData) string {
	if table == nil {
		return "pending"
	}
	state := strings.ToLower(table.DefaultState)
	switch {
	case strings.Contains(strings.ToLower(table.ConfigLevel), "preview"):
		return "preview"
	case strings.Contains(state, "on") || strings.Contains(state, "enabled"):
		return "default_optional"
	case strings.Contains(state, "off") || strings.Contains(state, "disabled"):
		return "optional"
	case table.ProductionDate != nil:
		return "released"
	default:
		return "pending"
	}
}

func mentionType(item content.Item) string {
	switch {
	case item.ContentType == content.TypeQuestion || item.ContentType == content.TypeQuestion.Updated():
		return "questions"
	case containsAny(strings.ToLower(item.Title), "idea:", "feature request", "feedback"):
		return "feedback"
	default:
		return "discusses"
	}
}

func containsAny(s string, subs ...string) bool {
	for _, sub := range subs {
		if strings.Contains(s, sub) {
			return true
		}
	}
	return false
}

func recordKey(r content.FeatureRecord) string {
	return cmp.Or(r.AnchorID, content.Slugify(r.Name))
}

func changeToFeatureRecord(c content.ChangeRecord) content.FeatureRecord {
	return content.FeatureRecord{
		Category:   c.Category,
		Name:       c.Name,
		AnchorID:   c.AnchorID,
		RawContent: c.RawContent,
		Table:      c.Table,
	}
}

func nonEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
