package database

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var _ FeatureRepository = (*FeatureRepo)(nil)

// FeatureRepo handles database operations for the feature / option /
// announcement relational model.
type FeatureRepo struct {
	db *DB
}

func NewFeatureRepo(db *DB) *FeatureRepo {
	return &FeatureRepo{db: db}
}

// SeedFeatures inserts the canonical feature taxonomy, skipping entries
// already present. Safe to call on every startup.
func (r *FeatureRepo) SeedFeatures() (int, error) {
	inserted := 0
	for _, f := range canonicalFeatures {
		res, err := r.db.Exec(`
			INSERT OR IGNORE INTO features (feature_id, name) VALUES (?, ?)`,
			f.ID, f.Name)
		if err != nil {
			return inserted, fmt.Errorf("failed to seed feature %s: %w", f.ID, err)
		}
		if affected, err := res.RowsAffected(); err == nil && affected > 0 {
			inserted++
		}
	}
	return inserted, nil
}

func (r *FeatureRepo) GetFeature(featureID string) (*Feature, error) {
	row := r.db.QueryRow(`
		SELECT feature_id, name, description, status, llm_generated_at, created_at
		FROM features WHERE feature_id = ?`, featureID)

	feature, err := scanFeature(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get feature: %w", err)
	}
	return feature, nil
}

func (r *FeatureRepo) GetFeatures() ([]Feature, error) {
	return r.queryFeatures(`
		SELECT feature_id, name, description, status, llm_generated_at, created_at
		FROM features ORDER BY feature_id`)
}

// GetFeaturesMissingDescription lists features awaiting LLM description
// backfill.
func (r *FeatureRepo) GetFeaturesMissingDescription() ([]Feature, error) {
	return r.queryFeatures(`
		SELECT feature_id, name, description, status, llm_generated_at, created_at
		FROM features
		WHERE description IS NULL OR description = ''
		ORDER BY feature_id`)
}

func (r *FeatureRepo) UpdateFeatureDescription(featureID, description string) error {
	_, err := r.db.Exec(`
		UPDATE features
		SET description = ?, llm_generated_at = ?
		WHERE feature_id = ?`, description, time.Now(), featureID)
	if err != nil {
		return fmt.Errorf("failed to update feature description: %w", err)
	}
	return nil
}

// UpsertFeatureOption inserts an option on first sight. On conflict,
// incoming non-null values replace stored values and incoming nulls
// leave stored values untouched; status always takes the incoming value;
// last_seen and last_updated always advance; first_seen is set once and
// never regresses.
func (r *FeatureRepo) UpsertFeatureOption(opt FeatureOption) error {
	now := time.Now()

	_, err := r.db.Exec(`
		INSERT INTO feature_options (
			option_id, feature_id, name, canonical_name, status,
			config_level, default_state, beta_date, production_date,
			deprecation_date, first_seen, last_seen, last_updated, meta_summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (option_id) DO UPDATE SET
			feature_id = excluded.feature_id,
			name = CASE WHEN excluded.name != '' THEN excluded.name ELSE name END,
			canonical_name = CASE WHEN excluded.canonical_name != '' THEN excluded.canonical_name ELSE canonical_name END,
			status = excluded.status,
			config_level = COALESCE(excluded.config_level, config_level),
			default_state = COALESCE(excluded.default_state, default_state),
			beta_date = COALESCE(excluded.beta_date, beta_date),
			production_date = COALESCE(excluded.production_date, production_date),
			deprecation_date = COALESCE(excluded.deprecation_date, deprecation_date),
			last_seen = excluded.last_seen,
			last_updated = excluded.last_updated,
			meta_summary = COALESCE(excluded.meta_summary, meta_summary)
	`, opt.OptionID, opt.FeatureID, opt.Name, opt.CanonicalName, opt.Status,
		opt.ConfigLevel, opt.DefaultState, opt.BetaDate, opt.ProductionDate,
		opt.DeprecationDate, now, now, now, opt.MetaSummary)
	if err != nil {
		return fmt.Errorf("failed to upsert feature option: %w", err)
	}
	return nil
}

func (r *FeatureRepo) GetOption(optionID string) (*FeatureOption, error) {
	row := r.db.QueryRow(optionSelect+` WHERE option_id = ?`, optionID)

	opt, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get option: %w", err)
	}
	return opt, nil
}

func (r *FeatureRepo) GetFeatureOptions(featureID string) ([]FeatureOption, error) {
	rows, err := r.db.Query(optionSelect+` WHERE feature_id = ? ORDER BY option_id`, featureID)
	if err != nil {
		return nil, fmt.Errorf("failed to query feature options: %w", err)
	}
	defer rows.Close()

	var options []FeatureOption
	for rows.Next() {
		opt, err := scanOption(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan option: %w", err)
		}
		options = append(options, *opt)
	}
	return options, rows.Err()
}

// AddContentFeatureRef links a content item to a feature and/or option.
// At least one of featureID/optionID is required. Inserting the same ref
// twice is a no-op, absorbed by the unique constraint.
func (r *FeatureRepo) AddContentFeatureRef(contentID, featureID, optionID, mentionType string) error {
	if featureID == "" && optionID == "" {
		return fmt.Errorf("%w: content feature ref requires a feature or an option", ErrInvalidArgument)
	}

	_, err := r.db.Exec(`
		INSERT OR IGNORE INTO content_feature_refs (content_id, feature_id, option_id, mention_type)
		VALUES (?, ?, ?, ?)`, contentID, featureID, optionID, mentionType)
	if err != nil {
		return fmt.Errorf("failed to add content feature ref: %w", err)
	}
	return nil
}

func (r *FeatureRepo) GetRefsByContent(contentID string) ([]ContentFeatureRef, error) {
	rows, err := r.db.Query(`
		SELECT content_id, feature_id, option_id, mention_type, created_at
		FROM content_feature_refs
		WHERE content_id = ?
		ORDER BY feature_id, option_id`, contentID)
	if err != nil {
		return nil, fmt.Errorf("failed to query refs: %w", err)
	}
	defer rows.Close()

	var refs []ContentFeatureRef
	for rows.Next() {
		var ref ContentFeatureRef
		var createdAt sql.NullTime
		if err := rows.Scan(&ref.ContentID, &ref.FeatureID, &ref.OptionID, &ref.MentionType, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan ref: %w", err)
		}
		ref.CreatedAt = createdAt.Time
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// InsertFeatureAnnouncement persists one feature/option mention of a
// content item. Callers must gate with AnnouncementExists; the store
// does not deduplicate announcements itself.
func (r *FeatureRepo) InsertFeatureAnnouncement(a FeatureAnnouncement) (string, error) {
	id := uuid.New().String()

	_, err := r.db.Exec(`
		INSERT INTO feature_announcements (
			id, content_id, feature_id, option_id, anchor_id,
			enable_location, permissions, affected_areas, related_ideas,
			beta_date, production_date
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, id, a.ContentID, a.FeatureID, a.OptionID, a.AnchorID,
		a.EnableLocation, a.Permissions, a.AffectedAreas, a.RelatedIdeas,
		a.BetaDate, a.ProductionDate)
	if err != nil {
		return "", fmt.Errorf("failed to insert announcement: %w", err)
	}
	return id, nil
}

func (r *FeatureRepo) AnnouncementExists(contentID, anchorID string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM feature_announcements
		WHERE content_id = ? AND anchor_id = ? LIMIT 1`, contentID, anchorID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check announcement existence: %w", err)
	}
	return true, nil
}

func (r *FeatureRepo) GetAnnouncementsByContent(contentID string) ([]FeatureAnnouncement, error) {
	return r.queryAnnouncements(announcementSelect+` WHERE content_id = ? ORDER BY anchor_id`, contentID)
}

func (r *FeatureRepo) GetAnnouncementsByOption(optionID string) ([]FeatureAnnouncement, error) {
	return r.queryAnnouncements(announcementSelect+` WHERE option_id = ? ORDER BY created_at`, optionID)
}

func (r *FeatureRepo) InsertUpcomingChange(contentID string, changeDate time.Time, description string) error {
	_, err := r.db.Exec(`
		INSERT INTO upcoming_changes (content_id, change_date, description)
		VALUES (?, ?, ?)`, contentID, changeDate, description)
	if err != nil {
		return fmt.Errorf("failed to insert upcoming change: %w", err)
	}
	return nil
}

func (r *FeatureRepo) UpcomingChangeExists(contentID string, changeDate time.Time, description string) (bool, error) {
	var one int
	err := r.db.QueryRow(`
		SELECT 1 FROM upcoming_changes
		WHERE content_id = ? AND change_date = ? AND description = ? LIMIT 1`,
		contentID, changeDate, description).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check upcoming change existence: %w", err)
	}
	return true, nil
}

func (r *FeatureRepo) queryFeatures(query string, args ...any) ([]Feature, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query features: %w", err)
	}
	defer rows.Close()

	var features []Feature
	for rows.Next() {
		feature, err := scanFeature(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan feature: %w", err)
		}
		features = append(features, *feature)
	}
	return features, rows.Err()
}

func (r *FeatureRepo) queryAnnouncements(query string, args ...any) ([]FeatureAnnouncement, error) {
	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query announcements: %w", err)
	}
	defer rows.Close()

	var announcements []FeatureAnnouncement
	for rows.Next() {
		a, err := scanAnnouncement(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan announcement: %w", err)
		}
		announcements = append(announcements, *a)
	}
	return announcements, rows.Err()
}

const optionSelect = `
	SELECT option_id, feature_id, name, canonical_name, status,
	       config_level, default_state, beta_date, production_date,
	       deprecation_date, first_seen, last_seen, last_updated, meta_summary
	FROM feature_options`

const announcementSelect = `
	SELECT id, content_id, feature_id, option_id, anchor_id,
	       enable_location, permissions, affected_areas, related_ideas,
	       beta_date, production_date, created_at
	FROM feature_announcements`

func scanFeature(row rowScanner) (*Feature, error) {
	var f Feature
	var description sql.NullString
	var llmGeneratedAt, createdAt sql.NullTime

	if err := row.Scan(&f.FeatureID, &f.Name, &description, &f.Status, &llmGeneratedAt, &createdAt); err != nil {
		return nil, err
	}

	f.Description = stringPtr(description)
	f.LLMGeneratedAt = timePtr(llmGeneratedAt)
	f.CreatedAt = createdAt.Time
	return &f, nil
}

func scanOption(row rowScanner) (*FeatureOption, error) {
	var opt FeatureOption
	var configLevel, defaultState, metaSummary sql.NullString
	var betaDate, productionDate, deprecationDate, firstSeen, lastSeen, lastUpdated sql.NullTime

	err := row.Scan(&opt.OptionID, &opt.FeatureID, &opt.Name, &opt.CanonicalName,
		&opt.Status, &configLevel, &defaultState, &betaDate, &productionDate,
		&deprecationDate, &firstSeen, &lastSeen, &lastUpdated, &metaSummary)
	if err != nil {
		return nil, err
	}

	opt.ConfigLevel = stringPtr(configLevel)
	opt.DefaultState = stringPtr(defaultState)
	opt.BetaDate = timePtr(betaDate)
	opt.ProductionDate = timePtr(productionDate)
	opt.DeprecationDate = timePtr(deprecationDate)
	opt.FirstSeen = firstSeen.Time
	opt.LastSeen = lastSeen.Time
	opt.LastUpdated = lastUpdated.Time
	opt.MetaSummary = stringPtr(metaSummary)
	return &opt, nil
}

func scanAnnouncement(row rowScanner) (*FeatureAnnouncement, error) {
	var a FeatureAnnouncement
	var enableLocation, permissions, affectedAreas, relatedIdeas sql.NullString
	var betaDate, productionDate, createdAt sql.NullTime

	err := row.Scan(&a.ID, &a.ContentID, &a.FeatureID, &a.OptionID, &a.AnchorID,
		&enableLocation, &permissions, &affectedAreas, &relatedIdeas,
		&betaDate, &productionDate, &createdAt)
	if err != nil {
		return nil, err
	}

	a.EnableLocation = stringPtr(enableLocation)
	a.Permissions = stringPtr(permissions)
	a.AffectedAreas = stringPtr(affectedAreas)
	a.RelatedIdeas = stringPtr(relatedIdeas)
	a.BetaDate = timePtr(betaDate)
	a.ProductionDate = timePtr(productionDate)
	a.CreatedAt = createdAt.Time
	return &a, nil
}

func stringPtr(s sql.NullString) *string {
	if !s.Valid {
		return nil
	}
	v := s.String
	return &v
}
