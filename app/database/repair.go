package database

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
)

// RepairOptionIDs merges feature option rows whose identifier absorbed
// scrape-time annotation text (e.g. "doc-app-added-2026-01-28") into the
// clean identifier ("doc-app"), re-pointing every dependent announcement
// and content-feature ref. It runs on every startup: after the first
// successful pass the short-circuit scan makes it a no-op. Announcements
// and refs are only ever re-keyed, never lost.
func (r *FeatureRepo) RepairOptionIDs() (int, error) {
	dirty, err := r.findAnnotatedOptionIDs()
	if err != nil {
		return 0, err
	}
	if len(dirty) == 0 {
		return 0, nil
	}

	groups := make(map[string][]string)
	for _, id := range dirty {
		clean := content.NormalizeOptionID(id)
		groups[clean] = append(groups[clean], id)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("failed to begin repair transaction: %w", err)
	}
	defer tx.Rollback()

	merged := 0
	for cleanID, dirtyIDs := range groups {
		if err := r.mergeOptionGroup(tx, cleanID, dirtyIDs); err != nil {
			return 0, err
		}
		merged += len(dirtyIDs)
		slog.Info("Merged annotated option ids", "option_id", cleanID, "merged", len(dirtyIDs))
	}

	if err := r.stripAnnotatedNames(tx); err != nil {
		return 0, err
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit repair transaction: %w", err)
	}
	return merged, nil
}

// findAnnotatedOptionIDs is the short-circuit scan over option ids; the
// annotation rules in app/content give the verdict.
func (r *FeatureRepo) findAnnotatedOptionIDs() ([]string, error) {
	rows, err := r.db.Query(`SELECT option_id FROM feature_options`)
	if err != nil {
		return nil, fmt.Errorf("failed to scan option ids: %w", err)
	}
	defer rows.Close()

	var dirty []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan option id: %w", err)
		}
		if content.HasAnnotation(id) {
			dirty = append(dirty, id)
		}
	}
	return dirty, rows.Err()
}

func (r *FeatureRepo) mergeOptionGroup(tx *sql.Tx, cleanID string, dirtyIDs []string) error {
	clean, err := getOptionTx(tx, cleanID)
	if err != nil {
		return err
	}

	var dirtyRows []FeatureOption
	for _, id := range dirtyIDs {
		opt, err := getOptionTx(tx, id)
		if err != nil {
			return err
		}
		if opt != nil {
			dirtyRows = append(dirtyRows, *opt)
		}
	}
	if len(dirtyRows) == 0 {
		return nil
	}

	merged := mergeOptions(cleanID, clean, dirtyRows)

	_, err = tx.Exec(`
		INSERT INTO feature_options (
			option_id, feature_id, name, canonical_name, status,
			config_level, default_state, beta_date, production_date,
			deprecation_date, first_seen, last_seen, last_updated, meta_summary
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (option_id) DO UPDATE SET
			feature_id = excluded.feature_id,
			name = excluded.name,
			canonical_name = excluded.canonical_name,
			status = excluded.status,
			config_level = excluded.config_level,
			default_state = excluded.default_state,
			beta_date = excluded.beta_date,
			production_date = excluded.production_date,
			deprecation_date = excluded.deprecation_date,
			first_seen = excluded.first_seen,
			last_seen = excluded.last_seen,
			last_updated = excluded.last_updated,
			meta_summary = excluded.meta_summary
	`, merged.OptionID, merged.FeatureID, merged.Name, merged.CanonicalName,
		merged.Status, merged.ConfigLevel, merged.DefaultState, merged.BetaDate,
		merged.ProductionDate, merged.DeprecationDate, merged.FirstSeen,
		merged.LastSeen, time.Now(), merged.MetaSummary)
	if err != nil {
		return fmt.Errorf("failed to write merged option %s: %w", cleanID, err)
	}

	for _, dirtyID := range dirtyIDs {
		if _, err := tx.Exec(`
			UPDATE feature_announcements SET option_id = ? WHERE option_id = ?`,
			cleanID, dirtyID); err != nil {
			return fmt.Errorf("failed to re-point announcements from %s: %w", dirtyID, err)
		}

		// Refs whose re-point would collide with an existing clean ref
		// are redundant; UPDATE OR IGNORE skips them and the delete
		// below removes the leftovers.
		if _, err := tx.Exec(`
			UPDATE OR IGNORE content_feature_refs SET option_id = ? WHERE option_id = ?`,
			cleanID, dirtyID); err != nil {
			return fmt.Errorf("failed to re-point refs from %s: %w", dirtyID, err)
		}
		if _, err := tx.Exec(`
			DELETE FROM content_feature_refs WHERE option_id = ?`, dirtyID); err != nil {
			return fmt.Errorf("failed to delete redundant refs for %s: %w", dirtyID, err)
		}

		if _, err := tx.Exec(`
			DELETE FROM feature_options WHERE option_id = ?`, dirtyID); err != nil {
			return fmt.Errorf("failed to delete dirty option %s: %w", dirtyID, err)
		}
	}

	return nil
}

// mergeOptions folds dirty rows into the clean row. Null fields are
// coalesced in order, non-null values are never overwritten. The
// shortest name among candidates is taken as canonical (the least
// annotated form), with any remaining bracket annotations stripped.
func mergeOptions(cleanID string, clean *FeatureOption, dirtyRows []FeatureOption) FeatureOption {
	var merged FeatureOption
	if clean != nil {
		merged = *clean
	} else {
		merged = dirtyRows[0]
		merged.OptionID = cleanID
		// Dirty-only groups are historical entries by the time they
		// are merged.
		merged.Status = "released"
	}

	for _, d := range dirtyRows {
		if merged.ConfigLevel == nil {
			merged.ConfigLevel = d.ConfigLevel
		}
		if merged.DefaultState == nil {
			merged.DefaultState = d.DefaultState
		}
		if merged.BetaDate == nil {
			merged.BetaDate = d.BetaDate
		}
		if merged.ProductionDate == nil {
			merged.ProductionDate = d.ProductionDate
		}
		if merged.DeprecationDate == nil {
			merged.DeprecationDate = d.DeprecationDate
		}
		if merged.MetaSummary == nil {
			merged.MetaSummary = d.MetaSummary
		}
		if merged.CanonicalName == "" {
			merged.CanonicalName = d.CanonicalName
		}

		if !d.FirstSeen.IsZero() && (merged.FirstSeen.IsZero() || d.FirstSeen.Before(merged.FirstSeen)) {
			merged.FirstSeen = d.FirstSeen
		}
		if d.LastSeen.After(merged.LastSeen) {
			merged.LastSeen = d.LastSeen
		}

		if d.Name != "" && (merged.Name == "" || len(d.Name) < len(merged.Name)) {
			merged.Name = d.Name
		}
	}

	merged.Name = content.StripAnnotations(merged.Name)
	return merged
}

// stripAnnotatedNames cleans bracket annotations out of any remaining
// option name, including options that were never part of a merge group.
func (r *FeatureRepo) stripAnnotatedNames(tx *sql.Tx) error {
	rows, err := tx.Query(`SELECT option_id, name FROM feature_options`)
	if err != nil {
		return fmt.Errorf("failed to scan option names: %w", err)
	}
	defer rows.Close()

	type rename struct{ id, name string }
	var renames []rename
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return fmt.Errorf("failed to scan option name: %w", err)
		}
		if cleaned := content.StripAnnotations(name); cleaned != name {
			renames = append(renames, rename{id, cleaned})
		}
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, r := range renames {
		if _, err := tx.Exec(`UPDATE feature_options SET name = ? WHERE option_id = ?`, r.name, r.id); err != nil {
			return fmt.Errorf("failed to strip annotations from %s: %w", r.id, err)
		}
	}
	return nil
}

func getOptionTx(tx *sql.Tx, optionID string) (*FeatureOption, error) {
	row := tx.QueryRow(optionSelect+` WHERE option_id = ?`, optionID)
	opt, err := scanOption(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load option %s: %w", optionID, err)
	}
	return opt, nil
}
