package sources

import (
	"strings"
	"testing"
)

func TestParseIncidents(t *testing.T) {
	payload := `{
		"incidents": [
			{
				"id": "abc123",
				"name": "Elevated error rates",
				"status": "resolved",
				"impact": "major",
				"shortlink": "https://stspg.io/abc123",
				"created_at": "2026-01-05T10:00:00Z",
				"updated_at": "2026-01-05T12:30:00Z",
				"incident_updates": [
					{"body": "This incident has been resolved.", "status": "resolved", "created_at": "2026-01-05T12:30:00Z"},
					{"body": "We are investigating elevated error rates.", "status": "investigating", "created_at": "2026-01-05T10:00:00Z"}
				]
			},
			{"id": "", "name": "malformed entry"}
		]
	}`

	incidents, err := parseIncidents([]byte(payload))
	if err != nil {
		t.Fatalf("parseIncidents failed: %v", err)
	}

	if len(incidents) != 1 {
		t.Fatalf("Expected entries without id skipped, got %d incidents", len(incidents))
	}

	inc := incidents[0]
	if inc.SourceID != "abc123" {
		t.Errorf("Expected raw provider id, got '%s'", inc.SourceID)
	}
	if inc.Impact != "major" || inc.Status != "resolved" {
		t.Errorf("Unexpected incident fields: %+v", inc)
	}
	if !strings.Contains(inc.Content, "[resolved] This incident has been resolved.") {
		t.Errorf("Expected update timeline in content, got '%s'", inc.Content)
	}
	if !strings.Contains(inc.Content, "[investigating]") {
		t.Errorf("Expected all updates in content, got '%s'", inc.Content)
	}
	if inc.CreatedAt.IsZero() || inc.UpdatedAt.Before(inc.CreatedAt) {
		t.Errorf("Unexpected timestamps: created=%v updated=%v", inc.CreatedAt, inc.UpdatedAt)
	}
}
