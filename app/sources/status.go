package sources

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/lysyi3m/canvas-comb/app/content"
)

// StatusClient reads incidents from the Statuspage v2 JSON API.
type StatusClient struct {
	fetcher *fetcher
}

func NewStatusClient(httpClient *http.Client, userAgent string) *StatusClient {
	return &StatusClient{fetcher: newFetcher(httpClient, userAgent)}
}

type statusIncidents struct {
	Incidents []struct {
		ID              string    `json:"id"`
		Name            string    `json:"name"`
		Status          string    `json:"status"`
		Impact          string    `json:"impact"`
		Shortlink       string    `json:"shortlink"`
		CreatedAt       time.Time `json:"created_at"`
		UpdatedAt       time.Time `json:"updated_at"`
		IncidentUpdates []struct {
			Body      string    `json:"body"`
			Status    string    `json:"status"`
			CreatedAt time.Time `json:"created_at"`
		} `json:"incident_updates"`
	} `json:"incidents"`
}

// FetchIncidents returns the provider's recent incidents, newest
// first, capped at max_items. The incident body is the concatenated
// update timeline, newest update first as the API delivers it.
func (c *StatusClient) FetchIncidents(ctx context.Context, config *Config) ([]content.Incident, error) {
	data, err := c.fetcher.fetch(ctx, config.Status.IncidentsURL, config.Settings.Timeout)
	if err != nil {
		return nil, err
	}

	incidents, err := parseIncidents(data)
	if err != nil {
		return nil, err
	}

	if len(incidents) > config.Settings.MaxItems {
		incidents = incidents[:config.Settings.MaxItems]
	}
	return incidents, nil
}

func parseIncidents(data []byte) ([]content.Incident, error) {
	var payload statusIncidents
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("failed to parse incidents JSON: %w", err)
	}

	incidents := make([]content.Incident, 0, len(payload.Incidents))
	for _, inc := range payload.Incidents {
		if inc.ID == "" {
			continue
		}

		var updates []string
		for _, u := range inc.IncidentUpdates {
			updates = append(updates, fmt.Sprintf("[%s] %s", u.Status, u.Body))
		}

		incidents = append(incidents, content.Incident{
			SourceID:  inc.ID,
			Title:     inc.Name,
			URL:       inc.Shortlink,
			Status:    inc.Status,
			Impact:    inc.Impact,
			Content:   strings.Join(updates, "\n"),
			CreatedAt: inc.CreatedAt.UTC(),
			UpdatedAt: inc.UpdatedAt.UTC(),
		})
	}

	return incidents, nil
}
