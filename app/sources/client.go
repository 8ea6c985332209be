package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// fetcher is the shared HTTP layer for all source clients. Every
// request carries the configured User-Agent and a per-config timeout.
type fetcher struct {
	httpClient *http.Client
	userAgent  string
}

func newFetcher(httpClient *http.Client, userAgent string) *fetcher {
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &fetcher{httpClient: httpClient, userAgent: userAgent}
}

func (f *fetcher) fetch(ctx context.Context, url string, timeout int) ([]byte, error) {
	timeoutCtx, cancel := context.WithTimeout(ctx, time.Duration(timeout)*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(timeoutCtx, "GET", url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("User-Agent", f.userAgent)

	resp, err := f.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP error: %d %s", resp.StatusCode, resp.Status)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response body: %w", err)
	}

	return data, nil
}
