package logfeed

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// HTTPSource polls a log backend over plain HTTP. The backend answers
// GET {base}/sessions/{id}/log?after={RFC3339Nano} with a JSON FetchResult.
type HTTPSource struct {
	baseURL string
	client  *http.Client
}

// NewHTTPSource creates an HTTP log source. A nil client gets a default with
// sane timeouts and connection pooling.
func NewHTTPSource(baseURL string, client *http.Client) *HTTPSource {
	if client == nil {
		client = &http.Client{
			Timeout: 15 * time.Second,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		}
	}
	return &HTTPSource{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// Fetch implements Source.
func (s *HTTPSource) Fetch(ctx context.Context, sessionID string, after time.Time) (*FetchResult, error) {
	endpoint := fmt.Sprintf("%s/sessions/%s/log", s.baseURL, url.PathEscape(sessionID))
	if !after.IsZero() {
		endpoint += "?after=" + url.QueryEscape(after.UTC().Format(time.RFC3339Nano))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create log request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch log rows: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("log source returned status %s", resp.Status)
	}

	var result FetchResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode log response: %w", err)
	}
	return &result, nil
}
