package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// RESTProvider queries a JSON search endpoint over HTTP. The endpoint
// and API key typically come from the settings store; the key may itself
// have been resolved from a vault secret.
type RESTProvider struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

// RESTConfig configures the REST search provider.
type RESTConfig struct {
	// Endpoint is the search URL (required). The query and limit are
	// appended as q and limit parameters.
	Endpoint string

	// APIKey is sent as a bearer token when set. It never appears in
	// logs or error messages.
	APIKey string

	// Timeout for search requests.
	Timeout time.Duration

	// HTTPClient overrides the default client, mainly for tests.
	HTTPClient *http.Client
}

// NewRESTProvider creates a REST search provider.
func NewRESTProvider(cfg RESTConfig) (*RESTProvider, error) {
	if cfg.Endpoint == "" {
		return nil, errors.New("search endpoint is required")
	}
	if _, err := url.Parse(cfg.Endpoint); err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}

	client := cfg.HTTPClient
	if client == nil {
		timeout := cfg.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}

	return &RESTProvider{
		endpoint: cfg.Endpoint,
		apiKey:   cfg.APIKey,
		client:   client,
	}, nil
}

// Name returns the provider name.
func (p *RESTProvider) Name() string {
	return "rest"
}

// restResponse covers the two common response layouts: a results array
// with url fields, or an items array with link fields.
type restResponse struct {
	Results []restResult `json:"results"`
	Items   []restResult `json:"items"`
}

type restResult struct {
	Title   string `json:"title"`
	URL     string `json:"url"`
	Link    string `json:"link"`
	Snippet string `json:"snippet"`
	Source  string `json:"source"`
}

// Search runs the query against the configured endpoint.
func (p *RESTProvider) Search(ctx context.Context, query string, limit int) ([]Result, error) {
	u, err := url.Parse(p.endpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid search endpoint: %w", err)
	}
	q := u.Query()
	q.Set("q", query)
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build search request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if p.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+p.apiKey)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("search request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4*1024*1024))
	if err != nil {
		return nil, fmt.Errorf("failed to read search response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("search endpoint returned status %d", resp.StatusCode)
	}

	var parsed restResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to decode search response: %w", err)
	}

	raw := parsed.Results
	if len(raw) == 0 {
		raw = parsed.Items
	}

	results := make([]Result, 0, len(raw))
	for _, r := range raw {
		if limit > 0 && len(results) >= limit {
			break
		}
		link := r.URL
		if link == "" {
			link = r.Link
		}
		results = append(results, Result{
			Title:   r.Title,
			URL:     link,
			Snippet: r.Snippet,
			Source:  r.Source,
		})
	}
	return results, nil
}

var _ Provider = (*RESTProvider)(nil)
