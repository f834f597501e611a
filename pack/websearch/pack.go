package websearch

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/opsforge/opsforge/domain/envelope"
	"github.com/opsforge/opsforge/domain/tool"
	"github.com/opsforge/opsforge/domain/toolset"
)

// Config configures the websearch pack.
type Config struct {
	// Provider is the search provider (required).
	Provider Provider

	// Agent is the owning agent name, echoed in error envelopes.
	Agent string

	// MaxResults caps the number of search results per query.
	MaxResults int

	// MaxBodySize limits fetched page size (bytes).
	MaxBodySize int64

	// Timeout for operations.
	Timeout time.Duration

	// HTTPClient serves url_fetch; overridable for tests.
	HTTPClient *http.Client
}

// Option configures the websearch pack.
type Option func(*Config)

// WithAgent sets the owning agent name.
func WithAgent(agent string) Option {
	return func(c *Config) {
		c.Agent = agent
	}
}

// WithMaxResults caps results per query.
func WithMaxResults(n int) Option {
	return func(c *Config) {
		c.MaxResults = n
	}
}

// WithMaxBodySize sets the fetch size cap.
func WithMaxBodySize(size int64) Option {
	return func(c *Config) {
		c.MaxBodySize = size
	}
}

// WithTimeout sets the operation timeout.
func WithTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.Timeout = timeout
	}
}

// WithHTTPClient overrides the fetch client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Config) {
		c.HTTPClient = client
	}
}

// New creates the websearch toolset.
func New(provider Provider, opts ...Option) (*toolset.Toolset, error) {
	if provider == nil {
		return nil, errors.New("search provider is required")
	}

	cfg := Config{
		Provider:    provider,
		MaxResults:  10,
		MaxBodySize: 2 * 1024 * 1024, // 2MB
		Timeout:     30 * time.Second,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}

	return toolset.NewBuilder("websearch").
		WithAgent(cfg.Agent).
		WithDescription("Web search and page fetch (" + provider.Name() + ")").
		WithVersion("1.0.0").
		AddTools(
			webSearchTool(&cfg),
			urlFetchTool(&cfg),
		).
		Build(), nil
}

// webSearchInput is the input for the web_search tool.
type webSearchInput struct {
	Query string `json:"query"`
	Limit int    `json:"limit,omitempty"`
}

// webSearchOutput is the output for the web_search tool.
type webSearchOutput struct {
	Query   string   `json:"query"`
	Results []Result `json:"results"`
	Count   int      `json:"count"`
}

func webSearchTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("web_search").
		WithInstruction("Search the web and return titled, linked results with snippets.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in webSearchInput
			if err := json.Unmarshal(input, &in); err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil), nil
			}

			echo := map[string]any{"query": in.Query}
			if strings.TrimSpace(in.Query) == "" {
				return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, "query is required"), echo), nil
			}

			limit := in.Limit
			if limit <= 0 || limit > cfg.MaxResults {
				limit = cfg.MaxResults
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			results, err := cfg.Provider.Search(ctx, in.Query, limit)
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindProvider, "search failed", err), echo), nil
			}
			if results == nil {
				results = []Result{}
			}

			return envelope.Success(webSearchOutput{
				Query:   in.Query,
				Results: results,
				Count:   len(results),
			})
		}).
		MustBuild()
}

// urlFetchInput is the input for the url_fetch tool.
type urlFetchInput struct {
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
}

// urlFetchOutput is the output for the url_fetch tool.
type urlFetchOutput struct {
	URL         string `json:"url"`
	StatusCode  int    `json:"status_code"`
	ContentType string `json:"content_type,omitempty"`
	Content     string `json:"content"`
	Size        int64  `json:"size"`
	Truncated   bool   `json:"truncated,omitempty"`
}

func urlFetchTool(cfg *Config) tool.Tool {
	return tool.NewBuilder("url_fetch").
		WithInstruction("Fetch a web page. Responses are capped at the configured size limit.").
		ReadOnly().
		WithHandler(func(ctx context.Context, input json.RawMessage) (json.RawMessage, error) {
			var in urlFetchInput
			if err := json.Unmarshal(input, &in); err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid input", err), nil), nil
			}

			echo := map[string]any{"url": in.URL}
			if in.URL == "" {
				return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, "url is required"), echo), nil
			}
			if !strings.HasPrefix(in.URL, "http://") && !strings.HasPrefix(in.URL, "https://") {
				return envelope.Fail(envelope.NewError(envelope.KindInvalidInput, "url must use http or https"), echo), nil
			}

			ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
			defer cancel()

			req, err := http.NewRequestWithContext(ctx, http.MethodGet, in.URL, nil)
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindInvalidInput, "invalid url", err), echo), nil
			}
			for k, v := range in.Headers {
				req.Header.Set(k, v)
			}

			resp, err := cfg.HTTPClient.Do(req)
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindProvider, "fetch failed", err), echo), nil
			}
			defer resp.Body.Close()

			body, err := io.ReadAll(io.LimitReader(resp.Body, cfg.MaxBodySize+1))
			if err != nil {
				return envelope.Fail(envelope.Wrap(envelope.KindProvider, "failed to read response", err), echo), nil
			}
			truncated := false
			if int64(len(body)) > cfg.MaxBodySize {
				body = body[:cfg.MaxBodySize]
				truncated = true
			}

			return envelope.Success(urlFetchOutput{
				URL:         in.URL,
				StatusCode:  resp.StatusCode,
				ContentType: resp.Header.Get("Content-Type"),
				Content:     string(body),
				Size:        int64(len(body)),
				Truncated:   truncated,
			})
		}).
		MustBuild()
}
