package websearch_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/opsforge/opsforge/domain/toolset"
	"github.com/opsforge/opsforge/pack/websearch"
)

func callTool(t *testing.T, set *toolset.Toolset, name, input string) map[string]any {
	t.Helper()

	tl, ok := set.GetTool(name)
	if !ok {
		t.Fatalf("tool %s not found", name)
	}

	out, err := tl.Execute(context.Background(), json.RawMessage(input))
	if err != nil {
		t.Fatalf("Execute(%s) error = %v", name, err)
	}

	var result map[string]any
	if err := json.Unmarshal(out, &result); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	return result
}

func seededProvider() *websearch.MemoryProvider {
	provider := websearch.NewMemoryProvider()
	provider.Add(
		websearch.Result{Title: "Go concurrency patterns", URL: "https://example.com/go-conc", Snippet: "channels and goroutines"},
		websearch.Result{Title: "Go error handling", URL: "https://example.com/go-err", Snippet: "wrapping errors"},
		websearch.Result{Title: "Rust ownership", URL: "https://example.com/rust", Snippet: "borrow checker"},
	)
	return provider
}

func TestNew_NilProvider(t *testing.T) {
	if _, err := websearch.New(nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestWebSearch(t *testing.T) {
	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "web_search", `{"query":"go"}`)
	if result["status"] != "success" {
		t.Fatalf("status = %v (%v)", result["status"], result)
	}
	if result["count"] != float64(2) {
		t.Errorf("count = %v, want 2", result["count"])
	}
}

func TestWebSearch_Limit(t *testing.T) {
	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "web_search", `{"query":"go","limit":1}`)
	if result["count"] != float64(1) {
		t.Errorf("count = %v, want 1", result["count"])
	}
}

func TestWebSearch_EmptyQuery(t *testing.T) {
	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "web_search", `{"query":"  "}`)
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}

func TestWebSearch_NoMatches(t *testing.T) {
	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "web_search", `{"query":"cobol"}`)
	if result["status"] != "success" {
		t.Fatalf("status = %v, want success", result["status"])
	}
	if result["count"] != float64(0) {
		t.Errorf("count = %v, want 0", result["count"])
	}
	if _, ok := result["results"].([]any); !ok {
		t.Errorf("results should be an empty array, got %T", result["results"])
	}
}

func TestRESTProvider(t *testing.T) {
	var gotAuth, gotQuery string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.Query().Get("q")
		fmt.Fprint(w, `{"results":[{"title":"Result A","url":"https://a.example","snippet":"first"},{"title":"Result B","url":"https://b.example","snippet":"second"}]}`)
	}))
	defer server.Close()

	provider, err := websearch.NewRESTProvider(websearch.RESTConfig{
		Endpoint: server.URL,
		APIKey:   "token-1",
	})
	if err != nil {
		t.Fatalf("NewRESTProvider failed: %v", err)
	}

	results, err := provider.Search(context.Background(), "test", 2)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("len(results) = %d, want 2", len(results))
	}
	if results[0].Title != "Result A" || results[0].URL != "https://a.example" {
		t.Errorf("unexpected first result: %+v", results[0])
	}
	if gotAuth != "Bearer token-1" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotQuery != "test" {
		t.Errorf("q = %q", gotQuery)
	}
}

func TestRESTProvider_ItemsLayout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"items":[{"title":"Item","link":"https://item.example","snippet":"via link field"}]}`)
	}))
	defer server.Close()

	provider, err := websearch.NewRESTProvider(websearch.RESTConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewRESTProvider failed: %v", err)
	}

	results, err := provider.Search(context.Background(), "item", 5)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(results) != 1 || results[0].URL != "https://item.example" {
		t.Errorf("unexpected results: %+v", results)
	}
}

func TestRESTProvider_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer server.Close()

	provider, err := websearch.NewRESTProvider(websearch.RESTConfig{Endpoint: server.URL})
	if err != nil {
		t.Fatalf("NewRESTProvider failed: %v", err)
	}

	if _, err := provider.Search(context.Background(), "x", 1); err == nil {
		t.Error("Search should fail on non-200 status")
	}
}

func TestRESTProvider_MissingEndpoint(t *testing.T) {
	if _, err := websearch.NewRESTProvider(websearch.RESTConfig{}); err == nil {
		t.Error("NewRESTProvider without endpoint should fail")
	}
}

func TestURLFetch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		fmt.Fprint(w, "<html><body>hello</body></html>")
	}))
	defer server.Close()

	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "url_fetch", fmt.Sprintf(`{"url":%q}`, server.URL))
	if result["status"] != "success" {
		t.Fatalf("status = %v (%v)", result["status"], result)
	}
	if result["status_code"] != float64(200) {
		t.Errorf("status_code = %v, want 200", result["status_code"])
	}
	if ct, _ := result["content_type"].(string); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("content_type = %v", result["content_type"])
	}
	if content, _ := result["content"].(string); !strings.Contains(content, "hello") {
		t.Errorf("content = %q", result["content"])
	}
}

func TestURLFetch_SizeCap(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, strings.Repeat("x", 100))
	}))
	defer server.Close()

	set, err := websearch.New(seededProvider(), websearch.WithMaxBodySize(10))
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "url_fetch", fmt.Sprintf(`{"url":%q}`, server.URL))
	if result["size"] != float64(10) {
		t.Errorf("size = %v, want 10", result["size"])
	}
	if result["truncated"] != true {
		t.Error("truncated should be true")
	}
}

func TestURLFetch_RejectsNonHTTP(t *testing.T) {
	set, err := websearch.New(seededProvider())
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	result := callTool(t, set, "url_fetch", `{"url":"ftp://example.com/file"}`)
	if result["error_kind"] != "invalid_input" {
		t.Errorf("error_kind = %v, want invalid_input", result["error_kind"])
	}
}
