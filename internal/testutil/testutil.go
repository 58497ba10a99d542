package testutil

import (
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	"github.com/SlokomManel/federated-recommendations-participants/internal/state"
)

// MockHTTPServer creates a test HTTP server that serves canned responses
type MockHTTPServer struct {
	*httptest.Server
	Responses map[string]MockResponse
	// Requests records the method+path of every call, in order.
	Requests []string
}

// MockResponse represents a canned HTTP response
type MockResponse struct {
	StatusCode int
	Body       string
	Headers    map[string]string
}

// NewMockHTTPServer creates a new mock HTTP server
func NewMockHTTPServer() *MockHTTPServer {
	ms := &MockHTTPServer{
		Responses: make(map[string]MockResponse),
	}

	ms.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ms.Requests = append(ms.Requests, r.Method+" "+r.URL.Path)

		resp, ok := ms.Responses[r.URL.Path]
		if !ok {
			w.WriteHeader(http.StatusNotFound)
			_, _ = fmt.Fprintf(w, "No mock response configured for %s", r.URL.Path)
			return
		}

		for k, v := range resp.Headers {
			w.Header().Set(k, v)
		}
		w.WriteHeader(resp.StatusCode)
		_, _ = fmt.Fprint(w, resp.Body)
	}))

	return ms
}

// AddJSONResponse adds a JSON response for a specific path
func (ms *MockHTTPServer) AddJSONResponse(path string, statusCode int, body string) {
	ms.Responses[path] = MockResponse{
		StatusCode: statusCode,
		Body:       body,
		Headers: map[string]string{
			"Content-Type": "application/json",
		},
	}
}

// TestConfig returns a minimal valid config rooted in a per-test temp dir.
func TestConfig(t *testing.T, baseURL string) *config.Config {
	t.Helper()
	c := &config.Config{Version: 1}
	c.General.DataRoot = t.TempDir()
	c.Server.BaseURL = baseURL
	c.Server.TimeoutSeconds = 5
	c.Workflow.PollIntervalSeconds = 1
	c.Workflow.Profile = "profile_0"
	c.Workflow.Epsilon = 1.0
	if err := c.Validate(); err != nil {
		t.Fatalf("test config invalid: %v", err)
	}
	return c
}

// TestStore opens a preference store in a per-test temp dir.
func TestStore(t *testing.T) *state.DB {
	t.Helper()
	cfg := TestConfig(t, "http://localhost:1")
	db, err := state.Open(cfg)
	if err != nil {
		t.Fatalf("open test store: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}
