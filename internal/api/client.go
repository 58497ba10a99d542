package api

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/SlokomManel/federated-recommendations-participants/internal/config"
	friendlyerrors "github.com/SlokomManel/federated-recommendations-participants/internal/errors"
)

// ErrPending is returned when the service has no recommendations yet
// (404 from the recommendations endpoint).
var ErrPending = errors.New("recommendations pending")

// Client talks to the participant service HTTP API.
type Client struct {
	base *url.URL
	hc   *http.Client
	ua   string
}

// New builds a Client from config.
func New(cfg *config.Config) (*Client, error) {
	if cfg == nil {
		return nil, errors.New("nil config")
	}
	u, err := url.Parse(cfg.Server.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse server.base_url: %w", err)
	}
	return &Client{base: u, hc: newHTTPClient(cfg), ua: userAgent(cfg)}, nil
}

// NewWithHTTPClient is a test seam for injecting a custom transport.
func NewWithHTTPClient(baseURL string, hc *http.Client) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	return &Client{base: u, hc: hc, ua: "fedrec (test)"}, nil
}

func (c *Client) endpoint(path string) string {
	u := *c.base
	u.Path = strings.TrimRight(u.Path, "/") + path
	return u.String()
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.endpoint(path), body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.ua)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, friendlyerrors.NetworkError(err)
	}
	return resp, nil
}

func (c *Client) getJSON(ctx context.Context, path string, out any) error {
	resp, err := c.do(ctx, http.MethodGet, path, nil, "")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return statusError(path, resp)
	}
	return decodeJSON(resp.Body, out)
}

func (c *Client) postJSON(ctx context.Context, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		body = bytes.NewReader(b)
	}
	resp, err := c.do(ctx, http.MethodPost, path, body, "application/json")
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()
	// Trigger endpoints report recoverable signals (no_viewing_history,
	// already_computing) with non-2xx codes; decode those instead of failing.
	if resp.StatusCode >= 500 {
		return statusError(path, resp)
	}
	if out == nil {
		return nil
	}
	return decodeJSON(resp.Body, out)
}

func decodeJSON(r io.Reader, out any) error {
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(r).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

func statusError(path string, resp *http.Response) error {
	b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(b))
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("%s: unexpected status %d: %s", path, resp.StatusCode, msg)
}

// Status fetches the combined workflow status.
func (c *Client) Status(ctx context.Context) (*StatusResponse, error) {
	var out StatusResponse
	if err := c.getJSON(ctx, "/api/status", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerFineTune starts the full fine-tuning workflow. The response status
// no_viewing_history is a recoverable signal, not an error.
func (c *Client) TriggerFineTune(ctx context.Context, req FineTuneRequest) (*TriggerResponse, error) {
	var out TriggerResponse
	if err := c.postJSON(ctx, "/api/fl/run", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TriggerRecompute starts recommendation scoring without retraining.
// The response status already_computing is a no-op signal.
func (c *Client) TriggerRecompute(ctx context.Context) (*TriggerResponse, error) {
	var out TriggerResponse
	if err := c.postJSON(ctx, "/api/recommendations/compute", struct{}{}, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Recommendations fetches both ranked lists. Returns ErrPending when the
// service has not produced results yet.
func (c *Client) Recommendations(ctx context.Context) (*RecommendationsResponse, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/recommendations", nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPending
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("/api/recommendations", resp)
	}
	var out RecommendationsResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SharedModelInfo fetches the shared-model freshness marker.
func (c *Client) SharedModelInfo(ctx context.Context) (*SharedModelInfo, error) {
	var out SharedModelInfo
	if err := c.getJSON(ctx, "/api/fl/global-v-info", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// MovieDetails fetches enriched details for one title.
func (c *Client) MovieDetails(ctx context.Context, id int) (*Recommendation, error) {
	resp, err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/movie/%d", id), nil, "")
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrPending
	}
	if resp.StatusCode != http.StatusOK {
		return nil, statusError("/api/movie", resp)
	}
	var out MovieDetailsResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	return &out.Item, nil
}

// RecordChoice posts click telemetry. Callers treat failures as log-only.
func (c *Client) RecordChoice(ctx context.Context, req ChoiceRequest) error {
	return c.postJSON(ctx, "/api/choice", req, nil)
}

// RecordWatchlist posts a will/won't watch action.
func (c *Client) RecordWatchlist(ctx context.Context, req WatchlistRequest) error {
	return c.postJSON(ctx, "/api/watchlist", req, nil)
}

// LogSettings posts the full settings record after a toggle.
func (c *Client) LogSettings(ctx context.Context, s SettingsLog) error {
	return c.postJSON(ctx, "/api/settings/log", s, nil)
}

// SubmitFeedback posts a 1-5 star rating with optional text.
func (c *Client) SubmitFeedback(ctx context.Context, rating int, text string) error {
	if rating < 1 || rating > 5 {
		return fmt.Errorf("rating must be between 1 and 5, got %d", rating)
	}
	req := FeedbackRequest{Rating: rating, Feedback: text, Timestamp: time.Now().Format(time.RFC3339)}
	return c.postJSON(ctx, "/api/feedback", req, nil)
}

// OptOut records an opt-out with an optional reason.
func (c *Client) OptOut(ctx context.Context, reason, message string) error {
	req := OptOutRequest{Reason: reason, UserMessage: message, Timestamp: time.Now().Format(time.RFC3339)}
	return c.postJSON(ctx, "/api/opt-out", req, nil)
}

// Health checks service liveness.
func (c *Client) Health(ctx context.Context) (*HealthResponse, error) {
	var out HealthResponse
	if err := c.getJSON(ctx, "/api/health", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// User fetches the identity the service acts for.
func (c *Client) User(ctx context.Context) (*UserResponse, error) {
	var out UserResponse
	if err := c.getJSON(ctx, "/api/user", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UploadHistory validates and uploads a viewing-history CSV. The service
// expects a multipart form with a "file" field and a Title column in the CSV.
func (c *Client) UploadHistory(ctx context.Context, filename string, r io.Reader) (*UploadResponse, error) {
	content, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", filename, err)
	}
	if err := ValidateHistoryCSV(content); err != nil {
		return nil, friendlyerrors.UploadError(filename, err.Error())
	}

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return nil, err
	}
	if _, err := fw.Write(content); err != nil {
		return nil, err
	}
	if err := mw.Close(); err != nil {
		return nil, err
	}

	resp, err := c.do(ctx, http.MethodPost, "/api/data/upload", &buf, mw.FormDataContentType())
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode >= 500 {
		return nil, statusError("/api/data/upload", resp)
	}
	var out UploadResponse
	if err := decodeJSON(resp.Body, &out); err != nil {
		return nil, err
	}
	if out.Status == "error" {
		return nil, friendlyerrors.UploadError(filename, out.Message)
	}
	return &out, nil
}

// ValidateHistoryCSV applies the same checks the service does before
// accepting an upload: non-empty, decodable, and a Title column present.
func ValidateHistoryCSV(content []byte) error {
	normalized := strings.ReplaceAll(string(content), "\r\n", "\n")
	normalized = strings.ReplaceAll(normalized, "\r", "\n")
	var lines []string
	for _, l := range strings.Split(strings.TrimSpace(normalized), "\n") {
		if strings.TrimSpace(l) != "" {
			lines = append(lines, l)
		}
	}
	if len(lines) == 0 {
		return errors.New("CSV file is empty")
	}
	rec, err := csv.NewReader(strings.NewReader(lines[0])).Read()
	if err != nil {
		return fmt.Errorf("cannot parse CSV header: %w", err)
	}
	for _, col := range rec {
		if strings.EqualFold(strings.TrimSpace(col), "title") {
			return nil
		}
	}
	return errors.New("CSV must have a 'Title' column (Netflix viewing history format expected)")
}
