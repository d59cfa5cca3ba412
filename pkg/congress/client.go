// Package congress is the typed client for the congress.gov v3 API. It owns
// inter-request spacing, 429/5xx retry with exponential backoff, and the
// 404-as-absence contract; it does not know what the caller does with the
// payloads.
package congress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/legisync/legisync/pkg/model"
)

const (
	defaultBaseURL = "https://api.congress.gov/v3"
	defaultTimeout = 60 * time.Second

	// ActionsPageLimit is the fixed limit on the /actions sub-endpoint.
	ActionsPageLimit = 250

	// MaxListLimit is the upstream hard cap on list pages.
	MaxListLimit = 250

	// maxTextDocument caps downloads of bill text renditions.
	maxTextDocument = 10 * 1024 * 1024
)

// Errors returned by the client.
var (
	ErrNoAPIKey          = errors.New("congress: API key is required")
	ErrNotFound          = errors.New("congress: resource not found")
	ErrRetriesExhausted  = errors.New("congress: retries exhausted")
	ErrUnexpectedStatus  = errors.New("congress: unexpected status code")
	ErrMalformedResponse = errors.New("congress: malformed response")
	ErrDocumentTooLarge  = errors.New("congress: text document exceeds size cap")
)

// Client issues GET requests against the upstream API with cooperative rate
// limiting. All methods are safe for concurrent use; the limiter serializes
// request spacing across goroutines sharing one client.
type Client struct {
	apiKey     string
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxRetries int
	backoff    time.Duration
	sleep      func(ctx context.Context, d time.Duration) error
	logger     *slog.Logger
}

// Option configures the Client.
type Option func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithBaseURL overrides the upstream base URL, for tests against a local
// fake.
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimSuffix(u, "/") }
}

// WithInterRequestDelay sets the minimum spacing between consecutive
// requests on this client.
func WithInterRequestDelay(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.limiter = rate.NewLimiter(rate.Every(d), 1)
		}
	}
}

// WithRetry sets the retry budget and the initial backoff doubled on each
// rate-limited attempt.
func WithRetry(maxRetries int, initialBackoff time.Duration) Option {
	return func(c *Client) {
		if maxRetries > 0 {
			c.maxRetries = maxRetries
		}
		if initialBackoff > 0 {
			c.backoff = initialBackoff
		}
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// NewClient builds a client. The API key is mandatory.
func NewClient(apiKey string, opts ...Option) (*Client, error) {
	if apiKey == "" {
		return nil, ErrNoAPIKey
	}

	c := &Client{
		apiKey:     apiKey,
		baseURL:    defaultBaseURL,
		httpClient: &http.Client{Timeout: defaultTimeout},
		limiter:    rate.NewLimiter(rate.Every(750*time.Millisecond), 1),
		maxRetries: 3,
		backoff:    10 * time.Second,
		logger:     slog.Default().With("component", "congress"),
	}
	c.sleep = func(ctx context.Context, d time.Duration) error {
		t := time.NewTimer(d)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			return nil
		}
	}

	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// FormatFromDateTime renders t the way the upstream fromDateTime parameter
// expects: ISO-8601 UTC, seconds precision, trailing Z.
func FormatFromDateTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format("2006-01-02T15:04:05Z")
}

// get fetches and decodes one endpoint into out. The label names the
// endpoint in logs; the API key never appears there. Transient failures
// (429, 5xx, network) are retried within the budget; 404 surfaces as
// ErrNotFound; any other status fails immediately.
func (c *Client) get(ctx context.Context, path string, query url.Values, label string, out any) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("api_key", c.apiKey)
	query.Set("format", "json")
	full := c.baseURL + path + "?" + query.Encode()

	var lastErr error
	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, full, nil)
		if err != nil {
			return fmt.Errorf("congress: build request for %s: %w", label, err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			lastErr = err
			c.logger.Warn("fetch failed", "endpoint", label, "attempt", attempt, "error", err)
			if err := c.backoffSleep(ctx, attempt); err != nil {
				return err
			}
			continue
		}

		switch {
		case resp.StatusCode == http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			_ = resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%w: decode %s: %v", ErrMalformedResponse, label, err)
			}
			return nil

		case resp.StatusCode == http.StatusNotFound:
			_ = resp.Body.Close()
			return ErrNotFound

		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			_ = resp.Body.Close()
			lastErr = fmt.Errorf("%w: %d on %s", ErrUnexpectedStatus, resp.StatusCode, label)
			c.logger.Warn("upstream throttled or failing",
				"endpoint", label, "status", resp.StatusCode, "attempt", attempt)
			if err := c.backoffSleep(ctx, attempt); err != nil {
				return err
			}
			continue

		default:
			_ = resp.Body.Close()
			return fmt.Errorf("%w: %d on %s", ErrUnexpectedStatus, resp.StatusCode, label)
		}
	}

	return fmt.Errorf("%w: %s: %v", ErrRetriesExhausted, label, lastErr)
}

// backoffSleep waits initialBackoff * 2^attempt before the next try.
func (c *Client) backoffSleep(ctx context.Context, attempt int) error {
	return c.sleep(ctx, c.backoff<<uint(attempt))
}

// ListBills fetches one catalog page. When updatedSince is non-nil the page
// is filtered to bills updated after it and sorted by update date
// descending.
func (c *Client) ListBills(ctx context.Context, congress int, billType model.BillType, offset, limit int, updatedSince *time.Time) (*BillList, error) {
	if limit <= 0 || limit > MaxListLimit {
		limit = MaxListLimit
	}
	q := url.Values{}
	q.Set("offset", fmt.Sprint(offset))
	q.Set("limit", fmt.Sprint(limit))
	if updatedSince != nil {
		q.Set("fromDateTime", FormatFromDateTime(*updatedSince))
		q.Set("sort", "updateDate desc")
	}

	var list BillList
	path := fmt.Sprintf("/bill/%d/%s", congress, billType)
	if err := c.get(ctx, path, q, "list", &list); err != nil {
		return nil, err
	}
	return &list, nil
}

// GetBillDetail fetches the bill detail payload.
func (c *Client) GetBillDetail(ctx context.Context, congress int, billType model.BillType, number int) (*BillDetail, error) {
	var wrapper struct {
		Bill BillDetail `json:"bill"`
	}
	path := fmt.Sprintf("/bill/%d/%s/%d", congress, billType, number)
	if err := c.get(ctx, path, nil, "detail", &wrapper); err != nil {
		return nil, err
	}
	return &wrapper.Bill, nil
}

// GetBillActions fetches up to ActionsPageLimit actions for a bill.
func (c *Client) GetBillActions(ctx context.Context, congress int, billType model.BillType, number int) ([]ActionItem, error) {
	var wrapper struct {
		Actions []ActionItem `json:"actions"`
	}
	q := url.Values{}
	q.Set("limit", fmt.Sprint(ActionsPageLimit))
	path := fmt.Sprintf("/bill/%d/%s/%d/actions", congress, billType, number)
	if err := c.get(ctx, path, q, "actions", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Actions, nil
}

// GetBillSubjects fetches the policy area for a bill. A nil result with nil
// error means the bill has no policy area.
func (c *Client) GetBillSubjects(ctx context.Context, congress int, billType model.BillType, number int) (*PolicyArea, error) {
	var wrapper struct {
		Subjects struct {
			PolicyArea *PolicyArea `json:"policyArea"`
		} `json:"subjects"`
	}
	path := fmt.Sprintf("/bill/%d/%s/%d/subjects", congress, billType, number)
	if err := c.get(ctx, path, nil, "subjects", &wrapper); err != nil {
		return nil, err
	}
	if wrapper.Subjects.PolicyArea == nil || wrapper.Subjects.PolicyArea.Name == "" {
		return nil, nil
	}
	return wrapper.Subjects.PolicyArea, nil
}

// GetBillSummaries fetches all summaries for a bill.
func (c *Client) GetBillSummaries(ctx context.Context, congress int, billType model.BillType, number int) ([]SummaryItem, error) {
	var wrapper struct {
		Summaries []SummaryItem `json:"summaries"`
	}
	path := fmt.Sprintf("/bill/%d/%s/%d/summaries", congress, billType, number)
	if err := c.get(ctx, path, nil, "summaries", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.Summaries, nil
}

// GetBillTextVersions fetches the text versions for a bill, oldest first.
func (c *Client) GetBillTextVersions(ctx context.Context, congress int, billType model.BillType, number int) ([]TextVersion, error) {
	var wrapper struct {
		TextVersions []TextVersion `json:"textVersions"`
	}
	path := fmt.Sprintf("/bill/%d/%s/%d/text", congress, billType, number)
	if err := c.get(ctx, path, nil, "text", &wrapper); err != nil {
		return nil, err
	}
	return wrapper.TextVersions, nil
}

// FetchTextDocument downloads one bill text rendition. Renditions over the
// size cap return ErrDocumentTooLarge rather than a truncated body, so a
// partial document is never mistaken for a complete one. The rendition URLs
// do not require the API key, but the spacing limiter still applies.
func (c *Client) FetchTextDocument(ctx context.Context, docURL string) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return nil, fmt.Errorf("congress: build text request: %w", err)
	}
	req.Header.Set("Accept", "text/xml, text/html, text/plain")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("congress: fetch text document: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %d on text document", ErrUnexpectedStatus, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxTextDocument+1))
	if err != nil {
		return nil, fmt.Errorf("congress: read text document: %w", err)
	}
	if len(body) > maxTextDocument {
		return nil, ErrDocumentTooLarge
	}
	return body, nil
}
