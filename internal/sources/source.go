// Package sources contains one adapter per external bibliographic
// database or trial registry. Each adapter normalizes its provider's
// response into record.CandidateRecord and isolates provider-specific
// failure: a failed search reduces to an error value the orchestrator
// logs and treats as an empty contribution.
package sources

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"golang.org/x/time/rate"

	"github.com/matsen/trawl/internal/record"
)

const (
	// MinAbstractLength is the minimum abstract length in characters.
	// Records below it cannot be ranked or judged meaningfully and are
	// discarded at the adapter boundary.
	MinAbstractLength = 100

	// maxPageSize is the pagination cap shared by all provider APIs.
	maxPageSize = 100

	// rateLimitBackoff is how long to wait before the single retry
	// permitted after an HTTP 429.
	rateLimitBackoff = 2 * time.Second

	// DefaultContactEmail identifies us to polite-use API pools when
	// the caller supplies no address.
	DefaultContactEmail = "researcher@example.com"
)

// Searcher is the contract every source adapter satisfies.
type Searcher interface {
	// Name returns the source name recorded on its candidates.
	Name() string

	// Search runs a keyword search and returns normalized records.
	Search(ctx context.Context, query string, maxResults int) ([]record.CandidateRecord, error)
}

// Option configures a source adapter.
type Option func(*config)

type config struct {
	baseURL      string
	httpClient   *http.Client
	contactEmail string
}

// WithBaseURL sets a custom API base URL (for testing).
func WithBaseURL(url string) Option {
	return func(c *config) {
		c.baseURL = url
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *config) {
		c.httpClient = hc
	}
}

// WithContactEmail sets the contact address sent in the User-Agent.
func WithContactEmail(email string) Option {
	return func(c *config) {
		c.contactEmail = email
	}
}

func applyOptions(defaultBaseURL string, timeout time.Duration, opts []Option) config {
	cfg := config{
		baseURL:      defaultBaseURL,
		contactEmail: DefaultContactEmail,
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.httpClient == nil {
		cfg.httpClient = &http.Client{Timeout: timeout}
	}
	return cfg
}

// client is the rate-limited HTTP transport shared by all adapters.
type client struct {
	http      *http.Client
	limiter   *rate.Limiter
	userAgent string
}

func newClient(cfg config, requestsPerSecond float64) *client {
	return &client{
		http:      cfg.httpClient,
		limiter:   rate.NewLimiter(rate.Limit(requestsPerSecond), 1),
		userAgent: fmt.Sprintf("trawl/1.0 (mailto:%s)", cfg.contactEmail),
	}
}

// get performs a GET with the polite-use header and one retry after a
// short backoff on HTTP 429. Non-2xx responses reduce to errors.
func (c *client) get(ctx context.Context, rawURL string, params url.Values) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limiter: %w", err)
	}

	body, status, err := c.doGet(ctx, rawURL, params)
	if err != nil {
		return nil, err
	}
	if status == http.StatusTooManyRequests {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(rateLimitBackoff):
		}
		body, status, err = c.doGet(ctx, rawURL, params)
		if err != nil {
			return nil, err
		}
		if status == http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: status 429 after retry", ErrRateLimited)
		}
	}
	if status != http.StatusOK {
		return nil, &APIError{StatusCode: status, Message: fmt.Sprintf("HTTP %d", status)}
	}

	return body, nil
}

func (c *client) doGet(ctx context.Context, rawURL string, params url.Values) ([]byte, int, error) {
	u := rawURL
	if len(params) > 0 {
		u = rawURL + "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrNetworkError, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("reading response: %w", err)
	}

	return body, resp.StatusCode, nil
}

// pageSize clamps a requested result count to the provider cap.
func pageSize(maxResults int) int {
	if maxResults <= 0 || maxResults > maxPageSize {
		return maxPageSize
	}
	return maxResults
}
