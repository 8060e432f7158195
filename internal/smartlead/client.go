package smartlead

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// defaultRetryAfterCapMs bounds how long the client honors a provider
// Retry-After header when no cap is configured.
const defaultRetryAfterCapMs = 5000

// defaultRetryWaitMs is used when a retryable response carries no
// Retry-After header.
const defaultRetryWaitMs = 50

// HTTPDoer is the interface for executing HTTP requests.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client is a Smartlead API client.
type Client struct {
	baseURL         string
	apiKey          string
	workspaceID     string
	retryAfterCapMs int
	httpClient      HTTPDoer

	// now and sleep are swapped out in tests.
	now   func() time.Time
	sleep func(ctx context.Context, d time.Duration) error
}

// NewClient creates a new Smartlead API client.
func NewClient(cfg config.SmartleadConfig) *Client {
	return &Client{
		baseURL:         cfg.BaseURL,
		apiKey:          cfg.APIKey,
		workspaceID:     cfg.WorkspaceID,
		retryAfterCapMs: cfg.RetryAfterCapMs,
		httpClient:      &http.Client{Timeout: cfg.Timeout()},
		now:             time.Now,
		sleep:           sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ListCampaigns fetches the provider's campaigns.
func (c *Client) ListCampaigns(ctx context.Context, opts ListOptions) ([]Campaign, error) {
	if opts.DryRun {
		return []Campaign{}, nil
	}

	body, err := c.doGet(ctx, "/campaigns", nil, nil)
	if err != nil {
		return nil, fmt.Errorf("listing campaigns: %w", err)
	}

	var response campaignsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing campaigns: %w", err)
	}
	return response.Campaigns, nil
}

// PullEvents fetches raw events since the given time and normalizes
// them to the canonical event shape.
func (c *Client) PullEvents(ctx context.Context, opts PullOptions) ([]Event, error) {
	if opts.DryRun {
		return []Event{}, nil
	}

	params := url.Values{}
	if !opts.Since.IsZero() {
		params.Set("since", opts.Since.UTC().Format(time.RFC3339))
	}
	if opts.Limit > 0 {
		params.Set("limit", strconv.Itoa(opts.Limit))
	}

	body, err := c.doGet(ctx, "/events", params, opts.RetryAfterCapMs)
	if err != nil {
		return nil, fmt.Errorf("pulling events: %w", err)
	}

	var response eventsResponse
	if err := json.Unmarshal(body, &response); err != nil {
		return nil, fmt.Errorf("parsing events: %w", err)
	}

	// The fill timestamp is captured once per call so every event
	// missing occurred_at in this batch gets the same value.
	assumedNow := c.now().UTC()
	filled := 0

	events := make([]Event, 0, len(response.Events))
	for _, raw := range response.Events {
		event, didFill, err := normalizeEvent(raw, opts.AssumeNowOccurredAt, assumedNow)
		if err != nil {
			return nil, err
		}
		if didFill {
			filled++
		}
		events = append(events, event)
	}

	if filled > 0 {
		logger.Warn("filled missing occurred_at on pulled events", "count", filled)
		if opts.OnTimestampFill != nil {
			opts.OnTimestampFill(filled)
		}
	}
	return events, nil
}

// doGet executes a GET with the bounded-retry policy: a single retry on
// status >= 500 or 429, waiting min(Retry-After, cap) first. All other
// non-2xx statuses fail immediately. The response body is read exactly
// once per attempt.
func (c *Client) doGet(ctx context.Context, path string, params url.Values, capOverrideMs *int) ([]byte, error) {
	fullURL := c.baseURL + path
	if len(params) > 0 {
		fullURL += "?" + params.Encode()
	}

	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, fullURL, nil)
		if err != nil {
			return nil, fmt.Errorf("creating request: %w", err)
		}
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
		req.Header.Set("Content-Type", "application/json")
		if c.workspaceID != "" {
			req.Header.Set("X-Workspace-Id", c.workspaceID)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return nil, fmt.Errorf("executing request: %w", err)
		}

		body, readErr := io.ReadAll(resp.Body)
		resp.Body.Close()
		if readErr != nil {
			return nil, fmt.Errorf("reading response: %w", readErr)
		}

		if resp.StatusCode >= 200 && resp.StatusCode < 300 {
			return body, nil
		}

		apiErr := newAPIError(resp, fullURL, body)
		if attempt == 0 && isRetryableStatus(resp.StatusCode) {
			wait := c.retryWait(resp.Header.Get("Retry-After"), capOverrideMs)
			logger.Warn("retryable provider response",
				"status", strconv.Itoa(resp.StatusCode),
				"url", fullURL,
				"wait_ms", strconv.FormatInt(wait.Milliseconds(), 10))
			if err := c.sleep(ctx, wait); err != nil {
				return nil, err
			}
			lastErr = apiErr
			continue
		}
		// Second failure (or a non-retryable one) is what the caller sees.
		return nil, apiErr
	}
	return nil, lastErr
}

// isRetryableStatus reports whether the status warrants the single
// retry: any 5xx, or 429.
func isRetryableStatus(statusCode int) bool {
	return statusCode >= 500 || statusCode == http.StatusTooManyRequests
}

// retryWait resolves the backoff before the retry. The provider's
// Retry-After wins when present (numeric seconds or HTTP-date), subject
// to the cap: per-call override, else the configured cap, else 5000 ms.
func (c *Client) retryWait(retryAfter string, capOverrideMs *int) time.Duration {
	capMs := defaultRetryAfterCapMs
	if c.retryAfterCapMs > 0 {
		capMs = c.retryAfterCapMs
	}
	if capOverrideMs != nil && *capOverrideMs > 0 {
		capMs = *capOverrideMs
	}

	waitMs := defaultRetryWaitMs
	if retryAfter != "" {
		if secs, err := strconv.Atoi(retryAfter); err == nil {
			waitMs = secs * 1000
		} else if at, err := http.ParseTime(retryAfter); err == nil {
			delta := at.Sub(c.now())
			if delta < 0 {
				delta = 0
			}
			waitMs = int(delta.Milliseconds())
		}
	}
	if waitMs > capMs {
		waitMs = capMs
	}
	return time.Duration(waitMs) * time.Millisecond
}
