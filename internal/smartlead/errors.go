package smartlead

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

// bodySnippetLimit caps how much of a provider error body ends up in an
// error message.
const bodySnippetLimit = 500

// APIError is a non-2xx provider response, carrying enough context for
// the caller to act without re-deriving state.
type APIError struct {
	StatusCode int
	StatusText string
	URL        string
	Snippet    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("smartlead: GET %s failed: %d %s: %s", e.URL, e.StatusCode, e.StatusText, e.Snippet)
}

func newAPIError(resp *http.Response, url string, body []byte) *APIError {
	return &APIError{
		StatusCode: resp.StatusCode,
		StatusText: http.StatusText(resp.StatusCode),
		URL:        url,
		Snippet:    bodySnippet(body),
	}
}

// bodySnippet extracts the most useful part of an error body: the
// error/message field when the body is JSON, the raw body otherwise,
// truncated to the snippet limit with an explicit marker.
func bodySnippet(body []byte) string {
	text := strings.TrimSpace(string(body))

	var parsed map[string]interface{}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if msg, ok := parsed["error"].(string); ok && msg != "" {
			text = msg
		} else if msg, ok := parsed["message"].(string); ok && msg != "" {
			text = msg
		}
	}

	if len(text) > bodySnippetLimit {
		text = text[:bodySnippetLimit] + "...(truncated)"
	}
	return text
}

// MissingTimestampError signals a pulled event without occurred_at when
// the caller did not opt into the assume-now fallback.
type MissingTimestampError struct {
	ProviderEventID string
}

func (e *MissingTimestampError) Error() string {
	if e.ProviderEventID != "" {
		return fmt.Sprintf("smartlead: event %s has no occurred_at", e.ProviderEventID)
	}
	return "smartlead: event has no occurred_at"
}
