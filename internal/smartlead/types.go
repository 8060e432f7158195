// Package smartlead is the integration client for the Smartlead
// outreach API. It hides the provider's unreliable HTTP behavior
// (timeouts, 5xx, 429, missing fields) behind bounded retry and strict
// event normalization.
package smartlead

import (
	"time"
)

// ProviderName identifies Smartlead in canonical event records.
const ProviderName = "smartlead"

// Campaign is one provider-side outreach campaign.
type Campaign struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Status    string    `json:"status"`
	CreatedAt time.Time `json:"created_at"`
}

type campaignsResponse struct {
	Campaigns []Campaign `json:"campaigns"`
}

type eventsResponse struct {
	Events []map[string]interface{} `json:"events"`
}

// Event is a provider event normalized to the canonical shape the
// ingestion pipeline consumes.
type Event struct {
	Provider        string                 `json:"provider"`
	ProviderEventID string                 `json:"provider_event_id"`
	EventType       string                 `json:"event_type"`
	Outcome         string                 `json:"outcome,omitempty"`
	ContactID       string                 `json:"contact_id,omitempty"`
	OutboundID      string                 `json:"outbound_id,omitempty"`
	OccurredAt      time.Time              `json:"occurred_at"`
	Payload         map[string]interface{} `json:"payload"`
}

// AsPayload renders the event as the raw-payload map the ingestion
// pipeline accepts.
func (e Event) AsPayload() map[string]interface{} {
	return map[string]interface{}{
		"provider":          e.Provider,
		"provider_event_id": e.ProviderEventID,
		"event_type":        e.EventType,
		"outcome":           e.Outcome,
		"contact_id":        e.ContactID,
		"outbound_id":       e.OutboundID,
		"occurred_at":       e.OccurredAt.UTC().Format(time.RFC3339),
		"payload":           e.Payload,
	}
}

// ListOptions controls ListCampaigns.
type ListOptions struct {
	// DryRun short-circuits to an empty result without a network call.
	DryRun bool
}

// PullOptions controls PullEvents.
type PullOptions struct {
	Since time.Time
	Limit int
	// DryRun short-circuits to an empty result without a network call.
	DryRun bool
	// AssumeNowOccurredAt fills a missing occurred_at with a single
	// timestamp captured once per pull, so every filled event in the
	// batch shares the same value. Without it a missing timestamp is a
	// hard error.
	AssumeNowOccurredAt bool
	// OnTimestampFill, when set, receives the number of events whose
	// occurred_at was filled during this pull.
	OnTimestampFill func(filled int)
	// RetryAfterCapMs overrides the Retry-After clamp for this call.
	RetryAfterCapMs *int
}
