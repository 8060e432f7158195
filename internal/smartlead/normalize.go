package smartlead

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"
)

// normalizeEvent maps one raw provider event to the canonical shape.
// occurred_at is required; when assumeNow is set a missing timestamp is
// filled with the per-call assumedNow value and didFill is reported so
// the caller can count fills.
func normalizeEvent(raw map[string]interface{}, assumeNow bool, assumedNow time.Time) (Event, bool, error) {
	event := Event{
		Provider:        ProviderName,
		ProviderEventID: stringField(raw, "id", "event_id"),
		EventType:       stringField(raw, "event_type", "type"),
		Outcome:         stringField(raw, "outcome", "category"),
		ContactID:       stringField(raw, "lead_id", "contact_id"),
		OutboundID:      stringField(raw, "campaign_id", "outbound_id"),
		Payload:         raw,
	}

	didFill := false
	occurredAt, ok := timeField(raw, "occurred_at", "time")
	if !ok {
		if !assumeNow {
			return Event{}, false, &MissingTimestampError{ProviderEventID: event.ProviderEventID}
		}
		occurredAt = assumedNow
		didFill = true
	}
	event.OccurredAt = occurredAt.UTC()

	if event.ProviderEventID == "" {
		event.ProviderEventID = fallbackEventID(event)
	}
	return event, didFill, nil
}

// fallbackEventID derives a deterministic id for events the provider
// ships without one. Two structurally identical raw events (same
// occurred_at included) hash to the identical id, which is what
// downstream dedup relies on.
func fallbackEventID(e Event) string {
	// json.Marshal sorts map keys, so the payload part is stable for
	// structurally identical events.
	payloadJSON, _ := json.Marshal(e.Payload)

	h := sha256.New()
	fmt.Fprintf(h, "%s\x00%s\x00%s\x00%s\x00", e.Provider, e.OccurredAt.UTC().Format(time.RFC3339Nano), e.OutboundID, e.EventType)
	h.Write(payloadJSON)
	return hex.EncodeToString(h.Sum(nil))
}

func stringField(raw map[string]interface{}, keys ...string) string {
	for _, key := range keys {
		switch v := raw[key].(type) {
		case string:
			if v != "" {
				return v
			}
		case float64:
			return fmt.Sprintf("%.0f", v)
		}
	}
	return ""
}

func timeField(raw map[string]interface{}, keys ...string) (time.Time, bool) {
	for _, key := range keys {
		s, ok := raw[key].(string)
		if !ok || s == "" {
			continue
		}
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			return t, true
		}
		if t, err := time.Parse("2006-01-02T15:04:05", s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
