// Package ingest normalizes provider events into canonical records with
// idempotent insert semantics. Duplicate deliveries of the same provider
// event are no-ops.
package ingest

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/pkg/logger"
)

// Reply labels derived from event classification.
const (
	LabelReplied  = "replied"
	LabelNegative = "negative"
	LabelPositive = "positive"
)

// ValidationError is a rejected raw payload with a stable code.
type ValidationError struct {
	Code   string
	Reason string
}

func (e *ValidationError) Error() string {
	return e.Code + ": " + e.Reason
}

const ErrCodeInvalidEvent = "ERR_INVALID_EVENT"

// Event is a canonical provider event row. Created once by ingestion,
// never mutated.
type Event struct {
	ID              uuid.UUID              `json:"id" db:"id"`
	Provider        string                 `json:"provider" db:"provider"`
	ProviderEventID string                 `json:"provider_event_id,omitempty" db:"provider_event_id"`
	EventType       string                 `json:"event_type" db:"event_type"`
	Outcome         string                 `json:"outcome,omitempty" db:"outcome"`
	ReplyLabel      string                 `json:"reply_label,omitempty" db:"reply_label"`
	ContactID       string                 `json:"contact_id,omitempty" db:"contact_id"`
	OutboundID      string                 `json:"outbound_id,omitempty" db:"outbound_id"`
	OccurredAt      time.Time              `json:"occurred_at" db:"occurred_at"`
	Payload         map[string]interface{} `json:"payload"`
	IdempotencyKey  string                 `json:"idempotency_key" db:"idempotency_key"`
	CreatedAt       time.Time              `json:"created_at" db:"created_at"`
}

// Options controls a single ingest call.
type Options struct {
	// DryRun short-circuits before any read or write.
	DryRun bool
}

// Result reports what a single ingest call did.
type Result struct {
	Inserted int  `json:"inserted"`
	Deduped  bool `json:"deduped,omitempty"`
	DryRun   bool `json:"dry_run,omitempty"`
}

// Pipeline ingests raw event payloads into the canonical event store.
type Pipeline struct {
	db *sql.DB
}

// NewPipeline creates a new ingestion pipeline.
func NewPipeline(db *sql.DB) *Pipeline {
	return &Pipeline{db: db}
}

// Ingest validates, classifies, and stores one raw event payload.
// Dedup is enforced by the storage layer: the insert is an
// insert-or-ignore on (provider, provider_event_id), so two concurrent
// deliveries of the same event cannot both land.
func (p *Pipeline) Ingest(ctx context.Context, raw map[string]interface{}, opts Options) (*Result, error) {
	if opts.DryRun {
		return &Result{Inserted: 0, DryRun: true}, nil
	}

	provider, _ := raw["provider"].(string)
	eventType, _ := raw["event_type"].(string)
	if provider == "" {
		return nil, &ValidationError{Code: ErrCodeInvalidEvent, Reason: "payload has no provider"}
	}
	if eventType == "" {
		return nil, &ValidationError{Code: ErrCodeInvalidEvent, Reason: "payload has no event_type"}
	}

	event := buildEvent(provider, eventType, raw)

	inserted, err := p.insert(ctx, event)
	if err != nil {
		return nil, err
	}
	if inserted == 0 {
		logger.Debug("event deduped", "provider", event.Provider, "provider_event_id", event.ProviderEventID)
		return &Result{Inserted: 0, Deduped: true}, nil
	}
	return &Result{Inserted: 1}, nil
}

func buildEvent(provider, eventType string, raw map[string]interface{}) *Event {
	providerEventID, _ := raw["provider_event_id"].(string)
	outcome, _ := raw["outcome"].(string)
	contactID, _ := raw["contact_id"].(string)
	outboundID, _ := raw["outbound_id"].(string)

	occurredAt := time.Now().UTC()
	if s, ok := raw["occurred_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			occurredAt = t.UTC()
		}
	}

	payload := raw
	if inner, ok := raw["payload"].(map[string]interface{}); ok {
		payload = inner
	}

	return &Event{
		ID:              uuid.New(),
		Provider:        provider,
		ProviderEventID: providerEventID,
		EventType:       eventType,
		Outcome:         outcome,
		ReplyLabel:      classifyReply(eventType, outcome),
		ContactID:       contactID,
		OutboundID:      outboundID,
		OccurredAt:      occurredAt,
		Payload:         payload,
		IdempotencyKey:  idempotencyKey(provider, providerEventID),
		CreatedAt:       time.Now(),
	}
}

// idempotencyKey derives the dedup key. When the provider supplies no
// stable event id (and no deterministic fallback was computed upstream)
// the key is seeded with a random UUID and is not reproducible across
// retries; that gap is accepted only for truly anonymous events.
func idempotencyKey(provider, providerEventID string) string {
	id := providerEventID
	if id == "" {
		id = uuid.NewString()
	}
	sum := sha256.Sum256([]byte(provider + "\x00" + id))
	return hex.EncodeToString(sum[:])
}

// classifyReply applies the fixed decision table:
// reply -> replied; angry/decline -> negative;
// meeting/soft_interest -> positive; anything else -> no label.
func classifyReply(eventType, outcome string) string {
	if eventType == "reply" {
		return LabelReplied
	}
	switch outcome {
	case "angry", "decline":
		return LabelNegative
	case "meeting", "soft_interest":
		return LabelPositive
	}
	return ""
}

func (p *Pipeline) insert(ctx context.Context, event *Event) (int64, error) {
	payloadJSON, _ := json.Marshal(event.Payload)
	if payloadJSON == nil {
		payloadJSON = []byte("{}")
	}

	// Events without a provider event id skip the conflict target:
	// they are anonymous and can never collide.
	query := `
		INSERT INTO provider_events (id, provider, provider_event_id, event_type, outcome, reply_label,
			contact_id, outbound_id, occurred_at, payload, idempotency_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
	`
	if event.ProviderEventID != "" {
		query += " ON CONFLICT (provider, provider_event_id) DO NOTHING"
	}

	var providerEventID interface{}
	if event.ProviderEventID != "" {
		providerEventID = event.ProviderEventID
	}

	res, err := p.db.ExecContext(ctx, query,
		event.ID, event.Provider, providerEventID, event.EventType, event.Outcome,
		nullable(event.ReplyLabel), nullable(event.ContactID), nullable(event.OutboundID),
		event.OccurredAt, payloadJSON, event.IdempotencyKey, event.CreatedAt)
	if err != nil {
		return 0, fmt.Errorf("insert event: %w", err)
	}
	return res.RowsAffected()
}

func nullable(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// GetByProviderID looks up a canonical event by its dedup key.
// Returns nil, nil when absent.
func (p *Pipeline) GetByProviderID(ctx context.Context, provider, providerEventID string) (*Event, error) {
	event := &Event{}
	var payloadJSON []byte
	var providerEventIDCol, outcome, replyLabel, contactID, outboundID sql.NullString
	err := p.db.QueryRowContext(ctx,
		`SELECT id, provider, provider_event_id, event_type, outcome, reply_label,
			contact_id, outbound_id, occurred_at, payload, idempotency_key, created_at
		FROM provider_events
		WHERE provider = $1 AND provider_event_id = $2`,
		provider, providerEventID).Scan(
		&event.ID, &event.Provider, &providerEventIDCol, &event.EventType, &outcome, &replyLabel,
		&contactID, &outboundID, &event.OccurredAt, &payloadJSON, &event.IdempotencyKey, &event.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	event.ProviderEventID = providerEventIDCol.String
	event.Outcome = outcome.String
	event.ReplyLabel = replyLabel.String
	event.ContactID = contactID.String
	event.OutboundID = outboundID.String
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &event.Payload)
	}
	return event, nil
}
