// Package snapshot materializes segment membership into immutable,
// versioned row sets and owns the segment version lifecycle. Downstream
// consumers (draft generation, sending, analytics) must obtain a
// {version, count} pair from the workflow before reading any rows.
package snapshot

import (
	"time"

	"github.com/google/uuid"
)

// Mode selects the workflow branch.
type Mode string

const (
	ModeReuse   Mode = "reuse"
	ModeRefresh Mode = "refresh"
)

// DefaultMaxContacts caps snapshot size when the caller does not supply
// a limit. It guards downstream draft generation and sending against
// runaway filters.
const DefaultMaxContacts = 5000

// Member is one live filter match with its attributes frozen at capture
// time. Later edits to the source employee/company rows never alter an
// already-captured snapshot row.
type Member struct {
	ContactID  uuid.UUID
	CompanyID  uuid.UUID
	Attributes map[string]interface{}
}

// MemberRow is a persisted snapshot membership row, keyed by
// (segment_id, segment_version, contact_id).
type MemberRow struct {
	SegmentID          uuid.UUID              `json:"segment_id" db:"segment_id"`
	SegmentVersion     int                    `json:"segment_version" db:"segment_version"`
	ContactID          uuid.UUID              `json:"contact_id" db:"contact_id"`
	CompanyID          uuid.UUID              `json:"company_id" db:"company_id"`
	CapturedAttributes map[string]interface{} `json:"captured_attributes"`
	CapturedAt         time.Time              `json:"captured_at" db:"captured_at"`
}

// EnsureRequest is the single entry point's input.
type EnsureRequest struct {
	SegmentID      uuid.UUID `json:"segment_id"`
	Mode           Mode      `json:"mode"`
	SegmentVersion *int      `json:"segment_version,omitempty"`
	BumpVersion    bool      `json:"bump_version,omitempty"`
	// Force allows an explicit SegmentVersion that differs from the
	// stored one. Without it the mismatch is rejected.
	Force       bool `json:"force,omitempty"`
	AllowEmpty  bool `json:"allow_empty,omitempty"`
	MaxContacts int  `json:"max_contacts,omitempty"`
}

// EnsureResult is the only contract consumers need: which version is
// valid for this run, and how many members it holds.
type EnsureResult struct {
	Version int `json:"version"`
	Count   int `json:"count"`
}
