// Package jobs tracks async units of work (snapshot refreshes, event
// syncs, enrichment) with a monotonic status lifecycle. A job is never
// reused across runs; terminal statuses are final.
package jobs

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Status is the job lifecycle state.
type Status string

const (
	StatusCreated        Status = "created"
	StatusRunning        Status = "running"
	StatusCompleted      Status = "completed"
	StatusFailed         Status = "failed"
	StatusNotImplemented Status = "not_implemented"
)

// Well-known job types.
const (
	TypeSnapshotRefresh = "snapshot_refresh"
	TypeEventSync       = "event_sync"
	TypeEnrichment      = "enrichment"
)

// Job is a generic async unit of work.
type Job struct {
	ID             uuid.UUID              `json:"id" db:"id"`
	Type           string                 `json:"type" db:"type"`
	Status         Status                 `json:"status" db:"status"`
	SegmentID      *uuid.UUID             `json:"segment_id,omitempty" db:"segment_id"`
	SegmentVersion *int                   `json:"segment_version,omitempty" db:"segment_version"`
	Payload        map[string]interface{} `json:"payload,omitempty"`
	Result         map[string]interface{} `json:"result,omitempty"`
	CreatedAt      time.Time              `json:"created_at" db:"created_at"`
	UpdatedAt      time.Time              `json:"updated_at" db:"updated_at"`
}

// New builds a job in the created state.
func New(jobType string, segmentID *uuid.UUID, segmentVersion *int, payload map[string]interface{}) *Job {
	now := time.Now()
	return &Job{
		ID:             uuid.New(),
		Type:           jobType,
		Status:         StatusCreated,
		SegmentID:      segmentID,
		SegmentVersion: segmentVersion,
		Payload:        payload,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

// Store provides database operations for jobs.
type Store struct {
	db *sql.DB
}

// NewStore creates a new job store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Create inserts a new job row.
func (s *Store) Create(ctx context.Context, job *Job) error {
	payloadJSON, _ := json.Marshal(job.Payload)
	if payloadJSON == nil {
		payloadJSON = []byte("{}")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO jobs (id, type, status, segment_id, segment_version, payload, result, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, '{}', $7, $8)`,
		job.ID, job.Type, job.Status, job.SegmentID, job.SegmentVersion, payloadJSON, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert job: %w", err)
	}
	return nil
}

// MarkRunning transitions created -> running. Any other current status
// rejects the transition, keeping the lifecycle monotonic.
func (s *Store) MarkRunning(ctx context.Context, jobID uuid.UUID) error {
	return s.transition(ctx, jobID, StatusRunning, nil, []Status{StatusCreated})
}

// Complete transitions running -> completed and records the result.
func (s *Store) Complete(ctx context.Context, jobID uuid.UUID, result map[string]interface{}) error {
	return s.transition(ctx, jobID, StatusCompleted, result, []Status{StatusCreated, StatusRunning})
}

// Fail transitions a non-terminal job to failed with an error message.
func (s *Store) Fail(ctx context.Context, jobID uuid.UUID, message string) error {
	return s.transition(ctx, jobID, StatusFailed, map[string]interface{}{"error": message},
		[]Status{StatusCreated, StatusRunning})
}

func (s *Store) transition(ctx context.Context, jobID uuid.UUID, to Status, result map[string]interface{}, from []Status) error {
	resultJSON, _ := json.Marshal(result)
	if resultJSON == nil {
		resultJSON = []byte("{}")
	}

	args := []interface{}{to, resultJSON, time.Now(), jobID}
	query := `UPDATE jobs SET status = $1, result = $2, updated_at = $3 WHERE id = $4 AND status IN (`
	for i, st := range from {
		if i > 0 {
			query += ","
		}
		query += fmt.Sprintf("$%d", len(args)+1)
		args = append(args, st)
	}
	query += ")"

	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update job status: %w", err)
	}
	affected, _ := res.RowsAffected()
	if affected == 0 {
		return fmt.Errorf("job %s: illegal transition to %s", jobID, to)
	}
	return nil
}

// Get retrieves a job by ID. Returns nil, nil when absent.
func (s *Store) Get(ctx context.Context, jobID uuid.UUID) (*Job, error) {
	job := &Job{}
	var payloadJSON, resultJSON []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT id, type, status, segment_id, segment_version, payload, result, created_at, updated_at
		FROM jobs WHERE id = $1`, jobID).Scan(
		&job.ID, &job.Type, &job.Status, &job.SegmentID, &job.SegmentVersion,
		&payloadJSON, &resultJSON, &job.CreatedAt, &job.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if len(payloadJSON) > 0 {
		_ = json.Unmarshal(payloadJSON, &job.Payload)
	}
	if len(resultJSON) > 0 {
		_ = json.Unmarshal(resultJSON, &job.Result)
	}
	return job, nil
}
