package segment

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for segments.
type Store struct {
	db *sql.DB
}

// NewStore creates a new segment store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// CreateSegment inserts a new segment. The filter definition is
// validated before storage; version always starts at 1.
func (s *Store) CreateSegment(ctx context.Context, seg *Segment) error {
	var definition []Clause
	if err := json.Unmarshal(seg.FilterDefinition, &definition); err != nil {
		return fmt.Errorf("parse filter definition: %w", err)
	}
	if _, err := Validate(definition); err != nil {
		return err
	}

	seg.ID = uuid.New()
	seg.Version = 1
	seg.CreatedAt = time.Now()
	seg.UpdatedAt = time.Now()

	query := `
		INSERT INTO segments (id, name, locale, filter_definition, version, description, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	_, err := s.db.ExecContext(ctx, query,
		seg.ID, seg.Name, seg.Locale, seg.FilterDefinition, seg.Version,
		seg.Description, seg.CreatedBy, seg.CreatedAt, seg.UpdatedAt)
	if err != nil {
		return fmt.Errorf("insert segment: %w", err)
	}
	return nil
}

// GetSegment retrieves a segment by ID. Returns nil, nil when absent.
func (s *Store) GetSegment(ctx context.Context, segmentID uuid.UUID) (*Segment, error) {
	query := `
		SELECT id, name, locale, filter_definition, version, description, created_by, created_at, updated_at
		FROM segments
		WHERE id = $1
	`
	seg := &Segment{}
	err := s.db.QueryRowContext(ctx, query, segmentID).Scan(
		&seg.ID, &seg.Name, &seg.Locale, &seg.FilterDefinition, &seg.Version,
		&seg.Description, &seg.CreatedBy, &seg.CreatedAt, &seg.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return seg, nil
}

// BumpVersion atomically increments the segment's stored version and
// returns the new value. The increment happens inside the UPDATE so two
// concurrent callers can never clobber each other; they observe distinct
// new versions.
func (s *Store) BumpVersion(ctx context.Context, segmentID uuid.UUID) (int, error) {
	var version int
	err := s.db.QueryRowContext(ctx,
		`UPDATE segments SET version = version + 1, updated_at = NOW() WHERE id = $1 RETURNING version`,
		segmentID).Scan(&version)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("segment not found: %s", segmentID)
	}
	if err != nil {
		return 0, fmt.Errorf("bump version: %w", err)
	}
	return version, nil
}

// Clauses parses and validates the segment's stored filter definition.
func (seg *Segment) Clauses() (ClauseList, error) {
	var definition []Clause
	if err := json.Unmarshal(seg.FilterDefinition, &definition); err != nil {
		return nil, fmt.Errorf("parse filter definition: %w", err)
	}
	return Validate(definition)
}
