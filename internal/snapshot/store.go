package snapshot

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Store provides database operations for snapshot membership rows.
type Store struct {
	db *sql.DB
}

// NewStore creates a new snapshot store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// ReplaceMembers deletes all rows for (segmentID, version) and inserts
// the new member list in a single transaction, so no reader ever
// observes a partial set. An empty member list is valid: the delete
// still runs and zero rows are inserted.
func (s *Store) ReplaceMembers(ctx context.Context, segmentID uuid.UUID, version int, members []Member) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`DELETE FROM segment_snapshot_members WHERE segment_id = $1 AND segment_version = $2`,
		segmentID, version)
	if err != nil {
		return 0, fmt.Errorf("delete prior rows: %w", err)
	}

	capturedAt := time.Now()
	const batchSize = 500
	for i := 0; i < len(members); i += batchSize {
		end := i + batchSize
		if end > len(members) {
			end = len(members)
		}
		if err := insertBatch(ctx, tx, segmentID, version, capturedAt, members[i:end]); err != nil {
			return 0, err
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit snapshot replace: %w", err)
	}
	return len(members), nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, segmentID uuid.UUID, version int, capturedAt time.Time, batch []Member) error {
	var sb strings.Builder
	sb.WriteString(`INSERT INTO segment_snapshot_members (segment_id, segment_version, contact_id, company_id, captured_attributes, captured_at) VALUES `)

	args := make([]interface{}, 0, len(batch)*6)
	for i, m := range batch {
		if i > 0 {
			sb.WriteString(", ")
		}
		base := i * 6
		fmt.Fprintf(&sb, "($%d, $%d, $%d, $%d, $%d, $%d)",
			base+1, base+2, base+3, base+4, base+5, base+6)

		attrsJSON, _ := json.Marshal(m.Attributes)
		if attrsJSON == nil {
			attrsJSON = []byte("{}")
		}
		args = append(args, segmentID, version, m.ContactID, m.CompanyID, attrsJSON, capturedAt)
	}

	if _, err := tx.ExecContext(ctx, sb.String(), args...); err != nil {
		return fmt.Errorf("insert snapshot rows: %w", err)
	}
	return nil
}

// CountMembers returns the row count for (segmentID, version).
func (s *Store) CountMembers(ctx context.Context, segmentID uuid.UUID, version int) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM segment_snapshot_members WHERE segment_id = $1 AND segment_version = $2`,
		segmentID, version).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count snapshot rows: %w", err)
	}
	return count, nil
}

// ListMembers returns all membership rows for (segmentID, version).
func (s *Store) ListMembers(ctx context.Context, segmentID uuid.UUID, version int) ([]MemberRow, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT segment_id, segment_version, contact_id, company_id, captured_attributes, captured_at
		FROM segment_snapshot_members
		WHERE segment_id = $1 AND segment_version = $2
		ORDER BY contact_id`,
		segmentID, version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var members []MemberRow
	for rows.Next() {
		var m MemberRow
		var attrsJSON []byte
		if err := rows.Scan(&m.SegmentID, &m.SegmentVersion, &m.ContactID, &m.CompanyID, &attrsJSON, &m.CapturedAt); err != nil {
			return nil, err
		}
		if len(attrsJSON) > 0 {
			_ = json.Unmarshal(attrsJSON, &m.CapturedAttributes)
		}
		members = append(members, m)
	}
	return members, rows.Err()
}
