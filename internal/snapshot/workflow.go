package snapshot

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/jobs"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/pkg/logger"
	"github.com/ignite/outreach-engine/internal/segment"
)

// LockFactory builds an advisory lock for a key. Production wiring uses
// distlock.NewLock with the shared redis client; tests substitute their
// own.
type LockFactory func(key string) distlock.DistLock

// Workflow is the single entry point that guarantees campaign and draft
// generation steps read a stable, intentional snapshot.
type Workflow struct {
	db       *sql.DB
	segments *segment.Store
	store    *Store
	newLock  LockFactory
	jobs     *jobs.Store
}

// NewWorkflow creates a snapshot workflow. jobStore may be nil; refresh
// bookkeeping is then skipped.
func NewWorkflow(db *sql.DB, newLock LockFactory, jobStore *jobs.Store) *Workflow {
	return &Workflow{
		db:       db,
		segments: segment.NewStore(db),
		store:    NewStore(db),
		newLock:  newLock,
		jobs:     jobStore,
	}
}

// Store returns the underlying snapshot store for direct reads.
func (w *Workflow) Store() *Store {
	return w.store
}

// Ensure resolves the target version for a segment and guarantees its
// snapshot rows are in the requested state. All errors are synchronous
// and non-retryable at this layer; the caller decides whether to retry
// with different parameters.
func (w *Workflow) Ensure(ctx context.Context, req EnsureRequest) (*EnsureResult, error) {
	seg, err := w.segments.GetSegment(ctx, req.SegmentID)
	if err != nil {
		return nil, fmt.Errorf("get segment: %w", err)
	}
	if seg == nil {
		return nil, ErrSegmentNotFound
	}

	version, err := w.resolveVersion(ctx, seg, req)
	if err != nil {
		return nil, err
	}

	maxContacts := req.MaxContacts
	if maxContacts <= 0 {
		maxContacts = DefaultMaxContacts
	}

	if req.Mode == ModeReuse {
		count, err := w.store.CountMembers(ctx, seg.ID, version)
		if err != nil {
			return nil, err
		}
		if count > 0 {
			// Idempotent fast path: rows exist, validate and return
			// without touching storage.
			if count > maxContacts {
				return nil, ErrSnapshotTooLarge
			}
			return &EnsureResult{Version: version, Count: count}, nil
		}
		// No rows for this version yet; fall through to refresh.
	}

	return w.refresh(ctx, seg, version, req.AllowEmpty, maxContacts)
}

// resolveVersion applies the version-resolution rules: bump wins, then
// an explicit (forced) override, then the stored version.
func (w *Workflow) resolveVersion(ctx context.Context, seg *segment.Segment, req EnsureRequest) (int, error) {
	if req.BumpVersion {
		return w.segments.BumpVersion(ctx, seg.ID)
	}
	if req.SegmentVersion != nil && *req.SegmentVersion != seg.Version {
		if !req.Force {
			return 0, ErrVersionMismatch
		}
		return *req.SegmentVersion, nil
	}
	if seg.Version < 1 {
		return 1, nil
	}
	return seg.Version, nil
}

// refresh re-evaluates the filter against live data and re-materializes
// the snapshot for the resolved version. A per-(segment, version)
// advisory lock keeps two concurrent refreshes from interleaving their
// delete/insert phases.
func (w *Workflow) refresh(ctx context.Context, seg *segment.Segment, version int, allowEmpty bool, maxContacts int) (*EnsureResult, error) {
	lock := w.newLock(fmt.Sprintf("snapshot:%s:v%d", seg.ID, version))
	acquired, err := lock.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire snapshot lock: %w", err)
	}
	if !acquired {
		return nil, ErrSnapshotBusy
	}
	defer lock.Release(ctx)

	job := w.startJob(ctx, seg.ID, version)

	clauses, err := seg.Clauses()
	if err != nil {
		w.failJob(ctx, job, err)
		return nil, err
	}

	// Size caps are checked against a count query before any row is
	// written, so an oversized filter leaves prior rows untouched.
	count, err := w.countLiveMatches(ctx, clauses)
	if err != nil {
		w.failJob(ctx, job, err)
		return nil, err
	}
	if count == 0 && !allowEmpty {
		w.failJob(ctx, job, ErrEmptySnapshot)
		return nil, ErrEmptySnapshot
	}
	if count > maxContacts {
		w.failJob(ctx, job, ErrSnapshotTooLarge)
		return nil, ErrSnapshotTooLarge
	}

	var members []Member
	if count > 0 {
		members, err = w.queryLiveMembers(ctx, clauses)
		if err != nil {
			w.failJob(ctx, job, err)
			return nil, err
		}
	}

	// The live query can eat most of the lease on large segments; renew
	// before the write phase so the lock cannot lapse mid-replace.
	if renewer, ok := lock.(distlock.LeaseRenewer); ok {
		if err := renewer.Renew(ctx); err != nil {
			logger.Warn("lock renew failed", "error", err.Error())
		}
	}

	inserted, err := w.store.ReplaceMembers(ctx, seg.ID, version, members)
	if err != nil {
		w.failJob(ctx, job, err)
		return nil, fmt.Errorf("replace snapshot: %w", err)
	}

	w.completeJob(ctx, job, inserted)
	logger.Info("snapshot refreshed",
		"segment_id", seg.ID.String(),
		"version", version,
		"count", inserted)

	return &EnsureResult{Version: version, Count: inserted}, nil
}

func (w *Workflow) countLiveMatches(ctx context.Context, clauses segment.ClauseList) (int, error) {
	qb := segment.NewQueryBuilder()
	query, args, err := qb.BuildCountQuery(clauses)
	if err != nil {
		return 0, fmt.Errorf("build count query: %w", err)
	}
	var count int
	if err := w.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("count live matches: %w", err)
	}
	return count, nil
}

func (w *Workflow) queryLiveMembers(ctx context.Context, clauses segment.ClauseList) ([]Member, error) {
	qb := segment.NewQueryBuilder()
	query, args, err := qb.BuildQuery(clauses)
	if err != nil {
		return nil, fmt.Errorf("build query: %w", err)
	}

	rows, err := w.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("execute query: %w", err)
	}
	defer rows.Close()

	var members []Member
	for rows.Next() {
		var contactID, companyID uuid.UUID
		var firstName, lastName, email, position, companyName sql.NullString
		var companyDomain, companyIndustry sql.NullString
		var companyEmployees sql.NullInt64
		if err := rows.Scan(&contactID, &companyID, &firstName, &lastName, &email,
			&position, &companyName, &companyDomain, &companyIndustry, &companyEmployees); err != nil {
			return nil, fmt.Errorf("scan member row: %w", err)
		}

		attrs := map[string]interface{}{
			"first_name":   firstName.String,
			"last_name":    lastName.String,
			"email":        email.String,
			"position":     position.String,
			"company_name": companyName.String,
		}
		if companyDomain.Valid {
			attrs["company_domain"] = companyDomain.String
		}
		if companyIndustry.Valid {
			attrs["company_industry"] = companyIndustry.String
		}
		if companyEmployees.Valid {
			attrs["company_employee_count"] = companyEmployees.Int64
		}

		members = append(members, Member{
			ContactID:  contactID,
			CompanyID:  companyID,
			Attributes: attrs,
		})
	}
	return members, rows.Err()
}

// ==========================================
// JOB BOOKKEEPING
// ==========================================

func (w *Workflow) startJob(ctx context.Context, segmentID uuid.UUID, version int) *jobs.Job {
	if w.jobs == nil {
		return nil
	}
	job := jobs.New(jobs.TypeSnapshotRefresh, &segmentID, &version, nil)
	if err := w.jobs.Create(ctx, job); err != nil {
		logger.Warn("job create failed", "error", err.Error())
		return nil
	}
	if err := w.jobs.MarkRunning(ctx, job.ID); err != nil {
		logger.Warn("job transition failed", "job_id", job.ID.String(), "error", err.Error())
	}
	return job
}

func (w *Workflow) completeJob(ctx context.Context, job *jobs.Job, count int) {
	if w.jobs == nil || job == nil {
		return
	}
	result := map[string]interface{}{"count": count, "completed_at": time.Now().UTC().Format(time.RFC3339)}
	if err := w.jobs.Complete(ctx, job.ID, result); err != nil {
		logger.Warn("job complete failed", "job_id", job.ID.String(), "error", err.Error())
	}
}

func (w *Workflow) failJob(ctx context.Context, job *jobs.Job, cause error) {
	if w.jobs == nil || job == nil {
		return
	}
	if err := w.jobs.Fail(ctx, job.ID, cause.Error()); err != nil {
		logger.Warn("job fail-transition failed", "job_id", job.ID.String(), "error", err.Error())
	}
}
