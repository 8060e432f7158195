package jobs

import (
	"context"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJob(t *testing.T) {
	segmentID := uuid.New()
	version := 3
	job := New(TypeSnapshotRefresh, &segmentID, &version, map[string]interface{}{"mode": "refresh"})

	assert.NotEqual(t, uuid.Nil, job.ID)
	assert.Equal(t, StatusCreated, job.Status)
	assert.Equal(t, TypeSnapshotRefresh, job.Type)
	assert.Equal(t, &segmentID, job.SegmentID)
	assert.Equal(t, 3, *job.SegmentVersion)
}

func TestCreateJob(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec("INSERT INTO jobs").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	job := New(TypeEventSync, nil, nil, nil)
	require.NoError(t, store.Create(context.Background(), job))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkRunning(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE jobs SET status").
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	require.NoError(t, store.MarkRunning(context.Background(), jobID))
}

// The status guard in the UPDATE makes transitions monotonic: when the
// current status is not in the allowed set, zero rows match and the
// transition is rejected.
func TestIllegalTransitionRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE jobs SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	err = store.MarkRunning(context.Background(), jobID)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "illegal transition")
}

func TestCompleteRecordsResult(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE jobs SET status").
		WithArgs(StatusCompleted, sqlmock.AnyArg(), sqlmock.AnyArg(), jobID, StatusCreated, StatusRunning).
		WillReturnResult(sqlmock.NewResult(0, 1))

	store := NewStore(db)
	require.NoError(t, store.Complete(context.Background(), jobID, map[string]interface{}{"count": 5}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestFailFromTerminalStateRejected(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobID := uuid.New()
	mock.ExpectExec("UPDATE jobs SET status").
		WillReturnResult(sqlmock.NewResult(0, 0))

	store := NewStore(db)
	assert.Error(t, store.Fail(context.Background(), jobID, "boom"))
}

func TestGetJobNotFound(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	jobID := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM jobs").
		WithArgs(jobID).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	store := NewStore(db)
	job, err := store.Get(context.Background(), jobID)
	require.NoError(t, err)
	assert.Nil(t, job)
}
