package main

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-engine/internal/ingest"
	"github.com/ignite/outreach-engine/internal/smartlead"
)

func pulledEvent(id string) smartlead.Event {
	return smartlead.Event{
		Provider:        "smartlead",
		ProviderEventID: id,
		EventType:       "open",
		OccurredAt:      time.Now().UTC(),
	}
}

func TestIngestBatchCountsDedupes(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	// First delivery lands; the redelivery hits the unique index and
	// affects no rows.
	mock.ExpectExec(`INSERT INTO provider_events`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO provider_events`).WillReturnResult(sqlmock.NewResult(0, 0))

	pipeline := ingest.NewPipeline(db)
	totals := ingestBatch(context.Background(), pipeline, []smartlead.Event{
		pulledEvent("ev-1"),
		pulledEvent("ev-1"),
	}, false)

	assert.Equal(t, 1, totals.inserted)
	assert.Equal(t, 1, totals.deduped)
	assert.Equal(t, 0, totals.failed)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBatchBadEventDoesNotStopBatch(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(`INSERT INTO provider_events`).WillReturnResult(sqlmock.NewResult(0, 1))

	bad := pulledEvent("ev-2")
	bad.EventType = ""

	pipeline := ingest.NewPipeline(db)
	totals := ingestBatch(context.Background(), pipeline, []smartlead.Event{
		bad,
		pulledEvent("ev-3"),
	}, false)

	assert.Equal(t, 1, totals.failed)
	assert.Equal(t, 1, totals.inserted)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestIngestBatchDryRunWritesNothing(t *testing.T) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	defer db.Close()

	pipeline := ingest.NewPipeline(db)
	totals := ingestBatch(context.Background(), pipeline, []smartlead.Event{
		pulledEvent("ev-4"),
	}, true)

	assert.Equal(t, 0, totals.inserted)
	assert.Equal(t, 0, totals.deduped)
	require.NoError(t, mock.ExpectationsWereMet())
}
