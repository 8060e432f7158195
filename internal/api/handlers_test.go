package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignite/outreach-engine/internal/config"
	"github.com/ignite/outreach-engine/internal/drafts"
	"github.com/ignite/outreach-engine/internal/ingest"
	"github.com/ignite/outreach-engine/internal/pkg/distlock"
	"github.com/ignite/outreach-engine/internal/segment"
	"github.com/ignite/outreach-engine/internal/smartlead"
	"github.com/ignite/outreach-engine/internal/snapshot"
)

type grantedLock struct{}

func (grantedLock) Acquire(ctx context.Context) (bool, error) { return true, nil }
func (grantedLock) Release(ctx context.Context) error         { return nil }

func newTestServer(t *testing.T) (*httptest.Server, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	lockFactory := func(key string) distlock.DistLock { return grantedLock{} }
	handlers := NewHandlers(
		segment.NewStore(db),
		snapshot.NewWorkflow(db, lockFactory, nil),
		ingest.NewPipeline(db),
		smartlead.NewClient(config.SmartleadConfig{BaseURL: "http://unused", TimeoutSeconds: 1}),
		drafts.NewRenderer(),
	)
	server := httptest.NewServer(SetupRoutes(handlers))
	t.Cleanup(server.Close)
	return server, mock
}

func TestHealthEndpoint(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSegmentValidationMapsTo400(t *testing.T) {
	server, _ := newTestServer(t)

	body := `{"name":"bad","filter_definition":[{"field":"position","operator":"eq","value":"cto"}]}`
	resp, err := http.Post(server.URL+"/api/segments", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCreateSegment(t *testing.T) {
	server, mock := newTestServer(t)
	mock.ExpectExec("INSERT INTO segments").
		WillReturnResult(sqlmock.NewResult(0, 1))

	body := `{"name":"DACH CTOs","filter_definition":[{"field":"employees.position","operator":"eq","value":"cto"}]}`
	resp, err := http.Post(server.URL+"/api/segments", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
}

func TestEnsureSnapshotUnknownSegmentMapsTo404(t *testing.T) {
	server, mock := newTestServer(t)
	id := uuid.New()
	mock.ExpectQuery("SELECT (.+) FROM segments").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp, err := http.Post(server.URL+"/api/segments/"+id.String()+"/snapshot",
		"application/json", strings.NewReader(`{"mode":"reuse"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestEnsureSnapshotInvalidID(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/segments/not-a-uuid/snapshot",
		"application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestEventValidationMapsTo400(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/events/ingest",
		"application/json", strings.NewReader(`{"event_type":"open"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestIngestEventDryRun(t *testing.T) {
	server, mock := newTestServer(t)

	resp, err := http.Post(server.URL+"/api/events/ingest?dry_run=true",
		"application/json", strings.NewReader(`{"provider":"smartlead","event_type":"open"}`))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	// Dry run never touches storage.
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEvent(t *testing.T) {
	server, mock := newTestServer(t)
	now := time.Now()
	mock.ExpectQuery("SELECT (.+) FROM provider_events").
		WithArgs("smartlead", "ev-1").
		WillReturnRows(sqlmock.NewRows([]string{"id", "provider", "provider_event_id", "event_type",
			"outcome", "reply_label", "contact_id", "outbound_id", "occurred_at", "payload",
			"idempotency_key", "created_at"}).
			AddRow(uuid.New(), "smartlead", "ev-1", "reply", "meeting", "positive",
				"c-1", "o-1", now, []byte(`{"campaign":"q3"}`), "abc123", now))

	resp, err := http.Get(server.URL + "/api/events/smartlead/ev-1")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestGetEventNotFound(t *testing.T) {
	server, mock := newTestServer(t)
	mock.ExpectQuery("SELECT (.+) FROM provider_events").
		WithArgs("smartlead", "missing").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp, err := http.Get(server.URL + "/api/events/smartlead/missing")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestProviderCampaignsDryRun(t *testing.T) {
	server, _ := newTestServer(t)

	resp, err := http.Get(server.URL + "/api/provider/campaigns?dry_run=true")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}
