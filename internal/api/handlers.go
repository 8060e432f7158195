// Package api exposes the consistency core over a thin HTTP surface.
// Handlers are plumbing only; all invariants live in the domain packages.
package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/ignite/outreach-engine/internal/drafts"
	"github.com/ignite/outreach-engine/internal/ingest"
	"github.com/ignite/outreach-engine/internal/pkg/httputil"
	"github.com/ignite/outreach-engine/internal/segment"
	"github.com/ignite/outreach-engine/internal/smartlead"
	"github.com/ignite/outreach-engine/internal/snapshot"
)

// Handlers bundles the core services the HTTP layer fronts.
type Handlers struct {
	Segments  *segment.Store
	Workflow  *snapshot.Workflow
	Pipeline  *ingest.Pipeline
	Smartlead *smartlead.Client
	Renderer  *drafts.Renderer
}

// NewHandlers creates the handler set.
func NewHandlers(segments *segment.Store, workflow *snapshot.Workflow, pipeline *ingest.Pipeline, client *smartlead.Client, renderer *drafts.Renderer) *Handlers {
	return &Handlers{
		Segments:  segments,
		Workflow:  workflow,
		Pipeline:  pipeline,
		Smartlead: client,
		Renderer:  renderer,
	}
}

// HealthCheck reports liveness.
func (h *Handlers) HealthCheck(w http.ResponseWriter, r *http.Request) {
	httputil.OK(w, map[string]string{"status": "ok", "time": time.Now().UTC().Format(time.RFC3339)})
}

// CreateSegment validates the filter definition and persists a new segment
// at version 1.
// POST /api/segments
func (h *Handlers) CreateSegment(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name             string          `json:"name"`
		Locale           string          `json:"locale"`
		Description      string          `json:"description"`
		FilterDefinition json.RawMessage `json:"filter_definition"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Name == "" {
		httputil.BadRequest(w, "name is required")
		return
	}

	seg := &segment.Segment{
		Name:             req.Name,
		Locale:           req.Locale,
		Description:      req.Description,
		FilterDefinition: req.FilterDefinition,
	}
	if err := h.Segments.CreateSegment(r.Context(), seg); err != nil {
		var verr *segment.ValidationError
		if errors.As(err, &verr) {
			httputil.ErrorCode(w, http.StatusBadRequest, verr.Code, verr.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.Created(w, seg)
}

// GetSegment returns one segment by id.
// GET /api/segments/{segmentID}
func (h *Handlers) GetSegment(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	seg, err := h.Segments.GetSegment(r.Context(), segmentID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if seg == nil {
		httputil.NotFound(w, "segment not found")
		return
	}
	httputil.OK(w, seg)
}

// EnsureSnapshot runs the snapshot workflow for a segment.
// POST /api/segments/{segmentID}/snapshot
func (h *Handlers) EnsureSnapshot(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := h.segmentID(w, r)
	if !ok {
		return
	}

	var req snapshot.EnsureRequest
	if !httputil.Decode(w, r, &req) {
		return
	}
	req.SegmentID = segmentID
	if req.Mode == "" {
		req.Mode = snapshot.ModeReuse
	}

	result, err := h.Workflow.Ensure(r.Context(), req)
	if err != nil {
		writeWorkflowError(w, err)
		return
	}
	httputil.OK(w, result)
}

// ListSnapshotMembers returns the captured membership rows for a version.
// GET /api/segments/{segmentID}/snapshot/{version}/members
func (h *Handlers) ListSnapshotMembers(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		httputil.BadRequest(w, "invalid version")
		return
	}

	members, err := h.Workflow.Store().ListMembers(r.Context(), segmentID, version)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"members": members, "count": len(members)})
}

// RenderDrafts renders a template pair against every member of a snapshot
// version. Nothing is sent anywhere; the caller gets the rendered drafts.
// POST /api/segments/{segmentID}/snapshot/{version}/drafts
func (h *Handlers) RenderDrafts(w http.ResponseWriter, r *http.Request) {
	segmentID, ok := h.segmentID(w, r)
	if !ok {
		return
	}
	version, err := strconv.Atoi(chi.URLParam(r, "version"))
	if err != nil || version < 1 {
		httputil.BadRequest(w, "invalid version")
		return
	}

	var req struct {
		Subject string `json:"subject"`
		Body    string `json:"body"`
	}
	if !httputil.Decode(w, r, &req) {
		return
	}
	if req.Subject == "" || req.Body == "" {
		httputil.BadRequest(w, "subject and body are required")
		return
	}

	members, err := h.Workflow.Store().ListMembers(r.Context(), segmentID, version)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	rendered, err := h.Renderer.RenderAll(req.Subject, req.Body, members)
	if err != nil {
		httputil.BadRequest(w, "template render failed: "+err.Error())
		return
	}
	httputil.OK(w, map[string]any{"drafts": rendered, "count": len(rendered)})
}

// IngestEvent ingests one raw provider event payload.
// POST /api/events/ingest?dry_run=true
func (h *Handlers) IngestEvent(w http.ResponseWriter, r *http.Request) {
	var raw map[string]interface{}
	if !httputil.Decode(w, r, &raw) {
		return
	}

	opts := ingest.Options{DryRun: r.URL.Query().Get("dry_run") == "true"}
	result, err := h.Pipeline.Ingest(r.Context(), raw, opts)
	if err != nil {
		var verr *ingest.ValidationError
		if errors.As(err, &verr) {
			httputil.ErrorCode(w, http.StatusBadRequest, verr.Code, verr.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, result)
}

// GetEvent looks up a canonical event by its provider identity.
// GET /api/events/{provider}/{eventID}
func (h *Handlers) GetEvent(w http.ResponseWriter, r *http.Request) {
	provider := chi.URLParam(r, "provider")
	eventID := chi.URLParam(r, "eventID")
	if provider == "" || eventID == "" {
		httputil.BadRequest(w, "provider and event id are required")
		return
	}

	event, err := h.Pipeline.GetByProviderID(r.Context(), provider, eventID)
	if err != nil {
		httputil.InternalError(w, err)
		return
	}
	if event == nil {
		httputil.NotFound(w, "event not found")
		return
	}
	httputil.OK(w, event)
}

// ListProviderCampaigns proxies the provider's campaign list.
// GET /api/provider/campaigns?dry_run=true
func (h *Handlers) ListProviderCampaigns(w http.ResponseWriter, r *http.Request) {
	campaigns, err := h.Smartlead.ListCampaigns(r.Context(), smartlead.ListOptions{
		DryRun: r.URL.Query().Get("dry_run") == "true",
	})
	if err != nil {
		var apiErr *smartlead.APIError
		if errors.As(err, &apiErr) {
			httputil.Error(w, http.StatusBadGateway, apiErr.Error())
			return
		}
		httputil.InternalError(w, err)
		return
	}
	httputil.OK(w, map[string]any{"campaigns": campaigns})
}

func (h *Handlers) segmentID(w http.ResponseWriter, r *http.Request) (uuid.UUID, bool) {
	id, err := uuid.Parse(chi.URLParam(r, "segmentID"))
	if err != nil {
		httputil.BadRequest(w, "invalid segment id")
		return uuid.Nil, false
	}
	return id, true
}

func writeWorkflowError(w http.ResponseWriter, err error) {
	var coded *snapshot.CodedError
	if errors.As(err, &coded) {
		status := http.StatusUnprocessableEntity
		switch {
		case errors.Is(err, snapshot.ErrSegmentNotFound):
			status = http.StatusNotFound
		case errors.Is(err, snapshot.ErrSnapshotBusy), errors.Is(err, snapshot.ErrVersionMismatch):
			status = http.StatusConflict
		}
		httputil.ErrorCode(w, status, coded.Code, coded.Message)
		return
	}
	var verr *segment.ValidationError
	if errors.As(err, &verr) {
		httputil.ErrorCode(w, http.StatusBadRequest, verr.Code, verr.Error())
		return
	}
	httputil.InternalError(w, err)
}
