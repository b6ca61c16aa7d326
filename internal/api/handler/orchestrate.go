package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/edvin/warroom/internal/api/request"
	"github.com/edvin/warroom/internal/api/response"
	"github.com/edvin/warroom/internal/model"
)

// Orchestrator runs the orchestrator for one incident.
type Orchestrator interface {
	Orchestrate(ctx context.Context, incident model.Incident, autoRequest, autoAlert bool) (model.OrchestrationResult, error)
}

// ResourceReader returns the current resource snapshot.
type ResourceReader interface {
	Snapshot(ctx context.Context) ([]model.ResourceStatus, error)
}

type Orchestrate struct {
	svc Orchestrator
}

func NewOrchestrate(svc Orchestrator) *Orchestrate {
	return &Orchestrate{svc: svc}
}

// Create orchestrates the posted incident. A critical incident comes back
// with its actions withheld pending approval.
func (h *Orchestrate) Create(w http.ResponseWriter, r *http.Request) {
	var req request.Orchestrate
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	autoRequest, autoAlert := req.Flags()
	result, err := h.svc.Orchestrate(r.Context(), req.Incident, autoRequest, autoAlert)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, result)
}

type Resource struct {
	svc ResourceReader
	now func() time.Time
}

func NewResource(svc ResourceReader) *Resource {
	return &Resource{svc: svc, now: time.Now}
}

// List returns the current resource levels.
func (h *Resource) List(w http.ResponseWriter, r *http.Request) {
	resources, err := h.svc.Snapshot(r.Context())
	if err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"resources": resources,
		"timestamp": h.now().UTC(),
	})
}
