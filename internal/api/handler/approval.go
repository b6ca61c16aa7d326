package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/edvin/warroom/internal/api/request"
	"github.com/edvin/warroom/internal/api/response"
	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/model"
)

// Gate is the war room approval gate.
type Gate interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
	Get(ctx context.Context, incidentID string) (model.PendingApproval, error)
	Approve(ctx context.Context, incidentID, actor string) (approval.Outcome, error)
	Reject(ctx context.Context, incidentID, actor, reason string) (approval.Outcome, error)
	Redeliver(ctx context.Context, incidentID string) (approval.Outcome, error)
}

type Approval struct {
	gate Gate
}

func NewApproval(gate Gate) *Approval {
	return &Approval{gate: gate}
}

// Decision is the answer to an approve or reject call.
type Decision struct {
	Approval model.PendingApproval `json:"approval"`
	Batch    dispatch.Batch        `json:"batch"`
	Released bool                  `json:"released"`
	Warning  string                `json:"warning,omitempty"`
}

// List returns the approvals awaiting a decision, oldest first.
func (h *Approval) List(w http.ResponseWriter, r *http.Request) {
	pending, err := h.gate.ListPending(r.Context())
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"approvals": pending,
		"count":     len(pending),
	})
}

func (h *Approval) Get(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "incidentID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec, err := h.gate.Get(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, rec)
}

// Approve releases the actions held for an incident. Only the first decision
// on an incident succeeds; later ones get 409. An approval whose actions could
// not be delivered answers 202 with a warning; the actions can be resent with
// Redeliver.
func (h *Approval) Approve(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "incidentID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.Approve
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.gate.Approve(r.Context(), id, req.Actor)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	status := http.StatusOK
	if out.Warning != "" {
		status = http.StatusAccepted
	}
	response.WriteJSON(w, status, Decision{Approval: out.Record, Batch: out.Batch, Released: out.Released, Warning: out.Warning})
}

// Redeliver resends approved actions whose delivery failed.
func (h *Approval) Redeliver(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "incidentID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.gate.Redeliver(r.Context(), id)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, Decision{Approval: out.Record, Batch: out.Batch, Released: out.Released})
}

// Reject discards the actions held for an incident.
func (h *Approval) Reject(w http.ResponseWriter, r *http.Request) {
	id, err := request.RequireID(chi.URLParam(r, "incidentID"))
	if err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	var req request.Reject
	if err := request.Decode(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out, err := h.gate.Reject(r.Context(), id, req.Actor, req.Reason)
	if err != nil {
		response.WriteServiceError(w, err)
		return
	}
	response.WriteJSON(w, http.StatusOK, Decision{Approval: out.Record, Batch: out.Batch})
}
