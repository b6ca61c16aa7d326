package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/edvin/warroom/internal/api/request"
	"github.com/edvin/warroom/internal/api/response"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/scheduler"
)

// ScanLoop is the background scan loop and its last snapshot.
type ScanLoop interface {
	Start() error
	Stop(ctx context.Context) error
	Running() bool
	Scanning() bool
	TriggerNow() bool
	Interval() time.Duration
	Snapshot() *scheduler.Snapshot
	Record(started time.Time, incidents []model.Incident) bool
}

// PendingLister lists the approvals still awaiting a decision.
type PendingLister interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
}

type Incident struct {
	loop ScanLoop
}

func NewIncident(loop ScanLoop) *Incident {
	return &Incident{loop: loop}
}

// IncidentList is the last known incident set.
type IncidentList struct {
	Incidents []model.Incident `json:"incidents"`
	LastScan  *time.Time       `json:"last_scan"`
	Count     int              `json:"count"`
}

// List returns the incidents of the most recent scan, optionally limited to
// a minimum severity.
func (h *Incident) List(w http.ResponseWriter, r *http.Request) {
	filter := request.IncidentFilter{MinSeverity: r.URL.Query().Get("min_severity")}
	if err := request.Validate(filter); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	out := IncidentList{Incidents: []model.Incident{}}
	if snap := h.loop.Snapshot(); snap != nil {
		finished := snap.FinishedAt
		out.LastScan = &finished
		for _, inc := range snap.Incidents {
			if filter.MinSeverity != "" && inc.Severity.Rank() > model.Severity(filter.MinSeverity).Rank() {
				continue
			}
			out.Incidents = append(out.Incidents, inc)
		}
	}
	out.Count = len(out.Incidents)
	response.WriteJSON(w, http.StatusOK, out)
}

type Status struct {
	loop    ScanLoop
	pending PendingLister
}

func NewStatus(loop ScanLoop, pending PendingLister) *Status {
	return &Status{loop: loop, pending: pending}
}

// StatusReport summarizes the scan loop and the approval queue.
type StatusReport struct {
	Scanning         bool       `json:"scanning"`
	LoopRunning      bool       `json:"loop_running"`
	IntervalSeconds  float64    `json:"interval_seconds"`
	LastScan         *time.Time `json:"last_scan"`
	LastStatus       string     `json:"last_status,omitempty"`
	ActiveIncidents  int        `json:"active_incidents"`
	PendingApprovals int        `json:"pending_approvals"`
	Warnings         []string   `json:"warnings,omitempty"`
}

func (h *Status) Get(w http.ResponseWriter, r *http.Request) {
	out := StatusReport{
		Scanning:        h.loop.Scanning(),
		LoopRunning:     h.loop.Running(),
		IntervalSeconds: h.loop.Interval().Seconds(),
	}
	if snap := h.loop.Snapshot(); snap != nil {
		finished := snap.FinishedAt
		out.LastScan = &finished
		out.LastStatus = snap.Status
		out.ActiveIncidents = len(snap.Incidents)
	}

	pending, err := h.pending.ListPending(r.Context())
	if err != nil {
		out.Warnings = append(out.Warnings, "approval queue unavailable: "+err.Error())
	}
	out.PendingApprovals = len(pending)
	response.WriteJSON(w, http.StatusOK, out)
}
