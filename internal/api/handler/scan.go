package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/api/request"
	"github.com/edvin/warroom/internal/api/response"
	"github.com/edvin/warroom/internal/model"
)

// Scanner runs one scan.
type Scanner interface {
	Scan(ctx context.Context, query string) ([]model.Incident, error)
}

type Scan struct {
	scanner     Scanner
	loop        ScanLoop
	stopTimeout time.Duration
	now         func() time.Time
}

func NewScan(scanner Scanner, loop ScanLoop) *Scan {
	return &Scan{scanner: scanner, loop: loop, stopTimeout: 30 * time.Second, now: time.Now}
}

// ScanResult is the answer to an on-demand scan.
type ScanResult struct {
	Incidents []model.Incident `json:"incidents"`
	Count     int              `json:"count"`
	ScannedAt time.Time        `json:"scanned_at"`
}

// Run scans now and publishes the result as the current incident set.
func (h *Scan) Run(w http.ResponseWriter, r *http.Request) {
	var req request.Scan
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	started := h.now()
	incidents, err := h.scanner.Scan(r.Context(), req.Query)
	if err != nil {
		zerolog.Ctx(r.Context()).Warn().Err(err).Msg("on-demand scan failed")
		response.WriteError(w, http.StatusBadGateway, err.Error())
		return
	}
	if incidents == nil {
		incidents = []model.Incident{}
	}
	h.loop.Record(started, incidents)
	response.WriteJSON(w, http.StatusOK, ScanResult{Incidents: incidents, Count: len(incidents), ScannedAt: started.UTC()})
}

// Start starts the background scan loop.
func (h *Scan) Start(w http.ResponseWriter, _ *http.Request) {
	if h.loop.Running() {
		response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Already scanning", "status": "active"})
		return
	}
	if err := h.loop.Start(); err != nil {
		response.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Scanning started", "status": "active"})
}

// Stop stops the background scan loop. An in-flight run is allowed to
// finish; if it outlasts the stop timeout the answer is 202.
func (h *Scan) Stop(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.stopTimeout)
	defer cancel()

	if err := h.loop.Stop(ctx); err != nil {
		response.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "Stopping after the in-flight scan", "status": "stopping"})
		return
	}
	response.WriteJSON(w, http.StatusOK, map[string]string{"message": "Scanning stopped", "status": "inactive"})
}

// Trigger starts one background run without waiting for it.
func (h *Scan) Trigger(w http.ResponseWriter, _ *http.Request) {
	if !h.loop.TriggerNow() {
		response.WriteError(w, http.StatusConflict, "scan loop is stopped")
		return
	}
	response.WriteJSON(w, http.StatusAccepted, map[string]string{"message": "Scan triggered", "status": "scanning"})
}
