// Package dispatch executes released actions: vendor requests and hospital
// alerts leave the system through a webhook, or are only logged when no
// webhook is configured.
package dispatch

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/model"
)

// Triggers describe why a batch is dispatched.
const (
	TriggerAuto     = "auto"
	TriggerApproved = "approved"
)

// Log kinds recorded for every dispatched action.
const (
	KindResourceRequest = "resource_request"
	KindHospitalAlert   = "hospital_alert"
)

// ErrRejected means the receiver refused the batch and a retry cannot help.
var ErrRejected = errors.New("dispatch rejected")

// Batch is the set of actions released for one incident.
type Batch struct {
	IncidentID string                  `json:"incident_id"`
	Trigger    string                  `json:"trigger"`
	Requests   []model.ResourceRequest `json:"resource_requests"`
	Alerts     []model.HospitalAlert   `json:"hospital_alerts"`
}

// Empty reports whether there is nothing to send.
func (b Batch) Empty() bool {
	return len(b.Requests) == 0 && len(b.Alerts) == 0
}

// Dispatcher sends a batch and returns it with requests marked sent.
type Dispatcher interface {
	Dispatch(ctx context.Context, b Batch) (Batch, error)
}

// Recorder persists an audit line per dispatched action.
type Recorder interface {
	Record(ctx context.Context, incidentID, kind, targetID, targetName string, payload any) error
}

// markSent returns a copy of b with every pending request moved to sent.
func markSent(b Batch) Batch {
	out := b
	out.Requests = make([]model.ResourceRequest, len(b.Requests))
	for i, r := range b.Requests {
		if r.Status == model.RequestPending {
			_ = r.Transition(model.RequestSent)
		}
		out.Requests[i] = r
	}
	out.Alerts = append([]model.HospitalAlert(nil), b.Alerts...)
	return out
}

// record writes the audit trail. Failures only degrade persistence.
func record(ctx context.Context, rec Recorder, logger zerolog.Logger, b Batch) {
	if rec == nil {
		return
	}
	for _, r := range b.Requests {
		if err := rec.Record(ctx, b.IncidentID, KindResourceRequest, r.VendorID, r.VendorName, r); err != nil {
			logger.Warn().Err(err).Str("incident_id", b.IncidentID).Str("request_id", r.ID).Msg("dispatch log unavailable")
			return
		}
	}
	for _, a := range b.Alerts {
		if err := rec.Record(ctx, b.IncidentID, KindHospitalAlert, a.HospitalID, a.HospitalName, a); err != nil {
			logger.Warn().Err(err).Str("incident_id", b.IncidentID).Str("alert_id", a.ID).Msg("dispatch log unavailable")
			return
		}
	}
}

// LogOnly "sends" by logging each action.
type LogOnly struct {
	recorder Recorder
	logger   zerolog.Logger
}

func NewLogOnly(recorder Recorder, logger zerolog.Logger) *LogOnly {
	return &LogOnly{recorder: recorder, logger: logger.With().Str("component", "dispatch").Logger()}
}

func (d *LogOnly) Dispatch(ctx context.Context, b Batch) (Batch, error) {
	if b.Empty() {
		return b, nil
	}
	sent := markSent(b)
	for _, r := range sent.Requests {
		d.logger.Info().Str("incident_id", b.IncidentID).Str("vendor", r.VendorName).
			Str("resource", r.ResourceType).Int("quantity", r.Quantity).Str("urgency", string(r.Urgency)).
			Msg("resource request sent")
	}
	for _, a := range sent.Alerts {
		d.logger.Info().Str("incident_id", b.IncidentID).Str("hospital", a.HospitalName).
			Str("alert_type", a.AlertType).Int("expected_patients", a.ExpectedPatients).
			Msg("hospital alert sent")
	}
	record(ctx, d.recorder, d.logger, sent)
	return sent, nil
}
