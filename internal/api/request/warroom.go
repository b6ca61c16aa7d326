package request

import "github.com/edvin/warroom/internal/model"

// RunWorkflow starts one incident response run. Scan defaults to true.
type RunWorkflow struct {
	Query string `json:"query" validate:"max=2000"`
	Scan  *bool  `json:"scan"`
}

func (r RunWorkflow) ScanSources() bool {
	return r.Scan == nil || *r.Scan
}

// Orchestrate runs the orchestrator for a single incident. Both auto flags
// default to true.
type Orchestrate struct {
	Incident             model.Incident `json:"incident"`
	AutoRequestResources *bool          `json:"auto_request_resources"`
	AutoAlertHospitals   *bool          `json:"auto_alert_hospitals"`
}

func (r Orchestrate) Flags() (autoRequest, autoAlert bool) {
	return r.AutoRequestResources == nil || *r.AutoRequestResources,
		r.AutoAlertHospitals == nil || *r.AutoAlertHospitals
}

type Approve struct {
	Actor string `json:"actor" validate:"required,actor"`
}

type Reject struct {
	Actor  string `json:"actor" validate:"required,actor"`
	Reason string `json:"reason" validate:"max=2000"`
}

// Scan runs the scanner once. An empty query scans every configured source.
type Scan struct {
	Query string `json:"query" validate:"max=2000"`
}

// IncidentFilter narrows the incident list.
type IncidentFilter struct {
	MinSeverity string `validate:"omitempty,severity"`
}
