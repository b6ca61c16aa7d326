package model

import (
	"fmt"
	"math"
)

// PreparedThreshold is the capacity score at or above which a hospital is
// considered prepared for incoming load.
const PreparedThreshold = 0.6

// AwaitingApprovalMarker is appended to the result message of a held incident.
const AwaitingApprovalMarker = " [PAUSED: Awaiting War Room Approval]"

// DegradedApprovalMarker is appended when the pending record could not be persisted.
const DegradedApprovalMarker = " [DEGRADED: approval store unavailable, actions withheld]"

type OrchestrationResult struct {
	IncidentID       string            `json:"incident_id"`
	ResourceStatus   []ResourceStatus  `json:"resource_status"`
	ResourceRequests []ResourceRequest `json:"resource_requests"`
	HospitalAlerts   []HospitalAlert   `json:"hospital_alerts"`
	Recommendations  []string          `json:"recommendations"`
	CapacityScore    float64           `json:"capacity_score"`
	Prepared         bool              `json:"prepared"`
	AwaitingApproval bool              `json:"awaiting_approval"`
	Degraded         bool              `json:"degraded,omitempty"`
	Message          string            `json:"message"`
}

// NewOrchestrationResult builds a result with the capacity score clamped to
// [0,1] and Prepared derived from it. Nil slices are normalized to empty.
func NewOrchestrationResult(incidentID string, resources []ResourceStatus, requests []ResourceRequest,
	alerts []HospitalAlert, recommendations []string, score float64) OrchestrationResult {
	score = math.Max(0, math.Min(1, score))
	if resources == nil {
		resources = []ResourceStatus{}
	}
	if requests == nil {
		requests = []ResourceRequest{}
	}
	if alerts == nil {
		alerts = []HospitalAlert{}
	}
	if recommendations == nil {
		recommendations = []string{}
	}
	return OrchestrationResult{
		IncidentID:       incidentID,
		ResourceStatus:   resources,
		ResourceRequests: requests,
		HospitalAlerts:   alerts,
		Recommendations:  recommendations,
		CapacityScore:    score,
		Prepared:         score >= PreparedThreshold,
		Message:          fmt.Sprintf("Orchestration complete. Capacity score: %.0f%%", score*100),
	}
}

// Withhold clears the releasable actions and marks the result as awaiting a
// war room decision.
func (r OrchestrationResult) Withhold(degraded bool) OrchestrationResult {
	r.ResourceRequests = []ResourceRequest{}
	r.HospitalAlerts = []HospitalAlert{}
	r.AwaitingApproval = true
	r.Degraded = degraded
	r.Message += r.HoldSuffix()
	return r
}

// HoldSuffix returns the markers a withheld result carries in its message.
func (r OrchestrationResult) HoldSuffix() string {
	if !r.AwaitingApproval {
		return ""
	}
	if r.Degraded {
		return AwaitingApprovalMarker + DegradedApprovalMarker
	}
	return AwaitingApprovalMarker
}
