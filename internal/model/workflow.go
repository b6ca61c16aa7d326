package model

import "slices"

// WorkflowState is the context threaded through one workflow run. It is
// passed by value between transitions; Clone must be used before mutating
// slices so a transition never aliases the previous state's backing arrays.
type WorkflowState struct {
	Version           int               `json:"version"`
	Query             string            `json:"query"`
	ScanRequested     bool              `json:"scan_requested"`
	CurrentNode       string            `json:"current_node"`
	Incidents         []Incident        `json:"incidents"`
	Resources         []ResourceStatus  `json:"resources"`
	ResourceRequests  []ResourceRequest `json:"resource_requests"`
	HospitalAlerts    []HospitalAlert   `json:"hospital_alerts"`
	Decisions         []Decision        `json:"decisions"`
	PendingApprovals  []string          `json:"pending_approvals"`
	Warnings          []string          `json:"warnings"`
	ShouldOrchestrate bool              `json:"should_orchestrate"`
	ShouldAlert       bool              `json:"should_alert"`
	CapacityScore     float64           `json:"capacity_score"`
	Response          string            `json:"response"`
	Status            string            `json:"status"`
}

// NewWorkflowState returns an idle state with empty collections.
func NewWorkflowState(query string, scan bool) WorkflowState {
	return WorkflowState{
		Query:            query,
		ScanRequested:    scan,
		CurrentNode:      "start",
		Incidents:        []Incident{},
		Resources:        []ResourceStatus{},
		ResourceRequests: []ResourceRequest{},
		HospitalAlerts:   []HospitalAlert{},
		Decisions:        []Decision{},
		PendingApprovals: []string{},
		Warnings:         []string{},
		Status:           StatusIdle,
	}
}

// Clone returns a deep copy of the collection fields.
func (s WorkflowState) Clone() WorkflowState {
	s.Incidents = slices.Clone(s.Incidents)
	s.Resources = slices.Clone(s.Resources)
	s.ResourceRequests = slices.Clone(s.ResourceRequests)
	s.HospitalAlerts = slices.Clone(s.HospitalAlerts)
	s.Decisions = slices.Clone(s.Decisions)
	s.PendingApprovals = slices.Clone(s.PendingApprovals)
	s.Warnings = slices.Clone(s.Warnings)
	return s
}
