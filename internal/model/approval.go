package model

import "time"

// PendingApproval holds the compiled actions of a critical incident until a
// war room decision releases or discards them.
type PendingApproval struct {
	IncidentID       string            `json:"incident_id"`
	IncidentTitle    string            `json:"incident_title"`
	Severity         Severity          `json:"severity"`
	ProposedRequests []ResourceRequest `json:"proposed_requests"`
	ProposedAlerts   []HospitalAlert   `json:"proposed_alerts"`
	Strategy         Strategy          `json:"strategy"`
	CapacityScore    float64           `json:"capacity_score"`
	Status           string            `json:"status"`
	CreatedAt        time.Time         `json:"created_at"`
	DecidedAt        *time.Time        `json:"decided_at,omitempty"`
	DecidedBy        *string           `json:"decided_by,omitempty"`
	Reason           *string           `json:"reason,omitempty"`
}

// Decided reports whether the record has left the pending state.
func (p PendingApproval) Decided() bool {
	return p.Status == ApprovalApproved || p.Status == ApprovalRejected
}

// Decision is an auditable step taken during a workflow run.
type Decision struct {
	Action    string    `json:"action"`
	Reasoning string    `json:"reasoning"`
	Priority  Severity  `json:"priority"`
	Timestamp time.Time `json:"timestamp"`
}
