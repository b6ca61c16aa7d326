package model

// Workflow run status constants.
const (
	StatusIdle          = "idle"
	StatusScanning      = "scanning"
	StatusAnalyzing     = "analyzing"
	StatusOrchestrating = "orchestrating"
	StatusComplete      = "complete"
	StatusError         = "error"
)

// Approval status constants.
const (
	ApprovalPending  = "pending"
	ApprovalApproved = "approved"
	ApprovalRejected = "rejected"
)

// Terminal reports whether a workflow status is final.
func Terminal(status string) bool {
	return status == StatusComplete || status == StatusError
}
