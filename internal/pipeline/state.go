// Package pipeline is the incident response state machine:
//
//	scanning -> analyzing -> orchestrating -> complete
//	                      \-> complete
//
// with error reachable from every step. Each transition is a pure function
// of the previous state and the outcome of exactly one external call, so the
// in-process Engine and the Temporal workflow share them.
package pipeline

import (
	"fmt"
	"strings"

	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
	"github.com/edvin/warroom/internal/scoring"
)

// Node names recorded in WorkflowState.CurrentNode.
const (
	NodeStart       = "start"
	NodeScan        = "scanner"
	NodeAnalyze     = "analyzer"
	NodeOrchestrate = "orchestrator"
	NodeRespond     = "responder"
)

// NoIncidentsResponse is the response of a run that found nothing.
const NoIncidentsResponse = "No emergency incidents detected. Systems normal."

// advance returns a copy of s positioned at node.
func advance(s model.WorkflowState, node string) model.WorkflowState {
	next := s.Clone()
	next.Version++
	next.CurrentNode = node
	return next
}

// Begin creates the state of a new run. A run with neither a query nor a
// scan request completes immediately with an empty result.
func Begin(query string, scan bool) model.WorkflowState {
	s := model.NewWorkflowState(query, scan)
	if strings.TrimSpace(query) == "" && !scan {
		s = advance(s, NodeRespond)
		s.Status = model.StatusComplete
		s.Response = NoIncidentsResponse
		return s
	}
	s.Status = model.StatusScanning
	return s
}

// AfterScan records the scan outcome.
func AfterScan(s model.WorkflowState, incidents []model.Incident, err error) model.WorkflowState {
	if err != nil {
		return Fail(s, NodeScan, err)
	}
	next := advance(s, NodeScan)
	next.Incidents = append([]model.Incident{}, incidents...)
	next.ShouldOrchestrate = len(Escalating(incidents)) > 0
	next.Status = model.StatusAnalyzing
	return next
}

// AfterAnalyze scores the snapshot against the detected incidents.
func AfterAnalyze(s model.WorkflowState, resources []model.ResourceStatus, err error) model.WorkflowState {
	if err != nil {
		return Fail(s, NodeAnalyze, err)
	}
	next := advance(s, NodeAnalyze)
	next.Resources = append([]model.ResourceStatus{}, resources...)
	next.CapacityScore = scoring.Aggregate(resources, next.Incidents)
	next.ShouldAlert = scoring.ShouldAlert(next.CapacityScore, resources)
	if next.ShouldOrchestrate {
		next.Status = model.StatusOrchestrating
	} else {
		next.Status = model.StatusComplete
	}
	return next
}

// Route picks the node after analysis. Only a state with at least one
// critical or high incident is orchestrated.
func Route(s model.WorkflowState) string {
	if s.Status == model.StatusOrchestrating && s.ShouldOrchestrate {
		return NodeOrchestrate
	}
	return NodeRespond
}

// AfterOrchestrate merges the batch outcome into the state.
func AfterOrchestrate(s model.WorkflowState, batch orchestrator.BatchResult, err error) model.WorkflowState {
	if err != nil {
		return Fail(s, NodeOrchestrate, err)
	}
	next := advance(s, NodeOrchestrate)
	next.ResourceRequests = append(next.ResourceRequests, batch.ResourceRequests...)
	next.HospitalAlerts = append(next.HospitalAlerts, batch.HospitalAlerts...)
	next.Decisions = append(next.Decisions, batch.Decisions...)
	next.PendingApprovals = append(next.PendingApprovals, batch.PendingApprovals...)
	next.Warnings = append(next.Warnings, batch.Warnings...)
	next.Status = model.StatusComplete
	return next
}

// Respond renders the final response. A failed run keeps its error response.
func Respond(s model.WorkflowState) model.WorkflowState {
	if s.Status == model.StatusError {
		return s
	}
	next := advance(s, NodeRespond)
	next.Status = model.StatusComplete
	next.Response = Format(next)
	return next
}

// Fail moves the run into the absorbing error state.
func Fail(s model.WorkflowState, node string, err error) model.WorkflowState {
	next := advance(s, node)
	next.Status = model.StatusError
	label := map[string]string{
		NodeScan:        "Scanner",
		NodeAnalyze:     "Analyzer",
		NodeOrchestrate: "Orchestrator",
	}[node]
	if label == "" {
		label = "Workflow"
	}
	next.Response = fmt.Sprintf("%s error: %v", label, err)
	return next
}

// Escalating returns the critical and high incidents.
func Escalating(incidents []model.Incident) []model.Incident {
	var out []model.Incident
	for _, inc := range incidents {
		if inc.Severity.Escalating() {
			out = append(out, inc)
		}
	}
	return out
}

// Format renders the human-readable run summary.
func Format(s model.WorkflowState) string {
	if len(s.Incidents) == 0 {
		return NoIncidentsResponse
	}

	var b strings.Builder
	b.WriteString("Emergency Response Summary:\n\n")
	fmt.Fprintf(&b, "📊 **Detected Incidents**: %d\n", len(s.Incidents))
	for _, inc := range s.Incidents[:min(3, len(s.Incidents))] {
		fmt.Fprintf(&b, "  • %s (%s)\n", inc.Title, inc.Severity)
	}
	fmt.Fprintf(&b, "\n💪 **Capacity Score**: %.0f%%\n", s.CapacityScore*100)
	fmt.Fprintf(&b, "\n🎯 **Actions Taken**: %d decisions\n", len(s.Decisions))
	for _, d := range s.Decisions[:min(3, len(s.Decisions))] {
		fmt.Fprintf(&b, "  • %s\n", d.Action)
	}
	fmt.Fprintf(&b, "\n🏥 **Hospital Alerts**: %d sent\n", len(s.HospitalAlerts))
	fmt.Fprintf(&b, "📦 **Resource Requests**: %d pending\n", len(s.ResourceRequests))
	if len(s.PendingApprovals) > 0 {
		fmt.Fprintf(&b, "⏸️ **Awaiting War Room Approval**: %s\n", strings.Join(s.PendingApprovals, ", "))
	}
	for _, w := range s.Warnings {
		fmt.Fprintf(&b, "⚠️ %s\n", w)
	}

	status := "✅ Manageable"
	if s.ShouldAlert {
		status = "⚠️ ALERT"
	}
	fmt.Fprintf(&b, "\nStatus: %s", status)
	return b.String()
}
