package activity

import (
	"context"
	"errors"
	"fmt"

	"go.temporal.io/sdk/temporal"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
)

// Scanner produces incidents for a workflow run.
type Scanner interface {
	Scan(ctx context.Context, query string) ([]model.Incident, error)
}

// ResourceReader produces the current resource snapshot.
type ResourceReader interface {
	Snapshot(ctx context.Context) ([]model.ResourceStatus, error)
}

// BatchOrchestrator compiles and gates the response for a set of incidents.
type BatchOrchestrator interface {
	OrchestrateBatch(ctx context.Context, incidents []model.Incident, resources []model.ResourceStatus) orchestrator.BatchResult
}

// Approver records a war room approval.
type Approver interface {
	Approve(ctx context.Context, incidentID, actor string) (approval.Outcome, error)
}

// Response contains the activities behind the incident response workflows.
// The orchestrator and gate it is built with must not dispatch themselves:
// delivery is a separate, retried activity.
type Response struct {
	scanner      Scanner
	resources    ResourceReader
	orchestrator BatchOrchestrator
	gate         Approver
	dispatcher   dispatch.Dispatcher
}

// NewResponse creates a new Response activity struct.
func NewResponse(scanner Scanner, resources ResourceReader, orch BatchOrchestrator,
	gate Approver, dispatcher dispatch.Dispatcher) *Response {
	return &Response{
		scanner:      scanner,
		resources:    resources,
		orchestrator: orch,
		gate:         gate,
		dispatcher:   dispatcher,
	}
}

// OrchestrateParams holds parameters for the OrchestrateIncidents activity.
type OrchestrateParams struct {
	Incidents []model.Incident       `json:"incidents"`
	Resources []model.ResourceStatus `json:"resources"`
}

// ApproveParams holds parameters for the ApprovePending activity.
type ApproveParams struct {
	IncidentID string `json:"incident_id"`
	Actor      string `json:"actor"`
}

// ScanIncidents runs one scan. An empty query scans every configured source.
func (a *Response) ScanIncidents(ctx context.Context, query string) ([]model.Incident, error) {
	incidents, err := a.scanner.Scan(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("scan incidents: %w", err)
	}
	if incidents == nil {
		incidents = []model.Incident{}
	}
	return incidents, nil
}

// SnapshotResources reads the current resource levels.
func (a *Response) SnapshotResources(ctx context.Context) ([]model.ResourceStatus, error) {
	resources, err := a.resources.Snapshot(ctx)
	if err != nil {
		if fault.Is(err, fault.ErrValidation) {
			return nil, temporal.NewNonRetryableApplicationError("invalid resource snapshot", "VALIDATION_ERROR", err)
		}
		return nil, fmt.Errorf("snapshot resources: %w", err)
	}
	return resources, nil
}

// OrchestrateIncidents compiles the response for escalating incidents and
// holds critical ones at the approval gate. Released actions come back
// undispatched.
func (a *Response) OrchestrateIncidents(ctx context.Context, params OrchestrateParams) (orchestrator.BatchResult, error) {
	return a.orchestrator.OrchestrateBatch(ctx, params.Incidents, params.Resources), nil
}

// ApprovePending records the approval of a held incident and returns the
// actions it releases.
func (a *Response) ApprovePending(ctx context.Context, params ApproveParams) (dispatch.Batch, error) {
	out, err := a.gate.Approve(ctx, params.IncidentID, params.Actor)
	switch {
	case err == nil:
		return out.Batch, nil
	case errors.Is(err, fault.ErrApprovalConflict):
		return dispatch.Batch{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("incident %s already decided", params.IncidentID), "APPROVAL_CONFLICT", err)
	case errors.Is(err, fault.ErrNotFound):
		return dispatch.Batch{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("no approval for incident %s", params.IncidentID), "NOT_FOUND", err)
	default:
		return dispatch.Batch{}, fmt.Errorf("approve %s: %w", params.IncidentID, err)
	}
}

// DispatchActions delivers a released batch. A rejection by the receiver is
// not retried.
func (a *Response) DispatchActions(ctx context.Context, batch dispatch.Batch) (dispatch.Batch, error) {
	sent, err := a.dispatcher.Dispatch(ctx, batch)
	if err != nil {
		if errors.Is(err, dispatch.ErrRejected) {
			return batch, temporal.NewNonRetryableApplicationError(err.Error(), "CLIENT_ERROR", nil)
		}
		return batch, err
	}
	return sent, nil
}
