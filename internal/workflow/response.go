package workflow

import (
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/edvin/warroom/internal/activity"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
	"github.com/edvin/warroom/internal/pipeline"
)

// RunParams holds the input of one incident response run.
type RunParams struct {
	Query string `json:"query"`
	Scan  bool   `json:"scan"`
}

// ReleaseParams identifies the approval to release.
type ReleaseParams struct {
	IncidentID string `json:"incident_id"`
	Actor      string `json:"actor"`
}

// IncidentResponseWorkflow drives scan, analysis, orchestration and response
// as activities. It never fails: activity errors end the run in an error
// state that is returned as the result.
func IncidentResponseWorkflow(ctx workflow.Context, params RunParams) (model.WorkflowState, error) {
	logger := workflow.GetLogger(ctx)

	s := pipeline.Begin(params.Query, params.Scan)
	if model.Terminal(s.Status) {
		return s, nil
	}

	// Scanning fans out to the search API and the provider, so it gets a
	// longer timeout than the store-backed steps.
	scanCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 3 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 2,
		},
	})
	ctx = workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var incidents []model.Incident
	err := workflow.ExecuteActivity(scanCtx, "ScanIncidents", params.Query).Get(ctx, &incidents)
	s = pipeline.AfterScan(s, incidents, cause(err))
	if s.Status == model.StatusError {
		logger.Warn("scan failed", "error", err)
		return s, nil
	}

	var resources []model.ResourceStatus
	err = workflow.ExecuteActivity(ctx, "SnapshotResources").Get(ctx, &resources)
	s = pipeline.AfterAnalyze(s, resources, cause(err))
	if s.Status == model.StatusError {
		logger.Warn("resource snapshot failed", "error", err)
		return s, nil
	}

	if pipeline.Route(s) == pipeline.NodeOrchestrate {
		var batch orchestrator.BatchResult
		err = workflow.ExecuteActivity(ctx, "OrchestrateIncidents", activity.OrchestrateParams{
			Incidents: pipeline.Escalating(s.Incidents),
			Resources: s.Resources,
		}).Get(ctx, &batch)
		if err == nil {
			dispatchReleased(ctx, &batch)
		}
		s = pipeline.AfterOrchestrate(s, batch, cause(err))
	}

	return pipeline.Respond(s), nil
}

// dispatchReleased delivers the released actions of every incident that was
// not held. A failed delivery leaves that incident's requests pending and
// adds a warning.
func dispatchReleased(ctx workflow.Context, batch *orchestrator.BatchResult) {
	dispatchCtx := workflow.WithActivityOptions(ctx, dispatchOptions())

	for i := range batch.Outcomes {
		out := &batch.Outcomes[i]
		if out.Held || out.Dispatched || out.Released.Empty() {
			continue
		}

		var sent dispatch.Batch
		err := workflow.ExecuteActivity(dispatchCtx, "DispatchActions", out.Released).Get(ctx, &sent)
		if err != nil {
			workflow.GetLogger(ctx).Warn("released actions not dispatched", "incident", out.Released.IncidentID, "error", err)
			batch.Warnings = append(batch.Warnings,
				fmt.Sprintf("incident %s: dispatch failed: %v", out.Released.IncidentID, cause(err)))
			continue
		}
		out.Released = sent
		out.Dispatched = true
		if sent.Requests != nil {
			out.Result.ResourceRequests = sent.Requests
		}
	}
	batch.Remerge()
}

// ReleaseApprovedActionsWorkflow records a war room approval and delivers the
// actions it releases. A conflicting or unknown approval fails the workflow
// without retries.
func ReleaseApprovedActionsWorkflow(ctx workflow.Context, params ReleaseParams) (dispatch.Batch, error) {
	approveCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 3,
		},
	})

	var batch dispatch.Batch
	err := workflow.ExecuteActivity(approveCtx, "ApprovePending", activity.ApproveParams{
		IncidentID: params.IncidentID,
		Actor:      params.Actor,
	}).Get(ctx, &batch)
	if err != nil {
		return dispatch.Batch{}, err
	}
	if batch.Empty() {
		return batch, nil
	}

	var sent dispatch.Batch
	err = workflow.ExecuteActivity(workflow.WithActivityOptions(ctx, dispatchOptions()), "DispatchActions", batch).Get(ctx, &sent)
	if err != nil {
		return batch, fmt.Errorf("dispatch approved actions for %s: %w", params.IncidentID, err)
	}
	return sent, nil
}

func dispatchOptions() workflow.ActivityOptions {
	return workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    5 * time.Second,
			BackoffCoefficient: 2.0,
			MaximumInterval:    time.Minute,
			MaximumAttempts:    5,
		},
	}
}

// cause strips the activity error envelope so state messages carry the
// failure itself.
func cause(err error) error {
	var actErr *temporal.ActivityError
	if errors.As(err, &actErr) {
		if inner := errors.Unwrap(actErr); inner != nil {
			return inner
		}
	}
	return err
}
