package workflow

import (
	"context"
	"errors"
	"fmt"

	temporalclient "go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

// LocalGate serves the approval reads, rejections and redeliveries that do
// not go through the release workflow.
type LocalGate interface {
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
	Get(ctx context.Context, incidentID string) (model.PendingApproval, error)
	Reject(ctx context.Context, incidentID, actor, reason string) (approval.Outcome, error)
	Redeliver(ctx context.Context, incidentID string) (approval.Outcome, error)
	KeepUndelivered(b dispatch.Batch)
}

// ReleaseGate approves held incidents by running ReleaseApprovedActionsWorkflow
// on the worker, so delivery of the released actions is retried durably.
type ReleaseGate struct {
	LocalGate
	tc        temporalclient.Client
	taskQueue string
}

func NewReleaseGate(local LocalGate, tc temporalclient.Client, taskQueue string) *ReleaseGate {
	return &ReleaseGate{LocalGate: local, tc: tc, taskQueue: taskQueue}
}

// Approve blocks until the release workflow finishes. A failed delivery after
// the approval was recorded returns the undelivered batch with a warning and
// hands it to the local gate for Redeliver.
func (g *ReleaseGate) Approve(ctx context.Context, incidentID, actor string) (approval.Outcome, error) {
	run, err := g.tc.ExecuteWorkflow(ctx, temporalclient.StartWorkflowOptions{
		ID:                                       fmt.Sprintf("release-%s", incidentID),
		TaskQueue:                                g.taskQueue,
		WorkflowExecutionErrorWhenAlreadyStarted: true,
	}, "ReleaseApprovedActionsWorkflow", ReleaseParams{IncidentID: incidentID, Actor: actor})
	if err != nil {
		if temporal.IsWorkflowExecutionAlreadyStartedError(err) {
			return approval.Outcome{}, fault.Wrap(fault.ErrApprovalConflict, "approve",
				fmt.Errorf("incident %s is already being released", incidentID))
		}
		return approval.Outcome{}, fmt.Errorf("start ReleaseApprovedActionsWorkflow: %w", err)
	}

	var batch dispatch.Batch
	if err := run.Get(ctx, &batch); err != nil {
		var appErr *temporal.ApplicationError
		if errors.As(err, &appErr) {
			switch appErr.Type() {
			case "APPROVAL_CONFLICT":
				return approval.Outcome{}, fault.Wrap(fault.ErrApprovalConflict, "approve", err)
			case "NOT_FOUND":
				return approval.Outcome{}, fault.Wrap(fault.ErrNotFound, "approve", err)
			}
		}

		rec, gerr := g.LocalGate.Get(ctx, incidentID)
		if gerr != nil || rec.Status != model.ApprovalApproved {
			return approval.Outcome{}, fmt.Errorf("release %s: %w", incidentID, err)
		}
		batch = dispatch.Batch{
			IncidentID: incidentID,
			Trigger:    dispatch.TriggerApproved,
			Requests:   rec.ProposedRequests,
			Alerts:     rec.ProposedAlerts,
		}
		g.LocalGate.KeepUndelivered(batch)
		return approval.Outcome{Record: rec, Batch: batch,
			Warning: fmt.Sprintf("approved actions not delivered: %v", cause(err))}, nil
	}

	rec, err := g.LocalGate.Get(ctx, incidentID)
	if err != nil {
		return approval.Outcome{}, fmt.Errorf("reload approval %s: %w", incidentID, err)
	}
	return approval.Outcome{Record: rec, Batch: batch, Released: !batch.Empty()}, nil
}
