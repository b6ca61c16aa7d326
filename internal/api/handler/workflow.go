package handler

import (
	"context"
	"net/http"

	"github.com/edvin/warroom/internal/api/request"
	"github.com/edvin/warroom/internal/api/response"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/pipeline"
)

// Runner executes one incident response run.
type Runner interface {
	Run(ctx context.Context, query string, scan bool) model.WorkflowState
}

type Workflow struct {
	runner Runner
}

func NewWorkflow(runner Runner) *Workflow {
	return &Workflow{runner: runner}
}

// Run executes scan, analysis, orchestration and response for one query.
// The run always completes; failures are reported in the returned state.
func (h *Workflow) Run(w http.ResponseWriter, r *http.Request) {
	var req request.RunWorkflow
	if err := request.DecodeOptional(r, &req); err != nil {
		response.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}

	state := h.runner.Run(r.Context(), req.Query, req.ScanSources())
	response.WriteJSON(w, http.StatusOK, state)
}

// Graph describes the nodes of the state machine.
func (h *Workflow) Graph(w http.ResponseWriter, _ *http.Request) {
	response.WriteJSON(w, http.StatusOK, map[string]any{
		"nodes": []string{pipeline.NodeScan, pipeline.NodeAnalyze, pipeline.NodeOrchestrate, pipeline.NodeRespond},
		"edges": [][2]string{
			{pipeline.NodeStart, pipeline.NodeScan},
			{pipeline.NodeScan, pipeline.NodeAnalyze},
			{pipeline.NodeAnalyze, pipeline.NodeOrchestrate},
			{pipeline.NodeAnalyze, pipeline.NodeRespond},
			{pipeline.NodeOrchestrate, pipeline.NodeRespond},
		},
	})
}
