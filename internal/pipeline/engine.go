package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/metrics"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
)

// Scanner produces the incidents for a run.
type Scanner interface {
	Scan(ctx context.Context, query string) ([]model.Incident, error)
}

// ResourceReader produces the resource snapshot for a run.
type ResourceReader interface {
	Snapshot(ctx context.Context) ([]model.ResourceStatus, error)
}

// Orchestrator compiles and gates the response for escalating incidents.
type Orchestrator interface {
	OrchestrateBatch(ctx context.Context, incidents []model.Incident, resources []model.ResourceStatus) orchestrator.BatchResult
}

// Engine runs the state machine in process. Runs share no state, so Run is
// safe to call concurrently.
type Engine struct {
	scanner      Scanner
	resources    ResourceReader
	orchestrator Orchestrator
	logger       zerolog.Logger
}

func NewEngine(scanner Scanner, resources ResourceReader, orch Orchestrator, logger zerolog.Logger) *Engine {
	return &Engine{
		scanner:      scanner,
		resources:    resources,
		orchestrator: orch,
		logger:       logger.With().Str("component", "pipeline").Logger(),
	}
}

// Run executes one workflow run. It always returns a terminal state.
func (e *Engine) Run(ctx context.Context, query string, scan bool) model.WorkflowState {
	s := Begin(query, scan)
	if model.Terminal(s.Status) {
		return e.finish(s)
	}

	incidents, err := guard(func() ([]model.Incident, error) { return e.scanner.Scan(ctx, query) })
	s = AfterScan(s, incidents, err)
	if s.Status == model.StatusError {
		return e.finish(s)
	}

	resources, err := guard(func() ([]model.ResourceStatus, error) { return e.resources.Snapshot(ctx) })
	s = AfterAnalyze(s, resources, err)
	if s.Status == model.StatusError {
		return e.finish(s)
	}

	if Route(s) == NodeOrchestrate {
		batch, err := guard(func() (orchestrator.BatchResult, error) {
			return e.orchestrator.OrchestrateBatch(ctx, Escalating(s.Incidents), s.Resources), nil
		})
		s = AfterOrchestrate(s, batch, err)
	}

	return e.finish(Respond(s))
}

func (e *Engine) finish(s model.WorkflowState) model.WorkflowState {
	metrics.WorkflowRunsTotal.WithLabelValues(s.Status).Inc()
	ev := e.logger.Info()
	if s.Status == model.StatusError {
		ev = e.logger.Warn()
	}
	ev.Str("status", s.Status).Str("node", s.CurrentNode).Int("incidents", len(s.Incidents)).
		Int("pending_approvals", len(s.PendingApprovals)).Msg("workflow run finished")
	return s
}

// guard converts a panic in an external call into an error.
func guard[T any](fn func() (T, error)) (out T, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return fn()
}
