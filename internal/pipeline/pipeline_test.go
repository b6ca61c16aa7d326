package pipeline

import (
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
	"github.com/edvin/warroom/internal/registry"
	"github.com/edvin/warroom/internal/scoring"
)

type stubScanner struct {
	incidents []model.Incident
	err       error
	panics    bool
	queries   []string
}

func (s *stubScanner) Scan(_ context.Context, query string) ([]model.Incident, error) {
	s.queries = append(s.queries, query)
	if s.panics {
		panic("provider exploded")
	}
	return s.incidents, s.err
}

type stubResources struct {
	snap  []model.ResourceStatus
	err   error
	calls int
}

func (s *stubResources) Snapshot(context.Context) ([]model.ResourceStatus, error) {
	s.calls++
	return s.snap, s.err
}

type stubOrchestrator struct {
	got    []model.Incident
	result orchestrator.BatchResult
}

func (s *stubOrchestrator) OrchestrateBatch(_ context.Context, incidents []model.Incident, _ []model.ResourceStatus) orchestrator.BatchResult {
	s.got = incidents
	return s.result
}

func adequate() []model.ResourceStatus {
	return []model.ResourceStatus{
		{ResourceType: "beds", CurrentLevel: 80, Capacity: 100},
		{ResourceType: "oxygen", CurrentLevel: 90, Capacity: 100},
	}
}

func incident(id string, sev model.Severity, likely int) model.Incident {
	return model.Incident{
		ID: id, Title: "Incident " + id, Type: model.TypeFire, Severity: sev,
		Location:   model.Location{DistanceKm: 3},
		Casualties: model.CasualtyEstimate{Likely: likely, Max: likely, Confidence: 0.5},
	}
}

func TestRun_NoQueryNoScanCompletesEmpty(t *testing.T) {
	sc := &stubScanner{}
	e := NewEngine(sc, &stubResources{}, &stubOrchestrator{}, zerolog.Nop())

	s := e.Run(context.Background(), "  ", false)
	assert.Equal(t, model.StatusComplete, s.Status)
	assert.Equal(t, NoIncidentsResponse, s.Response)
	assert.Empty(t, s.Incidents)
	assert.Empty(t, sc.queries, "no external call for an empty run")
}

func TestRun_ScenarioA_MediumSkipsOrchestration(t *testing.T) {
	orch := &stubOrchestrator{}
	e := NewEngine(&stubScanner{incidents: []model.Incident{incident("a", model.SeverityMedium, 5)}},
		&stubResources{snap: adequate()}, orch, zerolog.Nop())

	s := e.Run(context.Background(), "", true)
	assert.Equal(t, model.StatusComplete, s.Status)
	assert.False(t, s.ShouldOrchestrate)
	assert.Empty(t, s.ResourceRequests)
	assert.Nil(t, orch.got, "orchestrator never called")
	assert.Equal(t, NodeRespond, s.CurrentNode)
	assert.Contains(t, s.Response, "Incident a (medium)")
	assert.InDelta(t, 0.85, s.CapacityScore, 1e-9)
}

func TestRun_ScenarioB_CriticalHeldEndToEnd(t *testing.T) {
	reg, err := registry.Parse([]byte(`
hospitals:
  - {id: near, name: Near Clinic, distance_km: 2}
vendors:
  - {id: v-oxy, name: Oxygen Co, resource_type: oxygen}
`))
	require.NoError(t, err)
	gate := approval.NewGate(nil, nil, nil, zerolog.Nop())
	res := &stubResources{snap: adequate()}
	orch := orchestrator.NewService(orchestrator.Config{}, res, scoring.NewStrategist(nil, zerolog.Nop()), reg, gate, nil, zerolog.Nop())

	e := NewEngine(&stubScanner{incidents: []model.Incident{incident("b", model.SeverityCritical, 30)}}, res, orch, zerolog.Nop())
	s := e.Run(context.Background(), "chemical fire", false)

	assert.Equal(t, model.StatusComplete, s.Status)
	assert.True(t, s.ShouldOrchestrate)
	assert.Empty(t, s.ResourceRequests)
	assert.Empty(t, s.HospitalAlerts)
	assert.Equal(t, []string{"b"}, s.PendingApprovals)
	require.Len(t, s.Decisions, 1)
	assert.Contains(t, s.Response, "Awaiting War Room Approval")

	pending, err := gate.ListPending(context.Background())
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.InDelta(t, 0.28, pending[0].CapacityScore, 1e-9)
}

func TestRun_OrchestratesOnlyEscalating(t *testing.T) {
	orch := &stubOrchestrator{result: orchestrator.BatchResult{
		HospitalAlerts: []model.HospitalAlert{{ID: "a1", HospitalID: "near"}},
		Decisions:      []model.Decision{{Action: "Released 0 resource requests and 1 hospital alerts"}},
	}}
	e := NewEngine(&stubScanner{incidents: []model.Incident{
		incident("h", model.SeverityHigh, 4),
		incident("l", model.SeverityLow, 1),
	}}, &stubResources{snap: adequate()}, orch, zerolog.Nop())

	s := e.Run(context.Background(), "", true)
	require.Len(t, orch.got, 1)
	assert.Equal(t, "h", orch.got[0].ID)
	assert.Len(t, s.HospitalAlerts, 1)
	assert.Contains(t, s.Response, "🏥 **Hospital Alerts**: 1 sent")
}

func TestRun_ScanFailureIsTerminalError(t *testing.T) {
	res := &stubResources{}
	e := NewEngine(&stubScanner{err: fault.Wrap(fault.ErrSource, "scan", errors.New("all sources down"))},
		res, &stubOrchestrator{}, zerolog.Nop())

	s := e.Run(context.Background(), "", true)
	assert.Equal(t, model.StatusError, s.Status)
	assert.Equal(t, NodeScan, s.CurrentNode)
	assert.Contains(t, s.Response, "Scanner error")
	assert.Zero(t, res.calls)
}

func TestRun_PanicBecomesError(t *testing.T) {
	e := NewEngine(&stubScanner{panics: true}, &stubResources{}, &stubOrchestrator{}, zerolog.Nop())

	s := e.Run(context.Background(), "x", false)
	assert.Equal(t, model.StatusError, s.Status)
	assert.Contains(t, s.Response, "provider exploded")
}

func TestRun_AnalyzeFailure(t *testing.T) {
	e := NewEngine(&stubScanner{incidents: []model.Incident{incident("a", model.SeverityHigh, 1)}},
		&stubResources{err: errors.New("bad row")}, &stubOrchestrator{}, zerolog.Nop())

	s := e.Run(context.Background(), "", true)
	assert.Equal(t, model.StatusError, s.Status)
	assert.Equal(t, "Analyzer error: bad row", s.Response)
}

func TestTransitions_VersionedAndNotAliased(t *testing.T) {
	s0 := Begin("q", false)
	assert.Equal(t, model.StatusScanning, s0.Status)
	assert.Equal(t, 0, s0.Version)

	s1 := AfterScan(s0, []model.Incident{incident("a", model.SeverityHigh, 25)}, nil)
	assert.Equal(t, 1, s1.Version)
	assert.Empty(t, s0.Incidents, "previous state untouched")

	s2 := AfterAnalyze(s1, adequate(), nil)
	assert.Equal(t, 2, s2.Version)
	assert.Equal(t, model.StatusOrchestrating, s2.Status)
	assert.InDelta(t, 0.85*0.7, s2.CapacityScore, 1e-9)
	assert.Equal(t, NodeOrchestrate, Route(s2))

	s3 := AfterOrchestrate(s2, orchestrator.BatchResult{Warnings: []string{"w"}}, nil)
	assert.Equal(t, model.StatusComplete, s3.Status)
	assert.Empty(t, s2.Warnings)

	s4 := Respond(s3)
	assert.Equal(t, 4, s4.Version)
	assert.Contains(t, s4.Response, "⚠️ w")
}

func TestRoute_LowOnlyNeverOrchestrates(t *testing.T) {
	s := AfterScan(Begin("", true), []model.Incident{incident("l", model.SeverityLow, 0), incident("m", model.SeverityMedium, 2)}, nil)
	s = AfterAnalyze(s, adequate(), nil)
	assert.Equal(t, model.StatusComplete, s.Status)
	assert.Equal(t, NodeRespond, Route(s))
}

func TestRespond_KeepsErrorResponse(t *testing.T) {
	s := Fail(Begin("q", false), NodeScan, errors.New("boom"))
	out := Respond(s)
	assert.Equal(t, s, out)
}

func TestFormat(t *testing.T) {
	s := model.NewWorkflowState("", true)
	s.Incidents = []model.Incident{
		incident("1", model.SeverityCritical, 1), incident("2", model.SeverityHigh, 1),
		incident("3", model.SeverityLow, 1), incident("4", model.SeverityLow, 1),
	}
	s.CapacityScore = 0.42
	s.ShouldAlert = true
	s.PendingApprovals = []string{"1"}

	out := Format(s)
	assert.Contains(t, out, "📊 **Detected Incidents**: 4")
	assert.Contains(t, out, "  • Incident 3 (low)")
	assert.NotContains(t, out, "Incident 4")
	assert.Contains(t, out, "💪 **Capacity Score**: 42%")
	assert.Contains(t, out, "⏸️ **Awaiting War Room Approval**: 1")
	assert.Contains(t, out, "Status: ⚠️ ALERT")

	assert.Equal(t, NoIncidentsResponse, Format(model.NewWorkflowState("", true)))
}
