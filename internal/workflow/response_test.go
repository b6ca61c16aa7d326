package workflow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/edvin/warroom/internal/activity"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/orchestrator"
	"github.com/edvin/warroom/internal/pipeline"
)

func testIncident(id string, sev model.Severity, likely int) model.Incident {
	return model.Incident{
		ID: id, Title: "Incident " + id, Type: model.TypeFire, Severity: sev,
		Location:   model.Location{DistanceKm: 4},
		Casualties: model.CasualtyEstimate{Likely: likely, Max: likely, Confidence: 0.6},
	}
}

func adequateResources() []model.ResourceStatus {
	return []model.ResourceStatus{
		{ResourceType: "beds", CurrentLevel: 80, Capacity: 100},
		{ResourceType: "oxygen", CurrentLevel: 90, Capacity: 100},
	}
}

// ---------- IncidentResponseWorkflow ----------

type IncidentResponseWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *IncidentResponseWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *IncidentResponseWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *IncidentResponseWorkflowTestSuite) result() model.WorkflowState {
	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var state model.WorkflowState
	s.NoError(s.env.GetWorkflowResult(&state))
	return state
}

func (s *IncidentResponseWorkflowTestSuite) TestEmptyRunCallsNothing() {
	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{})

	state := s.result()
	s.Equal(model.StatusComplete, state.Status)
	s.Equal(pipeline.NoIncidentsResponse, state.Response)
}

func (s *IncidentResponseWorkflowTestSuite) TestMediumOnlySkipsOrchestration() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "").
		Return([]model.Incident{testIncident("m", model.SeverityMedium, 5)}, nil)
	s.env.OnActivity("SnapshotResources", mock.Anything).
		Return(adequateResources(), nil)

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Scan: true})

	state := s.result()
	s.Equal(model.StatusComplete, state.Status)
	s.Equal(pipeline.NodeRespond, state.CurrentNode)
	s.False(state.ShouldOrchestrate)
	s.InDelta(0.85, state.CapacityScore, 1e-9)
	s.Contains(state.Response, "Incident m (medium)")
}

func (s *IncidentResponseWorkflowTestSuite) TestCriticalHeldOthersDispatched() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "chemical fire").
		Return([]model.Incident{
			testIncident("crit", model.SeverityCritical, 30),
			testIncident("high", model.SeverityHigh, 6),
			testIncident("low", model.SeverityLow, 0),
		}, nil)
	s.env.OnActivity("SnapshotResources", mock.Anything).
		Return(adequateResources(), nil)

	released := dispatch.Batch{
		IncidentID: "high",
		Trigger:    dispatch.TriggerAuto,
		Requests:   []model.ResourceRequest{{ID: "r1", IncidentID: "high", ResourceType: "oxygen", Quantity: 2, Status: model.RequestPending}},
		Alerts:     []model.HospitalAlert{{ID: "a1", HospitalID: "near", IncidentID: "high", AlertType: "awareness"}},
	}
	s.env.OnActivity("OrchestrateIncidents", mock.Anything, mock.Anything).
		Return(orchestrator.BatchResult{
			Outcomes: []orchestrator.Outcome{
				{Held: true, Released: dispatch.Batch{IncidentID: "crit"}},
				{Released: released},
			},
			ResourceRequests: released.Requests,
			HospitalAlerts:   released.Alerts,
			Decisions:        []model.Decision{{Action: "Held response for Incident crit pending war room approval"}},
			PendingApprovals: []string{"crit"},
		}, nil)

	sent := released
	sent.Requests = []model.ResourceRequest{{ID: "r1", IncidentID: "high", ResourceType: "oxygen", Quantity: 2, Status: model.RequestSent}}
	s.env.OnActivity("DispatchActions", mock.Anything, mock.MatchedBy(func(b dispatch.Batch) bool {
		return b.IncidentID == "high"
	})).Return(sent, nil).Once()

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Query: "chemical fire"})

	state := s.result()
	s.Equal(model.StatusComplete, state.Status)
	s.Equal([]string{"crit"}, state.PendingApprovals)
	s.Require().Len(state.ResourceRequests, 1)
	s.Equal(model.RequestSent, state.ResourceRequests[0].Status)
	s.Len(state.HospitalAlerts, 1)
	s.Empty(state.Warnings)
	s.Contains(state.Response, "Awaiting War Room Approval")
}

func (s *IncidentResponseWorkflowTestSuite) TestOnlyEscalatingIncidentsOrchestrated() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "").
		Return([]model.Incident{
			testIncident("high", model.SeverityHigh, 2),
			testIncident("med", model.SeverityMedium, 2),
		}, nil)
	s.env.OnActivity("SnapshotResources", mock.Anything).
		Return(adequateResources(), nil)
	s.env.OnActivity("OrchestrateIncidents", mock.Anything, mock.MatchedBy(func(p activity.OrchestrateParams) bool {
		return len(p.Incidents) == 1 && p.Incidents[0].ID == "high" && len(p.Resources) == 2
	})).Return(orchestrator.BatchResult{}, nil).Once()

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Scan: true})

	state := s.result()
	s.Equal(model.StatusComplete, state.Status)
	s.True(state.ShouldOrchestrate)
	s.Equal(pipeline.NodeRespond, state.CurrentNode)
}

func (s *IncidentResponseWorkflowTestSuite) TestDispatchFailureKeepsRequestsPending() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "").
		Return([]model.Incident{testIncident("high", model.SeverityHigh, 6)}, nil)
	s.env.OnActivity("SnapshotResources", mock.Anything).
		Return(adequateResources(), nil)

	released := dispatch.Batch{
		IncidentID: "high",
		Trigger:    dispatch.TriggerAuto,
		Requests:   []model.ResourceRequest{{ID: "r1", IncidentID: "high", Status: model.RequestPending}},
	}
	s.env.OnActivity("OrchestrateIncidents", mock.Anything, mock.Anything).
		Return(orchestrator.BatchResult{
			Outcomes:         []orchestrator.Outcome{{Released: released}},
			ResourceRequests: released.Requests,
		}, nil)
	s.env.OnActivity("DispatchActions", mock.Anything, mock.Anything).
		Return(dispatch.Batch{}, temporal.NewNonRetryableApplicationError("webhook returned 400", "CLIENT_ERROR", nil))

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Scan: true})

	state := s.result()
	s.Equal(model.StatusComplete, state.Status)
	s.Require().Len(state.ResourceRequests, 1)
	s.Equal(model.RequestPending, state.ResourceRequests[0].Status)
	s.Require().Len(state.Warnings, 1)
	s.Contains(state.Warnings[0], "dispatch failed")
	s.Contains(state.Warnings[0], "webhook returned 400")
}

func (s *IncidentResponseWorkflowTestSuite) TestScanFailureEndsInErrorState() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "").
		Return(nil, errors.New("all sources down"))

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Scan: true})

	state := s.result()
	s.Equal(model.StatusError, state.Status)
	s.Equal(pipeline.NodeScan, state.CurrentNode)
	s.Contains(state.Response, "Scanner error")
	s.Contains(state.Response, "all sources down")
}

func (s *IncidentResponseWorkflowTestSuite) TestSnapshotFailureEndsInErrorState() {
	s.env.OnActivity("ScanIncidents", mock.Anything, "").
		Return([]model.Incident{testIncident("high", model.SeverityHigh, 1)}, nil)
	s.env.OnActivity("SnapshotResources", mock.Anything).
		Return(nil, temporal.NewNonRetryableApplicationError("invalid resource snapshot", "VALIDATION_ERROR", nil))

	s.env.ExecuteWorkflow(IncidentResponseWorkflow, RunParams{Scan: true})

	state := s.result()
	s.Equal(model.StatusError, state.Status)
	s.Equal(pipeline.NodeAnalyze, state.CurrentNode)
	s.Contains(state.Response, "Analyzer error")
}

func TestIncidentResponseWorkflow(t *testing.T) {
	suite.Run(t, new(IncidentResponseWorkflowTestSuite))
}

// ---------- ReleaseApprovedActionsWorkflow ----------

type ReleaseApprovedActionsWorkflowTestSuite struct {
	suite.Suite
	testsuite.WorkflowTestSuite
	env *testsuite.TestWorkflowEnvironment
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) SetupTest() {
	s.env = s.NewTestWorkflowEnvironment()
	registerActivities(s.env)
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) AfterTest(suiteName, testName string) {
	s.env.AssertExpectations(s.T())
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) TestApproveThenDispatch() {
	batch := dispatch.Batch{
		IncidentID: "crit",
		Trigger:    dispatch.TriggerApproved,
		Requests:   []model.ResourceRequest{{ID: "r1", IncidentID: "crit", Status: model.RequestPending}},
	}
	s.env.OnActivity("ApprovePending", mock.Anything, mock.Anything).Return(batch, nil)

	sent := batch
	sent.Requests = []model.ResourceRequest{{ID: "r1", IncidentID: "crit", Status: model.RequestSent}}
	s.env.OnActivity("DispatchActions", mock.Anything, mock.Anything).Return(sent, nil)

	s.env.ExecuteWorkflow(ReleaseApprovedActionsWorkflow, ReleaseParams{IncidentID: "crit", Actor: "chief"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
	var got dispatch.Batch
	s.NoError(s.env.GetWorkflowResult(&got))
	s.Require().Len(got.Requests, 1)
	s.Equal(model.RequestSent, got.Requests[0].Status)
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) TestConflictSkipsDispatch() {
	s.env.OnActivity("ApprovePending", mock.Anything, mock.Anything).
		Return(dispatch.Batch{}, temporal.NewNonRetryableApplicationError("incident crit already decided", "APPROVAL_CONFLICT", nil))

	s.env.ExecuteWorkflow(ReleaseApprovedActionsWorkflow, ReleaseParams{IncidentID: "crit", Actor: "chief"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
	s.Contains(s.env.GetWorkflowError().Error(), "already decided")
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) TestEmptyBatchSkipsDispatch() {
	s.env.OnActivity("ApprovePending", mock.Anything, mock.Anything).
		Return(dispatch.Batch{IncidentID: "crit", Trigger: dispatch.TriggerApproved}, nil)

	s.env.ExecuteWorkflow(ReleaseApprovedActionsWorkflow, ReleaseParams{IncidentID: "crit", Actor: "chief"})

	s.True(s.env.IsWorkflowCompleted())
	s.NoError(s.env.GetWorkflowError())
}

func (s *ReleaseApprovedActionsWorkflowTestSuite) TestDispatchFailureFailsWorkflow() {
	s.env.OnActivity("ApprovePending", mock.Anything, mock.Anything).
		Return(dispatch.Batch{IncidentID: "crit", Alerts: []model.HospitalAlert{{ID: "a1", HospitalID: "near"}}}, nil)
	s.env.OnActivity("DispatchActions", mock.Anything, mock.Anything).
		Return(dispatch.Batch{}, temporal.NewNonRetryableApplicationError("webhook returned 404", "CLIENT_ERROR", nil))

	s.env.ExecuteWorkflow(ReleaseApprovedActionsWorkflow, ReleaseParams{IncidentID: "crit", Actor: "chief"})

	s.True(s.env.IsWorkflowCompleted())
	s.Error(s.env.GetWorkflowError())
}

func TestReleaseApprovedActionsWorkflow(t *testing.T) {
	suite.Run(t, new(ReleaseApprovedActionsWorkflowTestSuite))
}
