package handler

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/scheduler"
)

type mockRunner struct {
	mock.Mock
}

func (m *mockRunner) Run(ctx context.Context, query string, scan bool) model.WorkflowState {
	args := m.Called(ctx, query, scan)
	return args.Get(0).(model.WorkflowState)
}

type mockOrchestrator struct {
	mock.Mock
}

func (m *mockOrchestrator) Orchestrate(ctx context.Context, incident model.Incident, autoRequest, autoAlert bool) (model.OrchestrationResult, error) {
	args := m.Called(ctx, incident, autoRequest, autoAlert)
	return args.Get(0).(model.OrchestrationResult), args.Error(1)
}

type mockResources struct {
	mock.Mock
}

func (m *mockResources) Snapshot(ctx context.Context) ([]model.ResourceStatus, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.ResourceStatus), args.Error(1)
}

type mockGate struct {
	mock.Mock
}

func (m *mockGate) ListPending(ctx context.Context) ([]model.PendingApproval, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.PendingApproval), args.Error(1)
}

func (m *mockGate) Get(ctx context.Context, incidentID string) (model.PendingApproval, error) {
	args := m.Called(ctx, incidentID)
	return args.Get(0).(model.PendingApproval), args.Error(1)
}

func (m *mockGate) Approve(ctx context.Context, incidentID, actor string) (approval.Outcome, error) {
	args := m.Called(ctx, incidentID, actor)
	return args.Get(0).(approval.Outcome), args.Error(1)
}

func (m *mockGate) Reject(ctx context.Context, incidentID, actor, reason string) (approval.Outcome, error) {
	args := m.Called(ctx, incidentID, actor, reason)
	return args.Get(0).(approval.Outcome), args.Error(1)
}

func (m *mockGate) Redeliver(ctx context.Context, incidentID string) (approval.Outcome, error) {
	args := m.Called(ctx, incidentID)
	return args.Get(0).(approval.Outcome), args.Error(1)
}

type mockScanner struct {
	mock.Mock
}

func (m *mockScanner) Scan(ctx context.Context, query string) ([]model.Incident, error) {
	args := m.Called(ctx, query)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]model.Incident), args.Error(1)
}

type mockLoop struct {
	mock.Mock
}

func (m *mockLoop) Start() error {
	return m.Called().Error(0)
}

func (m *mockLoop) Stop(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockLoop) Running() bool {
	return m.Called().Bool(0)
}

func (m *mockLoop) Scanning() bool {
	return m.Called().Bool(0)
}

func (m *mockLoop) TriggerNow() bool {
	return m.Called().Bool(0)
}

func (m *mockLoop) Interval() time.Duration {
	return m.Called().Get(0).(time.Duration)
}

func (m *mockLoop) Snapshot() *scheduler.Snapshot {
	args := m.Called()
	if args.Get(0) == nil {
		return nil
	}
	return args.Get(0).(*scheduler.Snapshot)
}

func (m *mockLoop) Record(started time.Time, incidents []model.Incident) bool {
	return m.Called(started, incidents).Bool(0)
}
