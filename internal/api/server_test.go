package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

type stubRunner struct {
	query string
	scan  bool
}

func (r *stubRunner) Run(_ context.Context, query string, scan bool) model.WorkflowState {
	r.query, r.scan = query, scan
	return model.WorkflowState{Query: query, Status: model.StatusComplete}
}

type stubGate struct{}

func (stubGate) ListPending(context.Context) ([]model.PendingApproval, error) {
	return []model.PendingApproval{}, nil
}

func (stubGate) Get(_ context.Context, id string) (model.PendingApproval, error) {
	return model.PendingApproval{}, fault.Wrap(fault.ErrNotFound, "get approval", errors.New(id))
}

func (stubGate) Approve(_ context.Context, id, _ string) (approval.Outcome, error) {
	return approval.Outcome{}, fault.Wrap(fault.ErrApprovalConflict, "approve", errors.New(id))
}

func (stubGate) Reject(_ context.Context, id, _, _ string) (approval.Outcome, error) {
	return approval.Outcome{}, fault.Wrap(fault.ErrNotFound, "reject", errors.New(id))
}

func (stubGate) Redeliver(_ context.Context, id string) (approval.Outcome, error) {
	return approval.Outcome{}, fault.Wrap(fault.ErrNotFound, "redeliver "+id, nil)
}

func newTestServer(checks map[string]Pinger, runner *stubRunner) *Server {
	return NewServer(zerolog.Nop(), Services{Runner: runner, Gate: stubGate{}}, checks)
}

func TestHealthz(t *testing.T) {
	srv := newTestServer(nil, &stubRunner{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"ok"`)
}

func TestReadyz_AllHealthy(t *testing.T) {
	srv := newTestServer(map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"cache":    pingFunc(func(context.Context) error { return nil }),
	}, &stubRunner{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var checks map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Equal(t, map[string]string{"database": "ok", "cache": "ok"}, checks)
}

func TestReadyz_FailingDependency(t *testing.T) {
	srv := newTestServer(map[string]Pinger{
		"database": pingFunc(func(context.Context) error { return nil }),
		"temporal": pingFunc(func(context.Context) error { return errors.New("connection refused") }),
	}, &stubRunner{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var checks map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &checks))
	assert.Equal(t, "ok", checks["database"])
	assert.Equal(t, "connection refused", checks["temporal"])
}

func TestRoutes_WorkflowRun(t *testing.T) {
	runner := &stubRunner{}
	srv := newTestServer(nil, runner)
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/v1/workflow/run", strings.NewReader(`{"query":"flood","scan":false}`))
	req.Header.Set("Content-Type", "application/json")
	srv.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "flood", runner.query)
	assert.False(t, runner.scan)
}

func TestRoutes_ApprovalErrors(t *testing.T) {
	srv := newTestServer(nil, &stubRunner{})

	tests := []struct {
		method string
		path   string
		body   string
		want   int
	}{
		{http.MethodGet, "/api/v1/approvals", "", http.StatusOK},
		{http.MethodGet, "/api/v1/approvals/inc-9", "", http.StatusNotFound},
		{http.MethodPost, "/api/v1/approvals/inc-9/approve", `{"actor":"chief"}`, http.StatusConflict},
		{http.MethodPost, "/api/v1/approvals/inc-9/reject", `{"actor":"chief"}`, http.StatusNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(tt.method, tt.path, strings.NewReader(tt.body))
			req.Header.Set("Content-Type", "application/json")
			srv.ServeHTTP(rec, req)
			assert.Equal(t, tt.want, rec.Code)
		})
	}
}

func TestRoutes_UnknownPath(t *testing.T) {
	srv := newTestServer(nil, &stubRunner{})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/tenants", nil))

	assert.Equal(t, http.StatusNotFound, rec.Code)
}
