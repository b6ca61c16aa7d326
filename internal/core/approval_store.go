package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

const approvalColumns = `incident_id, incident_title, severity, proposed_requests, proposed_alerts,
	        strategy, capacity_score, status, created_at, decided_at, decided_by, reason`

// ApprovalStore persists war room approvals in pending_approvals.
type ApprovalStore struct {
	db DB
}

func NewApprovalStore(db DB) *ApprovalStore {
	return &ApprovalStore{db: db}
}

// Insert stores a new pending record. A record that already exists for the
// incident is left untouched and reported as ErrApprovalConflict.
func (s *ApprovalStore) Insert(ctx context.Context, rec model.PendingApproval) error {
	requests, err := json.Marshal(rec.ProposedRequests)
	if err != nil {
		return fmt.Errorf("marshal proposed requests: %w", err)
	}
	alerts, err := json.Marshal(rec.ProposedAlerts)
	if err != nil {
		return fmt.Errorf("marshal proposed alerts: %w", err)
	}
	strategy, err := json.Marshal(rec.Strategy)
	if err != nil {
		return fmt.Errorf("marshal strategy: %w", err)
	}

	tag, err := s.db.Exec(ctx,
		`INSERT INTO pending_approvals (incident_id, incident_title, severity, proposed_requests,
		                               proposed_alerts, strategy, capacity_score, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 ON CONFLICT (incident_id) DO NOTHING`,
		rec.IncidentID, rec.IncidentTitle, string(rec.Severity), requests, alerts, strategy,
		rec.CapacityScore, rec.Status, rec.CreatedAt,
	)
	if err != nil {
		return storeErr("insert pending approval", err)
	}
	if tag.RowsAffected() == 0 {
		return fault.Wrap(fault.ErrApprovalConflict, "insert pending approval",
			fmt.Errorf("incident %s already has an approval record", rec.IncidentID))
	}
	return nil
}

// Get returns the approval record for an incident.
func (s *ApprovalStore) Get(ctx context.Context, incidentID string) (model.PendingApproval, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+approvalColumns+` FROM pending_approvals WHERE incident_id = $1`, incidentID)
	rec, err := scanApproval(row)
	if err != nil {
		return model.PendingApproval{}, storeErr("get approval "+incidentID, err)
	}
	return rec, nil
}

// UpdateStatus decides a record only while it is still in from. The WHERE
// clause makes the transition atomic across processes.
func (s *ApprovalStore) UpdateStatus(ctx context.Context, incidentID, from, to, actor string, reason *string, at time.Time) error {
	tag, err := s.db.Exec(ctx,
		`UPDATE pending_approvals
		 SET status = $1, decided_at = $2, decided_by = $3, reason = $4
		 WHERE incident_id = $5 AND status = $6`,
		to, at, actor, reason, incidentID, from,
	)
	if err != nil {
		return storeErr("update approval "+incidentID, err)
	}
	if tag.RowsAffected() == 0 {
		return fault.Wrap(fault.ErrApprovalConflict, "update approval "+incidentID,
			fmt.Errorf("incident %s is no longer %s", incidentID, from))
	}
	return nil
}

// ListPending returns undecided records, oldest first.
func (s *ApprovalStore) ListPending(ctx context.Context) ([]model.PendingApproval, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+approvalColumns+` FROM pending_approvals WHERE status = $1 ORDER BY created_at`,
		model.ApprovalPending)
	if err != nil {
		return nil, storeErr("list pending approvals", err)
	}
	defer rows.Close()

	var out []model.PendingApproval
	for rows.Next() {
		rec, err := scanApproval(rows)
		if err != nil {
			return nil, storeErr("scan pending approval", err)
		}
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, storeErr("iterate pending approvals", err)
	}
	return out, nil
}

func scanApproval(row pgx.Row) (model.PendingApproval, error) {
	var rec model.PendingApproval
	var severity string
	var requests, alerts, strategy []byte
	err := row.Scan(&rec.IncidentID, &rec.IncidentTitle, &severity, &requests, &alerts,
		&strategy, &rec.CapacityScore, &rec.Status, &rec.CreatedAt, &rec.DecidedAt, &rec.DecidedBy, &rec.Reason)
	if err != nil {
		return rec, err
	}
	rec.Severity = model.Severity(severity)
	if err := json.Unmarshal(requests, &rec.ProposedRequests); err != nil {
		return rec, fmt.Errorf("decode proposed requests: %w", err)
	}
	if err := json.Unmarshal(alerts, &rec.ProposedAlerts); err != nil {
		return rec, fmt.Errorf("decode proposed alerts: %w", err)
	}
	if err := json.Unmarshal(strategy, &rec.Strategy); err != nil {
		return rec, fmt.Errorf("decode strategy: %w", err)
	}
	return rec, nil
}
