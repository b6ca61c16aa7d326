// Package approval implements the war room gate: compiled actions for a
// critical incident are held as a pending record and only leave the system
// after a human approves them.
//
// The gate fails closed. When the durable store is unavailable the actions
// are still withheld, the record is kept in process memory and the caller is
// told it is running degraded.
package approval

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/archive"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/metrics"
	"github.com/edvin/warroom/internal/model"
)

// Store persists pending approvals.
type Store interface {
	Insert(ctx context.Context, rec model.PendingApproval) error
	Get(ctx context.Context, incidentID string) (model.PendingApproval, error)
	// UpdateStatus moves a record from one status to another. It fails with
	// fault.ErrApprovalConflict when the record is no longer in from.
	UpdateStatus(ctx context.Context, incidentID, from, to, actor string, reason *string, at time.Time) error
	ListPending(ctx context.Context) ([]model.PendingApproval, error)
}

// HoldOutcome describes how a hold was recorded.
type HoldOutcome struct {
	Record   model.PendingApproval
	Degraded bool
	Warning  string
}

// Outcome is the result of a war room decision.
type Outcome struct {
	Record model.PendingApproval
	// Batch is what was released (approve) or discarded (reject).
	Batch dispatch.Batch
	// Released is true when the gate dispatched the batch itself.
	Released bool
	// Warning is set when an approval was recorded but its batch could not be
	// delivered. The batch is kept for Redeliver.
	Warning string
}

// decidedRetention bounds how long a decided in-memory record is kept.
const decidedRetention = 24 * time.Hour

type Gate struct {
	store    Store
	releaser dispatch.Dispatcher
	archiver archive.Archiver
	locks    *keyedMutex
	logger   zerolog.Logger
	now      func() time.Time

	mu          sync.Mutex
	records     map[string]model.PendingApproval
	volatile    map[string]bool
	counted     map[string]bool
	undelivered map[string]dispatch.Batch
}

// NewGate creates a gate. A nil store runs permanently degraded. A nil
// releaser leaves dispatching approved batches to the caller.
func NewGate(store Store, releaser dispatch.Dispatcher, archiver archive.Archiver, logger zerolog.Logger) *Gate {
	if archiver == nil {
		archiver = archive.Noop{}
	}
	return &Gate{
		store:    store,
		releaser: releaser,
		archiver: archiver,
		locks:    newKeyedMutex(),
		logger:   logger.With().Str("component", "approval-gate").Logger(),
		now:      time.Now,
		records:     make(map[string]model.PendingApproval),
		volatile:    make(map[string]bool),
		counted:     make(map[string]bool),
		undelivered: make(map[string]dispatch.Batch),
	}
}

// Requires reports whether an incident must be held for approval.
func Requires(incident model.Incident) bool {
	return incident.Severity == model.SeverityCritical
}

// Hold records the compiled actions of a critical incident as pending. If a
// pending record already exists for the incident it is returned unchanged, so
// the actions shown to the war room are the ones computed first. Holding an
// incident that was already decided is an ErrApprovalConflict.
func (g *Gate) Hold(ctx context.Context, incident model.Incident, requests []model.ResourceRequest,
	alerts []model.HospitalAlert, strategy model.Strategy, score float64) (HoldOutcome, error) {
	unlock := g.locks.Lock(incident.ID)
	defer unlock()

	if existing, _, err := g.load(ctx, incident.ID); err == nil {
		if existing.Decided() {
			return HoldOutcome{}, fault.Wrap(fault.ErrApprovalConflict, "hold",
				fmt.Errorf("incident %s already %s", incident.ID, existing.Status))
		}
		return HoldOutcome{Record: existing, Degraded: g.isVolatile(incident.ID)}, nil
	}

	rec := model.PendingApproval{
		IncidentID:       incident.ID,
		IncidentTitle:    incident.Title,
		Severity:         incident.Severity,
		ProposedRequests: slices.Clone(requests),
		ProposedAlerts:   slices.Clone(alerts),
		Strategy:         strategy,
		CapacityScore:    score,
		Status:           model.ApprovalPending,
		CreatedAt:        g.now().UTC(),
	}

	out := HoldOutcome{Record: rec}
	err := g.insert(ctx, rec)
	switch {
	case err == nil:
	case fault.Is(err, fault.ErrApprovalConflict):
		// Another process held it first; defer to the stored record.
		if stored, _, lerr := g.load(ctx, incident.ID); lerr == nil {
			return HoldOutcome{Record: stored}, nil
		}
		return HoldOutcome{}, err
	default:
		out.Degraded = true
		out.Warning = "approval store unavailable: actions withheld and held in memory only"
		g.logger.Warn().Err(err).Str("incident_id", incident.ID).Msg("pending approval not persisted, failing closed")
	}

	g.remember(rec, out.Degraded)
	g.count(rec.IncidentID)
	g.logger.Info().Str("incident_id", incident.ID).Int("requests", len(requests)).Int("alerts", len(alerts)).
		Bool("degraded", out.Degraded).Msg("critical incident held for war room approval")
	return out, nil
}

// Approve releases the actions computed at hold time. The first decision on a
// record wins; later ones fail with ErrApprovalConflict.
func (g *Gate) Approve(ctx context.Context, incidentID, actor string) (Outcome, error) {
	rec, err := g.decide(ctx, incidentID, model.ApprovalApproved, actor, nil)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Record: rec,
		Batch: dispatch.Batch{
			IncidentID: incidentID,
			Trigger:    dispatch.TriggerApproved,
			Requests:   slices.Clone(rec.ProposedRequests),
			Alerts:     slices.Clone(rec.ProposedAlerts),
		},
	}
	if g.releaser == nil {
		return out, nil
	}
	sent, err := g.releaser.Dispatch(ctx, out.Batch)
	if err != nil {
		g.logger.Error().Err(err).Str("incident_id", incidentID).Msg("approved actions could not be dispatched")
		g.KeepUndelivered(out.Batch)
		out.Warning = fmt.Sprintf("approved actions not delivered: %v", err)
		return out, nil
	}
	out.Batch = sent
	out.Released = true
	return out, nil
}

// KeepUndelivered stores an approved batch whose delivery failed so that
// Redeliver can retry it.
func (g *Gate) KeepUndelivered(b dispatch.Batch) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.undelivered[b.IncidentID] = b
}

// Redeliver dispatches an approved batch whose earlier delivery failed. An
// incident with nothing undelivered is ErrNotFound; a failed attempt is
// ErrDelivery and keeps the batch.
func (g *Gate) Redeliver(ctx context.Context, incidentID string) (Outcome, error) {
	unlock := g.locks.Lock(incidentID)
	defer unlock()

	g.mu.Lock()
	b, ok := g.undelivered[incidentID]
	g.mu.Unlock()
	if !ok {
		return Outcome{}, fault.Wrap(fault.ErrNotFound, "redeliver",
			fmt.Errorf("no undelivered actions for incident %s", incidentID))
	}
	if g.releaser == nil {
		return Outcome{Batch: b}, fault.Wrap(fault.ErrDelivery, "redeliver", errors.New("no dispatcher configured"))
	}

	rec, _, _ := g.load(ctx, incidentID)
	sent, err := g.releaser.Dispatch(ctx, b)
	if err != nil {
		g.logger.Warn().Err(err).Str("incident_id", incidentID).Msg("redelivery failed")
		return Outcome{Record: rec, Batch: b}, fault.Wrap(fault.ErrDelivery, "redeliver", err)
	}

	g.mu.Lock()
	delete(g.undelivered, incidentID)
	g.mu.Unlock()
	g.logger.Info().Str("incident_id", incidentID).Msg("approved actions redelivered")
	return Outcome{Record: rec, Batch: sent, Released: true}, nil
}

// Reject discards the held actions. Proposed requests are returned cancelled.
func (g *Gate) Reject(ctx context.Context, incidentID, actor, reason string) (Outcome, error) {
	var r *string
	if reason != "" {
		r = &reason
	}
	rec, err := g.decide(ctx, incidentID, model.ApprovalRejected, actor, r)
	if err != nil {
		return Outcome{}, err
	}

	requests := make([]model.ResourceRequest, len(rec.ProposedRequests))
	for i, req := range rec.ProposedRequests {
		if req.Status == model.RequestPending {
			_ = req.Transition(model.RequestCancelled)
		}
		requests[i] = req
	}
	return Outcome{
		Record: rec,
		Batch: dispatch.Batch{
			IncidentID: incidentID,
			Trigger:    model.ApprovalRejected,
			Requests:   requests,
			Alerts:     slices.Clone(rec.ProposedAlerts),
		},
	}, nil
}

// Get returns the approval record for an incident.
func (g *Gate) Get(ctx context.Context, incidentID string) (model.PendingApproval, error) {
	rec, _, err := g.load(ctx, incidentID)
	return rec, err
}

// ListPending returns every undecided record, including ones held only in
// memory while the store was down.
func (g *Gate) ListPending(ctx context.Context) ([]model.PendingApproval, error) {
	var out []model.PendingApproval
	seen := make(map[string]bool)

	if g.store != nil {
		stored, err := g.store.ListPending(ctx)
		if err != nil {
			g.logger.Warn().Err(err).Msg("approval store unavailable, listing in-memory records")
		}
		for _, rec := range stored {
			seen[rec.IncidentID] = true
			out = append(out, rec)
		}
	}

	g.mu.Lock()
	for id, rec := range g.records {
		if !seen[id] && rec.Status == model.ApprovalPending {
			out = append(out, rec)
		}
	}
	g.mu.Unlock()

	slices.SortFunc(out, func(a, b model.PendingApproval) int { return a.CreatedAt.Compare(b.CreatedAt) })
	if out == nil {
		out = []model.PendingApproval{}
	}
	return out, nil
}

func (g *Gate) decide(ctx context.Context, incidentID, to, actor string, reason *string) (model.PendingApproval, error) {
	unlock := g.locks.Lock(incidentID)
	defer unlock()

	rec, persisted, err := g.load(ctx, incidentID)
	if err != nil {
		return model.PendingApproval{}, err
	}
	if rec.Status != model.ApprovalPending {
		metrics.ApprovalDecisionsTotal.WithLabelValues("conflict").Inc()
		g.uncount(incidentID)
		return model.PendingApproval{}, fault.Wrap(fault.ErrApprovalConflict, "decide",
			fmt.Errorf("incident %s already %s", incidentID, rec.Status))
	}

	at := g.now().UTC()
	if persisted {
		if err := g.store.UpdateStatus(ctx, incidentID, model.ApprovalPending, to, actor, reason, at); err != nil {
			if fault.Is(err, fault.ErrApprovalConflict) {
				metrics.ApprovalDecisionsTotal.WithLabelValues("conflict").Inc()
				g.forget(incidentID)
				g.uncount(incidentID)
				return model.PendingApproval{}, err
			}
			// The store holds the authoritative pending record; deciding in
			// memory could release twice across processes.
			return model.PendingApproval{}, fault.Wrap(fault.ErrStoreUnavailable, "decide", err)
		}
	}

	rec.Status = to
	rec.DecidedAt = &at
	rec.DecidedBy = &actor
	rec.Reason = reason
	if persisted {
		g.forget(incidentID)
	} else {
		g.remember(rec, true)
	}

	g.uncount(incidentID)
	metrics.ApprovalDecisionsTotal.WithLabelValues(to).Inc()
	g.logger.Info().Str("incident_id", incidentID).Str("decision", to).Str("actor", actor).Msg("war room decision recorded")

	if err := g.archiver.Archive(ctx, rec); err != nil {
		g.logger.Warn().Err(err).Str("incident_id", incidentID).Msg("decided approval not archived")
	}
	return rec, nil
}

// load returns the record and whether it lives in the store. Records held
// only in memory, or cached while the store is down, come from memory.
func (g *Gate) load(ctx context.Context, incidentID string) (model.PendingApproval, bool, error) {
	if g.store != nil && !g.isVolatile(incidentID) {
		rec, err := g.store.Get(ctx, incidentID)
		if err == nil {
			if rec.Status == model.ApprovalPending {
				g.remember(rec, false)
			} else {
				g.forget(incidentID)
			}
			return rec, true, nil
		}
		if !errors.Is(err, fault.ErrNotFound) {
			g.logger.Warn().Err(err).Str("incident_id", incidentID).Msg("approval store unavailable, using in-memory record")
			if rec, ok := g.cached(incidentID); ok {
				// A cached copy of a stored record cannot be decided safely.
				return rec, false, errorIfPending(rec, err)
			}
			return model.PendingApproval{}, false, fault.Wrap(fault.ErrStoreUnavailable, "load approval", err)
		}
	}

	if rec, ok := g.cached(incidentID); ok {
		return rec, false, nil
	}
	return model.PendingApproval{}, false, fault.Wrap(fault.ErrNotFound, "load approval",
		fmt.Errorf("no approval for incident %s", incidentID))
}

func errorIfPending(rec model.PendingApproval, err error) error {
	if rec.Status == model.ApprovalPending {
		return fault.Wrap(fault.ErrStoreUnavailable, "load approval", err)
	}
	return nil
}

func (g *Gate) insert(ctx context.Context, rec model.PendingApproval) error {
	if g.store == nil {
		return fault.Wrap(fault.ErrStoreUnavailable, "insert approval", errors.New("no approval store configured"))
	}
	return g.store.Insert(ctx, rec)
}

func (g *Gate) remember(rec model.PendingApproval, volatile bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.records[rec.IncidentID] = rec
	if volatile {
		g.volatile[rec.IncidentID] = true
	}
	g.pruneLocked()
}

// pruneLocked drops decided records older than decidedRetention. Caller
// holds mu.
func (g *Gate) pruneLocked() {
	cutoff := g.now().Add(-decidedRetention)
	for id, rec := range g.records {
		if rec.DecidedAt != nil && rec.DecidedAt.Before(cutoff) {
			delete(g.records, id)
			delete(g.volatile, id)
		}
	}
}

// count and uncount keep the pending gauge to the holds made by this process.
func (g *Gate) count(incidentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.counted[incidentID] {
		g.counted[incidentID] = true
		metrics.PendingApprovals.Inc()
	}
}

func (g *Gate) uncount(incidentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.counted[incidentID] {
		delete(g.counted, incidentID)
		metrics.PendingApprovals.Dec()
	}
}

func (g *Gate) forget(incidentID string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	delete(g.records, incidentID)
	delete(g.volatile, incidentID)
}

func (g *Gate) cached(incidentID string) (model.PendingApproval, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	rec, ok := g.records[incidentID]
	return rec, ok
}

func (g *Gate) isVolatile(incidentID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.volatile[incidentID]
}
