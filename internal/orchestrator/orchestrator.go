// Package orchestrator turns a detected incident into a resource and hospital
// response. Critical incidents are held at the approval gate; everything else
// is released immediately.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/compiler"
	"github.com/edvin/warroom/internal/dispatch"
	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/registry"
	"github.com/edvin/warroom/internal/scoring"
)

// ResourceReader returns the current resource snapshot.
type ResourceReader interface {
	Snapshot(ctx context.Context) ([]model.ResourceStatus, error)
}

// Strategist proposes a strategy. It never fails; see scoring.Strategist.
type Strategist interface {
	Strategy(ctx context.Context, incident model.Incident, resources []model.ResourceStatus) model.Strategy
}

// Holder withholds the actions of critical incidents.
type Holder interface {
	Hold(ctx context.Context, incident model.Incident, requests []model.ResourceRequest,
		alerts []model.HospitalAlert, strategy model.Strategy, score float64) (approval.HoldOutcome, error)
}

type Config struct {
	// AlertTopN is passed to the compiler; see compiler.Options.
	AlertTopN int
}

type Service struct {
	cfg        Config
	resources  ResourceReader
	strategist Strategist
	registry   *registry.Registry
	gate       Holder
	dispatcher dispatch.Dispatcher
	logger     zerolog.Logger
	now        func() time.Time
}

// NewService wires the orchestrator. A nil dispatcher returns released actions
// still pending, leaving delivery to the caller.
func NewService(cfg Config, resources ResourceReader, strategist Strategist, reg *registry.Registry,
	gate Holder, dispatcher dispatch.Dispatcher, logger zerolog.Logger) *Service {
	return &Service{
		cfg:        cfg,
		resources:  resources,
		strategist: strategist,
		registry:   reg,
		gate:       gate,
		dispatcher: dispatcher,
		logger:     logger.With().Str("component", "orchestrator").Logger(),
		now:        time.Now,
	}
}

// Outcome is the orchestration of one incident.
type Outcome struct {
	Result model.OrchestrationResult `json:"result"`
	// Released holds the actions that left the gate. When the service has no
	// dispatcher they are still pending delivery.
	Released   dispatch.Batch `json:"released"`
	Dispatched bool           `json:"dispatched"`
	Held       bool           `json:"held"`
	Warnings   []string       `json:"warnings,omitempty"`
}

// Orchestrate snapshots resources and orchestrates a single incident.
// Requests and alerts are only released when their auto flag is set, and
// never for a critical incident.
func (s *Service) Orchestrate(ctx context.Context, incident model.Incident, autoRequest, autoAlert bool) (model.OrchestrationResult, error) {
	if err := incident.Validate(); err != nil {
		return model.OrchestrationResult{}, fault.Wrap(fault.ErrValidation, "orchestrate", err)
	}

	resources, snapErr := s.resources.Snapshot(ctx)
	if snapErr != nil {
		s.logger.Warn().Err(snapErr).Str("incident_id", incident.ID).Msg("resource snapshot unavailable")
		resources = nil
	}

	out := s.orchestrate(ctx, incident, resources, autoRequest, autoAlert)
	if snapErr != nil {
		out.Result.Message = fmt.Sprintf("Orchestration completed with limited AI analysis: %v", snapErr) + out.Result.HoldSuffix()
	}
	return out.Result, out.holdErr
}

// BatchResult merges the orchestration of several incidents.
type BatchResult struct {
	Outcomes         []Outcome               `json:"outcomes"`
	ResourceRequests []model.ResourceRequest `json:"resource_requests"`
	HospitalAlerts   []model.HospitalAlert   `json:"hospital_alerts"`
	Decisions        []model.Decision        `json:"decisions"`
	PendingApprovals []string                `json:"pending_approvals"`
	Warnings         []string                `json:"warnings"`
}

// OrchestrateBatch orchestrates every incident against one resource snapshot.
// Gating is per incident: a critical incident withholds only its own actions.
// Invalid incidents are skipped with a warning.
func (s *Service) OrchestrateBatch(ctx context.Context, incidents []model.Incident, resources []model.ResourceStatus) BatchResult {
	res := BatchResult{
		Outcomes:         []Outcome{},
		ResourceRequests: []model.ResourceRequest{},
		HospitalAlerts:   []model.HospitalAlert{},
		Decisions:        []model.Decision{},
		PendingApprovals: []string{},
		Warnings:         []string{},
	}

	for _, incident := range incidents {
		if err := incident.Validate(); err != nil {
			s.logger.Warn().Err(err).Str("incident_id", incident.ID).Msg("dropping invalid incident")
			res.Warnings = append(res.Warnings, fmt.Sprintf("skipped invalid incident %s", incident.ID))
			continue
		}

		out := s.orchestrate(ctx, incident, resources, true, true)
		res.Outcomes = append(res.Outcomes, out.Outcome)
		res.Warnings = append(res.Warnings, out.Warnings...)
		res.Decisions = append(res.Decisions, s.decision(incident, out.Outcome))

		if out.Held {
			res.PendingApprovals = append(res.PendingApprovals, incident.ID)
		}
	}
	res.Remerge()
	return res
}

// Remerge rebuilds the merged requests and alerts from the released batch of
// every outcome that was not held.
func (b *BatchResult) Remerge() {
	b.ResourceRequests = []model.ResourceRequest{}
	b.HospitalAlerts = []model.HospitalAlert{}
	for _, out := range b.Outcomes {
		if out.Held {
			continue
		}
		b.ResourceRequests = append(b.ResourceRequests, out.Released.Requests...)
		b.HospitalAlerts = append(b.HospitalAlerts, out.Released.Alerts...)
	}
}

type outcome struct {
	Outcome
	holdErr error
}

func (s *Service) orchestrate(ctx context.Context, incident model.Incident, resources []model.ResourceStatus,
	autoRequest, autoAlert bool) outcome {
	log := s.logger.With().Str("incident_id", incident.ID).Str("severity", string(incident.Severity)).Logger()

	strategy := s.strategist.Strategy(ctx, incident, resources)
	plan := compiler.Compile(incident, strategy, s.registry, compiler.Options{TopN: s.cfg.AlertTopN, Now: s.now})
	if len(plan.Unmatched) > 0 {
		log.Warn().Strs("categories", plan.Unmatched).Msg("no vendor registered for ordered categories")
	}
	if len(plan.UnmatchedHospitals) > 0 {
		log.Warn().Strs("hospitals", plan.UnmatchedHospitals).Msg("coordination targets not in hospital registry")
	}

	score := strategy.Score(scoring.DefaultProviderScore)
	result := model.NewOrchestrationResult(incident.ID, resources, plan.Requests, plan.Alerts, plan.Recommendations, score)
	out := outcome{Outcome: Outcome{Released: dispatch.Batch{IncidentID: incident.ID, Trigger: dispatch.TriggerAuto}}}

	if approval.Requires(incident) {
		out.Held = true
		hold, err := s.gate.Hold(ctx, incident, plan.Requests, plan.Alerts, strategy, result.CapacityScore)
		if err != nil {
			log.Warn().Err(err).Msg("incident already decided, actions withheld")
			out.holdErr = err
			out.Warnings = append(out.Warnings, fmt.Sprintf("incident %s: %v", incident.ID, err))
		}
		if hold.Warning != "" {
			out.Warnings = append(out.Warnings, fmt.Sprintf("incident %s: %s", incident.ID, hold.Warning))
		}
		out.Result = result.Withhold(hold.Degraded)
		return out
	}

	if autoRequest {
		out.Released.Requests = plan.Requests
	}
	if autoAlert {
		out.Released.Alerts = plan.Alerts
	}

	if s.dispatcher != nil && !out.Released.Empty() {
		sent, err := s.dispatcher.Dispatch(ctx, out.Released)
		if err != nil {
			log.Warn().Err(err).Msg("released actions not dispatched")
			out.Warnings = append(out.Warnings, fmt.Sprintf("incident %s: dispatch failed: %v", incident.ID, err))
		} else {
			out.Released = sent
			out.Dispatched = true
		}
	}

	result.ResourceRequests = nonNil(out.Released.Requests)
	result.HospitalAlerts = nonNilAlerts(out.Released.Alerts)
	out.Result = result
	log.Info().Int("requests", len(result.ResourceRequests)).Int("alerts", len(result.HospitalAlerts)).
		Float64("capacity_score", result.CapacityScore).Msg("incident orchestrated")
	return out
}

func (s *Service) decision(incident model.Incident, out Outcome) model.Decision {
	d := model.Decision{Priority: incident.Severity, Timestamp: s.now().UTC()}
	if out.Held {
		d.Action = fmt.Sprintf("Held response for %s pending war room approval", incident.Title)
		d.Reasoning = fmt.Sprintf("Critical severity requires human sign-off. Capacity score: %.0f%%", out.Result.CapacityScore*100)
		return d
	}
	d.Action = fmt.Sprintf("Released %d resource requests and %d hospital alerts for %s",
		len(out.Released.Requests), len(out.Released.Alerts), incident.Title)
	d.Reasoning = fmt.Sprintf("%s severity. Capacity score: %.0f%%", incident.Severity, out.Result.CapacityScore*100)
	return d
}

func nonNil(r []model.ResourceRequest) []model.ResourceRequest {
	if r == nil {
		return []model.ResourceRequest{}
	}
	return r
}

func nonNilAlerts(a []model.HospitalAlert) []model.HospitalAlert {
	if a == nil {
		return []model.HospitalAlert{}
	}
	return a
}
