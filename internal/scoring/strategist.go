package scoring

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/llm"
	"github.com/edvin/warroom/internal/metrics"
	"github.com/edvin/warroom/internal/model"
)

// Advisor proposes a strategy through the intelligence provider.
type Advisor interface {
	Advise(ctx context.Context, incident model.Incident, resources []model.ResourceStatus) llm.Result[model.Strategy]
}

// Strategist picks between the provider strategy and the fallback. It never
// returns an error: a failed provider call takes the fallback branch.
type Strategist struct {
	advisor Advisor
	logger  zerolog.Logger
}

// NewStrategist creates a strategist. A nil advisor always uses the fallback.
func NewStrategist(advisor Advisor, logger zerolog.Logger) *Strategist {
	return &Strategist{
		advisor: advisor,
		logger:  logger.With().Str("component", "strategist").Logger(),
	}
}

func (s *Strategist) Strategy(ctx context.Context, incident model.Incident, resources []model.ResourceStatus) model.Strategy {
	if s.advisor == nil {
		metrics.StrategyTotal.WithLabelValues(model.StrategyFallback).Inc()
		return Fallback(incident, resources)
	}

	res := s.advisor.Advise(ctx, incident, resources)
	if !res.Ok() {
		s.logger.Warn().Err(res.Err).Str("incident_id", incident.ID).Msg("provider strategy unavailable, using fallback")
		metrics.StrategyTotal.WithLabelValues(model.StrategyFallback).Inc()
		return Fallback(incident, resources)
	}

	metrics.StrategyTotal.WithLabelValues(model.StrategyProvider).Inc()
	return FromProvider(res.Value)
}
