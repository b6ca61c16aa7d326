package llm

import (
	"context"

	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/registry"
)

// StrategyAdvisor asks the provider for a resource strategy.
type StrategyAdvisor struct {
	classifier Classifier
	registry   *registry.Registry
}

func NewStrategyAdvisor(classifier Classifier, reg *registry.Registry) *StrategyAdvisor {
	return &StrategyAdvisor{classifier: classifier, registry: reg}
}

// Advise returns the decoded provider strategy or a provider error.
func (a *StrategyAdvisor) Advise(ctx context.Context, incident model.Incident, resources []model.ResourceStatus) Result[model.Strategy] {
	res := a.classifier.Classify(ctx, StrategySystemPrompt(), StrategyText(incident, resources, a.registry.Hospitals))
	if !res.Ok() {
		return Err[model.Strategy](res.Err)
	}
	strategy, err := DecodeStrategy(res.Value)
	if err != nil {
		return Err[model.Strategy](err)
	}
	return Ok(strategy)
}
