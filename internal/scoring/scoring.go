// Package scoring computes capacity scores and the deterministic fallback
// strategy used whenever the intelligence provider cannot produce one.
package scoring

import (
	"fmt"
	"math"

	"github.com/edvin/warroom/internal/model"
)

// Fallback strategy weights.
const (
	FallbackBaseline        = 0.7
	CriticalIncidentPenalty = 0.3
	HighIncidentPenalty     = 0.2
	CriticalResourcePenalty = 0.15
	LowResourcePenalty      = 0.08
	FallbackFloor           = 0.1
	FallbackCeiling         = 1.0

	// AlertThreshold is the aggregate score below which hospitals are alerted.
	AlertThreshold = 0.5
	// DefaultProviderScore is used when a provider strategy omits its score.
	DefaultProviderScore = 0.5
)

// Status classifies a resource level. It is total: capacity 0 is critical.
func Status(current, capacity float64) model.ResourceLevel {
	return model.LevelFor(current, capacity)
}

// CasualtyMultiplier is the load penalty for a total casualty estimate.
func CasualtyMultiplier(totalCasualties int) float64 {
	switch {
	case totalCasualties > 20:
		return 0.7
	case totalCasualties > 10:
		return 0.85
	default:
		return 1
	}
}

// Aggregate averages current/capacity over the resource set and then applies
// the casualty-load penalty once. An empty resource set scores 0.
func Aggregate(resources []model.ResourceStatus, incidents []model.Incident) float64 {
	if len(resources) == 0 {
		return 0
	}
	var sum float64
	for _, r := range resources {
		sum += r.Ratio()
	}
	avg := sum / float64(len(resources))
	return clamp(avg*CasualtyMultiplier(model.TotalLikelyCasualties(incidents)), 0, 1)
}

// ShouldAlert reports whether nearby hospitals must be notified.
func ShouldAlert(score float64, resources []model.ResourceStatus) bool {
	if score < AlertThreshold {
		return true
	}
	for _, r := range resources {
		if r.Status() == model.LevelCritical {
			return true
		}
	}
	return false
}

// FallbackScore is the provider-independent capacity score for one incident.
// Severity and resource adjustments come first, the casualty-load penalty is
// applied once afterwards, and the result is clamped to [0.1, 1].
func FallbackScore(incident model.Incident, resources []model.ResourceStatus) float64 {
	score := FallbackBaseline
	switch incident.Severity {
	case model.SeverityCritical:
		score -= CriticalIncidentPenalty
	case model.SeverityHigh:
		score -= HighIncidentPenalty
	}
	for _, r := range resources {
		switch r.Status() {
		case model.LevelCritical:
			score -= CriticalResourcePenalty
		case model.LevelLow:
			score -= LowResourcePenalty
		}
	}
	score *= CasualtyMultiplier(incident.Casualties.Likely)
	return clamp(score, FallbackFloor, FallbackCeiling)
}

// Fallback builds the deterministic strategy for an incident.
func Fallback(incident model.Incident, resources []model.ResourceStatus) model.Strategy {
	score := FallbackScore(incident, resources)
	return model.Strategy{
		Assessment:           fmt.Sprintf("Incoming %s %s incident", incident.Severity, incident.Type),
		CapacityScore:        &score,
		ResourcePriorities:   []model.ResourcePriority{},
		HospitalCoordination: []model.HospitalCoordination{},
		VendorOrders:         []model.VendorOrder{},
		Staffing:             []string{"Call in on-call staff", "Prepare surge protocols"},
		Contingency:          []string{"Activate mutual aid agreements", "Prepare for ambulance diversion"},
		Source:               model.StrategyFallback,
	}
}

// FromProvider normalizes a provider strategy: the score defaults to 0.5 when
// absent and is clamped to [0, 1].
func FromProvider(s model.Strategy) model.Strategy {
	score := clamp(s.Score(DefaultProviderScore), 0, 1)
	s.CapacityScore = &score
	s.Source = model.StrategyProvider
	return s
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return lo
	}
	return math.Max(lo, math.Min(hi, v))
}
