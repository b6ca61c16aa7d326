package llm

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/registry"
)

func TestDecodeStrategy(t *testing.T) {
	raw := json.RawMessage(`{
		"overall_assessment": "Mass casualty fire",
		"capacity_score": "0.45",
		"resource_priorities": [{"resource": "oxygen", "action": "order", "urgency": "critical", "reason": "burns"}],
		"hospital_coordination": [
			{"hospital": "AIIMS", "action": "request_beds", "patients_to_send": 4, "reason": "overflow"},
			{"hospital": "", "action": "alert"}
		],
		"vendor_orders": [
			{"vendor_type": "oxygen", "quantity": 20, "urgency": "urgent"},
			{"vendor_type": "blood", "quantity": "10 units", "urgency": "medium"}
		],
		"staffing_recommendations": ["Call burn team", " "]
	}`)

	s, err := DecodeStrategy(raw)
	require.NoError(t, err)

	require.NotNil(t, s.CapacityScore)
	assert.Equal(t, 0.45, *s.CapacityScore)
	assert.Equal(t, model.StrategyProvider, s.Source)
	assert.Len(t, s.HospitalCoordination, 1, "entries without a hospital are dropped")
	require.Len(t, s.VendorOrders, 2)
	assert.Equal(t, "20", s.VendorOrders[0].Quantity)
	assert.Equal(t, model.SeverityHigh, s.VendorOrders[0].Urgency, "unknown urgency becomes high")
	assert.Equal(t, model.SeverityMedium, s.VendorOrders[1].Urgency)
	assert.Equal(t, []string{"Call burn team"}, s.Staffing)
	assert.NotNil(t, s.Contingency)
}

func TestDecodeStrategy_MissingScore(t *testing.T) {
	s, err := DecodeStrategy(json.RawMessage(`{"overall_assessment": "ok"}`))
	require.NoError(t, err)
	assert.Nil(t, s.CapacityScore)
}

func TestDecodeStrategy_WrongShape(t *testing.T) {
	_, err := DecodeStrategy(json.RawMessage(`{"vendor_orders": "lots"}`))
	assert.ErrorIs(t, err, fault.ErrProvider)
}

func TestDecodeAnalysis_Defaults(t *testing.T) {
	a, err := DecodeAnalysis(json.RawMessage(`{"incident_type": "Fire"}`))
	require.NoError(t, err)

	assert.Equal(t, model.TypeFire, a.Type)
	assert.Equal(t, model.SeverityMedium, a.Severity)
	assert.Equal(t, 10.0, a.DistanceKm)
	assert.Equal(t, model.CasualtyEstimate{Min: 1, Likely: 5, Max: 10, Confidence: 0.5}, a.Casualties)
	assert.Equal(t, []string{"Unknown"}, a.InjuryTypes)
	assert.Equal(t, []string{"Emergency"}, a.Departments)
	assert.Equal(t, 30, a.ETAMinutes)
}

func TestDecodeAnalysis_ReordersCasualties(t *testing.T) {
	a, err := DecodeAnalysis(json.RawMessage(`{
		"severity": "critical",
		"estimated_distance_km": "4.5",
		"casualty_estimate": {"min": 20, "max": 5, "likely": 50, "confidence": 3}
	}`))
	require.NoError(t, err)

	assert.Equal(t, 4.5, a.DistanceKm)
	assert.Equal(t, model.CasualtyEstimate{Min: 5, Likely: 20, Max: 20, Confidence: 1}, a.Casualties)
}

func TestDecodeAnalysis_UnknownSeverityIsValidationError(t *testing.T) {
	_, err := DecodeAnalysis(json.RawMessage(`{"severity": "apocalyptic"}`))
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestDecodeIncidents(t *testing.T) {
	incidents, summary, err := DecodeIncidents(json.RawMessage(`{
		"incidents": [{"title": "Bus overturned", "incident_type": "road_accident", "severity": "high",
			"location": "ITO", "distance_km": 3, "estimated_casualties": 12, "confidence": 0.9}],
		"analysis": "one incident"
	}`))
	require.NoError(t, err)

	require.Len(t, incidents, 1)
	assert.Equal(t, "one incident", summary)
	assert.Equal(t, model.TypeRoadAccident, incidents[0].Type)
	assert.Equal(t, 12, incidents[0].Casualties)
	assert.Equal(t, 30, incidents[0].ETAMinutes)
}

type stubClassifier struct {
	result Result[json.RawMessage]
	system string
	text   string
}

func (s *stubClassifier) Classify(_ context.Context, system, text string) Result[json.RawMessage] {
	s.system, s.text = system, text
	return s.result
}

func TestStrategyAdvisor(t *testing.T) {
	reg := registry.Default()
	incident := model.Incident{
		ID: "inc-1", Type: model.TypeFire, Severity: model.SeverityCritical,
		Location:   model.Location{Address: "Karol Bagh", DistanceKm: 4.5},
		Casualties: model.CasualtyEstimate{Min: 5, Likely: 12, Max: 25},
	}

	stub := &stubClassifier{result: Ok(json.RawMessage(`{"capacity_score": 0.3}`))}
	res := NewStrategyAdvisor(stub, reg).Advise(context.Background(), incident, nil)

	require.True(t, res.Ok())
	assert.Equal(t, 0.3, *res.Value.CapacityScore)
	assert.Contains(t, stub.text, "Karol Bagh")
	assert.Contains(t, stub.text, "RML Hospital")

	stub.result = Err[json.RawMessage](fault.Wrap(fault.ErrProvider, "chat completion", errors.New("timeout")))
	res = NewStrategyAdvisor(stub, reg).Advise(context.Background(), incident, nil)
	assert.False(t, res.Ok())
	assert.ErrorIs(t, res.Err, fault.ErrProvider)
}
