package llm

import (
	"fmt"
	"strings"

	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/registry"
)

// Site describes the hospital the scanner works for.
type Site struct {
	Name     string
	Lat      float64
	Lng      float64
	RadiusKm float64
}

const queryScanPrompt = `You are an Emergency Intelligence Scanner for a hospital system.
Analyze the situation you are given and determine, for every potential emergency:
incident type, severity, estimated casualties, expected injury types and ETA for patient arrivals.

Respond in JSON format only:
{
  "incidents": [
    {
      "title": "brief title",
      "description": "what happened",
      "incident_type": "fire|road_accident|building_collapse|chemical_spill|gas_leak|stampede|terror_attack|train_accident|flood|epidemic_outbreak|unknown",
      "severity": "critical|high|medium|low",
      "location": "location name",
      "distance_km": number,
      "estimated_casualties": number,
      "injury_types": ["type1", "type2"],
      "eta_minutes": number,
      "confidence": 0.0-1.0
    }
  ],
  "analysis": "brief summary"
}`

// QueryScanPrompt is the system prompt for classifying a free-text query.
func QueryScanPrompt() string {
	return queryScanPrompt
}

// CandidateAnalysisPrompt is the system prompt for classifying one search result.
func CandidateAnalysisPrompt(site Site) string {
	return fmt.Sprintf(`You are an Emergency Intelligence Analyst for a hospital system.
Extract the information needed for emergency preparedness from incident reports.

Hospital Location: %s (%.4f, %.4f)
Scan Radius: %.0f km

Be precise and err on the side of caution for public safety.
If information is unclear, state your assumptions in analysis_notes.

Respond with this exact JSON format and nothing else:
{
  "incident_type": "fire|road_accident|building_collapse|chemical_spill|gas_leak|stampede|terror_attack|train_accident|flood|epidemic_outbreak|unknown",
  "severity": "critical|high|medium|low",
  "location_extracted": "specific location or area name",
  "estimated_distance_km": <number>,
  "casualty_estimate": {"min": <number>, "max": <number>, "likely": <number>, "confidence": <0-1>},
  "injury_types": ["list", "of", "likely", "injuries"],
  "departments_needed": ["list", "of", "departments"],
  "eta_minutes": <number>,
  "analysis_notes": "brief explanation of your assessment"
}`, site.Name, site.Lat, site.Lng, site.RadiusKm)
}

// Candidate is the text of one search result handed to the provider.
type Candidate struct {
	Title     string
	Content   string
	URL       string
	Location  string
	Published string
}

// CandidateText formats a search result for classification.
func CandidateText(c Candidate) string {
	content := c.Content
	if len(content) > 2000 {
		content = content[:2000]
	}
	return fmt.Sprintf("Analyze this incident:\n\nTitle: %s\nDescription: %s\nSource: %s\nLocation mentioned: %s\nPublished: %s",
		orUnknown(c.Title), content, orUnknown(c.URL), orUnknown(c.Location), orUnknown(c.Published))
}

const strategySystemPrompt = `You are a Hospital Resource Strategist AI.
Analyze incoming emergency incidents and recommend resource allocation, prioritizing
patient safety, resource efficiency, system-wide coordination and surge capacity.

Respond with this JSON format and nothing else:
{
  "overall_assessment": "brief situation assessment",
  "capacity_score": <0-1 score of current capacity to handle>,
  "resource_priorities": [{"resource": "name", "action": "order|conserve|redistribute", "urgency": "critical|high|medium|low", "reason": "why"}],
  "hospital_coordination": [{"hospital": "name", "action": "alert|request_beds|divert_to", "patients_to_send": <number>, "reason": "why"}],
  "vendor_orders": [{"vendor_type": "oxygen|blood|medications|equipment|ambulance", "quantity": "amount", "urgency": "critical|high|medium"}],
  "staffing_recommendations": ["staffing actions"],
  "contingency_plans": ["backup plans if the situation worsens"]
}`

// StrategySystemPrompt is the system prompt for resource strategy requests.
func StrategySystemPrompt() string {
	return strategySystemPrompt
}

// StrategyText describes the incident, current resources and hospital network.
func StrategyText(incident model.Incident, resources []model.ResourceStatus, hospitals []registry.Hospital) string {
	var b strings.Builder
	b.WriteString("Analyze this emergency situation:\n\nINCIDENT:\n")
	fmt.Fprintf(&b, "- Type: %s\n- Severity: %s\n- Location: %s (%.1f km away)\n",
		incident.Type, incident.Severity, incident.Location.Address, incident.Location.DistanceKm)
	fmt.Fprintf(&b, "- Estimated Casualties: %d (range: %d-%d)\n- Expected Injuries: %s\n- ETA: %d minutes\n",
		incident.Casualties.Likely, incident.Casualties.Min, incident.Casualties.Max,
		strings.Join(incident.InjuryTypes, ", "), incident.ETAMinutes)

	b.WriteString("\nCURRENT RESOURCES:\n")
	for _, r := range resources {
		fmt.Fprintf(&b, "- %s: %g/%g (%s)", r.ResourceType, r.CurrentLevel, r.Capacity, r.Status())
		if r.HoursRemaining != nil {
			fmt.Fprintf(&b, " - %.1fh remaining", *r.HoursRemaining)
		}
		b.WriteString("\n")
	}

	b.WriteString("\nNEARBY HOSPITALS:\n")
	for _, h := range hospitals {
		fmt.Fprintf(&b, "- %s: %d beds available, %.1fkm away, specialties: %s\n",
			h.Name, h.AvailableBeds, h.DistanceKm, strings.Join(h.Specialties, ", "))
	}
	return b.String()
}

func orUnknown(s string) string {
	if strings.TrimSpace(s) == "" {
		return "Unknown"
	}
	return s
}
