package model

import (
	"fmt"
	"time"
)

// Severity is the triage class of an incident.
type Severity string

// Incident severities.
const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
)

// Valid reports whether s is one of the known severities.
func (s Severity) Valid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow:
		return true
	}
	return false
}

// Rank orders severities for sorting: critical sorts first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityHigh:
		return 1
	case SeverityMedium:
		return 2
	case SeverityLow:
		return 3
	}
	return 4
}

// Escalating reports whether the severity requires resource orchestration.
func (s Severity) Escalating() bool {
	return s == SeverityCritical || s == SeverityHigh
}

// IncidentType classifies what happened.
type IncidentType string

// Incident types.
const (
	TypeFire             IncidentType = "fire"
	TypeRoadAccident     IncidentType = "road_accident"
	TypeBuildingCollapse IncidentType = "building_collapse"
	TypeChemicalSpill    IncidentType = "chemical_spill"
	TypeGasLeak          IncidentType = "gas_leak"
	TypeStampede         IncidentType = "stampede"
	TypeTerrorAttack     IncidentType = "terror_attack"
	TypeTrainAccident    IncidentType = "train_accident"
	TypeFlood            IncidentType = "flood"
	TypeEpidemicOutbreak IncidentType = "epidemic_outbreak"
	TypeUnknown          IncidentType = "unknown"
)

var incidentTypes = map[IncidentType]bool{
	TypeFire: true, TypeRoadAccident: true, TypeBuildingCollapse: true,
	TypeChemicalSpill: true, TypeGasLeak: true, TypeStampede: true,
	TypeTerrorAttack: true, TypeTrainAccident: true, TypeFlood: true,
	TypeEpidemicOutbreak: true, TypeUnknown: true,
}

// ParseIncidentType maps free text to a known type, defaulting to unknown.
func ParseIncidentType(s string) IncidentType {
	t := IncidentType(s)
	if incidentTypes[t] {
		return t
	}
	return TypeUnknown
}

type Location struct {
	Lat        float64 `json:"lat"`
	Lng        float64 `json:"lng"`
	Address    string  `json:"address"`
	DistanceKm float64 `json:"distance_km"`
}

type CasualtyEstimate struct {
	Min        int     `json:"min"`
	Max        int     `json:"max"`
	Likely     int     `json:"likely"`
	Confidence float64 `json:"confidence"`
}

// Incident is a detected emergency. It is treated as immutable once created;
// ID is generated per detection and is never used for deduplication.
type Incident struct {
	ID                     string           `json:"id"`
	Title                  string           `json:"title"`
	Description            string           `json:"description"`
	Type                   IncidentType     `json:"type"`
	Severity               Severity         `json:"severity"`
	Location               Location         `json:"location"`
	Casualties             CasualtyEstimate `json:"estimated_casualties"`
	InjuryTypes            []string         `json:"injury_types"`
	RecommendedDepartments []string         `json:"recommended_departments"`
	ETAMinutes             int              `json:"eta_minutes"`
	Source                 string           `json:"source"`
	SourceURL              string           `json:"source_url,omitempty"`
	DetectedAt             time.Time        `json:"detected_at"`
	ConfidenceScore        float64          `json:"confidence_score"`
	Analysis               string           `json:"ai_analysis,omitempty"`
}

// Validate checks the structural invariants of an incident.
func (i Incident) Validate() error {
	if i.ID == "" {
		return fmt.Errorf("incident id is required")
	}
	if !i.Severity.Valid() {
		return fmt.Errorf("incident %s: invalid severity %q", i.ID, i.Severity)
	}
	c := i.Casualties
	if c.Min < 0 || c.Min > c.Likely || c.Likely > c.Max {
		return fmt.Errorf("incident %s: casualty estimate must satisfy 0 <= min <= likely <= max (got %d/%d/%d)",
			i.ID, c.Min, c.Likely, c.Max)
	}
	if c.Confidence < 0 || c.Confidence > 1 {
		return fmt.Errorf("incident %s: casualty confidence %v out of [0,1]", i.ID, c.Confidence)
	}
	if i.ConfidenceScore < 0 || i.ConfidenceScore > 1 {
		return fmt.Errorf("incident %s: confidence score %v out of [0,1]", i.ID, i.ConfidenceScore)
	}
	if i.Location.DistanceKm < 0 {
		return fmt.Errorf("incident %s: negative distance", i.ID)
	}
	return nil
}

// TotalLikelyCasualties sums the likely casualty estimate across incidents.
func TotalLikelyCasualties(incidents []Incident) int {
	total := 0
	for _, inc := range incidents {
		total += inc.Casualties.Likely
	}
	return total
}
