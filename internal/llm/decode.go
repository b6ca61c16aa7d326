package llm

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("expected string or number, got %s", data)
	}
	*f = flexString(n.String())
	return nil
}

// flexFloat accepts a JSON number or a numeric string.
type flexFloat struct {
	Value float64
	Set   bool
}

func (f *flexFloat) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var v float64
	if err := json.Unmarshal(data, &v); err == nil {
		*f = flexFloat{Value: v, Set: true}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("expected number, got %s", data)
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		// Unparseable numeric text is treated as absent.
		return nil
	}
	*f = flexFloat{Value: v, Set: true}
	return nil
}

func (f flexFloat) Or(def float64) float64 {
	if !f.Set {
		return def
	}
	return f.Value
}

func (f flexFloat) IntOr(def int) int {
	if !f.Set {
		return def
	}
	return int(f.Value)
}

func severityOr(s string, def model.Severity) model.Severity {
	sev := model.Severity(strings.ToLower(strings.TrimSpace(s)))
	if sev.Valid() {
		return sev
	}
	return def
}

type wireStrategy struct {
	OverallAssessment  string    `json:"overall_assessment"`
	CapacityScore      flexFloat `json:"capacity_score"`
	ResourcePriorities []struct {
		Resource string `json:"resource"`
		Action   string `json:"action"`
		Urgency  string `json:"urgency"`
		Reason   string `json:"reason"`
	} `json:"resource_priorities"`
	HospitalCoordination []struct {
		Hospital       string    `json:"hospital"`
		Action         string    `json:"action"`
		PatientsToSend flexFloat `json:"patients_to_send"`
		Reason         string    `json:"reason"`
	} `json:"hospital_coordination"`
	VendorOrders []struct {
		VendorType string     `json:"vendor_type"`
		Quantity   flexString `json:"quantity"`
		Urgency    string     `json:"urgency"`
	} `json:"vendor_orders"`
	Staffing    []string `json:"staffing_recommendations"`
	Contingency []string `json:"contingency_plans"`
}

// DecodeStrategy validates a provider strategy once. Entries missing their
// key field are dropped; unknown urgencies become high.
func DecodeStrategy(raw json.RawMessage) (model.Strategy, error) {
	var w wireStrategy
	if err := json.Unmarshal(raw, &w); err != nil {
		return model.Strategy{}, fault.Wrap(fault.ErrProvider, "decode strategy", err)
	}

	s := model.Strategy{
		Assessment:           strings.TrimSpace(w.OverallAssessment),
		ResourcePriorities:   []model.ResourcePriority{},
		HospitalCoordination: []model.HospitalCoordination{},
		VendorOrders:         []model.VendorOrder{},
		Staffing:             nonEmpty(w.Staffing),
		Contingency:          nonEmpty(w.Contingency),
		Source:               model.StrategyProvider,
	}
	if w.CapacityScore.Set {
		score := w.CapacityScore.Value
		s.CapacityScore = &score
	}
	for _, p := range w.ResourcePriorities {
		if strings.TrimSpace(p.Resource) == "" {
			continue
		}
		s.ResourcePriorities = append(s.ResourcePriorities, model.ResourcePriority{
			Resource: p.Resource,
			Action:   p.Action,
			Urgency:  severityOr(p.Urgency, model.SeverityHigh),
			Reason:   p.Reason,
		})
	}
	for _, h := range w.HospitalCoordination {
		if strings.TrimSpace(h.Hospital) == "" {
			continue
		}
		s.HospitalCoordination = append(s.HospitalCoordination, model.HospitalCoordination{
			Hospital:       h.Hospital,
			Action:         h.Action,
			PatientsToSend: max(h.PatientsToSend.IntOr(0), 0),
			Reason:         h.Reason,
		})
	}
	for _, o := range w.VendorOrders {
		if strings.TrimSpace(o.VendorType) == "" {
			continue
		}
		s.VendorOrders = append(s.VendorOrders, model.VendorOrder{
			VendorType: o.VendorType,
			Quantity:   string(o.Quantity),
			Urgency:    severityOr(o.Urgency, model.SeverityHigh),
		})
	}
	return s, nil
}

// Analysis is the provider's classification of one incident candidate.
type Analysis struct {
	Type              model.IncidentType
	Severity          model.Severity
	LocationExtracted string
	DistanceKm        float64
	Casualties        model.CasualtyEstimate
	InjuryTypes       []string
	Departments       []string
	ETAMinutes        int
	Notes             string
}

type wireAnalysis struct {
	IncidentType        string    `json:"incident_type"`
	Severity            string    `json:"severity"`
	LocationExtracted   string    `json:"location_extracted"`
	EstimatedDistanceKm flexFloat `json:"estimated_distance_km"`
	CasualtyEstimate    struct {
		Min        flexFloat `json:"min"`
		Max        flexFloat `json:"max"`
		Likely     flexFloat `json:"likely"`
		Confidence flexFloat `json:"confidence"`
	} `json:"casualty_estimate"`
	InjuryTypes       []string  `json:"injury_types"`
	DepartmentsNeeded []string  `json:"departments_needed"`
	ETAMinutes        flexFloat `json:"eta_minutes"`
	AnalysisNotes     string    `json:"analysis_notes"`
}

// DecodeAnalysis validates a candidate classification. Absent fields take
// conservative defaults and the casualty estimate is reordered so that
// min <= likely <= max always holds. An unknown severity is a validation error.
func DecodeAnalysis(raw json.RawMessage) (Analysis, error) {
	var w wireAnalysis
	if err := json.Unmarshal(raw, &w); err != nil {
		return Analysis{}, fault.Wrap(fault.ErrProvider, "decode analysis", err)
	}
	if sev := strings.TrimSpace(w.Severity); sev != "" && !model.Severity(strings.ToLower(sev)).Valid() {
		return Analysis{}, fault.Wrap(fault.ErrValidation, "decode analysis", fmt.Errorf("unknown severity %q", sev))
	}

	a := Analysis{
		Type:              model.ParseIncidentType(strings.ToLower(strings.TrimSpace(w.IncidentType))),
		Severity:          severityOr(w.Severity, model.SeverityMedium),
		LocationExtracted: strings.TrimSpace(w.LocationExtracted),
		DistanceKm:        max(w.EstimatedDistanceKm.Or(10), 0),
		Casualties: normalizeCasualties(
			w.CasualtyEstimate.Min.IntOr(1),
			w.CasualtyEstimate.Likely.IntOr(5),
			w.CasualtyEstimate.Max.IntOr(10),
			w.CasualtyEstimate.Confidence.Or(0.5),
		),
		InjuryTypes: nonEmpty(w.InjuryTypes),
		Departments: nonEmpty(w.DepartmentsNeeded),
		ETAMinutes:  max(w.ETAMinutes.IntOr(30), 0),
		Notes:       w.AnalysisNotes,
	}
	if a.LocationExtracted == "" {
		a.LocationExtracted = "Unknown location"
	}
	if len(a.InjuryTypes) == 0 {
		a.InjuryTypes = []string{"Unknown"}
	}
	if len(a.Departments) == 0 {
		a.Departments = []string{"Emergency"}
	}
	return a, nil
}

// QueryIncident is one incident the provider extracted from a free-text query.
type QueryIncident struct {
	Title       string
	Description string
	Type        model.IncidentType
	Severity    model.Severity
	Location    string
	DistanceKm  float64
	Casualties  int
	InjuryTypes []string
	ETAMinutes  int
	Confidence  float64
}

type wireQueryResult struct {
	Incidents []struct {
		Title               string    `json:"title"`
		Description         string    `json:"description"`
		IncidentType        string    `json:"incident_type"`
		Severity            string    `json:"severity"`
		Location            string    `json:"location"`
		DistanceKm          flexFloat `json:"distance_km"`
		EstimatedCasualties flexFloat `json:"estimated_casualties"`
		InjuryTypes         []string  `json:"injury_types"`
		ETAMinutes          flexFloat `json:"eta_minutes"`
		Confidence          flexFloat `json:"confidence"`
	} `json:"incidents"`
	Analysis string `json:"analysis"`
}

// DecodeIncidents validates the provider's answer to a free-text query.
func DecodeIncidents(raw json.RawMessage) ([]QueryIncident, string, error) {
	var w wireQueryResult
	if err := json.Unmarshal(raw, &w); err != nil {
		return nil, "", fault.Wrap(fault.ErrProvider, "decode incidents", err)
	}

	out := make([]QueryIncident, 0, len(w.Incidents))
	for _, inc := range w.Incidents {
		title := strings.TrimSpace(inc.Title)
		if title == "" {
			title = "Unknown"
		}
		location := strings.TrimSpace(inc.Location)
		if location == "" {
			location = "Unknown"
		}
		out = append(out, QueryIncident{
			Title:       title,
			Description: inc.Description,
			Type:        model.ParseIncidentType(strings.ToLower(strings.TrimSpace(inc.IncidentType))),
			Severity:    severityOr(inc.Severity, model.SeverityMedium),
			Location:    location,
			DistanceKm:  max(inc.DistanceKm.Or(10), 0),
			Casualties:  max(inc.EstimatedCasualties.IntOr(0), 0),
			InjuryTypes: nonEmpty(inc.InjuryTypes),
			ETAMinutes:  max(inc.ETAMinutes.IntOr(30), 0),
			Confidence:  clampUnit(inc.Confidence.Or(0.5)),
		})
	}
	return out, w.Analysis, nil
}

func normalizeCasualties(lo, likely, hi int, confidence float64) model.CasualtyEstimate {
	lo, likely, hi = max(lo, 0), max(likely, 0), max(hi, 0)
	if lo > hi {
		lo, hi = hi, lo
	}
	likely = min(max(likely, lo), hi)
	return model.CasualtyEstimate{Min: lo, Likely: likely, Max: hi, Confidence: clampUnit(confidence)}
}

func clampUnit(v float64) float64 {
	return min(max(v, 0), 1)
}

func nonEmpty(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
