// Package compiler turns a resource strategy into concrete vendor requests,
// hospital alerts and human-readable recommendations.
//
// Compile is deterministic apart from generated identities and timestamps:
// the same incident, strategy and registry always produce the same requests
// and alerts. The approval gate depends on this to release exactly what was
// shown to the war room.
package compiler

import (
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/platform"
	"github.com/edvin/warroom/internal/registry"
)

// DefaultTopN is how many of the nearest hospitals receive an awareness alert.
const DefaultTopN = 3

type Options struct {
	// TopN nearest hospitals alerted for critical and high incidents. Zero
	// uses DefaultTopN; negative disables the awareness fallback.
	TopN int
	Now  func() time.Time
}

// Plan is the compiled output for one incident.
type Plan struct {
	Requests        []model.ResourceRequest
	Alerts          []model.HospitalAlert
	Recommendations []string
	// Unmatched lists vendor categories with no registered vendor.
	Unmatched []string
	// UnmatchedHospitals lists coordination targets not in the registry.
	UnmatchedHospitals []string
}

// Compile builds the plan for incident under strategy.
func Compile(incident model.Incident, strategy model.Strategy, reg *registry.Registry, opts Options) Plan {
	now := time.Now
	if opts.Now != nil {
		now = opts.Now
	}
	topN := opts.TopN
	if topN == 0 {
		topN = DefaultTopN
	}
	at := now().UTC()

	plan := Plan{
		Requests:           []model.ResourceRequest{},
		Alerts:             []model.HospitalAlert{},
		Unmatched:          []string{},
		UnmatchedHospitals: []string{},
	}

	for _, order := range strategy.VendorOrders {
		category := strings.ToLower(strings.TrimSpace(order.VendorType))
		vendor, ok := reg.VendorFor(category)
		if !ok {
			plan.Unmatched = append(plan.Unmatched, category)
			continue
		}
		urgency := order.Urgency
		if !urgency.Valid() {
			urgency = model.SeverityHigh
		}
		plan.Requests = append(plan.Requests, model.ResourceRequest{
			ID:           platform.NewID(),
			IncidentID:   incident.ID,
			ResourceType: category,
			Quantity:     ParseQuantity(order.Quantity),
			Urgency:      urgency,
			VendorID:     vendor.ID,
			VendorName:   vendor.Name,
			ETAMinutes:   vendor.ResponseTimeMinutes,
			Status:       model.RequestPending,
			RequestedAt:  at,
		})
	}

	alerted := make(map[string]bool)
	for _, coord := range strategy.HospitalCoordination {
		h, ok := reg.HospitalByName(coord.Hospital)
		if !ok {
			plan.UnmatchedHospitals = append(plan.UnmatchedHospitals, coord.Hospital)
			continue
		}
		if alerted[h.ID] {
			continue
		}
		alerted[h.ID] = true

		reason := strings.TrimSpace(coord.Reason)
		if reason == "" {
			reason = "Requesting coordination."
		}
		plan.Alerts = append(plan.Alerts, model.HospitalAlert{
			ID:               platform.NewID(),
			HospitalID:       h.ID,
			HospitalName:     h.Name,
			AlertType:        NormalizeAction(coord.Action),
			IncidentID:       incident.ID,
			Message:          fmt.Sprintf("%s incident. %s", strings.ToUpper(string(incident.Type)), reason),
			ExpectedPatients: max(coord.PatientsToSend, 0),
			SentAt:           at,
		})
	}

	if incident.Severity.Escalating() && topN > 0 {
		for _, h := range reg.NearestHospitals(topN) {
			if alerted[h.ID] {
				continue
			}
			alerted[h.ID] = true
			plan.Alerts = append(plan.Alerts, model.HospitalAlert{
				ID:           platform.NewID(),
				HospitalID:   h.ID,
				HospitalName: h.Name,
				AlertType:    model.AlertAwareness,
				IncidentID:   incident.ID,
				Message: fmt.Sprintf("ALERT: %s %s incident %gkm away. Est. %d casualties.",
					strings.ToUpper(string(incident.Severity)), incident.Type,
					incident.Location.DistanceKm, incident.Casualties.Likely),
				ExpectedPatients: incident.Casualties.Likely / 3,
				SentAt:           at,
			})
		}
	}

	plan.Recommendations = Recommendations(strategy)
	return plan
}

// Recommendations renders the assessment, staffing and contingency lines.
func Recommendations(s model.Strategy) []string {
	recs := make([]string, 0, 1+len(s.Staffing)+len(s.Contingency))
	if a := strings.TrimSpace(s.Assessment); a != "" {
		recs = append(recs, "📋 "+a)
	}
	for _, r := range s.Staffing {
		recs = append(recs, "👥 "+r)
	}
	for _, r := range s.Contingency {
		recs = append(recs, "🔄 "+r)
	}
	return recs
}

// NormalizeAction maps coordination verbs onto alert types. Unknown verbs
// become awareness alerts.
func NormalizeAction(action string) string {
	switch strings.ToLower(strings.TrimSpace(action)) {
	case "request_beds", model.AlertAcceptOverflow:
		return model.AlertAcceptOverflow
	case "divert_to", model.AlertDivert:
		return model.AlertDivert
	case model.AlertStandby:
		return model.AlertStandby
	default:
		return model.AlertAwareness
	}
}

// ParseQuantity reads the first integer in a free-text quantity such as
// "20 cylinders". Anything without a positive integer is 1.
func ParseQuantity(s string) int {
	start := strings.IndexFunc(s, unicode.IsDigit)
	if start < 0 {
		return 1
	}
	end := start
	for end < len(s) && (unicode.IsDigit(rune(s[end])) || s[end] == ',') {
		end++
	}
	n, err := strconv.Atoi(strings.ReplaceAll(s[start:end], ",", ""))
	if err != nil || n <= 0 {
		return 1
	}
	return n
}
