package source

import (
	"time"

	"github.com/edvin/warroom/internal/model"
	"github.com/edvin/warroom/internal/platform"
)

// Demo returns a fixed set of simulated incidents around Delhi. It stands in
// for web search when no search key is configured.
type Demo struct {
	now func() time.Time
}

func NewDemo() *Demo {
	return &Demo{now: time.Now}
}

// Incidents returns fresh copies of the demo incidents with new IDs.
func (d *Demo) Incidents() []model.Incident {
	now := d.now().UTC()
	return []model.Incident{
		{
			ID:          platform.NewID(),
			Title:       "Major Fire at Karol Bagh Market",
			Description: "A massive fire broke out in Karol Bagh's Gaffar Market. Multiple shops affected. Fire brigade on scene. Reports of people trapped.",
			Type:        model.TypeFire,
			Severity:    model.SeverityCritical,
			Location: model.Location{
				Lat: 28.6519, Lng: 77.1903,
				Address:    "Gaffar Market, Karol Bagh",
				DistanceKm: 4.5,
			},
			Casualties:             model.CasualtyEstimate{Min: 5, Likely: 12, Max: 25, Confidence: 0.75},
			InjuryTypes:            []string{"Burns", "Smoke Inhalation", "Trauma"},
			RecommendedDepartments: []string{"Burn Unit", "Emergency", "ICU", "Pulmonology"},
			ETAMinutes:             15,
			Source:                 TagNews,
			SourceURL:              "https://example.com/news/fire",
			DetectedAt:             now,
			ConfidenceScore:        0.85,
			Analysis:               "High severity incident. Active fire with reports of trapped individuals. Recommend full burn unit preparation.",
		},
		{
			ID:          platform.NewID(),
			Title:       "Multi-vehicle Collision on Ring Road",
			Description: "Chain collision involving 6 vehicles near AIIMS flyover. Traffic diverted. Ambulances dispatched.",
			Type:        model.TypeRoadAccident,
			Severity:    model.SeverityHigh,
			Location: model.Location{
				Lat: 28.5679, Lng: 77.2069,
				Address:    "Ring Road near AIIMS Flyover",
				DistanceKm: 5.2,
			},
			Casualties:             model.CasualtyEstimate{Min: 4, Likely: 8, Max: 15, Confidence: 0.8},
			InjuryTypes:            []string{"Fractures", "Head Trauma", "Lacerations", "Internal Bleeding"},
			RecommendedDepartments: []string{"Trauma", "Orthopedics", "Neurology", "Surgery"},
			ETAMinutes:             20,
			Source:                 TagNews,
			SourceURL:              "https://example.com/news/accident",
			DetectedAt:             now,
			ConfidenceScore:        0.8,
			Analysis:               "Multi-vehicle accident with likely serious injuries. Prepare trauma bay and surgical teams.",
		},
		{
			ID:          platform.NewID(),
			Title:       "Gas Leak Reported in Dwarka Sector 12",
			Description: "Residents report strong gas smell. Area being evacuated. Fire services and GAIL team on site.",
			Type:        model.TypeGasLeak,
			Severity:    model.SeverityHigh,
			Location: model.Location{
				Lat: 28.5921, Lng: 77.0460,
				Address:    "Sector 12, Dwarka",
				DistanceKm: 12.3,
			},
			Casualties:             model.CasualtyEstimate{Min: 10, Likely: 30, Max: 100, Confidence: 0.6},
			InjuryTypes:            []string{"Respiratory Distress", "Asphyxiation", "Nausea"},
			RecommendedDepartments: []string{"Pulmonology", "Emergency", "ICU"},
			ETAMinutes:             35,
			Source:                 TagEmergency,
			SourceURL:              "https://example.com/news/gas",
			DetectedAt:             now,
			ConfidenceScore:        0.7,
			Analysis:               "Potential mass casualty event. Recommend preparing for respiratory emergencies and having antidotes ready.",
		},
	}
}
