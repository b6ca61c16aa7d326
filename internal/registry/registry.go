// Package registry holds the fixed hospital and vendor networks and the
// per-type incident profiles used when classifying and compiling actions.
package registry

import (
	_ "embed"
	"fmt"
	"os"
	"slices"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/edvin/warroom/internal/model"
)

//go:embed registry.yaml
var defaultRegistry []byte

type Hospital struct {
	ID            string   `yaml:"id" json:"id"`
	Name          string   `yaml:"name" json:"name"`
	Lat           float64  `yaml:"lat" json:"lat"`
	Lng           float64  `yaml:"lng" json:"lng"`
	DistanceKm    float64  `yaml:"distance_km" json:"distance_km"`
	Beds          int      `yaml:"beds" json:"beds"`
	ICU           int      `yaml:"icu" json:"icu"`
	AvailableBeds int      `yaml:"available_beds" json:"available_beds"`
	Specialties   []string `yaml:"specialties" json:"specialties"`
}

type Vendor struct {
	ID                  string  `yaml:"id" json:"id"`
	Name                string  `yaml:"name" json:"name"`
	ResourceType        string  `yaml:"resource_type" json:"resource_type"`
	ResponseTimeMinutes int     `yaml:"response_time_minutes" json:"response_time_minutes"`
	ReliabilityScore    float64 `yaml:"reliability_score" json:"reliability_score"`
	Contact             string  `yaml:"contact" json:"contact"`
	Capacity            string  `yaml:"capacity" json:"capacity"`
}

// Profile is the baseline expectation for one incident type.
type Profile struct {
	Casualties         model.CasualtyEstimate `yaml:"casualties"`
	InjuryTypes        []string               `yaml:"injury_types"`
	Departments        []string               `yaml:"departments"`
	SeverityMultiplier float64                `yaml:"severity_multiplier"`
}

type Registry struct {
	Hospitals     []Hospital                     `yaml:"hospitals"`
	Vendors       []Vendor                       `yaml:"vendors"`
	Profiles      map[model.IncidentType]Profile `yaml:"profiles"`
	LocationHints []string                       `yaml:"location_hints"`
}

// Default returns the built-in registry.
func Default() *Registry {
	reg, err := Parse(defaultRegistry)
	if err != nil {
		panic("registry: embedded registry.yaml is invalid: " + err.Error())
	}
	return reg
}

// Load reads a registry file. An empty path returns the built-in registry.
func Load(path string) (*Registry, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read registry %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes and validates registry YAML.
func Parse(data []byte) (*Registry, error) {
	var reg Registry
	if err := yaml.Unmarshal(data, &reg); err != nil {
		return nil, fmt.Errorf("parse registry: %w", err)
	}
	if err := reg.validate(); err != nil {
		return nil, err
	}
	return &reg, nil
}

func (r *Registry) validate() error {
	seen := make(map[string]bool, len(r.Hospitals))
	for _, h := range r.Hospitals {
		if h.ID == "" || h.Name == "" {
			return fmt.Errorf("registry: hospital entries need id and name")
		}
		if seen[h.ID] {
			return fmt.Errorf("registry: duplicate hospital id %q", h.ID)
		}
		if h.DistanceKm < 0 {
			return fmt.Errorf("registry: hospital %s has negative distance", h.ID)
		}
		seen[h.ID] = true
	}
	for _, v := range r.Vendors {
		if v.ID == "" || v.ResourceType == "" {
			return fmt.Errorf("registry: vendor entries need id and resource_type")
		}
	}
	return nil
}

// NearestHospitals returns up to n hospitals ordered by distance. Ties keep
// registry order.
func (r *Registry) NearestHospitals(n int) []Hospital {
	sorted := slices.Clone(r.Hospitals)
	slices.SortStableFunc(sorted, func(a, b Hospital) int {
		switch {
		case a.DistanceKm < b.DistanceKm:
			return -1
		case a.DistanceKm > b.DistanceKm:
			return 1
		}
		return 0
	})
	if n < len(sorted) {
		sorted = sorted[:max(n, 0)]
	}
	return sorted
}

// VendorFor returns the first vendor whose resource type contains category,
// compared case-insensitively.
func (r *Registry) VendorFor(category string) (Vendor, bool) {
	category = strings.ToLower(strings.TrimSpace(category))
	if category == "" {
		return Vendor{}, false
	}
	for _, v := range r.Vendors {
		if strings.Contains(strings.ToLower(v.ResourceType), category) {
			return v, true
		}
	}
	return Vendor{}, false
}

// HospitalByName returns the first hospital whose name contains name,
// compared case-insensitively.
func (r *Registry) HospitalByName(name string) (Hospital, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Hospital{}, false
	}
	for _, h := range r.Hospitals {
		if strings.Contains(strings.ToLower(h.Name), name) {
			return h, true
		}
	}
	return Hospital{}, false
}

// Profile returns the profile for t, falling back to the unknown profile.
func (r *Registry) Profile(t model.IncidentType) Profile {
	if p, ok := r.Profiles[t]; ok {
		return p
	}
	return r.Profiles[model.TypeUnknown]
}

// LocationHint returns the first known place name mentioned in text.
func (r *Registry) LocationHint(text string) string {
	lower := strings.ToLower(text)
	for _, loc := range r.LocationHints {
		if strings.Contains(lower, strings.ToLower(loc)) {
			return loc
		}
	}
	return ""
}
