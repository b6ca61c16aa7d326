package model

// Strategy sources.
const (
	StrategyProvider = "provider"
	StrategyFallback = "fallback"
)

type ResourcePriority struct {
	Resource string   `json:"resource"`
	Action   string   `json:"action"`
	Urgency  Severity `json:"urgency"`
	Reason   string   `json:"reason"`
}

type HospitalCoordination struct {
	Hospital       string `json:"hospital"`
	Action         string `json:"action"`
	PatientsToSend int    `json:"patients_to_send"`
	Reason         string `json:"reason"`
}

type VendorOrder struct {
	VendorType string   `json:"vendor_type"`
	Quantity   string   `json:"quantity"`
	Urgency    Severity `json:"urgency"`
}

// Strategy is the resource plan for one incident. Provider output is decoded
// into this shape once; downstream code only sees typed optional fields.
type Strategy struct {
	Assessment           string                 `json:"overall_assessment"`
	CapacityScore        *float64               `json:"capacity_score,omitempty"`
	ResourcePriorities   []ResourcePriority     `json:"resource_priorities"`
	HospitalCoordination []HospitalCoordination `json:"hospital_coordination"`
	VendorOrders         []VendorOrder          `json:"vendor_orders"`
	Staffing             []string               `json:"staffing_recommendations"`
	Contingency          []string               `json:"contingency_plans"`
	Source               string                 `json:"source"`
}

// Score returns the capacity score or def when the strategy carries none.
func (s Strategy) Score(def float64) float64 {
	if s.CapacityScore == nil {
		return def
	}
	return *s.CapacityScore
}
