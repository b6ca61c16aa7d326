package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// ResourceLevel is the categorical label of a resource's fill ratio.
type ResourceLevel string

// Resource levels.
const (
	LevelAdequate ResourceLevel = "adequate"
	LevelLow      ResourceLevel = "low"
	LevelCritical ResourceLevel = "critical"
)

// Level thresholds are inclusive of the lower category.
const (
	CriticalRatio = 0.2
	LowRatio      = 0.4
)

// LevelFor classifies current/capacity. It is total: a zero capacity is critical.
func LevelFor(current, capacity float64) ResourceLevel {
	if capacity == 0 {
		return LevelCritical
	}
	ratio := current / capacity
	switch {
	case ratio <= CriticalRatio:
		return LevelCritical
	case ratio <= LowRatio:
		return LevelLow
	default:
		return LevelAdequate
	}
}

// ResourceStatus is one line of the hospital resource snapshot. The status
// label is always derived from the numeric level and cannot be set directly.
type ResourceStatus struct {
	ResourceType   string
	CurrentLevel   float64
	Capacity       float64
	HoursRemaining *float64
}

// NewResourceStatus validates levels and builds a resource line.
func NewResourceStatus(resourceType string, current, capacity float64, hoursRemaining *float64) (ResourceStatus, error) {
	if current < 0 || capacity < 0 {
		return ResourceStatus{}, fmt.Errorf("resource %s: levels must be non-negative (current=%v capacity=%v)",
			resourceType, current, capacity)
	}
	return ResourceStatus{
		ResourceType:   resourceType,
		CurrentLevel:   current,
		Capacity:       capacity,
		HoursRemaining: hoursRemaining,
	}, nil
}

// Status returns the derived level label.
func (r ResourceStatus) Status() ResourceLevel {
	return LevelFor(r.CurrentLevel, r.Capacity)
}

// Ratio returns current/capacity, or 0 when capacity is zero.
func (r ResourceStatus) Ratio() float64 {
	if r.Capacity == 0 {
		return 0
	}
	return r.CurrentLevel / r.Capacity
}

type resourceStatusJSON struct {
	ResourceType   string        `json:"resource_type"`
	CurrentLevel   float64       `json:"current_level"`
	Capacity       float64       `json:"capacity"`
	Status         ResourceLevel `json:"status"`
	HoursRemaining *float64      `json:"hours_remaining,omitempty"`
}

func (r ResourceStatus) MarshalJSON() ([]byte, error) {
	return json.Marshal(resourceStatusJSON{
		ResourceType:   r.ResourceType,
		CurrentLevel:   r.CurrentLevel,
		Capacity:       r.Capacity,
		Status:         r.Status(),
		HoursRemaining: r.HoursRemaining,
	})
}

// UnmarshalJSON ignores any incoming status label; it is recomputed on read.
func (r *ResourceStatus) UnmarshalJSON(data []byte) error {
	var raw resourceStatusJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	rs, err := NewResourceStatus(raw.ResourceType, raw.CurrentLevel, raw.Capacity, raw.HoursRemaining)
	if err != nil {
		return err
	}
	*r = rs
	return nil
}

// Request statuses.
const (
	RequestPending   = "pending"
	RequestSent      = "sent"
	RequestFulfilled = "fulfilled"
	RequestCancelled = "cancelled"
)

var requestTransitions = map[string][]string{
	RequestPending: {RequestSent, RequestCancelled},
	RequestSent:    {RequestFulfilled},
}

type ResourceRequest struct {
	ID           string    `json:"id"`
	IncidentID   string    `json:"incident_id"`
	ResourceType string    `json:"resource_type"`
	Quantity     int       `json:"quantity"`
	Urgency      Severity  `json:"urgency"`
	VendorID     string    `json:"vendor_id"`
	VendorName   string    `json:"vendor_name"`
	ETAMinutes   int       `json:"estimated_arrival_minutes"`
	Status       string    `json:"status"`
	RequestedAt  time.Time `json:"requested_at"`
}

// Transition moves the request to the given status. Transitions are monotonic:
// pending→sent→fulfilled or pending→cancelled.
func (r *ResourceRequest) Transition(to string) error {
	for _, allowed := range requestTransitions[r.Status] {
		if allowed == to {
			r.Status = to
			return nil
		}
	}
	return fmt.Errorf("resource request %s: illegal transition %s -> %s", r.ID, r.Status, to)
}

// Hospital alert types.
const (
	AlertAwareness      = "awareness"
	AlertStandby        = "standby"
	AlertDivert         = "divert"
	AlertAcceptOverflow = "accept_overflow"
)

type HospitalAlert struct {
	ID               string    `json:"id"`
	HospitalID       string    `json:"hospital_id"`
	HospitalName     string    `json:"hospital_name"`
	AlertType        string    `json:"alert_type"`
	IncidentID       string    `json:"incident_id"`
	Message          string    `json:"message"`
	ExpectedPatients int       `json:"expected_patients"`
	SentAt           time.Time `json:"sent_at"`
	Acknowledged     bool      `json:"acknowledged"`
}
