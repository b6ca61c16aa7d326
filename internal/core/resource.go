package core

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

// Resource types tracked by the hospital snapshot.
const (
	ResourceBeds        = "beds"
	ResourceICUBeds     = "icu_beds"
	ResourceOxygen      = "oxygen"
	ResourceVentilators = "ventilators"
	ResourceBloodUnits  = "blood_units"
	ResourceStaff       = "staff"
)

// oxygenHoursPerUnit converts an oxygen level into hours of supply when the
// stored row carries no explicit estimate.
const oxygenHoursPerUnit = 0.24

// ResourceService reads the hospital's latest resource snapshot.
type ResourceService struct {
	db     DB
	logger zerolog.Logger
}

// NewResourceService creates the service. A nil db always serves the
// default snapshot.
func NewResourceService(db DB, logger zerolog.Logger) *ResourceService {
	return &ResourceService{db: db, logger: logger.With().Str("component", "resources").Logger()}
}

// DefaultSnapshot is served when no stored snapshot is available.
func DefaultSnapshot() []model.ResourceStatus {
	hours := 65 * oxygenHoursPerUnit
	return []model.ResourceStatus{
		{ResourceType: ResourceBeds, CurrentLevel: 30, Capacity: 100},
		{ResourceType: ResourceICUBeds, CurrentLevel: 5, Capacity: 20},
		{ResourceType: ResourceOxygen, CurrentLevel: 65, Capacity: 100, HoursRemaining: &hours},
		{ResourceType: ResourceVentilators, CurrentLevel: 8, Capacity: 15},
		{ResourceType: ResourceBloodUnits, CurrentLevel: 80, Capacity: 200},
		{ResourceType: ResourceStaff, CurrentLevel: 45, Capacity: 80},
	}
}

// Snapshot returns the most recent resource levels. When the store is
// unreachable or empty the default snapshot is returned and the failure is
// logged; a stored row that violates the resource invariants is an error.
func (s *ResourceService) Snapshot(ctx context.Context) ([]model.ResourceStatus, error) {
	if s.db == nil {
		return DefaultSnapshot(), nil
	}

	var beds, bedsCap, icu, icuCap, oxygen, oxygenCap, vents, ventsCap, blood, bloodCap, staff, staffCap float64
	var oxygenHours *float64
	err := s.db.QueryRow(ctx,
		`SELECT beds, beds_capacity, icu_beds, icu_capacity, oxygen, oxygen_capacity, oxygen_hours,
		        ventilators, ventilators_capacity, blood_units, blood_capacity, staff_on_duty, staff_capacity
		 FROM resource_status ORDER BY recorded_at DESC LIMIT 1`,
	).Scan(&beds, &bedsCap, &icu, &icuCap, &oxygen, &oxygenCap, &oxygenHours,
		&vents, &ventsCap, &blood, &bloodCap, &staff, &staffCap)
	if err != nil {
		s.logger.Warn().Err(storeErr("read resource snapshot", err)).Msg("using default resource snapshot")
		return DefaultSnapshot(), nil
	}

	if oxygenHours == nil {
		h := oxygen * oxygenHoursPerUnit
		oxygenHours = &h
	}

	levels := []struct {
		kind          string
		cur, capacity float64
		hours         *float64
	}{
		{ResourceBeds, beds, bedsCap, nil},
		{ResourceICUBeds, icu, icuCap, nil},
		{ResourceOxygen, oxygen, oxygenCap, oxygenHours},
		{ResourceVentilators, vents, ventsCap, nil},
		{ResourceBloodUnits, blood, bloodCap, nil},
		{ResourceStaff, staff, staffCap, nil},
	}
	out := make([]model.ResourceStatus, 0, len(levels))
	var errs []error
	for _, l := range levels {
		rs, err := model.NewResourceStatus(l.kind, l.cur, l.capacity, l.hours)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		out = append(out, rs)
	}
	if len(errs) > 0 {
		return nil, fault.Wrap(fault.ErrValidation, "decode resource snapshot", errors.Join(errs...))
	}
	return out, nil
}

// Record stores a new snapshot. Every tracked resource type must be present
// exactly once with non-negative levels.
func (s *ResourceService) Record(ctx context.Context, snap []model.ResourceStatus) error {
	if s.db == nil {
		return fault.Wrap(fault.ErrStoreUnavailable, "record resource snapshot", errors.New("no database configured"))
	}

	byType := make(map[string]model.ResourceStatus, len(snap))
	var errs []error
	for _, r := range snap {
		if _, dup := byType[r.ResourceType]; dup {
			errs = append(errs, fmt.Errorf("resource %s listed twice", r.ResourceType))
			continue
		}
		if _, err := model.NewResourceStatus(r.ResourceType, r.CurrentLevel, r.Capacity, r.HoursRemaining); err != nil {
			errs = append(errs, err)
		}
		byType[r.ResourceType] = r
	}
	for _, kind := range []string{ResourceBeds, ResourceICUBeds, ResourceOxygen, ResourceVentilators, ResourceBloodUnits, ResourceStaff} {
		if _, ok := byType[kind]; !ok {
			errs = append(errs, fmt.Errorf("resource %s missing", kind))
		}
	}
	if len(errs) > 0 {
		return fault.Wrap(fault.ErrValidation, "record resource snapshot", errors.Join(errs...))
	}

	_, err := s.db.Exec(ctx,
		`INSERT INTO resource_status (beds, beds_capacity, icu_beds, icu_capacity, oxygen, oxygen_capacity, oxygen_hours,
		        ventilators, ventilators_capacity, blood_units, blood_capacity, staff_on_duty, staff_capacity)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		byType[ResourceBeds].CurrentLevel, byType[ResourceBeds].Capacity,
		byType[ResourceICUBeds].CurrentLevel, byType[ResourceICUBeds].Capacity,
		byType[ResourceOxygen].CurrentLevel, byType[ResourceOxygen].Capacity, byType[ResourceOxygen].HoursRemaining,
		byType[ResourceVentilators].CurrentLevel, byType[ResourceVentilators].Capacity,
		byType[ResourceBloodUnits].CurrentLevel, byType[ResourceBloodUnits].Capacity,
		byType[ResourceStaff].CurrentLevel, byType[ResourceStaff].Capacity,
	)
	if err != nil {
		return storeErr("record resource snapshot", err)
	}
	return nil
}
