package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warroom/internal/model"
)

func TestDefault(t *testing.T) {
	reg := Default()
	assert.Len(t, reg.Hospitals, 5)
	assert.Len(t, reg.Vendors, 5)
	assert.Contains(t, reg.Profiles, model.TypeFire)
	assert.Contains(t, reg.Profiles, model.TypeUnknown)
}

func TestNearestHospitals(t *testing.T) {
	reg := Default()

	nearest := reg.NearestHospitals(3)
	require.Len(t, nearest, 3)
	assert.Equal(t, "rml", nearest[0].ID)
	assert.Equal(t, "lnjp", nearest[1].ID)
	assert.Equal(t, "safdarjung", nearest[2].ID)

	assert.Len(t, reg.NearestHospitals(50), 5)
	assert.Empty(t, reg.NearestHospitals(0))
	assert.Equal(t, 5.2, reg.Hospitals[0].DistanceKm, "registry order is not mutated")
}

func TestNearestHospitals_StableOnTies(t *testing.T) {
	reg := &Registry{Hospitals: []Hospital{
		{ID: "b", DistanceKm: 4},
		{ID: "a", DistanceKm: 4},
		{ID: "c", DistanceKm: 1},
	}}
	nearest := reg.NearestHospitals(3)
	assert.Equal(t, []string{"c", "b", "a"}, []string{nearest[0].ID, nearest[1].ID, nearest[2].ID})
}

func TestVendorFor(t *testing.T) {
	reg := Default()

	v, ok := reg.VendorFor("Oxygen")
	require.True(t, ok)
	assert.Equal(t, "vendor_oxygen_1", v.ID)

	v, ok = reg.VendorFor("med")
	require.True(t, ok)
	assert.Equal(t, "vendor_meds_1", v.ID)

	_, ok = reg.VendorFor("helicopter")
	assert.False(t, ok)

	_, ok = reg.VendorFor("")
	assert.False(t, ok)
}

func TestHospitalByName(t *testing.T) {
	reg := Default()

	h, ok := reg.HospitalByName("aiims")
	require.True(t, ok)
	assert.Equal(t, "aiims", h.ID)

	_, ok = reg.HospitalByName("Apollo")
	assert.False(t, ok)
}

func TestProfile_FallsBackToUnknown(t *testing.T) {
	reg := Default()
	assert.Equal(t, 15, reg.Profile(model.TypeFire).Casualties.Likely)
	assert.Equal(t, reg.Profiles[model.TypeUnknown], reg.Profile("volcano"))
}

func TestLocationHint(t *testing.T) {
	reg := Default()
	assert.Equal(t, "Karol Bagh", reg.LocationHint("Major fire at karol bagh market"))
	assert.Equal(t, "", reg.LocationHint("somewhere else"))
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "registry.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
hospitals:
  - {id: h1, name: North Clinic, distance_km: 2}
vendors:
  - {id: v1, name: Air Co, resource_type: oxygen, response_time_minutes: 10}
`), 0o600))

	reg, err := Load(path)
	require.NoError(t, err)
	assert.Len(t, reg.Hospitals, 1)
	assert.Equal(t, "North Clinic", reg.Hospitals[0].Name)
}

func TestParse_RejectsDuplicateHospital(t *testing.T) {
	_, err := Parse([]byte(`
hospitals:
  - {id: h1, name: A}
  - {id: h1, name: B}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate hospital id")
}
