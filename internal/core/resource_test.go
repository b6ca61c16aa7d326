package core

import (
	"context"
	"errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/edvin/warroom/internal/fault"
	"github.com/edvin/warroom/internal/model"
)

func TestDefaultSnapshot(t *testing.T) {
	snap := DefaultSnapshot()
	require.Len(t, snap, 6)

	byType := map[string]model.ResourceStatus{}
	for _, r := range snap {
		byType[r.ResourceType] = r
	}
	assert.Equal(t, model.LevelLow, byType[ResourceBeds].Status())
	assert.Equal(t, model.LevelLow, byType[ResourceICUBeds].Status())
	assert.Equal(t, model.LevelAdequate, byType[ResourceOxygen].Status())
	require.NotNil(t, byType[ResourceOxygen].HoursRemaining)
	assert.InDelta(t, 15.6, *byType[ResourceOxygen].HoursRemaining, 1e-9)
}

func TestResourceService_NilDBServesDefault(t *testing.T) {
	snap, err := NewResourceService(nil, zerolog.Nop()).Snapshot(context.Background())
	require.NoError(t, err)
	assert.Equal(t, DefaultSnapshot(), snap)
}

func TestResourceService_Snapshot_Success(t *testing.T) {
	db := &mockDB{}
	svc := NewResourceService(db, zerolog.Nop())
	ctx := context.Background()

	row := &mockRow{scanFunc: func(dest ...any) error {
		vals := []float64{50, 100, 2, 20, 10, 100}
		for i, v := range vals {
			*(dest[i].(*float64)) = v
		}
		// dest[6] is oxygen_hours, left NULL.
		rest := []float64{12, 15, 150, 200, 60, 80}
		for i, v := range rest {
			*(dest[7+i].(*float64)) = v
		}
		return nil
	}}
	db.On("QueryRow", ctx, mock.AnythingOfType("string"), mock.Anything).Return(row)

	snap, err := svc.Snapshot(ctx)
	require.NoError(t, err)
	require.Len(t, snap, 6)
	assert.Equal(t, ResourceBeds, snap[0].ResourceType)
	assert.Equal(t, model.LevelAdequate, snap[0].Status())
	assert.Equal(t, model.LevelCritical, snap[1].Status())
	assert.Equal(t, model.LevelCritical, snap[2].Status())
	require.NotNil(t, snap[2].HoursRemaining)
	assert.InDelta(t, 2.4, *snap[2].HoursRemaining, 1e-9)
	db.AssertExpectations(t)
}

func TestResourceService_Snapshot_StoreDownFallsBack(t *testing.T) {
	for _, scanErr := range []error{errors.New("connection refused"), pgx.ErrNoRows} {
		db := &mockDB{}
		svc := NewResourceService(db, zerolog.Nop())
		db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(errRow(scanErr))

		snap, err := svc.Snapshot(context.Background())
		require.NoError(t, err)
		assert.Equal(t, DefaultSnapshot(), snap)
	}
}

func TestResourceService_Snapshot_NegativeLevelRejected(t *testing.T) {
	db := &mockDB{}
	svc := NewResourceService(db, zerolog.Nop())

	row := &mockRow{scanFunc: func(dest ...any) error {
		*(dest[0].(*float64)) = -1
		return nil
	}}
	db.On("QueryRow", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(row)

	_, err := svc.Snapshot(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Contains(t, err.Error(), "beds")
}

func TestDispatchLog_Record(t *testing.T) {
	db := &mockDB{}
	l := NewDispatchLog(db)
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := l.Record(ctx, "inc-1", "hospital_alert", "aiims", "AIIMS Delhi", map[string]string{"id": "alert-1"})
	require.NoError(t, err)

	args := db.Calls[0].Arguments.Get(2).([]any)
	assert.Equal(t, "inc-1", args[1])
	assert.Equal(t, "hospital_alert", args[2])
	assert.JSONEq(t, `{"id":"alert-1"}`, string(args[5].([]byte)))
}

func TestDispatchLog_Record_DBError(t *testing.T) {
	db := &mockDB{}
	l := NewDispatchLog(db)

	db.On("Exec", mock.Anything, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.CommandTag{}, errors.New("down"))

	err := l.Record(context.Background(), "inc-1", "resource_request", "v1", "Vendor", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "record dispatch")
}

func TestResourceService_Record(t *testing.T) {
	db := &mockDB{}
	svc := NewResourceService(db, zerolog.Nop())
	ctx := context.Background()

	db.On("Exec", ctx, mock.AnythingOfType("string"), mock.Anything).Return(pgconn.NewCommandTag("INSERT 0 1"), nil)

	err := svc.Record(ctx, DefaultSnapshot())
	require.NoError(t, err)
	db.AssertExpectations(t)
}

func TestResourceService_Record_MissingType(t *testing.T) {
	db := &mockDB{}
	svc := NewResourceService(db, zerolog.Nop())

	err := svc.Record(context.Background(), DefaultSnapshot()[:5])
	require.Error(t, err)
	assert.ErrorIs(t, err, fault.ErrValidation)
	assert.Contains(t, err.Error(), "staff missing")
	db.AssertNotCalled(t, "Exec", mock.Anything, mock.Anything, mock.Anything)
}

func TestResourceService_Record_NegativeLevel(t *testing.T) {
	db := &mockDB{}
	svc := NewResourceService(db, zerolog.Nop())

	snap := DefaultSnapshot()
	snap[0].CurrentLevel = -1
	err := svc.Record(context.Background(), snap)
	assert.ErrorIs(t, err, fault.ErrValidation)
}

func TestResourceService_Record_NoDatabase(t *testing.T) {
	svc := NewResourceService(nil, zerolog.Nop())

	err := svc.Record(context.Background(), DefaultSnapshot())
	assert.ErrorIs(t, err, fault.ErrStoreUnavailable)
}
