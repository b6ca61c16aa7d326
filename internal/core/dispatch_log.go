package core

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/edvin/warroom/internal/platform"
)

// DispatchLog records every action that left the system.
type DispatchLog struct {
	db DB
}

func NewDispatchLog(db DB) *DispatchLog {
	return &DispatchLog{db: db}
}

func (l *DispatchLog) Record(ctx context.Context, incidentID, kind, targetID, targetName string, payload any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal dispatch payload: %w", err)
	}
	_, err = l.db.Exec(ctx,
		`INSERT INTO dispatch_log (id, incident_id, kind, target_id, target_name, payload, dispatched_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		platform.NewID(), incidentID, kind, targetID, targetName, body, time.Now().UTC(),
	)
	if err != nil {
		return storeErr("record dispatch", err)
	}
	return nil
}
