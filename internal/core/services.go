package core

import (
	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/approval"
	"github.com/edvin/warroom/internal/dispatch"
)

// Services groups the store services. Built with a nil DB, only the resource
// service is usable and it serves the default snapshot.
type Services struct {
	Resources  *ResourceService
	Approvals  *ApprovalStore
	Dispatches *DispatchLog
}

func NewServices(db DB, logger zerolog.Logger) *Services {
	s := &Services{Resources: NewResourceService(db, logger)}
	if db != nil {
		s.Approvals = NewApprovalStore(db)
		s.Dispatches = NewDispatchLog(db)
	}
	return s
}

// ApprovalStore returns the store for the approval gate, or nil without a
// database.
func (s *Services) ApprovalStore() approval.Store {
	if s.Approvals == nil {
		return nil
	}
	return s.Approvals
}

// Recorder returns the dispatch log, or nil without a database.
func (s *Services) Recorder() dispatch.Recorder {
	if s.Dispatches == nil {
		return nil
	}
	return s.Dispatches
}
