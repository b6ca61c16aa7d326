// Package scheduler runs the background scan loop and holds the last known
// incident set for readers.
package scheduler

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"github.com/edvin/warroom/internal/logging"
	"github.com/edvin/warroom/internal/model"
)

// DefaultInterval is the scan period when none is configured.
const DefaultInterval = 60 * time.Second

// Runner executes one workflow run.
type Runner interface {
	Run(ctx context.Context, query string, scan bool) model.WorkflowState
}

// Snapshot is the result of the most recent scan run.
type Snapshot struct {
	StartedAt  time.Time        `json:"started_at"`
	FinishedAt time.Time        `json:"finished_at"`
	Status     string           `json:"status"`
	Response   string           `json:"response"`
	Incidents  []model.Incident `json:"incidents"`
}

type Scheduler struct {
	runner   Runner
	interval time.Duration
	logger   zerolog.Logger
	now      func() time.Time

	mu       sync.Mutex
	cron     *cron.Cron
	stopping bool
	// inflight counts the runs of the current start; a restart after Stop
	// gets a new group so an earlier Stop can still be waiting on the old one.
	inflight *sync.WaitGroup

	scanning atomic.Int32
	snap     atomic.Pointer[Snapshot]
}

func New(runner Runner, interval time.Duration, logger zerolog.Logger) *Scheduler {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Scheduler{
		runner:   runner,
		interval: interval,
		logger:   logger.With().Str("component", "scheduler").Logger(),
		now:      time.Now,
		inflight: new(sync.WaitGroup),
	}
}

// Start begins the periodic loop. Starting a running loop is a no-op.
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cron != nil {
		return nil
	}

	logger := logging.CronLogger{Logger: s.logger}
	c := cron.New(cron.WithLogger(logger), cron.WithChain(cron.SkipIfStillRunning(logger)))
	if _, err := c.AddFunc(fmt.Sprintf("@every %s", s.interval), s.tick); err != nil {
		return fmt.Errorf("schedule scan loop: %w", err)
	}
	if s.stopping {
		s.inflight = new(sync.WaitGroup)
		s.stopping = false
	}
	s.cron = c
	c.Start()
	s.logger.Info().Dur("interval", s.interval).Msg("background scan loop started")
	return nil
}

// Stop prevents new runs and waits for in-flight ones to finish or for ctx
// to expire. In-flight runs are not cancelled.
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	c := s.cron
	s.cron = nil
	inflight := s.inflight
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		if c != nil {
			<-c.Stop().Done()
		}
		inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info().Msg("background scan loop stopped")
		return nil
	case <-ctx.Done():
		return fmt.Errorf("stop scan loop: %w", ctx.Err())
	}
}

// Running reports whether the periodic loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cron != nil
}

// TriggerNow starts an immediate run in the background. It returns false
// once the scheduler has been stopped.
func (s *Scheduler) TriggerNow() bool {
	wg, ok := s.acquire()
	if !ok {
		return false
	}
	go func() {
		defer wg.Done()
		s.run()
	}()
	return true
}

func (s *Scheduler) tick() {
	wg, ok := s.acquire()
	if !ok {
		return
	}
	defer wg.Done()
	s.run()
}

// acquire registers a run unless the scheduler is stopping. The caller marks
// the returned group done when the run ends.
func (s *Scheduler) acquire() (*sync.WaitGroup, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopping {
		return nil, false
	}
	s.inflight.Add(1)
	return s.inflight, true
}

func (s *Scheduler) run() {
	s.scanning.Add(1)
	defer s.scanning.Add(-1)

	started := s.now()
	state := s.runner.Run(context.Background(), "", true)
	published := s.publish(Snapshot{
		StartedAt:  started,
		FinishedAt: s.now(),
		Status:     state.Status,
		Response:   state.Response,
		Incidents:  state.Incidents,
	})
	s.logger.Debug().Str("status", state.Status).Int("incidents", len(state.Incidents)).
		Bool("published", published).Msg("scan run finished")
}

// Record publishes the incidents of a scan that ran outside the loop, such
// as an on-demand API scan started at started.
func (s *Scheduler) Record(started time.Time, incidents []model.Incident) bool {
	return s.publish(Snapshot{
		StartedAt:  started,
		FinishedAt: s.now(),
		Status:     model.StatusComplete,
		Incidents:  slices.Clone(incidents),
	})
}

// publish replaces the snapshot unless a run that started later already
// published. A failed run keeps the previous incident set.
func (s *Scheduler) publish(next Snapshot) bool {
	for {
		old := s.snap.Load()
		if old != nil && old.StartedAt.After(next.StartedAt) {
			return false
		}
		candidate := next
		if candidate.Status == model.StatusError && old != nil {
			candidate.Incidents = old.Incidents
		}
		if candidate.Incidents == nil {
			candidate.Incidents = []model.Incident{}
		}
		if s.snap.CompareAndSwap(old, &candidate) {
			return true
		}
	}
}

// Incidents returns the last known incident set.
func (s *Scheduler) Incidents() []model.Incident {
	snap := s.snap.Load()
	if snap == nil {
		return []model.Incident{}
	}
	return slices.Clone(snap.Incidents)
}

// LastScan returns when the current snapshot's run finished, and false if no
// run has completed yet.
func (s *Scheduler) LastScan() (time.Time, bool) {
	snap := s.snap.Load()
	if snap == nil {
		return time.Time{}, false
	}
	return snap.FinishedAt, true
}

// Snapshot returns a copy of the current snapshot, or nil.
func (s *Scheduler) Snapshot() *Snapshot {
	snap := s.snap.Load()
	if snap == nil {
		return nil
	}
	out := *snap
	out.Incidents = slices.Clone(snap.Incidents)
	return &out
}

// Scanning reports whether a run is in flight.
func (s *Scheduler) Scanning() bool {
	return s.scanning.Load() > 0
}

// Interval returns the scan period.
func (s *Scheduler) Interval() time.Duration {
	return s.interval
}
