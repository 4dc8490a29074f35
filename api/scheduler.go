/*
scheduler.go - Periodic loyalty expiry sweeps

PURPOSE:
  Runs the rewards Expiry Sweeper on a ticker and on demand, and keeps a
  short history of runs for the admin console.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - One sweep at a time: a manual trigger during a scheduled run waits
  - A failed sweep is recorded and retried on the next tick; the sweeper
    itself is idempotent, so nothing is lost

CONFIGURATION:
  - Interval: How often to sweep (default: 1 hour)
  - Enabled: Whether the ticker runs (default: true)

USAGE:
  scheduler := NewSweepScheduler(rewardsService, logger)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: TriggerSweep endpoint (manual sweep)
  - rewards/sweeper.go: Sweep
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/studio-engine/metrics"
	"github.com/warp/studio-engine/rewards"
)

// maxSweepHistory is how many runs History keeps.
const maxSweepHistory = 20

// SweepRun records one sweep.
type SweepRun struct {
	Trigger   string // "scheduled" or "manual"
	StartedAt time.Time
	Result    *rewards.SweepResult
	Err       error
}

// DTO renders the run for the API.
func (r SweepRun) DTO() SweepDTO {
	dto := SweepDTO{
		StartedAt: r.StartedAt.Format(time.RFC3339),
		Trigger:   r.Trigger,
	}
	if r.Result != nil {
		dto.Accounts = r.Result.Accounts
		dto.EntriesExcluded = r.Result.EntriesExcluded
		dto.DurationMillis = r.Result.Duration.Milliseconds()
	}
	if r.Err != nil {
		dto.Error = r.Err.Error()
	}
	return dto
}

// SweepScheduler handles automated expiry sweeps.
type SweepScheduler struct {
	Rewards  *rewards.Service
	Interval time.Duration
	Enabled  bool

	logger  zerolog.Logger
	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	runMu   sync.Mutex
	history []SweepRun
	nextRun time.Time
}

// NewSweepScheduler creates a new scheduler.
func NewSweepScheduler(svc *rewards.Service, logger zerolog.Logger) *SweepScheduler {
	return &SweepScheduler{
		Rewards:  svc,
		Interval: 1 * time.Hour,
		Enabled:  true,
		logger:   logger,
	}
}

// Start begins the scheduler.
func (ss *SweepScheduler) Start() {
	ss.mu.Lock()
	defer ss.mu.Unlock()

	if !ss.Enabled {
		ss.logger.Info().Msg("sweep scheduler disabled, not starting")
		return
	}
	if ss.ticker != nil {
		return
	}

	ss.ticker = time.NewTicker(ss.Interval)
	ss.stop = make(chan struct{})
	ss.nextRun = time.Now().Add(ss.Interval)
	ss.wg.Add(1)

	go ss.run(ss.ticker, ss.stop)

	ss.logger.Info().Dur("interval", ss.Interval).Msg("sweep scheduler started")
}

// Stop stops the scheduler and waits for a running sweep to finish.
func (ss *SweepScheduler) Stop() {
	ss.mu.Lock()
	if ss.ticker == nil {
		ss.mu.Unlock()
		return
	}
	ss.ticker.Stop()
	close(ss.stop)
	ss.ticker = nil
	ss.mu.Unlock()

	ss.wg.Wait()
	ss.logger.Info().Msg("sweep scheduler stopped")
}

func (ss *SweepScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer ss.wg.Done()

	// Run immediately on start
	ss.RunNow(context.Background(), "scheduled")

	for {
		select {
		case <-ticker.C:
			ss.mu.Lock()
			ss.nextRun = time.Now().Add(ss.Interval)
			ss.mu.Unlock()
			ss.RunNow(context.Background(), "scheduled")
		case <-stop:
			return
		}
	}
}

// RunNow sweeps immediately and records the run.
func (ss *SweepScheduler) RunNow(ctx context.Context, trigger string) SweepRun {
	ss.runMu.Lock()
	defer ss.runMu.Unlock()

	run := SweepRun{Trigger: trigger, StartedAt: time.Now()}
	run.Result, run.Err = ss.Rewards.Sweep(ctx)

	if run.Err != nil {
		ss.logger.Error().Err(run.Err).Str("trigger", trigger).Msg("expiry sweep failed")
	} else {
		metrics.ObserveSweep(run.Result.EntriesExcluded, run.Result.Duration)
		if run.Result.EntriesExcluded > 0 {
			ss.logger.Info().
				Str("trigger", trigger).
				Int("accounts", run.Result.Accounts).
				Int("entries", run.Result.EntriesExcluded).
				Msg("expiry sweep completed")
		}
	}

	ss.mu.Lock()
	ss.history = append([]SweepRun{run}, ss.history...)
	if len(ss.history) > maxSweepHistory {
		ss.history = ss.history[:maxSweepHistory]
	}
	ss.mu.Unlock()

	return run
}

// History returns recorded runs, newest first.
func (ss *SweepScheduler) History() []SweepRun {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	out := make([]SweepRun, len(ss.history))
	copy(out, ss.history)
	return out
}

// NextRunTime returns when the next scheduled sweep will occur. It is the
// zero time when the ticker is not running.
func (ss *SweepScheduler) NextRunTime() time.Time {
	ss.mu.Lock()
	defer ss.mu.Unlock()
	if ss.ticker == nil {
		return time.Time{}
	}
	return ss.nextRun
}
