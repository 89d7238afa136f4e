package monitor

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"github.com/evaders/hwid-sentinel/pkg/config"
)

// Process is a unit of work the scheduler drives on its interval.
type Process interface {
	// Name returns the name of the process
	Name() string

	// Execute runs the process
	Execute(ctx context.Context) error

	// IsRunning returns true if the process is currently executing
	IsRunning() bool
}

// Scheduler periodically executes a Process on its own goroutine. The loop
// ticks every second so cancellation and interval changes are observed
// promptly; the process only fires when a full interval has elapsed.
type Scheduler struct {
	name     string
	process  Process
	log      zerolog.Logger
	interval atomic.Int64 // nanoseconds

	mu        sync.Mutex
	lastCheck time.Time
	hasRun    bool

	active atomic.Bool
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

const tick = time.Second

// NewScheduler creates a scheduler for the given process. Intervals below the
// configured floor are raised to it.
func NewScheduler(interval time.Duration, process Process, log zerolog.Logger) *Scheduler {
	if interval < config.MinMonitoringInterval {
		interval = config.MinMonitoringInterval
	}
	s := &Scheduler{
		name:    process.Name(),
		process: process,
		log:     log.With().Str("component", "monitor_scheduler").Logger(),
	}
	s.interval.Store(int64(interval))
	return s
}

// Start launches the scheduler loop. It is a no-op when already active.
func (s *Scheduler) Start(ctx context.Context) {
	if !s.active.CompareAndSwap(false, true) {
		return
	}

	runCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.log.Info().
		Str("process", s.name).
		Dur("interval", s.Interval()).
		Msg("Starting monitoring scheduler")

	s.wg.Add(1)
	go s.run(runCtx)
}

// Stop cancels the loop and waits for it to drain, honoring the context
// deadline. A process already mid-execution is not interrupted.
func (s *Scheduler) Stop(ctx context.Context) error {
	if !s.active.CompareAndSwap(true, false) {
		return nil
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.log.Info().Str("process", s.name).Msg("Monitoring scheduler stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Active reports whether the scheduler loop is running.
func (s *Scheduler) Active() bool {
	return s.active.Load()
}

// Interval returns the current check interval.
func (s *Scheduler) Interval() time.Duration {
	return time.Duration(s.interval.Load())
}

// ResetInterval changes the interval dynamically. The floor still applies.
func (s *Scheduler) ResetInterval(interval time.Duration) {
	if interval < config.MinMonitoringInterval {
		interval = config.MinMonitoringInterval
	}
	s.interval.Store(int64(interval))
	s.log.Info().
		Str("process", s.name).
		Dur("new_interval", interval).
		Msg("Monitoring interval reset")
}

// LastCheck returns the time of the most recent completed check. The second
// return is false when no check has run yet.
func (s *Scheduler) LastCheck() (time.Time, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCheck, s.hasRun
}

func (s *Scheduler) run(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	elapsed := time.Duration(0)
	for {
		select {
		case <-ctx.Done():
			s.log.Info().Str("process", s.name).Msg("Scheduler received cancellation signal. Exiting...")
			return
		case <-ticker.C:
			elapsed += tick
			if elapsed < s.Interval() {
				continue
			}
			elapsed = 0
			s.launchProcess(ctx)
		}
	}
}

func (s *Scheduler) launchProcess(ctx context.Context) {
	if s.process.IsRunning() {
		s.log.Debug().Str("process", s.name).Msg("Process already executing")
		return
	}

	s.mu.Lock()
	s.lastCheck = time.Now()
	s.hasRun = true
	s.mu.Unlock()

	s.log.Debug().Str("process", s.name).Msg("Scheduler triggering check")
	if err := s.process.Execute(ctx); err != nil {
		s.log.Warn().
			Str("process", s.name).
			Err(err).
			Msg("Error occurred while executing process")
	}
}
