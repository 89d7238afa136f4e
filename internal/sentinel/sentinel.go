package sentinel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evaders/hwid-sentinel/internal/ban"
	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
	"github.com/evaders/hwid-sentinel/internal/monitor"
	"github.com/evaders/hwid-sentinel/internal/report"
	"github.com/evaders/hwid-sentinel/internal/stats"
	"github.com/evaders/hwid-sentinel/internal/worker"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

// Sentinel wires the collector, fingerprint store, stats tracker, ban
// registry, task worker and monitoring scheduler together and is the single
// surface callers talk to.
//
// The task worker and the monitoring scheduler are the only two actors that
// drive the report pipeline; pipelineMu serializes their
// read-compare-conditionally-write sequences against the ReportStore.
type Sentinel struct {
	cm        *config.Manager
	collector hwinfo.Collector
	reports   *report.Store
	stats     *stats.Tracker
	bans      *ban.Registry
	worker    *worker.Worker
	sched     *monitor.Scheduler
	log       zerolog.Logger

	pipelineMu sync.Mutex
	stageDelay time.Duration
}

// ErrInvalidFingerprint reports a snapshot whose canonical identifying
// subset was empty. Such a snapshot cannot be compared or banned.
var ErrInvalidFingerprint = errors.New("snapshot has no identifying fields, fingerprint invalid")

// MonitoringStatus describes the background monitor for callers.
type MonitoringStatus struct {
	Active    bool       `json:"active"`
	Interval  string     `json:"interval"`
	LastCheck *time.Time `json:"last_check,omitempty"`
}

// New assembles a Sentinel from its collaborators.
func New(cm *config.Manager, collector hwinfo.Collector, reports *report.Store,
	tracker *stats.Tracker, bans *ban.Registry, log zerolog.Logger) *Sentinel {

	s := &Sentinel{
		cm:         cm,
		collector:  collector,
		reports:    reports,
		stats:      tracker,
		bans:       bans,
		log:        log.With().Str("component", "sentinel").Logger(),
		stageDelay: 250 * time.Millisecond,
	}

	s.worker = worker.New(map[worker.Kind]worker.Handler{
		worker.KindCollect:     s.handleCollect,
		worker.KindCompareOnly: s.handleCompareOnly,
		worker.KindBanCurrent:  s.handleBanCurrent,
		worker.KindAntiCheat:   s.handleAntiCheat,
		worker.KindFetchStats:  s.handleFetchStats,
	}, log)

	s.sched = monitor.NewScheduler(cm.MonitoringInterval(), newDriftCheckProcess(s), log)

	return s
}

// Start launches the task worker, runs the startup comparison when
// configured, and starts background monitoring when enabled.
func (s *Sentinel) Start(ctx context.Context) {
	s.worker.Start(ctx)

	if s.cm.CompareOnStartup() {
		outcome, err := s.runCheck(ctx, false)
		switch {
		case err != nil:
			s.log.Warn().Err(err).Msg("Startup comparison failed")
		case outcome.Status == report.Changed:
			s.log.Warn().Str("details", outcome.Message).Msg("Startup comparison detected hardware change")
		default:
			s.log.Info().Str("status", outcome.Status.String()).Msg("Startup comparison complete")
		}
	}

	if s.cm.BackgroundMonitoring() {
		s.sched.Start(ctx)
	}
}

// Stop shuts down the scheduler and worker, best effort within ctx.
func (s *Sentinel) Stop(ctx context.Context) error {
	var firstErr error
	if err := s.sched.Stop(ctx); err != nil {
		firstErr = fmt.Errorf("stop scheduler: %w", err)
	}
	if err := s.worker.Stop(ctx); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("stop worker: %w", err)
	}
	return firstErr
}

// Submit enqueues a task and returns its id without blocking.
func (s *Sentinel) Submit(kind worker.Kind) (string, error) {
	return s.worker.Submit(kind)
}

// Poll waits up to timeout for the result of a submitted task.
func (s *Sentinel) Poll(ctx context.Context, id string, timeout time.Duration) (worker.Result, bool) {
	return s.worker.Poll(ctx, id, timeout)
}

// RunTask submits a task and waits for its result, for one-shot callers that
// do not manage the worker lifecycle themselves. Starting the worker twice is
// a no-op, so this is safe alongside a running Sentinel.
func (s *Sentinel) RunTask(ctx context.Context, kind worker.Kind, timeout time.Duration) (worker.Result, error) {
	s.worker.Start(ctx)

	id, err := s.worker.Submit(kind)
	if err != nil {
		return worker.Result{}, err
	}
	res, ok := s.worker.Poll(ctx, id, timeout)
	if !ok {
		return worker.Result{}, fmt.Errorf("task %s did not complete within %s", id, timeout)
	}
	return res, nil
}

// StartMonitoring enables the background drift check.
func (s *Sentinel) StartMonitoring(ctx context.Context) {
	s.sched.Start(ctx)
}

// StopMonitoring disables the background drift check.
func (s *Sentinel) StopMonitoring(ctx context.Context) error {
	return s.sched.Stop(ctx)
}

// SetMonitoringInterval applies a new check interval immediately.
func (s *Sentinel) SetMonitoringInterval(d time.Duration) {
	s.sched.ResetInterval(d)
}

// Monitoring reports the scheduler's state.
func (s *Sentinel) Monitoring() MonitoringStatus {
	status := MonitoringStatus{
		Active:   s.sched.Active(),
		Interval: s.sched.Interval().String(),
	}
	if last, ok := s.sched.LastCheck(); ok {
		status.LastCheck = &last
	}
	return status
}

// IsBanned reports whether a fingerprint is in the deny list.
func (s *Sentinel) IsBanned(fp fingerprint.Fingerprint) bool {
	return s.bans.IsBanned(fp)
}

// Ban adds a fingerprint to the deny list.
func (s *Sentinel) Ban(fp fingerprint.Fingerprint) (bool, string) {
	return s.bans.Ban(fp)
}

// Unban removes a fingerprint from the deny list.
func (s *Sentinel) Unban(fp fingerprint.Fingerprint) (bool, string) {
	return s.bans.Unban(fp)
}

// ClearAllBans empties the deny list and returns the removed count.
func (s *Sentinel) ClearAllBans() int {
	return s.bans.ClearAll()
}

// BannedList returns the current deny list.
func (s *Sentinel) BannedList() []fingerprint.Fingerprint {
	return s.bans.List()
}

// Stats returns the tracker's current summary.
func (s *Sentinel) Stats() stats.Summary {
	return s.stats.Summary()
}

// checkOutcome is the result of one collect-compare pipeline pass.
type checkOutcome struct {
	Status      report.DriftStatus
	Message     string
	Fingerprint fingerprint.Fingerprint
	Saved       bool
}

// runCheck performs one serialized collect→fingerprint→compare pass. When
// saveOnDrift is set, a changed or first-run snapshot is persisted as the new
// baseline.
func (s *Sentinel) runCheck(ctx context.Context, saveOnDrift bool) (checkOutcome, error) {
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()
	return s.runCheckLocked(ctx, saveOnDrift)
}

func (s *Sentinel) runCheckLocked(ctx context.Context, saveOnDrift bool) (checkOutcome, error) {
	snap, err := s.collector.Collect(ctx)
	if err != nil {
		return checkOutcome{}, fmt.Errorf("collect hardware snapshot: %w", err)
	}

	fp := fingerprint.Compute(snap)
	if !fp.Valid() {
		return checkOutcome{}, ErrInvalidFingerprint
	}

	status, message := s.reports.Compare(snap)

	if s.cm.StatsTracking() && status != report.NoBaseline {
		s.stats.RecordCheck(fp, status == report.Changed)
	}

	outcome := checkOutcome{Status: status, Message: message, Fingerprint: fp}
	if saveOnDrift && (status == report.Changed || status == report.NoBaseline) {
		outcome.Saved = s.reports.Save(snap)
		if !outcome.Saved {
			return outcome, fmt.Errorf("failed to persist new baseline report")
		}
	}
	return outcome, nil
}
