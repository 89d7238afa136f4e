package sentinel

import (
	"context"
	"fmt"
	"time"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
)

// CollectPayload is the result of a collect task.
type CollectPayload struct {
	Fingerprint string          `json:"fingerprint"`
	Snapshot    hwinfo.Snapshot `json:"snapshot"`
	Saved       bool            `json:"saved"`
}

// ComparePayload is the result of a compare_only task.
type ComparePayload struct {
	Status      string `json:"status"`
	Message     string `json:"message"`
	Fingerprint string `json:"fingerprint"`
}

// BanPayload is the result of a ban_current task.
type BanPayload struct {
	Banned      bool   `json:"banned"`
	Message     string `json:"message"`
	Fingerprint string `json:"fingerprint"`
}

// AntiCheatPayload is the result of an anticheat_check task. The check always
// scans live hardware rather than trusting a stored report.
type AntiCheatPayload struct {
	Banned      bool     `json:"banned"`
	Fingerprint string   `json:"fingerprint"`
	ScanType    string   `json:"scan_type"`
	Stages      []string `json:"stages"`
	Message     string   `json:"message"`
}

// anticheatStages is the fixed scan progression reported to callers.
var anticheatStages = []string{
	"initializing_scan",
	"collecting_hardware",
	"computing_fingerprint",
	"checking_ban_registry",
}

func (s *Sentinel) handleCollect(ctx context.Context) (any, error) {
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	snap, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect hardware snapshot: %w", err)
	}

	fp := fingerprint.Compute(snap)
	if !fp.Valid() {
		return nil, ErrInvalidFingerprint
	}

	saved := false
	if s.cm.AutoSaveReports() {
		saved = s.reports.Save(snap)
		if !saved {
			return nil, fmt.Errorf("failed to save report")
		}
	}

	return CollectPayload{
		Fingerprint: fp.String(),
		Snapshot:    snap,
		Saved:       saved,
	}, nil
}

func (s *Sentinel) handleCompareOnly(ctx context.Context) (any, error) {
	outcome, err := s.runCheck(ctx, false)
	if err != nil {
		return nil, err
	}
	return ComparePayload{
		Status:      outcome.Status.String(),
		Message:     outcome.Message,
		Fingerprint: outcome.Fingerprint.String(),
	}, nil
}

func (s *Sentinel) handleBanCurrent(ctx context.Context) (any, error) {
	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	snap, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect hardware snapshot: %w", err)
	}

	fp := fingerprint.Compute(snap)
	if !fp.Valid() {
		return nil, ErrInvalidFingerprint
	}

	if !s.reports.Save(snap) {
		return nil, fmt.Errorf("failed to save report before banning")
	}

	// An already-banned fingerprint is an expected outcome, not a task
	// failure; the payload carries the distinction.
	ok, msg := s.bans.Ban(fp)
	return BanPayload{
		Banned:      ok,
		Message:     msg,
		Fingerprint: fp.String(),
	}, nil
}

func (s *Sentinel) handleAntiCheat(ctx context.Context) (any, error) {
	if !s.cm.BanSimulatorEnabled() {
		return nil, fmt.Errorf("ban simulator is disabled")
	}

	s.pipelineMu.Lock()
	defer s.pipelineMu.Unlock()

	// The scan deliberately ignores any stored report and fingerprints the
	// machine as it is right now, so a stale baseline cannot mask a ban.
	for _, stage := range anticheatStages {
		s.log.Debug().Str("stage", stage).Msg("Anticheat scan stage")
		if s.stageDelay > 0 {
			select {
			case <-time.After(s.stageDelay):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}
	}

	snap, err := s.collector.Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect hardware snapshot: %w", err)
	}

	fp := fingerprint.Compute(snap)
	if !fp.Valid() {
		return nil, ErrInvalidFingerprint
	}

	banned := s.bans.IsBanned(fp)
	msg := "hardware is clean"
	if banned {
		msg = fmt.Sprintf("fingerprint %s is banned", fp.Short())
	}

	return AntiCheatPayload{
		Banned:      banned,
		Fingerprint: fp.String(),
		ScanType:    "live",
		Stages:      anticheatStages,
		Message:     msg,
	}, nil
}

func (s *Sentinel) handleFetchStats(_ context.Context) (any, error) {
	if !s.cm.StatsTracking() {
		return nil, fmt.Errorf("stats tracking is disabled")
	}
	return s.stats.Summary(), nil
}
