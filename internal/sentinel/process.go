package sentinel

import (
	"context"
	"sync"

	"github.com/evaders/hwid-sentinel/internal/report"
)

// driftCheckProcess is the scheduled unit of work for background monitoring.
// Each execution runs the full collect-compare pipeline and persists the
// snapshot as the new baseline whenever it drifted or no baseline existed.
type driftCheckProcess struct {
	sentinel *Sentinel

	mu        sync.Mutex
	isRunning bool
}

func newDriftCheckProcess(s *Sentinel) *driftCheckProcess {
	return &driftCheckProcess{sentinel: s}
}

func (p *driftCheckProcess) Name() string {
	return "drift_check"
}

func (p *driftCheckProcess) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.isRunning
}

func (p *driftCheckProcess) Execute(ctx context.Context) error {
	p.mu.Lock()
	if p.isRunning {
		p.mu.Unlock()
		return nil
	}
	p.isRunning = true
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		p.isRunning = false
		p.mu.Unlock()
	}()

	s := p.sentinel
	outcome, err := s.runCheck(ctx, true)
	if err != nil {
		return err
	}

	switch outcome.Status {
	case report.Changed:
		s.log.Warn().
			Str("fingerprint", outcome.Fingerprint.Short()).
			Str("details", outcome.Message).
			Msg("Hardware change detected by background monitor")
	case report.NoBaseline:
		s.log.Info().
			Str("fingerprint", outcome.Fingerprint.Short()).
			Msg("Background monitor recorded first baseline")
	default:
		s.log.Debug().
			Str("fingerprint", outcome.Fingerprint.Short()).
			Msg("Background check passed, hardware unchanged")
	}
	return nil
}
