package report

import (
	"time"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
)

// Report is a persisted snapshot/fingerprint pair. Exactly one current
// Report exists at a time; history keeps a bounded trail of past ones.
type Report struct {
	Snapshot    hwinfo.Snapshot         `json:"snapshot"`
	Fingerprint fingerprint.Fingerprint `json:"fingerprint"`
	CreatedAt   time.Time               `json:"created_at"`
}

// DriftStatus is the three-way outcome of comparing a fresh snapshot with
// the stored baseline. The first-run case is its own state so callers can
// never mistake "no prior data" for "no change".
type DriftStatus int

const (
	NoBaseline DriftStatus = iota
	Unchanged
	Changed
)

func (d DriftStatus) String() string {
	switch d {
	case NoBaseline:
		return "no_baseline"
	case Unchanged:
		return "unchanged"
	case Changed:
		return "changed"
	default:
		return "unknown"
	}
}
