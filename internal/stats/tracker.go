package stats

import (
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
)

const statsFileName = "hwid_stats.json"

// maxChangeEvents caps the append-only change log. Counters and monthly
// aggregates are unaffected; only the oldest raw events are dropped.
const maxChangeEvents = 500

// ChangeEvent records one detected fingerprint change.
type ChangeEvent struct {
	Timestamp   time.Time `json:"timestamp"`
	Fingerprint string    `json:"fingerprint"`
	CheckNumber int64     `json:"check_number"`
}

// MonthStats aggregates one calendar month.
type MonthStats struct {
	Checks       int64    `json:"checks"`
	Changes      int64    `json:"changes"`
	Fingerprints []string `json:"fingerprints"`
}

// MonthSummary is the derived per-month view.
type MonthSummary struct {
	Checks       int64   `json:"checks"`
	Changes      int64   `json:"changes"`
	Fingerprints int     `json:"fingerprints"`
	ChangeRate   float64 `json:"change_rate"`
}

// data is the persisted form of the tracker.
type data struct {
	TotalChecks  int64                  `json:"total_checks"`
	TotalChanges int64                  `json:"total_changes"`
	FirstCheck   *time.Time             `json:"first_check,omitempty"`
	LastCheck    *time.Time             `json:"last_check,omitempty"`
	LastChange   *time.Time             `json:"last_change,omitempty"`
	DailyChecks  map[string]int64       `json:"daily_checks"`
	Monthly      map[string]*MonthStats `json:"monthly_stats"`
	ChangeLog    []ChangeEvent          `json:"change_history"`
	Fingerprints []string               `json:"fingerprints"`
}

// Summary is the read-only view handed to callers.
type Summary struct {
	TotalChecks     int64                   `json:"total_checks"`
	TotalChanges    int64                   `json:"total_changes"`
	FirstCheck      *time.Time              `json:"first_check,omitempty"`
	LastCheck       *time.Time              `json:"last_check,omitempty"`
	LastChange      *time.Time              `json:"last_change,omitempty"`
	Fingerprints    int                     `json:"fingerprints"`
	ChangesPerMonth float64                 `json:"changes_per_month"`
	Monthly         map[string]MonthSummary `json:"monthly"`
	RecentChanges   []ChangeEvent           `json:"recent_changes"`
}

// Tracker accumulates check/change statistics and persists them as JSON.
// Counters are monotonic: nothing ever decrements.
type Tracker struct {
	mu      sync.Mutex
	path    string
	data    data
	log     zerolog.Logger
	now     func() time.Time
	metrics *metrics
}

// NewTracker loads (or initializes) the stats file under dataDir. When reg is
// non-nil, prometheus collectors for the counters are registered on it.
func NewTracker(dataDir string, log zerolog.Logger, reg prometheus.Registerer) *Tracker {
	t := &Tracker{
		path: filepath.Join(dataDir, statsFileName),
		log:  log.With().Str("component", "stats_tracker").Logger(),
		now:  time.Now,
	}
	t.data = t.load()
	if reg != nil {
		t.metrics = newMetrics(reg)
		t.metrics.checksTotal.Add(float64(t.data.TotalChecks))
		t.metrics.changesTotal.Add(float64(t.data.TotalChanges))
	}
	return t
}

func (t *Tracker) load() data {
	empty := data{
		DailyChecks: make(map[string]int64),
		Monthly:     make(map[string]*MonthStats),
	}

	raw, err := os.ReadFile(t.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			t.log.Error().Err(err).Msg("Failed to read stats file, starting fresh")
		}
		return empty
	}

	var d data
	if err := json.Unmarshal(raw, &d); err != nil {
		t.log.Error().Err(err).Msg("Failed to parse stats file, starting fresh")
		return empty
	}
	if d.DailyChecks == nil {
		d.DailyChecks = make(map[string]int64)
	}
	if d.Monthly == nil {
		d.Monthly = make(map[string]*MonthStats)
	}
	return d
}

// RecordCheck records one comparison outcome. It increments the total check
// counter, the day and month buckets, tracks the distinct fingerprint, and on
// changed=true appends a ChangeEvent and bumps the change counters.
func (t *Tracker) RecordCheck(fp fingerprint.Fingerprint, changed bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	dayKey := now.Format("2006-01-02")
	monthKey := now.Format("2006-01")

	t.data.TotalChecks++
	t.data.LastCheck = &now
	if t.data.FirstCheck == nil {
		first := now
		t.data.FirstCheck = &first
	}

	t.data.DailyChecks[dayKey]++

	month, ok := t.data.Monthly[monthKey]
	if !ok {
		month = &MonthStats{}
		t.data.Monthly[monthKey] = month
	}
	month.Checks++
	month.Fingerprints = appendUnique(month.Fingerprints, fp.String())
	t.data.Fingerprints = appendUnique(t.data.Fingerprints, fp.String())

	if t.metrics != nil {
		t.metrics.checksTotal.Inc()
	}

	if changed {
		t.data.TotalChanges++
		change := now
		t.data.LastChange = &change
		month.Changes++
		t.data.ChangeLog = append(t.data.ChangeLog, ChangeEvent{
			Timestamp:   now,
			Fingerprint: fp.String(),
			CheckNumber: t.data.TotalChecks,
		})
		if len(t.data.ChangeLog) > maxChangeEvents {
			t.data.ChangeLog = t.data.ChangeLog[len(t.data.ChangeLog)-maxChangeEvents:]
		}
		if t.metrics != nil {
			t.metrics.changesTotal.Inc()
		}
		t.log.Warn().
			Str("fingerprint", fp.Short()).
			Int64("total_changes", t.data.TotalChanges).
			Msg("Fingerprint change recorded")
	}

	t.save()
}

// ChangeFrequency returns the average changes per month across the tracked
// span. Sub-one-month spans count as one month so the rate never divides
// by zero.
func (t *Tracker) ChangeFrequency() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.changeFrequencyLocked()
}

func (t *Tracker) changeFrequencyLocked() float64 {
	if t.data.FirstCheck == nil || t.data.TotalChanges == 0 {
		return 0
	}
	months := monthsBetween(*t.data.FirstCheck, *t.data.LastCheck)
	if months < 1 {
		months = 1
	}
	return round2(float64(t.data.TotalChanges) / float64(months))
}

// MonthlySummary derives the per-month change rates.
func (t *Tracker) MonthlySummary() map[string]MonthSummary {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.monthlySummaryLocked()
}

func (t *Tracker) monthlySummaryLocked() map[string]MonthSummary {
	out := make(map[string]MonthSummary, len(t.data.Monthly))
	for month, m := range t.data.Monthly {
		rate := 0.0
		if m.Checks > 0 {
			rate = round2(float64(m.Changes) / float64(m.Checks) * 100)
		}
		out[month] = MonthSummary{
			Checks:       m.Checks,
			Changes:      m.Changes,
			Fingerprints: len(m.Fingerprints),
			ChangeRate:   rate,
		}
	}
	return out
}

// Summary builds the full read-only view.
func (t *Tracker) Summary() Summary {
	t.mu.Lock()
	defer t.mu.Unlock()

	recent := t.data.ChangeLog
	if len(recent) > 5 {
		recent = recent[len(recent)-5:]
	}
	recentCopy := make([]ChangeEvent, len(recent))
	copy(recentCopy, recent)
	sort.Slice(recentCopy, func(i, j int) bool {
		return recentCopy[i].Timestamp.After(recentCopy[j].Timestamp)
	})

	return Summary{
		TotalChecks:     t.data.TotalChecks,
		TotalChanges:    t.data.TotalChanges,
		FirstCheck:      t.data.FirstCheck,
		LastCheck:       t.data.LastCheck,
		LastChange:      t.data.LastChange,
		Fingerprints:    len(t.data.Fingerprints),
		ChangesPerMonth: t.changeFrequencyLocked(),
		Monthly:         t.monthlySummaryLocked(),
		RecentChanges:   recentCopy,
	}
}

func (t *Tracker) save() {
	raw, err := json.MarshalIndent(t.data, "", "  ")
	if err != nil {
		t.log.Error().Err(err).Msg("Failed to marshal stats")
		return
	}
	if err := os.MkdirAll(filepath.Dir(t.path), 0o755); err != nil {
		t.log.Error().Err(err).Msg("Failed to create stats dir")
		return
	}
	tmp := t.path + ".tmp"
	if err := os.WriteFile(tmp, raw, 0o644); err != nil {
		t.log.Error().Err(err).Msg("Failed to write stats file")
		return
	}
	if err := os.Rename(tmp, t.path); err != nil {
		t.log.Error().Err(err).Msg("Failed to replace stats file")
	}
}

func appendUnique(list []string, v string) []string {
	for _, existing := range list {
		if existing == v {
			return list
		}
	}
	return append(list, v)
}

func monthsBetween(first, last time.Time) int {
	return (last.Year()-first.Year())*12 + int(last.Month()) - int(first.Month())
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
