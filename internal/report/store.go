package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

const (
	currentReportFile = "current_hwid.json"
	historyDirName    = "reports"
	historyPrefix     = "hwid_report_"
)

// Store persists the current Report and a bounded history under the data
// directory. Methods are safe for concurrent use, but read-modify-write
// pipelines spanning Compare and Save must be serialized by the caller.
type Store struct {
	mu          sync.Mutex
	currentPath string
	historyDir  string
	cm          *config.Manager
	log         zerolog.Logger
	now         func() time.Time
}

// NewStore creates a Store rooted at the manager's data directory.
func NewStore(cm *config.Manager, log zerolog.Logger) *Store {
	dataDir := cm.DataDir()
	return &Store{
		currentPath: filepath.Join(dataDir, currentReportFile),
		historyDir:  filepath.Join(dataDir, historyDirName),
		cm:          cm,
		log:         log.With().Str("component", "report_store").Logger(),
		now:         time.Now,
	}
}

// Fingerprint is a pass-through to the fingerprint engine for callers that
// already hold a Snapshot.
func (s *Store) Fingerprint(snap hwinfo.Snapshot) fingerprint.Fingerprint {
	return fingerprint.Compute(snap)
}

// Save overwrites the current Report and, when backups are enabled, appends
// a timestamped copy to history and evicts entries beyond the retention cap.
// It returns false on any persistence failure; the previous durable copy may
// then be stale and the caller should treat the save as not committed.
func (s *Store) Save(snap hwinfo.Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	rep := Report{
		Snapshot:    snap,
		Fingerprint: fingerprint.Compute(snap),
		CreatedAt:   s.now(),
	}

	data, err := json.MarshalIndent(rep, "", "  ")
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to marshal report")
		return false
	}

	if err := os.MkdirAll(filepath.Dir(s.currentPath), 0o755); err != nil {
		s.log.Error().Err(err).Msg("Failed to create data directory")
		return false
	}
	if err := writeFileAtomic(s.currentPath, data); err != nil {
		s.log.Error().Err(err).Msg("Failed to write current report")
		return false
	}

	if s.cm.BackupReports() {
		if err := s.appendHistory(data, rep.CreatedAt); err != nil {
			s.log.Error().Err(err).Msg("Failed to write history report")
			return false
		}
		s.evictHistory()
	}

	s.log.Debug().Str("fingerprint", rep.Fingerprint.Short()).Msg("Report saved")
	return true
}

// LoadCurrent reads the current Report. The second return is false when no
// report has been saved yet.
func (s *Store) LoadCurrent() (*Report, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadCurrentUnlocked()
}

func (s *Store) loadCurrentUnlocked() (*Report, bool) {
	data, err := os.ReadFile(s.currentPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.log.Error().Err(err).Msg("Failed to read current report")
		}
		return nil, false
	}
	var rep Report
	if err := json.Unmarshal(data, &rep); err != nil {
		s.log.Error().Err(err).Msg("Failed to unmarshal current report")
		return nil, false
	}
	return &rep, true
}

// Compare fingerprints a fresh snapshot against the stored baseline.
func (s *Store) Compare(snap hwinfo.Snapshot) (DriftStatus, string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.loadCurrentUnlocked()
	if !ok {
		return NoBaseline, "no previous report found"
	}

	newFP := fingerprint.Compute(snap)
	if newFP == current.Fingerprint {
		return Unchanged, "fingerprint matches previous report"
	}
	return Changed, fmt.Sprintf("fingerprint changed from %s to %s",
		current.Fingerprint.Short(), newFP.Short())
}

func (s *Store) appendHistory(data []byte, createdAt time.Time) error {
	if err := os.MkdirAll(s.historyDir, 0o755); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}
	name := fmt.Sprintf("%s%s.json", historyPrefix, createdAt.Format("20060102_150405.000000000"))
	return writeFileAtomic(filepath.Join(s.historyDir, name), data)
}

// evictHistory removes the oldest history entries beyond the configured cap,
// ordered by modification time. Eviction failures are logged, not fatal: the
// save itself already committed.
func (s *Store) evictHistory() {
	maxReports := s.cm.MaxReports()

	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		s.log.Error().Err(err).Msg("Failed to list history reports")
		return
	}

	type reportFile struct {
		path    string
		modTime time.Time
	}
	var files []reportFile
	for _, entry := range entries {
		if entry.IsDir() || filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, reportFile{
			path:    filepath.Join(s.historyDir, entry.Name()),
			modTime: info.ModTime(),
		})
	}

	if len(files) <= maxReports {
		return
	}

	// Most-recent-first; everything past the cap goes.
	sort.Slice(files, func(i, j int) bool {
		return files[i].modTime.After(files[j].modTime)
	})
	for _, old := range files[maxReports:] {
		if err := os.Remove(old.path); err != nil {
			s.log.Error().Err(err).Str("path", old.path).Msg("Failed to remove old report")
			continue
		}
		s.log.Debug().Str("path", old.path).Msg("Removed old history report")
	}
}

// HistoryCount returns the number of history entries on disk.
func (s *Store) HistoryCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.historyDir)
	if err != nil {
		return 0
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() && filepath.Ext(entry.Name()) == ".json" {
			count++
		}
	}
	return count
}

func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".report-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
