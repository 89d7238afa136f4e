package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/spf13/viper"
)

type ChangeType string

const (
	LogLevelChanged             ChangeType = "log_level"
	MonitoringIntervalChanged   ChangeType = "monitoring_interval"
	BackgroundMonitoringChanged ChangeType = "background_monitoring"
)

// Change describes one settings difference found during a reload.
type Change struct {
	Type     ChangeType
	OldValue interface{}
	NewValue interface{}
}

// Manager guards the settings behind a single lock. It is the only component
// that reads or writes the settings file; every other package goes through it.
type Manager struct {
	mu       sync.RWMutex
	path     string
	settings Settings
}

// InitManager loads the settings file at path, creating it with defaults when
// absent. Returned warnings describe values that were corrected.
func InitManager(path string) (*Manager, []string, error) {
	settings, err := readSettings(path)
	if errors.Is(err, os.ErrNotExist) {
		settings = DefaultSettings()
		if werr := writeSettings(path, settings); werr != nil {
			return nil, nil, fmt.Errorf("write default settings: %w", werr)
		}
	} else if err != nil {
		return nil, nil, fmt.Errorf("read settings: %w", err)
	}

	warnings := validateAndEnforceDefaults(&settings)

	return &Manager{path: path, settings: settings}, warnings, nil
}

// Reload re-reads the settings file and returns the detected changes.
func (m *Manager) Reload() ([]Change, []string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	newSettings, err := readSettings(m.path)
	if err != nil {
		return nil, nil, fmt.Errorf("reload settings: %w", err)
	}
	warnings := validateAndEnforceDefaults(&newSettings)

	var changes []Change
	if m.settings.LogLevel != newSettings.LogLevel {
		changes = append(changes, Change{LogLevelChanged, m.settings.LogLevel, newSettings.LogLevel})
	}
	if m.settings.MonitoringInterval != newSettings.MonitoringInterval {
		changes = append(changes, Change{MonitoringIntervalChanged, m.settings.MonitoringInterval, newSettings.MonitoringInterval})
	}
	if m.settings.BackgroundMonitoring != newSettings.BackgroundMonitoring {
		changes = append(changes, Change{BackgroundMonitoringChanged, m.settings.BackgroundMonitoring, newSettings.BackgroundMonitoring})
	}

	m.settings = newSettings
	return changes, warnings, nil
}

// Write persists the in-memory settings to disk.
func (m *Manager) Write() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return writeSettings(m.path, m.settings)
}

func (m *Manager) SettingsPath() string { return m.path }

func (m *Manager) LogLevel() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.LogLevel
}

func (m *Manager) DataDir() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.DataDir
}

func (m *Manager) AutoSaveReports() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.AutoSaveReports
}

func (m *Manager) CompareOnStartup() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.CompareOnStartup
}

func (m *Manager) BackupReports() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.BackupReports
}

func (m *Manager) MaxReports() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.MaxReports
}

func (m *Manager) BanSimulatorEnabled() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.BanSimulatorEnabled
}

func (m *Manager) BackgroundMonitoring() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.BackgroundMonitoring
}

func (m *Manager) StatsTracking() bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.StatsTracking
}

// MonitoringInterval returns the parsed drift-check interval. The value was
// validated at load time, so parse failures fall back to the floor.
func (m *Manager) MonitoringInterval() time.Duration {
	m.mu.RLock()
	defer m.mu.RUnlock()
	d, err := ParseEveryExpr(m.settings.MonitoringInterval)
	if err != nil || d < MinMonitoringInterval {
		return MinMonitoringInterval
	}
	return d
}

func (m *Manager) MonitoringIntervalExpr() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.settings.MonitoringInterval
}

// BannedFingerprints returns a copy of the banned set's persisted form.
func (m *Manager) BannedFingerprints() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.settings.BannedFingerprints))
	copy(out, m.settings.BannedFingerprints)
	return out
}

// SetBannedFingerprints replaces the banned set and persists immediately.
func (m *Manager) SetBannedFingerprints(fps []string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.BannedFingerprints = append([]string(nil), fps...)
	return writeSettings(m.path, m.settings)
}

// SetBackgroundMonitoring toggles the monitoring flag and persists.
func (m *Manager) SetBackgroundMonitoring(enabled bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.settings.BackgroundMonitoring = enabled
	return writeSettings(m.path, m.settings)
}

func readSettings(path string) (Settings, error) {
	if _, err := os.Stat(path); err != nil {
		return Settings{}, err
	}

	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("toml")

	defaults := DefaultSettings()
	v.SetDefault("log_level", defaults.LogLevel)
	v.SetDefault("data_dir", defaults.DataDir)
	v.SetDefault("auto_save_reports", defaults.AutoSaveReports)
	v.SetDefault("compare_on_startup", defaults.CompareOnStartup)
	v.SetDefault("backup_reports", defaults.BackupReports)
	v.SetDefault("max_reports", defaults.MaxReports)
	v.SetDefault("ban_simulator_enabled", defaults.BanSimulatorEnabled)
	v.SetDefault("background_monitoring", defaults.BackgroundMonitoring)
	v.SetDefault("monitoring_interval", defaults.MonitoringInterval)
	v.SetDefault("stats_tracking", defaults.StatsTracking)
	v.SetDefault("banned_fingerprints", defaults.BannedFingerprints)

	if err := v.ReadInConfig(); err != nil {
		return Settings{}, err
	}

	var settings Settings
	if err := v.Unmarshal(&settings); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	return settings, nil
}

func writeSettings(path string, settings Settings) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(settings); err != nil {
		return fmt.Errorf("encode settings: %w", err)
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create settings dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".settings-*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write temp file: %w", err)
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
