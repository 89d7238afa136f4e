package config

import (
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
)

// DefaultSettingsPath is where the agent looks for its settings file.
const DefaultSettingsPath = "data/settings.toml"

// MinMonitoringInterval is the enforced floor for the background drift check.
const MinMonitoringInterval = 60 * time.Second

// Settings is the persisted configuration. Field names follow the settings
// file's snake_case keys.
type Settings struct {
	LogLevel             string   `toml:"log_level" mapstructure:"log_level"`
	DataDir              string   `toml:"data_dir" mapstructure:"data_dir"`
	AutoSaveReports      bool     `toml:"auto_save_reports" mapstructure:"auto_save_reports"`
	CompareOnStartup     bool     `toml:"compare_on_startup" mapstructure:"compare_on_startup"`
	BackupReports        bool     `toml:"backup_reports" mapstructure:"backup_reports"`
	MaxReports           int      `toml:"max_reports" mapstructure:"max_reports"`
	BanSimulatorEnabled  bool     `toml:"ban_simulator_enabled" mapstructure:"ban_simulator_enabled"`
	BackgroundMonitoring bool     `toml:"background_monitoring" mapstructure:"background_monitoring"`
	MonitoringInterval   string   `toml:"monitoring_interval" mapstructure:"monitoring_interval"`
	StatsTracking        bool     `toml:"stats_tracking" mapstructure:"stats_tracking"`
	BannedFingerprints   []string `toml:"banned_fingerprints" mapstructure:"banned_fingerprints"`
}

// DefaultSettings mirrors the defaults written on first run.
func DefaultSettings() Settings {
	return Settings{
		LogLevel:             "info",
		DataDir:              "data",
		AutoSaveReports:      true,
		CompareOnStartup:     false,
		BackupReports:        true,
		MaxReports:           10,
		BanSimulatorEnabled:  true,
		BackgroundMonitoring: false,
		MonitoringInterval:   "@every 300s",
		StatsTracking:        true,
		BannedFingerprints:   []string{},
	}
}

// ParseEveryExpr parses an "@every <duration>" interval expression using the
// cron descriptor parser. Calendar cron specs are rejected: the monitoring
// loop needs a constant delay, not wall-clock scheduling.
func ParseEveryExpr(expr string) (time.Duration, error) {
	if expr == "" {
		return 0, fmt.Errorf("empty interval expression")
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	sched, err := parser.Parse(expr)
	if err != nil {
		return 0, fmt.Errorf("parse interval %q: %w", expr, err)
	}
	delay, ok := sched.(cron.ConstantDelaySchedule)
	if !ok {
		return 0, fmt.Errorf("unsupported interval %q: only @every expressions are accepted", expr)
	}
	return delay.Delay, nil
}

// validateAndEnforceDefaults normalizes the settings in place and returns
// human-readable warnings for every value it had to correct.
func validateAndEnforceDefaults(s *Settings) []string {
	var warnings []string
	defaults := DefaultSettings()

	switch s.LogLevel {
	case "debug", "info", "warn", "error", "fatal":
	default:
		warnings = append(warnings, fmt.Sprintf("unknown log_level %q, using %q", s.LogLevel, defaults.LogLevel))
		s.LogLevel = defaults.LogLevel
	}

	if s.DataDir == "" {
		warnings = append(warnings, fmt.Sprintf("empty data_dir, using %q", defaults.DataDir))
		s.DataDir = defaults.DataDir
	}

	if s.MaxReports <= 0 {
		warnings = append(warnings, fmt.Sprintf("max_reports must be positive, using %d", defaults.MaxReports))
		s.MaxReports = defaults.MaxReports
	}

	d, err := ParseEveryExpr(s.MonitoringInterval)
	if err != nil {
		warnings = append(warnings, fmt.Sprintf("invalid monitoring_interval: %v, using %q", err, defaults.MonitoringInterval))
		s.MonitoringInterval = defaults.MonitoringInterval
	} else if d < MinMonitoringInterval {
		warnings = append(warnings, fmt.Sprintf("monitoring_interval below %s floor, using %q",
			MinMonitoringInterval, defaults.MonitoringInterval))
		s.MonitoringInterval = defaults.MonitoringInterval
	}

	if s.BannedFingerprints == nil {
		s.BannedFingerprints = []string{}
	}

	return warnings
}
