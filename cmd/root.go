package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/evaders/hwid-sentinel/internal/ban"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
	"github.com/evaders/hwid-sentinel/internal/logger"
	"github.com/evaders/hwid-sentinel/internal/report"
	"github.com/evaders/hwid-sentinel/internal/sentinel"
	"github.com/evaders/hwid-sentinel/internal/stats"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

var (
	settingsPath string
	logLevelFlag string
)

var rootCmd = &cobra.Command{
	Use:   "hwid-sentinel",
	Short: "Hardware fingerprint monitor and ban simulator",
	Long: `hwid-sentinel fingerprints the machine it runs on, watches for
hardware changes, keeps usage statistics and maintains a simulated
ban list keyed by fingerprint.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&settingsPath, "config", config.DefaultSettingsPath, "path to the settings file")
	rootCmd.PersistentFlags().StringVar(&logLevelFlag, "log-level", "", "override the configured log level")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(compareCmd)
	rootCmd.AddCommand(anticheatCmd)
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(banCmd)
	rootCmd.AddCommand(unbanCmd)
	rootCmd.AddCommand(bansCmd)
	rootCmd.AddCommand(clearBansCmd)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// bootstrap loads settings, initializes logging and assembles the Sentinel.
// One-shot commands pass a nil Registerer so repeated invocations in the same
// process cannot collide on metric registration.
func bootstrap(ctx context.Context, reg prometheus.Registerer) (context.Context, *sentinel.Sentinel, *config.Manager, *zerolog.Logger, error) {
	cm, warnings, err := config.InitManager(settingsPath)
	if err != nil {
		return ctx, nil, nil, nil, fmt.Errorf("init settings: %w", err)
	}

	level := cm.LogLevel()
	if logLevelFlag != "" {
		level = logLevelFlag
	}
	ctx, log := logger.InitLogger(ctx, level, warnings)

	collector := hwinfo.NewSystemCollector()
	reports := report.NewStore(cm, *log)
	tracker := stats.NewTracker(cm.DataDir(), *log, reg)
	registry := ban.NewRegistry(cm, *log, reg)

	snl := sentinel.New(cm, collector, reports, tracker, registry, *log)
	return ctx, snl, cm, log, nil
}

// printJSON renders a payload for the terminal.
func printJSON(v any) error {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	fmt.Fprintln(os.Stdout, string(out))
	return nil
}
