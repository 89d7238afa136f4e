package cmd

import (
	"context"
	"errors"
	"net/http"
	"net/http/pprof"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/evaders/hwid-sentinel/internal/logger"
	"github.com/evaders/hwid-sentinel/internal/sentinel"
	"github.com/evaders/hwid-sentinel/internal/utils"
	"github.com/evaders/hwid-sentinel/internal/watcher"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

var metricsAddr string

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the sentinel daemon with background monitoring",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runDaemon(cmd.Context())
	},
}

func init() {
	runCmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "listen address for the metrics endpoint")
}

func runDaemon(parent context.Context) error {
	ctx, cancel := utils.SetupContext(parent)
	defer cancel()

	ctx, snl, cm, log, err := bootstrap(ctx, prometheus.DefaultRegisterer)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(prometheus.DefaultGatherer, promhttp.HandlerOpts{}))
	mux.Handle("/debug/pprof/", http.HandlerFunc(pprof.Index))
	mux.Handle("/debug/pprof/profile", http.HandlerFunc(pprof.Profile))
	mux.Handle("/debug/pprof/heap", pprof.Handler("heap"))
	mux.Handle("/debug/pprof/goroutine", pprof.Handler("goroutine"))
	metricsSrv := &http.Server{
		Addr:    metricsAddr,
		Handler: mux,
	}
	g.Go(func() error {
		if err := metricsSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return metricsSrv.Shutdown(shutdownCtx)
	})

	snl.Start(ctx)
	g.Go(func() error {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return snl.Stop(stopCtx)
	})

	reloadEvents := make(chan struct{}, 1)
	g.Go(func() error {
		return watcher.WatchChanges(ctx, *log, cm.SettingsPath(), reloadEvents)
	})
	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-reloadEvents:
				applyReload(ctx, snl, cm, log)
			}
		}
	})

	log.Info().Str("settings", cm.SettingsPath()).Msg("Sentinel daemon running")
	return g.Wait()
}

// applyReload re-reads the settings file and applies the differences that can
// take effect without a restart.
func applyReload(ctx context.Context, snl *sentinel.Sentinel, cm *config.Manager, log *zerolog.Logger) {
	changes, warnings, err := cm.Reload()
	if err != nil {
		log.Error().Err(err).Msg("Failed to reload settings")
		return
	}
	for _, warn := range warnings {
		log.Warn().Msg(warn)
	}

	for _, change := range changes {
		switch change.Type {
		case config.LogLevelChanged:
			logger.SetGlobalLevel(cm.LogLevel())
			log.Info().
				Interface("old", change.OldValue).
				Interface("new", change.NewValue).
				Msg("Log level updated")
		case config.MonitoringIntervalChanged:
			snl.SetMonitoringInterval(cm.MonitoringInterval())
		case config.BackgroundMonitoringChanged:
			if cm.BackgroundMonitoring() {
				snl.StartMonitoring(ctx)
			} else {
				stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				if err := snl.StopMonitoring(stopCtx); err != nil {
					log.Warn().Err(err).Msg("Failed to stop background monitoring")
				}
				cancel()
			}
		}
	}
	if len(changes) > 0 {
		log.Info().Int("changes", len(changes)).Msg("Settings reloaded")
	}
}
