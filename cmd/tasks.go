package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/evaders/hwid-sentinel/internal/worker"
)

const oneShotTimeout = 30 * time.Second

// runOneShot bootstraps a Sentinel, executes a single task on the worker and
// prints the payload. Used by every command that is not the long-running
// daemon.
func runOneShot(cmd *cobra.Command, kind worker.Kind) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), oneShotTimeout)
	defer cancel()

	ctx, snl, _, _, err := bootstrap(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		// The worker loop exits on context cancellation, so cancel first.
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer stopCancel()
		_ = snl.Stop(stopCtx)
	}()

	res, err := snl.RunTask(ctx, kind, oneShotTimeout)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("task failed: %s", res.Err)
	}
	return printJSON(res.Payload)
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect a hardware snapshot and print its fingerprint",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, worker.KindCollect)
	},
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Compare current hardware against the stored baseline",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, worker.KindCompareOnly)
	},
}

var anticheatCmd = &cobra.Command{
	Use:   "anticheat",
	Short: "Run a live anticheat-style ban scan",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, worker.KindAntiCheat)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print collected usage statistics",
	RunE: func(cmd *cobra.Command, _ []string) error {
		return runOneShot(cmd, worker.KindFetchStats)
	},
}
