package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaders/hwid-sentinel/internal/ban"
	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/internal/hwinfo"
	"github.com/evaders/hwid-sentinel/internal/report"
	"github.com/evaders/hwid-sentinel/internal/stats"
	"github.com/evaders/hwid-sentinel/internal/worker"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

const taskTimeout = 5 * time.Second

func newTestSentinel(t *testing.T, mock *hwinfo.MockCollector) *Sentinel {
	t.Helper()

	dataDir := t.TempDir()
	settingsPath := filepath.Join(t.TempDir(), "settings.toml")
	content := fmt.Sprintf(`log_level = "info"
data_dir = %q
auto_save_reports = true
compare_on_startup = false
backup_reports = false
max_reports = 10
ban_simulator_enabled = true
background_monitoring = false
monitoring_interval = "@every 300s"
stats_tracking = true
banned_fingerprints = []
`, dataDir)
	require.NoError(t, os.WriteFile(settingsPath, []byte(content), 0o644))

	cm, warnings, err := config.InitManager(settingsPath)
	require.NoError(t, err)
	require.Empty(t, warnings)

	log := zerolog.Nop()
	snl := New(cm, mock, report.NewStore(cm, log), stats.NewTracker(dataDir, log, nil),
		ban.NewRegistry(cm, log, nil), log)
	snl.stageDelay = 0

	ctx, cancel := context.WithCancel(context.Background())
	snl.Start(ctx)
	t.Cleanup(func() {
		cancel()
		stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer stopCancel()
		_ = snl.Stop(stopCtx)
	})
	return snl
}

func runTask(t *testing.T, snl *Sentinel, kind worker.Kind) worker.Result {
	t.Helper()
	res, err := snl.RunTask(context.Background(), kind, taskTimeout)
	require.NoError(t, err)
	return res
}

func TestChangeDetectionScenario(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	// First collect establishes the baseline.
	res := runTask(t, snl, worker.KindCollect)
	require.False(t, res.IsError(), res.Err)
	collected := res.Payload.(CollectPayload)
	assert.True(t, collected.Saved)
	h1 := collected.Fingerprint
	require.NotEmpty(t, h1)

	// Same hardware compares clean.
	res = runTask(t, snl, worker.KindCompareOnly)
	require.False(t, res.IsError(), res.Err)
	compared := res.Payload.(ComparePayload)
	assert.Equal(t, "unchanged", compared.Status)
	assert.Equal(t, h1, compared.Fingerprint)

	// Swap a disk; the next compare flags drift.
	mock.Snap = hwinfo.TestSnapshot("DISK-2", "BIOS-1", "BOARD-1", "uuid-1")
	res = runTask(t, snl, worker.KindCompareOnly)
	require.False(t, res.IsError(), res.Err)
	compared = res.Payload.(ComparePayload)
	assert.Equal(t, "changed", compared.Status)
	h2 := compared.Fingerprint
	assert.NotEqual(t, h1, h2)

	// The change landed in the stats.
	res = runTask(t, snl, worker.KindFetchStats)
	require.False(t, res.IsError(), res.Err)
	sum := res.Payload.(stats.Summary)
	assert.Equal(t, int64(1), sum.TotalChanges)

	// Ban the current hardware and confirm the anticheat scan sees it.
	res = runTask(t, snl, worker.KindBanCurrent)
	require.False(t, res.IsError(), res.Err)
	banned := res.Payload.(BanPayload)
	assert.True(t, banned.Banned)
	assert.Equal(t, h2, banned.Fingerprint)
	assert.True(t, snl.IsBanned(fingerprint.Fingerprint(h2)))

	res = runTask(t, snl, worker.KindAntiCheat)
	require.False(t, res.IsError(), res.Err)
	scan := res.Payload.(AntiCheatPayload)
	assert.True(t, scan.Banned)
	assert.Equal(t, "live", scan.ScanType)
	assert.Equal(t, h2, scan.Fingerprint)
}

func TestBanCurrentTwiceReportsAlreadyBanned(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	res := runTask(t, snl, worker.KindBanCurrent)
	require.False(t, res.IsError(), res.Err)
	assert.True(t, res.Payload.(BanPayload).Banned)

	// The second ban is an expected negative, not a task failure.
	res = runTask(t, snl, worker.KindBanCurrent)
	require.False(t, res.IsError(), res.Err)
	second := res.Payload.(BanPayload)
	assert.False(t, second.Banned)
	assert.Contains(t, second.Message, "already banned")
}

func TestAntiCheatCleanHardware(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	res := runTask(t, snl, worker.KindAntiCheat)
	require.False(t, res.IsError(), res.Err)
	scan := res.Payload.(AntiCheatPayload)
	assert.False(t, scan.Banned)
	assert.Contains(t, scan.Message, "clean")
}

func TestAntiCheatScansLiveHardwareNotStoredReport(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	// Baseline on the old hardware, then ban the new hardware directly.
	runTask(t, snl, worker.KindCollect)

	newSnap := hwinfo.TestSnapshot("DISK-2", "BIOS-1", "BOARD-1", "uuid-1")
	newFP := fingerprint.Compute(newSnap)
	ok, _ := snl.Ban(newFP)
	require.True(t, ok)

	// The stored report still says DISK-1; the scan must see DISK-2.
	mock.Snap = newSnap
	res := runTask(t, snl, worker.KindAntiCheat)
	require.False(t, res.IsError(), res.Err)
	assert.True(t, res.Payload.(AntiCheatPayload).Banned)
}

func TestCollectorFailureYieldsErrorResult(t *testing.T) {
	mock := &hwinfo.MockCollector{Err: hwinfo.ErrCollectionFailed}
	snl := newTestSentinel(t, mock)

	res := runTask(t, snl, worker.KindCollect)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Err, "collect hardware snapshot")

	// The worker loop survives and serves the next task.
	mock.Err = nil
	mock.Snap = hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")
	res = runTask(t, snl, worker.KindCollect)
	assert.False(t, res.IsError(), res.Err)
}

func TestEmptySnapshotYieldsErrorResult(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.Snapshot{Components: map[string]hwinfo.Component{}}}
	snl := newTestSentinel(t, mock)

	res := runTask(t, snl, worker.KindCollect)
	assert.True(t, res.IsError())
	assert.Contains(t, res.Err, "fingerprint invalid")
}

func TestMonitoringLifecycle(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	status := snl.Monitoring()
	assert.False(t, status.Active)
	assert.Nil(t, status.LastCheck)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	snl.StartMonitoring(ctx)
	assert.True(t, snl.Monitoring().Active)

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	require.NoError(t, snl.StopMonitoring(stopCtx))
	assert.False(t, snl.Monitoring().Active)
}

func TestDriftCheckProcessPersistsBaseline(t *testing.T) {
	mock := &hwinfo.MockCollector{Snap: hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")}
	snl := newTestSentinel(t, mock)

	proc := newDriftCheckProcess(snl)
	require.NoError(t, proc.Execute(context.Background()))

	// First execution stored a baseline; a second one on changed hardware
	// rolls the baseline forward.
	mock.Snap = hwinfo.TestSnapshot("DISK-2", "BIOS-1", "BOARD-1", "uuid-1")
	require.NoError(t, proc.Execute(context.Background()))

	rep, ok := snl.reports.LoadCurrent()
	require.True(t, ok)
	assert.Equal(t, fingerprint.Compute(mock.Snap), rep.Fingerprint)
}
