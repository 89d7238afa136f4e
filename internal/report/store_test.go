package report

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaders/hwid-sentinel/internal/hwinfo"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

func newTestManager(t *testing.T, dataDir string, maxReports int, backup bool) *config.Manager {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	content := fmt.Sprintf(`log_level = "info"
data_dir = %q
auto_save_reports = true
compare_on_startup = false
backup_reports = %t
max_reports = %d
ban_simulator_enabled = true
background_monitoring = false
monitoring_interval = "@every 300s"
stats_tracking = true
banned_fingerprints = []
`, dataDir, backup, maxReports)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cm, warnings, err := config.InitManager(path)
	require.NoError(t, err)
	require.Empty(t, warnings)
	return cm
}

func newTestStore(t *testing.T, maxReports int, backup bool) *Store {
	t.Helper()
	cm := newTestManager(t, t.TempDir(), maxReports, backup)
	return NewStore(cm, zerolog.Nop())
}

func TestCompareWithoutBaseline(t *testing.T) {
	st := newTestStore(t, 10, false)

	status, msg := st.Compare(hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1"))
	assert.Equal(t, NoBaseline, status)
	assert.Contains(t, msg, "no previous report")
}

func TestSaveAndCompareUnchanged(t *testing.T) {
	st := newTestStore(t, 10, false)
	snap := hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")

	require.True(t, st.Save(snap))

	rep, ok := st.LoadCurrent()
	require.True(t, ok)
	assert.Equal(t, st.Fingerprint(snap), rep.Fingerprint)

	status, msg := st.Compare(snap)
	assert.Equal(t, Unchanged, status)
	assert.Contains(t, msg, "matches")
}

func TestCompareDetectsChange(t *testing.T) {
	st := newTestStore(t, 10, false)

	require.True(t, st.Save(hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")))

	status, msg := st.Compare(hwinfo.TestSnapshot("DISK-2", "BIOS-1", "BOARD-1", "uuid-1"))
	assert.Equal(t, Changed, status)
	assert.Contains(t, msg, "changed from")
}

func TestSaveOverwritesCurrent(t *testing.T) {
	st := newTestStore(t, 10, false)
	first := hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")
	second := hwinfo.TestSnapshot("DISK-2", "BIOS-1", "BOARD-1", "uuid-1")

	require.True(t, st.Save(first))
	require.True(t, st.Save(second))

	rep, ok := st.LoadCurrent()
	require.True(t, ok)
	assert.Equal(t, st.Fingerprint(second), rep.Fingerprint)
}

func TestHistoryEviction(t *testing.T) {
	const maxReports = 3
	st := newTestStore(t, maxReports, true)

	// Spread the injected clock so history mtimes order deterministically.
	base := time.Now().Add(-time.Hour)
	for i := 0; i < maxReports+2; i++ {
		tick := base.Add(time.Duration(i) * time.Minute)
		st.now = func() time.Time { return tick }
		snap := hwinfo.TestSnapshot(fmt.Sprintf("DISK-%d", i), "BIOS-1", "BOARD-1", "uuid-1")
		require.True(t, st.Save(snap))
	}

	assert.Equal(t, maxReports, st.HistoryCount())
}

func TestHistoryDisabledWhenBackupsOff(t *testing.T) {
	st := newTestStore(t, 10, false)

	require.True(t, st.Save(hwinfo.TestSnapshot("DISK-1", "BIOS-1", "BOARD-1", "uuid-1")))
	assert.Equal(t, 0, st.HistoryCount())
}

func TestDriftStatusString(t *testing.T) {
	assert.Equal(t, "no_baseline", NoBaseline.String())
	assert.Equal(t, "unchanged", Unchanged.String())
	assert.Equal(t, "changed", Changed.String())
}
