package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evaders/hwid-sentinel/internal/hwinfo"
)

func TestComputeDeterministic(t *testing.T) {
	snap := hwinfo.TestSnapshot("DISK-123", "BIOS-456", "BOARD-789", "uuid-abc")

	first := Compute(snap)
	second := Compute(snap)

	require.True(t, first.Valid())
	assert.Equal(t, first, second)
	assert.Len(t, string(first), 64)
}

func TestComputeOrderIndependent(t *testing.T) {
	// Values chosen so that discovery order and sorted order disagree.
	snap := hwinfo.TestSnapshot("zzz-disk", "aaa-bios", "mmm-board", "kkk-uuid")

	values := []string{"aaa-bios", "kkk-uuid", "mmm-board", "zzz-disk"}
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	expected := Fingerprint(hex.EncodeToString(sum[:]))

	assert.Equal(t, expected, Compute(snap))
}

func TestComputeMissingFieldsOmitted(t *testing.T) {
	full := Compute(hwinfo.TestSnapshot("DISK-123", "BIOS-456", "BOARD-789", "uuid-abc"))
	partial := Compute(hwinfo.TestSnapshot("DISK-123", "", "BOARD-789", "uuid-abc"))

	require.True(t, partial.Valid())
	assert.NotEqual(t, full, partial)
}

func TestComputeEmptySnapshotInvalid(t *testing.T) {
	fp := Compute(hwinfo.TestSnapshot("", "", "", ""))

	assert.Equal(t, Invalid, fp)
	assert.False(t, fp.Valid())
}

func TestShort(t *testing.T) {
	fp := Compute(hwinfo.TestSnapshot("DISK-123", "", "", ""))

	short := fp.Short()
	assert.Len(t, short, 19)
	assert.True(t, strings.HasPrefix(string(fp), short[:8]))
	assert.True(t, strings.HasSuffix(string(fp), short[len(short)-8:]))

	assert.Equal(t, "", Invalid.Short())
}
