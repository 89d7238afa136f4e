package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"

	"github.com/evaders/hwid-sentinel/internal/hwinfo"
)

// Fingerprint is a hex-encoded SHA-256 digest over the canonical identifying
// subset of a Snapshot. The zero value is Invalid.
type Fingerprint string

// Invalid is the fingerprint of a snapshot with no identifying fields.
// It is never a legitimate digest; treating it as one would make every
// data-less host collide.
const Invalid Fingerprint = ""

// canonicalFields is the identifying subset hashed into the fingerprint.
var canonicalFields = []struct {
	component string
	field     string
}{
	{hwinfo.ComponentDisk, hwinfo.FieldSerial},
	{hwinfo.ComponentBIOS, hwinfo.FieldSerial},
	{hwinfo.ComponentMotherboard, hwinfo.FieldSerial},
	{hwinfo.ComponentHost, hwinfo.FieldUUID},
}

// Compute derives the fingerprint of a snapshot. It is pure and total:
// missing fields are omitted from the digest, and a snapshot with no
// identifying fields at all yields Invalid. The field values are sorted
// before joining so discovery order never affects the result.
func Compute(snap hwinfo.Snapshot) Fingerprint {
	values := make([]string, 0, len(canonicalFields))
	for _, cf := range canonicalFields {
		if v, ok := snap.Field(cf.component, cf.field); ok {
			values = append(values, v)
		}
	}
	if len(values) == 0 {
		return Invalid
	}

	sort.Strings(values)
	sum := sha256.Sum256([]byte(strings.Join(values, "|")))
	return Fingerprint(hex.EncodeToString(sum[:]))
}

// Valid reports whether f is a usable fingerprint.
func (f Fingerprint) Valid() bool {
	return f != Invalid
}

// Short returns an abbreviated form for display and log output.
func (f Fingerprint) Short() string {
	s := string(f)
	if len(s) <= 16 {
		return s
	}
	return s[:8] + "..." + s[len(s)-8:]
}

func (f Fingerprint) String() string {
	return string(f)
}
