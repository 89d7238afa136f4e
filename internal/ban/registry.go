package ban

import (
	"fmt"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"

	"github.com/evaders/hwid-sentinel/internal/fingerprint"
	"github.com/evaders/hwid-sentinel/pkg/config"
)

// Registry is the simulated deny-list: a set of banned fingerprints persisted
// through the settings manager. All operations are idempotent-safe; repeated
// identical calls report state truthfully instead of erroring.
type Registry struct {
	mu      sync.Mutex
	cm      *config.Manager
	banned  map[fingerprint.Fingerprint]struct{}
	log     zerolog.Logger
	sizeGge prometheus.Gauge
}

// NewRegistry loads the persisted banned set from the settings manager.
// When reg is non-nil a gauge for the set size is registered on it.
func NewRegistry(cm *config.Manager, log zerolog.Logger, reg prometheus.Registerer) *Registry {
	r := &Registry{
		cm:     cm,
		banned: make(map[fingerprint.Fingerprint]struct{}),
		log:    log.With().Str("component", "ban_registry").Logger(),
	}
	for _, fp := range cm.BannedFingerprints() {
		if fp != "" {
			r.banned[fingerprint.Fingerprint(fp)] = struct{}{}
		}
	}
	if reg != nil {
		r.sizeGge = promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Namespace: "hwid_sentinel",
			Name:      "banned_fingerprints",
			Help:      "Current size of the banned fingerprint set.",
		})
		r.sizeGge.Set(float64(len(r.banned)))
	}
	return r
}

// Ban adds a fingerprint to the set. A second identical call is a no-op that
// reports "already banned".
func (r *Registry) Ban(fp fingerprint.Fingerprint) (bool, string) {
	if !fp.Valid() {
		return false, "invalid fingerprint"
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.banned[fp]; exists {
		return false, fmt.Sprintf("fingerprint %s is already banned", fp.Short())
	}
	r.banned[fp] = struct{}{}
	r.persist()
	r.log.Info().Str("fingerprint", fp.Short()).Msg("Fingerprint banned")
	return true, fmt.Sprintf("fingerprint %s has been banned", fp.Short())
}

// Unban removes a fingerprint from the set.
func (r *Registry) Unban(fp fingerprint.Fingerprint) (bool, string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.banned[fp]; !exists {
		return false, fmt.Sprintf("fingerprint %s is not banned", fp.Short())
	}
	delete(r.banned, fp)
	r.persist()
	r.log.Info().Str("fingerprint", fp.Short()).Msg("Fingerprint unbanned")
	return true, fmt.Sprintf("fingerprint %s has been unbanned", fp.Short())
}

// IsBanned reports membership. An invalid fingerprint is never banned.
func (r *Registry) IsBanned(fp fingerprint.Fingerprint) bool {
	if !fp.Valid() {
		return false
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	_, exists := r.banned[fp]
	return exists
}

// ClearAll empties the set and returns how many entries were removed.
func (r *Registry) ClearAll() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	count := len(r.banned)
	r.banned = make(map[fingerprint.Fingerprint]struct{})
	r.persist()
	r.log.Info().Int("count", count).Msg("All bans cleared")
	return count
}

// List returns the banned fingerprints in unspecified order.
func (r *Registry) List() []fingerprint.Fingerprint {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]fingerprint.Fingerprint, 0, len(r.banned))
	for fp := range r.banned {
		out = append(out, fp)
	}
	return out
}

func (r *Registry) persist() {
	fps := make([]string, 0, len(r.banned))
	for fp := range r.banned {
		fps = append(fps, fp.String())
	}
	if err := r.cm.SetBannedFingerprints(fps); err != nil {
		r.log.Error().Err(err).Msg("Failed to persist banned fingerprints")
	}
	if r.sizeGge != nil {
		r.sizeGge.Set(float64(len(r.banned)))
	}
}
