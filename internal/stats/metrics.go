package stats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	checksTotal  prometheus.Counter
	changesTotal prometheus.Counter
}

func newMetrics(reg prometheus.Registerer) *metrics {
	return &metrics{
		checksTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "hwid_sentinel",
			Name:      "checks_total",
			Help:      "Total fingerprint comparisons performed.",
		}),
		changesTotal: promauto.With(reg).NewCounter(prometheus.CounterOpts{
			Namespace: "hwid_sentinel",
			Name:      "changes_total",
			Help:      "Total fingerprint changes detected.",
		}),
	}
}
