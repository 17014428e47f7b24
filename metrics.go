package ringstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics instruments a Stream's buffer/cache occupancy and seek
// classification counts, grounded on the promauto.NewGauge/NewCounter
// package-level metric pattern in
// grafana-tempo/friggdb/pool/pool.go. A Stream opened with a nil
// *Metrics simply skips instrumentation.
type Metrics struct {
	BufferSize     prometheus.Gauge
	CacheSize      prometheus.Gauge
	SeekTotal      *prometheus.CounterVec
	ProducerErrors prometheus.Counter
}

// NewMetrics registers a Metrics set against reg. A nil reg uses a
// private prometheus.NewRegistry() rather than the global default
// registry, so opening multiple Streams in tests (or in a process
// that embeds several) never collides or pollutes process-wide
// metrics.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)
	return &Metrics{
		BufferSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ringstream",
			Name:      "buffer_size_bytes",
			Help:      "Unread bytes currently held in the ring's live window.",
		}),
		CacheSize: f.NewGauge(prometheus.GaugeOpts{
			Namespace: "ringstream",
			Name:      "cache_size_bytes",
			Help:      "Resident bytes currently held in the ring's cache window.",
		}),
		SeekTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "ringstream",
			Name:      "seek_total",
			Help:      "Seek requests resolved, by classification.",
		}, []string{"class"}),
		ProducerErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: "ringstream",
			Name:      "producer_errors_total",
			Help:      "Unrecoverable source read/seek failures observed by the producer loop.",
		}),
	}
}

func (m *Metrics) observeSizes(bufferSize, cacheSize int) {
	if m == nil {
		return
	}
	m.BufferSize.Set(float64(bufferSize))
	m.CacheSize.Set(float64(cacheSize))
}

func (m *Metrics) observeSeek(class string) {
	if m == nil {
		return
	}
	m.SeekTotal.WithLabelValues(class).Inc()
}

func (m *Metrics) observeProducerError() {
	if m == nil {
		return
	}
	m.ProducerErrors.Inc()
}
