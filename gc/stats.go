package gc

import "github.com/prometheus/client_golang/prometheus"

// Stats exposes collection counters through the standard
// prometheus.Registry pattern, the way the rest of the retrieved pack's
// services instrument their runtime (grounded on
// Hawthorne001-aistore/stats/common_prom.go's registry-of-named-counters
// convention, adapted here to GC-specific counters rather than request
// counters).
type Stats struct {
	collections   *prometheus.CounterVec
	bytesCopied   prometheus.Counter
	objsPromoted  prometheus.Counter
	scanWorkUnits prometheus.Counter
}

// NewStats registers a fresh set of GC counters with reg.
func NewStats(reg prometheus.Registerer) *Stats {
	s := &Stats{
		collections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gencopy",
			Name:      "collections_total",
			Help:      "Number of GC cycles run, labeled by kind (nursery|mature).",
		}, []string{"kind"}),
		bytesCopied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gencopy",
			Name:      "bytes_copied_total",
			Help:      "Bytes copied by the evacuating collector across its lifetime.",
		}),
		objsPromoted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gencopy",
			Name:      "objects_promoted_total",
			Help:      "Objects evacuated out of the nursery into the mature generation.",
		}),
		scanWorkUnits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "gencopy",
			Name:      "scan_work_units_total",
			Help:      "Edge-processing packets executed across all workers.",
		}),
	}
	reg.MustRegister(s.collections, s.bytesCopied, s.objsPromoted, s.scanWorkUnits)
	return s
}

// RecordCollection increments the per-kind collection counter.
func (s *Stats) RecordCollection(kind GCKind) {
	s.collections.WithLabelValues(kind.String()).Inc()
}

// RecordCopy accounts for one evacuated object of the given size.
func (s *Stats) RecordCopy(bytes int, promoted bool) {
	s.bytesCopied.Add(float64(bytes))
	if promoted {
		s.objsPromoted.Inc()
	}
}

// RecordScanWork accounts for one executed edge-processing packet.
func (s *Stats) RecordScanWork() {
	s.scanWorkUnits.Inc()
}
