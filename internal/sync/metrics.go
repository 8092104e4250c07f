package sync

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Cycle outcomes
const (
	OutcomePulled  = "pulled"
	OutcomePushed  = "pushed"
	OutcomeNoop    = "noop"
	OutcomeStale   = "stale"
	OutcomeSkipped = "skipped"
	OutcomeError   = "error"
)

// Metrics counts coordinator activity
type Metrics struct {
	Cycles    *prometheus.CounterVec
	Realtime  *prometheus.CounterVec
	Scheduled prometheus.Counter
	Duration  prometheus.Histogram
}

// NewMetrics registers sync metrics with reg. A nil reg leaves them
// unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		Cycles: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "habitmap",
			Subsystem: "sync",
			Name:      "cycles_total",
			Help:      "Reconcile cycles by outcome.",
		}, []string{"outcome"}),
		Realtime: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "habitmap",
			Subsystem: "sync",
			Name:      "realtime_events_total",
			Help:      "Remote change notifications by handling.",
		}, []string{"handling"}),
		Scheduled: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "habitmap",
			Subsystem: "sync",
			Name:      "pushes_scheduled_total",
			Help:      "Debounced pushes requested by local mutations.",
		}),
		Duration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "habitmap",
			Subsystem: "sync",
			Name:      "cycle_duration_seconds",
			Help:      "Wall time of reconcile cycles.",
			Buckets:   prometheus.DefBuckets,
		}),
	}
}

// Activity is a readout of the sync metrics in a registry
type Activity struct {
	Cycles    map[string]int
	Realtime  map[string]int
	Scheduled int
	// Seconds is the total wall time of all measured cycles
	Seconds float64
}

// TotalCycles sums cycles over all outcomes
func (a Activity) TotalCycles() int {
	n := 0
	for _, v := range a.Cycles {
		n += v
	}
	return n
}

// ReadActivity gathers the habitmap sync families from g
func ReadActivity(g prometheus.Gatherer) (Activity, error) {
	act := Activity{Cycles: map[string]int{}, Realtime: map[string]int{}}
	families, err := g.Gather()
	if err != nil {
		return act, fmt.Errorf("failed to gather sync metrics: %w", err)
	}
	for _, mf := range families {
		for _, m := range mf.GetMetric() {
			label := ""
			if pairs := m.GetLabel(); len(pairs) > 0 {
				label = pairs[0].GetValue()
			}
			switch mf.GetName() {
			case "habitmap_sync_cycles_total":
				act.Cycles[label] += int(m.GetCounter().GetValue())
			case "habitmap_sync_realtime_events_total":
				act.Realtime[label] += int(m.GetCounter().GetValue())
			case "habitmap_sync_pushes_scheduled_total":
				act.Scheduled += int(m.GetCounter().GetValue())
			case "habitmap_sync_cycle_duration_seconds":
				act.Seconds += m.GetHistogram().GetSampleSum()
			}
		}
	}
	return act, nil
}
