// Package metrics exports simulator and accessor activity as Prometheus
// metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/roach88/lifetimes/internal/accessor"
	"github.com/roach88/lifetimes/internal/refgraph"
)

const namespace = "lifetimes"

// Collector implements refgraph.Observer. Its ObserveAccess method is an
// accessor.AccessObserver.
type Collector struct {
	created    prometheus.Counter
	destroyed  prometheus.Counter
	live       prometheus.Gauge
	references *prometheus.CounterVec
	released   *prometheus.CounterVec
	weakClears prometheus.Counter
	dangling   prometheus.Counter
	accesses   *prometheus.CounterVec
	misses     *prometheus.CounterVec
	clamps     prometheus.Counter
}

// NewCollector creates a collector and registers it with reg. A nil reg
// leaves the metrics unregistered.
func NewCollector(reg prometheus.Registerer) (*Collector, error) {
	c := &Collector{
		created: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "objects", Name: "created_total",
			Help: "Objects allocated.",
		}),
		destroyed: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "objects", Name: "destroyed_total",
			Help: "Objects destroyed after losing their last strong reference.",
		}),
		live: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "objects", Name: "live",
			Help: "Objects currently live.",
		}),
		references: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "references", Name: "added_total",
			Help: "References added, by kind.",
		}, []string{"kind"}),
		released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "references", Name: "released_total",
			Help: "References released, by kind.",
		}, []string{"kind"}),
		weakClears: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "references", Name: "weak_cleared_total",
			Help: "Weak references emptied by their target's destruction.",
		}),
		dangling: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "references", Name: "dangling_reads_total",
			Help: "Unowned references read after their target was destroyed.",
		}),
		accesses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "accessor", Name: "operations_total",
			Help: "Accessor container operations, by container and operation.",
		}, []string{"container", "op"}),
		misses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "accessor", Name: "misses_total",
			Help: "Reads that ran the lazy producer or fell back to the persisted default.",
		}, []string{"container"}),
		clamps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "accessor", Name: "clamped_writes_total",
			Help: "Clamped writes moved onto a bound.",
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, col := range []prometheus.Collector{
		c.created, c.destroyed, c.live, c.references, c.released,
		c.weakClears, c.dangling, c.accesses, c.misses, c.clamps,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

// OnEvent implements refgraph.Observer.
func (c *Collector) OnEvent(e refgraph.Event) {
	switch e.Type {
	case refgraph.EventObjectCreated:
		c.created.Inc()
		c.live.Inc()
	case refgraph.EventObjectDestroyed:
		c.destroyed.Inc()
		c.live.Dec()
	case refgraph.EventReferenceAdded:
		c.references.WithLabelValues(e.Kind.String()).Inc()
	case refgraph.EventReferenceReleased:
		c.released.WithLabelValues(e.Kind.String()).Inc()
	case refgraph.EventWeakCleared:
		c.weakClears.Inc()
	case refgraph.EventDanglingRead:
		c.dangling.Inc()
	}
}

// ObserveAccess counts one accessor operation.
func (c *Collector) ObserveAccess(a accessor.Access) {
	c.accesses.WithLabelValues(a.Container, a.Op).Inc()
	switch {
	case a.Adjusted:
		c.clamps.Inc()
	case a.Op == "get" && !a.Hit && a.Container != accessor.ContainerClamped:
		c.misses.WithLabelValues(a.Container).Inc()
	}
}
