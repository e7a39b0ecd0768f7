package metrics

import (
	prom "github.com/prometheus/client_golang/prometheus"
)

// PrometheusRecorder implements Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	sets          prom.Counter
	flushes       prom.Counter
	batchSize     prom.Histogram
	notifications *prom.CounterVec
	wildcardSubs  prom.Gauge
	entities      *prom.CounterVec
	renders       prom.Counter
	paths         prom.Gauge
}

// NewPrometheusRecorder constructs the collectors and registers them on reg.
// A nil registry gets a private one.
func NewPrometheusRecorder(reg *prom.Registry) *PrometheusRecorder {
	if reg == nil {
		reg = prom.NewRegistry()
	}
	pr := &PrometheusRecorder{
		sets: prom.NewCounter(prom.CounterOpts{
			Namespace: "treestate",
			Name:      "store_sets_total",
			Help:      "Values written to the store",
		}),
		flushes: prom.NewCounter(prom.CounterOpts{
			Namespace: "treestate",
			Name:      "store_flushes_total",
			Help:      "Notification flushes delivered",
		}),
		batchSize: prom.NewHistogram(prom.HistogramOpts{
			Namespace: "treestate",
			Name:      "store_batch_size",
			Help:      "Distinct paths per change batch",
			Buckets:   []float64{1, 2, 4, 8, 16, 32, 64, 128},
		}),
		notifications: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "treestate",
			Name:      "store_notifications_total",
			Help:      "Listener invocations by subscription type",
		}, []string{"type"}),
		wildcardSubs: prom.NewGauge(prom.GaugeOpts{
			Namespace: "treestate",
			Name:      "store_wildcard_subscribers",
			Help:      "Active any-key-changed subscribers",
		}),
		entities: prom.NewCounterVec(prom.CounterOpts{
			Namespace: "treestate",
			Name:      "container_entity_events_total",
			Help:      "Container outcomes by event",
		}, []string{"event"}),
		renders: prom.NewCounter(prom.CounterOpts{
			Namespace: "treestate",
			Name:      "runtime_renders_total",
			Help:      "Component renders performed by the runtime host",
		}),
		paths: prom.NewGauge(prom.GaugeOpts{
			Namespace: "treestate",
			Name:      "store_paths",
			Help:      "Paths currently held by the store",
		}),
	}
	reg.MustRegister(pr.sets, pr.flushes, pr.batchSize, pr.notifications, pr.wildcardSubs, pr.entities, pr.renders, pr.paths)
	return pr
}

func (p *PrometheusRecorder) IncSets() {
	if p == nil {
		return
	}
	p.sets.Inc()
}

func (p *PrometheusRecorder) ObserveFlush(batchSize int) {
	if p == nil {
		return
	}
	p.flushes.Inc()
	p.batchSize.Observe(float64(batchSize))
}

func (p *PrometheusRecorder) IncNotifications(label NotificationLabel, n int) {
	if p == nil || n <= 0 {
		return
	}
	p.notifications.WithLabelValues(string(label)).Add(float64(n))
}

func (p *PrometheusRecorder) SetWildcardSubscribers(n int) {
	if p == nil {
		return
	}
	p.wildcardSubs.Set(float64(n))
}

func (p *PrometheusRecorder) IncEntity(event EntityEvent) {
	if p == nil {
		return
	}
	p.entities.WithLabelValues(string(event)).Inc()
}

func (p *PrometheusRecorder) IncRenders(n int) {
	if p == nil || n <= 0 {
		return
	}
	p.renders.Add(float64(n))
}

func (p *PrometheusRecorder) SetPaths(n int) {
	if p == nil {
		return
	}
	p.paths.Set(float64(n))
}
