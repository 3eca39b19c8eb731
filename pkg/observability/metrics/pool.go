package metrics

import (
	"github.com/kart-io/lifeline/pkg/infra/pool"
	"github.com/prometheus/client_golang/prometheus"
)

// PoolStatser is implemented by pool.Group.
type PoolStatser interface {
	Stats() map[pool.Type]pool.Stats
}

// PoolCollector reads worker pool statistics at scrape time.
type PoolCollector struct {
	source PoolStatser

	running   *prometheus.Desc
	capacity  *prometheus.Desc
	submitted *prometheus.Desc
	completed *prometheus.Desc
	rejected  *prometheus.Desc
	panics    *prometheus.Desc
}

var _ prometheus.Collector = (*PoolCollector)(nil)

// NewPoolCollector creates a collector over source.
func NewPoolCollector(source PoolStatser) *PoolCollector {
	desc := func(name, help string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, "pool", name), help, []string{"pool"}, nil)
	}
	return &PoolCollector{
		source:    source,
		running:   desc("running", "Workers currently running"),
		capacity:  desc("capacity", "Maximum number of workers"),
		submitted: desc("submitted_total", "Tasks submitted"),
		completed: desc("completed_total", "Tasks completed"),
		rejected:  desc("rejected_total", "Tasks rejected because the pool was full or closed"),
		panics:    desc("panics_total", "Tasks that panicked"),
	}
}

// RegisterPools adds a PoolCollector over source to the exporter's registry.
func (e *Exporter) RegisterPools(source PoolStatser) error {
	return e.registry.Register(NewPoolCollector(source))
}

// Describe implements prometheus.Collector.
func (c *PoolCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.running
	ch <- c.capacity
	ch <- c.submitted
	ch <- c.completed
	ch <- c.rejected
	ch <- c.panics
}

// Collect implements prometheus.Collector.
func (c *PoolCollector) Collect(ch chan<- prometheus.Metric) {
	for typ, s := range c.source.Stats() {
		name := string(typ)
		ch <- prometheus.MustNewConstMetric(c.running, prometheus.GaugeValue, float64(s.Running), name)
		ch <- prometheus.MustNewConstMetric(c.capacity, prometheus.GaugeValue, float64(s.Capacity), name)
		ch <- prometheus.MustNewConstMetric(c.submitted, prometheus.CounterValue, float64(s.Submitted), name)
		ch <- prometheus.MustNewConstMetric(c.completed, prometheus.CounterValue, float64(s.Completed), name)
		ch <- prometheus.MustNewConstMetric(c.rejected, prometheus.CounterValue, float64(s.Rejected), name)
		ch <- prometheus.MustNewConstMetric(c.panics, prometheus.CounterValue, float64(s.Panics), name)
	}
}
