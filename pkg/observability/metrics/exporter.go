// Package metrics exports supervisor events and worker pool usage as
// Prometheus metrics.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/kart-io/lifeline/pkg/supervisor"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lifeline"

// Result label values of lifeline_actions_total.
const (
	resultSuccess = "success"
	resultError   = "error"
	resultTimeout = "timeout"
)

var resourceLabels = []string{"resource", "type"}

type actionKey struct {
	resource string
	action   supervisor.Action
}

// Exporter turns supervisor events into metrics.
type Exporter struct {
	registry *prometheus.Registry

	up                *prometheus.GaugeVec
	actions           *prometheus.CounterVec
	duration          *prometheus.HistogramVec
	drops             *prometheus.CounterVec
	revivals          *prometheus.CounterVec
	restartsScheduled *prometheus.CounterVec
	restartsExhausted *prometheus.CounterVec
	restartDelay      *prometheus.GaugeVec

	mu    sync.Mutex
	begun map[actionKey]time.Time
}

// NewExporter creates an exporter on its own registry, which also carries
// the Go runtime and process collectors.
func NewExporter() (*Exporter, error) {
	reg := prometheus.NewRegistry()
	e := &Exporter{
		registry: reg,
		begun:    make(map[actionKey]time.Time),
		up: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "resource_up",
			Help:      "Whether the resource is up (1) or not (0)",
		}, resourceLabels),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Completed lifecycle actions by result",
		}, append(resourceLabels, "action", "result")),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of lifecycle actions in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5, 10, 30},
		}, append(resourceLabels, "action")),
		drops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "drops_total",
			Help:      "Unsolicited losses of the resource",
		}, resourceLabels),
		revivals: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revivals_total",
			Help:      "Times the resource came back up after being down",
		}, resourceLabels),
		restartsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_scheduled_total",
			Help:      "Automatic restarts armed",
		}, resourceLabels),
		restartsExhausted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "restarts_exhausted_total",
			Help:      "Times automatic restarts gave up",
		}, resourceLabels),
		restartDelay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "restart_delay_seconds",
			Help:      "Delay of the most recently scheduled automatic restart",
		}, resourceLabels),
	}

	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		e.up, e.actions, e.duration, e.drops, e.revivals,
		e.restartsScheduled, e.restartsExhausted, e.restartDelay,
	} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return e, nil
}

// Registry returns the registry metrics are exported from.
func (e *Exporter) Registry() *prometheus.Registry {
	return e.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (e *Exporter) Handler() http.Handler {
	return promhttp.HandlerFor(e.registry, promhttp.HandlerOpts{Registry: e.registry})
}

// Observe records ev of a resource of the given type. It matches the
// datasource observer signature once the type is converted to a string.
func (e *Exporter) Observe(resourceType string, ev supervisor.Event) {
	labels := prometheus.Labels{"resource": ev.Supervisor, "type": resourceType}

	switch ev.Type {
	case supervisor.EventUp:
		e.up.With(labels).Set(1)
	case supervisor.EventDown:
		e.up.With(labels).Set(0)
	case supervisor.EventDropped:
		e.drops.With(labels).Inc()
	case supervisor.EventRevived:
		e.revivals.With(labels).Inc()
	case supervisor.EventRestartScheduled:
		e.restartsScheduled.With(labels).Inc()
		e.restartDelay.With(labels).Set(ev.Delay.Seconds())
	case supervisor.EventRestartExhausted:
		e.restartsExhausted.With(labels).Inc()
	case supervisor.EventActionBegin:
		e.mu.Lock()
		e.begun[actionKey{ev.Supervisor, ev.Action}] = ev.Time
		e.mu.Unlock()
	case supervisor.EventActionComplete:
		result := resultSuccess
		if ev.Err != nil {
			result = resultError
		}
		e.finish(labels, ev, result)
	case supervisor.EventActionTimeout:
		e.finish(labels, ev, resultTimeout)
	}
}

func (e *Exporter) finish(labels prometheus.Labels, ev supervisor.Event, result string) {
	action := ev.Action.String()
	e.actions.MustCurryWith(labels).WithLabelValues(action, result).Inc()

	key := actionKey{ev.Supervisor, ev.Action}
	e.mu.Lock()
	start, ok := e.begun[key]
	delete(e.begun, key)
	e.mu.Unlock()

	if ok {
		e.duration.MustCurryWith(labels).WithLabelValues(action).Observe(ev.Time.Sub(start).Seconds())
	}
}
