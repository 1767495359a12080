package engine

import "github.com/prometheus/client_golang/prometheus"

// metrics is the Prometheus instrumentation surface for one Engine
// instance. Each Engine registers into its own registry rather than the
// global default one, so multiple engine instances in one process stay
// independent.
type metrics struct {
	registry *prometheus.Registry

	ticks               prometheus.Counter
	stabilizationRounds prometheus.Counter
	editsApplied        prometheus.Counter
	editErrors          prometheus.Counter
	eventsEmitted       prometheus.Counter
	budgetExceeded      prometheus.Counter
	nodeFaults          prometheus.Counter
	ingressQueueDepth   prometheus.Gauge
}

func newMetrics() *metrics {
	reg := prometheus.NewRegistry()
	m := &metrics{
		registry: reg,
		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "ticks_total",
			Help: "Number of engine_tick calls completed.",
		}),
		stabilizationRounds: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "stabilization_rounds_total",
			Help: "Number of stabilization rounds run across all ticks.",
		}),
		editsApplied: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "edits_applied_total",
			Help: "Number of edit intents successfully applied.",
		}),
		editErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "edit_errors_total",
			Help: "Number of edit intents rejected by validation.",
		}),
		eventsEmitted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "events_emitted_total",
			Help: "Number of events produced by successful applies.",
		}),
		budgetExceeded: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "budget_exceeded_total",
			Help: "Number of times a stabilization or pass budget was hit.",
		}),
		nodeFaults: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "node_faults_total",
			Help: "Number of behavior callbacks that panicked and were contained.",
		}),
		ingressQueueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "goldencore", Subsystem: "engine", Name: "ingress_queue_depth",
			Help: "Pending external intents not yet drained.",
		}),
	}
	reg.MustRegister(m.ticks, m.stabilizationRounds, m.editsApplied, m.editErrors, m.eventsEmitted, m.budgetExceeded, m.nodeFaults, m.ingressQueueDepth)
	return m
}

// Registry exposes the engine's private Prometheus registry so a host
// process can mount it under its own /metrics handler.
func (e *Engine) Registry() *prometheus.Registry { return e.metrics.registry }
