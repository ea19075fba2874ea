package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// WatchersActive is the number of currently registered watchers.
var WatchersActive = promauto.NewGauge(prometheus.GaugeOpts{
	Namespace: "sentinel",
	Subsystem: "watch",
	Name:      "watchers_active",
	Help:      "Number of currently active watchers",
})

// TicksEvaluated counts price ticks evaluated, by watcher mode.
var TicksEvaluated = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "watch",
	Name:      "ticks_evaluated_total",
	Help:      "Total price ticks evaluated against trigger conditions",
}, []string{"mode"})

// TriggersFired counts trigger decisions that armed, by watcher mode.
var TriggersFired = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "watch",
	Name:      "triggers_fired_total",
	Help:      "Total triggers fired",
}, []string{"mode"})

// ExecutionOutcomes counts execution pipeline terminal states.
var ExecutionOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "watch",
	Name:      "execution_outcomes_total",
	Help:      "Terminal states reached by the stop-loss execution pipeline",
}, []string{"state"})

// StreamsOpened counts price stream sessions opened.
var StreamsOpened = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "stream",
	Name:      "sessions_opened_total",
	Help:      "Total price stream sessions opened",
})

// ParseErrors counts malformed stream messages that were dropped.
var ParseErrors = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "stream",
	Name:      "parse_errors_total",
	Help:      "Total malformed stream messages dropped",
})

// NotifyFailures counts direct messages that could not be delivered.
var NotifyFailures = promauto.NewCounter(prometheus.CounterOpts{
	Namespace: "sentinel",
	Subsystem: "notify",
	Name:      "failures_total",
	Help:      "Total notification deliveries that failed",
})
