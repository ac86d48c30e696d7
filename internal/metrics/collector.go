// Package metrics provides internal prometheus metrics collection.
// This package is internal and should not be imported by external projects.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Collector aggregates the conductor's prometheus metrics.
type Collector struct {
	// Turn metrics
	turnsTotal     *prometheus.CounterVec
	turnDuration   prometheus.Histogram
	actionsTotal   *prometheus.CounterVec
	parseErrors    prometheus.Counter

	// Remote task metrics
	rpcCallsTotal  *prometheus.CounterVec
	taskWaitTime   prometheus.Histogram

	// Model metrics
	modelCalls     *prometheus.CounterVec
	modelTokens    prometheus.Counter
}

// NewCollector creates a collector registered on the given registerer.
// A nil registerer uses the default prometheus registry.
func NewCollector(namespace string, reg prometheus.Registerer) *Collector {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Collector{
		turnsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "turns_total",
			Help:      "Total turns executed, labeled by outcome.",
		}, []string{"outcome"}),
		turnDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "turn_duration_seconds",
			Help:      "Duration of a single turn.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}),
		actionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actions_total",
			Help:      "Actions executed, labeled by type and outcome.",
		}, []string{"type", "outcome"}),
		parseErrors: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_parse_errors_total",
			Help:      "Recoverable action parse errors.",
		}),
		rpcCallsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rpc_calls_total",
			Help:      "Remote task RPC calls, labeled by method and outcome.",
		}, []string{"method", "outcome"}),
		taskWaitTime: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_wait_seconds",
			Help:      "Time spent waiting for remote tasks to reach a terminal state.",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 14),
		}),
		modelCalls: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_calls_total",
			Help:      "Model completion calls, labeled by outcome.",
		}, []string{"outcome"}),
		modelTokens: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "model_tokens_total",
			Help:      "Total tokens reported by the model provider.",
		}),
	}
}

// outcomeLabel maps an error presence to a metric label.
func outcomeLabel(err bool) string {
	if err {
		return "error"
	}
	return "ok"
}

// RecordTurn records a completed turn.
func (c *Collector) RecordTurn(hasError bool, duration time.Duration) {
	if c == nil {
		return
	}
	c.turnsTotal.WithLabelValues(outcomeLabel(hasError)).Inc()
	c.turnDuration.Observe(duration.Seconds())
}

// RecordAction records one executed action.
func (c *Collector) RecordAction(actionType string, isError bool) {
	if c == nil {
		return
	}
	c.actionsTotal.WithLabelValues(actionType, outcomeLabel(isError)).Inc()
}

// RecordParseError records one recoverable parse error.
func (c *Collector) RecordParseError() {
	if c == nil {
		return
	}
	c.parseErrors.Inc()
}

// RecordRPC records one remote task RPC call.
func (c *Collector) RecordRPC(method string, isError bool) {
	if c == nil {
		return
	}
	c.rpcCallsTotal.WithLabelValues(method, outcomeLabel(isError)).Inc()
}

// RecordTaskWait records the time a caller waited for a remote task.
func (c *Collector) RecordTaskWait(d time.Duration) {
	if c == nil {
		return
	}
	c.taskWaitTime.Observe(d.Seconds())
}

// RecordModelCall records one model completion call.
func (c *Collector) RecordModelCall(isError bool, totalTokens int) {
	if c == nil {
		return
	}
	c.modelCalls.WithLabelValues(outcomeLabel(isError)).Inc()
	if totalTokens > 0 {
		c.modelTokens.Add(float64(totalTokens))
	}
}
