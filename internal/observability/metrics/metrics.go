package metrics

import "github.com/prometheus/client_golang/prometheus"

// CallWindowMetrics exposes counters/histograms for timezone resolution and
// outbound call gating.
type CallWindowMetrics struct {
	resolveTotal    *prometheus.CounterVec
	decisionsTotal  *prometheus.CounterVec
	deferredTotal   prometheus.Counter
	dispatchTotal   *prometheus.CounterVec
	dispatchLatency *prometheus.HistogramVec
	queueDepth      prometheus.Gauge
}

func NewCallWindowMetrics(reg prometheus.Registerer) *CallWindowMetrics {
	m := &CallWindowMetrics{
		resolveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callwindow",
			Subsystem: "timezone",
			Name:      "resolve_total",
			Help:      "Phone number timezone lookups by outcome",
		}, []string{"source"}),
		decisionsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callwindow",
			Subsystem: "gate",
			Name:      "decisions_total",
			Help:      "Outbound call gate decisions",
		}, []string{"allowed", "reason"}),
		deferredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "callwindow",
			Subsystem: "deferral",
			Name:      "scheduled_total",
			Help:      "Calls deferred to the next open window",
		}),
		dispatchTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "callwindow",
			Subsystem: "deferral",
			Name:      "dispatch_total",
			Help:      "Deferred calls processed by the dispatcher",
		}, []string{"status"}),
		dispatchLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "callwindow",
			Subsystem: "deferral",
			Name:      "dispatch_latency_seconds",
			Help:      "Delay between a deferred call's due time and its dispatch",
			Buckets:   prometheus.ExponentialBuckets(1, 4, 8),
		}, []string{"status"}),
		queueDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "callwindow",
			Subsystem: "deferral",
			Name:      "due_batch_size",
			Help:      "Number of due calls found on the last poll",
		}),
	}
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	reg.MustRegister(m.resolveTotal, m.decisionsTotal, m.deferredTotal, m.dispatchTotal, m.dispatchLatency, m.queueDepth)
	return m
}

// ObserveResolve records a lookup outcome ("resolved" or "unresolved").
func (m *CallWindowMetrics) ObserveResolve(source string) {
	if m == nil {
		return
	}
	m.resolveTotal.WithLabelValues(source).Inc()
}

func (m *CallWindowMetrics) ObserveDecision(allowed bool, reason string) {
	if m == nil {
		return
	}
	label := "false"
	if allowed {
		label = "true"
	}
	m.decisionsTotal.WithLabelValues(label, reason).Inc()
}

func (m *CallWindowMetrics) ObserveDeferred() {
	if m == nil {
		return
	}
	m.deferredTotal.Inc()
}

func (m *CallWindowMetrics) ObserveDispatch(status string, lagSeconds float64) {
	if m == nil {
		return
	}
	m.dispatchTotal.WithLabelValues(status).Inc()
	if lagSeconds < 0 {
		lagSeconds = 0
	}
	m.dispatchLatency.WithLabelValues(status).Observe(lagSeconds)
}

func (m *CallWindowMetrics) SetDueBatch(n int) {
	if m == nil {
		return
	}
	m.queueDepth.Set(float64(n))
}
