package prometheus

import (
	"errors"
	"fmt"
	"time"

	"github.com/karlch/go-uitask/core"
	prom "github.com/prometheus/client_golang/prometheus"
)

// ExporterOptions controls collector configuration.
type ExporterOptions struct {
	DurationBuckets []float64
}

// MetricsExporter adapts core.Metrics to Prometheus collectors.
type MetricsExporter struct {
	taskDurationSeconds *prom.HistogramVec
	taskAbandonedTotal  *prom.CounterVec
	bridgeWaitSeconds   *prom.HistogramVec
	workerPanicTotal    *prom.CounterVec
	poolQueueDepth      *prom.GaugeVec
}

var _ core.Metrics = (*MetricsExporter)(nil)

// NewMetricsExporter creates and registers Prometheus collectors for core.Metrics.
func NewMetricsExporter(namespace string, reg prom.Registerer, opts ExporterOptions) (*MetricsExporter, error) {
	if namespace == "" {
		namespace = "uitask"
	}
	if reg == nil {
		reg = prom.DefaultRegisterer
	}
	buckets := opts.DurationBuckets
	if len(buckets) == 0 {
		buckets = prom.DefBuckets
	}

	durationVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "task_duration_seconds",
		Help:      "Task instance drive duration in seconds, invocation to completion or abandonment.",
		Buckets:   buckets,
	}, []string{"task", "policy"})
	abandonedVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "task_abandoned_total",
		Help:      "Total number of latest-wins instances abandoned at a checkpoint.",
	}, []string{"task"})
	bridgeWaitVec := prom.NewHistogramVec(prom.HistogramOpts{
		Namespace: namespace,
		Name:      "bridge_wait_seconds",
		Help:      "Bridge call wait duration in seconds, pumping included.",
		Buckets:   buckets,
	}, []string{"pool"})
	panicVec := prom.NewCounterVec(prom.CounterOpts{
		Namespace: namespace,
		Name:      "worker_panic_total",
		Help:      "Total number of panics in bridged callables.",
	}, []string{"pool"})
	queueDepthVec := prom.NewGaugeVec(prom.GaugeOpts{
		Namespace: namespace,
		Name:      "pool_queue_depth",
		Help:      "Current worker pool queue depth.",
	}, []string{"pool"})

	var err error
	if durationVec, err = registerCollector(reg, durationVec); err != nil {
		return nil, err
	}
	if abandonedVec, err = registerCollector(reg, abandonedVec); err != nil {
		return nil, err
	}
	if bridgeWaitVec, err = registerCollector(reg, bridgeWaitVec); err != nil {
		return nil, err
	}
	if panicVec, err = registerCollector(reg, panicVec); err != nil {
		return nil, err
	}
	if queueDepthVec, err = registerCollector(reg, queueDepthVec); err != nil {
		return nil, err
	}

	return &MetricsExporter{
		taskDurationSeconds: durationVec,
		taskAbandonedTotal:  abandonedVec,
		bridgeWaitSeconds:   bridgeWaitVec,
		workerPanicTotal:    panicVec,
		poolQueueDepth:      queueDepthVec,
	}, nil
}

// RecordTaskDuration records task instance drive duration.
func (m *MetricsExporter) RecordTaskDuration(taskName string, policy core.Policy, duration time.Duration) {
	if m == nil {
		return
	}
	m.taskDurationSeconds.WithLabelValues(normalizeLabel(taskName, "unknown"), policyLabel(policy)).Observe(duration.Seconds())
}

// RecordTaskAbandoned records supersession events.
func (m *MetricsExporter) RecordTaskAbandoned(taskName string) {
	if m == nil {
		return
	}
	m.taskAbandonedTotal.WithLabelValues(normalizeLabel(taskName, "unknown")).Inc()
}

// RecordBridgeWait records bridge call wait duration.
func (m *MetricsExporter) RecordBridgeWait(poolID string, duration time.Duration) {
	if m == nil {
		return
	}
	m.bridgeWaitSeconds.WithLabelValues(normalizeLabel(poolID, "unknown")).Observe(duration.Seconds())
}

// RecordWorkerPanic records worker callable panic events.
func (m *MetricsExporter) RecordWorkerPanic(poolID string) {
	if m == nil {
		return
	}
	m.workerPanicTotal.WithLabelValues(normalizeLabel(poolID, "unknown")).Inc()
}

// RecordQueueDepth records worker pool queue depth.
func (m *MetricsExporter) RecordQueueDepth(poolID string, depth int) {
	if m == nil {
		return
	}
	m.poolQueueDepth.WithLabelValues(normalizeLabel(poolID, "unknown")).Set(float64(depth))
}

func normalizeLabel(v string, fallback string) string {
	if v == "" {
		return fallback
	}
	return v
}

func policyLabel(policy core.Policy) string {
	switch policy {
	case core.PolicyIndependent:
		return "independent"
	case core.PolicyLatestWins:
		return "latest_wins"
	default:
		return "unknown"
	}
}

func registerCollector[T prom.Collector](reg prom.Registerer, collector T) (T, error) {
	err := reg.Register(collector)
	if err == nil {
		return collector, nil
	}

	var alreadyRegisteredErr prom.AlreadyRegisteredError
	if errors.As(err, &alreadyRegisteredErr) {
		existing, ok := alreadyRegisteredErr.ExistingCollector.(T)
		if !ok {
			return collector, fmt.Errorf("collector type mismatch for %T", collector)
		}
		return existing, nil
	}

	return collector, err
}
