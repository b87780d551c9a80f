package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type PipelineMetrics struct {
	registry *prometheus.Registry

	documentsTotal    *prometheus.CounterVec
	documentDuration  *prometheus.HistogramVec
	inferenceAttempts *prometheus.CounterVec
	gateWaiting       prometheus.GaugeFunc
	gateInFlight      prometheus.GaugeFunc
}

// GateReader exposes the concurrency-gate counters the gauges sample.
type GateReader interface {
	QueueDepth() int64
	InFlight() int64
}

func NewPipelineMetrics(service string, gate GateReader) *PipelineMetrics {
	registry := prometheus.NewRegistry()

	documentsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsorter",
			Subsystem: "pipeline",
			Name:      "documents_total",
			Help:      "Total processed documents by outcome.",
		},
		[]string{"service", "outcome"},
	)
	documentDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docsorter",
			Subsystem: "pipeline",
			Name:      "document_duration_seconds",
			Help:      "Per-document pipeline duration in seconds by outcome.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "outcome"},
	)
	inferenceAttempts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docsorter",
			Subsystem: "inference",
			Name:      "attempts_total",
			Help:      "Inference call attempts by model and result.",
		},
		[]string{"model", "result"},
	)
	gateWaiting := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "docsorter",
			Subsystem:   "inference",
			Name:        "gate_waiting",
			Help:        "Callers currently blocked on the concurrency gate.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		func() float64 { return float64(gate.QueueDepth()) },
	)
	gateInFlight := prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace:   "docsorter",
			Subsystem:   "inference",
			Name:        "gate_in_flight",
			Help:        "Inference calls currently holding a gate slot.",
			ConstLabels: prometheus.Labels{"service": service},
		},
		func() float64 { return float64(gate.InFlight()) },
	)

	registry.MustRegister(documentsTotal, documentDuration, inferenceAttempts, gateWaiting, gateInFlight)

	return &PipelineMetrics{
		registry:          registry,
		documentsTotal:    documentsTotal,
		documentDuration:  documentDuration,
		inferenceAttempts: inferenceAttempts,
		gateWaiting:       gateWaiting,
		gateInFlight:      gateInFlight,
	}
}

func (m *PipelineMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *PipelineMetrics) FinishDocument(service string, duration time.Duration, err error) {
	outcome := "succeeded"
	if err != nil {
		outcome = "failed"
	}
	m.documentsTotal.WithLabelValues(service, outcome).Inc()
	m.documentDuration.WithLabelValues(service, outcome).Observe(duration.Seconds())
}

func (m *PipelineMetrics) RecordAttempt(model string, err error) {
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.inferenceAttempts.WithLabelValues(model, result).Inc()
}
