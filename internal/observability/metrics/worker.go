package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type WorkerMetrics struct {
	registry *prometheus.Registry

	stageTotal    *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	stageInFlight prometheus.Gauge
	scanVerdicts  *prometheus.CounterVec
	ocrCharacters *prometheus.HistogramVec
	queueLag      *prometheus.HistogramVec
}

func NewWorkerMetrics(service string) *WorkerMetrics {
	registry := prometheus.NewRegistry()

	stageTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "stage_total",
			Help:      "Total executed pipeline stages by status.",
		},
		[]string{"service", "stage", "status"},
	)
	stageDuration := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "stage_duration_seconds",
			Help:      "Pipeline stage duration in seconds by status.",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"service", "stage", "status"},
	)
	stageInFlight := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "stage_in_flight",
			Help:      "Number of in-flight pipeline stage executions.",
			ConstLabels: prometheus.Labels{
				"service": service,
			},
		},
	)
	scanVerdicts := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "docstream",
			Subsystem: "scanner",
			Name:      "verdicts_total",
			Help:      "Total malware scan verdicts by outcome.",
		},
		[]string{"service", "verdict"},
	)
	ocrCharacters := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "ocr",
			Name:      "recognized_characters",
			Help:      "Distribution of recognized characters per OCR run.",
			Buckets:   []float64{0, 50, 100, 250, 500, 1000, 2500, 5000, 10000},
		},
		[]string{"service"},
	)
	queueLag := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "docstream",
			Subsystem: "worker",
			Name:      "queue_lag_seconds",
			Help:      "Delay between document upload and processing start.",
			Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 120, 300, 600},
		},
		[]string{"service"},
	)

	registry.MustRegister(stageTotal, stageDuration, stageInFlight, scanVerdicts, ocrCharacters, queueLag)

	return &WorkerMetrics{
		registry:      registry,
		stageTotal:    stageTotal,
		stageDuration: stageDuration,
		stageInFlight: stageInFlight,
		scanVerdicts:  scanVerdicts,
		ocrCharacters: ocrCharacters,
		queueLag:      queueLag,
	}
}

func (m *WorkerMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *WorkerMetrics) StartStage() {
	m.stageInFlight.Inc()
}

func (m *WorkerMetrics) FinishStage(service, stage string, duration time.Duration, err error) {
	m.stageInFlight.Dec()

	status := "success"
	if err != nil {
		status = "error"
	}

	m.stageTotal.WithLabelValues(service, stage, status).Inc()
	m.stageDuration.WithLabelValues(service, stage, status).Observe(duration.Seconds())
}

func (m *WorkerMetrics) RecordScanVerdict(service, verdict string) {
	if verdict == "" {
		verdict = "unknown"
	}
	m.scanVerdicts.WithLabelValues(service, verdict).Inc()
}

func (m *WorkerMetrics) ObserveOCRCharacters(service string, count int) {
	if count < 0 {
		return
	}
	m.ocrCharacters.WithLabelValues(service).Observe(float64(count))
}

func (m *WorkerMetrics) ObserveQueueLag(service string, lag time.Duration) {
	if lag < 0 {
		return
	}
	m.queueLag.WithLabelValues(service).Observe(lag.Seconds())
}
