package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Container lifecycle metrics
	ContainersTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "ocre_containers_total",
			Help: "Number of containers by status",
		},
		[]string{"status"},
	)

	ContainersCreatedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocre_containers_created_total",
			Help: "Total number of containers created",
		},
	)

	ContainersFailedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocre_containers_failed_total",
			Help: "Total number of containers whose worker exited with a non-zero code",
		},
	)

	ContainerCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocre_container_create_duration_seconds",
			Help:    "Time taken for the engine to create a container instance",
			Buckets: prometheus.DefBuckets,
		},
	)

	ContainerStartDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocre_container_start_duration_seconds",
			Help:    "Time from Start() to the engine posting its start signal",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Image metrics
	ImagesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_images_total",
			Help: "Total number of images under the images directory",
		},
	)

	// Event queue and dispatch metrics
	EventQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_event_queue_depth",
			Help: "Current number of events waiting in the dispatch queue",
		},
	)

	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocre_events_published_total",
			Help: "Total number of events published by resource type",
		},
		[]string{"resource_type"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocre_events_dropped_total",
			Help: "Total number of events dropped because the queue was full",
		},
		[]string{"resource_type"},
	)

	DispatchLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "ocre_dispatch_latency_seconds",
			Help:    "Time taken to route one dispatched event to its module's dispatcher callback",
			Buckets: prometheus.DefBuckets,
		},
	)

	DispatchedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "ocre_events_dispatched_total",
			Help: "Total number of events handed to a module dispatcher",
		},
	)

	// Resource manager metrics
	TimersActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_timers_active",
			Help: "Number of timers currently registered across all modules",
		},
	)

	GPIOLinesConfigured = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_gpio_lines_configured",
			Help: "Number of GPIO lines currently configured",
		},
	)

	SensorSubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_sensor_subscriptions_active",
			Help: "Number of active sensor channel subscriptions",
		},
	)

	MessagingSubscriptionsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_messaging_subscriptions_active",
			Help: "Number of active messaging topic subscriptions",
		},
	)

	DisplayFlushesTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "ocre_display_flushes_total",
			Help: "Number of display flush calls completed since the engine started",
		},
	)

	// IPC metrics
	IPCRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "ocre_ipc_requests_total",
			Help: "Total number of IPC requests handled by opcode and status",
		},
		[]string{"opcode", "status"},
	)

	IPCRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "ocre_ipc_request_duration_seconds",
			Help:    "IPC request duration in seconds by opcode",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"opcode"},
	)
)

func init() {
	prometheus.MustRegister(
		ContainersTotal,
		ContainersCreatedTotal,
		ContainersFailedTotal,
		ContainerCreateDuration,
		ContainerStartDuration,
		ImagesTotal,
		EventQueueDepth,
		EventsPublishedTotal,
		EventsDroppedTotal,
		DispatchLatency,
		DispatchedTotal,
		TimersActive,
		GPIOLinesConfigured,
		SensorSubscriptionsActive,
		MessagingSubscriptionsActive,
		DisplayFlushesTotal,
		IPCRequestsTotal,
		IPCRequestDuration,
	)
}

// Handler returns the Prometheus HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations.
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer.
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram.
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	histogram.Observe(time.Since(t.start).Seconds())
}

// ObserveDurationVec records the duration to a histogram vec with labels.
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	histogram.WithLabelValues(labels...).Observe(time.Since(t.start).Seconds())
}

// Duration returns the elapsed time since the timer started.
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
