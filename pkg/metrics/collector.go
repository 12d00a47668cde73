package metrics

import (
	"os"
	"time"

	"github.com/project-ocre/ocre/pkg/ocrectx"
)

// counter is satisfied by any resource manager exposing a single outstanding
// count, so this package doesn't need to import pkg/resource just to read a
// gauge (which would cycle back, since those managers import pkg/metrics to
// bump their own counters).
type counter interface {
	Count() int
}

// subscriptionCounter is the sensor/messaging equivalent of counter, named
// for what it actually reports.
type subscriptionCounter interface {
	SubscriptionCount() int
}

// Collector periodically samples a Context and its resource managers into
// the package's gauges. Counters (created/failed/dropped totals) are
// incremented at the source instead; the Collector only ever owns gauges.
type Collector struct {
	ctx        *ocrectx.Context
	queueDepth func() int
	timers     counter
	gpio       counter
	sensors    subscriptionCounter
	messaging  subscriptionCounter
	display    counter

	stopCh chan struct{}
}

// NewCollector builds a Collector sampling ctx and the given resource
// managers. Any argument may be nil to skip that gauge.
func NewCollector(ctx *ocrectx.Context, queueDepth func() int, timers, gpio counter, sensors, messaging subscriptionCounter, display counter) *Collector {
	return &Collector{
		ctx:        ctx,
		queueDepth: queueDepth,
		timers:     timers,
		gpio:       gpio,
		sensors:    sensors,
		messaging:  messaging,
		display:    display,
		stopCh:     make(chan struct{}),
	}
}

// Start begins periodic collection on a 15 second interval, sampling
// immediately on the first call.
func (c *Collector) Start() {
	ticker := time.NewTicker(15 * time.Second)
	go func() {
		c.collect()
		for {
			select {
			case <-ticker.C:
				c.collect()
			case <-c.stopCh:
				ticker.Stop()
				return
			}
		}
	}()
}

// Stop halts periodic collection.
func (c *Collector) Stop() {
	close(c.stopCh)
}

func (c *Collector) collect() {
	c.collectContainerMetrics()
	c.collectImageMetrics()
	c.collectEventMetrics()
	c.collectResourceMetrics()
}

func (c *Collector) collectContainerMetrics() {
	counts := map[string]float64{
		"created": 0, "running": 0, "paused": 0, "stopped": 0, "error": 0, "unknown": 0,
	}
	for _, cont := range c.ctx.GetContainers() {
		counts[cont.Status().String()]++
	}
	for status, n := range counts {
		ContainersTotal.WithLabelValues(status).Set(n)
	}
}

func (c *Collector) collectImageMetrics() {
	entries, err := os.ReadDir(c.ctx.WorkingDirectory() + "/images")
	if err != nil {
		return
	}
	n := 0
	for _, e := range entries {
		if !e.IsDir() {
			n++
		}
	}
	ImagesTotal.Set(float64(n))
}

func (c *Collector) collectEventMetrics() {
	if c.queueDepth == nil {
		return
	}
	EventQueueDepth.Set(float64(c.queueDepth()))
}

func (c *Collector) collectResourceMetrics() {
	if c.timers != nil {
		TimersActive.Set(float64(c.timers.Count()))
	}
	if c.gpio != nil {
		GPIOLinesConfigured.Set(float64(c.gpio.Count()))
	}
	if c.sensors != nil {
		SensorSubscriptionsActive.Set(float64(c.sensors.SubscriptionCount()))
	}
	if c.messaging != nil {
		MessagingSubscriptionsActive.Set(float64(c.messaging.SubscriptionCount()))
	}
	if c.display != nil {
		DisplayFlushesTotal.Set(float64(c.display.Count()))
	}
}
