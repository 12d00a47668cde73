/*
Package metrics defines and registers every Prometheus metric Ocre exposes,
plus a Timer helper for observing durations and a Collector that samples a
Context and its resource managers on a fixed interval.

# Metric Catalog

Container lifecycle:

  - ocre_containers_total{status}: gauge, current containers by status
  - ocre_containers_created_total: counter
  - ocre_containers_failed_total: counter, containers whose last run exited non-zero
  - ocre_container_create_duration_seconds: histogram
  - ocre_container_start_duration_seconds: histogram, time to the engine's start signal

Images:

  - ocre_images_total: gauge, entries under the context's images directory

Event dispatch:

  - ocre_event_queue_depth: gauge
  - ocre_events_published_total{resource_type}: counter
  - ocre_events_dropped_total{resource_type}: counter, queue was full
  - ocre_dispatch_latency_seconds: histogram
  - ocre_events_dispatched_total: counter

Host resources:

  - ocre_timers_active: gauge
  - ocre_gpio_lines_configured: gauge
  - ocre_sensor_subscriptions_active: gauge
  - ocre_messaging_subscriptions_active: gauge
  - ocre_display_flushes_total: gauge, completed display flush calls

IPC:

  - ocre_ipc_requests_total{opcode, status}: counter
  - ocre_ipc_request_duration_seconds{opcode}: histogram

# Usage

	timer := metrics.NewTimer()
	// ... perform operation ...
	timer.ObserveDuration(metrics.ContainerCreateDuration)

Collector avoids importing pkg/event or pkg/resource directly — those
packages import pkg/metrics to bump counters at the source, so the
Collector instead depends on small local interfaces (counter,
subscriptionCounter) satisfied by *resource.TimerManager and friends.

	collector := metrics.NewCollector(ctx, queue.Len, timers, gpio, sensors, messaging, display)
	collector.Start()
	defer collector.Stop()

http.Handle("/metrics", metrics.Handler()) exposes the registry in the
standard Prometheus text format.
*/
package metrics
