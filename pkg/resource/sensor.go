package resource

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
)

// SensorDescriptor describes a discoverable sensor channel.
type SensorDescriptor struct {
	SensorID uint32
	Channel  uint32
	Name     string
	Unit     string
}

type sensorChannel struct {
	desc        SensorDescriptor
	lastValue   float64
	subscribers map[event.ModuleHandle]struct{}
}

func sensorKey(sensorID, channel uint32) uint64 {
	return uint64(sensorID)<<32 | uint64(channel)
}

// SensorManager implements the ocre_sensor_* capability: a fixed catalogue
// of discoverable channels that modules can read synchronously or subscribe
// to for push updates via a event.SensorEvent.
type SensorManager struct {
	mu       sync.Mutex
	channels map[uint64]*sensorChannel

	queue    *event.Queue
	registry *registry.Registry
}

// NewSensorManager returns a sensor manager seeded with catalogue, a fixed
// list of discoverable channels — real hardware enumeration happens in a
// platform-specific layer above this one.
func NewSensorManager(queue *event.Queue, reg *registry.Registry, catalogue []SensorDescriptor) *SensorManager {
	m := &SensorManager{
		channels: make(map[uint64]*sensorChannel, len(catalogue)),
		queue:    queue,
		registry: reg,
	}
	for _, d := range catalogue {
		m.channels[sensorKey(d.SensorID, d.Channel)] = &sensorChannel{
			desc:        d,
			subscribers: make(map[event.ModuleHandle]struct{}),
		}
	}
	reg.RegisterCleanupHandler(event.ResourceSensor, m.cleanup)
	return m
}

// Discover lists every channel in the catalogue.
func (m *SensorManager) Discover() []SensorDescriptor {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]SensorDescriptor, 0, len(m.channels))
	for _, ch := range m.channels {
		out = append(out, ch.desc)
	}
	return out
}

// ReadData returns the last known value for sensorID/channel.
func (m *SensorManager) ReadData(sensorID, channel uint32) (float64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	ch, err := m.lookupLocked(sensorID, channel)
	if err != nil {
		return 0, err
	}
	return ch.lastValue, nil
}

// Subscribe registers owner for push updates on sensorID/channel.
func (m *SensorManager) Subscribe(owner event.ModuleHandle, sensorID, channel uint32) error {
	m.mu.Lock()
	ch, err := m.lookupLocked(sensorID, channel)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if _, already := ch.subscribers[owner]; already {
		m.mu.Unlock()
		return ocreerr.Conflictf("already subscribed to sensor %d/%d", sensorID, channel)
	}
	ch.subscribers[owner] = struct{}{}
	m.mu.Unlock()

	m.registry.IncResource(owner, event.ResourceSensor)
	return nil
}

// Unsubscribe removes owner's subscription to sensorID/channel.
func (m *SensorManager) Unsubscribe(owner event.ModuleHandle, sensorID, channel uint32) error {
	m.mu.Lock()
	ch, err := m.lookupLocked(sensorID, channel)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if _, ok := ch.subscribers[owner]; !ok {
		m.mu.Unlock()
		return ocreerr.NotFoundf("not subscribed to sensor %d/%d", sensorID, channel)
	}
	delete(ch.subscribers, owner)
	m.mu.Unlock()

	m.registry.DecResource(owner, event.ResourceSensor)
	return nil
}

// Publish records a new sample for sensorID/channel and raises a
// event.SensorEvent for every subscriber.
func (m *SensorManager) Publish(sensorID, channel uint32, value float64) {
	m.mu.Lock()
	ch, ok := m.channels[sensorKey(sensorID, channel)]
	if !ok {
		m.mu.Unlock()
		return
	}
	ch.lastValue = value
	owners := make([]event.ModuleHandle, 0, len(ch.subscribers))
	for owner := range ch.subscribers {
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	for _, owner := range owners {
		m.queue.Publish(event.NewSensorEvent(owner, sensorID, channel, value))
	}
}

func (m *SensorManager) lookupLocked(sensorID, channel uint32) (*sensorChannel, error) {
	ch, ok := m.channels[sensorKey(sensorID, channel)]
	if !ok {
		return nil, ocreerr.NotFoundf("sensor %d/%d is not available", sensorID, channel)
	}
	return ch, nil
}

// SubscriptionCount returns the total number of active subscriptions across
// all sensor channels, for metrics reporting.
func (m *SensorManager) SubscriptionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, ch := range m.channels {
		n += len(ch.subscribers)
	}
	return n
}

func (m *SensorManager) cleanup(owner event.ModuleHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.channels {
		delete(ch.subscribers, owner)
	}
}
