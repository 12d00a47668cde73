package resource

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
)

// Direction is a GPIO line's configured direction.
type Direction int

const (
	DirectionInput Direction = iota
	DirectionOutput
)

type gpioLine struct {
	port, pin uint32
	direction Direction
	level     uint32

	subscribers map[event.ModuleHandle]struct{}
}

func lineKey(port, pin uint32) uint64 {
	return uint64(port)<<32 | uint64(pin)
}

// GPIOManager implements the ocre_gpio_* capability. There's no real
// hardware backing it; Set/Get/Toggle manipulate in-memory line state, and
// Edge is how a platform-specific backend (or a test) reports a physical
// transition so subscribed modules get a event.GPIOEvent.
type GPIOManager struct {
	mu    sync.Mutex
	lines map[uint64]*gpioLine

	queue    *event.Queue
	registry *registry.Registry
}

// NewGPIOManager returns a GPIO manager publishing edge events onto queue.
func NewGPIOManager(queue *event.Queue, reg *registry.Registry) *GPIOManager {
	m := &GPIOManager{
		lines:    make(map[uint64]*gpioLine),
		queue:    queue,
		registry: reg,
	}
	reg.RegisterCleanupHandler(event.ResourceGPIO, m.cleanup)
	return m
}

// Configure sets up port/pin with the given direction, creating the line if
// it doesn't exist yet.
func (m *GPIOManager) Configure(port, pin uint32, direction Direction) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := lineKey(port, pin)
	line, ok := m.lines[key]
	if !ok {
		line = &gpioLine{port: port, pin: pin, subscribers: make(map[event.ModuleHandle]struct{})}
		m.lines[key] = line
	}
	line.direction = direction
	return nil
}

// Set drives an output line to level.
func (m *GPIOManager) Set(port, pin, level uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := m.lookupLocked(port, pin)
	if err != nil {
		return err
	}
	if line.direction != DirectionOutput {
		return ocreerr.WrongStatef("gpio %d/%d is not configured as an output", port, pin)
	}
	line.level = level
	return nil
}

// Get reads a line's current level.
func (m *GPIOManager) Get(port, pin uint32) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := m.lookupLocked(port, pin)
	if err != nil {
		return 0, err
	}
	return line.level, nil
}

// Toggle flips an output line's level.
func (m *GPIOManager) Toggle(port, pin uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	line, err := m.lookupLocked(port, pin)
	if err != nil {
		return err
	}
	if line.direction != DirectionOutput {
		return ocreerr.WrongStatef("gpio %d/%d is not configured as an output", port, pin)
	}
	if line.level == 0 {
		line.level = 1
	} else {
		line.level = 0
	}
	return nil
}

// RegisterCallback subscribes owner to edge events on port/pin.
func (m *GPIOManager) RegisterCallback(owner event.ModuleHandle, port, pin uint32) error {
	m.mu.Lock()
	line, err := m.lookupLocked(port, pin)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if _, already := line.subscribers[owner]; already {
		m.mu.Unlock()
		return ocreerr.Conflictf("gpio %d/%d callback already registered", port, pin)
	}
	line.subscribers[owner] = struct{}{}
	m.mu.Unlock()

	m.registry.IncResource(owner, event.ResourceGPIO)
	return nil
}

// UnregisterCallback removes owner's subscription to port/pin.
func (m *GPIOManager) UnregisterCallback(owner event.ModuleHandle, port, pin uint32) error {
	m.mu.Lock()
	line, err := m.lookupLocked(port, pin)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if _, ok := line.subscribers[owner]; !ok {
		m.mu.Unlock()
		return ocreerr.NotFoundf("gpio %d/%d has no callback for this module", port, pin)
	}
	delete(line.subscribers, owner)
	m.mu.Unlock()

	m.registry.DecResource(owner, event.ResourceGPIO)
	return nil
}

// Edge reports a pin transition to state, publishing a event.GPIOEvent to
// every subscribed module.
func (m *GPIOManager) Edge(port, pin, state uint32) {
	m.mu.Lock()
	line, ok := m.lines[lineKey(port, pin)]
	if !ok {
		m.mu.Unlock()
		return
	}
	line.level = state
	owners := make([]event.ModuleHandle, 0, len(line.subscribers))
	for owner := range line.subscribers {
		owners = append(owners, owner)
	}
	m.mu.Unlock()

	for _, owner := range owners {
		m.queue.Publish(event.NewGPIOEvent(owner, port, pin, state))
	}
}

func (m *GPIOManager) lookupLocked(port, pin uint32) (*gpioLine, error) {
	line, ok := m.lines[lineKey(port, pin)]
	if !ok {
		return nil, ocreerr.NotFoundf("gpio %d/%d is not configured", port, pin)
	}
	return line, nil
}

// Count returns the number of GPIO lines currently configured, for metrics
// reporting.
func (m *GPIOManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.lines)
}

func (m *GPIOManager) cleanup(owner event.ModuleHandle) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, line := range m.lines {
		delete(line.subscribers, owner)
	}
}
