// Package resource implements the host resource managers a sandboxed
// module's capabilities are backed by: timers, GPIO, sensors and messaging.
// Each manager keys its state by the owning module's event.ModuleHandle,
// raises event.Event values onto a shared event.Queue, and registers a
// registry.CleanupHandler so a module's outstanding resources are released
// the moment it's unregistered rather than leaking until process exit.
package resource

import (
	"sync"
	"time"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
)

// TimerManager implements the ocre_timer_* capability: per-module, per-ID
// one-shot or periodic timers that raise a event.TimerEvent on expiry.
type TimerManager struct {
	mu     sync.Mutex
	timers map[event.ModuleHandle]map[uint32]*timerEntry

	queue    *event.Queue
	registry *registry.Registry
}

type timerEntry struct {
	owner    event.ModuleHandle
	id       uint32
	interval time.Duration
	periodic bool

	timer   *time.Timer
	started time.Time
	stopped bool
}

// NewTimerManager returns a timer manager publishing expiry events onto
// queue, and registers its cleanup handler with reg.
func NewTimerManager(queue *event.Queue, reg *registry.Registry) *TimerManager {
	m := &TimerManager{
		timers:   make(map[event.ModuleHandle]map[uint32]*timerEntry),
		queue:    queue,
		registry: reg,
	}
	reg.RegisterCleanupHandler(event.ResourceTimer, m.cleanup)
	return m
}

// Create allocates timer id for owner in the stopped state.
// ocreerr.Conflict if id is already in use by owner.
func (m *TimerManager) Create(owner event.ModuleHandle, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	table := m.timers[owner]
	if table == nil {
		table = make(map[uint32]*timerEntry)
		m.timers[owner] = table
	}
	if _, exists := table[id]; exists {
		return ocreerr.Conflictf("timer %d already exists", id)
	}

	table[id] = &timerEntry{owner: owner, id: id, stopped: true}
	m.registry.IncResource(owner, event.ResourceTimer)
	return nil
}

// Delete removes timer id, stopping it first if running.
// ocreerr.NotFound if id is unknown for owner.
func (m *TimerManager) Delete(owner event.ModuleHandle, id uint32) error {
	m.mu.Lock()
	entry, err := m.lookupLocked(owner, id)
	if err != nil {
		m.mu.Unlock()
		return err
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	delete(m.timers[owner], id)
	m.mu.Unlock()

	m.registry.DecResource(owner, event.ResourceTimer)
	return nil
}

// Start arms timer id to fire after interval, repeating if periodic is set.
func (m *TimerManager) Start(owner event.ModuleHandle, id uint32, interval time.Duration, periodic bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookupLocked(owner, id)
	if err != nil {
		return err
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}

	entry.interval = interval
	entry.periodic = periodic
	entry.stopped = false
	entry.started = time.Now()
	entry.timer = time.AfterFunc(interval, func() { m.fire(owner, id) })
	return nil
}

// Stop disarms timer id without deleting it.
func (m *TimerManager) Stop(owner event.ModuleHandle, id uint32) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookupLocked(owner, id)
	if err != nil {
		return err
	}
	if entry.timer != nil {
		entry.timer.Stop()
	}
	entry.stopped = true
	return nil
}

// GetRemaining reports how long until timer id next fires. Zero if stopped.
func (m *TimerManager) GetRemaining(owner event.ModuleHandle, id uint32) (time.Duration, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entry, err := m.lookupLocked(owner, id)
	if err != nil {
		return 0, err
	}
	if entry.stopped {
		return 0, nil
	}

	elapsed := time.Since(entry.started)
	remaining := entry.interval - elapsed
	if remaining < 0 {
		return 0, nil
	}
	return remaining, nil
}

func (m *TimerManager) lookupLocked(owner event.ModuleHandle, id uint32) (*timerEntry, error) {
	table, ok := m.timers[owner]
	if !ok {
		return nil, ocreerr.NotFoundf("timer %d not found", id)
	}
	entry, ok := table[id]
	if !ok {
		return nil, ocreerr.NotFoundf("timer %d not found", id)
	}
	return entry, nil
}

func (m *TimerManager) fire(owner event.ModuleHandle, id uint32) {
	m.mu.Lock()
	table, ok := m.timers[owner]
	if !ok {
		m.mu.Unlock()
		return
	}
	entry, ok := table[id]
	if !ok {
		m.mu.Unlock()
		return
	}
	if entry.periodic && !entry.stopped {
		entry.started = time.Now()
		entry.timer = time.AfterFunc(entry.interval, func() { m.fire(owner, id) })
	} else {
		entry.stopped = true
	}
	m.mu.Unlock()

	m.queue.Publish(event.NewTimerEvent(owner, id))
}

// Count returns the total number of timers currently registered across all
// modules, for metrics reporting.
func (m *TimerManager) Count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, byID := range m.timers {
		n += len(byID)
	}
	return n
}

// cleanup stops and drops every timer owned by a module being unregistered.
func (m *TimerManager) cleanup(owner event.ModuleHandle) {
	m.mu.Lock()
	table := m.timers[owner]
	delete(m.timers, owner)
	m.mu.Unlock()

	for _, entry := range table {
		if entry.timer != nil {
			entry.timer.Stop()
		}
	}
}
