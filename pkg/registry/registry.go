// Package registry tracks the live sandbox module instances a runtime
// engine has created — one ModuleContext per module, keyed by the same
// event.ModuleHandle the engine hands back from runtime.Descriptor.Create.
// It's consulted on every event dispatch (to find the module's registered
// callback) and on every resource-manager Create/Delete call (to bump or
// drop the module's per-resource-type counters), and it drives cleanup: when
// a module is unregistered, each resource type's cleanup handler runs for
// whatever that module still had outstanding.
package registry

import (
	"sync"
	"time"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/ocreerr"
)

// ExecEnv is the per-call context a Dispatcher needs to invoke a module's
// registered callback — for the wazero engine this wraps an api.Module and
// the guest function index/table slot the module registered.
type ExecEnv any

// MemoryWriter duplicates host-owned bytes into a module's own memory so an
// event can hand the module an offset+length instead of a host pointer. The
// messaging resource manager is the only caller today.
type MemoryWriter interface {
	WriteBytes(data []byte) (offset uint32, err error)
	Free(offsets ...uint32) error
}

// Dispatcher is a module's registered callback for one resource type. It's
// invoked by a DispatchPool worker with the lock-free ExecEnv snapshot taken
// under the registry lock, never while that lock is held.
type Dispatcher func(execEnv ExecEnv, evt event.Event)

// CleanupHandler releases whatever a resource manager still owns for a
// module at unregister time. Registered once per resource type by that
// resource manager's constructor.
type CleanupHandler func(handle event.ModuleHandle)

// ModuleContext is the per-module bookkeeping record: its exec environment,
// outstanding resource counts by type, registered dispatch callbacks, and
// the last time an event was dispatched to it (useful for idle/GC sweeps the
// supervisor may run).
type ModuleContext struct {
	Handle  event.ModuleHandle
	ExecEnv ExecEnv
	Memory  MemoryWriter

	mu            sync.Mutex
	resourceCount [5]uint32
	dispatchers   [5]Dispatcher
	lastActivity  time.Time
}

// Registry is the module registry. One instance lives per pkg/library
// Library, shared by every resource manager and the dispatch pool.
type Registry struct {
	mu              sync.Mutex
	modules         map[event.ModuleHandle]*ModuleContext
	cleanupHandlers [5]CleanupHandler
}

// New returns an empty module registry.
func New() *Registry {
	return &Registry{modules: make(map[event.ModuleHandle]*ModuleContext)}
}

// RegisterCleanupHandler wires a resource manager's cleanup routine for rt.
// Called once by each resource manager's constructor; a second registration
// for the same type replaces the first.
func (r *Registry) RegisterCleanupHandler(rt event.ResourceType, h CleanupHandler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cleanupHandlers[rt] = h
}

// Register adds a module, usually called by the engine right after Create
// succeeds and before the worker goroutine starts running it.
func (r *Registry) Register(handle event.ModuleHandle, execEnv ExecEnv, mem MemoryWriter) *ModuleContext {
	mc := &ModuleContext{Handle: handle, ExecEnv: execEnv, Memory: mem, lastActivity: time.Now()}

	r.mu.Lock()
	r.modules[handle] = mc
	r.mu.Unlock()

	return mc
}

// Unregister removes a module and runs every resource type's cleanup
// handler against it, releasing whatever timers/GPIO callbacks/sensor
// subscriptions/message subscriptions it still held. Called once the
// container's worker has exited, never while the registry lock is held by
// the caller.
func (r *Registry) Unregister(handle event.ModuleHandle) {
	r.mu.Lock()
	_, ok := r.modules[handle]
	if ok {
		delete(r.modules, handle)
	}
	handlers := r.cleanupHandlers
	r.mu.Unlock()

	if !ok {
		return
	}
	for _, h := range handlers {
		if h != nil {
			h(handle)
		}
	}
}

// Get looks up a module's context.
func (r *Registry) Get(handle event.ModuleHandle) (*ModuleContext, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	mc, ok := r.modules[handle]
	return mc, ok
}

// SetDispatcher registers the callback a module wants invoked for events of
// type rt. ocreerr.NotFound if the module isn't registered.
func (r *Registry) SetDispatcher(handle event.ModuleHandle, rt event.ResourceType, d Dispatcher) error {
	mc, ok := r.Get(handle)
	if !ok {
		return ocreerr.NotFoundf("module is not registered")
	}
	mc.mu.Lock()
	mc.dispatchers[rt] = d
	mc.mu.Unlock()
	return nil
}

// IncResource increments a module's outstanding count for resource type rt,
// returning the new count. ocreerr.NotFound if the module isn't registered.
func (r *Registry) IncResource(handle event.ModuleHandle, rt event.ResourceType) (uint32, error) {
	mc, ok := r.Get(handle)
	if !ok {
		return 0, ocreerr.NotFoundf("module is not registered")
	}
	mc.mu.Lock()
	mc.resourceCount[rt]++
	count := mc.resourceCount[rt]
	mc.mu.Unlock()
	return count, nil
}

// DecResource decrements a module's outstanding count for resource type rt.
// A decrement below zero or against an unregistered module is a no-op —
// cleanup handlers run after the module has already been removed from the
// map, so they can't assume it's still there.
func (r *Registry) DecResource(handle event.ModuleHandle, rt event.ResourceType) {
	mc, ok := r.Get(handle)
	if !ok {
		return
	}
	mc.mu.Lock()
	if mc.resourceCount[rt] > 0 {
		mc.resourceCount[rt]--
	}
	mc.mu.Unlock()
}

// ResourceCount reports a module's current outstanding count for rt.
func (r *Registry) ResourceCount(handle event.ModuleHandle, rt event.ResourceType) uint32 {
	mc, ok := r.Get(handle)
	if !ok {
		return 0
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.resourceCount[rt]
}

// Dispatch looks up evt's owner, snapshots its registered dispatcher and
// exec env, and invokes the dispatcher with the registry lock already
// released. Returns false if the module is gone or has no dispatcher
// registered for the event's type — the caller drops the event silently,
// same as the module unregistering mid-flight.
func (r *Registry) Dispatch(evt event.Event) bool {
	mc, ok := r.Get(evt.Owner())
	if !ok {
		return false
	}

	mc.mu.Lock()
	d := mc.dispatchers[evt.Type()]
	execEnv := mc.ExecEnv
	mc.lastActivity = time.Now()
	mc.mu.Unlock()

	if d == nil {
		return false
	}

	d(execEnv, evt)
	return true
}

// LastActivity reports when a module last had an event dispatched to it.
func (r *Registry) LastActivity(handle event.ModuleHandle) (time.Time, bool) {
	mc, ok := r.Get(handle)
	if !ok {
		return time.Time{}, false
	}
	mc.mu.Lock()
	defer mc.mu.Unlock()
	return mc.lastActivity, true
}
