package library

import (
	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/registry"
	"github.com/project-ocre/ocre/pkg/resource"
	"github.com/project-ocre/ocre/pkg/runtime"
	"github.com/project-ocre/ocre/pkg/runtime/wazeroengine"
)

// defaultEventQueueCapacity bounds how many undispatched events the default
// engine's shared queue holds before a resource manager's Publish starts
// returning ocreerr.ResourceExhausted.
const defaultEventQueueCapacity = 256

// defaultDispatchWorkers is the size of the default engine's dispatch pool.
const defaultDispatchWorkers = 4

// defaultDispatchBatch is how many events a dispatch worker drains per
// wake-up before yielding back to the scheduler.
const defaultDispatchBatch = 8

// defaultEngine builds the built-in wazero/wasip1 Descriptor together with
// its module registry, event queue, dispatch pool and host resource
// managers (timers, GPIO, sensors, messaging, display). The dispatch pool is started
// immediately — there is no separate "start dispatching" step, matching how
// the original implementation's resource managers were always live once
// ocre_initialize returned.
func defaultEngine() (*runtime.Descriptor, *registry.DispatchPool, wazeroengine.Resources) {
	reg := registry.New()
	queue := event.NewQueue(defaultEventQueueCapacity)

	res := wazeroengine.Resources{
		Registry:  reg,
		Queue:     queue,
		Timers:    resource.NewTimerManager(queue, reg),
		GPIO:      resource.NewGPIOManager(queue, reg),
		Sensors:   resource.NewSensorManager(queue, reg, nil),
		Messaging: resource.NewMessagingManager(queue, reg),
		Display:   resource.NewDisplayManager(queue, reg),
	}

	pool := registry.NewDispatchPool(queue, reg, defaultDispatchWorkers, defaultDispatchBatch)
	pool.Start()

	return wazeroengine.New(res), pool, res
}
