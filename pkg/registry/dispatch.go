package registry

import (
	"sync"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/metrics"
)

// DispatchPool drains an event.Queue with a fixed worker pool and routes
// each event to its owning module through a Registry. It's the moving part
// behind a module's "events just show up" experience — resource managers
// only ever call Queue.Publish.
type DispatchPool struct {
	queue    *event.Queue
	registry *Registry
	workers  int
	batch    int

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewDispatchPool returns a pool that isn't running yet. workers is the
// number of goroutines draining queue; batch is how many events a worker
// opportunistically drains per wake-up before yielding, to amortize the
// registry lookup cost under load. Both default to 1 if given as <= 0.
func NewDispatchPool(queue *event.Queue, registry *Registry, workers, batch int) *DispatchPool {
	if workers <= 0 {
		workers = 1
	}
	if batch <= 0 {
		batch = 1
	}
	return &DispatchPool{
		queue:    queue,
		registry: registry,
		workers:  workers,
		batch:    batch,
		stopCh:   make(chan struct{}),
	}
}

// Start launches the worker goroutines. Safe to call once per pool.
func (p *DispatchPool) Start() {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.run()
	}
}

// Stop signals every worker to exit after it finishes whatever event it's
// currently handling, and waits for them to return.
func (p *DispatchPool) Stop() {
	close(p.stopCh)
	p.wg.Wait()
}

func (p *DispatchPool) run() {
	defer p.wg.Done()

	for {
		select {
		case <-p.stopCh:
			return
		case evt := <-p.queue.C():
			p.dispatch(evt)
			p.drainBatch()
		}
	}
}

func (p *DispatchPool) drainBatch() {
	for i := 1; i < p.batch; i++ {
		evt, ok := p.queue.Pop()
		if !ok {
			return
		}
		p.dispatch(evt)
	}
}

func (p *DispatchPool) dispatch(evt event.Event) {
	timer := metrics.NewTimer()
	dispatched := p.registry.Dispatch(evt)
	timer.ObserveDuration(metrics.DispatchLatency)

	if dispatched {
		metrics.DispatchedTotal.Inc()
		return
	}
	log.Logger.Debug().
		Str("resource_type", evt.Type().String()).
		Msg("dropped event for module with no registered dispatcher")
}
