// Package container implements a single sandboxed container's lifecycle:
// the state machine, the worker goroutine that actually runs it on a
// runtime.Descriptor, and the mutex/condition-variable discipline that
// keeps every transition race-free without ever blocking while a lock is
// held.
package container

import (
	"context"
	"sync"

	"github.com/rs/zerolog"

	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/metrics"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/runtime"
)

// Params fully describes a container at creation time. Argv and Envp are
// owned by the Container for its whole life; callers should not mutate the
// slices after passing them in.
type Params struct {
	ID        string
	Image     string
	ImagePath string
	Detached  bool

	Argv         []string
	Envp         []string
	Capabilities []string
	Mounts       []runtime.Mount

	Workdir   string
	StackSize uint32
	HeapSize  uint32
}

// Container is a single sandboxed workload bound to one runtime.Descriptor.
// All fields below mu are only ever touched while mu is held; resolveLocked
// is the sole place statusExited is turned into StatusStopped, so it's
// called at the top of every method that reads or transitions status.
type Container struct {
	id        string
	image     string
	imagePath string
	detached  bool

	argv         []string
	envp         []string
	capabilities []string
	mounts       []runtime.Mount

	workdir   string
	stackSize uint32
	heapSize  uint32

	engine *runtime.Descriptor

	mu       sync.Mutex
	cond     *sync.Cond
	status   Status
	instance runtime.Instance
	exitCode int
	joined   bool

	workerWG sync.WaitGroup

	log zerolog.Logger
}

// Create instantiates params.Argv[0] is not synthesized by this package —
// ocrectx.CreateContainer is responsible for prepending the image path as
// argv[0] before calling Create, matching a process's own argv convention.
//
// On success the container is in StatusCreated, with an engine instance
// already allocated — Destroy is the only way to release it.
func Create(ctx context.Context, engine *runtime.Descriptor, params Params) (*Container, error) {
	timer := metrics.NewTimer()
	inst, err := engine.Create(ctx, runtime.CreateParams{
		ImagePath:    params.ImagePath,
		Workdir:      params.Workdir,
		StackSize:    params.StackSize,
		HeapSize:     params.HeapSize,
		Capabilities: params.Capabilities,
		Argv:         params.Argv,
		Envp:         params.Envp,
		Mounts:       params.Mounts,
	})
	timer.ObserveDuration(metrics.ContainerCreateDuration)
	if err != nil {
		return nil, ocreerr.EngineErrorf("create container %q: %w", params.ID, err)
	}
	metrics.ContainersCreatedTotal.Inc()

	c := &Container{
		id:           params.ID,
		image:        params.Image,
		imagePath:    params.ImagePath,
		detached:     params.Detached,
		argv:         params.Argv,
		envp:         params.Envp,
		capabilities: params.Capabilities,
		mounts:       params.Mounts,
		workdir:      params.Workdir,
		stackSize:    params.StackSize,
		heapSize:     params.HeapSize,
		engine:       engine,
		status:       StatusCreated,
		instance:     inst,
		log:          log.WithContainerID(params.ID),
	}
	c.cond = sync.NewCond(&c.mu)

	c.log.Info().Str("image", params.Image).Str("runtime", engine.Name).Msg("created container")
	return c, nil
}

func (c *Container) ID() string    { return c.id }
func (c *Container) Image() string { return c.image }
func (c *Container) Detached() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.detached
}

// resolveLocked is the only place statusExited becomes StatusStopped. The
// worker goroutine has already returned by the time status is statusExited,
// so workerWG.Wait() here never blocks — it exists purely so "joined
// exactly once" is enforced by the joined flag rather than relied upon.
func (c *Container) resolveLocked() {
	if c.status == statusExited {
		if !c.joined {
			c.workerWG.Wait()
			c.joined = true
		}
		c.status = StatusStopped
	}
}

// Status returns the container's current status, resolving a just-exited
// worker to StatusStopped if needed.
func (c *Container) Status() Status {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()
	return c.status
}

// ExitCode returns the exit code recorded by the last run. Only meaningful
// once Status reports StatusStopped.
func (c *Container) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()
	return c.exitCode
}

// Start runs the container. It requires StatusCreated or StatusStopped and
// transitions to StatusRunning immediately, before the worker goroutine has
// actually begun executing — Start itself blocks until the engine reports
// the sandbox has been set up (the start signal), then, for a non-detached
// container, blocks again until it exits.
//
// If ctx is done before the engine posts the start signal, Start unwinds to
// StatusError and releases the engine instance; the Container itself is left
// in place so it can still be removed. Start has no timeout of its own: with
// a ctx that is never done, it waits for the start signal indefinitely.
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	c.resolveLocked()
	if c.status != StatusCreated && c.status != StatusStopped {
		status := c.status
		c.mu.Unlock()
		return ocreerr.WrongStatef("start: container %s is %s", c.id, status)
	}

	start := runtime.NewStartSignal()
	inst := c.instance

	c.workerWG.Add(1)
	c.joined = false
	go c.run(inst, start)

	c.status = StatusRunning
	c.mu.Unlock()

	timer := metrics.NewTimer()
	select {
	case <-start.Wait():
		timer.ObserveDuration(metrics.ContainerStartDuration)
	case <-ctx.Done():
		c.mu.Lock()
		c.status = StatusError
		c.mu.Unlock()
		if c.engine.Destroy != nil {
			c.engine.Destroy(context.Background(), inst)
		}
		return ocreerr.EngineErrorf("start: container %s: %w", c.id, ctx.Err())
	}

	c.log.Info().Str("runtime", c.engine.Name).Msg("started container")

	if !c.detached {
		if _, err := c.Wait(ctx); err != nil {
			return err
		}
	}

	return nil
}

// run is the worker goroutine body. It must never be called while c.mu is
// held — ThreadExecute can block for the container's entire lifetime.
func (c *Container) run(inst runtime.Instance, start *runtime.StartSignal) {
	defer c.workerWG.Done()

	exitCode, err := c.engine.ThreadExecute(context.Background(), inst, start)
	if err != nil {
		c.log.Error().Err(err).Msg("container runtime exited with an error")
		if exitCode == 0 {
			exitCode = -1
		}
	}
	if exitCode != 0 {
		metrics.ContainersFailedTotal.Inc()
	}

	c.mu.Lock()
	// Here, and only here, does status become statusExited.
	c.status = statusExited
	c.exitCode = exitCode
	c.cond.Broadcast()
	c.mu.Unlock()

	c.log.Info().Int("exit_code", exitCode).Msg("container exited")
}

// Wait blocks until the container leaves StatusRunning/StatusPaused and
// returns its exit code. It returns immediately if the container has
// already stopped. There is no timeout variant; callers that need one
// should race ctx cancellation outside of Wait.
func (c *Container) Wait(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for {
		c.resolveLocked()
		switch c.status {
		case StatusStopped:
			return c.exitCode, nil
		case StatusError:
			return 0, ocreerr.WrongStatef("wait: container %s is in an error state", c.id)
		case StatusCreated:
			return 0, ocreerr.WrongStatef("wait: container %s has not been started", c.id)
		default:
			// Running or paused: block on the condition variable, which
			// releases c.mu for the duration and reacquires it on wake.
			c.cond.Wait()
		}
	}
}

// Stop sends the engine's graceful-stop signal. Requires StatusRunning and
// an engine that implements Stop; StatusPaused is not accepted — Unpause
// first.
func (c *Container) Stop(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()

	if c.status != StatusRunning {
		return ocreerr.WrongStatef("stop: container %s is %s", c.id, c.status)
	}
	if !c.engine.SupportsStop() {
		return ocreerr.Unsupportedf("runtime %q does not support stop", c.engine.Name)
	}

	if err := c.engine.Stop(ctx, c.instance); err != nil {
		return ocreerr.EngineErrorf("stop: container %s: %w", c.id, err)
	}
	c.log.Info().Msg("sent stop signal")
	return nil
}

// Kill sends the engine's forcible-terminate signal. Requires StatusRunning.
func (c *Container) Kill(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()

	if c.status != StatusRunning {
		return ocreerr.WrongStatef("kill: container %s is %s", c.id, c.status)
	}

	if err := c.engine.Kill(ctx, c.instance); err != nil {
		return ocreerr.EngineErrorf("kill: container %s: %w", c.id, err)
	}
	c.log.Info().Msg("sent kill signal")
	return nil
}

// Pause suspends a running container. Requires StatusRunning and an engine
// that implements Pause/Unpause.
func (c *Container) Pause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()

	if c.status != StatusRunning {
		return ocreerr.WrongStatef("pause: container %s is %s", c.id, c.status)
	}
	if !c.engine.SupportsPause() {
		return ocreerr.Unsupportedf("runtime %q does not support pause", c.engine.Name)
	}

	if err := c.engine.Pause(ctx, c.instance); err != nil {
		return ocreerr.EngineErrorf("pause: container %s: %w", c.id, err)
	}
	c.status = StatusPaused
	c.log.Info().Msg("paused container")
	return nil
}

// Unpause resumes a paused container. Requires StatusPaused.
func (c *Container) Unpause(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()

	if c.status != StatusPaused {
		return ocreerr.WrongStatef("unpause: container %s is %s", c.id, c.status)
	}
	if !c.engine.SupportsPause() {
		return ocreerr.Unsupportedf("runtime %q does not support unpause", c.engine.Name)
	}

	if err := c.engine.Unpause(ctx, c.instance); err != nil {
		return ocreerr.EngineErrorf("unpause: container %s: %w", c.id, err)
	}
	c.status = StatusRunning
	c.log.Info().Msg("unpaused container")
	return nil
}

// Destroy releases the engine instance. Requires StatusCreated, StatusStopped
// or StatusError; a running or paused container must be stopped first.
func (c *Container) Destroy(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resolveLocked()

	if c.status == StatusRunning || c.status == StatusPaused {
		return ocreerr.WrongStatef("destroy: container %s is %s", c.id, c.status)
	}

	if c.instance != nil {
		if err := c.engine.Destroy(ctx, c.instance); err != nil {
			c.log.Warn().Err(err).Msg("engine failed to release container instance")
		}
		c.instance = nil
	}

	c.argv = nil
	c.envp = nil
	c.log.Info().Msg("removed container")
	return nil
}
