package ocrectx

import (
	"context"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/project-ocre/ocre/pkg/container"
	"github.com/project-ocre/ocre/pkg/fsutil"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/runtime"
)

const randomIDLen = 7

// CreateContainerParams describes a container to be created under a
// Context. Runtime selects the engine from the owning Library's registry;
// if empty the Library's default is used.
type CreateContainerParams struct {
	Image    string
	Runtime  string
	ID       string // empty to generate a random one
	Detached bool

	Argv         []string
	Envp         []string
	Capabilities []string
	Mounts       []runtime.Mount

	StackSize uint32
	HeapSize  uint32
}

type containerEntry struct {
	container *container.Container
	workdir   string // "" if the "filesystem" capability wasn't requested
}

// Context is a workdir-scoped set of containers. All containers created
// through one Context share its base directory's images/ and containers/
// subtrees.
type Context struct {
	mu         sync.Mutex
	workdir    string
	containers map[string]*containerEntry

	getRuntime func(name string) (*runtime.Descriptor, bool)
}

// New returns a Context rooted at workdir. getRuntime resolves an engine
// name to its Descriptor; pkg/library's Library passes its own registry
// lookup here so Context never needs to know about Library itself.
func New(workdir string, getRuntime func(name string) (*runtime.Descriptor, bool)) (*Context, error) {
	if err := fsutil.EnsureWorkdir(workdir); err != nil {
		return nil, err
	}
	return &Context{
		workdir:    workdir,
		containers: make(map[string]*containerEntry),
		getRuntime: getRuntime,
	}, nil
}

// WorkingDirectory returns the Context's base directory. Fixed for its
// whole life, so this never needs the lock.
func (c *Context) WorkingDirectory() string {
	return c.workdir
}

// CreateContainer validates params, resolves the image path and (if the
// "filesystem" capability was requested) the per-container working
// directory, then creates the container through the resolved engine. argv[0]
// is synthesized as the resolved image path, ahead of params.Argv, matching
// how a process's own argv[0] names the binary being run.
func (c *Context) CreateContainer(ctx context.Context, params CreateContainerParams) (*container.Container, error) {
	if err := validateName("image", params.Image); err != nil {
		return nil, err
	}
	if params.ID != "" {
		if err := validateName("container ID", params.ID); err != nil {
			return nil, err
		}
	}

	runtimeName := params.Runtime
	if runtimeName == "" {
		runtimeName = "wazero/wasip1"
	}
	engine, ok := c.getRuntime(runtimeName)
	if !ok {
		return nil, ocreerr.NotFoundf("runtime %q is not registered", runtimeName)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	id := params.ID
	if id == "" {
		generated, err := c.generateIDLocked()
		if err != nil {
			return nil, err
		}
		id = generated
	} else if _, exists := c.containers[id]; exists {
		return nil, ocreerr.Conflictf("container %q already exists", id)
	}

	imagePath := fsutil.ImagePath(c.workdir, params.Image)

	var containerWorkdir string
	if hasCapability(params.Capabilities, "filesystem") {
		dir, err := fsutil.CreateContainerDir(c.workdir, id)
		if err != nil {
			return nil, err
		}
		containerWorkdir = dir
	}

	argv := append([]string{imagePath}, params.Argv...)

	cont, err := container.Create(ctx, engine, container.Params{
		ID:           id,
		Image:        params.Image,
		ImagePath:    imagePath,
		Detached:     params.Detached,
		Argv:         argv,
		Envp:         params.Envp,
		Capabilities: params.Capabilities,
		Mounts:       params.Mounts,
		Workdir:      containerWorkdir,
		StackSize:    params.StackSize,
		HeapSize:     params.HeapSize,
	})
	if err != nil {
		if containerWorkdir != "" {
			if rmErr := fsutil.RemoveContainerDir(containerWorkdir); rmErr != nil {
				log.Logger.Warn().Err(rmErr).Str("workdir", containerWorkdir).
					Msg("failed to roll back container working directory after create failure")
			}
		}
		return nil, err
	}

	c.containers[id] = &containerEntry{container: cont, workdir: containerWorkdir}
	return cont, nil
}

// GetContainerByID returns the container with the given ID.
func (c *Context) GetContainerByID(id string) (*container.Container, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.containers[id]
	if !ok {
		return nil, ocreerr.NotFoundf("container %q not found", id)
	}
	return entry.container, nil
}

// RemoveContainer destroys and drops the container with the given ID.
// Requires the container to be in StatusCreated, StatusStopped or
// StatusError — same precondition as container.Container.Destroy.
func (c *Context) RemoveContainer(ctx context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	entry, ok := c.containers[id]
	if !ok {
		return ocreerr.NotFoundf("container %q not found", id)
	}

	if err := entry.container.Destroy(ctx); err != nil {
		return err
	}

	if entry.workdir != "" {
		if err := fsutil.RemoveContainerDir(entry.workdir); err != nil {
			return ocreerr.IoErrorf("remove container %q working directory: %w", id, err)
		}
	}

	delete(c.containers, id)
	return nil
}

// GetContainerCount returns how many containers the Context currently
// holds.
func (c *Context) GetContainerCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.containers)
}

// GetContainers returns every container currently held by the Context, in
// no particular order.
func (c *Context) GetContainers() []*container.Container {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]*container.Container, 0, len(c.containers))
	for _, entry := range c.containers {
		out = append(out, entry.container)
	}
	return out
}

// Destroy kills every container, waits for each to exit, then removes them
// all, matching the original implementation's "kill everything, then reap"
// shutdown order rather than stopping them one at a time.
func (c *Context) Destroy(ctx context.Context) error {
	c.mu.Lock()
	entries := make([]*containerEntry, 0, len(c.containers))
	for _, entry := range c.containers {
		entries = append(entries, entry)
	}
	c.mu.Unlock()

	for _, entry := range entries {
		if entry.container.Status() == container.StatusRunning {
			_ = entry.container.Kill(ctx)
		}
	}
	for _, entry := range entries {
		_, _ = entry.container.Wait(ctx)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	for id, entry := range c.containers {
		if err := entry.container.Destroy(ctx); err != nil {
			log.Logger.Warn().Err(err).Str("container_id", id).Msg("failed to destroy container during context teardown")
			continue
		}
		if entry.workdir != "" {
			if err := fsutil.RemoveContainerDir(entry.workdir); err != nil {
				log.Logger.Warn().Err(err).Str("workdir", entry.workdir).Msg("failed to remove container working directory during context teardown")
			}
		}
		delete(c.containers, id)
	}
	return nil
}

// generateIDLocked produces a random hex ID not already in use. Called with
// c.mu held.
func (c *Context) generateIDLocked() (string, error) {
	const maxAttempts = 100
	for i := 0; i < maxAttempts; i++ {
		candidate := strings.ReplaceAll(uuid.NewString(), "-", "")[:randomIDLen]
		if _, exists := c.containers[candidate]; !exists {
			return candidate, nil
		}
	}
	return "", ocreerr.ResourceExhaustedf("failed to generate a unique container ID after %d attempts", maxAttempts)
}

func hasCapability(caps []string, name string) bool {
	for _, c := range caps {
		if c == name {
			return true
		}
	}
	return false
}
