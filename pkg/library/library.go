// Package library implements Library, the process-wide singleton that owns
// the runtime engine registry and the set of live Contexts. Initialize
// registers the default wazero/wasip1 engine plus any extras the caller
// supplies; Deinitialize tears everything down in reverse order.
package library

import (
	"context"
	"sync"

	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/ocrectx"
	"github.com/project-ocre/ocre/pkg/registry"
	"github.com/project-ocre/ocre/pkg/runtime"
	"github.com/project-ocre/ocre/pkg/runtime/wazeroengine"
)

// DefaultRuntimeName is the engine registered automatically by Initialize.
// It is always registered; an Extra entry with the same name is rejected.
const DefaultRuntimeName = "wazero/wasip1"

// Options configures Initialize.
type Options struct {
	// Extra lists additional engines to register alongside the default.
	// Registering a name twice is an error, same as calling
	// Library.RegisterRuntime twice for the same name.
	Extra []*runtime.Descriptor

	// DefaultEngine overrides the built-in wazero/wasip1 engine. Tests use
	// this to install a stub Descriptor without pulling in wazero.
	DefaultEngine *runtime.Descriptor
}

// Library is the process-wide singleton. Construct one with Initialize; a
// zero-value Library is not usable.
type Library struct {
	mu               sync.Mutex
	runtimes         *runtime.Registry
	contexts         map[string]*ocrectx.Context
	initDone         bool
	dispatchPool     *registry.DispatchPool
	defaultResources wazeroengine.Resources
	hasDefault       bool
}

var (
	instanceMu sync.Mutex
	instance   *Library
)

// Initialize constructs the singleton Library, registering the default
// engine and every engine in opts.Extra. Calling Initialize while a Library
// is already active returns ocreerr.Conflict; Deinitialize must run first.
func Initialize(opts Options) (*Library, error) {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != nil {
		return nil, ocreerr.Conflictf("library is already initialized")
	}

	lib := &Library{
		runtimes: runtime.NewRegistry(),
		contexts: make(map[string]*ocrectx.Context),
	}

	def := opts.DefaultEngine
	if def == nil {
		var pool *registry.DispatchPool
		var res wazeroengine.Resources
		def, pool, res = defaultEngine()
		lib.dispatchPool = pool
		lib.defaultResources = res
		lib.hasDefault = true
	}
	if err := lib.runtimes.Register(def); err != nil {
		if lib.dispatchPool != nil {
			lib.dispatchPool.Stop()
		}
		return nil, err
	}

	for _, d := range opts.Extra {
		if err := lib.runtimes.Register(d); err != nil {
			deinitRuntimes(lib.runtimes)
			return nil, err
		}
	}

	lib.initDone = true
	instance = lib

	log.Logger.Info().Strs("runtimes", lib.runtimes.Names()).Msg("library initialized")
	return lib, nil
}

// Deinitialize destroys every Context the Library holds and deinitializes
// every registered engine, then clears the singleton so Initialize can run
// again.
func (l *Library) Deinitialize(ctx context.Context) error {
	instanceMu.Lock()
	defer instanceMu.Unlock()

	if instance != l {
		return ocreerr.WrongStatef("library is not the active instance")
	}

	l.mu.Lock()
	contexts := make([]*ocrectx.Context, 0, len(l.contexts))
	for _, c := range l.contexts {
		contexts = append(contexts, c)
	}
	l.contexts = make(map[string]*ocrectx.Context)
	l.mu.Unlock()

	for _, c := range contexts {
		if err := c.Destroy(ctx); err != nil {
			log.Logger.Warn().Err(err).Msg("failed to destroy context during library teardown")
		}
	}

	deinitRuntimes(l.runtimes)

	if l.dispatchPool != nil {
		l.dispatchPool.Stop()
	}

	instance = nil
	log.Logger.Info().Msg("library deinitialized")
	return nil
}

func deinitRuntimes(reg *runtime.Registry) {
	for _, name := range reg.Names() {
		if err := reg.Unregister(name); err != nil {
			log.Logger.Warn().Err(err).Str("runtime", name).Msg("failed to deinitialize runtime engine")
		}
	}
}

// RegisterRuntime adds an additional engine after Initialize. Mostly useful
// for tests and for host applications that discover engines dynamically.
func (l *Library) RegisterRuntime(d *runtime.Descriptor) error {
	return l.runtimes.Register(d)
}

// GetRuntime looks up a registered engine by name.
func (l *Library) GetRuntime(name string) (*runtime.Descriptor, bool) {
	return l.runtimes.Get(name)
}

// CreateContext creates a Context rooted at workdir. A second call for the
// same workdir is rejected with ocreerr.Conflict rather than handed the
// existing Context back — a caller that wants the existing one should have
// kept the pointer it got the first time.
func (l *Library) CreateContext(workdir string) (*ocrectx.Context, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.contexts[workdir]; ok {
		return nil, ocreerr.Conflictf("a context is already registered for workdir %q", workdir)
	}

	c, err := ocrectx.New(workdir, l.runtimes.Get)
	if err != nil {
		return nil, err
	}

	l.contexts[workdir] = c
	return c, nil
}

// DestroyContext tears down and forgets the Context rooted at workdir.
func (l *Library) DestroyContext(ctx context.Context, workdir string) error {
	l.mu.Lock()
	c, ok := l.contexts[workdir]
	if ok {
		delete(l.contexts, workdir)
	}
	l.mu.Unlock()

	if !ok {
		return ocreerr.NotFoundf("no context for working directory %q", workdir)
	}
	return c.Destroy(ctx)
}

// IsValidName reports whether s is a valid container or image name.
func IsValidName(s string) bool { return ocrectx.IsValidName(s) }

// DefaultResources returns the resource managers backing the built-in
// wazero/wasip1 engine, for metrics collection. ok is false if Initialize
// was called with a caller-supplied DefaultEngine instead.
func (l *Library) DefaultResources() (wazeroengine.Resources, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.defaultResources, l.hasDefault
}
