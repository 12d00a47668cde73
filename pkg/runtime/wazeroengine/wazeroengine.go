// Package wazeroengine is the default runtime.Descriptor, running
// WASI-preview1 modules on github.com/tetratelabs/wazero — a pure-Go
// interpreter/compiler, so it needs no cgo and no system WASM runtime
// installed. It's registered under the name "wazero/wasip1", standing in
// for the original wamr/wasip1 engine: same binding (a WASI-preview1 module
// plus a handful of ocre_* host imports), different underlying VM.
package wazeroengine

import (
	"context"
	"os"
	"strings"
	"sync"

	"github.com/tetratelabs/wazero"
	"github.com/tetratelabs/wazero/api"
	"github.com/tetratelabs/wazero/imports/wasi_snapshot_preview1"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/log"
	"github.com/project-ocre/ocre/pkg/ocreerr"
	"github.com/project-ocre/ocre/pkg/registry"
	"github.com/project-ocre/ocre/pkg/resource"
	"github.com/project-ocre/ocre/pkg/runtime"
)

// Name is the engine name Create registers under.
const Name = "wazero/wasip1"

// Resources bundles the host resource managers the engine exposes to a
// module as ocre_* host imports. A single set is shared across every
// container created by this engine, consistent with the module registry
// they're all keyed through.
type Resources struct {
	Registry  *registry.Registry
	Queue     *event.Queue
	Timers    *resource.TimerManager
	GPIO      *resource.GPIOManager
	Sensors   *resource.SensorManager
	Messaging *resource.MessagingManager
	Display   *resource.DisplayManager
}

// Engine holds the shared wazero runtime and host resource managers behind
// the Descriptor returned by New.
type Engine struct {
	resources Resources

	mu  sync.Mutex
	rt  wazero.Runtime
}

type instance struct {
	params runtime.CreateParams

	module wazero.CompiledModule
	mod    api.Module
	arena  *resource.Arena

	cancel context.CancelFunc
}

// New builds the wazero-backed Descriptor, wiring res as the host resource
// managers reachable from a module's ocre_* imports. Stop, Pause and
// Unpause are left unset: a WASI-preview1 module has no signal delivery
// mechanism to interrupt gracefully, so only Kill (hard cancellation) is
// offered, same as the original WAMR binding's documented limitation on
// pause/unpause.
func New(res Resources) *runtime.Descriptor {
	e := &Engine{resources: res}

	return &runtime.Descriptor{
		Name:          Name,
		Init:          e.init,
		Deinit:        e.deinit,
		Create:        e.create,
		Destroy:       e.destroy,
		ThreadExecute: e.threadExecute,
		Kill:          e.kill,
	}
}

func (e *Engine) init() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.rt = wazero.NewRuntime(context.Background())
	if _, err := wasi_snapshot_preview1.Instantiate(context.Background(), e.rt); err != nil {
		return ocreerr.EngineErrorf("wazero: instantiate WASI snapshot preview1: %w", err)
	}

	if err := e.buildHostModule(context.Background()); err != nil {
		return err
	}

	log.WithRuntime(Name).Info().Msg("wazero engine initialized")
	return nil
}

func (e *Engine) deinit() error {
	e.mu.Lock()
	rt := e.rt
	e.rt = nil
	e.mu.Unlock()

	if rt == nil {
		return nil
	}
	return rt.Close(context.Background())
}

func (e *Engine) create(ctx context.Context, params runtime.CreateParams) (runtime.Instance, error) {
	e.mu.Lock()
	rt := e.rt
	e.mu.Unlock()
	if rt == nil {
		return nil, ocreerr.WrongStatef("wazero engine is not initialized")
	}

	wasmBytes, err := os.ReadFile(params.ImagePath)
	if err != nil {
		return nil, ocreerr.IoErrorf("wazero: read module %q: %w", params.ImagePath, err)
	}

	compiled, err := rt.CompileModule(ctx, wasmBytes)
	if err != nil {
		return nil, ocreerr.EngineErrorf("wazero: compile module %q: %w", params.ImagePath, err)
	}

	return &instance{params: params, module: compiled, arena: resource.NewArena()}, nil
}

func (e *Engine) destroy(ctx context.Context, i runtime.Instance) error {
	inst := i.(*instance)

	e.resources.Registry.Unregister(inst)

	if inst.mod != nil {
		if err := inst.mod.Close(ctx); err != nil {
			return ocreerr.EngineErrorf("wazero: close module instance: %w", err)
		}
	}
	return inst.module.Close(ctx)
}

func (e *Engine) threadExecute(ctx context.Context, i runtime.Instance, start *runtime.StartSignal) (int, error) {
	inst := i.(*instance)

	runCtx, cancel := context.WithCancel(ctx)
	inst.cancel = cancel
	defer cancel()

	e.mu.Lock()
	rt := e.rt
	e.mu.Unlock()
	if rt == nil {
		start.Post()
		return -1, ocreerr.WrongStatef("wazero engine is not initialized")
	}

	modCfg := moduleConfig(inst.params)

	// The instance becomes visible to resource managers (and to its own
	// host imports, via the registry) before the module actually runs, so
	// a timer/GPIO/sensor/messaging call made from _start's very first
	// instruction already finds a registered module.
	e.resources.Registry.Register(inst, inst, inst.arena)

	start.Post()

	mod, err := rt.InstantiateModule(withInstance(runCtx, inst), inst.module, modCfg)
	if mod != nil {
		inst.mod = mod
	}
	if err != nil {
		if runCtx.Err() != nil {
			// Killed before or during _start: an abrupt but expected exit.
			return -1, nil
		}
		return -1, ocreerr.EngineErrorf("wazero: run module: %w", err)
	}

	return 0, nil
}

func (e *Engine) kill(ctx context.Context, i runtime.Instance) error {
	inst := i.(*instance)
	if inst.cancel != nil {
		inst.cancel()
	}
	return nil
}

func moduleConfig(params runtime.CreateParams) wazero.ModuleConfig {
	cfg := wazero.NewModuleConfig().
		WithArgs(params.Argv...).
		WithStdin(os.Stdin).
		WithStdout(os.Stdout).
		WithStderr(os.Stderr)

	for _, kv := range params.Envp {
		k, v, ok := strings.Cut(kv, "=")
		if ok {
			cfg = cfg.WithEnv(k, v)
		}
	}

	if len(params.Mounts) > 0 {
		fsCfg := wazero.NewFSConfig()
		for _, m := range params.Mounts {
			fsCfg = fsCfg.WithDirMount(m.Source, m.Destination)
		}
		cfg = cfg.WithFSConfig(fsCfg)
	}

	return cfg
}
