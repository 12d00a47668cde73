// Package runtime defines the engine abstraction every sandboxed container
// runs on: a named vtable of lifecycle calls (create/destroy/thread_execute/
// kill, plus the optional stop/pause/unpause trio) that a concrete engine
// such as wazeroengine implements and pkg/library registers under a name
// like "wazero/wasip1".
package runtime

import (
	"context"
	"sync"

	"github.com/opencontainers/runtime-spec/specs-go"
)

// Mount binds a host path into a container's filesystem view. Source must be
// an absolute path; Destination must be an absolute path other than "/" (the
// "filesystem" capability owns the root, not a mount).
type Mount struct {
	Source      string
	Destination string
}

// Spec converts m into the OCI runtime-spec mount representation an engine
// backed by an OCI-compatible bundle can pass straight through.
func (m Mount) Spec() specs.Mount {
	return specs.Mount{
		Source:      m.Source,
		Destination: m.Destination,
		Type:        "bind",
		Options:     []string{"rbind", "ro"},
	}
}

// Instance is the opaque handle an engine's Create returns and every other
// vtable entry is given back. Only the engine that produced it interprets
// its contents.
type Instance any

// CreateParams carries everything a container's lifecycle has already
// validated before the engine ever sees it: image path resolved, capability
// and mount lists checked, argv/envp owned by the caller for the lifetime of
// the call.
type CreateParams struct {
	ImagePath    string
	Workdir      string
	StackSize    uint32
	HeapSize     uint32
	Capabilities []string
	Argv         []string
	Envp         []string
	Mounts       []Mount
}

// StartSignal is posted exactly once by ThreadExecute after the sandbox
// instance has been set up and is about to run, and is waited on exactly
// once by the caller of Start. Posting more than once is safe; only the
// first post has an effect.
type StartSignal struct {
	once sync.Once
	ch   chan struct{}
}

// NewStartSignal returns a signal ready to be posted and waited on.
func NewStartSignal() *StartSignal {
	return &StartSignal{ch: make(chan struct{})}
}

// Post wakes whoever is waiting. Idempotent.
func (s *StartSignal) Post() {
	s.once.Do(func() { close(s.ch) })
}

// Wait returns a channel that closes when Post is called.
func (s *StartSignal) Wait() <-chan struct{} {
	return s.ch
}

// Descriptor is an engine's vtable. Name is the string containers and the
// library's registry key engines by, e.g. "wazero/wasip1". Init/Deinit run
// once each, at registration and deregistration.
//
// Create, Destroy, ThreadExecute and Kill are required. Stop, Pause and
// Unpause are optional; a nil entry means the engine doesn't support that
// operation and a container that calls it gets ocreerr.Unsupported.
type Descriptor struct {
	Name string

	Init   func() error
	Deinit func() error

	Create        func(ctx context.Context, params CreateParams) (Instance, error)
	Destroy       func(ctx context.Context, inst Instance) error
	ThreadExecute func(ctx context.Context, inst Instance, start *StartSignal) (exitCode int, err error)
	Kill          func(ctx context.Context, inst Instance) error

	Stop    func(ctx context.Context, inst Instance) error
	Pause   func(ctx context.Context, inst Instance) error
	Unpause func(ctx context.Context, inst Instance) error
}

// SupportsStop reports whether the engine implements graceful stop.
func (d *Descriptor) SupportsStop() bool { return d.Stop != nil }

// SupportsPause reports whether the engine implements pause/unpause.
func (d *Descriptor) SupportsPause() bool { return d.Pause != nil && d.Unpause != nil }

// Validate reports whether a Descriptor is complete enough to register.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return errMissingField("Name")
	}
	if d.Create == nil {
		return errMissingField("Create")
	}
	if d.Destroy == nil {
		return errMissingField("Destroy")
	}
	if d.ThreadExecute == nil {
		return errMissingField("ThreadExecute")
	}
	if d.Kill == nil {
		return errMissingField("Kill")
	}
	return nil
}

type missingFieldError string

func (e missingFieldError) Error() string { return "runtime: descriptor missing " + string(e) }

func errMissingField(field string) error { return missingFieldError(field) }
