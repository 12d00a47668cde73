package library

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/runtime"
)

func stubDescriptor(name string) *runtime.Descriptor {
	return &runtime.Descriptor{
		Name:          name,
		Create:        func(ctx context.Context, params runtime.CreateParams) (runtime.Instance, error) { return nil, nil },
		Destroy:       func(ctx context.Context, inst runtime.Instance) error { return nil },
		ThreadExecute: func(ctx context.Context, inst runtime.Instance, start *runtime.StartSignal) (int, error) { return 0, nil },
		Kill:          func(ctx context.Context, inst runtime.Instance) error { return nil },
	}
}

func newTestLibrary(t *testing.T, opts Options) *Library {
	t.Helper()
	lib, err := Initialize(opts)
	require.NoError(t, err)
	t.Cleanup(func() { _ = lib.Deinitialize(context.Background()) })
	return lib
}

func TestInitializeRegistersDefaultEngine(t *testing.T) {
	lib := newTestLibrary(t, Options{DefaultEngine: stubDescriptor("stub/engine")})

	d, ok := lib.GetRuntime("stub/engine")
	require.True(t, ok)
	assert.Equal(t, "stub/engine", d.Name)

	_, hasDefault := lib.DefaultResources()
	assert.False(t, hasDefault, "a caller-supplied DefaultEngine has no wazero Resources")
}

func TestInitializeTwiceConflicts(t *testing.T) {
	newTestLibrary(t, Options{DefaultEngine: stubDescriptor("stub/engine")})

	_, err := Initialize(Options{DefaultEngine: stubDescriptor("stub/engine")})
	assert.Error(t, err)
}

func TestInitializeRegistersExtraEngines(t *testing.T) {
	lib := newTestLibrary(t, Options{
		DefaultEngine: stubDescriptor("stub/engine"),
		Extra:         []*runtime.Descriptor{stubDescriptor("extra/engine")},
	})

	_, ok := lib.GetRuntime("extra/engine")
	assert.True(t, ok)
}

func TestCreateContextRejectsDuplicateWorkdir(t *testing.T) {
	lib := newTestLibrary(t, Options{DefaultEngine: stubDescriptor("stub/engine")})
	dir := t.TempDir()

	_, err := lib.CreateContext(dir)
	require.NoError(t, err)

	_, err = lib.CreateContext(dir)
	assert.Error(t, err, "a second context for the same workdir should conflict")
}

func TestDestroyContextRemovesIt(t *testing.T) {
	lib := newTestLibrary(t, Options{DefaultEngine: stubDescriptor("stub/engine")})
	dir := t.TempDir()

	_, err := lib.CreateContext(dir)
	require.NoError(t, err)

	require.NoError(t, lib.DestroyContext(context.Background(), dir))

	err = lib.DestroyContext(context.Background(), dir)
	assert.Error(t, err)
}

func TestDeinitializeClearsSingleton(t *testing.T) {
	lib, err := Initialize(Options{DefaultEngine: stubDescriptor("stub/engine")})
	require.NoError(t, err)
	require.NoError(t, lib.Deinitialize(context.Background()))

	err = lib.Deinitialize(context.Background())
	assert.Error(t, err, "deinitializing a non-active instance should fail")
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("my-container"))
	assert.False(t, IsValidName(""))
}
