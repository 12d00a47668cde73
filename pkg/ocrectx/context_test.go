package ocrectx

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/runtime"
)

func stubDescriptor() *runtime.Descriptor {
	return &runtime.Descriptor{
		Name: "wazero/wasip1",
		Create: func(ctx context.Context, params runtime.CreateParams) (runtime.Instance, error) {
			return struct{}{}, nil
		},
		Destroy: func(ctx context.Context, inst runtime.Instance) error { return nil },
		ThreadExecute: func(ctx context.Context, inst runtime.Instance, start *runtime.StartSignal) (int, error) {
			start.Post()
			return 0, nil
		},
		Kill: func(ctx context.Context, inst runtime.Instance) error { return nil },
	}
}

func newTestContext(t *testing.T) *Context {
	t.Helper()
	descriptor := stubDescriptor()
	getRuntime := func(name string) (*runtime.Descriptor, bool) {
		if name == descriptor.Name {
			return descriptor, true
		}
		return nil, false
	}
	c, err := New(t.TempDir(), getRuntime)
	require.NoError(t, err)
	return c
}

func TestCreateContainerGeneratesIDWhenEmpty(t *testing.T) {
	c := newTestContext(t)

	cont, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm"})
	require.NoError(t, err)
	assert.NotEmpty(t, cont.ID())
	assert.Equal(t, "hello.wasm", cont.Image())
}

func TestCreateContainerRejectsInvalidImageName(t *testing.T) {
	c := newTestContext(t)
	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "Not Valid!"})
	assert.Error(t, err)
}

func TestCreateContainerDuplicateIDConflicts(t *testing.T) {
	c := newTestContext(t)

	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm", ID: "fixed-id"})
	require.NoError(t, err)

	_, err = c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm", ID: "fixed-id"})
	assert.Error(t, err)
}

func TestCreateContainerUnknownRuntime(t *testing.T) {
	c := newTestContext(t)
	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm", Runtime: "does-not-exist"})
	assert.Error(t, err)
}

func TestGetContainerByIDAndCount(t *testing.T) {
	c := newTestContext(t)
	created, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm", ID: "c1"})
	require.NoError(t, err)

	assert.Equal(t, 1, c.GetContainerCount())

	got, err := c.GetContainerByID("c1")
	require.NoError(t, err)
	assert.Same(t, created, got)

	_, err = c.GetContainerByID("ghost")
	assert.Error(t, err)
}

func TestRemoveContainer(t *testing.T) {
	c := newTestContext(t)
	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "hello.wasm", ID: "c1"})
	require.NoError(t, err)

	require.NoError(t, c.RemoveContainer(context.Background(), "c1"))
	assert.Equal(t, 0, c.GetContainerCount())

	err = c.RemoveContainer(context.Background(), "c1")
	assert.Error(t, err)
}

func TestGetContainersReturnsAll(t *testing.T) {
	c := newTestContext(t)
	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "a.wasm", ID: "c1"})
	require.NoError(t, err)
	_, err = c.CreateContainer(context.Background(), CreateContainerParams{Image: "b.wasm", ID: "c2"})
	require.NoError(t, err)

	containers := c.GetContainers()
	assert.Len(t, containers, 2)
}

func TestContextDestroyRemovesEverything(t *testing.T) {
	c := newTestContext(t)
	_, err := c.CreateContainer(context.Background(), CreateContainerParams{Image: "a.wasm", ID: "c1"})
	require.NoError(t, err)

	require.NoError(t, c.Destroy(context.Background()))
	assert.Equal(t, 0, c.GetContainerCount())
}

func TestWorkingDirectory(t *testing.T) {
	dir := t.TempDir()
	getRuntime := func(name string) (*runtime.Descriptor, bool) { return nil, false }
	c, err := New(dir, getRuntime)
	require.NoError(t, err)
	assert.Equal(t, dir, c.WorkingDirectory())
}

func TestIsValidName(t *testing.T) {
	assert.True(t, IsValidName("my-image.v1"))
	assert.False(t, IsValidName(""))
	assert.False(t, IsValidName(".hidden"))
	assert.False(t, IsValidName("Has Spaces"))
}
