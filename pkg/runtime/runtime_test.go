package runtime

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completeDescriptor(name string) *Descriptor {
	return &Descriptor{
		Name:          name,
		Create:        func(ctx context.Context, params CreateParams) (Instance, error) { return nil, nil },
		Destroy:       func(ctx context.Context, inst Instance) error { return nil },
		ThreadExecute: func(ctx context.Context, inst Instance, start *StartSignal) (int, error) { return 0, nil },
		Kill:          func(ctx context.Context, inst Instance) error { return nil },
	}
}

func TestDescriptorValidateRequiresFields(t *testing.T) {
	d := &Descriptor{}
	assert.Error(t, d.Validate())

	d = completeDescriptor("x")
	assert.NoError(t, d.Validate())
}

func TestDescriptorSupportsOptionalCapabilities(t *testing.T) {
	d := completeDescriptor("x")
	assert.False(t, d.SupportsStop())
	assert.False(t, d.SupportsPause())

	d.Stop = func(ctx context.Context, inst Instance) error { return nil }
	assert.True(t, d.SupportsStop())

	d.Pause = func(ctx context.Context, inst Instance) error { return nil }
	d.Unpause = func(ctx context.Context, inst Instance) error { return nil }
	assert.True(t, d.SupportsPause())
}

func TestStartSignalPostIsIdempotent(t *testing.T) {
	s := NewStartSignal()
	s.Post()
	s.Post()

	select {
	case <-s.Wait():
	default:
		t.Fatal("Wait() should be closed after Post()")
	}
}

func TestRegistryRegisterGetUnregister(t *testing.T) {
	r := NewRegistry()
	d := completeDescriptor("wazero/wasip1")

	require.NoError(t, r.Register(d))
	got, ok := r.Get("wazero/wasip1")
	require.True(t, ok)
	assert.Same(t, d, got)

	err := r.Register(d)
	assert.Error(t, err, "duplicate registration should conflict")

	require.NoError(t, r.Unregister("wazero/wasip1"))
	_, ok = r.Get("wazero/wasip1")
	assert.False(t, ok)
}

func TestRegistryUnregisterUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.NoError(t, r.Unregister("ghost"))
}

func TestRegistryRegisterRejectsIncompleteDescriptor(t *testing.T) {
	r := NewRegistry()
	err := r.Register(&Descriptor{Name: "incomplete"})
	assert.Error(t, err)
}

func TestRegistryNames(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(completeDescriptor("a")))
	require.NoError(t, r.Register(completeDescriptor("b")))

	names := r.Names()
	assert.ElementsMatch(t, []string{"a", "b"}, names)
}

func TestParseMount(t *testing.T) {
	m, err := ParseMount("/host/data:/guest/data")
	require.NoError(t, err)
	assert.Equal(t, Mount{Source: "/host/data", Destination: "/guest/data"}, m)
}

func TestParseMountRejectsRelativeSource(t *testing.T) {
	_, err := ParseMount("relative:/guest")
	assert.Error(t, err)
}

func TestParseMountRejectsRelativeDestination(t *testing.T) {
	_, err := ParseMount("/host:relative")
	assert.Error(t, err)
}

func TestParseMountRejectsRootDestination(t *testing.T) {
	_, err := ParseMount("/host:/")
	assert.Error(t, err)
}

func TestParseMountRejectsMissingColon(t *testing.T) {
	_, err := ParseMount("/host/data")
	assert.Error(t, err)
}

func TestParseMountsStopsAtFirstError(t *testing.T) {
	_, err := ParseMounts([]string{"/a:/b", "bad"})
	assert.Error(t, err)
}

func TestMountSpecConvertsToOCIMount(t *testing.T) {
	m := Mount{Source: "/host", Destination: "/guest"}
	spec := m.Spec()
	assert.Equal(t, "/host", spec.Source)
	assert.Equal(t, "/guest", spec.Destination)
	assert.Equal(t, "bind", spec.Type)
}
