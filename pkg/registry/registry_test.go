package registry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/event"
)

func TestRegisterAndGet(t *testing.T) {
	r := New()
	mc := r.Register("mod-1", nil, nil)
	assert.Equal(t, event.ModuleHandle("mod-1"), mc.Handle)

	got, ok := r.Get("mod-1")
	require.True(t, ok)
	assert.Same(t, mc, got)
}

func TestUnregisterRunsCleanupHandlers(t *testing.T) {
	r := New()
	var cleaned []event.ModuleHandle
	var mu sync.Mutex
	r.RegisterCleanupHandler(event.ResourceTimer, func(h event.ModuleHandle) {
		mu.Lock()
		cleaned = append(cleaned, h)
		mu.Unlock()
	})

	r.Register("mod-1", nil, nil)
	r.Unregister("mod-1")

	_, ok := r.Get("mod-1")
	assert.False(t, ok)
	assert.Equal(t, []event.ModuleHandle{"mod-1"}, cleaned)
}

func TestUnregisterUnknownModuleIsNoop(t *testing.T) {
	r := New()
	called := false
	r.RegisterCleanupHandler(event.ResourceTimer, func(h event.ModuleHandle) { called = true })
	r.Unregister("ghost")
	assert.False(t, called)
}

func TestIncDecResourceCount(t *testing.T) {
	r := New()
	r.Register("mod-1", nil, nil)

	count, err := r.IncResource("mod-1", event.ResourceTimer)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), count)

	count, err = r.IncResource("mod-1", event.ResourceTimer)
	require.NoError(t, err)
	assert.Equal(t, uint32(2), count)

	r.DecResource("mod-1", event.ResourceTimer)
	assert.Equal(t, uint32(1), r.ResourceCount("mod-1", event.ResourceTimer))
}

func TestIncResourceUnknownModule(t *testing.T) {
	r := New()
	_, err := r.IncResource("ghost", event.ResourceTimer)
	assert.Error(t, err)
}

func TestDecResourceNeverGoesNegative(t *testing.T) {
	r := New()
	r.Register("mod-1", nil, nil)
	r.DecResource("mod-1", event.ResourceTimer)
	assert.Equal(t, uint32(0), r.ResourceCount("mod-1", event.ResourceTimer))
}

func TestSetDispatcherRequiresRegisteredModule(t *testing.T) {
	r := New()
	err := r.SetDispatcher("ghost", event.ResourceTimer, func(ExecEnv, event.Event) {})
	assert.Error(t, err)
}

func TestDispatchInvokesRegisteredCallback(t *testing.T) {
	r := New()
	r.Register("mod-1", "env", nil)

	var gotEnv ExecEnv
	var gotEvt event.Event
	require.NoError(t, r.SetDispatcher("mod-1", event.ResourceTimer, func(env ExecEnv, evt event.Event) {
		gotEnv = env
		gotEvt = evt
	}))

	evt := event.NewTimerEvent("mod-1", 42)
	dispatched := r.Dispatch(evt)

	assert.True(t, dispatched)
	assert.Equal(t, "env", gotEnv)
	assert.Equal(t, evt, gotEvt)
}

func TestDispatchFalseForUnknownModule(t *testing.T) {
	r := New()
	dispatched := r.Dispatch(event.NewTimerEvent("ghost", 1))
	assert.False(t, dispatched)
}

func TestDispatchFalseWithNoRegisteredDispatcher(t *testing.T) {
	r := New()
	r.Register("mod-1", nil, nil)
	dispatched := r.Dispatch(event.NewTimerEvent("mod-1", 1))
	assert.False(t, dispatched)
}

func TestDispatchPoolDrainsQueueConcurrently(t *testing.T) {
	r := New()
	r.Register("mod-1", nil, nil)

	var mu sync.Mutex
	received := 0
	require.NoError(t, r.SetDispatcher("mod-1", event.ResourceTimer, func(ExecEnv, event.Event) {
		mu.Lock()
		received++
		mu.Unlock()
	}))

	q := event.NewQueue(16)
	pool := NewDispatchPool(q, r, 2, 4)
	pool.Start()
	defer pool.Stop()

	for i := uint32(0); i < 10; i++ {
		require.NoError(t, q.Publish(event.NewTimerEvent("mod-1", i)))
	}

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return received == 10
	}, time.Second, 10*time.Millisecond)
}
