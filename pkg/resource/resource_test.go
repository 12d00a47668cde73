package resource

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/project-ocre/ocre/pkg/event"
	"github.com/project-ocre/ocre/pkg/registry"
)

func TestTimerCreateDeleteLifecycle(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	tm := NewTimerManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, tm.Create("mod-1", 1))
	assert.Equal(t, 1, tm.Count())

	err := tm.Create("mod-1", 1)
	assert.Error(t, err, "duplicate id should conflict")

	require.NoError(t, tm.Delete("mod-1", 1))
	assert.Equal(t, 0, tm.Count())

	err = tm.Delete("mod-1", 1)
	assert.Error(t, err, "deleting twice should not find it")
}

func TestTimerFiresAndPublishesEvent(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	tm := NewTimerManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, tm.Create("mod-1", 1))
	require.NoError(t, tm.Start("mod-1", 1, 10*time.Millisecond, false))

	require.Eventually(t, func() bool {
		return q.Len() > 0
	}, time.Second, 5*time.Millisecond)

	evt, ok := q.Pop()
	require.True(t, ok)
	timerEvt, ok := evt.(event.TimerEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(1), timerEvt.TimerID)
}

func TestTimerStopPreventsFiring(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	tm := NewTimerManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, tm.Create("mod-1", 1))
	require.NoError(t, tm.Start("mod-1", 1, 20*time.Millisecond, false))
	require.NoError(t, tm.Stop("mod-1", 1))

	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, 0, q.Len())
}

func TestTimerCleanupOnModuleUnregister(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	tm := NewTimerManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, tm.Create("mod-1", 1))
	require.NoError(t, tm.Start("mod-1", 1, 5*time.Millisecond, true))

	reg.Unregister("mod-1")
	assert.Equal(t, 0, tm.Count())

	time.Sleep(20 * time.Millisecond)
}

func TestGPIOConfigureSetGet(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	gm := NewGPIOManager(q, reg)

	require.NoError(t, gm.Configure(1, 2, DirectionOutput))
	require.NoError(t, gm.Set(1, 2, 1))

	level, err := gm.Get(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), level)

	require.NoError(t, gm.Toggle(1, 2))
	level, err = gm.Get(1, 2)
	require.NoError(t, err)
	assert.Equal(t, uint32(0), level)
}

func TestGPIOSetRejectsInputLine(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	gm := NewGPIOManager(q, reg)

	require.NoError(t, gm.Configure(1, 2, DirectionInput))
	err := gm.Set(1, 2, 1)
	assert.Error(t, err)
}

func TestGPIOEdgeNotifiesSubscribers(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	gm := NewGPIOManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, gm.Configure(1, 2, DirectionInput))
	require.NoError(t, gm.RegisterCallback("mod-1", 1, 2))

	gm.Edge(1, 2, 1)

	evt, ok := q.Pop()
	require.True(t, ok)
	gpioEvt, ok := evt.(event.GPIOEvent)
	require.True(t, ok)
	assert.Equal(t, uint32(1), gpioEvt.State)
	assert.Equal(t, 1, gm.Count())
}

func TestGPIORegisterCallbackTwiceConflicts(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	gm := NewGPIOManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, gm.Configure(1, 2, DirectionInput))
	require.NoError(t, gm.RegisterCallback("mod-1", 1, 2))

	err := gm.RegisterCallback("mod-1", 1, 2)
	assert.Error(t, err)
}

func TestGPIOCleanupRemovesSubscriptionsOnUnregister(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	gm := NewGPIOManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, gm.Configure(1, 2, DirectionInput))
	require.NoError(t, gm.RegisterCallback("mod-1", 1, 2))

	reg.Unregister("mod-1")

	gm.Edge(1, 2, 1)
	assert.Equal(t, 0, q.Len(), "no subscribers left after cleanup")
}

func TestDisplayInitAndCapabilities(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)

	_, _, _, _, err := dm.Capabilities()
	assert.Error(t, err, "capabilities before init should fail")

	require.NoError(t, dm.Init(320, 240, 2, ColorModeRGB565))

	width, height, bpp, colorMode, err := dm.Capabilities()
	require.NoError(t, err)
	assert.Equal(t, uint32(320), width)
	assert.Equal(t, uint32(240), height)
	assert.Equal(t, uint32(2), bpp)
	assert.Equal(t, ColorModeRGB565, colorMode)
}

func TestDisplayFlushValidatesRectangleAndBuffer(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)
	require.NoError(t, dm.Init(10, 10, 2, ColorModeRGB565))

	err := dm.Flush(0, 0, 1, 1, make([]byte, 1))
	assert.Error(t, err, "buffer too small for a 2x2 region at 2bpp")

	require.NoError(t, dm.Flush(0, 0, 1, 1, make([]byte, 8)))
	assert.Equal(t, 1, dm.Count())

	err = dm.Flush(1, 0, 0, 0, make([]byte, 8))
	assert.Error(t, err, "x2 < x1 should be rejected")
}

func TestDisplayInputPushAndRead(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, dm.RegisterCallback("mod-1"))

	dm.PushInput(5, 6, true)

	evt, ok := q.Pop()
	require.True(t, ok)
	displayEvt, ok := evt.(event.DisplayEvent)
	require.True(t, ok)
	assert.Equal(t, int32(5), displayEvt.X)
	assert.Equal(t, int32(6), displayEvt.Y)
	assert.True(t, displayEvt.Pressed)

	x, y, pressed, more := dm.InputRead()
	assert.Equal(t, int32(5), x)
	assert.Equal(t, int32(6), y)
	assert.True(t, pressed)
	assert.False(t, more)
}

func TestDisplayInputReadReturnsLastKnownWhenQueueEmpty(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)

	x, y, pressed, more := dm.InputRead()
	assert.Equal(t, int32(0), x)
	assert.Equal(t, int32(0), y)
	assert.False(t, pressed)
	assert.False(t, more)
}

func TestDisplayRegisterCallbackTwiceConflicts(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, dm.RegisterCallback("mod-1"))
	err := dm.RegisterCallback("mod-1")
	assert.Error(t, err)
}

func TestDisplayCleanupRemovesSubscriptionOnUnregister(t *testing.T) {
	reg := registry.New()
	q := event.NewQueue(8)
	dm := NewDisplayManager(q, reg)
	reg.Register("mod-1", nil, nil)

	require.NoError(t, dm.RegisterCallback("mod-1"))
	reg.Unregister("mod-1")

	dm.PushInput(1, 1, true)
	assert.Equal(t, 0, q.Len(), "no subscribers left after cleanup")
}

func TestArenaWriteReadFree(t *testing.T) {
	a := NewArena()

	offset, err := a.WriteBytes([]byte("hello"))
	require.NoError(t, err)

	data, err := a.Read(offset)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	require.NoError(t, a.Free(offset))
	_, err = a.Read(offset)
	assert.Error(t, err)
}

func TestArenaDistinctOffsetsPerWrite(t *testing.T) {
	a := NewArena()
	o1, err := a.WriteBytes([]byte("a"))
	require.NoError(t, err)
	o2, err := a.WriteBytes([]byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, o1, o2)
}
